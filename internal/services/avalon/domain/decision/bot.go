package decision

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/louisbranch/avalon/internal/random"
	"github.com/louisbranch/avalon/internal/services/avalon/domain/discussion"
	"github.com/louisbranch/avalon/internal/services/avalon/domain/match"
	"github.com/louisbranch/avalon/internal/services/avalon/domain/player"
	"github.com/louisbranch/avalon/internal/services/avalon/domain/role"
)

// Bot is a simple deterministic player. Resistance bots avoid players they
// know to be Minions and players seen on failed missions; Minion bots
// approve teams that carry a Minion and fail every mission they join.
type Bot struct {
	mu  sync.Mutex
	rng *rand.Rand
}

var _ Source = (*Bot)(nil)

// NewBot returns a bot whose choices are fixed by seed.
func NewBot(seed int64) *Bot {
	return &Bot{rng: random.New(seed)}
}

func (b *Bot) ProposeTeam(ctx context.Context, obs Observation) ([]player.ID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	suspects := b.suspects(obs)
	team := []player.ID{obs.PlayerID}
	var trusted, doubted []player.ID
	for _, id := range b.shuffled(obs.PlayerIDs) {
		switch {
		case id == obs.PlayerID:
		case suspects[id]:
			doubted = append(doubted, id)
		default:
			trusted = append(trusted, id)
		}
	}
	for _, id := range append(trusted, doubted...) {
		if len(team) >= obs.RequiredTeamSize {
			break
		}
		team = append(team, id)
	}
	return team, nil
}

func (b *Bot) Vote(ctx context.Context, obs Observation) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if obs.Alignment == role.Minion {
		for _, id := range obs.CurrentTeam {
			if id == obs.PlayerID || obs.Sees(id) {
				return true, nil
			}
		}
		// A fifth rejection hands the Minions the match.
		return obs.ConsecutiveRejections < 4 && b.chance(1, 3), nil
	}
	if obs.ConsecutiveRejections >= 4 {
		return true, nil
	}
	suspects := b.suspects(obs)
	for _, id := range obs.CurrentTeam {
		if suspects[id] {
			return false, nil
		}
	}
	return true, nil
}

func (b *Bot) PlayMission(ctx context.Context, obs Observation) (match.Card, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if obs.Alignment == role.Minion {
		return match.CardFail, nil
	}
	return match.CardSuccess, nil
}

func (b *Bot) GuessMerlin(ctx context.Context, obs Observation) (player.ID, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var candidates []player.ID
	for _, id := range obs.PlayerIDs {
		if id != obs.PlayerID && !obs.Sees(id) {
			candidates = append(candidates, id)
		}
	}
	if len(candidates) == 0 {
		return "", fmt.Errorf("no assassination candidates for %s", obs.PlayerID)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return candidates[b.rng.Intn(len(candidates))], nil
}

func (b *Bot) Speak(ctx context.Context, obs Observation, phase discussion.Phase) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	if obs.Alignment == role.Resistance {
		suspects := b.suspects(obs)
		for _, id := range obs.CurrentTeam {
			if suspects[id] {
				return fmt.Sprintf("I do not trust %s on this team.", id), true, nil
			}
		}
	}
	if phase == discussion.PhasePostMissionResult && len(obs.Missions) > 0 {
		last := obs.Missions[len(obs.Missions)-1]
		if last.Result == match.MissionFailure && !last.AutoFail {
			return fmt.Sprintf("Mission %d failed with %d fail cards.", last.Round, last.FailCount), true, nil
		}
	}
	return "", false, nil
}

// suspects returns the players this bot would rather keep off a team.
func (b *Bot) suspects(obs Observation) map[player.ID]bool {
	out := make(map[player.ID]bool)
	if obs.Alignment == role.Minion {
		return out
	}
	if obs.Role == role.Merlin {
		for _, id := range obs.Knowledge.Visible {
			out[id] = true
		}
	}
	for _, m := range obs.Missions {
		if m.Result != match.MissionFailure || m.AutoFail {
			continue
		}
		for _, id := range m.Team {
			if id != obs.PlayerID {
				out[id] = true
			}
		}
	}
	return out
}

func (b *Bot) shuffled(ids []player.ID) []player.ID {
	out := append([]player.ID(nil), ids...)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

func (b *Bot) chance(num, den int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rng.Intn(den) < num
}
