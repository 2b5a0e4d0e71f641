package match

import (
	"reflect"
	"testing"
	"time"

	apperrors "github.com/louisbranch/avalon/internal/platform/errors"
	"github.com/louisbranch/avalon/internal/services/avalon/domain/player"
	"github.com/louisbranch/avalon/internal/services/avalon/domain/role"
	"github.com/louisbranch/avalon/internal/services/avalon/domain/rules"
)

// fivePlayers seats Merlin, Percival, a servant, the Assassin and Morgana.
func fivePlayers() []player.Player {
	return []player.Player{
		{ID: "p1", DisplayName: "Ana", Role: role.Merlin, Type: player.TypeHuman},
		{ID: "p2", DisplayName: "Bea", Role: role.Percival, Type: player.TypeHuman},
		{ID: "p3", DisplayName: "Cid", Role: role.LoyalServant, Type: player.TypeAgent},
		{ID: "p4", DisplayName: "Dee", Role: role.Assassin, Type: player.TypeAgent},
		{ID: "p5", DisplayName: "Eve", Role: role.Morgana, Type: player.TypeHuman},
	}
}

func fixedNow() time.Time {
	return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func newState(t *testing.T, opts ...Option) *State {
	t.Helper()
	cfg, err := rules.DefaultConfig(5)
	if err != nil {
		t.Fatalf("DefaultConfig: %v", err)
	}
	opts = append([]Option{WithSeed(42), WithClock(fixedNow)}, opts...)
	s, err := New(cfg, fivePlayers(), opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func allVotes(s *State, approve bool) map[player.ID]bool {
	votes := make(map[player.ID]bool)
	for _, p := range s.Players() {
		votes[p.ID] = approve
	}
	return votes
}

func allSuccess(team []player.ID) map[player.ID]Card {
	cards := make(map[player.ID]Card, len(team))
	for _, id := range team {
		cards[id] = CardSuccess
	}
	return cards
}

// teamFor returns the first n seats starting at the leader.
func teamFor(s *State, n int) []player.ID {
	players := s.Players()
	team := make([]player.ID, 0, n)
	for i := 0; i < n; i++ {
		team = append(team, players[(s.LeaderIndex()+i)%len(players)].ID)
	}
	return team
}

// playMission proposes the default team, approves it and submits cards.
// Minions listed in fail play fail; everyone else plays success.
func playMission(t *testing.T, s *State, team []player.ID, fail ...player.ID) MissionRecord {
	t.Helper()
	if _, err := s.ProposeTeam(s.CurrentLeader().ID, team); err != nil {
		t.Fatalf("ProposeTeam(%v): %v", team, err)
	}
	if _, err := s.VoteOnTeam(allVotes(s, true)); err != nil {
		t.Fatalf("VoteOnTeam: %v", err)
	}
	cards := allSuccess(team)
	for _, id := range fail {
		cards[id] = CardFail
	}
	record, err := s.SubmitMission(cards)
	if err != nil {
		t.Fatalf("SubmitMission: %v", err)
	}
	return record
}

// requireRejected asserts err is an invalid action with code and that the
// state did not change.
func requireRejected(t *testing.T, s *State, before Data, eventsBefore int, err error, code apperrors.Code) {
	t.Helper()
	if !apperrors.IsInvalidAction(err) {
		t.Fatalf("error = %v, want invalid action", err)
	}
	if got := apperrors.CodeOf(err); got != code {
		t.Fatalf("code = %s, want %s (%v)", got, code, err)
	}
	if after := s.Data(); !reflect.DeepEqual(before, after) {
		t.Fatalf("state changed after rejected action:\nbefore %+v\nafter  %+v", before, after)
	}
	if s.Log().Len() != eventsBefore {
		t.Fatalf("events = %d, want %d", s.Log().Len(), eventsBefore)
	}
}

func checkInvariants(t *testing.T, s *State) {
	t.Helper()
	if s.ResistanceScore() < 0 || s.ResistanceScore() > 3 || s.MinionScore() < 0 || s.MinionScore() > 3 {
		t.Fatalf("scores out of range: %d/%d", s.ResistanceScore(), s.MinionScore())
	}
	if s.Round() < 1 || s.Round() > rules.Rounds {
		t.Fatalf("round out of range: %d", s.Round())
	}
	_, won := s.FinalWinner()
	if won != s.IsOver() {
		t.Fatalf("winner set = %v, game over = %v", won, s.IsOver())
	}
	team, ok := s.CurrentTeam()
	inTeamPhase := s.Phase() == PhaseTeamVote || s.Phase() == PhaseMission
	if ok != inTeamPhase {
		t.Fatalf("team present = %v in phase %s", ok, s.Phase())
	}
	if ok && len(team) != s.RequiredTeamSize() {
		t.Fatalf("team size = %d, want %d", len(team), s.RequiredTeamSize())
	}
}

// seatedPlayers deals cfg's roles in order to p1..pN.
func seatedPlayers(cfg rules.Config) []player.Player {
	roles := cfg.Roles()
	players := make([]player.Player, len(roles))
	for i, r := range roles {
		id := player.ID("p" + string(rune('1'+i)))
		if i == 9 {
			id = "p10"
		}
		players[i] = player.Player{ID: id, DisplayName: "Player " + id, Role: r, Type: player.TypeAgent}
	}
	return players
}
