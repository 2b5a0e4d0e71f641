// Package app drives a match to completion by asking decision sources for
// each move, feeding the answers to the rules engine and persisting the
// resulting state.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	apperrors "github.com/louisbranch/avalon/internal/platform/errors"
	"github.com/louisbranch/avalon/internal/services/avalon/domain/decision"
	"github.com/louisbranch/avalon/internal/services/avalon/domain/discussion"
	"github.com/louisbranch/avalon/internal/services/avalon/domain/match"
	"github.com/louisbranch/avalon/internal/services/avalon/domain/player"
	"github.com/louisbranch/avalon/internal/services/avalon/domain/role"
	"github.com/louisbranch/avalon/internal/services/avalon/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// NoRetries turns re-prompting off: the first invalid answer fails the match.
const NoRetries = -1

const (
	defaultMaxRetries = 3
	// maxSteps bounds the main loop; a legal match needs far fewer.
	maxSteps   = 500
	tracerName = "avalon/app"
)

// Runner plays one match at a time.
type Runner struct {
	// Sources answers decisions per seat. Every player needs one.
	Sources map[player.ID]decision.Source
	// Store persists the match after every accepted action. Optional.
	Store storage.Store
	// Logger receives progress lines. Nil uses log.Default().
	Logger *log.Logger
	// MaxRetries is how many times a source is re-prompted after an
	// invalid answer. Zero means the default of three; NoRetries or any
	// negative value disables re-prompting.
	MaxRetries int
}

// NewMatchID returns a fresh match identifier.
func NewMatchID() string {
	return uuid.NewString()
}

// Play drives state until the match is over.
func (r *Runner) Play(ctx context.Context, matchID string, state *match.State) error {
	if state == nil {
		return errors.New("match state is required")
	}
	if matchID == "" {
		return errors.New("match id is required")
	}
	for _, p := range state.Players() {
		if r.Sources[p.ID] == nil {
			return fmt.Errorf("no decision source for player %s", p.ID)
		}
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "avalon.match",
		trace.WithAttributes(
			attribute.String("avalon.match_id", matchID),
			attribute.Int("avalon.player_count", len(state.Players())),
		))
	defer span.End()

	p := &play{runner: r, matchID: matchID, state: state}
	err := p.run(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return err
	}
	if winner, ok := state.FinalWinner(); ok {
		span.SetAttributes(attribute.String("avalon.winner", string(winner)))
	}
	return nil
}

// play holds per-match progress.
type play struct {
	runner        *Runner
	matchID       string
	state         *match.State
	snapshotSeq   uint64
	snapshotSaved bool
	eventSeq      uint64
}

func (p *play) run(ctx context.Context) error {
	if err := p.loadCursor(ctx); err != nil {
		return err
	}
	if err := p.persist(ctx); err != nil {
		return err
	}
	for step := 0; !p.state.IsOver(); step++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if step >= maxSteps {
			return fmt.Errorf("match %s did not finish after %d steps", p.matchID, maxSteps)
		}
		if err := p.step(ctx); err != nil {
			return err
		}
		if err := p.persist(ctx); err != nil {
			return err
		}
	}
	winner, _ := p.state.FinalWinner()
	p.logf("match %s over: %s victory (resistance %d, minions %d)",
		p.matchID, winner, p.state.ResistanceScore(), p.state.MinionScore())
	return nil
}

func (p *play) step(ctx context.Context) error {
	phase := p.state.Phase()
	ctx, span := otel.Tracer(tracerName).Start(ctx, "avalon.phase."+string(phase),
		trace.WithAttributes(
			attribute.String("avalon.phase", string(phase)),
			attribute.Int("avalon.round", p.state.Round()),
			attribute.Int("avalon.attempt", p.state.Attempt()),
		))
	defer span.End()

	var err error
	switch phase {
	case match.PhaseTeamProposal:
		err = p.proposeTeam(ctx)
	case match.PhaseTeamVote:
		err = p.voteOnTeam(ctx)
	case match.PhaseMission:
		err = p.runMission(ctx)
	case match.PhaseAssassinationPending:
		err = p.assassinate(ctx)
	default:
		err = fmt.Errorf("unhandled phase %s", phase)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
	}
	return err
}

func (p *play) proposeTeam(ctx context.Context) error {
	if err := p.discuss(ctx, discussion.PhasePreProposal); err != nil {
		return err
	}
	leader := p.state.CurrentLeader().ID
	return p.retry(leader, "team proposal", func() error {
		obs, err := decision.Observe(p.state, leader)
		if err != nil {
			return err
		}
		team, err := p.runner.Sources[leader].ProposeTeam(ctx, obs)
		if err != nil {
			return err
		}
		if _, err := p.state.ProposeTeam(leader, team); err != nil {
			return err
		}
		p.logf("round %d attempt %d: %s proposes %v", p.state.Round(), p.state.Attempt(), leader, team)
		return nil
	})
}

func (p *play) voteOnTeam(ctx context.Context) error {
	if err := p.discuss(ctx, discussion.PhasePreVote); err != nil {
		return err
	}
	return p.retry("", "team vote", func() error {
		votes := make(map[player.ID]bool)
		for _, pl := range p.state.Players() {
			obs, err := decision.Observe(p.state, pl.ID)
			if err != nil {
				return err
			}
			vote, err := p.runner.Sources[pl.ID].Vote(ctx, obs)
			if err != nil {
				return err
			}
			votes[pl.ID] = vote
		}
		record, err := p.state.VoteOnTeam(votes)
		if err != nil {
			return err
		}
		p.logf("round %d attempt %d: team %v %s (%d-%d)", record.Round, record.Attempt, record.Team,
			approvedLabel(record.Approved), len(record.Approvals), len(record.Rejections))
		return nil
	})
}

func (p *play) runMission(ctx context.Context) error {
	team, ok := p.state.CurrentTeam()
	if !ok {
		return errors.New("mission phase without a team")
	}
	players := p.state.PlayersByID()
	err := p.retry("", "mission", func() error {
		cards := make(map[player.ID]match.Card, len(team))
		for _, id := range team {
			obs, err := decision.Observe(p.state, id)
			if err != nil {
				return err
			}
			card, err := p.runner.Sources[id].PlayMission(ctx, obs)
			if err != nil {
				return err
			}
			cards[id] = card
		}
		forceResistanceSuccess(cards, players)
		record, err := p.state.SubmitMission(cards)
		if err != nil {
			return err
		}
		p.logf("round %d: mission %s with %d fail(s)", record.Round, record.Result, record.FailCount)
		return nil
	})
	if err != nil {
		return err
	}
	return p.discuss(ctx, discussion.PhasePostMissionResult)
}

// forceResistanceSuccess rewrites cards so Resistance players always succeed.
func forceResistanceSuccess(cards map[player.ID]match.Card, players map[player.ID]player.Player) {
	for id := range cards {
		if pl, ok := players[id]; ok && pl.Alignment() == role.Resistance {
			cards[id] = match.CardSuccess
		}
	}
}

func (p *play) assassinate(ctx context.Context) error {
	assassins := p.state.AssassinIDs()
	if len(assassins) == 0 {
		return errors.New("assassination pending without an assassin")
	}
	if err := p.discuss(ctx, discussion.PhasePreAssassination); err != nil {
		return err
	}
	assassin := assassins[0]
	return p.retry(assassin, "assassination", func() error {
		obs, err := decision.Observe(p.state, assassin)
		if err != nil {
			return err
		}
		target, err := p.runner.Sources[assassin].GuessMerlin(ctx, obs)
		if err != nil {
			return err
		}
		record, err := p.state.PerformAssassination(assassin, target)
		if err != nil {
			return err
		}
		p.logf("assassin %s targets %s: success=%t", record.AssassinID, record.TargetID, record.Success)
		return nil
	})
}

// discuss runs one discussion when the phase is enabled. Each player is
// asked in seat order until they pass or reach the statement limit.
func (p *play) discuss(ctx context.Context, phase discussion.Phase) error {
	cfg := p.state.Config().Discussion()
	if !cfg.PhaseEnabled(phase) || p.state.IsOver() {
		return nil
	}
	round, err := p.state.StartDiscussion(phase)
	if err != nil {
		return err
	}
	turns := cfg.MaxStatementsPerPhase
	if turns <= 0 {
		turns = 1
	}
	for _, pl := range p.state.Players() {
		if err := p.collectStatements(ctx, pl.ID, round, turns, cfg.AllowPass); err != nil {
			return err
		}
	}
	closed, err := p.state.EndDiscussion()
	if err != nil {
		return err
	}
	p.logf("round %d attempt %d: %s discussion closed with %d statement(s)",
		closed.Round, closed.Attempt, closed.Phase, len(closed.Statements))
	return nil
}

func (p *play) collectStatements(ctx context.Context, id player.ID, round discussion.Round, turns int, allowPass bool) error {
	source := p.runner.Sources[id]
	misses := 0
	for spoken := 0; spoken < turns; {
		obs, err := decision.Observe(p.state, id)
		if err != nil {
			return err
		}
		message, ok, err := source.Speak(ctx, obs, round.Phase)
		if err != nil {
			return err
		}
		if !ok {
			if allowPass || spoken > 0 {
				return nil
			}
			misses++
			if misses > p.runner.maxRetries() {
				p.logf("%s gave no statement in %s discussion", id, round.Phase)
				return nil
			}
			continue
		}
		err = p.state.AddStatement(discussion.Statement{
			SpeakerID: id,
			Message:   message,
			Round:     round.Round,
			Attempt:   round.Attempt,
			Phase:     round.Phase,
		})
		if err != nil {
			if !apperrors.IsInvalidAction(err) {
				return err
			}
			misses++
			if misses > p.runner.maxRetries() {
				p.logf("dropping statements from %s: %v", id, err)
				return nil
			}
			continue
		}
		spoken++
	}
	return nil
}

// retry calls fn until it succeeds, re-prompting on invalid actions up to
// the runner's retry budget.
func (p *play) retry(who player.ID, what string, fn func() error) error {
	limit := p.runner.maxRetries()
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if !apperrors.IsInvalidAction(err) || attempt >= limit {
			if who != "" {
				return fmt.Errorf("%s by %s: %w", what, who, err)
			}
			return fmt.Errorf("%s: %w", what, err)
		}
		p.logf("%s rejected, asking again (%d/%d): %v", what, attempt+1, limit, err)
	}
}

func (r *Runner) maxRetries() int {
	switch {
	case r.MaxRetries < 0:
		return 0
	case r.MaxRetries == 0:
		return defaultMaxRetries
	}
	return r.MaxRetries
}

func (p *play) logf(format string, args ...any) {
	logger := p.runner.Logger
	if logger == nil {
		logger = log.Default()
	}
	logger.Printf(format, args...)
}

func approvedLabel(approved bool) string {
	if approved {
		return "approved"
	}
	return "rejected"
}
