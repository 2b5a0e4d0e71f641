package decision

import (
	"context"

	"github.com/louisbranch/avalon/internal/services/avalon/domain/discussion"
	"github.com/louisbranch/avalon/internal/services/avalon/domain/match"
	"github.com/louisbranch/avalon/internal/services/avalon/domain/player"
)

// Source answers the decisions one seat has to make.
type Source interface {
	// ProposeTeam is asked of the leader in team_proposal.
	ProposeTeam(ctx context.Context, obs Observation) ([]player.ID, error)
	// Vote is asked of every player in team_vote.
	Vote(ctx context.Context, obs Observation) (bool, error)
	// PlayMission is asked of every team member in mission.
	PlayMission(ctx context.Context, obs Observation) (match.Card, error)
	// GuessMerlin is asked of the assassin in assassination_pending.
	GuessMerlin(ctx context.Context, obs Observation) (player.ID, error)
	// Speak is asked during an open discussion. ok is false when the
	// player passes.
	Speak(ctx context.Context, obs Observation, phase discussion.Phase) (message string, ok bool, err error)
}
