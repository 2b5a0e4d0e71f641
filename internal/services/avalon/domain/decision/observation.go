// Package decision defines what a player sees when asked to act and the
// sources that answer those requests.
//
// The engine never trusts a source: every answer goes back through the
// match actions, which reject anything illegal.
package decision

import (
	apperrors "github.com/louisbranch/avalon/internal/platform/errors"
	"github.com/louisbranch/avalon/internal/services/avalon/domain/discussion"
	"github.com/louisbranch/avalon/internal/services/avalon/domain/knowledge"
	"github.com/louisbranch/avalon/internal/services/avalon/domain/match"
	"github.com/louisbranch/avalon/internal/services/avalon/domain/player"
	"github.com/louisbranch/avalon/internal/services/avalon/domain/role"
)

// Observation is the match as one player is allowed to see it.
type Observation struct {
	PlayerID    player.ID        `json:"player_id"`
	DisplayName string           `json:"display_name"`
	Role        role.ID          `json:"role"`
	Alignment   role.Alignment   `json:"alignment"`
	Knowledge   knowledge.Packet `json:"knowledge"`

	PlayerIDs   []player.ID `json:"all_player_ids"`
	PlayerNames []string    `json:"all_player_names"`

	Phase                 match.Phase `json:"phase"`
	Round                 int         `json:"round_number"`
	Attempt               int         `json:"attempt_number"`
	ResistanceScore       int         `json:"resistance_score"`
	MinionScore           int         `json:"minion_score"`
	ConsecutiveRejections int         `json:"consecutive_rejections"`
	LeaderID              player.ID   `json:"current_leader_id"`
	CurrentTeam           []player.ID `json:"current_team,omitempty"`

	Votes    []match.VoteRecord     `json:"vote_history"`
	Missions []match.MissionSummary `json:"mission_history"`

	RequiredTeamSize  int `json:"required_team_size"`
	RequiredFailCount int `json:"required_fail_count"`

	Statements []discussion.Statement `json:"discussion_statements"`
	// MyMissionActions maps mission index to the card this player played.
	MyMissionActions map[int]match.Card `json:"my_mission_actions"`
}

// Observe builds the observation for playerID.
func Observe(state *match.State, playerID player.ID) (Observation, error) {
	p, ok := state.PlayerByID(playerID)
	if !ok {
		return Observation{}, apperrors.Newf(apperrors.CodeNotFound, "Unknown player id: %s", playerID)
	}
	players := state.Players()
	ids := make([]player.ID, len(players))
	names := make([]string, len(players))
	for i, seat := range players {
		ids[i] = seat.ID
		names[i] = seat.DisplayName
	}
	team, _ := state.CurrentTeam()
	return Observation{
		PlayerID:              p.ID,
		DisplayName:           p.DisplayName,
		Role:                  p.Role,
		Alignment:             p.Alignment(),
		Knowledge:             state.Knowledge()[p.ID],
		PlayerIDs:             ids,
		PlayerNames:           names,
		Phase:                 state.Phase(),
		Round:                 state.Round(),
		Attempt:               state.Attempt(),
		ResistanceScore:       state.ResistanceScore(),
		MinionScore:           state.MinionScore(),
		ConsecutiveRejections: state.ConsecutiveRejections(),
		LeaderID:              state.CurrentLeader().ID,
		CurrentTeam:           team,
		Votes:                 state.Votes(),
		Missions:              state.PublicMissions(),
		RequiredTeamSize:      state.RequiredTeamSize(),
		RequiredFailCount:     state.RequiredFailCount(),
		Statements:            state.AllStatements(),
		MyMissionActions:      state.MissionActionsFor(p.ID),
	}, nil
}

// IsLeader reports whether the observer leads the current attempt.
func (o Observation) IsLeader() bool {
	return o.LeaderID == o.PlayerID
}

// OnTeam reports whether id is on the current team.
func (o Observation) OnTeam(id player.ID) bool {
	for _, member := range o.CurrentTeam {
		if member == id {
			return true
		}
	}
	return false
}

// Sees reports whether id is revealed exactly by the observer's knowledge.
func (o Observation) Sees(id player.ID) bool {
	for _, visible := range o.Knowledge.Visible {
		if visible == id {
			return true
		}
	}
	return false
}
