package match

import (
	"strings"

	"github.com/louisbranch/avalon/internal/services/avalon/domain/player"
)

// Phase is a state of the match loop.
type Phase string

const (
	PhaseTeamProposal         Phase = "team_proposal"
	PhaseTeamVote             Phase = "team_vote"
	PhaseMission              Phase = "mission"
	PhaseAssassinationPending Phase = "assassination_pending"
	PhaseGameOver             Phase = "game_over"
)

// Valid reports whether p is a known phase.
func (p Phase) Valid() bool {
	switch p {
	case PhaseTeamProposal, PhaseTeamVote, PhaseMission, PhaseAssassinationPending, PhaseGameOver:
		return true
	}
	return false
}

// MissionResult is the outcome of a mission.
type MissionResult string

const (
	MissionSuccess MissionResult = "success"
	MissionFailure MissionResult = "failure"
)

// Card is a mission card played by a team member.
type Card string

const (
	CardSuccess Card = "success"
	CardFail    Card = "fail"
)

// Valid reports whether c is a playable card.
func (c Card) Valid() bool {
	return c == CardSuccess || c == CardFail
}

// ParseCard resolves a card name, ignoring case and surrounding space.
func ParseCard(value string) (Card, bool) {
	c := Card(strings.ToLower(strings.TrimSpace(value)))
	return c, c.Valid()
}

// Completion reasons carried by game_completed events.
const (
	ReasonThreeSuccesses       = "three_successful_missions"
	ReasonThreeFailures        = "three_failed_missions"
	ReasonFiveRejections       = "five_consecutive_rejections"
	ReasonAssassinationSuccess = "assassination_success"
	ReasonAssassinationFailure = "assassination_failure"
)

const (
	maxConsecutiveRejections = 5
	winningScore             = 3
)

// VoteRecord captures one team vote.
type VoteRecord struct {
	Round      int         `json:"round_number"`
	Attempt    int         `json:"attempt_number"`
	LeaderID   player.ID   `json:"leader_id"`
	Team       []player.ID `json:"team"`
	Approvals  []player.ID `json:"approvals"`
	Rejections []player.ID `json:"rejections"`
	Approved   bool        `json:"approved"`
}

func (v VoteRecord) clone() VoteRecord {
	v.Team = cloneIDs(v.Team)
	v.Approvals = cloneIDs(v.Approvals)
	v.Rejections = cloneIDs(v.Rejections)
	return v
}

// MissionAction ties a card to the player who played it.
type MissionAction struct {
	PlayerID player.ID `json:"player_id"`
	Card     Card      `json:"card"`
}

// MissionRecord captures one resolved mission. Actions are stored in a
// shuffled order; their content is authoritative, their order is not.
type MissionRecord struct {
	Round             int             `json:"round_number"`
	Attempt           int             `json:"attempt_number"`
	Team              []player.ID     `json:"team"`
	FailCount         int             `json:"fail_count"`
	RequiredFailCount int             `json:"required_fail_count"`
	Result            MissionResult   `json:"result"`
	AutoFail          bool            `json:"auto_fail"`
	Actions           []MissionAction `json:"actions"`
}

func (m MissionRecord) clone() MissionRecord {
	m.Team = cloneIDs(m.Team)
	m.Actions = append([]MissionAction(nil), m.Actions...)
	return m
}

// MissionSummary is the public view of a mission, without cards.
type MissionSummary struct {
	Round             int           `json:"round_number"`
	Attempt           int           `json:"attempt_number"`
	Team              []player.ID   `json:"team"`
	FailCount         int           `json:"fail_count"`
	RequiredFailCount int           `json:"required_fail_count"`
	Result            MissionResult `json:"result"`
	AutoFail          bool          `json:"auto_fail"`
}

// Summary returns the public view of the mission.
func (m MissionRecord) Summary() MissionSummary {
	return MissionSummary{
		Round:             m.Round,
		Attempt:           m.Attempt,
		Team:              cloneIDs(m.Team),
		FailCount:         m.FailCount,
		RequiredFailCount: m.RequiredFailCount,
		Result:            m.Result,
		AutoFail:          m.AutoFail,
	}
}

// CardOf returns the card playerID played on the mission.
func (m MissionRecord) CardOf(playerID player.ID) (Card, bool) {
	for _, a := range m.Actions {
		if a.PlayerID == playerID {
			return a.Card, true
		}
	}
	return "", false
}

// AssassinationRecord captures the assassin's guess.
type AssassinationRecord struct {
	AssassinID player.ID `json:"assassin_id"`
	TargetID   player.ID `json:"target_id"`
	Success    bool      `json:"success"`
}

// AutoFailPolicy selects what five consecutive rejections do.
type AutoFailPolicy string

const (
	// AutoFailEndsGame ends the match immediately in a Minion victory.
	AutoFailEndsGame AutoFailPolicy = "ends_game"
	// AutoFailContinue credits the Minions with a failed mission and moves
	// to the next round. The match ends once the Minions reach three.
	AutoFailContinue AutoFailPolicy = "continue"
)

// Valid reports whether p is a known policy.
func (p AutoFailPolicy) Valid() bool {
	return p == AutoFailEndsGame || p == AutoFailContinue
}

func cloneIDs(ids []player.ID) []player.ID {
	if ids == nil {
		return nil
	}
	return append([]player.ID(nil), ids...)
}
