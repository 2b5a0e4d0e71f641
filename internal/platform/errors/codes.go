// Package errors provides structured, coded errors shared by the rules engine
// and its hosts.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

// Kind groups codes into the categories callers branch on.
type Kind string

const (
	// KindConfiguration covers bad static setup: roles, registrations, files.
	KindConfiguration Kind = "configuration"
	// KindInvalidAction covers runtime actions that violate phase, ownership
	// or shape rules of the current match.
	KindInvalidAction Kind = "invalid_action"
	// KindInternal covers persistence and codec failures.
	KindInternal Kind = "internal"
)

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Configuration errors
	CodeConfigPlayerCount    Code = "CONFIG_UNSUPPORTED_PLAYER_COUNT"
	CodeConfigRoleCount      Code = "CONFIG_ROLE_COUNT_MISMATCH"
	CodeConfigAlignmentCount Code = "CONFIG_ALIGNMENT_COUNT_MISMATCH"
	CodeConfigDuplicateRole  Code = "CONFIG_DUPLICATE_UNIQUE_ROLE"
	CodeConfigRoleDependency Code = "CONFIG_ROLE_DEPENDENCY"
	CodeConfigUnknownRole    Code = "CONFIG_UNKNOWN_ROLE"
	CodeConfigRoleOverflow   Code = "CONFIG_ROLE_QUOTA_OVERFLOW"
	CodeConfigRegistration   Code = "CONFIG_INVALID_REGISTRATION"
	CodeConfigRoster         Code = "CONFIG_INVALID_ROSTER"
	CodeConfigFile           Code = "CONFIG_INVALID_FILE"

	// Action errors
	CodeActionGameOver      Code = "ACTION_GAME_OVER"
	CodeActionWrongPhase    Code = "ACTION_WRONG_PHASE"
	CodeActionNotLeader     Code = "ACTION_NOT_LEADER"
	CodeActionTeamSize      Code = "ACTION_TEAM_SIZE"
	CodeActionTeamMember    Code = "ACTION_TEAM_MEMBER"
	CodeActionNoTeam        Code = "ACTION_NO_TEAM"
	CodeActionBallot        Code = "ACTION_INCOMPLETE_BALLOT"
	CodeActionMissionCards  Code = "ACTION_MISSION_CARDS"
	CodeActionResistFail    Code = "ACTION_RESISTANCE_FAIL"
	CodeActionNotAssassin   Code = "ACTION_NOT_ASSASSIN"
	CodeActionUnknownTarget Code = "ACTION_UNKNOWN_TARGET"
	CodeActionResolved      Code = "ACTION_ALREADY_RESOLVED"
	CodeActionDiscussion    Code = "ACTION_DISCUSSION"

	// Internal errors
	CodeSnapshotInvalid Code = "SNAPSHOT_INVALID"
	CodeNotFound        Code = "NOT_FOUND"
)

var codeKinds = map[Code]Kind{
	CodeConfigPlayerCount:    KindConfiguration,
	CodeConfigRoleCount:      KindConfiguration,
	CodeConfigAlignmentCount: KindConfiguration,
	CodeConfigDuplicateRole:  KindConfiguration,
	CodeConfigRoleDependency: KindConfiguration,
	CodeConfigUnknownRole:    KindConfiguration,
	CodeConfigRoleOverflow:   KindConfiguration,
	CodeConfigRegistration:   KindConfiguration,
	CodeConfigRoster:         KindConfiguration,
	CodeConfigFile:           KindConfiguration,

	CodeActionGameOver:      KindInvalidAction,
	CodeActionWrongPhase:    KindInvalidAction,
	CodeActionNotLeader:     KindInvalidAction,
	CodeActionTeamSize:      KindInvalidAction,
	CodeActionTeamMember:    KindInvalidAction,
	CodeActionNoTeam:        KindInvalidAction,
	CodeActionBallot:        KindInvalidAction,
	CodeActionMissionCards:  KindInvalidAction,
	CodeActionResistFail:    KindInvalidAction,
	CodeActionNotAssassin:   KindInvalidAction,
	CodeActionUnknownTarget: KindInvalidAction,
	CodeActionResolved:      KindInvalidAction,
	CodeActionDiscussion:    KindInvalidAction,
}

// Kind reports the category the code belongs to.
func (c Code) Kind() Kind {
	if kind, ok := codeKinds[c]; ok {
		return kind
	}
	return KindInternal
}

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	case CodeNotFound:
		return codes.NotFound
	case CodeSnapshotInvalid:
		return codes.DataLoss
	}
	switch c.Kind() {
	case KindConfiguration:
		return codes.InvalidArgument
	case KindInvalidAction:
		return codes.FailedPrecondition
	default:
		return codes.Internal
	}
}
