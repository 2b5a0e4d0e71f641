package match

import (
	"strings"

	apperrors "github.com/louisbranch/avalon/internal/platform/errors"
	"github.com/louisbranch/avalon/internal/services/avalon/domain/discussion"
	"github.com/louisbranch/avalon/internal/services/avalon/domain/event"
)

// StartDiscussion opens a discussion for the current round and attempt.
// Only one discussion may be open at a time. Which phases get a discussion
// is left to the caller; the configured toggles are not enforced here.
func (s *State) StartDiscussion(phase discussion.Phase) (discussion.Round, error) {
	if !phase.Valid() {
		return discussion.Round{}, apperrors.Newf(apperrors.CodeActionDiscussion, "Unknown discussion phase %q", phase)
	}
	if s.currentDiscussion != nil {
		return discussion.Round{}, apperrors.New(apperrors.CodeActionDiscussion, "A discussion is already in progress")
	}

	s.currentDiscussion = &discussion.Round{Round: s.round, Attempt: s.attempt, Phase: phase}
	if err := s.emit(event.TypeDiscussionStarted, map[string]any{"phase": phase}); err != nil {
		return discussion.Round{}, err
	}
	return s.currentDiscussion.Clone(), nil
}

// AddStatement appends a public statement to the open discussion. The
// statement's round, attempt and phase must match the open discussion.
func (s *State) AddStatement(stmt discussion.Statement) error {
	current := s.currentDiscussion
	if current == nil {
		return apperrors.New(apperrors.CodeActionDiscussion, "No discussion in progress")
	}
	if !current.Matches(stmt) {
		return apperrors.Newf(apperrors.CodeActionDiscussion,
			"Statement round %d attempt %d phase %s doesn't match current discussion (round %d attempt %d phase %s)",
			stmt.Round, stmt.Attempt, stmt.Phase, current.Round, current.Attempt, current.Phase)
	}
	if _, ok := s.playersByID[stmt.SpeakerID]; !ok {
		return apperrors.Newf(apperrors.CodeActionDiscussion, "Unknown speaker: %s", stmt.SpeakerID)
	}
	stmt.Message = strings.TrimSpace(stmt.Message)
	if stmt.Message == "" {
		return apperrors.New(apperrors.CodeActionDiscussion, "Statements must not be empty")
	}
	if limit := s.config.Discussion().MaxStatementsPerPhase; limit > 0 && len(current.StatementsBy(stmt.SpeakerID)) >= limit {
		return apperrors.Newf(apperrors.CodeActionDiscussion,
			"Player %s already made %d statements in this discussion", stmt.SpeakerID, limit)
	}

	current.Add(stmt)
	return s.emit(event.TypeDiscussionStatement, map[string]any{
		"speaker_id": stmt.SpeakerID,
		"message":    stmt.Message,
		"phase":      stmt.Phase,
	})
}

// EndDiscussion closes the open discussion and moves it to the history.
func (s *State) EndDiscussion() (discussion.Round, error) {
	if s.currentDiscussion == nil {
		return discussion.Round{}, apperrors.New(apperrors.CodeActionDiscussion, "No discussion to end")
	}
	closed := s.currentDiscussion.Clone()
	s.discussions = append(s.discussions, closed)
	s.currentDiscussion = nil
	if err := s.emit(event.TypeDiscussionEnded, map[string]any{
		"phase":      closed.Phase,
		"statements": len(closed.Statements),
	}); err != nil {
		return closed, err
	}
	return closed.Clone(), nil
}
