package match

import (
	"testing"

	apperrors "github.com/louisbranch/avalon/internal/platform/errors"
	"github.com/louisbranch/avalon/internal/services/avalon/domain/discussion"
	"github.com/louisbranch/avalon/internal/services/avalon/domain/player"
	"github.com/louisbranch/avalon/internal/services/avalon/domain/rules"
)

func statement(speaker, message string) discussion.Statement {
	return discussion.Statement{SpeakerID: speaker, Message: message, Round: 1, Attempt: 1, Phase: discussion.PhasePreProposal}
}

func TestDiscussionLifecycle(t *testing.T) {
	s := newState(t)

	if err := s.AddStatement(statement("p1", "hello")); apperrors.CodeOf(err) != apperrors.CodeActionDiscussion {
		t.Fatalf("statement without discussion error = %v", err)
	}
	if _, err := s.EndDiscussion(); apperrors.CodeOf(err) != apperrors.CodeActionDiscussion {
		t.Fatalf("end without discussion error = %v", err)
	}

	open, err := s.StartDiscussion(discussion.PhasePreProposal)
	if err != nil {
		t.Fatalf("StartDiscussion: %v", err)
	}
	if open.Round != 1 || open.Attempt != 1 || open.Phase != discussion.PhasePreProposal {
		t.Fatalf("open = %+v", open)
	}
	if _, err := s.StartDiscussion(discussion.PhasePreVote); apperrors.CodeOf(err) != apperrors.CodeActionDiscussion {
		t.Fatalf("second start error = %v", err)
	}

	if err := s.AddStatement(statement("p1", "  I trust p2  ")); err != nil {
		t.Fatalf("AddStatement: %v", err)
	}
	if err := s.AddStatement(statement("p1", "and p3")); err != nil {
		t.Fatalf("AddStatement: %v", err)
	}
	if err := s.AddStatement(statement("p2", "pass")); err != nil {
		t.Fatalf("AddStatement: %v", err)
	}

	rejected := []struct {
		name string
		stmt discussion.Statement
	}{
		{name: "over limit", stmt: statement("p1", "one more")},
		{name: "unknown speaker", stmt: statement("zz", "hi")},
		{name: "empty", stmt: statement("p3", "   ")},
		{name: "wrong round", stmt: discussion.Statement{SpeakerID: "p3", Message: "hi", Round: 2, Attempt: 1, Phase: discussion.PhasePreProposal}},
		{name: "wrong phase", stmt: discussion.Statement{SpeakerID: "p3", Message: "hi", Round: 1, Attempt: 1, Phase: discussion.PhasePreVote}},
	}
	for _, tt := range rejected {
		before, events := s.Data(), s.Log().Len()
		err := s.AddStatement(tt.stmt)
		if err == nil {
			t.Fatalf("%s: expected error", tt.name)
		}
		requireRejected(t, s, before, events, err, apperrors.CodeActionDiscussion)
	}

	current, ok := s.CurrentDiscussion()
	if !ok || len(current.Statements) != 3 {
		t.Fatalf("current = %+v, %v", current, ok)
	}
	if current.Statements[0].Message != "I trust p2" {
		t.Fatalf("message = %q, want trimmed", current.Statements[0].Message)
	}

	closed, err := s.EndDiscussion()
	if err != nil {
		t.Fatalf("EndDiscussion: %v", err)
	}
	if len(closed.Statements) != 3 {
		t.Fatalf("closed statements = %d", len(closed.Statements))
	}
	if _, ok := s.CurrentDiscussion(); ok {
		t.Fatal("discussion still open")
	}
	if got := s.Discussions(); len(got) != 1 {
		t.Fatalf("history = %d, want 1", len(got))
	}
	if got := s.AllStatements(); len(got) != 3 {
		t.Fatalf("all statements = %d, want 3", len(got))
	}

	public, err := s.Log().Filter(`type = "discussion_statement"`)
	if err != nil {
		t.Fatalf("Filter: %v", err)
	}
	if len(public) != 3 {
		t.Fatalf("statement events = %d, want 3", len(public))
	}
}

func TestDiscussionDoesNotChangeGameState(t *testing.T) {
	s := newState(t)
	phase, leader := s.Phase(), s.LeaderIndex()
	if _, err := s.StartDiscussion(discussion.PhasePreProposal); err != nil {
		t.Fatalf("StartDiscussion: %v", err)
	}
	if err := s.AddStatement(statement("p3", "p4 looks shifty")); err != nil {
		t.Fatalf("AddStatement: %v", err)
	}
	if _, err := s.EndDiscussion(); err != nil {
		t.Fatalf("EndDiscussion: %v", err)
	}
	if s.Phase() != phase || s.LeaderIndex() != leader {
		t.Fatalf("discussion moved game to %s leader %d", s.Phase(), s.LeaderIndex())
	}
	if _, err := s.ProposeTeam("p1", []player.ID{"p1", "p2"}); err != nil {
		t.Fatalf("ProposeTeam after discussion: %v", err)
	}
}

func TestStartDiscussionIgnoresPhaseToggles(t *testing.T) {
	cfg, err := rules.DefaultConfig(5, rules.WithDiscussion(discussion.Config{
		Enabled:     true,
		PreProposal: false,
		PreVote:     true,
	}))
	if err != nil {
		t.Fatalf("DefaultConfig: %v", err)
	}
	s, err := New(cfg, fivePlayers(), WithClock(fixedNow))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := s.StartDiscussion("small_talk"); apperrors.CodeOf(err) != apperrors.CodeActionDiscussion {
		t.Fatalf("unknown phase error = %v", err)
	}
	if _, err := s.StartDiscussion(discussion.PhasePreProposal); err != nil {
		t.Fatalf("StartDiscussion(pre_proposal) with the phase toggled off: %v", err)
	}
	if _, err := s.EndDiscussion(); err != nil {
		t.Fatalf("EndDiscussion: %v", err)
	}
	if _, err := s.StartDiscussion(discussion.PhasePreVote); err != nil {
		t.Fatalf("StartDiscussion(pre_vote): %v", err)
	}
	for i := 0; i < 5; i++ {
		stmt := discussion.Statement{SpeakerID: "p1", Message: "again", Round: 1, Attempt: 1, Phase: discussion.PhasePreVote}
		if err := s.AddStatement(stmt); err != nil {
			t.Fatalf("unlimited statement %d: %v", i, err)
		}
	}
}

func TestStartDiscussionAfterGameOver(t *testing.T) {
	s := newState(t)
	for i := 0; i < 5; i++ {
		if _, err := s.ProposeTeam(s.CurrentLeader().ID, teamFor(s, 2)); err != nil {
			t.Fatalf("ProposeTeam: %v", err)
		}
		if _, err := s.VoteOnTeam(allVotes(s, false)); err != nil {
			t.Fatalf("VoteOnTeam: %v", err)
		}
	}
	if !s.IsOver() {
		t.Fatalf("phase = %s, want game over", s.Phase())
	}
	if _, err := s.StartDiscussion(discussion.PhasePostMissionResult); err != nil {
		t.Fatalf("StartDiscussion after game over: %v", err)
	}
	stmt := discussion.Statement{SpeakerID: "p4", Message: "good game", Round: s.Round(), Attempt: s.Attempt(), Phase: discussion.PhasePostMissionResult}
	if err := s.AddStatement(stmt); err != nil {
		t.Fatalf("AddStatement: %v", err)
	}
	closed, err := s.EndDiscussion()
	if err != nil {
		t.Fatalf("EndDiscussion: %v", err)
	}
	if len(closed.Statements) != 1 || s.Phase() != PhaseGameOver {
		t.Fatalf("closed = %+v, phase %s", closed, s.Phase())
	}
}
