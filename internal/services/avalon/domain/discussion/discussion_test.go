package discussion

import "testing"

func TestPhaseEnabled(t *testing.T) {
	cfg := DefaultConfig()
	for _, phase := range []Phase{PhasePreProposal, PhasePreVote, PhasePostMissionResult, PhasePreAssassination} {
		if !cfg.PhaseEnabled(phase) {
			t.Fatalf("default config disables %s", phase)
		}
	}

	cfg.PreVote = false
	if cfg.PhaseEnabled(PhasePreVote) {
		t.Fatal("pre_vote should be disabled")
	}

	cfg = DefaultConfig()
	cfg.Enabled = false
	if cfg.PhaseEnabled(PhasePreProposal) {
		t.Fatal("disabled config enables pre_proposal")
	}
	if cfg.PhaseEnabled(Phase("lunch")) {
		t.Fatal("unknown phase enabled")
	}
}

func TestRoundStatements(t *testing.T) {
	r := &Round{Round: 1, Attempt: 2, Phase: PhasePreVote}
	first := Statement{SpeakerID: "p1", Message: "trust me", Round: 1, Attempt: 2, Phase: PhasePreVote}
	if !r.Matches(first) {
		t.Fatal("expected statement to match round")
	}
	if r.Matches(Statement{Round: 1, Attempt: 1, Phase: PhasePreVote}) {
		t.Fatal("stale attempt matched")
	}

	r.Add(first)
	r.Add(Statement{SpeakerID: "p2", Message: "no", Round: 1, Attempt: 2, Phase: PhasePreVote})
	r.Add(Statement{SpeakerID: "p1", Message: "really", Round: 1, Attempt: 2, Phase: PhasePreVote})

	if got := len(r.StatementsBy("p1")); got != 2 {
		t.Fatalf("statements by p1 = %d, want 2", got)
	}
	if !r.HasSpoken("p2") || r.HasSpoken("p3") {
		t.Fatal("unexpected HasSpoken result")
	}

	clone := r.Clone()
	clone.Statements[0].Message = "changed"
	if r.Statements[0].Message != "trust me" {
		t.Fatal("clone shares statements")
	}
}
