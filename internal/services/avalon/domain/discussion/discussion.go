// Package discussion defines the optional free-text statement layer that runs
// alongside a match.
package discussion

// Phase names the moment a discussion is held.
type Phase string

const (
	PhasePreProposal       Phase = "pre_proposal"
	PhasePreVote           Phase = "pre_vote"
	PhasePostMissionResult Phase = "post_mission_result"
	PhasePreAssassination  Phase = "pre_assassination"
)

// Valid reports whether p is a known discussion phase.
func (p Phase) Valid() bool {
	switch p {
	case PhasePreProposal, PhasePreVote, PhasePostMissionResult, PhasePreAssassination:
		return true
	}
	return false
}

// Statement is one public utterance. Statements are visible to every player.
type Statement struct {
	SpeakerID string `json:"speaker_id"`
	Message   string `json:"message"`
	Round     int    `json:"round_number"`
	Attempt   int    `json:"attempt_number"`
	Phase     Phase  `json:"phase"`
}

// Config controls when discussions happen and how long they run.
type Config struct {
	Enabled          bool `json:"enabled" yaml:"enabled"`
	PreProposal      bool `json:"pre_proposal_enabled" yaml:"pre_proposal"`
	PreVote          bool `json:"pre_vote_enabled" yaml:"pre_vote"`
	PostMission      bool `json:"post_mission_enabled" yaml:"post_mission"`
	PreAssassination bool `json:"pre_assassination_enabled" yaml:"pre_assassination"`
	// MaxStatementsPerPhase caps statements per player per discussion.
	// Zero means unlimited.
	MaxStatementsPerPhase int  `json:"max_statements_per_phase" yaml:"max_statements"`
	AllowPass             bool `json:"allow_pass" yaml:"allow_pass"`
}

// DefaultConfig enables every phase with two statements per player.
func DefaultConfig() Config {
	return Config{
		Enabled:               true,
		PreProposal:           true,
		PreVote:               true,
		PostMission:           true,
		PreAssassination:      true,
		MaxStatementsPerPhase: 2,
		AllowPass:             true,
	}
}

// PhaseEnabled reports whether discussions run at phase.
func (c Config) PhaseEnabled(phase Phase) bool {
	if !c.Enabled {
		return false
	}
	switch phase {
	case PhasePreProposal:
		return c.PreProposal
	case PhasePreVote:
		return c.PreVote
	case PhasePostMissionResult:
		return c.PostMission
	case PhasePreAssassination:
		return c.PreAssassination
	}
	return false
}

// Round is one discussion opportunity and the statements made in it.
type Round struct {
	Round      int         `json:"round_number"`
	Attempt    int         `json:"attempt_number"`
	Phase      Phase       `json:"phase"`
	Statements []Statement `json:"statements"`
}

// Matches reports whether s belongs to this discussion.
func (r *Round) Matches(s Statement) bool {
	return r.Round == s.Round && r.Attempt == s.Attempt && r.Phase == s.Phase
}

// Add appends a statement.
func (r *Round) Add(s Statement) {
	r.Statements = append(r.Statements, s)
}

// StatementsBy returns the statements made by speakerID.
func (r *Round) StatementsBy(speakerID string) []Statement {
	var out []Statement
	for _, s := range r.Statements {
		if s.SpeakerID == speakerID {
			out = append(out, s)
		}
	}
	return out
}

// HasSpoken reports whether speakerID made any statement.
func (r *Round) HasSpoken(speakerID string) bool {
	for _, s := range r.Statements {
		if s.SpeakerID == speakerID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy.
func (r Round) Clone() Round {
	r.Statements = append([]Statement(nil), r.Statements...)
	return r
}
