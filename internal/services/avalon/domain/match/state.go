package match

import (
	"time"

	apperrors "github.com/louisbranch/avalon/internal/platform/errors"
	"github.com/louisbranch/avalon/internal/services/avalon/domain/discussion"
	"github.com/louisbranch/avalon/internal/services/avalon/domain/event"
	"github.com/louisbranch/avalon/internal/services/avalon/domain/knowledge"
	"github.com/louisbranch/avalon/internal/services/avalon/domain/player"
	"github.com/louisbranch/avalon/internal/services/avalon/domain/role"
	"github.com/louisbranch/avalon/internal/services/avalon/domain/rules"
	"github.com/louisbranch/avalon/internal/services/avalon/domain/setup"
)

// State is the mutable state of one match.
type State struct {
	config  rules.Config
	players []player.Player

	phase                 Phase
	round                 int
	attempt               int
	leaderIndex           int
	resistanceScore       int
	minionScore           int
	currentTeam           []player.ID
	consecutiveRejections int
	provisionalWinner     role.Alignment
	finalWinner           role.Alignment
	votes                 []VoteRecord
	missions              []MissionRecord
	assassination         *AssassinationRecord
	seed                  *int64
	autoFail              AutoFailPolicy

	currentDiscussion *discussion.Round
	discussions       []discussion.Round

	log *event.Log

	// Derived from players; never persisted.
	playersByID map[player.ID]player.Player
	assassinIDs []player.ID
}

type options struct {
	seed     *int64
	log      *event.Log
	now      func() time.Time
	autoFail AutoFailPolicy
}

// Option configures a new State.
type Option func(*options)

// WithSeed sets the seed used for mission card obfuscation.
func WithSeed(seed int64) Option {
	return func(o *options) {
		o.seed = &seed
	}
}

// WithLog sets the event log the match appends to.
func WithLog(log *event.Log) Option {
	return func(o *options) {
		o.log = log
	}
}

// WithClock sets the clock of the default event log. Ignored when WithLog is
// also given.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithAutoFailPolicy selects the five-rejection behavior.
func WithAutoFailPolicy(policy AutoFailPolicy) Option {
	return func(o *options) {
		o.autoFail = policy
	}
}

func buildOptions(opts []Option) options {
	o := options{autoFail: AutoFailEndsGame}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.log == nil {
		o.log = event.NewLog(event.WithClock(o.now))
	}
	if !o.autoFail.Valid() {
		o.autoFail = AutoFailEndsGame
	}
	return o
}

// New creates a match in team_proposal for round 1 with the first seat
// leading.
func New(cfg rules.Config, players []player.Player, opts ...Option) (*State, error) {
	if err := validateRoster(cfg, players); err != nil {
		return nil, err
	}
	o := buildOptions(opts)
	s := &State{
		config:   cfg,
		players:  append([]player.Player(nil), players...),
		phase:    PhaseTeamProposal,
		round:    1,
		attempt:  1,
		seed:     o.seed,
		autoFail: o.autoFail,
		log:      o.log,
	}
	s.index()
	return s, nil
}

// FromSetup creates a match from a setup result, records one private
// briefing event per player and opens the first phase.
func FromSetup(result setup.Result, opts ...Option) (*State, error) {
	if result.Seed != nil {
		opts = append([]Option{WithSeed(*result.Seed)}, opts...)
	}
	s, err := New(result.Config, result.Players, opts...)
	if err != nil {
		return nil, err
	}
	for _, b := range result.Briefings {
		payload := map[string]any{
			"player_id":  b.Player.ID,
			"role":       b.Player.Role,
			"alignment":  b.Player.Alignment(),
			"knowledge":  b.Knowledge,
			"seat_index": s.seatOf(b.Player.ID),
		}
		if _, err := s.log.Record(event.TypeBriefingIssued, payload, event.PrivateTo(event.PlayerTag(b.Player.ID))); err != nil {
			return nil, apperrors.Wrap(apperrors.CodeUnknown, "record briefing", err)
		}
	}
	if err := s.emit(event.TypePhaseChanged, map[string]any{"phase": s.phase}); err != nil {
		return nil, err
	}
	return s, nil
}

func validateRoster(cfg rules.Config, players []player.Player) error {
	if cfg.IsZero() {
		return apperrors.New(apperrors.CodeConfigRoster, "configuration is required")
	}
	if len(players) != cfg.PlayerCount() {
		return apperrors.Newf(apperrors.CodeConfigRoster,
			"Player roster does not match configuration count: expected %d, received %d",
			cfg.PlayerCount(), len(players))
	}
	seen := make(map[player.ID]bool, len(players))
	for _, p := range players {
		if p.ID == "" {
			return apperrors.New(apperrors.CodeConfigRoster, "Player identifiers must be non-empty")
		}
		if seen[p.ID] {
			return apperrors.Newf(apperrors.CodeConfigRoster, "Duplicate player identifiers detected in game state: %s", p.ID)
		}
		seen[p.ID] = true
		if !role.Known(p.Role) {
			return apperrors.Newf(apperrors.CodeConfigUnknownRole, "Unknown role %q for player %s", p.Role, p.ID)
		}
	}
	return nil
}

func (s *State) index() {
	s.playersByID = player.Index(s.players)
	s.assassinIDs = nil
	for _, p := range s.players {
		if p.HasTag(role.TagAssassin) {
			s.assassinIDs = append(s.assassinIDs, p.ID)
		}
	}
}

func (s *State) seatOf(id player.ID) int {
	for i, p := range s.players {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// Config returns the match configuration.
func (s *State) Config() rules.Config { return s.config }

// Players returns the roster in seat order.
func (s *State) Players() []player.Player { return append([]player.Player(nil), s.players...) }

// PlayersByID returns a copy of the roster index.
func (s *State) PlayersByID() map[player.ID]player.Player { return player.Index(s.players) }

// PlayerByID looks up a seated player.
func (s *State) PlayerByID(id player.ID) (player.Player, bool) {
	p, ok := s.playersByID[id]
	return p, ok
}

// Phase returns the current phase.
func (s *State) Phase() Phase { return s.phase }

// Round returns the 1-based round number.
func (s *State) Round() int { return s.round }

// Attempt returns the 1-based proposal attempt within the round.
func (s *State) Attempt() int { return s.attempt }

// LeaderIndex returns the seat index of the current leader.
func (s *State) LeaderIndex() int { return s.leaderIndex }

// CurrentLeader returns the player proposing the next team.
func (s *State) CurrentLeader() player.Player { return s.players[s.leaderIndex] }

// ResistanceScore returns the number of successful missions.
func (s *State) ResistanceScore() int { return s.resistanceScore }

// MinionScore returns the number of failed missions.
func (s *State) MinionScore() int { return s.minionScore }

// CurrentTeam returns the proposed or approved team, if any.
func (s *State) CurrentTeam() ([]player.ID, bool) {
	if s.currentTeam == nil {
		return nil, false
	}
	return cloneIDs(s.currentTeam), true
}

// ConsecutiveRejections returns the rejected proposals in a row this round.
func (s *State) ConsecutiveRejections() int { return s.consecutiveRejections }

// ProvisionalWinner returns the alignment leading toward victory before the
// assassination resolves.
func (s *State) ProvisionalWinner() (role.Alignment, bool) {
	return s.provisionalWinner, s.provisionalWinner != ""
}

// FinalWinner returns the winning alignment once the match is over.
func (s *State) FinalWinner() (role.Alignment, bool) {
	return s.finalWinner, s.finalWinner != ""
}

// IsOver reports whether the match reached game_over.
func (s *State) IsOver() bool { return s.phase == PhaseGameOver }

// Seed returns the obfuscation seed, if any.
func (s *State) Seed() (int64, bool) {
	if s.seed == nil {
		return 0, false
	}
	return *s.seed, true
}

// AutoFailPolicy returns the five-rejection policy in effect.
func (s *State) AutoFailPolicy() AutoFailPolicy { return s.autoFail }

// Log returns the match event log.
func (s *State) Log() *event.Log { return s.log }

// AssassinIDs returns the players holding an Assassin role.
func (s *State) AssassinIDs() []player.ID { return cloneIDs(s.assassinIDs) }

// Assassination returns the resolved assassination, if any.
func (s *State) Assassination() (AssassinationRecord, bool) {
	if s.assassination == nil {
		return AssassinationRecord{}, false
	}
	return *s.assassination, true
}

// RequiredTeamSize returns the team size for the current round.
func (s *State) RequiredTeamSize() int { return s.config.Missions().TeamSize(s.round) }

// RequiredFailCount returns the fail threshold for the current round.
func (s *State) RequiredFailCount() int { return s.config.Missions().RequiredFailCount(s.round) }

// Votes returns every recorded vote.
func (s *State) Votes() []VoteRecord {
	out := make([]VoteRecord, len(s.votes))
	for i, v := range s.votes {
		out[i] = v.clone()
	}
	return out
}

// Missions returns every mission record, including card actions.
func (s *State) Missions() []MissionRecord {
	out := make([]MissionRecord, len(s.missions))
	for i, m := range s.missions {
		out[i] = m.clone()
	}
	return out
}

// PublicMissions returns mission summaries without cards.
func (s *State) PublicMissions() []MissionSummary {
	out := make([]MissionSummary, len(s.missions))
	for i, m := range s.missions {
		out[i] = m.Summary()
	}
	return out
}

// MissionActionsFor returns the cards playerID played, keyed by mission index.
func (s *State) MissionActionsFor(playerID player.ID) map[int]Card {
	out := make(map[int]Card)
	for i, m := range s.missions {
		if card, ok := m.CardOf(playerID); ok {
			out[i] = card
		}
	}
	return out
}

// Knowledge recomputes every player's setup knowledge from the roster.
func (s *State) Knowledge() map[player.ID]knowledge.Packet {
	return knowledge.Compute(s.players)
}

// CurrentDiscussion returns the open discussion, if any.
func (s *State) CurrentDiscussion() (discussion.Round, bool) {
	if s.currentDiscussion == nil {
		return discussion.Round{}, false
	}
	return s.currentDiscussion.Clone(), true
}

// Discussions returns closed discussions in order.
func (s *State) Discussions() []discussion.Round {
	out := make([]discussion.Round, len(s.discussions))
	for i, d := range s.discussions {
		out[i] = d.Clone()
	}
	return out
}

// AllStatements returns every statement from closed discussions followed by
// the open one.
func (s *State) AllStatements() []discussion.Statement {
	var out []discussion.Statement
	for _, d := range s.discussions {
		out = append(out, d.Statements...)
	}
	if s.currentDiscussion != nil {
		out = append(out, s.currentDiscussion.Statements...)
	}
	return out
}
