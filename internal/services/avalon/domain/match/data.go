package match

import (
	"sort"

	apperrors "github.com/louisbranch/avalon/internal/platform/errors"
	"github.com/louisbranch/avalon/internal/services/avalon/domain/discussion"
	"github.com/louisbranch/avalon/internal/services/avalon/domain/player"
	"github.com/louisbranch/avalon/internal/services/avalon/domain/role"
	"github.com/louisbranch/avalon/internal/services/avalon/domain/rules"
)

// Data is the flat, serializable form of a State. The configuration and the
// event log travel separately; derived indices are never included.
type Data struct {
	Players               []player.Player      `json:"players"`
	Phase                 Phase                `json:"phase"`
	Round                 int                  `json:"round_number"`
	Attempt               int                  `json:"attempt_number"`
	LeaderIndex           int                  `json:"leader_index"`
	ResistanceScore       int                  `json:"resistance_score"`
	MinionScore           int                  `json:"minion_score"`
	CurrentTeam           []player.ID          `json:"current_team"`
	ConsecutiveRejections int                  `json:"consecutive_rejections"`
	ProvisionalWinner     role.Alignment       `json:"provisional_winner,omitempty"`
	FinalWinner           role.Alignment       `json:"final_winner,omitempty"`
	Votes                 []VoteRecord         `json:"vote_history"`
	Missions              []MissionRecord      `json:"mission_history"`
	Assassination         *AssassinationRecord `json:"assassination_record,omitempty"`
	Seed                  *int64               `json:"seed,omitempty"`
	AutoFailPolicy        AutoFailPolicy       `json:"auto_fail_policy,omitempty"`
	CurrentDiscussion     *discussion.Round    `json:"current_discussion,omitempty"`
	Discussions           []discussion.Round   `json:"discussion_history"`
}

// Data returns a deep copy of the state's serializable fields.
func (s *State) Data() Data {
	d := Data{
		Players:               s.Players(),
		Phase:                 s.phase,
		Round:                 s.round,
		Attempt:               s.attempt,
		LeaderIndex:           s.leaderIndex,
		ResistanceScore:       s.resistanceScore,
		MinionScore:           s.minionScore,
		CurrentTeam:           cloneIDs(s.currentTeam),
		ConsecutiveRejections: s.consecutiveRejections,
		ProvisionalWinner:     s.provisionalWinner,
		FinalWinner:           s.finalWinner,
		Votes:                 s.Votes(),
		Missions:              s.Missions(),
		AutoFailPolicy:        s.autoFail,
		Discussions:           s.Discussions(),
	}
	if s.assassination != nil {
		a := *s.assassination
		d.Assassination = &a
	}
	if s.seed != nil {
		seed := *s.seed
		d.Seed = &seed
	}
	if s.currentDiscussion != nil {
		open := s.currentDiscussion.Clone()
		d.CurrentDiscussion = &open
	}
	return d
}

// FromData rebuilds a State from its serializable form. Mission card order
// is taken as stored. Options other than WithLog and WithClock are ignored;
// the seed and policy come from d.
func FromData(cfg rules.Config, d Data, opts ...Option) (*State, error) {
	if err := validateRoster(cfg, d.Players); err != nil {
		return nil, err
	}
	if err := validateData(cfg, d); err != nil {
		return nil, err
	}
	o := buildOptions(opts)
	policy := d.AutoFailPolicy
	if policy == "" {
		policy = AutoFailEndsGame
	}
	s := &State{
		config:                cfg,
		players:               append([]player.Player(nil), d.Players...),
		phase:                 d.Phase,
		round:                 d.Round,
		attempt:               d.Attempt,
		leaderIndex:           d.LeaderIndex,
		resistanceScore:       d.ResistanceScore,
		minionScore:           d.MinionScore,
		currentTeam:           cloneIDs(d.CurrentTeam),
		consecutiveRejections: d.ConsecutiveRejections,
		provisionalWinner:     d.ProvisionalWinner,
		finalWinner:           d.FinalWinner,
		autoFail:              policy,
		log:                   o.log,
	}
	for _, v := range d.Votes {
		s.votes = append(s.votes, v.clone())
	}
	for _, m := range d.Missions {
		s.missions = append(s.missions, m.clone())
	}
	for _, r := range d.Discussions {
		s.discussions = append(s.discussions, r.Clone())
	}
	if d.Assassination != nil {
		a := *d.Assassination
		s.assassination = &a
	}
	if d.Seed != nil {
		seed := *d.Seed
		s.seed = &seed
	}
	if d.CurrentDiscussion != nil {
		open := d.CurrentDiscussion.Clone()
		s.currentDiscussion = &open
	}
	s.index()
	return s, nil
}

func seatsAssassin(players []player.Player) bool {
	for _, p := range players {
		if p.HasTag(role.TagAssassin) {
			return true
		}
	}
	return false
}

func invalidData(format string, args ...any) error {
	return apperrors.Newf(apperrors.CodeSnapshotInvalid, format, args...)
}

func validateData(cfg rules.Config, d Data) error {
	if !d.Phase.Valid() {
		return invalidData("unknown phase %q", d.Phase)
	}
	if d.Round < 1 || d.Round > rules.Rounds {
		return invalidData("round %d out of range", d.Round)
	}
	if d.Attempt < 1 {
		return invalidData("attempt %d out of range", d.Attempt)
	}
	if d.LeaderIndex < 0 || d.LeaderIndex >= len(d.Players) {
		return invalidData("leader index %d out of range", d.LeaderIndex)
	}
	if d.ResistanceScore < 0 || d.ResistanceScore > winningScore || d.MinionScore < 0 || d.MinionScore > winningScore {
		return invalidData("scores %d/%d out of range", d.ResistanceScore, d.MinionScore)
	}
	if d.ConsecutiveRejections < 0 || d.ConsecutiveRejections > maxConsecutiveRejections {
		return invalidData("consecutive rejections %d out of range", d.ConsecutiveRejections)
	}
	for _, a := range []role.Alignment{d.ProvisionalWinner, d.FinalWinner} {
		if a != "" && !a.Valid() {
			return invalidData("unknown alignment %q", a)
		}
	}
	if d.FinalWinner != "" && d.Phase != PhaseGameOver {
		return invalidData("winner %s recorded in phase %s", d.FinalWinner, d.Phase)
	}
	switch {
	case d.MinionScore == winningScore && d.Phase != PhaseGameOver:
		return invalidData("minion score %d recorded in phase %s", d.MinionScore, d.Phase)
	case d.ResistanceScore == winningScore && d.Phase != PhaseAssassinationPending && d.Phase != PhaseGameOver:
		return invalidData("resistance score %d recorded in phase %s", d.ResistanceScore, d.Phase)
	case d.Phase == PhaseAssassinationPending && d.ResistanceScore != winningScore:
		return invalidData("assassination pending with resistance score %d", d.ResistanceScore)
	case d.Phase == PhaseGameOver && d.FinalWinner == "":
		return invalidData("game over without a winner")
	case d.Assassination != nil && d.Phase != PhaseGameOver:
		return invalidData("assassination recorded in phase %s", d.Phase)
	}
	if d.AutoFailPolicy != "" && !d.AutoFailPolicy.Valid() {
		return invalidData("unknown auto-fail policy %q", d.AutoFailPolicy)
	}

	index := player.Index(d.Players)
	if d.CurrentTeam != nil {
		if d.Phase != PhaseTeamVote && d.Phase != PhaseMission {
			return invalidData("team present in phase %s", d.Phase)
		}
		if len(d.CurrentTeam) != cfg.Missions().TeamSize(d.Round) {
			return invalidData("team size %d does not match round %d", len(d.CurrentTeam), d.Round)
		}
		seen := make(map[player.ID]bool, len(d.CurrentTeam))
		for _, id := range d.CurrentTeam {
			if _, ok := index[id]; !ok || seen[id] {
				return invalidData("invalid team member %q", id)
			}
			seen[id] = true
		}
	} else if d.Phase == PhaseTeamVote || d.Phase == PhaseMission {
		return invalidData("phase %s requires a team", d.Phase)
	}

	if d.Phase == PhaseAssassinationPending && !seatsAssassin(d.Players) {
		return invalidData("assassination pending without an assassin seated")
	}
	if a := d.Assassination; a != nil {
		assassin, ok := index[a.AssassinID]
		if !ok || !assassin.HasTag(role.TagAssassin) {
			return invalidData("assassination by %q who is not an assassin", a.AssassinID)
		}
		if _, ok := index[a.TargetID]; !ok {
			return invalidData("unknown assassination target %q", a.TargetID)
		}
	}

	dealt := make([]string, 0, len(d.Players))
	for _, p := range d.Players {
		dealt = append(dealt, string(p.Role))
	}
	configured := make([]string, 0, len(d.Players))
	for _, id := range cfg.Roles() {
		configured = append(configured, string(id))
	}
	sort.Strings(dealt)
	sort.Strings(configured)
	for i := range dealt {
		if dealt[i] != configured[i] {
			return invalidData("dealt roles do not match configuration")
		}
	}
	return nil
}
