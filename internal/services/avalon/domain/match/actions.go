package match

import (
	"math/rand"

	apperrors "github.com/louisbranch/avalon/internal/platform/errors"
	"github.com/louisbranch/avalon/internal/services/avalon/domain/event"
	"github.com/louisbranch/avalon/internal/services/avalon/domain/player"
	"github.com/louisbranch/avalon/internal/services/avalon/domain/role"
)

// ProposeTeam records the leader's team for the current round and opens the
// vote.
func (s *State) ProposeTeam(leaderID player.ID, team []player.ID) ([]player.ID, error) {
	if err := s.ensurePhase(PhaseTeamProposal); err != nil {
		return nil, err
	}
	leader := s.CurrentLeader()
	if leaderID != leader.ID {
		return nil, apperrors.WithMetadata(apperrors.CodeActionNotLeader,
			"Only the current leader may propose a team",
			map[string]string{"leader_id": leader.ID, "player_id": leaderID})
	}
	required := s.RequiredTeamSize()
	if len(team) != required {
		return nil, apperrors.Newf(apperrors.CodeActionTeamSize,
			"Team size must be %d for round %d", required, s.round)
	}
	seen := make(map[player.ID]bool, len(team))
	for _, id := range team {
		if seen[id] {
			return nil, apperrors.New(apperrors.CodeActionTeamMember, "Team proposals may not contain duplicate players")
		}
		seen[id] = true
	}
	for _, id := range team {
		if _, ok := s.playersByID[id]; !ok {
			return nil, apperrors.Newf(apperrors.CodeActionTeamMember, "Unknown player id in team proposal: %s", id)
		}
	}

	s.currentTeam = cloneIDs(team)
	if err := s.setPhase(PhaseTeamVote); err != nil {
		return nil, err
	}
	if err := s.emit(event.TypeTeamProposed, map[string]any{
		"round":     s.round,
		"attempt":   s.attempt,
		"leader_id": leaderID,
		"team":      s.currentTeam,
	}); err != nil {
		return nil, err
	}
	return cloneIDs(s.currentTeam), nil
}

// VoteOnTeam records a simultaneous vote by every seated player. The team is
// approved when approvals strictly outnumber rejections.
func (s *State) VoteOnTeam(votes map[player.ID]bool) (VoteRecord, error) {
	if err := s.ensurePhase(PhaseTeamVote); err != nil {
		return VoteRecord{}, err
	}
	if s.currentTeam == nil {
		return VoteRecord{}, apperrors.New(apperrors.CodeActionNoTeam, "No team has been proposed for voting")
	}
	if !sameKeys(votes, s.playersByID) {
		return VoteRecord{}, apperrors.New(apperrors.CodeActionBallot, "Votes must be provided for every registered player")
	}

	var approvals, rejections []player.ID
	for _, p := range s.players {
		if votes[p.ID] {
			approvals = append(approvals, p.ID)
		} else {
			rejections = append(rejections, p.ID)
		}
	}
	approved := len(approvals) > len(rejections)
	record := VoteRecord{
		Round:      s.round,
		Attempt:    s.attempt,
		LeaderID:   s.CurrentLeader().ID,
		Team:       cloneIDs(s.currentTeam),
		Approvals:  approvals,
		Rejections: rejections,
		Approved:   approved,
	}
	s.votes = append(s.votes, record)
	if err := s.emit(event.TypeTeamVoteRecorded, map[string]any{
		"round":      record.Round,
		"attempt":    record.Attempt,
		"leader_id":  record.LeaderID,
		"team":       record.Team,
		"approvals":  record.Approvals,
		"rejections": record.Rejections,
		"approved":   record.Approved,
	}); err != nil {
		return VoteRecord{}, err
	}

	if approved {
		s.consecutiveRejections = 0
		return record.clone(), s.setPhase(PhaseMission)
	}

	s.consecutiveRejections++
	s.advanceLeader()
	if s.consecutiveRejections >= maxConsecutiveRejections {
		return record.clone(), s.autoFailMission()
	}
	s.attempt++
	s.currentTeam = nil
	return record.clone(), s.setPhase(PhaseTeamProposal)
}

// SubmitMission resolves the mission with one card per team member.
// Resistance players may only play success.
func (s *State) SubmitMission(cards map[player.ID]Card) (MissionRecord, error) {
	if err := s.ensurePhase(PhaseMission); err != nil {
		return MissionRecord{}, err
	}
	if s.currentTeam == nil {
		return MissionRecord{}, apperrors.New(apperrors.CodeActionNoTeam, "No team has been approved for the mission")
	}
	team := make(map[player.ID]bool, len(s.currentTeam))
	for _, id := range s.currentTeam {
		team[id] = true
	}
	if !sameKeys(cards, team) {
		return MissionRecord{}, apperrors.New(apperrors.CodeActionMissionCards,
			"Mission decisions must be submitted by the mission team only")
	}

	failCount := 0
	actions := make([]MissionAction, 0, len(s.currentTeam))
	for _, id := range s.currentTeam {
		card := cards[id]
		if !card.Valid() {
			return MissionRecord{}, apperrors.Newf(apperrors.CodeActionMissionCards,
				"Mission decisions must be success or fail, got %q", card)
		}
		if card == CardFail && s.playersByID[id].Alignment() == role.Resistance {
			return MissionRecord{}, apperrors.WithMetadata(apperrors.CodeActionResistFail,
				"Resistance players may not fail missions", map[string]string{"player_id": id})
		}
		if card == CardFail {
			failCount++
		}
		actions = append(actions, MissionAction{PlayerID: id, Card: card})
	}

	required := s.RequiredFailCount()
	result := MissionSuccess
	if failCount >= required {
		result = MissionFailure
	}
	record := MissionRecord{
		Round:             s.round,
		Attempt:           s.attempt,
		Team:              cloneIDs(s.currentTeam),
		FailCount:         failCount,
		RequiredFailCount: required,
		Result:            result,
		Actions:           obfuscate(actions, s.seed, s.round, s.attempt),
	}
	s.missions = append(s.missions, record)
	s.currentTeam = nil

	for _, a := range record.Actions {
		if _, err := s.log.Record(event.TypeMissionCardRecorded, map[string]any{
			"round":     record.Round,
			"attempt":   record.Attempt,
			"player_id": a.PlayerID,
			"card":      a.Card,
		}, event.PrivateTo(event.PlayerTag(a.PlayerID)), event.InRound(record.Round, record.Attempt)); err != nil {
			return MissionRecord{}, apperrors.Wrap(apperrors.CodeUnknown, "record mission card", err)
		}
	}
	if err := s.emit(event.TypeMissionResolved, map[string]any{
		"round":               record.Round,
		"attempt":             record.Attempt,
		"team":                record.Team,
		"fail_count":          record.FailCount,
		"required_fail_count": record.RequiredFailCount,
		"result":              record.Result,
		"auto_fail":           record.AutoFail,
	}); err != nil {
		return MissionRecord{}, err
	}

	var err error
	if result == MissionSuccess {
		err = s.resistanceScored()
	} else {
		err = s.minionScored(ReasonThreeFailures)
	}
	return record.clone(), err
}

// PerformAssassination resolves the assassin's guess. Naming the player who
// holds the assassination target role wins the match for the Minions.
func (s *State) PerformAssassination(assassinID, targetID player.ID) (AssassinationRecord, error) {
	if s.assassination != nil {
		return AssassinationRecord{}, apperrors.New(apperrors.CodeActionResolved, "Assassination has already been resolved")
	}
	if s.phase != PhaseAssassinationPending {
		return AssassinationRecord{}, apperrors.Newf(apperrors.CodeActionWrongPhase,
			"Assassination is not currently available in phase %s", s.phase)
	}
	if s.finalWinner != "" {
		return AssassinationRecord{}, apperrors.New(apperrors.CodeActionResolved, "Assassination has already been resolved")
	}
	isAssassin := false
	for _, id := range s.assassinIDs {
		if id == assassinID {
			isAssassin = true
			break
		}
	}
	if !isAssassin {
		return AssassinationRecord{}, apperrors.New(apperrors.CodeActionNotAssassin, "Only the assassin may perform the assassination")
	}
	target, ok := s.playersByID[targetID]
	if !ok {
		return AssassinationRecord{}, apperrors.Newf(apperrors.CodeActionUnknownTarget, "Unknown assassination target: %s", targetID)
	}

	success := target.HasTag(role.TagAssassinTarget)
	record := AssassinationRecord{AssassinID: assassinID, TargetID: targetID, Success: success}
	s.assassination = &record
	winner, reason := role.Resistance, ReasonAssassinationFailure
	if success {
		winner, reason = role.Minion, ReasonAssassinationSuccess
	}
	s.finalWinner = winner
	s.provisionalWinner = winner
	if err := s.setPhase(PhaseGameOver); err != nil {
		return record, err
	}
	if err := s.emit(event.TypeAssassinationResolved, map[string]any{
		"assassin_id": assassinID,
		"target_id":   targetID,
		"success":     success,
	}); err != nil {
		return record, err
	}
	return record, s.complete(reason)
}

func (s *State) resistanceScored() error {
	s.resistanceScore++
	if s.resistanceScore >= winningScore {
		s.provisionalWinner = role.Resistance
		if len(s.assassinIDs) > 0 {
			return s.setPhase(PhaseAssassinationPending)
		}
		s.finalWinner = role.Resistance
		if err := s.setPhase(PhaseGameOver); err != nil {
			return err
		}
		return s.complete(ReasonThreeSuccesses)
	}
	s.advanceLeader()
	return s.nextRound()
}

func (s *State) minionScored(reason string) error {
	s.minionScore++
	if s.minionScore >= winningScore {
		s.finalWinner = role.Minion
		if err := s.setPhase(PhaseGameOver); err != nil {
			return err
		}
		return s.complete(reason)
	}
	s.advanceLeader()
	return s.nextRound()
}

// autoFailMission handles the fifth consecutive rejection. The leader has
// already advanced for the rejected vote.
func (s *State) autoFailMission() error {
	record := MissionRecord{
		Round:             s.round,
		Attempt:           s.attempt,
		Team:              []player.ID{},
		FailCount:         0,
		RequiredFailCount: s.RequiredFailCount(),
		Result:            MissionFailure,
		AutoFail:          true,
		Actions:           []MissionAction{},
	}
	s.missions = append(s.missions, record)
	s.currentTeam = nil

	if s.autoFail == AutoFailContinue {
		if err := s.emitAutoFail(record); err != nil {
			return err
		}
		s.minionScore++
		if s.minionScore >= winningScore {
			s.finalWinner = role.Minion
			if err := s.setPhase(PhaseGameOver); err != nil {
				return err
			}
			return s.complete(ReasonFiveRejections)
		}
		return s.nextRound()
	}

	s.finalWinner = role.Minion
	if err := s.setPhase(PhaseGameOver); err != nil {
		return err
	}
	if err := s.emitAutoFail(record); err != nil {
		return err
	}
	return s.complete(ReasonFiveRejections)
}

func (s *State) emitAutoFail(record MissionRecord) error {
	return s.emit(event.TypeMissionAutoFailed, map[string]any{
		"round":               record.Round,
		"attempt":             record.Attempt,
		"required_fail_count": record.RequiredFailCount,
		"policy":              s.autoFail,
	})
}

func (s *State) nextRound() error {
	// A side reaches three points by the fifth mission, so there is always
	// a round left here.
	if s.round >= len(s.config.Missions().TeamSizes) {
		return apperrors.Newf(apperrors.CodeUnknown, "no mission left after round %d", s.round)
	}
	s.round++
	s.attempt = 1
	s.consecutiveRejections = 0
	return s.setPhase(PhaseTeamProposal)
}

func (s *State) complete(reason string) error {
	return s.emit(event.TypeGameCompleted, map[string]any{
		"winner": s.finalWinner,
		"reason": reason,
	})
}

func (s *State) advanceLeader() {
	s.leaderIndex = (s.leaderIndex + 1) % len(s.players)
}

func (s *State) setPhase(phase Phase) error {
	s.phase = phase
	return s.emit(event.TypePhaseChanged, map[string]any{"phase": phase})
}

func (s *State) emit(typ event.Type, payload map[string]any) error {
	if _, err := s.log.Record(typ, payload, event.InRound(s.round, s.attempt)); err != nil {
		return apperrors.Wrap(apperrors.CodeUnknown, "record "+string(typ), err)
	}
	return nil
}

func (s *State) ensurePhase(expected Phase) error {
	if s.phase == PhaseGameOver {
		return apperrors.New(apperrors.CodeActionGameOver, "Game is already over")
	}
	if s.phase != expected {
		return apperrors.WithMetadata(apperrors.CodeActionWrongPhase,
			"Action requires phase "+string(expected)+", current phase is "+string(s.phase),
			map[string]string{"expected": string(expected), "actual": string(s.phase)})
	}
	return nil
}

func sameKeys[V any, W any](got map[player.ID]V, want map[player.ID]W) bool {
	if len(got) != len(want) {
		return false
	}
	for id := range got {
		if _, ok := want[id]; !ok {
			return false
		}
	}
	return true
}

// ObfuscationSeed derives the shuffle seed for a mission's card order.
// An unset match seed counts as zero.
func ObfuscationSeed(seed *int64, round, attempt int) int64 {
	var base int64
	if seed != nil {
		base = *seed
	}
	return (base << 32) ^ (int64(round) << 8) ^ int64(attempt)
}

func obfuscate(actions []MissionAction, seed *int64, round, attempt int) []MissionAction {
	out := append([]MissionAction(nil), actions...)
	rng := rand.New(rand.NewSource(ObfuscationSeed(seed, round, attempt)))
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}
