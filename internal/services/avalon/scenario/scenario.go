// Package scenario scripts matches in Lua.
//
// A script returns a Scenario built with chained steps:
//
//	return Scenario.new("minions sabotage")
//	  :propose("p1", {"p1", "p4"})
//	  :vote_all(true)
//	  :mission({p1 = "success", p4 = "fail"})
//
// Steps can be applied directly to a match or turned into scripted decision
// sources for the driver loop.
package scenario

import (
	"fmt"

	"github.com/louisbranch/avalon/internal/services/avalon/domain/decision"
	"github.com/louisbranch/avalon/internal/services/avalon/domain/discussion"
	"github.com/louisbranch/avalon/internal/services/avalon/domain/match"
	"github.com/louisbranch/avalon/internal/services/avalon/domain/player"
)

// Kind names a scenario step.
type Kind string

const (
	KindPropose       Kind = "propose"
	KindVote          Kind = "vote"
	KindVoteAll       Kind = "vote_all"
	KindMission       Kind = "mission"
	KindAssassinate   Kind = "assassinate"
	KindDiscuss       Kind = "discuss"
	KindSay           Kind = "say"
	KindEndDiscussion Kind = "end_discussion"
)

// Scenario is a named list of steps.
type Scenario struct {
	Name  string
	Steps []Step
}

// Step is one scripted action. Only the fields used by Kind are set.
type Step struct {
	Kind     Kind
	Leader   player.ID
	Team     []player.ID
	Votes    map[player.ID]bool
	Approve  bool
	Cards    map[player.ID]match.Card
	Assassin player.ID
	Target   player.ID
	Phase    discussion.Phase
	Speaker  player.ID
	Message  string
}

// Apply runs the steps against state in order and stops at the first
// rejected action. It returns the number of steps applied.
func Apply(state *match.State, sc *Scenario) (int, error) {
	for i, step := range sc.Steps {
		if err := applyStep(state, step); err != nil {
			return i, fmt.Errorf("scenario %q step %d (%s): %w", sc.Name, i+1, step.Kind, err)
		}
	}
	return len(sc.Steps), nil
}

func applyStep(state *match.State, step Step) error {
	var err error
	switch step.Kind {
	case KindPropose:
		_, err = state.ProposeTeam(step.Leader, step.Team)
	case KindVote:
		_, err = state.VoteOnTeam(step.Votes)
	case KindVoteAll:
		votes := make(map[player.ID]bool)
		for _, p := range state.Players() {
			votes[p.ID] = step.Approve
		}
		_, err = state.VoteOnTeam(votes)
	case KindMission:
		_, err = state.SubmitMission(step.Cards)
	case KindAssassinate:
		_, err = state.PerformAssassination(step.Assassin, step.Target)
	case KindDiscuss:
		_, err = state.StartDiscussion(step.Phase)
	case KindSay:
		current, _ := state.CurrentDiscussion()
		err = state.AddStatement(discussion.Statement{
			SpeakerID: step.Speaker,
			Message:   step.Message,
			Round:     current.Round,
			Attempt:   current.Attempt,
			Phase:     current.Phase,
		})
	case KindEndDiscussion:
		_, err = state.EndDiscussion()
	default:
		err = fmt.Errorf("unknown step kind %q", step.Kind)
	}
	return err
}

// Sources turns the steps into one scripted source per seat. Each player's
// answers are queued in script order; discussion boundaries are dropped.
func Sources(sc *Scenario, players []player.Player) map[player.ID]decision.Source {
	scripted := make(map[player.ID]*decision.Scripted, len(players))
	for _, p := range players {
		scripted[p.ID] = &decision.Scripted{}
	}
	seat := func(id player.ID) *decision.Scripted {
		if s, ok := scripted[id]; ok {
			return s
		}
		return &decision.Scripted{}
	}
	for _, step := range sc.Steps {
		switch step.Kind {
		case KindPropose:
			s := seat(step.Leader)
			s.Teams = append(s.Teams, append([]player.ID(nil), step.Team...))
		case KindVote:
			for _, p := range players {
				if vote, ok := step.Votes[p.ID]; ok {
					s := seat(p.ID)
					s.Votes = append(s.Votes, vote)
				}
			}
		case KindVoteAll:
			for _, p := range players {
				s := seat(p.ID)
				s.Votes = append(s.Votes, step.Approve)
			}
		case KindMission:
			for _, p := range players {
				if card, ok := step.Cards[p.ID]; ok {
					s := seat(p.ID)
					s.Cards = append(s.Cards, card)
				}
			}
		case KindAssassinate:
			s := seat(step.Assassin)
			s.Guesses = append(s.Guesses, step.Target)
		case KindSay:
			s := seat(step.Speaker)
			s.Statements = append(s.Statements, step.Message)
		}
	}
	out := make(map[player.ID]decision.Source, len(scripted))
	for id, s := range scripted {
		out[id] = s
	}
	return out
}
