package decision

import (
	"context"
	"sync"

	"github.com/louisbranch/avalon/internal/services/avalon/domain/discussion"
	"github.com/louisbranch/avalon/internal/services/avalon/domain/match"
	"github.com/louisbranch/avalon/internal/services/avalon/domain/player"
)

// Scripted replays queued answers in order. Once a queue is empty it falls
// back to the first N players, approve, success, the first player and pass.
type Scripted struct {
	Teams      [][]player.ID
	Votes      []bool
	Cards      []match.Card
	Guesses    []player.ID
	Statements []string

	mu sync.Mutex
}

var _ Source = (*Scripted)(nil)

func (s *Scripted) ProposeTeam(ctx context.Context, obs Observation) ([]player.ID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Teams) > 0 {
		team := s.Teams[0]
		s.Teams = s.Teams[1:]
		return append([]player.ID(nil), team...), nil
	}
	n := obs.RequiredTeamSize
	if n > len(obs.PlayerIDs) {
		n = len(obs.PlayerIDs)
	}
	return append([]player.ID(nil), obs.PlayerIDs[:n]...), nil
}

func (s *Scripted) Vote(ctx context.Context, _ Observation) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Votes) > 0 {
		vote := s.Votes[0]
		s.Votes = s.Votes[1:]
		return vote, nil
	}
	return true, nil
}

func (s *Scripted) PlayMission(ctx context.Context, _ Observation) (match.Card, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Cards) > 0 {
		card := s.Cards[0]
		s.Cards = s.Cards[1:]
		return card, nil
	}
	return match.CardSuccess, nil
}

func (s *Scripted) GuessMerlin(ctx context.Context, obs Observation) (player.ID, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Guesses) > 0 {
		guess := s.Guesses[0]
		s.Guesses = s.Guesses[1:]
		return guess, nil
	}
	if len(obs.PlayerIDs) == 0 {
		return "", nil
	}
	return obs.PlayerIDs[0], nil
}

func (s *Scripted) Speak(ctx context.Context, _ Observation, _ discussion.Phase) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Statements) > 0 {
		msg := s.Statements[0]
		s.Statements = s.Statements[1:]
		return msg, msg != "", nil
	}
	return "", false, nil
}
