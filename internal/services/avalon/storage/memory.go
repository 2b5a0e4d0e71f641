package storage

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/louisbranch/avalon/internal/services/avalon/domain/event"
)

// Memory is an in-process Store.
type Memory struct {
	mu        sync.Mutex
	matches   map[string]MatchRecord
	snapshots map[string][]SnapshotRecord
	events    map[string][]event.Event
	now       func() time.Time
}

var _ Store = (*Memory)(nil)

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		matches:   make(map[string]MatchRecord),
		snapshots: make(map[string][]SnapshotRecord),
		events:    make(map[string][]event.Event),
		now:       time.Now,
	}
}

// PutMatch inserts or updates a match summary. CreatedAt is kept from the
// first write.
func (m *Memory) PutMatch(ctx context.Context, match MatchRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	id := strings.TrimSpace(match.ID)
	if id == "" {
		return fmt.Errorf("match id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now().UTC()
	match.ID = id
	if match.UpdatedAt.IsZero() {
		match.UpdatedAt = now
	}
	if existing, ok := m.matches[id]; ok {
		match.CreatedAt = existing.CreatedAt
	} else if match.CreatedAt.IsZero() {
		match.CreatedAt = match.UpdatedAt
	}
	match.CreatedAt = match.CreatedAt.UTC()
	match.UpdatedAt = match.UpdatedAt.UTC()
	m.matches[id] = match
	return nil
}

// GetMatch returns a match summary.
func (m *Memory) GetMatch(ctx context.Context, id string) (MatchRecord, error) {
	if err := ctx.Err(); err != nil {
		return MatchRecord{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	match, ok := m.matches[strings.TrimSpace(id)]
	if !ok {
		return MatchRecord{}, ErrNotFound
	}
	return match, nil
}

// PutSnapshot stores a snapshot for a known match.
func (m *Memory) PutSnapshot(ctx context.Context, snapshot SnapshotRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.matches[snapshot.MatchID]; !ok {
		return ErrNotFound
	}
	for _, existing := range m.snapshots[snapshot.MatchID] {
		if existing.Seq == snapshot.Seq {
			return ErrAlreadyExists
		}
	}
	if snapshot.CreatedAt.IsZero() {
		snapshot.CreatedAt = m.now()
	}
	snapshot.CreatedAt = snapshot.CreatedAt.UTC()
	snapshot.Payload = append([]byte(nil), snapshot.Payload...)
	list := append(m.snapshots[snapshot.MatchID], snapshot)
	// Keep ascending by Seq.
	for i := len(list) - 1; i > 0 && list[i].Seq < list[i-1].Seq; i-- {
		list[i], list[i-1] = list[i-1], list[i]
	}
	m.snapshots[snapshot.MatchID] = list
	return nil
}

// GetLatestSnapshot returns the snapshot with the highest Seq.
func (m *Memory) GetLatestSnapshot(ctx context.Context, matchID string) (SnapshotRecord, error) {
	if err := ctx.Err(); err != nil {
		return SnapshotRecord{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.snapshots[matchID]
	if len(list) == 0 {
		return SnapshotRecord{}, ErrNotFound
	}
	latest := list[len(list)-1]
	latest.Payload = append([]byte(nil), latest.Payload...)
	return latest, nil
}

// ListSnapshots returns every snapshot of a match in Seq order.
func (m *Memory) ListSnapshots(ctx context.Context, matchID string) ([]SnapshotRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.snapshots[matchID]
	out := make([]SnapshotRecord, len(list))
	for i, s := range list {
		s.Payload = append([]byte(nil), s.Payload...)
		out[i] = s
	}
	return out, nil
}

// AppendEvents stores events after the last stored sequence.
func (m *Memory) AppendEvents(ctx context.Context, matchID string, events []event.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.matches[matchID]; !ok {
		return ErrNotFound
	}
	stored := m.events[matchID]
	var last uint64
	if len(stored) > 0 {
		last = stored[len(stored)-1].Seq
	}
	for _, e := range events {
		if e.Seq <= last {
			return ErrAlreadyExists
		}
		last = e.Seq
	}
	for _, e := range events {
		stored = append(stored, cloneEvent(e))
	}
	m.events[matchID] = stored
	return nil
}

// ListEvents returns events after afterSeq, at most limit when positive.
func (m *Memory) ListEvents(ctx context.Context, matchID string, afterSeq uint64, limit int) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []event.Event{}
	for _, e := range m.events[matchID] {
		if e.Seq <= afterSeq {
			continue
		}
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, cloneEvent(e))
	}
	return out, nil
}

// LatestEventSeq returns the last stored event sequence for matchID.
func (m *Memory) LatestEventSeq(ctx context.Context, matchID string) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := m.events[matchID]
	if len(stored) == 0 {
		return 0, nil
	}
	return stored[len(stored)-1].Seq, nil
}

// Close is a no-op.
func (m *Memory) Close() error {
	return nil
}

func cloneEvent(e event.Event) event.Event {
	e.Payload = append([]byte(nil), e.Payload...)
	e.Audience = append([]string(nil), e.Audience...)
	return e
}
