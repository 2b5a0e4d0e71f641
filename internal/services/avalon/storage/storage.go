// Package storage defines persistence contracts for matches, their snapshots
// and their event logs.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/louisbranch/avalon/internal/services/avalon/domain/event"
)

var (
	// ErrNotFound indicates a requested record is missing.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists indicates a record with the same key is already stored.
	ErrAlreadyExists = errors.New("record already exists")
)

// MatchRecord is the summary row of one match.
type MatchRecord struct {
	ID        string
	Phase     string
	Winner    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SnapshotRecord is one encoded snapshot. Seq is the last event sequence the
// snapshot includes.
type SnapshotRecord struct {
	MatchID   string
	Seq       uint64
	Hash      string
	Payload   []byte
	CreatedAt time.Time
}

// MatchStore persists match summaries.
type MatchStore interface {
	PutMatch(ctx context.Context, match MatchRecord) error
	GetMatch(ctx context.Context, id string) (MatchRecord, error)
}

// SnapshotStore persists encoded snapshots.
type SnapshotStore interface {
	PutSnapshot(ctx context.Context, snapshot SnapshotRecord) error
	GetLatestSnapshot(ctx context.Context, matchID string) (SnapshotRecord, error)
	ListSnapshots(ctx context.Context, matchID string) ([]SnapshotRecord, error)
}

// EventStore persists match events in sequence order.
type EventStore interface {
	AppendEvents(ctx context.Context, matchID string, events []event.Event) error
	// ListEvents returns events with Seq greater than afterSeq. A limit of
	// zero or less returns every remaining event.
	ListEvents(ctx context.Context, matchID string, afterSeq uint64, limit int) ([]event.Event, error)
	// LatestEventSeq returns the highest stored event sequence, or zero when
	// the match has no events.
	LatestEventSeq(ctx context.Context, matchID string) (uint64, error)
}

// Store is the full persistence contract.
type Store interface {
	MatchStore
	SnapshotStore
	EventStore
	Close() error
}
