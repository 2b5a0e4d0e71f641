// Package sqlite provides a SQLite-backed match storage implementation.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/louisbranch/avalon/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/avalon/internal/services/avalon/domain/event"
	"github.com/louisbranch/avalon/internal/services/avalon/storage"
	"github.com/louisbranch/avalon/internal/services/avalon/storage/sqlite/migrations"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// Store persists matches, snapshots and events in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite match store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// PutMatch inserts a match summary or updates its phase and winner.
func (s *Store) PutMatch(ctx context.Context, match storage.MatchRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	id := strings.TrimSpace(match.ID)
	if id == "" {
		return fmt.Errorf("match id is required")
	}
	updatedAt := match.UpdatedAt.UTC()
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	createdAt := match.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = updatedAt
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO matches (id, phase, winner, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   phase = excluded.phase,
		   winner = excluded.winner,
		   updated_at = excluded.updated_at`,
		id,
		match.Phase,
		match.Winner,
		toMillis(createdAt),
		toMillis(updatedAt),
	)
	if err != nil {
		return fmt.Errorf("put match: %w", err)
	}
	return nil
}

// GetMatch returns one match summary by ID.
func (s *Store) GetMatch(ctx context.Context, id string) (storage.MatchRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.MatchRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.MatchRecord{}, fmt.Errorf("storage is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return storage.MatchRecord{}, fmt.Errorf("match id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, phase, winner, created_at, updated_at
		   FROM matches
		  WHERE id = ?`,
		id,
	)
	var match storage.MatchRecord
	var createdAt int64
	var updatedAt int64
	if err := row.Scan(&match.ID, &match.Phase, &match.Winner, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.MatchRecord{}, storage.ErrNotFound
		}
		return storage.MatchRecord{}, fmt.Errorf("get match: %w", err)
	}
	match.CreatedAt = fromMillis(createdAt)
	match.UpdatedAt = fromMillis(updatedAt)
	return match, nil
}

// PutSnapshot stores one snapshot for a known match.
func (s *Store) PutSnapshot(ctx context.Context, snapshot storage.SnapshotRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if err := s.requireMatch(ctx, s.sqlDB, snapshot.MatchID); err != nil {
		return err
	}
	createdAt := snapshot.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	payload := snapshot.Payload
	if payload == nil {
		payload = []byte{}
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO match_snapshots (match_id, seq, hash, payload, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		snapshot.MatchID,
		int64(snapshot.Seq),
		snapshot.Hash,
		payload,
		toMillis(createdAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("put snapshot: %w", err)
	}
	return nil
}

// GetLatestSnapshot returns the snapshot with the highest sequence.
func (s *Store) GetLatestSnapshot(ctx context.Context, matchID string) (storage.SnapshotRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.SnapshotRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.SnapshotRecord{}, fmt.Errorf("storage is not configured")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT match_id, seq, hash, payload, created_at
		   FROM match_snapshots
		  WHERE match_id = ?
		  ORDER BY seq DESC
		  LIMIT 1`,
		matchID,
	)
	snapshot, err := scanSnapshot(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.SnapshotRecord{}, storage.ErrNotFound
		}
		return storage.SnapshotRecord{}, fmt.Errorf("get latest snapshot: %w", err)
	}
	return snapshot, nil
}

// ListSnapshots returns every snapshot of a match in sequence order.
func (s *Store) ListSnapshots(ctx context.Context, matchID string) ([]storage.SnapshotRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT match_id, seq, hash, payload, created_at
		   FROM match_snapshots
		  WHERE match_id = ?
		  ORDER BY seq ASC`,
		matchID,
	)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	snapshots := []storage.SnapshotRecord{}
	for rows.Next() {
		snapshot, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snapshots = append(snapshots, snapshot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return snapshots, nil
}

// AppendEvents stores events after the last stored sequence in one
// transaction.
func (s *Store) AppendEvents(ctx context.Context, matchID string, events []event.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append events: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.requireMatch(ctx, tx, matchID); err != nil {
		return err
	}
	var last int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM match_events WHERE match_id = ?`,
		matchID,
	).Scan(&last); err != nil {
		return fmt.Errorf("read last event seq: %w", err)
	}

	for _, e := range events {
		if int64(e.Seq) <= last {
			return storage.ErrAlreadyExists
		}
		last = int64(e.Seq)
		audience, err := json.Marshal(nonNilStrings(e.Audience))
		if err != nil {
			return fmt.Errorf("encode event audience: %w", err)
		}
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO match_events (
			   match_id, seq, event_type, round_number, attempt_number,
			   visibility, audience, payload, timestamp_nanos
			 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			matchID,
			int64(e.Seq),
			string(e.Type),
			e.Round,
			e.Attempt,
			string(e.Visibility),
			string(audience),
			[]byte(e.Payload),
			e.Timestamp.UTC().UnixNano(),
		); err != nil {
			if isUniqueViolation(err) {
				return storage.ErrAlreadyExists
			}
			return fmt.Errorf("insert event %d: %w", e.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append events: %w", err)
	}
	return nil
}

// ListEvents returns events after afterSeq in sequence order, at most limit
// when limit is positive.
func (s *Store) ListEvents(ctx context.Context, matchID string, afterSeq uint64, limit int) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT seq, event_type, round_number, attempt_number,
		        visibility, audience, payload, timestamp_nanos
		   FROM match_events
		  WHERE match_id = ? AND seq > ?
		  ORDER BY seq ASC
		  LIMIT ?`,
		matchID,
		int64(afterSeq),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	events := []event.Event{}
	for rows.Next() {
		var (
			e          event.Event
			seq        int64
			typ        string
			visibility string
			audience   string
			payload    []byte
			nanos      int64
		)
		if err := rows.Scan(&seq, &typ, &e.Round, &e.Attempt, &visibility, &audience, &payload, &nanos); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Seq = uint64(seq)
		e.Type = event.Type(typ)
		e.Visibility = event.Visibility(visibility)
		e.Timestamp = time.Unix(0, nanos).UTC()
		if len(payload) > 0 {
			e.Payload = json.RawMessage(payload)
		}
		var tags []string
		if err := json.Unmarshal([]byte(audience), &tags); err != nil {
			return nil, fmt.Errorf("decode event %d audience: %w", seq, err)
		}
		if len(tags) > 0 {
			e.Audience = tags
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// LatestEventSeq returns the highest stored event sequence for matchID.
func (s *Store) LatestEventSeq(ctx context.Context, matchID string) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	var last int64
	if err := s.sqlDB.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM match_events WHERE match_id = ?`,
		matchID,
	).Scan(&last); err != nil {
		return 0, fmt.Errorf("read last event seq: %w", err)
	}
	return uint64(last), nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) requireMatch(ctx context.Context, q queryRower, matchID string) error {
	if strings.TrimSpace(matchID) == "" {
		return fmt.Errorf("match id is required")
	}
	var found int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM matches WHERE id = ?`, matchID).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("check match: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row scanner) (storage.SnapshotRecord, error) {
	var snapshot storage.SnapshotRecord
	var seq int64
	var createdAt int64
	if err := row.Scan(&snapshot.MatchID, &seq, &snapshot.Hash, &snapshot.Payload, &createdAt); err != nil {
		return storage.SnapshotRecord{}, err
	}
	snapshot.Seq = uint64(seq)
	snapshot.CreatedAt = fromMillis(createdAt)
	return snapshot, nil
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

var _ storage.Store = (*Store)(nil)
