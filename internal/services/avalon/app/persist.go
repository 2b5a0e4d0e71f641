package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/louisbranch/avalon/internal/services/avalon/domain/match"
	"github.com/louisbranch/avalon/internal/services/avalon/domain/snapshot"
	"github.com/louisbranch/avalon/internal/services/avalon/storage"
)

// persist writes the match summary, a snapshot and the events the store
// has not seen yet. The snapshot goes first: its payload carries the whole
// log, so stored events never run ahead of the latest snapshot and a failed
// event append is retried from the snapshot on resume.
func (p *play) persist(ctx context.Context) error {
	store := p.runner.Store
	if store == nil {
		return nil
	}
	log := p.state.Log()
	seq := log.LastSeq()
	snapshotCurrent := p.snapshotSaved && seq == p.snapshotSeq
	if snapshotCurrent && seq == p.eventSeq {
		return nil
	}

	record := storage.MatchRecord{ID: p.matchID, Phase: string(p.state.Phase())}
	if winner, ok := p.state.FinalWinner(); ok {
		record.Winner = string(winner)
	}
	if err := store.PutMatch(ctx, record); err != nil {
		return fmt.Errorf("persist match %s: %w", p.matchID, err)
	}

	if !snapshotCurrent {
		snap := snapshot.Capture(p.state)
		payload, err := snapshot.Encode(snap)
		if err != nil {
			return fmt.Errorf("encode snapshot: %w", err)
		}
		hash, err := snap.Hash()
		if err != nil {
			return fmt.Errorf("hash snapshot: %w", err)
		}
		if err := store.PutSnapshot(ctx, storage.SnapshotRecord{
			MatchID: p.matchID,
			Seq:     seq,
			Hash:    hash,
			Payload: payload,
		}); err != nil {
			return fmt.Errorf("persist snapshot at %d: %w", seq, err)
		}
		p.snapshotSeq = seq
		p.snapshotSaved = true
	}

	if events := log.Since(p.eventSeq); len(events) > 0 {
		if err := store.AppendEvents(ctx, p.matchID, events); err != nil {
			return fmt.Errorf("persist events for %s: %w", p.matchID, err)
		}
	}
	p.eventSeq = seq
	return nil
}

// loadCursor picks up after what the store already holds so a resumed match
// only writes what is new.
func (p *play) loadCursor(ctx context.Context) error {
	store := p.runner.Store
	if store == nil {
		return nil
	}
	last := p.state.Log().LastSeq()
	latest, err := store.GetLatestSnapshot(ctx, p.matchID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		return fmt.Errorf("load snapshot cursor for %s: %w", p.matchID, err)
	case latest.Seq > last:
		return fmt.Errorf("stored match %s is ahead of the given state (seq %d > %d)",
			p.matchID, latest.Seq, last)
	default:
		p.snapshotSeq = latest.Seq
		p.snapshotSaved = true
	}

	eventSeq, err := store.LatestEventSeq(ctx, p.matchID)
	if err != nil {
		return fmt.Errorf("load event cursor for %s: %w", p.matchID, err)
	}
	if eventSeq > last {
		return fmt.Errorf("stored events for %s are ahead of the given state (seq %d > %d)",
			p.matchID, eventSeq, last)
	}
	p.eventSeq = eventSeq
	return nil
}

// Resume rebuilds a match from its latest stored snapshot.
func Resume(ctx context.Context, store storage.SnapshotStore, matchID string) (*match.State, error) {
	record, err := store.GetLatestSnapshot(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("load snapshot for %s: %w", matchID, err)
	}
	snap, err := snapshot.Decode(record.Payload)
	if err != nil {
		return nil, err
	}
	return snapshot.Restore(snap)
}
