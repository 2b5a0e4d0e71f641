// Package storetest provides a reusable conformance suite for storage.Store
// implementations. RunStoreContract exercises the match, snapshot and event
// contracts against fresh stores built by the caller.
package storetest

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/louisbranch/avalon/internal/services/avalon/domain/event"
	"github.com/louisbranch/avalon/internal/services/avalon/storage"
)

// RunStoreContract runs every contract check as a subtest. newStore must
// return an empty store; the suite closes it.
func RunStoreContract(t *testing.T, newStore func(t *testing.T) storage.Store) {
	t.Helper()

	checks := []struct {
		name string
		run  func(t *testing.T, store storage.Store)
	}{
		{"match round trip", checkMatchRoundTrip},
		{"match upsert keeps created_at", checkMatchUpsert},
		{"missing records", checkMissing},
		{"snapshots", checkSnapshots},
		{"duplicate snapshot", checkDuplicateSnapshot},
		{"events", checkEvents},
		{"event order", checkEventOrder},
		{"latest event seq", checkLatestEventSeq},
		{"canceled context", checkCanceled},
	}
	for _, c := range checks {
		t.Run(c.name, func(t *testing.T) {
			store := newStore(t)
			t.Cleanup(func() { _ = store.Close() })
			c.run(t, store)
		})
	}
}

var base = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

func putMatch(t *testing.T, store storage.Store, id string) {
	t.Helper()
	if err := store.PutMatch(context.Background(), storage.MatchRecord{
		ID:        id,
		Phase:     "team_building",
		CreatedAt: base,
		UpdatedAt: base,
	}); err != nil {
		t.Fatalf("put match: %v", err)
	}
}

func checkMatchRoundTrip(t *testing.T, store storage.Store) {
	putMatch(t, store, "m-1")
	got, err := store.GetMatch(context.Background(), "m-1")
	if err != nil {
		t.Fatalf("get match: %v", err)
	}
	if got.ID != "m-1" || got.Phase != "team_building" || got.Winner != "" {
		t.Fatalf("match = %+v, want m-1 in team_building", got)
	}
	if !got.CreatedAt.Equal(base) || !got.UpdatedAt.Equal(base) {
		t.Fatalf("timestamps = %v/%v, want %v", got.CreatedAt, got.UpdatedAt, base)
	}
}

func checkMatchUpsert(t *testing.T, store storage.Store) {
	putMatch(t, store, "m-1")
	later := base.Add(time.Hour)
	if err := store.PutMatch(context.Background(), storage.MatchRecord{
		ID:        "m-1",
		Phase:     "game_over",
		Winner:    "good",
		CreatedAt: later,
		UpdatedAt: later,
	}); err != nil {
		t.Fatalf("update match: %v", err)
	}
	got, err := store.GetMatch(context.Background(), "m-1")
	if err != nil {
		t.Fatalf("get match: %v", err)
	}
	if got.Phase != "game_over" || got.Winner != "good" {
		t.Fatalf("match = %+v, want game_over won by good", got)
	}
	if !got.CreatedAt.Equal(base) {
		t.Fatalf("created_at = %v, want %v", got.CreatedAt, base)
	}
	if !got.UpdatedAt.Equal(later) {
		t.Fatalf("updated_at = %v, want %v", got.UpdatedAt, later)
	}
}

func checkMissing(t *testing.T, store storage.Store) {
	ctx := context.Background()
	if _, err := store.GetMatch(ctx, "nope"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("get match err = %v, want ErrNotFound", err)
	}
	if _, err := store.GetLatestSnapshot(ctx, "nope"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("latest snapshot err = %v, want ErrNotFound", err)
	}
	err := store.PutSnapshot(ctx, storage.SnapshotRecord{MatchID: "nope", Seq: 1, Hash: "h", Payload: []byte("{}")})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("put snapshot err = %v, want ErrNotFound", err)
	}
	if err := store.AppendEvents(ctx, "nope", []event.Event{{Seq: 1}}); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("append events err = %v, want ErrNotFound", err)
	}
	events, err := store.ListEvents(ctx, "nope", 0, 0)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("events = %d, want 0", len(events))
	}
}

func checkSnapshots(t *testing.T, store storage.Store) {
	ctx := context.Background()
	putMatch(t, store, "m-1")
	for _, seq := range []uint64{4, 9, 2} {
		if err := store.PutSnapshot(ctx, storage.SnapshotRecord{
			MatchID:   "m-1",
			Seq:       seq,
			Hash:      "hash",
			Payload:   []byte(`{"version":1}`),
			CreatedAt: base,
		}); err != nil {
			t.Fatalf("put snapshot %d: %v", seq, err)
		}
	}

	latest, err := store.GetLatestSnapshot(ctx, "m-1")
	if err != nil {
		t.Fatalf("latest snapshot: %v", err)
	}
	if latest.Seq != 9 {
		t.Fatalf("latest seq = %d, want 9", latest.Seq)
	}
	if string(latest.Payload) != `{"version":1}` {
		t.Fatalf("payload = %s", latest.Payload)
	}
	if !latest.CreatedAt.Equal(base) {
		t.Fatalf("created_at = %v, want %v", latest.CreatedAt, base)
	}

	all, err := store.ListSnapshots(ctx, "m-1")
	if err != nil {
		t.Fatalf("list snapshots: %v", err)
	}
	var seqs []uint64
	for _, s := range all {
		seqs = append(seqs, s.Seq)
	}
	if !reflect.DeepEqual(seqs, []uint64{2, 4, 9}) {
		t.Fatalf("snapshot seqs = %v, want [2 4 9]", seqs)
	}
}

func checkDuplicateSnapshot(t *testing.T, store storage.Store) {
	ctx := context.Background()
	putMatch(t, store, "m-1")
	snap := storage.SnapshotRecord{MatchID: "m-1", Seq: 3, Hash: "a", Payload: []byte("{}"), CreatedAt: base}
	if err := store.PutSnapshot(ctx, snap); err != nil {
		t.Fatalf("put snapshot: %v", err)
	}
	if err := store.PutSnapshot(ctx, snap); !errors.Is(err, storage.ErrAlreadyExists) {
		t.Fatalf("duplicate err = %v, want ErrAlreadyExists", err)
	}
}

func sampleEvents() []event.Event {
	return []event.Event{
		{
			Seq:        1,
			Timestamp:  base,
			Type:       "phase_changed",
			Round:      1,
			Attempt:    1,
			Payload:    json.RawMessage(`{"to":"team_building"}`),
			Visibility: event.Public,
		},
		{
			Seq:        2,
			Timestamp:  base.Add(1500 * time.Microsecond),
			Type:       "mission_card_recorded",
			Round:      1,
			Attempt:    1,
			Payload:    json.RawMessage(`{"player_id":"p4","card":"fail"}`),
			Visibility: event.Private,
			Audience:   []string{"player:p4"},
		},
		{
			Seq:        3,
			Timestamp:  base.Add(time.Second),
			Type:       "game_ended",
			Visibility: event.Public,
		},
	}
}

func checkEvents(t *testing.T, store storage.Store) {
	ctx := context.Background()
	putMatch(t, store, "m-1")
	want := sampleEvents()
	if err := store.AppendEvents(ctx, "m-1", want[:2]); err != nil {
		t.Fatalf("append events: %v", err)
	}
	if err := store.AppendEvents(ctx, "m-1", want[2:]); err != nil {
		t.Fatalf("append events: %v", err)
	}

	got, err := store.ListEvents(ctx, "m-1", 0, 0)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("events = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if !got[i].Timestamp.Equal(want[i].Timestamp) {
			t.Fatalf("event %d timestamp = %v, want %v", i, got[i].Timestamp, want[i].Timestamp)
		}
		got[i].Timestamp = want[i].Timestamp
		if !reflect.DeepEqual(got[i], want[i]) {
			t.Fatalf("event %d = %+v, want %+v", i, got[i], want[i])
		}
	}

	page, err := store.ListEvents(ctx, "m-1", 1, 1)
	if err != nil {
		t.Fatalf("list events page: %v", err)
	}
	if len(page) != 1 || page[0].Seq != 2 {
		t.Fatalf("page = %+v, want only seq 2", page)
	}
}

func checkEventOrder(t *testing.T, store storage.Store) {
	ctx := context.Background()
	putMatch(t, store, "m-1")
	events := sampleEvents()
	if err := store.AppendEvents(ctx, "m-1", events[:2]); err != nil {
		t.Fatalf("append events: %v", err)
	}
	if err := store.AppendEvents(ctx, "m-1", events[1:]); !errors.Is(err, storage.ErrAlreadyExists) {
		t.Fatalf("overlapping append err = %v, want ErrAlreadyExists", err)
	}
	got, err := store.ListEvents(ctx, "m-1", 0, 0)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("events = %d, want 2 after rejected append", len(got))
	}
}

func checkLatestEventSeq(t *testing.T, store storage.Store) {
	ctx := context.Background()
	putMatch(t, store, "m-1")
	seq, err := store.LatestEventSeq(ctx, "m-1")
	if err != nil {
		t.Fatalf("latest event seq: %v", err)
	}
	if seq != 0 {
		t.Fatalf("latest event seq = %d, want 0 before any append", seq)
	}
	if err := store.AppendEvents(ctx, "m-1", sampleEvents()[:2]); err != nil {
		t.Fatalf("append events: %v", err)
	}
	seq, err = store.LatestEventSeq(ctx, "m-1")
	if err != nil {
		t.Fatalf("latest event seq: %v", err)
	}
	if seq != 2 {
		t.Fatalf("latest event seq = %d, want 2", seq)
	}
	if seq, err := store.LatestEventSeq(ctx, "missing"); err != nil || seq != 0 {
		t.Fatalf("latest event seq for missing match = %d, %v; want 0, nil", seq, err)
	}
}

func checkCanceled(t *testing.T, store storage.Store) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := store.PutMatch(ctx, storage.MatchRecord{ID: "m-1"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("put match err = %v, want context.Canceled", err)
	}
	if _, err := store.ListEvents(ctx, "m-1", 0, 0); !errors.Is(err, context.Canceled) {
		t.Fatalf("list events err = %v, want context.Canceled", err)
	}
	if _, err := store.LatestEventSeq(ctx, "m-1"); !errors.Is(err, context.Canceled) {
		t.Fatalf("latest event seq err = %v, want context.Canceled", err)
	}
}
