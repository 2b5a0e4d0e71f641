package app

import (
	"bytes"
	"context"
	"errors"
	"log"
	"strings"
	"testing"
	"time"

	apperrors "github.com/louisbranch/avalon/internal/platform/errors"
	"github.com/louisbranch/avalon/internal/services/avalon/domain/decision"
	"github.com/louisbranch/avalon/internal/services/avalon/domain/discussion"
	"github.com/louisbranch/avalon/internal/services/avalon/domain/event"
	"github.com/louisbranch/avalon/internal/services/avalon/domain/match"
	"github.com/louisbranch/avalon/internal/services/avalon/domain/player"
	"github.com/louisbranch/avalon/internal/services/avalon/domain/role"
	"github.com/louisbranch/avalon/internal/services/avalon/domain/rules"
	"github.com/louisbranch/avalon/internal/services/avalon/domain/snapshot"
	"github.com/louisbranch/avalon/internal/services/avalon/storage"
)

var seatIDs = []player.ID{"p1", "p2", "p3", "p4", "p5", "p6", "p7", "p8", "p9", "p10"}

func fixedNow() time.Time {
	return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

// newMatch seats the default roles in order: for five players p1 Merlin,
// p2 Percival, p3 Loyal Servant, p4 Assassin, p5 Morgana.
func newMatch(t *testing.T, count int, opts ...rules.Option) *match.State {
	t.Helper()
	opts = append([]rules.Option{rules.WithSeed(7)}, opts...)
	cfg, err := rules.DefaultConfig(count, opts...)
	if err != nil {
		t.Fatalf("DefaultConfig: %v", err)
	}
	players := make([]player.Player, 0, count)
	for i, r := range cfg.Roles() {
		players = append(players, player.Player{
			ID:          seatIDs[i],
			DisplayName: "Player " + seatIDs[i],
			Role:        r,
			Type:        player.TypeAgent,
		})
	}
	state, err := match.New(cfg, players, match.WithSeed(7), match.WithClock(fixedNow))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return state
}

func noDiscussion() rules.Option {
	return rules.WithDiscussion(discussion.Config{})
}

func bots(state *match.State, seed int64) map[player.ID]decision.Source {
	sources := make(map[player.ID]decision.Source)
	for i, p := range state.Players() {
		sources[p.ID] = decision.NewBot(seed + int64(i))
	}
	return sources
}

func scripted(state *match.State) map[player.ID]*decision.Scripted {
	out := make(map[player.ID]*decision.Scripted)
	for _, p := range state.Players() {
		out[p.ID] = &decision.Scripted{}
	}
	return out
}

func asSources(in map[player.ID]*decision.Scripted) map[player.ID]decision.Source {
	out := make(map[player.ID]decision.Source, len(in))
	for id, s := range in {
		out[id] = s
	}
	return out
}

func TestPlayWithBotsPersistsEveryStep(t *testing.T) {
	for count := 5; count <= 10; count++ {
		state := newMatch(t, count)
		store := storage.NewMemory()
		runner := &Runner{Sources: bots(state, int64(count)), Store: store}
		ctx := context.Background()

		if err := runner.Play(ctx, "m-1", state); err != nil {
			t.Fatalf("%d players: Play: %v", count, err)
		}
		if !state.IsOver() {
			t.Fatalf("%d players: match not over", count)
		}
		winner, ok := state.FinalWinner()
		if !ok {
			t.Fatalf("%d players: no winner", count)
		}

		record, err := store.GetMatch(ctx, "m-1")
		if err != nil {
			t.Fatalf("GetMatch: %v", err)
		}
		if record.Phase != string(match.PhaseGameOver) || record.Winner != string(winner) {
			t.Fatalf("%d players: record = %+v, want game_over won by %s", count, record, winner)
		}
		events, err := store.ListEvents(ctx, "m-1", 0, 0)
		if err != nil {
			t.Fatalf("ListEvents: %v", err)
		}
		if len(events) != state.Log().Len() {
			t.Fatalf("%d players: stored events = %d, want %d", count, len(events), state.Log().Len())
		}
		latest, err := store.GetLatestSnapshot(ctx, "m-1")
		if err != nil {
			t.Fatalf("GetLatestSnapshot: %v", err)
		}
		if latest.Seq != state.Log().LastSeq() {
			t.Fatalf("%d players: latest snapshot seq = %d, want %d", count, latest.Seq, state.Log().LastSeq())
		}
		want, err := snapshot.Capture(state).Hash()
		if err != nil {
			t.Fatalf("Hash: %v", err)
		}
		if latest.Hash != want {
			t.Fatalf("%d players: latest hash = %s, want %s", count, latest.Hash, want)
		}
	}
}

func TestPlayIsDeterministic(t *testing.T) {
	hashes := make([]string, 2)
	for i := range hashes {
		state := newMatch(t, 7)
		runner := &Runner{Sources: bots(state, 11)}
		if err := runner.Play(context.Background(), "m-1", state); err != nil {
			t.Fatalf("Play: %v", err)
		}
		hash, err := snapshot.Capture(state).Hash()
		if err != nil {
			t.Fatalf("Hash: %v", err)
		}
		hashes[i] = hash
	}
	if hashes[0] != hashes[1] {
		t.Fatalf("hashes differ: %s vs %s", hashes[0], hashes[1])
	}
}

func TestPlayForcesResistanceSuccess(t *testing.T) {
	state := newMatch(t, 5, noDiscussion())
	seats := scripted(state)
	seats["p1"].Teams = [][]player.ID{{"p1", "p2"}}
	seats["p1"].Cards = []match.Card{match.CardFail}
	seats["p2"].Cards = []match.Card{match.CardFail}
	seats["p4"].Guesses = []player.ID{"p3"}

	runner := &Runner{Sources: asSources(seats)}
	if err := runner.Play(context.Background(), "m-1", state); err != nil {
		t.Fatalf("Play: %v", err)
	}
	missions := state.Missions()
	if len(missions) == 0 {
		t.Fatal("no missions recorded")
	}
	if missions[0].Result != match.MissionSuccess || missions[0].FailCount != 0 {
		t.Fatalf("first mission = %s with %d fails, want success with 0", missions[0].Result, missions[0].FailCount)
	}
	if winner, _ := state.FinalWinner(); winner != role.Resistance {
		t.Fatalf("winner = %s, want resistance", winner)
	}
	record, ok := state.Assassination()
	if !ok || record.TargetID != "p3" || record.Success {
		t.Fatalf("assassination = %+v, %v", record, ok)
	}
}

func TestPlayRetriesInvalidAnswers(t *testing.T) {
	state := newMatch(t, 5, noDiscussion())
	seats := scripted(state)
	// First answer has the wrong size, second names an unknown player.
	seats["p1"].Teams = [][]player.ID{{"p1"}, {"p1", "zz"}, {"p1", "p2"}}

	runner := &Runner{Sources: asSources(seats), MaxRetries: 2}
	if err := runner.Play(context.Background(), "m-1", state); err != nil {
		t.Fatalf("Play: %v", err)
	}
	votes := state.Votes()
	if len(votes) == 0 || len(votes[0].Team) != 2 || votes[0].Team[1] != "p2" {
		t.Fatalf("first vote = %+v, want team [p1 p2]", votes)
	}
}

func TestPlayGivesUpAfterMaxRetries(t *testing.T) {
	state := newMatch(t, 5, noDiscussion())
	seats := scripted(state)
	seats["p1"].Teams = [][]player.ID{{"p1"}, {"p1"}, {"p1", "p2"}}

	runner := &Runner{Sources: asSources(seats), MaxRetries: 1}
	err := runner.Play(context.Background(), "m-1", state)
	if !apperrors.IsInvalidAction(err) {
		t.Fatalf("err = %v, want invalid action", err)
	}
	if apperrors.CodeOf(err) != apperrors.CodeActionTeamSize {
		t.Fatalf("code = %s, want %s", apperrors.CodeOf(err), apperrors.CodeActionTeamSize)
	}
	if state.Phase() != match.PhaseTeamProposal {
		t.Fatalf("phase = %s, want team_proposal", state.Phase())
	}
}

func TestPlayWithoutRetries(t *testing.T) {
	state := newMatch(t, 5, noDiscussion())
	seats := scripted(state)
	seats["p1"].Teams = [][]player.ID{{"p1"}, {"p1", "p2"}}

	runner := &Runner{Sources: asSources(seats), MaxRetries: NoRetries}
	err := runner.Play(context.Background(), "m-1", state)
	if apperrors.CodeOf(err) != apperrors.CodeActionTeamSize {
		t.Fatalf("err = %v, want %s on the first answer", err, apperrors.CodeActionTeamSize)
	}
	if len(state.Votes()) != 0 {
		t.Fatalf("votes = %d, want none", len(state.Votes()))
	}
}

func TestPlayRequiresEverySource(t *testing.T) {
	state := newMatch(t, 5)
	sources := bots(state, 1)
	delete(sources, "p3")
	runner := &Runner{Sources: sources}
	if err := runner.Play(context.Background(), "m-1", state); err == nil {
		t.Fatal("expected missing source error")
	}
	if err := runner.Play(context.Background(), "m-1", nil); err == nil {
		t.Fatal("expected nil state error")
	}
}

func TestPlayRunsDiscussions(t *testing.T) {
	disc := discussion.Config{Enabled: true, PreProposal: true, MaxStatementsPerPhase: 1, AllowPass: true}
	state := newMatch(t, 5, rules.WithDiscussion(disc))
	seats := scripted(state)
	seats["p2"].Statements = []string{"I trust p1", "", "  "}
	seats["p4"].Guesses = []player.ID{"p3"}

	var buf bytes.Buffer
	runner := &Runner{Sources: asSources(seats), Logger: log.New(&buf, "", 0)}
	if err := runner.Play(context.Background(), "m-1", state); err != nil {
		t.Fatalf("Play: %v", err)
	}

	rounds := state.Discussions()
	if len(rounds) == 0 {
		t.Fatal("no discussions recorded")
	}
	for _, r := range rounds {
		if r.Phase != discussion.PhasePreProposal {
			t.Fatalf("discussion phase = %s, want only pre_proposal", r.Phase)
		}
	}
	statements := state.AllStatements()
	if len(statements) != 1 || statements[0].SpeakerID != "p2" || statements[0].Message != "I trust p1" {
		t.Fatalf("statements = %+v", statements)
	}
	if !strings.Contains(buf.String(), "victory") {
		t.Fatalf("log = %q, want final victory line", buf.String())
	}
}

var errBoom = errors.New("boom")

// flakySource fails its nth vote.
type flakySource struct {
	decision.Source
	failAt int
	votes  int
}

func (f *flakySource) Vote(ctx context.Context, obs decision.Observation) (bool, error) {
	f.votes++
	if f.votes == f.failAt {
		return false, errBoom
	}
	return f.Source.Vote(ctx, obs)
}

func TestResumeContinuesStoredMatch(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	state := newMatch(t, 6)
	sources := bots(state, 3)
	sources["p1"] = &flakySource{Source: sources["p1"], failAt: 3}

	runner := &Runner{Sources: sources, Store: store}
	if err := runner.Play(ctx, "m-1", state); !errors.Is(err, errBoom) {
		t.Fatalf("err = %v, want boom", err)
	}

	resumed, err := Resume(ctx, store, "m-1")
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	latest, err := store.GetLatestSnapshot(ctx, "m-1")
	if err != nil {
		t.Fatalf("GetLatestSnapshot: %v", err)
	}
	if resumed.Log().LastSeq() != latest.Seq {
		t.Fatalf("resumed seq = %d, want %d", resumed.Log().LastSeq(), latest.Seq)
	}
	if resumed.IsOver() {
		t.Fatal("resumed match is already over")
	}

	again := &Runner{Sources: bots(resumed, 3), Store: store}
	if err := again.Play(ctx, "m-1", resumed); err != nil {
		t.Fatalf("Play resumed: %v", err)
	}
	events, err := store.ListEvents(ctx, "m-1", 0, 0)
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(events) != resumed.Log().Len() {
		t.Fatalf("stored events = %d, want %d", len(events), resumed.Log().Len())
	}
	for i, e := range events {
		if e.Seq != uint64(i+1) {
			t.Fatalf("event %d seq = %d, want %d", i, e.Seq, i+1)
		}
	}
}

var errDiskFull = errors.New("disk full")

// faultyStore fails the nth snapshot write or event append once.
type faultyStore struct {
	*storage.Memory
	failSnapshotAt int
	failAppendAt   int
	snapshots      int
	appends        int
}

func (f *faultyStore) PutSnapshot(ctx context.Context, record storage.SnapshotRecord) error {
	f.snapshots++
	if f.snapshots == f.failSnapshotAt {
		return errDiskFull
	}
	return f.Memory.PutSnapshot(ctx, record)
}

func (f *faultyStore) AppendEvents(ctx context.Context, matchID string, events []event.Event) error {
	f.appends++
	if f.appends == f.failAppendAt {
		return errDiskFull
	}
	return f.Memory.AppendEvents(ctx, matchID, events)
}

func TestResumeAfterFailedWrite(t *testing.T) {
	tests := []struct {
		name  string
		store *faultyStore
	}{
		{"snapshot write", &faultyStore{Memory: storage.NewMemory(), failSnapshotAt: 3}},
		{"event append", &faultyStore{Memory: storage.NewMemory(), failAppendAt: 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := tt.store
			state := newMatch(t, 6)
			if err := (&Runner{Sources: bots(state, 3), Store: store}).Play(ctx, "m-1", state); !errors.Is(err, errDiskFull) {
				t.Fatalf("err = %v, want disk full", err)
			}

			latest, err := store.GetLatestSnapshot(ctx, "m-1")
			if err != nil {
				t.Fatalf("GetLatestSnapshot: %v", err)
			}
			stored, err := store.LatestEventSeq(ctx, "m-1")
			if err != nil {
				t.Fatalf("LatestEventSeq: %v", err)
			}
			if stored > latest.Seq {
				t.Fatalf("stored events at %d run past snapshot %d", stored, latest.Seq)
			}

			resumed, err := Resume(ctx, store, "m-1")
			if err != nil {
				t.Fatalf("Resume: %v", err)
			}
			if err := (&Runner{Sources: bots(resumed, 3), Store: store}).Play(ctx, "m-1", resumed); err != nil {
				t.Fatalf("Play resumed: %v", err)
			}
			checkStoredEvents(t, store, resumed)
		})
	}
}

func checkStoredEvents(t *testing.T, store storage.Store, state *match.State) {
	t.Helper()
	events, err := store.ListEvents(context.Background(), "m-1", 0, 0)
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(events) != state.Log().Len() {
		t.Fatalf("stored events = %d, want %d", len(events), state.Log().Len())
	}
	for i, e := range events {
		if e.Seq != uint64(i+1) {
			t.Fatalf("event %d seq = %d, want %d", i, e.Seq, i+1)
		}
	}
}

func TestPlayRejectsStaleState(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	played := newMatch(t, 5)
	if err := (&Runner{Sources: bots(played, 1), Store: store}).Play(ctx, "m-1", played); err != nil {
		t.Fatalf("Play: %v", err)
	}

	fresh := newMatch(t, 5)
	err := (&Runner{Sources: bots(fresh, 1), Store: store}).Play(ctx, "m-1", fresh)
	if err == nil || !strings.Contains(err.Error(), "ahead") {
		t.Fatalf("err = %v, want stale state error", err)
	}
}

func TestNewMatchID(t *testing.T) {
	a, b := NewMatchID(), NewMatchID()
	if a == "" || a == b {
		t.Fatalf("ids = %q, %q", a, b)
	}
}
