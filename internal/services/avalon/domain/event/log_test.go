package event

import (
	"strings"
	"testing"
	"time"

	"github.com/louisbranch/avalon/internal/services/avalon/domain/role"
)

func fixedClock() func() time.Time {
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	n := 0
	return func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
}

func sampleLog(t *testing.T) *Log {
	t.Helper()
	l := NewLog(WithClock(fixedClock()))
	record := func(typ Type, payload any, opts ...RecordOption) {
		if _, err := l.Record(typ, payload, opts...); err != nil {
			t.Fatalf("record %s: %v", typ, err)
		}
	}
	record(TypePhaseChanged, map[string]any{"phase": "team_proposal"}, InRound(1, 1))
	record(TypeBriefingIssued, map[string]any{"role": "merlin"}, PrivateTo(PlayerTag("p1")))
	record(TypeBriefingIssued, map[string]any{"role": "assassin"}, PrivateTo(PlayerTag("p2")))
	record(TypeTeamProposed, map[string]any{"team": []string{"p1", "p2"}}, InRound(1, 1))
	record(TypeDiscussionStatement, map[string]any{"message": "hm"}, PrivateTo(AlignmentTag(role.Minion)), InRound(1, 2))
	record(TypeMissionResolved, map[string]any{"result": "failure"}, InRound(2, 1))
	return l
}

func types(events []Event) string {
	parts := make([]string, len(events))
	for i, e := range events {
		parts[i] = string(e.Type)
	}
	return strings.Join(parts, ",")
}

func TestRecordAssignsSequenceAndTimestamps(t *testing.T) {
	l := sampleLog(t)
	events := l.Events()
	if len(events) != 6 || l.Len() != 6 {
		t.Fatalf("len = %d, want 6", len(events))
	}
	for i, e := range events {
		if e.Seq != uint64(i+1) {
			t.Fatalf("event %d seq = %d", i, e.Seq)
		}
	}
	if !events[1].Timestamp.After(events[0].Timestamp) {
		t.Fatal("timestamps not increasing")
	}
	if l.LastSeq() != 6 {
		t.Fatalf("last seq = %d, want 6", l.LastSeq())
	}

	at := time.Date(2020, 5, 5, 0, 0, 0, 0, time.UTC)
	e, err := l.Record(TypeGameCompleted, nil, At(at))
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if !e.Timestamp.Equal(at) || e.Payload != nil {
		t.Fatalf("event = %+v", e)
	}
}

func TestRecordRejectsUnmarshalablePayload(t *testing.T) {
	l := NewLog()
	if _, err := l.Record(TypeTeamProposed, map[string]any{"bad": func() {}}); err == nil {
		t.Fatal("expected marshal error")
	}
	if l.Len() != 0 {
		t.Fatal("failed record appended an event")
	}
}

func TestEventsReturnsCopies(t *testing.T) {
	l := sampleLog(t)
	events := l.Events()
	events[1].Audience[0] = "player:intruder"
	if l.Events()[1].Audience[0] != "player:p1" {
		t.Fatal("log mutated through returned slice")
	}
}

func TestQueryRules(t *testing.T) {
	l := sampleLog(t)
	tests := []struct {
		name           string
		tags           []string
		includePublic  bool
		includePrivate bool
		want           string
	}{
		{
			name:          "public only",
			includePublic: true,
			want:          "phase_changed,team_proposed,mission_resolved",
		},
		{
			name:          "player view",
			tags:          []string{"player:p1"},
			includePublic: true,
			want:          "phase_changed,briefing_issued,team_proposed,mission_resolved",
		},
		{
			name: "private for tag without public",
			tags: []string{"player:p2"},
			want: "briefing_issued",
		},
		{
			name:           "omniscient",
			includePublic:  true,
			includePrivate: true,
			want:           "phase_changed,briefing_issued,briefing_issued,team_proposed,discussion_statement,mission_resolved",
		},
		{
			name: "nothing requested",
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := types(l.Query(tt.tags, tt.includePublic, tt.includePrivate))
			if got != tt.want {
				t.Fatalf("Query = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestForPlayerAndAlignment(t *testing.T) {
	l := sampleLog(t)
	p2 := l.ForPlayer("p2")
	if got := types(p2); got != "phase_changed,briefing_issued,team_proposed,mission_resolved" {
		t.Fatalf("ForPlayer(p2) = %s", got)
	}
	if p2[1].Audience[0] != "player:p2" {
		t.Fatalf("p2 saw %v", p2[1].Audience)
	}
	withAlignment := l.ForPlayer("p2", AlignmentTag(role.Minion))
	if len(withAlignment) != 5 {
		t.Fatalf("ForPlayer with extra tag = %s", types(withAlignment))
	}
	if got := types(l.ForAlignment(role.Minion)); got != "phase_changed,team_proposed,discussion_statement,mission_resolved" {
		t.Fatalf("ForAlignment(minion) = %s", got)
	}
	if got := types(l.ForAlignment(role.Resistance)); got != types(l.PublicEvents()) {
		t.Fatalf("ForAlignment(resistance) = %s", got)
	}
}

func TestFilter(t *testing.T) {
	l := sampleLog(t)
	tests := []struct {
		expr string
		want string
	}{
		{``, types(l.Events())},
		{`type = "briefing_issued"`, "briefing_issued,briefing_issued"},
		{`round = 1 AND visibility = "public"`, "phase_changed,team_proposed"},
		{`round >= 2 OR attempt = 2`, "discussion_statement,mission_resolved"},
		{`seq > 5`, "mission_resolved"},
	}
	for _, tt := range tests {
		got, err := l.Filter(tt.expr)
		if err != nil {
			t.Fatalf("Filter(%q): %v", tt.expr, err)
		}
		if types(got) != tt.want {
			t.Fatalf("Filter(%q) = %s, want %s", tt.expr, types(got), tt.want)
		}
	}
	if _, err := l.Filter(`winner = "minion"`); err == nil {
		t.Fatal("expected unknown field error")
	}
}

func TestJSONLRoundTrip(t *testing.T) {
	l := sampleLog(t)
	data, err := l.MarshalJSONL()
	if err != nil {
		t.Fatalf("MarshalJSONL: %v", err)
	}
	if lines := strings.Count(string(data), "\n"); lines != 5 {
		t.Fatalf("newlines = %d, want 5", lines)
	}

	parsed, err := ParseJSONL(append([]byte("\n"), data...))
	if err != nil {
		t.Fatalf("ParseJSONL: %v", err)
	}
	original := l.Events()
	restored := parsed.Events()
	if len(original) != len(restored) {
		t.Fatalf("len = %d, want %d", len(restored), len(original))
	}
	for i := range original {
		a, b := original[i], restored[i]
		if a.Seq != b.Seq || a.Type != b.Type || a.Visibility != b.Visibility || !a.Timestamp.Equal(b.Timestamp) {
			t.Fatalf("event %d: %+v != %+v", i, b, a)
		}
		if string(a.Payload) != string(b.Payload) || strings.Join(a.Audience, ",") != strings.Join(b.Audience, ",") {
			t.Fatalf("event %d body differs", i)
		}
	}

	var payload struct {
		Role string `json:"role"`
	}
	if err := restored[1].DecodePayload(&payload); err != nil || payload.Role != "merlin" {
		t.Fatalf("DecodePayload = %+v, %v", payload, err)
	}

	next, err := parsed.Record(TypeGameCompleted, nil)
	if err != nil {
		t.Fatalf("record after parse: %v", err)
	}
	if next.Seq != 7 {
		t.Fatalf("seq after parse = %d, want 7", next.Seq)
	}
}

func TestParseJSONLErrors(t *testing.T) {
	if _, err := ParseJSONL([]byte("{not json}")); err == nil {
		t.Fatal("expected parse error")
	}
	if _, err := ParseJSONL([]byte(`{"seq":1}`)); err == nil {
		t.Fatal("expected missing type error")
	}
	l, err := ParseJSONL([]byte(`{"seq":1,"type":"phase_changed"}`))
	if err != nil {
		t.Fatalf("ParseJSONL: %v", err)
	}
	if !l.Events()[0].IsPublic() {
		t.Fatal("missing visibility should default to public")
	}
}

func TestSince(t *testing.T) {
	l := sampleLog(t)
	if got := types(l.Since(4)); got != "discussion_statement,mission_resolved" {
		t.Fatalf("Since(4) = %s", got)
	}
	if len(l.Since(6)) != 0 {
		t.Fatal("expected no events after last seq")
	}
}
