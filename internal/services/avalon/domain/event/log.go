package event

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/louisbranch/avalon/internal/services/avalon/domain/core/filter"
	"github.com/louisbranch/avalon/internal/services/avalon/domain/player"
	"github.com/louisbranch/avalon/internal/services/avalon/domain/role"
)

// Log is an append-only event log. It is not safe for concurrent use; a log
// belongs to the single owner of a match.
type Log struct {
	events []Event
	now    func() time.Time
}

// LogOption configures a Log.
type LogOption func(*Log)

// WithClock sets the clock used to timestamp recorded events.
func WithClock(now func() time.Time) LogOption {
	return func(l *Log) {
		if now != nil {
			l.now = now
		}
	}
}

// NewLog returns an empty log.
func NewLog(opts ...LogOption) *Log {
	l := &Log{now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

// FromEvents builds a log holding copies of events. Sequence numbers are
// kept as given.
func FromEvents(events []Event, opts ...LogOption) *Log {
	l := NewLog(opts...)
	l.events = make([]Event, len(events))
	for i, e := range events {
		l.events[i] = e.clone()
	}
	return l
}

type recordOptions struct {
	at       time.Time
	private  bool
	audience []string
	round    int
	attempt  int
}

// RecordOption adjusts a single recorded event.
type RecordOption func(*recordOptions)

// PrivateTo marks the event private to the given audience tags.
func PrivateTo(tags ...string) RecordOption {
	return func(o *recordOptions) {
		o.private = true
		o.audience = append(o.audience, tags...)
	}
}

// At overrides the event timestamp.
func At(ts time.Time) RecordOption {
	return func(o *recordOptions) {
		o.at = ts
	}
}

// InRound stamps the round and attempt the event belongs to.
func InRound(round, attempt int) RecordOption {
	return func(o *recordOptions) {
		o.round = round
		o.attempt = attempt
	}
}

// Record appends an event and returns it.
func (l *Log) Record(typ Type, payload any, opts ...RecordOption) (Event, error) {
	var o recordOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return Event{}, fmt.Errorf("marshal %s payload: %w", typ, err)
		}
		raw = data
	}

	ts := o.at
	if ts.IsZero() {
		ts = l.now()
	}
	e := Event{
		Seq:        l.nextSeq(),
		Timestamp:  ts.UTC(),
		Type:       typ,
		Round:      o.round,
		Attempt:    o.attempt,
		Payload:    raw,
		Visibility: Public,
	}
	if o.private {
		e.Visibility = Private
		e.Audience = o.audience
	}
	l.events = append(l.events, e)
	return e.clone(), nil
}

func (l *Log) nextSeq() uint64 {
	if len(l.events) == 0 {
		return 1
	}
	return l.events[len(l.events)-1].Seq + 1
}

// Len returns the number of recorded events.
func (l *Log) Len() int {
	if l == nil {
		return 0
	}
	return len(l.events)
}

// LastSeq returns the sequence number of the newest event, or 0.
func (l *Log) LastSeq() uint64 {
	if l.Len() == 0 {
		return 0
	}
	return l.events[len(l.events)-1].Seq
}

// Events returns a copy of every event in order.
func (l *Log) Events() []Event {
	return l.collect(func(Event) bool { return true })
}

// Since returns events with a sequence number greater than seq.
func (l *Log) Since(seq uint64) []Event {
	return l.collect(func(e Event) bool { return e.Seq > seq })
}

// Query projects the log for a viewer. Public events pass when includePublic
// is set; private events pass when includePrivate is set or when any of
// their audience tags is in tags.
func (l *Log) Query(tags []string, includePublic, includePrivate bool) []Event {
	allowed := make(map[string]bool, len(tags))
	for _, tag := range tags {
		allowed[tag] = true
	}
	return l.collect(func(e Event) bool {
		if includePublic && e.IsPublic() {
			return true
		}
		if includePrivate {
			return true
		}
		return len(allowed) > 0 && e.AddressedTo(allowed)
	})
}

// PublicEvents returns only public events.
func (l *Log) PublicEvents() []Event {
	return l.Query(nil, true, false)
}

// ForPlayer returns public events plus private events addressed to the
// player or to any of extraTags.
func (l *Log) ForPlayer(id player.ID, extraTags ...string) []Event {
	tags := append([]string{PlayerTag(id)}, extraTags...)
	return l.Query(tags, true, false)
}

// ForAlignment returns public events plus private events addressed to a.
func (l *Log) ForAlignment(a role.Alignment) []Event {
	return l.Query([]string{AlignmentTag(a)}, true, false)
}

// Fields lists the identifiers accepted by Filter expressions.
var Fields = []filter.Field{
	filter.String("type"),
	filter.String("visibility"),
	filter.Int("round"),
	filter.Int("attempt"),
	filter.Int("seq"),
}

// Filter returns events matching an AIP-160 expression over type,
// visibility, round, attempt and seq.
func (l *Log) Filter(expression string) ([]Event, error) {
	program, err := filter.Compile(expression, Fields...)
	if err != nil {
		return nil, err
	}
	return Match(l.Events(), program)
}

// Match returns the events that satisfy program.
func Match(events []Event, program *filter.Program) ([]Event, error) {
	var out []Event
	for _, e := range events {
		ok, err := program.Matches(Resolver(e))
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, e)
		}
	}
	return out, nil
}

// Resolver exposes the filterable fields of e.
func Resolver(e Event) filter.Resolver {
	return func(name string) (any, bool) {
		switch name {
		case "type":
			return string(e.Type), true
		case "visibility":
			return string(e.Visibility), true
		case "round":
			return int64(e.Round), true
		case "attempt":
			return int64(e.Attempt), true
		case "seq":
			return int64(e.Seq), true
		}
		return nil, false
	}
}

func (l *Log) collect(keep func(Event) bool) []Event {
	if l == nil {
		return nil
	}
	var out []Event
	for _, e := range l.events {
		if keep(e) {
			out = append(out, e.clone())
		}
	}
	return out
}

// MarshalJSONL renders the log as newline-delimited JSON.
func (l *Log) MarshalJSONL() ([]byte, error) {
	var buf bytes.Buffer
	for i, e := range l.Events() {
		data, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("marshal event %d: %w", e.Seq, err)
		}
		if i > 0 {
			buf.WriteByte('\n')
		}
		buf.Write(data)
	}
	return buf.Bytes(), nil
}

// ParseJSONL reads a log written by MarshalJSONL. Blank lines are skipped.
func ParseJSONL(data []byte, opts ...LogOption) (*Log, error) {
	var events []Event
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}
		var e Event
		if err := json.Unmarshal(text, &e); err != nil {
			return nil, fmt.Errorf("parse event line %d: %w", line, err)
		}
		if e.Type == "" {
			return nil, fmt.Errorf("parse event line %d: type is required", line)
		}
		if e.Visibility == "" {
			e.Visibility = Public
		}
		events = append(events, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan events: %w", err)
	}
	return FromEvents(events, opts...), nil
}
