package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/louisbranch/avalon/internal/services/avalon/domain/player"
	"github.com/louisbranch/avalon/internal/services/avalon/domain/role"
)

// Type names an engine event.
type Type string

const (
	TypePhaseChanged          Type = "phase_changed"
	TypeTeamProposed          Type = "team_proposed"
	TypeTeamVoteRecorded      Type = "team_vote_recorded"
	TypeMissionResolved       Type = "mission_resolved"
	TypeMissionAutoFailed     Type = "mission_auto_failed"
	TypeAssassinationResolved Type = "assassination_resolved"
	TypeGameCompleted         Type = "game_completed"
	TypeDiscussionStarted     Type = "discussion_started"
	TypeDiscussionStatement   Type = "discussion_statement"
	TypeDiscussionEnded       Type = "discussion_ended"
	TypeBriefingIssued        Type = "briefing_issued"
	TypeMissionCardRecorded   Type = "mission_card_recorded"
)

// Visibility says who may see an event.
type Visibility string

const (
	Public  Visibility = "public"
	Private Visibility = "private"
)

// Event is one immutable log entry.
type Event struct {
	Seq        uint64          `json:"seq"`
	Timestamp  time.Time       `json:"timestamp"`
	Type       Type            `json:"type"`
	Round      int             `json:"round_number,omitempty"`
	Attempt    int             `json:"attempt_number,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Visibility Visibility      `json:"visibility"`
	Audience   []string        `json:"audience,omitempty"`
}

// DecodePayload unmarshals the payload into v.
func (e Event) DecodePayload(v any) error {
	if len(e.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return nil
}

// IsPublic reports whether the event is visible to everyone.
func (e Event) IsPublic() bool {
	return e.Visibility != Private
}

// AddressedTo reports whether any audience tag is in tags.
func (e Event) AddressedTo(tags map[string]bool) bool {
	for _, tag := range e.Audience {
		if tags[tag] {
			return true
		}
	}
	return false
}

func (e Event) clone() Event {
	e.Payload = append(json.RawMessage(nil), e.Payload...)
	e.Audience = append([]string(nil), e.Audience...)
	return e
}

// PlayerTag returns the audience tag for one player.
func PlayerTag(id player.ID) string {
	return player.AudienceTag(id)
}

// AlignmentTag returns the audience tag for an alignment.
func AlignmentTag(a role.Alignment) string {
	return "alignment:" + string(a)
}
