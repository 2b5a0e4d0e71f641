// Package player defines match participants and their registrations.
package player

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/louisbranch/avalon/internal/services/avalon/domain/role"
)

// ID identifies a seated player.
type ID = string

// Type describes who controls a seat.
type Type string

const (
	TypeHuman Type = "human"
	TypeAgent Type = "agent"
)

// ParseType resolves a player type name. Empty input is human.
func ParseType(value string) (Type, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", string(TypeHuman):
		return TypeHuman, true
	case string(TypeAgent):
		return TypeAgent, true
	}
	return "", false
}

// Player is a seated participant. The alignment is always derived from Role.
type Player struct {
	ID          ID      `json:"player_id"`
	DisplayName string  `json:"display_name"`
	Role        role.ID `json:"role"`
	Type        Type    `json:"player_type"`
}

// Alignment returns the team the player's role belongs to.
func (p Player) Alignment() role.Alignment {
	return role.AlignmentOf(p.Role)
}

// IsAgent reports whether the seat is automated.
func (p Player) IsAgent() bool {
	return p.Type == TypeAgent
}

// IsHuman reports whether the seat is human-controlled.
func (p Player) IsHuman() bool {
	return p.Type != TypeAgent
}

// HasTag reports whether the player's role carries tag.
func (p Player) HasTag(tag role.Tag) bool {
	return role.HasTag(p.Role, tag)
}

// Registration is a lobby entry before roles are dealt. PlayerID is optional.
type Registration struct {
	DisplayName string `json:"display_name" yaml:"name"`
	PlayerID    ID     `json:"player_id,omitempty" yaml:"id"`
	Type        Type   `json:"player_type,omitempty" yaml:"type"`
}

// FoldName normalizes a display name for case-insensitive comparison.
func FoldName(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}

// AudienceTag returns the event audience tag addressing one player.
func AudienceTag(id ID) string {
	return "player:" + id
}

// Index builds a lookup by player id.
func Index(players []Player) map[ID]Player {
	out := make(map[ID]Player, len(players))
	for _, p := range players {
		out[p.ID] = p
	}
	return out
}
