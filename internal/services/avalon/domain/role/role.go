package role

import (
	"sort"
	"strings"
)

// ID identifies a role.
type ID string

const (
	Merlin          ID = "merlin"
	Percival        ID = "percival"
	LoyalServant    ID = "loyal_servant_of_arthur"
	Assassin        ID = "assassin"
	Morgana         ID = "morgana"
	Mordred         ID = "mordred"
	Oberon          ID = "oberon"
	MinionOfMordred ID = "minion_of_mordred"
)

// Alignment is the team a role plays for.
type Alignment string

const (
	Resistance Alignment = "resistance"
	Minion     Alignment = "minion"
)

// Valid reports whether a is a known alignment.
func (a Alignment) Valid() bool {
	return a == Resistance || a == Minion
}

// Tag marks a special role trait.
type Tag string

const (
	TagMerlin         Tag = "merlin"
	TagPercival       Tag = "percival"
	TagAssassin       Tag = "assassin"
	TagMorgana        Tag = "morgana"
	TagMordred        Tag = "mordred"
	TagOberon         Tag = "oberon"
	TagGenericServant Tag = "generic_servant"
	TagGenericMinion  Tag = "generic_minion"
	// TagAssassinTarget marks the role the Assassin must name to win.
	TagAssassinTarget Tag = "assassin_target"
)

// Definition is the catalog entry for one role.
type Definition struct {
	ID        ID
	Alignment Alignment
	Tags      []Tag
}

// HasTag reports whether the definition carries tag.
func (d Definition) HasTag(tag Tag) bool {
	for _, t := range d.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

var definitions = map[ID]Definition{
	Merlin:          {ID: Merlin, Alignment: Resistance, Tags: []Tag{TagMerlin, TagAssassinTarget}},
	Percival:        {ID: Percival, Alignment: Resistance, Tags: []Tag{TagPercival}},
	LoyalServant:    {ID: LoyalServant, Alignment: Resistance, Tags: []Tag{TagGenericServant}},
	Assassin:        {ID: Assassin, Alignment: Minion, Tags: []Tag{TagAssassin}},
	Morgana:         {ID: Morgana, Alignment: Minion, Tags: []Tag{TagMorgana}},
	Mordred:         {ID: Mordred, Alignment: Minion, Tags: []Tag{TagMordred}},
	Oberon:          {ID: Oberon, Alignment: Minion, Tags: []Tag{TagOberon}},
	MinionOfMordred: {ID: MinionOfMordred, Alignment: Minion, Tags: []Tag{TagGenericMinion}},
}

// shortNames are accepted by ParseID in addition to canonical ids.
var shortNames = map[string]ID{
	"loyal_servant": LoyalServant,
	"servant":       LoyalServant,
	"minion":        MinionOfMordred,
}

// Lookup returns the definition for id.
func Lookup(id ID) (Definition, bool) {
	def, ok := definitions[id]
	if !ok {
		return Definition{}, false
	}
	def.Tags = append([]Tag(nil), def.Tags...)
	return def, true
}

// Known reports whether id is in the catalog.
func Known(id ID) bool {
	_, ok := definitions[id]
	return ok
}

// AlignmentOf returns the alignment of id, or the empty alignment when the
// role is unknown.
func AlignmentOf(id ID) Alignment {
	return definitions[id].Alignment
}

// HasTag reports whether role id carries tag.
func HasTag(id ID, tag Tag) bool {
	return definitions[id].HasTag(tag)
}

// IsMinion reports whether id plays for the Minions of Mordred.
func IsMinion(id ID) bool {
	return AlignmentOf(id) == Minion
}

// IsResistance reports whether id plays for the Resistance.
func IsResistance(id ID) bool {
	return AlignmentOf(id) == Resistance
}

// All returns every role id in the catalog, sorted.
func All() []ID {
	ids := make([]ID, 0, len(definitions))
	for id := range definitions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ParseID resolves a role name, accepting canonical ids and short aliases.
func ParseID(name string) (ID, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	key = strings.ReplaceAll(key, "-", "_")
	key = strings.ReplaceAll(key, " ", "_")
	if id := ID(key); Known(id) {
		return id, true
	}
	id, ok := shortNames[key]
	return id, ok
}
