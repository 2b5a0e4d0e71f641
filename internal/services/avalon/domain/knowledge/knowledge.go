// Package knowledge derives the private information each player receives
// when roles are dealt.
//
// Compute is pure: the same roster always yields the same packets, so packets
// are never stored and can be recomputed from a restored roster.
package knowledge

import (
	"sort"

	"github.com/louisbranch/avalon/internal/services/avalon/domain/player"
	"github.com/louisbranch/avalon/internal/services/avalon/domain/role"
)

// Packet is what one player learns at setup.
type Packet struct {
	// Visible lists players whose allegiance is revealed exactly.
	Visible []player.ID `json:"visible_player_ids"`
	// Ambiguous lists groups whose members cannot be told apart.
	Ambiguous [][]player.ID `json:"ambiguous_player_id_groups"`
}

// HasInformation reports whether the packet reveals anything.
func (p Packet) HasInformation() bool {
	return len(p.Visible) > 0 || len(p.Ambiguous) > 0
}

// Compute returns the knowledge packet for every player.
func Compute(players []player.Player) map[player.ID]Packet {
	var minions, nonOberonMinions, percivalCandidates []player.Player
	for _, p := range players {
		if p.Alignment() == role.Minion {
			minions = append(minions, p)
			if !p.HasTag(role.TagOberon) {
				nonOberonMinions = append(nonOberonMinions, p)
			}
		}
		if p.HasTag(role.TagMerlin) || p.HasTag(role.TagMorgana) {
			percivalCandidates = append(percivalCandidates, p)
		}
	}

	out := make(map[player.ID]Packet, len(players))
	for _, p := range players {
		var packet Packet
		switch {
		case p.HasTag(role.TagMerlin):
			packet.Visible = sortedIDs(filter(minions, func(o player.Player) bool {
				return o.ID != p.ID && !o.HasTag(role.TagMordred)
			}))
		case p.Alignment() == role.Minion && !p.HasTag(role.TagOberon):
			packet.Visible = sortedIDs(filter(nonOberonMinions, func(o player.Player) bool {
				return o.ID != p.ID
			}))
		}
		if p.HasTag(role.TagPercival) {
			group := sortedIDs(filter(percivalCandidates, func(o player.Player) bool {
				return o.ID != p.ID
			}))
			if len(group) > 0 {
				packet.Ambiguous = [][]player.ID{group}
			}
		}
		out[p.ID] = packet
	}
	return out
}

func filter(players []player.Player, keep func(player.Player) bool) []player.Player {
	var out []player.Player
	for _, p := range players {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out
}

// sortedIDs orders by folded display name, then id.
func sortedIDs(players []player.Player) []player.ID {
	if len(players) == 0 {
		return nil
	}
	type keyed struct {
		name string
		id   player.ID
	}
	keys := make([]keyed, len(players))
	for i, p := range players {
		keys[i] = keyed{name: player.FoldName(p.DisplayName), id: p.ID}
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].name != keys[j].name {
			return keys[i].name < keys[j].name
		}
		return keys[i].id < keys[j].id
	})
	ids := make([]player.ID, len(keys))
	for i, k := range keys {
		ids[i] = k.id
	}
	return ids
}
