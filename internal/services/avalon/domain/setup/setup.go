// Package setup deals roles to registered players and prepares their
// private briefings.
package setup

import (
	"fmt"
	"strings"

	apperrors "github.com/louisbranch/avalon/internal/platform/errors"
	"github.com/louisbranch/avalon/internal/random"
	"github.com/louisbranch/avalon/internal/services/avalon/domain/knowledge"
	"github.com/louisbranch/avalon/internal/services/avalon/domain/player"
	"github.com/louisbranch/avalon/internal/services/avalon/domain/role"
	"github.com/louisbranch/avalon/internal/services/avalon/domain/rules"
)

// Briefing is a player's private setup packet.
type Briefing struct {
	Player    player.Player    `json:"player"`
	Knowledge knowledge.Packet `json:"knowledge"`
}

// Result is the outcome of a successful setup.
type Result struct {
	Config    rules.Config
	Players   []player.Player
	Briefings []Briefing
	// Seed is the seed used for the shuffle, nil when none was supplied.
	Seed *int64
}

// PublicLobby returns display names in seat order.
func (r Result) PublicLobby() []string {
	names := make([]string, len(r.Players))
	for i, p := range r.Players {
		names[i] = p.DisplayName
	}
	return names
}

// KnowledgeByPlayer maps player ids to their knowledge packets.
func (r Result) KnowledgeByPlayer() map[player.ID]knowledge.Packet {
	out := make(map[player.ID]knowledge.Packet, len(r.Briefings))
	for _, b := range r.Briefings {
		out[b.Player.ID] = b.Knowledge
	}
	return out
}

// KnowledgeFor returns the packet for playerID.
func (r Result) KnowledgeFor(playerID player.ID) (knowledge.Packet, bool) {
	for _, b := range r.Briefings {
		if b.Player.ID == playerID {
			return b.Knowledge, true
		}
	}
	return knowledge.Packet{}, false
}

type options struct {
	seed *int64
}

// Option configures Perform.
type Option func(*options)

// WithSeed overrides the configuration seed for the shuffle.
func WithSeed(seed int64) Option {
	return func(o *options) {
		o.seed = &seed
	}
}

// Perform validates registrations, shuffles the configured roles and assigns
// them to players in registration order.
func Perform(cfg rules.Config, registrations []player.Registration, opts ...Option) (Result, error) {
	if cfg.IsZero() {
		return Result{}, apperrors.New(apperrors.CodeConfigRoster, "configuration is required")
	}
	if len(registrations) != cfg.PlayerCount() {
		return Result{}, apperrors.Newf(apperrors.CodeConfigRegistration,
			"Player registration count does not match configuration: expected %d, received %d",
			cfg.PlayerCount(), len(registrations))
	}
	normalized, err := normalize(registrations)
	if err != nil {
		return Result{}, err
	}

	var o options
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	seed := o.seed
	if seed == nil {
		seed = cfg.SeedPtr()
	}
	rng, err := random.FromOptional(seed)
	if err != nil {
		return Result{}, apperrors.Wrap(apperrors.CodeUnknown, "seed role shuffle", err)
	}

	roles := cfg.Roles()
	rng.Shuffle(len(roles), func(i, j int) { roles[i], roles[j] = roles[j], roles[i] })

	assigned := make(map[player.ID]bool, len(normalized))
	for _, reg := range normalized {
		if reg.PlayerID != "" {
			assigned[reg.PlayerID] = true
		}
	}

	players := make([]player.Player, len(normalized))
	for i, reg := range normalized {
		id := reg.PlayerID
		if id == "" {
			id = generateID(i, assigned)
		}
		assigned[id] = true
		players[i] = player.Player{
			ID:          id,
			DisplayName: reg.DisplayName,
			Role:        roles[i],
			Type:        reg.Type,
		}
	}

	packets := knowledge.Compute(players)
	briefings := make([]Briefing, len(players))
	for i, p := range players {
		briefings[i] = Briefing{Player: p, Knowledge: packets[p.ID]}
	}

	return Result{
		Config:    cfg,
		Players:   players,
		Briefings: briefings,
		Seed:      seed,
	}, nil
}

func normalize(registrations []player.Registration) ([]player.Registration, error) {
	seenNames := make(map[string]bool, len(registrations))
	seenIDs := make(map[player.ID]bool, len(registrations))
	out := make([]player.Registration, 0, len(registrations))

	for _, reg := range registrations {
		name := strings.TrimSpace(reg.DisplayName)
		if name == "" {
			return nil, apperrors.New(apperrors.CodeConfigRegistration, "Player display names must be non-empty")
		}
		folded := player.FoldName(name)
		if seenNames[folded] {
			return nil, apperrors.WithMetadata(apperrors.CodeConfigRegistration,
				"Duplicate player name detected: "+name, map[string]string{"display_name": name})
		}
		seenNames[folded] = true

		typ := reg.Type
		if typ == "" {
			typ = player.TypeHuman
		}
		next := player.Registration{DisplayName: name, Type: typ}
		if reg.PlayerID != "" {
			id := strings.TrimSpace(reg.PlayerID)
			if id == "" {
				return nil, apperrors.New(apperrors.CodeConfigRegistration,
					"Player identifiers must be non-empty when provided")
			}
			if seenIDs[id] {
				return nil, apperrors.WithMetadata(apperrors.CodeConfigRegistration,
					"Duplicate player identifier detected: "+id, map[string]string{"player_id": id})
			}
			seenIDs[id] = true
			next.PlayerID = id
		}
		out = append(out, next)
	}
	return out, nil
}

func generateID(index int, existing map[player.ID]bool) player.ID {
	base := fmt.Sprintf("player_%d", index+1)
	candidate := base
	for suffix := 2; existing[candidate]; suffix++ {
		candidate = fmt.Sprintf("%s_%d", base, suffix)
	}
	return candidate
}

// RoleCounts tallies the dealt roles, for diagnostics.
func (r Result) RoleCounts() map[role.ID]int {
	out := make(map[role.ID]int)
	for _, p := range r.Players {
		out[p.Role]++
	}
	return out
}
