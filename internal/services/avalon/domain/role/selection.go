package role

import (
	"strconv"

	apperrors "github.com/louisbranch/avalon/internal/platform/errors"
)

// MinPlayers and MaxPlayers bound the supported table sizes.
const (
	MinPlayers = 5
	MaxPlayers = 10
)

var alignmentCounts = map[int][2]int{
	5:  {3, 2},
	6:  {4, 2},
	7:  {4, 3},
	8:  {5, 3},
	9:  {6, 3},
	10: {6, 4},
}

var uniqueRoles = []ID{Merlin, Percival, Assassin, Morgana, Mordred, Oberon}

var defaultRoles = map[int][]ID{
	5:  {Merlin, Percival, LoyalServant, Assassin, Morgana},
	6:  {Merlin, Percival, LoyalServant, LoyalServant, Assassin, Morgana},
	7:  {Merlin, Percival, LoyalServant, LoyalServant, Assassin, Morgana, Mordred},
	8:  {Merlin, Percival, LoyalServant, LoyalServant, LoyalServant, Assassin, Morgana, Mordred},
	9:  {Merlin, Percival, LoyalServant, LoyalServant, LoyalServant, LoyalServant, Assassin, Morgana, Mordred},
	10: {Merlin, Percival, LoyalServant, LoyalServant, LoyalServant, LoyalServant, Assassin, Morgana, Mordred, Oberon},
}

// ExpectedAlignmentCounts returns the official resistance and minion counts
// for playerCount.
func ExpectedAlignmentCounts(playerCount int) (resistance, minion int, ok bool) {
	counts, ok := alignmentCounts[playerCount]
	if !ok {
		return 0, 0, false
	}
	return counts[0], counts[1], true
}

// SupportedPlayerCount reports whether playerCount has an official table.
func SupportedPlayerCount(playerCount int) bool {
	_, ok := alignmentCounts[playerCount]
	return ok
}

func unsupportedPlayerCount(playerCount int) error {
	return apperrors.WithMetadata(apperrors.CodeConfigPlayerCount,
		"Unsupported player count: "+strconv.Itoa(playerCount),
		map[string]string{"player_count": strconv.Itoa(playerCount)})
}

// DefaultRoles returns the official default role set for playerCount.
func DefaultRoles(playerCount int) ([]ID, error) {
	roles, ok := defaultRoles[playerCount]
	if !ok {
		return nil, unsupportedPlayerCount(playerCount)
	}
	return append([]ID(nil), roles...), nil
}

// ValidateSelection checks a role multiset against the official quotas and
// role dependencies.
func ValidateSelection(playerCount int, roles []ID) error {
	expectedResistance, expectedMinion, ok := ExpectedAlignmentCounts(playerCount)
	if !ok {
		return unsupportedPlayerCount(playerCount)
	}
	if len(roles) != playerCount {
		return apperrors.Newf(apperrors.CodeConfigRoleCount,
			"Expected %d roles, received %d", playerCount, len(roles))
	}

	counts := make(map[ID]int, len(roles))
	resistance, minion := 0, 0
	for _, id := range roles {
		def, ok := definitions[id]
		if !ok {
			return apperrors.Newf(apperrors.CodeConfigUnknownRole, "Unknown role %q", id)
		}
		counts[id]++
		switch def.Alignment {
		case Resistance:
			resistance++
		case Minion:
			minion++
		}
	}

	if resistance != expectedResistance {
		return apperrors.Newf(apperrors.CodeConfigAlignmentCount,
			"Resistance role count mismatch: expected %d, received %d", expectedResistance, resistance)
	}
	if minion != expectedMinion {
		return apperrors.Newf(apperrors.CodeConfigAlignmentCount,
			"Minion role count mismatch: expected %d, received %d", expectedMinion, minion)
	}

	for _, id := range uniqueRoles {
		if counts[id] > 1 {
			return apperrors.Newf(apperrors.CodeConfigDuplicateRole, "Role %s may only appear once", id)
		}
	}

	if counts[Merlin] > 0 && counts[Assassin] == 0 {
		return apperrors.New(apperrors.CodeConfigRoleDependency, "Merlin requires the Assassin to be present")
	}
	if counts[Percival] > 0 && counts[Merlin] == 0 {
		return apperrors.New(apperrors.CodeConfigRoleDependency, "Percival requires Merlin to be present")
	}
	return nil
}

// BuildRoleList assembles a valid role multiset: Merlin and Assassin, then
// the optional specials in order, padded with generic roles.
//
// Merlin, Assassin and the generic roles are skipped when listed as optional.
func BuildRoleList(playerCount int, optional []ID) ([]ID, error) {
	expectedResistance, expectedMinion, ok := ExpectedAlignmentCounts(playerCount)
	if !ok {
		return nil, unsupportedPlayerCount(playerCount)
	}

	roles := []ID{Merlin, Assassin}
	resistance, minion := 1, 1
	seen := map[ID]bool{Merlin: true, Assassin: true}

	for _, id := range optional {
		switch id {
		case Merlin, Assassin, LoyalServant, MinionOfMordred:
			continue
		}
		def, ok := definitions[id]
		if !ok {
			return nil, apperrors.Newf(apperrors.CodeConfigUnknownRole, "Unknown role %q", id)
		}
		if seen[id] {
			return nil, apperrors.Newf(apperrors.CodeConfigDuplicateRole, "Role %s specified multiple times", id)
		}
		if def.Alignment == Resistance {
			if resistance >= expectedResistance {
				return nil, apperrors.Newf(apperrors.CodeConfigRoleOverflow,
					"Too many resistance roles for %d players", playerCount)
			}
			resistance++
		} else {
			if minion >= expectedMinion {
				return nil, apperrors.Newf(apperrors.CodeConfigRoleOverflow,
					"Too many minion roles for %d players", playerCount)
			}
			minion++
		}
		seen[id] = true
		roles = append(roles, id)
	}

	for ; resistance < expectedResistance; resistance++ {
		roles = append(roles, LoyalServant)
	}
	for ; minion < expectedMinion; minion++ {
		roles = append(roles, MinionOfMordred)
	}
	return roles, nil
}

// CountAlignments tallies roles by alignment.
func CountAlignments(roles []ID) (resistance, minion int) {
	for _, id := range roles {
		switch AlignmentOf(id) {
		case Resistance:
			resistance++
		case Minion:
			minion++
		}
	}
	return resistance, minion
}
