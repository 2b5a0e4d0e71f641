// Package rules builds validated match configurations and the per-round
// mission table.
package rules

import (
	"strconv"

	apperrors "github.com/louisbranch/avalon/internal/platform/errors"
)

// Rounds is the number of missions in a match.
const Rounds = 5

var teamSizes = map[int][Rounds]int{
	5:  {2, 3, 2, 3, 3},
	6:  {2, 3, 4, 3, 4},
	7:  {2, 3, 3, 4, 4},
	8:  {3, 4, 4, 5, 5},
	9:  {3, 4, 4, 5, 5},
	10: {3, 4, 4, 5, 5},
}

// MissionConfig holds team sizes and fail thresholds per round.
type MissionConfig struct {
	PlayerCount   int         `json:"player_count"`
	TeamSizes     [Rounds]int `json:"team_sizes"`
	RequiredFails [Rounds]int `json:"required_fail_counts"`
}

// MissionConfigFor returns the mission table for playerCount.
func MissionConfigFor(playerCount int) (MissionConfig, error) {
	sizes, ok := teamSizes[playerCount]
	if !ok {
		return MissionConfig{}, apperrors.WithMetadata(apperrors.CodeConfigPlayerCount,
			"Unsupported player count: "+strconv.Itoa(playerCount),
			map[string]string{"player_count": strconv.Itoa(playerCount)})
	}
	fourth := 1
	if playerCount >= 7 {
		fourth = 2
	}
	return MissionConfig{
		PlayerCount:   playerCount,
		TeamSizes:     sizes,
		RequiredFails: [Rounds]int{1, 1, 1, fourth, 1},
	}, nil
}

// TeamSize returns the team size for a 1-based round, or 0 when out of range.
func (m MissionConfig) TeamSize(round int) int {
	if round < 1 || round > Rounds {
		return 0
	}
	return m.TeamSizes[round-1]
}

// RequiredFailCount returns the fail threshold for a 1-based round, or 0 when
// out of range.
func (m MissionConfig) RequiredFailCount(round int) int {
	if round < 1 || round > Rounds {
		return 0
	}
	return m.RequiredFails[round-1]
}
