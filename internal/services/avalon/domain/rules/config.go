package rules

import (
	"github.com/louisbranch/avalon/internal/services/avalon/domain/discussion"
	"github.com/louisbranch/avalon/internal/services/avalon/domain/role"
)

// Config is an immutable, validated match configuration. Build it with
// NewConfig or DefaultConfig.
type Config struct {
	playerCount   int
	roles         []role.ID
	seed          *int64
	discussion    discussion.Config
	ladyOfTheLake bool
	missions      MissionConfig
}

// Option adjusts a Config under construction.
type Option func(*Config)

// WithSeed stores a random seed used by setup and card obfuscation.
func WithSeed(seed int64) Option {
	return func(c *Config) {
		c.seed = &seed
	}
}

// WithDiscussion replaces the discussion settings.
func WithDiscussion(d discussion.Config) Option {
	return func(c *Config) {
		c.discussion = d
	}
}

// WithLadyOfTheLake records the Lady of the Lake flag. The mechanic itself is
// not played by the engine.
func WithLadyOfTheLake(enabled bool) Option {
	return func(c *Config) {
		c.ladyOfTheLake = enabled
	}
}

// NewConfig validates roles for playerCount and returns a Config.
func NewConfig(playerCount int, roles []role.ID, opts ...Option) (Config, error) {
	if err := role.ValidateSelection(playerCount, roles); err != nil {
		return Config{}, err
	}
	missions, err := MissionConfigFor(playerCount)
	if err != nil {
		return Config{}, err
	}
	cfg := Config{
		playerCount: playerCount,
		roles:       append([]role.ID(nil), roles...),
		discussion:  discussion.DefaultConfig(),
		missions:    missions,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg, nil
}

// DefaultConfig returns the official default role set for playerCount.
func DefaultConfig(playerCount int, opts ...Option) (Config, error) {
	roles, err := role.DefaultRoles(playerCount)
	if err != nil {
		return Config{}, err
	}
	return NewConfig(playerCount, roles, opts...)
}

// WithRoles returns a copy of c with a different, revalidated role selection.
func (c Config) WithRoles(roles []role.ID) (Config, error) {
	opts := []Option{WithDiscussion(c.discussion), WithLadyOfTheLake(c.ladyOfTheLake)}
	if c.seed != nil {
		opts = append(opts, WithSeed(*c.seed))
	}
	return NewConfig(c.playerCount, roles, opts...)
}

// PlayerCount returns the number of seats.
func (c Config) PlayerCount() int { return c.playerCount }

// Roles returns a copy of the configured role multiset.
func (c Config) Roles() []role.ID { return append([]role.ID(nil), c.roles...) }

// Seed returns the configured seed, if any.
func (c Config) Seed() (int64, bool) {
	if c.seed == nil {
		return 0, false
	}
	return *c.seed, true
}

// SeedPtr returns a copy of the configured seed pointer.
func (c Config) SeedPtr() *int64 {
	if c.seed == nil {
		return nil
	}
	seed := *c.seed
	return &seed
}

// Discussion returns the discussion settings.
func (c Config) Discussion() discussion.Config { return c.discussion }

// LadyOfTheLake reports the stored Lady of the Lake flag.
func (c Config) LadyOfTheLake() bool { return c.ladyOfTheLake }

// Missions returns the mission table.
func (c Config) Missions() MissionConfig { return c.missions }

// AlignmentCounts returns the resistance and minion counts of the roles.
func (c Config) AlignmentCounts() (resistance, minion int) {
	return role.CountAlignments(c.roles)
}

// IsZero reports whether c was never built.
func (c Config) IsZero() bool { return c.playerCount == 0 }
