// Package snapshot captures a match as a flat JSON document and restores it.
//
// A snapshot holds the configuration, the serializable match state and the
// full event log. Restoring never re-deals roles and never re-shuffles stored
// mission cards.
package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	apperrors "github.com/louisbranch/avalon/internal/platform/errors"
	"github.com/louisbranch/avalon/internal/services/avalon/domain/core/encoding"
	"github.com/louisbranch/avalon/internal/services/avalon/domain/discussion"
	"github.com/louisbranch/avalon/internal/services/avalon/domain/event"
	"github.com/louisbranch/avalon/internal/services/avalon/domain/match"
	"github.com/louisbranch/avalon/internal/services/avalon/domain/role"
	"github.com/louisbranch/avalon/internal/services/avalon/domain/rules"
)

// Version is the current snapshot format.
const Version = 1

// Config is the serializable form of rules.Config.
type Config struct {
	PlayerCount   int               `json:"player_count"`
	Roles         []role.ID         `json:"roles"`
	Seed          *int64            `json:"random_seed,omitempty"`
	Discussion    discussion.Config `json:"discussion"`
	LadyOfTheLake bool              `json:"lady_of_the_lake_enabled"`
}

// ConfigOf flattens cfg.
func ConfigOf(cfg rules.Config) Config {
	return Config{
		PlayerCount:   cfg.PlayerCount(),
		Roles:         cfg.Roles(),
		Seed:          cfg.SeedPtr(),
		Discussion:    cfg.Discussion(),
		LadyOfTheLake: cfg.LadyOfTheLake(),
	}
}

// Rules revalidates the configuration.
func (c Config) Rules() (rules.Config, error) {
	opts := []rules.Option{rules.WithDiscussion(c.Discussion), rules.WithLadyOfTheLake(c.LadyOfTheLake)}
	if c.Seed != nil {
		opts = append(opts, rules.WithSeed(*c.Seed))
	}
	return rules.NewConfig(c.PlayerCount, c.Roles, opts...)
}

// Snapshot is a complete, restorable picture of one match.
type Snapshot struct {
	Version int           `json:"version"`
	Config  Config        `json:"config"`
	State   match.Data    `json:"state"`
	Events  []event.Event `json:"events"`
}

// Capture copies state and its event log into a snapshot.
func Capture(state *match.State) Snapshot {
	return Snapshot{
		Version: Version,
		Config:  ConfigOf(state.Config()),
		State:   state.Data(),
		Events:  state.Log().Events(),
	}
}

// Restore rebuilds a match from snap. Log options apply to the restored
// event log.
func Restore(snap Snapshot, opts ...event.LogOption) (*match.State, error) {
	if snap.Version != Version {
		return nil, apperrors.Newf(apperrors.CodeSnapshotInvalid, "unsupported snapshot version %d", snap.Version)
	}
	cfg, err := snap.Config.Rules()
	if err != nil {
		return nil, invalid("snapshot configuration", err)
	}
	if err := validateEvents(snap.Events); err != nil {
		return nil, err
	}
	log := event.FromEvents(snap.Events, opts...)
	state, err := match.FromData(cfg, snap.State, match.WithLog(log))
	if err != nil {
		return nil, invalid("snapshot state", err)
	}
	return state, nil
}

func invalid(message string, err error) error {
	if apperrors.CodeOf(err) == apperrors.CodeSnapshotInvalid {
		return err
	}
	return apperrors.Wrap(apperrors.CodeSnapshotInvalid, message, err)
}

func validateEvents(events []event.Event) error {
	var last uint64
	for i, e := range events {
		if e.Type == "" {
			return apperrors.Newf(apperrors.CodeSnapshotInvalid, "event %d has no type", i)
		}
		if e.Seq <= last {
			return apperrors.Newf(apperrors.CodeSnapshotInvalid, "event %d sequence %d is not increasing", i, e.Seq)
		}
		if e.Visibility != event.Public && e.Visibility != event.Private {
			return apperrors.Newf(apperrors.CodeSnapshotInvalid, "event %d has unknown visibility %q", i, e.Visibility)
		}
		last = e.Seq
	}
	return nil
}

// Hash returns the content hash of the snapshot's canonical JSON.
func (s Snapshot) Hash() (string, error) {
	return encoding.ContentHash(s)
}

// Encode renders the snapshot as compact JSON.
func Encode(snap Snapshot) ([]byte, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

// Decode parses a snapshot. Unknown fields are rejected.
func Decode(data []byte) (Snapshot, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var snap Snapshot
	if err := dec.Decode(&snap); err != nil {
		return Snapshot{}, apperrors.Wrap(apperrors.CodeSnapshotInvalid, "decode snapshot", err)
	}
	return snap, nil
}

// Save writes the snapshot to path.
func Save(path string, snap Snapshot) error {
	data, err := Encode(snap)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot %s: %w", path, err)
	}
	return nil
}

// Load reads a snapshot from path.
func Load(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read snapshot %s: %w", path, err)
	}
	return Decode(data)
}
