package configfile

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	apperrors "github.com/louisbranch/avalon/internal/platform/errors"
	"github.com/louisbranch/avalon/internal/services/avalon/domain/player"
	"github.com/louisbranch/avalon/internal/services/avalon/domain/role"
)

const fullDocument = `
players:
  - Alice
  - name: Bob
    type: agent
  - name: Carol
    id: carol
    type: Human
  - Dan
  - {name: Erin, type: agent}
  - Frank
  - Grace
optional_roles: [percival, morgana, mordred]
random_seed: 42
lady_of_the_lake_enabled: true
discussion:
  pre_vote: false
  max_statements: 1
briefing:
  mode: BATCH
  pause_after_each: true
`

func TestParseFullDocument(t *testing.T) {
	setup, err := Parse([]byte(fullDocument))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	cfg := setup.Config
	if cfg.PlayerCount() != 7 {
		t.Fatalf("player count = %d, want 7", cfg.PlayerCount())
	}
	wantRoles := []role.ID{role.Merlin, role.Assassin, role.Percival, role.Morgana, role.Mordred, role.LoyalServant, role.LoyalServant}
	if !reflect.DeepEqual(cfg.Roles(), wantRoles) {
		t.Fatalf("roles = %v, want %v", cfg.Roles(), wantRoles)
	}
	if seed, ok := cfg.Seed(); !ok || seed != 42 {
		t.Fatalf("seed = %d, %v", seed, ok)
	}
	if !cfg.LadyOfTheLake() {
		t.Fatal("lady of the lake not enabled")
	}
	d := cfg.Discussion()
	if !d.Enabled || !d.PreProposal || d.PreVote || d.MaxStatementsPerPhase != 1 {
		t.Fatalf("discussion = %+v", d)
	}

	wantRegs := []player.Registration{
		{DisplayName: "Alice", Type: player.TypeHuman},
		{DisplayName: "Bob", Type: player.TypeAgent},
		{DisplayName: "Carol", PlayerID: "carol", Type: player.TypeHuman},
		{DisplayName: "Dan", Type: player.TypeHuman},
		{DisplayName: "Erin", Type: player.TypeAgent},
		{DisplayName: "Frank", Type: player.TypeHuman},
		{DisplayName: "Grace", Type: player.TypeHuman},
	}
	if !reflect.DeepEqual(setup.Registrations, wantRegs) {
		t.Fatalf("registrations = %+v", setup.Registrations)
	}
	if setup.Briefing != (Briefing{Mode: BriefingBatch, PauseAfterEach: true}) {
		t.Fatalf("briefing = %+v", setup.Briefing)
	}
}

func TestParseDefaults(t *testing.T) {
	setup, err := Parse([]byte("players: [A, B, C, D, E]\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, ok := setup.Config.Seed(); ok {
		t.Fatal("unexpected seed")
	}
	if setup.Briefing.Mode != BriefingSequential {
		t.Fatalf("briefing mode = %s", setup.Briefing.Mode)
	}
	if d := setup.Config.Discussion(); !d.Enabled || d.MaxStatementsPerPhase != 2 {
		t.Fatalf("discussion = %+v", d)
	}
	wantRoles := []role.ID{role.Merlin, role.Assassin, role.LoyalServant, role.LoyalServant, role.MinionOfMordred}
	if !reflect.DeepEqual(setup.Config.Roles(), wantRoles) {
		t.Fatalf("roles = %v", setup.Config.Roles())
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		code apperrors.Code
		want string
	}{
		{name: "empty", doc: "", code: apperrors.CodeConfigFile, want: "YAML mapping"},
		{name: "list root", doc: "- a\n- b\n", code: apperrors.CodeConfigFile, want: "YAML mapping"},
		{name: "bad yaml", doc: "players: [a, b\n", code: apperrors.CodeConfigFile, want: "Invalid YAML"},
		{name: "no players", doc: "random_seed: 1\n", code: apperrors.CodeConfigFile, want: "'players'"},
		{name: "missing name", doc: "players:\n  - type: agent\n", code: apperrors.CodeConfigFile, want: "missing 'name'"},
		{name: "bad type", doc: "players:\n  - {name: A, type: robot}\n", code: apperrors.CodeConfigFile, want: "invalid type"},
		{name: "bad seed", doc: "players: [A, B, C, D, E]\nrandom_seed: soon\n", code: apperrors.CodeConfigFile, want: "Invalid config"},
		{name: "unknown role", doc: "players: [A, B, C, D, E]\noptional_roles: [jester]\n", code: apperrors.CodeConfigFile, want: "Unknown role type: jester"},
		{name: "bad briefing", doc: "players: [A, B, C, D, E]\nbriefing: {mode: whisper}\n", code: apperrors.CodeConfigFile, want: "Invalid briefing mode"},
		{name: "too few players", doc: "players: [A, B, C]\n", code: apperrors.CodeConfigPlayerCount},
		{name: "role overflow", doc: "players: [A, B, C, D, E]\noptional_roles: [morgana, mordred]\n", code: apperrors.CodeConfigRoleOverflow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			if !apperrors.IsConfiguration(err) {
				t.Fatalf("error = %v, want configuration error", err)
			}
			if got := apperrors.CodeOf(err); got != tt.code {
				t.Fatalf("code = %s, want %s (%v)", got, tt.code, err)
			}
			if tt.want != "" && !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error = %q, want it to mention %q", err.Error(), tt.want)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "game.yaml")
	if err := os.WriteFile(path, []byte(fullDocument), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	setup, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(setup.Registrations) != 7 {
		t.Fatalf("registrations = %d", len(setup.Registrations))
	}

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	if !errors.Is(err, os.ErrNotExist) || !apperrors.IsConfiguration(err) {
		t.Fatalf("missing file error = %v", err)
	}
}
