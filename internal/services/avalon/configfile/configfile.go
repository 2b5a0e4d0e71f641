// Package configfile loads a match setup from a YAML document.
//
// A document lists the players, optional special roles, discussion settings,
// briefing delivery and an optional seed:
//
//	players:
//	  - Alice
//	  - {name: Bob, type: agent}
//	optional_roles: [percival, morgana]
//	random_seed: 42
//	discussion:
//	  max_statements: 1
//	briefing:
//	  mode: batch
package configfile

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	apperrors "github.com/louisbranch/avalon/internal/platform/errors"
	"github.com/louisbranch/avalon/internal/services/avalon/domain/discussion"
	"github.com/louisbranch/avalon/internal/services/avalon/domain/player"
	"github.com/louisbranch/avalon/internal/services/avalon/domain/role"
	"github.com/louisbranch/avalon/internal/services/avalon/domain/rules"
)

// BriefingMode controls how setup briefings are delivered to the table.
type BriefingMode string

const (
	BriefingSequential BriefingMode = "sequential"
	BriefingBatch      BriefingMode = "batch"
)

// Briefing holds briefing delivery options.
type Briefing struct {
	Mode            BriefingMode
	PauseBeforeEach bool
	PauseAfterEach  bool
}

// Setup is a validated setup document.
type Setup struct {
	Config        rules.Config
	Registrations []player.Registration
	Briefing      Briefing
}

type document struct {
	Players       []playerEntry     `yaml:"players"`
	OptionalRoles []string          `yaml:"optional_roles"`
	RandomSeed    *int64            `yaml:"random_seed"`
	LadyOfTheLake bool              `yaml:"lady_of_the_lake_enabled"`
	Discussion    discussion.Config `yaml:"discussion"`
	Briefing      briefingDoc       `yaml:"briefing"`
}

type briefingDoc struct {
	Mode            string `yaml:"mode"`
	PauseBeforeEach bool   `yaml:"pause_before_each"`
	PauseAfterEach  bool   `yaml:"pause_after_each"`
}

// playerEntry accepts either a bare name or a {name, id, type} mapping.
type playerEntry struct {
	player.Registration
}

func (p *playerEntry) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		p.DisplayName = node.Value
		p.Type = player.TypeHuman
		return nil
	case yaml.MappingNode:
		var raw struct {
			Name string `yaml:"name"`
			ID   string `yaml:"id"`
			Type string `yaml:"type"`
		}
		if err := node.Decode(&raw); err != nil {
			return err
		}
		if strings.TrimSpace(raw.Name) == "" {
			return fmt.Errorf("player entry on line %d missing 'name' field", node.Line)
		}
		typ, ok := player.ParseType(raw.Type)
		if !ok {
			return fmt.Errorf("player %s: invalid type '%s'. Must be 'human' or 'agent'", raw.Name, raw.Type)
		}
		p.DisplayName = raw.Name
		p.PlayerID = raw.ID
		p.Type = typ
		return nil
	}
	return fmt.Errorf("player entry on line %d must be a string or mapping with 'name' field", node.Line)
}

// Load reads and parses the setup document at path.
func Load(path string) (Setup, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Setup{}, apperrors.Wrap(apperrors.CodeConfigFile, "Config file not found: "+path, err)
		}
		return Setup{}, apperrors.Wrap(apperrors.CodeConfigFile, "Read config file "+path, err)
	}
	return Parse(data)
}

// Parse validates a setup document.
func Parse(data []byte) (Setup, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return Setup{}, apperrors.Wrap(apperrors.CodeConfigFile, "Invalid YAML file", err)
	}
	if len(root.Content) == 0 || root.Content[0].Kind != yaml.MappingNode {
		return Setup{}, apperrors.New(apperrors.CodeConfigFile, "Config file must contain a YAML mapping")
	}

	doc := document{
		Discussion: discussion.DefaultConfig(),
		Briefing:   briefingDoc{Mode: string(BriefingSequential)},
	}
	if err := root.Content[0].Decode(&doc); err != nil {
		return Setup{}, apperrors.Wrap(apperrors.CodeConfigFile, "Invalid config file: "+err.Error(), err)
	}

	if len(doc.Players) == 0 {
		return Setup{}, apperrors.New(apperrors.CodeConfigFile, "Config file must specify 'players' list")
	}
	registrations := make([]player.Registration, len(doc.Players))
	for i, entry := range doc.Players {
		registrations[i] = entry.Registration
	}

	optional := make([]role.ID, 0, len(doc.OptionalRoles))
	for _, name := range doc.OptionalRoles {
		id, ok := role.ParseID(name)
		if !ok {
			return Setup{}, apperrors.Newf(apperrors.CodeConfigFile,
				"Unknown role type: %s. Available: %s", name, availableRoles())
		}
		optional = append(optional, id)
	}
	roles, err := role.BuildRoleList(len(registrations), optional)
	if err != nil {
		return Setup{}, err
	}

	briefing, err := parseBriefing(doc.Briefing)
	if err != nil {
		return Setup{}, err
	}

	opts := []rules.Option{
		rules.WithDiscussion(doc.Discussion),
		rules.WithLadyOfTheLake(doc.LadyOfTheLake),
	}
	if doc.RandomSeed != nil {
		opts = append(opts, rules.WithSeed(*doc.RandomSeed))
	}
	cfg, err := rules.NewConfig(len(registrations), roles, opts...)
	if err != nil {
		return Setup{}, err
	}
	return Setup{Config: cfg, Registrations: registrations, Briefing: briefing}, nil
}

func parseBriefing(doc briefingDoc) (Briefing, error) {
	mode := BriefingMode(strings.ToLower(strings.TrimSpace(doc.Mode)))
	switch mode {
	case BriefingSequential, BriefingBatch:
	default:
		return Briefing{}, apperrors.Newf(apperrors.CodeConfigFile,
			"Invalid briefing mode: %s. Must be 'sequential' or 'batch'", doc.Mode)
	}
	return Briefing{Mode: mode, PauseBeforeEach: doc.PauseBeforeEach, PauseAfterEach: doc.PauseAfterEach}, nil
}

func availableRoles() string {
	names := make([]string, 0, len(role.All()))
	for _, id := range role.All() {
		names = append(names, string(id))
	}
	return strings.Join(names, ", ")
}
