// Package avalon wires the avalon command: it loads a setup document, deals
// roles, plays the match with scripted or bot players and reports the result.
package avalon

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"

	"github.com/louisbranch/avalon/internal/platform/cmd"
	apperrors "github.com/louisbranch/avalon/internal/platform/errors"
	"github.com/louisbranch/avalon/internal/random"
	"github.com/louisbranch/avalon/internal/services/avalon/app"
	"github.com/louisbranch/avalon/internal/services/avalon/configfile"
	"github.com/louisbranch/avalon/internal/services/avalon/domain/decision"
	"github.com/louisbranch/avalon/internal/services/avalon/domain/match"
	"github.com/louisbranch/avalon/internal/services/avalon/domain/player"
	"github.com/louisbranch/avalon/internal/services/avalon/domain/setup"
	"github.com/louisbranch/avalon/internal/services/avalon/domain/snapshot"
	"github.com/louisbranch/avalon/internal/services/avalon/scenario"
	"github.com/louisbranch/avalon/internal/services/avalon/storage"
	"github.com/louisbranch/avalon/internal/services/avalon/storage/sqlite"
)

// Config holds avalon command configuration.
type Config struct {
	ConfigPath     string `env:"CONFIG_PATH" envDefault:"game.yaml"`
	DBPath         string `env:"DB_PATH"`
	ScenarioPath   string `env:"SCENARIO_PATH"`
	SnapshotPath   string `env:"SNAPSHOT_PATH"`
	Seed           *int64 `env:"SEED"`
	MatchID        string `env:"MATCH_ID"`
	MaxRetries     int    `env:"MAX_RETRIES" envDefault:"3"`
	AutoFailPolicy string `env:"AUTO_FAIL_POLICY" envDefault:"ends_game"`
	ShowBriefings  bool   `env:"SHOW_BRIEFINGS"`
	Verbose        bool   `env:"VERBOSE"`
	Locale         string `env:"LOCALE" envDefault:"en-US"`
}

// ParseConfig reads AVALON_ environment defaults and then flags.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	cfg, err := cmd.ParseConfig(fs, args, bindFlags)
	if err != nil {
		return Config{}, err
	}
	if cfg.MaxRetries < 0 {
		return Config{}, fmt.Errorf("max retries must not be negative, got %d", cfg.MaxRetries)
	}
	if !match.AutoFailPolicy(cfg.AutoFailPolicy).Valid() {
		return Config{}, fmt.Errorf("unknown auto-fail policy %q", cfg.AutoFailPolicy)
	}
	return cfg, nil
}

func bindFlags(fs *flag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.ConfigPath, "config", cfg.ConfigPath, "path to the YAML game setup")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "path to a sqlite database for match persistence")
	fs.StringVar(&cfg.ScenarioPath, "scenario", cfg.ScenarioPath, "path to a Lua scenario scripting the players")
	fs.StringVar(&cfg.SnapshotPath, "snapshot", cfg.SnapshotPath, "write the final snapshot JSON to this path")
	fs.Func("seed", "random seed overriding the setup document's seed", func(value string) error {
		seed, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		cfg.Seed = &seed
		return nil
	})
	fs.StringVar(&cfg.MatchID, "match", cfg.MatchID, "match id; resumes the match when -db already holds it")
	fs.IntVar(&cfg.MaxRetries, "max-retries", cfg.MaxRetries, "re-prompts allowed after an invalid decision (0 disables them)")
	fs.StringVar(&cfg.AutoFailPolicy, "auto-fail", cfg.AutoFailPolicy, "five rejections policy: ends_game or continue")
	fs.BoolVar(&cfg.ShowBriefings, "briefings", cfg.ShowBriefings, "print every private briefing")
	fs.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "log every accepted action")
	fs.StringVar(&cfg.Locale, "locale", cfg.Locale, "locale for error messages")
}

// Run plays one match and writes a summary to out.
func Run(ctx context.Context, cfg Config, out io.Writer, errOut io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}
	logger := log.New(io.Discard, "", 0)
	if cfg.Verbose {
		logger = log.New(errOut, "", 0)
	}

	var store storage.Store
	if strings.TrimSpace(cfg.DBPath) != "" {
		sqlStore, err := sqlite.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open match store: %w", err)
		}
		defer sqlStore.Close()
		store = sqlStore
	}

	matchID := strings.TrimSpace(cfg.MatchID)
	if matchID == "" {
		matchID = app.NewMatchID()
	}

	state, resumed, err := loadOrStart(ctx, cfg, store, matchID, out)
	if err != nil {
		return err
	}
	if resumed {
		fmt.Fprintf(out, "Resuming match %s at round %d (%s)\n", matchID, state.Round(), state.Phase())
	} else {
		fmt.Fprintf(out, "Match %s: %s\n", matchID, strings.Join(lobby(state.Players()), ", "))
	}

	sources, err := buildSources(cfg, state)
	if err != nil {
		return err
	}
	retries := cfg.MaxRetries
	if retries == 0 {
		retries = app.NoRetries
	}
	runner := &app.Runner{
		Sources:    sources,
		Store:      store,
		Logger:     logger,
		MaxRetries: retries,
	}
	if err := runner.Play(ctx, matchID, state); err != nil {
		return fmt.Errorf("play match %s: %w", matchID, err)
	}

	if cfg.SnapshotPath != "" {
		if err := snapshot.Save(cfg.SnapshotPath, snapshot.Capture(state)); err != nil {
			return fmt.Errorf("write snapshot: %w", err)
		}
	}
	writeSummary(out, state)
	return nil
}

// Describe renders err for the terminal. Domain errors lead with their
// localized message and code.
func Describe(err error, locale string) string {
	if err == nil {
		return ""
	}
	code := apperrors.CodeOf(err)
	if code == apperrors.CodeUnknown {
		return err.Error()
	}
	return fmt.Sprintf("%s [%s]: %v", apperrors.LocalizedMessage(err, locale), code, err)
}

func loadOrStart(ctx context.Context, cfg Config, store storage.Store, matchID string, out io.Writer) (*match.State, bool, error) {
	if store != nil && strings.TrimSpace(cfg.MatchID) != "" {
		state, err := app.Resume(ctx, store, matchID)
		if err == nil {
			return state, true, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, false, err
		}
	}

	doc, err := configfile.Load(cfg.ConfigPath)
	if err != nil {
		return nil, false, err
	}
	var opts []setup.Option
	if cfg.Seed != nil {
		opts = append(opts, setup.WithSeed(*cfg.Seed))
	}
	result, err := setup.Perform(doc.Config, doc.Registrations, opts...)
	if err != nil {
		return nil, false, err
	}
	if cfg.ShowBriefings {
		writeBriefings(out, result, doc.Briefing)
	}
	state, err := match.FromSetup(result, match.WithAutoFailPolicy(match.AutoFailPolicy(cfg.AutoFailPolicy)))
	if err != nil {
		return nil, false, err
	}
	return state, false, nil
}

// buildSources scripts every seat from the Lua scenario when one is given;
// otherwise every seat is a bot.
func buildSources(cfg Config, state *match.State) (map[player.ID]decision.Source, error) {
	if cfg.ScenarioPath != "" {
		sc, err := scenario.LoadFile(cfg.ScenarioPath)
		if err != nil {
			return nil, err
		}
		return scenario.Sources(sc, state.Players()), nil
	}

	seed, ok := state.Seed()
	if !ok {
		fresh, err := random.NewSeed()
		if err != nil {
			return nil, err
		}
		seed = fresh
	}
	sources := make(map[player.ID]decision.Source)
	for i, p := range state.Players() {
		sources[p.ID] = decision.NewBot(seed + int64(i) + 1)
	}
	return sources, nil
}

func lobby(players []player.Player) []string {
	names := make([]string, len(players))
	for i, p := range players {
		names[i] = fmt.Sprintf("%s (%s)", p.DisplayName, p.ID)
	}
	return names
}

func writeBriefings(out io.Writer, result setup.Result, opts configfile.Briefing) {
	for i, b := range result.Briefings {
		if opts.Mode == configfile.BriefingSequential && opts.PauseBeforeEach {
			fmt.Fprintf(out, "-- pass to %s --\n", b.Player.DisplayName)
		}
		fmt.Fprintf(out, "%s is %s (%s)", b.Player.DisplayName, b.Player.Role, b.Player.Alignment())
		if len(b.Knowledge.Visible) > 0 {
			fmt.Fprintf(out, "; sees %s", strings.Join(b.Knowledge.Visible, ", "))
		}
		for _, group := range b.Knowledge.Ambiguous {
			fmt.Fprintf(out, "; one of %s", strings.Join(group, ", "))
		}
		fmt.Fprintln(out)
		if opts.Mode == configfile.BriefingSequential && opts.PauseAfterEach && i < len(result.Briefings)-1 {
			fmt.Fprintln(out, "-- hide --")
		}
	}
}

func writeSummary(out io.Writer, state *match.State) {
	for _, m := range state.PublicMissions() {
		fmt.Fprintf(out, "Round %d: %s (%d/%d fails) team %s\n",
			m.Round, m.Result, m.FailCount, m.RequiredFailCount, strings.Join(m.Team, ", "))
	}
	if record, ok := state.Assassination(); ok {
		fmt.Fprintf(out, "Assassin %s named %s: %s\n", record.AssassinID, record.TargetID, hitLabel(record.Success))
	}
	winner, ok := state.FinalWinner()
	if !ok {
		fmt.Fprintln(out, "Game over: no winner")
		return
	}
	fmt.Fprintf(out, "Game over: %s victory (%d-%d)\n", winner, state.ResistanceScore(), state.MinionScore())
}

func hitLabel(success bool) string {
	if success {
		return "hit"
	}
	return "miss"
}
