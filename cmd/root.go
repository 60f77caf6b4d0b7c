package cmd

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/essaygrade/internal/config"
	"github.com/abhisek/essaygrade/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "essaygrade",
	Short: "Grade essays and track learner proficiency",
	Long: "essaygrade scores essays against an external model backend, falls back to a local " +
		"estimate when the backend is unavailable, and tracks each learner's proficiency level.",
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

// cfg and logger are populated before any subcommand runs.
var (
	cfg    config.Config
	logger *slog.Logger
)

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "JSON config file (overrides ESSAYGRADE_CONFIG env var)")
	pf.String("db", "", "Path to SQLite database file (overrides ESSAYGRADE_DB env var)")
	pf.String("log-level", "", "Log level: debug, info, warn, error")
	pf.String("log-format", "", "Log format: text or json")
	pf.StringArray("set", nil, "Set any config key as key=value (repeatable), e.g. --set backend-url=http://localhost:8000/score")

	rootCmd.AddCommand(gradeCmd)
	rootCmd.AddCommand(featuresCmd)
	rootCmd.AddCommand(learnerCmd)
	rootCmd.AddCommand(llmCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// forwardedFlags are the cobra flags passed through to the config loader.
var forwardedFlags = []string{"config", "db", "log-level", "log-format"}

func loadConfig(cmd *cobra.Command, _ []string) error {
	args, err := configArgs(cmd)
	if err != nil {
		return err
	}
	c, err := config.Load(args)
	if err != nil {
		return err
	}
	l, err := c.NewLogger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	slog.SetDefault(l)
	cfg, logger = c, l
	return nil
}

// configArgs turns the explicitly set cobra flags into config loader
// arguments.
func configArgs(cmd *cobra.Command) ([]string, error) {
	var args []string
	for _, name := range forwardedFlags {
		if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
			args = append(args, "-"+name, f.Value.String())
		}
	}
	sets, _ := cmd.Flags().GetStringArray("set")
	for _, kv := range sets {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("--set %q: expected key=value", kv)
		}
		args = append(args, "-"+k, v)
	}
	return args, nil
}

// resolveDBPath returns the configured database path (--db flag, then
// ESSAYGRADE_DB, then the config file), falling back to the default XDG path.
func resolveDBPath() (string, error) {
	if cfg.DBPath != "" {
		return cfg.DBPath, store.EnsureDir(cfg.DBPath)
	}
	return store.DefaultDBPath()
}

func openStore() (*store.Store, error) {
	dbPath, err := resolveDBPath()
	if err != nil {
		return nil, fmt.Errorf("resolve database path: %w", err)
	}
	s, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return s, nil
}
