package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mhhussain/bugtrack/internal/output"
	"github.com/mhhussain/bugtrack/internal/seed"
	"github.com/mhhussain/bugtrack/internal/store"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui        *output.UI
	dataStore store.Store

	verbose bool
	dryRun  bool

	buildVersion = "dev"
	buildCommit  = "none"
	buildDate    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "bt",
	Short: "bugtrack - track bugs across projects",
	Long: `bt is a bug tracker backed by an in-memory store seeded with a
fixed dataset. It tracks bugs, their projects, and the people working on
them, with a list/show/update/comment workflow and a dashboard view.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date
	rootCmd.Version = fmt.Sprintf("%s (commit %s, built %s)", buildVersion, buildCommit, buildDate)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "bt %s\ncommit: %s\nbuilt:  %s\n", buildVersion, buildCommit, buildDate)
	},
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)
	rootCmd.AddCommand(versionCmd)

	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return dashboardRun()
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would happen without making changes")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/bt/config.yaml)")
}

func initConfig() {
	// If --config is explicitly set, use that file
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}

		configDir := filepath.Join(home, ".config", "bt")
		viper.AddConfigPath(configDir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("BT")
	viper.AutomaticEnv()

	viper.SetDefault("store", "memory")
	viper.SetDefault("db_path", ":memory:")
	viper.SetDefault("seed_file", "")
	viper.SetDefault("latency_ms", 0)
	viper.SetDefault("current_user", "")

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose
	ui.DryRun = dryRun

	// The store is initialized lazily so config/version commands work
	// without touching it.
}

// getStore returns the shared store, constructing and seeding it on first
// call. State lives only for this process; every run starts from the seed
// dataset (or the db file, when the sqlite backend is given one).
func getStore() (store.Store, error) {
	if dataStore != nil {
		return dataStore, nil
	}

	ctx := context.Background()

	var s store.Store
	switch backend := viper.GetString("store"); backend {
	case "", "memory":
		var opts []store.MemoryOption
		if ms := viper.GetInt("latency_ms"); ms > 0 {
			opts = append(opts, store.WithDelay(time.Duration(ms)*time.Millisecond))
		}
		s = store.NewMemoryStore(opts...)
	case "sqlite":
		sq, err := store.NewSQLiteStore(viper.GetString("db_path"))
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		s = sq
	default:
		return nil, fmt.Errorf("unknown store backend: %s", backend)
	}

	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate store: %w", err)
	}

	if err := seedStore(ctx, s); err != nil {
		_ = s.Close()
		return nil, err
	}

	if userID := viper.GetString("current_user"); userID != "" {
		if err := s.SetCurrentUser(ctx, userID); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("set current user: %w", err)
		}
	}

	dataStore = s
	return dataStore, nil
}

// seedStore applies the fixture dataset unless the store already holds
// users (a sqlite backend pointed at an existing file).
func seedStore(ctx context.Context, s store.Store) error {
	users, err := s.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("check seed state: %w", err)
	}
	if len(users) > 0 {
		return nil
	}

	var ds *seed.Dataset
	if path := viper.GetString("seed_file"); path != "" {
		ds, err = seed.FromFile(path)
	} else {
		ds, err = seed.Default()
	}
	if err != nil {
		return err
	}

	if err := seed.Apply(ctx, s, ds); err != nil {
		return fmt.Errorf("apply seed data: %w", err)
	}
	return nil
}
