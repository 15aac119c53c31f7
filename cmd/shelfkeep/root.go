package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dukerupert/shelfkeep/internal/config"
	"github.com/dukerupert/shelfkeep/internal/logging"
)

var (
	// configFile is set by the --config flag.
	configFile string
	flagJSON   bool

	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:           "shelfkeep",
	Short:         "Offline-first inventory store with background sync",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}
		c, err := config.Load(configFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c
		logger = logging.Setup(cfg.LogLevel, cfg.LogFormat)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default: ./shelfkeep.yaml or ~/.config/shelfkeep/shelfkeep.yaml)")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output as JSON")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(queueCmd)
	rootCmd.AddCommand(backupCmd)
}
