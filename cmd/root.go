// Package cmd wires the folio command line: the chat relay service, the
// terminal chat client, and a few one-shot helpers.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fbarrios/folio/config"
	"github.com/fbarrios/folio/logger"
)

var configDirFlag string

var rootCmd = &cobra.Command{
	Use:   "folio",
	Short: "Portfolio chat relay and terminal client",
	Long: `folio serves the portfolio assistant: a chat relay that streams model
replies to the site, a project directory backed by Notion, and a terminal
client for talking to the relay.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		config.SetConfigDir(configDirFlag)
		cfg, err := config.Load()
		if err != nil {
			cfg = config.DefaultConfig()
		}
		dir, _ := config.ConfigDir()
		if err := logger.Init(cfg.BuildLoggerConfig(), dir); err != nil {
			fmt.Fprintln(os.Stderr, "logger init error:", err)
		}
		return nil
	},
	PersistentPostRun: func(*cobra.Command, []string) {
		_ = logger.Close()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDirFlag, "config-dir", "", "Configuration directory (default ~/.folio)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w\nRun 'folio onboard' to initialize", err)
	}
	return cfg, nil
}
