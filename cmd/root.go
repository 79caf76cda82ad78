// Package cmd is the scenerelay command line.
package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"scenerelay/config"
	"scenerelay/server"
)

var configPath string

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "scenerelay",
		Short: "Scene-scoped presence relay for the game client",
		Long: `scenerelay keeps track of which player is in which scene and relays
movement, animation and attack events between players sharing a scene.

Persisted characters are loaded from and saved to postgres or redis;
guests live only in memory.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to YAML config file")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newMigrateCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}

func logOptions(cfg *config.Config) server.LogOptions {
	return server.LogOptions{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	}
}
