package cli

import (
	"fmt"
	"os"

	"github.com/dsvikstrand/bleu/internal/config"
	"github.com/dsvikstrand/bleu/internal/store"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "bleu",
	Short: "Retention and retry policy engine for banner ingestion",
	Long: "bleu assigns deterministic default banners, caps how many assets an owner keeps active, " +
		"and decides when failing ingestion jobs are retried or dead-lettered.",
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("BLEU_CONFIG"), "Path to YAML config file")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(policyCmd)
	rootCmd.AddCommand(assetsCmd)
	rootCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(ingestCmd)
}

// loadConfig reads --config, applies env overrides and validates.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// openDB is a helper that opens the database for CLI commands.
func openDB(cfg config.Config) (*store.DB, error) {
	dbPath := cfg.Database.Path
	if dbPath == "" {
		var err error
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return nil, err
		}
	}
	return store.Open(dbPath)
}
