package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/artpar/caas/adapters/sqlite"
	"github.com/artpar/caas/config"
)

var (
	// Global flags
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "caas",
	Short: "Headless content delivery with a GraphQL schema per site",
	Long: `caas serves repository content as JSON through named GraphQL queries.

Each site selects a processing definition: a set of output types mapped
onto the content-type hierarchy plus the queries clients may run.

Quick start:
  caas serve        # Start the delivery server
  caas validate     # Validate configuration and definitions

Management:
  caas sites        # Manage delivery sites
  caas clients      # Manage API clients
  caas content      # Import content types and items
  caas schema       # Print the schema of a definition`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "caas.yaml", "config file path")
}

const (
	checkMark = "\033[32m✓\033[0m"
	crossMark = "\033[31m✗\033[0m"
)

// loadConfig reads the config file, or the environment when it is absent.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func openDatabase() (*sqlite.DB, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	db, err := sqlite.Open(cfg.Database.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, cfg, nil
}
