package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/artpar/caas/bootstrap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the content delivery server",
	Long: `Start the caas delivery server.

The server will:
  - Load configuration from caas.yaml (or --config)
  - Or load configuration from CAAS_* environment variables
  - Connect to the database and load static definitions
  - Serve /sites/{tenant}/{site}/query/{name} and /admin

Configuration file changes and SIGHUP reload the reloadable settings.

Environment variables (for container deployments):
  CAAS_DATABASE_DSN         - Database path (default: caas.db)
  CAAS_SERVER_PORT          - Server port (default: 8080)
  CAAS_DEFINITIONS_PATHS    - Comma-separated definition globs
  CAAS_DEFAULT_DEFINITION   - Definition for anonymous callers
  CAAS_ADMIN_TOKEN          - Admin API bearer token
  CAAS_LOG_LEVEL            - Log level: debug, info, warn, error

Examples:
  caas serve
  caas serve --config /etc/caas/config.yaml
  CAAS_DEFINITIONS_PATHS='defs/**/*.yaml' caas serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(cfgFile); err != nil {
		fmt.Println("Running with environment variables (no config file)")
	}

	app, err := bootstrap.New(bootstrap.Options{ConfigPath: cfgFile})
	if err != nil {
		return fmt.Errorf("error initializing: %w", err)
	}

	// Run (blocks until shutdown)
	return app.Run()
}
