package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/artpar/caas/adapters/definitions"
	"github.com/artpar/caas/app"
	"github.com/artpar/caas/bootstrap"
	"github.com/artpar/caas/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration before deployment",
	Long: `Validate the caas configuration file.

Checks:
  - YAML syntax is valid
  - Interceptor expressions compile
  - Definition files decode
  - Definitions build against the stored content types (optional)

Examples:
  caas validate
  caas validate --config /etc/caas/config.yaml --check-database`,
	RunE: runValidate,
}

var validateCheckDatabase bool

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().BoolVar(&validateCheckDatabase, "check-database", false, "build definitions against the database content types")
}

func runValidate(cmd *cobra.Command, args []string) error {
	fmt.Printf("Validating %s...\n\n", cfgFile)

	if _, err := os.Stat(cfgFile); os.IsNotExist(err) {
		fmt.Printf("  %s Config file exists\n", crossMark)
		return fmt.Errorf("config file not found: %s", cfgFile)
	}
	fmt.Printf("  %s Config file exists\n", checkMark)

	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Printf("  %s Config syntax valid\n", crossMark)
		return fmt.Errorf("config error: %w", err)
	}
	fmt.Printf("  %s Config syntax valid\n", checkMark)
	fmt.Printf("  %s Database: %s (%s)\n", checkMark, cfg.Database.DSN, cfg.Database.Driver)

	if _, err := bootstrap.BuildInterceptors(cfg.Interceptors, app.NewExpressionService(), zerolog.Nop()); err != nil {
		fmt.Printf("  %s Interceptors compile\n", crossMark)
		return err
	}
	fmt.Printf("  %s Interceptors configured: %d\n", checkMark, len(cfg.Interceptors))

	loader := definitions.NewFileLoader(cfg.Definitions.Paths, zerolog.Nop())
	docs, err := loader.Load(context.Background())
	if err != nil {
		fmt.Printf("  %s Definition files decode\n", crossMark)
		return err
	}
	fmt.Printf("  %s Definition files: %d\n", checkMark, len(docs))

	if validateCheckDatabase {
		db, _, err := openDatabase()
		if err != nil {
			fmt.Printf("  %s Database reachable\n", crossMark)
			return err
		}
		defer db.Close()

		defs := newDefinitionCache(db)
		if err := defs.LoadStatic(context.Background(), loader); err != nil {
			fmt.Printf("  %s Definitions build\n", crossMark)
			return err
		}
		fmt.Printf("  %s Definitions build: %v\n", checkMark, defs.Static().Names())
	}

	fmt.Println()
	fmt.Println("Configuration is valid.")
	return nil
}
