package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/artpar/caas/adapters/definitions"
	"github.com/artpar/caas/adapters/graphql"
	"github.com/artpar/caas/adapters/sqlite"
	"github.com/artpar/caas/app"
	"github.com/artpar/caas/domain/definition"
)

var schemaCmd = &cobra.Command{
	Use:   "schema <file|name>",
	Short: "Print the GraphQL schema of a definition",
	Long: `Build a processing definition against the stored content types and
print its schema in SDL.

The argument is a definition file, or the name of a definition found
under definitions.paths.

Examples:
  caas schema defs/web.yaml
  caas schema web`,
	Args: cobra.ExactArgs(1),
	RunE: runSchema,
}

func init() {
	rootCmd.AddCommand(schemaCmd)
}

func runSchema(cmd *cobra.Command, args []string) error {
	db, cfg, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	doc, err := findDocument(ctx, args[0], cfg.Definitions.Paths)
	if err != nil {
		return err
	}

	pd, err := newDefinitionCache(db).Validate(ctx, doc)
	if err != nil {
		return fmt.Errorf("definition %s: %w", doc.Name, err)
	}

	fmt.Print(graphql.PrintSDL(pd.Schema))
	return nil
}

func findDocument(ctx context.Context, arg string, paths []string) (definition.Document, error) {
	if _, err := os.Stat(arg); err == nil {
		return definitions.ReadFile(arg)
	}

	docs, err := definitions.NewFileLoader(paths, zerolog.Nop()).Load(ctx)
	if err != nil {
		return definition.Document{}, err
	}
	for _, doc := range docs {
		if doc.Name == arg {
			return doc, nil
		}
	}
	return definition.Document{}, fmt.Errorf("definition not found: %s", arg)
}

func newDefinitionCache(db *sqlite.DB) *app.DefinitionCache {
	logger := zerolog.Nop()
	defs := app.NewDefinitionCache(
		definitions.NewSettingsSource(sqlite.NewSettingsStore(db), logger),
		sqlite.NewContentStore(db),
		nil,
		logger,
	)
	defs.SetCheck(graphql.Check)
	return defs
}
