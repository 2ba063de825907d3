package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/artpar/caas/adapters/idgen"
	"github.com/artpar/caas/adapters/sqlite"
	"github.com/artpar/caas/domain/content"
	"github.com/artpar/caas/ports"
)

var contentCmd = &cobra.Command{
	Use:   "content",
	Short: "Manage repository content",
	Long: `Import and inspect content types and items.

An import file is YAML:

  types:
    - {name: Document}
    - {name: Page, parent: Document}
  items:
    - {id: home, type: Page, name: Home, properties: {title: Welcome}}

Items without an id get a generated one.

Examples:
  caas content import seed.yaml
  caas content types
  caas content delete home`,
}

var contentImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import content types and items",
	Args:  cobra.ExactArgs(1),
	RunE:  runContentImport,
}

var contentTypesCmd = &cobra.Command{
	Use:   "types",
	Short: "List content types",
	RunE:  runContentTypes,
}

var contentDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a content item",
	Args:  cobra.ExactArgs(1),
	RunE:  runContentDelete,
}

func init() {
	rootCmd.AddCommand(contentCmd)

	contentCmd.AddCommand(contentImportCmd)
	contentCmd.AddCommand(contentTypesCmd)
	contentCmd.AddCommand(contentDeleteCmd)
}

type importFile struct {
	Types []struct {
		Name   string `yaml:"name"`
		Parent string `yaml:"parent"`
	} `yaml:"types"`
	Items []struct {
		ID         string         `yaml:"id"`
		Type       string         `yaml:"type"`
		Name       string         `yaml:"name"`
		Properties map[string]any `yaml:"properties"`
	} `yaml:"items"`
}

// parseImport decodes an import file. Types are checked against each other
// and items must name a declared or existing type.
func parseImport(data []byte, existing []content.Type, ids ports.IDGenerator) ([]content.Type, []content.Content, error) {
	var f importFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, nil, fmt.Errorf("parse import file: %w", err)
	}

	types := make([]content.Type, 0, len(f.Types))
	all := make([]content.Type, 0, len(existing)+len(f.Types))
	declared := make(map[string]bool, len(f.Types))
	for _, t := range f.Types {
		ct := content.Type{Name: t.Name, Parent: t.Parent}
		types = append(types, ct)
		all = append(all, ct)
		declared[t.Name] = true
	}
	for _, t := range existing {
		if !declared[t.Name] {
			all = append(all, t)
		}
	}
	cat, err := content.NewCatalog(all)
	if err != nil {
		return nil, nil, err
	}

	items := make([]content.Content, 0, len(f.Items))
	for i, it := range f.Items {
		if _, ok := cat.Get(it.Type); !ok {
			return nil, nil, fmt.Errorf("items[%d]: unknown content type %q", i, it.Type)
		}
		id := it.ID
		if id == "" {
			id = ids.New()
		}
		items = append(items, content.Content{
			ID:         id,
			Type:       it.Type,
			Name:       it.Name,
			Properties: it.Properties,
		})
	}
	return types, items, nil
}

func runContentImport(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	db, _, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	store := sqlite.NewContentStore(db)

	existing, err := store.Types(ctx)
	if err != nil {
		return fmt.Errorf("failed to read content types: %w", err)
	}
	types, items, err := parseImport(data, existing, idgen.TimeOrdered{})
	if err != nil {
		return err
	}

	for _, t := range types {
		if err := store.PutType(ctx, t); err != nil {
			return fmt.Errorf("failed to store type %s: %w", t.Name, err)
		}
	}
	for _, c := range items {
		if err := store.Put(ctx, c); err != nil {
			return fmt.Errorf("failed to store item %s: %w", c.ID, err)
		}
	}

	fmt.Printf("%s Imported %d types and %d items\n", checkMark, len(types), len(items))
	if len(types) > 0 {
		fmt.Println("Reload running servers to rebuild static definitions.")
	}
	return nil
}

func runContentTypes(cmd *cobra.Command, args []string) error {
	db, _, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	types, err := sqlite.NewContentStore(db).Types(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list content types: %w", err)
	}
	if len(types) == 0 {
		fmt.Println("No content types found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TYPE\tPARENT")
	fmt.Fprintln(w, "----\t------")
	for _, t := range types {
		parent := t.Parent
		if parent == "" {
			parent = "-"
		}
		fmt.Fprintf(w, "%s\t%s\n", t.Name, parent)
	}
	w.Flush()
	return nil
}

func runContentDelete(cmd *cobra.Command, args []string) error {
	db, _, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := sqlite.NewContentStore(db).Delete(context.Background(), args[0]); err != nil {
		return fmt.Errorf("failed to delete content: %w", err)
	}
	fmt.Printf("%s Deleted content %s\n", checkMark, args[0])
	return nil
}
