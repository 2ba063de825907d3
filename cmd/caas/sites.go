package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/artpar/caas/adapters/definitions"
	"github.com/artpar/caas/adapters/sqlite"
	"github.com/artpar/caas/app"
	"github.com/artpar/caas/domain/site"
)

var sitesCmd = &cobra.Command{
	Use:   "sites",
	Short: "Manage delivery sites",
	Long: `Manage caas delivery sites.

A site is addressed as tenant/site. Its indicator scopes the site's
definitions and settings.

Examples:
  caas sites list
  caas sites create acme/web --root=home --max-age=600
  caas sites define acme/web defs/mobile.yaml
  caas sites delete acme/web`,
}

var sitesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sites",
	RunE:  runSitesList,
}

var sitesCreateCmd = &cobra.Command{
	Use:   "create <tenant/site>",
	Short: "Create a site",
	Args:  cobra.ExactArgs(1),
	RunE:  runSitesCreate,
}

var sitesDeleteCmd = &cobra.Command{
	Use:   "delete <tenant/site>",
	Short: "Delete a site",
	Args:  cobra.ExactArgs(1),
	RunE:  runSitesDelete,
}

var sitesDefineCmd = &cobra.Command{
	Use:   "define <tenant/site> <file>",
	Short: "Store a processing definition for a site",
	Args:  cobra.ExactArgs(2),
	RunE:  runSitesDefine,
}

var (
	siteName      string
	siteIndicator string
	siteRoot      string
	siteMaxAge    int64
	siteDefName   string
)

func init() {
	rootCmd.AddCommand(sitesCmd)

	sitesCmd.AddCommand(sitesListCmd)
	sitesCmd.AddCommand(sitesCreateCmd)
	sitesCmd.AddCommand(sitesDeleteCmd)
	sitesCmd.AddCommand(sitesDefineCmd)

	sitesCreateCmd.Flags().StringVar(&siteName, "name", "", "display name")
	sitesCreateCmd.Flags().StringVar(&siteIndicator, "indicator", "", "settings scope (default: tenant-site)")
	sitesCreateCmd.Flags().StringVar(&siteRoot, "root", "", "content id served when a request names no target")
	sitesCreateCmd.Flags().Int64Var(&siteMaxAge, "max-age", 0, "max-age cap in seconds (0 = none)")
	sitesDefineCmd.Flags().StringVar(&siteDefName, "name", "", "definition name (default: document name or file name)")
}

func parseSiteKey(s string) (tenantID, siteID string, err error) {
	tenantID, siteID, ok := strings.Cut(s, "/")
	if !ok || tenantID == "" || siteID == "" || strings.Contains(siteID, "/") {
		return "", "", fmt.Errorf("site must be given as tenant/site, got %q", s)
	}
	return tenantID, siteID, nil
}

func runSitesList(cmd *cobra.Command, args []string) error {
	db, _, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	sites, err := sqlite.NewSiteStore(db).List(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list sites: %w", err)
	}

	if len(sites) == 0 {
		fmt.Println("No sites found.")
		fmt.Println()
		fmt.Println("Create a site with: caas sites create <tenant/site>")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SITE\tNAME\tINDICATOR\tROOT\tMAX-AGE\tCREATED")
	fmt.Fprintln(w, "----\t----\t---------\t----\t-------\t-------")
	for _, s := range sites {
		maxAge := "-"
		if s.MaxAge > 0 {
			maxAge = fmt.Sprintf("%ds", s.MaxAge)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			s.Key(), s.Name, s.Indicator, s.RootID, maxAge, s.CreatedAt.Format("2006-01-02"))
	}
	w.Flush()
	return nil
}

func runSitesCreate(cmd *cobra.Command, args []string) error {
	tenantID, siteID, err := parseSiteKey(args[0])
	if err != nil {
		return err
	}
	if siteMaxAge < 0 {
		return fmt.Errorf("max-age must not be negative")
	}

	db, _, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	st := site.Site{
		TenantID:  tenantID,
		ID:        siteID,
		Indicator: siteIndicator,
		Name:      siteName,
		RootID:    siteRoot,
		MaxAge:    siteMaxAge,
		CreatedAt: time.Now().UTC(),
	}
	if st.Indicator == "" {
		st.Indicator = site.DefaultIndicator(tenantID, siteID)
	}
	if err := sqlite.NewSiteStore(db).Create(context.Background(), st); err != nil {
		return fmt.Errorf("failed to create site: %w", err)
	}

	fmt.Printf("%s Created site %s (indicator %s)\n", checkMark, st.Key(), st.Indicator)
	return nil
}

func runSitesDelete(cmd *cobra.Command, args []string) error {
	tenantID, siteID, err := parseSiteKey(args[0])
	if err != nil {
		return err
	}

	db, _, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := sqlite.NewSiteStore(db).Delete(context.Background(), tenantID, siteID); err != nil {
		return fmt.Errorf("failed to delete site: %w", err)
	}

	fmt.Printf("%s Deleted site %s/%s\n", checkMark, tenantID, siteID)
	return nil
}

func runSitesDefine(cmd *cobra.Command, args []string) error {
	tenantID, siteID, err := parseSiteKey(args[0])
	if err != nil {
		return err
	}

	doc, err := definitions.ReadFile(args[1])
	if err != nil {
		return err
	}
	name := siteDefName
	if name == "" {
		name = doc.Name
	}
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(args[1]), filepath.Ext(args[1]))
	}
	doc.Name = name

	db, _, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	st, err := sqlite.NewSiteStore(db).Get(ctx, tenantID, siteID)
	if err != nil {
		return fmt.Errorf("site %s/%s: %w", tenantID, siteID, err)
	}

	if _, err := newDefinitionCache(db).Validate(ctx, doc); err != nil {
		return fmt.Errorf("definition %s: %w", name, err)
	}

	// settings hold YAML or JSON, so TOML files are re-encoded
	data, err := definitions.Encode(definitions.FormatYAML, doc)
	if err != nil {
		return err
	}

	svc := app.NewSettingsService(sqlite.NewSettingsStore(db), zerolog.Nop())
	if err := svc.PutDefinition(ctx, st.Indicator, name, string(data)); err != nil {
		return fmt.Errorf("failed to store definition: %w", err)
	}

	fmt.Printf("%s Stored definition %s for %s\n", checkMark, name, st.Key())
	fmt.Println("Running servers pick it up on the next request for the site.")
	return nil
}
