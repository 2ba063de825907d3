package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/artpar/caas/adapters/clock"
	"github.com/artpar/caas/adapters/hasher"
	"github.com/artpar/caas/adapters/sqlite"
	"github.com/artpar/caas/app"
)

var clientsCmd = &cobra.Command{
	Use:   "clients",
	Short: "Manage API clients",
	Long: `Manage caas API clients.

A client holds an API key entitling it to one processing definition,
optionally restricted to a set of sites.

Examples:
  caas clients list
  caas clients create --name=mobile --definition=mobile --site=acme/web
  caas clients revoke 3f2b...`,
}

var clientsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List API clients",
	RunE:  runClientsList,
}

var clientsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new API client",
	RunE:  runClientsCreate,
}

var clientsRevokeCmd = &cobra.Command{
	Use:   "revoke <client-id>",
	Short: "Revoke an API client",
	Args:  cobra.ExactArgs(1),
	RunE:  runClientsRevoke,
}

var (
	clientName       string
	clientDefinition string
	clientSites      []string
	clientExpires    time.Duration
)

func init() {
	rootCmd.AddCommand(clientsCmd)

	clientsCmd.AddCommand(clientsListCmd)
	clientsCmd.AddCommand(clientsCreateCmd)
	clientsCmd.AddCommand(clientsRevokeCmd)

	clientsCreateCmd.Flags().StringVar(&clientName, "name", "", "client name (required)")
	clientsCreateCmd.Flags().StringVar(&clientDefinition, "definition", "", "processing definition (required)")
	clientsCreateCmd.Flags().StringSliceVar(&clientSites, "site", nil, "allowed tenant/site, repeatable (default: all)")
	clientsCreateCmd.Flags().DurationVar(&clientExpires, "expires-in", 0, "key lifetime (default: no expiry)")
	clientsCreateCmd.MarkFlagRequired("name")
	clientsCreateCmd.MarkFlagRequired("definition")
}

func openClientService() (*app.ClientService, func(), error) {
	db, cfg, err := openDatabase()
	if err != nil {
		return nil, nil, err
	}
	svc := app.NewClientService(
		sqlite.NewClientStore(db),
		hasher.NewBcrypt(bcrypt.DefaultCost),
		clock.Real{},
		cfg.Clients.KeyPrefix,
		cfg.Clients.DefaultDefinition,
		zerolog.Nop(),
	)
	return svc, func() { db.Close() }, nil
}

func runClientsList(cmd *cobra.Command, args []string) error {
	svc, done, err := openClientService()
	if err != nil {
		return err
	}
	defer done()

	clients, err := svc.List(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list clients: %w", err)
	}

	if len(clients) == 0 {
		fmt.Println("No API clients found.")
		fmt.Println()
		fmt.Println("Create a client with: caas clients create --name=<name> --definition=<definition>")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tPREFIX\tDEFINITION\tSITES\tSTATUS\tCREATED")
	fmt.Fprintln(w, "--\t----\t------\t----------\t-----\t------\t-------")

	now := time.Now()
	for _, c := range clients {
		status := "active"
		switch {
		case c.RevokedAt != nil:
			status = "revoked"
		case c.ExpiresAt != nil && now.After(*c.ExpiresAt):
			status = "expired"
		}
		sites := "*"
		if len(c.Sites) > 0 {
			sites = strings.Join(c.Sites, ",")
		}
		fmt.Fprintf(w, "%s\t%s\t%s...\t%s\t%s\t%s\t%s\n",
			c.ID, c.Name, c.Prefix, c.DefinitionName, sites, status, c.CreatedAt.Format("2006-01-02"))
	}

	w.Flush()
	return nil
}

func runClientsCreate(cmd *cobra.Command, args []string) error {
	svc, done, err := openClientService()
	if err != nil {
		return err
	}
	defer done()

	params := app.CreateParams{
		Name:       clientName,
		Definition: clientDefinition,
		Sites:      clientSites,
	}
	if clientExpires > 0 {
		at := time.Now().Add(clientExpires)
		params.ExpiresAt = &at
	}

	raw, c, err := svc.Create(context.Background(), params)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	fmt.Printf("%s Created client %s (%s)\n", checkMark, c.Name, c.ID)
	fmt.Println()
	fmt.Printf("  API key: %s\n", raw)
	fmt.Println()
	fmt.Println("Store this key securely. It cannot be retrieved again.")
	return nil
}

func runClientsRevoke(cmd *cobra.Command, args []string) error {
	svc, done, err := openClientService()
	if err != nil {
		return err
	}
	defer done()

	if err := svc.Revoke(context.Background(), args[0]); err != nil {
		return fmt.Errorf("failed to revoke client: %w", err)
	}

	fmt.Printf("%s Revoked client %s\n", checkMark, args[0])
	return nil
}
