package main

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"

	apihttp "github.com/artpar/caas/adapters/http"
	"github.com/artpar/caas/adapters/sqlite"
)

// Overridden with -ldflags "-X main.version=...". Builds without ldflags
// fall back to the module and VCS stamps in the binary.
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

type buildInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Built   string `json:"built"`
	Go      string `json:"go"`
	Dirty   bool   `json:"dirty,omitempty"`
	Schema  string `json:"schema,omitempty"`
}

func currentBuild() buildInfo {
	info, _ := debug.ReadBuildInfo()
	return resolveBuild(info)
}

func resolveBuild(info *debug.BuildInfo) buildInfo {
	b := buildInfo{Version: version, Commit: commit, Built: buildDate}
	if info == nil {
		return b
	}
	b.Go = info.GoVersion
	if b.Version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		b.Version = strings.TrimPrefix(info.Main.Version, "v")
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if b.Commit == "none" {
				b.Commit = s.Value[:min(len(s.Value), 12)]
			}
		case "vcs.time":
			if b.Built == "unknown" {
				b.Built = s.Value
			}
		case "vcs.modified":
			b.Dirty = s.Value == "true"
		}
	}
	return b
}

var (
	versionJSON   bool
	versionSchema bool
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long: `Print the build version, commit and Go runtime.

With --schema the configured database is opened without migrating and
its latest applied schema migration is reported.`,
	RunE: runVersion,
}

func init() {
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "print as JSON")
	versionCmd.Flags().BoolVar(&versionSchema, "schema", false, "report the database schema migration")
	rootCmd.AddCommand(versionCmd)
	apihttp.BuildVersion = currentBuild().Version
}

func runVersion(cmd *cobra.Command, args []string) error {
	b := currentBuild()
	if versionSchema {
		b.Schema = schemaVersion(cmd.Context())
	}

	out := cmd.OutOrStdout()
	if versionJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(b)
	}

	fmt.Fprintf(out, "caas %s\n", b.Version)
	commitLine := b.Commit
	if b.Dirty {
		commitLine += " (modified)"
	}
	fmt.Fprintf(out, "  commit:  %s\n", commitLine)
	fmt.Fprintf(out, "  built:   %s\n", b.Built)
	if b.Go != "" {
		fmt.Fprintf(out, "  go:      %s\n", b.Go)
	}
	if versionSchema {
		fmt.Fprintf(out, "  schema:  %s\n", b.Schema)
	}
	return nil
}

// schemaVersion never migrates, so an old database reports its own state.
func schemaVersion(ctx context.Context) string {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig()
	if err != nil {
		return "unavailable: " + err.Error()
	}
	db, err := sqlite.Open(cfg.Database.DSN)
	if err != nil {
		return "unavailable: " + err.Error()
	}
	defer db.Close()

	v, err := db.Version(ctx)
	switch {
	case err != nil:
		return "not migrated"
	case v == "":
		return "none applied"
	}
	return v
}
