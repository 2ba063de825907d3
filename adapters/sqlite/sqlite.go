// Package sqlite stores content, sites, settings and clients in SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DB is an open content database.
type DB struct {
	*sql.DB
}

// dsnParams are appended to every DSN. Settings documents are read on the
// request path while the CLI may be writing, hence WAL and a busy timeout.
var dsnParams = []string{
	"_journal_mode=WAL",
	"_busy_timeout=5000",
	"_synchronous=NORMAL",
	"_foreign_keys=on",
}

// Open opens the database at dsn, a file path or ":memory:".
func Open(dsn string) (*DB, error) {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	db, err := sql.Open("sqlite3", dsn+sep+strings.Join(dsnParams, "&"))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dsn == ":memory:" {
		// each connection would get its own empty database
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open database: %w", err)
	}
	return &DB{DB: db}, nil
}

type migration struct {
	version string
	body    string
}

func migrations() ([]migration, error) {
	files, err := fs.Glob(migrationsFS, "migrations/*.sql")
	if err != nil {
		return nil, err
	}
	slices.Sort(files)

	out := make([]migration, 0, len(files))
	for _, f := range files {
		body, err := migrationsFS.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", f, err)
		}
		out = append(out, migration{
			version: strings.TrimSuffix(path.Base(f), ".sql"),
			body:    string(body),
		})
	}
	return out, nil
}

// Migrate applies the embedded migrations not yet recorded, each in its
// own transaction.
func (db *DB) Migrate() error {
	ctx := context.Background()
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	all, err := migrations()
	if err != nil {
		return err
	}
	current, err := db.Version(ctx)
	if err != nil {
		return err
	}
	for _, m := range all {
		if m.version <= current {
			continue
		}
		if err := db.apply(ctx, m); err != nil {
			return fmt.Errorf("migration %s: %w", m.version, err)
		}
	}
	return nil
}

func (db *DB) apply(ctx context.Context, m migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, m.body); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, m.version); err != nil {
		return err
	}
	return tx.Commit()
}

// Version returns the latest applied migration, "" before the first.
func (db *DB) Version(ctx context.Context) (string, error) {
	var v sql.NullString
	if err := db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_migrations`).Scan(&v); err != nil {
		return "", fmt.Errorf("schema version: %w", err)
	}
	return v.String, nil
}

// Check pings the database. It backs the readiness check.
func (db *DB) Check(ctx context.Context) error {
	return db.PingContext(ctx)
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
