package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/artpar/caas/domain/settings"
	"github.com/artpar/caas/ports"
)

// SettingsStore implements ports.SettingsStore using SQLite.
// Writes bump the scope revision in the same transaction.
type SettingsStore struct {
	db *DB
}

// NewSettingsStore creates a new settings store.
func NewSettingsStore(db *DB) *SettingsStore {
	return &SettingsStore{db: db}
}

// Get retrieves a single setting by key. Missing keys yield a zero Setting.
func (s *SettingsStore) Get(ctx context.Context, key string) (settings.Setting, error) {
	var setting settings.Setting
	var updatedAt sql.NullTime

	err := s.db.QueryRowContext(ctx,
		`SELECT key, value, encrypted, updated_at FROM settings WHERE key = ?`,
		key,
	).Scan(&setting.Key, &setting.Value, &setting.Encrypted, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return settings.Setting{}, nil
	}
	if err != nil {
		return settings.Setting{}, err
	}

	setting.UpdatedAt = updatedAt.Time
	return setting, nil
}

// GetAll retrieves all settings as a map.
func (s *SettingsStore) GetAll(ctx context.Context) (settings.Settings, error) {
	return s.query(ctx, `SELECT key, value FROM settings`)
}

// GetByPrefix retrieves all settings with a given prefix.
func (s *SettingsStore) GetByPrefix(ctx context.Context, prefix string) (settings.Settings, error) {
	return s.query(ctx, `SELECT key, value FROM settings WHERE substr(key, 1, ?) = ?`, len(prefix), prefix)
}

func (s *SettingsStore) query(ctx context.Context, q string, args ...any) (settings.Settings, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(settings.Settings)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		result[key] = value
	}
	return result, rows.Err()
}

// Set stores or updates a setting.
func (s *SettingsStore) Set(ctx context.Context, key, value string, encrypted bool) error {
	return s.setBatch(ctx, map[string]bool{key: encrypted}, settings.Settings{key: value})
}

// SetBatch stores or updates multiple settings.
func (s *SettingsStore) SetBatch(ctx context.Context, batch settings.Settings) error {
	flags := make(map[string]bool, len(batch))
	for key := range batch {
		flags[key] = settings.IsSensitive(key)
	}
	return s.setBatch(ctx, flags, batch)
}

// setBatch stores settings with explicit encryption flags.
func (s *SettingsStore) setBatch(ctx context.Context, encrypted map[string]bool, batch settings.Settings) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO settings (key, value, encrypted, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			encrypted = excluded.encrypted,
			updated_at = CURRENT_TIMESTAMP`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	scopes := make(map[string]bool)
	for key, value := range batch {
		if _, err := stmt.ExecContext(ctx, key, value, encrypted[key]); err != nil {
			return err
		}
		scopes[settings.ScopeOf(key)] = true
	}
	for scope := range scopes {
		if err := bumpRevision(ctx, tx, scope); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Delete removes a setting.
func (s *SettingsStore) Delete(ctx context.Context, key string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `DELETE FROM settings WHERE key = ?`, key)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		if err := bumpRevision(ctx, tx, settings.ScopeOf(key)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Revision returns the write counter of a scope.
func (s *SettingsStore) Revision(ctx context.Context, scope string) (int64, error) {
	var rev int64
	err := s.db.QueryRowContext(ctx,
		`SELECT revision FROM settings_revisions WHERE scope = ?`, scope,
	).Scan(&rev)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return rev, err
}

func bumpRevision(ctx context.Context, tx *sql.Tx, scope string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO settings_revisions (scope, revision) VALUES (?, 1)
		ON CONFLICT(scope) DO UPDATE SET revision = revision + 1`,
		scope,
	)
	return err
}

var _ ports.SettingsStore = (*SettingsStore)(nil)
