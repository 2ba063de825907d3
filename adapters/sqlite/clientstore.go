package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/artpar/caas/domain/client"
	"github.com/artpar/caas/ports"
)

// ClientStore implements ports.ClientStore using SQLite.
type ClientStore struct {
	db *DB
}

// NewClientStore creates a new SQLite client store.
func NewClientStore(db *DB) *ClientStore {
	return &ClientStore{db: db}
}

const clientColumns = `id, name, hash, prefix, definition, sites, expires_at, revoked_at, created_at`

// Get retrieves clients matching a prefix.
func (s *ClientStore) Get(ctx context.Context, prefix string) ([]client.Client, error) {
	return s.list(ctx, `SELECT `+clientColumns+` FROM clients WHERE prefix = ?`, prefix)
}

// GetByID retrieves a client by ID.
func (s *ClientStore) GetByID(ctx context.Context, id string) (client.Client, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = ?`, id)
	c, err := scanClient(row)
	if errors.Is(err, sql.ErrNoRows) {
		return client.Client{}, client.ErrNotFound
	}
	return c, err
}

// Create stores a new client.
func (s *ClientStore) Create(ctx context.Context, c client.Client) error {
	sites, err := json.Marshal(c.Sites)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO clients (`+clientColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.Name, c.Hash, c.Prefix, c.DefinitionName, string(sites),
		nullTime(c.ExpiresAt), nullTime(c.RevokedAt), c.CreatedAt)
	return err
}

// Revoke marks a client as revoked.
func (s *ClientStore) Revoke(ctx context.Context, id string, at time.Time) error {
	result, err := s.db.ExecContext(ctx, `UPDATE clients SET revoked_at = ? WHERE id = ?`, at, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return client.ErrNotFound
	}
	return nil
}

// List returns all clients.
func (s *ClientStore) List(ctx context.Context) ([]client.Client, error) {
	return s.list(ctx, `SELECT `+clientColumns+` FROM clients ORDER BY created_at, id`)
}

func (s *ClientStore) list(ctx context.Context, q string, args ...any) ([]client.Client, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clients []client.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

func scanClient(row scanner) (client.Client, error) {
	var c client.Client
	var sites string
	var expiresAt, revokedAt sql.NullTime

	err := row.Scan(
		&c.ID, &c.Name, &c.Hash, &c.Prefix, &c.DefinitionName, &sites,
		&expiresAt, &revokedAt, &c.CreatedAt,
	)
	if err != nil {
		return client.Client{}, err
	}

	if sites != "" && sites != "null" {
		if err := json.Unmarshal([]byte(sites), &c.Sites); err != nil {
			return client.Client{}, err
		}
	}
	c.ExpiresAt = timePtr(expiresAt)
	c.RevokedAt = timePtr(revokedAt)
	return c, nil
}

var _ ports.ClientStore = (*ClientStore)(nil)
