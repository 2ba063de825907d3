package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"github.com/artpar/caas/domain/content"
	"github.com/artpar/caas/ports"
)

// ContentStore implements ports.ContentStore using SQLite.
// Properties are stored as a JSON object.
type ContentStore struct {
	db *DB
}

// NewContentStore creates a new SQLite content store.
func NewContentStore(db *DB) *ContentStore {
	return &ContentStore{db: db}
}

// Types returns the content types in insertion order.
func (s *ContentStore) Types(ctx context.Context) ([]content.Type, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, parent FROM content_types ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var types []content.Type
	for rows.Next() {
		var t content.Type
		if err := rows.Scan(&t.Name, &t.Parent); err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	return types, rows.Err()
}

// Get returns a content item.
func (s *ContentStore) Get(ctx context.Context, id string) (content.Content, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, type, name, properties FROM contents WHERE id = ?
	`, id)
	c, err := scanContent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return content.Content{}, content.ErrNotFound
	}
	return c, err
}

// GetMany returns the existing items among ids, in ids order.
func (s *ContentStore) GetMany(ctx context.Context, ids []string) ([]content.Content, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, name, properties FROM contents WHERE id IN (`+placeholders+`)
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	found := make(map[string]content.Content, len(ids))
	for rows.Next() {
		c, err := scanContent(rows)
		if err != nil {
			return nil, err
		}
		found[c.ID] = c
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	result := make([]content.Content, 0, len(found))
	for _, id := range ids {
		if c, ok := found[id]; ok {
			result = append(result, c)
		}
	}
	return result, nil
}

// PutType creates or replaces a content type, keeping its original position.
func (s *ContentStore) PutType(ctx context.Context, t content.Type) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO content_types (name, parent, position)
		VALUES (?, ?, (SELECT COALESCE(MAX(position), 0) + 1 FROM content_types))
		ON CONFLICT(name) DO UPDATE SET parent = excluded.parent
	`, t.Name, t.Parent)
	return err
}

// Put creates or replaces a content item.
func (s *ContentStore) Put(ctx context.Context, c content.Content) error {
	props := c.Properties
	if props == nil {
		props = map[string]any{}
	}
	data, err := json.Marshal(props)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO contents (id, type, name, properties, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			type = excluded.type,
			name = excluded.name,
			properties = excluded.properties,
			updated_at = CURRENT_TIMESTAMP
	`, c.ID, c.Type, c.Name, string(data))
	return err
}

// Delete removes a content item.
func (s *ContentStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM contents WHERE id = ?`, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return content.ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanContent(row scanner) (content.Content, error) {
	var c content.Content
	var props string
	if err := row.Scan(&c.ID, &c.Type, &c.Name, &props); err != nil {
		return content.Content{}, err
	}
	if props != "" {
		if err := json.Unmarshal([]byte(props), &c.Properties); err != nil {
			return content.Content{}, err
		}
	}
	return c, nil
}

var _ ports.ContentStore = (*ContentStore)(nil)
