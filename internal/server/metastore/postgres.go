package metastore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dpavlovs/filegate/internal/common"
	"github.com/dpavlovs/filegate/internal/dbx"
	"github.com/dpavlovs/filegate/internal/server/models"
)

// PostgresStore implements Store over a dbx.DBTX (*sql.DB or *sql.Tx).
// Collections live in meta_collections keyed (owner_id, name); singletons in
// meta_singletons keyed by a global key. Documents are jsonb.
type PostgresStore struct {
	db dbx.DBTX
}

// NewPostgresStore constructs a store bound to the given DBTX.
func NewPostgresStore(db dbx.DBTX) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) GetCollection(ctx context.Context, owner models.OwnerID, name string) (json.RawMessage, error) {
	query := `SELECT value FROM meta_collections WHERE owner_id=$1 AND name=$2`

	var raw []byte
	if err := s.db.QueryRowContext(ctx, query, int64(owner), name).Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("failed to select collection: %w", err)
	}
	return raw, nil
}

func (s *PostgresStore) ReplaceCollection(ctx context.Context, owner models.OwnerID, name string, value json.RawMessage) error {
	query := `
		INSERT INTO meta_collections (owner_id, name, value, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (owner_id, name)
		DO UPDATE SET value = EXCLUDED.value, updated_at = now();
	`
	if _, err := s.db.ExecContext(ctx, query, int64(owner), name, []byte(value)); err != nil {
		return fmt.Errorf("failed to replace collection: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetSingleton(ctx context.Context, key string) (json.RawMessage, error) {
	query := `SELECT value FROM meta_singletons WHERE key=$1`

	var raw []byte
	if err := s.db.QueryRowContext(ctx, query, key).Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("failed to select singleton: %w", err)
	}
	return raw, nil
}

func (s *PostgresStore) SetSingleton(ctx context.Context, key string, value json.RawMessage) error {
	query := `
		INSERT INTO meta_singletons (key, value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key)
		DO UPDATE SET value = EXCLUDED.value, updated_at = now();
	`
	if _, err := s.db.ExecContext(ctx, query, key, []byte(value)); err != nil {
		return fmt.Errorf("failed to set singleton: %w", err)
	}
	return nil
}

func (s *PostgresStore) OwnersWithCollection(ctx context.Context, name string) ([]models.OwnerID, error) {
	query := `SELECT owner_id FROM meta_collections WHERE name=$1 ORDER BY owner_id`

	rows, err := s.db.QueryContext(ctx, query, name)
	if err != nil {
		return nil, fmt.Errorf("failed to select owners: %w", err)
	}
	defer rows.Close()

	var result []models.OwnerID
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		result = append(result, models.OwnerID(id))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
