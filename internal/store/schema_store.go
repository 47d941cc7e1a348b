package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/parcelworks/eventgate/internal/domain"
)

// PutSchema upserts one contract row. Re-registering an existing
// (producer, event_type, version) triple overwrites the stored document;
// last write wins.
func (s *PostgresStore) PutSchema(ctx context.Context, key domain.SchemaKey, schemaJSON []byte) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO schema_registry (producer, event_type, version, schema_json)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (producer, event_type, version)
		DO UPDATE SET schema_json = EXCLUDED.schema_json, updated_at = NOW()
	`, key.Producer, key.EventType, key.Version, string(schemaJSON))
	if err != nil {
		return fmt.Errorf("upserting schema: %w", err)
	}
	return nil
}

// GetSchema reads the contract stored under the exact key. Missing rows
// return (nil, nil).
func (s *PostgresStore) GetSchema(ctx context.Context, key domain.SchemaKey) ([]byte, error) {
	var schemaJSON []byte
	err := s.pool.QueryRow(ctx, `
		SELECT schema_json FROM schema_registry
		WHERE producer = $1 AND event_type = $2 AND version = $3
	`, key.Producer, key.EventType, key.Version).Scan(&schemaJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying schema: %w", err)
	}
	return schemaJSON, nil
}
