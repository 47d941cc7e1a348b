package schema

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/parcelworks/eventgate/internal/domain"
)

// ErrSchemaNotFound is returned by Registry.Get when no contract is stored
// under the exact (producer, eventType, version) triple.
var ErrSchemaNotFound = errors.New("schema not found")

// Store is the backing key-value capability for registered contracts.
// Get returns (nil, nil) when the key has no document, matching how the
// Postgres store reports missing rows.
type Store interface {
	PutSchema(ctx context.Context, key domain.SchemaKey, schemaJSON []byte) error
	GetSchema(ctx context.Context, key domain.SchemaKey) ([]byte, error)
}

// Registry validates and stores versioned contracts over a Store.
// Documents are immutable once stored; a new version is a new row, and
// re-registering an existing key is a last-write-wins upsert.
type Registry struct {
	store Store
}

// NewRegistry creates a registry over the given backing store.
func NewRegistry(store Store) *Registry {
	return &Registry{store: store}
}

// Put shape-validates raw schema JSON and stores it under key. The document
// is stored verbatim (compacted), so keywords beyond the validated shape
// survive the round trip. A shape violation (*ShapeError) rejects the
// registration before any write.
func (r *Registry) Put(ctx context.Context, key domain.SchemaKey, raw []byte) (Document, error) {
	if err := key.Validate(); err != nil {
		return Document{}, err
	}

	doc, err := ParseDocument(raw)
	if err != nil {
		return Document{}, err
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, raw); err != nil {
		return Document{}, fmt.Errorf("compacting schema %s: %w", key, err)
	}
	if err := r.store.PutSchema(ctx, key, compact.Bytes()); err != nil {
		return Document{}, fmt.Errorf("storing schema %s: %w", key, err)
	}
	return doc, nil
}

// GetRaw fetches the stored contract bytes verbatim. Missing keys return
// ErrSchemaNotFound; any other failure is an infrastructure fault.
func (r *Registry) GetRaw(ctx context.Context, key domain.SchemaKey) (json.RawMessage, error) {
	raw, err := r.store.GetSchema(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("reading schema %s: %w", key, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w for %s", ErrSchemaNotFound, key)
	}
	return raw, nil
}

// Get fetches and parses the contract stored under the exact key.
func (r *Registry) Get(ctx context.Context, key domain.SchemaKey) (Document, error) {
	raw, err := r.GetRaw(ctx, key)
	if err != nil {
		return Document{}, err
	}

	doc, err := ParseDocument(raw)
	if err != nil {
		return Document{}, fmt.Errorf("stored schema %s is corrupt: %w", key, err)
	}
	return doc, nil
}
