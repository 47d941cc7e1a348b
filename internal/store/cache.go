package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/parcelworks/eventgate/internal/domain"
	"github.com/parcelworks/eventgate/internal/schema"
)

// CachedStore is a read-through Redis cache in front of another schema
// store. Correctness never depends on it: every cache failure falls through
// to the inner store, and Put invalidates before writing through.
type CachedStore struct {
	inner  schema.Store
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewCached(inner schema.Store, client *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedStore {
	return &CachedStore{inner: inner, client: client, ttl: ttl, logger: logger}
}

func cacheKey(key domain.SchemaKey) string {
	return fmt.Sprintf("schema:%s:%s:%s", key.Producer, key.EventType, key.Version)
}

// PutSchema invalidates the cached entry, writes through to the inner store,
// then repopulates. A failed invalidation aborts the write so a stale entry
// cannot outlive an upsert it raced with.
func (s *CachedStore) PutSchema(ctx context.Context, key domain.SchemaKey, schemaJSON []byte) error {
	if err := s.client.Del(ctx, cacheKey(key)).Err(); err != nil {
		return fmt.Errorf("invalidating cached schema: %w", err)
	}
	if err := s.inner.PutSchema(ctx, key, schemaJSON); err != nil {
		return err
	}
	if err := s.client.Set(ctx, cacheKey(key), schemaJSON, s.ttl).Err(); err != nil {
		s.logger.Warn("schema cache backfill failed", "key", key.String(), "error", err)
	}
	return nil
}

// GetSchema serves from the cache when possible and backfills on miss.
func (s *CachedStore) GetSchema(ctx context.Context, key domain.SchemaKey) ([]byte, error) {
	cached, err := s.client.Get(ctx, cacheKey(key)).Bytes()
	if err == nil {
		return cached, nil
	}
	if err != redis.Nil {
		s.logger.Warn("schema cache read failed", "key", key.String(), "error", err)
	}

	raw, err := s.inner.GetSchema(ctx, key)
	if err != nil || raw == nil {
		return raw, err
	}

	if err := s.client.Set(ctx, cacheKey(key), raw, s.ttl).Err(); err != nil {
		s.logger.Warn("schema cache backfill failed", "key", key.String(), "error", err)
	}
	return raw, nil
}
