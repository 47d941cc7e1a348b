package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/parcelworks/eventgate/internal/domain"
)

// NewClient connects a Redis client from a URL and verifies the connection.
func NewClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return client, nil
}

// RedisBus publishes accepted events onto a Redis stream.
type RedisBus struct {
	client *redis.Client
	stream string
}

func NewRedisBus(client *redis.Client, stream string) *RedisBus {
	return &RedisBus{client: client, stream: stream}
}

// Publish appends one accepted event to the stream. Consumers read the
// detail back as opaque JSON.
func (b *RedisBus) Publish(ctx context.Context, ev domain.CanonicalEvent) error {
	err := b.client.XAdd(ctx, &redis.XAddArgs{
		Stream: b.stream,
		Values: map[string]any{
			"source":        ev.Source,
			"detail-type":   ev.DetailType,
			"detail":        string(ev.DetailJSON()),
			"schemaVersion": ev.SchemaVersion,
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("publishing to stream %s: %w", b.stream, err)
	}
	return nil
}

// Depth returns the number of entries currently on the stream.
func (b *RedisBus) Depth(ctx context.Context) (int64, error) {
	return b.client.XLen(ctx, b.stream).Result()
}

// RedisDeadLetter archives rejections onto a Redis stream for later
// inspection or replay.
type RedisDeadLetter struct {
	client *redis.Client
	stream string
}

func NewRedisDeadLetter(client *redis.Client, stream string) *RedisDeadLetter {
	return &RedisDeadLetter{client: client, stream: stream}
}

// Send appends one dead letter carrying the rejection reason and the
// original event bytes.
func (d *RedisDeadLetter) Send(ctx context.Context, reason string, original json.RawMessage) error {
	err := d.client.XAdd(ctx, &redis.XAddArgs{
		Stream: d.stream,
		Values: map[string]any{
			"id":        uuid.NewString(),
			"reason":    reason,
			"event":     string(original),
			"failed_at": time.Now().UTC().Format(time.RFC3339Nano),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("sending to dead-letter stream %s: %w", d.stream, err)
	}
	return nil
}

// ReadRecent returns up to limit dead letters, newest first.
func (d *RedisDeadLetter) ReadRecent(ctx context.Context, limit int64) ([]domain.DeadLetter, error) {
	entries, err := d.client.XRevRangeN(ctx, d.stream, "+", "-", limit).Result()
	if err != nil {
		return nil, fmt.Errorf("reading dead-letter stream %s: %w", d.stream, err)
	}

	letters := make([]domain.DeadLetter, 0, len(entries))
	for _, entry := range entries {
		var dl domain.DeadLetter
		if id, ok := entry.Values["id"].(string); ok {
			dl.ID = id
		}
		if reason, ok := entry.Values["reason"].(string); ok {
			dl.Reason = reason
		}
		if ev, ok := entry.Values["event"].(string); ok {
			dl.Event = json.RawMessage(ev)
		}
		if ts, ok := entry.Values["failed_at"].(string); ok {
			if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
				dl.FailedAt = t
			}
		}
		letters = append(letters, dl)
	}
	return letters, nil
}
