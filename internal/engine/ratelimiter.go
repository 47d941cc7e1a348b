package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter enforces a per-producer sliding window on ingress using Redis.
// Each producer gets a sorted set of request timestamps; a Lua script
// atomically expires old entries, checks the count, and admits or denies.
type RateLimiter struct {
	redisClient *redis.Client
	logger      *slog.Logger
	script      *redis.Script
}

// Sliding window admission:
// 1. Drop entries older than the window
// 2. Count what remains
// 3. Under the limit: record this request, return 1 (admitted)
// 4. At the limit: return 0 (denied)
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)

local count = redis.call('ZCARD', key)

if count < limit then
    redis.call('ZADD', key, now, member)
    redis.call('EXPIRE', key, window / 1000 + 1)
    return 1
else
    return 0
end
`)

func NewRateLimiter(redisClient *redis.Client, logger *slog.Logger) *RateLimiter {
	return &RateLimiter{
		redisClient: redisClient,
		logger:      logger,
		script:      slidingWindowScript,
	}
}

func rlKey(producer string) string {
	return fmt.Sprintf("ingress_rl:%s", producer)
}

// Allow checks whether this producer is within its per-second ingress limit.
// A limit of zero disables limiting, and Redis failures fail open so a cache
// outage never blocks ingestion.
func (rl *RateLimiter) Allow(ctx context.Context, producer string, limit int) bool {
	if limit <= 0 {
		return true
	}

	key := rlKey(producer)
	now := time.Now().UnixMilli()
	window := int64(1000) // 1 second, in milliseconds
	member := fmt.Sprintf("%d:%d", now, time.Now().UnixNano()%10000)

	result, err := rl.script.Run(ctx, rl.redisClient, []string{key},
		now, window, limit, member,
	).Int64()
	if err != nil {
		rl.logger.Error("rate limiter script failed", "error", err, "producer", producer)
		return true
	}

	if result == 0 {
		rl.logger.Debug("producer rate limited", "producer", producer, "limit", limit)
		return false
	}

	return true
}
