package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the gateway. It is loaded once at
// startup and injected into constructors; nothing reads the environment
// after boot.
type Config struct {
	Port        string
	DatabaseURL string
	RedisURL    string
	NumWorkers  int

	// Placeholder identity for envelopes that omit source / detail-type.
	DefaultSource     string
	DefaultDetailType string

	// Downstream streams. An empty DeadLetterStream disables the sink:
	// rejections are still reported but nothing is archived.
	AcceptedStream   string
	DeadLetterStream string

	// IngressQueue is the Redis list the queue consumer polls for raw
	// transport payloads.
	IngressQueue string

	// ProducerRateLimit caps ingress events per producer per second over
	// the HTTP API. Zero disables limiting.
	ProducerRateLimit int

	// SchemaCacheTTL controls the read-through schema cache. Zero disables
	// the cache entirely.
	SchemaCacheTTL time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	dbURL := getEnv("DATABASE_URL", "")
	redisURL := getEnv("REDIS_URL", "")

	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if redisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}

	return &Config{
		Port:              getEnv("PORT", "8080"),
		DatabaseURL:       dbURL,
		RedisURL:          redisURL,
		NumWorkers:        getEnvInt("NUM_WORKERS", 10),
		DefaultSource:     getEnv("DEFAULT_SOURCE", "demo.producer"),
		DefaultDetailType: getEnv("DEFAULT_DETAIL_TYPE", "demo.event"),
		AcceptedStream:    getEnv("ACCEPTED_STREAM", "events:accepted"),
		DeadLetterStream:  getEnv("DEAD_LETTER_STREAM", "events:dead-letter"),
		IngressQueue:      getEnv("INGRESS_QUEUE", "events:ingress"),
		ProducerRateLimit: getEnvInt("PRODUCER_RATE_LIMIT", 0),
		SchemaCacheTTL:    time.Duration(getEnvInt("SCHEMA_CACHE_TTL_SECONDS", 300)) * time.Second,
	}, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}
