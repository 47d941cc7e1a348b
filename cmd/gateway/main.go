package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/parcelworks/eventgate/internal/api"
	"github.com/parcelworks/eventgate/internal/bus"
	"github.com/parcelworks/eventgate/internal/config"
	"github.com/parcelworks/eventgate/internal/engine"
	"github.com/parcelworks/eventgate/internal/ingress"
	"github.com/parcelworks/eventgate/internal/schema"
	"github.com/parcelworks/eventgate/internal/store"
	"github.com/parcelworks/eventgate/internal/worker"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize PostgreSQL
	ctx := context.Background()
	pgStore, err := store.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pgStore.Close()
	logger.Info("connected to PostgreSQL")

	// Run database migrations
	if err := pgStore.RunMigrations(ctx, "migrations"); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	logger.Info("database migrations applied")

	// Initialize Redis
	redisClient, err := bus.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	logger.Info("connected to Redis")

	// Schema registry, optionally fronted by the read-through cache
	var schemaStore schema.Store = pgStore
	if cfg.SchemaCacheTTL > 0 {
		schemaStore = store.NewCached(pgStore, redisClient, cfg.SchemaCacheTTL, logger)
	}
	registry := schema.NewRegistry(schemaStore)

	// Downstream capabilities
	acceptedBus := bus.NewRedisBus(redisClient, cfg.AcceptedStream)
	var deadLetters *bus.RedisDeadLetter
	var sink bus.DeadLetterSink
	if cfg.DeadLetterStream != "" {
		deadLetters = bus.NewRedisDeadLetter(redisClient, cfg.DeadLetterStream)
		sink = deadLetters
	}

	normalizer := ingress.NewNormalizer(cfg.DefaultSource, cfg.DefaultDetailType)
	router := engine.NewRouter(registry, acceptedBus, sink, logger)
	limiter := engine.NewRateLimiter(redisClient, logger)

	// Queue ingress consumer
	consumerCtx, stopConsumer := context.WithCancel(ctx)
	defer stopConsumer()
	consumer := worker.NewConsumer(redisClient, cfg.IngressQueue, normalizer, router, cfg.NumWorkers, logger)
	go consumer.Start(consumerCtx)

	// HTTP API
	schemaHandler := api.NewSchemaHandler(registry)
	eventHandler := api.NewEventHandler(normalizer, router, limiter, cfg.ProducerRateLimit, cfg.DefaultSource)
	var dlqHandler *api.DeadLetterHandler
	if deadLetters != nil {
		dlqHandler = api.NewDeadLetterHandler(deadLetters)
	}

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      api.NewRouter(schemaHandler, eventHandler, dlqHandler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down...")
	stopConsumer()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
