package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"

	"github.com/parcelworks/eventgate/internal/engine"
	"github.com/parcelworks/eventgate/internal/ingress"
)

// Consumer polls the ingress queue for raw transport payloads and routes
// them through the worker pool. It is the retrying supervisor around the
// core: poll failures back off and per-payload infrastructure faults push
// the payload back onto the queue, while the router itself never retries.
type Consumer struct {
	redisClient  *redis.Client
	queue        string
	normalizer   *ingress.Normalizer
	router       *engine.Router
	pool         *Pool
	logger       *slog.Logger
	pollInterval time.Duration
	batchSize    int64
	backoff      *backoff.ExponentialBackOff
}

// NewConsumer creates a consumer over the given Redis list.
func NewConsumer(redisClient *redis.Client, queue string, normalizer *ingress.Normalizer, router *engine.Router, numWorkers int, logger *slog.Logger) *Consumer {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxInterval = 10 * time.Second
	bo.MaxElapsedTime = 0 // retry for as long as we run

	c := &Consumer{
		redisClient:  redisClient,
		queue:        queue,
		normalizer:   normalizer,
		router:       router,
		logger:       logger,
		pollInterval: 100 * time.Millisecond,
		batchSize:    10,
		backoff:      bo,
	}
	c.pool = NewPool(numWorkers, c.process, logger)
	return c
}

// Start begins the polling loop. It runs until the context is cancelled.
func (c *Consumer) Start(ctx context.Context) {
	c.logger.Info("ingress consumer started", "queue", c.queue)
	c.pool.Start(ctx)

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("ingress consumer stopping")
			c.pool.Stop()
			return
		case <-ticker.C:
			if err := c.poll(ctx); err != nil {
				wait := c.backoff.NextBackOff()
				c.logger.Error("ingress queue poll failed", "error", err, "retry_in", wait)
				select {
				case <-ctx.Done():
				case <-time.After(wait):
				}
				continue
			}
			c.backoff.Reset()
		}
	}
}

// poll pops a batch of raw payloads and hands them to the pool.
func (c *Consumer) poll(ctx context.Context) error {
	payloads, err := c.redisClient.LPopCount(ctx, c.queue, int(c.batchSize)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return err
	}

	for _, payload := range payloads {
		c.pool.Submit([]byte(payload))
	}
	return nil
}

// process normalizes and routes one raw payload. An infrastructure fault
// leaves the payload's fate undecided, so it goes back on the queue for a
// later attempt.
func (c *Consumer) process(ctx context.Context, payload []byte) {
	hint, body := ingress.DetectEnvelope(payload)
	outcomes, err := c.router.RouteAll(ctx, c.normalizer.Normalize(body, hint))
	if err != nil {
		c.logger.Error("routing failed, requeuing payload", "error", err)
		if pushErr := c.redisClient.RPush(ctx, c.queue, payload).Err(); pushErr != nil {
			c.logger.Error("requeue failed, payload dropped", "error", pushErr)
		}
		return
	}

	accepted := 0
	for _, out := range outcomes {
		if out.Accepted() {
			accepted++
		}
	}
	c.logger.Info("payload routed",
		"records", len(outcomes),
		"accepted", accepted,
		"rejected", len(outcomes)-accepted,
	)
}
