package worker

import (
	"context"
	"log/slog"
	"sync"
)

// Pool manages a fixed number of worker goroutines that process raw ingress
// payloads popped off the queue.
type Pool struct {
	numWorkers int
	jobs       chan []byte
	handle     func(ctx context.Context, payload []byte)
	logger     *slog.Logger
	wg         sync.WaitGroup
}

// NewPool creates a worker pool that runs handle for every submitted
// payload.
func NewPool(numWorkers int, handle func(ctx context.Context, payload []byte), logger *slog.Logger) *Pool {
	return &Pool{
		numWorkers: numWorkers,
		jobs:       make(chan []byte, numWorkers*2),
		handle:     handle,
		logger:     logger,
	}
}

// Start launches all worker goroutines. They read from the jobs channel
// until it is closed or the context is cancelled.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
	p.logger.Info("worker pool started", "num_workers", p.numWorkers)
}

// Submit sends a payload to the worker pool via the jobs channel.
func (p *Pool) Submit(payload []byte) {
	p.jobs <- payload
}

// Stop closes the jobs channel and waits for all workers to finish.
func (p *Pool) Stop() {
	close(p.jobs)
	p.wg.Wait()
	p.logger.Info("worker pool stopped")
}

func (p *Pool) worker(ctx context.Context) {
	defer p.wg.Done()

	for payload := range p.jobs {
		select {
		case <-ctx.Done():
			return
		default:
			p.handle(ctx, payload)
		}
	}
}
