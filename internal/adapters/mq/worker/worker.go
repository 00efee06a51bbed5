// Package worker defines worker contracts for asynchronous market index updates.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"time"

	"github.com/okian/gaffer/internal/adapters/marketindex"
	"github.com/okian/gaffer/internal/adapters/mq/queue"
	"github.com/okian/gaffer/pkg/logger"
	"github.com/okian/gaffer/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerMultiplier = 2 // multiplier for runtime.NumCPU()
	workerShutdownTimeout   = 5 * time.Second
	poolShutdownTimeout     = 30 * time.Second
)

// Tick abstracts what workers read off the queue.
type Tick = queue.Tick

// Board receives the market state workers maintain.
type Board interface {
	Upsert(ctx context.Context, athleteID int, score float64) (bool, error)
	Remove(ctx context.Context, athleteID int) error
}

// Queue defines how workers receive ticks.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Tick
}

// Worker applies market ticks to the board.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown gracefully stops the worker.
	// It will process any remaining ticks before stopping.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker for processing market ticks.
type InMemoryWorker struct {
	queue Queue
	board Board
	name  string

	// Shutdown control
	shutdown chan struct{}
	done     chan struct{}

	// Logging
	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(queue Queue, board Board, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    queue,
		board:    board,
		name:     "worker", // default name
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}

	for _, opt := range opts {
		opt(w)
	}

	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}

	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer func() {
		close(w.done)
	}()

	tickChan := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case tick, ok := <-tickChan:
			if !ok {
				// Channel closed, worker should stop
				return
			}

			if err := w.processTick(ctx, tick); err != nil {
				w.logger.Error(ctx, "error processing tick", logger.Error(err))
			}
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	close(w.shutdown)

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// processTick applies a single tick to the board.
func (w *InMemoryWorker) processTick(ctx context.Context, tick Tick) error {
	start := time.Now()
	defer func() {
		latency := time.Since(start).Milliseconds()
		metrics.RecordWorkerTickLatency(float64(latency))
	}()

	if !tick.Selectable {
		// Unselectable athletes leave the board; unknown ones never joined.
		if err := w.board.Remove(ctx, tick.AthleteID); err != nil && !errors.Is(err, marketindex.ErrNotFound) {
			metrics.RecordWorkerError()
			metrics.RecordErrorByComponent("worker", "board_remove_failed")
			w.logger.Error(ctx, "board removal failed",
				logger.Int("athleteID", tick.AthleteID),
				logger.Error(err),
			)
			return fmt.Errorf("board removal failed for athlete %d: %w", tick.AthleteID, err)
		}
		return nil
	}

	if _, err := w.board.Upsert(ctx, tick.AthleteID, tick.Momentum); err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "board_upsert_failed")
		w.logger.Error(ctx, "board update failed",
			logger.Int("athleteID", tick.AthleteID),
			logger.Error(err),
		)
		return fmt.Errorf("board update failed for athlete %d: %w", tick.AthleteID, err)
	}

	return nil
}

// Pool manages multiple workers.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	board   Board

	// Shutdown control
	shutdown chan struct{}

	// Logging
	logger logger.Logger
}

// NewPool creates a new worker pool.
func NewPool(workerCount int, queue Queue, board Board) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	pool := &Pool{
		workers:  make([]*InMemoryWorker, workerCount),
		queue:    queue,
		board:    board,
		shutdown: make(chan struct{}),
		logger:   logger.Get().Named("worker-pool"),
	}

	for i := 0; i < workerCount; i++ {
		pool.workers[i] = NewInMemoryWorker(
			queue,
			board,
			WithName("worker-"+strconv.Itoa(i)),
		)
	}

	metrics.UpdateWorkerActiveCount(workerCount)

	return pool
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, worker := range p.workers {
		go worker.Run(ctx)
	}
}

// Stop gracefully stops all workers.
func (p *Pool) Stop() {
	close(p.shutdown)

	for _, worker := range p.workers {
		select {
		case <-worker.done:
			// Worker finished
		case <-time.After(workerShutdownTimeout):
			// Worker timeout
		}
	}
}

// Shutdown gracefully shuts down the entire worker pool.
func (p *Pool) Shutdown(ctx context.Context) error {
	// First close the queue to stop new ticks
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	close(p.shutdown)

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, worker := range p.workers {
		select {
		case <-worker.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}

	metrics.UpdateWorkerActiveCount(0)
	return nil
}
