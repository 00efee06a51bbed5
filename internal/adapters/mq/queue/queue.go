// Package queue defines the contract for publishing and consuming market
// ticks, the per-athlete momentum readings that feed the market index.
package queue

import (
	"context"
	"sync"

	"github.com/okian/gaffer/pkg/metrics"
)

// Default queue configuration constants.
const (
	defaultQueueCapacity = 4096
	defaultBufferSize    = 4096
)

// Tick is one market momentum reading for an athlete. Unselectable
// athletes carry Selectable=false so consumers can drop them from
// whatever index they maintain.
type Tick struct {
	AthleteID  int
	Momentum   float64
	Selectable bool
}

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a tick to the queue.
	// Returns false if the queue is full and the tick was not enqueued.
	Enqueue(ctx context.Context, t Tick) bool

	// Dequeue returns a channel that will receive ticks as they become available.
	// The channel will be closed when the queue is closed.
	Dequeue(ctx context.Context) <-chan Tick

	// Len returns the current number of queued ticks.
	Len(ctx context.Context) int

	// Close gracefully shuts down the queue.
	// After closing, no new ticks can be enqueued and the dequeue channel will be closed.
	Close() error

	// IsClosed returns true if the queue has been closed.
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	ticks      chan Tick
	capacity   int
	bufferSize int
	mu         sync.RWMutex
	closed     bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity:   defaultQueueCapacity,
		bufferSize: defaultBufferSize,
	}

	for _, opt := range opts {
		opt(q)
	}

	q.ticks = make(chan Tick, q.bufferSize)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	metrics.UpdateQueueUtilization(0.0)

	return q
}

// Enqueue adds a tick to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, t Tick) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "closed")
		return false
	}

	if len(q.ticks) >= q.capacity {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "capacity_exceeded")
		return false
	}

	select {
	case q.ticks <- t:
		metrics.RecordQueueEnqueue()
		currentSize := len(q.ticks)
		metrics.UpdateQueueSize(currentSize)
		metrics.UpdateQueueUtilization(float64(currentSize) / float64(q.capacity))
		return true
	case <-ctx.Done():
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "context_cancelled")
		return false
	default:
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "queue_full")
		return false
	}
}

// Dequeue returns a channel that will receive ticks as they become available.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Tick {
	dequeueChan := make(chan Tick)
	go func() {
		defer close(dequeueChan)
		for tick := range q.ticks {
			select {
			case dequeueChan <- tick:
				metrics.RecordQueueDequeue()
				currentSize := len(q.ticks)
				metrics.UpdateQueueSize(currentSize)
				metrics.UpdateQueueUtilization(float64(currentSize) / float64(q.capacity))
			case <-ctx.Done():
				return
			}
		}
	}()
	return dequeueChan
}

// Len returns the current number of queued ticks.
func (q *InMemoryQueue) Len(ctx context.Context) int {
	size := len(q.ticks)
	metrics.UpdateQueueSize(size)
	metrics.UpdateQueueUtilization(float64(size) / float64(q.capacity))
	return size
}

// Close gracefully shuts down the queue.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}

	close(q.ticks)
	q.closed = true

	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
