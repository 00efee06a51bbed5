package queue

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	// Empty queue
	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}

	// Enqueue
	tick1 := Tick{AthleteID: 101, Momentum: 1500, Selectable: true}
	if !q.Enqueue(ctx, tick1) {
		t.Error("expected enqueue to succeed")
	}

	if l := q.Len(ctx); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	// Dequeue
	tickChan := q.Dequeue(ctx)
	tick := <-tickChan
	if tick.AthleteID != 101 {
		t.Errorf("expected athlete 101, got %d", tick.AthleteID)
	}
	if tick.Momentum != 1500 {
		t.Errorf("expected momentum 1500, got %f", tick.Momentum)
	}

	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
}

func TestInMemoryQueue_Capacity(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if !q.Enqueue(ctx, Tick{AthleteID: 1, Momentum: 100, Selectable: true}) {
		t.Error("expected enqueue to succeed")
	}
	if !q.Enqueue(ctx, Tick{AthleteID: 2, Momentum: 200, Selectable: true}) {
		t.Error("expected enqueue to succeed")
	}

	// Enqueue when full
	if q.Enqueue(ctx, Tick{AthleteID: 3, Momentum: 300, Selectable: true}) {
		t.Error("expected enqueue to fail when queue is full")
	}

	if l := q.Len(ctx); l != 2 {
		t.Errorf("expected length 2, got %d", l)
	}
}

func TestInMemoryQueue_CloseSemantics(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(4))
	ctx := context.Background()

	if q.IsClosed() {
		t.Error("expected new queue to be open")
	}

	if !q.Enqueue(ctx, Tick{AthleteID: 1, Momentum: 100, Selectable: true}) {
		t.Error("expected enqueue to succeed")
	}

	if err := q.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !q.IsClosed() {
		t.Error("expected queue to report closed")
	}

	// Closing again is a no-op
	if err := q.Close(); err != nil {
		t.Fatalf("unexpected error on double close: %v", err)
	}

	// Enqueue after close fails
	if q.Enqueue(ctx, Tick{AthleteID: 2, Momentum: 200, Selectable: true}) {
		t.Error("expected enqueue to fail after close")
	}

	// Buffered ticks drain, then the dequeue channel closes
	tickChan := q.Dequeue(ctx)
	tick, ok := <-tickChan
	if !ok {
		t.Fatal("expected buffered tick before close")
	}
	if tick.AthleteID != 1 {
		t.Errorf("expected athlete 1, got %d", tick.AthleteID)
	}
	select {
	case _, ok := <-tickChan:
		if ok {
			t.Error("expected dequeue channel to close after drain")
		}
	case <-time.After(time.Second):
		t.Error("timed out waiting for dequeue channel to close")
	}
}

func TestInMemoryQueue_ConcurrentProducers(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(1000), WithBufferSize(1000))
	ctx := context.Background()

	const producers = 8
	const perProducer = 100

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				id := p*perProducer + i
				if !q.Enqueue(ctx, Tick{AthleteID: id, Momentum: float64(id), Selectable: true}) {
					t.Errorf("enqueue failed for athlete %d", id)
					return
				}
			}
		}(p)
	}
	wg.Wait()

	if l := q.Len(ctx); l != producers*perProducer {
		t.Errorf("expected %d queued ticks, got %d", producers*perProducer, l)
	}

	// Drain everything
	if err := q.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	seen := make(map[int]bool)
	for tick := range q.Dequeue(ctx) {
		if seen[tick.AthleteID] {
			t.Errorf("athlete %d dequeued twice", tick.AthleteID)
		}
		seen[tick.AthleteID] = true
	}
	if len(seen) != producers*perProducer {
		t.Errorf("expected %d distinct ticks, got %d", producers*perProducer, len(seen))
	}
}
