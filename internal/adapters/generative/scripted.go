package generative

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Default scripted client configuration constants.
const (
	defaultScriptMinLatency = 20 * time.Millisecond
	defaultScriptMaxLatency = 60 * time.Millisecond
	defaultScriptSeed       = 42
)

// Responder produces a completion for a request. Used by the scripted
// client to simulate the backend deterministically.
type Responder func(req Request) (string, error)

// ScriptedOption applies a configuration option to the ScriptedClient.
type ScriptedOption func(*ScriptedClient)

// WithLatencyRange sets the simulated completion latency range.
func WithLatencyRange(minLatency, maxLatency time.Duration) ScriptedOption {
	return func(c *ScriptedClient) {
		if minLatency > 0 && maxLatency > minLatency {
			c.minLatency = minLatency
			c.maxLatency = maxLatency
		}
	}
}

// WithResponses queues canned completions, consumed in order before the
// responder is consulted.
func WithResponses(responses ...string) ScriptedOption {
	return func(c *ScriptedClient) {
		c.queue = append(c.queue, responses...)
	}
}

// WithResponder sets the fallback responder used once the queue is empty.
func WithResponder(r Responder) ScriptedOption {
	return func(c *ScriptedClient) {
		if r != nil {
			c.responder = r
		}
	}
}

// ScriptedClient implements Client with simulated latency and scripted
// output, standing in for the real backend in tests and offline runs.
type ScriptedClient struct {
	mu         sync.Mutex
	queue      []string
	responder  Responder
	minLatency time.Duration
	maxLatency time.Duration
	rng        *rand.Rand
	calls      int
}

// NewScriptedClient creates a scripted client with configuration options.
func NewScriptedClient(opts ...ScriptedOption) *ScriptedClient {
	c := &ScriptedClient{
		minLatency: defaultScriptMinLatency,
		maxLatency: defaultScriptMaxLatency,
		rng:        rand.New(rand.NewSource(defaultScriptSeed)), //nolint:gosec // deterministic seed for reproducible testing
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Complete returns the next scripted completion, honoring ctx during the
// simulated latency.
func (c *ScriptedClient) Complete(ctx context.Context, req Request) (Response, error) {
	c.mu.Lock()
	latency := c.minLatency + time.Duration(c.rng.Int63n(int64(c.maxLatency-c.minLatency)))
	c.calls++
	c.mu.Unlock()

	select {
	case <-ctx.Done():
		return Response{}, ctx.Err()
	case <-time.After(latency):
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) > 0 {
		next := c.queue[0]
		c.queue = c.queue[1:]
		return Response{Text: next}, nil
	}
	if c.responder != nil {
		text, err := c.responder(req)
		if err != nil {
			return Response{}, err
		}
		return Response{Text: text}, nil
	}
	return Response{}, ErrScriptExhausted
}

// Calls returns how many completions were requested.
func (c *ScriptedClient) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}
