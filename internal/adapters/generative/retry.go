package generative

import (
	"context"
	"errors"
	"time"

	"github.com/okian/gaffer/pkg/metrics"
)

// defaultRetryBackoff is the wait before the single retry attempt.
const defaultRetryBackoff = 2 * time.Second

// retryClient retries a transient failure once after a backoff. The
// generative call is the sole retry point in the pipeline; everything else
// fails the turn immediately.
type retryClient struct {
	inner   Client
	backoff time.Duration
}

// WithRetry wraps a client so timeouts and unavailability are retried once
// after backoff. A zero backoff selects the default.
func WithRetry(inner Client, backoff time.Duration) Client {
	if backoff <= 0 {
		backoff = defaultRetryBackoff
	}
	return &retryClient{inner: inner, backoff: backoff}
}

// Complete attempts the completion, retrying once on a retryable failure.
func (c *retryClient) Complete(ctx context.Context, req Request) (Response, error) {
	resp, err := c.inner.Complete(ctx, req)
	if err == nil || !retryable(err) {
		return resp, err
	}

	metrics.RecordGenerationRetry()
	select {
	case <-ctx.Done():
		return Response{}, ctx.Err()
	case <-time.After(c.backoff):
	}
	return c.inner.Complete(ctx, req)
}

func retryable(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrUnavailable)
}
