package generative

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/okian/gaffer/pkg/logger"
	"github.com/okian/gaffer/pkg/metrics"
)

// Default HTTP client configuration constants.
const (
	defaultCompletionTimeout = 30 * time.Second
	defaultTemperature       = 0.7
	defaultRatePerMinute     = 20
	breakerConsecutiveTrips  = 5
	breakerCooldown          = 30 * time.Second
)

// HTTPOption applies a configuration option to the HTTPClient.
type HTTPOption func(*HTTPClient)

// WithModel sets the backend model identifier.
func WithModel(model string) HTTPOption {
	return func(c *HTTPClient) {
		if model != "" {
			c.model = model
		}
	}
}

// WithAPIKey sets the bearer token sent with each request.
func WithAPIKey(key string) HTTPOption {
	return func(c *HTTPClient) {
		c.apiKey = key
	}
}

// WithTimeout bounds a single completion call.
func WithTimeout(d time.Duration) HTTPOption {
	return func(c *HTTPClient) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) HTTPOption {
	return func(c *HTTPClient) {
		if t >= 0 {
			c.temperature = t
		}
	}
}

// WithRatePerMinute caps outgoing completion calls.
func WithRatePerMinute(n int) HTTPOption {
	return func(c *HTTPClient) {
		if n > 0 {
			c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), 1)
		}
	}
}

// WithHTTPDoer sets a custom transport, primarily for tests.
func WithHTTPDoer(doer *http.Client) HTTPOption {
	return func(c *HTTPClient) {
		if doer != nil {
			c.httpc = doer
		}
	}
}

// WithHTTPLogger sets a custom logger for the client.
func WithHTTPLogger(log logger.Logger) HTTPOption {
	return func(c *HTTPClient) {
		if log != nil {
			c.log = log
		}
	}
}

// HTTPClient talks to a chat-completion style backend over HTTP. Calls are
// rate limited and guarded by a circuit breaker so a struggling backend
// fails fast instead of queueing latency.
type HTTPClient struct {
	endpoint    string
	model       string
	apiKey      string
	timeout     time.Duration
	temperature float64
	httpc       *http.Client
	limiter     *rate.Limiter
	breaker     *gobreaker.CircuitBreaker
	log         logger.Logger
}

// NewHTTPClient creates an HTTPClient for the given completion endpoint.
func NewHTTPClient(endpoint string, opts ...HTTPOption) *HTTPClient {
	c := &HTTPClient{
		endpoint:    endpoint,
		model:       "gpt-4o",
		timeout:     defaultCompletionTimeout,
		temperature: defaultTemperature,
		httpc:       &http.Client{},
		limiter:     rate.NewLimiter(rate.Every(time.Minute/defaultRatePerMinute), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logger.Get().Named("generative")
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "generative",
		Timeout: breakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerConsecutiveTrips
		},
	})
	return c
}

// chat-completion wire shapes.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Temperature float64       `json:"temperature"`
	Messages    []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Complete sends one completion request, honoring the rate limit and the
// breaker. Deadline overruns surface as ErrTimeout; an open breaker as
// ErrUnavailable.
func (c *HTTPClient) Complete(ctx context.Context, req Request) (Response, error) {
	metrics.RecordGenerationRequest()
	start := time.Now()
	defer func() {
		metrics.RecordGenerationLatency(float64(time.Since(start).Milliseconds()))
	}()

	if err := c.limiter.Wait(ctx); err != nil {
		return Response{}, fmt.Errorf("rate limit wait: %w", err)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.do(ctx, req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.RecordBreakerOpen()
			return Response{}, fmt.Errorf("circuit open: %w", ErrUnavailable)
		}
		if errors.Is(err, context.DeadlineExceeded) {
			metrics.RecordGenerationTimeout()
			return Response{}, fmt.Errorf("completion after %s: %w", c.timeout, ErrTimeout)
		}
		return Response{}, err
	}
	return result.(Response), nil
}

func (c *HTTPClient) do(ctx context.Context, req Request) (Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Temperature: c.temperature,
		Messages: []chatMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.Prompt + "\n\n" + req.Payload},
		},
	})
	if err != nil {
		return Response{}, fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return Response{}, ctx.Err()
		}
		return Response{}, fmt.Errorf("backend call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.log.Warn(ctx, "backend returned non-200",
			logger.Int("status", resp.StatusCode),
			logger.String("body", string(payload)),
		)
		return Response{}, fmt.Errorf("backend status %d: %w", resp.StatusCode, ErrUnavailable)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Response{}, fmt.Errorf("decode response: %w", ErrMalformedResponse)
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return Response{}, fmt.Errorf("no choices returned: %w", ErrMalformedResponse)
	}
	return Response{Text: parsed.Choices[0].Message.Content}, nil
}
