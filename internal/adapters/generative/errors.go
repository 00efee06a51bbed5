package generative

import "errors"

// Sentinel kinds for generative backend errors.
var (
	// ErrTimeout means the backend did not answer within the configured
	// deadline. Retryable once.
	ErrTimeout = errors.New("generation timed out")

	// ErrUnavailable means the backend refused the request, either directly
	// or through an open circuit breaker.
	ErrUnavailable = errors.New("generative backend unavailable")

	// ErrMalformedResponse means the backend answered with a body the
	// client could not interpret.
	ErrMalformedResponse = errors.New("malformed backend response")

	// ErrScriptExhausted means a scripted client ran out of canned
	// responses.
	ErrScriptExhausted = errors.New("script exhausted")
)
