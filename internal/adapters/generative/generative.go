// Package generative defines the contract for the natural-language backend
// that turns a scoring summary into rationale text. The backend is fallible
// and slow; every implementation honors context cancellation and the caller
// treats the output as untrusted until validated.
package generative

import "context"

// Request is one structured completion request. Prompt carries the
// instruction block; Payload carries the machine-readable JSON context the
// backend reasons over.
type Request struct {
	System  string
	Prompt  string
	Payload string
}

// Response is the backend's raw completion. Callers parse and validate it;
// nothing here is trusted.
type Response struct {
	Text string
}

// Client invokes the generative backend. The call is expected to suspend for
// non-trivial latency; ctx bounds it.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
}
