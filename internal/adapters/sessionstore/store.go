// Package sessionstore keeps live refinement sessions addressable by id.
package sessionstore

import (
	"context"

	"github.com/okian/gaffer/internal/domain/session"
)

// Store provides access to live sessions.
type Store interface {
	// Put registers a session under a fresh id and returns that id.
	// Returns ErrStoreFull when the store is at capacity.
	Put(ctx context.Context, s *session.Session) (string, error)

	// Get returns the session registered under id.
	// Returns ErrNotFound for unknown ids.
	Get(ctx context.Context, id string) (*session.Session, error)

	// Delete removes the session registered under id, if any.
	Delete(ctx context.Context, id string)

	// Count returns the number of live sessions.
	Count(ctx context.Context) int
}
