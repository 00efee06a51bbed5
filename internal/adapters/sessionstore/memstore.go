package sessionstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/okian/gaffer/internal/domain/session"
	"github.com/okian/gaffer/pkg/metrics"
)

const defaultMaxSessions = 1024

// Option applies a configuration option to the MemStore.
type Option func(*MemStore)

// WithMaxSessions caps how many sessions the store holds at once.
func WithMaxSessions(n int) Option {
	return func(s *MemStore) {
		if n > 0 {
			s.maxSessions = n
		}
	}
}

// MemStore is an in-memory Store keyed by random ids. Sessions carry their
// own locking, so the store only guards the map.
type MemStore struct {
	mu          sync.RWMutex
	sessions    map[string]*session.Session
	maxSessions int
}

// NewMemStore creates an empty in-memory session store.
func NewMemStore(opts ...Option) *MemStore {
	s := &MemStore{
		sessions:    make(map[string]*session.Session),
		maxSessions: defaultMaxSessions,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Put registers the session under a fresh uuid and returns it.
func (s *MemStore) Put(ctx context.Context, sess *session.Session) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.sessions) >= s.maxSessions {
		return "", fmt.Errorf("capacity %d reached: %w", s.maxSessions, ErrStoreFull)
	}
	id := uuid.NewString()
	sess.ID = id
	s.sessions[id] = sess
	metrics.UpdateSessionsActive(len(s.sessions))
	return id, nil
}

// Get returns the session registered under id.
func (s *MemStore) Get(ctx context.Context, id string) (*session.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("id %q: %w", id, ErrNotFound)
	}
	return sess, nil
}

// Delete removes the session registered under id, if any.
func (s *MemStore) Delete(ctx context.Context, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	metrics.UpdateSessionsActive(len(s.sessions))
}

// Count returns the number of live sessions.
func (s *MemStore) Count(ctx context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
