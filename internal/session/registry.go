package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrNotFound is returned for unknown session ids
var ErrNotFound = errors.New("session not found")

const minSweepInterval = time.Second

type entry struct {
	session  *Session
	lastUsed time.Time
}

// Registry tracks the live sessions of a server
type Registry struct {
	sessions map[string]*entry
	mu       sync.RWMutex
	now      func() time.Time
}

// NewRegistry creates a new session registry
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*entry),
		now:      time.Now,
	}
}

// Register adds a session to the registry
func (r *Registry) Register(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID()] = &entry{session: s, lastUsed: r.now()}
}

// Get retrieves a session by id and marks it as used
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	e.lastUsed = r.now()
	return e.session, nil
}

// Remove closes and forgets a session
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	e, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if !ok {
		return ErrNotFound
	}
	e.session.Close()
	return nil
}

// All returns all registered sessions
func (r *Registry) All() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, e := range r.sessions {
		sessions = append(sessions, e.session)
	}
	return sessions
}

// EvictIdle closes sessions unused for at least ttl. Sessions waiting for a
// reply or watched by a subscriber are kept. It returns the evicted ids.
func (r *Registry) EvictIdle(ttl time.Duration) []string {
	cutoff := r.now().Add(-ttl)

	r.mu.Lock()
	var evicted []*Session
	for id, e := range r.sessions {
		if e.lastUsed.After(cutoff) || e.session.InUse() {
			continue
		}
		delete(r.sessions, id)
		evicted = append(evicted, e.session)
	}
	r.mu.Unlock()

	ids := make([]string, 0, len(evicted))
	for _, s := range evicted {
		s.Close()
		ids = append(ids, s.ID())
	}
	return ids
}

// Sweep evicts idle sessions periodically until ctx is done
func (r *Registry) Sweep(ctx context.Context, ttl time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(max(ttl/2, minSweepInterval))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ids := r.EvictIdle(ttl); len(ids) > 0 {
				logger.Info("evicted idle sessions", "count", len(ids), "remaining", r.Count())
			}
		}
	}
}

// Close closes every registered session
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, e := range r.sessions {
		e.session.Close()
		delete(r.sessions, id)
	}
}

// Count returns the number of registered sessions
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
