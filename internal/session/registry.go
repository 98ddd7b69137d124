package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Registry maps client session IDs to their State. Sessions share nothing
// but Deps.
type Registry struct {
	deps Deps
	ttl  time.Duration

	mu       sync.Mutex
	sessions map[string]*State
}

// NewRegistry expires sessions idle longer than ttl; zero disables expiry.
func NewRegistry(deps Deps, ttl time.Duration) *Registry {
	return &Registry{
		deps:     deps.withDefaults(),
		ttl:      ttl,
		sessions: make(map[string]*State),
	}
}

// Get returns the session for id.
func (r *Registry) Get(id string) (*State, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// GetOrCreate returns the session for id, creating a fresh one under a new
// ID when id is empty or unknown.
func (r *Registry) GetOrCreate(ctx context.Context, id string) (*State, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[id]; ok && id != "" {
		return s, false
	}
	s := New(uuid.NewString(), r.deps)
	r.sessions[s.ID()] = s
	r.deps.Metrics.SessionOpened(ctx)
	r.deps.Logger.Info("session started", "session", s.ID())
	return s, true
}

// End tears a session down.
func (r *Registry) End(ctx context.Context, id string) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return false
	}
	s.Close()
	r.deps.Metrics.SessionClosed(ctx)
	r.deps.Logger.Info("session ended", "session", id)
	return true
}

// Sweep ends sessions idle past the TTL that are not recording and returns
// how many were removed.
func (r *Registry) Sweep(ctx context.Context) int {
	if r.ttl <= 0 {
		return 0
	}
	cutoff := r.deps.Now().Add(-r.ttl)

	r.mu.Lock()
	var expired []string
	for id, s := range r.sessions {
		view := s.Snapshot()
		if view.Recording || view.Transcribing {
			continue
		}
		if s.IdleSince().Before(cutoff) {
			expired = append(expired, id)
		}
	}
	r.mu.Unlock()

	for _, id := range expired {
		r.End(ctx, id)
	}
	return len(expired)
}

// Run sweeps on interval until ctx ends.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if r.ttl <= 0 || interval <= 0 {
		<-ctx.Done()
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
