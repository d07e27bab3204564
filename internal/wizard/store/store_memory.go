// Package store keeps wizard sessions in process memory. Sessions are
// ephemeral and never persisted.
package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"deeptrack/internal/wizard/models"
	"deeptrack/pkg/platform/sentinel"
)

// DefaultIdleTTL expires sessions the user walked away from.
const DefaultIdleTTL = 30 * time.Minute

// InMemorySessionStore holds sessions keyed by id with idle expiry.
type InMemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session
	ttl      time.Duration
	now      func() time.Time
	onEvict  func(*models.Session)
}

type Option func(*InMemorySessionStore)

func WithIdleTTL(ttl time.Duration) Option {
	return func(s *InMemorySessionStore) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *InMemorySessionStore) {
		if now != nil {
			s.now = now
		}
	}
}

// WithEvictHook runs for every session removed by idle expiry. Explicit
// deletes leave cleanup to the caller.
func WithEvictHook(fn func(*models.Session)) Option {
	return func(s *InMemorySessionStore) {
		s.onEvict = fn
	}
}

func NewInMemorySessionStore(opts ...Option) *InMemorySessionStore {
	s := &InMemorySessionStore{
		sessions: make(map[string]*models.Session),
		ttl:      DefaultIdleTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *InMemorySessionStore) Save(_ context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID()] = session
	return nil
}

// Get returns sentinel.ErrNotFound for unknown ids and sentinel.ErrExpired for
// sessions idle past the TTL, which are evicted on the way out.
func (s *InMemorySessionStore) Get(_ context.Context, id string) (*models.Session, error) {
	s.mu.RLock()
	session, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, sentinel.ErrNotFound)
	}
	if s.expired(session, s.now()) {
		s.remove(id, session, true)
		return nil, fmt.Errorf("session %s: %w", id, sentinel.ErrExpired)
	}
	return session, nil
}

func (s *InMemorySessionStore) Delete(_ context.Context, id string) error {
	s.mu.RLock()
	session, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("session %s: %w", id, sentinel.ErrNotFound)
	}
	s.remove(id, session, false)
	return nil
}

// ListByUser returns the live sessions owned by userID.
func (s *InMemorySessionStore) ListByUser(_ context.Context, userID string) ([]*models.Session, error) {
	now := s.now()
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Session
	for _, session := range s.sessions {
		if session.UserID() == userID && !s.expired(session, now) {
			out = append(out, session)
		}
	}
	return out, nil
}

func (s *InMemorySessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sweep evicts every expired session and returns how many were removed.
func (s *InMemorySessionStore) Sweep(_ context.Context) int {
	now := s.now()
	s.mu.RLock()
	var stale []*models.Session
	for _, session := range s.sessions {
		if s.expired(session, now) {
			stale = append(stale, session)
		}
	}
	s.mu.RUnlock()
	for _, session := range stale {
		s.remove(session.ID(), session, true)
	}
	return len(stale)
}

// Run sweeps on every interval tick until ctx is done.
func (s *InMemorySessionStore) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

func (s *InMemorySessionStore) expired(session *models.Session, now time.Time) bool {
	return now.Sub(session.TouchedAt()) > s.ttl
}

func (s *InMemorySessionStore) remove(id string, session *models.Session, expired bool) {
	s.mu.Lock()
	removed := s.sessions[id] == session
	if removed {
		delete(s.sessions, id)
	}
	s.mu.Unlock()
	if removed && expired && s.onEvict != nil {
		s.onEvict(session)
	}
}
