package memory

import (
	"context"
	"sync"
	"time"

	"github.com/example/ec-shop/internal/apperror"
	"github.com/example/ec-shop/internal/domain/cart"
	"github.com/example/ec-shop/internal/domain/checkout"
)

// SessionStore keeps checkout sessions in memory. Expiry follows each
// session's ExpiresAt; claims expire after their own ttl.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]checkout.Session
	claims   map[string]time.Time
	now      func() time.Time
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]checkout.Session),
		claims:   make(map[string]time.Time),
		now:      time.Now,
	}
}

func cloneSession(s checkout.Session) checkout.Session {
	if s.Snapshot != nil {
		snap := *s.Snapshot
		c := cloneCart(cart.Cart{Items: snap.Items})
		snap.Items = c.Items
		s.Snapshot = &snap
	}
	if s.PaidAt != nil {
		t := *s.PaidAt
		s.PaidAt = &t
	}
	return s
}

func (s *SessionStore) Get(_ context.Context, userID string) (*checkout.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[userID]
	if !ok || !s.now().Before(sess.ExpiresAt) {
		delete(s.sessions, userID)
		return nil, apperror.NotFound("checkout session", userID)
	}
	c := cloneSession(sess)
	return &c, nil
}

func (s *SessionStore) Save(_ context.Context, sess *checkout.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.UserID] = cloneSession(*sess)
	return nil
}

func (s *SessionStore) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
	return nil
}

func (s *SessionStore) Claim(_ context.Context, sessionID string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if until, ok := s.claims[sessionID]; ok && now.Before(until) {
		return false, nil
	}
	s.claims[sessionID] = now.Add(ttl)
	return true, nil
}

func (s *SessionStore) Release(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.claims, sessionID)
	return nil
}

var _ checkout.SessionStore = (*SessionStore)(nil)
