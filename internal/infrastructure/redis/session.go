package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/ec-shop/internal/apperror"
	"github.com/example/ec-shop/internal/domain/checkout"
)

const (
	sessionKeyPrefix = "checkout:session:"
	claimKeyPrefix   = "checkout:lock:"
)

// SessionRepository stores each user's checkout session until its ExpiresAt.
// Confirmation claims are SETNX keys with their own expiry.
type SessionRepository struct {
	client *redis.Client
	now    func() time.Time
}

func NewSessionRepository(client *redis.Client) *SessionRepository {
	return &SessionRepository{client: client, now: time.Now}
}

func (r *SessionRepository) Get(ctx context.Context, userID string) (*checkout.Session, error) {
	data, err := r.client.Get(ctx, sessionKeyPrefix+userID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, apperror.NotFound("checkout session", userID)
	}
	if err != nil {
		return nil, fmt.Errorf("redis get session: %w", err)
	}

	var s checkout.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	if !r.now().Before(s.ExpiresAt) {
		return nil, apperror.NotFound("checkout session", userID)
	}
	return &s, nil
}

// Save keeps the session's original expiry, including when it is rewritten
// as paid.
func (r *SessionRepository) Save(ctx context.Context, s *checkout.Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := r.client.Set(ctx, sessionKeyPrefix+s.UserID, data, s.TTL(r.now())).Err(); err != nil {
		return fmt.Errorf("redis set session: %w", err)
	}
	return nil
}

func (r *SessionRepository) Delete(ctx context.Context, userID string) error {
	if err := r.client.Del(ctx, sessionKeyPrefix+userID).Err(); err != nil {
		return fmt.Errorf("redis del session: %w", err)
	}
	return nil
}

func (r *SessionRepository) Claim(ctx context.Context, sessionID string, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, claimKeyPrefix+sessionID, r.now().Unix(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis claim session: %w", err)
	}
	return ok, nil
}

func (r *SessionRepository) Release(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, claimKeyPrefix+sessionID).Err(); err != nil {
		return fmt.Errorf("redis release session: %w", err)
	}
	return nil
}

var _ checkout.SessionStore = (*SessionRepository)(nil)
