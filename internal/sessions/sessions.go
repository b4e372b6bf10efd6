// Package sessions keeps short-lived auth state outside Postgres: revoked access
// token ids (logout) and single-use password-reset tokens.
package sessions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when a reset token is unknown, used or expired.
var ErrNotFound = errors.New("token not found")

// Store is implemented by RedisStore and MemoryStore.
type Store interface {
	// Revoke blocks the token id until ttl elapses.
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
	// SaveResetToken binds token to userID for ttl.
	SaveResetToken(ctx context.Context, token string, userID uuid.UUID, ttl time.Duration) error
	// ConsumeResetToken returns the bound user and deletes the token.
	ConsumeResetToken(ctx context.Context, token string) (uuid.UUID, error)
}

const (
	revokedKeyPrefix = "legalaid:revoked:"
	resetKeyPrefix   = "legalaid:reset:"
)

// Connect parses a redis:// URL and pings the server.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// RedisStore shares session state between instances.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an existing client; its lifecycle stays with the caller.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if jti == "" || ttl <= 0 {
		return nil
	}
	return s.client.Set(ctx, revokedKeyPrefix+jti, "1", ttl).Err()
}

func (s *RedisStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if jti == "" {
		return false, nil
	}
	_, err := s.client.Get(ctx, revokedKeyPrefix+jti).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *RedisStore) SaveResetToken(ctx context.Context, token string, userID uuid.UUID, ttl time.Duration) error {
	return s.client.Set(ctx, resetKeyPrefix+token, userID.String(), ttl).Err()
}

func (s *RedisStore) ConsumeResetToken(ctx context.Context, token string) (uuid.UUID, error) {
	raw, err := s.client.GetDel(ctx, resetKeyPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return uuid.Nil, ErrNotFound
	}
	if err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("corrupt reset token payload: %w", err)
	}
	return id, nil
}
