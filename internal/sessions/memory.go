package sessions

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type resetEntry struct {
	userID  uuid.UUID
	expires time.Time
}

// MemoryStore is the single-instance fallback used when REDIS_URL is unset, and in tests.
type MemoryStore struct {
	mu      sync.Mutex
	now     func() time.Time
	revoked map[string]time.Time
	resets  map[string]resetEntry
}

// NewMemoryStore returns an empty store on the wall clock.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:     time.Now,
		revoked: map[string]time.Time{},
		resets:  map[string]resetEntry{},
	}
}

func (s *MemoryStore) Revoke(_ context.Context, jti string, ttl time.Duration) error {
	if jti == "" || ttl <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[jti] = s.now().Add(ttl)
	return nil
}

func (s *MemoryStore) IsRevoked(_ context.Context, jti string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.revoked[jti]
	if !ok {
		return false, nil
	}
	if !s.now().Before(exp) {
		delete(s.revoked, jti)
		return false, nil
	}
	return true, nil
}

func (s *MemoryStore) SaveResetToken(_ context.Context, token string, userID uuid.UUID, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resets[token] = resetEntry{userID: userID, expires: s.now().Add(ttl)}
	return nil
}

func (s *MemoryStore) ConsumeResetToken(_ context.Context, token string) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.resets[token]
	if !ok {
		return uuid.Nil, ErrNotFound
	}
	delete(s.resets, token)
	if !s.now().Before(e.expires) {
		return uuid.Nil, ErrNotFound
	}
	return e.userID, nil
}
