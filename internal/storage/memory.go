package storage

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// Memory is an in-process ObjectStore for local runs without Supabase and for tests.
type Memory struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func NewMemory() *Memory { return &Memory{objects: map[string][]byte{}} }

func (m *Memory) Upload(_ context.Context, key string, r io.Reader, _ string, _ int64) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = b
	return nil
}

func (m *Memory) SignedURL(_ context.Context, key string, expiresInSeconds int) (string, error) {
	if !m.Has(key) {
		return "", fmt.Errorf("object %q not found", key)
	}
	return fmt.Sprintf("memory://%s?expires=%d", key, expiresInSeconds), nil
}

func (m *Memory) PublicURL(key string) string {
	if key == "" {
		return ""
	}
	return "memory://" + key
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *Memory) BulkDelete(ctx context.Context, keys []string) error {
	for _, k := range keys {
		_ = m.Delete(ctx, k)
	}
	return nil
}

// Has reports whether key is stored.
func (m *Memory) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok
}
