// internal/avatar/memory_store.go
package avatar

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps avatars in process. It is used when no Redis is configured.
type MemoryStore struct {
	mu     sync.RWMutex
	images map[string]Image
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{images: make(map[string]Image)}
}

func (s *MemoryStore) Put(_ context.Context, playerID string, img Image) error {
	if img.UpdatedAt.IsZero() {
		img.UpdatedAt = time.Now()
	}
	img.Data = append([]byte(nil), img.Data...)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.images[playerID] = img
	return nil
}

func (s *MemoryStore) Get(_ context.Context, playerID string) (Image, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	img, ok := s.images[playerID]
	if !ok {
		return Image{}, ErrNotFound
	}
	return img, nil
}

func (s *MemoryStore) Has(_ context.Context, playerID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.images[playerID]
	return ok, nil
}
