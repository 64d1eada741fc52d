package geocache

import (
	"context"
	"sync"
)

// MemoryStore is a BlobStore that lives only as long as the process.
type MemoryStore struct {
	mu   sync.Mutex
	data []byte
}

// NewMemoryStore returns a store preloaded with data (may be nil).
func NewMemoryStore(data []byte) *MemoryStore {
	return &MemoryStore{data: append([]byte(nil), data...)}
}

func (s *MemoryStore) Load(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		return nil, nil
	}
	return append([]byte(nil), s.data...), nil
}

func (s *MemoryStore) Save(ctx context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = append([]byte(nil), data...)
	return nil
}
