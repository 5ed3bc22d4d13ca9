package testutil

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/c360/pixelflow/errors"
	"github.com/c360/pixelflow/storage"
)

// MemoryStore is an in-memory storage.Store.
// Thread-safe for concurrent use from multiple goroutines.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
	puts int

	// FailPuts makes the next N Put calls fail with PutErr.
	FailPuts int
	PutErr   error
}

var _ storage.Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

// Put stores a copy of data.
func (s *MemoryStore) Put(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.puts++
	if s.FailPuts > 0 {
		s.FailPuts--
		if s.PutErr != nil {
			return s.PutErr
		}
		return errors.ErrStorageUnavailable
	}

	buf := make([]byte, len(data))
	copy(buf, data)
	s.data[key] = buf
	return nil
}

// Get returns the stored bytes.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.data[key]
	if !ok {
		return nil, errors.WrapInvalid(errors.ErrKeyNotFound, "MemoryStore", "Get", key)
	}
	return data, nil
}

// List returns sorted keys with prefix.
func (s *MemoryStore) List(_ context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := []string{}
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Delete removes key.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// Len returns the number of stored keys.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Puts returns how many Put calls were made, including failed ones.
func (s *MemoryStore) Puts() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.puts
}
