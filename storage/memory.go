package storage

import (
	"sync"

	"github.com/velluxe/storefront-core/types"
)

// MemoryStore is a volatile KeyValue, used in tests and as a fallback
// when no storage path is configured.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string][]byte),
	}
}

func (m *MemoryStore) Get(key string) ([]byte, bool, error) {
	if key == "" {
		return nil, false, types.ErrStorageKeyEmpty
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	value, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}

	buf := make([]byte, len(value))
	copy(buf, value)
	return buf, true, nil
}

func (m *MemoryStore) Set(key string, value []byte) error {
	if key == "" {
		return types.ErrStorageKeyEmpty
	}

	buf := make([]byte, len(value))
	copy(buf, value)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = buf
	return nil
}

func (m *MemoryStore) Delete(key string) error {
	if key == "" {
		return types.ErrStorageKeyEmpty
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, key)
	return nil
}

func (m *MemoryStore) Token() (string, bool) {
	value, ok, err := m.Get(types.KeyFallbackToken)
	if err != nil || !ok || len(value) == 0 {
		return "", false
	}
	return string(value), true
}

func (m *MemoryStore) SetToken(token string) error {
	return m.Set(types.KeyFallbackToken, []byte(token))
}

func (m *MemoryStore) ClearToken() error {
	return m.Delete(types.KeyFallbackToken)
}
