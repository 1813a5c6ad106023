// Package credentials stores plugin API tokens by key.
package credentials

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Store is a credential store. Token returns "" with a nil error when no
// token is stored under key.
type Store interface {
	Token(ctx context.Context, key string) (string, error)
	SetToken(ctx context.Context, key, token string) error
	DeleteToken(ctx context.Context, key string) error
	Close() error
}

// Open creates the configured store. An empty path keeps tokens in memory.
func Open(path string) (Store, error) {
	if strings.TrimSpace(path) == "" {
		return NewMemoryStore(), nil
	}
	store, err := OpenBolt(path)
	if err != nil {
		return nil, fmt.Errorf("open credential store: %w", err)
	}
	return store, nil
}

// MemoryStore keeps tokens in a map.
type MemoryStore struct {
	mu     sync.RWMutex
	tokens map[string]string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tokens: make(map[string]string)}
}

// Token implements Store.
func (m *MemoryStore) Token(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tokens[key], nil
}

// SetToken implements Store. An empty token deletes the key.
func (m *MemoryStore) SetToken(ctx context.Context, key, token string) error {
	if key == "" {
		return errEmptyKey
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if token == "" {
		delete(m.tokens, key)
		return nil
	}
	m.tokens[key] = token
	return nil
}

// DeleteToken implements Store.
func (m *MemoryStore) DeleteToken(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, key)
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error { return nil }
