package plugins

import (
	"context"
	"fmt"
	"sync"

	"github.com/helixir/paperhub/internal/domain"
)

// Token holds a plugin's credential. The zero value holds no token and is
// safe for concurrent use.
type Token struct {
	mu    sync.RWMutex
	value string
}

// Set stores the token.
func (t *Token) Set(v string) {
	t.mu.Lock()
	t.value = v
	t.mu.Unlock()
}

// Clear drops the token.
func (t *Token) Clear() {
	t.Set("")
}

// Get returns the token or "".
func (t *Token) Get() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.value
}

// Require returns the token, or an error wrapping domain.ErrUnauthenticated
// when none is configured.
func (t *Token) Require(pluginID string) (string, error) {
	v := t.Get()
	if v == "" {
		return "", fmt.Errorf("%s: %w", pluginID, domain.ErrUnauthenticated)
	}
	return v, nil
}

// Load reads the token for key from src. A configured fallback is kept when
// the store has nothing under key.
func (t *Token) Load(ctx context.Context, src CredentialSource, key string) error {
	if src == nil || key == "" {
		return nil
	}
	v, err := src.Token(ctx, key)
	if err != nil {
		return fmt.Errorf("load credential %q: %w", key, err)
	}
	if v != "" {
		t.Set(v)
	}
	return nil
}
