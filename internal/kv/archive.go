package kv

import (
	"context"
	"strings"
	"sync"
)

// Archive is an unbounded in-memory store, used as the secondary tier when
// no database is configured.
type Archive struct {
	mu      sync.RWMutex
	entries map[string]string
}

func NewArchive() *Archive {
	return &Archive{
		entries: make(map[string]string),
	}
}

func (a *Archive) Put(ctx context.Context, key, value string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.entries[key] = value
	return nil
}

func (a *Archive) Get(ctx context.Context, key string) (string, bool, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	value, exists := a.entries[key]
	return value, exists, nil
}

func (a *Archive) Delete(ctx context.Context, key string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	delete(a.entries, key)
	return nil
}

func (a *Archive) Keys(ctx context.Context, prefix string) ([]string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	keys := make([]string, 0)
	for k := range a.entries {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (a *Archive) Close() error {
	// Nothing to close for in-memory storage
	return nil
}
