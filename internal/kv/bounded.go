package kv

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/afero"
)

// DefaultQuota matches the low end of typical browser local storage.
const DefaultQuota int64 = 5 << 20

// Bounded is the synchronous primary tier. Usage is counted as
// len(key)+len(value) over all entries and may never exceed the quota.
// When opened with a filesystem the full map is snapshotted to a JSON file
// after every mutation.
type Bounded struct {
	mu      sync.RWMutex
	quota   int64
	used    int64
	entries map[string]string

	fs   afero.Fs
	path string
}

// NewBounded returns a memory-only bounded store.
func NewBounded(quota int64) *Bounded {
	if quota <= 0 {
		quota = DefaultQuota
	}
	return &Bounded{
		quota:   quota,
		entries: make(map[string]string),
	}
}

// OpenBounded returns a bounded store snapshotted at path on fs, loading the
// existing snapshot if there is one.
func OpenBounded(fs afero.Fs, path string, quota int64) (*Bounded, error) {
	b := NewBounded(quota)
	b.fs = fs
	b.path = path

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return b, nil
		}
		return nil, fmt.Errorf("error reading snapshot %s: %w", path, err)
	}
	if len(data) == 0 {
		return b, nil
	}
	if err := json.Unmarshal(data, &b.entries); err != nil {
		return nil, fmt.Errorf("error decoding snapshot %s: %w", path, err)
	}
	for k, v := range b.entries {
		b.used += entrySize(k, v)
	}
	return b, nil
}

func entrySize(key, value string) int64 {
	return int64(len(key) + len(value))
}

func (b *Bounded) Put(ctx context.Context, key, value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	old, exists := b.entries[key]
	delta := entrySize(key, value)
	if exists {
		delta -= entrySize(key, old)
	}
	if delta > 0 && b.used+delta > b.quota {
		return fmt.Errorf("%w: %q needs %d bytes, %d of %d used", ErrQuotaExceeded, key, delta, b.used, b.quota)
	}

	b.entries[key] = value
	b.used += delta
	if err := b.snapshot(); err != nil {
		if exists {
			b.entries[key] = old
		} else {
			delete(b.entries, key)
		}
		b.used -= delta
		return err
	}
	return nil
}

func (b *Bounded) Get(ctx context.Context, key string) (string, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	value, exists := b.entries[key]
	return value, exists, nil
}

func (b *Bounded) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	old, exists := b.entries[key]
	if !exists {
		return nil
	}
	delete(b.entries, key)
	b.used -= entrySize(key, old)
	if err := b.snapshot(); err != nil {
		b.entries[key] = old
		b.used += entrySize(key, old)
		return err
	}
	return nil
}

func (b *Bounded) Keys(ctx context.Context, prefix string) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	keys := make([]string, 0)
	for k := range b.entries {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

// Usage returns the bytes in use and the quota.
func (b *Bounded) Usage() (used, quota int64) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.used, b.quota
}

func (b *Bounded) Close() error {
	return nil
}

// snapshot must be called with mu held.
func (b *Bounded) snapshot() error {
	if b.fs == nil {
		return nil
	}
	data, err := json.Marshal(b.entries)
	if err != nil {
		return fmt.Errorf("error encoding snapshot: %w", err)
	}
	if dir := filepath.Dir(b.path); dir != "." {
		if err := b.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("error creating snapshot directory: %w", err)
		}
	}
	tmp := b.path + ".tmp"
	if err := afero.WriteFile(b.fs, tmp, data, 0o600); err != nil {
		return fmt.Errorf("error writing snapshot: %w", err)
	}
	if err := b.fs.Rename(tmp, b.path); err != nil {
		return fmt.Errorf("error replacing snapshot: %w", err)
	}
	return nil
}
