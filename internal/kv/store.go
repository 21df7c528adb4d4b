// Package kv provides the key-value tiers the storage service persists
// through: a bounded synchronous primary, unbounded secondaries, and a
// Fallback that overflows from the first to the second on quota exhaustion.
package kv

import (
	"context"
	"errors"
)

// ErrQuotaExceeded is returned by bounded stores when a write does not fit.
var ErrQuotaExceeded = errors.New("storage quota exceeded")

// Store is a flat string key-value namespace. Implementations must be safe
// for concurrent use.
type Store interface {
	Put(ctx context.Context, key, value string) error
	// Get reports found=false for a missing key; err is reserved for backend
	// failures.
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Delete(ctx context.Context, key string) error
	// Keys lists every key starting with prefix, in no particular order.
	Keys(ctx context.Context, prefix string) ([]string, error)
	Close() error
}
