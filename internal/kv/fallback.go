package kv

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Fallback writes to the primary tier and overflows to the secondary when
// the primary reports ErrQuotaExceeded. It is not transactional.
//
// Get reads the primary only unless ReadThrough is set, in which case a miss
// falls through to the secondary. Lookup always checks both tiers.
type Fallback struct {
	primary     Store
	secondary   Store
	readThrough bool
	logger      *zap.Logger
}

type FallbackOption func(*Fallback)

// WithReadThrough makes Get consult the secondary tier on a primary miss.
func WithReadThrough(enabled bool) FallbackOption {
	return func(f *Fallback) {
		f.readThrough = enabled
	}
}

func NewFallback(primary, secondary Store, logger *zap.Logger, opts ...FallbackOption) *Fallback {
	f := &Fallback{
		primary:   primary,
		secondary: secondary,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Fallback) Put(ctx context.Context, key, value string) error {
	err := f.primary.Put(ctx, key, value)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrQuotaExceeded) {
		return err
	}

	f.logger.Warn("Primary store full, switching to secondary",
		zap.String("key", key),
		zap.Int("bytes", len(value)),
		zap.Error(err))

	// A stale primary copy would shadow the new value on the next read.
	if derr := f.primary.Delete(ctx, key); derr != nil {
		f.logger.Warn("Failed to drop stale primary copy", zap.String("key", key), zap.Error(derr))
	}
	if serr := f.secondary.Put(ctx, key, value); serr != nil {
		return fmt.Errorf("fallback write of %q failed: %w", key, multierr.Append(err, serr))
	}
	return nil
}

func (f *Fallback) Get(ctx context.Context, key string) (string, bool, error) {
	if f.readThrough {
		return f.Lookup(ctx, key)
	}
	return f.primary.Get(ctx, key)
}

// Lookup reads the primary tier and, on a miss, the secondary tier.
func (f *Fallback) Lookup(ctx context.Context, key string) (string, bool, error) {
	value, found, err := f.primary.Get(ctx, key)
	if err != nil || found {
		return value, found, err
	}
	return f.secondary.Get(ctx, key)
}

// Delete removes key from both tiers so no orphaned overflow copy survives.
func (f *Fallback) Delete(ctx context.Context, key string) error {
	return multierr.Append(
		f.primary.Delete(ctx, key),
		f.secondary.Delete(ctx, key),
	)
}

// Keys returns the union of keys in both tiers.
func (f *Fallback) Keys(ctx context.Context, prefix string) ([]string, error) {
	primary, err := f.primary.Keys(ctx, prefix)
	if err != nil {
		return nil, err
	}
	secondary, err := f.secondary.Keys(ctx, prefix)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(primary)+len(secondary))
	keys := make([]string, 0, len(primary)+len(secondary))
	for _, k := range append(primary, secondary...) {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	return keys, nil
}

func (f *Fallback) Close() error {
	return multierr.Append(f.primary.Close(), f.secondary.Close())
}
