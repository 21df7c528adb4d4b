// Package storage implements the thread registry, the per-thread message
// history, export, reconciliation and migration on top of a kv.Store.
//
// Reads fail soft: a missing or malformed record is logged and reported as
// empty. Writes return their error so the caller can log the data loss.
package storage

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xaenox/vaaniii/internal/kv"
	"github.com/xaenox/vaaniii/internal/models"
)

const (
	ActiveUserKey    = "vaaniii_active_user"
	ThreadsKeyPrefix = "vaaniii_threads_"
	HistoryKeyPrefix = "vaaniii_history_"
	ContextMemoryKey = "vaaniii_neural_context"

	migrationKeyPrefix = "vaaniii_migrated_v"

	DefaultHistoryLimit = 50
)

func ThreadsKey(userID string) string {
	return ThreadsKeyPrefix + userID
}

func HistoryKey(threadID string) string {
	return HistoryKeyPrefix + threadID
}

// MigrationKey is the one-shot flag for the current record version.
func MigrationKey() string {
	return fmt.Sprintf("%s%d", migrationKeyPrefix, models.CurrentVersion)
}

type Service struct {
	store        kv.Store
	logger       *zap.Logger
	now          func() time.Time
	historyLimit int
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithHistoryLimit sets how many of the most recent messages SaveHistory
// keeps.
func WithHistoryLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.historyLimit = n
		}
	}
}

func New(store kv.Store, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		store:        store,
		logger:       logger,
		now:          time.Now,
		historyLimit: DefaultHistoryLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the service clock reading.
func (s *Service) Now() time.Time {
	return s.now()
}

// lookuper is implemented by stores with a secondary-aware read.
type lookuper interface {
	Lookup(ctx context.Context, key string) (string, bool, error)
}

// readAll reads key through every tier the store has, regardless of the
// store's own read path. Used by export, reconcile and migrate.
func (s *Service) readAll(ctx context.Context, key string) (string, bool, error) {
	if l, ok := s.store.(lookuper); ok {
		return l.Lookup(ctx, key)
	}
	return s.store.Get(ctx, key)
}

// SaveRecord stores v under key inside a versioned envelope.
func (s *Service) SaveRecord(ctx context.Context, key string, kind models.Kind, v any) error {
	raw, err := models.Wrap(kind, v)
	if err != nil {
		return err
	}
	if err := s.store.Put(ctx, key, string(raw)); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// LoadRecord decodes the record under key into out. found is false when the
// key is absent.
func (s *Service) LoadRecord(ctx context.Context, key string, kind models.Kind, out models.Versioned) (bool, error) {
	raw, found, err := s.store.Get(ctx, key)
	if err != nil || !found {
		return false, err
	}
	if _, err := models.Unwrap(kind, []byte(raw), out); err != nil {
		return false, fmt.Errorf("load %s: %w", key, err)
	}
	return true, nil
}

// loadRecordAll is LoadRecord over every tier. Passes that must see
// overflowed records use it.
func (s *Service) loadRecordAll(ctx context.Context, key string, kind models.Kind, out models.Versioned) (bool, error) {
	raw, found, err := s.readAll(ctx, key)
	if err != nil || !found {
		return false, err
	}
	if _, err := models.Unwrap(kind, []byte(raw), out); err != nil {
		return false, fmt.Errorf("load %s: %w", key, err)
	}
	return true, nil
}

// DeleteRecord removes key from the store.
func (s *Service) DeleteRecord(ctx context.Context, key string) error {
	return s.store.Delete(ctx, key)
}
