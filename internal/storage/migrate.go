package storage

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/xaenox/vaaniii/internal/models"
)

// Migrate rewrites every stored record at the current envelope version and
// reconciles threads with histories. It runs once per version, gated by
// MigrationKey, and reports whether it ran.
func (s *Service) Migrate(ctx context.Context) (bool, error) {
	_, done, err := s.readAll(ctx, MigrationKey())
	if err != nil {
		return false, fmt.Errorf("check migration flag: %w", err)
	}
	if done {
		return false, nil
	}

	s.logger.Info("Migrating stored records", zap.Int("version", models.CurrentVersion))

	var errs error
	errs = multierr.Append(errs, s.migrateUsers(ctx))
	errs = multierr.Append(errs, s.migrateThreads(ctx))
	errs = multierr.Append(errs, s.migrateHistories(ctx))
	errs = multierr.Append(errs, s.migrateMemory(ctx))
	if errs != nil {
		return true, errs
	}

	// Cleanup failures do not block the flag.
	if _, err := s.Reconcile(ctx); err != nil {
		s.logger.Warn("Reconcile during migration failed", zap.Error(err))
	}

	if err := s.store.Put(ctx, MigrationKey(), "true"); err != nil {
		return true, fmt.Errorf("set migration flag: %w", err)
	}
	return true, nil
}

func (s *Service) migrateUsers(ctx context.Context) error {
	keys, err := s.store.Keys(ctx, ActiveUserKey)
	if err != nil {
		return err
	}
	var errs error
	for _, key := range keys {
		var u models.User
		found, err := s.loadRecordAll(ctx, key, models.KindUser, &u)
		if err != nil {
			s.logger.Warn("Skipping unreadable user record", zap.String("key", key), zap.Error(err))
			continue
		}
		if found {
			errs = multierr.Append(errs, s.SaveRecord(ctx, key, models.KindUser, &u))
		}
	}
	return errs
}

func (s *Service) migrateThreads(ctx context.Context) error {
	keys, err := s.store.Keys(ctx, ThreadsKeyPrefix)
	if err != nil {
		return err
	}
	var errs error
	for _, key := range keys {
		var list models.ThreadList
		found, err := s.loadRecordAll(ctx, key, models.KindThreads, &list)
		if err != nil {
			s.logger.Warn("Skipping unreadable thread list", zap.String("key", key), zap.Error(err))
			continue
		}
		if found {
			errs = multierr.Append(errs, s.SaveRecord(ctx, key, models.KindThreads, list))
		}
	}
	return errs
}

func (s *Service) migrateHistories(ctx context.Context) error {
	keys, err := s.store.Keys(ctx, HistoryKeyPrefix)
	if err != nil {
		return err
	}
	var errs error
	for _, key := range keys {
		raw, found, err := s.readAll(ctx, key)
		if err != nil || !found {
			errs = multierr.Append(errs, err)
			continue
		}
		h, err := decodeHistory(raw)
		if err != nil {
			s.logger.Warn("Skipping unreadable history", zap.String("key", key), zap.Error(err))
			continue
		}
		threadID := key[len(HistoryKeyPrefix):]
		errs = multierr.Append(errs, s.SaveHistory(ctx, threadID, h))
	}
	return errs
}

func (s *Service) migrateMemory(ctx context.Context) error {
	var m models.ContextMemory
	found, err := s.loadRecordAll(ctx, ContextMemoryKey, models.KindMemory, &m)
	if err != nil {
		s.logger.Warn("Skipping unreadable context memory", zap.Error(err))
		return nil
	}
	if !found {
		return nil
	}
	return s.SaveRecord(ctx, ContextMemoryKey, models.KindMemory, &m)
}
