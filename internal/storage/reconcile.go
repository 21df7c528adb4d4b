package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// ReconcileReport lists what a reconciliation pass found.
type ReconcileReport struct {
	// OrphanedHistories are thread ids whose history existed without a
	// thread record; they have been deleted.
	OrphanedHistories []string
	// ThreadsWithoutHistory are thread ids with no stored history. This is a
	// valid state and is left alone.
	ThreadsWithoutHistory []string
}

// Reconcile repairs the thread list / history split left behind by partial
// failures. A thread record may exist with no history, and a history may
// outlive its thread when the second half of DeleteThread failed; the latter
// is removed here.
//
// An unreadable thread list aborts the pass so its histories are not
// mistaken for orphans.
func (s *Service) Reconcile(ctx context.Context) (ReconcileReport, error) {
	var report ReconcileReport

	threadKeys, err := s.store.Keys(ctx, ThreadsKeyPrefix)
	if err != nil {
		return report, fmt.Errorf("list thread records: %w", err)
	}
	live := make(map[string]bool)
	for _, key := range threadKeys {
		userID := strings.TrimPrefix(key, ThreadsKeyPrefix)
		list, err := s.loadThreadsAll(ctx, userID)
		if err != nil {
			return report, fmt.Errorf("reconcile %s: %w", userID, err)
		}
		for _, t := range list {
			live[t.ID] = true
		}
	}

	historyKeys, err := s.store.Keys(ctx, HistoryKeyPrefix)
	if err != nil {
		return report, fmt.Errorf("list history records: %w", err)
	}
	stored := make(map[string]bool, len(historyKeys))
	var errs error
	for _, key := range historyKeys {
		threadID := strings.TrimPrefix(key, HistoryKeyPrefix)
		stored[threadID] = true
		if live[threadID] {
			continue
		}
		if err := s.store.Delete(ctx, key); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		report.OrphanedHistories = append(report.OrphanedHistories, threadID)
	}

	for id := range live {
		if !stored[id] {
			report.ThreadsWithoutHistory = append(report.ThreadsWithoutHistory, id)
		}
	}
	sort.Strings(report.OrphanedHistories)
	sort.Strings(report.ThreadsWithoutHistory)

	if len(report.OrphanedHistories) > 0 {
		s.logger.Info("Removed orphaned histories", zap.Strings("thread_ids", report.OrphanedHistories))
	}
	return report, errs
}
