package storage

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/xaenox/vaaniii/internal/models"
)

// ThreadPatch carries the fields UpdateThread merges; nil fields are left
// untouched.
type ThreadPatch struct {
	Title   *string
	Preview *string
	Locked  *bool
}

func (s *Service) loadThreads(ctx context.Context, userID string) (models.ThreadList, error) {
	var list models.ThreadList
	if _, err := s.LoadRecord(ctx, ThreadsKey(userID), models.KindThreads, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// loadThreadsAll reads the thread list through every tier.
func (s *Service) loadThreadsAll(ctx context.Context, userID string) (models.ThreadList, error) {
	var list models.ThreadList
	if _, err := s.loadRecordAll(ctx, ThreadsKey(userID), models.KindThreads, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (s *Service) saveThreads(ctx context.Context, userID string, list models.ThreadList) error {
	return s.SaveRecord(ctx, ThreadsKey(userID), models.KindThreads, list)
}

// ListThreads returns the user's threads, most recently updated first.
func (s *Service) ListThreads(ctx context.Context, userID string) []models.Thread {
	list, err := s.loadThreads(ctx, userID)
	if err != nil {
		s.logger.Warn("Failed to load threads, treating as empty",
			zap.Error(err),
			zap.String("user_id", userID))
		return []models.Thread{}
	}
	if list == nil {
		return []models.Thread{}
	}
	list.SortByRecent()
	return list
}

// CreateThread prepends a new thread to the user's list. An empty title
// becomes the default title.
func (s *Service) CreateThread(ctx context.Context, userID, title string) (models.Thread, error) {
	if title == "" {
		title = models.DefaultThreadTitle
	}
	threads := models.ThreadList(s.ListThreads(ctx, userID))

	now := s.now()
	thread := models.Thread{
		ID:        newThreadID(now, threads),
		Title:     title,
		Preview:   models.InitialPreview,
		CreatedAt: now,
		UpdatedAt: now,
	}

	list := append(models.ThreadList{thread}, threads...)
	if err := s.saveThreads(ctx, userID, list); err != nil {
		return thread, err
	}
	s.logger.Debug("Thread created",
		zap.String("user_id", userID),
		zap.String("thread_id", thread.ID))
	return thread, nil
}

// newThreadID uses the creation time in milliseconds, bumped until it is
// unique within the list.
func newThreadID(now time.Time, threads models.ThreadList) string {
	ms := now.UnixMilli()
	id := strconv.FormatInt(ms, 10)
	for threads.Index(id) != -1 {
		ms++
		id = strconv.FormatInt(ms, 10)
	}
	return id
}

// UpdateThread merges patch into the thread and refreshes UpdatedAt. An
// unknown thread id is a no-op.
func (s *Service) UpdateThread(ctx context.Context, userID, threadID string, patch ThreadPatch) error {
	threads := models.ThreadList(s.ListThreads(ctx, userID))
	i := threads.Index(threadID)
	if i == -1 {
		return nil
	}

	t := &threads[i]
	if patch.Title != nil {
		t.Title = *patch.Title
	}
	if patch.Preview != nil {
		t.Preview = *patch.Preview
	}
	if patch.Locked != nil {
		t.Locked = *patch.Locked
	}
	t.UpdatedAt = s.now()

	return s.saveThreads(ctx, userID, threads)
}

// DeleteThread removes the thread from the user's list and then deletes its
// history as a separate best-effort step. The two writes are not atomic: if
// the second fails the history is left orphaned until Reconcile runs.
func (s *Service) DeleteThread(ctx context.Context, userID, threadID string) error {
	threads := models.ThreadList(s.ListThreads(ctx, userID))
	i := threads.Index(threadID)
	if i == -1 {
		return nil
	}

	filtered := append(threads[:i:i], threads[i+1:]...)
	if err := s.saveThreads(ctx, userID, filtered); err != nil {
		return err
	}

	if err := s.store.Delete(ctx, HistoryKey(threadID)); err != nil {
		s.logger.Warn("Failed to delete thread history",
			zap.Error(err),
			zap.String("user_id", userID),
			zap.String("thread_id", threadID))
	}
	return nil
}

// EnsureThread returns the user's most recent thread, creating the default
// one when the user has none.
func (s *Service) EnsureThread(ctx context.Context, userID string) (models.Thread, error) {
	threads := s.ListThreads(ctx, userID)
	if len(threads) > 0 {
		return threads[0], nil
	}
	return s.CreateThread(ctx, userID, "")
}
