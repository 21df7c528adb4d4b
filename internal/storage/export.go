package storage

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"go.uber.org/zap"

	"github.com/xaenox/vaaniii/internal/models"
)

// ExportVersion tags the export document layout.
var ExportVersion = strconv.Itoa(models.CurrentVersion)

// Export aggregates the user, the user's threads and every thread's history
// into one indented JSON document. Thread lists and histories that
// overflowed to a secondary tier are included.
func (s *Service) Export(ctx context.Context, user *models.User) ([]byte, error) {
	if user == nil {
		return nil, errors.New("export requires a user")
	}

	threads := s.exportThreads(ctx, user.ID)
	history := make(map[string][]models.Message, len(threads))
	for _, t := range threads {
		history[t.ID] = s.exportHistory(ctx, t.ID)
	}

	bundle := models.ExportBundle{
		User:       user,
		Threads:    threads,
		History:    history,
		ExportedAt: s.now(),
		Version:    ExportVersion,
	}
	return json.MarshalIndent(bundle, "", "  ")
}

func (s *Service) exportThreads(ctx context.Context, userID string) []models.Thread {
	list, err := s.loadThreadsAll(ctx, userID)
	if err != nil {
		s.logger.Warn("Skipping unreadable thread list in export", zap.Error(err), zap.String("user_id", userID))
		return []models.Thread{}
	}
	if list == nil {
		return []models.Thread{}
	}
	list.SortByRecent()
	return list
}

func (s *Service) exportHistory(ctx context.Context, threadID string) []models.Message {
	raw, found, err := s.readAll(ctx, HistoryKey(threadID))
	if err != nil || !found {
		if err != nil {
			s.logger.Warn("Failed to read history for export", zap.Error(err), zap.String("thread_id", threadID))
		}
		return []models.Message{}
	}
	h, err := decodeHistory(raw)
	if err != nil {
		s.logger.Warn("Skipping unreadable history in export", zap.Error(err), zap.String("thread_id", threadID))
		return []models.Message{}
	}
	if h == nil {
		return []models.Message{}
	}
	return h
}
