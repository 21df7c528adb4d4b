package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xaenox/vaaniii/internal/codec"
	"github.com/xaenox/vaaniii/internal/models"
)

// SaveHistory persists the last historyLimit messages of the thread,
// replacing whatever was stored before. Older messages are dropped.
func (s *Service) SaveHistory(ctx context.Context, threadID string, messages []models.Message) error {
	if len(messages) > s.historyLimit {
		messages = messages[len(messages)-s.historyLimit:]
	}
	raw, err := models.Wrap(models.KindHistory, models.History(messages))
	if err != nil {
		return err
	}
	if err := s.store.Put(ctx, HistoryKey(threadID), codec.Encode(string(raw))); err != nil {
		return fmt.Errorf("save history %s: %w", threadID, err)
	}
	return nil
}

func decodeHistory(raw string) (models.History, error) {
	var h models.History
	if _, err := models.Unwrap(models.KindHistory, []byte(codec.Decode(raw)), &h); err != nil {
		return nil, err
	}
	return h, nil
}

// GetHistory returns the thread's messages in order. Missing or unreadable
// history is returned as an empty list.
func (s *Service) GetHistory(ctx context.Context, threadID string) []models.Message {
	raw, found, err := s.store.Get(ctx, HistoryKey(threadID))
	if err != nil {
		s.logger.Warn("Failed to read chat history",
			zap.Error(err),
			zap.String("thread_id", threadID))
		return []models.Message{}
	}
	if !found {
		return []models.Message{}
	}

	h, err := decodeHistory(raw)
	if err != nil {
		s.logger.Warn("Failed to load/decode chat history",
			zap.Error(err),
			zap.String("thread_id", threadID))
		return []models.Message{}
	}
	if h == nil {
		return []models.Message{}
	}
	return h
}

// ClearHistory deletes the thread's stored history from every tier.
func (s *Service) ClearHistory(ctx context.Context, threadID string) error {
	if err := s.store.Delete(ctx, HistoryKey(threadID)); err != nil {
		return fmt.Errorf("clear history %s: %w", threadID, err)
	}
	return nil
}
