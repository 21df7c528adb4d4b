// Package session holds the active user profile and the static context
// memory used to build assistant prompts.
package session

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/xaenox/vaaniii/internal/models"
	"github.com/xaenox/vaaniii/internal/storage"
)

// Manager persists one current-user record under a single key. Saving
// overwrites the previous record; there is no session history.
type Manager struct {
	records *storage.Service
	key     string
	logger  *zap.Logger
}

func NewManager(records *storage.Service, logger *zap.Logger) *Manager {
	return &Manager{
		records: records,
		key:     storage.ActiveUserKey,
		logger:  logger,
	}
}

// NewProfileManager scopes the current-user record to a named profile, so
// one process can serve several front-end users.
func NewProfileManager(records *storage.Service, profile string, logger *zap.Logger) *Manager {
	m := NewManager(records, logger)
	if profile != "" {
		m.key = storage.ActiveUserKey + "_" + profile
	}
	return m
}

func (m *Manager) Key() string {
	return m.key
}

func (m *Manager) Save(ctx context.Context, user *models.User) error {
	return m.records.SaveRecord(ctx, m.key, models.KindUser, user)
}

// Get returns the stored user. A malformed record reads as absent.
func (m *Manager) Get(ctx context.Context) (*models.User, bool) {
	var u models.User
	found, err := m.records.LoadRecord(ctx, m.key, models.KindUser, &u)
	if err != nil {
		m.logger.Warn("Failed to load user session", zap.Error(err), zap.String("key", m.key))
		return nil, false
	}
	if !found {
		return nil, false
	}
	return &u, true
}

func (m *Manager) Clear(ctx context.Context) error {
	return m.records.DeleteRecord(ctx, m.key)
}

// Session is the explicit context of one conversing user. Callers hold its
// lock for the duration of an operation so one user's operations never
// interleave.
type Session struct {
	mu sync.Mutex

	User     *models.User
	ThreadID string
	Memory   models.ContextMemory

	manager *Manager
}

func New(user *models.User, threadID string, memory models.ContextMemory, manager *Manager) *Session {
	return &Session{
		User:     user,
		ThreadID: threadID,
		Memory:   memory,
		manager:  manager,
	}
}

func (s *Session) Lock()   { s.mu.Lock() }
func (s *Session) Unlock() { s.mu.Unlock() }

// Persist saves the session's user through its manager.
func (s *Session) Persist(ctx context.Context) error {
	return s.manager.Save(ctx, s.User)
}
