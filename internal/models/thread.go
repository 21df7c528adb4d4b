package models

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultThreadTitle = "New Session"
	InitialPreview     = "Session initialized..."
)

// Thread is a named conversation container owned by one user.
type Thread struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Preview   string    `json:"preview"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Locked    bool      `json:"isLocked,omitempty"`
}

// ThreadList is the persisted per-user collection of threads.
type ThreadList []Thread

// SortByRecent orders the list by UpdatedAt, newest first.
func (l ThreadList) SortByRecent() {
	sort.SliceStable(l, func(i, j int) bool {
		return l[i].UpdatedAt.After(l[j].UpdatedAt)
	})
}

// Index returns the position of the thread with the given id, or -1.
func (l ThreadList) Index(id string) int {
	for i := range l {
		if l[i].ID == id {
			return i
		}
	}
	return -1
}

func (l *ThreadList) UpgradeFrom(version int) {
	for v := version; v < CurrentVersion; v++ {
		switch v {
		case 0:
			for i := range *l {
				t := &(*l)[i]
				if t.Title == "" {
					t.Title = DefaultThreadTitle
				}
				if t.CreatedAt.IsZero() {
					t.CreatedAt = t.UpdatedAt
				}
			}
		}
	}
}

// History is the persisted message list of one thread.
type History []Message

func (h *History) UpgradeFrom(version int) {
	for v := version; v < CurrentVersion; v++ {
		switch v {
		case 0:
			for i := range *h {
				m := &(*h)[i]
				if m.ID == "" {
					m.ID = uuid.New().String()
				}
				if m.Role == "" {
					m.Role = RoleSystem
				}
			}
		}
	}
}
