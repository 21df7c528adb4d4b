package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser   Role = "user"
	RoleModel  Role = "model"
	RoleSystem Role = "system"
)

// Message is one turn inside a thread's history. The owning thread is only
// known through the storage key the history list is saved under.
type Message struct {
	ID              string           `json:"id"`
	Role            Role             `json:"role"`
	Text            string           `json:"text"`
	Timestamp       time.Time        `json:"timestamp"`
	GroundingChunks []GroundingChunk `json:"groundingChunks,omitempty"`
	Attachments     []Attachment     `json:"attachments,omitempty"`
	GeneratedMedia  []GeneratedMedia `json:"generatedMedia,omitempty"`
	Sentiment       string           `json:"sentiment,omitempty"`
	Pinned          bool             `json:"isPinned,omitempty"`
	Reactions       map[string]int   `json:"reactions,omitempty"`
	TokenUsage      *TokenUsage      `json:"tokenUsage,omitempty"`
	ChartData       *ChartData       `json:"chartData,omitempty"`
	QuizData        *QuizData        `json:"quizData,omitempty"`
	Glitch          bool             `json:"isGlitch,omitempty"`
	ThoughtProcess  []ResearchStep   `json:"thoughtProcess,omitempty"`
}

// NewMessage creates a message with a fresh id stamped at now.
func NewMessage(role Role, text string, now time.Time) Message {
	return Message{
		ID:        uuid.New().String(),
		Role:      role,
		Text:      text,
		Timestamp: now,
	}
}

type TokenUsage struct {
	Input  int `json:"input"`
	Output int `json:"output"`
}

type ChartDataset struct {
	Label           string    `json:"label"`
	Data            []float64 `json:"data"`
	BackgroundColor []string  `json:"backgroundColor,omitempty"`
	BorderColor     ColorList `json:"borderColor,omitempty"`
	BorderWidth     float64   `json:"borderWidth,omitempty"`
}

// ColorList accepts either a single color string or an array of colors.
type ColorList []string

func (c *ColorList) UnmarshalJSON(b []byte) error {
	var one string
	if err := json.Unmarshal(b, &one); err == nil {
		*c = ColorList{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err != nil {
		return err
	}
	*c = many
	return nil
}

type ChartData struct {
	Type     string         `json:"type"`
	Labels   []string       `json:"labels"`
	Datasets []ChartDataset `json:"datasets"`
	Title    string         `json:"title,omitempty"`
}

type QuizData struct {
	Question           string   `json:"question"`
	Options            []string `json:"options"`
	CorrectAnswerIndex int      `json:"correctAnswerIndex"`
	Explanation        string   `json:"explanation"`
	Difficulty         string   `json:"difficulty"`
	Topic              string   `json:"topic"`
}

type StepStatus string

const (
	StepPending  StepStatus = "PENDING"
	StepWorking  StepStatus = "WORKING"
	StepComplete StepStatus = "COMPLETE"
	StepFailed   StepStatus = "FAILED"
)

// ResearchStep is one entry of a deep-research trace attached to a model turn.
type ResearchStep struct {
	ID     string     `json:"id"`
	Action string     `json:"action"`
	Status StepStatus `json:"status"`
	Result string     `json:"result,omitempty"`
}

type GroundingSource struct {
	URI   string `json:"uri,omitempty"`
	Title string `json:"title,omitempty"`
}

type GroundingChunk struct {
	Web  *GroundingSource `json:"web,omitempty"`
	Maps *GroundingSource `json:"maps,omitempty"`
}
