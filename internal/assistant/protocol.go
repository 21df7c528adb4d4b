package assistant

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/xaenox/vaaniii/internal/models"
)

// Protocol selects the model tier and extra instruction for a turn.
type Protocol string

const (
	ProtocolStandard       Protocol = ""
	ProtocolSpeedLink      Protocol = "SPEED_LINK"
	ProtocolDeepSearch     Protocol = "DEEP_SEARCH"
	ProtocolCodeyBro       Protocol = "CODEY_BRO"
	ProtocolEthicalHacking Protocol = "ETHICAL_HACKING"
	ProtocolLatestNews     Protocol = "LATEST_NEWS"
	ProtocolDataViz        Protocol = "DATA_VIZ"
	ProtocolVectorGen      Protocol = "VECTOR_GEN"
)

// Search reports whether the protocol answers with web search grounding.
func (p Protocol) Search() bool {
	return p == ProtocolDeepSearch || p == ProtocolLatestNews
}

// Fast reports whether the protocol runs on the lightweight model.
func (p Protocol) Fast() bool {
	return p == ProtocolSpeedLink
}

// JSON reports whether the provider must answer with a JSON document.
func (p Protocol) JSON() bool {
	return p == ProtocolDataViz
}

// Instruction is appended to the system instruction for the protocol.
func (p Protocol) Instruction() string {
	switch p {
	case ProtocolCodeyBro:
		return " You are an expert Frontend Engineer. When asked for code, prioritize Modern React + Tailwind CSS." +
			" Use 'jsx' or 'tsx' for React code blocks, and provide complete, self-contained HTML/CSS/JS when asked for web components."
	case ProtocolVectorGen:
		return " Generate valid SVG code for the requested vector graphic. Wrap in ```svg``` block."
	case ProtocolEthicalHacking:
		return " You are an elite Ethical Hacker (White Hat) and Cybersecurity Instructor." +
			" Teach penetration testing, vulnerability analysis and defensive security conceptually, always with remediation steps." +
			" Remind the user to only test systems they have explicit permission to audit." +
			" Do NOT provide actionable malicious exploits for real-world targets; use placeholders such as example.com."
	case ProtocolDataViz:
		return chartInstruction
	default:
		return ""
	}
}

var quizRequest = regexp.MustCompile(`(?i)(quiz|trivia|test me)`)

// IsQuizRequest reports whether text asks for a quiz question.
func IsQuizRequest(text string) bool {
	return quizRequest.MatchString(text)
}

const QuizInstruction = `

**IMPLICIT MODE ACTIVE: QUIZ GENERATOR**
The user has requested a quiz. Generate a challenging multiple-choice question relevant to their request.
Return a valid JSON object wrapped in a ` + "```json```" + ` code block with this structure:
{"question": "...", "options": ["A", "B", "C", "D"], "correctAnswerIndex": 0, "explanation": "...", "difficulty": "EASY|MEDIUM|HARD", "topic": "..."}
Keep any conversational text outside the block minimal.`

var (
	fencedJSON = regexp.MustCompile("(?s)```json\\s*\\n(.*?)\\n?```")
	bareObject = regexp.MustCompile(`(?s)\{.*\}`)
)

// jsonBlock returns the JSON object embedded in a model reply, preferring a
// fenced json block.
func jsonBlock(text string) string {
	if m := fencedJSON.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return bareObject.FindString(text)
}

// ExtractQuiz parses the quiz block of a reply. It returns nil when the
// reply holds no well-formed quiz.
func ExtractQuiz(text string) *models.QuizData {
	block := jsonBlock(text)
	if block == "" {
		return nil
	}
	var q struct {
		models.QuizData
		CorrectAnswerIndex *int `json:"correctAnswerIndex"`
	}
	if err := json.Unmarshal([]byte(block), &q); err != nil {
		return nil
	}
	if q.Question == "" || len(q.Options) == 0 || q.CorrectAnswerIndex == nil {
		return nil
	}
	quiz := q.QuizData
	quiz.CorrectAnswerIndex = *q.CorrectAnswerIndex
	return &quiz
}

const chartInstruction = `You are a specialized Data Visualization module.
Generate a JSON configuration for a Chart.js chart based on the user request and data context.
Chart type must be one of "bar", "line", "pie", "doughnut". Use bright neon colors
(#00f0ff, #d946ef, #00ff9d, #fcee0a, #f97316) on a dark background. 'data' arrays contain only
numbers and 'labels' are strings. Return pure JSON, no markdown, matching:
{"type": "bar", "labels": ["L1"], "datasets": [{"label": "Name", "data": [10], "backgroundColor": ["#00f0ff"], "borderColor": ["#00f0ff"], "borderWidth": 1}], "title": "Title"}`

// ChartPrompt combines the user request with recent conversation context.
func ChartPrompt(request, dataContext string) string {
	return fmt.Sprintf("User Request: %s\n\nData Context (Recent conversation):\n%s", request, dataContext)
}

var chartTypes = map[string]bool{"bar": true, "line": true, "pie": true, "doughnut": true}

var ErrInvalidChart = errors.New("reply is not a valid chart")

// ParseChart decodes a chart configuration reply.
func ParseChart(text string) (*models.ChartData, error) {
	raw := strings.TrimSpace(text)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimSuffix(strings.TrimPrefix(raw, "```"), "```")

	var chart models.ChartData
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &chart); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidChart, err)
	}
	if !chartTypes[chart.Type] || len(chart.Labels) == 0 || len(chart.Datasets) == 0 {
		return nil, fmt.Errorf("%w: missing type, labels or datasets", ErrInvalidChart)
	}
	return &chart, nil
}
