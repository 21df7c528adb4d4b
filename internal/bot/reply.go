package bot

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/xaenox/vaaniii/internal/models"
)

const maxSources = 5

var quizBlock = regexp.MustCompile("(?s)```json\\s*\\n.*?```")

// formatReply renders a model message as plain text, appending the
// structured payload a protocol attached to it.
func formatReply(m models.Message) string {
	text := m.Text
	if m.QuizData != nil {
		text = strings.TrimSpace(quizBlock.ReplaceAllString(text, ""))
	}
	var sb strings.Builder
	sb.WriteString(text)

	if c := m.ChartData; c != nil {
		sb.WriteString("\n\n")
		if c.Title != "" {
			sb.WriteString(c.Title + "\n")
		}
		fmt.Fprintf(&sb, "[%s chart]\n", strings.ToUpper(c.Type))
		for _, ds := range c.Datasets {
			if ds.Label != "" {
				sb.WriteString(ds.Label + "\n")
			}
			for i, label := range c.Labels {
				if i < len(ds.Data) {
					fmt.Fprintf(&sb, "  %s: %g\n", label, ds.Data[i])
				}
			}
		}
	}

	if q := m.QuizData; q != nil {
		sb.WriteString("\n\n")
		if q.Topic != "" || q.Difficulty != "" {
			fmt.Fprintf(&sb, "QUIZ // %s %s\n", q.Topic, q.Difficulty)
		}
		sb.WriteString(q.Question + "\n")
		for i, opt := range q.Options {
			fmt.Fprintf(&sb, "%c) %s\n", 'A'+rune(i), opt)
		}
	}

	var sources []*models.GroundingSource
	for _, g := range m.GroundingChunks {
		if g.Web != nil {
			sources = append(sources, g.Web)
		}
	}
	if len(sources) > maxSources {
		sources = sources[:maxSources]
	}
	if len(sources) > 0 {
		sb.WriteString("\n\nSources:\n")
		for i, src := range sources {
			title := src.Title
			if title == "" {
				title = src.URI
			}
			fmt.Fprintf(&sb, "%d. %s - %s\n", i+1, title, src.URI)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}
