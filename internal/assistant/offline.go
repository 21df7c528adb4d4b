package assistant

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Offline answers without any network call. It tags the prompt with the
// topics it recognizes so the user gets something better than silence.
type Offline struct {
	maxTopics int
}

func NewOffline(maxTopics int) *Offline {
	if maxTopics <= 0 {
		maxTopics = 3
	}
	return &Offline{maxTopics: maxTopics}
}

var offlineTopics = map[string][]string{
	"code":     {"code", "bug", "compile", "function", "deploy"},
	"research": {"research", "study", "paper", "learn", "explain"},
	"schedule": {"meeting", "deadline", "task", "tomorrow", "remind"},
	"travel":   {"trip", "flight", "hotel", "vacation", "booking"},
	"data":     {"chart", "graph", "table", "report", "numbers"},
}

// Topics extracts hashtags and keyword categories from text, sorted.
func (o *Offline) Topics(text string) []string {
	topics := make(map[string]struct{})
	for _, word := range strings.Fields(text) {
		if strings.HasPrefix(word, "#") {
			if tag := strings.ToLower(strings.TrimPrefix(word, "#")); tag != "" {
				topics[tag] = struct{}{}
			}
		}
	}

	lower := strings.ToLower(text)
	for topic, keywords := range offlineTopics {
		for _, keyword := range keywords {
			if strings.Contains(lower, keyword) {
				topics[topic] = struct{}{}
				break
			}
		}
	}

	result := make([]string, 0, len(topics))
	for topic := range topics {
		result = append(result, topic)
	}
	sort.Strings(result)
	if len(result) > o.maxTopics {
		result = result[:o.maxTopics]
	}
	return result
}

func (o *Offline) Generate(ctx context.Context, req Request) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}

	reply := "OFFLINE MODE :: Neural link disabled. Your message was logged."
	if topics := o.Topics(req.Prompt); len(topics) > 0 {
		reply = fmt.Sprintf("%s Detected topics: %s.", reply, strings.Join(topics, ", "))
	}
	return Response{Text: reply}, nil
}
