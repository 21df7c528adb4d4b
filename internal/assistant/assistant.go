// Package assistant generates model turns from a hosted LLM.
package assistant

import (
	"context"

	"github.com/xaenox/vaaniii/internal/models"
)

// Request is one generation call. History holds the prior turns of the
// thread; Prompt is the new user text.
type Request struct {
	System   string
	History  []models.Message
	Prompt   string
	Protocol Protocol
}

// Response is a generated turn. Grounding lists the web sources of a
// search-grounded answer.
type Response struct {
	Text      string
	Usage     *models.TokenUsage
	Grounding []models.GroundingChunk
}

type Provider interface {
	Generate(ctx context.Context, req Request) (Response, error)
}
