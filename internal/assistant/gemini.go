package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/xaenox/vaaniii/internal/models"
)

type GeminiConfig struct {
	APIKey      string
	Model       string
	FastModel   string
	MaxTokens   int
	Temperature float64
}

// Gemini generates turns with the Gemini API.
type Gemini struct {
	client      *genai.Client
	model       string
	fastModel   string
	maxTokens   int32
	temperature float32
	logger      *zap.Logger
}

func NewGemini(ctx context.Context, config GeminiConfig, logger *zap.Logger) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &Gemini{
		client:      client,
		model:       config.Model,
		fastModel:   config.FastModel,
		maxTokens:   int32(config.MaxTokens),
		temperature: float32(config.Temperature),
		logger:      logger,
	}, nil
}

func (g *Gemini) Generate(ctx context.Context, req Request) (Response, error) {
	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(g.temperature),
		MaxOutputTokens: g.maxTokens,
	}
	if req.System != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.System}},
		}
	}
	if req.Protocol.Search() {
		config.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}
	if req.Protocol.JSON() {
		config.ResponseMIMEType = "application/json"
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.modelFor(req.Protocol), geminiContents(req), config)
	if err != nil {
		g.logger.Error("Failed to get Gemini response", zap.Error(err))
		return Response{}, &Error{Kind: geminiKind(err), Provider: "gemini", Err: err}
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return Response{}, &Error{Kind: KindUnknown, Provider: "gemini", Err: errors.New("no candidates in response")}
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			sb.WriteString(part.Text)
		}
	}

	out := Response{
		Text:      strings.TrimSpace(sb.String()),
		Grounding: geminiGrounding(resp.Candidates[0].GroundingMetadata),
	}
	if resp.UsageMetadata != nil {
		out.Usage = &models.TokenUsage{
			Input:  int(resp.UsageMetadata.PromptTokenCount),
			Output: int(resp.UsageMetadata.CandidatesTokenCount),
		}
	}
	return out, nil
}

func (g *Gemini) modelFor(p Protocol) string {
	if p.Fast() && g.fastModel != "" {
		return g.fastModel
	}
	return g.model
}

func geminiGrounding(meta *genai.GroundingMetadata) []models.GroundingChunk {
	if meta == nil {
		return nil
	}
	var chunks []models.GroundingChunk
	for _, c := range meta.GroundingChunks {
		if c == nil || c.Web == nil || c.Web.URI == "" {
			continue
		}
		chunks = append(chunks, models.GroundingChunk{
			Web: &models.GroundingSource{URI: c.Web.URI, Title: c.Web.Title},
		})
	}
	return chunks
}

func geminiContents(req Request) []*genai.Content {
	contents := make([]*genai.Content, 0, len(req.History)+1)
	for _, m := range req.History {
		var role string
		switch m.Role {
		case models.RoleUser:
			role = string(genai.RoleUser)
		case models.RoleModel:
			role = string(genai.RoleModel)
		default:
			continue
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: m.Text}},
		})
	}
	return append(contents, &genai.Content{
		Role:  string(genai.RoleUser),
		Parts: []*genai.Part{{Text: req.Prompt}},
	})
}

func geminiKind(err error) Kind {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return kindForStatus(apiErr.Code)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindUnavailable
	}
	return KindUnknown
}
