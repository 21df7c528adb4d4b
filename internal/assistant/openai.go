package assistant

import (
	"context"
	"errors"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/xaenox/vaaniii/internal/models"
)

type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
}

// OpenAI generates turns with the chat completions API.
type OpenAI struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float64
	logger      *zap.Logger
}

func NewOpenAI(config OpenAIConfig, logger *zap.Logger) *OpenAI {
	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	return &OpenAI{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       config.Model,
		maxTokens:   config.MaxTokens,
		temperature: config.Temperature,
		logger:      logger,
	}
}

func (c *OpenAI) Generate(ctx context.Context, req Request) (Response, error) {
	request := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    openAIMessages(req),
		MaxTokens:   c.maxTokens,
		Temperature: float32(c.temperature),
	}
	if req.Protocol.JSON() {
		request.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	resp, err := c.client.CreateChatCompletion(ctx, request)
	if err != nil {
		c.logger.Error("Failed to get OpenAI response", zap.Error(err))
		return Response{}, &Error{Kind: openAIKind(err), Provider: "openai", Err: err}
	}
	if len(resp.Choices) == 0 {
		return Response{}, &Error{Kind: KindUnknown, Provider: "openai", Err: errors.New("no choices in response")}
	}

	return Response{
		Text: strings.TrimSpace(resp.Choices[0].Message.Content),
		Usage: &models.TokenUsage{
			Input:  resp.Usage.PromptTokens,
			Output: resp.Usage.CompletionTokens,
		},
	}, nil
}

func openAIMessages(req Request) []openai.ChatCompletionMessage {
	msgs := make([]openai.ChatCompletionMessage, 0, len(req.History)+2)
	if req.System != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	for _, m := range req.History {
		var role string
		switch m.Role {
		case models.RoleUser:
			role = openai.ChatMessageRoleUser
		case models.RoleModel:
			role = openai.ChatMessageRoleAssistant
		default:
			continue
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: m.Text})
	}
	return append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})
}

func openAIKind(err error) Kind {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return kindForStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return kindForStatus(reqErr.HTTPStatusCode)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindUnavailable
	}
	return KindUnknown
}
