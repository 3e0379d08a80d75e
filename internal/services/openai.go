package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"sourcechat-backend/internal/models"
)

// OpenAIService talks to any OpenAI-compatible chat endpoint. Groq is the
// default deployment target.
type OpenAIService struct {
	client      openai.Client
	model       string
	temperature float64
	maxTokens   int
	provider    string
}

func NewOpenAIService(apiKey, baseURL, model string, temperature float64, maxTokens int) *OpenAIService {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	provider := "openai"
	if strings.Contains(baseURL, "groq") {
		provider = "groq"
	}

	return &OpenAIService{
		client:      openai.NewClient(opts...),
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
		provider:    provider,
	}
}

func (s *OpenAIService) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.History)+2)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(req.SystemPrompt))
	}
	for _, m := range req.History {
		switch m.Role {
		case models.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(m.Content))
		case models.RoleSystem:
			messages = append(messages, openai.SystemMessage(m.Content))
		default:
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}
	messages = append(messages, openai.UserMessage(req.UserContent))

	params := openai.ChatCompletionNewParams{
		Model:    s.model,
		Messages: messages,
	}
	if s.maxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(s.maxTokens))
	}
	if s.temperature > 0 {
		params.Temperature = openai.Float(s.temperature)
	}

	resp, err := s.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", classifyOpenAIError(s.provider, err)
	}
	if len(resp.Choices) == 0 {
		return "", &UpstreamError{Provider: s.provider, Err: errors.New("response contained no choices")}
	}
	return resp.Choices[0].Message.Content, nil
}

func classifyOpenAIError(provider string, err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		msg := strings.ToLower(apiErr.Message)
		switch {
		case apiErr.StatusCode == http.StatusRequestEntityTooLarge,
			strings.Contains(msg, "too large"),
			strings.Contains(msg, "context length"),
			strings.EqualFold(apiErr.Code, "context_length_exceeded"):
			return fmt.Errorf("%s: %w", provider, ErrPayloadTooLarge)
		case apiErr.StatusCode == http.StatusTooManyRequests,
			strings.EqualFold(apiErr.Code, "rate_limit_exceeded"):
			return &RateLimitError{
				Message:    "Please wait a moment before sending another message.",
				RetryAfter: retryAfterHeader(apiErr.Response, 60*time.Second),
				Upstream:   true,
			}
		}
		return &UpstreamError{Provider: provider, StatusCode: apiErr.StatusCode, Err: err}
	}
	return &UpstreamError{Provider: provider, Err: err}
}

func retryAfterHeader(resp *http.Response, fallback time.Duration) time.Duration {
	if resp == nil {
		return fallback
	}
	if v := resp.Header.Get("Retry-After"); v != "" {
		if d, err := time.ParseDuration(v + "s"); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
