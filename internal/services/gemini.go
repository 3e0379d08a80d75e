package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/googleapis/gax-go/v2/apierror"
	"github.com/rs/zerolog"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"

	"sourcechat-backend/internal/models"
)

// GeminiService is the alternative completion backend.
type GeminiService struct {
	client   *genai.Client
	model    *genai.GenerativeModel
	rateChan chan struct{} // token bucket
}

func NewGeminiService(apiKey, modelName string, temperature float64, maxTokens, concurrentReqs int) (*GeminiService, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(float32(temperature))
	if maxTokens > 0 {
		model.SetMaxOutputTokens(int32(maxTokens))
	}

	if concurrentReqs <= 0 {
		concurrentReqs = 1
	}
	rateChan := make(chan struct{}, concurrentReqs)
	for i := 0; i < concurrentReqs; i++ {
		rateChan <- struct{}{}
	}

	return &GeminiService{
		client:   client,
		model:    model,
		rateChan: rateChan,
	}, nil
}

func (s *GeminiService) Close() {
	s.client.Close()
}

// acquireRate blocks until a rate slot is available
func (s *GeminiService) acquireRate(ctx context.Context) error {
	select {
	case <-s.rateChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(2 * time.Minute):
		return fmt.Errorf("timeout waiting for Gemini rate slot")
	}
}

func (s *GeminiService) releaseRate() {
	s.rateChan <- struct{}{}
}

func (s *GeminiService) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	if err := s.acquireRate(ctx); err != nil {
		return "", err
	}
	defer s.releaseRate()

	// GenerativeModel is shared; copy it so the system instruction stays
	// request-local.
	model := *s.model
	if req.SystemPrompt != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.SystemPrompt)}}
	}

	cs := model.StartChat()
	history, pending := geminiHistory(req.History)
	cs.History = history

	message := req.UserContent
	if pending != "" {
		message = pending + "\n\n" + message
	}
	resp, err := cs.SendMessage(ctx, genai.Text(message))
	if err != nil {
		return "", classifyGeminiError(err)
	}

	for i, cand := range resp.Candidates {
		if cand.FinishReason != genai.FinishReasonStop && cand.FinishReason != genai.FinishReasonUnspecified {
			zerolog.Ctx(ctx).Warn().Int("candidate", i).Str("finish_reason", cand.FinishReason.String()).Msg("gemini stopped early")
		}
	}

	text := strings.TrimSpace(extractText(resp))
	if text == "" {
		return "", &UpstreamError{Provider: "gemini", Err: errors.New("empty response")}
	}
	return text, nil
}

// geminiHistory maps chat roles onto Gemini's user/model pair. Gemini wants
// turns that alternate, open with user and close with model: system entries
// count as user, leading model turns are dropped, adjacent turns of the same
// role are joined, and a trailing user turn is returned as pending text to
// send along with the new message.
func geminiHistory(history []models.Message) ([]*genai.Content, string) {
	type turn struct {
		role string
		text []string
	}
	var turns []turn
	for _, m := range history {
		role := "user"
		if m.Role == models.RoleAssistant {
			role = "model"
		}
		if len(turns) == 0 && role == "model" {
			continue
		}
		if n := len(turns); n > 0 && turns[n-1].role == role {
			turns[n-1].text = append(turns[n-1].text, m.Content)
			continue
		}
		turns = append(turns, turn{role: role, text: []string{m.Content}})
	}

	var pending string
	if n := len(turns); n > 0 && turns[n-1].role == "user" {
		pending = strings.Join(turns[n-1].text, "\n\n")
		turns = turns[:n-1]
	}

	out := make([]*genai.Content, 0, len(turns))
	for _, t := range turns {
		out = append(out, &genai.Content{
			Role:  t.role,
			Parts: []genai.Part{genai.Text(strings.Join(t.text, "\n\n"))},
		})
	}
	return out, pending
}

func classifyGeminiError(err error) error {
	if apiErr, ok := apierror.FromError(err); ok {
		switch {
		case apiErr.HTTPCode() == http.StatusRequestEntityTooLarge:
			return fmt.Errorf("gemini: %w", ErrPayloadTooLarge)
		case apiErr.HTTPCode() == http.StatusTooManyRequests,
			apiErr.GRPCStatus() != nil && apiErr.GRPCStatus().Code() == codes.ResourceExhausted:
			return geminiRateLimited()
		case apiErr.GRPCStatus() != nil && apiErr.GRPCStatus().Code() == codes.InvalidArgument &&
			mentionsSize(apiErr.Error()):
			return fmt.Errorf("gemini: %w", ErrPayloadTooLarge)
		}
		return &UpstreamError{Provider: "gemini", StatusCode: apiErr.HTTPCode(), Err: err}
	}

	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		switch {
		case gErr.Code == http.StatusRequestEntityTooLarge,
			gErr.Code == http.StatusBadRequest && mentionsSize(gErr.Message):
			return fmt.Errorf("gemini: %w", ErrPayloadTooLarge)
		case gErr.Code == http.StatusTooManyRequests:
			return geminiRateLimited()
		}
		return &UpstreamError{Provider: "gemini", StatusCode: gErr.Code, Err: err}
	}

	if mentionsSize(err.Error()) {
		return fmt.Errorf("gemini: %w", ErrPayloadTooLarge)
	}
	return &UpstreamError{Provider: "gemini", Err: err}
}

func geminiRateLimited() *RateLimitError {
	return &RateLimitError{
		Message:    "Please wait a moment before sending another message.",
		RetryAfter: 60 * time.Second,
		Upstream:   true,
	}
}

func mentionsSize(msg string) bool {
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "too large") ||
		strings.Contains(msg, "token count") ||
		strings.Contains(msg, "context length")
}

func extractText(resp *genai.GenerateContentResponse) string {
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text.WriteString(string(t))
				}
			}
		}
	}
	return text.String()
}
