package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"sourcechat-backend/internal/content"
	"sourcechat-backend/internal/models"
)

// DefaultSystemPrompt frames every completion request.
const DefaultSystemPrompt = "You are a helpful assistant. When sources are provided, base your answer on them " +
	"and tell the user plainly if a source could not be retrieved."

// CompletionRequest is one call to the hosted model.
type CompletionRequest struct {
	SystemPrompt string
	History      []models.Message
	UserContent  string
}

// Completer is a hosted chat-completion backend.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// AdapterConfig bounds what is forwarded per call.
type AdapterConfig struct {
	HistoryLimit int
	HistoryChars int
	Delay        time.Duration
	SystemPrompt string
}

// CompletionAdapter sends chunks one at a time with a short pause between
// calls and a bounded slice of the conversation history.
type CompletionAdapter struct {
	completer Completer
	cfg       AdapterConfig
	sleep     func(ctx context.Context, d time.Duration) error
}

func NewCompletionAdapter(completer Completer, cfg AdapterConfig) *CompletionAdapter {
	if cfg.HistoryLimit < 0 {
		cfg.HistoryLimit = 0
	}
	if cfg.HistoryChars <= 0 {
		cfg.HistoryChars = 1000
	}
	return &CompletionAdapter{
		completer: completer,
		cfg:       cfg,
		sleep:     sleepCtx,
	}
}

// Complete is the single-call form.
func (a *CompletionAdapter) Complete(ctx context.Context, history []models.Message, userContent string) (string, error) {
	return a.completer.Complete(ctx, CompletionRequest{
		SystemPrompt: a.cfg.SystemPrompt,
		History:      BoundHistory(history, a.cfg.HistoryLimit, a.cfg.HistoryChars),
		UserContent:  userContent,
	})
}

// CompleteChunks calls the backend for each chunk in order. A chunk the
// backend rejects as too large is skipped; any other error aborts.
func (a *CompletionAdapter) CompleteChunks(ctx context.Context, history []models.Message, chunks []string) ([]string, error) {
	logger := zerolog.Ctx(ctx)
	bounded := BoundHistory(history, a.cfg.HistoryLimit, a.cfg.HistoryChars)

	responses := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		if a.cfg.Delay > 0 {
			if err := a.sleep(ctx, a.cfg.Delay); err != nil {
				return nil, err
			}
		}

		reply, err := a.completer.Complete(ctx, CompletionRequest{
			SystemPrompt: a.cfg.SystemPrompt,
			History:      bounded,
			UserContent:  chunk,
		})
		if errors.Is(err, ErrPayloadTooLarge) {
			logger.Warn().Err(err).Int("chunk", i).Int("chunks", len(chunks)).Msg("chunk too large, skipping")
			continue
		}
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(reply) != "" {
			responses = append(responses, reply)
		}
	}
	return responses, nil
}

// BoundHistory keeps the last limit messages with known roles, each cut to
// maxChars runes. Role aliases are mapped and unknown roles dropped.
func BoundHistory(history []models.Message, limit, maxChars int) []models.Message {
	valid := make([]models.Message, 0, len(history))
	for _, m := range history {
		role, ok := NormalizeRole(m.Role)
		if !ok || strings.TrimSpace(m.Content) == "" {
			continue
		}
		valid = append(valid, models.Message{Role: role, Content: m.Content})
	}

	if limit <= 0 {
		return nil
	}
	if len(valid) > limit {
		valid = valid[len(valid)-limit:]
	}
	for i := range valid {
		valid[i].Content = content.Truncate(valid[i].Content, maxChars)
	}
	return valid
}

func NormalizeRole(role string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case models.RoleUser, "human":
		return models.RoleUser, true
	case models.RoleAssistant, "bot", "ai", "model":
		return models.RoleAssistant, true
	case models.RoleSystem:
		return models.RoleSystem, true
	default:
		return "", false
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
