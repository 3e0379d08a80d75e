package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"sourcechat-backend/internal/models"
)

// Cache is the subset of the URL cache the scraper needs.
type Cache interface {
	Get(rawURL string) (string, bool)
	Put(rawURL, content string)
}

// Scraper tries each strategy in order and caches the first usable result.
type Scraper struct {
	cache      Cache
	strategies []Strategy
}

func New(cache Cache, strategies ...Strategy) *Scraper {
	return &Scraper{cache: cache, strategies: strategies}
}

// Scrape returns the formatted content block for a URL. Failures from every
// strategy collapse into the last one seen, wrapped with the URL.
func (s *Scraper) Scrape(ctx context.Context, rawURL string) (string, error) {
	u, err := ParseURL(rawURL)
	if err != nil {
		return "", err
	}
	key := u.String()
	logger := zerolog.Ctx(ctx).With().Str("url", key).Logger()

	if s.cache != nil {
		if cached, ok := s.cache.Get(key); ok {
			logger.Debug().Msg("url cache hit")
			return cached, nil
		}
	}

	var lastErr error
	for _, strategy := range s.strategies {
		result, err := strategy.Extract(ctx, key)
		if errors.Is(err, ErrNotApplicable) {
			continue
		}
		if err == nil && strings.TrimSpace(result.MainContent) == "" {
			err = ErrNoContent
		}
		if err != nil {
			logger.Debug().Err(err).Str("strategy", strategy.Name()).Msg("strategy failed, falling back")
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}

		formatted := FormatResult(result)
		if s.cache != nil {
			s.cache.Put(key, formatted)
		}
		logger.Debug().Str("strategy", strategy.Name()).Int("chars", len(formatted)).Msg("url scraped")
		return formatted, nil
	}

	if lastErr == nil {
		lastErr = ErrNoContent
	}
	return "", fmt.Errorf("scrape %s: %w", key, lastErr)
}

// FormatResult renders a result as the labelled text block fed to the model.
func FormatResult(r *models.ScrapeResult) string {
	var b strings.Builder

	title := strings.TrimSpace(r.Metadata.Title)
	if title == "" {
		title = r.URL
	}
	b.WriteString("Title: " + title + "\n")
	if d := strings.TrimSpace(r.Metadata.Description); d != "" {
		b.WriteString("Description: " + d + "\n")
	}
	if t := strings.TrimSpace(r.Metadata.ContentType); t != "" {
		b.WriteString("Type: " + t + "\n")
	}
	if img := strings.TrimSpace(r.Metadata.ImageURL); img != "" {
		b.WriteString("Image: " + img + "\n")
	}
	b.WriteString("\nMain Content:\n")
	b.WriteString(strings.TrimSpace(r.MainContent))

	return b.String()
}
