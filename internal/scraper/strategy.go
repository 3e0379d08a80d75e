package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"sourcechat-backend/internal/models"
)

// Strategy is one way of turning a URL into page content.
type Strategy interface {
	Name() string
	Extract(ctx context.Context, rawURL string) (*models.ScrapeResult, error)
}

var (
	// ErrInvalidURL is returned for strings that are not absolute http(s) URLs.
	ErrInvalidURL = errors.New("invalid url")
	// ErrNoContent means the page loaded but yielded no usable body text.
	ErrNoContent = errors.New("no content found")
	// ErrNotApplicable lets a strategy decline a URL it does not handle.
	ErrNotApplicable = errors.New("strategy not applicable")
)

// HTTPError is a non-2xx response from a direct fetch.
type HTTPError struct {
	StatusCode int
}

func (e *HTTPError) Error() string { return fmt.Sprintf("unexpected http status %d", e.StatusCode) }

// RenderError wraps the last failure of the headless renderer.
type RenderError struct {
	Cause error
}

func (e *RenderError) Error() string { return fmt.Sprintf("headless render failed: %v", e.Cause) }

func (e *RenderError) Unwrap() error { return e.Cause }

// ParseURL accepts only absolute http and https URLs with a host.
func ParseURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	return u, nil
}
