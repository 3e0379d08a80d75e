package scraper

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"sourcechat-backend/internal/cache"
	"sourcechat-backend/internal/models"
)

type stubStrategy struct {
	name   string
	result *models.ScrapeResult
	err    error
	calls  int
}

func (s *stubStrategy) Name() string { return s.name }

func (s *stubStrategy) Extract(ctx context.Context, rawURL string) (*models.ScrapeResult, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	r := *s.result
	r.URL = rawURL
	return &r, nil
}

func page(title, body string) *models.ScrapeResult {
	return &models.ScrapeResult{Metadata: models.PageMetadata{Title: title}, MainContent: body}
}

func TestScraper_FallsBackToRender(t *testing.T) {
	direct := &stubStrategy{name: "direct", err: ErrNoContent}
	render := &stubStrategy{name: "render", result: page("SPA", "Rendered body text")}

	s := New(cache.NewURLCache(time.Minute), direct, render)
	got, err := s.Scrape(context.Background(), "https://spa.example")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(got, "Rendered body text") {
		t.Fatalf("expected rendered content, got %q", got)
	}
	if direct.calls != 1 || render.calls != 1 {
		t.Fatalf("expected one call each, got direct=%d render=%d", direct.calls, render.calls)
	}
}

func TestScraper_DoesNotRenderWhenDirectSucceeds(t *testing.T) {
	direct := &stubStrategy{name: "direct", result: page("Example Domain", "This domain is for illustrative examples.")}
	render := &stubStrategy{name: "render", err: errors.New("should not run")}

	s := New(nil, direct, render)
	if _, err := s.Scrape(context.Background(), "https://example.com"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if render.calls != 0 {
		t.Fatal("render strategy must only run after direct fetch fails")
	}
}

func TestScraper_UsesCache(t *testing.T) {
	direct := &stubStrategy{name: "direct", result: page("Cached", "Body worth caching")}
	c := cache.NewURLCache(time.Minute)
	s := New(c, direct)

	first, err := s.Scrape(context.Background(), "https://example.com/a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := s.Scrape(context.Background(), "https://EXAMPLE.com/a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first != second {
		t.Fatal("expected cached content on second call")
	}
	if direct.calls != 1 {
		t.Fatalf("expected a single fetch, got %d", direct.calls)
	}
}

func TestScraper_SkipsNotApplicable(t *testing.T) {
	yt := &stubStrategy{name: "youtube", err: ErrNotApplicable}
	direct := &stubStrategy{name: "direct", err: &HTTPError{StatusCode: 500}}
	render := &stubStrategy{name: "render", err: &RenderError{Cause: errors.New("boom")}}

	s := New(nil, yt, direct, render)
	_, err := s.Scrape(context.Background(), "https://down.example")

	var renderErr *RenderError
	if !errors.As(err, &renderErr) {
		t.Fatalf("expected the last strategy's RenderError, got %v", err)
	}
	if errors.Is(err, ErrNotApplicable) {
		t.Fatal("not-applicable must not be reported as the failure")
	}
}

func TestScraper_InvalidURL(t *testing.T) {
	direct := &stubStrategy{name: "direct", result: page("x", "y")}
	s := New(nil, direct)
	if _, err := s.Scrape(context.Background(), "mailto:someone@example.com"); !errors.Is(err, ErrInvalidURL) {
		t.Fatalf("expected ErrInvalidURL, got %v", err)
	}
	if direct.calls != 0 {
		t.Fatal("no strategy should run for an invalid URL")
	}
}

func TestFormatResult(t *testing.T) {
	got := FormatResult(&models.ScrapeResult{
		URL: "https://example.com",
		Metadata: models.PageMetadata{
			Title:       "Example Domain",
			ContentType: "website",
		},
		MainContent: "  This domain is for illustrative examples.  ",
	})

	want := "Title: Example Domain\nType: website\n\nMain Content:\nThis domain is for illustrative examples."
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}
