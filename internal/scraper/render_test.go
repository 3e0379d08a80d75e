package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"
)

const renderFixture = `<!DOCTYPE html>
<html>
<head><title>Rendered Page</title></head>
<body>
  <div role="navigation">
    <article>Navigation article text that is long enough to pass the block length filter.</article>
  </div>
  <article style="display:none">Hidden article text that is long enough to pass the block length filter.</article>
  <article id="visible"></article>
  <button>Subscribe now</button>
  <script>
    document.getElementById('visible').textContent =
      'Visible article text written by script, long enough to pass the block length filter.';
  </script>
</body>
</html>`

const plainFixture = `<!DOCTYPE html>
<html>
<head><title>Plain Page</title></head>
<body>
  <div><span>Plain text paragraph without any structured container around it.</span></div>
  <div style="display:none"><span>Hidden plain paragraph that must stay out of the result.</span></div>
  <div><span>short</span></div>
</body>
</html>`

// chromePath returns a local Chrome binary or skips the test.
func chromePath(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("browser rendering skipped in short mode")
	}
	if p := os.Getenv("CHROME_PATH"); p != "" {
		return p
	}
	for _, name := range []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser", "headless-shell"} {
		if p, err := exec.LookPath(name); err == nil {
			return p
		}
	}
	t.Skip("no Chrome binary found")
	return ""
}

func renderTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		switch r.URL.Path {
		case "/plain":
			w.Write([]byte(plainFixture))
		default:
			w.Write([]byte(renderFixture))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestRender(t *testing.T) *RenderStrategy {
	return NewRenderStrategy(RenderOptions{
		NavigationTimeout: 20 * time.Second,
		ContentWait:       2 * time.Second,
		Attempts:          1,
		ExecPath:          chromePath(t),
	}, DefaultSelectors())
}

func TestRenderStrategy_ExtractsVisibleContent(t *testing.T) {
	s := newTestRender(t)
	srv := renderTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	res, err := s.Extract(ctx, srv.URL+"/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Metadata.Title != "Rendered Page" {
		t.Errorf("expected title, got %q", res.Metadata.Title)
	}
	if res.Strategy != "render" {
		t.Errorf("expected render strategy, got %q", res.Strategy)
	}
	if !strings.Contains(res.MainContent, "Visible article text written by script") {
		t.Errorf("script-written article missing: %q", res.MainContent)
	}
	if !strings.Contains(res.MainContent, "Button: Subscribe now") {
		t.Errorf("button label missing: %q", res.MainContent)
	}
	for _, unwanted := range []string{"Navigation article", "Hidden article"} {
		if strings.Contains(res.MainContent, unwanted) {
			t.Errorf("content should not contain %q: %q", unwanted, res.MainContent)
		}
	}
}

func TestRenderStrategy_FallsBackToTextNodes(t *testing.T) {
	s := newTestRender(t)
	srv := renderTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	res, err := s.Extract(ctx, srv.URL+"/plain")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(res.MainContent, "Plain text paragraph without any structured container") {
		t.Errorf("text node fallback missing paragraph: %q", res.MainContent)
	}
	if strings.Contains(res.MainContent, "Hidden plain paragraph") {
		t.Errorf("hidden text leaked: %q", res.MainContent)
	}
	if strings.Contains(res.MainContent, "short") {
		t.Errorf("short fragment should be filtered: %q", res.MainContent)
	}
}

func TestBuildExtractScript_EmbedsSelectors(t *testing.T) {
	script := buildExtractScript(DefaultSelectors())
	for _, want := range []string{`"article"`, `"Download"`, "const minBlock = 50;", "NodeFilter.SHOW_TEXT"} {
		if !strings.Contains(script, want) {
			t.Errorf("script missing %q", want)
		}
	}
}
