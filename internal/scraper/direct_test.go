package scraper

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const examplePage = `<!DOCTYPE html>
<html>
<head>
  <title>Example Domain</title>
  <meta name="description" content="An illustrative page">
  <meta property="og:type" content="website">
  <meta property="og:image" content="/logo.png">
</head>
<body>
  <nav>Home About Contact</nav>
  <main>
    <h1>Example Domain</h1>
    <p>This domain is for illustrative examples in documents and tutorials.</p>
    <script>var tracking = "should never appear in extracted text at all";</script>
  </main>
  <div class="download-section">
    <a href="/get">Download the installer</a> for every supported platform, including Linux and macOS.
  </div>
</body>
</html>`

type stubPDF struct {
	text string
	err  error
}

func (s stubPDF) ExtractPDF(data []byte) (string, error) { return s.text, s.err }

func newTestDirect(pdf PDFExtractor) *DirectStrategy {
	return NewDirectStrategy(5*time.Second, DefaultSelectors(), pdf)
}

func TestDirectStrategy_ExtractsMetadataAndContent(t *testing.T) {
	var gotUA, gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(examplePage))
	}))
	defer srv.Close()

	res, err := newTestDirect(nil).Extract(context.Background(), srv.URL+"/page")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(gotUA, "Mozilla/5.0") || !strings.Contains(gotAccept, "text/html") {
		t.Errorf("expected browser-like headers, got UA=%q Accept=%q", gotUA, gotAccept)
	}
	if res.Metadata.Title != "Example Domain" {
		t.Errorf("expected title 'Example Domain', got %q", res.Metadata.Title)
	}
	if res.Metadata.Description != "An illustrative page" {
		t.Errorf("unexpected description %q", res.Metadata.Description)
	}
	if res.Metadata.ContentType != "website" {
		t.Errorf("unexpected og:type %q", res.Metadata.ContentType)
	}
	if res.Metadata.ImageURL != srv.URL+"/logo.png" {
		t.Errorf("expected resolved image url, got %q", res.Metadata.ImageURL)
	}
	if !strings.Contains(res.MainContent, "This domain is for illustrative examples") {
		t.Errorf("main content missing body text: %q", res.MainContent)
	}
	if !strings.Contains(res.MainContent, "Download the installer") {
		t.Errorf("download heuristic did not contribute: %q", res.MainContent)
	}
	if strings.Contains(res.MainContent, "tracking") {
		t.Errorf("script text leaked into content: %q", res.MainContent)
	}
	if strings.Contains(res.MainContent, "Home About Contact") {
		t.Errorf("nav text should not be selected: %q", res.MainContent)
	}
	if res.Strategy != "direct" {
		t.Errorf("expected strategy 'direct', got %q", res.Strategy)
	}
}

func TestDirectStrategy_DeduplicatesNestedMatches(t *testing.T) {
	page := `<html><body><main><article><div class="content">` +
		`A single block of text that is certainly longer than fifty characters.` +
		`</div></article></main></body></html>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(page))
	}))
	defer srv.Close()

	res, err := newTestDirect(nil).Extract(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := strings.Count(res.MainContent, "A single block of text"); n != 1 {
		t.Fatalf("expected one copy of the block, got %d in %q", n, res.MainContent)
	}
}

func TestDirectStrategy_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		check   func(error) bool
	}{
		{
			name: "non-2xx is HTTPError",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusForbidden)
			},
			check: func(err error) bool {
				var httpErr *HTTPError
				return errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusForbidden
			},
		},
		{
			name: "short text is NoContent",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`<html><body><main>too short</main></body></html>`))
			},
			check: func(err error) bool { return errors.Is(err, ErrNoContent) },
		},
		{
			name: "pdf without extractor is NoContent",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/pdf")
				w.Write([]byte("%PDF-1.4"))
			},
			check: func(err error) bool { return errors.Is(err, ErrNoContent) },
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()

			_, err := newTestDirect(nil).Extract(context.Background(), srv.URL)
			if err == nil || !tc.check(err) {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestDirectStrategy_InvalidURL(t *testing.T) {
	for _, raw := range []string{"not a url", "ftp://example.com/file", "https://", "/relative/path"} {
		_, err := newTestDirect(nil).Extract(context.Background(), raw)
		if !errors.Is(err, ErrInvalidURL) {
			t.Errorf("%q: expected ErrInvalidURL, got %v", raw, err)
		}
	}
}

func TestDirectStrategy_PDF(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.4 fake"))
	}))
	defer srv.Close()

	res, err := newTestDirect(stubPDF{text: "Lecture notes on graphs"}).Extract(context.Background(), srv.URL+"/notes.pdf")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.MainContent != "Lecture notes on graphs" {
		t.Errorf("unexpected content %q", res.MainContent)
	}
	if res.Metadata.Title != "notes.pdf" || res.Metadata.ContentType != "application/pdf" {
		t.Errorf("unexpected metadata %+v", res.Metadata)
	}
}

func TestKeywordSelector(t *testing.T) {
	got := DefaultSelectors().keywordSelector()
	want := `a:contains("Download"), a:contains("Install"), [class*="download"], [class*="install"]`
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}
