package scraper

import (
	"net/url"
	"testing"
)

func TestVideoID(t *testing.T) {
	tests := []struct {
		raw    string
		wantID string
		wantOK bool
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://m.youtube.com/shorts/dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://www.youtube.com/embed/dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://www.youtube.com/channel/UC123", "", false},
		{"https://www.youtube.com/watch?v=short", "", false},
		{"https://example.com/watch?v=dQw4w9WgXcQ", "", false},
	}

	for _, tc := range tests {
		t.Run(tc.raw, func(t *testing.T) {
			u, _ := url.Parse(tc.raw)
			id, ok := VideoID(u)
			if id != tc.wantID || ok != tc.wantOK {
				t.Errorf("Expected (%q, %v), got (%q, %v)", tc.wantID, tc.wantOK, id, ok)
			}
		})
	}
}

func TestExtractCaptionURL(t *testing.T) {
	page := `..."captionTracks":[{"baseUrl":"https:\/\/www.youtube.com\/api\/timedtext?v=abc\u0026lang=en","name":{}}],"audioTracks"...`

	got, err := extractCaptionURL(page)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "https://www.youtube.com/api/timedtext?v=abc&lang=en"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}

	if _, err := extractCaptionURL("<html>no captions here</html>"); err == nil {
		t.Fatal("expected error when no caption tracks exist")
	}
}

func TestParseCaptionsXML(t *testing.T) {
	data := []byte(`<transcript><text start="0" dur="1">Hello &amp;amp; welcome</text><text start="1" dur="1">  </text><text start="2" dur="1">to the talk</text></transcript>`)

	got, err := parseCaptionsXML(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Hello & welcome to the talk" {
		t.Fatalf("unexpected transcript %q", got)
	}
}
