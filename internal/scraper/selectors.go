package scraper

import (
	"fmt"
	"strings"
)

const (
	DesktopUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"
	BrowserUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	acceptHeader     = "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8"
	acceptLanguage   = "en-US,en;q=0.5"
)

// Selectors is the tunable data behind both extraction strategies.
type Selectors struct {
	// Content containers queried by the direct fetch, in priority order.
	Content []string
	// Content containers queried inside the rendered page.
	RenderContent []string
	// Elements whose text is labelled for the model.
	Interactive []string
	// Ancestors that count as the "section" around a keyword anchor.
	SectionAncestors string
	// Anchor text that marks a download or install area.
	Keywords []string
	// MinBlockLength is the exclusive lower bound on kept block length.
	MinBlockLength int
	// ReadyTextLength is how much text a container needs before a rendered
	// page is considered populated.
	ReadyTextLength int
	// MetaDescription and MetaImage are checked in order.
	MetaDescription []string
	MetaImage       []string
}

func DefaultSelectors() Selectors {
	return Selectors{
		Content: []string{
			"main",
			"article",
			`[role="main"]`,
			"#main-content",
			".main-content",
			".content",
			"[data-testid]",
			`[class*="container"]`,
			`[class*="wrapper"]`,
		},
		RenderContent: []string{
			"main", `[role="main"]`, "#root", "#app", "#__next",
			`[class*="content"]`, `[class*="container"]`, `[class*="wrapper"]`,
			"[data-testid]", "[data-component]", "[data-section]",
			"article", ".post", ".article",
			`[class*="download"]`, `[class*="docs"]`, `[class*="documentation"]`,
			`[class*="pricing"]`, `[class*="features"]`,
		},
		Interactive: []string{
			"button", "a", "input", "select",
			`[role="button"]`, `[role="link"]`,
			`[class*="button"]`, `[class*="link"]`,
		},
		SectionAncestors: `section, div[class*="section"], div[class*="container"]`,
		Keywords:         []string{"Download", "Install"},
		MinBlockLength:   50,
		ReadyTextLength:  100,
		MetaDescription: []string{
			`meta[name="description"]`,
			`meta[property="og:description"]`,
			`meta[name="twitter:description"]`,
		},
		MetaImage: []string{
			`meta[property="og:image"]`,
			`meta[name="twitter:image"]`,
			`meta[itemprop="image"]`,
		},
	}
}

// keywordSelector matches anchors containing a keyword plus elements whose
// class hints at one.
func (s Selectors) keywordSelector() string {
	var parts []string
	for _, kw := range s.Keywords {
		parts = append(parts, fmt.Sprintf(`a:contains(%q)`, kw))
	}
	for _, kw := range s.Keywords {
		parts = append(parts, fmt.Sprintf(`[class*=%q]`, strings.ToLower(kw)))
	}
	return strings.Join(parts, ", ")
}
