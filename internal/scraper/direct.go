package scraper

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/dyatlov/go-opengraph/opengraph"
	readability "github.com/go-shiori/go-readability"
	"github.com/rs/zerolog"
	"golang.org/x/net/html"

	"sourcechat-backend/internal/content"
	"sourcechat-backend/internal/models"
)

const maxPageBytes = 10 << 20

// PDFExtractor turns a PDF document into plain text.
type PDFExtractor interface {
	ExtractPDF(data []byte) (string, error)
}

// DirectStrategy fetches a page with a plain GET and queries the markup.
type DirectStrategy struct {
	client    *http.Client
	selectors Selectors
	pdf       PDFExtractor
}

func NewDirectStrategy(timeout time.Duration, selectors Selectors, pdf PDFExtractor) *DirectStrategy {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &DirectStrategy{
		client:    &http.Client{Timeout: timeout},
		selectors: selectors,
		pdf:       pdf,
	}
}

func (s *DirectStrategy) Name() string { return "direct" }

func (s *DirectStrategy) Extract(ctx context.Context, rawURL string) (*models.ScrapeResult, error) {
	u, err := ParseURL(rawURL)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	req.Header.Set("User-Agent", DesktopUserAgent)
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("Accept-Language", acceptLanguage)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", u.Host, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType == "application/pdf" || bytes.HasPrefix(body, []byte("%PDF-")) {
		return s.extractPDF(ctx, u, body)
	}
	return s.extractHTML(ctx, u, body)
}

func (s *DirectStrategy) extractPDF(ctx context.Context, u *url.URL, body []byte) (*models.ScrapeResult, error) {
	if s.pdf == nil {
		return nil, fmt.Errorf("%w: pdf extraction not configured", ErrNoContent)
	}
	text, err := s.pdf.ExtractPDF(body)
	if err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Str("url", u.String()).Msg("pdf extraction failed")
		return nil, fmt.Errorf("%w: %v", ErrNoContent, err)
	}

	title := path.Base(u.Path)
	if title == "" || title == "/" || title == "." {
		title = u.Host
	}
	return &models.ScrapeResult{
		URL:         u.String(),
		Metadata:    models.PageMetadata{Title: title, ContentType: "application/pdf"},
		MainContent: text,
		FetchedAt:   time.Now(),
		Strategy:    s.Name(),
	}, nil
}

func (s *DirectStrategy) extractHTML(ctx context.Context, u *url.URL, body []byte) (*models.ScrapeResult, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	meta := s.metadata(ctx, u, body, doc)

	doc.Find("script, style, noscript, template").Remove()

	blocks := newTextSet()
	for _, sel := range s.selectors.Content {
		doc.Find(sel).Each(func(_ int, el *goquery.Selection) {
			blocks.add(nodeText(el), s.selectors.MinBlockLength)
		})
	}

	// Software pages tend to keep the useful bits next to download links.
	doc.Find(s.selectors.keywordSelector()).Each(func(_ int, el *goquery.Selection) {
		section := el.Closest(s.selectors.SectionAncestors)
		if section.Length() > 0 {
			blocks.add(nodeText(section), s.selectors.MinBlockLength)
		}
	})

	if blocks.len() == 0 {
		return nil, ErrNoContent
	}

	return &models.ScrapeResult{
		URL:         u.String(),
		Metadata:    meta,
		MainContent: blocks.join("\n\n"),
		FetchedAt:   time.Now(),
		Strategy:    s.Name(),
	}, nil
}

func (s *DirectStrategy) metadata(ctx context.Context, u *url.URL, body []byte, doc *goquery.Document) models.PageMetadata {
	og := opengraph.NewOpenGraph()
	if err := og.ProcessHTML(bytes.NewReader(body)); err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Msg("opengraph parse failed")
	}

	meta := models.PageMetadata{
		Title:       content.NormalizeWhitespace(doc.Find("title").First().Text()),
		Description: firstAttr(doc, s.selectors.MetaDescription),
		ContentType: og.Type,
	}
	if meta.Title == "" {
		meta.Title = og.Title
	}
	if meta.Description == "" {
		meta.Description = og.Description
	}
	if len(og.Images) > 0 && og.Images[0].URL != "" {
		meta.ImageURL = resolve(u, og.Images[0].URL)
	} else if img := firstAttr(doc, s.selectors.MetaImage); img != "" {
		meta.ImageURL = resolve(u, img)
	}

	if meta.Title == "" || meta.Description == "" || meta.ImageURL == "" {
		article, err := readability.FromReader(bytes.NewReader(body), u)
		if err == nil {
			if meta.Title == "" {
				meta.Title = article.Title
			}
			if meta.Description == "" {
				meta.Description = content.NormalizeWhitespace(article.Excerpt)
			}
			if meta.ImageURL == "" && article.Image != "" {
				meta.ImageURL = resolve(u, article.Image)
			}
		}
	}
	return meta
}

func firstAttr(doc *goquery.Document, selectors []string) string {
	for _, sel := range selectors {
		if v, ok := doc.Find(sel).First().Attr("content"); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func resolve(base *url.URL, ref string) string {
	r, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return ref
	}
	return base.ResolveReference(r).String()
}

// nodeText returns the text under the selection with element boundaries
// turned into spaces, so adjacent blocks do not run together.
func nodeText(sel *goquery.Selection) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
		case html.ElementNode:
			b.WriteByte(' ')
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				walk(c)
			}
			b.WriteByte(' ')
		default:
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				walk(c)
			}
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	return content.NormalizeWhitespace(b.String())
}

// textSet keeps unique text blocks in insertion order.
type textSet struct {
	seen  map[string]struct{}
	order []string
}

func newTextSet() *textSet {
	return &textSet{seen: make(map[string]struct{})}
}

func (t *textSet) add(text string, minLen int) {
	if len(text) <= minLen {
		return
	}
	if _, ok := t.seen[text]; ok {
		return
	}
	t.seen[text] = struct{}{}
	t.order = append(t.order, text)
}

func (t *textSet) len() int { return len(t.order) }

func (t *textSet) join(sep string) string { return strings.Join(t.order, sep) }
