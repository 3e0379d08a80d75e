package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"

	"sourcechat-backend/internal/models"
)

// RenderOptions tunes the headless renderer.
type RenderOptions struct {
	NavigationTimeout time.Duration
	ContentWait       time.Duration
	Attempts          int
	Backoff           time.Duration
	ExecPath          string
}

func DefaultRenderOptions() RenderOptions {
	return RenderOptions{
		NavigationTimeout: 30 * time.Second,
		ContentWait:       10 * time.Second,
		Attempts:          3,
		Backoff:           2 * time.Second,
	}
}

// RenderStrategy loads the page in headless Chrome so client-side rendered
// content is present before extraction. Every attempt owns its own browser
// and tears it down before returning.
type RenderStrategy struct {
	opts      RenderOptions
	selectors Selectors

	readyScript   string
	extractScript string
}

type renderedPage struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Type        string   `json:"type"`
	Image       string   `json:"image"`
	Blocks      []string `json:"blocks"`
}

func NewRenderStrategy(opts RenderOptions, selectors Selectors) *RenderStrategy {
	def := DefaultRenderOptions()
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = def.NavigationTimeout
	}
	if opts.ContentWait <= 0 {
		opts.ContentWait = def.ContentWait
	}
	if opts.Attempts <= 0 {
		opts.Attempts = def.Attempts
	}
	if opts.Backoff < 0 {
		opts.Backoff = def.Backoff
	}
	return &RenderStrategy{
		opts:          opts,
		selectors:     selectors,
		readyScript:   buildReadyScript(selectors),
		extractScript: buildExtractScript(selectors),
	}
}

func (s *RenderStrategy) Name() string { return "render" }

func (s *RenderStrategy) Extract(ctx context.Context, rawURL string) (*models.ScrapeResult, error) {
	u, err := ParseURL(rawURL)
	if err != nil {
		return nil, err
	}
	logger := zerolog.Ctx(ctx)

	var lastErr error
	for attempt := 1; attempt <= s.opts.Attempts; attempt++ {
		page, err := s.renderOnce(ctx, u.String())
		if err == nil {
			return &models.ScrapeResult{
				URL: u.String(),
				Metadata: models.PageMetadata{
					Title:       page.Title,
					Description: page.Description,
					ContentType: page.Type,
					ImageURL:    page.Image,
				},
				MainContent: strings.Join(page.Blocks, "\n\n"),
				FetchedAt:   time.Now(),
				Strategy:    s.Name(),
			}, nil
		}
		lastErr = err

		// A page that rendered but is empty will not improve on retry.
		if errors.Is(err, ErrNoContent) {
			break
		}

		logger.Warn().Err(err).Str("url", u.String()).Int("attempt", attempt).Msg("render attempt failed")
		if attempt == s.opts.Attempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, &RenderError{Cause: ctx.Err()}
		case <-time.After(s.opts.Backoff):
		}
	}
	return nil, &RenderError{Cause: lastErr}
}

func (s *RenderStrategy) renderOnce(ctx context.Context, target string) (*renderedPage, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-web-security", true),
		chromedp.Flag("disable-features", "IsolateOrigins"),
		chromedp.Flag("disable-site-isolation-trials", true),
		chromedp.WindowSize(1920, 1080),
		chromedp.UserAgent(BrowserUserAgent),
	)
	if s.opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(s.opts.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))
	defer cancelBrowser()

	// Start the browser on the long-lived context so the per-step timeouts
	// below do not kill it.
	if err := chromedp.Run(browserCtx); err != nil {
		return nil, fmt.Errorf("start browser: %w", err)
	}

	navCtx, cancelNav := context.WithTimeout(browserCtx, s.opts.NavigationTimeout)
	defer cancelNav()
	err := chromedp.Run(navCtx,
		network.Enable(),
		network.SetExtraHTTPHeaders(network.Headers{
			"Accept":          acceptHeader,
			"Accept-Language": acceptLanguage,
			"Sec-Fetch-Dest":  "document",
		}),
		chromedp.EmulateViewport(1920, 1080),
		chromedp.Navigate(target),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("navigate: %w", err)
	}

	waitCtx, cancelWait := context.WithTimeout(browserCtx, s.opts.ContentWait)
	var ready bool
	if err := chromedp.Run(waitCtx, chromedp.Poll(s.readyScript, &ready, chromedp.WithPollingInterval(250*time.Millisecond))); err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Str("url", target).Msg("timed out waiting for content selectors")
	}
	cancelWait()

	extractCtx, cancelExtract := context.WithTimeout(browserCtx, 15*time.Second)
	defer cancelExtract()
	var page renderedPage
	if err := chromedp.Run(extractCtx, chromedp.Evaluate(s.extractScript, &page)); err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}
	if len(page.Blocks) == 0 {
		return nil, ErrNoContent
	}
	return &page, nil
}

func jsList(items []string) string {
	b, _ := json.Marshal(items)
	return string(b)
}

func buildReadyScript(sel Selectors) string {
	return fmt.Sprintf(`(() => {
  const selectors = %s;
  return selectors.some(s => {
    const el = document.querySelector(s);
    return !!el && (el.textContent || '').trim().length > %d;
  });
})()`, jsList(sel.Content), sel.ReadyTextLength)
}

func buildExtractScript(sel Selectors) string {
	return fmt.Sprintf(`(() => {
  const contentSelectors = %s;
  const interactiveSelectors = %s;
  const keywords = %s;
  const sectionSelector = %q;
  const descriptionMeta = %s;
  const imageMeta = %s;
  const minBlock = %d;

  const isHidden = (el) => {
    const style = window.getComputedStyle(el);
    return style.display === 'none' || style.visibility === 'hidden';
  };
  const isChrome = (el) => ['navigation', 'banner', 'footer'].includes((el.getAttribute('role') || '').toLowerCase());
  const skip = (el) => {
    for (let n = el; n && n !== document.documentElement; n = n.parentElement) {
      if (isHidden(n) || isChrome(n)) return true;
    }
    return false;
  };
  const clean = (t) => (t || '').replace(/\s+/g, ' ').trim();
  const meta = (list) => {
    for (const s of list) {
      const v = document.querySelector(s)?.getAttribute('content');
      if (v) return v;
    }
    return '';
  };

  const blocks = [];
  const seen = new Set();
  let structured = 0;
  const add = (t, counts) => {
    t = clean(t);
    if (!t || seen.has(t)) return;
    seen.add(t);
    blocks.push(t);
    if (counts) structured++;
  };

  for (const s of contentSelectors) {
    for (const el of document.querySelectorAll(s)) {
      if (skip(el)) continue;
      const text = clean(el.innerText);
      if (text.length > minBlock) add(text, true);
    }
  }

  for (const s of interactiveSelectors) {
    for (const el of document.querySelectorAll(s)) {
      if (skip(el)) continue;
      const tag = el.tagName.toLowerCase();
      const role = (el.getAttribute('role') || '').toLowerCase();
      if (tag === 'input' || tag === 'select' || tag === 'textarea') {
        const label = clean(el.getAttribute('placeholder') || el.getAttribute('aria-label') || el.getAttribute('name'));
        if (label) add('Input: ' + label, false);
        continue;
      }
      const text = clean(el.innerText || el.getAttribute('aria-label'));
      if (!text) continue;
      if (tag === 'button' || role === 'button') add('Button: ' + text, false);
      if (keywords.some(k => text.includes(k))) {
        if (tag === 'a' || role === 'link') add('Link: ' + text, false);
        const section = el.closest(sectionSelector);
        if (section && !skip(section)) add(section.innerText, true);
      }
    }
  }

  if (structured === 0 && document.body) {
    const walker = document.createTreeWalker(document.body, NodeFilter.SHOW_TEXT, {
      acceptNode: (node) => {
        const parent = node.parentElement;
        if (!parent || skip(parent)) return NodeFilter.FILTER_REJECT;
        if (['script', 'style', 'noscript'].includes(parent.tagName.toLowerCase())) return NodeFilter.FILTER_REJECT;
        const text = clean(node.textContent);
        if (text.length < 20 || text.split(' ').length < 4) return NodeFilter.FILTER_REJECT;
        return NodeFilter.FILTER_ACCEPT;
      }
    });
    while (walker.nextNode()) add(walker.currentNode.textContent, true);
  }

  return {
    title: document.title || '',
    description: meta(descriptionMeta),
    type: meta(['meta[property="og:type"]']),
    image: meta(imageMeta),
    blocks: structured > 0 ? blocks : [],
  };
})()`,
		jsList(sel.RenderContent),
		jsList(sel.Interactive),
		jsList(sel.Keywords),
		sel.SectionAncestors,
		jsList(sel.MetaDescription),
		jsList(sel.MetaImage),
		sel.MinBlockLength,
	)
}
