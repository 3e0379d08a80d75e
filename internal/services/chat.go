package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"sourcechat-backend/internal/content"
	"sourcechat-backend/internal/models"
)

const (
	// ApologyContent is returned when every chunk was rejected or came back empty.
	ApologyContent = "I apologize, but I couldn't process the content due to size limitations. " +
		"Please try with a smaller amount of content or fewer URLs."

	defaultQuestion = "Please summarize the key information from these sources."
)

// Throttle decides whether a client has exhausted its request window.
type Throttle interface {
	ShouldThrottle(key string) bool
	RetryAfter(key string) time.Duration
}

// PageScraper returns the formatted content block for one URL.
type PageScraper interface {
	Scrape(ctx context.Context, rawURL string) (string, error)
}

// TextExtractor reads plain text out of an uploaded file.
type TextExtractor interface {
	ExtractText(filename string, data []byte) (string, error)
}

// ChatOptions are the orchestrator's tunables.
type ChatOptions struct {
	RequestDelay        time.Duration
	MaxURLs             int
	ScrapeConcurrency   int
	MaxSourceChars      int
	MaxTotalSourceChars int
	MaxInputTokens      int
}

// ChatInput is one validated request to the chat endpoint.
type ChatInput struct {
	ClientID         string
	Message          string
	URLs             []string
	PreviousMessages []models.Message
	Attachments      []models.Attachment
}

type ChatService struct {
	throttle  Throttle
	scraper   PageScraper
	extractor TextExtractor
	adapter   *CompletionAdapter
	chunker   content.Chunker
	tokens    content.TokenCounter
	opts      ChatOptions
	sleep     func(ctx context.Context, d time.Duration) error
}

func NewChatService(
	throttle Throttle,
	scraper PageScraper,
	extractor TextExtractor,
	adapter *CompletionAdapter,
	chunker content.Chunker,
	tokens content.TokenCounter,
	opts ChatOptions,
) *ChatService {
	if opts.MaxURLs <= 0 {
		opts.MaxURLs = 5
	}
	if opts.ScrapeConcurrency <= 0 {
		opts.ScrapeConcurrency = opts.MaxURLs
	}
	if opts.MaxSourceChars <= 0 {
		opts.MaxSourceChars = 10000
	}
	if opts.MaxTotalSourceChars <= 0 {
		opts.MaxTotalSourceChars = 15000
	}
	if tokens == nil {
		tokens = content.CharEstimator{CharsPerToken: chunker.CharsPerToken}
	}
	return &ChatService{
		throttle:  throttle,
		scraper:   scraper,
		extractor: extractor,
		adapter:   adapter,
		chunker:   chunker,
		tokens:    tokens,
		opts:      opts,
		sleep:     sleepCtx,
	}
}

// Handle runs one chat turn: throttle, scrape, assemble, chunk, complete
// and merge.
func (s *ChatService) Handle(ctx context.Context, in ChatInput) (*models.ChatResponse, error) {
	logger := zerolog.Ctx(ctx)

	if s.throttle != nil && s.throttle.ShouldThrottle(in.ClientID) {
		return nil, &RateLimitError{
			Message:    "Too many requests. Please wait a moment before trying again.",
			RetryAfter: s.throttle.RetryAfter(in.ClientID),
		}
	}

	message := strings.TrimSpace(in.Message)
	urls := ExtractURLs(message, in.URLs)
	if message == "" && len(urls) == 0 && len(in.Attachments) == 0 {
		return nil, &ValidationError{Fields: map[string]string{
			"message": "message, urls or files are required",
		}}
	}

	if s.opts.RequestDelay > 0 {
		if err := s.sleep(ctx, s.opts.RequestDelay); err != nil {
			return nil, err
		}
	}

	attachments := s.readAttachments(ctx, in.Attachments)
	if s.opts.MaxInputTokens > 0 {
		estimate := s.tokens.Count(message)
		for _, a := range attachments {
			estimate += s.tokens.Count(a.text)
		}
		if estimate > s.opts.MaxInputTokens {
			logger.Warn().Int("tokens", estimate).Int("limit", s.opts.MaxInputTokens).Msg("request exceeds input budget")
			return nil, ErrPayloadTooLarge
		}
	}

	scraped, failed := s.scrapeAll(ctx, urls)
	prompt, used := s.buildPrompt(message, scraped, failed, attachments)
	if len(used) < len(scraped) {
		logger.Info().Int("scraped", len(scraped)).Int("used", len(used)).Msg("sources cut by prompt budget")
	}

	chunks := s.chunker.Split(prompt)
	if len(chunks) > 1 {
		chunks = content.AnnotateChunks(chunks)
	}
	logger.Info().
		Int("urls", len(urls)).
		Int("failed", len(failed)).
		Int("chunks", len(chunks)).
		Msg("prompt assembled")

	responses, err := s.adapter.CompleteChunks(ctx, in.PreviousMessages, chunks)
	if err != nil {
		return nil, err
	}

	var reply string
	switch len(responses) {
	case 0:
		reply = ""
	case 1:
		reply = strings.TrimSpace(responses[0])
	default:
		reply = content.Merge(responses)
	}
	if reply == "" {
		reply = ApologyContent
	}

	return &models.ChatResponse{
		Content:    reply,
		Sources:    used,
		FailedURLs: append([]string{}, failed...),
		Chunked:    len(chunks) > 1,
	}, nil
}

var urlPattern = regexp.MustCompile(`https?://[^\s]+`)

// ExtractURLs merges URLs found in the message with the explicit list,
// keeping first-seen order and dropping duplicates.
func ExtractURLs(message string, explicit []string) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(u string) {
		u = strings.TrimRight(strings.TrimSpace(u), ".,;:!?)]}>\"'")
		if u == "" {
			return
		}
		if _, ok := seen[u]; ok {
			return
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	for _, u := range urlPattern.FindAllString(message, -1) {
		add(u)
	}
	for _, u := range explicit {
		add(u)
	}
	return out
}

type scrapedSource struct {
	url     string
	content string
}

// scrapeAll fetches up to MaxURLs in parallel. A failure only affects its
// own URL; URLs past the limit are reported failed without an attempt.
func (s *ChatService) scrapeAll(ctx context.Context, urls []string) ([]scrapedSource, []string) {
	attempt := urls
	var overflow []string
	if len(urls) > s.opts.MaxURLs {
		attempt = urls[:s.opts.MaxURLs]
		overflow = urls[s.opts.MaxURLs:]
	}

	results := make([]string, len(attempt))
	errs := make([]error, len(attempt))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.ScrapeConcurrency)
	for i, u := range attempt {
		g.Go(func() error {
			if s.scraper == nil {
				errs[i] = errors.New("scraping disabled")
				return nil
			}
			results[i], errs[i] = s.scraper.Scrape(gctx, u)
			return nil
		})
	}
	_ = g.Wait()

	logger := zerolog.Ctx(ctx)
	var scraped []scrapedSource
	var failed []string
	for i, u := range attempt {
		if errs[i] != nil {
			logger.Warn().Err(errs[i]).Str("url", u).Msg("failed to scrape url")
			failed = append(failed, u)
			continue
		}
		scraped = append(scraped, scrapedSource{url: u, content: results[i]})
	}
	if len(overflow) > 0 {
		logger.Info().Int("skipped", len(overflow)).Int("limit", s.opts.MaxURLs).Msg("url limit reached")
	}
	failed = append(failed, overflow...)
	return scraped, failed
}

type attachmentText struct {
	name string
	text string
}

func (s *ChatService) readAttachments(ctx context.Context, files []models.Attachment) []attachmentText {
	if s.extractor == nil {
		return nil
	}
	var out []attachmentText
	for _, f := range files {
		text, err := s.extractor.ExtractText(f.Filename, f.Data)
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("file", f.Filename).Msg("failed to read attachment")
			continue
		}
		out = append(out, attachmentText{name: f.Filename, text: text})
	}
	return out
}

// buildPrompt returns the prompt and the scraped URLs whose content made it
// past the combined budget. Failed-URL notes and the question are never
// subject to the budget.
func (s *ChatService) buildPrompt(message string, scraped []scrapedSource, failed []string, attachments []attachmentText) (string, []string) {
	question := message
	if question == "" {
		question = defaultQuestion
	}

	var blocks []string
	for _, src := range scraped {
		block := fmt.Sprintf("Source: %s\n%s", src.url, src.content)
		blocks = append(blocks, sourceBlock(block, s.opts.MaxSourceChars))
	}
	for _, a := range attachments {
		block := fmt.Sprintf("Attachment: %s\n%s", a.name, a.text)
		blocks = append(blocks, sourceBlock(block, s.opts.MaxSourceChars))
	}

	var parts []string
	used := []string{}
	if len(blocks) > 0 {
		sources := content.Summarize(strings.Join(blocks, "\n\n"), s.opts.MaxTotalSourceChars)
		parts = append(parts, "Sources:\n\n"+sources)
		for _, src := range scraped {
			if hasLine(sources, "Source: "+src.url) {
				used = append(used, src.url)
			}
		}
	}
	if len(failed) > 0 {
		notes := make([]string, len(failed))
		for i, u := range failed {
			notes[i] = "Failed to fetch: " + u
		}
		parts = append(parts, strings.Join(notes, "\n"))
	}
	parts = append(parts, question)
	return strings.Join(parts, "\n\n"), used
}

// sourceBlock summarizes one source and folds it into a single paragraph,
// so the combined budget keeps or drops a source as a whole.
func sourceBlock(block string, maxChars int) string {
	return strings.ReplaceAll(content.Summarize(block, maxChars), "\n\n", "\n")
}

func hasLine(text, line string) bool {
	for _, l := range strings.Split(text, "\n") {
		if strings.TrimSpace(l) == line {
			return true
		}
	}
	return false
}
