package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"sourcechat-backend/internal/cache"
	"sourcechat-backend/internal/config"
	"sourcechat-backend/internal/content"
	"sourcechat-backend/internal/database"
	"sourcechat-backend/internal/handlers"
	"sourcechat-backend/internal/middleware"
	"sourcechat-backend/internal/router"
	"sourcechat-backend/internal/scraper"
	"sourcechat-backend/internal/services"
)

func main() {
	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	logger := newLogger(cfg)
	log.Logger = logger
	zerolog.DefaultContextLogger = &logger
	logger.Info().Str("env", cfg.Env).Msg("starting sourcechat backend")

	// ──── Step 2: Initialize Redis (optional) ────
	var gate middleware.WindowLimiter
	if cfg.RedisURL != "" {
		redisClient, err := database.NewRedisClient(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection failed")
		}
		defer redisClient.Close()
		gate = database.NewRedisSlidingWindow(redisClient, cfg.GateLimit, cfg.GateWindow)
		logger.Info().Int("limit", cfg.GateLimit).Dur("window", cfg.GateWindow).Msg("redis connected, request gate enabled")
	} else {
		logger.Warn().Msg("REDIS_URL not set, request gate disabled")
	}

	// ──── Step 3: Initialize Completion Backend ────
	var completer services.Completer
	switch cfg.CompletionProvider {
	case "gemini":
		gemini, err := services.NewGeminiService(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.Temperature, cfg.MaxOutputTokens, 4)
		if err != nil {
			logger.Fatal().Err(err).Msg("gemini client initialization failed")
		}
		defer gemini.Close()
		completer = gemini
		logger.Info().Str("model", cfg.GeminiModel).Msg("gemini client initialized")
	default:
		completer = services.NewOpenAIService(cfg.GroqAPIKey, cfg.GroqBaseURL, cfg.GroqModel, cfg.Temperature, cfg.MaxOutputTokens)
		logger.Info().Str("model", cfg.GroqModel).Str("base_url", cfg.GroqBaseURL).Msg("openai-compatible client initialized")
	}

	// ──── Step 4: Initialize Scraping ────
	fileExtractService := services.NewFileExtractService()
	selectors := scraper.DefaultSelectors()
	strategies := []scraper.Strategy{
		scraper.NewYouTubeStrategy(),
		scraper.NewDirectStrategy(cfg.FetchTimeout, selectors, fileExtractService),
	}
	if cfg.RenderEnabled {
		renderOpts := scraper.DefaultRenderOptions()
		renderOpts.NavigationTimeout = cfg.RenderTimeout
		renderOpts.ExecPath = cfg.ChromePath
		strategies = append(strategies, scraper.NewRenderStrategy(renderOpts, selectors))
	}
	urlCache := cache.NewURLCache(cfg.CacheTTL)
	pageScraper := scraper.New(urlCache, strategies...)

	// ──── Step 5: Initialize Services ────
	throttle := middleware.NewRateLimiter(cfg.ChatRateLimit, cfg.ChatRateWindow)
	defer throttle.Stop()

	adapter := services.NewCompletionAdapter(completer, services.AdapterConfig{
		HistoryLimit: cfg.HistoryLimit,
		HistoryChars: cfg.HistoryMessageChars,
		Delay:        cfg.ChunkDelay,
		SystemPrompt: services.DefaultSystemPrompt,
	})
	chunker := content.NewChunker(cfg.ChunkMaxTokens, cfg.CharsPerToken)
	tokens := content.NewTiktokenCounter("cl100k_base", content.CharEstimator{CharsPerToken: cfg.CharsPerToken})

	chatService := services.NewChatService(throttle, pageScraper, fileExtractService, adapter, chunker, tokens, services.ChatOptions{
		RequestDelay:        cfg.RequestDelay,
		MaxURLs:             cfg.MaxURLs,
		ScrapeConcurrency:   cfg.ScrapeConcurrency,
		MaxSourceChars:      cfg.MaxSourceChars,
		MaxTotalSourceChars: cfg.MaxTotalSourceChars,
		MaxInputTokens:      cfg.MaxInputTokens,
	})

	// ──── Step 6: Start HTTP Server ────
	r := router.New(logger, handlers.NewChatHandler(chatService), gate, cfg.FrontendURL)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	idle := make(chan struct{})
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info().Msg("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.Error().Err(err).Msg("graceful shutdown failed")
		}
		close(idle)
	}()

	logger.Info().Str("addr", server.Addr).Msg("sourcechat backend ready")
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		logger.Fatal().Err(err).Msg("server error")
	}
	<-idle
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(level).With().Timestamp().Logger()
}
