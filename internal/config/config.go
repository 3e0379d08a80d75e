package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port     string
	Env      string
	LogLevel string

	// Completion provider
	CompletionProvider string
	GroqAPIKey         string
	GroqBaseURL        string
	GroqModel          string
	GeminiAPIKey       string
	GeminiModel        string
	Temperature        float64
	MaxOutputTokens    int

	// Redis (optional, backs the sliding-window gate)
	RedisURL string

	// Throttling
	GateLimit      int
	GateWindow     time.Duration
	ChatRateLimit  int
	ChatRateWindow time.Duration
	RequestDelay   time.Duration
	ChunkDelay     time.Duration

	// Scraping
	MaxURLs           int
	ScrapeConcurrency int
	CacheTTL          time.Duration
	FetchTimeout      time.Duration
	RenderEnabled     bool
	RenderTimeout     time.Duration
	ChromePath        string

	// Prompt shaping
	ChunkMaxTokens      int
	CharsPerToken       int
	HistoryLimit        int
	HistoryMessageChars int
	MaxSourceChars      int
	MaxTotalSourceChars int
	MaxInputTokens      int

	// Frontend
	FrontendURL string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:     getEnvOrDefault("PORT", "8080"),
		Env:      getEnvOrDefault("ENV", "development"),
		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),

		CompletionProvider: strings.ToLower(getEnvOrDefault("COMPLETION_PROVIDER", "groq")),
		GroqBaseURL:        getEnvOrDefault("GROQ_BASE_URL", "https://api.groq.com/openai/v1"),
		GroqModel:          getEnvOrDefault("GROQ_MODEL", "mixtral-8x7b-32768"),
		GeminiModel:        getEnvOrDefault("GEMINI_MODEL", "gemini-2.0-flash"),
		Temperature:        getEnvAsFloatOrDefault("COMPLETION_TEMPERATURE", 0.5),
		MaxOutputTokens:    getEnvAsIntOrDefault("COMPLETION_MAX_TOKENS", 2000),

		RedisURL: getEnvOrDefault("REDIS_URL", ""),

		GateLimit:      getEnvAsIntOrDefault("GATE_LIMIT", 10),
		GateWindow:     seconds(getEnvAsIntOrDefault("GATE_WINDOW_SECONDS", 10)),
		ChatRateLimit:  getEnvAsIntOrDefault("CHAT_RATE_LIMIT", 20),
		ChatRateWindow: seconds(getEnvAsIntOrDefault("CHAT_RATE_WINDOW_SECONDS", 60)),
		RequestDelay:   millis(getEnvAsIntOrDefault("REQUEST_DELAY_MS", 1000)),
		ChunkDelay:     millis(getEnvAsIntOrDefault("CHUNK_DELAY_MS", 1000)),

		MaxURLs:           getEnvAsIntOrDefault("MAX_URLS", 5),
		ScrapeConcurrency: getEnvAsIntOrDefault("SCRAPE_CONCURRENCY", 5),
		CacheTTL:          seconds(getEnvAsIntOrDefault("CACHE_TTL_SECONDS", 300)),
		FetchTimeout:      seconds(getEnvAsIntOrDefault("FETCH_TIMEOUT_SECONDS", 20)),
		RenderEnabled:     getEnvAsBoolOrDefault("RENDER_ENABLED", true),
		RenderTimeout:     seconds(getEnvAsIntOrDefault("RENDER_TIMEOUT_SECONDS", 30)),
		ChromePath:        getEnvOrDefault("CHROME_PATH", ""),

		ChunkMaxTokens:      getEnvAsIntOrDefault("CHUNK_MAX_TOKENS", 2000),
		CharsPerToken:       getEnvAsIntOrDefault("CHARS_PER_TOKEN", 4),
		HistoryLimit:        getEnvAsIntOrDefault("HISTORY_LIMIT", 3),
		HistoryMessageChars: getEnvAsIntOrDefault("HISTORY_MESSAGE_CHARS", 1000),
		MaxSourceChars:      getEnvAsIntOrDefault("MAX_SOURCE_CHARS", 10000),
		MaxTotalSourceChars: getEnvAsIntOrDefault("MAX_TOTAL_SOURCE_CHARS", 15000),
		MaxInputTokens:      getEnvAsIntOrDefault("MAX_INPUT_TOKENS", 100000),

		FrontendURL: getEnvOrDefault("FRONTEND_URL", "*"),
	}

	// Only the key of the selected provider is required.
	switch cfg.CompletionProvider {
	case "gemini":
		cfg.GeminiAPIKey = mustGetEnv("GEMINI_API_KEY")
	case "groq", "openai":
		cfg.GroqAPIKey = mustGetEnv("GROQ_API_KEY")
	default:
		panic(fmt.Sprintf("unsupported COMPLETION_PROVIDER %q (want groq or gemini)", cfg.CompletionProvider))
	}

	return cfg
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvAsFloatOrDefault(key string, defaultVal float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func getEnvAsBoolOrDefault(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

func millis(n int) time.Duration { return time.Duration(n) * time.Millisecond }
