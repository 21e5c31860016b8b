package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port          string
	AllowedOrigin string
	// Provider used when a request does not name one
	DefaultProvider string
	// OpenAI
	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string
	// Google Gemini
	GoogleAPIKey string
	GeminiModel  string
	// Anthropic Claude served through AWS Bedrock
	AWSRegion          string
	BedrockModelID     string
	BedrockMaxTokens   int
	BedrockBearerToken string
	// Pipeline
	MaxParallelSlides int
	ParserMode        string
	PromptsDir        string
	RunTTL            time.Duration
	// Logging / metrics / tracing
	LogLevel       string
	LogFormat      string
	MetricsEnabled bool
	OTELEnabled    bool
	OTLPEndpoint   string
}

func Load() Config {
	_ = godotenv.Load()
	cfg := Config{
		Port:               getEnvDefault("PORT", "8080"),
		AllowedOrigin:      getEnvDefault("ALLOWED_ORIGIN", "*"),
		DefaultProvider:    getEnvDefault("DEFAULT_PROVIDER", "gemini"),
		OpenAIAPIKey:       os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:        getEnvDefault("OPENAI_MODEL", "gpt-4o"),
		OpenAIBaseURL:      os.Getenv("OPENAI_BASE_URL"),
		GoogleAPIKey:       os.Getenv("GOOGLE_API_KEY"),
		GeminiModel:        getEnvDefault("GEMINI_MODEL", "gemini-2.5-pro"),
		AWSRegion:          getEnvDefault("AWS_REGION", "us-east-1"),
		BedrockModelID:     getEnvDefault("BEDROCK_MODEL_ID", "us.anthropic.claude-opus-4-5-20251101-v1:0"),
		BedrockMaxTokens:   getEnvIntDefault("BEDROCK_MAX_TOKENS", 16384),
		BedrockBearerToken: os.Getenv("AWS_BEARER_TOKEN_BEDROCK"),
		MaxParallelSlides:  getEnvIntDefault("MAX_PARALLEL_SLIDES", 20),
		ParserMode:         strings.ToLower(getEnvDefault("PARSER_MODE", "balanced")),
		PromptsDir:         os.Getenv("PROMPTS_DIR"),
		RunTTL:             getEnvDurationDefault("RUN_TTL", 30*time.Minute),
		LogLevel:           getEnvDefault("LOG_LEVEL", "info"),
		LogFormat:          getEnvDefault("LOG_FORMAT", "json"),
		MetricsEnabled:     getEnvBoolDefault("METRICS_ENABLED", true),
		OTELEnabled:        getEnvBoolDefault("OTEL_ENABLED", false),
		OTLPEndpoint:       getEnvDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
	}
	if cfg.OpenAIAPIKey == "" && cfg.GoogleAPIKey == "" && cfg.BedrockBearerToken == "" && os.Getenv("AWS_ACCESS_KEY_ID") == "" {
		log.Println("warning: no model provider credentials set; generation calls will fail until provided")
	}
	if cfg.ParserMode != "balanced" && cfg.ParserMode != "greedy" {
		log.Printf("warning: unknown PARSER_MODE %q, using balanced", cfg.ParserMode)
		cfg.ParserMode = "balanced"
	}
	if cfg.MaxParallelSlides <= 0 {
		cfg.MaxParallelSlides = 20
	}
	return cfg
}

func getEnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvIntDefault(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvDurationDefault(key string, def time.Duration) time.Duration {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return def
}

func getEnvBoolDefault(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}
