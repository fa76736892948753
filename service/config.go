package services

import (
	"fmt"
	"os"
	"time"
)

// Defaults for the external completion service endpoints. Both base URLs are
// overridable so tests can point the pipeline at fake servers.
const (
	defaultGroqBaseURL = "https://api.groq.com/openai/v1"
	defaultGroqModel   = "llama-3.3-70b-versatile"

	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com"
	defaultGeminiModel   = "gemini-1.5-pro"

	defaultStaleAnalysisAge = 30 * time.Minute
)

// Config carries every external dependency of the analysis pipeline. It is
// built once in main and injected into NewAnalysisService, so tests can swap
// in fake endpoints and credentials instead of relying on ambient env state.
type Config struct {
	// Blob store (S3-compatible).
	S3Region    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string

	// Text extraction strategy: OpenAI-compatible chat completions endpoint.
	GroqAPIKey  string
	GroqBaseURL string
	GroqModel   string

	// File-native extraction strategy: Gemini-style file + generateContent API.
	GeminiAPIKey  string
	GeminiBaseURL string
	GeminiModel   string

	// Optional search indexing of analyzed contracts.
	ElasticsearchURL string

	// Records stuck in "analyzing" longer than this are swept to "error" at
	// startup.
	StaleAnalysisAge time.Duration
}

// ConfigFromEnv builds a Config from the process environment. Missing
// completion-service credentials are not fatal here; they surface as
// extraction failures when the matching strategy is dispatched.
func ConfigFromEnv() Config {
	cfg := Config{
		S3Region:         os.Getenv("S3_REGION"),
		S3Endpoint:       os.Getenv("S3_ENDPOINT"),
		S3AccessKey:      os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:      os.Getenv("S3_SECRET_KEY"),
		GroqAPIKey:       os.Getenv("GROQ_API_KEY"),
		GroqBaseURL:      os.Getenv("GROQ_BASE_URL"),
		GroqModel:        os.Getenv("GROQ_MODEL"),
		GeminiAPIKey:     os.Getenv("GEMINI_API_KEY"),
		GeminiBaseURL:    os.Getenv("GEMINI_BASE_URL"),
		GeminiModel:      os.Getenv("GEMINI_MODEL"),
		ElasticsearchURL: os.Getenv("ELASTICSEARCH_URL"),
	}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.GroqBaseURL == "" {
		c.GroqBaseURL = defaultGroqBaseURL
	}
	if c.GroqModel == "" {
		c.GroqModel = defaultGroqModel
	}
	if c.GeminiBaseURL == "" {
		c.GeminiBaseURL = defaultGeminiBaseURL
	}
	if c.GeminiModel == "" {
		c.GeminiModel = defaultGeminiModel
	}
	if c.StaleAnalysisAge == 0 {
		c.StaleAnalysisAge = defaultStaleAnalysisAge
	}
}

func (c *Config) validateStorage() error {
	if c.S3Region == "" || c.S3Endpoint == "" || c.S3AccessKey == "" || c.S3SecretKey == "" {
		return fmt.Errorf("missing required S3 configuration")
	}
	return nil
}
