package ai

import (
	"errors"
	"time"

	"github.com/CaptainCrouton89/iagent/internal/profile"
)

// Config represents AI configuration.
type Config struct {
	Embedding EmbeddingConfig
	LLM       LLMConfig
}

// EmbeddingConfig represents vector embedding configuration.
type EmbeddingConfig struct {
	Provider   string // openai or any OpenAI-compatible endpoint
	Model      string // text-embedding-3-small
	Dimensions int    // 1536
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
}

// LLMConfig represents LLM configuration.
type LLMConfig struct {
	Provider    string  // openai or any OpenAI-compatible endpoint
	Model       string  // gpt-4o-mini
	APIKey      string
	BaseURL     string
	MaxTokens   int     // default: 2048
	Temperature float32 // default: 0.7
	Timeout     time.Duration
	MaxRetries  int
}

// NewConfigFromProfile creates AI config from profile.
func NewConfigFromProfile(p *profile.Profile) *Config {
	return &Config{
		Embedding: EmbeddingConfig{
			Provider:   p.AIProvider,
			Model:      p.AIEmbeddingModel,
			Dimensions: p.AIEmbeddingDimension,
			APIKey:     p.AIAPIKey,
			BaseURL:    p.AIBaseURL,
			Timeout:    p.AIRequestTimeout,
			MaxRetries: 3,
		},
		LLM: LLMConfig{
			Provider:    p.AIProvider,
			Model:       p.AIChatModel,
			APIKey:      p.AIAPIKey,
			BaseURL:     p.AIBaseURL,
			MaxTokens:   2048,
			Temperature: 0.7,
			Timeout:     p.AIRequestTimeout,
			MaxRetries:  3,
		},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Embedding.Provider == "" {
		return errors.New("embedding provider is required")
	}
	if c.Embedding.APIKey == "" {
		return errors.New("embedding API key is required")
	}
	if c.Embedding.Dimensions <= 0 {
		return errors.New("embedding dimensions must be positive")
	}
	if c.LLM.Provider == "" {
		return errors.New("LLM provider is required")
	}
	if c.LLM.APIKey == "" {
		return errors.New("LLM API key is required")
	}
	return nil
}
