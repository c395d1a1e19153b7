package ai

import (
	"testing"
)

func TestConfigValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Embedding: EmbeddingConfig{
				Provider:   "openai",
				Model:      "text-embedding-3-small",
				Dimensions: 1536,
				APIKey:     "test-key",
			},
			LLM: LLMConfig{
				Provider: "openai",
				Model:    "gpt-4o-mini",
				APIKey:   "test-key",
			},
		}
	}

	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError bool
	}{
		{
			name:        "valid config",
			mutate:      func(c *Config) {},
			expectError: false,
		},
		{
			name:        "missing embedding provider",
			mutate:      func(c *Config) { c.Embedding.Provider = "" },
			expectError: true,
		},
		{
			name:        "missing embedding API key",
			mutate:      func(c *Config) { c.Embedding.APIKey = "" },
			expectError: true,
		},
		{
			name:        "zero dimensions",
			mutate:      func(c *Config) { c.Embedding.Dimensions = 0 },
			expectError: true,
		},
		{
			name:        "missing LLM API key",
			mutate:      func(c *Config) { c.LLM.APIKey = "" },
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.expectError {
				t.Errorf("Validate() error = %v, expectError %v", err, tt.expectError)
			}
		})
	}
}

func TestNewLLMServiceRequiresAPIKey(t *testing.T) {
	_, err := NewLLMService(&LLMConfig{Model: "gpt-4o-mini"})
	if err == nil {
		t.Error("NewLLMService() should fail without API key")
	}
}

func TestNewEmbeddingServiceRequiresAPIKey(t *testing.T) {
	_, err := NewEmbeddingService(&EmbeddingConfig{Model: "text-embedding-3-small"})
	if err == nil {
		t.Error("NewEmbeddingService() should fail without API key")
	}
}
