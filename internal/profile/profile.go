package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Profile is the configuration to start the main server.
type Profile struct {
	// Mode can be "prod" or "dev" or "demo"
	Mode string
	// Addr is the binding address for server
	Addr string
	// Port is the binding port for server
	Port int
	// Data is the data directory
	Data string
	// DSN points to where iagent stores its own data
	DSN string
	// Driver is the database driver (sqlite or postgres)
	Driver string
	// Version is the current version of server
	Version string
	// InstanceURL is the url of your iagent instance.
	InstanceURL string

	// Secret signs API access tokens.
	Secret string
	// CronSecret guards the scheduled-job endpoints.
	CronSecret string

	// AI Configuration
	AIProvider           string        // IAGENT_AI_PROVIDER (default: openai)
	AIAPIKey             string        // IAGENT_AI_API_KEY
	AIBaseURL            string        // IAGENT_AI_BASE_URL (default: https://api.openai.com/v1)
	AIEmbeddingModel     string        // IAGENT_AI_EMBEDDING_MODEL (default: text-embedding-3-small)
	AIEmbeddingDimension int           // IAGENT_AI_EMBEDDING_DIMENSION (default: 1536)
	AIChatModel          string        // IAGENT_AI_CHAT_MODEL (default: gpt-4o-mini)
	AIRequestTimeout     time.Duration // IAGENT_AI_REQUEST_TIMEOUT (default: 30s)

	// Memory pipeline configuration
	MemoryRelevanceThreshold float32       // IAGENT_MEMORY_RELEVANCE_THRESHOLD (default: 0.5)
	MemoryMergeThreshold     float32       // IAGENT_MEMORY_MERGE_THRESHOLD (default: 0.85)
	MemoryExtractionWindow   time.Duration // IAGENT_MEMORY_EXTRACTION_WINDOW (default: 24h)
	MemoryExtractionLimit    int           // IAGENT_MEMORY_EXTRACTION_LIMIT (default: 20)
	MemoryDecayWindow        time.Duration // IAGENT_MEMORY_DECAY_WINDOW (default: 72h)
	MemoryDecayDecrement     float32       // IAGENT_MEMORY_DECAY_DECREMENT (default: 0.05)
	MemoryConfidenceFloor    float32       // IAGENT_MEMORY_CONFIDENCE_FLOOR (default: 0.2)
	MemoryConfidenceCap      float32       // IAGENT_MEMORY_CONFIDENCE_CAP (default: 1.0)
	MemoryReinforcementBonus float32       // IAGENT_MEMORY_REINFORCEMENT_BONUS (default: 0.1)

	// ExtractionInterval is the cadence of the background extraction runner.
	// Zero disables the in-process runner (rely on the cron endpoint instead).
	ExtractionInterval time.Duration // IAGENT_EXTRACTION_INTERVAL (default: 1h)
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsAIEnabled returns true if an AI API key is configured.
func (p *Profile) IsAIEnabled() bool {
	return p.AIAPIKey != ""
}

// getEnvOrDefault returns the environment variable value or the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(f)
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

// FromEnv loads configuration from IAGENT_* environment variables.
// Values already set on the profile (e.g. from flags) win only when the
// corresponding variable is unset.
func (p *Profile) FromEnv() {
	p.Secret = getEnvOrDefault("IAGENT_SECRET", p.Secret)
	p.CronSecret = getEnvOrDefault("IAGENT_CRON_SECRET", p.CronSecret)

	p.AIProvider = getEnvOrDefault("IAGENT_AI_PROVIDER", "openai")
	p.AIAPIKey = os.Getenv("IAGENT_AI_API_KEY")
	p.AIBaseURL = getEnvOrDefault("IAGENT_AI_BASE_URL", "https://api.openai.com/v1")
	p.AIEmbeddingModel = getEnvOrDefault("IAGENT_AI_EMBEDDING_MODEL", "text-embedding-3-small")
	p.AIEmbeddingDimension = getIntEnv("IAGENT_AI_EMBEDDING_DIMENSION", 1536)
	p.AIChatModel = getEnvOrDefault("IAGENT_AI_CHAT_MODEL", "gpt-4o-mini")
	p.AIRequestTimeout = getDurationEnv("IAGENT_AI_REQUEST_TIMEOUT", 30*time.Second)

	p.MemoryRelevanceThreshold = getFloatEnv("IAGENT_MEMORY_RELEVANCE_THRESHOLD", 0.5)
	p.MemoryMergeThreshold = getFloatEnv("IAGENT_MEMORY_MERGE_THRESHOLD", 0.85)
	p.MemoryExtractionWindow = getDurationEnv("IAGENT_MEMORY_EXTRACTION_WINDOW", 24*time.Hour)
	p.MemoryExtractionLimit = getIntEnv("IAGENT_MEMORY_EXTRACTION_LIMIT", 20)
	p.MemoryDecayWindow = getDurationEnv("IAGENT_MEMORY_DECAY_WINDOW", 72*time.Hour)
	p.MemoryDecayDecrement = getFloatEnv("IAGENT_MEMORY_DECAY_DECREMENT", 0.05)
	p.MemoryConfidenceFloor = getFloatEnv("IAGENT_MEMORY_CONFIDENCE_FLOOR", 0.2)
	p.MemoryConfidenceCap = getFloatEnv("IAGENT_MEMORY_CONFIDENCE_CAP", 1.0)
	p.MemoryReinforcementBonus = getFloatEnv("IAGENT_MEMORY_REINFORCEMENT_BONUS", 0.1)

	p.ExtractionInterval = getDurationEnv("IAGENT_EXTRACTION_INTERVAL", time.Hour)
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if p.Driver != "sqlite" && p.Driver != "postgres" {
		return errors.Errorf("unsupported database driver %q", p.Driver)
	}
	if p.Driver == "postgres" && p.DSN == "" {
		return errors.New("dsn is required for the postgres driver")
	}

	if p.Mode == "prod" && p.Data == "" {
		p.Data = "/var/opt/iagent"
	}

	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		slog.Error("failed to check data directory", slog.String("data", p.Data), slog.String("error", err.Error()))
		return err
	}

	p.Data = dataDir
	if p.Driver == "sqlite" && p.DSN == "" {
		dbFile := fmt.Sprintf("iagent_%s.db", p.Mode)
		p.DSN = filepath.Join(dataDir, dbFile)
	}

	if p.MemoryRelevanceThreshold <= 0 || p.MemoryRelevanceThreshold >= 1 {
		return errors.Errorf("relevance threshold must be in (0, 1), got %f", p.MemoryRelevanceThreshold)
	}
	if p.MemoryConfidenceFloor >= p.MemoryConfidenceCap {
		return errors.New("confidence floor must be below the confidence cap")
	}
	if p.MemoryDecayDecrement <= 0 {
		return errors.New("decay decrement must be positive")
	}

	return nil
}
