package core

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/suduli/AI-ASIL-Analyser/internal/llm"
)

// Config holds the application configuration.
type Config struct {
	LogLevel string // debug, info, warn, error

	Provider     string // openrouter or openai; inferred from the key when empty
	APIKey       string // Required for LLM operations
	BaseURL      string
	DefaultModel string

	AnalysisTimeout time.Duration // Budget for the candidate path of one analysis
	AutoLearn       bool          // Save AI-rated manual analyses to the catalog
	UseGenkit       bool          // Route generation through a genkit model

	DataDir    string // Root of the file-backed catalog
	CatalogDSN string // When set, the catalog lives in SQL instead

	Addr          string
	SessionSecret string
	AdminToken    string
}

const (
	defaultAnalysisTimeout = 30 * time.Second
	defaultDataDir         = ".asil"
	defaultAddr            = ":8080"
)

// LoadConfig loads configuration from environment variables, after
// applying a .env file in the working directory if one exists.
func LoadConfig() (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}
	return configFromEnv()
}

// loadDotEnv sets variables from path without overriding ones already set.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func configFromEnv() (*Config, error) {
	logLevel := strings.ToLower(getEnvOrDefault("LOG_LEVEL", "info"))

	// DEBUG flag overrides log level
	if os.Getenv("DEBUG") == "1" {
		logLevel = "debug"
	}

	cfg := &Config{
		LogLevel:      logLevel,
		Provider:      strings.ToLower(os.Getenv("ASIL_PROVIDER")),
		APIKey:        firstEnv("ASIL_API_KEY", "OPENROUTER_API_KEY"),
		BaseURL:       os.Getenv("ASIL_BASE_URL"),
		DefaultModel:  os.Getenv("DEFAULT_MODEL"),
		DataDir:       getEnvOrDefault("ASIL_DATA_DIR", defaultDataDir),
		CatalogDSN:    os.Getenv("ASIL_CATALOG_DSN"),
		Addr:          getEnvOrDefault("ASIL_ADDR", defaultAddr),
		SessionSecret: os.Getenv("ASIL_SESSION_SECRET"),
		AdminToken:    os.Getenv("ASIL_ADMIN_TOKEN"),
	}

	var err error
	if cfg.AnalysisTimeout, err = durationEnv("ASIL_ANALYSIS_TIMEOUT", defaultAnalysisTimeout); err != nil {
		return nil, err
	}
	if cfg.AutoLearn, err = boolEnv("ASIL_AUTO_LEARN", false); err != nil {
		return nil, err
	}
	if cfg.UseGenkit, err = boolEnv("ASIL_USE_GENKIT", false); err != nil {
		return nil, err
	}

	// The API key is not required for catalog-only operations.
	// It is validated when an LLM client is created.
	return cfg, nil
}

// HasAPIKey reports whether a candidate path can be configured.
func (c *Config) HasAPIKey() bool {
	return c.APIKey != ""
}

// LLMConfig returns the client configuration. Defaults are applied by
// llm.NewClient.
func (c *Config) LLMConfig() *llm.Config {
	return &llm.Config{
		Provider:     llm.Provider(c.Provider),
		APIKey:       c.APIKey,
		BaseURL:      c.BaseURL,
		DefaultModel: c.DefaultModel,
		Timeout:      c.AnalysisTimeout,
	}
}

// getEnvOrDefault returns the value of an environment variable or a default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		// Bare numbers are seconds.
		secs, convErr := strconv.Atoi(raw)
		if convErr != nil {
			return 0, &ValidationError{Field: key, Message: fmt.Sprintf("invalid duration %q", raw), Err: err}
		}
		d = time.Duration(secs) * time.Second
	}
	if d <= 0 {
		return 0, &ValidationError{Field: key, Message: "must be positive"}
	}
	return d, nil
}

func boolEnv(key string, def bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, &ValidationError{Field: key, Message: fmt.Sprintf("invalid boolean %q", raw), Err: err}
	}
	return v, nil
}
