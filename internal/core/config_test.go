package core

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suduli/AI-ASIL-Analyser/internal/llm"
)

var configEnvVars = []string{
	"LOG_LEVEL", "DEBUG", "ASIL_PROVIDER", "ASIL_API_KEY", "OPENROUTER_API_KEY",
	"ASIL_BASE_URL", "DEFAULT_MODEL", "ASIL_ANALYSIS_TIMEOUT", "ASIL_DATA_DIR",
	"ASIL_CATALOG_DSN", "ASIL_ADDR", "ASIL_SESSION_SECRET", "ASIL_ADMIN_TOKEN",
	"ASIL_AUTO_LEARN", "ASIL_USE_GENKIT",
}

// clearConfigEnv blanks every variable LoadConfig reads for the test.
func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, k := range configEnvVars {
		t.Setenv(k, "")
	}
}

func TestLoadConfig(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		check   func(t *testing.T, cfg *Config)
	}{
		{
			name:    "default values",
			envVars: map[string]string{},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "info", cfg.LogLevel)
				assert.Equal(t, 30*time.Second, cfg.AnalysisTimeout)
				assert.Equal(t, ".asil", cfg.DataDir)
				assert.Equal(t, ":8080", cfg.Addr)
				assert.False(t, cfg.AutoLearn)
				assert.False(t, cfg.UseGenkit)
				assert.False(t, cfg.HasAPIKey())
			},
		},
		{
			name:    "debug flag overrides log level",
			envVars: map[string]string{"LOG_LEVEL": "WARN", "DEBUG": "1"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "debug", cfg.LogLevel)
			},
		},
		{
			name:    "openrouter key",
			envVars: map[string]string{"OPENROUTER_API_KEY": "sk-or-abc"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "sk-or-abc", cfg.APIKey)
				assert.True(t, cfg.HasAPIKey())
			},
		},
		{
			name:    "generic key wins",
			envVars: map[string]string{"OPENROUTER_API_KEY": "sk-or-abc", "ASIL_API_KEY": "sk-xyz"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "sk-xyz", cfg.APIKey)
			},
		},
		{
			name: "everything set",
			envVars: map[string]string{
				"ASIL_PROVIDER":         "OpenAI",
				"ASIL_BASE_URL":         "http://localhost:9999/v1",
				"DEFAULT_MODEL":         "gpt-4o-mini",
				"ASIL_ANALYSIS_TIMEOUT": "2m",
				"ASIL_DATA_DIR":         "/var/lib/asil",
				"ASIL_CATALOG_DSN":      "sqlite:/tmp/catalog.db",
				"ASIL_ADDR":             "127.0.0.1:9000",
				"ASIL_SESSION_SECRET":   "secret",
				"ASIL_ADMIN_TOKEN":      "token",
				"ASIL_AUTO_LEARN":       "true",
				"ASIL_USE_GENKIT":       "1",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "openai", cfg.Provider)
				assert.Equal(t, 2*time.Minute, cfg.AnalysisTimeout)
				assert.Equal(t, "/var/lib/asil", cfg.DataDir)
				assert.Equal(t, "sqlite:/tmp/catalog.db", cfg.CatalogDSN)
				assert.Equal(t, "127.0.0.1:9000", cfg.Addr)
				assert.Equal(t, "secret", cfg.SessionSecret)
				assert.Equal(t, "token", cfg.AdminToken)
				assert.True(t, cfg.AutoLearn)
				assert.True(t, cfg.UseGenkit)
			},
		},
		{
			name:    "bare timeout is seconds",
			envVars: map[string]string{"ASIL_ANALYSIS_TIMEOUT": "45"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 45*time.Second, cfg.AnalysisTimeout)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearConfigEnv(t)
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg, err := configFromEnv()
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestLoadConfig_InvalidValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"ASIL_ANALYSIS_TIMEOUT", "soon"},
		{"ASIL_ANALYSIS_TIMEOUT", "-5s"},
		{"ASIL_AUTO_LEARN", "maybe"},
		{"ASIL_USE_GENKIT", "sometimes"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			clearConfigEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := configFromEnv()
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.key, verr.Field)
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	const key = "ASIL_TEST_DOTENV_VALUE"
	t.Cleanup(func() { os.Unsetenv(key) })

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(key+"=from-file\n"), 0o644))

	require.NoError(t, loadDotEnv(path))
	assert.Equal(t, "from-file", os.Getenv(key))

	// Missing files are not an error.
	assert.NoError(t, loadDotEnv(filepath.Join(t.TempDir(), "missing.env")))

	// Malformed files are.
	bad := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(bad, []byte("BAD-KEY=value\n"), 0o644))
	assert.Error(t, loadDotEnv(bad))
}

func TestConfig_LLMConfig(t *testing.T) {
	cfg := &Config{
		Provider:        "openrouter",
		APIKey:          "sk-or-abc",
		DefaultModel:    "openai/gpt-oss-20b:free",
		AnalysisTimeout: 10 * time.Second,
	}

	lc := cfg.LLMConfig()
	assert.Equal(t, llm.ProviderOpenRouter, lc.Provider)
	assert.Equal(t, "sk-or-abc", lc.APIKey)
	assert.Equal(t, 10*time.Second, lc.Timeout)

	client, err := llm.NewClient(lc)
	require.NoError(t, err)
	assert.Equal(t, "openai/gpt-oss-20b:free", client.Model())
}
