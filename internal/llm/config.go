package llm

import (
	"fmt"
	"strings"
	"time"
)

// Provider selects the chat-completions endpoint flavour.
type Provider string

const (
	ProviderOpenRouter Provider = "openrouter"
	ProviderOpenAI     Provider = "openai"
)

const (
	DefaultOpenRouterURL   = "https://openrouter.ai/api/v1"
	DefaultOpenAIURL       = "https://api.openai.com/v1"
	DefaultOpenRouterModel = "openai/gpt-oss-20b:free"
	DefaultOpenAIModel     = "gpt-3.5-turbo"

	defaultTitle   = "ASIL Calculator"
	defaultReferer = "https://localhost"
)

// Config contains configuration for the LLM client.
type Config struct {
	// Provider is openrouter or openai. Keys starting with "sk-or-" imply
	// openrouter when unset.
	Provider Provider

	APIKey string

	// BaseURL defaults per provider.
	BaseURL string

	// DefaultModel defaults per provider.
	DefaultModel string

	// Timeout is the HTTP request timeout
	// Default: 30 seconds
	Timeout time.Duration

	// MaxRetries is the maximum number of structured-output attempts
	// Default: 3
	MaxRetries int

	// Temperature defaults to 0.1 so ratings are stable between runs.
	Temperature float64

	// MaxTokens defaults to 1000.
	MaxTokens int

	// Referer and Title are sent as OpenRouter attribution headers.
	Referer string
	Title   string
}

// Validate checks that required config fields are set.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("APIKey is required")
	}

	switch c.Provider {
	case "", ProviderOpenRouter, ProviderOpenAI:
	default:
		return fmt.Errorf("unsupported provider %q", c.Provider)
	}

	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature %.2f outside 0..2", c.Temperature)
	}

	return nil
}

// SetDefaults fills in default values for optional fields.
func (c *Config) SetDefaults() {
	if c.Provider == "" {
		if strings.HasPrefix(c.APIKey, "sk-or-") || c.APIKey == "" {
			c.Provider = ProviderOpenRouter
		} else {
			c.Provider = ProviderOpenAI
		}
	}

	if c.BaseURL == "" {
		if c.Provider == ProviderOpenAI {
			c.BaseURL = DefaultOpenAIURL
		} else {
			c.BaseURL = DefaultOpenRouterURL
		}
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")

	if c.DefaultModel == "" {
		if c.Provider == ProviderOpenAI {
			c.DefaultModel = DefaultOpenAIModel
		} else {
			c.DefaultModel = DefaultOpenRouterModel
		}
	}

	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}

	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}

	if c.Temperature == 0 {
		c.Temperature = 0.1
	}

	if c.MaxTokens == 0 {
		c.MaxTokens = 1000
	}

	if c.Referer == "" {
		c.Referer = defaultReferer
	}

	if c.Title == "" {
		c.Title = defaultTitle
	}
}
