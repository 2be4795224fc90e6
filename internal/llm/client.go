package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// TextGenerator turns a prompt into free text. Client, GenkitGenerator and
// MockGenerator implement it.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Client talks to an OpenAI-compatible chat-completions endpoint
// (OpenRouter or OpenAI).
type Client struct {
	config *Config
	http   *http.Client
}

// NewClient creates a new LLM client.
func NewClient(config *Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	config.SetDefaults()

	return &Client{
		config: config,
		http: &http.Client{
			Timeout: config.Timeout,
		},
	}, nil
}

// Model returns the default model name.
func (c *Client) Model() string {
	return c.config.DefaultModel
}

// Provider returns the configured provider.
func (c *Client) Provider() Provider {
	return c.config.Provider
}

// ChatRequest is the chat-completions request body.
type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
	Stream      bool          `json:"stream"`
}

// ChatMessage represents a message in the conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatResponse is the subset of the chat-completions response we read.
type ChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Code    any    `json:"code"`
	} `json:"error,omitempty"`
}

// Generate implements TextGenerator with the default model.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	return c.GenerateWithModel(ctx, c.config.DefaultModel, prompt)
}

// GenerateWithModel makes a single completion call with the given model.
func (c *Client) GenerateWithModel(ctx context.Context, model, prompt string) (string, error) {
	if model == "" {
		model = c.config.DefaultModel
	}

	body, err := json.Marshal(ChatRequest{
		Model:       model,
		Messages:    []ChatMessage{{Role: "user", Content: prompt}},
		MaxTokens:   c.config.MaxTokens,
		Temperature: c.config.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	duration := time.Since(start)

	if err != nil {
		slog.Error("Completion HTTP request failed",
			"error", err.Error(),
			"duration", duration,
		)
		return "", classifyTransportError(ctx, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("Failed to close response body", "error", err)
		}
	}()

	slog.Info("Completion HTTP request completed",
		"status_code", resp.StatusCode,
		"model", model,
		"duration", duration,
	)

	if resp.StatusCode != http.StatusOK {
		return "", statusError(resp)
	}

	var chatResp ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", NewResponseError(resp.StatusCode, err)
	}

	if chatResp.Error != nil {
		return "", NewAPIError(0, chatResp.Error.Message)
	}

	if len(chatResp.Choices) == 0 {
		return "", NewAPIError(0, "no choices in response")
	}

	content := strings.TrimSpace(chatResp.Choices[0].Message.Content)
	if content == "" {
		return "", NewAPIError(0, "no content in response")
	}
	return content, nil
}

// CheckKey verifies the API key against the provider: OpenRouter's
// /auth/key, OpenAI's /models.
func (c *Client) CheckKey(ctx context.Context) error {
	path := "/auth/key"
	if c.config.Provider == ProviderOpenAI {
		path = "/models"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return classifyTransportError(ctx, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	if c.config.Provider == ProviderOpenRouter {
		req.Header.Set("HTTP-Referer", c.config.Referer)
		req.Header.Set("X-Title", c.config.Title)
	}
}

func statusError(resp *http.Response) error {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		slog.Warn("Failed to read error response body", "error", err)
	}

	message := strings.TrimSpace(string(raw))
	var parsed ChatResponse
	if json.Unmarshal(raw, &parsed) == nil && parsed.Error != nil && parsed.Error.Message != "" {
		message = parsed.Error.Message
	}
	if message == "" {
		message = resp.Status
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return NewAuthError(resp.StatusCode, message)
	case http.StatusTooManyRequests:
		return NewRateLimitError(message, retryAfter(resp.Header.Get("Retry-After")))
	default:
		return NewAPIError(resp.StatusCode, message)
	}
}

// retryAfter reads a Retry-After header given in seconds.
func retryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func classifyTransportError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return NewTimeoutError(err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NewTimeoutError(err)
	}
	return NewNetworkError(err)
}

// GenerateStructured asks gen for JSON matching T, retrying with the parse
// or validation error appended to the prompt. validate may be nil.
func GenerateStructured[T any](
	ctx context.Context,
	gen TextGenerator,
	prompt string,
	maxRetries int,
	validate func(*T) error,
) (*T, error) {
	if maxRetries <= 0 {
		maxRetries = 3
	}

	originalPrompt := prompt
	var lastErr error

	for attempt := 1; attempt <= maxRetries; attempt++ {
		slog.Debug("Structured generation attempt",
			"attempt", attempt,
			"prompt_length", len(prompt),
		)

		content, err := gen.Generate(ctx, prompt)
		if err != nil {
			var llmErr *LLMError
			if errors.As(err, &llmErr) && !llmErr.Retryable() {
				return nil, err
			}
			if ctx.Err() != nil {
				return nil, err
			}
			lastErr = err
			continue
		}

		content = cleanMarkdownCodeBlocks(content)

		var result T
		if err := json.Unmarshal([]byte(content), &result); err != nil {
			lastErr = NewParseError(content, err)
			prompt = fmt.Sprintf("%s\n\nPREVIOUS ATTEMPT FAILED:\nError: %v\n\nPlease return valid JSON matching the exact structure requested.", originalPrompt, err)
			continue
		}

		if validate != nil {
			if err := validate(&result); err != nil {
				lastErr = NewValidationError(err.Error(), err)
				slog.Warn("LLM output validation failed",
					"attempt", attempt,
					"error", err.Error(),
				)
				prompt = fmt.Sprintf("%s\n\nPREVIOUS VALIDATION ERROR:\n%v\n\nPlease fix the output to pass validation.", originalPrompt, err)
				continue
			}
		}

		return &result, nil
	}

	return nil, fmt.Errorf("structured generation failed after %d attempts: %w", maxRetries, lastErr)
}

// cleanMarkdownCodeBlocks removes markdown code block wrappers from JSON.
func cleanMarkdownCodeBlocks(content string) string {
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "```json") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimSpace(content)
	} else if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSpace(content)
	}

	if strings.HasSuffix(content, "```") {
		content = strings.TrimSuffix(content, "```")
		content = strings.TrimSpace(content)
	}

	return content
}
