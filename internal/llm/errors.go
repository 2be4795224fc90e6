package llm

import (
	"errors"
	"fmt"
	"net/http"
	"time"
	"unicode/utf8"
)

// ErrorType classifies generator failures.
type ErrorType string

const (
	ErrorTypeNetwork    ErrorType = "network"
	ErrorTypeAPI        ErrorType = "api"
	ErrorTypeAuth       ErrorType = "auth"
	ErrorTypeRateLimit  ErrorType = "rate_limit"
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeTimeout    ErrorType = "timeout"
	ErrorTypeParse      ErrorType = "parse"
	// ErrorTypeResponse is an HTTP body that is not a completion at all,
	// as opposed to model output that fails to parse.
	ErrorTypeResponse   ErrorType = "response"
)

const parseExcerptMax = 120

// LLMError is returned by every generator in this package.
type LLMError struct {
	Type    ErrorType
	Message string
	Code    int // HTTP status, when one was received

	// RetryAfter is the provider's requested back-off for rate limits.
	RetryAfter time.Duration

	Err error
}

func (e *LLMError) Error() string {
	msg := fmt.Sprintf("generator %s error: %s", e.Type, e.Message)
	if e.Code > 0 {
		msg = fmt.Sprintf("generator %s error (HTTP %d): %s", e.Type, e.Code, e.Message)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *LLMError) Unwrap() error {
	return e.Err
}

// Retryable reports whether re-prompting with the failure appended may
// produce a usable answer.
func (e *LLMError) Retryable() bool {
	return e.Type == ErrorTypeParse || e.Type == ErrorTypeValidation
}

// IsType reports whether err is an *LLMError of the given type.
func IsType(err error, t ErrorType) bool {
	var llmErr *LLMError
	return errors.As(err, &llmErr) && llmErr.Type == t
}

func NewNetworkError(err error) *LLMError {
	return &LLMError{
		Type:    ErrorTypeNetwork,
		Message: "cannot reach the completion API",
		Err:     err,
	}
}

func NewAPIError(code int, message string) *LLMError {
	return &LLMError{Type: ErrorTypeAPI, Code: code, Message: message}
}

// NewAuthError reports a rejected API key.
func NewAuthError(code int, message string) *LLMError {
	msg := "Invalid API key - authentication failed"
	if code == http.StatusForbidden {
		msg = "API key forbidden - insufficient permissions"
	}
	if message != "" {
		msg += ": " + message
	}
	return &LLMError{Type: ErrorTypeAuth, Code: code, Message: msg}
}

// NewRateLimitError reports a 429. retryAfter is zero when the provider
// did not say.
func NewRateLimitError(message string, retryAfter time.Duration) *LLMError {
	if retryAfter > 0 {
		message = fmt.Sprintf("%s (retry after %s)", message, retryAfter)
	}
	return &LLMError{
		Type:       ErrorTypeRateLimit,
		Code:       http.StatusTooManyRequests,
		Message:    message,
		RetryAfter: retryAfter,
	}
}

func NewValidationError(message string, err error) *LLMError {
	return &LLMError{Type: ErrorTypeValidation, Message: message, Err: err}
}

func NewTimeoutError(err error) *LLMError {
	return &LLMError{
		Type:    ErrorTypeTimeout,
		Message: "no response before the deadline",
		Err:     err,
	}
}

// NewResponseError reports a response body that could not be decoded.
func NewResponseError(code int, err error) *LLMError {
	return &LLMError{
		Type:    ErrorTypeResponse,
		Code:    code,
		Message: "undecodable completion response",
		Err:     err,
	}
}

// NewParseError reports output that could not be decoded. Only the start
// of content is kept in the message.
func NewParseError(content string, err error) *LLMError {
	excerpt := content
	if len(excerpt) > parseExcerptMax {
		cut := parseExcerptMax
		for cut > 0 && !utf8.RuneStart(excerpt[cut]) {
			cut--
		}
		excerpt = excerpt[:cut] + "..."
	}
	return &LLMError{
		Type:    ErrorTypeParse,
		Message: fmt.Sprintf("cannot parse output %q", excerpt),
		Err:     err,
	}
}
