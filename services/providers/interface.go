package providers

import (
	"context"
	"time"
)

// Provider represents a unified LLM provider interface
type Provider interface {
	// Name returns the provider name (e.g., "ollama")
	Name() string

	// ChatCompletion performs a blocking chat completion request
	ChatCompletion(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// IsAvailable checks if the provider is currently reachable
	IsAvailable(ctx context.Context) bool

	// ListModels returns the models the provider currently serves
	ListModels(ctx context.Context) ([]ModelInfo, error)
}

// StreamCallback is called once per text delta in a streaming response.
// Returning an error aborts the stream.
type StreamCallback func(delta string) error

// StreamingProvider extends Provider with streaming support
type StreamingProvider interface {
	Provider

	// ChatCompletionStream performs a streaming chat completion,
	// invoking the callback for every text delta
	ChatCompletionStream(ctx context.Context, req *ChatRequest, callback StreamCallback) error
}

// ChatRequest represents a unified chat completion request
type ChatRequest struct {
	// Model identifier (e.g., "llama3")
	Model string `json:"model"`

	// Messages in the conversation
	Messages []Message `json:"messages"`

	// Temperature controls randomness
	Temperature float64 `json:"temperature,omitempty"`

	// MaxTokens limits the response length; zero means no limit
	MaxTokens int `json:"max_tokens,omitempty"`
}

// Message represents a single message in a conversation
type Message struct {
	// Role can be "system", "user", or "assistant"
	Role string `json:"role"`

	// Content is the message text
	Content string `json:"content"`
}

// ChatResponse represents a unified chat completion response
type ChatResponse struct {
	// Model used for the completion
	Model string `json:"model"`

	// Content is the generated text
	Content string `json:"content"`

	// PromptTokens used in the request, if reported by the backend
	PromptTokens int `json:"prompt_tokens,omitempty"`

	// CompletionTokens used in the response, if reported
	CompletionTokens int `json:"completion_tokens,omitempty"`

	// Latency of the request
	Latency time.Duration `json:"latency"`
}

// ModelInfo describes a model served by a provider
type ModelInfo struct {
	Name       string `json:"name"`
	Size       int64  `json:"size,omitempty"`
	Digest     string `json:"digest,omitempty"`
	ModifiedAt string `json:"modified_at,omitempty"`
}

// ProviderError represents an error from a provider
type ProviderError struct {
	// Provider that generated the error
	Provider string

	// Code is the error code
	Code string

	// Message is the error message
	Message string

	// StatusCode is the HTTP status code (if applicable)
	StatusCode int

	// Retryable indicates if the request can be retried
	Retryable bool

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface
func (e *ProviderError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap implements error unwrapping
func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// NewProviderError creates a new provider error
func NewProviderError(provider, code, message string, statusCode int, retryable bool, cause error) *ProviderError {
	return &ProviderError{
		Provider:   provider,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Retryable:  retryable,
		Cause:      cause,
	}
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	if provErr, ok := err.(*ProviderError); ok {
		return provErr.Retryable
	}
	return false
}
