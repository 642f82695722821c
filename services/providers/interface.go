package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Provider is a backend client bound to a single model identifier
type Provider interface {
	// Name returns the logical provider name (e.g., "openrouter", "custom", "openai_codex")
	Name() string

	// DefaultModel returns the model identifier this client was created for
	DefaultModel() string

	// Chat performs one chat completion call. A non-nil error is a hard failure;
	// a response carrying FinishReasonError is a soft failure.
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
}

// Finish reasons reported by backends
const (
	FinishReasonStop          = "stop"
	FinishReasonLength        = "length"
	FinishReasonToolCalls     = "tool_calls"
	FinishReasonContentFilter = "content_filter"
	FinishReasonError         = "error"
)

// ErrorContentPrefix marks a response whose content reports a failed backend call.
// Backends that cannot return an error value use it together with FinishReasonError.
const ErrorContentPrefix = "Error calling LLM:"

// ChatRequest represents a unified chat completion request
type ChatRequest struct {
	// Model identifier (e.g., "anthropic/claude-opus-4-5")
	Model string `json:"model"`

	// Messages in the conversation
	Messages []Message `json:"messages"`

	// Tools available to the model, in OpenAI function-tool format
	Tools []ToolDefinition `json:"tools,omitempty"`

	// MaxTokens limits the response length
	MaxTokens int `json:"max_tokens,omitempty"`

	// Temperature controls randomness (0.0 to 2.0)
	Temperature float64 `json:"temperature"`
}

// Message represents a single message in a conversation
type Message struct {
	// Role can be "system", "user", "assistant" or "tool"
	Role string `json:"role"`

	// Content is the message text
	Content string `json:"content"`

	// Name is an optional identifier for the message sender
	Name string `json:"name,omitempty"`

	// ToolCallID links a tool result to the call that produced it
	ToolCallID string `json:"tool_call_id,omitempty"`

	// ToolCalls issued by the assistant in a previous turn
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// ToolDefinition is an OpenAI-format tool object passed through untouched
type ToolDefinition map[string]json.RawMessage

// ToolCall is a function invocation requested by the model
type ToolCall struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// MarshalJSON encodes the call in the OpenAI wire shape
func (c ToolCall) MarshalJSON() ([]byte, error) {
	typ := c.Type
	if typ == "" {
		typ = "function"
	}
	return json.Marshal(struct {
		ID       string `json:"id"`
		Type     string `json:"type"`
		Function struct {
			Name      string `json:"name"`
			Arguments string `json:"arguments"`
		} `json:"function"`
	}{
		ID:   c.ID,
		Type: typ,
		Function: struct {
			Name      string `json:"name"`
			Arguments string `json:"arguments"`
		}{Name: c.Name, Arguments: c.Arguments},
	})
}

// UnmarshalJSON decodes the OpenAI wire shape
func (c *ToolCall) UnmarshalJSON(data []byte) error {
	var wire struct {
		ID       string `json:"id"`
		Type     string `json:"type"`
		Function struct {
			Name      string `json:"name"`
			Arguments string `json:"arguments"`
		} `json:"function"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	c.ID = wire.ID
	c.Type = wire.Type
	c.Name = wire.Function.Name
	c.Arguments = wire.Function.Arguments
	return nil
}

// ChatResponse represents a normalized chat completion result
type ChatResponse struct {
	// Content is the generated text (may be empty when only tool calls are returned)
	Content string `json:"content"`

	// FinishReason indicates why the completion finished
	// Values: "stop", "length", "tool_calls", "content_filter", "error"
	FinishReason string `json:"finish_reason"`

	// ToolCalls requested by the model
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// Usage statistics
	Usage Usage `json:"usage"`

	// Model that produced the completion
	Model string `json:"model,omitempty"`

	// Provider that handled the request
	Provider string `json:"provider,omitempty"`

	// Latency of the backend call
	Latency time.Duration `json:"latency,omitempty"`
}

// HasToolCalls reports whether the model asked for tool invocations
func (r *ChatResponse) HasToolCalls() bool {
	return len(r.ToolCalls) > 0
}

// Usage represents token usage statistics
type Usage struct {
	// PromptTokens used in the request
	PromptTokens int `json:"prompt_tokens"`

	// CompletionTokens used in the response
	CompletionTokens int `json:"completion_tokens"`

	// TotalTokens is the sum of prompt and completion tokens
	TotalTokens int `json:"total_tokens"`
}

// ErrorResponse builds the soft-failure response for a failed backend call
func ErrorResponse(err error) *ChatResponse {
	return &ChatResponse{
		Content:      fmt.Sprintf("%s %v", ErrorContentPrefix, err),
		FinishReason: FinishReasonError,
	}
}

// BackendConfig holds the resolved settings a backend client is built from
type BackendConfig struct {
	// Model is the identifier the client is bound to
	Model string

	// ProviderName is the logical provider name ("" when unknown)
	ProviderName string

	// APIKey for authentication
	APIKey string

	// APIBase for the API (optional override)
	APIBase string

	// ExtraHeaders sent with every request
	ExtraHeaders map[string]string

	// Timeout for requests
	Timeout time.Duration
}

// ProviderSettings is what configuration knows about the provider serving a model
type ProviderSettings struct {
	APIKey       string
	APIBase      string
	ExtraHeaders map[string]string
}

// ConfigLookup resolves provider settings for a model identifier.
// Both lookups are pure and never fail; absent data is returned as zero values.
type ConfigLookup interface {
	ProviderConfigFor(model string) ProviderSettings
	ProviderNameFor(model string) string
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
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr.Retryable
	}
	return false
}
