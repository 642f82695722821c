package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/upb/llm-router/services/providers"
	"go.uber.org/zap"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultTimeout = 120 * time.Second
)

// OpenAIAdapter implements the Provider interface for any OpenAI-compatible
// chat completions endpoint
type OpenAIAdapter struct {
	config     providers.BackendConfig
	name       string
	wireModel  func(string) string
	httpClient *http.Client
	logger     *zap.Logger
}

// Option configures an OpenAIAdapter
type Option func(*OpenAIAdapter)

// WithHTTPClient replaces the HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(a *OpenAIAdapter) {
		a.httpClient = client
	}
}

// WithWireModel sets the mapping from model identifier to the name sent on the wire
func WithWireModel(fn func(string) string) Option {
	return func(a *OpenAIAdapter) {
		a.wireModel = fn
	}
}

// NewOpenAIAdapter creates a new OpenAI-compatible adapter
func NewOpenAIAdapter(config providers.BackendConfig, logger *zap.Logger, opts ...Option) *OpenAIAdapter {
	if config.APIBase == "" {
		config.APIBase = defaultBaseURL
	}
	config.APIBase = strings.TrimRight(config.APIBase, "/")

	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	name := config.ProviderName
	if name == "" {
		name = "openai"
	}

	adapter := &OpenAIAdapter{
		config:    config,
		name:      name,
		wireModel: func(m string) string { return m },
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger: logger,
	}
	for _, opt := range opts {
		opt(adapter)
	}

	return adapter
}

// NewDirectBuilder returns the builder for custom OpenAI-compatible endpoints.
// The model identifier is sent unchanged.
func NewDirectBuilder(logger *zap.Logger, opts ...Option) providers.Builder {
	return func(cfg providers.BackendConfig) (providers.Provider, error) {
		if cfg.APIBase == "" {
			return nil, errors.New("custom provider requires an api base")
		}
		return NewOpenAIAdapter(cfg, logger, opts...), nil
	}
}

// NewGatewayBuilder returns the builder for known gateway providers. The wire model
// name follows the provider spec; unknown providers use the OpenAI endpoint.
func NewGatewayBuilder(logger *zap.Logger, opts ...Option) providers.Builder {
	return func(cfg providers.BackendConfig) (providers.Provider, error) {
		spec, ok := providers.FindSpec(cfg.ProviderName)
		if !ok {
			spec, ok = providers.MatchSpec(cfg.Model)
		}
		adapterOpts := opts
		if ok {
			if cfg.ProviderName == "" {
				cfg.ProviderName = spec.Name
			}
			adapterOpts = append([]Option{WithWireModel(spec.WireModel)}, opts...)
		}
		return NewOpenAIAdapter(cfg, logger, adapterOpts...), nil
	}
}

// Name returns the provider name
func (a *OpenAIAdapter) Name() string {
	return a.name
}

// DefaultModel returns the model identifier this adapter is bound to
func (a *OpenAIAdapter) DefaultModel() string {
	return a.config.Model
}

// BaseURL returns the endpoint the adapter talks to
func (a *OpenAIAdapter) BaseURL() string {
	return a.config.APIBase
}

// Chat performs a chat completion request
func (a *OpenAIAdapter) Chat(ctx context.Context, req *providers.ChatRequest) (*providers.ChatResponse, error) {
	startTime := time.Now()

	model := req.Model
	if model == "" {
		model = a.config.Model
	}

	openaiReq := a.buildOpenAIRequest(req, a.wireModel(model))

	reqBody, err := json.Marshal(openaiReq)
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), "MARSHAL_ERROR", "failed to marshal request", 0, false, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.APIBase+"/chat/completions", bytes.NewReader(reqBody))
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), "REQUEST_ERROR", "failed to create request", 0, false, err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if a.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+a.config.APIKey)
	}
	for k, v := range a.config.ExtraHeaders {
		httpReq.Header.Set(k, v)
	}

	httpResp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), "HTTP_ERROR", "HTTP request failed", 0, true, err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), "READ_ERROR", "failed to read response", httpResp.StatusCode, false, err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, a.handleErrorResponse(httpResp.StatusCode, respBody)
	}

	var openaiResp OpenAIChatResponse
	if err := json.Unmarshal(respBody, &openaiResp); err != nil {
		return nil, providers.NewProviderError(a.Name(), "UNMARSHAL_ERROR", "failed to unmarshal response", httpResp.StatusCode, false, err)
	}
	if len(openaiResp.Choices) == 0 {
		return nil, providers.NewProviderError(a.Name(), "EMPTY_RESPONSE", "response contained no choices", httpResp.StatusCode, true, nil)
	}

	response := a.convertToUnifiedResponse(&openaiResp, model, time.Since(startTime))

	a.logger.Debug("chat completion finished",
		zap.String("provider", a.Name()),
		zap.String("model", model),
		zap.String("finish_reason", response.FinishReason),
		zap.Duration("latency", response.Latency))

	return response, nil
}

// buildOpenAIRequest converts unified request to OpenAI format
func (a *OpenAIAdapter) buildOpenAIRequest(req *providers.ChatRequest, wireModel string) *OpenAIChatRequest {
	openaiReq := &OpenAIChatRequest{
		Model:    wireModel,
		Messages: make([]OpenAIMessage, len(req.Messages)),
	}

	for i, msg := range req.Messages {
		content := msg.Content
		openaiReq.Messages[i] = OpenAIMessage{
			Role:       msg.Role,
			Content:    &content,
			Name:       msg.Name,
			ToolCallID: msg.ToolCallID,
			ToolCalls:  msg.ToolCalls,
		}
	}

	if len(req.Tools) > 0 {
		openaiReq.Tools = req.Tools
		openaiReq.ToolChoice = "auto"
	}
	if req.MaxTokens > 0 {
		maxTokens := req.MaxTokens
		openaiReq.MaxTokens = &maxTokens
	}
	temperature := req.Temperature
	openaiReq.Temperature = &temperature

	return openaiReq
}

// convertToUnifiedResponse converts OpenAI response to unified format
func (a *OpenAIAdapter) convertToUnifiedResponse(openaiResp *OpenAIChatResponse, model string, latency time.Duration) *providers.ChatResponse {
	choice := openaiResp.Choices[0]

	resp := &providers.ChatResponse{
		FinishReason: choice.FinishReason,
		ToolCalls:    choice.Message.ToolCalls,
		Usage: providers.Usage{
			PromptTokens:     openaiResp.Usage.PromptTokens,
			CompletionTokens: openaiResp.Usage.CompletionTokens,
			TotalTokens:      openaiResp.Usage.TotalTokens,
		},
		Model:    model,
		Provider: a.Name(),
		Latency:  latency,
	}
	if choice.Message.Content != nil {
		resp.Content = *choice.Message.Content
	}
	if resp.FinishReason == "" {
		resp.FinishReason = providers.FinishReasonStop
	}

	return resp
}

// handleErrorResponse handles OpenAI error responses
func (a *OpenAIAdapter) handleErrorResponse(statusCode int, body []byte) error {
	retryable := statusCode >= 500 || statusCode == http.StatusTooManyRequests

	var errResp OpenAIErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error.Message == "" {
		return providers.NewProviderError(a.Name(), "UNKNOWN_ERROR", fmt.Sprintf("HTTP %d: %s", statusCode, truncate(string(body), 200)), statusCode, retryable, nil)
	}

	return providers.NewProviderError(
		a.Name(),
		errResp.Error.Type,
		fmt.Sprintf("HTTP %d", statusCode),
		statusCode,
		retryable,
		errors.New(errResp.Error.Message),
	)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// OpenAI-specific request/response types

type OpenAIChatRequest struct {
	Model       string                     `json:"model"`
	Messages    []OpenAIMessage            `json:"messages"`
	Tools       []providers.ToolDefinition `json:"tools,omitempty"`
	ToolChoice  string                     `json:"tool_choice,omitempty"`
	MaxTokens   *int                       `json:"max_tokens,omitempty"`
	Temperature *float64                   `json:"temperature,omitempty"`
}

type OpenAIMessage struct {
	Role       string               `json:"role"`
	Content    *string              `json:"content"`
	Name       string               `json:"name,omitempty"`
	ToolCallID string               `json:"tool_call_id,omitempty"`
	ToolCalls  []providers.ToolCall `json:"tool_calls,omitempty"`
}

type OpenAIChatResponse struct {
	ID      string         `json:"id"`
	Object  string         `json:"object"`
	Created int64          `json:"created"`
	Model   string         `json:"model"`
	Choices []OpenAIChoice `json:"choices"`
	Usage   OpenAIUsage    `json:"usage"`
}

type OpenAIChoice struct {
	Index        int           `json:"index"`
	Message      OpenAIMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

type OpenAIUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type OpenAIErrorResponse struct {
	Error OpenAIError `json:"error"`
}

type OpenAIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    any    `json:"code"`
}
