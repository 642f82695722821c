// Package codex implements the OAuth-authenticated backend that serves
// "openai-codex/..." models through the ChatGPT codex Responses endpoint.
package codex

import (
	"bufio"
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
	// DefaultEndpoint is the codex Responses API endpoint
	DefaultEndpoint = "https://chatgpt.com/backend-api/codex/responses"

	modelPrefix    = "openai-codex/"
	originator     = "llm-router"
	defaultTimeout = 120 * time.Second
)

// Client is the OAuth backend client
type Client struct {
	model      string
	endpoint   string
	tokens     TokenSource
	headers    map[string]string
	httpClient *http.Client
	logger     *zap.Logger
}

// Option configures a Client
type Option func(*Client)

// WithEndpoint overrides the Responses endpoint
func WithEndpoint(endpoint string) Option {
	return func(c *Client) {
		c.endpoint = endpoint
	}
}

// WithTokenSource overrides where the OAuth token comes from
func WithTokenSource(tokens TokenSource) Option {
	return func(c *Client) {
		c.tokens = tokens
	}
}

// WithHTTPClient replaces the HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// New creates a client bound to model
func New(cfg providers.BackendConfig, logger *zap.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	c := &Client{
		model:      cfg.Model,
		endpoint:   DefaultEndpoint,
		tokens:     FileTokenSource(DefaultAuthPath()),
		headers:    cfg.ExtraHeaders,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
	if cfg.APIBase != "" {
		c.endpoint = strings.TrimRight(cfg.APIBase, "/") + "/responses"
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewBuilder returns the registry builder for the OAuth kind
func NewBuilder(logger *zap.Logger, opts ...Option) providers.Builder {
	return func(cfg providers.BackendConfig) (providers.Provider, error) {
		return New(cfg, logger, opts...), nil
	}
}

// Name returns the provider name
func (c *Client) Name() string {
	return providers.ProviderOpenAICodex
}

// DefaultModel returns the model identifier this client is bound to
func (c *Client) DefaultModel() string {
	return c.model
}

// Chat sends the conversation to the codex backend and folds the event stream
// into one response. Failures are reported in the response, not as an error.
func (c *Client) Chat(ctx context.Context, req *providers.ChatRequest) (*providers.ChatResponse, error) {
	startTime := time.Now()

	model := req.Model
	if model == "" {
		model = c.model
	}

	resp, err := c.complete(ctx, model, req)
	if err != nil {
		c.logger.Warn("codex request failed",
			zap.String("model", model),
			zap.Error(err))
		return providers.ErrorResponse(err), nil
	}

	resp.Model = model
	resp.Provider = c.Name()
	resp.Latency = time.Since(startTime)
	return resp, nil
}

func (c *Client) complete(ctx context.Context, model string, req *providers.ChatRequest) (*providers.ChatResponse, error) {
	token, err := c.tokens()
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(buildRequest(strings.TrimPrefix(model, modelPrefix), req))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+token.AccessToken)
	httpReq.Header.Set("chatgpt-account-id", token.AccountID)
	httpReq.Header.Set("OpenAI-Beta", "responses=experimental")
	httpReq.Header.Set("originator", originator)
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range c.headers {
		httpReq.Header.Set(k, v)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		text, _ := io.ReadAll(io.LimitReader(httpResp.Body, 2048))
		return nil, friendlyError(httpResp.StatusCode, string(text))
	}

	return consumeStream(httpResp.Body)
}

// friendlyError maps HTTP failures to short messages
func friendlyError(status int, body string) error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("HTTP %d: codex login expired or not authorized", status)
	case http.StatusTooManyRequests:
		return fmt.Errorf("HTTP %d: codex usage quota exceeded or rate limited", status)
	default:
		return fmt.Errorf("HTTP %d: %s", status, strings.TrimSpace(body))
	}
}

// streamEvent is the subset of Responses stream events the client understands
type streamEvent struct {
	Type  string `json:"type"`
	Delta string `json:"delta"`
	Item  struct {
		Type      string `json:"type"`
		ID        string `json:"id"`
		CallID    string `json:"call_id"`
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"item"`
	Response struct {
		Status string `json:"status"`
		Error  *struct {
			Message string `json:"message"`
		} `json:"error"`
		Usage *struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
			TotalTokens  int `json:"total_tokens"`
		} `json:"usage"`
	} `json:"response"`
	Message string `json:"message"`
}

// consumeStream reads server-sent events until the response completes
func consumeStream(r io.Reader) (*providers.ChatResponse, error) {
	var (
		content strings.Builder
		resp    = &providers.ChatResponse{}
		status  string
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" || data == "[DONE]" {
			continue
		}

		var ev streamEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			continue
		}

		switch ev.Type {
		case "response.output_text.delta":
			content.WriteString(ev.Delta)

		case "response.output_item.done":
			if ev.Item.Type == "function_call" {
				resp.ToolCalls = append(resp.ToolCalls, providers.ToolCall{
					ID:        ev.Item.CallID,
					Type:      "function",
					Name:      ev.Item.Name,
					Arguments: ev.Item.Arguments,
				})
			}

		case "response.completed", "response.incomplete":
			status = ev.Response.Status
			if status == "" {
				status = strings.TrimPrefix(ev.Type, "response.")
			}
			if u := ev.Response.Usage; u != nil {
				resp.Usage = providers.Usage{
					PromptTokens:     u.InputTokens,
					CompletionTokens: u.OutputTokens,
					TotalTokens:      u.TotalTokens,
				}
			}

		case "response.failed":
			msg := "codex response failed"
			if ev.Response.Error != nil && ev.Response.Error.Message != "" {
				msg = ev.Response.Error.Message
			}
			return nil, errors.New(msg)

		case "error":
			msg := ev.Message
			if msg == "" {
				msg = "codex stream error"
			}
			return nil, errors.New(msg)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read event stream: %w", err)
	}
	if status == "" {
		return nil, errors.New("event stream ended before response completed")
	}

	resp.Content = content.String()
	resp.FinishReason = finishReason(status, len(resp.ToolCalls) > 0)
	return resp, nil
}

func finishReason(status string, hasToolCalls bool) string {
	switch status {
	case "completed":
		if hasToolCalls {
			return providers.FinishReasonToolCalls
		}
		return providers.FinishReasonStop
	case "incomplete":
		return providers.FinishReasonLength
	default:
		return providers.FinishReasonError
	}
}
