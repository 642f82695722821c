package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/upb/llm-router/middleware"
	"github.com/upb/llm-router/services"
	"github.com/upb/llm-router/services/providers"
	"github.com/upb/llm-router/services/routing"
	"github.com/upb/llm-router/utils"
	"go.uber.org/zap"
)

// maxRequestBody bounds the chat completion payload
const maxRequestBody = 4 << 20

// ChatCompletionRequest represents an OpenAI-compatible chat completion request
type ChatCompletionRequest struct {
	Model       string                     `json:"model,omitempty"`
	Messages    []ChatMessage              `json:"messages" validate:"required,min=1,dive"`
	Tools       []providers.ToolDefinition `json:"tools,omitempty"`
	MaxTokens   *int                       `json:"max_tokens,omitempty" validate:"omitempty,gt=0"`
	Temperature *float64                   `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
	Stream      bool                       `json:"stream,omitempty"`
}

// ChatMessage represents a single chat message
type ChatMessage struct {
	Role       string               `json:"role" validate:"required,oneof=system user assistant tool"`
	Content    string               `json:"content"`
	Name       string               `json:"name,omitempty"`
	ToolCallID string               `json:"tool_call_id,omitempty"`
	ToolCalls  []providers.ToolCall `json:"tool_calls,omitempty"`
}

// ChatCompletionResponse represents an OpenAI-compatible chat completion response
type ChatCompletionResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []ChatChoice `json:"choices"`
	Usage   ChatUsage    `json:"usage"`
}

// ChatChoice represents a completion choice
type ChatChoice struct {
	Index        int         `json:"index"`
	Message      ChatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

// ChatUsage represents token usage information
type ChatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Dispatcher routes a completion request across the configured models
type Dispatcher interface {
	Dispatch(ctx context.Context, req *routing.DispatchRequest) *providers.ChatResponse
	DefaultModel() string
}

// ChatHandler handles chat completion requests
type ChatHandler struct {
	dispatcher Dispatcher
	logger     *zap.Logger
}

// NewChatHandler creates a new ChatHandler
func NewChatHandler(dispatcher Dispatcher, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// HandleChatCompletion handles POST /v1/chat/completions.
// Exhausted dispatches are reported in-band with finish_reason "error".
func (h *ChatHandler) HandleChatCompletion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	var chatReq ChatCompletionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&chatReq); err != nil {
		h.logger.Warn("failed to parse request body",
			zap.String("request_id", requestID),
			zap.Error(err))
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}

	if err := utils.ValidateStruct(&chatReq); err != nil {
		h.logger.Warn("request validation failed",
			zap.String("request_id", requestID),
			zap.Error(err))
		HandleValidationError(w, err, h.logger)
		return
	}

	if chatReq.Stream {
		HandleServiceError(w, services.ErrStreamingUnsupported, h.logger)
		return
	}

	dispatchReq := &routing.DispatchRequest{
		DispatchID:  uuid.New().String(),
		Messages:    toProviderMessages(chatReq.Messages),
		Tools:       chatReq.Tools,
		Model:       chatReq.Model,
		Temperature: chatReq.Temperature,
	}
	if chatReq.MaxTokens != nil {
		dispatchReq.MaxTokens = *chatReq.MaxTokens
	}

	h.logger.Debug("dispatching chat completion",
		zap.String("request_id", requestID),
		zap.String("dispatch_id", dispatchReq.DispatchID),
		zap.String("model", chatReq.Model),
		zap.Int("messages", len(chatReq.Messages)))

	result := h.dispatcher.Dispatch(ctx, dispatchReq)

	model := result.Model
	if model == "" {
		model = chatReq.Model
	}
	if model == "" {
		model = h.dispatcher.DefaultModel()
	}

	response := ChatCompletionResponse{
		ID:      "chatcmpl-" + dispatchReq.DispatchID,
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []ChatChoice{
			{
				Index: 0,
				Message: ChatMessage{
					Role:      "assistant",
					Content:   result.Content,
					ToolCalls: result.ToolCalls,
				},
				FinishReason: result.FinishReason,
			},
		},
		Usage: ChatUsage{
			PromptTokens:     result.Usage.PromptTokens,
			CompletionTokens: result.Usage.CompletionTokens,
			TotalTokens:      result.Usage.TotalTokens,
		},
	}

	h.logger.Info("chat completion finished",
		zap.String("request_id", requestID),
		zap.String("dispatch_id", dispatchReq.DispatchID),
		zap.String("provider", result.Provider),
		zap.String("model", model),
		zap.String("finish_reason", result.FinishReason),
		zap.Int("prompt_tokens", result.Usage.PromptTokens),
		zap.Int("completion_tokens", result.Usage.CompletionTokens))

	w.Header().Set("X-Dispatch-ID", dispatchReq.DispatchID)
	if err := utils.WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("failed to write response",
			zap.String("request_id", requestID),
			zap.Error(err))
	}
}

func toProviderMessages(messages []ChatMessage) []providers.Message {
	out := make([]providers.Message, len(messages))
	for i, m := range messages {
		out[i] = providers.Message{
			Role:       m.Role,
			Content:    m.Content,
			Name:       m.Name,
			ToolCallID: m.ToolCallID,
			ToolCalls:  m.ToolCalls,
		}
	}
	return out
}
