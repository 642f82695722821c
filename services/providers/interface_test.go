package providers

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToolCall_JSON(t *testing.T) {
	call := ToolCall{ID: "call_1", Name: "get_weather", Arguments: `{"city":"Medellin"}`}

	data, err := json.Marshal(call)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"call_1","type":"function","function":{"name":"get_weather","arguments":"{\"city\":\"Medellin\"}"}}`, string(data))

	var decoded ToolCall
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "call_1", decoded.ID)
	assert.Equal(t, "function", decoded.Type)
	assert.Equal(t, "get_weather", decoded.Name)
	assert.Equal(t, `{"city":"Medellin"}`, decoded.Arguments)
}

func TestChatResponse_HasToolCalls(t *testing.T) {
	assert.False(t, (&ChatResponse{Content: "hi"}).HasToolCalls())
	assert.True(t, (&ChatResponse{ToolCalls: []ToolCall{{ID: "1"}}}).HasToolCalls())
}

func TestErrorResponse(t *testing.T) {
	resp := ErrorResponse(errors.New("timeout"))

	assert.Equal(t, "Error calling LLM: timeout", resp.Content)
	assert.Equal(t, FinishReasonError, resp.FinishReason)
}

func TestProviderError(t *testing.T) {
	cause := errors.New("connection reset")

	tests := []struct {
		name      string
		err       error
		message   string
		retryable bool
	}{
		{
			name:      "with cause",
			err:       NewProviderError("openai", "HTTP_ERROR", "HTTP request failed", 0, true, cause),
			message:   "HTTP request failed: connection reset",
			retryable: true,
		},
		{
			name:      "without cause",
			err:       NewProviderError("openai", "invalid_request_error", "HTTP 400", 400, false, nil),
			message:   "HTTP 400",
			retryable: false,
		},
		{
			name:      "wrapped",
			err:       fmt.Errorf("dispatch: %w", NewProviderError("groq", "rate_limit", "HTTP 429", 429, true, nil)),
			message:   "dispatch: HTTP 429",
			retryable: true,
		},
		{
			name:      "plain error",
			err:       errors.New("boom"),
			message:   "boom",
			retryable: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.message, tt.err.Error())
			assert.Equal(t, tt.retryable, IsRetryable(tt.err))
		})
	}

	assert.ErrorIs(t, NewProviderError("openai", "HTTP_ERROR", "failed", 0, true, cause), cause)
}
