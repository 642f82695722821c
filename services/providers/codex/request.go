package codex

import (
	"encoding/json"
	"strings"

	"github.com/upb/llm-router/services/providers"
)

// responsesRequest is the Responses API body sent to the codex backend
type responsesRequest struct {
	Model             string           `json:"model"`
	Instructions      string           `json:"instructions"`
	Input             []inputItem      `json:"input"`
	Tools             []responsesTool  `json:"tools,omitempty"`
	ToolChoice        string           `json:"tool_choice"`
	ParallelToolCalls bool             `json:"parallel_tool_calls"`
	Store             bool             `json:"store"`
	Stream            bool             `json:"stream"`
	Include           []string         `json:"include,omitempty"`
	Reasoning         *reasoningConfig `json:"reasoning,omitempty"`
}

type reasoningConfig struct {
	Effort string `json:"effort,omitempty"`
}

type inputItem struct {
	Type      string        `json:"type,omitempty"`
	Role      string        `json:"role,omitempty"`
	Content   []contentPart `json:"content,omitempty"`
	CallID    string        `json:"call_id,omitempty"`
	Name      string        `json:"name,omitempty"`
	Arguments string        `json:"arguments,omitempty"`
	Output    *string       `json:"output,omitempty"`
}

type contentPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type responsesTool struct {
	Type        string          `json:"type"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// buildRequest converts chat messages into a Responses API request.
// System messages become the instructions.
func buildRequest(model string, req *providers.ChatRequest) *responsesRequest {
	var (
		instructions []string
		input        []inputItem
	)

	for _, msg := range req.Messages {
		switch msg.Role {
		case "system":
			instructions = append(instructions, msg.Content)

		case "assistant":
			if msg.Content != "" {
				input = append(input, inputItem{
					Type:    "message",
					Role:    "assistant",
					Content: []contentPart{{Type: "output_text", Text: msg.Content}},
				})
			}
			for _, call := range msg.ToolCalls {
				input = append(input, inputItem{
					Type:      "function_call",
					CallID:    call.ID,
					Name:      call.Name,
					Arguments: call.Arguments,
				})
			}

		case "tool":
			output := msg.Content
			input = append(input, inputItem{
				Type:   "function_call_output",
				CallID: msg.ToolCallID,
				Output: &output,
			})

		default:
			input = append(input, inputItem{
				Role:    "user",
				Content: []contentPart{{Type: "input_text", Text: msg.Content}},
			})
		}
	}

	return &responsesRequest{
		Model:             model,
		Instructions:      strings.Join(instructions, "\n\n"),
		Input:             input,
		Tools:             convertTools(req.Tools),
		ToolChoice:        "auto",
		ParallelToolCalls: true,
		Store:             false,
		Stream:            true,
	}
}

// convertTools flattens OpenAI chat tools {type, function:{...}} into Responses tools
func convertTools(tools []providers.ToolDefinition) []responsesTool {
	if len(tools) == 0 {
		return nil
	}

	out := make([]responsesTool, 0, len(tools))
	for _, tool := range tools {
		raw, ok := tool["function"]
		if !ok {
			continue
		}
		var fn struct {
			Name        string          `json:"name"`
			Description string          `json:"description"`
			Parameters  json.RawMessage `json:"parameters"`
		}
		if err := json.Unmarshal(raw, &fn); err != nil || fn.Name == "" {
			continue
		}
		out = append(out, responsesTool{
			Type:        "function",
			Name:        fn.Name,
			Description: fn.Description,
			Parameters:  fn.Parameters,
		})
	}
	return out
}
