package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/upb/llm-router/services/providers"
	"github.com/upb/llm-router/services/routing"
)

// ErrAllModelsFailed is returned when the dispatch ends with finish reason "error"
var ErrAllModelsFailed = errors.New("all models failed")

// chatResult is the json output of the chat command
type chatResult struct {
	Model        string               `json:"model,omitempty"`
	Content      string               `json:"content"`
	FinishReason string               `json:"finish_reason"`
	ToolCalls    []providers.ToolCall `json:"tool_calls,omitempty"`
	Usage        providers.Usage      `json:"usage"`
}

func newChatCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat <message>",
		Short: "Send one prompt through the fallback router",
		Long: `Send one user prompt to the configured models, in order, until one
answers. The requested --model is tried first.

The command exits non-zero when every model failed.

Examples:
  routerctl chat "what is a circuit breaker?"
  routerctl chat --system "answer in one line" "define idempotency"
  routerctl chat --model custom/llama --temperature 0 -f json "ping"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, v, args)
		},
	}

	cmd.Flags().StringP("model", "m", "", "model to try first")
	cmd.Flags().String("system", "", "system prompt")
	cmd.Flags().Int("max-tokens", 0, "completion token limit (default from ROUTER_MAX_TOKENS)")
	cmd.Flags().Float64("temperature", 0, "sampling temperature (default from ROUTER_TEMPERATURE)")

	return cmd
}

func runChat(cmd *cobra.Command, v *viper.Viper, args []string) error {
	model, _ := cmd.Flags().GetString("model")
	system, _ := cmd.Flags().GetString("system")
	maxTokens, _ := cmd.Flags().GetInt("max-tokens")

	if maxTokens < 0 {
		return fmt.Errorf("--max-tokens must be positive")
	}

	req := &routing.DispatchRequest{
		Model:     model,
		MaxTokens: maxTokens,
		Messages:  buildMessages(system, strings.Join(args, " ")),
	}
	if cmd.Flags().Changed("temperature") {
		temperature, _ := cmd.Flags().GetFloat64("temperature")
		if temperature < 0 || temperature > 2 {
			return fmt.Errorf("--temperature must be between 0 and 2")
		}
		req.Temperature = &temperature
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	deps, err := loadDependencies(ctx, v)
	if err != nil {
		return err
	}
	defer func() { _ = deps.Close(context.Background()) }()

	resp := deps.Router.Dispatch(ctx, req)

	if err := writeChatResult(cmd.OutOrStdout(), v.GetString("format"), resp); err != nil {
		return err
	}

	if resp.FinishReason == providers.FinishReasonError {
		return ErrAllModelsFailed
	}
	return nil
}

func buildMessages(system, prompt string) []providers.Message {
	messages := make([]providers.Message, 0, 2)
	if system != "" {
		messages = append(messages, providers.Message{Role: "system", Content: system})
	}
	return append(messages, providers.Message{Role: "user", Content: prompt})
}

func writeChatResult(w io.Writer, format string, resp *providers.ChatResponse) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(chatResult{
			Model:        resp.Model,
			Content:      resp.Content,
			FinishReason: resp.FinishReason,
			ToolCalls:    resp.ToolCalls,
			Usage:        resp.Usage,
		})
	}

	fmt.Fprintln(w, resp.Content)
	for _, call := range resp.ToolCalls {
		fmt.Fprintf(w, "tool call %s: %s(%s)\n", call.ID, call.Name, call.Arguments)
	}
	if resp.Model != "" {
		fmt.Fprintf(w, "\n[%s, finish_reason=%s, tokens=%d]\n", resp.Model, resp.FinishReason, resp.Usage.TotalTokens)
	} else {
		fmt.Fprintf(w, "\n[finish_reason=%s]\n", resp.FinishReason)
	}
	return nil
}
