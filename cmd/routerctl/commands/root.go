package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/upb/llm-router/app"
	"github.com/upb/llm-router/config"
	"github.com/upb/llm-router/internal/observability"
	"go.uber.org/zap"
)

// Execute is called by main.main(). It runs the root command.
func Execute() error {
	return NewRootCommand().Execute()
}

// NewRootCommand builds the routerctl command tree
func NewRootCommand() *cobra.Command {
	v := viper.New()

	rootCmd := &cobra.Command{
		Use:   "routerctl",
		Short: "Send prompts through the LLM fallback router",
		Long: `routerctl dispatches chat prompts through the same fallback router
as the api-gateway, without running the HTTP server.

Providers and models come from the environment (ROUTER_MODELS,
<PROVIDER>_API_KEY, ...) and from the optional providers file.

Examples:
  routerctl chat "summarize the release notes"
  routerctl chat --model openai/gpt-4o --max-tokens 256 "hello"
  routerctl --config providers.yaml models
  routerctl version`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().String("config", "", "providers file (yaml, json or toml), overrides ROUTER_CONFIG_FILE")
	rootCmd.PersistentFlags().String("log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringP("format", "f", "text", "output format (text, json)")

	_ = v.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = v.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = v.BindPFlag("format", rootCmd.PersistentFlags().Lookup("format"))

	v.SetEnvPrefix("ROUTERCTL")
	v.AutomaticEnv()

	rootCmd.AddCommand(
		newChatCommand(v),
		newModelsCommand(v),
		newVersionCommand(),
	)
	return rootCmd
}

// loadDependencies reads the configuration and wires a local dispatcher
func loadDependencies(ctx context.Context, v *viper.Viper) (*app.Dependencies, error) {
	cfg, err := config.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if path := v.GetString("config"); path != "" {
		file, err := config.LoadProvidersFile(path)
		if err != nil {
			return nil, err
		}
		cfg.ApplyFile(file)
	}

	logger, err := observability.NewLogger(v.GetString("log_level"), "console")
	if err != nil {
		return nil, err
	}

	deps := app.NewLocalDependencies(cfg, logger)
	logger.Debug("router ready", zap.Strings("models", deps.Router.ListModels()))
	return deps, nil
}
