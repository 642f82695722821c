package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type modelEntry struct {
	ID       string `json:"id"`
	Provider string `json:"provider,omitempty"`
	Default  bool   `json:"default"`
}

func newModelsCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the configured fallback order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			deps, err := loadDependencies(ctx, v)
			if err != nil {
				return err
			}
			defer func() { _ = deps.Close(context.Background()) }()

			defaultModel := deps.Router.DefaultModel()
			var entries []modelEntry
			for _, m := range deps.Router.ListModels() {
				entries = append(entries, modelEntry{
					ID:       m,
					Provider: deps.Config.ProviderNameFor(m),
					Default:  m == defaultModel,
				})
			}

			out := cmd.OutOrStdout()
			if v.GetString("format") == "json" {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			}

			for i, e := range entries {
				provider := e.Provider
				if provider == "" {
					provider = "-"
				}
				marker := ""
				if e.Default {
					marker = " (default)"
				}
				fmt.Fprintf(out, "%d. %s [%s]%s\n", i+1, e.ID, provider, marker)
			}
			return nil
		},
	}
}
