package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/upb/llm-router/app"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "routerctl %s (commit: %s, built: %s)\n", app.Version, app.Commit, app.BuildDate)
		},
	}
}
