package main

import (
	"os"

	"github.com/upb/llm-router/cmd/routerctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
