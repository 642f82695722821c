package app

// Build information, set with -ldflags "-X github.com/upb/llm-router/app.Version=..."
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)
