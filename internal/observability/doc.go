// Package observability provides structured logging and metrics for the
// LLM router.
//
// This package implements:
//   - Zap logger construction from level and format settings
//   - Prometheus collectors for HTTP requests and dispatcher counters
//   - The /metrics exposition handler
package observability
