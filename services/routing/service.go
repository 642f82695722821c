package routing

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/upb/llm-router/services/providers"
	"go.uber.org/zap"
)

const (
	// ExhaustedPrefix starts the content of the response returned when every candidate failed
	ExhaustedPrefix = "Error: All models failed. "

	// maxFailureMessage is the longest per-model message kept in the exhaustion summary
	maxFailureMessage = 50

	unknownError = "Unknown error"
)

// Resolver returns the backend client for a model identifier
type Resolver interface {
	Resolve(model string) providers.Provider
}

// Recorder receives dispatch events. Implementations must not block the dispatcher.
type Recorder interface {
	RecordFailure(ctx context.Context, dispatchID string, attempt int, model, message string)
	RecordFallback(ctx context.Context, dispatchID string, attempt int, fromModel, toModel string)
	RecordExhausted(ctx context.Context, dispatchID string, attempts int, summary string)
}

// RoutingConfig holds configuration for the routing service
type RoutingConfig struct {
	// Models is the ordered fallback list
	Models []string

	// DefaultModel is used when Models is empty
	DefaultModel string

	// MaxTokens is used when a request does not set one
	MaxTokens int

	// Temperature is used when a request does not set one
	Temperature float64
}

// DispatchRequest is one completion request to route across the candidate models
type DispatchRequest struct {
	// DispatchID correlates audit events; generated when empty
	DispatchID string

	Messages []providers.Message
	Tools    []providers.ToolDefinition

	// Model is tried first when set
	Model string

	// MaxTokens overrides the configured default when > 0
	MaxTokens int

	// Temperature overrides the configured default when set
	Temperature *float64
}

// FailureRecord is the outcome of one failed candidate
type FailureRecord struct {
	Model   string
	Message string
}

// ModelStats holds per-model dispatch counters
type ModelStats struct {
	Successes   int64         `json:"successes"`
	Failures    int64         `json:"failures"`
	LastLatency time.Duration `json:"last_latency_ns"`
	LastError   string        `json:"last_error,omitempty"`
}

// Stats is a snapshot of dispatcher counters
type Stats struct {
	Dispatches int64                 `json:"dispatches"`
	Fallbacks  int64                 `json:"fallbacks"`
	Exhausted  int64                 `json:"exhausted"`
	Models     map[string]ModelStats `json:"models"`
}

// RoutingService tries the candidate models in order until one succeeds
type RoutingService struct {
	config   RoutingConfig
	resolver Resolver
	recorder Recorder
	logger   *zap.Logger

	mu    sync.Mutex
	stats Stats
}

// NewRoutingService creates a new routing service. An empty model list becomes
// [DefaultModel].
func NewRoutingService(config RoutingConfig, resolver Resolver, recorder Recorder, logger *zap.Logger) *RoutingService {
	if logger == nil {
		logger = zap.NewNop()
	}

	models := make([]string, len(config.Models))
	copy(models, config.Models)
	if len(models) == 0 {
		models = []string{config.DefaultModel}
	}
	config.Models = models

	return &RoutingService{
		config:   config,
		resolver: resolver,
		recorder: recorder,
		logger:   logger,
		stats:    Stats{Models: make(map[string]ModelStats)},
	}
}

// DefaultModel returns the first configured model
func (s *RoutingService) DefaultModel() string {
	return s.config.Models[0]
}

// ListModels returns a copy of the configured model list
func (s *RoutingService) ListModels() []string {
	out := make([]string, len(s.config.Models))
	copy(out, s.config.Models)
	return out
}

// CandidateModels returns the models to try, in order, for a request
func (s *RoutingService) CandidateModels(requested string) []string {
	if requested == "" {
		return s.ListModels()
	}

	candidates := make([]string, 0, len(s.config.Models)+1)
	candidates = append(candidates, requested)
	for _, m := range s.config.Models {
		if m != requested {
			candidates = append(candidates, m)
		}
	}
	return candidates
}

// Dispatch sends the request to each candidate in turn and returns the first
// successful response. When every candidate fails the returned response carries
// the aggregated failures with finish reason "error". Dispatch never fails.
func (s *RoutingService) Dispatch(ctx context.Context, req *DispatchRequest) *providers.ChatResponse {
	dispatchID := req.DispatchID
	if dispatchID == "" {
		dispatchID = uuid.New().String()
	}

	maxTokens := s.config.MaxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}
	temperature := s.config.Temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}

	candidates := s.CandidateModels(req.Model)
	failures := make([]FailureRecord, 0, len(candidates))

	s.mu.Lock()
	s.stats.Dispatches++
	s.mu.Unlock()

	for i, model := range candidates {
		startTime := time.Now()
		resp, err := s.call(ctx, model, &providers.ChatRequest{
			Model:       model,
			Messages:    req.Messages,
			Tools:       req.Tools,
			MaxTokens:   maxTokens,
			Temperature: temperature,
		})
		latency := time.Since(startTime)

		result, message := classify(resp, err)
		if result == outcomeSuccess {
			s.recordSuccess(model, latency, i > 0)
			if i > 0 {
				s.logger.Info("model fallback succeeded",
					zap.String("dispatch_id", dispatchID),
					zap.String("from", candidates[0]),
					zap.String("to", model),
					zap.Int("attempt", i+1))
				if s.recorder != nil {
					s.recorder.RecordFallback(ctx, dispatchID, i+1, candidates[0], model)
				}
			}
			return resp
		}

		failures = append(failures, FailureRecord{Model: model, Message: message})
		s.recordFailure(model, latency, message)

		s.logger.Warn("model attempt failed",
			zap.String("dispatch_id", dispatchID),
			zap.String("model", model),
			zap.Int("attempt", i+1),
			zap.String("outcome", result.String()),
			zap.String("error", message))
		if s.recorder != nil {
			s.recorder.RecordFailure(ctx, dispatchID, i+1, model, message)
		}
	}

	summary := summarizeFailures(failures)

	s.mu.Lock()
	s.stats.Exhausted++
	s.mu.Unlock()

	s.logger.Error("all models failed",
		zap.String("dispatch_id", dispatchID),
		zap.Strings("models", candidates),
		zap.String("errors", summary))
	if s.recorder != nil {
		s.recorder.RecordExhausted(ctx, dispatchID, len(candidates), summary)
	}

	return &providers.ChatResponse{
		Content:      ExhaustedPrefix + summary,
		FinishReason: providers.FinishReasonError,
	}
}

// call resolves the backend for model and invokes it. A panicking backend is
// reported as an error so the remaining candidates are still tried.
func (s *RoutingService) call(ctx context.Context, model string, req *providers.ChatRequest) (resp *providers.ChatResponse, err error) {
	defer func() {
		if r := recover(); r != nil {
			resp, err = nil, fmt.Errorf("backend panic: %v", r)
		}
	}()

	return s.resolver.Resolve(model).Chat(ctx, req)
}

// GetStats returns a snapshot of the dispatcher counters
func (s *RoutingService) GetStats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.stats
	snapshot.Models = make(map[string]ModelStats, len(s.stats.Models))
	for model, ms := range s.stats.Models {
		snapshot.Models[model] = ms
	}
	return snapshot
}

func (s *RoutingService) recordSuccess(model string, latency time.Duration, fallback bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ms := s.stats.Models[model]
	ms.Successes++
	ms.LastLatency = latency
	s.stats.Models[model] = ms
	if fallback {
		s.stats.Fallbacks++
	}
}

func (s *RoutingService) recordFailure(model string, latency time.Duration, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ms := s.stats.Models[model]
	ms.Failures++
	ms.LastLatency = latency
	ms.LastError = message
	s.stats.Models[model] = ms
}

// outcome is the classification of one backend call
type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeHardFailure
	outcomeSoftFailure
)

func (o outcome) String() string {
	switch o {
	case outcomeHardFailure:
		return "hard_failure"
	case outcomeSoftFailure:
		return "soft_failure"
	default:
		return "success"
	}
}

// classify maps a backend result to an outcome and, for failures, the message to record.
// A soft failure is a response with finish reason "error" or content starting with
// the conventional error prefix.
func classify(resp *providers.ChatResponse, err error) (outcome, string) {
	if err != nil {
		return outcomeHardFailure, err.Error()
	}
	if resp == nil {
		return outcomeHardFailure, "empty response"
	}
	if resp.FinishReason == providers.FinishReasonError || strings.HasPrefix(resp.Content, providers.ErrorContentPrefix) {
		message := resp.Content
		if message == "" {
			message = unknownError
		}
		return outcomeSoftFailure, message
	}
	return outcomeSuccess, ""
}

// summarizeFailures joins "model: message" pairs with "; ", cutting long messages
func summarizeFailures(failures []FailureRecord) string {
	parts := make([]string, len(failures))
	for i, f := range failures {
		parts[i] = fmt.Sprintf("%s: %s", f.Model, truncateMessage(f.Message))
	}
	return strings.Join(parts, "; ")
}

func truncateMessage(msg string) string {
	runes := []rune(msg)
	if len(runes) <= maxFailureMessage {
		return msg
	}
	return string(runes[:maxFailureMessage]) + "..."
}
