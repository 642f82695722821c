package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/upb/llm-router/middleware"
	"github.com/upb/llm-router/models"
	"github.com/upb/llm-router/services"
	"github.com/upb/llm-router/services/audit"
	"github.com/upb/llm-router/services/routing"
	"github.com/upb/llm-router/utils"
	"go.uber.org/zap"
)

const maxRecentEvents = 500

// EventStore exposes recorded dispatch events
type EventStore interface {
	ListByDispatch(ctx context.Context, dispatchID string) ([]*models.DispatchEvent, error)
	ListRecent(ctx context.Context, limit int) ([]*models.DispatchEvent, error)
	GetStats() audit.Stats
}

// StatsSource exposes dispatcher counters
type StatsSource interface {
	GetStats() routing.Stats
}

// DispatchEventsResponse lists the events of one dispatch
type DispatchEventsResponse struct {
	DispatchID string                  `json:"dispatch_id,omitempty"`
	Events     []*models.DispatchEvent `json:"events"`
}

// StatsResponse combines dispatcher and audit counters
type StatsResponse struct {
	Dispatch routing.Stats `json:"dispatch"`
	Audit    audit.Stats   `json:"audit"`
}

// DispatchHandler serves dispatch history and statistics
type DispatchHandler struct {
	events EventStore
	stats  StatsSource
	logger *zap.Logger
}

// NewDispatchHandler creates a new DispatchHandler
func NewDispatchHandler(events EventStore, stats StatsSource, logger *zap.Logger) *DispatchHandler {
	return &DispatchHandler{
		events: events,
		stats:  stats,
		logger: logger,
	}
}

// HandleGetDispatch handles GET /api/v1/dispatches/{id}
func (h *DispatchHandler) HandleGetDispatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	dispatchID := chi.URLParam(r, "id")

	if err := utils.ValidateUUID(dispatchID); err != nil {
		HandleServiceError(w, fmt.Errorf("%w: %v", services.ErrInvalidInput, err), h.logger)
		return
	}

	events, err := h.events.ListByDispatch(ctx, dispatchID)
	if err != nil {
		h.logger.Warn("failed to list dispatch events",
			zap.String("request_id", middleware.GetRequestIDFromContext(ctx)),
			zap.String("dispatch_id", dispatchID),
			zap.Error(err))
		HandleServiceError(w, err, h.logger)
		return
	}
	if events == nil {
		events = []*models.DispatchEvent{}
	}

	_ = utils.WriteOK(w, DispatchEventsResponse{DispatchID: dispatchID, Events: events})
}

// HandleListRecent handles GET /api/v1/dispatches?limit=n
func (h *DispatchHandler) HandleListRecent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxRecentEvents {
			HandleServiceError(w, fmt.Errorf("%w: limit must be between 1 and %d", services.ErrInvalidInput, maxRecentEvents), h.logger)
			return
		}
		limit = n
	}

	events, err := h.events.ListRecent(ctx, limit)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	if events == nil {
		events = []*models.DispatchEvent{}
	}

	_ = utils.WriteOK(w, DispatchEventsResponse{Events: events})
}

// HandleStats handles GET /api/v1/stats
func (h *DispatchHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteOK(w, StatsResponse{
		Dispatch: h.stats.GetStats(),
		Audit:    h.events.GetStats(),
	})
}
