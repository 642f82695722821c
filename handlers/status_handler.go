package handlers

import (
	"net/http"

	"github.com/upb/llm-router/utils"
)

// StatusResponse describes the running gateway
type StatusResponse struct {
	Service      string   `json:"service"`
	Version      string   `json:"version"`
	Environment  string   `json:"environment"`
	DefaultModel string   `json:"default_model"`
	Models       []string `json:"models"`
	AuditEnabled bool     `json:"audit_enabled"`
	AuthEnabled  bool     `json:"auth_enabled"`
}

// StatusHandler handles GET /api/v1/status
type StatusHandler struct {
	version      string
	environment  string
	models       ModelLister
	auditEnabled bool
	authEnabled  bool
}

// NewStatusHandler creates a new StatusHandler
func NewStatusHandler(version, environment string, models ModelLister, auditEnabled, authEnabled bool) *StatusHandler {
	return &StatusHandler{
		version:      version,
		environment:  environment,
		models:       models,
		auditEnabled: auditEnabled,
		authEnabled:  authEnabled,
	}
}

// HandleStatus reports version, environment and the fallback list
func (h *StatusHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteOK(w, StatusResponse{
		Service:      "llm-router",
		Version:      h.version,
		Environment:  h.environment,
		DefaultModel: h.models.DefaultModel(),
		Models:       h.models.ListModels(),
		AuditEnabled: h.auditEnabled,
		AuthEnabled:  h.authEnabled,
	})
}
