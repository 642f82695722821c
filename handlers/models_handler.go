package handlers

import (
	"net/http"

	"github.com/upb/llm-router/utils"
)

// ModelLister exposes the configured fallback list
type ModelLister interface {
	ListModels() []string
	DefaultModel() string
}

// ProviderNamer resolves the provider that serves a model
type ProviderNamer interface {
	ProviderNameFor(model string) string
}

// ModelObject is one entry of the OpenAI-compatible model list
type ModelObject struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	OwnedBy string `json:"owned_by,omitempty"`
	Default bool   `json:"default"`
}

// ModelListResponse is the OpenAI-compatible model list
type ModelListResponse struct {
	Object string        `json:"object"`
	Data   []ModelObject `json:"data"`
}

// ModelsHandler handles GET /v1/models
type ModelsHandler struct {
	models    ModelLister
	providers ProviderNamer
}

// NewModelsHandler creates a new ModelsHandler. providers may be nil.
func NewModelsHandler(models ModelLister, providers ProviderNamer) *ModelsHandler {
	return &ModelsHandler{
		models:    models,
		providers: providers,
	}
}

// HandleListModels lists the configured models in fallback order
func (h *ModelsHandler) HandleListModels(w http.ResponseWriter, r *http.Request) {
	defaultModel := h.models.DefaultModel()

	response := ModelListResponse{
		Object: "list",
		Data:   []ModelObject{},
	}
	for _, model := range h.models.ListModels() {
		obj := ModelObject{
			ID:      model,
			Object:  "model",
			Default: model == defaultModel,
		}
		if h.providers != nil {
			obj.OwnedBy = h.providers.ProviderNameFor(model)
		}
		response.Data = append(response.Data, obj)
	}

	_ = utils.WriteJSON(w, http.StatusOK, response)
}
