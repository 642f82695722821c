package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticModels struct {
	models []string
}

func (s staticModels) ListModels() []string { return s.models }
func (s staticModels) DefaultModel() string { return s.models[0] }

type prefixNamer struct{}

func (prefixNamer) ProviderNameFor(model string) string {
	if model == "openai-codex/gpt-5.1-codex" {
		return "openai_codex"
	}
	return "openrouter"
}

func TestHandleListModels(t *testing.T) {
	models := staticModels{models: []string{"openai-codex/gpt-5.1-codex", "openrouter/qwen/qwen3"}}

	t.Run("default first with owners", func(t *testing.T) {
		handler := NewModelsHandler(models, prefixNamer{})

		w := httptest.NewRecorder()
		handler.HandleListModels(w, httptest.NewRequest(http.MethodGet, "/v1/models", nil))

		require.Equal(t, http.StatusOK, w.Code)
		var resp ModelListResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))

		assert.Equal(t, "list", resp.Object)
		require.Len(t, resp.Data, 2)
		assert.Equal(t, ModelObject{ID: "openai-codex/gpt-5.1-codex", Object: "model", OwnedBy: "openai_codex", Default: true}, resp.Data[0])
		assert.Equal(t, ModelObject{ID: "openrouter/qwen/qwen3", Object: "model", OwnedBy: "openrouter"}, resp.Data[1])
	})

	t.Run("without provider namer", func(t *testing.T) {
		handler := NewModelsHandler(models, nil)

		w := httptest.NewRecorder()
		handler.HandleListModels(w, httptest.NewRequest(http.MethodGet, "/v1/models", nil))

		assert.NotContains(t, w.Body.String(), "owned_by")
	})
}
