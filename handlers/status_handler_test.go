package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleStatus(t *testing.T) {
	models := staticModels{models: []string{"a/x", "b/y"}}
	handler := NewStatusHandler("1.2.3", "development", models, false, true)

	w := httptest.NewRecorder()
	handler.HandleStatus(w, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var resp envelope[StatusResponse]
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))

	assert.Equal(t, StatusResponse{
		Service:      "llm-router",
		Version:      "1.2.3",
		Environment:  "development",
		DefaultModel: "a/x",
		Models:       []string{"a/x", "b/y"},
		AuditEnabled: false,
		AuthEnabled:  true,
	}, resp.Data)
}
