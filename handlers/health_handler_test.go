package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockHealthChecker is a mock implementation of HealthChecker
type MockHealthChecker struct {
	mock.Mock
}

func (m *MockHealthChecker) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func TestHandleHealth(t *testing.T) {
	handler := NewHealthHandler(nil, zap.NewNop())

	w := httptest.NewRecorder()
	handler.HandleHealth(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestHandleReadiness(t *testing.T) {
	tests := []struct {
		name           string
		checker        func() HealthChecker
		expectedStatus int
		expectedState  string
		expectedDB     string
	}{
		{
			name:           "no database configured",
			checker:        func() HealthChecker { return nil },
			expectedStatus: http.StatusOK,
			expectedState:  "ready",
			expectedDB:     "not_configured",
		},
		{
			name: "database healthy",
			checker: func() HealthChecker {
				m := new(MockHealthChecker)
				m.On("HealthCheck", mock.Anything).Return(nil)
				return m
			},
			expectedStatus: http.StatusOK,
			expectedState:  "ready",
			expectedDB:     "healthy",
		},
		{
			name: "database down",
			checker: func() HealthChecker {
				m := new(MockHealthChecker)
				m.On("HealthCheck", mock.Anything).Return(errors.New("connection refused"))
				return m
			},
			expectedStatus: http.StatusServiceUnavailable,
			expectedState:  "not_ready",
			expectedDB:     "unhealthy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHealthHandler(tt.checker(), zap.NewNop())

			w := httptest.NewRecorder()
			handler.HandleReadiness(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

			assert.Equal(t, tt.expectedStatus, w.Code)

			var resp HealthResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			assert.Equal(t, tt.expectedState, resp.Status)
			assert.Equal(t, tt.expectedDB, resp.Checks["database"])
			assert.NotEmpty(t, resp.Timestamp)
		})
	}
}
