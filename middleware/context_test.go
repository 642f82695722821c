package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetRequestIDFromContext(ctx))
	assert.Nil(t, GetClaimsFromContext(ctx))

	ctx = WithRequestID(ctx, "req-1")
	ctx = WithClaims(ctx, &Claims{Sub: "svc"})
	assert.Equal(t, "req-1", GetRequestIDFromContext(ctx))
	assert.Equal(t, "svc", GetClaimsFromContext(ctx).Sub)
}

func TestRequestContext(t *testing.T) {
	t.Run("uses chi request id", func(t *testing.T) {
		var got string
		handler := chimw.RequestID(RequestContext(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = GetRequestIDFromContext(r.Context())
		})))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(chimw.RequestIDHeader, "upstream-id")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, "upstream-id", got)
		assert.Equal(t, "upstream-id", w.Header().Get("X-Request-ID"))
	})

	t.Run("generates id without chi", func(t *testing.T) {
		var got string
		handler := RequestContext(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = GetRequestIDFromContext(r.Context())
		}))

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		require.NotEmpty(t, got)
		assert.Equal(t, got, w.Header().Get("X-Request-ID"))
	})
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)

	handler := RequestContext(RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte("ok"))
	})))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))

	entries := logs.All()
	require.Len(t, entries, 2)

	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, int64(http.StatusOK), entries[0].ContextMap()["status"])
	assert.Equal(t, "/healthz", entries[0].ContextMap()["path"])
	assert.NotEmpty(t, entries[0].ContextMap()["request_id"])

	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, int64(http.StatusNotFound), entries[1].ContextMap()["status"])
}
