package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/llm-router/services/audit"
	"github.com/upb/llm-router/services/routing"
)

type fixedDispatchStats struct {
	stats routing.Stats
}

func (f fixedDispatchStats) GetStats() routing.Stats { return f.stats }

type fixedAuditStats struct {
	stats audit.Stats
}

func (f fixedAuditStats) GetStats() audit.Stats { return f.stats }

func TestDispatchCollector(t *testing.T) {
	dispatch := fixedDispatchStats{stats: routing.Stats{
		Dispatches: 7,
		Fallbacks:  2,
		Exhausted:  1,
		Models: map[string]routing.ModelStats{
			"a/x": {Successes: 5, Failures: 3, LastLatency: 1500 * time.Millisecond},
		},
	}}
	auditStats := fixedAuditStats{stats: audit.Stats{PendingEvents: 4}}

	c := newDispatchCollector(dispatch, auditStats)

	expected := `
# HELP llm_router_dispatches_total Total number of dispatched completion requests
# TYPE llm_router_dispatches_total counter
llm_router_dispatches_total 7
# HELP llm_router_exhausted_total Dispatches where every candidate model failed
# TYPE llm_router_exhausted_total counter
llm_router_exhausted_total 1
# HELP llm_router_fallbacks_total Dispatches answered by a model other than the first candidate
# TYPE llm_router_fallbacks_total counter
llm_router_fallbacks_total 2
# HELP llm_router_model_attempts_total Backend calls per model and outcome
# TYPE llm_router_model_attempts_total counter
llm_router_model_attempts_total{model="a/x",outcome="failure"} 3
llm_router_model_attempts_total{model="a/x",outcome="success"} 5
# HELP llm_router_model_last_latency_seconds Latency of the most recent backend call per model
# TYPE llm_router_model_last_latency_seconds gauge
llm_router_model_last_latency_seconds{model="a/x"} 1.5
# HELP llm_router_audit_pending_events Dispatch events waiting to be written
# TYPE llm_router_audit_pending_events gauge
llm_router_audit_pending_events 4
`
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected)))
}

func TestDispatchCollector_NilSources(t *testing.T) {
	c := newDispatchCollector(nil, nil)
	assert.Equal(t, 0, testutil.CollectAndCount(c))
}

func TestMetrics_Middleware(t *testing.T) {
	m := NewMetrics(nil, nil)

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/v1/dispatches/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	for _, path := range []string{"/api/v1/dispatches/1", "/api/v1/dispatches/2", "/healthz"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestCount.WithLabelValues("GET", "/api/v1/dispatches/{id}", "404")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestCount.WithLabelValues("GET", "/healthz", "200")))
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics(fixedDispatchStats{stats: routing.Stats{Dispatches: 3}}, nil)

	ts := httptest.NewServer(m.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "llm_router_dispatches_total 3")
	assert.Contains(t, string(body), "go_goroutines")
}
