package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/upb/llm-router/services/audit"
	"github.com/upb/llm-router/services/routing"
)

// DispatchStatsSource exposes the dispatcher counters
type DispatchStatsSource interface {
	GetStats() routing.Stats
}

// AuditStatsSource exposes the audit recorder state
type AuditStatsSource interface {
	GetStats() audit.Stats
}

// dispatchCollector reads dispatcher and audit snapshots at scrape time
type dispatchCollector struct {
	dispatch DispatchStatsSource
	audit    AuditStatsSource

	dispatches    *prometheus.Desc
	fallbacks     *prometheus.Desc
	exhausted     *prometheus.Desc
	attempts      *prometheus.Desc
	lastLatency   *prometheus.Desc
	pendingEvents *prometheus.Desc
}

func newDispatchCollector(dispatch DispatchStatsSource, audit AuditStatsSource) *dispatchCollector {
	return &dispatchCollector{
		dispatch: dispatch,
		audit:    audit,
		dispatches: prometheus.NewDesc(
			namespace+"_dispatches_total",
			"Total number of dispatched completion requests",
			nil, nil),
		fallbacks: prometheus.NewDesc(
			namespace+"_fallbacks_total",
			"Dispatches answered by a model other than the first candidate",
			nil, nil),
		exhausted: prometheus.NewDesc(
			namespace+"_exhausted_total",
			"Dispatches where every candidate model failed",
			nil, nil),
		attempts: prometheus.NewDesc(
			namespace+"_model_attempts_total",
			"Backend calls per model and outcome",
			[]string{"model", "outcome"}, nil),
		lastLatency: prometheus.NewDesc(
			namespace+"_model_last_latency_seconds",
			"Latency of the most recent backend call per model",
			[]string{"model"}, nil),
		pendingEvents: prometheus.NewDesc(
			namespace+"_audit_pending_events",
			"Dispatch events waiting to be written",
			nil, nil),
	}
}

// Describe implements prometheus.Collector
func (c *dispatchCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.dispatches
	ch <- c.fallbacks
	ch <- c.exhausted
	ch <- c.attempts
	ch <- c.lastLatency
	ch <- c.pendingEvents
}

// Collect implements prometheus.Collector
func (c *dispatchCollector) Collect(ch chan<- prometheus.Metric) {
	if c.dispatch != nil {
		stats := c.dispatch.GetStats()
		ch <- prometheus.MustNewConstMetric(c.dispatches, prometheus.CounterValue, float64(stats.Dispatches))
		ch <- prometheus.MustNewConstMetric(c.fallbacks, prometheus.CounterValue, float64(stats.Fallbacks))
		ch <- prometheus.MustNewConstMetric(c.exhausted, prometheus.CounterValue, float64(stats.Exhausted))

		for model, ms := range stats.Models {
			ch <- prometheus.MustNewConstMetric(c.attempts, prometheus.CounterValue, float64(ms.Successes), model, "success")
			ch <- prometheus.MustNewConstMetric(c.attempts, prometheus.CounterValue, float64(ms.Failures), model, "failure")
			ch <- prometheus.MustNewConstMetric(c.lastLatency, prometheus.GaugeValue, ms.LastLatency.Seconds(), model)
		}
	}

	if c.audit != nil {
		ch <- prometheus.MustNewConstMetric(c.pendingEvents, prometheus.GaugeValue, float64(c.audit.GetStats().PendingEvents))
	}
}
