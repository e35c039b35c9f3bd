// Package metrics exposes Prometheus instrumentation for the automation
// jobs and refunds.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for job items
const (
	OutcomeSucceeded = "succeeded"
	OutcomeSkipped   = "skipped"
	OutcomeFailed    = "failed"
)

// Metrics holds the collectors
type Metrics struct {
	JobRuns     *prometheus.CounterVec
	JobItems    *prometheus.CounterVec
	JobDuration *prometheus.HistogramVec
	Refunds     *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New creates the collectors and registers them with reg. A nil reg uses a
// fresh private registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{
		JobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kasa",
			Name:      "job_runs_total",
			Help:      "Automation job runs.",
		}, []string{"job"}),
		JobItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kasa",
			Name:      "job_items_total",
			Help:      "Entities processed by automation jobs, by outcome.",
		}, []string{"job", "outcome"}),
		JobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "kasa",
			Name:      "job_duration_seconds",
			Help:      "Automation job run duration.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"job"}),
		Refunds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kasa",
			Name:      "refunds_total",
			Help:      "Refund attempts, by outcome.",
		}, []string{"outcome"}),
		gatherer: reg,
	}

	reg.MustRegister(m.JobRuns, m.JobItems, m.JobDuration, m.Refunds)
	return m
}

// ObserveJob records one job run
func (m *Metrics) ObserveJob(job string, started time.Time, succeeded, skipped, failed int) {
	if m == nil {
		return
	}
	m.JobRuns.WithLabelValues(job).Inc()
	m.JobItems.WithLabelValues(job, OutcomeSucceeded).Add(float64(succeeded))
	m.JobItems.WithLabelValues(job, OutcomeSkipped).Add(float64(skipped))
	m.JobItems.WithLabelValues(job, OutcomeFailed).Add(float64(failed))
	m.JobDuration.WithLabelValues(job).Observe(time.Since(started).Seconds())
}

// ObserveRefund records one refund attempt
func (m *Metrics) ObserveRefund(outcome string) {
	if m == nil {
		return
	}
	m.Refunds.WithLabelValues(outcome).Inc()
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
