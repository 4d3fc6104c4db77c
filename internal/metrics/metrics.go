// Package metrics defines the Prometheus collectors exported by reviewxai.
package metrics

import (
	"context"
	"database/sql"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/zombar/reviewxai/internal/models"
	"github.com/zombar/reviewxai/internal/tracing"
)

// BusinessMetrics tracks analysis outcomes
type BusinessMetrics struct {
	AnalysesTotal     *prometheus.CounterVec
	AnalysisDuration  *prometheus.HistogramVec
	FlagsPerAnalysis  prometheus.Histogram
	AgreementTotal    *prometheus.CounterVec
	ClassifierErrors  *prometheus.CounterVec
	ThresholdUpdates  prometheus.Counter
	BatchJobsEnqueued prometheus.Counter
}

// NewBusinessMetrics registers business metrics with reg, or the default
// registerer when reg is nil
func NewBusinessMetrics(namespace string, reg prometheus.Registerer) *BusinessMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &BusinessMetrics{
		AnalysesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Reviews analyzed, by source and rule verdict",
		}, []string{"source", "verdict"}),
		AnalysisDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "Time spent analyzing one review",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5, 30},
		}, []string{"mode"}),
		FlagsPerAnalysis: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "flags_per_analysis",
			Help:      "Number of rule breaches per analysis",
			Buckets:   prometheus.LinearBuckets(0, 1, 10),
		}),
		AgreementTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agreement_total",
			Help:      "Hybrid analyses by whether classifier and rules agree",
		}, []string{"agreement"}),
		ClassifierErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classifier_errors_total",
			Help:      "Primary classifier failures",
		}, []string{"kind"}),
		ThresholdUpdates: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "threshold_updates_total",
			Help:      "Threshold configuration changes",
		}),
		BatchJobsEnqueued: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_jobs_enqueued_total",
			Help:      "Reviews queued for asynchronous analysis",
		}),
	}
}

// RecordAnalysis records one rule-engine result
func (m *BusinessMetrics) RecordAnalysis(source string, result *models.AnalysisResult) {
	if m == nil || result == nil {
		return
	}
	m.AnalysesTotal.WithLabelValues(source, string(result.Verdict)).Inc()
	m.FlagsPerAnalysis.Observe(float64(result.FlagCount))
}

// RecordHybrid records one reconciled result
func (m *BusinessMetrics) RecordHybrid(source string, result *models.HybridResult) {
	if m == nil || result == nil {
		return
	}
	m.RecordAnalysis(source, result.Rules)
	if result.Agreement {
		m.AgreementTotal.WithLabelValues("agree").Inc()
	} else {
		m.AgreementTotal.WithLabelValues("disagree").Inc()
	}
}

// ObserveDurationWithExemplar records d on h, attaching the trace id from
// ctx as an exemplar when there is one
func (m *BusinessMetrics) ObserveDurationWithExemplar(ctx context.Context, h *prometheus.HistogramVec, d time.Duration, labels ...string) {
	if m == nil {
		return
	}
	observer := h.WithLabelValues(labels...)
	if traceID := tracing.TraceIDFromContext(ctx); traceID != "" {
		if eo, ok := observer.(prometheus.ExemplarObserver); ok {
			eo.ObserveWithExemplar(d.Seconds(), prometheus.Labels{"trace_id": traceID})
			return
		}
	}
	observer.Observe(d.Seconds())
}

// DatabaseMetrics exposes connection pool statistics
type DatabaseMetrics struct {
	OpenConnections prometheus.Gauge
	InUse           prometheus.Gauge
	Idle            prometheus.Gauge
	WaitCount       prometheus.Gauge
	WaitDuration    prometheus.Gauge
}

// NewDatabaseMetrics registers pool gauges with reg, or the default
// registerer when reg is nil
func NewDatabaseMetrics(namespace string, reg prometheus.Registerer) *DatabaseMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	gauge := func(name, help string) prometheus.Gauge {
		return factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      name,
			Help:      help,
		})
	}

	return &DatabaseMetrics{
		OpenConnections: gauge("open_connections", "Established connections"),
		InUse:           gauge("in_use_connections", "Connections currently in use"),
		Idle:            gauge("idle_connections", "Idle connections"),
		WaitCount:       gauge("wait_count", "Total connections waited for"),
		WaitDuration:    gauge("wait_duration_seconds", "Total time blocked waiting for a connection"),
	}
}

// UpdateDBStats copies the pool statistics of db into the gauges
func (m *DatabaseMetrics) UpdateDBStats(db *sql.DB) {
	if m == nil || db == nil {
		return
	}
	stats := db.Stats()
	m.OpenConnections.Set(float64(stats.OpenConnections))
	m.InUse.Set(float64(stats.InUse))
	m.Idle.Set(float64(stats.Idle))
	m.WaitCount.Set(float64(stats.WaitCount))
	m.WaitDuration.Set(stats.WaitDuration.Seconds())
}
