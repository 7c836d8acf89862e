// Package metrics exposes engine counters through Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "paired"

// Collector groups the engine's metrics. A nil *Collector is valid and
// records nothing.
type Collector struct {
	Registrations   *prometheus.CounterVec
	Queries         prometheus.Counter
	Recommendations prometheus.Counter
	Usage           *prometheus.CounterVec
	Feedback        *prometheus.CounterVec
	Adjustments     prometheus.Counter
	Flushes         prometheus.Counter
	FlushErrors     prometheus.Counter
	FlushLatency    prometheus.Histogram
	Patterns        prometheus.Gauge
}

// New registers the engine metrics with reg. A nil reg uses a private
// registry so repeated construction never collides.
func New(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Collector{
		Registrations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "patterns",
			Name:      "registrations_total",
			Help:      "Pattern registrations by result (created or merged)",
		}, []string{"result"}),
		Queries: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "patterns",
			Name:      "queries_total",
			Help:      "Pattern match queries",
		}),
		Recommendations: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "patterns",
			Name:      "recommendations_total",
			Help:      "Recommendations returned to callers",
		}),
		Usage: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "patterns",
			Name:      "usage_total",
			Help:      "Recorded pattern usages by outcome",
		}, []string{"outcome"}),
		Feedback: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "delegation",
			Name:      "feedback_total",
			Help:      "Delegation feedback by specialist and success",
		}, []string{"specialist", "success"}),
		Adjustments: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "delegation",
			Name:      "auto_adjustments_total",
			Help:      "Trigger thresholds changed by auto-adjustment",
		}),
		Flushes: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "flushes_total",
			Help:      "Successful state flushes",
		}),
		FlushErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "flush_errors_total",
			Help:      "Failed state flushes",
		}),
		FlushLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "flush_latency_seconds",
			Help:      "Latency of a state flush",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
		Patterns: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "patterns",
			Name:      "stored",
			Help:      "Patterns currently held in memory",
		}),
	}
}

// Registered records one pattern registration.
func (c *Collector) Registered(created bool) {
	if c == nil {
		return
	}
	result := "merged"
	if created {
		result = "created"
	}
	c.Registrations.WithLabelValues(result).Inc()
}

// Queried records a match query and how many recommendations it produced.
func (c *Collector) Queried(recommendations int) {
	if c == nil {
		return
	}
	c.Queries.Inc()
	c.Recommendations.Add(float64(recommendations))
}

// Used records a pattern usage outcome.
func (c *Collector) Used(success bool) {
	if c == nil {
		return
	}
	c.Usage.WithLabelValues(outcome(success)).Inc()
}

// FeedbackRecorded records delegation feedback for a specialist.
func (c *Collector) FeedbackRecorded(specialist string, success bool) {
	if c == nil {
		return
	}
	c.Feedback.WithLabelValues(specialist, outcome(success)).Inc()
}

// Adjusted records n threshold changes.
func (c *Collector) Adjusted(n int) {
	if c == nil || n == 0 {
		return
	}
	c.Adjustments.Add(float64(n))
}

// Flushed records a flush attempt that started at start.
func (c *Collector) Flushed(start time.Time, err error) {
	if c == nil {
		return
	}
	c.FlushLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		c.FlushErrors.Inc()
		return
	}
	c.Flushes.Inc()
}

// SetPatterns sets the stored-patterns gauge.
func (c *Collector) SetPatterns(n int) {
	if c == nil {
		return
	}
	c.Patterns.Set(float64(n))
}

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
