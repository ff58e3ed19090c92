// Package metrics exposes Prometheus metrics for allocation generation and reporting.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry is the application registry served on /metrics.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

// GenerationRuns counts allocation generation runs by outcome (ok, empty, error).
var GenerationRuns = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "staffline",
	Subsystem: "generation",
	Name:      "runs_total",
	Help:      "Allocation generation runs by outcome",
}, []string{"outcome"})

var GenerationDurationSeconds = factory.NewHistogram(prometheus.HistogramOpts{
	Namespace: "staffline",
	Subsystem: "generation",
	Name:      "duration_seconds",
	Help:      "Time taken to regenerate the allocations of one release",
	Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
})

var AllocationsWritten = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "staffline",
	Subsystem: "generation",
	Name:      "allocations_written_total",
	Help:      "Allocation rows inserted by generation, by phase type",
}, []string{"phase_type"})

// ShortfallDays tracks effort days that generation could not cover, by reason.
var ShortfallDays = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "staffline",
	Subsystem: "generation",
	Name:      "shortfall_days_total",
	Help:      "Effort days left uncovered by generation, by reason",
}, []string{"reason"})

// ConflictWeeks is the number of overloaded (resource, week) pairs seen by the last conflict scan.
var ConflictWeeks = factory.NewGauge(prometheus.GaugeOpts{
	Namespace: "staffline",
	Subsystem: "conflicts",
	Name:      "weeks",
	Help:      "Overloaded resource-weeks found by the most recent conflict scan",
})

var ReportRequests = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "staffline",
	Subsystem: "reports",
	Name:      "requests_total",
	Help:      "Report computations by kind",
}, []string{"kind"})

// WebhookDeliveries counts audit event deliveries to webhooks by outcome (ok, error).
var WebhookDeliveries = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "staffline",
	Subsystem: "webhooks",
	Name:      "deliveries_total",
	Help:      "Audit event deliveries to webhooks by outcome",
}, []string{"outcome"})
