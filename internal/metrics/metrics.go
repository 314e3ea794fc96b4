// Package metrics exposes build and graph metrics for Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"maizekg/internal/graph"
	"maizekg/internal/summary"
)

const namespace = "maizekg"

type Metrics struct {
	registry *prometheus.Registry

	TriplesTotal       *prometheus.CounterVec
	UpsertAttempts     prometheus.Histogram
	UpsertDuration     *prometheus.HistogramVec
	RowsSkipped        prometheus.Counter
	BuildsTotal        *prometheus.CounterVec
	GraphNodes         *prometheus.GaugeVec
	GraphRelationships prometheus.Gauge
	Coverage           *prometheus.GaugeVec
}

// New builds the metric set on a private registry, plus Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		TriplesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "upsert",
				Name:      "triples_total",
				Help:      "Triples attempted by the upserter, by outcome",
			},
			[]string{"outcome"},
		),

		UpsertAttempts: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "upsert",
				Name:      "attempts",
				Help:      "Store attempts needed per triple",
				Buckets:   []float64{1, 2, 3, 5, 8},
			},
		),

		UpsertDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "upsert",
				Name:      "duration_seconds",
				Help:      "Time spent writing one triple, including retries",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),

		RowsSkipped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "source",
				Name:      "rows_skipped_total",
				Help:      "Malformed input rows dropped by sources",
			},
		),

		BuildsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "build",
				Name:      "runs_total",
				Help:      "Finished graph builds, by status",
			},
			[]string{"status"},
		),

		GraphNodes: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "graph",
				Name:      "nodes",
				Help:      "Nodes per entity type at the last report",
			},
			[]string{"type"},
		),

		GraphRelationships: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "graph",
				Name:      "relationships",
				Help:      "Relationships at the last report",
			},
		),

		Coverage: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "graph",
				Name:      "coverage_percent",
				Help:      "Coverage metrics at the last report",
			},
			[]string{"metric"},
		),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.TriplesTotal,
		m.UpsertAttempts,
		m.UpsertDuration,
		m.RowsSkipped,
		m.BuildsTotal,
		m.GraphNodes,
		m.GraphRelationships,
		m.Coverage,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in Prometheus text or OpenMetrics format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// ObserveTriple records one upserted triple.
func (m *Metrics) ObserveTriple(outcome string, attempts int, elapsed time.Duration) {
	m.TriplesTotal.WithLabelValues(outcome).Inc()
	m.UpsertAttempts.Observe(float64(attempts))
	m.UpsertDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

func (m *Metrics) RecordRowsSkipped(n int) {
	if n > 0 {
		m.RowsSkipped.Add(float64(n))
	}
}

func (m *Metrics) RecordBuild(status string) {
	m.BuildsTotal.WithLabelValues(status).Inc()
}

// RecordReport publishes graph-level gauges from a summary report.
func (m *Metrics) RecordReport(r summary.Report) {
	for _, t := range graph.EntityTypes {
		m.GraphNodes.WithLabelValues(string(t)).Set(float64(r.ByType[t]))
	}
	m.GraphRelationships.Set(float64(r.TotalRelationships))
	for name, pct := range r.Coverage {
		m.Coverage.WithLabelValues(name).Set(pct)
	}
}
