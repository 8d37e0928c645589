package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "depmatrix_stage_seconds",
		Help:    "Time spent completing a build stage.",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})

	ParsingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "depmatrix_parsing_seconds",
		Help:    "Time spent extracting imports from a source file.",
		Buckets: prometheus.DefBuckets,
	})

	ModulesTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "depmatrix_modules_total",
		Help: "Number of modules in the last published registry.",
	})

	ResolvedEdgesTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "depmatrix_resolved_edges_total",
		Help: "Number of resolved module-to-module edges in the last build.",
	})

	MemoLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "depmatrix_resolution_memo_lookups_total",
		Help: "Resolution memo lookups, by outcome (hit or miss).",
	}, []string{"outcome"})

	ExternalImportsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "depmatrix_external_imports_total",
		Help: "Import statements whose target is outside the analyzed packages.",
	})

	MatrixSize = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "depmatrix_matrix_size",
		Help: "Number of nodes in the matrix published for a depth.",
	}, []string{"depth"})

	BuildsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "depmatrix_builds_total",
		Help: "Completed full builds, by result.",
	}, []string{"result"})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "depmatrix_watcher_events_total",
		Help: "Total number of file system events received by the watcher.",
	})

	RebuildsThrottledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "depmatrix_rebuilds_throttled_total",
		Help: "Watch-triggered rebuilds delayed by the rebuild rate limiter.",
	})
)
