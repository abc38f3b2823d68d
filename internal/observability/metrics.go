package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ssebop_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for the ETL pipeline.
type Metrics struct {
	ScenesConsumed   prometheus.Counter
	ResultsProduced  prometheus.Counter
	TransformErrors  prometheus.Counter
	TransformRetries prometheus.Counter
	PipelineRunning  prometheus.Gauge

	// Batch processing metrics.
	BatchSize               prometheus.Histogram
	BatchProcessingDuration prometheus.Histogram

	// Model metrics.
	TcorrTier    *prometheus.CounterVec // labels: index={0,1,2,3}
	TmaxFallback *prometheus.CounterVec // labels: source

	// Raster engine metrics.
	EngineRequests *prometheus.CounterVec   // labels: op={sample,coverage}, outcome={success,masked,not_found,error}
	EngineDuration *prometheus.HistogramVec // labels: op={sample,coverage}
	CoverageCache  *prometheus.CounterVec   // labels: result={hit,miss}
	TcorrCache     *prometheus.CounterVec   // labels: result={hit,miss,error}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.ScenesConsumed,
		m.ResultsProduced,
		m.TransformErrors,
		m.TransformRetries,
		m.PipelineRunning,
		m.BatchSize,
		m.BatchProcessingDuration,
		m.TcorrTier,
		m.TmaxFallback,
		m.EngineRequests,
		m.EngineDuration,
		m.CoverageCache,
		m.TcorrCache,
	)
	return m
}

// NewUnregisteredMetrics creates Metrics that are not exported, for one-shot
// commands that share instrumented components with the service.
func NewUnregisteredMetrics() *Metrics {
	return newMetrics()
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return NewUnregisteredMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		ScenesConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scenes_consumed_total",
			Help:      "Total scene requests read from the source topic.",
		}),
		ResultsProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "results_produced_total",
			Help:      "Total ETf results written to the sink topic.",
		}),
		TransformErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transform_errors_total",
			Help:      "Total scene requests skipped as invalid.",
		}),
		TransformRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transform_retries_total",
			Help:      "Total scene request attempts retried after an engine or Tcorr store failure.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 when the pipeline is active, 0 when shut down.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      "Number of scene requests per batch extracted from Kafka.",
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50, 75, 100},
		}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_processing_duration_seconds",
			Help:      "Duration of a complete batch extract-transform-load cycle.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		TcorrTier: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tcorr_tier_total",
			Help:      "Resolved Tcorr values by fallback tier index.",
		}, []string{"index"}),
		TmaxFallback: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tmax_median_fallback_total",
			Help:      "Daily Tmax requests served from the median collection.",
		}, []string{"source"}),
		EngineRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "engine_requests_total",
			Help:      "Raster engine requests by operation and outcome.",
		}, []string{"op", "outcome"}),
		EngineDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "engine_request_duration_seconds",
			Help:      "Raster engine request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"op"}),
		CoverageCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coverage_cache_total",
			Help:      "Daily collection coverage cache lookups by result.",
		}, []string{"result"}),
		TcorrCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tcorr_cache_total",
			Help:      "Tcorr cache lookups by result.",
		}, []string{"result"}),
	}
}
