package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "desal_map"

// Metrics holds the Prometheus counters, histograms, and gauges for the map pipeline.
type Metrics struct {
	// Request-level metrics.
	PlotRequests     *prometheus.CounterVec   // labels: outcome={success,upstream_error,error}
	PipelineFailures *prometheus.CounterVec   // labels: stage
	StageDuration    *prometheus.HistogramVec // labels: stage

	// Upstream fetch metrics.
	FetchRequests *prometheus.CounterVec // labels: outcome={success,error,circuit_open,canceled}
	FetchDuration prometheus.Histogram

	// Data quality metrics.
	PlantsParsed        prometheus.Gauge
	CapacityRejected    prometheus.Counter
	UnmatchedAggregates prometheus.Gauge
	EmptyGeometries     prometheus.Gauge

	// Geometry cache metrics.
	GeometryCache *prometheus.CounterVec // labels: result={hit,miss}

	// Aggregate publishing metrics.
	MessagesProduced prometheus.Counter
	PublishErrors    prometheus.Counter
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsWithRegistry creates metrics registered with reg. One-shot tools
// pass a private registry since nothing scrapes them.
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	m := newMetrics()
	reg.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics without registering them to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		PlotRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plot_requests_total",
			Help:      "Plot page requests by outcome.",
		}, []string{"outcome"}),
		PipelineFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_failures_total",
			Help:      "Pipeline runs aborted, by failing stage.",
		}, []string{"stage"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}, []string{"stage"}),
		FetchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_requests_total",
			Help:      "Source page fetches by outcome.",
		}, []string{"outcome"}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Source page fetch duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
		}),
		PlantsParsed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "plants_parsed",
			Help:      "Plant rows kept by the most recent run.",
		}),
		CapacityRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capacity_rejected_total",
			Help:      "Plant rows dropped because their capacity could not be parsed.",
		}),
		UnmatchedAggregates: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "unmatched_aggregates",
			Help:      "Countries in the most recent run with no boundary geometry.",
		}),
		EmptyGeometries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "empty_geometries",
			Help:      "Boundary rows in the most recent run without plant statistics.",
		}),
		GeometryCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geometry_cache_total",
			Help:      "Geometry cache lookups by result.",
		}, []string{"result"}),
		MessagesProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_produced_total",
			Help:      "Aggregate messages written to the sink topic.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Failed aggregate publish attempts.",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.PlotRequests,
		m.PipelineFailures,
		m.StageDuration,
		m.FetchRequests,
		m.FetchDuration,
		m.PlantsParsed,
		m.CapacityRejected,
		m.UnmatchedAggregates,
		m.EmptyGeometries,
		m.GeometryCache,
		m.MessagesProduced,
		m.PublishErrors,
	}
}
