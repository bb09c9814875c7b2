package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "maize_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for the pipeline.
type Metrics struct {
	// Station ingestion.
	StationParses       prometheus.Counter
	StationCache        *prometheus.CounterVec // labels: result={hit,miss}
	StationFetches      *prometheus.CounterVec // labels: outcome={success,retry,error}
	RecordsDropped      *prometheus.CounterVec // labels: reason={element,window}
	ObservationsDropped *prometheus.CounterVec // labels: reason={missing,impossible_day,quality,synoptic}
	ObservationsKept    prometheus.Counter

	// Aggregation.
	SparseMonths *prometheus.CounterVec // labels: station
	NoDataCells  prometheus.Counter

	// Output.
	RowsWritten     *prometheus.CounterVec // labels: sink
	BuildDuration   prometheus.Histogram
	PipelineRunning prometheus.Gauge

	// Leave-one-out evaluation.
	PredictionWins  prometheus.Gauge
	PredictionYears prometheus.Gauge
}

func newMetrics(withHelp bool) *Metrics {
	help := func(s string) string {
		if withHelp {
			return s
		}
		return ""
	}
	return &Metrics{
		StationParses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "station_parses_total",
			Help:      help("Station files decoded and filtered."),
		}),
		StationCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "station_cache_total",
			Help:      help("Station cache lookups by result."),
		}, []string{"result"}),
		StationFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "station_fetches_total",
			Help:      help("Station file downloads by outcome."),
		}, []string{"outcome"}),
		RecordsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_dropped_total",
			Help:      help("Station-month records discarded by the filter, by reason."),
		}, []string{"reason"}),
		ObservationsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "observations_dropped_total",
			Help:      help("Day slots discarded by the filter, by reason."),
		}, []string{"reason"}),
		ObservationsKept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "observations_kept_total",
			Help:      help("Daily observations that passed the filter."),
		}),
		SparseMonths: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sparse_months_total",
			Help:      help("Station-month-element aggregates replaced by climatology."),
		}, []string{"station"}),
		NoDataCells: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "no_data_cells_total",
			Help:      help("Feature cells left empty because no observations exist even after fallback."),
		}),
		RowsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_written_total",
			Help:      help("Feature rows written, by sink."),
		}, []string{"sink"}),
		BuildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "build_duration_seconds",
			Help:      help("Duration of a full feature table build."),
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      help("1 while a pipeline run is in progress."),
		}),
		PredictionWins: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "prediction_wins",
			Help:      help("Years where the climate model beat the trend-only baseline."),
		}),
		PredictionYears: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "prediction_years",
			Help:      help("Years evaluated by leave-one-out cross-validation."),
		}),
	}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics(true)
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics(false)
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.StationParses,
		m.StationCache,
		m.StationFetches,
		m.RecordsDropped,
		m.ObservationsDropped,
		m.ObservationsKept,
		m.SparseMonths,
		m.NoDataCells,
		m.RowsWritten,
		m.BuildDuration,
		m.PipelineRunning,
		m.PredictionWins,
		m.PredictionYears,
	}
}
