package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects pipeline metrics
type Metrics struct {
	// Source fetching
	FetchErrors  *prometheus.CounterVec
	FetchLatency *prometheus.HistogramVec
	SourcesUsed  prometheus.Gauge

	// Aggregation
	OutliersRemoved   prometheus.Counter
	AggregatedPrice   prometheus.Gauge
	AggregationCycles *prometheus.CounterVec

	// Historical ingestion
	HistoryPointsUpserted *prometheus.CounterVec
	HistoryCycleErrors    *prometheus.CounterVec

	// Volatility
	Volatility *prometheus.GaugeVec

	// On-chain submission
	Submissions       *prometheus.CounterVec
	SubmissionSkipped *prometheus.CounterVec
}

// NewMetrics creates and registers the pipeline metric collectors.
func NewMetrics() *Metrics {
	return &Metrics{
		FetchErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "oracle_source_fetch_errors_total",
			Help: "Number of failed price source fetches",
		}, []string{"source"}),
		FetchLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "oracle_source_fetch_duration_seconds",
			Help:    "Price source fetch latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"source"}),
		SourcesUsed: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "oracle_sources_used",
			Help: "Number of sources contributing to the latest aggregated price",
		}),
		OutliersRemoved: promauto.NewCounter(prometheus.CounterOpts{
			Name: "oracle_outliers_removed_total",
			Help: "Number of quotes rejected by the IQR filter",
		}),
		AggregatedPrice: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "oracle_aggregated_price_usd",
			Help: "Latest aggregated BTC price",
		}),
		AggregationCycles: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "oracle_aggregation_cycles_total",
			Help: "Aggregation cycles by result",
		}, []string{"result"}),
		HistoryPointsUpserted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "oracle_history_points_upserted_total",
			Help: "Historical price points written, by provider",
		}, []string{"provider"}),
		HistoryCycleErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "oracle_history_cycle_errors_total",
			Help: "Historical ingestion cycle failures, by mode",
		}, []string{"mode"}),
		Volatility: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "oracle_annualized_volatility",
			Help: "Latest annualized volatility, by timeframe in days",
		}, []string{"timeframe"}),
		Submissions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "oracle_submissions_total",
			Help: "On-chain submission attempts, by status",
		}, []string{"status"}),
		SubmissionSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "oracle_submissions_skipped_total",
			Help: "Submission evaluations that decided not to update, by reason",
		}, []string{"reason"}),
	}
}
