package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for the analysis engine.
type Metrics struct {
	AnalysesTotal      prometheus.Counter
	AnalysisErrors     prometheus.Counter
	AnalysisDuration   prometheus.Histogram
	SourceQueries      *prometheus.CounterVec
	SourceQueryErrors  *prometheus.CounterVec
	QueryCacheHits     prometheus.Counter
	QueryCacheMisses   prometheus.Counter
	ReportCacheHits    prometheus.Counter
	ReportsPublished   prometheus.Counter
	PublishErrorsTotal prometheus.Counter
}

// New registers the engine's metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		AnalysesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "detcover_analyses_total",
			Help: "Total number of coverage analyses performed",
		}),
		AnalysisErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "detcover_analysis_errors_total",
			Help: "Total number of analyses that failed before producing a report",
		}),
		AnalysisDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "detcover_analysis_duration_seconds",
			Help:    "End-to-end analysis duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		SourceQueries: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "detcover_source_queries_total",
			Help: "Total number of detection-source queries issued",
		}, []string{"source"}),
		SourceQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "detcover_source_query_errors_total",
			Help: "Total number of detection-source queries that failed",
		}, []string{"source"}),
		QueryCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "detcover_query_cache_hits_total",
			Help: "Total number of source queries served from the query cache",
		}),
		QueryCacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "detcover_query_cache_misses_total",
			Help: "Total number of source queries that missed the query cache",
		}),
		ReportCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "detcover_report_cache_hits_total",
			Help: "Total number of analyses served from the report cache",
		}),
		ReportsPublished: promauto.NewCounter(prometheus.CounterOpts{
			Name: "detcover_reports_published_total",
			Help: "Total number of reports published to the message bus",
		}),
		PublishErrorsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "detcover_publish_errors_total",
			Help: "Total number of report publish failures",
		}),
	}
}
