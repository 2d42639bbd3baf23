package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ImagesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "imgindex",
		Name:      "images_processed_total",
		Help:      "Total number of uploads turned into image records",
	}, []string{"variant", "outcome"})

	DedupHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "imgindex",
		Name:      "dedup_hits_total",
		Help:      "Uploads linked to an existing canonical URL",
	}, []string{"source"})

	AnalysisDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "imgindex",
		Name:      "analysis_duration_seconds",
		Help:      "Duration of image analysis calls",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
	}, []string{"stage"})

	StoreDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "imgindex",
		Name:      "store_duration_seconds",
		Help:      "Duration of record store operations",
		Buckets:   prometheus.ExponentialBuckets(0.002, 2, 12),
	}, []string{"backend", "op"})

	SearchResults = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "imgindex",
		Name:      "search_results",
		Help:      "Number of records returned per search",
		Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
	})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "imgindex",
		Name:      "queue_depth",
		Help:      "Number of pending upload notifications in queue",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "imgindex",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "imgindex",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})
)
