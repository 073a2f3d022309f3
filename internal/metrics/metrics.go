package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Event ingestion metrics
	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crashgate_ingest_events_total",
			Help: "Total number of events received",
		},
		[]string{"endpoint", "status"},
	)

	EventBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "crashgate_ingest_event_bytes_total",
			Help: "Total bytes of event data received",
		},
	)

	DuplicateEvents = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "crashgate_ingest_duplicate_events_total",
			Help: "Total number of events rejected as duplicates",
		},
	)

	DroppedItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crashgate_ingest_dropped_items_total",
			Help: "Total number of envelope items dropped",
		},
		[]string{"type"},
	)

	// Throttling metrics
	ThrottledRequests = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "crashgate_ingest_throttled_requests_total",
			Help: "Total number of requests rejected by project throttling",
		},
	)

	// Queue metrics
	EnqueueDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "crashgate_ingest_enqueue_duration_seconds",
			Help:    "Duration of event enqueue operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	EnqueueErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "crashgate_ingest_enqueue_errors_total",
			Help: "Total number of enqueue errors",
		},
	)

	// Dedupe metrics
	DedupeErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "crashgate_ingest_dedupe_errors_total",
			Help: "Total number of dedupe store errors",
		},
	)
)
