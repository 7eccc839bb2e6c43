package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instruments for the feed, ingest pipeline and store. All are
// registered on the default registry and exposed via /metrics.
var (
	FeedPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "anonchat_feed_published_total",
		Help: "Events published to the live feed broker, by entity.",
	}, []string{"entity"})

	FeedDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "anonchat_feed_dropped_total",
		Help: "Events dropped because a subscriber buffer was full.",
	})

	FeedSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "anonchat_feed_subscribers",
		Help: "Currently attached feed subscribers.",
	})

	IngestDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "anonchat_ingest_queue_depth",
		Help: "Items waiting in the ingest queue.",
	})

	IngestApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "anonchat_ingest_applied_total",
		Help: "Ops applied to the store by the ingest worker, by type.",
	}, []string{"type"})

	IngestRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "anonchat_ingest_rejected_total",
		Help: "Ops rejected because the ingest queue was full.",
	})

	StoreDiskBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "anonchat_store_disk_bytes",
		Help: "Best-effort on-disk size of the pebble directory.",
	})

	RetentionPurged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "anonchat_retention_purged_total",
		Help: "Rows purged by the retention sweeper.",
	})
)
