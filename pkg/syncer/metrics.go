package syncer

import (
	"github.com/fairwaylabs/linksync/pkg/actions"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for delivery attempts and local state depth.
var (
	// actionsProcessed counts finished delivery attempts by outcome and type.
	// Labels:
	//   - status: "delivered", "retry", or "dropped"
	//   - type: "score", "photo", or "order"
	actionsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "linksync_actions_processed_total",
		Help: "The total number of processed queued actions",
	}, []string{"status", "type"})

	// deliveryDuration tracks round-service delivery latency in seconds.
	deliveryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "linksync_delivery_duration_seconds",
		Help:    "Duration of delivery attempts to the round service",
		Buckets: prometheus.DefBuckets,
	}, []string{"type"})

	// queueDepth tracks the number of actions in the pending queue.
	queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "linksync_queue_depth",
		Help: "Number of actions in the pending queue",
	})

	// cacheSize tracks mirrored records per entity type.
	cacheSize = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "linksync_cache_size",
		Help: "Number of mirrored records per entity type",
	}, []string{"type"})
)

// ObserveQueueDepth updates the pending-queue gauge.
func ObserveQueueDepth(n int) {
	queueDepth.Set(float64(n))
}

// ObserveCacheSize updates the mirror-size gauge for one entity type.
func ObserveCacheSize(t actions.Type, n int) {
	cacheSize.WithLabelValues(string(t)).Set(float64(n))
}
