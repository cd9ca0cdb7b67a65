package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quill_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// CacheLookups counts cache lookups by prefix and result (hit or miss).
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quill_cache_lookups_total",
		Help: "Cache lookups by key prefix and result",
	}, []string{"prefix", "result"})

	// DatabaseQueryLatency records database query latency by operation and collection.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "quill_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "collection"})

	// ImageStoreOperations counts remote image store calls by operation and outcome.
	ImageStoreOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quill_image_store_operations_total",
		Help: "Remote image store operations by operation and outcome",
	}, []string{"operation", "outcome"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, collection string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, collection).Observe(time.Since(start).Seconds())
	}
}

// RecordCacheLookup increments the hit or miss counter for prefix.
func RecordCacheLookup(prefix string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	CacheLookups.WithLabelValues(prefix, result).Inc()
}

// RecordImageStoreOperation increments the image store counter.
func RecordImageStoreOperation(operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	ImageStoreOperations.WithLabelValues(operation, outcome).Inc()
}
