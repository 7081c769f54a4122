// Package metrics provides Prometheus metrics for agentfs backends.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Backend operation metrics
	opDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agentfs_op_duration_seconds",
			Help:    "Backend operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "op"},
	)

	opsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentfs_ops_total",
			Help: "Total backend operations",
		},
		[]string{"backend", "op", "status"},
	)

	// Content transfer metrics
	contentBytesDownloaded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agentfs_content_bytes_downloaded_total",
			Help: "Total bytes returned by download operations",
		},
	)

	contentBytesUploaded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agentfs_content_bytes_uploaded_total",
			Help: "Total bytes accepted by write and upload operations",
		},
	)

	// S3 metrics
	s3OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agentfs_s3_operation_duration_seconds",
			Help:    "S3 operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	s3OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentfs_s3_operations_total",
			Help: "Total S3 operations",
		},
		[]string{"operation", "status"},
	)

	// Database metrics
	dbQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agentfs_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"query"},
	)

	dbConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "agentfs_db_connections_open",
			Help: "Number of open database connections",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordOp records one backend operation.
func RecordOp(backend, op string, duration time.Duration, success bool) {
	opDuration.WithLabelValues(backend, op).Observe(duration.Seconds())
	status := "success"
	if !success {
		status = "error"
	}
	opsTotal.WithLabelValues(backend, op, status).Inc()
}

// RecordBytesDownloaded adds to the download byte counter.
func RecordBytesDownloaded(bytes int64) {
	contentBytesDownloaded.Add(float64(bytes))
}

// RecordBytesUploaded adds to the upload byte counter.
func RecordBytesUploaded(bytes int64) {
	contentBytesUploaded.Add(float64(bytes))
}

// RecordS3Operation records an S3 operation.
func RecordS3Operation(operation string, duration time.Duration, success bool) {
	s3OperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
	status := "success"
	if !success {
		status = "error"
	}
	s3OperationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordDBQuery records a database query duration.
func RecordDBQuery(query string, duration time.Duration) {
	dbQueryDuration.WithLabelValues(query).Observe(duration.Seconds())
}

// SetDBConnectionsOpen sets the number of open database connections.
func SetDBConnectionsOpen(count int) {
	dbConnectionsOpen.Set(float64(count))
}
