// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"database/sql"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/frahmantamala/user-management/internal"
)

const namespace = "usermanagement"

var (
	// HTTPRequestDuration tracks HTTP request latency.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "route", "status_code"},
	)

	// DBPoolConnections tracks database connection pool state.
	DBPoolConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "pool_connections",
			Help:      "Number of database connections by state",
		},
		[]string{"state"},
	)

	userOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "users",
			Name:      "operations_total",
			Help:      "User aggregate operations by outcome",
		},
		[]string{"operation", "outcome"},
	)
)

// RecordUserOperation counts one service operation. The outcome label is
// "ok" or the lower-cased error type.
func RecordUserOperation(operation string, err error) {
	userOperations.WithLabelValues(operation, outcome(err)).Inc()
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	var appErr *internal.AppError
	if errors.As(err, &appErr) {
		switch appErr.Type {
		case internal.ErrorTypeValidation:
			return "validation_error"
		case internal.ErrorTypeNotFound:
			return "not_found"
		case internal.ErrorTypeConstraint:
			return "constraint_violation"
		case internal.ErrorTypeConsistency:
			return "consistency_error"
		}
	}
	return "storage_error"
}

// RecordDBPoolMetrics updates database pool metrics.
func RecordDBPoolMetrics(db *sql.DB) {
	stats := db.Stats()

	DBPoolConnections.WithLabelValues("in_use").Set(float64(stats.InUse))
	DBPoolConnections.WithLabelValues("idle").Set(float64(stats.Idle))
	DBPoolConnections.WithLabelValues("max").Set(float64(stats.MaxOpenConnections))
}
