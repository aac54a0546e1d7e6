// metrics — Prometheus-метрики auth-сервиса.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Значения label result, кроме кодов доменных ошибок.
const (
	ResultOK       = "ok"
	ResultInternal = "internal"
)

var (
	// AuthOperations — исходы операций жизненного цикла сессии.
	AuthOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fitness_auth_operations_total",
			Help: "Total number of session lifecycle operations by result",
		},
		[]string{"operation", "result"},
	)

	// RotationConflicts — ротации, проигравшие условную запись refresh-токена.
	RotationConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fitness_auth_rotation_conflicts_total",
			Help: "Total number of refresh rotations rejected by the conditional write",
		},
	)

	// SessionsPurged — refresh-токены, очищенные фоновой задачей.
	SessionsPurged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fitness_auth_sessions_purged_total",
			Help: "Total number of expired refresh tokens cleared by the janitor",
		},
	)

	// HTTPRequestDuration — длительность HTTP-запросов.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fitness_auth_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

// RecordAuth увеличивает счётчик операции с указанным исходом.
func RecordAuth(operation, result string) {
	AuthOperations.WithLabelValues(operation, result).Inc()
}
