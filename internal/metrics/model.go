package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Model backend Prometheus metrics.
var (
	ModelRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docscan",
			Name:      "model_requests_total",
			Help:      "Total number of model generation requests",
		},
		[]string{"backend", "model", "status"},
	)

	ModelRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docscan",
			Name:      "model_request_duration_seconds",
			Help:      "Model generation request duration in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 60, 120},
		},
		[]string{"backend", "model"},
	)

	ModelTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docscan",
			Name:      "model_tokens_total",
			Help:      "Total model tokens consumed",
		},
		[]string{"backend", "model", "type"}, // "prompt" / "completion"
	)

	ModelErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docscan",
			Name:      "model_errors_total",
			Help:      "Total model generation errors",
		},
		[]string{"backend", "model", "error_type"},
	)

	ResponseCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docscan",
			Name:      "response_cache_total",
			Help:      "Model response cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)
)

var modelMetricsOnce sync.Once

// RegisterModelMetrics registers Prometheus model metrics. Safe to call repeatedly and concurrently.
func RegisterModelMetrics() {
	modelMetricsOnce.Do(func() {
		prometheus.MustRegister(ModelRequestsTotal)
		prometheus.MustRegister(ModelRequestDuration)
		prometheus.MustRegister(ModelTokensTotal)
		prometheus.MustRegister(ModelErrorsTotal)
		prometheus.MustRegister(ResponseCacheTotal)
	})
}
