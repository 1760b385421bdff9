package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Pipeline Prometheus metrics.
var (
	PipelineRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docscan",
			Name:      "pipeline_runs_total",
			Help:      "Total number of pipeline invocations",
		},
		[]string{"mode", "status"},
	)

	PipelineRunDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docscan",
			Name:      "pipeline_run_duration_seconds",
			Help:      "Pipeline invocation duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1200},
		},
		[]string{"mode"},
	)

	PipelineUnitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docscan",
			Name:      "pipeline_units_total",
			Help:      "Page-units by phase and terminal state",
		},
		[]string{"phase", "state"},
	)

	RoutingDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docscan",
			Name:      "routing_decisions_total",
			Help:      "Page routing decisions",
		},
		[]string{"decision", "reason"},
	)

	PromptNeutralizedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "docscan",
			Name:      "prompt_neutralized_total",
			Help:      "Expert instructions neutralized as injection attempts",
		},
	)

	ParseOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docscan",
			Name:      "parse_outcomes_total",
			Help:      "Model response parse outcomes",
		},
		[]string{"key", "kind"},
	)
)

var pipelineMetricsOnce sync.Once

// RegisterPipelineMetrics registers Prometheus pipeline metrics. Safe to call repeatedly and concurrently.
func RegisterPipelineMetrics() {
	pipelineMetricsOnce.Do(func() {
		prometheus.MustRegister(PipelineRunsTotal)
		prometheus.MustRegister(PipelineRunDuration)
		prometheus.MustRegister(PipelineUnitsTotal)
		prometheus.MustRegister(RoutingDecisionsTotal)
		prometheus.MustRegister(PromptNeutralizedTotal)
		prometheus.MustRegister(ParseOutcomesTotal)
	})
}
