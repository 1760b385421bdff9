package docscan

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// sdkMetrics are registered on the caller's registerer, never the global one.
type sdkMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	values     prometheus.Counter
	pages      *prometheus.CounterVec
}

func newSDKMetrics(reg prometheus.Registerer) (*sdkMetrics, error) {
	m := &sdkMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docscan",
			Subsystem: "sdk",
			Name:      "operations_total",
			Help:      "SDK calls by operation and status.",
		}, []string{"operation", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "docscan",
			Subsystem: "sdk",
			Name:      "operation_duration_seconds",
			Help:      "SDK call duration in seconds.",
			Buckets:   []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"operation"}),
		values: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "docscan",
			Subsystem: "sdk",
			Name:      "values_extracted_total",
			Help:      "Section values returned by Extract.",
		}),
		pages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docscan",
			Subsystem: "sdk",
			Name:      "pages_total",
			Help:      "Pages seen by Extract by outcome.",
		}, []string{"outcome"}), // extracted / excluded / failed / skipped
	}
	if err := registerOrReuse(reg, &m.operations); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.duration); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.values); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.pages); err != nil {
		return nil, err
	}
	return m, nil
}

// registerOrReuse registers a collector or adopts the one already registered,
// so several clients can share a registry.
func registerOrReuse[T prometheus.Collector](reg prometheus.Registerer, c *T) error {
	err := reg.Register(*c)
	if err == nil {
		return nil
	}
	var are prometheus.AlreadyRegisteredError
	if !errors.As(err, &are) {
		return fmt.Errorf("docscan: register metric: %w", err)
	}
	existing, ok := are.ExistingCollector.(T)
	if !ok {
		return fmt.Errorf("docscan: metric already registered with incompatible type: %T", are.ExistingCollector)
	}
	*c = existing
	return nil
}

// observer logs and counts SDK calls. A nil observer is a no-op.
type observer struct {
	logger  *slog.Logger
	metrics *sdkMetrics
}

func newObserver(logger *slog.Logger, reg prometheus.Registerer) (*observer, error) {
	o := &observer{logger: logger}
	if reg != nil {
		m, err := newSDKMetrics(reg)
		if err != nil {
			return nil, err
		}
		o.metrics = m
	}
	return o, nil
}

func (o *observer) observe(op string, start time.Time, err error) {
	if o == nil {
		return
	}
	dur := time.Since(start)

	if o.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		o.metrics.operations.WithLabelValues(op, status).Inc()
		o.metrics.duration.WithLabelValues(op).Observe(dur.Seconds())
	}

	if o.logger == nil {
		return
	}
	if err != nil {
		o.logger.Warn("docscan call failed", "op", op, "duration", dur, "error", err)
		return
	}
	o.logger.Debug("docscan call completed", "op", op, "duration", dur)
}

// observeReport records the outcome of a successful Extract.
func (o *observer) observeReport(rep Report) {
	if o == nil {
		return
	}
	st := rep.Stats
	if o.metrics != nil {
		o.metrics.values.Add(float64(rep.TotalValues()))
		o.metrics.pages.WithLabelValues("extracted").Add(float64(st.Extracted))
		o.metrics.pages.WithLabelValues("excluded").Add(float64(st.Excluded))
		o.metrics.pages.WithLabelValues("failed").Add(float64(st.Failed))
		o.metrics.pages.WithLabelValues("skipped").Add(float64(st.Skipped))
	}
	if o.logger != nil && (st.Failed > 0 || st.DocumentsFailed > 0) {
		o.logger.Warn("docscan run had failures",
			"run_id", rep.RunID,
			"pages_failed", st.Failed,
			"documents_failed", st.DocumentsFailed,
		)
	}
}
