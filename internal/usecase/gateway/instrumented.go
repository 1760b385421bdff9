package gateway

import (
	"context"
	"errors"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docscan/internal/domain"
	"github.com/kailas-cloud/docscan/internal/metrics"
)

// Instrumented wraps a Backend with Prometheus metrics and debug logging.
// Load and HealthCheck pass through to the inner backend when it has them.
type Instrumented struct {
	inner  domain.Backend
	logger *zap.Logger
}

// NewInstrumented wraps inner with observability.
func NewInstrumented(inner domain.Backend, logger *zap.Logger) *Instrumented {
	return &Instrumented{inner: inner, logger: logger}
}

// Name returns the inner backend name.
func (b *Instrumented) Name() string { return b.inner.Name() }

// Model returns the inner model identifier.
func (b *Instrumented) Model() string { return b.inner.Model() }

// Generate delegates to the inner backend and records the outcome.
func (b *Instrumented) Generate(ctx context.Context, img domain.Image, prompt string) (domain.Generation, error) {
	name, model := b.inner.Name(), b.inner.Model()
	start := time.Now()

	gen, err := b.inner.Generate(ctx, img, prompt)

	duration := time.Since(start)
	metrics.ModelRequestDuration.WithLabelValues(name, model).Observe(duration.Seconds())

	if err != nil {
		metrics.ModelRequestsTotal.WithLabelValues(name, model, "error").Inc()
		metrics.ModelErrorsTotal.WithLabelValues(name, model, ErrorType(err)).Inc()
		b.logger.Debug("Model request failed",
			zap.String("backend", name),
			zap.String("model", model),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return domain.Generation{}, err //nolint:wrapcheck // message becomes the error payload verbatim
	}

	metrics.ModelRequestsTotal.WithLabelValues(name, model, "success").Inc()
	if gen.PromptTokens > 0 {
		metrics.ModelTokensTotal.WithLabelValues(name, model, "prompt").Add(float64(gen.PromptTokens))
	}
	if gen.CompletionTokens > 0 {
		metrics.ModelTokensTotal.WithLabelValues(name, model, "completion").Add(float64(gen.CompletionTokens))
	}

	b.logger.Debug("Model request completed",
		zap.String("backend", name),
		zap.String("model", model),
		zap.Duration("duration", duration),
		zap.Int("prompt_tokens", gen.PromptTokens),
		zap.Int("completion_tokens", gen.CompletionTokens),
		zap.Int("response_len", len(gen.Text)),
		zap.Bool("cached", gen.Cached),
	)
	return gen, nil
}

// Load forwards to the inner backend.
func (b *Instrumented) Load(ctx context.Context) error {
	if l, ok := b.inner.(domain.Loader); ok {
		return l.Load(ctx) //nolint:wrapcheck // decorator passthrough
	}
	return nil
}

// HealthCheck forwards to the inner backend.
func (b *Instrumented) HealthCheck(ctx context.Context) error {
	if hc, ok := b.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx) //nolint:wrapcheck // decorator passthrough
	}
	return nil
}

// ErrorType classifies err for the error_type metric label.
func ErrorType(err error) string {
	var callErr *domain.CallError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.As(err, &callErr):
		return "http_" + strconv.Itoa(callErr.StatusCode)
	case errors.Is(err, domain.ErrModelUnavailable):
		return "model_unavailable"
	case errors.Is(err, domain.ErrConfiguration):
		return "configuration"
	case errors.Is(err, domain.ErrTransientCall):
		return "transport"
	default:
		return "unknown"
	}
}
