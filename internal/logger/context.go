package logger

import (
	"context"

	"go.uber.org/zap"
)

type loggerKey struct{}

// ContextWithLogger returns ctx carrying l. Request and run loggers travel this way.
func ContextWithLogger(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// FromContextOr returns the logger carried by ctx, then fallback, then a no-op logger.
func FromContextOr(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	if l, _ := ctx.Value(loggerKey{}).(*zap.Logger); l != nil {
		return l
	}
	if fallback != nil {
		return fallback
	}
	return zap.NewNop()
}

// FromContext never returns nil.
func FromContext(ctx context.Context) *zap.Logger {
	return FromContextOr(ctx, nil)
}
