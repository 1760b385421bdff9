package chi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docscan/internal/domain"
	logpkg "github.com/kailas-cloud/docscan/internal/logger"
	"github.com/kailas-cloud/docscan/internal/metrics"
)

// NewRouter builds the chi router with the full middleware stack.
// Порядок важен: recoverer снаружи, чтобы паника в любом слое давала JSON.
func NewRouter(s *Server, apiKeys []string, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(
		jsonRecoverer(logger),
		chiMiddleware.RequestID,
		requestEvent(logger),
		BearerAuthMiddleware(apiKeys),
		metrics.Middleware(),
	)
	s.Routes(r)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, CodeBadRequest, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, CodeBadRequest, r.Method+" not allowed")
	})
	return r
}

// jsonRecoverer turns a handler panic into a 500 with the usual error body.
// A panic after headers were sent can only be logged.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			defer func() {
				rvr := recover()
				if rvr == nil {
					return
				}
				if rvr == http.ErrAbortHandler {
					panic(rvr)
				}
				logpkg.FromContextOr(r.Context(), logger).Error("Handler panicked",
					zap.String("path", r.URL.Path),
					zap.String("panic", fmt.Sprint(rvr)),
					zap.Stack("stacktrace"),
				)
				if ww.Status() == 0 {
					writeError(ww, http.StatusInternalServerError, CodeInternalError, "internal error")
				}
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

// requestEvent logs one line per request. It installs the request logger and
// the model usage collector, so the line carries the model calls the request made.
func requestEvent(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			started := time.Now()

			reqID := chiMiddleware.GetReqID(r.Context())
			if reqID != "" {
				w.Header().Set("X-Request-ID", reqID)
			}

			log := logger.With(zap.String("request_id", reqID))
			ctx, usage := domain.NewContextWithUsage(logpkg.ContextWithLogger(r.Context(), log))

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			calls, hits, tokens := usage.Snapshot()
			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(started)),
				zap.String("remote", r.RemoteAddr),
				zap.Int64("upload_bytes", r.ContentLength),
				zap.Int("response_bytes", ww.BytesWritten()),
			}
			if calls > 0 {
				fields = append(fields,
					zap.Int("model_calls", calls),
					zap.Int("model_cache_hits", hits),
					zap.Int("model_tokens", tokens),
				)
			}
			log.Info("http_request", fields...)
		})
	}
}
