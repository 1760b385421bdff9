package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/docscan/internal/app"
	"github.com/kailas-cloud/docscan/internal/config"
	"github.com/kailas-cloud/docscan/internal/domain"
	logpkg "github.com/kailas-cloud/docscan/internal/logger"
	"github.com/kailas-cloud/docscan/internal/metrics"
	chiTransport "github.com/kailas-cloud/docscan/internal/transport/chi"
	"github.com/kailas-cloud/docscan/internal/version"
)

func main() {
	_ = godotenv.Load() // .env необязателен

	env := config.GetEnv()
	cfg, err := config.Load(env)
	if err != nil {
		fmt.Fprintln(os.Stderr, "docscan: load config:", err)
		os.Exit(1)
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		fmt.Fprintln(os.Stderr, "docscan: logger:", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = serve(ctx, env, cfg, logger)
	stop()
	if err != nil {
		logger.Error("Server exited", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	_ = logger.Sync()
}

// serve runs the HTTP API until ctx is cancelled, then drains in-flight runs.
func serve(ctx context.Context, env string, cfg config.Config, logger *zap.Logger) error {
	logger.Info("Starting docscan API server",
		zap.String("version", version.String()),
		zap.String("env", env),
		zap.String("mode", string(cfg.Backend.Mode)),
		zap.Int("pool_size", cfg.PoolSize()),
		zap.Bool("response_cache", cfg.Cache.Enabled),
	)

	metrics.RegisterHTTPMetrics()
	metrics.RegisterModelMetrics()
	metrics.RegisterPipelineMetrics()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("build services: %w", err)
	}
	defer a.Close()

	logger.Info("Backend configured",
		zap.String("backend", a.Mode.Backend),
		zap.String("model", a.Mode.Model),
		zap.String("server", a.Mode.Server),
		zap.String("api_key", a.Mode.APIKeyPreview),
	)
	if cfg.Backend.Mode != domain.ModeLocal && cfg.IsLocalServer() {
		logger.Warn("API mode points at a local server; pool size is still applied",
			zap.String("server", cfg.Backend.API.Server))
	}

	api := chiTransport.NewServer(a.Pipeline, a.Scan, a.Health, a.Mode, chiTransport.Options{
		UploadDir:      cfg.Pipeline.TempDir,
		MaxUploadBytes: cfg.HTTP.MaxUploadMB << 20,
		InputDir:       cfg.Pipeline.InputDir,
		ReportDir:      cfg.Report.Dir,
		XLSX:           cfg.Report.XLSX,
	}, logger)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           chiTransport.NewRouter(api, cfg.Auth.APIKeys, logger),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down", zap.Int("grace_sec", cfg.HTTP.ShutdownSec))

		// экстракция может идти минутами, ждём не дольше grace
		shutdownCtx, cancel := context.WithTimeout(context.Background(),
			time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("Server stopped")
	return nil
}
