// Package app is the composition root shared by the docscan binaries.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docscan/internal/config"
	dbRedis "github.com/kailas-cloud/docscan/internal/db/redis"
	"github.com/kailas-cloud/docscan/internal/domain"
	"github.com/kailas-cloud/docscan/internal/metrics"
	"github.com/kailas-cloud/docscan/internal/raster"
	"github.com/kailas-cloud/docscan/internal/repository/respcache"
	chiTransport "github.com/kailas-cloud/docscan/internal/transport/chi"
	"github.com/kailas-cloud/docscan/internal/transport/ollama"
	"github.com/kailas-cloud/docscan/internal/transport/openai"
	"github.com/kailas-cloud/docscan/internal/usecase/extractor"
	"github.com/kailas-cloud/docscan/internal/usecase/gateway"
	healthuc "github.com/kailas-cloud/docscan/internal/usecase/health"
	"github.com/kailas-cloud/docscan/internal/usecase/pipeline"
	"github.com/kailas-cloud/docscan/internal/usecase/router"
	"github.com/kailas-cloud/docscan/internal/usecase/scan"
	"github.com/kailas-cloud/docscan/internal/version"
)

// App holds the wired services.
type App struct {
	Pipeline *pipeline.Service
	Scan     *scan.Service
	Gateway  *gateway.Service
	Health   *healthuc.Service
	Mode     chiTransport.ModeInfo

	closers []func()
}

// Close releases external connections.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// Build assembles the backend chain and services from cfg.
// Metrics must be registered by the caller before Build.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	a := &App{}

	backend := newBackend(cfg, logger)

	// Chain: backend -> Instrumented -> Cached (кеш отдаёт ответы без учёта в метриках модели)
	var chain domain.Backend = gateway.NewInstrumented(backend, logger)

	var cachePinger healthuc.CachePinger
	if cfg.Cache.Enabled {
		store, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Cache.Addrs,
			Password: cfg.Cache.Password,
		})
		if err != nil {
			return nil, fmt.Errorf("response cache: %w", err)
		}
		a.closers = append(a.closers, store.Close)

		timeout := time.Duration(cfg.Cache.ReadinessTimeout) * time.Second
		if err := store.WaitForReady(ctx, timeout); err != nil {
			a.Close()
			return nil, fmt.Errorf("response cache not ready: %w", err)
		}
		logger.Info("Connected to response cache", zap.Strings("addrs", cfg.Cache.Addrs))

		ttl := time.Duration(cfg.Cache.TTLSec) * time.Second
		chain = respcache.New(chain, store, ttl, metrics.ResponseCacheTotal, logger)
		cachePinger = store
	}

	rast := raster.New(raster.Config{
		DPI:      cfg.Pipeline.DPI,
		Pdftoppm: cfg.Pipeline.Pdftoppm,
	}, nil, raster.NewDownloader(0).WithMaxBytes(cfg.HTTP.MaxUploadMB<<20), logger)

	a.Gateway = gateway.New(chain, rast, cfg.Pipeline.TempDir, logger)

	a.Scan = scan.New(a.Gateway, rast, cfg.Pipeline.TempDir, cfg.Pipeline.ScanPageLimit, logger)

	a.Pipeline = pipeline.New(
		router.New(a.Gateway, logger),
		extractor.New(a.Gateway, logger),
		rast,
		a.Gateway,
		pipeline.Settings{
			Mode:                 cfg.Backend.Mode,
			PoolSize:             cfg.PoolSize(),
			RoutingPageThreshold: cfg.Pipeline.RoutingPageThreshold,
			RoutingPoolCap:       cfg.Pipeline.RoutingPoolCap,
			PageLimit:            cfg.Pipeline.PageLimit,
			MinConfidence:        cfg.Pipeline.MinConfidence,
			TempDir:              cfg.Pipeline.TempDir,
		},
		logger,
	)

	a.Health = healthuc.New(a.Gateway, cachePinger)
	a.Mode = modeInfo(cfg, a.Gateway)

	return a, nil
}

func newBackend(cfg config.Config, logger *zap.Logger) domain.Backend {
	if cfg.Backend.Mode == domain.ModeLocal {
		lc := cfg.Backend.Local
		return ollama.NewBackend(&ollama.Config{
			BaseURL:     lc.BaseURL,
			Model:       lc.Model,
			MaxTokens:   lc.MaxTokens,
			Temperature: lc.Temperature,
			Timeout:     time.Duration(lc.TimeoutSec) * time.Second,
			Logger:      logger,
		})
	}
	ac := cfg.Backend.API
	return openai.NewBackend(&openai.Config{
		APIKey:    ac.APIKey,
		Endpoint:  ac.Server,
		BaseURL:   cfg.APIBaseURL(),
		Model:     ac.Model,
		MaxTokens: ac.MaxTokens,
		Timeout:   time.Duration(ac.TimeoutSec) * time.Second,
		Logger:    logger,
	})
}

func modeInfo(cfg config.Config, gw *gateway.Service) chiTransport.ModeInfo {
	info := chiTransport.ModeInfo{
		Mode:     cfg.Backend.Mode,
		Backend:  gw.BackendName(),
		Model:    gw.Model(),
		PoolSize: cfg.PoolSize(),
		Version:  version.String(),
	}
	if cfg.Backend.Mode == domain.ModeLocal {
		info.Server = cfg.Backend.Local.BaseURL
		return info
	}
	info.Server = cfg.Backend.API.Server
	info.APIKeyPreview = cfg.APIKeyPreview()
	return info
}
