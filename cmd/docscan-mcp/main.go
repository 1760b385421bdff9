// Command docscan-mcp serves the docscan tools over MCP stdio.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docscan/internal/app"
	"github.com/kailas-cloud/docscan/internal/config"
	logpkg "github.com/kailas-cloud/docscan/internal/logger"
	"github.com/kailas-cloud/docscan/internal/metrics"
	"github.com/kailas-cloud/docscan/internal/transport/mcptool"
	"github.com/kailas-cloud/docscan/internal/version"
)

func main() {
	_ = godotenv.Load()

	env := config.GetEnv()
	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// stdout is the MCP channel; logs go to stderr.
	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	metrics.RegisterModelMetrics()
	metrics.RegisterPipelineMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to build services", zap.Error(err))
	}
	defer a.Close()

	srv := mcp.NewServer(&mcp.Implementation{Name: "docscan", Version: version.Version}, nil)
	mcptool.New(a.Scan, a.Pipeline, logger).Register(srv)

	logger.Info("Starting MCP server on stdio",
		zap.String("mode", string(cfg.Backend.Mode)),
		zap.String("model", a.Mode.Model),
	)
	if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		logger.Error("MCP server stopped", zap.Error(err))
	}
}
