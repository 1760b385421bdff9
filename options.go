package docscan

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kailas-cloud/docscan/internal/config"
	"github.com/kailas-cloud/docscan/internal/domain"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	cfg config.Config

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithAPI selects the remote OpenAI-compatible backend. server is the full
// chat completions endpoint.
func WithAPI(server, apiKey, model string) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Backend.Mode = domain.ModeAPI
		c.cfg.Backend.API.Server = server
		c.cfg.Backend.API.APIKey = apiKey
		c.cfg.Backend.API.Model = model
	})
}

// WithLocal selects a local Ollama backend. Pages are processed one at a time.
func WithLocal(baseURL, model string) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Backend.Mode = domain.ModeLocal
		c.cfg.Backend.Local.BaseURL = baseURL
		c.cfg.Backend.Local.Model = model
	})
}

// WithPoolSize sets the API worker pool size, clamped to [1,20]. Default: 5.
func WithPoolSize(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Backend.API.PoolSize = domain.ClampPoolSize(n)
	})
}

// WithTimeout sets the per-call model timeout.
func WithTimeout(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		sec := int(d / time.Second)
		c.cfg.Backend.API.TimeoutSec = sec
		c.cfg.Backend.Local.TimeoutSec = sec
	})
}

// WithDPI sets the PDF rendering resolution. Default: 300.
func WithDPI(dpi int) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Pipeline.DPI = dpi
	})
}

// WithPageLimit caps the pages rendered per PDF. 0 renders all pages.
func WithPageLimit(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Pipeline.PageLimit = n
	})
}

// WithMinConfidence drops values at or below the threshold.
func WithMinConfidence(v float64) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Pipeline.MinConfidence = v
	})
}

// WithTempDir sets where page images and downloads are staged.
func WithTempDir(dir string) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Pipeline.TempDir = dir
	})
}

// WithResponseCache caches model responses in Redis/Valkey. ttl <= 0 keeps entries forever.
func WithResponseCache(addr, password string, ttl time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.cfg.Cache.Enabled = true
		c.cfg.Cache.Addrs = []string{addr}
		c.cfg.Cache.Password = password
		c.cfg.Cache.TTLSec = int(ttl / time.Second)
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
