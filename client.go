package docscan

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docscan/internal/app"
	"github.com/kailas-cloud/docscan/internal/domain"
	healthuc "github.com/kailas-cloud/docscan/internal/usecase/health"
	"github.com/kailas-cloud/docscan/internal/usecase/pipeline"
	"github.com/kailas-cloud/docscan/internal/usecase/scan"
)

// Внутренние интерфейсы для подмены в тестах.
type extractUseCase interface {
	Run(ctx context.Context, req pipeline.Request) (domain.Report, error)
}

type detectUseCase interface {
	Detect(ctx context.Context, ref string) (scan.Result, error)
}

type healthUseCase interface {
	Check(ctx context.Context) healthuc.Report
}

// Client is the docscan SDK entry point.
type Client struct {
	extractSvc extractUseCase
	detectSvc  detectUseCase
	healthSvc  healthUseCase
	mode       ModeInfo
	closer     func()
	obs        *observer
}

// New creates a Client. With WithResponseCache the provided context bounds
// the initial cache readiness check.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cc := &clientConfig{}
	for _, o := range opts {
		o.apply(cc)
	}

	cfg := cc.cfg
	if cfg.Backend.Mode == "" {
		return nil, fmt.Errorf("docscan: backend required (use WithAPI or WithLocal): %w", ErrConfiguration)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("docscan: %w: %w", ErrConfiguration, err)
	}

	obs, err := newObserver(cc.logger, cc.metricsReg)
	if err != nil {
		return nil, err
	}

	a, err := app.Build(ctx, cfg, zap.NewNop())
	if err != nil {
		return nil, fmt.Errorf("docscan: %w", err)
	}

	return &Client{
		extractSvc: a.Pipeline,
		detectSvc:  a.Scan,
		healthSvc:  a.Health,
		mode: ModeInfo{
			Mode:     string(a.Mode.Mode),
			Backend:  a.Mode.Backend,
			Server:   a.Mode.Server,
			Model:    a.Mode.Model,
			PoolSize: a.Mode.PoolSize,
		},
		closer: a.Close,
		obs:    obs,
	}, nil
}

// Close releases all resources.
func (c *Client) Close() {
	if c.closer != nil {
		c.closer()
	}
}

// Mode describes the configured backend.
func (c *Client) Mode() ModeInfo { return c.mode }

// ExtractOption tunes one Extract call.
type ExtractOption func(*pipeline.Request)

// WithExpertPrompt adds free-form extraction guidance.
func WithExpertPrompt(p string) ExtractOption {
	return func(r *pipeline.Request) { r.ExpertPrompt = p }
}

// WithIncludeFilter keeps only pages the router matches to the filter.
func WithIncludeFilter(f string) ExtractOption {
	return func(r *pipeline.Request) { r.IncludeFilter = f }
}

// WithExcludeFilter drops pages the router matches to the filter.
func WithExcludeFilter(f string) ExtractOption {
	return func(r *pipeline.Request) { r.ExcludeFilter = f }
}

// WithRunPoolSize overrides the pool size for one run.
func WithRunPoolSize(n int) ExtractOption {
	return func(r *pipeline.Request) { r.PoolSize = &n }
}

// Extract reads the given sections from documents (local paths or http(s) URLs).
// Page failures do not fail the call; they are counted in Report.Stats.
func (c *Client) Extract(
	ctx context.Context, documents, sections []string, opts ...ExtractOption,
) (rep Report, err error) {
	start := time.Now()
	defer func() { c.obs.observe("extract", start, err) }()

	req := pipeline.Request{Documents: documents, Sections: sections}
	for _, o := range opts {
		o(&req)
	}

	rep, err = c.extractSvc.Run(ctx, req)
	if err != nil {
		return Report{}, fmt.Errorf("extract: %w", err)
	}
	c.obs.observeReport(rep)
	return rep, nil
}

// Sections detects the section titles of one document.
func (c *Client) Sections(ctx context.Context, ref string) (sections []Section, err error) {
	start := time.Now()
	defer func() { c.obs.observe("sections", start, err) }()

	res, err := c.detectSvc.Detect(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("sections: %w", err)
	}
	return res.Sections, nil
}

// Health checks the backend and the response cache.
func (c *Client) Health(ctx context.Context) HealthStatus {
	report := c.healthSvc.Check(ctx)
	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}
	return HealthStatus{
		Status: string(report.Status),
		Checks: checks,
	}
}
