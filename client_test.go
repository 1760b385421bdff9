package docscan

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kailas-cloud/docscan/internal/domain"
	healthuc "github.com/kailas-cloud/docscan/internal/usecase/health"
	"github.com/kailas-cloud/docscan/internal/usecase/pipeline"
	"github.com/kailas-cloud/docscan/internal/usecase/scan"
)

type mockExtractUC struct {
	fn      func(ctx context.Context, req pipeline.Request) (domain.Report, error)
	lastReq pipeline.Request
}

func (m *mockExtractUC) Run(ctx context.Context, req pipeline.Request) (domain.Report, error) {
	m.lastReq = req
	return m.fn(ctx, req)
}

type mockDetectUC struct {
	fn func(ctx context.Context, ref string) (scan.Result, error)
}

func (m *mockDetectUC) Detect(ctx context.Context, ref string) (scan.Result, error) {
	return m.fn(ctx, ref)
}

type mockHealthUC struct {
	report healthuc.Report
}

func (m *mockHealthUC) Check(_ context.Context) healthuc.Report { return m.report }

func TestNew_NoBackend(t *testing.T) {
	_, err := New(context.Background())
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestNew_MissingAPIKey(t *testing.T) {
	_, err := New(context.Background(),
		WithAPI("https://api.mistral.ai/v1/chat/completions", "", "pixtral-large-latest"))
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestNew_Local(t *testing.T) {
	c, err := New(context.Background(), WithLocal("http://localhost:11434", "llava"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer c.Close()

	mode := c.Mode()
	if mode.Mode != "local" || mode.Model != "llava" || mode.PoolSize != 1 {
		t.Errorf("mode = %+v", mode)
	}
}

func TestClientOptions(t *testing.T) {
	cfg := &clientConfig{}

	WithAPI("https://example.com/v1/chat/completions", "key", "m").apply(cfg)
	if cfg.cfg.Backend.Mode != domain.ModeAPI {
		t.Errorf("mode = %q, want api", cfg.cfg.Backend.Mode)
	}
	if cfg.cfg.Backend.API.APIKey != "key" || cfg.cfg.Backend.API.Model != "m" {
		t.Errorf("api = %+v", cfg.cfg.Backend.API)
	}

	WithPoolSize(50).apply(cfg)
	if cfg.cfg.Backend.API.PoolSize != domain.MaxPoolSize {
		t.Errorf("pool size = %d, want %d", cfg.cfg.Backend.API.PoolSize, domain.MaxPoolSize)
	}

	WithTimeout(90 * time.Second).apply(cfg)
	if cfg.cfg.Backend.API.TimeoutSec != 90 || cfg.cfg.Backend.Local.TimeoutSec != 90 {
		t.Errorf("timeouts = %d/%d, want 90", cfg.cfg.Backend.API.TimeoutSec, cfg.cfg.Backend.Local.TimeoutSec)
	}

	WithDPI(150).apply(cfg)
	WithPageLimit(3).apply(cfg)
	WithMinConfidence(0.2).apply(cfg)
	WithTempDir("/tmp/docscan").apply(cfg)
	p := cfg.cfg.Pipeline
	if p.DPI != 150 || p.PageLimit != 3 || p.MinConfidence != 0.2 || p.TempDir != "/tmp/docscan" {
		t.Errorf("pipeline = %+v", p)
	}

	WithResponseCache("localhost:6379", "secret", time.Hour).apply(cfg)
	c := cfg.cfg.Cache
	if !c.Enabled || c.Addrs[0] != "localhost:6379" || c.Password != "secret" || c.TTLSec != 3600 {
		t.Errorf("cache = %+v", c)
	}

	WithLocal("http://localhost:11434", "llava").apply(cfg)
	if cfg.cfg.Backend.Mode != domain.ModeLocal {
		t.Errorf("mode = %q, want local", cfg.cfg.Backend.Mode)
	}

	logger := slog.Default()
	WithLogger(logger).apply(cfg)
	if cfg.logger != logger {
		t.Error("expected logger to be set")
	}

	reg := prometheus.NewRegistry()
	WithPrometheus(reg).apply(cfg)
	if cfg.metricsReg != reg {
		t.Error("expected metricsReg to be set")
	}
}

func TestClient_Extract(t *testing.T) {
	ext := &mockExtractUC{fn: func(_ context.Context, req pipeline.Request) (domain.Report, error) {
		return domain.Report{
			RunID: "r1",
			Documents: []domain.DocumentResult{{
				Document:        req.Documents[0],
				ExtractedValues: []domain.ExtractedValue{{Section: "Patient", Value: domain.Text("John"), Confidence: 0.9, Page: 1}},
			}},
		}, nil
	}}
	c := &Client{extractSvc: ext}

	rep, err := c.Extract(context.Background(), []string{"a.pdf"}, []string{"Patient"},
		WithExpertPrompt("be strict"),
		WithIncludeFilter("labs"),
		WithExcludeFilter("ads"),
		WithRunPoolSize(3),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep.TotalValues() != 1 {
		t.Errorf("total values = %d, want 1", rep.TotalValues())
	}

	req := ext.lastReq
	if req.ExpertPrompt != "be strict" || req.IncludeFilter != "labs" || req.ExcludeFilter != "ads" {
		t.Errorf("request = %+v", req)
	}
	if req.PoolSize == nil || *req.PoolSize != 3 {
		t.Errorf("pool size = %v, want 3", req.PoolSize)
	}
}

func TestClient_Extract_Error(t *testing.T) {
	ext := &mockExtractUC{fn: func(_ context.Context, _ pipeline.Request) (domain.Report, error) {
		return domain.Report{}, domain.ErrInvalidInput
	}}
	c := &Client{extractSvc: ext}

	_, err := c.Extract(context.Background(), nil, []string{"Patient"})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestClient_Sections(t *testing.T) {
	det := &mockDetectUC{fn: func(_ context.Context, ref string) (scan.Result, error) {
		if ref != "scan.png" {
			t.Errorf("ref = %q", ref)
		}
		return scan.Result{Sections: []domain.Section{{Title: "Patient", Level: 1}, {Title: "Labs", Level: 1}}}, nil
	}}
	c := &Client{detectSvc: det}

	sections, err := c.Sections(context.Background(), "scan.png")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	titles := Titles(sections)
	if len(titles) != 2 || titles[1] != "Labs" {
		t.Errorf("titles = %v", titles)
	}
}

func TestClient_Sections_Error(t *testing.T) {
	det := &mockDetectUC{fn: func(_ context.Context, _ string) (scan.Result, error) {
		return scan.Result{}, domain.ErrUnsupportedFormat
	}}
	c := &Client{detectSvc: det}

	if _, err := c.Sections(context.Background(), "notes.txt"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestClient_Health(t *testing.T) {
	c := &Client{healthSvc: &mockHealthUC{report: healthuc.Report{
		Status: healthuc.Degraded,
		Checks: map[string]healthuc.CheckResult{"backend": healthuc.CheckOK, "cache": healthuc.CheckError},
	}}}

	h := c.Health(context.Background())
	if h.Status != "degraded" {
		t.Errorf("status = %q, want degraded", h.Status)
	}
	if h.Checks["cache"] != "error" || h.Checks["backend"] != "ok" {
		t.Errorf("checks = %v", h.Checks)
	}
}

func TestClient_Close_NoResources(t *testing.T) {
	// Close без ресурсов не паникует.
	c := &Client{}
	c.Close()
}

func TestObserver_NilSafe(t *testing.T) {
	var obs *observer
	obs.observe("test", time.Now(), nil)
	obs.observe("test", time.Now(), errors.New("err"))
}

func TestObserver_WithPrometheus(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs, err := newObserver(nil, reg)
	if err != nil {
		t.Fatalf("newObserver: %v", err)
	}

	obs.observe("extract", time.Now().Add(-10*time.Millisecond), nil)
	obs.observe("extract", time.Now(), errors.New("fail"))

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	found := false
	for _, f := range families {
		if f.GetName() == "docscan_sdk_operations_total" {
			found = true
			if len(f.GetMetric()) != 2 {
				t.Errorf("expected 2 metric samples, got %d", len(f.GetMetric()))
			}
		}
	}
	if !found {
		t.Error("docscan_sdk_operations_total not found")
	}
}

func TestObserver_Report(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs, err := newObserver(slog.Default(), reg)
	if err != nil {
		t.Fatalf("newObserver: %v", err)
	}

	obs.observeReport(Report{
		RunID: "r1",
		Documents: []DocumentResult{{ExtractedValues: []ExtractedValue{
			{Section: "A", Value: domain.Text("1")},
			{Section: "B", Value: domain.Text("2")},
		}}},
		Stats: domain.RunStats{Extracted: 3, Failed: 1},
	})

	if got := testutil.ToFloat64(obs.metrics.values); got != 2 {
		t.Errorf("values = %v, want 2", got)
	}
	if got := testutil.ToFloat64(obs.metrics.pages.WithLabelValues("failed")); got != 1 {
		t.Errorf("failed pages = %v, want 1", got)
	}
}

func TestObserver_ReuseRegistered(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := newObserver(nil, reg); err != nil {
		t.Fatalf("first newObserver: %v", err)
	}
	// Второй клиент на том же реестре переиспользует коллекторы.
	if _, err := newObserver(nil, reg); err != nil {
		t.Fatalf("second newObserver: %v", err)
	}
}

func TestObserver_WithLogger(t *testing.T) {
	obs, err := newObserver(slog.Default(), nil)
	if err != nil {
		t.Fatalf("newObserver: %v", err)
	}
	obs.observe("test.op", time.Now(), nil)
	obs.observe("test.op", time.Now(), errors.New("test error"))
}
