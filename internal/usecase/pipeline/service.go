// Package pipeline orchestrates a two-phase page pipeline: routing, then
// extraction, over a bounded worker pool.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docscan/internal/domain"
	"github.com/kailas-cloud/docscan/internal/domain/unit"
	"github.com/kailas-cloud/docscan/internal/logger"
	"github.com/kailas-cloud/docscan/internal/metrics"
	"github.com/kailas-cloud/docscan/internal/usecase/aggregate"
	"github.com/kailas-cloud/docscan/internal/usecase/prompt"
	"github.com/kailas-cloud/docscan/internal/usecase/router"
)

// Request is one extraction invocation.
type Request struct {
	Documents     []string // local paths or http(s) URLs
	Sections      []string
	ExpertPrompt  string
	IncludeFilter string
	ExcludeFilter string
	PoolSize      *int // overrides the configured pool size; clamped the same way
}

// ExpertMode reports whether any expert field is set.
func (r Request) ExpertMode() bool {
	return strings.TrimSpace(r.ExpertPrompt) != "" ||
		strings.TrimSpace(r.IncludeFilter) != "" ||
		strings.TrimSpace(r.ExcludeFilter) != ""
}

// Service runs extraction requests.
type Service struct {
	router    Router
	extractor Extractor
	expander  Expander
	ready     Readiness
	settings  Settings
	logger    *zap.Logger
	now       func() time.Time
}

// New creates a pipeline Service.
func New(
	rt Router, ex Extractor, expander Expander, ready Readiness,
	settings Settings, logger *zap.Logger,
) *Service {
	return &Service{
		router:    rt,
		extractor: ex,
		expander:  expander,
		ready:     ready,
		settings:  settings.WithDefaults(),
		logger:    logger,
		now:       time.Now,
	}
}

// Settings returns the configured settings.
func (s *Service) Settings() Settings { return s.settings }

// run holds the mutable state of one invocation.
type run struct {
	id       string
	settings Settings
	titles   []string
	docs     []domain.Document
	docOf    []int // task Seq -> index into docs
	mu       sync.Mutex
	values   [][]domain.ExtractedValue
	stats    domain.RunStats
}

// Run executes the pipeline. Only configuration and input errors are
// returned; page failures are recorded in the report stats.
func (s *Service) Run(ctx context.Context, req Request) (rep domain.Report, err error) {
	start := time.Now()
	settings := s.settings
	if req.PoolSize != nil {
		settings.PoolSize = *req.PoolSize
	}

	r := &run{id: uuid.New().String(), settings: settings}
	log := logger.ForRun(logger.FromContextOr(ctx, s.logger), r.id)
	ctx = logger.ContextWithLogger(ctx, log)

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("pipeline panic: %v", p)
			log.Error("Pipeline panicked", zap.Any("panic", p), zap.Stack("stack"))
		}
		status := "success"
		if err != nil {
			status = "error"
		}
		metrics.PipelineRunsTotal.WithLabelValues(string(settings.Mode), status).Inc()
		metrics.PipelineRunDuration.WithLabelValues(string(settings.Mode)).Observe(time.Since(start).Seconds())
	}()

	if err := s.validate(ctx, req); err != nil {
		return domain.Report{}, err
	}
	r.titles = domain.NewSectionRequest(req.Sections...).Titles()

	if prompt.Neutralized(req.ExpertPrompt) {
		metrics.PromptNeutralizedTotal.Inc()
		log.Warn("Expert instructions neutralized")
	}

	runDir, err := os.MkdirTemp(settings.TempDir, "docscan-run-*")
	if err != nil {
		return domain.Report{}, fmt.Errorf("create run dir: %w", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(runDir); rmErr != nil {
			log.Warn("Failed to remove run dir", zap.String("dir", runDir), zap.Error(rmErr))
		}
	}()

	tasks := s.expand(ctx, r, req.Documents, runDir)
	routingPool, extractPool := settings.PoolSizes(len(tasks))

	log.Info("Pipeline started",
		zap.String("mode", string(settings.Mode)),
		zap.Int("documents", len(r.docs)),
		zap.Int("pages", len(tasks)),
		zap.Int("sections", len(r.titles)),
		zap.Int("routing_pool", routingPool),
		zap.Int("extraction_pool", extractPool),
		zap.Bool("expert_mode", req.ExpertMode()),
	)

	included := tasks
	if router.Active(req.IncludeFilter, req.ExcludeFilter) {
		included = s.route(ctx, r, tasks, routingPool, req.IncludeFilter, req.ExcludeFilter)
	}
	s.extract(ctx, r, included, extractPool, req.ExpertPrompt)

	rep = domain.Report{
		RunID:      r.id,
		Timestamp:  s.now().Format(domain.TimestampLayout),
		Mode:       settings.Mode,
		ExpertMode: req.ExpertMode(),
		Documents:  make([]domain.DocumentResult, len(r.docs)),
		Stats:      r.stats,
	}
	for i, doc := range r.docs {
		merged := aggregate.ByRequest(aggregate.Merge(r.values[i]), r.titles)
		merged = aggregate.FilterMinConfidence(merged, settings.MinConfidence)
		rep.Documents[i] = domain.DocumentResult{Document: doc.Name, ExtractedValues: merged}
	}

	log.Info("Pipeline completed",
		zap.Int("values", rep.TotalValues()),
		zap.Int("extracted", rep.Stats.Extracted),
		zap.Int("excluded", rep.Stats.Excluded),
		zap.Int("failed", rep.Stats.Failed),
		zap.Int("skipped", rep.Stats.Skipped),
		zap.Int("documents_failed", rep.Stats.DocumentsFailed),
		zap.Duration("duration", time.Since(start)),
	)
	return rep, nil
}

func (s *Service) validate(ctx context.Context, req Request) error {
	docs := 0
	for _, d := range req.Documents {
		if strings.TrimSpace(d) != "" {
			docs++
		}
	}
	if docs == 0 {
		return fmt.Errorf("%w: no documents", domain.ErrInvalidInput)
	}
	if domain.NewSectionRequest(req.Sections...).Empty() {
		return fmt.Errorf("%w: no sections selected", domain.ErrInvalidInput)
	}
	if err := s.ready.Ready(ctx); err != nil {
		if !errors.Is(err, domain.ErrConfiguration) {
			err = fmt.Errorf("%w: %w", domain.ErrConfiguration, err)
		}
		return err
	}
	return nil
}

// expand turns every document into page tasks. A document that cannot be
// expanded keeps an empty slot in the report.
func (s *Service) expand(ctx context.Context, r *run, refs []string, dir string) []unit.Task {
	log := logger.FromContext(ctx)
	var tasks []unit.Task
	for _, ref := range refs {
		ref = strings.TrimSpace(ref)
		if ref == "" {
			continue
		}
		r.stats.Documents++
		idx := len(r.docs)

		doc, err := s.expander.Expand(ctx, ref, dir, r.settings.PageLimit)
		if err != nil {
			r.stats.DocumentsFailed++
			log.Error("Document could not be prepared", zap.String("document", ref), zap.Error(err))
			doc = domain.Document{Name: path.Base(ref), Path: ref}
		}
		r.docs = append(r.docs, doc)
		r.values = append(r.values, []domain.ExtractedValue{})

		for _, p := range doc.Pages {
			tasks = append(tasks, unit.Task{Seq: len(r.docOf), Page: p})
			r.docOf = append(r.docOf, idx)
		}
	}
	r.stats.Pages = len(tasks)
	return tasks
}

// route runs Phase 1 and returns the tasks to extract, in submission order.
// Failed routing includes the page.
func (s *Service) route(
	ctx context.Context, r *run, tasks []unit.Task, pool int, include, exclude string,
) []unit.Task {
	keep := make([]bool, len(tasks))
	runPool(ctx, tasks, pool, func(ctx context.Context, t unit.Task) unit.Result {
		ok, _ := s.router.ShouldProcess(unitContext(ctx, t), t.Page.ImagePath, include, exclude)
		return unit.NewRouted(t, ok)
	}, func(res unit.Result) {
		t := res.Task()
		switch res.State() {
		case unit.StateIncluded:
			r.stats.Routed++
			keep[t.Seq] = true
		case unit.StateFailed:
			r.stats.Routed++
			keep[t.Seq] = true
			logger.FromContext(ctx).Warn("Routing failed, page included",
				zap.String("page", t.Page.Key()), zap.Error(res.Err()))
		case unit.StateExcluded:
			r.stats.Routed++
			r.stats.Excluded++
			release(ctx, t.Page)
		case unit.StateSkipped:
			r.stats.Skipped++
			release(ctx, t.Page)
		}
		metrics.PipelineUnitsTotal.WithLabelValues("routing", string(res.State())).Inc()
	})

	out := make([]unit.Task, 0, len(tasks))
	for _, t := range tasks {
		if keep[t.Seq] {
			out = append(out, t)
		}
	}
	return out
}

// extract runs Phase 2, folding each result into its document as it completes.
func (s *Service) extract(ctx context.Context, r *run, tasks []unit.Task, pool int, expert string) {
	runPool(ctx, tasks, pool, func(ctx context.Context, t unit.Task) unit.Result {
		values, err := s.extractor.ExtractPage(unitContext(ctx, t), t.Page.ImagePath, r.titles, expert)
		if err != nil {
			return unit.NewFailed(t, err)
		}
		return unit.NewExtracted(t, values)
	}, func(res unit.Result) {
		t := res.Task()
		switch res.State() {
		case unit.StateExtracted:
			r.stats.Extracted++
			r.fold(t, res.Values())
		case unit.StateFailed:
			r.stats.Failed++
			logger.FromContext(ctx).Warn("Page extraction failed",
				zap.String("page", t.Page.Key()), zap.Error(res.Err()))
		case unit.StateSkipped:
			r.stats.Skipped++
		}
		release(ctx, t.Page)
		metrics.PipelineUnitsTotal.WithLabelValues("extraction", string(res.State())).Inc()
	})
}

// fold stamps page and document on values and appends them to their document.
func (r *run) fold(t unit.Task, values []domain.ExtractedValue) {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := r.docOf[t.Seq]
	for _, v := range values {
		v.Page = t.Page.Index
		v.Document = r.docs[idx].Name
		r.values[idx] = append(r.values[idx], v)
	}
}

// release deletes a page image the pipeline created.
func release(ctx context.Context, p domain.Page) {
	if !p.Owned || p.ImagePath == "" {
		return
	}
	if err := os.Remove(p.ImagePath); err != nil && !os.IsNotExist(err) {
		logger.FromContext(ctx).Warn("Failed to remove page image",
			zap.String("page", p.Key()), zap.Error(err))
	}
}

func unitContext(ctx context.Context, t unit.Task) context.Context {
	log := logger.FromContext(ctx).With(
		zap.String("document", t.Page.Document),
		zap.Int("page", t.Page.Index),
	)
	return logger.ContextWithLogger(ctx, log)
}
