// Package scan detects the section titles present in a document.
package scan

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docscan/internal/domain"
	"github.com/kailas-cloud/docscan/internal/logger"
	"github.com/kailas-cloud/docscan/internal/usecase/gateway"
	"github.com/kailas-cloud/docscan/internal/usecase/parse"
	"github.com/kailas-cloud/docscan/internal/usecase/prompt"
)

// DefaultPageLimit is the number of leading pages inspected for sections.
const DefaultPageLimit = 5

// Result holds detected sections and their display labels.
type Result struct {
	Sections []domain.Section `json:"sections"`
	Labels   []string         `json:"labels"`
}

// Titles returns the bare section titles in detection order.
func (r Result) Titles() []string {
	out := make([]string, len(r.Sections))
	for i, s := range r.Sections {
		out[i] = s.Title
	}
	return out
}

// Service runs section detection page by page. Only one page image
// exists on disk at a time.
type Service struct {
	gen       PageGenerator
	resolver  Resolver
	tempDir   string
	pageLimit int
	logger    *zap.Logger
}

// New creates a scan Service. pageLimit <= 0 uses DefaultPageLimit.
func New(gen PageGenerator, resolver Resolver, tempDir string, pageLimit int, logger *zap.Logger) *Service {
	if pageLimit <= 0 {
		pageLimit = DefaultPageLimit
	}
	return &Service{gen: gen, resolver: resolver, tempDir: tempDir, pageLimit: pageLimit, logger: logger}
}

// Detect returns the distinct sections of the document at ref (path or URL).
// A title seen on several pages keeps its first page.
func (s *Service) Detect(ctx context.Context, ref string) (Result, error) {
	log := logger.FromContextOr(ctx, s.logger)

	dir, err := os.MkdirTemp(s.tempDir, "scan-*")
	if err != nil {
		return Result{}, fmt.Errorf("create temp dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(dir) }()

	doc, err := s.resolver.Resolve(ctx, ref, dir, s.pageLimit)
	if err != nil {
		return Result{}, fmt.Errorf("resolve document: %w", err)
	}

	var all []domain.Section
	for page := 1; page <= doc.Pages; page++ {
		if err := ctx.Err(); err != nil {
			return Result{}, fmt.Errorf("detect sections: %w", err)
		}
		resp := s.gen.GenerateFromFile(ctx, doc.Path, page, prompt.Sections)
		if gateway.IsErrorPayload(resp) {
			log.Warn("Section detection failed for page",
				zap.String("document", doc.Name),
				zap.Int("page", page),
				zap.String("error", gateway.ErrorMessage(resp)),
			)
			continue
		}
		sections, kind := parse.Sections(ctx, resp)
		for i := range sections {
			sections[i].Page = page
		}
		log.Debug("Sections detected",
			zap.String("document", doc.Name),
			zap.Int("page", page),
			zap.Int("sections", len(sections)),
			zap.Stringer("parse", kind),
		)
		all = append(all, sections...)
	}

	sections := Dedup(all)
	labels := make([]string, len(sections))
	for i, sec := range sections {
		labels[i] = sec.Label()
	}

	log.Info("Section scan completed",
		zap.String("document", doc.Name),
		zap.Int("pages", doc.Pages),
		zap.Int("sections", len(sections)),
	)
	return Result{Sections: sections, Labels: labels}, nil
}

// Dedup keeps the first section per title.
func Dedup(sections []domain.Section) []domain.Section {
	seen := make(map[string]struct{}, len(sections))
	out := make([]domain.Section, 0, len(sections))
	for _, s := range sections {
		if _, ok := seen[s.Title]; ok {
			continue
		}
		seen[s.Title] = struct{}{}
		out = append(out, s)
	}
	return out
}
