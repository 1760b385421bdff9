// Package extractor reads requested field values from one page image.
package extractor

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docscan/internal/domain"
	"github.com/kailas-cloud/docscan/internal/logger"
	"github.com/kailas-cloud/docscan/internal/usecase/gateway"
	"github.com/kailas-cloud/docscan/internal/usecase/parse"
	"github.com/kailas-cloud/docscan/internal/usecase/prompt"
)

// Service extracts section values from page images.
type Service struct {
	gen    Generator
	logger *zap.Logger
}

// New creates an extractor Service.
func New(gen Generator, logger *zap.Logger) *Service {
	return &Service{gen: gen, logger: logger}
}

// Extract returns the values found on the page. It never fails; errors are
// logged and yield an empty slice.
func (s *Service) Extract(ctx context.Context, imagePath string, titles []string, expert string) []domain.ExtractedValue {
	values, err := s.ExtractPage(ctx, imagePath, titles, expert)
	if err != nil {
		logger.FromContextOr(ctx, s.logger).Warn("Extraction failed",
			zap.String("image", filepath.Base(imagePath)),
			zap.Error(err),
		)
		return []domain.ExtractedValue{}
	}
	return values
}

// ExtractPage is Extract with the failure reported. A model error payload or
// a panic is an error; an unparseable response is not.
func (s *Service) ExtractPage(
	ctx context.Context, imagePath string, titles []string, expert string,
) (values []domain.ExtractedValue, err error) {
	if strings.TrimSpace(imagePath) == "" || len(titles) == 0 {
		return []domain.ExtractedValue{}, nil
	}

	defer func() {
		if r := recover(); r != nil {
			values, err = []domain.ExtractedValue{}, fmt.Errorf("extract panic: %v", r)
		}
	}()

	resp := s.gen.Generate(ctx, imagePath, prompt.Extraction(titles, expert))
	if gateway.IsErrorPayload(resp) {
		return []domain.ExtractedValue{}, fmt.Errorf("%w: %s", domain.ErrTransientCall, gateway.ErrorMessage(resp))
	}

	values, kind := parse.Values(ctx, resp)
	logger.FromContextOr(ctx, s.logger).Debug("Page extracted",
		zap.String("image", filepath.Base(imagePath)),
		zap.Int("requested", len(titles)),
		zap.Int("values", len(values)),
		zap.Stringer("parse", kind),
	)
	return values, nil
}
