// Package gateway is the single entry point to the configured model backend.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docscan/internal/domain"
	"github.com/kailas-cloud/docscan/internal/logger"
)

// Service sends page images to the backend. Generate never fails: backend
// errors come back as an ErrorPayload so callers can apply their own policy.
type Service struct {
	backend domain.Backend
	raster  Rasterizer
	tempDir string
	logger  *zap.Logger
}

// New creates a gateway Service. raster may be nil when only images are sent.
func New(backend domain.Backend, raster Rasterizer, tempDir string, logger *zap.Logger) *Service {
	return &Service{backend: backend, raster: raster, tempDir: tempDir, logger: logger}
}

// BackendName returns the name of the wrapped backend.
func (s *Service) BackendName() string { return s.backend.Name() }

// Model returns the model identifier of the wrapped backend.
func (s *Service) Model() string { return s.backend.Model() }

// Ready verifies the backend can serve requests. For a lazily loaded model it
// triggers the load; a failure is reported as ErrConfiguration.
func (s *Service) Ready(ctx context.Context) error {
	l, ok := s.backend.(domain.Loader)
	if !ok {
		return nil
	}
	if err := l.Load(ctx); err != nil {
		if errors.Is(err, domain.ErrConfiguration) {
			return err
		}
		return fmt.Errorf("%w: %w", domain.ErrConfiguration, err)
	}
	return nil
}

// HealthCheck probes the backend when it supports it.
func (s *Service) HealthCheck(ctx context.Context) error {
	hc, ok := s.backend.(domain.HealthChecker)
	if !ok {
		return nil
	}
	return hc.HealthCheck(ctx) //nolint:wrapcheck // passthrough to health report
}

// Generate runs prompt against the image at imagePath.
func (s *Service) Generate(ctx context.Context, imagePath, prompt string) string {
	img, err := loadImage(imagePath)
	if err != nil {
		return s.fail(ctx, imagePath, err)
	}

	gen, err := s.backend.Generate(ctx, img, prompt)
	if err != nil {
		return s.fail(ctx, imagePath, err)
	}
	domain.UsageFromContext(ctx).Record(gen)
	return gen.Text
}

// GenerateFromFile is Generate for a document path. A PDF is rendered at
// pageIndex (1-based) into a temp image that is removed before returning.
func (s *Service) GenerateFromFile(ctx context.Context, path string, pageIndex int, prompt string) string {
	if !domain.IsPDF(path) {
		return s.Generate(ctx, path, prompt)
	}
	if s.raster == nil {
		return s.fail(ctx, path, fmt.Errorf("%w: no rasterizer configured", domain.ErrRasterize))
	}

	dir, err := os.MkdirTemp(s.tempDir, "gen-*")
	if err != nil {
		return s.fail(ctx, path, fmt.Errorf("create temp dir: %w", err))
	}
	defer func() { _ = os.RemoveAll(dir) }()

	img, err := s.raster.RenderPage(ctx, path, pageIndex, dir)
	if err != nil {
		return s.fail(ctx, path, err)
	}
	return s.Generate(ctx, img, prompt)
}

func (s *Service) fail(ctx context.Context, path string, err error) string {
	logger.FromContextOr(ctx, s.logger).Warn("Model generation failed",
		zap.String("backend", s.backend.Name()),
		zap.String("image", filepath.Base(path)),
		zap.Error(err),
	)
	return ErrorPayload(err)
}

func loadImage(path string) (domain.Image, error) {
	if path == "" {
		return domain.Image{}, fmt.Errorf("%w: empty image path", domain.ErrInvalidInput)
	}
	mime, ok := domain.ImageMIME(path)
	if !ok {
		return domain.Image{}, fmt.Errorf("%w: %s", domain.ErrUnsupportedFormat, filepath.Base(path))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Image{}, fmt.Errorf("read image: %w", err)
	}
	return domain.Image{Path: path, MIME: mime, Data: data}, nil
}
