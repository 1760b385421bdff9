package pipeline

import (
	"context"

	"github.com/kailas-cloud/docscan/internal/domain"
	"github.com/kailas-cloud/docscan/internal/usecase/router"
)

// Router decides whether a page goes through extraction.
type Router interface {
	ShouldProcess(ctx context.Context, imagePath, include, exclude string) (bool, router.Reason)
}

// Extractor reads section values from one page image.
type Extractor interface {
	ExtractPage(ctx context.Context, imagePath string, titles []string, expert string) ([]domain.ExtractedValue, error)
}

// Expander turns a document reference into page images under dir.
type Expander interface {
	Expand(ctx context.Context, ref, dir string, limit int) (domain.Document, error)
}

// Readiness reports whether the model backend can serve a run.
type Readiness interface {
	Ready(ctx context.Context) error
}
