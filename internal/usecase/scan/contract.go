package scan

import (
	"context"

	"github.com/kailas-cloud/docscan/internal/domain"
)

// PageGenerator sends a prompt with one page of a document to the model.
// A PDF page is rendered for the call and released before it returns.
type PageGenerator interface {
	GenerateFromFile(ctx context.Context, path string, pageIndex int, prompt string) string
}

// Resolver localizes a document reference and counts its pages.
type Resolver interface {
	Resolve(ctx context.Context, ref, dir string, limit int) (domain.Source, error)
}
