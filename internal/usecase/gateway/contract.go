package gateway

import "context"

// Rasterizer renders a single PDF page to an image file.
type Rasterizer interface {
	RenderPage(ctx context.Context, pdfPath string, page int, dir string) (string, error)
}
