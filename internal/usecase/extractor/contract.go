package extractor

import "context"

// Generator sends a prompt with a page image to the model.
type Generator interface {
	Generate(ctx context.Context, imagePath, prompt string) string
}
