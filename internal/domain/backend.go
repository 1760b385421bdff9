package domain

import "context"

// Backend generates text from one page image and a prompt.
type Backend interface {
	Name() string
	Model() string
	Generate(ctx context.Context, img Image, prompt string) (Generation, error)
}

// Loader is implemented by backends that need a one-time model load.
type Loader interface {
	Load(ctx context.Context) error
}

// HealthChecker verifies backend availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Image is an encoded page image.
type Image struct {
	Path string
	MIME string
	Data []byte
}

// Generation carries model output and token usage through the decorator chain.
type Generation struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
	Cached           bool
}
