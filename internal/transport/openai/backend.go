package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docscan/internal/domain"
)

// BackendName identifies the remote backend in logs and metrics.
const BackendName = "api"

// Defaults used when Config leaves a field zero.
const (
	DefaultMaxTokens = 16384
	DefaultTimeout   = 60 * time.Second
)

// Backend is a vision model behind an OpenAI-compatible chat completion API (e.g. Mistral).
type Backend struct {
	client    *openai.Client
	endpoint  string
	apiKey    string
	model     string
	maxTokens int
	timeout   time.Duration
	logger    *zap.Logger
}

// Config holds the remote backend settings.
type Config struct {
	APIKey    string
	Endpoint  string // full chat completions URL, used in error messages
	BaseURL   string // Endpoint without the /chat/completions suffix
	Model     string
	MaxTokens int
	Timeout   time.Duration
	Logger    *zap.Logger
}

// NewBackend creates an OpenAI-compatible vision backend.
func NewBackend(cfg *Config) *Backend {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = cfg.BaseURL

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Backend{
		client:    openai.NewClientWithConfig(clientCfg),
		endpoint:  cfg.Endpoint,
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		maxTokens: maxTokens,
		timeout:   timeout,
		logger:    log,
	}
}

// Name implements domain.Backend.
func (b *Backend) Name() string { return BackendName }

// Model implements domain.Backend.
func (b *Backend) Model() string { return b.model }

// Generate sends one user message holding the prompt and the page image as a data URI.
func (b *Backend) Generate(ctx context.Context, img domain.Image, prompt string) (domain.Generation, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model: b.model,
		Messages: []openai.ChatCompletionMessage{{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: prompt},
				{
					Type:     openai.ChatMessagePartTypeImageURL,
					ImageURL: &openai.ChatMessageImageURL{URL: dataURI(img)},
				},
			},
		}},
		MaxTokens: b.maxTokens,
	}

	resp, err := b.client.CreateChatCompletion(ctx, req)
	if err != nil {
		b.logger.Debug("Chat completion failed",
			zap.String("model", b.model),
			zap.Int("image_bytes", len(img.Data)),
			zap.Error(err),
		)
		return domain.Generation{}, b.parseAPIError(err)
	}
	if len(resp.Choices) == 0 {
		return domain.Generation{}, fmt.Errorf("empty completion response: %w", domain.ErrTransientCall)
	}

	return domain.Generation{
		Text:             resp.Choices[0].Message.Content,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}

// Load validates that the backend is usable. It makes no network call.
func (b *Backend) Load(_ context.Context) error {
	if strings.TrimSpace(b.endpoint) == "" {
		return fmt.Errorf("%w: API server is not configured", domain.ErrConfiguration)
	}
	if b.apiKey == "" && !domain.IsLocalEndpoint(b.endpoint) {
		return fmt.Errorf("%w: API key is required for %s", domain.ErrConfiguration, b.endpoint)
	}
	return nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (b *Backend) HealthCheck(ctx context.Context) error {
	if _, err := b.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

func dataURI(img domain.Image) string {
	mime := img.MIME
	if mime == "" {
		mime = "image/jpeg"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}

// parseAPIError maps client errors to domain.CallError or ErrTransientCall.
func (b *Backend) parseAPIError(err error) error {
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		body := string(reqErr.Body)
		if detail := extractDetail(reqErr.Body); detail != "" {
			body = detail
		}
		return domain.NewCallError(reqErr.HTTPStatusCode, body, b.endpoint)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return domain.NewCallError(apiErr.HTTPStatusCode, apiErr.Message, b.endpoint)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: timeout after %s: %w", domain.ErrTransientCall, b.timeout, err)
	}
	return fmt.Errorf("%w: %w", domain.ErrTransientCall, err)
}

// extractDetail extracts the "detail" or "message" field from a JSON error body.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail  string `json:"detail"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &parsed) != nil {
		return ""
	}
	if parsed.Detail != "" {
		return parsed.Detail
	}
	return parsed.Message
}
