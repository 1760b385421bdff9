// Package ollama is the local vision model backend served by Ollama.
package ollama

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docscan/internal/domain"
)

// BackendName identifies the local backend in logs and metrics.
const BackendName = "local"

// Defaults used when Config leaves a field zero.
const (
	DefaultBaseURL   = "http://localhost:11434"
	DefaultMaxTokens = 16384
	DefaultTimeout   = 300 * time.Second
)

// Config holds the local backend settings. Generation parameters are fixed
// per process; callers cannot override them.
type Config struct {
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
	Logger      *zap.Logger
}

// Backend calls the Ollama generate API. The model is loaded once per process.
type Backend struct {
	baseURL     string
	model       string
	maxTokens   int
	temperature float64
	client      *http.Client
	logger      *zap.Logger

	loadOnce sync.Once
	loadErr  error
}

// NewBackend creates a local backend. No request is made until the first Load or Generate.
func NewBackend(cfg *Config) *Backend {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
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
		baseURL:     baseURL,
		model:       cfg.Model,
		maxTokens:   maxTokens,
		temperature: cfg.Temperature,
		client:      &http.Client{Timeout: timeout},
		logger:      log,
	}
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

type generateRequest struct {
	Model   string           `json:"model"`
	Prompt  string           `json:"prompt"`
	Images  []string         `json:"images,omitempty"`
	Stream  bool             `json:"stream"`
	Options *generateOptions `json:"options,omitempty"`
}

type generateResponse struct {
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
	Error           string `json:"error"`
}

// Name implements domain.Backend.
func (b *Backend) Name() string { return BackendName }

// Model implements domain.Backend.
func (b *Backend) Model() string { return b.model }

// Load asks Ollama to load the model into memory. It runs once; a failure
// is kept and returned by every later Load and Generate.
// Загрузка не привязана к отмене вызывающего: ушедший клиент не должен
// навсегда помечать модель недоступной. Ограничена таймаутом http-клиента.
func (b *Backend) Load(ctx context.Context) error {
	ctx = context.WithoutCancel(ctx)
	b.loadOnce.Do(func() {
		start := time.Now()
		if strings.TrimSpace(b.model) == "" {
			b.loadErr = fmt.Errorf("%w: no local model configured", domain.ErrModelUnavailable)
			return
		}
		// An empty prompt loads the model without generating.
		if _, err := b.generate(ctx, generateRequest{Model: b.model, Stream: false}); err != nil {
			b.loadErr = fmt.Errorf("%w: %s: %w", domain.ErrModelUnavailable, b.model, err)
			b.logger.Error("Local model load failed", zap.String("model", b.model), zap.Error(err))
			return
		}
		b.logger.Info("Local model loaded",
			zap.String("model", b.model),
			zap.Duration("duration", time.Since(start)),
		)
	})
	return b.loadErr
}

// Generate implements domain.Backend.
func (b *Backend) Generate(ctx context.Context, img domain.Image, prompt string) (domain.Generation, error) {
	if err := b.Load(ctx); err != nil {
		return domain.Generation{}, err
	}

	req := generateRequest{
		Model:  b.model,
		Prompt: prompt,
		Stream: false,
		Options: &generateOptions{
			Temperature: b.temperature,
			NumPredict:  b.maxTokens,
		},
	}
	if len(img.Data) > 0 {
		req.Images = []string{base64.StdEncoding.EncodeToString(img.Data)}
	}

	resp, err := b.generate(ctx, req)
	if err != nil {
		return domain.Generation{}, err
	}
	return domain.Generation{
		Text:             resp.Response,
		PromptTokens:     resp.PromptEvalCount,
		CompletionTokens: resp.EvalCount,
	}, nil
}

// HealthCheck verifies the Ollama server answers /api/tags.
func (b *Backend) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/api/tags", http.NoBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("calling Ollama: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama tags: status %d", resp.StatusCode)
	}
	return nil
}

func (b *Backend) generate(ctx context.Context, reqBody generateRequest) (generateResponse, error) {
	endpoint := b.baseURL + "/api/generate"

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return generateResponse{}, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return generateResponse{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return generateResponse{}, fmt.Errorf("%w: calling Ollama: %w", domain.ErrTransientCall, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return generateResponse{}, domain.NewCallError(resp.StatusCode, errorBody(body), endpoint)
	}

	var genResp generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return generateResponse{}, fmt.Errorf("%w: decoding response: %w", domain.ErrTransientCall, err)
	}
	if genResp.Error != "" {
		return generateResponse{}, fmt.Errorf("%w: %s", domain.ErrTransientCall, genResp.Error)
	}
	return genResp, nil
}

// errorBody prefers Ollama's {"error": "..."} message over the raw body.
func errorBody(body []byte) string {
	var parsed struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Error != "" {
		return parsed.Error
	}
	return strings.TrimSpace(string(body))
}
