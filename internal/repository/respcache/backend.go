package respcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docscan/internal/db"
	"github.com/kailas-cloud/docscan/internal/domain"
)

const cacheKeyPrefix = "docscan:resp:"

// store is the consumer interface for the response cache (ISP).
type store interface {
	Touch(ctx context.Context, key string, ttl time.Duration) ([]byte, error)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// entry is the cached form of a generation.
type entry struct {
	Text string `json:"text"`
}

// CachedBackend caches model responses in a key-value store.
// Errors and empty responses are never cached.
type CachedBackend struct {
	inner      domain.Backend
	store      store
	ttl        time.Duration
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates a caching decorator. ttl <= 0 stores entries without expiry;
// otherwise every hit extends the entry by ttl.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"), passed explicitly.
func New(
	inner domain.Backend,
	s store,
	ttl time.Duration,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *CachedBackend {
	return &CachedBackend{
		inner:      inner,
		store:      s,
		ttl:        ttl,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

// Name returns the inner backend name.
func (c *CachedBackend) Name() string { return c.inner.Name() }

// Model returns the inner model identifier.
func (c *CachedBackend) Model() string { return c.inner.Model() }

// Generate returns a cached response or calls the inner backend.
// Cache hit: token counts are zero, Cached is set.
func (c *CachedBackend) Generate(ctx context.Context, img domain.Image, prompt string) (domain.Generation, error) {
	key := c.cacheKey(img, prompt)

	if text, ok := c.getFromCache(ctx, key); ok {
		c.incCache("hit")
		return domain.Generation{Text: text, Cached: true}, nil
	}

	c.incCache("miss")

	gen, err := c.inner.Generate(ctx, img, prompt)
	if err != nil {
		return domain.Generation{}, err //nolint:wrapcheck // message becomes the error payload verbatim
	}

	if gen.Text != "" {
		c.putToCache(ctx, key, gen.Text)
	}
	return gen, nil
}

// Load forwards to the inner backend.
func (c *CachedBackend) Load(ctx context.Context) error {
	if l, ok := c.inner.(domain.Loader); ok {
		return l.Load(ctx) //nolint:wrapcheck // decorator passthrough
	}
	return nil
}

// HealthCheck forwards to the inner backend.
func (c *CachedBackend) HealthCheck(ctx context.Context) error {
	if h, ok := c.inner.(domain.HealthChecker); ok {
		return h.HealthCheck(ctx) //nolint:wrapcheck // decorator passthrough
	}
	return nil
}

func (c *CachedBackend) incCache(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

// cacheKey hashes backend, model, prompt and image bytes; fields are
// NUL-separated so adjacent values cannot collide.
func (c *CachedBackend) cacheKey(img domain.Image, prompt string) string {
	h := sha256.New()
	for _, part := range []string{c.inner.Name(), c.inner.Model(), prompt} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	h.Write(img.Data)
	return cacheKeyPrefix + hex.EncodeToString(h.Sum(nil))
}

func (c *CachedBackend) getFromCache(ctx context.Context, key string) (string, bool) {
	data, err := c.store.Touch(ctx, key, c.ttl)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Failed to get cached response", zap.String("key", key), zap.Error(err))
		}
		return "", false
	}
	if len(data) == 0 {
		return "", false
	}

	var e entry
	if err := json.Unmarshal(data, &e); err != nil || e.Text == "" {
		c.logger.Warn("Failed to parse cached response", zap.String("key", key), zap.Error(err))
		return "", false
	}
	return e.Text, true
}

func (c *CachedBackend) putToCache(ctx context.Context, key, text string) {
	data, err := json.Marshal(entry{Text: text})
	if err != nil {
		return
	}
	if err := c.store.Put(ctx, key, data, c.ttl); err != nil {
		c.logger.Warn("Failed to cache response", zap.String("key", key), zap.Error(err))
	}
}
