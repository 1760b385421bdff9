package domain

import (
	"context"
	"sync"
)

type modelUsageKey struct{}

// ModelUsage collects model-call counts for a single HTTP request.
// Pipeline workers write concurrently; the handler reads after the run.
type ModelUsage struct {
	mu          sync.Mutex
	calls       int
	cacheHits   int
	totalTokens int
}

// NewContextWithUsage returns a context with an embedded usage collector.
func NewContextWithUsage(ctx context.Context) (context.Context, *ModelUsage) {
	u := &ModelUsage{}
	return context.WithValue(ctx, modelUsageKey{}, u), u
}

// UsageFromContext extracts the usage collector from context. Returns nil if not set.
func UsageFromContext(ctx context.Context) *ModelUsage {
	u, _ := ctx.Value(modelUsageKey{}).(*ModelUsage)
	return u
}

// Record counts one model call.
func (u *ModelUsage) Record(g Generation) {
	if u == nil {
		return
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.calls++
	if g.Cached {
		u.cacheHits++
	}
	u.totalTokens += g.PromptTokens + g.CompletionTokens
}

// Snapshot returns calls, cache hits and tokens.
func (u *ModelUsage) Snapshot() (calls, cacheHits, tokens int) {
	if u == nil {
		return 0, 0, 0
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.calls, u.cacheHits, u.totalTokens
}
