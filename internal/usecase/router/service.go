// Package router decides which pages go through value extraction.
package router

import (
	"context"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docscan/internal/logger"
	"github.com/kailas-cloud/docscan/internal/metrics"
	"github.com/kailas-cloud/docscan/internal/usecase/gateway"
	"github.com/kailas-cloud/docscan/internal/usecase/prompt"
)

// Reason explains a routing decision.
type Reason string

// Routing reasons.
const (
	ReasonNoFilter  Reason = "no_filter"
	ReasonModel     Reason = "model"
	ReasonAPIError  Reason = "api_error"
	ReasonAmbiguous Reason = "ambiguous"
)

// Service routes pages with the include/exclude filters. Any failure
// includes the page.
type Service struct {
	gen    Generator
	logger *zap.Logger
}

// New creates a router Service.
func New(gen Generator, logger *zap.Logger) *Service {
	return &Service{gen: gen, logger: logger}
}

// Active reports whether any filter is set.
func Active(include, exclude string) bool {
	return strings.TrimSpace(include) != "" || strings.TrimSpace(exclude) != ""
}

// ShouldProcess returns whether the page at imagePath passes the filters.
func (s *Service) ShouldProcess(ctx context.Context, imagePath, include, exclude string) (bool, Reason) {
	if !Active(include, exclude) {
		record(true, ReasonNoFilter)
		return true, ReasonNoFilter
	}

	resp := s.gen.Generate(ctx, imagePath, prompt.Routing(include, exclude))
	ok, reason := Decide(resp)
	record(ok, reason)

	logger.FromContextOr(ctx, s.logger).Debug("Page routed",
		zap.String("image", filepath.Base(imagePath)),
		zap.Bool("include", ok),
		zap.String("reason", string(reason)),
	)
	return ok, reason
}

// Decide interprets a routing response. Any "true" includes the page, then
// "false" excludes it; error payloads and responses with neither include it.
func Decide(resp string) (bool, Reason) {
	lower := strings.ToLower(resp)
	if strings.Contains(lower, "error") && (strings.Contains(lower, "404") || strings.Contains(lower, "not found")) {
		return true, ReasonAPIError
	}
	if gateway.IsErrorPayload(resp) {
		return true, ReasonAPIError
	}

	switch {
	case strings.Contains(lower, "true"):
		return true, ReasonModel
	case strings.Contains(lower, "false"):
		return false, ReasonModel
	default:
		return true, ReasonAmbiguous
	}
}

func record(include bool, reason Reason) {
	decision := "exclude"
	if include {
		decision = "include"
	}
	metrics.RoutingDecisionsTotal.WithLabelValues(decision, string(reason)).Inc()
}
