package health

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Status is the overall verdict of a health check.
type Status string

// Overall statuses.
const (
	Healthy   Status = "ok"
	Degraded  Status = "degraded"
	Unhealthy Status = "error"
)

// CheckResult is the verdict for one component.
type CheckResult string

// Component verdicts.
const (
	CheckOK    CheckResult = "ok"
	CheckError CheckResult = "error"
)

// ProbeTimeout bounds each component probe so /health answers while the model server hangs.
const ProbeTimeout = 5 * time.Second

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// probe is one component check. A failing critical probe makes the
// service unhealthy; any other failure only degrades it.
type probe struct {
	name     string
	critical bool
	run      func(context.Context) error
}

// Service probes the model backend and, when enabled, the response cache.
type Service struct {
	probes []probe
}

// New creates a Service. cache is nil when the response cache is disabled.
func New(backend BackendChecker, cache CachePinger) *Service {
	s := &Service{probes: []probe{{name: "backend", critical: true, run: backend.HealthCheck}}}
	if cache != nil {
		s.probes = append(s.probes, probe{name: "cache", run: cache.Ping})
	}
	return s
}

// Check runs all probes concurrently.
func (s *Service) Check(ctx context.Context) Report {
	var (
		mu     sync.Mutex
		checks = make(map[string]CheckResult, len(s.probes))
		status = Healthy
	)

	var g errgroup.Group
	for _, p := range s.probes {
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(ctx, ProbeTimeout)
			defer cancel()
			err := p.run(pctx)

			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				checks[p.name] = CheckOK
				return nil
			}
			checks[p.name] = CheckError
			switch {
			case p.critical:
				status = Unhealthy
			case status == Healthy:
				status = Degraded
			}
			return nil
		})
	}
	_ = g.Wait()

	return Report{Status: status, Checks: checks}
}
