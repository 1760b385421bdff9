package pipeline

import "github.com/kailas-cloud/docscan/internal/domain"

// Defaults for the routing pool reduction.
const (
	DefaultRoutingPageThreshold = 5
	DefaultRoutingPoolCap       = 3
)

// Settings is the configuration snapshot a run works with. It is copied at
// the start of Run and never changes during it.
type Settings struct {
	Mode                 domain.Mode
	PoolSize             int
	RoutingPageThreshold int // routing pool is capped above this many pages
	RoutingPoolCap       int
	PageLimit            int     // max pages rendered per PDF, 0 = all
	MinConfidence        float64 // values at or below are dropped, 0 = keep all
	TempDir              string
}

// WithDefaults fills zero routing thresholds.
func (s Settings) WithDefaults() Settings {
	if s.RoutingPageThreshold <= 0 {
		s.RoutingPageThreshold = DefaultRoutingPageThreshold
	}
	if s.RoutingPoolCap <= 0 {
		s.RoutingPoolCap = DefaultRoutingPoolCap
	}
	if s.Mode == "" {
		s.Mode = domain.ModeAPI
	}
	return s
}

// PoolSizes returns the worker counts for the routing and extraction phases.
// Local mode runs one unit at a time; in API mode the pool is clamped to
// [1,20] and routing is capped on large runs.
func (s Settings) PoolSizes(totalPages int) (routing, extraction int) {
	if s.Mode == domain.ModeLocal {
		return 1, 1
	}
	pool := domain.ClampPoolSize(s.PoolSize)
	routing = pool
	if totalPages > s.RoutingPageThreshold && s.RoutingPoolCap > 0 {
		routing = min(pool, s.RoutingPoolCap)
	}
	return routing, pool
}
