package health

import "context"

// CachePinger checks response cache availability.
type CachePinger interface {
	Ping(ctx context.Context) error
}

// BackendChecker checks model backend availability.
type BackendChecker interface {
	HealthCheck(ctx context.Context) error
}
