// Package db defines the storage contract behind the model response cache.
package db

import (
	"context"
	"time"
)

// Store is a Redis-protocol connection holding cached model responses.
type Store interface {
	Pinger
	ResponseStore
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ResponseStore keeps opaque response blobs under content-addressed keys.
// ttl <= 0 means no expiry.
type ResponseStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	// Touch returns the value and pushes its expiry ttl into the future.
	Touch(ctx context.Context, key string, ttl time.Duration) ([]byte, error)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
