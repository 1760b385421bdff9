package respcache

import (
	"context"
	"time"

	"github.com/kailas-cloud/docscan/internal/db"
	"github.com/kailas-cloud/docscan/internal/domain"
)

type mockBackend struct {
	gen       domain.Generation
	err       error
	loadErr   error
	healthErr error
	callCount int
}

func (m *mockBackend) Name() string  { return "api" }
func (m *mockBackend) Model() string { return "test-model" }

func (m *mockBackend) Generate(_ context.Context, _ domain.Image, _ string) (domain.Generation, error) {
	m.callCount++
	return m.gen, m.err
}

func (m *mockBackend) Load(context.Context) error        { return m.loadErr }
func (m *mockBackend) HealthCheck(context.Context) error { return m.healthErr }

// plainBackend has no optional capabilities.
type plainBackend struct{}

func (plainBackend) Name() string  { return "local" }
func (plainBackend) Model() string { return "m" }
func (plainBackend) Generate(context.Context, domain.Image, string) (domain.Generation, error) {
	return domain.Generation{Text: "x"}, nil
}

// memStore is an in-memory consumer store for tests.
type memStore struct {
	data      map[string][]byte
	getErr    error
	setErr    error
	lastTTL   time.Duration
	touchTTL  time.Duration
	setCalls  int
	touchHits int
}

func newMemStore() *memStore { return &memStore{data: map[string][]byte{}} }

func (m *memStore) Touch(_ context.Context, key string, ttl time.Duration) ([]byte, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	m.touchHits++
	m.touchTTL = ttl
	return v, nil
}

func (m *memStore) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.setCalls++
	m.lastTTL = ttl
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = value
	return nil
}
