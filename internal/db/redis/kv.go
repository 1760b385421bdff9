package redis

import (
	"context"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/docscan/internal/db"
)

// Get returns the value at key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	cmd := s.client.B().Get().Key(key).Build()
	return bytesResult(s.client.Do(ctx, cmd), db.OpGet)
}

// Touch returns the value at key and resets its expiry to ttl (GETEX EX).
// ttl <= 0 degrades to a plain GET.
func (s *Store) Touch(ctx context.Context, key string, ttl time.Duration) ([]byte, error) {
	sec := int64(ttl / time.Second)
	if sec <= 0 {
		return s.Get(ctx, key)
	}
	cmd := s.client.B().Getex().Key(key).ExSeconds(sec).Build()
	return bytesResult(s.client.Do(ctx, cmd), db.OpGetEx)
}

// Put stores value at key, with expiry when ttl > 0.
func (s *Store) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	set := s.client.B().Set().Key(key).Value(rueidis.BinaryString(value))
	var cmd rueidis.Completed
	if ttl > 0 {
		cmd = set.Ex(ttl).Build()
	} else {
		cmd = set.Build()
	}
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpSet, Err: err}
	}
	return nil
}

func bytesResult(res rueidis.RedisResult, op db.Op) ([]byte, error) {
	data, err := res.AsBytes()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, db.ErrKeyNotFound
		}
		return nil, &db.Error{Op: op, Err: err}
	}
	return data, nil
}
