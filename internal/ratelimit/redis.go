package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore counts windows in Redis via a pipelined INCR+EXPIRE. The
// key embeds the window start so a new window simply lands on a fresh
// key; expiry keeps dead windows from accumulating.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

var _ CounterStore = (*RedisStore)(nil)

// RedisOption configures the RedisStore.
type RedisOption func(*RedisStore)

// WithPrefix overrides the default key prefix.
func WithPrefix(prefix string) RedisOption {
	return func(s *RedisStore) { s.prefix = strings.Trim(prefix, ":") }
}

// NewRedisStore wraps an existing client.
func NewRedisStore(rdb *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{rdb: rdb, prefix: "ratelimit"}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) Incr(ctx context.Context, identifier, endpoint string, windowStart time.Time, window time.Duration) (int64, error) {
	key := fmt.Sprintf("%s:%s:%s:%d", s.prefix, endpoint, identifier, windowStart.Unix())

	pipe := s.rdb.Pipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}
