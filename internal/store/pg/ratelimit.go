package pg

import (
	"context"
	"time"

	"esawitku.app/internal/ratelimit"
)

// RateLimitStore adapts Store to ratelimit.CounterStore using an upsert
// on the (identifier, endpoint, window_start) key. Used when no Redis
// is configured; counters then share the primary database.
type RateLimitStore struct{ s *Store }

func (s *Store) RateLimits() *RateLimitStore { return &RateLimitStore{s: s} }

var _ ratelimit.CounterStore = (*RateLimitStore)(nil)

func (r *RateLimitStore) Incr(ctx context.Context, identifier, endpoint string, windowStart time.Time, window time.Duration) (int64, error) {
	var count int64
	err := r.s.db.QueryRowContext(ctx, `
		insert into rate_limits (identifier, endpoint, window_start, expires_at, count)
		values ($1,$2,$3,$4,1)
		on conflict (identifier, endpoint, window_start) do update
		set count = rate_limits.count + 1
		returning count
	`, identifier, endpoint, windowStart, windowStart.Add(window)).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// PruneExpired deletes counters whose window has passed. Called
// periodically from the API process.
func (r *RateLimitStore) PruneExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.s.db.ExecContext(ctx, `delete from rate_limits where expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
