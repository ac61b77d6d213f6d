// Package lease hands out per-schedule execution leases so at most one
// attempt per schedule is in flight at a time, even when overlapping
// dispatcher ticks submit duplicate tasks.
package lease

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Key returns the Redis key guarding a schedule's execution.
func Key(scheduleID int64) string {
	return "lease:schedule:" + strconv.FormatInt(scheduleID, 10)
}

// Manager acquires and releases leases on a shared Redis.
type Manager struct {
	rdb *redis.Client
}

// NewManager returns a lease Manager.
func NewManager(rdb *redis.Client) *Manager {
	return &Manager{rdb: rdb}
}

// Acquire takes the lease for scheduleID if it is free. holder identifies
// the owner so Release cannot drop someone else's lease. The TTL bounds the
// hold in case the owner dies mid-execution.
func (m *Manager) Acquire(ctx context.Context, scheduleID int64, holder string, ttl time.Duration) (bool, error) {
	return m.rdb.SetNX(ctx, Key(scheduleID), holder, ttl).Result()
}

const releaseScript = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0`

// Release drops the lease only while holder still owns it.
func (m *Manager) Release(ctx context.Context, scheduleID int64, holder string) (bool, error) {
	n, err := m.rdb.Eval(ctx, releaseScript, []string{Key(scheduleID)}, holder).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
