// Package queue is the Redis-backed execution task queue: a ready list
// consumed with BLPOP and a delayed ZSET scored by not-before unix time.
// Delivery is at-least-once; consumers guard duplicates with the
// per-schedule lease.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Queue is a named task queue on a shared Redis.
type Queue struct {
	rdb  *redis.Client
	name string
}

// New returns a queue namespaced by name.
func New(rdb *redis.Client, name string) *Queue {
	return &Queue{rdb: rdb, name: name}
}

func (q *Queue) readyKey() string   { return "queue:" + q.name + ":ready" }
func (q *Queue) delayedKey() string { return "queue:" + q.name + ":delayed" }

// Submit enqueues t. A positive delay parks the task in the delayed set
// until its not-before time passes; otherwise it goes straight to ready.
func (q *Queue) Submit(ctx context.Context, t Task, delay time.Duration) error {
	if delay > 0 {
		t.NotBefore = time.Now().Add(delay)
	}
	payload, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode task: %w", err)
	}
	if !t.NotBefore.IsZero() && t.NotBefore.After(time.Now()) {
		return q.rdb.ZAdd(ctx, q.delayedKey(), redis.Z{
			Score:  float64(t.NotBefore.Unix()),
			Member: payload,
		}).Err()
	}
	return q.rdb.RPush(ctx, q.readyKey(), payload).Err()
}

// Dequeue blocks up to timeout for the next ready task. Returns nil, nil
// when nothing arrived in time.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*Task, error) {
	res, err := q.rdb.BLPop(ctx, timeout, q.readyKey()).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var t Task
	if err := json.Unmarshal([]byte(res[1]), &t); err != nil {
		return nil, fmt.Errorf("decode task: %w", err)
	}
	return &t, nil
}

// MoveDue shifts delayed tasks whose not-before has passed onto the ready
// list and returns how many moved. ZRem before RPush keeps a task from
// being moved twice when movers race.
func (q *Queue) MoveDue(ctx context.Context, now time.Time) (int, error) {
	members, err := q.rdb.ZRangeByScore(ctx, q.delayedKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.Unix(), 10),
	}).Result()
	if err != nil {
		return 0, err
	}

	moved := 0
	for _, m := range members {
		removed, err := q.rdb.ZRem(ctx, q.delayedKey(), m).Result()
		if err != nil {
			return moved, err
		}
		if removed == 0 {
			continue
		}
		if err := q.rdb.RPush(ctx, q.readyKey(), m).Err(); err != nil {
			return moved, err
		}
		moved++
	}
	return moved, nil
}

// Depth returns the current ready and delayed sizes.
func (q *Queue) Depth(ctx context.Context) (ready, delayed int64, err error) {
	ready, err = q.rdb.LLen(ctx, q.readyKey()).Result()
	if err != nil {
		return 0, 0, err
	}
	delayed, err = q.rdb.ZCard(ctx, q.delayedKey()).Result()
	if err != nil {
		return 0, 0, err
	}
	return ready, delayed, nil
}
