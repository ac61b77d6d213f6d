// Package executor consumes execution tasks, invokes the call-execution
// service for each schedule, and owns the retry/backoff and terminal
// failure policy.
package executor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/mkarlsen/relayd/internal/clock"
	"github.com/mkarlsen/relayd/internal/metrics"
	"github.com/mkarlsen/relayd/internal/models"
	"github.com/mkarlsen/relayd/internal/queue"
)

// Result is what the call-execution collaborator reports back.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// CallExecutor runs the configured API call for a schedule. It lives
// outside this engine; a failure result and a returned error are treated
// the same way.
type CallExecutor interface {
	ExecuteScheduledCall(ctx context.Context, s models.Schedule) (Result, error)
}

// Store is the slice of the schedule store the worker mutates.
type Store interface {
	GetByID(ctx context.Context, id int64) (*models.Schedule, error)
	TouchLastExecuted(ctx context.Context, id int64, at time.Time) error
	IncrementExecutionCount(ctx context.Context, id int64) error
	IncrementFailureCount(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64) (bool, error)
}

// TaskQueue is the worker side of the execution queue.
type TaskQueue interface {
	Submit(ctx context.Context, t queue.Task, delay time.Duration) error
	Dequeue(ctx context.Context, timeout time.Duration) (*queue.Task, error)
}

// Locker hands out per-schedule execution leases.
type Locker interface {
	Acquire(ctx context.Context, scheduleID int64, holder string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, scheduleID int64, holder string) (bool, error)
}

// DefaultBackoff is the retry spacing used when a schedule configures no
// retry delay of its own, clamped at the last entry.
var DefaultBackoff = []time.Duration{time.Minute, 5 * time.Minute, 15 * time.Minute}

// leaseSlack pads the lease TTL past the execution timeout so the lease
// outlives a timed-out attempt and its bookkeeping.
const leaseSlack = 30 * time.Second

// dequeueWait bounds each blocking pop so workers notice cancellation.
const dequeueWait = 5 * time.Second

// Config controls the worker pool.
type Config struct {
	// Workers is the pool size (default 4).
	Workers int
	// Tries is the total attempt budget when a schedule sets no
	// max_retries of its own (default 3).
	Tries int
	// Timeout is the hard wall-clock budget per attempt (default 2m).
	Timeout time.Duration
	// Backoff overrides DefaultBackoff when non-empty.
	Backoff []time.Duration
	// RatePerMinute caps collaborator calls across the pool; 0 disables.
	RatePerMinute int
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.Tries <= 0 {
		c.Tries = 3
	}
	if c.Timeout <= 0 {
		c.Timeout = 2 * time.Minute
	}
	if len(c.Backoff) == 0 {
		c.Backoff = DefaultBackoff
	}
	return c
}

// Pool is a fixed-size worker pool draining the execution queue.
type Pool struct {
	store    Store
	caller   CallExecutor
	queue    TaskQueue
	leases   Locker
	clk      clock.Clock
	log      *slog.Logger
	cfg      Config
	limiter  *rate.Limiter
	workerID string
	wg       sync.WaitGroup
}

// NewPool wires a worker pool. Start launches it.
func NewPool(store Store, caller CallExecutor, q TaskQueue, leases Locker, clk clock.Clock, log *slog.Logger, cfg Config) *Pool {
	cfg = cfg.withDefaults()
	var limiter *rate.Limiter
	if cfg.RatePerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.RatePerMinute)/60.0), cfg.RatePerMinute)
	}
	return &Pool{
		store:    store,
		caller:   caller,
		queue:    q,
		leases:   leases,
		clk:      clk,
		log:      log,
		cfg:      cfg,
		limiter:  limiter,
		workerID: uuid.NewString(),
	}
}

// Start launches the worker goroutines. They drain the queue until ctx is
// canceled; Wait blocks until all of them exit.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.run(ctx, i)
	}
	p.log.Info("execution workers started", "workers", p.cfg.Workers, "tries", p.cfg.Tries, "timeout", p.cfg.Timeout)
}

// Wait blocks until every worker has exited.
func (p *Pool) Wait() { p.wg.Wait() }

func (p *Pool) run(ctx context.Context, idx int) {
	defer p.wg.Done()
	for {
		if ctx.Err() != nil {
			return
		}
		t, err := p.queue.Dequeue(ctx, dequeueWait)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.log.Error("dequeue execution task", "worker", idx, "err", err)
			time.Sleep(time.Second)
			continue
		}
		if t == nil {
			continue
		}
		p.Process(ctx, *t)
	}
}

// Process runs one execution task end to end: lease, attempt, counters,
// and either a delayed retry or the terminal failure transition.
func (p *Pool) Process(ctx context.Context, t queue.Task) {
	holder := p.workerID + ":" + t.ID.String()
	ok, err := p.leases.Acquire(ctx, t.ScheduleID, holder, p.cfg.Timeout+leaseSlack)
	if err != nil {
		p.log.Error("acquire execution lease", "schedule_id", t.ScheduleID, "err", err)
		return
	}
	if !ok {
		p.log.Warn("execution already in flight, dropping duplicate task",
			"schedule_id", t.ScheduleID, "attempt", t.Attempt, "task_id", t.ID)
		return
	}
	defer func() {
		// Background context: the lease must be released even when ctx
		// was canceled mid-attempt.
		if _, err := p.leases.Release(context.Background(), t.ScheduleID, holder); err != nil {
			p.log.Error("release execution lease", "schedule_id", t.ScheduleID, "err", err)
		}
	}()

	s, err := p.store.GetByID(ctx, t.ScheduleID)
	if err != nil {
		p.log.Error("load schedule", "schedule_id", t.ScheduleID, "err", err)
		return
	}
	if s == nil {
		p.log.Warn("schedule no longer exists, dropping task", "schedule_id", t.ScheduleID)
		return
	}

	// A dispatch attempt is happening now, regardless of its outcome.
	if err := p.store.TouchLastExecuted(ctx, s.ID, p.clk.Now()); err != nil {
		p.log.Error("record dispatch attempt", "schedule_id", s.ID, "err", err)
	}

	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return
		}
	}

	metrics.ExecutionsRunning.Inc()
	defer metrics.ExecutionsRunning.Dec()

	res, err := p.invoke(ctx, *s)
	if err == nil && res.Success {
		if err := p.store.IncrementExecutionCount(ctx, s.ID); err != nil {
			p.log.Error("increment execution count", "schedule_id", s.ID, "err", err)
		}
		metrics.RecordExecution("success")
		p.log.Info("execution succeeded",
			"schedule_id", s.ID, "name", s.Name, "attempt", t.Attempt, "message", res.Message)
		return
	}
	p.fail(ctx, *s, t, res, err)
}

func (p *Pool) invoke(ctx context.Context, s models.Schedule) (Result, error) {
	runCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()
	return p.caller.ExecuteScheduledCall(runCtx, s)
}

func (p *Pool) fail(ctx context.Context, s models.Schedule, t queue.Task, res Result, callErr error) {
	if err := p.store.IncrementFailureCount(ctx, s.ID); err != nil {
		p.log.Error("increment failure count", "schedule_id", s.ID, "err", err)
	}

	outcome := "failure"
	if errors.Is(callErr, context.DeadlineExceeded) {
		outcome = "timeout"
	}
	metrics.RecordExecution(outcome)

	reason := res.Message
	if callErr != nil {
		reason = callErr.Error()
	}

	budget := attemptBudget(s, p.cfg)
	if t.Attempt >= budget {
		marked, err := p.store.MarkFailed(ctx, s.ID)
		if err != nil {
			p.log.Error("mark schedule failed", "schedule_id", s.ID, "err", err)
		}
		p.log.Error("execution attempts exhausted, schedule marked failed",
			"schedule_id", s.ID, "name", s.Name,
			"attempts", t.Attempt, "reason", reason, "transitioned", marked)
		return
	}

	delay := retryDelay(s, p.cfg, t.Attempt)
	if err := p.queue.Submit(ctx, t.Retry(), delay); err != nil {
		p.log.Error("submit retry task", "schedule_id", s.ID, "attempt", t.Attempt+1, "err", err)
		return
	}
	p.log.Warn("execution failed, retry scheduled",
		"schedule_id", s.ID, "name", s.Name,
		"attempt", t.Attempt, "next_attempt", t.Attempt+1,
		"delay", delay, "outcome", outcome, "reason", reason)
}

// attemptBudget resolves the two retry knobs: a schedule with max_retries
// set governs its own budget; otherwise the pool default applies.
func attemptBudget(s models.Schedule, cfg Config) int {
	if s.MaxRetries > 0 {
		return s.MaxRetries
	}
	return cfg.Tries
}

// retryDelay returns the wait before the next attempt. Schedule-configured
// spacing wins; the backoff table is the fallback, clamped at its last entry.
func retryDelay(s models.Schedule, cfg Config, attempt int) time.Duration {
	if d := s.RetryInterval(); d > 0 {
		return d
	}
	table := cfg.Backoff
	i := attempt - 1
	if i < 0 {
		i = 0
	}
	if i >= len(table) {
		i = len(table) - 1
	}
	return table[i]
}
