// Package dispatcher evaluates the schedule fleet once per tick and submits
// an execution task for every schedule that is due in its own timezone.
package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mkarlsen/relayd/internal/clock"
	"github.com/mkarlsen/relayd/internal/cronexpr"
	"github.com/mkarlsen/relayd/internal/metrics"
	"github.com/mkarlsen/relayd/internal/models"
	"github.com/mkarlsen/relayd/internal/queue"
)

// Store is the slice of the schedule store the dispatcher reads.
type Store interface {
	ListDispatchEligible(ctx context.Context) ([]models.Schedule, error)
}

// Submitter places execution tasks on the task queue.
type Submitter interface {
	Submit(ctx context.Context, t queue.Task, delay time.Duration) error
}

// Dispatcher runs one due-ness evaluation pass per tick.
type Dispatcher struct {
	store     Store
	queue     Submitter
	clk       clock.Clock
	log       *slog.Logger
	defaultTZ string
}

// New returns a Dispatcher. defaultTZ is the zone used by schedules that
// set none of their own.
func New(store Store, q Submitter, clk clock.Clock, log *slog.Logger, defaultTZ string) *Dispatcher {
	return &Dispatcher{store: store, queue: q, clk: clk, log: log, defaultTZ: defaultTZ}
}

// Stats summarizes one tick.
type Stats struct {
	Considered int
	Dispatched int
	Skipped    int
}

// Tick evaluates every dispatch-eligible schedule once and submits a task
// for each that is due. Per-schedule failures (bad expression, submit
// error) are logged and skipped; they never abort the tick.
func (d *Dispatcher) Tick(ctx context.Context) (Stats, error) {
	var st Stats

	schedules, err := d.store.ListDispatchEligible(ctx)
	if err != nil {
		return st, fmt.Errorf("list eligible schedules: %w", err)
	}

	now := d.clk.Now()
	for _, s := range schedules {
		st.Considered++
		if !s.DispatchEligible() {
			continue
		}

		loc := clock.Zone(s.EffectiveTimezone(d.defaultTZ), d.defaultTZ)
		due, err := cronexpr.IsDue(*s.CronExpr, now.In(loc))
		if err != nil {
			st.Skipped++
			d.log.Warn("skipping schedule with invalid cron expression",
				"schedule_id", s.ID,
				"name", s.Name,
				"cron_expr", *s.CronExpr,
				"err", err)
			continue
		}
		if !due {
			continue
		}

		if err := d.queue.Submit(ctx, queue.NewTask(s.ID), 0); err != nil {
			st.Skipped++
			d.log.Error("submit execution task",
				"schedule_id", s.ID,
				"name", s.Name,
				"err", err)
			continue
		}
		st.Dispatched++
		d.log.Info("dispatched schedule", "schedule_id", s.ID, "name", s.Name)
	}

	metrics.RecordTick(st.Considered, st.Dispatched)
	d.log.Info("dispatch tick complete",
		"considered", st.Considered,
		"dispatched", st.Dispatched,
		"skipped", st.Skipped)
	return st, nil
}
