// Package monitor audits the schedule fleet: schedules that failed
// recently, schedules stuck on repeated failures, and active cron schedules
// that have gone stale. It only ever reads the store.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mkarlsen/relayd/internal/clock"
	"github.com/mkarlsen/relayd/internal/metrics"
	"github.com/mkarlsen/relayd/internal/models"
	"github.com/mkarlsen/relayd/internal/repo"
)

const (
	// StuckThreshold is the failure count at which a schedule is reported
	// stuck, regardless of its status.
	StuckThreshold = 5
	// FreshnessWindow bounds both the failed lookback and how long an
	// active cron schedule may go without a run before it is stale.
	FreshnessWindow = 24 * time.Hour
)

// Store is the read-only slice of the schedule store the monitor sweeps.
type Store interface {
	CountFailedSince(ctx context.Context, since time.Time) (int, error)
	ListStuck(ctx context.Context, minFailures int64) ([]models.Schedule, error)
	ListStale(ctx context.Context, cutoff time.Time) ([]models.Schedule, error)
	Summary(ctx context.Context) (*repo.Summary, error)
}

// Monitor runs periodic health sweeps.
type Monitor struct {
	store Store
	clk   clock.Clock
	log   *slog.Logger
}

// New returns a Monitor.
func New(store Store, clk clock.Clock, log *slog.Logger) *Monitor {
	return &Monitor{store: store, clk: clk, log: log}
}

// Report aggregates one sweep.
type Report struct {
	FailedRecent int
	Stuck        []models.Schedule
	Stale        []models.Schedule
	Summary      *repo.Summary
	CheckErrors  int
}

// Sweep runs the failed, stuck, and stale checks plus the fleet summary.
// A failing check is logged and counted; the remaining checks still run.
func (m *Monitor) Sweep(ctx context.Context) Report {
	now := m.clk.Now()
	var rep Report

	if n, err := m.store.CountFailedSince(ctx, now.Add(-FreshnessWindow)); err != nil {
		rep.CheckErrors++
		m.log.Error("failed check did not run", "err", err)
	} else {
		rep.FailedRecent = n
		if n > 0 {
			m.log.Warn("schedules entered failed state recently",
				"count", n, "window", FreshnessWindow.String())
		}
	}

	if list, err := m.store.ListStuck(ctx, StuckThreshold); err != nil {
		rep.CheckErrors++
		m.log.Error("stuck check did not run", "err", err)
	} else {
		rep.Stuck = list
		for _, s := range list {
			m.log.Warn("schedule stuck on repeated failures",
				"schedule_id", s.ID,
				"name", s.Name,
				"failure_count", s.FailureCount,
				"status", s.Status)
		}
	}

	if list, err := m.store.ListStale(ctx, now.Add(-FreshnessWindow)); err != nil {
		rep.CheckErrors++
		m.log.Error("stale check did not run", "err", err)
	} else {
		rep.Stale = list
		for _, s := range list {
			m.log.Warn("active schedule has not run recently",
				"schedule_id", s.ID,
				"name", s.Name,
				"last_run", SinceString(s.LastExecutedAt, now))
		}
	}

	if sum, err := m.store.Summary(ctx); err != nil {
		rep.CheckErrors++
		m.log.Error("fleet summary did not run", "err", err)
	} else {
		rep.Summary = sum
		metrics.SetFleetSummary(sum.Total, sum.Enabled, sum.Disabled, sum.Failed, sum.Cron, sum.Manual)
		m.log.Info("schedule fleet summary",
			"total", sum.Total,
			"enabled", sum.Enabled,
			"disabled", sum.Disabled,
			"failed", sum.Failed,
			"cron", sum.Cron,
			"manual", sum.Manual)
	}

	metrics.SetHealthChecks(rep.FailedRecent, len(rep.Stuck), len(rep.Stale))
	metrics.MonitorSweeps.Inc()
	return rep
}

// SinceString renders how long ago t was, for humans. Nil means the
// schedule never ran.
func SinceString(t *time.Time, now time.Time) string {
	if t == nil {
		return "Never"
	}
	d := now.Sub(*t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 48*time.Hour:
		return fmt.Sprintf("%.1fh ago", d.Hours())
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
