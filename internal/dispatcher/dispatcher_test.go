package dispatcher

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/mkarlsen/relayd/internal/clock"
	"github.com/mkarlsen/relayd/internal/models"
	"github.com/mkarlsen/relayd/internal/queue"
)

type fakeStore struct {
	schedules []models.Schedule
	err       error
}

func (f *fakeStore) ListDispatchEligible(ctx context.Context) ([]models.Schedule, error) {
	return f.schedules, f.err
}

type fakeQueue struct {
	submitted []queue.Task
	err       error
}

func (f *fakeQueue) Submit(ctx context.Context, t queue.Task, delay time.Duration) error {
	if f.err != nil {
		return f.err
	}
	f.submitted = append(f.submitted, t)
	return nil
}

func discardLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func strPtr(s string) *string { return &s }

func cronSchedule(id int64, expr string) models.Schedule {
	return models.Schedule{
		ID:           id,
		Name:         "sched",
		ScheduleType: models.TypeCron,
		Enabled:      true,
		Status:       models.StatusActive,
		CronExpr:     strPtr(expr),
		Timezone:     "UTC",
	}
}

func TestTick_DispatchesDueSchedules(t *testing.T) {
	// 12:05 UTC: */5 is due, hourly (minute 0) is not.
	now := time.Date(2025, 6, 1, 12, 5, 0, 0, time.UTC)
	store := &fakeStore{schedules: []models.Schedule{
		cronSchedule(1, "*/5 * * * *"),
		cronSchedule(2, "0 * * * *"),
	}}
	q := &fakeQueue{}

	d := New(store, q, clock.Fixed(now), discardLog(), "UTC")
	st, err := d.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if st.Considered != 2 || st.Dispatched != 1 || st.Skipped != 0 {
		t.Fatalf("stats = %+v, want considered=2 dispatched=1 skipped=0", st)
	}
	if len(q.submitted) != 1 || q.submitted[0].ScheduleID != 1 || q.submitted[0].Attempt != 1 {
		t.Fatalf("unexpected submissions: %+v", q.submitted)
	}
}

func TestTick_ZeroSecondsExpressionIsReduced(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 5, 0, 0, time.UTC)
	store := &fakeStore{schedules: []models.Schedule{
		cronSchedule(1, "0 */5 * * * *"),
	}}
	q := &fakeQueue{}

	d := New(store, q, clock.Fixed(now), discardLog(), "UTC")
	st, err := d.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if st.Dispatched != 1 {
		t.Fatalf("expected 6-field zero-seconds expression to dispatch, stats = %+v", st)
	}
}

func TestTick_InvalidExpressionSkipsOnlyThatSchedule(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 5, 0, 0, time.UTC)
	store := &fakeStore{schedules: []models.Schedule{
		cronSchedule(1, "15 */5 * * * *"), // non-zero seconds: not reducible
		cronSchedule(2, "*/5 * * * *"),
	}}
	q := &fakeQueue{}

	d := New(store, q, clock.Fixed(now), discardLog(), "UTC")
	st, err := d.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if st.Skipped != 1 || st.Dispatched != 1 {
		t.Fatalf("stats = %+v, want skipped=1 dispatched=1", st)
	}
	if len(q.submitted) != 1 || q.submitted[0].ScheduleID != 2 {
		t.Fatalf("unexpected submissions: %+v", q.submitted)
	}
}

func TestTick_IneligibleSchedulesNeverSubmitted(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 5, 0, 0, time.UTC)

	disabled := cronSchedule(1, "*/5 * * * *")
	disabled.Enabled = false
	paused := cronSchedule(2, "*/5 * * * *")
	paused.Status = models.StatusPaused
	manual := cronSchedule(3, "*/5 * * * *")
	manual.ScheduleType = models.TypeManual
	noExpr := cronSchedule(4, "")
	noExpr.CronExpr = nil

	store := &fakeStore{schedules: []models.Schedule{disabled, paused, manual, noExpr}}
	q := &fakeQueue{}

	d := New(store, q, clock.Fixed(now), discardLog(), "UTC")
	st, err := d.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if st.Dispatched != 0 || len(q.submitted) != 0 {
		t.Fatalf("expected no submissions, stats = %+v submitted = %+v", st, q.submitted)
	}
}

func TestTick_TimezoneDecidesDueness(t *testing.T) {
	// 09:30 in New York is 13:30 UTC (June, DST).
	now := time.Date(2025, 6, 2, 13, 30, 0, 0, time.UTC)
	nyc := cronSchedule(1, "30 9 * * *")
	nyc.Timezone = "America/New_York"
	utc := cronSchedule(2, "30 9 * * *")

	store := &fakeStore{schedules: []models.Schedule{nyc, utc}}
	q := &fakeQueue{}

	d := New(store, q, clock.Fixed(now), discardLog(), "UTC")
	st, err := d.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if st.Dispatched != 1 || len(q.submitted) != 1 || q.submitted[0].ScheduleID != 1 {
		t.Fatalf("expected only the New York schedule to be due, stats = %+v submitted = %+v", st, q.submitted)
	}
}

func TestTick_SubmitErrorDoesNotAbortTick(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 5, 0, 0, time.UTC)
	store := &fakeStore{schedules: []models.Schedule{
		cronSchedule(1, "*/5 * * * *"),
		cronSchedule(2, "*/5 * * * *"),
	}}
	q := &fakeQueue{err: errors.New("redis down")}

	d := New(store, q, clock.Fixed(now), discardLog(), "UTC")
	st, err := d.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if st.Skipped != 2 || st.Dispatched != 0 {
		t.Fatalf("stats = %+v, want skipped=2 dispatched=0", st)
	}
}

func TestTick_StoreErrorIsReturned(t *testing.T) {
	store := &fakeStore{err: errors.New("connection refused")}
	d := New(store, &fakeQueue{}, clock.Fixed(time.Now()), discardLog(), "UTC")
	if _, err := d.Tick(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
