package monitor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/mkarlsen/relayd/internal/clock"
	"github.com/mkarlsen/relayd/internal/models"
	"github.com/mkarlsen/relayd/internal/repo"
)

type fakeStore struct {
	failedCount int
	failedErr   error
	stuck       []models.Schedule
	stuckErr    error
	stale       []models.Schedule
	staleErr    error
	summary     *repo.Summary
	summaryErr  error

	gotFailedSince time.Time
	gotStuckMin    int64
	gotStaleCutoff time.Time
}

func (f *fakeStore) CountFailedSince(ctx context.Context, since time.Time) (int, error) {
	f.gotFailedSince = since
	return f.failedCount, f.failedErr
}

func (f *fakeStore) ListStuck(ctx context.Context, minFailures int64) ([]models.Schedule, error) {
	f.gotStuckMin = minFailures
	return f.stuck, f.stuckErr
}

func (f *fakeStore) ListStale(ctx context.Context, cutoff time.Time) ([]models.Schedule, error) {
	f.gotStaleCutoff = cutoff
	return f.stale, f.staleErr
}

func (f *fakeStore) Summary(ctx context.Context) (*repo.Summary, error) {
	return f.summary, f.summaryErr
}

func discardLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSweep_ReportsAllChecks(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	stuck := models.Schedule{ID: 9, Name: "flaky-feed", Enabled: true, FailureCount: 5, Status: models.StatusPaused}
	stale := models.Schedule{ID: 5, Name: "never-ran", Enabled: true, Status: models.StatusActive, ScheduleType: models.TypeCron}

	store := &fakeStore{
		failedCount: 2,
		stuck:       []models.Schedule{stuck},
		stale:       []models.Schedule{stale},
		summary:     &repo.Summary{Total: 10, Enabled: 7, Disabled: 3, Failed: 2, Cron: 6, Manual: 4},
	}

	m := New(store, clock.Fixed(now), discardLog())
	rep := m.Sweep(context.Background())

	if rep.CheckErrors != 0 {
		t.Fatalf("check errors = %d, want 0", rep.CheckErrors)
	}
	if rep.FailedRecent != 2 {
		t.Errorf("failed recent = %d, want 2", rep.FailedRecent)
	}
	if len(rep.Stuck) != 1 || rep.Stuck[0].ID != 9 {
		t.Errorf("unexpected stuck list: %+v", rep.Stuck)
	}
	if len(rep.Stale) != 1 || rep.Stale[0].ID != 5 {
		t.Errorf("unexpected stale list: %+v", rep.Stale)
	}
	if rep.Summary == nil || rep.Summary.Total != 10 {
		t.Errorf("unexpected summary: %+v", rep.Summary)
	}

	wantSince := now.Add(-FreshnessWindow)
	if !store.gotFailedSince.Equal(wantSince) {
		t.Errorf("failed-since = %s, want %s", store.gotFailedSince, wantSince)
	}
	if store.gotStuckMin != StuckThreshold {
		t.Errorf("stuck threshold = %d, want %d", store.gotStuckMin, StuckThreshold)
	}
	if !store.gotStaleCutoff.Equal(wantSince) {
		t.Errorf("stale cutoff = %s, want %s", store.gotStaleCutoff, wantSince)
	}
}

func TestSweep_StuckListedRegardlessOfStatus(t *testing.T) {
	// A schedule with failure_count at the threshold shows up stuck even
	// when its status is already failed or paused.
	now := time.Now()
	store := &fakeStore{
		stuck: []models.Schedule{
			{ID: 1, Enabled: true, FailureCount: 5, Status: models.StatusFailed},
			{ID: 2, Enabled: true, FailureCount: 8, Status: models.StatusActive},
		},
		summary: &repo.Summary{},
	}
	m := New(store, clock.Fixed(now), discardLog())
	rep := m.Sweep(context.Background())
	if len(rep.Stuck) != 2 {
		t.Fatalf("stuck = %d, want 2", len(rep.Stuck))
	}
}

func TestSweep_CheckFailureIsolated(t *testing.T) {
	now := time.Now()
	store := &fakeStore{
		failedErr: errors.New("query timeout"),
		stuck:     []models.Schedule{{ID: 1, Enabled: true, FailureCount: 6}},
		stale:     []models.Schedule{{ID: 2}},
		summary:   &repo.Summary{Total: 3},
	}

	m := New(store, clock.Fixed(now), discardLog())
	rep := m.Sweep(context.Background())

	if rep.CheckErrors != 1 {
		t.Fatalf("check errors = %d, want 1", rep.CheckErrors)
	}
	if len(rep.Stuck) != 1 || len(rep.Stale) != 1 || rep.Summary == nil {
		t.Fatal("remaining checks must still run when one fails")
	}
}

func TestSinceString(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	past := func(d time.Duration) *time.Time {
		t := now.Add(-d)
		return &t
	}

	tests := []struct {
		name string
		t    *time.Time
		want string
	}{
		{"never ran", nil, "Never"},
		{"seconds", past(30 * time.Second), "just now"},
		{"minutes", past(12 * time.Minute), "12m ago"},
		{"hours", past(90 * time.Minute), "1.5h ago"},
		{"days", past(72 * time.Hour), "3d ago"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SinceString(tt.t, now); got != tt.want {
				t.Errorf("SinceString = %q, want %q", got, tt.want)
			}
		})
	}
}
