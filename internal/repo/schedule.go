package repo

import (
	"context"
	"database/sql"
	"time"

	"github.com/mkarlsen/relayd/internal/models"
)

// scheduleColumns is the column list every schedule query selects, in scan order.
const scheduleColumns = `id, name, schedule_type, enabled, cron_expr, timezone,
	max_retries, retry_delay, retry_delay_unit, status,
	execution_count, failure_count, last_executed_at,
	source_id, request_id, extract_id, destination_id,
	created_at, updated_at`

// ScheduleRepo persists integration schedules. The execution-owned fields
// (counters, status, last_executed_at) are only ever written through the
// increment/mark/touch methods below.
type ScheduleRepo struct {
	DB *sql.DB
}

// NewScheduleRepo returns a new ScheduleRepo.
func NewScheduleRepo(db *sql.DB) *ScheduleRepo {
	return &ScheduleRepo{DB: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSchedule(row rowScanner) (*models.Schedule, error) {
	var (
		s        models.Schedule
		cronExpr sql.NullString
		lastExec sql.NullTime
	)
	err := row.Scan(
		&s.ID, &s.Name, &s.ScheduleType, &s.Enabled, &cronExpr, &s.Timezone,
		&s.MaxRetries, &s.RetryDelay, &s.RetryDelayUnit, &s.Status,
		&s.ExecutionCount, &s.FailureCount, &lastExec,
		&s.SourceID, &s.RequestID, &s.ExtractID, &s.DestinationID,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if cronExpr.Valid {
		s.CronExpr = &cronExpr.String
	}
	if lastExec.Valid {
		s.LastExecutedAt = &lastExec.Time
	}
	return &s, nil
}

func (r *ScheduleRepo) queryList(ctx context.Context, query string, args ...any) ([]models.Schedule, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *s)
	}
	return list, rows.Err()
}

// Count returns the total number of schedules.
func (r *ScheduleRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM schedules").Scan(&n)
	return n, err
}

// List returns schedules, most recent first. limit/offset for pagination.
func (r *ScheduleRepo) List(ctx context.Context, limit, offset int) ([]models.Schedule, error) {
	query := `
		SELECT ` + scheduleColumns + `
		FROM schedules
		ORDER BY id DESC
		LIMIT $1 OFFSET $2
	`
	return r.queryList(ctx, query, limit, offset)
}

// GetByID returns one schedule by id, or nil when it does not exist.
func (r *ScheduleRepo) GetByID(ctx context.Context, id int64) (*models.Schedule, error) {
	query := `
		SELECT ` + scheduleColumns + `
		FROM schedules
		WHERE id = $1
	`
	s, err := scanSchedule(r.DB.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// ListDispatchEligible returns every schedule the dispatcher may evaluate:
// enabled, active, cron-typed, with a non-null expression.
func (r *ScheduleRepo) ListDispatchEligible(ctx context.Context) ([]models.Schedule, error) {
	query := `
		SELECT ` + scheduleColumns + `
		FROM schedules
		WHERE enabled = true
		  AND status = 'active'
		  AND schedule_type = 'cron'
		  AND cron_expr IS NOT NULL
		ORDER BY id
	`
	return r.queryList(ctx, query)
}

// TouchLastExecuted records that a dispatch attempt happened at the given time.
func (r *ScheduleRepo) TouchLastExecuted(ctx context.Context, id int64, at time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE schedules SET last_executed_at = $1, updated_at = now() WHERE id = $2`,
		at, id,
	)
	return err
}

// IncrementExecutionCount bumps the success counter by one in a single
// statement, safe against concurrent workers.
func (r *ScheduleRepo) IncrementExecutionCount(ctx context.Context, id int64) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE schedules SET execution_count = execution_count + 1, updated_at = now() WHERE id = $1`,
		id,
	)
	return err
}

// IncrementFailureCount bumps the failure counter by one in a single
// statement, safe against concurrent workers.
func (r *ScheduleRepo) IncrementFailureCount(ctx context.Context, id int64) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE schedules SET failure_count = failure_count + 1, updated_at = now() WHERE id = $1`,
		id,
	)
	return err
}

// MarkFailed transitions an active schedule to failed. The status guard makes
// the transition single-shot when two failure paths race; the return value
// reports whether this call performed the transition.
func (r *ScheduleRepo) MarkFailed(ctx context.Context, id int64) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE schedules SET status = 'failed', updated_at = now() WHERE id = $1 AND status = 'active'`,
		id,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// CountFailedSince counts schedules that entered the failed state and were
// last touched at or after the given time.
func (r *ScheduleRepo) CountFailedSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM schedules WHERE status = 'failed' AND updated_at >= $1`,
		since,
	).Scan(&n)
	return n, err
}

// ListStuck returns enabled schedules with at least minFailures recorded
// failures, regardless of status.
func (r *ScheduleRepo) ListStuck(ctx context.Context, minFailures int64) ([]models.Schedule, error) {
	query := `
		SELECT ` + scheduleColumns + `
		FROM schedules
		WHERE enabled = true
		  AND failure_count >= $1
		ORDER BY failure_count DESC, id
	`
	return r.queryList(ctx, query, minFailures)
}

// ListStale returns eligible-by-configuration schedules that never ran or
// last ran before cutoff.
func (r *ScheduleRepo) ListStale(ctx context.Context, cutoff time.Time) ([]models.Schedule, error) {
	query := `
		SELECT ` + scheduleColumns + `
		FROM schedules
		WHERE enabled = true
		  AND status = 'active'
		  AND schedule_type = 'cron'
		  AND cron_expr IS NOT NULL
		  AND (last_executed_at IS NULL OR last_executed_at < $1)
		ORDER BY last_executed_at NULLS FIRST, id
	`
	return r.queryList(ctx, query, cutoff)
}

// Summary is the fleet-wide aggregate emitted by the monitor.
type Summary struct {
	Total    int `json:"total"`
	Enabled  int `json:"enabled"`
	Disabled int `json:"disabled"`
	Failed   int `json:"failed"`
	Cron     int `json:"cron"`
	Manual   int `json:"manual"`
}

// Summary aggregates fleet counts in one round trip.
func (r *ScheduleRepo) Summary(ctx context.Context) (*Summary, error) {
	query := `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE enabled),
		       COUNT(*) FILTER (WHERE NOT enabled),
		       COUNT(*) FILTER (WHERE status = 'failed'),
		       COUNT(*) FILTER (WHERE schedule_type = 'cron'),
		       COUNT(*) FILTER (WHERE schedule_type = 'manual')
		FROM schedules
	`
	var s Summary
	err := r.DB.QueryRowContext(ctx, query).
		Scan(&s.Total, &s.Enabled, &s.Disabled, &s.Failed, &s.Cron, &s.Manual)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
