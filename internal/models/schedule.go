package models

import "time"

// ScheduleType says how a schedule is triggered.
type ScheduleType string

const (
	TypeManual ScheduleType = "manual"
	TypeCron   ScheduleType = "cron"
)

// ScheduleStatus is the administrative state of a schedule. All values
// except StatusFailed are operator-controlled; StatusFailed is set only by
// the execution worker after exhausting the retry budget.
type ScheduleStatus string

const (
	StatusActive   ScheduleStatus = "active"
	StatusInactive ScheduleStatus = "inactive"
	StatusPaused   ScheduleStatus = "paused"
	StatusFailed   ScheduleStatus = "failed"
)

// RetryDelayUnit is the unit for a schedule's configured retry spacing.
type RetryDelayUnit string

const (
	UnitSeconds RetryDelayUnit = "seconds"
	UnitMinutes RetryDelayUnit = "minutes"
	UnitHours   RetryDelayUnit = "hours"
)

// Schedule is a configured API integration run: when to trigger it, how to
// retry it, and which source/request/extract/destination definitions the
// call-execution service should use. The reference ids are opaque here.
type Schedule struct {
	ID             int64          `json:"id"`
	Name           string         `json:"name"`
	ScheduleType   ScheduleType   `json:"schedule_type"`
	Enabled        bool           `json:"enabled"`
	CronExpr       *string        `json:"cron_expr"`
	Timezone       string         `json:"timezone"`
	MaxRetries     int            `json:"max_retries"`
	RetryDelay     int            `json:"retry_delay"`
	RetryDelayUnit RetryDelayUnit `json:"retry_delay_unit"`
	Status         ScheduleStatus `json:"status"`
	ExecutionCount int64          `json:"execution_count"`
	FailureCount   int64          `json:"failure_count"`
	LastExecutedAt *time.Time     `json:"last_executed_at"`
	SourceID       int64          `json:"source_id"`
	RequestID      int64          `json:"request_id"`
	ExtractID      int64          `json:"extract_id"`
	DestinationID  int64          `json:"destination_id"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// DispatchEligible reports whether the dispatcher may consider this
// schedule: enabled, active, cron-typed, and carrying an expression.
func (s *Schedule) DispatchEligible() bool {
	return s.Enabled &&
		s.Status == StatusActive &&
		s.ScheduleType == TypeCron &&
		s.CronExpr != nil && *s.CronExpr != ""
}

// EffectiveTimezone returns the schedule's zone name, or def when unset.
func (s *Schedule) EffectiveTimezone(def string) string {
	if s.Timezone != "" {
		return s.Timezone
	}
	return def
}

// RetryInterval converts the configured retry delay to a duration.
// Zero means the schedule has no spacing of its own.
func (s *Schedule) RetryInterval() time.Duration {
	if s.RetryDelay <= 0 {
		return 0
	}
	switch s.RetryDelayUnit {
	case UnitMinutes:
		return time.Duration(s.RetryDelay) * time.Minute
	case UnitHours:
		return time.Duration(s.RetryDelay) * time.Hour
	default:
		return time.Duration(s.RetryDelay) * time.Second
	}
}
