package cronexpr

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrInvalidExpression marks a cron string that does not parse after
// normalization. Callers skip the schedule and continue with the rest.
var ErrInvalidExpression = errors.New("invalid cron expression")

// Strict 5-field parser: minute hour day-of-month month day-of-week.
var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Normalize reduces a 6-field expression whose seconds field is literally
// "0" to its 5-field equivalent, so minute-granularity evaluation accepts
// it. Any other expression passes through with whitespace collapsed; a
// 6-field expression with non-zero seconds is deliberately left intact so
// the parser rejects it instead of silently truncating.
func Normalize(expr string) string {
	fields := strings.Fields(expr)
	if len(fields) == 6 && fields[0] == "0" {
		fields = fields[1:]
	}
	return strings.Join(fields, " ")
}

// Parse normalizes and parses expr, wrapping failures in ErrInvalidExpression.
func Parse(expr string) (cron.Schedule, error) {
	sched, err := parser.Parse(Normalize(expr))
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidExpression, expr, err)
	}
	return sched, nil
}

// IsDue reports whether expr matches the minute containing t. The caller
// passes t already converted into the schedule's timezone.
func IsDue(expr string, t time.Time) (bool, error) {
	sched, err := Parse(expr)
	if err != nil {
		return false, err
	}
	minute := t.Truncate(time.Minute)
	return sched.Next(minute.Add(-time.Second)).Equal(minute), nil
}

// NextRun returns the next matching instant strictly after t.
func NextRun(expr string, t time.Time) (time.Time, error) {
	sched, err := Parse(expr)
	if err != nil {
		return time.Time{}, err
	}
	return sched.Next(t), nil
}
