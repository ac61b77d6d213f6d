package queue

import (
	"time"

	"github.com/google/uuid"
)

// Task is one execution request for a schedule. Attempt starts at 1 and is
// carried through retries; NotBefore is set when the task is deferred.
type Task struct {
	ID         uuid.UUID `json:"id"`
	ScheduleID int64     `json:"schedule_id"`
	Attempt    int       `json:"attempt"`
	NotBefore  time.Time `json:"not_before"`
}

// NewTask builds a first-attempt task for a schedule.
func NewTask(scheduleID int64) Task {
	return Task{ID: uuid.New(), ScheduleID: scheduleID, Attempt: 1}
}

// Retry derives the follow-up task for the next attempt. A fresh id keeps
// retry deliveries distinguishable in logs.
func (t Task) Retry() Task {
	return Task{ID: uuid.New(), ScheduleID: t.ScheduleID, Attempt: t.Attempt + 1}
}
