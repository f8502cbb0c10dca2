package domain

import (
	"fmt"
	"time"
)

// TaskState is the lifecycle state of a recompute task.
type TaskState string

const (
	TaskStateQueued         TaskState = "QUEUED"
	TaskStateRunning        TaskState = "RUNNING"
	TaskStateSucceeded      TaskState = "SUCCEEDED"
	TaskStateFailedRetrying TaskState = "FAILED_RETRYING"
	TaskStateFailedTerminal TaskState = "FAILED_TERMINAL"
)

// IsTerminal reports whether no further transition is possible.
func (s TaskState) IsTerminal() bool {
	return s == TaskStateSucceeded || s == TaskStateFailedTerminal
}

// RecomputeTask is a unit of work for the statistics worker.
type RecomputeTask struct {
	EnqueuedAt time.Time `json:"enqueued_at"`
	ID         string    `json:"id"`
	State      TaskState `json:"state"`
	LastError  string    `json:"last_error,omitempty"`
	Retries    int       `json:"retries"`
}

// NewRecomputeTask creates a queued task.
func NewRecomputeTask(id string, now time.Time) *RecomputeTask {
	return &RecomputeTask{
		ID:         id,
		State:      TaskStateQueued,
		EnqueuedAt: now,
	}
}

// Start moves a queued or retrying task to RUNNING.
func (t *RecomputeTask) Start() error {
	switch t.State {
	case TaskStateQueued, TaskStateFailedRetrying:
		t.State = TaskStateRunning
		return nil
	default:
		return fmt.Errorf("cannot start task %s in state %s", t.ID, t.State)
	}
}

// Succeed marks a running task as done.
func (t *RecomputeTask) Succeed() {
	t.State = TaskStateSucceeded
	t.LastError = ""
}

// Fail records a failed attempt. The task moves to FAILED_RETRYING and its
// retry count is incremented while Retries < maxRetries; otherwise it moves
// to FAILED_TERMINAL. It returns true when another attempt should be made.
func (t *RecomputeTask) Fail(cause error, maxRetries int) bool {
	if cause != nil {
		t.LastError = cause.Error()
	}

	if t.Retries < maxRetries {
		t.Retries++
		t.State = TaskStateFailedRetrying
		return true
	}

	t.State = TaskStateFailedTerminal
	return false
}

// StatisticsCacheKeyPrefix namespaces cached snapshots.
const StatisticsCacheKeyPrefix = "statistics:"

// StatisticsCacheKey returns the cache key for a task's snapshot.
func StatisticsCacheKey(taskID string) string {
	return StatisticsCacheKeyPrefix + taskID
}
