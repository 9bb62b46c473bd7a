package taskqueue

import "fmt"

// Status is the explicit lifecycle of one queued task.
type Status int

const (
	StatusPending Status = iota
	StatusRunning
	StatusCompleted
	StatusFailed
	StatusCanceled
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	case StatusCanceled:
		return "canceled"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCanceled
}

// Task tracks one work item's cancellation-aware status. Transitions:
// Pending -> Running -> Completed | Failed | Canceled; Cancel is only valid
// from Pending or Running and moves the task to Canceled, a terminal state
// distinct from Failed.
type Task struct {
	status Status
	err    error
}

// NewTask returns a task in StatusPending.
func NewTask() *Task {
	return &Task{status: StatusPending}
}

// Status returns the current status.
func (t *Task) Status() Status { return t.status }

// Err returns the failure cause recorded by Fail, if any.
func (t *Task) Err() error { return t.err }

// Start moves Pending -> Running.
func (t *Task) Start() error {
	if t.status != StatusPending {
		return fmt.Errorf("taskqueue: cannot start task in status %s", t.status)
	}
	t.status = StatusRunning
	return nil
}

// Complete moves Running -> Completed.
func (t *Task) Complete() error {
	if t.status != StatusRunning {
		return fmt.Errorf("taskqueue: cannot complete task in status %s", t.status)
	}
	t.status = StatusCompleted
	return nil
}

// Fail moves Running -> Failed, recording the cause.
func (t *Task) Fail(err error) error {
	if t.status != StatusRunning {
		return fmt.Errorf("taskqueue: cannot fail task in status %s", t.status)
	}
	t.status = StatusFailed
	t.err = err
	return nil
}

// Cancel moves Pending or Running -> Canceled.
func (t *Task) Cancel() error {
	if t.status != StatusPending && t.status != StatusRunning {
		return fmt.Errorf("taskqueue: cannot cancel task in status %s", t.status)
	}
	t.status = StatusCanceled
	return nil
}
