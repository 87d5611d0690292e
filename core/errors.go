package core

import (
	"errors"
	"fmt"
)

var (
	// ErrQueueClosed is returned when pushing to an injection queue after Close.
	ErrQueueClosed = errors.New("queue closed")

	// ErrQueueNotEmpty signals that a queue still held tasks when it was released.
	// This is a scheduler bug, not a runtime condition.
	ErrQueueNotEmpty = errors.New("queue not empty")

	// ErrTaskCancelled is the outcome of a task dropped while queues drained at shutdown.
	ErrTaskCancelled = errors.New("task cancelled")

	// ErrRuntimeShutdown is the outcome of a task submitted after the runtime closed.
	ErrRuntimeShutdown = errors.New("runtime is shut down")
)

// ClosedError is returned by InjectQueue.Push when the queue is closed.
// It hands the rejected task back to the caller unmodified; the queue performs no cleanup.
type ClosedError struct {
	Task ScheduledTask
}

func (e *ClosedError) Error() string {
	return fmt.Sprintf("push %s: %v", e.Task.ID, ErrQueueClosed)
}

func (e *ClosedError) Unwrap() error {
	return ErrQueueClosed
}

// RejectedTask extracts the task carried by a ClosedError in err's chain.
func RejectedTask(err error) (ScheduledTask, bool) {
	var closed *ClosedError
	if errors.As(err, &closed) {
		return closed.Task, true
	}
	return ScheduledTask{}, false
}

// PanicError is the outcome of a task that panicked.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("task panicked: %v", e.Value)
}
