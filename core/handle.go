package core

import (
	"context"
	"sync"
)

// TaskHandle lets the submitter observe the outcome of a spawned task.
type TaskHandle struct {
	id   TaskID
	spec TaskSpec

	once sync.Once
	done chan struct{}
	err  error
}

func newTaskHandle(id TaskID, spec TaskSpec) *TaskHandle {
	return &TaskHandle{
		id:   id,
		spec: spec,
		done: make(chan struct{}),
	}
}

// ID returns the task ID.
func (h *TaskHandle) ID() TaskID { return h.id }

// Spec returns the spec the task was submitted with.
func (h *TaskHandle) Spec() TaskSpec { return h.spec }

// Done is closed once the task has finished, been cancelled or been rejected.
func (h *TaskHandle) Done() <-chan struct{} { return h.done }

// Err returns the outcome after Done is closed, nil before.
//
// Outcomes:
// - nil: the task ran to completion
// - *PanicError: the task panicked
// - ErrTaskCancelled: the task was dropped while draining at shutdown
// - ErrRuntimeShutdown: the task was rejected at submission
func (h *TaskHandle) Err() error {
	select {
	case <-h.done:
		return h.err
	default:
		return nil
	}
}

// Wait blocks until the task settles or ctx is done.
func (h *TaskHandle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return h.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// finish settles the handle. Only the first call has any effect.
func (h *TaskHandle) finish(err error) {
	h.once.Do(func() {
		h.err = err
		close(h.done)
	})
}
