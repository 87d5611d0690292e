package core

import (
	"context"
	"fmt"
	"time"
)

// Backend is the capability both scheduler flavors share.
type Backend interface {
	// Submit queues t, or settles its handle and returns an error if t was rejected.
	Submit(ctx context.Context, t ScheduledTask) error
	// Shutdown stops the backend from accepting new work.
	Shutdown()
}

var (
	_ Backend = (*TaskScheduler)(nil)
	_ Backend = (*SingleThreadScheduler)(nil)
)

// Dispatcher attaches a TaskSpec to each submitted task and forwards it to the backend
// chosen at construction.
type Dispatcher struct {
	flavor  Flavor
	backend Backend
}

// NewDispatcher panics if backend is nil or flavor is not one of the known flavors.
func NewDispatcher(flavor Flavor, backend Backend) *Dispatcher {
	if backend == nil {
		panic("Dispatcher: backend must not be nil")
	}
	switch flavor {
	case FlavorCurrentThread, FlavorMultiThread:
	default:
		panic(fmt.Sprintf("Dispatcher: unknown flavor %q", flavor))
	}
	return &Dispatcher{flavor: flavor, backend: backend}
}

func (d *Dispatcher) Flavor() Flavor { return d.flavor }

// Spawn submits task with the default spec.
func (d *Dispatcher) Spawn(task Task) *TaskHandle {
	return d.SpawnContext(context.Background(), task, DefaultTaskSpec())
}

// SpawnWithDeadline submits task at priority 0 with the given deadline.
func (d *Dispatcher) SpawnWithDeadline(task Task, deadline time.Time) *TaskHandle {
	return d.SpawnContext(context.Background(), task, SpecWithDeadline(deadline))
}

// SpawnWithSpec submits task with a caller-supplied spec.
func (d *Dispatcher) SpawnWithSpec(task Task, spec TaskSpec) *TaskHandle {
	return d.SpawnContext(context.Background(), task, spec)
}

// SpawnContext submits task with spec. When ctx is the context of a running task, the new
// task is queued on the worker running it.
//
// The returned handle is always non-nil. If the runtime is shut down the handle is already
// settled with ErrRuntimeShutdown.
func (d *Dispatcher) SpawnContext(ctx context.Context, task Task, spec TaskSpec) *TaskHandle {
	if task == nil {
		panic("Dispatcher: task must not be nil")
	}
	st := NewScheduledTask(task, spec)
	// Rejection has already settled the handle; the error carries nothing more for callers.
	_ = d.backend.Submit(ctx, st)
	return st.Handle()
}

// Shutdown signals the multi-thread backend to close its queues. The single-thread backend
// has no separate shutdown step; it is torn down when the runtime closes.
func (d *Dispatcher) Shutdown() {
	if d.flavor == FlavorMultiThread {
		d.backend.Shutdown()
	}
}
