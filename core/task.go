package core

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"
)

// Task is the unit of work (Closure)
type Task func(ctx context.Context)

// TaskID identifies one submission. IDs are unique per process and never reused.
type TaskID uint64

var lastTaskID atomic.Uint64

// GenerateTaskID returns the next process-wide task ID.
func GenerateTaskID() TaskID {
	return TaskID(lastTaskID.Add(1))
}

func (id TaskID) String() string {
	return "task-" + strconv.FormatUint(uint64(id), 10)
}

// =============================================================================
// ScheduledTask: A runnable task paired with its ordering key
// =============================================================================

// ScheduledTask is what the run queues hold. Ordering is delegated entirely to Spec;
// the closure and the bookkeeping fields never take part in comparisons.
type ScheduledTask struct {
	ID         TaskID
	Task       Task
	Spec       TaskSpec
	EnqueuedAt time.Time

	handle *TaskHandle
}

// NewScheduledTask wraps task with spec and a fresh handle.
func NewScheduledTask(task Task, spec TaskSpec) ScheduledTask {
	id := GenerateTaskID()
	return ScheduledTask{
		ID:         id,
		Task:       task,
		Spec:       spec,
		EnqueuedAt: time.Now(),
		handle:     newTaskHandle(id, spec),
	}
}

// Handle returns the handle callers use to observe the task's outcome. It may be nil for
// tasks built by hand rather than through NewScheduledTask.
func (t ScheduledTask) Handle() *TaskHandle {
	return t.handle
}

// Compare ranks t against other by their specs. See TaskSpec.Compare.
func (t ScheduledTask) Compare(other ScheduledTask) int {
	return t.Spec.Compare(other.Spec)
}

// Before reports whether t is dispatched strictly before other.
func (t ScheduledTask) Before(other ScheduledTask) bool {
	return t.Spec.Before(other.Spec)
}

// IsZero reports whether t is the empty value returned alongside ok=false.
func (t ScheduledTask) IsZero() bool {
	return t.Task == nil && t.ID == 0
}

// finish settles the task's handle, if it has one.
func (t ScheduledTask) finish(err error) {
	if t.handle != nil {
		t.handle.finish(err)
	}
}

// Cancel settles the task's handle with ErrTaskCancelled without running it.
// Used for tasks that are dropped while queues drain at shutdown.
func (t ScheduledTask) Cancel() {
	t.finish(ErrTaskCancelled)
}

// =============================================================================
// Context Helper
// =============================================================================

// workerKey carries the identity of the worker executing the current task, so that tasks
// spawned from inside a task can be pushed onto that worker's local queue.
type workerKeyType struct{}

var workerKey workerKeyType

// WorkerInfo describes the worker executing the current task.
type WorkerInfo struct {
	// Owner identifies the backend the worker belongs to.
	Owner any
	// ID is the worker index within its backend, -1 for the single-thread backend.
	ID int
}

// WithWorker returns a context marking execution on the given worker.
func WithWorker(ctx context.Context, owner any, id int) context.Context {
	return context.WithValue(ctx, workerKey, WorkerInfo{Owner: owner, ID: id})
}

// CurrentWorker returns the worker executing the current task, if any.
func CurrentWorker(ctx context.Context) (WorkerInfo, bool) {
	if ctx == nil {
		return WorkerInfo{}, false
	}
	if v, ok := ctx.Value(workerKey).(WorkerInfo); ok {
		return v, true
	}
	return WorkerInfo{}, false
}
