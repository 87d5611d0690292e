// Package taskruntime provides a priority- and deadline-aware task runtime for Go.
//
// Every spawned task carries a TaskSpec: an 8-bit priority and an optional deadline.
// Run queues are ordered by TaskSpec instead of submission order, so the task with the
// highest priority runs first and, among equal priorities, the one with the earliest
// deadline. A task without a deadline yields to one that has a deadline at the same
// priority.
//
// # Quick Start
//
// Initialize the global runtime at application startup:
//
//	taskruntime.InitGlobalRuntime(taskruntime.WithWorkers(4))
//	defer taskruntime.ShutdownGlobalRuntime()
//
//	taskruntime.Spawn(func(ctx context.Context) {
//		// default spec: priority 0, no deadline
//	})
//	taskruntime.SpawnWithDeadline(func(ctx context.Context) {
//		// runs before default-spec tasks queued alongside it
//	}, time.Now().Add(50*time.Millisecond))
//
// # Backends
//
// FlavorCurrentThread runs every task on one dedicated goroutine. FlavorMultiThread runs a
// GoroutineThreadPool: each worker owns a bounded local queue, overflows into a shared
// injection queue, and steals half of a peer's queue when it runs dry.
//
// Tasks spawned with the ctx a running task received are queued on that task's worker:
//
//	rt.SpawnContext(ctx, child, taskruntime.SpecUserVisible())
//
// # Shutdown
//
// Runtime.Shutdown closes the injection queue of the multi-thread backend. Runtime.Close
// stops the workers and cancels whatever is still queued; the handles of those tasks settle
// with ErrTaskCancelled. Runtime.ShutdownGraceful waits for queued work first.
//
// For more details, see https://github.com/Swind/go-task-runtime
package taskruntime
