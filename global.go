package taskruntime

import (
	"sync"
	"time"
)

// =============================================================================
// Global Runtime Helper (Singleton)
// =============================================================================

var (
	globalRuntime *Runtime
	globalMu      sync.Mutex
)

// InitGlobalRuntime initializes the global runtime with the given options.
// It is a no-op if the global runtime already exists.
func InitGlobalRuntime(opts ...Option) {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalRuntime != nil {
		return // Already initialized
	}

	globalRuntime = New(append([]Option{WithName("global-runtime")}, opts...)...)
}

// GetGlobalRuntime returns the global runtime instance.
// It panics if InitGlobalRuntime has not been called.
func GetGlobalRuntime() *Runtime {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalRuntime == nil {
		panic("GlobalRuntime not initialized. Call InitGlobalRuntime() first.")
	}
	return globalRuntime
}

// ShutdownGlobalRuntime closes the global runtime. Queued tasks are cancelled.
func ShutdownGlobalRuntime() {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalRuntime != nil {
		globalRuntime.Close()
		globalRuntime = nil
	}
}

// Spawn submits task to the global runtime with the default spec.
func Spawn(task Task) *TaskHandle {
	return GetGlobalRuntime().Spawn(task)
}

// SpawnWithDeadline submits task to the global runtime at priority 0 with a deadline.
func SpawnWithDeadline(task Task, deadline time.Time) *TaskHandle {
	return GetGlobalRuntime().SpawnWithDeadline(task, deadline)
}

// SpawnWithSpec submits task to the global runtime with spec.
func SpawnWithSpec(task Task, spec TaskSpec) *TaskHandle {
	return GetGlobalRuntime().SpawnWithSpec(task, spec)
}
