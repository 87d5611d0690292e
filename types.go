package taskruntime

import "github.com/Swind/go-task-runtime/core"

// Re-export commonly used types from core package for convenience.
// This allows users to import only the taskruntime package for most use cases.

// Task is the unit of work (Closure)
type Task = core.Task

// TaskSpec is the ordering key attached to every task: priority plus optional deadline.
type TaskSpec = core.TaskSpec

// TaskPriority is an unsigned 8-bit priority; higher runs first.
type TaskPriority = core.TaskPriority

// TaskHandle observes the outcome of a spawned task.
type TaskHandle = core.TaskHandle

// Flavor selects the runtime backend.
type Flavor = core.Flavor

const (
	FlavorCurrentThread = core.FlavorCurrentThread
	FlavorMultiThread   = core.FlavorMultiThread
)

// Priority constants
const (
	TaskPriorityBestEffort   TaskPriority = core.TaskPriorityBestEffort
	TaskPriorityUserVisible  TaskPriority = core.TaskPriorityUserVisible
	TaskPriorityUserBlocking TaskPriority = core.TaskPriorityUserBlocking
)

// Convenience functions for creating TaskSpecs
var (
	DefaultTaskSpec  = core.DefaultTaskSpec
	SpecWithDeadline = core.SpecWithDeadline
	SpecUserBlocking = core.SpecUserBlocking
	SpecUserVisible  = core.SpecUserVisible
	SpecBestEffort   = core.SpecBestEffort
)

// Errors a TaskHandle can settle with.
var (
	ErrTaskCancelled   = core.ErrTaskCancelled
	ErrRuntimeShutdown = core.ErrRuntimeShutdown
)
