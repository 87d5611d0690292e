package core

import "time"

// TaskExecutionRecord captures a completed task execution event.
type TaskExecutionRecord struct {
	TaskID     TaskID
	Name       string
	RunnerName string
	WorkerID   int
	Spec       TaskSpec
	QueuedFor  time.Duration
	StartedAt  time.Time
	FinishedAt time.Time
	Duration   time.Duration
	Panicked   bool
	// MissedDeadline is set when the task started after its deadline.
	MissedDeadline bool
}

// Flavor selects the scheduler backend.
type Flavor string

const (
	FlavorCurrentThread Flavor = "current_thread"
	FlavorMultiThread   Flavor = "multi_thread"
)

// SchedulerStats represents runtime observability state for a scheduler backend.
type SchedulerStats struct {
	Name    string
	Flavor  Flavor
	Workers int
	Running bool
	Closed  bool

	// Queued counts tasks waiting in any local or injection queue.
	Queued int
	// Injected counts tasks currently in the injection queue.
	Injected int
	// LocalQueued holds each worker's local queue length.
	LocalQueued []int
	Active      int

	Stolen         int64
	Overflowed     int64
	Rejected       int64
	DeadlineMisses int64

	// OverduePending and EarliestDeadline are only populated with TrackDeadlines.
	OverduePending   int
	EarliestDeadline time.Time

	LastTaskName string
	LastTaskAt   time.Time
}
