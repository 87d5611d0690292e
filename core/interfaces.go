package core

import (
	"context"
	"time"
)

// =============================================================================
// PanicHandler: Interface for handling task panics
// =============================================================================

// PanicHandler is called when a task panics during execution.
// This allows custom panic handling, logging, and recovery strategies.
//
// Implementations should be thread-safe as they may be called concurrently.
type PanicHandler interface {
	// HandlePanic is called when a task panics.
	//
	// Parameters:
	// - ctx: The context the task ran with (carries the current worker)
	// - task: The task that panicked
	// - workerID: The ID of the worker (-1 for the single-thread backend)
	// - panicInfo: The panic value recovered from the task
	// - stackTrace: The stack trace at the time of panic
	HandlePanic(ctx context.Context, task ScheduledTask, workerID int, panicInfo any, stackTrace []byte)
}

// DefaultPanicHandler logs task panics through a Logger.
type DefaultPanicHandler struct {
	Logger Logger
}

// HandlePanic logs the panic at error level.
func (h *DefaultPanicHandler) HandlePanic(ctx context.Context, task ScheduledTask, workerID int, panicInfo any, stackTrace []byte) {
	logger := h.Logger
	if logger == nil {
		logger = NewDefaultLogger(LevelInfo)
	}
	logger.Error("task panicked",
		F("task", task.ID.String()),
		F("spec", task.Spec.String()),
		F("worker", workerID),
		F("panic", panicInfo),
		F("stack", string(stackTrace)))
}

// =============================================================================
// Metrics: Interface for observability and monitoring
// =============================================================================

// Metrics defines the interface for collecting scheduler metrics.
// Implementations can send metrics to monitoring systems (Prometheus, StatsD, etc.).
//
// Methods should be non-blocking and fast; they are called on the dispatch path.
type Metrics interface {
	// RecordTaskDuration records how long a task took to execute.
	RecordTaskDuration(runnerName string, priority TaskPriority, duration time.Duration)

	// RecordTaskPanic records that a task panicked during execution.
	RecordTaskPanic(runnerName string, panicInfo any)

	// RecordQueueDepth records the current depth of a queue ("inject" or "local").
	RecordQueueDepth(runnerName string, queue string, depth int)

	// RecordTaskRejected records that a task was rejected (e.g., during shutdown).
	RecordTaskRejected(runnerName string, reason string)

	// RecordSteal records a successful steal that took count tasks from a peer.
	RecordSteal(runnerName string, count int)

	// RecordOverflow records a local push routed to the injection queue.
	RecordOverflow(runnerName string)

	// RecordDeadlineMiss records a task that started after its deadline.
	RecordDeadlineMiss(runnerName string, priority TaskPriority, lateness time.Duration)
}

// NilMetrics provides a no-op metrics implementation that does nothing.
// This is the default when no metrics interface is provided.
type NilMetrics struct{}

func (m *NilMetrics) RecordTaskDuration(runnerName string, priority TaskPriority, duration time.Duration) {
}
func (m *NilMetrics) RecordTaskPanic(runnerName string, panicInfo any)            {}
func (m *NilMetrics) RecordQueueDepth(runnerName string, queue string, depth int) {}
func (m *NilMetrics) RecordTaskRejected(runnerName string, reason string)         {}
func (m *NilMetrics) RecordSteal(runnerName string, count int)                    {}
func (m *NilMetrics) RecordOverflow(runnerName string)                            {}
func (m *NilMetrics) RecordDeadlineMiss(runnerName string, priority TaskPriority, lateness time.Duration) {
}

// =============================================================================
// RejectedTaskHandler: Interface for handling rejected tasks
// =============================================================================

// RejectedTaskHandler is called when a task is rejected by the scheduler.
// This happens when the injection queue is closed, either for a fresh submission or for a
// local push that overflowed after shutdown began.
//
// Implementations should be thread-safe as they may be called concurrently.
type RejectedTaskHandler interface {
	HandleRejectedTask(runnerName string, task ScheduledTask, reason string)
}

// DefaultRejectedTaskHandler logs rejected tasks at warn level.
type DefaultRejectedTaskHandler struct {
	Logger Logger
}

func (h *DefaultRejectedTaskHandler) HandleRejectedTask(runnerName string, task ScheduledTask, reason string) {
	logger := h.Logger
	if logger == nil {
		logger = NewDefaultLogger(LevelInfo)
	}
	logger.Warn("task rejected",
		F("runner", runnerName),
		F("task", task.ID.String()),
		F("spec", task.Spec.String()),
		F("reason", reason))
}

// =============================================================================
// TaskSchedulerConfig: Configuration for the scheduler backends
// =============================================================================

// TaskSchedulerConfig holds configuration options for both backends.
// All handlers are optional; if not provided, default implementations will be used.
type TaskSchedulerConfig struct {
	// Name labels logs and metrics. Defaults to the backend flavor.
	Name string

	// Logger receives lifecycle and error logs. Defaults to a DefaultLogger at info level.
	Logger Logger

	// PanicHandler is called when a task panics. Defaults to DefaultPanicHandler.
	PanicHandler PanicHandler

	// Metrics is called to record scheduler metrics. Defaults to NilMetrics.
	Metrics Metrics

	// RejectedTaskHandler is called when a task is rejected. Defaults to DefaultRejectedTaskHandler.
	RejectedTaskHandler RejectedTaskHandler

	// HistoryCapacity bounds the RecentTasks ring. Zero uses the default.
	HistoryCapacity int

	// TrackDeadlines enables the pending-deadline index behind OverduePending and
	// EarliestDeadline in Stats. It costs one extra lock per submission and start.
	TrackDeadlines bool
}

// DefaultTaskSchedulerConfig returns a config with default handlers.
func DefaultTaskSchedulerConfig() *TaskSchedulerConfig {
	logger := NewDefaultLogger(LevelInfo)
	return &TaskSchedulerConfig{
		Logger:              logger,
		PanicHandler:        &DefaultPanicHandler{Logger: logger},
		Metrics:             &NilMetrics{},
		RejectedTaskHandler: &DefaultRejectedTaskHandler{Logger: logger},
		HistoryCapacity:     defaultTaskHistoryCapacity,
	}
}

// withDefaults fills every unset field, returning a copy.
func (c *TaskSchedulerConfig) withDefaults(name string) TaskSchedulerConfig {
	var out TaskSchedulerConfig
	if c != nil {
		out = *c
	}
	if out.Name == "" {
		out.Name = name
	}
	if out.Logger == nil {
		out.Logger = NewDefaultLogger(LevelInfo)
	}
	if out.PanicHandler == nil {
		out.PanicHandler = &DefaultPanicHandler{Logger: out.Logger}
	}
	if out.Metrics == nil {
		out.Metrics = &NilMetrics{}
	}
	if out.RejectedTaskHandler == nil {
		out.RejectedTaskHandler = &DefaultRejectedTaskHandler{Logger: out.Logger}
	}
	if out.HistoryCapacity <= 0 {
		out.HistoryCapacity = defaultTaskHistoryCapacity
	}
	return out
}
