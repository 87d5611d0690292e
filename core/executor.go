package core

import (
	"context"
	"runtime/debug"
	"sync/atomic"
	"time"
)

// taskExecutor holds what both backends share: handlers, counters, history and the
// optional deadline index. It never touches the run queues itself.
type taskExecutor struct {
	name string

	logger          Logger
	panicHandler    PanicHandler
	metrics         Metrics
	rejectedHandler RejectedTaskHandler

	history   *executionHistory
	deadlines *deadlineIndex

	metricQueued int32 // Waiting in a local or injection queue
	metricActive int32 // Executing on a worker

	stolen         atomic.Int64
	overflowed     atomic.Int64
	rejected       atomic.Int64
	deadlineMisses atomic.Int64
}

func newTaskExecutor(cfg TaskSchedulerConfig) *taskExecutor {
	e := &taskExecutor{
		name:            cfg.Name,
		logger:          cfg.Logger,
		panicHandler:    cfg.PanicHandler,
		metrics:         cfg.Metrics,
		rejectedHandler: cfg.RejectedTaskHandler,
		history:         newExecutionHistory(cfg.HistoryCapacity),
	}
	if cfg.TrackDeadlines {
		e.deadlines = newDeadlineIndex()
	}
	return e
}

func (e *taskExecutor) enqueued(t ScheduledTask) {
	atomic.AddInt32(&e.metricQueued, 1)
	e.deadlines.add(t)
}

func (e *taskExecutor) dequeued(t ScheduledTask) {
	atomic.AddInt32(&e.metricQueued, -1)
	e.deadlines.remove(t)
}

func (e *taskExecutor) queued() int { return int(atomic.LoadInt32(&e.metricQueued)) }
func (e *taskExecutor) active() int { return int(atomic.LoadInt32(&e.metricActive)) }

// reject settles a task that no queue accepted.
func (e *taskExecutor) reject(t ScheduledTask, reason string) {
	e.rejected.Add(1)
	e.rejectedHandler.HandleRejectedTask(e.name, t, reason)
	e.metrics.RecordTaskRejected(e.name, reason)
	t.finish(ErrRuntimeShutdown)
}

// cancel settles tasks drained from a queue at shutdown.
func (e *taskExecutor) cancel(tasks []ScheduledTask) {
	for _, t := range tasks {
		e.dequeued(t)
		t.Cancel()
	}
	if len(tasks) > 0 {
		e.logger.Debug("cancelled queued tasks", F("runner", e.name), F("count", len(tasks)))
	}
}

func (e *taskExecutor) recordSteal(taken int) {
	e.stolen.Add(int64(taken))
	e.metrics.RecordSteal(e.name, taken)
}

func (e *taskExecutor) recordOverflow() {
	e.overflowed.Add(1)
	e.metrics.RecordOverflow(e.name)
}

// run executes t on the calling goroutine and settles its handle.
// A panicking task is reported and recovered; it never takes the worker down.
func (e *taskExecutor) run(ctx context.Context, workerID int, t ScheduledTask) {
	atomic.AddInt32(&e.metricActive, 1)
	defer atomic.AddInt32(&e.metricActive, -1)

	startedAt := time.Now()
	lateness := t.Spec.Lateness(startedAt)
	if lateness > 0 {
		e.deadlineMisses.Add(1)
		e.metrics.RecordDeadlineMiss(e.name, t.Spec.Priority, lateness)
	}

	var outcome error
	func() {
		defer func() {
			if r := recover(); r != nil {
				stack := debug.Stack()
				outcome = &PanicError{Value: r, Stack: stack}
				e.panicHandler.HandlePanic(ctx, t, workerID, r, stack)
				e.metrics.RecordTaskPanic(e.name, r)
			}
		}()
		t.Task(ctx)
	}()

	finishedAt := time.Now()
	duration := finishedAt.Sub(startedAt)
	e.metrics.RecordTaskDuration(e.name, t.Spec.Priority, duration)

	var queuedFor time.Duration
	if !t.EnqueuedAt.IsZero() {
		queuedFor = startedAt.Sub(t.EnqueuedAt)
	}
	e.history.Add(TaskExecutionRecord{
		TaskID:         t.ID,
		Name:           resolveTaskName(t.Task),
		RunnerName:     e.name,
		WorkerID:       workerID,
		Spec:           t.Spec,
		QueuedFor:      queuedFor,
		StartedAt:      startedAt,
		FinishedAt:     finishedAt,
		Duration:       duration,
		Panicked:       outcome != nil,
		MissedDeadline: lateness > 0,
	})

	t.finish(outcome)
}

// fillStats copies the executor-owned counters into stats.
func (e *taskExecutor) fillStats(stats *SchedulerStats) {
	stats.Name = e.name
	stats.Queued = e.queued()
	stats.Active = e.active()
	stats.Stolen = e.stolen.Load()
	stats.Overflowed = e.overflowed.Load()
	stats.Rejected = e.rejected.Load()
	stats.DeadlineMisses = e.deadlineMisses.Load()
	if e.deadlines != nil {
		stats.OverduePending = e.deadlines.overdue(time.Now())
		if earliest, ok := e.deadlines.earliest(); ok {
			stats.EarliestDeadline = earliest
		}
	}
	if last, ok := e.history.Last(); ok {
		stats.LastTaskName = last.Name
		stats.LastTaskAt = last.FinishedAt
	}
}

// waitDrained polls until nothing is queued or running, or timeout elapses.
func (e *taskExecutor) waitDrained(timeout time.Duration) bool {
	deadline := time.After(timeout)
	ticker := time.NewTicker(drainPollInterval)
	defer ticker.Stop()

	for {
		if e.queued() == 0 && e.active() == 0 {
			return true
		}
		select {
		case <-deadline:
			return false
		case <-ticker.C:
		}
	}
}

const drainPollInterval = 10 * time.Millisecond
