package core

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
)

// idlePollInterval bounds how long an idle worker sleeps before rescanning peers, in case a
// wake-up signal was coalesced away while the signal channel was full.
const idlePollInterval = 5 * time.Millisecond

// TaskScheduler coordinates the multi-thread backend: one injection queue shared by
// everyone, and one local queue per worker that peers can steal from.
type TaskScheduler struct {
	exec        *taskExecutor
	inject      *InjectQueue
	signal      chan struct{}
	workerCount int

	// workers[i] is set while worker i is alive. Peers only ever touch its Stealer.
	workers []atomic.Pointer[Worker]

	// Lifecycle
	shuttingDown atomic.Bool
}

func NewTaskScheduler(workerCount int) *TaskScheduler {
	return NewTaskSchedulerWithConfig(workerCount, DefaultTaskSchedulerConfig())
}

// NewTaskSchedulerWithConfig creates the scheduler. It panics if workerCount < 1.
func NewTaskSchedulerWithConfig(workerCount int, config *TaskSchedulerConfig) *TaskScheduler {
	if workerCount < 1 {
		panic(fmt.Sprintf("TaskScheduler: workerCount must be at least 1, got %d", workerCount))
	}
	cfg := config.withDefaults(string(FlavorMultiThread))
	return &TaskScheduler{
		exec:        newTaskExecutor(cfg),
		inject:      NewInjectQueue(),
		signal:      make(chan struct{}, workerCount*2),
		workerCount: workerCount,
		workers:     make([]atomic.Pointer[Worker], workerCount),
	}
}

// Submit queues t. A task submitted from inside a task running on one of this scheduler's
// workers goes to that worker's local queue; everything else goes to the injection queue.
//
// If no queue accepts t, its handle is settled with ErrRuntimeShutdown and the error from
// the injection queue is returned.
func (s *TaskScheduler) Submit(ctx context.Context, t ScheduledTask) error {
	s.exec.enqueued(t)

	var err error
	if w := s.currentWorker(ctx); w != nil {
		var overflowed bool
		overflowed, err = w.local.pushBack(t, s.inject)
		if overflowed {
			s.exec.recordOverflow()
			if err != nil {
				s.exec.logger.Warn("local queue overflow rejected by closed injection queue",
					F("runner", s.exec.name), F("worker", w.id), F("task", t.ID.String()))
			}
		}
	} else {
		err = s.inject.Push(t)
	}

	if err != nil {
		s.exec.dequeued(t)
		s.exec.reject(t, "shutting down")
		return err
	}

	s.exec.metrics.RecordQueueDepth(s.exec.name, "inject", s.inject.Len())
	select {
	case s.signal <- struct{}{}:
	default:
		// Signal channel full, but task is already queued
		// This is not an error, just a optimization hint
	}
	return nil
}

func (s *TaskScheduler) currentWorker(ctx context.Context) *Worker {
	info, ok := CurrentWorker(ctx)
	if !ok || info.Owner != s || info.ID < 0 || info.ID >= s.workerCount {
		return nil
	}
	return s.workers[info.ID].Load()
}

// NewWorker creates worker id's local queue and publishes its Stealer to the peers.
// The returned Worker must only be driven from a single goroutine.
func (s *TaskScheduler) NewWorker(id int) *Worker {
	if id < 0 || id >= s.workerCount {
		panic(fmt.Sprintf("TaskScheduler: worker id %d out of range [0, %d)", id, s.workerCount))
	}
	stealer, local := NewLocalQueue()
	w := &Worker{id: id, sched: s, local: local, stealer: stealer}
	if !s.workers[id].CompareAndSwap(nil, w) {
		panic(fmt.Sprintf("TaskScheduler: worker %d already running", id))
	}
	return w
}

// Shutdown closes the injection queue so no new work is accepted.
// Workers exit when their stop channel closes and cancel what is left in their local queues.
func (s *TaskScheduler) Shutdown() {
	if s.shuttingDown.Swap(true) {
		return
	}
	s.inject.Close()
	s.exec.logger.Info("scheduler shutting down",
		F("runner", s.exec.name),
		F("queued", s.exec.queued()),
		F("active", s.exec.active()))
}

// ShutdownGraceful closes the injection queue and waits for queued and active tasks to
// finish. Returns an error if the timeout is exceeded first.
func (s *TaskScheduler) ShutdownGraceful(timeout time.Duration) error {
	s.Shutdown()
	if !s.exec.waitDrained(timeout) {
		s.exec.logger.Warn("graceful shutdown timed out",
			F("runner", s.exec.name), F("timeout", timeout), F("queued", s.exec.queued()))
		return fmt.Errorf("shutdown graceful timeout after %v: %d tasks still queued", timeout, s.exec.queued())
	}
	return nil
}

// Finalize drains the injection queue after every worker has exited and enforces its
// teardown invariant.
func (s *TaskScheduler) Finalize() {
	s.Shutdown()
	s.exec.cancel(s.inject.Drain())
	MustRelease(s.inject, nil)
}

// IsShuttingDown reports whether Shutdown has been called.
func (s *TaskScheduler) IsShuttingDown() bool {
	return s.shuttingDown.Load()
}

// Metrics
func (s *TaskScheduler) WorkerCount() int     { return s.workerCount }
func (s *TaskScheduler) QueuedTaskCount() int { return s.exec.queued() }
func (s *TaskScheduler) ActiveTaskCount() int { return s.exec.active() }

// InjectedTaskCount returns the injection queue length.
func (s *TaskScheduler) InjectedTaskCount() int { return s.inject.Len() }

// Stats returns current observability data for this scheduler.
func (s *TaskScheduler) Stats() SchedulerStats {
	stats := SchedulerStats{
		Flavor:      FlavorMultiThread,
		Workers:     s.workerCount,
		Closed:      s.IsShuttingDown(),
		Injected:    s.inject.Len(),
		LocalQueued: make([]int, s.workerCount),
	}
	for i := range s.workers {
		if w := s.workers[i].Load(); w != nil {
			stats.LocalQueued[i] = w.stealer.Len()
		}
	}
	s.exec.fillStats(&stats)
	return stats
}

// RecentTasks returns completed task execution records in newest-first order.
func (s *TaskScheduler) RecentTasks(limit int) []TaskExecutionRecord {
	return s.exec.history.Recent(limit)
}

// Logger returns the logger the scheduler was configured with.
func (s *TaskScheduler) Logger() Logger {
	return s.exec.logger
}

// =============================================================================
// Worker: One goroutine's view of the scheduler
// =============================================================================

// Worker owns one local queue. Next, Run and Release must all be called from the
// goroutine that created it through NewWorker.
type Worker struct {
	id      int
	sched   *TaskScheduler
	local   *LocalQueue
	stealer *Stealer
}

func (w *Worker) ID() int { return w.id }

// Next returns the next task to run: local queue first, then the injection queue, then a
// steal from a peer. It blocks while there is no work and returns false once stopCh closes.
func (w *Worker) Next(stopCh <-chan struct{}) (ScheduledTask, bool) {
	s := w.sched
	var idle *time.Timer
	defer func() {
		if idle != nil {
			idle.Stop()
		}
	}()

	for {
		select {
		case <-stopCh:
			return ScheduledTask{}, false
		default:
		}

		if t, ok := w.local.Pop(); ok {
			s.exec.dequeued(t)
			return t, true
		}
		if t, ok := s.inject.Pop(); ok {
			s.exec.dequeued(t)
			return t, true
		}
		if t, ok := w.steal(); ok {
			s.exec.dequeued(t)
			return t, true
		}

		if idle == nil {
			idle = time.NewTimer(idlePollInterval)
		} else {
			idle.Reset(idlePollInterval)
		}
		select {
		case <-s.signal:
		case <-idle.C:
		case <-stopCh:
			return ScheduledTask{}, false
		}
	}
}

// steal scans peers round-robin starting after this worker and takes half of the first
// non-empty queue that fits.
func (w *Worker) steal() (ScheduledTask, bool) {
	s := w.sched
	for i := 1; i < s.workerCount; i++ {
		peer := s.workers[(w.id+i)%s.workerCount].Load()
		if peer == nil || peer.stealer.IsEmpty() {
			continue
		}
		if t, taken, ok := peer.stealer.stealInto(w.local); ok {
			s.exec.recordSteal(taken)
			return t, true
		}
	}
	return ScheduledTask{}, false
}

// Run executes t with a context that identifies this worker, so that tasks it spawns land
// on this worker's local queue.
func (w *Worker) Run(ctx context.Context, t ScheduledTask) {
	runCtx := WithWorker(ctx, w.sched, w.id)
	w.sched.exec.run(runCtx, w.id, t)
}

// Release unpublishes the worker, cancels whatever is left in its local queue and enforces
// the teardown invariant. Pass the result of recover() from the worker's deferred function.
func (w *Worker) Release(recovered any) {
	s := w.sched
	s.workers[w.id].CompareAndSwap(w, nil)
	s.exec.cancel(w.local.Drain())
	s.exec.logger.Debug("worker exiting", F("runner", s.exec.name), F("worker", w.id))
	MustRelease(w.local, recovered)
}
