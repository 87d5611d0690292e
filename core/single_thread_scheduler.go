package core

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// SingleThreadScheduler binds a dedicated goroutine to execute every task.
//
// It keeps one local queue, fed by tasks spawned from its own tasks, and one injection
// queue, fed by everyone else and by local overflow. There is no stealing. Both queues are
// priority ordered, so tasks run in TaskSpec order rather than submission order.
type SingleThreadScheduler struct {
	exec *taskExecutor

	// local is owned by runLoop; other goroutines only read its size through stealer.
	local   *LocalQueue
	stealer *Stealer
	inject  *InjectQueue
	signal  chan struct{}

	// Lifecycle control
	ctx     context.Context
	cancel  context.CancelFunc
	stopped chan struct{}
	once    sync.Once
	closed  atomic.Bool
}

// NewSingleThreadScheduler creates and starts a new SingleThreadScheduler.
// It immediately spawns the dedicated goroutine.
func NewSingleThreadScheduler(config *TaskSchedulerConfig) *SingleThreadScheduler {
	cfg := config.withDefaults(string(FlavorCurrentThread))
	ctx, cancel := context.WithCancel(context.Background())
	stealer, local := NewLocalQueue()
	r := &SingleThreadScheduler{
		exec:    newTaskExecutor(cfg),
		local:   local,
		stealer: stealer,
		inject:  NewInjectQueue(),
		signal:  make(chan struct{}, 1),
		ctx:     ctx,
		cancel:  cancel,
		stopped: make(chan struct{}),
	}

	go r.runLoop()

	return r
}

// Submit queues t. Tasks spawned from a task running on this scheduler go to the local
// queue; all others go to the injection queue. If neither accepts t, its handle is settled
// with ErrRuntimeShutdown and the injection queue's error is returned.
func (r *SingleThreadScheduler) Submit(ctx context.Context, t ScheduledTask) error {
	r.exec.enqueued(t)

	var err error
	if info, ok := CurrentWorker(ctx); ok && info.Owner == r {
		var overflowed bool
		overflowed, err = r.local.pushBack(t, r.inject)
		if overflowed {
			r.exec.recordOverflow()
		}
	} else {
		err = r.inject.Push(t)
	}

	if err != nil {
		r.exec.dequeued(t)
		r.exec.reject(t, "shutting down")
		return err
	}

	select {
	case r.signal <- struct{}{}:
	default:
	}
	return nil
}

// Shutdown stops accepting new work from outside. Queued tasks still run until Stop.
func (r *SingleThreadScheduler) Shutdown() {
	if r.closed.Swap(true) {
		return
	}
	r.inject.Close()
	r.exec.logger.Info("scheduler shutting down", F("runner", r.exec.name), F("queued", r.exec.queued()))
}

// ShutdownGraceful stops accepting work, waits for queued tasks to run, then stops the
// goroutine. Returns an error if the timeout is exceeded first; the goroutine is stopped
// either way.
func (r *SingleThreadScheduler) ShutdownGraceful(timeout time.Duration) error {
	r.Shutdown()
	drained := r.exec.waitDrained(timeout)
	r.Stop()
	if !drained {
		return fmt.Errorf("shutdown graceful timeout after %v", timeout)
	}
	return nil
}

// IsClosed returns true once Shutdown or Stop has been called.
func (r *SingleThreadScheduler) IsClosed() bool {
	return r.closed.Load()
}

// Stop terminates the goroutine after the current task completes. Tasks still queued are
// cancelled.
func (r *SingleThreadScheduler) Stop() {
	r.once.Do(func() {
		r.Shutdown()
		r.cancel()
		<-r.stopped
	})
}

// runLoop is the core of this scheduler, it occupies a dedicated goroutine
func (r *SingleThreadScheduler) runLoop() {
	defer close(r.stopped)
	defer func() {
		recovered := recover()
		r.exec.cancel(r.local.Drain())
		r.inject.Close()
		r.exec.cancel(r.inject.Drain())
		if recovered == nil {
			MustRelease(r.inject, nil)
		}
		MustRelease(r.local, recovered)
	}()

	runCtx := WithWorker(r.ctx, r, -1)

	for {
		if r.ctx.Err() != nil {
			return
		}
		if t, ok := r.next(); ok {
			r.exec.run(runCtx, -1, t)
			continue
		}

		select {
		case <-r.signal:
		case <-r.ctx.Done():
			return
		}
	}
}

func (r *SingleThreadScheduler) next() (ScheduledTask, bool) {
	if t, ok := r.local.Pop(); ok {
		r.exec.dequeued(t)
		return t, true
	}
	if t, ok := r.inject.Pop(); ok {
		r.exec.dequeued(t)
		return t, true
	}
	return ScheduledTask{}, false
}

// Metrics
func (r *SingleThreadScheduler) QueuedTaskCount() int { return r.exec.queued() }
func (r *SingleThreadScheduler) ActiveTaskCount() int { return r.exec.active() }

// Stats returns current observability data for this scheduler.
func (r *SingleThreadScheduler) Stats() SchedulerStats {
	stats := SchedulerStats{
		Flavor:      FlavorCurrentThread,
		Workers:     1,
		Running:     !r.IsClosed(),
		Closed:      r.IsClosed(),
		Injected:    r.inject.Len(),
		LocalQueued: []int{r.stealer.Len()},
	}
	r.exec.fillStats(&stats)
	return stats
}

// RecentTasks returns completed task execution records in newest-first order.
func (r *SingleThreadScheduler) RecentTasks(limit int) []TaskExecutionRecord {
	return r.exec.history.Recent(limit)
}
