package taskruntime

import (
	"context"
	"sync"
	"time"

	"github.com/Swind/go-task-runtime/core"
)

// GoroutineThreadPool is the multi-thread backend: a set of worker goroutines, each with its
// own local run queue, balancing load by stealing from each other and by polling the
// shared injection queue.
type GoroutineThreadPool struct {
	id        string
	workers   int
	scheduler *core.TaskScheduler
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	running   bool
	runningMu sync.RWMutex
}

var _ core.Backend = (*GoroutineThreadPool)(nil)

// NewGoroutineThreadPool creates a new GoroutineThreadPool
func NewGoroutineThreadPool(id string, workers int) *GoroutineThreadPool {
	return NewGoroutineThreadPoolWithConfig(id, workers, core.DefaultTaskSchedulerConfig())
}

// NewGoroutineThreadPoolWithConfig creates a pool whose scheduler uses config.
// The config's Name defaults to id.
func NewGoroutineThreadPoolWithConfig(id string, workers int, config *core.TaskSchedulerConfig) *GoroutineThreadPool {
	cfg := core.TaskSchedulerConfig{}
	if config != nil {
		cfg = *config
	}
	if cfg.Name == "" {
		cfg.Name = id
	}
	return &GoroutineThreadPool{
		id:        id,
		workers:   workers,
		scheduler: core.NewTaskSchedulerWithConfig(workers, &cfg),
	}
}

// Start starts all worker goroutines. It is a no-op if the pool is running or has been
// stopped; a stopped pool cannot be restarted.
func (tg *GoroutineThreadPool) Start(ctx context.Context) {
	tg.runningMu.Lock()
	defer tg.runningMu.Unlock()

	if tg.running || tg.scheduler.IsShuttingDown() {
		return
	}

	tg.ctx, tg.cancel = context.WithCancel(ctx)
	tg.running = true

	// Publish every stealer before any worker starts scanning for victims.
	workers := make([]*core.Worker, tg.workers)
	for i := range workers {
		workers[i] = tg.scheduler.NewWorker(i)
	}
	for _, w := range workers {
		tg.wg.Add(1)
		go tg.workerLoop(w, tg.ctx)
	}
	tg.scheduler.Logger().Debug("thread pool started", core.F("pool", tg.id), core.F("workers", tg.workers))
}

// Submit forwards to the scheduler.
func (tg *GoroutineThreadPool) Submit(ctx context.Context, t core.ScheduledTask) error {
	return tg.scheduler.Submit(ctx, t)
}

// Shutdown closes the injection queue. Workers keep running what is queued until Stop.
func (tg *GoroutineThreadPool) Shutdown() {
	tg.scheduler.Shutdown()
}

// Stop stops the thread pool. Tasks still queued are cancelled.
func (tg *GoroutineThreadPool) Stop() {
	// Always shutdown scheduler to clean up resources
	// even if pool was never started
	tg.scheduler.Shutdown()
	tg.stopWorkers()
	tg.scheduler.Finalize()
}

// StopGraceful stops the thread pool gracefully, waiting for queued tasks to complete
// Returns error if timeout is exceeded before tasks complete
func (tg *GoroutineThreadPool) StopGraceful(timeout time.Duration) error {
	tg.runningMu.RLock()
	running := tg.running
	tg.runningMu.RUnlock()
	if !running {
		tg.Stop()
		return nil
	}

	// First, gracefully shutdown the scheduler (waits for queues to drain).
	// Timeout or not, the workers are cancelled afterwards.
	err := tg.scheduler.ShutdownGraceful(timeout)
	tg.stopWorkers()
	tg.scheduler.Finalize()
	return err
}

func (tg *GoroutineThreadPool) stopWorkers() {
	tg.runningMu.Lock()
	if !tg.running {
		tg.runningMu.Unlock()
		return
	}
	cancel := tg.cancel
	tg.runningMu.Unlock()

	if cancel != nil {
		cancel()
	}
	tg.Join()

	tg.runningMu.Lock()
	tg.running = false
	tg.runningMu.Unlock()
}

// ID returns the ID of the thread pool
func (tg *GoroutineThreadPool) ID() string {
	return tg.id
}

// IsRunning returns whether the thread pool is running
func (tg *GoroutineThreadPool) IsRunning() bool {
	tg.runningMu.RLock()
	defer tg.runningMu.RUnlock()
	return tg.running
}

// workerLoop is the main loop for each worker
func (tg *GoroutineThreadPool) workerLoop(w *core.Worker, ctx context.Context) {
	defer tg.wg.Done()
	// Drain and release the local queue on the way out. A non-nil recover() value means
	// the loop itself panicked; Release re-raises it instead of masking it.
	defer func() {
		w.Release(recover())
	}()
	stopCh := ctx.Done()

	for {
		task, ok := w.Next(stopCh)
		if !ok {
			// Context canceled
			return
		}
		w.Run(ctx, task)
	}
}

// Join waits for all worker goroutines to finish
func (tg *GoroutineThreadPool) Join() {
	tg.wg.Wait()
}

// WorkerCount returns the number of workers
func (tg *GoroutineThreadPool) WorkerCount() int {
	return tg.workers
}

func (tg *GoroutineThreadPool) QueuedTaskCount() int {
	return tg.scheduler.QueuedTaskCount()
}

func (tg *GoroutineThreadPool) ActiveTaskCount() int {
	return tg.scheduler.ActiveTaskCount()
}

// Scheduler exposes the underlying scheduler.
func (tg *GoroutineThreadPool) Scheduler() *core.TaskScheduler {
	return tg.scheduler
}

// Stats returns current observability data for this pool.
func (tg *GoroutineThreadPool) Stats() core.SchedulerStats {
	stats := tg.scheduler.Stats()
	stats.Running = tg.IsRunning()
	return stats
}

// RecentTasks returns completed task execution records in newest-first order.
func (tg *GoroutineThreadPool) RecentTasks(limit int) []core.TaskExecutionRecord {
	return tg.scheduler.RecentTasks(limit)
}
