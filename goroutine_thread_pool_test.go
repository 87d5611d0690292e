package taskruntime

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Swind/go-task-runtime/core"
)

func quietPool(id string, workers int) *GoroutineThreadPool {
	return NewGoroutineThreadPoolWithConfig(id, workers, &core.TaskSchedulerConfig{Logger: core.NewNoOpLogger()})
}

func post(pool *GoroutineThreadPool, task core.Task, spec core.TaskSpec) *core.TaskHandle {
	st := core.NewScheduledTask(task, spec)
	_ = pool.Submit(context.Background(), st)
	return st.Handle()
}

func TestGoroutineThreadPool_Lifecycle(t *testing.T) {
	pool := quietPool("test-pool", 2)

	if pool.ID() != "test-pool" {
		t.Errorf("expected ID 'test-pool', got %s", pool.ID())
	}

	if pool.IsRunning() {
		t.Error("pool should not be running initially")
	}

	ctx := context.Background()
	pool.Start(ctx)
	pool.Start(ctx)

	if !pool.IsRunning() {
		t.Error("pool should be running after Start()")
	}

	if pool.WorkerCount() != 2 {
		t.Errorf("expected 2 workers, got %d", pool.WorkerCount())
	}

	pool.Stop()

	if pool.IsRunning() {
		t.Error("pool should not be running after Stop()")
	}

	// A stopped pool stays stopped.
	pool.Start(ctx)
	if pool.IsRunning() {
		t.Error("pool restarted after Stop()")
	}
}

func TestGoroutineThreadPool_TaskExecution(t *testing.T) {
	pool := quietPool("exec-pool", 4)
	pool.Start(context.Background())
	defer pool.Stop()

	var counter int32
	var wg sync.WaitGroup
	taskCount := 10

	wg.Add(taskCount)

	task := func(ctx context.Context) {
		defer wg.Done()
		atomic.AddInt32(&counter, 1)
		time.Sleep(10 * time.Millisecond) // Simulate work
	}

	for i := 0; i < taskCount; i++ {
		post(pool, task, core.DefaultTaskSpec())
	}

	wg.Wait()

	if val := atomic.LoadInt32(&counter); val != int32(taskCount) {
		t.Errorf("expected %d executed tasks, got %d", taskCount, val)
	}
}

func TestGoroutineThreadPool_Metrics(t *testing.T) {
	pool := quietPool("metrics-pool", 1) // Single worker to force queuing
	pool.Start(context.Background())
	defer pool.Stop()

	// 1. Block the worker
	blockCh := make(chan struct{})
	started := make(chan struct{})

	blocking := post(pool, func(ctx context.Context) {
		close(started)
		<-blockCh
	}, core.DefaultTaskSpec())
	<-started

	if active := pool.ActiveTaskCount(); active != 1 {
		t.Errorf("expected 1 active task, got %d", active)
	}

	// 2. Queue more tasks
	h1 := post(pool, func(ctx context.Context) {}, core.DefaultTaskSpec())
	h2 := post(pool, func(ctx context.Context) {}, core.SpecUserVisible())

	if queued := pool.QueuedTaskCount(); queued != 2 {
		t.Errorf("expected 2 queued tasks, got %d", queued)
	}
	if stats := pool.Stats(); stats.Injected != 2 || !stats.Running || stats.Name != "metrics-pool" {
		t.Errorf("unexpected stats %+v", stats)
	}

	// 3. Unblock
	close(blockCh)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for _, h := range []*core.TaskHandle{blocking, h1, h2} {
		if err := h.Wait(ctx); err != nil {
			t.Fatalf("Wait: %v", err)
		}
	}

	if queued := pool.QueuedTaskCount(); queued != 0 {
		t.Errorf("expected 0 queued tasks, got %d", queued)
	}
	if recent := pool.RecentTasks(0); len(recent) != 3 {
		t.Errorf("expected 3 history records, got %d", len(recent))
	}
}

// TestGoroutineThreadPool_WorkerAffineSpawn verifies children queue on the parent's worker
// Given: A pool with one worker blocked and a parent task spawning children with its ctx
// When: The children are spawned
// Then: They sit in the parent worker's local queue and all run once the parent returns
func TestGoroutineThreadPool_WorkerAffineSpawn(t *testing.T) {
	pool := quietPool("affine-pool", 1)
	pool.Start(context.Background())
	defer pool.Stop()

	localBefore := make(chan []int, 1)
	var children []*core.TaskHandle
	parent := post(pool, func(ctx context.Context) {
		for range 3 {
			st := core.NewScheduledTask(func(context.Context) {}, core.DefaultTaskSpec())
			_ = pool.Submit(ctx, st)
			children = append(children, st.Handle())
		}
		localBefore <- pool.Stats().LocalQueued
	}, core.DefaultTaskSpec())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := parent.Wait(ctx); err != nil {
		t.Fatalf("parent: %v", err)
	}
	if got := <-localBefore; got[0] != 3 {
		t.Errorf("LocalQueued while parent ran = %v, want [3]", got)
	}
	for _, h := range children {
		if err := h.Wait(ctx); err != nil {
			t.Fatalf("child: %v", err)
		}
	}
}

func TestGoroutineThreadPool_SubmitAfterStopIsRejected(t *testing.T) {
	pool := quietPool("rejecting-pool", 1)
	pool.Start(context.Background())
	pool.Stop()

	st := core.NewScheduledTask(func(context.Context) {}, core.DefaultTaskSpec())
	if err := pool.Submit(context.Background(), st); !errors.Is(err, core.ErrQueueClosed) {
		t.Fatalf("Submit = %v, want ErrQueueClosed", err)
	}
	if !errors.Is(st.Handle().Err(), core.ErrRuntimeShutdown) {
		t.Errorf("handle err = %v, want ErrRuntimeShutdown", st.Handle().Err())
	}
}

func TestGoroutineThreadPool_StopCancelsQueued(t *testing.T) {
	pool := quietPool("cancel-pool", 1)
	pool.Start(context.Background())

	started := make(chan struct{})
	release := make(chan struct{})
	post(pool, func(ctx context.Context) {
		close(started)
		select {
		case <-release:
		case <-ctx.Done():
		}
	}, core.DefaultTaskSpec())
	<-started

	queued := post(pool, func(context.Context) {}, core.DefaultTaskSpec())
	pool.Stop()
	close(release)

	if !errors.Is(queued.Err(), core.ErrTaskCancelled) {
		t.Errorf("queued err = %v, want ErrTaskCancelled", queued.Err())
	}
}

// =============================================================================
// Graceful Shutdown Tests
// =============================================================================

func TestGoroutineThreadPool_StopGraceful_EmptyQueue(t *testing.T) {
	pool := quietPool("graceful-pool", 2)
	pool.Start(context.Background())

	// No tasks queued, should stop immediately
	err := pool.StopGraceful(1 * time.Second)
	if err != nil {
		t.Fatalf("StopGraceful failed: %v", err)
	}

	if pool.IsRunning() {
		t.Error("pool should not be running after StopGraceful")
	}
}

func TestGoroutineThreadPool_StopGraceful_WithQueuedTasks(t *testing.T) {
	pool := quietPool("graceful-queued-pool", 2)
	pool.Start(context.Background())

	var executed int32
	taskCount := 5

	// Create tasks that complete quickly
	task := func(ctx context.Context) {
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&executed, 1)
	}

	// Submit all tasks
	for i := 0; i < taskCount; i++ {
		post(pool, task, core.DefaultTaskSpec())
	}

	if err := pool.StopGraceful(2 * time.Second); err != nil {
		t.Errorf("StopGraceful failed: %v", err)
	}

	// Verify all tasks were executed
	if got := atomic.LoadInt32(&executed); got != int32(taskCount) {
		t.Errorf("expected %d executed tasks, got %d", taskCount, got)
	}

	if pool.IsRunning() {
		t.Error("pool should not be running after StopGraceful")
	}
}

func TestGoroutineThreadPool_StopGraceful_Timeout(t *testing.T) {
	pool := quietPool("timeout-pool", 1)
	pool.Start(context.Background())

	// The task checks context and should exit when the pool cancels its workers
	started := make(chan struct{})
	longRunningTask := func(ctx context.Context) {
		close(started)
		select {
		case <-time.After(500 * time.Millisecond):
		case <-ctx.Done():
			return
		}
	}

	post(pool, longRunningTask, core.DefaultTaskSpec())
	<-started

	// Shutdown with 50ms timeout - task takes 500ms so this should timeout
	start := time.Now()
	err := pool.StopGraceful(50 * time.Millisecond)
	elapsed := time.Since(start)

	if err == nil {
		t.Error("expected timeout error, got nil")
	}

	// Context cancellation should interrupt the task well before its 500ms
	if elapsed > 300*time.Millisecond {
		t.Errorf("StopGraceful took too long: %v (expected ~50-100ms)", elapsed)
	}

	if pool.IsRunning() {
		t.Error("pool should not be running after timeout StopGraceful")
	}
}

func TestGoroutineThreadPool_StopGraceful_NeverStarted(t *testing.T) {
	pool := quietPool("idle-pool", 2)
	queued := post(pool, func(context.Context) {}, core.DefaultTaskSpec())

	if err := pool.StopGraceful(time.Second); err != nil {
		t.Fatalf("StopGraceful: %v", err)
	}
	if !errors.Is(queued.Err(), core.ErrTaskCancelled) {
		t.Errorf("queued err = %v, want ErrTaskCancelled", queued.Err())
	}
}
