package taskruntime

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/Swind/go-task-runtime/config"
	"github.com/Swind/go-task-runtime/core"
)

// Runtime owns one scheduler backend and the dispatcher in front of it.
type Runtime struct {
	dispatcher *core.Dispatcher

	// Exactly one of pool and single is set, according to the flavor.
	pool   *GoroutineThreadPool
	single *core.SingleThreadScheduler

	closeOnce sync.Once
}

// Options holds configuration options for a Runtime.
type Options struct {
	Flavor    Flavor
	Workers   int
	Name      string
	Scheduler core.TaskSchedulerConfig
}

// Option is a function that configures Options.
type Option func(*Options)

// WithFlavor selects the single-thread or multi-thread backend.
func WithFlavor(f Flavor) Option {
	return func(o *Options) { o.Flavor = f }
}

// WithWorkers sets the multi-thread worker count. Values below 1 mean one per CPU.
func WithWorkers(n int) Option {
	return func(o *Options) { o.Workers = n }
}

// WithName labels the runtime's logs and metrics.
func WithName(name string) Option {
	return func(o *Options) { o.Name = name }
}

// WithSchedulerConfig replaces the handler configuration wholesale.
func WithSchedulerConfig(cfg *core.TaskSchedulerConfig) Option {
	return func(o *Options) {
		if cfg != nil {
			o.Scheduler = *cfg
		}
	}
}

func WithLogger(l core.Logger) Option {
	return func(o *Options) { o.Scheduler.Logger = l }
}

func WithMetrics(m core.Metrics) Option {
	return func(o *Options) { o.Scheduler.Metrics = m }
}

func WithPanicHandler(h core.PanicHandler) Option {
	return func(o *Options) { o.Scheduler.PanicHandler = h }
}

func WithRejectedTaskHandler(h core.RejectedTaskHandler) Option {
	return func(o *Options) { o.Scheduler.RejectedTaskHandler = h }
}

// WithDeadlineTracking enables OverduePending and EarliestDeadline in Stats.
func WithDeadlineTracking(enabled bool) Option {
	return func(o *Options) { o.Scheduler.TrackDeadlines = enabled }
}

// New builds and starts a runtime. The default is a multi-thread runtime with one worker
// per CPU.
func New(opts ...Option) *Runtime {
	o := &Options{Flavor: FlavorMultiThread}
	for _, opt := range opts {
		opt(o)
	}
	if o.Workers < 1 {
		o.Workers = runtime.NumCPU()
	}

	sched := o.Scheduler
	if o.Name != "" {
		sched.Name = o.Name
	}

	rt := &Runtime{}
	switch o.Flavor {
	case FlavorCurrentThread:
		rt.single = core.NewSingleThreadScheduler(&sched)
		rt.dispatcher = core.NewDispatcher(o.Flavor, rt.single)
	case FlavorMultiThread:
		name := o.Name
		if name == "" {
			name = string(FlavorMultiThread)
		}
		rt.pool = NewGoroutineThreadPoolWithConfig(name, o.Workers, &sched)
		rt.pool.Start(context.Background())
		rt.dispatcher = core.NewDispatcher(o.Flavor, rt.pool)
	default:
		panic(fmt.Sprintf("taskruntime: unknown flavor %q", o.Flavor))
	}
	return rt
}

// NewFromConfig builds a runtime from file/env configuration. opts are applied after the
// configuration, so they take precedence.
func NewFromConfig(cfg config.Config, opts ...Option) (*Runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	level, err := core.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
	}

	base := []Option{
		WithFlavor(Flavor(cfg.Flavor)),
		WithWorkers(cfg.EffectiveWorkers()),
		WithLogger(core.NewDefaultLogger(level)),
		WithDeadlineTracking(cfg.TrackDeadlines),
		func(o *Options) { o.Scheduler.HistoryCapacity = cfg.HistoryCapacity },
	}
	return New(append(base, opts...)...), nil
}

// Flavor reports which backend the runtime uses.
func (rt *Runtime) Flavor() Flavor {
	return rt.dispatcher.Flavor()
}

// Spawn submits task with the default spec: priority 0, no deadline.
func (rt *Runtime) Spawn(task Task) *TaskHandle {
	return rt.dispatcher.Spawn(task)
}

// SpawnWithDeadline submits task at priority 0 with the given deadline.
func (rt *Runtime) SpawnWithDeadline(task Task, deadline time.Time) *TaskHandle {
	return rt.dispatcher.SpawnWithDeadline(task, deadline)
}

// SpawnWithSpec submits task with the given spec.
func (rt *Runtime) SpawnWithSpec(task Task, spec TaskSpec) *TaskHandle {
	return rt.dispatcher.SpawnWithSpec(task, spec)
}

// SpawnContext submits task with spec. Pass the ctx a running task received to queue the
// new task on the same worker.
func (rt *Runtime) SpawnContext(ctx context.Context, task Task, spec TaskSpec) *TaskHandle {
	return rt.dispatcher.SpawnContext(ctx, task, spec)
}

// BlockOn spawns task and waits for it to settle or for ctx to be done.
func (rt *Runtime) BlockOn(ctx context.Context, task Task, spec TaskSpec) error {
	return rt.dispatcher.SpawnContext(ctx, task, spec).Wait(ctx)
}

// Shutdown stops the multi-thread backend from accepting new work. Already queued work
// still runs until Close. For the single-thread backend this is a no-op.
func (rt *Runtime) Shutdown() {
	rt.dispatcher.Shutdown()
}

// ShutdownGraceful stops accepting work, waits up to timeout for queued and running tasks,
// then releases the backend. Tasks left over at the timeout are cancelled.
func (rt *Runtime) ShutdownGraceful(timeout time.Duration) error {
	var err error
	rt.closeOnce.Do(func() {
		if rt.pool != nil {
			err = rt.pool.StopGraceful(timeout)
			return
		}
		err = rt.single.ShutdownGraceful(timeout)
	})
	return err
}

// Close stops the backend. Queued tasks are cancelled; a running task is allowed to finish.
func (rt *Runtime) Close() {
	rt.closeOnce.Do(func() {
		if rt.pool != nil {
			rt.pool.Stop()
			return
		}
		rt.single.Stop()
	})
}

// Stats returns current observability data for the backend.
func (rt *Runtime) Stats() core.SchedulerStats {
	if rt.pool != nil {
		return rt.pool.Stats()
	}
	return rt.single.Stats()
}

// RecentTasks returns completed task execution records in newest-first order.
func (rt *Runtime) RecentTasks(limit int) []core.TaskExecutionRecord {
	if rt.pool != nil {
		return rt.pool.RecentTasks(limit)
	}
	return rt.single.RecentTasks(limit)
}
