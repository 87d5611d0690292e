package prometheus

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/Swind/go-task-runtime/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

// SchedulerSnapshotProvider provides current scheduler stats snapshots.
// Runtime, GoroutineThreadPool, TaskScheduler and SingleThreadScheduler all satisfy it.
type SchedulerSnapshotProvider interface {
	Stats() core.SchedulerStats
}

// SnapshotPoller periodically exports scheduler Stats() snapshots into Prometheus gauges.
type SnapshotPoller struct {
	interval time.Duration

	schedulersMu sync.RWMutex
	schedulers   map[string]SchedulerSnapshotProvider

	queued         *prom.GaugeVec
	injected       *prom.GaugeVec
	localQueued    *prom.GaugeVec
	active         *prom.GaugeVec
	workers        *prom.GaugeVec
	running        *prom.GaugeVec
	closed         *prom.GaugeVec
	stolen         *prom.GaugeVec
	overflowed     *prom.GaugeVec
	rejected       *prom.GaugeVec
	deadlineMisses *prom.GaugeVec
	overduePending *prom.GaugeVec

	stateMu sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSnapshotPoller creates a snapshot poller and registers its collectors.
func NewSnapshotPoller(namespace string, reg prom.Registerer, interval time.Duration) (*SnapshotPoller, error) {
	if interval <= 0 {
		interval = time.Second
	}

	r := newRegistrar(namespace, reg)
	gauge := func(name, help string, labels ...string) *prom.GaugeVec {
		return r.gauge(name, help, append([]string{"scheduler", "flavor"}, labels...)...)
	}

	p := &SnapshotPoller{
		interval:       interval,
		schedulers:     make(map[string]SchedulerSnapshotProvider),
		queued:         gauge("scheduler_queued", "Tasks waiting in any queue."),
		injected:       gauge("scheduler_injected", "Tasks waiting in the injection queue."),
		localQueued:    gauge("scheduler_local_queued", "Tasks waiting in a worker's local queue.", "worker"),
		active:         gauge("scheduler_active", "Tasks currently executing."),
		workers:        gauge("scheduler_workers", "Worker count."),
		running:        gauge("scheduler_running", "Scheduler running state (1=running, 0=stopped)."),
		closed:         gauge("scheduler_closed", "Scheduler closed state (1=closed, 0=open)."),
		stolen:         gauge("scheduler_stolen_tasks", "Stolen task count snapshot."),
		overflowed:     gauge("scheduler_overflowed_tasks", "Local overflow count snapshot."),
		rejected:       gauge("scheduler_rejected_tasks", "Rejected task count snapshot."),
		deadlineMisses: gauge("scheduler_deadline_misses", "Deadline miss count snapshot."),
		overduePending: gauge("scheduler_overdue_pending", "Queued tasks already past their deadline."),
	}
	if r.err != nil {
		return nil, r.err
	}
	return p, nil
}

// AddScheduler adds or replaces a scheduler snapshot provider by name.
func (p *SnapshotPoller) AddScheduler(name string, provider SchedulerSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "scheduler")
	p.schedulersMu.Lock()
	p.schedulers[name] = provider
	p.schedulersMu.Unlock()
}

// RemoveScheduler stops exporting the named scheduler.
func (p *SnapshotPoller) RemoveScheduler(name string) {
	if p == nil {
		return
	}
	p.schedulersMu.Lock()
	delete(p.schedulers, normalizeLabel(name, "scheduler"))
	p.schedulersMu.Unlock()
}

// Start begins periodic polling; repeated calls are no-ops.
func (p *SnapshotPoller) Start(ctx context.Context) {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if p.started {
		p.stateMu.Unlock()
		return
	}
	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.started = true
	p.stateMu.Unlock()

	go p.loop(pollCtx)
}

// Stop stops periodic polling; repeated calls are safe.
func (p *SnapshotPoller) Stop() {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if !p.started {
		p.stateMu.Unlock()
		return
	}
	cancel := p.cancel
	done := p.done
	p.stateMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	p.stateMu.Lock()
	p.started = false
	p.cancel = nil
	p.done = nil
	p.stateMu.Unlock()
}

func (p *SnapshotPoller) loop(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.CollectOnce()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.CollectOnce()
		}
	}
}

// CollectOnce exports one snapshot of every registered scheduler.
func (p *SnapshotPoller) CollectOnce() {
	p.schedulersMu.RLock()
	defer p.schedulersMu.RUnlock()

	for name, provider := range p.schedulers {
		stats := provider.Stats()
		flavor := normalizeLabel(string(stats.Flavor), "unknown")

		p.queued.WithLabelValues(name, flavor).Set(float64(stats.Queued))
		p.injected.WithLabelValues(name, flavor).Set(float64(stats.Injected))
		for i, n := range stats.LocalQueued {
			p.localQueued.WithLabelValues(name, flavor, strconv.Itoa(i)).Set(float64(n))
		}
		p.active.WithLabelValues(name, flavor).Set(float64(stats.Active))
		p.workers.WithLabelValues(name, flavor).Set(float64(stats.Workers))
		p.running.WithLabelValues(name, flavor).Set(boolGauge(stats.Running))
		p.closed.WithLabelValues(name, flavor).Set(boolGauge(stats.Closed))
		p.stolen.WithLabelValues(name, flavor).Set(float64(stats.Stolen))
		p.overflowed.WithLabelValues(name, flavor).Set(float64(stats.Overflowed))
		p.rejected.WithLabelValues(name, flavor).Set(float64(stats.Rejected))
		p.deadlineMisses.WithLabelValues(name, flavor).Set(float64(stats.DeadlineMisses))
		p.overduePending.WithLabelValues(name, flavor).Set(float64(stats.OverduePending))
	}
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
