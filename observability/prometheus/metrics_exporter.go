package prometheus

import (
	"errors"
	"fmt"
	"time"

	"github.com/Swind/go-task-runtime/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

// ExporterOptions controls collector configuration.
type ExporterOptions struct {
	DurationBuckets []float64
	// LatenessBuckets are used for the deadline-miss histogram. Defaults to prom.DefBuckets.
	LatenessBuckets []float64
}

// MetricsExporter adapts core.Metrics to Prometheus collectors.
type MetricsExporter struct {
	taskDurationSeconds *prom.HistogramVec
	taskPanicTotal      *prom.CounterVec
	taskRejectedTotal   *prom.CounterVec
	queueDepth          *prom.GaugeVec
	stealTotal          *prom.CounterVec
	stolenTasksTotal    *prom.CounterVec
	overflowTotal       *prom.CounterVec
	deadlineLateness    *prom.HistogramVec
}

var _ core.Metrics = (*MetricsExporter)(nil)

// NewMetricsExporter creates and registers Prometheus collectors for core.Metrics.
// Collectors already registered on reg under the same name are reused, so several runtimes
// can share one registry.
func NewMetricsExporter(namespace string, reg prom.Registerer, opts ExporterOptions) (*MetricsExporter, error) {
	r := newRegistrar(namespace, reg)
	m := &MetricsExporter{
		taskDurationSeconds: r.histogram("task_duration_seconds", "Task execution duration in seconds.",
			opts.DurationBuckets, "runner", "priority"),
		taskPanicTotal:    r.counter("task_panic_total", "Total number of task panics.", "runner"),
		taskRejectedTotal: r.counter("task_rejected_total", "Total number of rejected tasks.", "runner", "reason"),
		queueDepth:        r.gauge("queue_depth", "Last observed queue depth.", "runner", "queue"),
		stealTotal:        r.counter("steal_total", "Total number of successful steals between workers.", "runner"),
		stolenTasksTotal:  r.counter("stolen_tasks_total", "Total number of tasks moved by steals.", "runner"),
		overflowTotal:     r.counter("local_overflow_total", "Total number of local pushes routed to the injection queue.", "runner"),
		deadlineLateness: r.histogram("deadline_lateness_seconds", "How late tasks that missed their deadline started, in seconds.",
			opts.LatenessBuckets, "runner", "priority"),
	}
	if r.err != nil {
		return nil, r.err
	}
	return m, nil
}

// registrar builds namespaced collectors and registers them, keeping the first error.
type registrar struct {
	namespace string
	reg       prom.Registerer
	err       error
}

func newRegistrar(namespace string, reg prom.Registerer) *registrar {
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	return &registrar{namespace: normalizeLabel(namespace, "taskruntime"), reg: reg}
}

func (r *registrar) counter(name, help string, labels ...string) *prom.CounterVec {
	return register(r, name, prom.NewCounterVec(prom.CounterOpts{Namespace: r.namespace, Name: name, Help: help}, labels))
}

func (r *registrar) gauge(name, help string, labels ...string) *prom.GaugeVec {
	return register(r, name, prom.NewGaugeVec(prom.GaugeOpts{Namespace: r.namespace, Name: name, Help: help}, labels))
}

func (r *registrar) histogram(name, help string, buckets []float64, labels ...string) *prom.HistogramVec {
	if len(buckets) == 0 {
		buckets = prom.DefBuckets
	}
	return register(r, name, prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: r.namespace, Name: name, Help: help, Buckets: buckets,
	}, labels))
}

func register[T prom.Collector](r *registrar, name string, c T) T {
	if r.err != nil {
		return c
	}
	got, err := registerCollector(r.reg, c)
	if err != nil {
		r.err = fmt.Errorf("register %s_%s: %w", r.namespace, name, err)
	}
	return got
}

// RecordTaskDuration records task execution duration.
func (m *MetricsExporter) RecordTaskDuration(runnerName string, priority core.TaskPriority, duration time.Duration) {
	if m == nil {
		return
	}
	m.taskDurationSeconds.WithLabelValues(runnerLabel(runnerName), core.PriorityClass(priority)).Observe(duration.Seconds())
}

// RecordTaskPanic records task panic events.
func (m *MetricsExporter) RecordTaskPanic(runnerName string, panicInfo any) {
	if m == nil {
		return
	}
	m.taskPanicTotal.WithLabelValues(runnerLabel(runnerName)).Inc()
}

// RecordQueueDepth records queue depth.
func (m *MetricsExporter) RecordQueueDepth(runnerName string, queue string, depth int) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues(runnerLabel(runnerName), normalizeLabel(queue, "unknown")).Set(float64(depth))
}

// RecordTaskRejected records task rejection events.
func (m *MetricsExporter) RecordTaskRejected(runnerName string, reason string) {
	if m == nil {
		return
	}
	m.taskRejectedTotal.WithLabelValues(runnerLabel(runnerName), normalizeLabel(reason, "unknown")).Inc()
}

// RecordSteal records one steal that moved count tasks.
func (m *MetricsExporter) RecordSteal(runnerName string, count int) {
	if m == nil {
		return
	}
	m.stealTotal.WithLabelValues(runnerLabel(runnerName)).Inc()
	m.stolenTasksTotal.WithLabelValues(runnerLabel(runnerName)).Add(float64(count))
}

// RecordOverflow records a local queue overflow.
func (m *MetricsExporter) RecordOverflow(runnerName string) {
	if m == nil {
		return
	}
	m.overflowTotal.WithLabelValues(runnerLabel(runnerName)).Inc()
}

// RecordDeadlineMiss records how late a task started relative to its deadline.
func (m *MetricsExporter) RecordDeadlineMiss(runnerName string, priority core.TaskPriority, lateness time.Duration) {
	if m == nil {
		return
	}
	m.deadlineLateness.WithLabelValues(runnerLabel(runnerName), core.PriorityClass(priority)).Observe(lateness.Seconds())
}

func runnerLabel(name string) string { return normalizeLabel(name, "unknown") }

func normalizeLabel(v string, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func registerCollector[T prom.Collector](reg prom.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var alreadyRegisteredErr prom.AlreadyRegisteredError
	if errors.As(err, &alreadyRegisteredErr) {
		existing, ok := alreadyRegisteredErr.ExistingCollector.(T)
		if !ok {
			return collector, fmt.Errorf("collector type mismatch for %T", collector)
		}
		return existing, nil
	}

	return collector, err
}
