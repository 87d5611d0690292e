package prometheus

import (
	"strings"
	"testing"
	"time"

	"github.com/Swind/go-task-runtime/core"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestMetricsExporter_RecordMethods(t *testing.T) {
	reg := prom.NewRegistry()
	exporter, err := NewMetricsExporter("taskruntime", reg, ExporterOptions{})
	if err != nil {
		t.Fatalf("NewMetricsExporter failed: %v", err)
	}

	exporter.RecordTaskDuration("runner-a", core.TaskPriorityUserVisible, 250*time.Millisecond)
	exporter.RecordTaskPanic("runner-a", "panic")
	exporter.RecordQueueDepth("runner-a", "inject", 7)
	exporter.RecordTaskRejected("runner-a", "shutting down")
	exporter.RecordSteal("runner-a", 3)
	exporter.RecordSteal("runner-a", 2)
	exporter.RecordOverflow("runner-a")
	exporter.RecordDeadlineMiss("runner-a", 200, 40*time.Millisecond)

	panicTotal := testutil.ToFloat64(exporter.taskPanicTotal.WithLabelValues("runner-a"))
	if panicTotal != 1 {
		t.Fatalf("panic total = %v, want 1", panicTotal)
	}

	queueDepth := testutil.ToFloat64(exporter.queueDepth.WithLabelValues("runner-a", "inject"))
	if queueDepth != 7 {
		t.Fatalf("queue depth = %v, want 7", queueDepth)
	}

	rejected := testutil.ToFloat64(exporter.taskRejectedTotal.WithLabelValues("runner-a", "shutting down"))
	if rejected != 1 {
		t.Fatalf("rejected total = %v, want 1", rejected)
	}

	if got := testutil.ToFloat64(exporter.stealTotal.WithLabelValues("runner-a")); got != 2 {
		t.Fatalf("steal total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(exporter.stolenTasksTotal.WithLabelValues("runner-a")); got != 5 {
		t.Fatalf("stolen tasks total = %v, want 5", got)
	}
	if got := testutil.ToFloat64(exporter.overflowTotal.WithLabelValues("runner-a")); got != 1 {
		t.Fatalf("overflow total = %v, want 1", got)
	}

	histCount, err := histogramSampleCount(exporter.taskDurationSeconds.WithLabelValues("runner-a", "user_visible"))
	if err != nil {
		t.Fatalf("histogramSampleCount failed: %v", err)
	}
	if histCount != 1 {
		t.Fatalf("duration sample count = %d, want 1", histCount)
	}

	// 200 sits between UserVisible and UserBlocking, so it is labelled user_visible.
	lateCount, err := histogramSampleCount(exporter.deadlineLateness.WithLabelValues("runner-a", "user_visible"))
	if err != nil {
		t.Fatalf("histogramSampleCount failed: %v", err)
	}
	if lateCount != 1 {
		t.Fatalf("lateness sample count = %d, want 1", lateCount)
	}
}

func TestMetricsExporter_AlreadyRegisteredReuse(t *testing.T) {
	reg := prom.NewRegistry()
	first, err := NewMetricsExporter("taskruntime", reg, ExporterOptions{})
	if err != nil {
		t.Fatalf("first NewMetricsExporter failed: %v", err)
	}
	second, err := NewMetricsExporter("taskruntime", reg, ExporterOptions{})
	if err != nil {
		t.Fatalf("second NewMetricsExporter failed: %v", err)
	}

	first.RecordTaskPanic("runner-a", nil)
	second.RecordTaskPanic("runner-a", nil)

	got := testutil.ToFloat64(first.taskPanicTotal.WithLabelValues("runner-a"))
	if got != 2 {
		t.Fatalf("shared panic counter = %v, want 2", got)
	}
}

// TestMetricsExporter_ConflictingCollector verifies a clashing descriptor is reported
// Given: A registry holding an unlabeled gauge under the panic counter's name
// When: An exporter is created on that registry
// Then: Creation fails with an error naming the collector
func TestMetricsExporter_ConflictingCollector(t *testing.T) {
	reg := prom.NewRegistry()
	reg.MustRegister(prom.NewGauge(prom.GaugeOpts{Namespace: "taskruntime", Name: "task_panic_total", Help: "clash"}))

	_, err := NewMetricsExporter("taskruntime", reg, ExporterOptions{})
	if err == nil {
		t.Fatal("NewMetricsExporter should fail on a conflicting collector")
	}
	if !strings.Contains(err.Error(), "taskruntime_task_panic_total") {
		t.Fatalf("error %q does not name the collector", err)
	}
}

func TestMetricsExporter_NilReceiver(t *testing.T) {
	var exporter *MetricsExporter

	exporter.RecordTaskDuration("r", 0, time.Second)
	exporter.RecordTaskPanic("r", nil)
	exporter.RecordQueueDepth("r", "local", 1)
	exporter.RecordTaskRejected("r", "x")
	exporter.RecordSteal("r", 1)
	exporter.RecordOverflow("r")
	exporter.RecordDeadlineMiss("r", 0, time.Second)
}

func TestMetricsExporter_EmptyLabelsFallBack(t *testing.T) {
	reg := prom.NewRegistry()
	exporter, err := NewMetricsExporter("", reg, ExporterOptions{})
	if err != nil {
		t.Fatalf("NewMetricsExporter failed: %v", err)
	}

	exporter.RecordOverflow("")

	if got := testutil.ToFloat64(exporter.overflowTotal.WithLabelValues("unknown")); got != 1 {
		t.Fatalf("overflow total = %v, want 1", got)
	}
	if n := testutil.CollectAndCount(exporter.overflowTotal, "taskruntime_local_overflow_total"); n != 1 {
		t.Fatalf("collected series = %d, want 1", n)
	}
}

func histogramSampleCount(observer prom.Observer) (uint64, error) {
	collector, ok := observer.(prom.Collector)
	if !ok {
		return 0, nil
	}

	metricCh := make(chan prom.Metric, 1)
	collector.Collect(metricCh)
	close(metricCh)
	for metric := range metricCh {
		msg := &dto.Metric{}
		if err := metric.Write(msg); err != nil {
			return 0, err
		}
		if msg.Histogram != nil {
			return msg.Histogram.GetSampleCount(), nil
		}
	}
	return 0, nil
}
