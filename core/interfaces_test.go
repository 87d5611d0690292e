package core

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

// =============================================================================
// Test RejectedTaskHandler
// =============================================================================

type rejection struct {
	RunnerName string
	TaskID     TaskID
	Reason     string
}

// recordingRejectedHandler captures every HandleRejectedTask call.
type recordingRejectedHandler struct {
	mu         sync.Mutex
	rejections []rejection
}

func (h *recordingRejectedHandler) HandleRejectedTask(runnerName string, task ScheduledTask, reason string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rejections = append(h.rejections, rejection{RunnerName: runnerName, TaskID: task.ID, Reason: reason})
}

func (h *recordingRejectedHandler) get() []rejection {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]rejection(nil), h.rejections...)
}

func bufferLogger() (*SlogLogger, *bytes.Buffer) {
	var buf bytes.Buffer
	h := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return NewSlogLogger(slog.New(h)), &buf
}

// TestDefaultPanicHandler_LogsTaskAndSpec verifies the default panic handler logs at error level
// Given: A DefaultPanicHandler writing to a buffer
// When: HandlePanic is called for a task with a deadline
// Then: The record names the task, the worker, and the panic value
func TestDefaultPanicHandler_LogsTaskAndSpec(t *testing.T) {
	// Arrange
	logger, buf := bufferLogger()
	handler := &DefaultPanicHandler{Logger: logger}
	st := NewScheduledTask(func(context.Context) {}, TaskSpec{Priority: 7})

	// Act
	handler.HandlePanic(context.Background(), st, 3, "boom", []byte("stack trace"))

	// Assert
	out := buf.String()
	for _, want := range []string{"level=ERROR", "task panicked", st.ID.String(), "worker=3", "panic=boom"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}

// TestDefaultRejectedTaskHandler_LogsReason verifies the default rejection handler logs at warn level
func TestDefaultRejectedTaskHandler_LogsReason(t *testing.T) {
	logger, buf := bufferLogger()
	handler := &DefaultRejectedTaskHandler{Logger: logger}
	st := NewScheduledTask(func(context.Context) {}, DefaultTaskSpec())

	handler.HandleRejectedTask("r1", st, "shutting down")

	out := buf.String()
	for _, want := range []string{"level=WARN", "runner=r1", st.ID.String(), `reason="shutting down"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}

func TestNilMetrics(t *testing.T) {
	// All methods are no-ops; this only guards against a nil dereference.
	var m Metrics = &NilMetrics{}
	m.RecordTaskDuration("r", TaskPriorityUserVisible, 0)
	m.RecordTaskPanic("r", "panic")
	m.RecordQueueDepth("r", "inject", 10)
	m.RecordTaskRejected("r", "shutdown")
	m.RecordSteal("r", 2)
	m.RecordOverflow("r")
	m.RecordDeadlineMiss("r", TaskPriorityBestEffort, 0)
}

// =============================================================================
// Test TaskSchedulerConfig
// =============================================================================

func TestDefaultTaskSchedulerConfig(t *testing.T) {
	config := DefaultTaskSchedulerConfig()

	if _, ok := config.PanicHandler.(*DefaultPanicHandler); !ok {
		t.Errorf("PanicHandler should be *DefaultPanicHandler, got %T", config.PanicHandler)
	}
	if _, ok := config.Metrics.(*NilMetrics); !ok {
		t.Errorf("Metrics should be *NilMetrics, got %T", config.Metrics)
	}
	if _, ok := config.RejectedTaskHandler.(*DefaultRejectedTaskHandler); !ok {
		t.Errorf("RejectedTaskHandler should be *DefaultRejectedTaskHandler, got %T", config.RejectedTaskHandler)
	}
	if config.HistoryCapacity != defaultTaskHistoryCapacity {
		t.Errorf("HistoryCapacity = %d, want %d", config.HistoryCapacity, defaultTaskHistoryCapacity)
	}
}

// TestTaskSchedulerConfig_WithDefaultsKeepsCustomHandlers verifies partial configs are completed
// Given: A config with only Metrics and a name set, and a nil config
// When: withDefaults is applied
// Then: Custom fields survive, missing handlers are filled, and the fallback name is used only when unset
func TestTaskSchedulerConfig_WithDefaultsKeepsCustomHandlers(t *testing.T) {
	// Arrange
	metrics := &recordingMetrics{}
	partial := &TaskSchedulerConfig{Name: "custom", Metrics: metrics}

	// Act
	got := partial.withDefaults("fallback")
	var nilCfg *TaskSchedulerConfig
	fromNil := nilCfg.withDefaults("fallback")

	// Assert
	if got.Name != "custom" || got.Metrics != Metrics(metrics) {
		t.Errorf("custom fields lost: name=%q metrics=%T", got.Name, got.Metrics)
	}
	if got.Logger == nil || got.PanicHandler == nil || got.RejectedTaskHandler == nil {
		t.Errorf("missing handlers not filled: %+v", got)
	}
	if partial.Logger != nil {
		t.Error("withDefaults must not modify its receiver")
	}
	if fromNil.Name != "fallback" || fromNil.HistoryCapacity != defaultTaskHistoryCapacity {
		t.Errorf("nil config defaults = %+v", fromNil)
	}
}

// TestTaskScheduler_CustomHandlersSeeRejection verifies custom handlers receive rejections
// Given: A scheduler with recording metrics and rejection handler
// When: A task is submitted after Shutdown
// Then: Both the handler and the metrics see one "shutting down" rejection for that task
func TestTaskScheduler_CustomHandlersSeeRejection(t *testing.T) {
	// Arrange
	metrics := &recordingMetrics{}
	rejected := &recordingRejectedHandler{}
	cfg := quietConfig()
	cfg.Name = "rejecting"
	cfg.Metrics = metrics
	cfg.RejectedTaskHandler = rejected
	s := NewTaskSchedulerWithConfig(2, cfg)
	s.Shutdown()

	// Act
	st := NewScheduledTask(func(context.Context) {
		t.Error("task should not be executed after shutdown")
	}, DefaultTaskSpec())
	err := s.Submit(context.Background(), st)

	// Assert
	if err == nil {
		t.Fatal("Submit after Shutdown should fail")
	}
	got := rejected.get()
	if len(got) != 1 {
		t.Fatalf("rejections = %+v, want exactly one", got)
	}
	if got[0] != (rejection{RunnerName: "rejecting", TaskID: st.ID, Reason: "shutting down"}) {
		t.Errorf("rejection = %+v", got[0])
	}
	metrics.mu.Lock()
	defer metrics.mu.Unlock()
	if len(metrics.rejected) != 1 || metrics.rejected[0] != "shutting down" {
		t.Errorf("rejected metrics = %v", metrics.rejected)
	}
}
