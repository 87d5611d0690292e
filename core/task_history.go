package core

import (
	"reflect"
	"runtime"
	"sync"
)

const defaultTaskHistoryCapacity = 100

// executionHistory is a fixed-size ring of the most recent task executions.
type executionHistory struct {
	mu   sync.Mutex
	ring []TaskExecutionRecord
	next int  // slot the next record is written to
	full bool // every slot has been written at least once
}

func newExecutionHistory(capacity int) *executionHistory {
	if capacity < 1 {
		capacity = defaultTaskHistoryCapacity
	}
	return &executionHistory{ring: make([]TaskExecutionRecord, capacity)}
}

func (h *executionHistory) Add(record TaskExecutionRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.ring[h.next] = record
	h.next++
	if h.next == len(h.ring) {
		h.next, h.full = 0, true
	}
}

func (h *executionHistory) size() int {
	if h.full {
		return len(h.ring)
	}
	return h.next
}

// at returns the i-th newest record; at(0) is the latest.
func (h *executionHistory) at(i int) TaskExecutionRecord {
	return h.ring[(h.next-1-i+len(h.ring))%len(h.ring)]
}

// Recent returns up to limit records, newest first. limit <= 0 returns all of them.
func (h *executionHistory) Recent(limit int) []TaskExecutionRecord {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := h.size()
	if n == 0 {
		return nil
	}
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]TaskExecutionRecord, n)
	for i := range out {
		out[i] = h.at(i)
	}
	return out
}

// Last returns the newest record.
func (h *executionHistory) Last() (TaskExecutionRecord, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.size() == 0 {
		return TaskExecutionRecord{}, false
	}
	return h.at(0), true
}

func resolveTaskName(task Task) string {
	if task == nil {
		return "anonymous"
	}

	pc := reflect.ValueOf(task).Pointer()
	if pc == 0 {
		return "anonymous"
	}

	fn := runtime.FuncForPC(pc)
	if fn == nil || fn.Name() == "" {
		return "anonymous"
	}
	return fn.Name()
}
