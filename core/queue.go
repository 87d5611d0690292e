package core

import (
	"container/heap"
	"sync"
	"sync/atomic"
)

const (
	defaultQueueCap = 16

	// unboundedCapacity marks storage that is limited only by memory.
	unboundedCapacity = -1
)

// =============================================================================
// taskHeap: Max-heap of ScheduledTask ordered by TaskSpec
// =============================================================================

// taskHeap implements heap.Interface. The root is the task served first.
type taskHeap []ScheduledTask

func (h taskHeap) Len() int { return len(h) }

// Less puts the higher-ranked spec nearer the root: higher priority, then earlier deadline.
func (h taskHeap) Less(i, j int) bool {
	return h[i].Compare(h[j]) > 0
}

func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *taskHeap) Push(x any) {
	*h = append(*h, x.(ScheduledTask))
}

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = ScheduledTask{} // Avoid memory leak
	*h = old[0 : n-1]
	return item
}

// =============================================================================
// taskStore: One heap guarded by one lock
// =============================================================================

// storeIDs hands out the creation-order identities used to order lock acquisition
// when two stores must be held at once.
var storeIDs atomic.Uint64

// taskStore is the shared storage behind a LocalQueue/Stealer pair or an InjectQueue.
// Every method is a short critical section; nothing blocks while mu is held.
type taskStore struct {
	id       uint64
	capacity int

	mu    sync.Mutex
	tasks taskHeap
	// closed is set by drain. A closed store accepts no more tasks, so nothing can slip in
	// between the owner's final drain and its release.
	closed bool
}

func newTaskStore(capacity int) *taskStore {
	initial := defaultQueueCap
	if capacity > 0 && capacity < initial {
		initial = capacity
	}
	return &taskStore{
		id:       storeIDs.Add(1),
		capacity: capacity,
		tasks:    make(taskHeap, 0, initial),
	}
}

func (s *taskStore) bounded() bool {
	return s.capacity != unboundedCapacity
}

func (s *taskStore) push(t ScheduledTask) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pushLocked(t)
}

func (s *taskStore) pushLocked(t ScheduledTask) {
	heap.Push(&s.tasks, t)
}

// tryPush inserts t only if the store is open and below capacity. closed reports that the
// push was refused because the store has been drained.
func (s *taskStore) tryPush(t ScheduledTask) (pushed, closed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, true
	}
	if s.bounded() && len(s.tasks) >= s.capacity {
		return false, false
	}
	s.pushLocked(t)
	return true, false
}

func (s *taskStore) pop() (ScheduledTask, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.popLocked()
}

func (s *taskStore) popLocked() (ScheduledTask, bool) {
	if len(s.tasks) == 0 {
		return ScheduledTask{}, false
	}
	return heap.Pop(&s.tasks).(ScheduledTask), true
}

func (s *taskStore) peekSpec() (TaskSpec, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.tasks) == 0 {
		return TaskSpec{}, false
	}
	return s.tasks[0].Spec, true
}

func (s *taskStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

func (s *taskStore) isEmpty() bool {
	return s.len() == 0
}

// drain removes every task in dispatch order, releases the backing array and closes the
// store to further pushes.
func (s *taskStore) drain() []ScheduledTask {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	if len(s.tasks) == 0 {
		return nil
	}
	out := make([]ScheduledTask, 0, len(s.tasks))
	for len(s.tasks) > 0 {
		out = append(out, heap.Pop(&s.tasks).(ScheduledTask))
	}
	s.tasks = make(taskHeap, 0, defaultQueueCap)
	return out
}

// lockPair locks a and b in ascending id order so that concurrent cross-steals between
// the same two stores can never deadlock. The returned func unlocks both.
func lockPair(a, b *taskStore) func() {
	first, second := a, b
	if second.id < first.id {
		first, second = second, first
	}
	first.mu.Lock()
	second.mu.Lock()
	return func() {
		second.mu.Unlock()
		first.mu.Unlock()
	}
}
