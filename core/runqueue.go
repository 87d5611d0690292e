package core

import (
	"fmt"
	"sync/atomic"
)

// =============================================================================
// Run queues: LocalQueue (owner), Stealer (peers), InjectQueue (shared)
// =============================================================================

// LocalQueue is the producer/consumer side of a worker's run queue.
// It must only be used from the goroutine that owns the worker.
type LocalQueue struct {
	store *taskStore
}

// Stealer is the peer-facing side of a worker's run queue. It is safe to share and copy
// across goroutines, and only offers inspection and bulk transfer.
type Stealer struct {
	store *taskStore
}

// NewLocalQueue creates one storage instance and the pair of handles sharing it.
// Called once per worker when the worker starts.
func NewLocalQueue() (*Stealer, *LocalQueue) {
	return newLocalQueueWithCapacity(LocalQueueCapacity)
}

func newLocalQueueWithCapacity(capacity int) (*Stealer, *LocalQueue) {
	store := newTaskStore(capacity)
	return &Stealer{store: store}, &LocalQueue{store: store}
}

// PushBack queues task locally, or hands it to inject once the local queue is full.
//
// A nil return means the task is queued somewhere. If the local queue is full or drained
// and inject is closed, the *ClosedError from inject is returned so the caller can settle
// the task.
func (q *LocalQueue) PushBack(task ScheduledTask, inject *InjectQueue) error {
	_, err := q.pushBack(task, inject)
	return err
}

// pushBack is PushBack that also reports whether the task overflowed to inject.
// A drained local queue is not an overflow: the task goes to inject, which the owner has
// closed by then, so the caller gets the rejection.
func (q *LocalQueue) pushBack(task ScheduledTask, inject *InjectQueue) (overflowed bool, err error) {
	pushed, closed := q.store.tryPush(task)
	if pushed {
		return false, nil
	}
	return !closed, inject.Push(task)
}

// Pop removes the highest-ranked local task.
func (q *LocalQueue) Pop() (ScheduledTask, bool) {
	return q.store.pop()
}

// IsStealable reports whether the queue has entries a peer could steal.
func (q *LocalQueue) IsStealable() bool {
	return !q.store.isEmpty()
}

func (q *LocalQueue) Len() int {
	return q.store.len()
}

// Capacity returns the local bound.
func (q *LocalQueue) Capacity() int {
	return q.store.capacity
}

// Drain removes every remaining task in dispatch order and closes the queue: later pushes
// go to the injection queue. Used by the owner at shutdown before Release.
func (q *LocalQueue) Drain() []ScheduledTask {
	return q.store.drain()
}

// Release checks the teardown invariant: the storage must be empty.
func (q *LocalQueue) Release() error {
	if n := q.store.len(); n > 0 {
		return fmt.Errorf("release local queue %d: %w (%d tasks)", q.store.id, ErrQueueNotEmpty, n)
	}
	return nil
}

// IsEmpty reads the peer storage's size under its lock.
func (s *Stealer) IsEmpty() bool {
	return s.store.isEmpty()
}

func (s *Stealer) Len() int {
	return s.store.len()
}

// StealInto moves half of the peer's tasks to dst.
//
// Both storages stay locked for the whole transfer, acquired in ascending store id order.
// Of the n/2 tasks taken from the source, the first is returned for the caller to run
// right away and the rest are pushed onto dst. If dst cannot absorb n/2 more tasks, or
// the source is empty, nothing moves and ok is false. A single queued task is returned
// directly even though n/2 is zero.
func (s *Stealer) StealInto(dst *LocalQueue) (ScheduledTask, bool) {
	task, _, ok := s.stealInto(dst)
	return task, ok
}

// stealInto is StealInto that also reports how many tasks left the source.
func (s *Stealer) stealInto(dst *LocalQueue) (task ScheduledTask, taken int, ok bool) {
	if s.store == dst.store {
		return ScheduledTask{}, 0, false
	}

	unlock := lockPair(s.store, dst.store)
	defer unlock()

	src, to := s.store, dst.store
	if to.closed {
		return ScheduledTask{}, 0, false
	}
	count := len(src.tasks) / 2
	if to.bounded() && len(to.tasks)+count > to.capacity {
		return ScheduledTask{}, 0, false
	}

	task, ok = src.popLocked()
	if !ok {
		return ScheduledTask{}, 0, false
	}
	taken = 1
	for ; taken < count; taken++ {
		moved, _ := src.popLocked()
		to.pushLocked(moved)
	}
	return task, taken, true
}

// InjectQueue is the shared queue for tasks with no home worker and for local overflow.
// It is unbounded and can be closed, after which every push is rejected.
type InjectQueue struct {
	closed atomic.Bool
	store  *taskStore
}

func NewInjectQueue() *InjectQueue {
	return &InjectQueue{store: newTaskStore(unboundedCapacity)}
}

// Push queues task unless the queue is closed.
//
// On rejection the returned *ClosedError carries task unmodified. If the task was freshly
// created and not yet accounted for anywhere else, the caller must settle it.
func (q *InjectQueue) Push(task ScheduledTask) error {
	q.store.mu.Lock()
	defer q.store.mu.Unlock()
	if q.closed.Load() {
		return &ClosedError{Task: task}
	}
	q.store.pushLocked(task)
	return nil
}

// Pop removes the highest-ranked task.
func (q *InjectQueue) Pop() (ScheduledTask, bool) {
	return q.store.pop()
}

// Close rejects all later pushes. It is idempotent and always reports true.
// The flag flips under the storage lock, so a Drain after Close sees every accepted task.
func (q *InjectQueue) Close() bool {
	q.store.mu.Lock()
	q.closed.Store(true)
	q.store.mu.Unlock()
	return true
}

func (q *InjectQueue) IsClosed() bool {
	return q.closed.Load()
}

func (q *InjectQueue) Len() int {
	return q.store.len()
}

func (q *InjectQueue) IsEmpty() bool {
	return q.store.isEmpty()
}

// PeekSpec returns the spec of the task Pop would return.
func (q *InjectQueue) PeekSpec() (TaskSpec, bool) {
	return q.store.peekSpec()
}

// Drain removes every remaining task in dispatch order.
func (q *InjectQueue) Drain() []ScheduledTask {
	return q.store.drain()
}

// Release checks the teardown invariant: the storage must be empty.
func (q *InjectQueue) Release() error {
	if n := q.store.len(); n > 0 {
		return fmt.Errorf("release inject queue %d: %w (%d tasks)", q.store.id, ErrQueueNotEmpty, n)
	}
	return nil
}

// =============================================================================
// Teardown
// =============================================================================

// Releaser is implemented by LocalQueue and InjectQueue.
type Releaser interface {
	Release() error
}

// MustRelease enforces the teardown invariant from a deferred function.
//
// recovered is the value of recover() in the caller's deferred function. When it is non-nil
// the goroutine is already unwinding, so the invariant check is skipped and the original
// panic is re-raised to keep its cause visible. Otherwise a non-empty queue panics with
// an error wrapping ErrQueueNotEmpty.
func MustRelease(r Releaser, recovered any) {
	if recovered != nil {
		panic(recovered)
	}
	if err := r.Release(); err != nil {
		panic(err)
	}
}
