package core

import (
	"fmt"
	"time"
)

// =============================================================================
// TaskSpec: Scheduling metadata attached to every task
// =============================================================================

// TaskPriority orders tasks before any deadline is considered. Higher values run first.
type TaskPriority uint8

const (
	// TaskPriorityBestEffort: Lowest priority, also the default
	TaskPriorityBestEffort TaskPriority = 0

	// TaskPriorityUserVisible: Work whose result the user will eventually see
	TaskPriorityUserVisible TaskPriority = 127

	// TaskPriorityUserBlocking: Highest priority
	// The user is waiting on this task; it should preempt everything queued.
	TaskPriorityUserBlocking TaskPriority = 255
)

// TaskSpec tells the runtime how urgent a task is.
//
// Tasks with a larger Priority are dispatched first. Among tasks of equal priority, the one
// with the earliest Deadline is dispatched first, and a task without a deadline yields to any
// task that has one. The zero Deadline means "no deadline".
type TaskSpec struct {
	Priority TaskPriority
	Deadline time.Time
}

// DefaultTaskSpec returns priority 0 with no deadline.
func DefaultTaskSpec() TaskSpec {
	return TaskSpec{Priority: TaskPriorityBestEffort}
}

// SpecWithDeadline returns a priority 0 spec carrying the given deadline.
func SpecWithDeadline(deadline time.Time) TaskSpec {
	return TaskSpec{Deadline: deadline}
}

func SpecUserBlocking() TaskSpec {
	return TaskSpec{Priority: TaskPriorityUserBlocking}
}

func SpecUserVisible() TaskSpec {
	return TaskSpec{Priority: TaskPriorityUserVisible}
}

func SpecBestEffort() TaskSpec {
	return TaskSpec{Priority: TaskPriorityBestEffort}
}

// HasDeadline reports whether the spec carries a deadline.
func (s TaskSpec) HasDeadline() bool {
	return !s.Deadline.IsZero()
}

// Compare ranks s against other in dispatch order.
// It returns +1 if s is served before other, -1 if after, and 0 if the two are
// ordering-equivalent (which does not imply identical deadlines).
//
// The deadline tie-break is inverted relative to time order: an earlier deadline ranks
// higher so that it pops first from a max-ordered heap.
func (s TaskSpec) Compare(other TaskSpec) int {
	if s.Priority != other.Priority {
		if s.Priority > other.Priority {
			return 1
		}
		return -1
	}

	switch sHas, oHas := s.HasDeadline(), other.HasDeadline(); {
	case !sHas && !oHas:
		return 0
	case !sHas:
		return -1
	case !oHas:
		return 1
	}

	switch {
	case s.Deadline.Before(other.Deadline):
		return 1
	case s.Deadline.After(other.Deadline):
		return -1
	default:
		return 0
	}
}

// Before reports whether s is dispatched strictly before other.
func (s TaskSpec) Before(other TaskSpec) bool {
	return s.Compare(other) > 0
}

func (s TaskSpec) String() string {
	if !s.HasDeadline() {
		return fmt.Sprintf("p=%d", s.Priority)
	}
	return fmt.Sprintf("p=%d deadline=%s", s.Priority, s.Deadline.Format(time.RFC3339Nano))
}

// Lateness returns how far past the deadline now is, or 0 if the deadline has not passed
// or the spec has none.
func (s TaskSpec) Lateness(now time.Time) time.Duration {
	if !s.HasDeadline() || !now.After(s.Deadline) {
		return 0
	}
	return now.Sub(s.Deadline)
}

// PriorityClass buckets a raw priority into the low-cardinality label used by metrics.
func PriorityClass(p TaskPriority) string {
	switch {
	case p >= TaskPriorityUserBlocking:
		return "user_blocking"
	case p >= TaskPriorityUserVisible:
		return "user_visible"
	default:
		return "best_effort"
	}
}
