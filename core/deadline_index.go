package core

import (
	"time"

	"github.com/tidwall/btree"
)

type deadlineEntry struct {
	deadline time.Time
	id       TaskID
}

func deadlineLess(a, b deadlineEntry) bool {
	if !a.deadline.Equal(b.deadline) {
		return a.deadline.Before(b.deadline)
	}
	return a.id < b.id
}

// deadlineIndex orders pending deadline-carrying tasks by deadline so that overdue work can
// be counted without walking the run queues. It is only fed when TrackDeadlines is set.
// The btree does its own locking.
type deadlineIndex struct {
	tree *btree.BTreeG[deadlineEntry]
}

func newDeadlineIndex() *deadlineIndex {
	return &deadlineIndex{tree: btree.NewBTreeG(deadlineLess)}
}

func (d *deadlineIndex) add(t ScheduledTask) {
	if d == nil || !t.Spec.HasDeadline() {
		return
	}
	d.tree.Set(deadlineEntry{deadline: t.Spec.Deadline, id: t.ID})
}

func (d *deadlineIndex) remove(t ScheduledTask) {
	if d == nil || !t.Spec.HasDeadline() {
		return
	}
	d.tree.Delete(deadlineEntry{deadline: t.Spec.Deadline, id: t.ID})
}

// earliest returns the nearest pending deadline.
func (d *deadlineIndex) earliest() (time.Time, bool) {
	if d == nil {
		return time.Time{}, false
	}
	e, ok := d.tree.Min()
	if !ok {
		return time.Time{}, false
	}
	return e.deadline, true
}

// overdue counts pending tasks whose deadline is at or before now.
func (d *deadlineIndex) overdue(now time.Time) int {
	if d == nil {
		return 0
	}
	n := 0
	d.tree.Scan(func(e deadlineEntry) bool {
		if e.deadline.After(now) {
			return false
		}
		n++
		return true
	})
	return n
}

func (d *deadlineIndex) len() int {
	if d == nil {
		return 0
	}
	return d.tree.Len()
}
