package domain

import (
	"slices"
	"strings"
	"time"
)

// Task is an ordered stack of activity records, index 0 being the root.
type Task struct {
	ID        int
	Affinity  string
	CreatedAt time.Time
	stack     []*ActivityRecord
}

// NewTask validates and constructs an empty task.
func NewTask(id int, affinity string, now time.Time) (*Task, error) {
	affinity = strings.TrimSpace(affinity)
	if id <= 0 {
		return nil, ErrInvalidID
	}
	if affinity == "" {
		return nil, ErrInvalidAffinity
	}
	return &Task{
		ID:        id,
		Affinity:  affinity,
		CreatedAt: now.UTC(),
	}, nil
}

// IsSingleInstance reports whether the task is the dedicated task of a single-instance component.
func (t *Task) IsSingleInstance() bool {
	return strings.HasPrefix(t.Affinity, SingleInstanceAffinityPrefix)
}

// Len returns the stack depth.
func (t *Task) Len() int {
	return len(t.stack)
}

// IsEmpty reports whether the stack holds no records.
func (t *Task) IsEmpty() bool {
	return len(t.stack) == 0
}

// Activities returns the stack bottom-to-top.
func (t *Task) Activities() []*ActivityRecord {
	return slices.Clone(t.stack)
}

// Root returns the bottom record, or nil.
func (t *Task) Root() *ActivityRecord {
	if len(t.stack) == 0 {
		return nil
	}
	return t.stack[0]
}

// Top returns the frontmost record, or nil.
func (t *Task) Top() *ActivityRecord {
	if len(t.stack) == 0 {
		return nil
	}
	return t.stack[len(t.stack)-1]
}

// Push places rec on top of the stack.
func (t *Task) Push(rec *ActivityRecord) {
	t.stack = append(t.stack, rec)
}

// IndexOf returns the stack index of the record with id, or -1.
func (t *Task) IndexOf(id string) int {
	return slices.IndexFunc(t.stack, func(rec *ActivityRecord) bool {
		return rec.ID == id
	})
}

// Record returns the record with id, or nil.
func (t *Task) Record(id string) *ActivityRecord {
	idx := t.IndexOf(id)
	if idx < 0 {
		return nil
	}
	return t.stack[idx]
}

// Remove takes the record with id out of the stack, keeping the order of the rest.
func (t *Task) Remove(id string) (*ActivityRecord, bool) {
	idx := t.IndexOf(id)
	if idx < 0 {
		return nil, false
	}
	rec := t.stack[idx]
	t.stack = slices.Delete(t.stack, idx, idx+1)
	return rec, true
}

// FindFromTop returns the nearest instance of component scanning top to bottom.
func (t *Task) FindFromTop(component ComponentID) (int, *ActivityRecord) {
	for i := len(t.stack) - 1; i >= 0; i-- {
		if t.stack[i].Component() == component {
			return i, t.stack[i]
		}
	}
	return -1, nil
}

// FindFromBottom returns the lowest instance of component.
func (t *Task) FindFromBottom(component ComponentID) (int, *ActivityRecord) {
	for i, rec := range t.stack {
		if rec.Component() == component {
			return i, rec
		}
	}
	return -1, nil
}

// Contains reports whether any record instantiates component.
func (t *Task) Contains(component ComponentID) bool {
	idx, _ := t.FindFromBottom(component)
	return idx >= 0
}

// Above returns the records strictly above index, top first.
func (t *Task) Above(index int) []*ActivityRecord {
	if index < 0 || index >= len(t.stack)-1 {
		return nil
	}
	out := slices.Clone(t.stack[index+1:])
	slices.Reverse(out)
	return out
}

// TopDown returns the stack top first.
func (t *Task) TopDown() []*ActivityRecord {
	out := slices.Clone(t.stack)
	slices.Reverse(out)
	return out
}
