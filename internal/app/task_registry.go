package app

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/hylla/activitytask/internal/domain"
)

// TaskRegistry owns every live task, ordered most-recently-focused first.
type TaskRegistry struct {
	tasks      []*domain.Task
	nextTaskID int
}

// NewTaskRegistry constructs an empty registry.
func NewTaskRegistry() *TaskRegistry {
	return &TaskRegistry{nextTaskID: 1}
}

// FindTaskByAffinity returns the task holding affinity, or nil.
func (r *TaskRegistry) FindTaskByAffinity(affinity string) *domain.Task {
	for _, task := range r.tasks {
		if task.Affinity == affinity {
			return task
		}
	}
	return nil
}

// Task returns the task with id, or nil.
func (r *TaskRegistry) Task(id int) *domain.Task {
	for _, task := range r.tasks {
		if task.ID == id {
			return task
		}
	}
	return nil
}

// CreateTask registers an empty task at the back of the recency order.
func (r *TaskRegistry) CreateTask(affinity string, now time.Time) (*domain.Task, error) {
	if existing := r.FindTaskByAffinity(affinity); existing != nil {
		return nil, fmt.Errorf("%w: affinity %q already owned by task %d", domain.ErrInvariantViolation, affinity, existing.ID)
	}
	task, err := domain.NewTask(r.nextTaskID, affinity, now)
	if err != nil {
		return nil, err
	}
	r.nextTaskID++
	r.tasks = append(r.tasks, task)
	return task, nil
}

// DestroyTaskIfEmpty unregisters task when its stack is empty.
func (r *TaskRegistry) DestroyTaskIfEmpty(task *domain.Task) bool {
	if task == nil || !task.IsEmpty() {
		return false
	}
	idx := slices.Index(r.tasks, task)
	if idx < 0 {
		return false
	}
	r.tasks = slices.Delete(r.tasks, idx, idx+1)
	return true
}

// MoveToFront makes task the focused task. It reports whether the order changed.
func (r *TaskRegistry) MoveToFront(task *domain.Task) bool {
	idx := slices.Index(r.tasks, task)
	if idx <= 0 {
		return false
	}
	r.tasks = slices.Delete(r.tasks, idx, idx+1)
	r.tasks = slices.Insert(r.tasks, 0, task)
	return true
}

// Focused returns the front task, or nil.
func (r *TaskRegistry) Focused() *domain.Task {
	if len(r.tasks) == 0 {
		return nil
	}
	return r.tasks[0]
}

// AllTasks returns every task, most-recently-focused first.
func (r *TaskRegistry) AllTasks() []*domain.Task {
	return slices.Clone(r.tasks)
}

// Len returns the number of live tasks.
func (r *TaskRegistry) Len() int {
	return len(r.tasks)
}

// TotalActivityCount sums the stack depth of every task.
func (r *TaskRegistry) TotalActivityCount() int {
	total := 0
	for _, task := range r.tasks {
		total += task.Len()
	}
	return total
}

// Locate returns the task owning the record with id.
func (r *TaskRegistry) Locate(id string) (*domain.Task, *domain.ActivityRecord) {
	for _, task := range r.tasks {
		if rec := task.Record(id); rec != nil {
			return task, rec
		}
	}
	return nil, nil
}

// Resumed returns the resumed record and its task, if any.
func (r *TaskRegistry) Resumed() (*domain.Task, *domain.ActivityRecord) {
	for _, task := range r.tasks {
		for _, rec := range task.Activities() {
			if rec.State == domain.StateResumed {
				return task, rec
			}
		}
	}
	return nil, nil
}

// Validate reports every broken structural invariant of a settled registry.
func (r *TaskRegistry) Validate() error {
	var errs []error
	affinities := make(map[string]int, len(r.tasks))
	resumed := 0
	for _, task := range r.tasks {
		if other, ok := affinities[task.Affinity]; ok {
			errs = append(errs, fmt.Errorf("tasks %d and %d share affinity %q", other, task.ID, task.Affinity))
		}
		affinities[task.Affinity] = task.ID
		if task.IsEmpty() {
			errs = append(errs, fmt.Errorf("task %d is registered but empty", task.ID))
			continue
		}
		if task.IsSingleInstance() {
			root := task.Root()
			if task.Len() != 1 || root.Descriptor.HomeAffinity() != task.Affinity {
				errs = append(errs, fmt.Errorf("single-instance task %d holds foreign records", task.ID))
			}
		}
		for _, rec := range task.Activities() {
			switch rec.State {
			case domain.StateResumed:
				resumed++
			case domain.StateDestroyed, domain.StateCreated:
				errs = append(errs, fmt.Errorf("record %s in task %d is %s", rec.ID, task.ID, rec.State))
			}
		}
	}
	if resumed > 1 {
		errs = append(errs, fmt.Errorf("%d records are resumed", resumed))
	}
	if focused := r.Focused(); focused != nil && !focused.IsEmpty() && focused.Top().State != domain.StateResumed {
		errs = append(errs, fmt.Errorf("top %s of focused task %d is %s", focused.Top().ID, focused.ID, focused.Top().State))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", domain.ErrInvariantViolation, errors.Join(errs...))
}
