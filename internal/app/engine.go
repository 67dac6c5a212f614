package app

import (
	"fmt"

	"github.com/hylla/activitytask/internal/domain"
)

// engine applies plans to the task model and records lifecycle events.
// It is not safe for concurrent use; Service serializes access.
type engine struct {
	descriptors *DescriptorRegistry
	tasks       *TaskRegistry
	idGen       IDGenerator
	clock       Clock
	seq         int64
	pending     []domain.LifecycleEvent
}

func newEngine(descriptors *DescriptorRegistry, idGen IDGenerator, clock Clock) *engine {
	return &engine{
		descriptors: descriptors,
		tasks:       NewTaskRegistry(),
		idGen:       idGen,
		clock:       clock,
	}
}

// drain returns and clears the events recorded since the last drain.
func (e *engine) drain() []domain.LifecycleEvent {
	out := e.pending
	e.pending = nil
	return out
}

// violation aborts the current mutation. A failure here means a plan was applied
// against a model it was not computed from.
func violation(format string, args ...any) {
	panic(fmt.Errorf("%w: %s", domain.ErrInvariantViolation, fmt.Sprintf(format, args...)))
}

func (e *engine) emit(kind domain.LifecycleEventKind, task *domain.Task, rec *domain.ActivityRecord, flags domain.IntentFlags) {
	e.seq++
	ev := domain.LifecycleEvent{
		Seq:   e.seq,
		Kind:  kind,
		Flags: flags,
		At:    e.clock().UTC(),
	}
	if task != nil {
		ev.TaskID = task.ID
		ev.Affinity = task.Affinity
	}
	if rec != nil {
		ev.ActivityID = rec.ID
		ev.Component = rec.Component()
	}
	e.pending = append(e.pending, ev)
}

func (e *engine) transition(task *domain.Task, rec *domain.ActivityRecord, next domain.LifecycleState, flags domain.IntentFlags) {
	if err := rec.Transition(next); err != nil {
		violation("record %s: %v", rec.ID, err)
	}
	e.emit(domain.EventKindForState(next), task, rec, flags)
}

func (e *engine) createTask(affinity string, flags domain.IntentFlags) *domain.Task {
	task, err := e.tasks.CreateTask(affinity, e.clock())
	if err != nil {
		violation("create task: %v", err)
	}
	e.emit(domain.EventTaskCreated, task, nil, flags)
	return task
}

func (e *engine) destroyTaskIfEmpty(task *domain.Task, flags domain.IntentFlags) {
	if e.tasks.DestroyTaskIfEmpty(task) {
		e.emit(domain.EventTaskDestroyed, task, nil, flags)
	}
}

// sweepEmptyTasks destroys every registered task left without records.
func (e *engine) sweepEmptyTasks(flags domain.IntentFlags) {
	for _, task := range e.tasks.AllTasks() {
		e.destroyTaskIfEmpty(task, flags)
	}
}

func (e *engine) createRecord(task *domain.Task, desc domain.ActivityDescriptor, flags domain.IntentFlags) *domain.ActivityRecord {
	rec, err := domain.NewActivityRecord(e.idGen(), desc, e.clock())
	if err != nil {
		violation("create record for %s: %v", desc.Component, err)
	}
	task.Push(rec)
	e.emit(domain.EventCreated, task, rec, flags)
	return rec
}

// destroyRecord finishes rec and removes it from task. A resumed record pauses first.
func (e *engine) destroyRecord(task *domain.Task, rec *domain.ActivityRecord, flags domain.IntentFlags) {
	if rec.State == domain.StateResumed {
		e.transition(task, rec, domain.StatePaused, flags)
	}
	if _, ok := task.Remove(rec.ID); !ok {
		violation("record %s not in task %d", rec.ID, task.ID)
	}
	e.transition(task, rec, domain.StateDestroyed, flags)
}

// settleFocus moves target to the front and hands the resumed state to its top.
func (e *engine) settleFocus(target *domain.Task, flags domain.IntentFlags) {
	if target == nil || target.IsEmpty() {
		return
	}
	if e.tasks.MoveToFront(target) {
		e.emit(domain.EventTaskFocused, target, nil, flags)
	}
	prevTask, prev := e.tasks.Resumed()
	next := target.Top()
	if prev == next {
		return
	}
	if prev != nil {
		e.transition(prevTask, prev, domain.StatePaused, flags)
	}
	e.transition(target, next, domain.StateResumed, flags)
	if prev != nil {
		e.transition(prevTask, prev, domain.StateStopped, flags)
	}
}

// apply commits plan. The plan must have been resolved against the current model.
func (e *engine) apply(plan Plan) LaunchResult {
	flags := plan.Request.Flags
	var target *domain.Task
	if plan.Target.New {
		target = e.createTask(plan.Target.Affinity, flags)
	} else {
		target = e.tasks.Task(plan.Target.TaskID)
		if target == nil {
			violation("plan targets missing task %d", plan.Target.TaskID)
		}
	}

	result := LaunchResult{
		Outcome:   plan.Outcome,
		Component: plan.Descriptor.Component,
		TaskID:    target.ID,
	}
	var finishers []string
	for _, m := range plan.Mutations {
		switch m.Kind {
		case MutationClearAll:
			for _, rec := range target.TopDown() {
				e.destroyRecord(target, rec, flags)
			}
		case MutationClearAbove:
			idx := target.IndexOf(m.ActivityID)
			if idx < 0 {
				violation("clear anchor %s not in task %d", m.ActivityID, target.ID)
			}
			for _, rec := range target.Above(idx) {
				e.destroyRecord(target, rec, flags)
			}
		case MutationRecreate:
			rec := target.Record(m.ActivityID)
			if rec == nil {
				violation("recreate subject %s not in task %d", m.ActivityID, target.ID)
			}
			e.destroyRecord(target, rec, flags)
			result.ActivityID = e.createRecord(target, plan.Descriptor, flags).ID
		case MutationCreate:
			result.ActivityID = e.createRecord(target, plan.Descriptor, flags).ID
		case MutationReuse:
			rec := target.Record(m.ActivityID)
			if rec == nil {
				violation("reuse subject %s not in task %d", m.ActivityID, target.ID)
			}
			result.ActivityID = rec.ID
			e.emit(domain.EventNewIntent, target, rec, flags)
		case MutationFinishSelf:
			finishers = append(finishers, m.ActivityID)
		}
	}
	if result.ActivityID == "" {
		result.ActivityID = target.Top().ID
	}

	e.settleFocus(target, flags)

	for _, id := range finishers {
		task, rec := e.tasks.Locate(id)
		if rec == nil {
			continue
		}
		e.destroyRecord(task, rec, flags)
		result.Finished = append(result.Finished, id)
	}
	e.sweepEmptyTasks(flags)
	return result
}

// finishTop destroys the top of the focused task and refocuses.
func (e *engine) finishTop() (*domain.ActivityRecord, error) {
	task := e.tasks.Focused()
	if task == nil {
		return nil, ErrNoFocusedTask
	}
	rec := task.Top()
	if rec.State == domain.StateResumed {
		e.transition(task, rec, domain.StatePaused, domain.FlagNone)
	}
	task.Remove(rec.ID)
	e.destroyTaskIfEmpty(task, domain.FlagNone)
	if next := e.tasks.Focused(); next != nil {
		if next != task {
			e.emit(domain.EventTaskFocused, next, nil, domain.FlagNone)
		}
		e.settleFocus(next, domain.FlagNone)
	}
	e.transition(task, rec, domain.StateDestroyed, domain.FlagNone)
	return rec, nil
}

// reset finishes every record and destroys every task.
func (e *engine) reset() int {
	finished := 0
	for _, task := range e.tasks.AllTasks() {
		for _, rec := range task.TopDown() {
			e.destroyRecord(task, rec, domain.FlagNone)
			finished++
		}
		e.destroyTaskIfEmpty(task, domain.FlagNone)
	}
	return finished
}
