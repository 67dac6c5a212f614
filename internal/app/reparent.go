package app

import "github.com/hylla/activitytask/internal/domain"

// ReparentMove describes one record migrated by a reparenting pass.
type ReparentMove struct {
	ActivityID string
	Component  domain.ComponentID
	FromTaskID int
	ToTaskID   int
}

// reparentCandidates lists eligible records in registry order, bottom-to-top within each task.
func reparentCandidates(tasks *TaskRegistry) []*domain.ActivityRecord {
	var out []*domain.ActivityRecord
	for _, task := range tasks.AllTasks() {
		for _, rec := range task.Activities() {
			if rec.Descriptor.AllowTaskReparenting && rec.Descriptor.HomeAffinity() != task.Affinity {
				out = append(out, rec)
			}
		}
	}
	return out
}

// reparent moves every eligible record to the task of its declared affinity in one pass.
// When refocus is set the previously focused task, or the front task if it was
// destroyed, regains focus.
func (e *engine) reparent(refocus bool) []ReparentMove {
	focused := e.tasks.Focused()
	candidates := reparentCandidates(e.tasks)
	if len(candidates) == 0 {
		return nil
	}

	moves := make([]ReparentMove, 0, len(candidates))
	for _, rec := range candidates {
		from, _ := e.tasks.Locate(rec.ID)
		if from == nil {
			violation("reparent candidate %s has no task", rec.ID)
		}
		from.Remove(rec.ID)
		dest := e.tasks.FindTaskByAffinity(rec.Descriptor.HomeAffinity())
		if dest == nil {
			dest = e.createTask(rec.Descriptor.HomeAffinity(), domain.FlagNone)
		}
		dest.Push(rec)
		e.emit(domain.EventReparented, dest, rec, domain.FlagNone)
		moves = append(moves, ReparentMove{
			ActivityID: rec.ID,
			Component:  rec.Component(),
			FromTaskID: from.ID,
			ToTaskID:   dest.ID,
		})
	}
	e.sweepEmptyTasks(domain.FlagNone)

	if !refocus {
		return moves
	}
	if focused == nil || e.tasks.Task(focused.ID) == nil {
		focused = e.tasks.Focused()
	}
	e.settleFocus(focused, domain.FlagNone)
	return moves
}
