package app

import "github.com/hylla/activitytask/internal/domain"

// ActivityView is a read-only snapshot of one record.
type ActivityView struct {
	ID         string                `json:"id"`
	Component  domain.ComponentID    `json:"component"`
	Label      string                `json:"label"`
	LaunchMode domain.LaunchMode     `json:"launch_mode"`
	State      domain.LifecycleState `json:"state"`
}

// TaskView is a read-only snapshot of one task, stack bottom-to-top.
type TaskView struct {
	ID         int            `json:"task_id"`
	Affinity   string         `json:"task_affinity"`
	Focused    bool           `json:"focused"`
	Activities []ActivityView `json:"activity_stack"`
}

// Components returns the stack as component ids, bottom-to-top.
func (v TaskView) Components() []domain.ComponentID {
	out := make([]domain.ComponentID, 0, len(v.Activities))
	for _, a := range v.Activities {
		out = append(out, a.Component)
	}
	return out
}

// Top returns the frontmost activity view.
func (v TaskView) Top() (ActivityView, bool) {
	if len(v.Activities) == 0 {
		return ActivityView{}, false
	}
	return v.Activities[len(v.Activities)-1], true
}

func activityView(rec *domain.ActivityRecord) ActivityView {
	return ActivityView{
		ID:         rec.ID,
		Component:  rec.Component(),
		Label:      rec.Descriptor.Label,
		LaunchMode: rec.Descriptor.LaunchMode,
		State:      rec.State,
	}
}

func taskView(task *domain.Task, focused bool) TaskView {
	stack := task.Activities()
	view := TaskView{
		ID:         task.ID,
		Affinity:   task.Affinity,
		Focused:    focused,
		Activities: make([]ActivityView, 0, len(stack)),
	}
	for _, rec := range stack {
		view.Activities = append(view.Activities, activityView(rec))
	}
	return view
}
