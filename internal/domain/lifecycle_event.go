package domain

import "time"

// LifecycleEventKind identifies one observable engine notification.
type LifecycleEventKind string

// LifecycleEventKind values.
const (
	EventCreated       LifecycleEventKind = "created"
	EventResumed       LifecycleEventKind = "resumed"
	EventPaused        LifecycleEventKind = "paused"
	EventStopped       LifecycleEventKind = "stopped"
	EventDestroyed     LifecycleEventKind = "destroyed"
	EventNewIntent     LifecycleEventKind = "new_intent"
	EventTaskCreated   LifecycleEventKind = "task_created"
	EventTaskDestroyed LifecycleEventKind = "task_destroyed"
	EventTaskFocused   LifecycleEventKind = "task_focused"
	EventReparented    LifecycleEventKind = "reparented"
)

// LifecycleEvent records one state change or notification, in commit order.
type LifecycleEvent struct {
	Seq        int64
	Kind       LifecycleEventKind
	ActivityID string
	Component  ComponentID
	TaskID     int
	Affinity   string
	Flags      IntentFlags
	At         time.Time
}

// EventKindForState maps a lifecycle state to the event fired on entering it.
func EventKindForState(state LifecycleState) LifecycleEventKind {
	return LifecycleEventKind(state)
}
