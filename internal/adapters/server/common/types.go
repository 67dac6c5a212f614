// Package common provides transport-agnostic server contracts used by HTTP and MCP adapters.
package common

import (
	"context"
	"errors"
	"time"

	"github.com/hylla/activitytask/internal/app"
	"github.com/hylla/activitytask/internal/domain"
)

// ErrInvalidRequest reports malformed transport input.
var ErrInvalidRequest = errors.New("invalid request")

// ErrNotFound reports missing transport-visible resources.
var ErrNotFound = errors.New("not found")

// ErrConflict reports requests that the current task model cannot satisfy.
var ErrConflict = errors.New("conflict")

// ErrUnavailable reports optional backing support that is not configured.
var ErrUnavailable = errors.New("unavailable")

// ErrTimeout reports a bounded wait that expired.
var ErrTimeout = errors.New("timeout")

// LaunchRequest captures one launch as transports receive it.
type LaunchRequest struct {
	Component    string   `json:"component"`
	Flags        []string `json:"flags,omitempty"`
	CallerTaskID int      `json:"caller_task_id,omitempty"`
	FromFocused  bool     `json:"from_focused,omitempty"`
}

// RelaunchRequest captures one return-to-home-then-relaunch signal.
type RelaunchRequest struct {
	Component string   `json:"component"`
	Flags     []string `json:"flags,omitempty"`
}

// LaunchResponse reports the settled outcome of a launch with the resulting topology.
type LaunchResponse struct {
	Outcome    string         `json:"outcome"`
	ActivityID string         `json:"activity_id"`
	Component  string         `json:"component"`
	TaskID     int            `json:"task_id"`
	Finished   []string       `json:"finished,omitempty"`
	Reparented int            `json:"reparented,omitempty"`
	Tasks      []app.TaskView `json:"tasks"`
}

// FinishTopResponse reports the record removed by a back navigation.
type FinishTopResponse struct {
	Finished app.ActivityView `json:"finished"`
	Tasks    []app.TaskView   `json:"tasks"`
}

// ReparentMove is one record migrated by a reparenting pass.
type ReparentMove struct {
	ActivityID string `json:"activity_id"`
	Component  string `json:"component"`
	FromTaskID int    `json:"from_task_id"`
	ToTaskID   int    `json:"to_task_id"`
}

// ReparentResponse reports every move of one reparenting pass.
type ReparentResponse struct {
	Moves []ReparentMove `json:"moves"`
	Tasks []app.TaskView `json:"tasks"`
}

// ResetResponse reports how many records a reset finished.
type ResetResponse struct {
	Finished int `json:"finished"`
}

// ActivityCountRequest optionally waits for a settled record count.
type ActivityCountRequest struct {
	WaitFor *int
	Timeout time.Duration
}

// ActivityCount reports the number of live activity records.
type ActivityCount struct {
	Count int `json:"count"`
}

// TasksResponse lists tasks most-recently-focused first.
type TasksResponse struct {
	Tasks []app.TaskView `json:"tasks"`
}

// LifecycleEvent is the wire shape of one lifecycle event.
type LifecycleEvent struct {
	Seq        int64     `json:"seq"`
	Kind       string    `json:"kind"`
	ActivityID string    `json:"activity_id,omitempty"`
	Component  string    `json:"component,omitempty"`
	TaskID     int       `json:"task_id,omitempty"`
	Affinity   string    `json:"task_affinity,omitempty"`
	Flags      []string  `json:"flags,omitempty"`
	At         time.Time `json:"at"`
}

// FromDomainEvent maps one domain lifecycle event into its wire shape.
func FromDomainEvent(ev domain.LifecycleEvent) LifecycleEvent {
	return LifecycleEvent{
		Seq:        ev.Seq,
		Kind:       string(ev.Kind),
		ActivityID: ev.ActivityID,
		Component:  string(ev.Component),
		TaskID:     ev.TaskID,
		Affinity:   ev.Affinity,
		Flags:      ev.Flags.Names(),
		At:         ev.At,
	}
}

// TaskReader exposes read-only task topology.
type TaskReader interface {
	Tasks(context.Context) (TasksResponse, error)
	FocusedTask(context.Context) (app.TaskView, error)
	ActivityCount(context.Context, ActivityCountRequest) (ActivityCount, error)
}

// LaunchService exposes the engine mutation surface.
type LaunchService interface {
	Launch(context.Context, LaunchRequest) (LaunchResponse, error)
	FinishTop(context.Context) (FinishTopResponse, error)
	Reparent(context.Context) (ReparentResponse, error)
	RelaunchFromHome(context.Context, RelaunchRequest) (LaunchResponse, error)
	Reset(context.Context) (ResetResponse, error)
}

// EventSource exposes the lifecycle journal and the live event stream.
type EventSource interface {
	Journal(context.Context, int) ([]LifecycleEvent, error)
	Subscribe() (<-chan domain.LifecycleEvent, func())
}

// EngineService combines every surface served by the transports.
type EngineService interface {
	TaskReader
	LaunchService
	EventSource
}
