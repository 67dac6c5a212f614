package common

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hylla/activitytask/internal/app"
	"github.com/hylla/activitytask/internal/domain"
)

// defaultWaitTimeout bounds activity-count waits that do not name a timeout.
const defaultWaitTimeout = 5 * time.Second

// AppServiceAdapter maps transport contracts onto app.Service launch and query APIs.
type AppServiceAdapter struct {
	service      *app.Service
	pollInterval time.Duration
	waitTimeout  time.Duration
}

var _ EngineService = (*AppServiceAdapter)(nil)

// AdapterOption customizes adapter wait behavior.
type AdapterOption func(*AppServiceAdapter)

// WithPollInterval sets the activity-count polling cadence.
func WithPollInterval(d time.Duration) AdapterOption {
	return func(a *AppServiceAdapter) {
		if d > 0 {
			a.pollInterval = d
		}
	}
}

// WithWaitTimeout sets the default bound for activity-count waits.
func WithWaitTimeout(d time.Duration) AdapterOption {
	return func(a *AppServiceAdapter) {
		if d > 0 {
			a.waitTimeout = d
		}
	}
}

// NewAppServiceAdapter builds one common adapter over an app.Service instance.
func NewAppServiceAdapter(service *app.Service, opts ...AdapterOption) *AppServiceAdapter {
	a := &AppServiceAdapter{
		service:      service,
		pollInterval: app.DefaultPollInterval,
		waitTimeout:  defaultWaitTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Launch resolves and applies one launch request.
func (a *AppServiceAdapter) Launch(ctx context.Context, in LaunchRequest) (LaunchResponse, error) {
	if err := a.ready(); err != nil {
		return LaunchResponse{}, err
	}
	req, err := normalizeLaunchRequest(in)
	if err != nil {
		return LaunchResponse{}, err
	}
	result, err := a.service.Launch(ctx, req)
	if err != nil {
		return LaunchResponse{}, mapAppError("launch", err)
	}
	return a.launchResponse(result), nil
}

// FinishTop destroys the frontmost record of the focused task.
func (a *AppServiceAdapter) FinishTop(ctx context.Context) (FinishTopResponse, error) {
	if err := a.ready(); err != nil {
		return FinishTopResponse{}, err
	}
	finished, err := a.service.FinishTopOfFocusedTask(ctx)
	if err != nil {
		return FinishTopResponse{}, mapAppError("finish top", err)
	}
	return FinishTopResponse{Finished: finished, Tasks: a.service.AllTasks()}, nil
}

// Reparent runs one reparenting pass.
func (a *AppServiceAdapter) Reparent(ctx context.Context) (ReparentResponse, error) {
	if err := a.ready(); err != nil {
		return ReparentResponse{}, err
	}
	moves := a.service.TriggerReparentingPass(ctx)
	out := ReparentResponse{
		Moves: make([]ReparentMove, 0, len(moves)),
		Tasks: a.service.AllTasks(),
	}
	for _, move := range moves {
		out.Moves = append(out.Moves, ReparentMove{
			ActivityID: move.ActivityID,
			Component:  string(move.Component),
			FromTaskID: move.FromTaskID,
			ToTaskID:   move.ToTaskID,
		})
	}
	return out, nil
}

// RelaunchFromHome reparents and then launches without a caller task.
func (a *AppServiceAdapter) RelaunchFromHome(ctx context.Context, in RelaunchRequest) (LaunchResponse, error) {
	if err := a.ready(); err != nil {
		return LaunchResponse{}, err
	}
	req, err := normalizeLaunchRequest(LaunchRequest{Component: in.Component, Flags: in.Flags})
	if err != nil {
		return LaunchResponse{}, err
	}
	result, err := a.service.RelaunchFromHome(ctx, req)
	if err != nil {
		return LaunchResponse{}, mapAppError("relaunch from home", err)
	}
	return a.launchResponse(result), nil
}

// Reset finishes every record and destroys every task.
func (a *AppServiceAdapter) Reset(ctx context.Context) (ResetResponse, error) {
	if err := a.ready(); err != nil {
		return ResetResponse{}, err
	}
	return ResetResponse{Finished: a.service.Reset(ctx)}, nil
}

// Tasks lists every task, most-recently-focused first.
func (a *AppServiceAdapter) Tasks(_ context.Context) (TasksResponse, error) {
	if err := a.ready(); err != nil {
		return TasksResponse{}, err
	}
	return TasksResponse{Tasks: a.service.AllTasks()}, nil
}

// FocusedTask returns the front task.
func (a *AppServiceAdapter) FocusedTask(_ context.Context) (app.TaskView, error) {
	if err := a.ready(); err != nil {
		return app.TaskView{}, err
	}
	task, ok := a.service.FocusedTask()
	if !ok {
		return app.TaskView{}, fmt.Errorf("focused task: %w", errors.Join(ErrNotFound, app.ErrNoFocusedTask))
	}
	return task, nil
}

// ActivityCount returns the live record count, optionally waiting for a target count.
func (a *AppServiceAdapter) ActivityCount(ctx context.Context, in ActivityCountRequest) (ActivityCount, error) {
	if err := a.ready(); err != nil {
		return ActivityCount{}, err
	}
	if in.WaitFor == nil {
		return ActivityCount{Count: a.service.TotalActivityCount()}, nil
	}
	if *in.WaitFor < 0 {
		return ActivityCount{}, fmt.Errorf("wait_for must be >= 0: %w", ErrInvalidRequest)
	}
	timeout := in.Timeout
	if timeout <= 0 {
		timeout = a.waitTimeout
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	count, err := app.WaitForActivityCount(waitCtx, a.service, *in.WaitFor, a.pollInterval)
	if err != nil {
		return ActivityCount{Count: count}, mapAppError("wait for activity count", err)
	}
	return ActivityCount{Count: count}, nil
}

// Journal lists the latest journaled lifecycle events.
func (a *AppServiceAdapter) Journal(ctx context.Context, limit int) ([]LifecycleEvent, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	if limit < 0 {
		return nil, fmt.Errorf("limit must be >= 0: %w", ErrInvalidRequest)
	}
	events, err := a.service.JournalEvents(ctx, limit)
	if err != nil {
		return nil, mapAppError("list journal", err)
	}
	out := make([]LifecycleEvent, 0, len(events))
	for _, ev := range events {
		out = append(out, FromDomainEvent(ev))
	}
	return out, nil
}

// Subscribe streams committed lifecycle events.
func (a *AppServiceAdapter) Subscribe() (<-chan domain.LifecycleEvent, func()) {
	return a.service.Subscribe()
}

// ready reports whether the adapter has a backing service.
func (a *AppServiceAdapter) ready() error {
	if a == nil || a.service == nil {
		return fmt.Errorf("app service adapter is not configured: %w", ErrUnavailable)
	}
	return nil
}

// launchResponse maps one launch result and attaches the settled topology.
func (a *AppServiceAdapter) launchResponse(result app.LaunchResult) LaunchResponse {
	return LaunchResponse{
		Outcome:    string(result.Outcome),
		ActivityID: result.ActivityID,
		Component:  string(result.Component),
		TaskID:     result.TaskID,
		Finished:   result.Finished,
		Reparented: result.Reparented,
		Tasks:      a.service.AllTasks(),
	}
}

// normalizeLaunchRequest trims and parses transport launch input.
func normalizeLaunchRequest(in LaunchRequest) (app.LaunchRequest, error) {
	component := strings.TrimSpace(in.Component)
	if component == "" {
		return app.LaunchRequest{}, fmt.Errorf("component is required: %w", ErrInvalidRequest)
	}
	if in.CallerTaskID < 0 {
		return app.LaunchRequest{}, fmt.Errorf("caller_task_id must be >= 0: %w", ErrInvalidRequest)
	}
	flags, err := domain.ParseIntentFlagList(in.Flags)
	if err != nil {
		return app.LaunchRequest{}, fmt.Errorf("flags: %w", errors.Join(ErrInvalidRequest, err))
	}
	return app.LaunchRequest{
		Component:    domain.ComponentID(component),
		Flags:        flags,
		CallerTaskID: in.CallerTaskID,
		FromFocused:  in.FromFocused,
	}, nil
}

// mapAppError maps app/domain errors into transport-layer error sentinels.
func mapAppError(operation string, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, domain.ErrUnknownComponent),
		errors.Is(err, app.ErrUnknownTask):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrNotFound, err))
	case errors.Is(err, app.ErrNoFocusedTask):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrConflict, err))
	case errors.Is(err, app.ErrInvalidLaunchTarget),
		errors.Is(err, domain.ErrInvalidComponent),
		errors.Is(err, domain.ErrInvalidIntentFlag):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrInvalidRequest, err))
	case errors.Is(err, app.ErrJournalUnavailable):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrUnavailable, err))
	case errors.Is(err, app.ErrTimeout):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrTimeout, err))
	default:
		return fmt.Errorf("%s: %w", operation, err)
	}
}
