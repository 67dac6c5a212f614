package scenario

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/hylla/activitytask/internal/app"
	"github.com/hylla/activitytask/internal/domain"
)

// Engine is the service surface a scenario drives.
type Engine interface {
	app.ActivityCounter
	Launch(context.Context, app.LaunchRequest) (app.LaunchResult, error)
	FinishTopOfFocusedTask(context.Context) (app.ActivityView, error)
	TriggerReparentingPass(context.Context) []app.ReparentMove
	RelaunchFromHome(context.Context, app.LaunchRequest) (app.LaunchResult, error)
	Reset(context.Context) int
	AllTasks() []app.TaskView
}

var _ Engine = (*app.Service)(nil)

// RunnerConfig bounds the settled-state waits of expect steps.
type RunnerConfig struct {
	PollInterval time.Duration
	WaitTimeout  time.Duration
	Logger       app.Logger
}

// StepResult records what one step did.
type StepResult struct {
	Index  int
	Action Action
	Detail string
}

// Report summarizes one completed run.
type Report struct {
	Name  string
	Steps []StepResult
	Tasks []app.TaskView
}

// Runner executes scenarios against one engine.
type Runner struct {
	engine Engine
	cfg    RunnerConfig
}

// runState carries per-run bookkeeping between steps.
type runState struct {
	labels     map[string]string
	last       app.LaunchResult
	launched   bool
	reparented int
}

// NewRunner constructs a runner.
func NewRunner(engine Engine, cfg RunnerConfig) *Runner {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = app.DefaultPollInterval
	}
	if cfg.WaitTimeout <= 0 {
		cfg.WaitTimeout = 5 * time.Second
	}
	return &Runner{engine: engine, cfg: cfg}
}

// Run executes every step in order and stops at the first failure.
func (r *Runner) Run(ctx context.Context, sc Scenario) (Report, error) {
	if err := sc.Validate(); err != nil {
		return Report{}, err
	}
	report := Report{Name: sc.Name, Steps: make([]StepResult, 0, len(sc.Steps))}
	state := &runState{labels: map[string]string{}}
	for idx, step := range sc.Steps {
		detail, err := r.runStep(ctx, state, step)
		if err != nil {
			report.Tasks = r.engine.AllTasks()
			return report, fmt.Errorf("scenario %q steps[%d] %s: %w", sc.Name, idx, step.Action, err)
		}
		report.Steps = append(report.Steps, StepResult{Index: idx, Action: step.Action, Detail: detail})
		if r.cfg.Logger != nil {
			r.cfg.Logger.Debug("scenario step", "scenario", sc.Name, "index", idx, "action", step.Action, "detail", detail)
		}
	}
	report.Tasks = r.engine.AllTasks()
	return report, nil
}

func (r *Runner) runStep(ctx context.Context, state *runState, step Step) (string, error) {
	switch step.Action {
	case ActionLaunch:
		req, err := r.launchRequest(step)
		if err != nil {
			return "", err
		}
		res, err := r.engine.Launch(ctx, req)
		if err != nil {
			return "", err
		}
		state.record(step.Label, res)
		return fmt.Sprintf("%s %s %s in task %d", res.Component, res.Outcome, res.ActivityID, res.TaskID), nil
	case ActionRelaunchFromHome:
		flags, err := domain.ParseIntentFlagList(step.Flags)
		if err != nil {
			return "", err
		}
		res, err := r.engine.RelaunchFromHome(ctx, app.LaunchRequest{Component: domain.ComponentID(step.Component), Flags: flags})
		if err != nil {
			return "", err
		}
		state.record(step.Label, res)
		state.reparented = res.Reparented
		return fmt.Sprintf("%s %s after %d reparented", res.Component, res.Outcome, res.Reparented), nil
	case ActionBack:
		finished, err := r.engine.FinishTopOfFocusedTask(ctx)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("finished %s %s", finished.Component, finished.ID), nil
	case ActionReparent:
		moves := r.engine.TriggerReparentingPass(ctx)
		state.reparented = len(moves)
		return fmt.Sprintf("moved %d", len(moves)), nil
	case ActionReset:
		finished := r.engine.Reset(ctx)
		*state = runState{labels: map[string]string{}}
		return fmt.Sprintf("finished %d", finished), nil
	case ActionExpect:
		return "ok", r.expect(ctx, state, step)
	default:
		return "", fmt.Errorf("unknown action %q: %w", step.Action, ErrInvalidScenario)
	}
}

// launchRequest resolves the caller field into a launch request.
func (r *Runner) launchRequest(step Step) (app.LaunchRequest, error) {
	flags, err := domain.ParseIntentFlagList(step.Flags)
	if err != nil {
		return app.LaunchRequest{}, err
	}
	req := app.LaunchRequest{Component: domain.ComponentID(step.Component), Flags: flags}
	caller := strings.TrimSpace(step.Caller)
	switch caller {
	case "", CallerFocused:
		req.FromFocused = true
	case CallerNone:
	default:
		for _, task := range r.engine.AllTasks() {
			if task.Affinity == caller {
				req.CallerTaskID = task.ID
				return req, nil
			}
		}
		return app.LaunchRequest{}, fmt.Errorf("no task with affinity %q: %w", caller, app.ErrUnknownTask)
	}
	return req, nil
}

func (s *runState) record(label string, res app.LaunchResult) {
	s.last = res
	s.launched = true
	if label != "" {
		s.labels[label] = res.ActivityID
	}
}

// expect checks one expectation step against the settled model.
func (r *Runner) expect(ctx context.Context, state *runState, step Step) error {
	if step.ActivityCount != nil {
		waitCtx, cancel := context.WithTimeout(ctx, r.cfg.WaitTimeout)
		got, err := app.WaitForActivityCount(waitCtx, r.engine, *step.ActivityCount, r.cfg.PollInterval)
		cancel()
		if err != nil {
			return fmt.Errorf("activity_count = %d, want %d: %w", got, *step.ActivityCount, errors.Join(ErrExpectationFailed, err))
		}
	}

	tasks := r.engine.AllTasks()
	if step.TaskCount != nil && len(tasks) != *step.TaskCount {
		return failf("task_count = %d, want %d", len(tasks), *step.TaskCount)
	}
	if step.FocusedStack != nil {
		var got []string
		if len(tasks) > 0 {
			got = componentNames(tasks[0])
		}
		if !slices.Equal(got, step.FocusedStack) {
			return failf("focused_stack = %v, want %v", got, step.FocusedStack)
		}
	}
	if len(step.Tasks) > 0 {
		if len(tasks) != len(step.Tasks) {
			return failf("tasks = %s, want %d tasks", describeTasks(tasks), len(step.Tasks))
		}
		for i, want := range step.Tasks {
			got := tasks[i]
			if want.Affinity != "" && got.Affinity != want.Affinity {
				return failf("tasks[%d].affinity = %q, want %q", i, got.Affinity, want.Affinity)
			}
			if names := componentNames(got); !slices.Equal(names, want.Stack) {
				return failf("tasks[%d].stack = %v, want %v", i, names, want.Stack)
			}
		}
	}

	if step.Outcome != "" || step.SameAs != "" || step.DifferentFrom != "" || step.Finished != nil {
		if !state.launched {
			return failf("no launch to check")
		}
	}
	if step.Outcome != "" && string(state.last.Outcome) != step.Outcome {
		return failf("outcome = %s, want %s", state.last.Outcome, step.Outcome)
	}
	if step.SameAs != "" && state.last.ActivityID != state.labels[step.SameAs] {
		return failf("activity %s is not %s (%s)", state.last.ActivityID, step.SameAs, state.labels[step.SameAs])
	}
	if step.DifferentFrom != "" && state.last.ActivityID == state.labels[step.DifferentFrom] {
		return failf("activity %s kept the identity of %s", state.last.ActivityID, step.DifferentFrom)
	}
	if step.Finished != nil && len(state.last.Finished) != *step.Finished {
		return failf("finished = %v, want %d records", state.last.Finished, *step.Finished)
	}
	if step.Reparented != nil && state.reparented != *step.Reparented {
		return failf("reparented = %d, want %d", state.reparented, *step.Reparented)
	}
	for _, want := range step.States {
		got := recordState(tasks, state.labels[want.Label])
		if string(got) != want.State {
			return failf("%s state = %s, want %s", want.Label, got, want.State)
		}
	}
	return nil
}

// recordState finds a record's state; records no longer in any task are destroyed.
func recordState(tasks []app.TaskView, id string) domain.LifecycleState {
	for _, task := range tasks {
		for _, rec := range task.Activities {
			if rec.ID == id {
				return rec.State
			}
		}
	}
	return domain.StateDestroyed
}

func componentNames(task app.TaskView) []string {
	out := make([]string, 0, len(task.Activities))
	for _, c := range task.Components() {
		out = append(out, string(c))
	}
	return out
}

func describeTasks(tasks []app.TaskView) string {
	parts := make([]string, 0, len(tasks))
	for _, task := range tasks {
		parts = append(parts, fmt.Sprintf("%s%v", task.Affinity, componentNames(task)))
	}
	return strings.Join(parts, " ")
}

func failf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrExpectationFailed, fmt.Sprintf(format, args...))
}
