package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/hylla/activitytask/internal/domain"
)

const (
	defaultAffinity = "me.ycdev.android.demo.activitytask"
	task2Affinity   = "me.ycdev.task2"
)

func demoDescriptors(t *testing.T) *DescriptorRegistry {
	t.Helper()
	inputs := []domain.DescriptorInput{
		{Component: "Main", TaskAffinity: defaultAffinity},
		{Component: "Standard1", TaskAffinity: defaultAffinity},
		{Component: "Standard2", TaskAffinity: task2Affinity},
		{Component: "Standard3", TaskAffinity: defaultAffinity},
		{Component: "SingleTop1", TaskAffinity: defaultAffinity, LaunchMode: domain.LaunchModeSingleTop},
		{Component: "SingleTop2", TaskAffinity: task2Affinity, LaunchMode: domain.LaunchModeSingleTop},
		{Component: "SingleTask1", TaskAffinity: defaultAffinity, LaunchMode: domain.LaunchModeSingleTask},
		{Component: "SingleTask2", TaskAffinity: task2Affinity, LaunchMode: domain.LaunchModeSingleTask},
		{Component: "SingleInstance1", TaskAffinity: defaultAffinity, LaunchMode: domain.LaunchModeSingleInstance},
		{Component: "SingleInstance2", TaskAffinity: task2Affinity, LaunchMode: domain.LaunchModeSingleInstance},
		{Component: "Reparenting", TaskAffinity: defaultAffinity, AllowTaskReparenting: true},
		{Component: "FinishOnLaunch", TaskAffinity: defaultAffinity, FinishOnLaunchOf: []string{"SingleTask2"}},
		{Component: "ClearOnLaunch", TaskAffinity: defaultAffinity, ClearTaskOnRelaunch: true},
	}
	descs := make([]domain.ActivityDescriptor, 0, len(inputs))
	for _, in := range inputs {
		desc, err := domain.NewActivityDescriptor(in)
		if err != nil {
			t.Fatalf("NewActivityDescriptor(%s) error = %v", in.Component, err)
		}
		descs = append(descs, desc)
	}
	reg, err := NewDescriptorRegistry(descs)
	if err != nil {
		t.Fatalf("NewDescriptorRegistry() error = %v", err)
	}
	return reg
}

func sequentialIDs() IDGenerator {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("a%d", n)
	}
}

func fixedClock() Clock {
	now := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return now }
}

type recordingJournal struct {
	mu     sync.Mutex
	events []domain.LifecycleEvent
	err    error
}

func (j *recordingJournal) AppendEvents(_ context.Context, events []domain.LifecycleEvent) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.err != nil {
		return j.err
	}
	j.events = append(j.events, events...)
	return nil
}

func (j *recordingJournal) ListEvents(_ context.Context, limit int) ([]domain.LifecycleEvent, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := slices.Clone(j.events)
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

type recordingMetrics struct {
	noopMetrics
	launches        map[LaunchOutcome]int
	rejected        map[string]int
	journalFailures int
	tasks           int
	activities      int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{launches: map[LaunchOutcome]int{}, rejected: map[string]int{}}
}

func (m *recordingMetrics) ObserveLaunch(outcome LaunchOutcome, _ domain.LaunchMode, _ time.Duration) {
	m.launches[outcome]++
}

func (m *recordingMetrics) ObserveLaunchRejected(reason string) { m.rejected[reason]++ }
func (m *recordingMetrics) ObserveJournalFailure()              { m.journalFailures++ }
func (m *recordingMetrics) SetTopology(tasks, activities int) {
	m.tasks, m.activities = tasks, activities
}

type recordingLogger struct {
	noopLogger
	warnings []string
}

func (l *recordingLogger) Warn(msg string, _ ...any) { l.warnings = append(l.warnings, msg) }

func newTestService(t *testing.T) (*Service, *recordingJournal) {
	t.Helper()
	journal := &recordingJournal{}
	svc := NewService(demoDescriptors(t), sequentialIDs(), fixedClock(), ServiceConfig{Journal: journal})
	return svc, journal
}

func launch(t *testing.T, svc *Service, component string, flags domain.IntentFlags) LaunchResult {
	t.Helper()
	res, err := svc.Launch(context.Background(), LaunchRequest{
		Component:   domain.ComponentID(component),
		Flags:       flags,
		FromFocused: true,
	})
	if err != nil {
		t.Fatalf("Launch(%s, %s) error = %v", component, flags, err)
	}
	assertSettled(t, svc)
	return res
}

// assertSettled checks the single-resumed-record rule on the public views.
func assertSettled(t *testing.T, svc *Service) {
	t.Helper()
	resumed := 0
	for _, task := range svc.AllTasks() {
		for _, a := range task.Activities {
			if a.State == domain.StateResumed {
				resumed++
			}
		}
	}
	focused, ok := svc.FocusedTask()
	if !ok {
		if resumed != 0 {
			t.Fatalf("expected no resumed records without tasks, got %d", resumed)
		}
		return
	}
	top, _ := focused.Top()
	if resumed != 1 || top.State != domain.StateResumed {
		t.Fatalf("expected exactly the focused top resumed, got %d resumed, top %s=%s", resumed, top.Component, top.State)
	}
}

func taskByAffinity(t *testing.T, svc *Service, affinity string) TaskView {
	t.Helper()
	for _, task := range svc.AllTasks() {
		if task.Affinity == affinity {
			return task
		}
	}
	t.Fatalf("no task with affinity %q in %#v", affinity, svc.AllTasks())
	return TaskView{}
}

func assertStack(t *testing.T, task TaskView, want ...domain.ComponentID) {
	t.Helper()
	if got := task.Components(); !slices.Equal(got, want) {
		t.Fatalf("task %d (%s) stack = %v, want %v", task.ID, task.Affinity, got, want)
	}
}

func eventKinds(events []domain.LifecycleEvent) []string {
	out := make([]string, 0, len(events))
	for _, ev := range events {
		if ev.Component != "" {
			out = append(out, fmt.Sprintf("%s:%s", ev.Kind, ev.Component))
			continue
		}
		out = append(out, string(ev.Kind))
	}
	return out
}

func hasTaskDestroyed(events []domain.LifecycleEvent, taskID int) bool {
	for _, ev := range events {
		if ev.Kind == domain.EventTaskDestroyed && ev.TaskID == taskID {
			return true
		}
	}
	return false
}

var errJournalDown = errors.New("journal down")
