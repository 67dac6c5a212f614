package domain

import (
	"errors"
	"slices"
	"testing"
	"time"
)

func mustDescriptor(t *testing.T, in DescriptorInput) ActivityDescriptor {
	t.Helper()
	desc, err := NewActivityDescriptor(in)
	if err != nil {
		t.Fatalf("NewActivityDescriptor() error = %v", err)
	}
	return desc
}

func TestNewActivityDescriptorDefaults(t *testing.T) {
	desc := mustDescriptor(t, DescriptorInput{
		Component:        "  Standard1 ",
		TaskAffinity:     " app.default ",
		FinishOnLaunchOf: []string{"SingleTask2", " ", "SingleTask2"},
	})
	if desc.Component != "Standard1" {
		t.Fatalf("unexpected component %q", desc.Component)
	}
	if desc.Label != "Standard1" {
		t.Fatalf("expected label to default to component, got %q", desc.Label)
	}
	if desc.LaunchMode != LaunchModeStandard {
		t.Fatalf("expected standard mode, got %q", desc.LaunchMode)
	}
	if desc.TaskAffinity != "app.default" {
		t.Fatalf("unexpected affinity %q", desc.TaskAffinity)
	}
	if !slices.Equal(desc.FinishOnLaunchOf, []ComponentID{"SingleTask2"}) {
		t.Fatalf("unexpected triggers %#v", desc.FinishOnLaunchOf)
	}
	if !desc.FinishesOnLaunchOf("SingleTask2") || desc.FinishesOnLaunchOf("Main") {
		t.Fatal("FinishesOnLaunchOf() mismatch")
	}
}

func TestNewActivityDescriptorValidation(t *testing.T) {
	cases := []struct {
		name string
		in   DescriptorInput
		want error
	}{
		{"missing component", DescriptorInput{TaskAffinity: "a"}, ErrInvalidComponent},
		{"missing affinity", DescriptorInput{Component: "A"}, ErrInvalidAffinity},
		{"reserved affinity", DescriptorInput{Component: "A", TaskAffinity: "singleinstance:B"}, ErrInvalidAffinity},
		{"bad mode", DescriptorInput{Component: "A", TaskAffinity: "a", LaunchMode: "sometimes"}, ErrInvalidLaunchMode},
		{"self trigger", DescriptorInput{Component: "A", TaskAffinity: "a", FinishOnLaunchOf: []string{"A"}}, ErrInvalidDescriptor},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewActivityDescriptor(tc.in); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestHomeAffinity(t *testing.T) {
	si := mustDescriptor(t, DescriptorInput{Component: "SingleInstance1", TaskAffinity: "app", LaunchMode: LaunchModeSingleInstance})
	if got := si.HomeAffinity(); got != "singleinstance:SingleInstance1" {
		t.Fatalf("unexpected single-instance home affinity %q", got)
	}
	std := mustDescriptor(t, DescriptorInput{Component: "Standard2", TaskAffinity: "task2"})
	if got := std.HomeAffinity(); got != "task2" {
		t.Fatalf("unexpected home affinity %q", got)
	}
}

func TestParseLaunchMode(t *testing.T) {
	cases := map[string]LaunchMode{
		"":                LaunchModeStandard,
		"Standard":        LaunchModeStandard,
		"singleTop":       LaunchModeSingleTop,
		"single-task":     LaunchModeSingleTask,
		"SINGLE_INSTANCE": LaunchModeSingleInstance,
	}
	for raw, want := range cases {
		got, err := ParseLaunchMode(raw)
		if err != nil {
			t.Fatalf("ParseLaunchMode(%q) error = %v", raw, err)
		}
		if got != want {
			t.Fatalf("ParseLaunchMode(%q) = %q, want %q", raw, got, want)
		}
	}
	if _, err := ParseLaunchMode("multiple"); !errors.Is(err, ErrInvalidLaunchMode) {
		t.Fatalf("expected ErrInvalidLaunchMode, got %v", err)
	}
}

func TestIntentFlagsParseAndString(t *testing.T) {
	flags, err := ParseIntentFlags("new_task, clear-top|FLAG_ACTIVITY_RESET_TASK_IF_NEEDED")
	if err != nil {
		t.Fatalf("ParseIntentFlags() error = %v", err)
	}
	if !flags.Has(FlagNewTask) || !flags.Has(FlagClearTop) || !flags.Has(FlagResetTaskIfNeeded) {
		t.Fatalf("missing flags in %s", flags)
	}
	if flags.Has(FlagClearTask) || flags.Has(FlagSingleTop) {
		t.Fatalf("unexpected flags in %s", flags)
	}
	if !flags.Has(FlagNewTask | FlagResetTaskIfNeeded) {
		t.Fatal("expected combined Has() to match")
	}
	if got := flags.String(); got != "new_task|clear_top|reset_task_if_needed" {
		t.Fatalf("unexpected String() %q", got)
	}
	if got := FlagNone.String(); got != "none" {
		t.Fatalf("unexpected empty String() %q", got)
	}
	if _, err := ParseIntentFlags("new_task,bogus"); !errors.Is(err, ErrInvalidIntentFlag) {
		t.Fatalf("expected ErrInvalidIntentFlag, got %v", err)
	}
}

func TestLifecycleTransitions(t *testing.T) {
	allowed := [][2]LifecycleState{
		{StateCreated, StateResumed},
		{StateCreated, StateDestroyed},
		{StateResumed, StatePaused},
		{StateResumed, StateDestroyed},
		{StatePaused, StateStopped},
		{StatePaused, StateResumed},
		{StatePaused, StateDestroyed},
		{StateStopped, StateResumed},
		{StateStopped, StateDestroyed},
	}
	for _, pair := range allowed {
		if err := ValidateTransition(pair[0], pair[1]); err != nil {
			t.Fatalf("ValidateTransition(%s, %s) error = %v", pair[0], pair[1], err)
		}
	}
	rejected := [][2]LifecycleState{
		{StateCreated, StateStopped},
		{StateResumed, StateStopped},
		{StateStopped, StatePaused},
		{StateDestroyed, StateResumed},
		{StateResumed, StateResumed},
	}
	for _, pair := range rejected {
		if err := ValidateTransition(pair[0], pair[1]); !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("ValidateTransition(%s, %s) expected ErrInvalidTransition, got %v", pair[0], pair[1], err)
		}
	}
	if !StateDestroyed.IsTerminal() || StateStopped.IsTerminal() {
		t.Fatal("IsTerminal() mismatch")
	}
}

func TestActivityRecordTransition(t *testing.T) {
	desc := mustDescriptor(t, DescriptorInput{Component: "Main", TaskAffinity: "app"})
	now := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	if _, err := NewActivityRecord(" ", desc, now); err != ErrInvalidID {
		t.Fatalf("expected ErrInvalidID, got %v", err)
	}
	rec, err := NewActivityRecord("a1", desc, now)
	if err != nil {
		t.Fatalf("NewActivityRecord() error = %v", err)
	}
	if rec.State != StateCreated || !rec.IsLive() {
		t.Fatalf("unexpected initial state %q", rec.State)
	}
	if err := rec.Transition(StateStopped); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	for _, next := range []LifecycleState{StateResumed, StatePaused, StateStopped, StateDestroyed} {
		if err := rec.Transition(next); err != nil {
			t.Fatalf("Transition(%s) error = %v", next, err)
		}
	}
	if rec.IsLive() {
		t.Fatal("expected destroyed record to be dead")
	}
}

func TestTaskStackOperations(t *testing.T) {
	now := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	if _, err := NewTask(0, "app", now); err != ErrInvalidID {
		t.Fatalf("expected ErrInvalidID, got %v", err)
	}
	if _, err := NewTask(1, " ", now); err != ErrInvalidAffinity {
		t.Fatalf("expected ErrInvalidAffinity, got %v", err)
	}
	task, err := NewTask(1, "app", now)
	if err != nil {
		t.Fatalf("NewTask() error = %v", err)
	}
	if task.Top() != nil || task.Root() != nil || !task.IsEmpty() {
		t.Fatal("expected empty task")
	}

	main := mustDescriptor(t, DescriptorInput{Component: "Main", TaskAffinity: "app"})
	std := mustDescriptor(t, DescriptorInput{Component: "Standard1", TaskAffinity: "app"})
	ids := []string{"m", "s1", "s2", "s3"}
	for i, id := range ids {
		desc := std
		if i == 0 {
			desc = main
		}
		rec, err := NewActivityRecord(id, desc, now)
		if err != nil {
			t.Fatalf("NewActivityRecord() error = %v", err)
		}
		task.Push(rec)
	}

	if task.Root().ID != "m" || task.Top().ID != "s3" || task.Len() != 4 {
		t.Fatalf("unexpected stack shape root=%s top=%s len=%d", task.Root().ID, task.Top().ID, task.Len())
	}
	if idx, rec := task.FindFromTop("Standard1"); idx != 3 || rec.ID != "s3" {
		t.Fatalf("FindFromTop() = %d, %v", idx, rec)
	}
	if idx, rec := task.FindFromBottom("Standard1"); idx != 1 || rec.ID != "s1" {
		t.Fatalf("FindFromBottom() = %d, %v", idx, rec)
	}
	if idx, rec := task.FindFromTop("Missing"); idx != -1 || rec != nil {
		t.Fatalf("expected no match, got %d, %v", idx, rec)
	}

	above := task.Above(1)
	if len(above) != 2 || above[0].ID != "s3" || above[1].ID != "s2" {
		t.Fatalf("unexpected Above(1) result %#v", above)
	}
	if len(task.Above(3)) != 0 {
		t.Fatal("expected nothing above top")
	}

	if _, ok := task.Remove("s2"); !ok {
		t.Fatal("expected Remove() to find s2")
	}
	got := make([]string, 0, task.Len())
	for _, rec := range task.Activities() {
		got = append(got, rec.ID)
	}
	if !slices.Equal(got, []string{"m", "s1", "s3"}) {
		t.Fatalf("unexpected stack after removal %v", got)
	}
	if _, ok := task.Remove("s2"); ok {
		t.Fatal("expected second Remove() to miss")
	}
	if task.IsSingleInstance() {
		t.Fatal("expected ordinary task")
	}
	si, _ := NewTask(2, SingleInstanceAffinity("SingleInstance1"), now)
	if !si.IsSingleInstance() {
		t.Fatal("expected single-instance task")
	}
}
