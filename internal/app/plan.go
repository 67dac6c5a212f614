package app

import "github.com/hylla/activitytask/internal/domain"

// LaunchRequest asks the engine to start one component.
type LaunchRequest struct {
	Component domain.ComponentID
	Flags     domain.IntentFlags
	// CallerTaskID names the launching task; zero means no caller.
	CallerTaskID int
	// FromFocused uses the focused task as caller.
	FromFocused bool
}

// LaunchOutcome classifies how a launch settled.
type LaunchOutcome string

// LaunchOutcome values.
const (
	OutcomeCreated        LaunchOutcome = "created"
	OutcomeReused         LaunchOutcome = "reused"
	OutcomeRecreated      LaunchOutcome = "recreated"
	OutcomeBroughtToFront LaunchOutcome = "brought_to_front"
)

// MutationKind identifies one planned stack mutation.
type MutationKind string

// MutationKind values.
const (
	MutationClearAll   MutationKind = "clear_all"
	MutationClearAbove MutationKind = "clear_above"
	MutationCreate     MutationKind = "create"
	MutationReuse      MutationKind = "reuse"
	MutationRecreate   MutationKind = "recreate"
	MutationFinishSelf MutationKind = "finish_self"
)

// Mutation is one tagged step of a launch plan.
type Mutation struct {
	Kind MutationKind
	// ActivityID is the anchor or subject record; empty for ClearAll and Create.
	ActivityID string
}

// TargetRef names the task a plan mutates.
type TargetRef struct {
	TaskID   int
	Affinity string
	// New means the task does not exist yet and is created on apply.
	New bool
}

// Plan is the fully resolved decision for one launch request.
type Plan struct {
	Request    LaunchRequest
	Descriptor domain.ActivityDescriptor
	Target     TargetRef
	Mutations  []Mutation
	Outcome    LaunchOutcome
}

// Kinds returns the mutation kinds in order.
func (p Plan) Kinds() []MutationKind {
	out := make([]MutationKind, 0, len(p.Mutations))
	for _, m := range p.Mutations {
		out = append(out, m.Kind)
	}
	return out
}

// createsInstance reports whether the plan introduces a new identity.
func (p Plan) createsInstance() bool {
	for _, m := range p.Mutations {
		if m.Kind == MutationCreate || m.Kind == MutationRecreate {
			return true
		}
	}
	return false
}

// LaunchResult reports the settled outcome of a launch.
type LaunchResult struct {
	Outcome    LaunchOutcome
	ActivityID string
	Component  domain.ComponentID
	TaskID     int
	// Finished lists records destroyed by finish-on-launch policies.
	Finished []string
	// Reparented counts records moved by a preceding reparenting pass.
	Reparented int
}
