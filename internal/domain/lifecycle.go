package domain

import (
	"fmt"
	"slices"
)

// LifecycleState is the state of one activity instance.
type LifecycleState string

// LifecycleState values.
const (
	StateCreated   LifecycleState = "created"
	StateResumed   LifecycleState = "resumed"
	StatePaused    LifecycleState = "paused"
	StateStopped   LifecycleState = "stopped"
	StateDestroyed LifecycleState = "destroyed"
)

var lifecycleTransitions = map[LifecycleState][]LifecycleState{
	StateCreated: {StateResumed, StateDestroyed},
	StateResumed: {StatePaused, StateDestroyed},
	StatePaused:  {StateStopped, StateResumed, StateDestroyed},
	StateStopped: {StateResumed, StateDestroyed},
}

// CanTransitionTo reports whether next is reachable from s in one step.
func (s LifecycleState) CanTransitionTo(next LifecycleState) bool {
	return slices.Contains(lifecycleTransitions[s], next)
}

// IsTerminal reports whether no transition leaves s.
func (s LifecycleState) IsTerminal() bool {
	return s == StateDestroyed
}

// ValidateTransition returns ErrInvalidTransition when next is not reachable from s.
func ValidateTransition(from, next LifecycleState) error {
	if !from.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, next)
	}
	return nil
}
