package domain

import (
	"slices"
	"strings"
)

// ComponentID identifies one declared activity component.
type ComponentID string

// LaunchMode is the declared instance-reuse policy of a component.
type LaunchMode string

// LaunchMode values.
const (
	LaunchModeStandard       LaunchMode = "standard"
	LaunchModeSingleTop      LaunchMode = "single_top"
	LaunchModeSingleTask     LaunchMode = "single_task"
	LaunchModeSingleInstance LaunchMode = "single_instance"
)

var validLaunchModes = []LaunchMode{
	LaunchModeStandard,
	LaunchModeSingleTop,
	LaunchModeSingleTask,
	LaunchModeSingleInstance,
}

// SingleInstanceAffinityPrefix is reserved for the dedicated task of a single-instance component.
const SingleInstanceAffinityPrefix = "singleinstance:"

// ParseLaunchMode normalizes a textual launch mode.
func ParseLaunchMode(raw string) (LaunchMode, error) {
	norm := strings.ToLower(strings.TrimSpace(raw))
	norm = strings.NewReplacer("-", "_", " ", "_").Replace(norm)
	switch norm {
	case "", "standard":
		return LaunchModeStandard, nil
	case "single_top", "singletop":
		return LaunchModeSingleTop, nil
	case "single_task", "singletask":
		return LaunchModeSingleTask, nil
	case "single_instance", "singleinstance":
		return LaunchModeSingleInstance, nil
	default:
		return "", ErrInvalidLaunchMode
	}
}

// SingleInstanceAffinity returns the reserved task affinity owned by one single-instance component.
func SingleInstanceAffinity(component ComponentID) string {
	return SingleInstanceAffinityPrefix + string(component)
}

// ActivityDescriptor is the static manifest entry of one component.
type ActivityDescriptor struct {
	Component            ComponentID
	Label                string
	LaunchMode           LaunchMode
	TaskAffinity         string
	AllowTaskReparenting bool
	// FinishOnLaunchOf lists trigger components whose fresh instances finish this one.
	FinishOnLaunchOf []ComponentID
	// ClearTaskOnRelaunch clears the owning task when relaunched with ResetTaskIfNeeded.
	ClearTaskOnRelaunch bool
}

// DescriptorInput holds the raw values for NewActivityDescriptor.
type DescriptorInput struct {
	Component            string
	Label                string
	LaunchMode           LaunchMode
	TaskAffinity         string
	AllowTaskReparenting bool
	FinishOnLaunchOf     []string
	ClearTaskOnRelaunch  bool
}

// NewActivityDescriptor validates and normalizes one descriptor.
func NewActivityDescriptor(in DescriptorInput) (ActivityDescriptor, error) {
	in.Component = strings.TrimSpace(in.Component)
	in.Label = strings.TrimSpace(in.Label)
	in.TaskAffinity = strings.TrimSpace(in.TaskAffinity)

	if in.Component == "" {
		return ActivityDescriptor{}, ErrInvalidComponent
	}
	if in.LaunchMode == "" {
		in.LaunchMode = LaunchModeStandard
	}
	if !slices.Contains(validLaunchModes, in.LaunchMode) {
		return ActivityDescriptor{}, ErrInvalidLaunchMode
	}
	if in.TaskAffinity == "" || strings.HasPrefix(in.TaskAffinity, SingleInstanceAffinityPrefix) {
		return ActivityDescriptor{}, ErrInvalidAffinity
	}
	if in.Label == "" {
		in.Label = in.Component
	}

	component := ComponentID(in.Component)
	triggers := make([]ComponentID, 0, len(in.FinishOnLaunchOf))
	for _, raw := range in.FinishOnLaunchOf {
		trigger := ComponentID(strings.TrimSpace(raw))
		if trigger == "" {
			continue
		}
		if trigger == component {
			return ActivityDescriptor{}, ErrInvalidDescriptor
		}
		if slices.Contains(triggers, trigger) {
			continue
		}
		triggers = append(triggers, trigger)
	}

	return ActivityDescriptor{
		Component:            component,
		Label:                in.Label,
		LaunchMode:           in.LaunchMode,
		TaskAffinity:         in.TaskAffinity,
		AllowTaskReparenting: in.AllowTaskReparenting,
		FinishOnLaunchOf:     triggers,
		ClearTaskOnRelaunch:  in.ClearTaskOnRelaunch,
	}, nil
}

// HomeAffinity returns the affinity of the task this component belongs in.
func (d ActivityDescriptor) HomeAffinity() string {
	if d.LaunchMode == LaunchModeSingleInstance {
		return SingleInstanceAffinity(d.Component)
	}
	return d.TaskAffinity
}

// FinishesOnLaunchOf reports whether a fresh instance of trigger finishes this component.
func (d ActivityDescriptor) FinishesOnLaunchOf(trigger ComponentID) bool {
	return slices.Contains(d.FinishOnLaunchOf, trigger)
}
