package config

import (
	"fmt"
	"strings"

	"github.com/hylla/activitytask/internal/domain"
)

// Demo manifest affinities.
const (
	DemoDefaultAffinity = "me.ycdev.android.demo.activitytask"
	DemoTask2Affinity   = "me.ycdev.task2"
)

// DemoActivities returns the built-in demo manifest. Entries without an
// affinity inherit the manifest default.
func DemoActivities() []ActivityConfig {
	return []ActivityConfig{
		{Component: "Main", Label: "Main"},
		{Component: "Standard1", Label: "Standard 1", LaunchMode: "standard"},
		{Component: "Standard2", Label: "Standard 2", LaunchMode: "standard", TaskAffinity: DemoTask2Affinity},
		{Component: "Standard3", Label: "Standard 3", LaunchMode: "standard"},
		{Component: "SingleTop1", Label: "Single Top 1", LaunchMode: "single_top"},
		{Component: "SingleTop2", Label: "Single Top 2", LaunchMode: "single_top", TaskAffinity: DemoTask2Affinity},
		{Component: "SingleTop3", Label: "Single Top 3", LaunchMode: "single_top"},
		{Component: "SingleTask1", Label: "Single Task 1", LaunchMode: "single_task"},
		{Component: "SingleTask2", Label: "Single Task 2", LaunchMode: "single_task", TaskAffinity: DemoTask2Affinity},
		{Component: "SingleTask3", Label: "Single Task 3", LaunchMode: "single_task", TaskAffinity: DemoTask2Affinity},
		{Component: "SingleInstance1", Label: "Single Instance 1", LaunchMode: "single_instance"},
		{Component: "SingleInstance2", Label: "Single Instance 2", LaunchMode: "single_instance", TaskAffinity: DemoTask2Affinity},
		{Component: "SingleInstance3", Label: "Single Instance 3", LaunchMode: "single_instance", TaskAffinity: DemoTask2Affinity},
		{Component: "Reparenting", Label: "Reparenting", AllowTaskReparenting: true},
		{Component: "FinishOnLaunch", Label: "Finish On Launch", FinishOnLaunchOf: []string{"SingleTask2"}},
		{Component: "ClearOnLaunch", Label: "Clear On Launch", ClearTaskOnRelaunch: true},
	}
}

// Descriptors builds the validated manifest, falling back to the demo
// manifest when no activities are declared.
func (c Config) Descriptors() ([]domain.ActivityDescriptor, error) {
	entries := c.Activities
	if len(entries) == 0 {
		entries = DemoActivities()
	}
	defaultAffinity := strings.TrimSpace(c.Manifest.DefaultAffinity)

	out := make([]domain.ActivityDescriptor, 0, len(entries))
	seen := make(map[domain.ComponentID]struct{}, len(entries))
	for idx, entry := range entries {
		mode, err := domain.ParseLaunchMode(entry.LaunchMode)
		if err != nil {
			return nil, fmt.Errorf("activities[%d].launch_mode %q: %w", idx, entry.LaunchMode, err)
		}
		affinity := strings.TrimSpace(entry.TaskAffinity)
		if affinity == "" {
			affinity = defaultAffinity
		}
		desc, err := domain.NewActivityDescriptor(domain.DescriptorInput{
			Component:            entry.Component,
			Label:                entry.Label,
			LaunchMode:           mode,
			TaskAffinity:         affinity,
			AllowTaskReparenting: entry.AllowTaskReparenting,
			FinishOnLaunchOf:     entry.FinishOnLaunchOf,
			ClearTaskOnRelaunch:  entry.ClearTaskOnRelaunch,
		})
		if err != nil {
			return nil, fmt.Errorf("activities[%d] %q: %w", idx, entry.Component, err)
		}
		if _, ok := seen[desc.Component]; ok {
			return nil, fmt.Errorf("activities[%d].component is duplicated: %s", idx, desc.Component)
		}
		seen[desc.Component] = struct{}{}
		out = append(out, desc)
	}
	for _, desc := range out {
		for _, trigger := range desc.FinishOnLaunchOf {
			if _, ok := seen[trigger]; !ok {
				return nil, fmt.Errorf("activity %s finishes on unknown component %s", desc.Component, trigger)
			}
		}
	}
	return out, nil
}
