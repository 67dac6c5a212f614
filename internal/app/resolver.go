package app

import (
	"fmt"

	"github.com/hylla/activitytask/internal/domain"
)

// ResolveLaunch computes the plan for req without mutating tasks.
func ResolveLaunch(descriptors *DescriptorRegistry, tasks *TaskRegistry, req LaunchRequest) (Plan, error) {
	desc, err := descriptors.Describe(req.Component)
	if err != nil {
		return Plan{}, err
	}
	caller, err := resolveCaller(tasks, req)
	if err != nil {
		return Plan{}, err
	}

	plan := Plan{Request: req, Descriptor: desc}
	target := selectTarget(tasks, desc, req.Flags, caller, &plan.Target)
	if target == nil {
		plan.Target.New = true
		plan.Mutations = []Mutation{{Kind: MutationCreate}}
		plan.Outcome = OutcomeCreated
		appendFinishers(tasks, &plan, nil)
		return plan, nil
	}
	plan.Target.TaskID = target.ID

	doomed := resolveMutations(&plan, target, desc, req.Flags)
	if plan.createsInstance() {
		appendFinishers(tasks, &plan, doomed)
	}
	return plan, nil
}

func resolveCaller(tasks *TaskRegistry, req LaunchRequest) (*domain.Task, error) {
	switch {
	case req.CallerTaskID != 0 && req.FromFocused:
		return nil, fmt.Errorf("%w: caller task and focused caller are exclusive", ErrInvalidLaunchTarget)
	case req.CallerTaskID != 0:
		caller := tasks.Task(req.CallerTaskID)
		if caller == nil {
			return nil, fmt.Errorf("%w: %d", ErrUnknownTask, req.CallerTaskID)
		}
		return caller, nil
	case req.FromFocused:
		return tasks.Focused(), nil
	default:
		return nil, nil
	}
}

// selectTarget picks the task the launch lands in and fills ref; nil means a new task.
func selectTarget(tasks *TaskRegistry, desc domain.ActivityDescriptor, flags domain.IntentFlags, caller *domain.Task, ref *TargetRef) *domain.Task {
	if desc.LaunchMode == domain.LaunchModeSingleInstance {
		ref.Affinity = desc.HomeAffinity()
		return tasks.FindTaskByAffinity(ref.Affinity)
	}
	affinityTargeted := flags.Has(domain.FlagNewTask) ||
		desc.LaunchMode == domain.LaunchModeSingleTask ||
		caller == nil ||
		caller.IsSingleInstance()
	if !affinityTargeted {
		ref.Affinity = caller.Affinity
		return caller
	}
	ref.Affinity = desc.TaskAffinity
	return tasks.FindTaskByAffinity(ref.Affinity)
}

// resolveMutations fills the plan for an existing target and returns the ids it destroys.
func resolveMutations(plan *Plan, target *domain.Task, desc domain.ActivityDescriptor, flags domain.IntentFlags) map[string]bool {
	doomed := make(map[string]bool)
	clearAll := func() {
		for _, rec := range target.Activities() {
			doomed[rec.ID] = true
		}
		plan.Mutations = append(plan.Mutations, Mutation{Kind: MutationClearAll}, Mutation{Kind: MutationCreate})
		plan.Outcome = OutcomeCreated
	}
	clearAbove := func(idx int, anchor *domain.ActivityRecord) {
		above := target.Above(idx)
		if len(above) == 0 {
			return
		}
		for _, rec := range above {
			doomed[rec.ID] = true
		}
		plan.Mutations = append(plan.Mutations, Mutation{Kind: MutationClearAbove, ActivityID: anchor.ID})
	}
	reuse := func(rec *domain.ActivityRecord) {
		plan.Mutations = append(plan.Mutations, Mutation{Kind: MutationReuse, ActivityID: rec.ID})
		plan.Outcome = OutcomeReused
	}
	create := func() {
		plan.Mutations = append(plan.Mutations, Mutation{Kind: MutationCreate})
		plan.Outcome = OutcomeCreated
	}

	component := desc.Component
	switch {
	case flags.Has(domain.FlagClearTask):
		clearAll()
		return doomed
	case flags.Has(domain.FlagResetTaskIfNeeded) && desc.ClearTaskOnRelaunch && target.Contains(component):
		clearAll()
		return doomed
	}

	switch desc.LaunchMode {
	case domain.LaunchModeSingleInstance:
		reuse(target.Root())
	case domain.LaunchModeSingleTask:
		idx, rec := target.FindFromBottom(component)
		if rec == nil {
			create()
			break
		}
		clearAbove(idx, rec)
		reuse(rec)
	default:
		singleTop := flags.Has(domain.FlagSingleTop) || desc.LaunchMode == domain.LaunchModeSingleTop
		switch {
		case flags.Has(domain.FlagClearTop):
			idx, rec := target.FindFromTop(component)
			if rec == nil {
				create()
				break
			}
			clearAbove(idx, rec)
			if singleTop {
				reuse(rec)
				break
			}
			doomed[rec.ID] = true
			plan.Mutations = append(plan.Mutations, Mutation{Kind: MutationRecreate, ActivityID: rec.ID})
			plan.Outcome = OutcomeRecreated
		case flags.Has(domain.FlagNewTask|domain.FlagResetTaskIfNeeded) && target.Root().Component() == component:
			plan.Outcome = OutcomeBroughtToFront
		case singleTop && target.Top().Component() == component:
			reuse(target.Top())
		default:
			create()
		}
	}
	return doomed
}

// appendFinishers schedules every live record that finishes when the planned component is created.
func appendFinishers(tasks *TaskRegistry, plan *Plan, doomed map[string]bool) {
	trigger := plan.Descriptor.Component
	for _, task := range tasks.AllTasks() {
		for _, rec := range task.TopDown() {
			if doomed[rec.ID] || !rec.Descriptor.FinishesOnLaunchOf(trigger) {
				continue
			}
			plan.Mutations = append(plan.Mutations, Mutation{Kind: MutationFinishSelf, ActivityID: rec.ID})
		}
	}
}
