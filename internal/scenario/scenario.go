// Package scenario loads and runs scripted launch sequences against the engine.
package scenario

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"slices"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// ErrInvalidScenario reports a malformed scenario document.
var ErrInvalidScenario = errors.New("invalid scenario")

// ErrExpectationFailed reports a settled state that differs from an expect step.
var ErrExpectationFailed = errors.New("expectation failed")

// Action names one scenario step kind.
type Action string

// Action values.
const (
	ActionLaunch           Action = "launch"
	ActionBack             Action = "back"
	ActionReparent         Action = "reparent"
	ActionRelaunchFromHome Action = "relaunch_from_home"
	ActionReset            Action = "reset"
	ActionExpect           Action = "expect"
)

// Caller values accepted by launch steps besides a task affinity.
const (
	CallerFocused = "focused"
	CallerNone    = "none"
)

//go:embed builtin/*.toml
var builtinFS embed.FS

// Scenario is one named sequence of steps.
type Scenario struct {
	Name        string `toml:"name"`
	Description string `toml:"description"`
	Steps       []Step `toml:"steps"`
}

// Step is one scenario action. Launch fields apply to launch and
// relaunch_from_home; expectation fields apply to expect.
type Step struct {
	Action    Action   `toml:"action"`
	Component string   `toml:"component"`
	Flags     []string `toml:"flags"`
	// Caller is "focused" (default), "none", or the affinity of an existing task.
	Caller string `toml:"caller"`
	// Label names the launched record so later expectations can refer to its identity.
	Label string `toml:"label"`

	Outcome       string        `toml:"outcome"`
	SameAs        string        `toml:"same_as"`
	DifferentFrom string        `toml:"different_from"`
	ActivityCount *int          `toml:"activity_count"`
	TaskCount     *int          `toml:"task_count"`
	FocusedStack  []string      `toml:"focused_stack"`
	Tasks         []TaskExpect  `toml:"tasks"`
	Finished      *int          `toml:"finished"`
	Reparented    *int          `toml:"reparented"`
	States        []StateExpect `toml:"states"`
}

// TaskExpect pins one task's affinity and stack, front-most task first.
type TaskExpect struct {
	Affinity string   `toml:"affinity"`
	Stack    []string `toml:"stack"`
}

// StateExpect pins the lifecycle state of a labeled record.
type StateExpect struct {
	Label string `toml:"label"`
	State string `toml:"state"`
}

// Parse decodes and validates one scenario document.
func Parse(content []byte) (Scenario, error) {
	var sc Scenario
	decoder := toml.NewDecoder(bytes.NewReader(content))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&sc); err != nil {
		return Scenario{}, fmt.Errorf("decode toml: %w", errors.Join(ErrInvalidScenario, err))
	}
	if err := sc.Validate(); err != nil {
		return Scenario{}, err
	}
	return sc, nil
}

// Load reads one scenario from a file path or, failing that, a builtin name.
func Load(name string) (Scenario, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Scenario{}, fmt.Errorf("scenario path is required: %w", ErrInvalidScenario)
	}
	content, err := os.ReadFile(name)
	if err == nil {
		return Parse(content)
	}
	if !errors.Is(err, os.ErrNotExist) {
		return Scenario{}, fmt.Errorf("read scenario: %w", err)
	}
	content, builtinErr := fs.ReadFile(builtinFS, path.Join("builtin", strings.TrimSuffix(name, ".toml")+".toml"))
	if builtinErr != nil {
		return Scenario{}, fmt.Errorf("scenario %q not found on disk or as builtin: %w", name, err)
	}
	return Parse(content)
}

// Builtins lists the bundled scenario names in sorted order.
func Builtins() []string {
	entries, err := fs.ReadDir(builtinFS, "builtin")
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(entries))
	for _, entry := range entries {
		out = append(out, strings.TrimSuffix(entry.Name(), ".toml"))
	}
	slices.Sort(out)
	return out
}

// Validate checks step actions and required fields.
func (s Scenario) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("name is required: %w", ErrInvalidScenario)
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("scenario %q has no steps: %w", s.Name, ErrInvalidScenario)
	}
	labels := map[string]struct{}{}
	for idx, step := range s.Steps {
		switch step.Action {
		case ActionLaunch, ActionRelaunchFromHome:
			if strings.TrimSpace(step.Component) == "" {
				return fmt.Errorf("steps[%d] %s requires component: %w", idx, step.Action, ErrInvalidScenario)
			}
			if step.Action == ActionRelaunchFromHome && step.Caller != "" {
				return fmt.Errorf("steps[%d] relaunch_from_home takes no caller: %w", idx, ErrInvalidScenario)
			}
			if step.Label != "" {
				labels[step.Label] = struct{}{}
			}
		case ActionBack, ActionReparent, ActionReset:
		case ActionExpect:
			refs := []string{step.SameAs, step.DifferentFrom}
			for _, st := range step.States {
				refs = append(refs, st.Label)
			}
			for _, ref := range refs {
				if ref == "" {
					continue
				}
				if _, ok := labels[ref]; !ok {
					return fmt.Errorf("steps[%d] references unknown label %q: %w", idx, ref, ErrInvalidScenario)
				}
			}
		default:
			return fmt.Errorf("steps[%d] unknown action %q: %w", idx, step.Action, ErrInvalidScenario)
		}
	}
	return nil
}
