package domain

import (
	"strings"
)

// IntentFlags is the set of per-request launch modifiers.
type IntentFlags uint8

// IntentFlags values.
const (
	FlagNewTask IntentFlags = 1 << iota
	FlagClearTop
	FlagClearTask
	FlagSingleTop
	FlagResetTaskIfNeeded
)

// FlagNone is the empty flag set.
const FlagNone IntentFlags = 0

var intentFlagNames = []struct {
	flag IntentFlags
	name string
}{
	{FlagNewTask, "new_task"},
	{FlagClearTop, "clear_top"},
	{FlagClearTask, "clear_task"},
	{FlagSingleTop, "single_top"},
	{FlagResetTaskIfNeeded, "reset_task_if_needed"},
}

// Has reports whether every bit of flag is set.
func (f IntentFlags) Has(flag IntentFlags) bool {
	return flag != 0 && f&flag == flag
}

// Names returns the canonical names of the set flags in declaration order.
func (f IntentFlags) Names() []string {
	out := make([]string, 0, len(intentFlagNames))
	for _, entry := range intentFlagNames {
		if f.Has(entry.flag) {
			out = append(out, entry.name)
		}
	}
	return out
}

// String renders the flag set as a pipe-separated list.
func (f IntentFlags) String() string {
	names := f.Names()
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}

// ParseIntentFlag resolves one flag name.
func ParseIntentFlag(raw string) (IntentFlags, error) {
	norm := strings.ToLower(strings.TrimSpace(raw))
	norm = strings.TrimPrefix(norm, "flag_activity_")
	norm = strings.ReplaceAll(norm, "-", "_")
	if norm == "" || norm == "none" {
		return FlagNone, nil
	}
	for _, entry := range intentFlagNames {
		if entry.name == norm || strings.ReplaceAll(entry.name, "_", "") == norm {
			return entry.flag, nil
		}
	}
	return FlagNone, ErrInvalidIntentFlag
}

// ParseIntentFlags parses a comma or pipe separated flag list.
func ParseIntentFlags(raw string) (IntentFlags, error) {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == '|' || r == ' '
	})
	return ParseIntentFlagList(fields)
}

// ParseIntentFlagList parses a list of flag names.
func ParseIntentFlagList(names []string) (IntentFlags, error) {
	var out IntentFlags
	for _, name := range names {
		flag, err := ParseIntentFlag(name)
		if err != nil {
			return FlagNone, err
		}
		out |= flag
	}
	return out, nil
}
