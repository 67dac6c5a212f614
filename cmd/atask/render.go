package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"
	"github.com/hylla/activitytask/internal/adapters/storage/sqlite"
	"github.com/hylla/activitytask/internal/app"
	"github.com/hylla/activitytask/internal/domain"
	"github.com/hylla/activitytask/internal/scenario"
)

var (
	accentColor = lipgloss.Color("62")
	mutedColor  = lipgloss.Color("241")
	okColor     = lipgloss.Color("78")

	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	mutedStyle  = lipgloss.NewStyle().Foreground(mutedColor)
	focusStyle  = lipgloss.NewStyle().Bold(true).Foreground(accentColor)
	okStyle     = lipgloss.NewStyle().Bold(true).Foreground(okColor)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(accentColor).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

var stateStyles = map[domain.LifecycleState]lipgloss.Style{
	domain.StateResumed: lipgloss.NewStyle().Foreground(okColor),
	domain.StatePaused:  lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
	domain.StateStopped: mutedStyle,
}

// newTable returns a bordered table with the shared header and cell styles.
func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(mutedStyle).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

// renderManifest prints one row per declared component.
func renderManifest(w io.Writer, descs []domain.ActivityDescriptor) {
	t := newTable("component", "label", "launch mode", "task affinity", "policies")
	for _, d := range descs {
		t.Row(string(d.Component), d.Label, string(d.LaunchMode), d.TaskAffinity, describePolicies(d))
	}
	_, _ = fmt.Fprintln(w, t.String())
}

func describePolicies(d domain.ActivityDescriptor) string {
	var parts []string
	if d.AllowTaskReparenting {
		parts = append(parts, "reparenting")
	}
	if len(d.FinishOnLaunchOf) > 0 {
		names := make([]string, 0, len(d.FinishOnLaunchOf))
		for _, c := range d.FinishOnLaunchOf {
			names = append(names, string(c))
		}
		parts = append(parts, "finish on "+strings.Join(names, ","))
	}
	if d.ClearTaskOnRelaunch {
		parts = append(parts, "clear on relaunch")
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, "; ")
}

// renderTasks prints every task front-most first, each stack top-most first.
func renderTasks(w io.Writer, tasks []app.TaskView) {
	if len(tasks) == 0 {
		_, _ = fmt.Fprintln(w, mutedStyle.Render("no tasks"))
		return
	}
	for _, task := range tasks {
		header := fmt.Sprintf("task %d  %s", task.ID, task.Affinity)
		if task.Focused {
			header = focusStyle.Render(header + "  (focused)")
		} else {
			header = titleStyle.Render(header)
		}
		_, _ = fmt.Fprintln(w, header)
		for i := len(task.Activities) - 1; i >= 0; i-- {
			rec := task.Activities[i]
			state := fmt.Sprintf("%-10s", rec.State)
			if style, ok := stateStyles[rec.State]; ok {
				state = style.Render(state)
			}
			_, _ = fmt.Fprintf(w, "  %s %-18s %s\n", state, rec.Component, mutedStyle.Render(rec.ID))
		}
	}
}

// renderReport prints a passed scenario run and its final model.
func renderReport(w io.Writer, report scenario.Report) {
	_, _ = fmt.Fprintf(w, "%s %s\n", okStyle.Render("PASS"), titleStyle.Render(report.Name))
	for _, step := range report.Steps {
		_, _ = fmt.Fprintf(w, "  %s %-18s %s\n", mutedStyle.Render(fmt.Sprintf("%2d", step.Index)), step.Action, step.Detail)
	}
	renderTasks(w, report.Tasks)
}

// renderEvents prints journaled lifecycle events oldest first.
func renderEvents(w io.Writer, events []domain.LifecycleEvent) {
	if len(events) == 0 {
		_, _ = fmt.Fprintln(w, mutedStyle.Render("no events"))
		return
	}
	t := newTable("seq", "kind", "component", "activity", "task", "flags", "at")
	for _, ev := range events {
		t.Row(
			fmt.Sprint(ev.Seq),
			string(ev.Kind),
			string(ev.Component),
			ev.ActivityID,
			fmt.Sprint(ev.TaskID),
			ev.Flags.String(),
			ev.At.UTC().Format(time.RFC3339),
		)
	}
	_, _ = fmt.Fprintln(w, t.String())
}

// renderSessions prints journal sessions newest first.
func renderSessions(w io.Writer, sessions []sqlite.Session) {
	if len(sessions) == 0 {
		_, _ = fmt.Fprintln(w, mutedStyle.Render("no sessions"))
		return
	}
	t := newTable("session", "started", "events")
	for _, s := range sessions {
		t.Row(s.ID, s.StartedAt.UTC().Format(time.RFC3339), fmt.Sprint(s.EventCount))
	}
	_, _ = fmt.Fprintln(w, t.String())
}
