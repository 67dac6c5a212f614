package app

import (
	"context"
	"time"

	"github.com/hylla/activitytask/internal/domain"
)

// Journal persists committed lifecycle events for diagnostics.
type Journal interface {
	AppendEvents(context.Context, []domain.LifecycleEvent) error
	ListEvents(context.Context, int) ([]domain.LifecycleEvent, error)
}

// Metrics receives engine observations.
type Metrics interface {
	ObserveLaunch(outcome LaunchOutcome, mode domain.LaunchMode, elapsed time.Duration)
	ObserveLaunchRejected(reason string)
	ObserveLifecycle(kind domain.LifecycleEventKind)
	ObserveReparented(moved int)
	ObserveJournalFailure()
	SetTopology(tasks, activities int)
}

// Logger receives structured engine log lines.
type Logger interface {
	Debug(msg string, keyvals ...any)
	Info(msg string, keyvals ...any)
	Warn(msg string, keyvals ...any)
	Error(msg string, keyvals ...any)
}

type noopMetrics struct{}

func (noopMetrics) ObserveLaunch(LaunchOutcome, domain.LaunchMode, time.Duration) {}
func (noopMetrics) ObserveLaunchRejected(string)                                 {}
func (noopMetrics) ObserveLifecycle(domain.LifecycleEventKind)                   {}
func (noopMetrics) ObserveReparented(int)                                        {}
func (noopMetrics) ObserveJournalFailure()                                       {}
func (noopMetrics) SetTopology(int, int)                                         {}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
