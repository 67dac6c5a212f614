package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/hylla/activitytask/internal/domain"
)

// DefaultEventBuffer is the per-subscriber channel capacity.
const DefaultEventBuffer = 256

// IDGenerator returns unique identifiers for new activity records.
type IDGenerator func() string

// Clock returns the current time.
type Clock func() time.Time

// ServiceConfig holds optional collaborators for the service.
type ServiceConfig struct {
	Logger      Logger
	Journal     Journal
	Metrics     Metrics
	EventBuffer int
}

// Service is the single owner of the task model. Every mutation runs to
// completion under one lock, so queries only observe settled state.
type Service struct {
	mu          sync.Mutex
	engine      *engine
	logger      Logger
	journal     Journal
	metrics     Metrics
	eventBuffer int

	subMu       sync.Mutex
	nextSubID   int
	subscribers map[int]chan domain.LifecycleEvent
}

// NewService constructs a service over descriptors.
func NewService(descriptors *DescriptorRegistry, idGen IDGenerator, clock Clock, cfg ServiceConfig) *Service {
	if idGen == nil {
		var n int
		idGen = func() string {
			n++
			return "activity-" + strconv.Itoa(n)
		}
	}
	if clock == nil {
		clock = time.Now
	}
	if descriptors == nil {
		descriptors, _ = NewDescriptorRegistry(nil)
	}
	if cfg.Logger == nil {
		cfg.Logger = noopLogger{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = noopMetrics{}
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = DefaultEventBuffer
	}
	return &Service{
		engine:      newEngine(descriptors, idGen, clock),
		logger:      cfg.Logger,
		journal:     cfg.Journal,
		metrics:     cfg.Metrics,
		eventBuffer: cfg.EventBuffer,
		subscribers: make(map[int]chan domain.LifecycleEvent),
	}
}

// Launch resolves and applies one launch request.
func (s *Service) Launch(ctx context.Context, req LaunchRequest) (LaunchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	started := s.engine.clock()
	plan, err := ResolveLaunch(s.engine.descriptors, s.engine.tasks, req)
	if err != nil {
		s.rejectLaunch(req, err)
		return LaunchResult{}, err
	}
	s.logPlan("launch", plan)
	result := s.engine.apply(plan)
	s.commit(ctx, "launch")
	s.metrics.ObserveLaunch(result.Outcome, plan.Descriptor.LaunchMode, s.engine.clock().Sub(started))
	return result, nil
}

// FinishTopOfFocusedTask destroys the frontmost record, like a back navigation.
func (s *Service) FinishTopOfFocusedTask(ctx context.Context) (ActivityView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.engine.finishTop()
	if err != nil {
		return ActivityView{}, err
	}
	s.logger.Debug("finished top of focused task", "activity_id", rec.ID, "component", rec.Component())
	s.commit(ctx, "finish_top")
	return activityView(rec), nil
}

// TriggerReparentingPass migrates every eligible record to the task of its own affinity.
func (s *Service) TriggerReparentingPass(ctx context.Context) []ReparentMove {
	s.mu.Lock()
	defer s.mu.Unlock()

	moves := s.engine.reparent(true)
	s.logger.Debug("reparenting pass", "moved", len(moves))
	s.metrics.ObserveReparented(len(moves))
	s.commit(ctx, "reparent")
	return moves
}

// RelaunchFromHome handles the return-to-home-then-relaunch signal: a reparenting
// pass followed by a launch without a caller task, committed as one step.
func (s *Service) RelaunchFromHome(ctx context.Context, req LaunchRequest) (LaunchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req.CallerTaskID = 0
	req.FromFocused = false
	started := s.engine.clock()
	if _, err := s.engine.descriptors.Describe(req.Component); err != nil {
		s.rejectLaunch(req, err)
		return LaunchResult{}, err
	}

	moves := s.engine.reparent(false)
	plan, err := ResolveLaunch(s.engine.descriptors, s.engine.tasks, req)
	if err != nil {
		// Only component and caller lookups fail, and both were ruled out above.
		violation("relaunch after reparenting: %v", err)
	}
	s.logPlan("relaunch_from_home", plan)
	result := s.engine.apply(plan)
	result.Reparented = len(moves)
	s.metrics.ObserveReparented(len(moves))
	s.commit(ctx, "relaunch_from_home")
	s.metrics.ObserveLaunch(result.Outcome, plan.Descriptor.LaunchMode, s.engine.clock().Sub(started))
	return result, nil
}

// Reset finishes every record and destroys every task.
func (s *Service) Reset(ctx context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	finished := s.engine.reset()
	s.logger.Info("engine reset", "finished", finished)
	s.commit(ctx, "reset")
	return finished
}

// AllTasks returns every task, most-recently-focused first.
func (s *Service) AllTasks() []TaskView {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks := s.engine.tasks.AllTasks()
	out := make([]TaskView, 0, len(tasks))
	for i, task := range tasks {
		out = append(out, taskView(task, i == 0))
	}
	return out
}

// FocusedTask returns the front task when any task exists.
func (s *Service) FocusedTask() (TaskView, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task := s.engine.tasks.Focused()
	if task == nil {
		return TaskView{}, false
	}
	return taskView(task, true), true
}

// TotalActivityCount returns the number of live records across all tasks.
func (s *Service) TotalActivityCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.tasks.TotalActivityCount()
}

// Descriptors returns the component manifest in registration order.
func (s *Service) Descriptors() []domain.ActivityDescriptor {
	return s.engine.descriptors.All()
}

// JournalEvents lists the most recent journaled lifecycle events.
func (s *Service) JournalEvents(ctx context.Context, limit int) ([]domain.LifecycleEvent, error) {
	if s.journal == nil {
		return nil, ErrJournalUnavailable
	}
	return s.journal.ListEvents(ctx, limit)
}

// Subscribe returns a stream of committed lifecycle events and a cancel func.
// Slow subscribers drop events rather than block commits.
func (s *Service) Subscribe() (<-chan domain.LifecycleEvent, func()) {
	ch := make(chan domain.LifecycleEvent, s.eventBuffer)
	s.subMu.Lock()
	s.nextSubID++
	id := s.nextSubID
	s.subscribers[id] = ch
	s.subMu.Unlock()

	return ch, func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if c, ok := s.subscribers[id]; ok {
			delete(s.subscribers, id)
			close(c)
		}
	}
}

// commit validates the settled model and fans out the drained events.
func (s *Service) commit(ctx context.Context, op string) {
	if err := s.engine.tasks.Validate(); err != nil {
		s.logger.Error("invariant violation", "op", op, "err", err)
		panic(fmt.Errorf("after %s: %w", op, err))
	}
	events := s.engine.drain()
	s.metrics.SetTopology(s.engine.tasks.Len(), s.engine.tasks.TotalActivityCount())
	if len(events) == 0 {
		return
	}
	for _, ev := range events {
		s.metrics.ObserveLifecycle(ev.Kind)
	}
	s.publish(events)
	if s.journal == nil {
		return
	}
	if err := s.journal.AppendEvents(ctx, events); err != nil {
		s.metrics.ObserveJournalFailure()
		s.logger.Warn("journal append failed", "op", op, "events", len(events), "err", err)
	}
}

func (s *Service) publish(events []domain.LifecycleEvent) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subscribers {
		for _, ev := range events {
			select {
			case ch <- ev:
			default:
			}
		}
	}
}

func (s *Service) rejectLaunch(req LaunchRequest, err error) {
	reason := "invalid_request"
	switch {
	case errors.Is(err, domain.ErrUnknownComponent):
		reason = "unknown_component"
	case errors.Is(err, ErrUnknownTask):
		reason = "unknown_task"
	}
	s.metrics.ObserveLaunchRejected(reason)
	s.logger.Warn("launch rejected", "component", req.Component, "flags", req.Flags.String(), "err", err)
}

func (s *Service) logPlan(op string, plan Plan) {
	s.logger.Debug("launch plan resolved",
		"op", op,
		"component", plan.Descriptor.Component,
		"mode", plan.Descriptor.LaunchMode,
		"flags", plan.Request.Flags.String(),
		"target_task", plan.Target.TaskID,
		"target_affinity", plan.Target.Affinity,
		"new_task", plan.Target.New,
		"mutations", fmt.Sprint(plan.Kinds()),
		"outcome", plan.Outcome,
	)
}
