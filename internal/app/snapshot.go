package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/hylla/activitytask/internal/domain"
)

// SnapshotVersion tags the exported snapshot format.
const SnapshotVersion = "atask.snapshot.v1"

// ErrInvalidSnapshot reports a snapshot that breaks the model invariants.
var ErrInvalidSnapshot = errors.New("invalid snapshot")

// Snapshot is a point-in-time export of the whole task model. It is a
// diagnostic artifact and is never loaded back into an engine.
type Snapshot struct {
	Version       string     `json:"version"`
	TakenAt       time.Time  `json:"taken_at"`
	ActivityCount int        `json:"activity_count"`
	Tasks         []TaskView `json:"tasks"`
}

// Snapshot exports the settled model in one consistent read.
func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks := s.engine.tasks.AllTasks()
	snap := Snapshot{
		Version:       SnapshotVersion,
		TakenAt:       s.engine.clock().UTC(),
		ActivityCount: s.engine.tasks.TotalActivityCount(),
		Tasks:         make([]TaskView, 0, len(tasks)),
	}
	for i, task := range tasks {
		snap.Tasks = append(snap.Tasks, taskView(task, i == 0))
	}
	return snap
}

// Validate checks the structural invariants an exported model must satisfy.
func (s Snapshot) Validate() error {
	if s.Version != SnapshotVersion {
		return fmt.Errorf("unsupported snapshot version %q: %w", s.Version, ErrInvalidSnapshot)
	}
	taskIDs := map[int]struct{}{}
	recordIDs := map[string]struct{}{}
	resumed := 0
	count := 0
	for i, task := range s.Tasks {
		if _, ok := taskIDs[task.ID]; ok {
			return fmt.Errorf("duplicate task id %d: %w", task.ID, ErrInvalidSnapshot)
		}
		taskIDs[task.ID] = struct{}{}
		if len(task.Activities) == 0 {
			return fmt.Errorf("task %d is empty: %w", task.ID, ErrInvalidSnapshot)
		}
		if task.Focused != (i == 0) {
			return fmt.Errorf("task %d focus flag out of order: %w", task.ID, ErrInvalidSnapshot)
		}
		for _, rec := range task.Activities {
			if _, ok := recordIDs[rec.ID]; ok {
				return fmt.Errorf("duplicate activity id %q: %w", rec.ID, ErrInvalidSnapshot)
			}
			recordIDs[rec.ID] = struct{}{}
			switch rec.State {
			case domain.StateResumed:
				resumed++
			case domain.StateDestroyed:
				return fmt.Errorf("destroyed activity %q still in task %d: %w", rec.ID, task.ID, ErrInvalidSnapshot)
			}
			if rec.LaunchMode == domain.LaunchModeSingleInstance && len(task.Activities) != 1 {
				return fmt.Errorf("single-instance activity %q shares task %d: %w", rec.ID, task.ID, ErrInvalidSnapshot)
			}
			count++
		}
	}
	if resumed > 1 {
		return fmt.Errorf("%d resumed activities: %w", resumed, ErrInvalidSnapshot)
	}
	if count != s.ActivityCount {
		return fmt.Errorf("activity_count %d, found %d records: %w", s.ActivityCount, count, ErrInvalidSnapshot)
	}
	return nil
}
