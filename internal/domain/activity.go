package domain

import (
	"strings"
	"time"
)

// ActivityRecord is one live instance of a component inside a task.
type ActivityRecord struct {
	ID         string
	Descriptor ActivityDescriptor
	State      LifecycleState
	CreatedAt  time.Time
}

// NewActivityRecord constructs a record in the Created state.
func NewActivityRecord(id string, desc ActivityDescriptor, now time.Time) (*ActivityRecord, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrInvalidID
	}
	if desc.Component == "" {
		return nil, ErrInvalidComponent
	}
	return &ActivityRecord{
		ID:         id,
		Descriptor: desc,
		State:      StateCreated,
		CreatedAt:  now.UTC(),
	}, nil
}

// Component returns the component this record instantiates.
func (r *ActivityRecord) Component() ComponentID {
	return r.Descriptor.Component
}

// IsLive reports whether the record has not been destroyed.
func (r *ActivityRecord) IsLive() bool {
	return r != nil && r.State != StateDestroyed
}

// Transition moves the record to next.
func (r *ActivityRecord) Transition(next LifecycleState) error {
	if err := ValidateTransition(r.State, next); err != nil {
		return err
	}
	r.State = next
	return nil
}
