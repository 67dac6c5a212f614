package app

import (
	"fmt"
	"slices"

	"github.com/hylla/activitytask/internal/domain"
)

// DescriptorRegistry is the read-only component manifest.
type DescriptorRegistry struct {
	byComponent map[domain.ComponentID]domain.ActivityDescriptor
	order       []domain.ComponentID
}

// NewDescriptorRegistry constructs a registry, rejecting duplicate components.
func NewDescriptorRegistry(descriptors []domain.ActivityDescriptor) (*DescriptorRegistry, error) {
	reg := &DescriptorRegistry{
		byComponent: make(map[domain.ComponentID]domain.ActivityDescriptor, len(descriptors)),
		order:       make([]domain.ComponentID, 0, len(descriptors)),
	}
	for _, desc := range descriptors {
		if desc.Component == "" {
			return nil, domain.ErrInvalidComponent
		}
		if _, exists := reg.byComponent[desc.Component]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateComponent, desc.Component)
		}
		desc.FinishOnLaunchOf = slices.Clone(desc.FinishOnLaunchOf)
		reg.byComponent[desc.Component] = desc
		reg.order = append(reg.order, desc.Component)
	}
	return reg, nil
}

// Describe returns the descriptor registered for component.
func (r *DescriptorRegistry) Describe(component domain.ComponentID) (domain.ActivityDescriptor, error) {
	desc, ok := r.byComponent[component]
	if !ok {
		return domain.ActivityDescriptor{}, fmt.Errorf("%w: %q", domain.ErrUnknownComponent, component)
	}
	desc.FinishOnLaunchOf = slices.Clone(desc.FinishOnLaunchOf)
	return desc, nil
}

// All returns every descriptor in registration order.
func (r *DescriptorRegistry) All() []domain.ActivityDescriptor {
	out := make([]domain.ActivityDescriptor, 0, len(r.order))
	for _, component := range r.order {
		desc, _ := r.Describe(component)
		out = append(out, desc)
	}
	return out
}

// Len returns the number of registered components.
func (r *DescriptorRegistry) Len() int {
	return len(r.order)
}
