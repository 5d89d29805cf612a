// Package registry holds the static catalog of analysis capabilities.
// Descriptors are created once at process start and never mutated, so the
// registry is safe for concurrent use without locking.
package registry

import (
	"fmt"

	"github.com/arvhal/causeway/pkg/api"
)

// RoleKind is the semantic kind of an input role.
type RoleKind string

const (
	RoleTreatment     RoleKind = "treatment"
	RoleOutcome       RoleKind = "outcome"
	RoleTime          RoleKind = "time"
	RoleEvent         RoleKind = "event"
	RoleGroup         RoleKind = "group"
	RoleCovariateList RoleKind = "covariate-list"
)

// Role declares one input of a capability: its name, its semantic kind, and
// whether the capability refuses to run without it.
type Role struct {
	Name     string
	Kind     RoleKind
	Required bool
}

// Invocation is the backend invocation template of a capability. Exe names
// the backend program (resolved against the dispatcher's backend directory
// when relative). RoleFlags maps role name to the command-line flag the
// backend expects; the dispatcher builds argv strictly from this mapping.
type Invocation struct {
	Exe       string
	RoleFlags map[string]string
}

// Descriptor describes one registered capability. Immutable after
// construction.
type Descriptor struct {
	// ID is the unique capability id, e.g. "causal_ate".
	ID string

	// Tool is the backend tool name surfaced as selected_tool in responses,
	// e.g. "causalmodels".
	Tool string

	// Label is a short human-readable name.
	Label string

	// Description is a one-sentence summary handed to the LLM classifier.
	Description string

	// Roles lists the capability's input roles in declaration order.
	Roles []Role

	// Keywords are the request-text tokens the rule classifier scores on.
	// Multi-word entries match as phrases.
	Keywords []string

	// Backend is the process invocation template.
	Backend Invocation
}

// RequiredRoles returns the names of all required roles in order.
func (d *Descriptor) RequiredRoles() []string {
	var out []string
	for _, r := range d.Roles {
		if r.Required {
			out = append(out, r.Name)
		}
	}
	return out
}

// Role returns the named role, or false if the capability does not declare it.
func (d *Descriptor) Role(name string) (Role, bool) {
	for _, r := range d.Roles {
		if r.Name == name {
			return r, true
		}
	}
	return Role{}, false
}

// Info converts the descriptor to its wire representation.
func (d *Descriptor) Info() api.CapabilityInfo {
	info := api.CapabilityInfo{
		ID:          d.ID,
		Tool:        d.Tool,
		Label:       d.Label,
		Description: d.Description,
	}
	for _, r := range d.Roles {
		info.Roles = append(info.Roles, api.RoleInfo{
			Name:     r.Name,
			Kind:     string(r.Kind),
			Required: r.Required,
		})
	}
	return info
}

// Registry is an ordered, read-only catalog of capability descriptors.
// Registry order is the tie-break order everywhere a deterministic ordering
// is needed (classifier ties, LLM candidate lists).
type Registry struct {
	ordered []*Descriptor
	byID    map[string]*Descriptor
}

// New builds a Registry from descriptors, preserving order. Duplicate ids
// are a programming error and rejected.
func New(descriptors ...*Descriptor) (*Registry, error) {
	r := &Registry{
		byID: make(map[string]*Descriptor, len(descriptors)),
	}
	for _, d := range descriptors {
		if d.ID == "" {
			return nil, fmt.Errorf("registry: descriptor with empty id")
		}
		if _, dup := r.byID[d.ID]; dup {
			return nil, fmt.Errorf("registry: duplicate capability id %q", d.ID)
		}
		r.ordered = append(r.ordered, d)
		r.byID[d.ID] = d
	}
	return r, nil
}

// List returns all descriptors in registration order. The returned slice
// must not be modified.
func (r *Registry) List() []*Descriptor {
	return r.ordered
}

// Get returns the descriptor for the given id, or an api.NewNotFoundError
// when the id is not registered.
func (r *Registry) Get(id string) (*Descriptor, error) {
	d, ok := r.byID[id]
	if !ok {
		return nil, api.NewNotFoundError(fmt.Sprintf("unknown capability %q", id))
	}
	return d, nil
}

// Has reports whether the given capability id is registered.
func (r *Registry) Has(id string) bool {
	_, ok := r.byID[id]
	return ok
}

// Infos returns the wire representation of every registered capability.
func (r *Registry) Infos() []api.CapabilityInfo {
	out := make([]api.CapabilityInfo, 0, len(r.ordered))
	for _, d := range r.ordered {
		out = append(out, d.Info())
	}
	return out
}
