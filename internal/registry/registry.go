package registry

import (
	"github.com/vk/rulegrid/internal/rules"
	"github.com/vk/rulegrid/internal/value"
)

// Module is the interface that all rule modules must implement to be registered.
type Module interface {
	Register(r *Registry)
}

// Registry holds every declaration for a single engine instance.
type Registry struct {
	types   *value.Types
	rules   []*rules.Rule
	names   map[string]struct{}
	roots   value.TypeSet
	queries []rules.Query
	unions  []rules.Union
	members []rules.UnionMember
}

// New creates and initializes a new Registry with its own type table.
func New() *Registry {
	return NewWithTypes(value.NewTypes())
}

// NewWithTypes creates a Registry that interns types into an existing table.
func NewWithTypes(types *value.Types) *Registry {
	return &Registry{
		types: types,
		names: make(map[string]struct{}),
	}
}

// Install registers every module in order.
func (r *Registry) Install(modules ...Module) {
	for _, m := range modules {
		m.Register(r)
	}
}

// Types returns the registry's type table.
func (r *Registry) Types() *value.Types {
	return r.types
}

// Rules returns the registered rules in registration order.
func (r *Registry) Rules() []*rules.Rule {
	return r.rules
}

// Roots returns the registered root types.
func (r *Registry) Roots() value.TypeSet {
	return r.roots
}

// Queries returns the registered queries.
func (r *Registry) Queries() []rules.Query {
	return r.queries
}

// Unions returns the declared unions.
func (r *Registry) Unions() []rules.Union {
	return r.unions
}

// UnionMembers returns the registered union members in registration order.
func (r *Registry) UnionMembers() []rules.UnionMember {
	return r.members
}
