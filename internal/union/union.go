// Package union resolves requests for an abstract union type to the member
// type registered for the runtime type of the subject.
package union

import (
	"fmt"

	"github.com/vk/rulegrid/internal/rules"
	"github.com/vk/rulegrid/internal/value"
)

// Membership is the immutable union table of one rule graph.
type Membership struct {
	types      *value.Types
	members    map[value.TypeID][]value.TypeID
	formatters map[value.TypeID]rules.Formatter
}

// MembershipError reports a subject whose type is not a member of the union
// it was requested as.
type MembershipError struct {
	Base    string
	Member  string
	Message string
}

func (e *MembershipError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("type %s is not a registered member of union %s", e.Member, e.Base)
}

// InvalidUnionError reports a malformed union declaration.
type InvalidUnionError struct {
	Base   string
	Reason string
}

func (e *InvalidUnionError) Error() string {
	return fmt.Sprintf("invalid union %s: %s", e.Base, e.Reason)
}

// New builds the membership table, rejecting members of undeclared unions
// and members that are unions themselves.
func New(types *value.Types, unions []rules.Union, members []rules.UnionMember) (*Membership, []error) {
	m := &Membership{
		types:      types,
		members:    make(map[value.TypeID][]value.TypeID),
		formatters: make(map[value.TypeID]rules.Formatter),
	}
	for _, u := range unions {
		m.members[u.Base] = nil
		if u.Formatter != nil {
			m.formatters[u.Base] = u.Formatter
		}
	}

	var errs []error
	for _, mem := range members {
		if _, ok := m.members[mem.Base]; !ok {
			errs = append(errs, &InvalidUnionError{
				Base:   types.Name(mem.Base),
				Reason: fmt.Sprintf("member %s registered for a type that is not a declared union", types.Name(mem.Member)),
			})
			continue
		}
		if _, ok := m.members[mem.Member]; ok {
			errs = append(errs, &InvalidUnionError{
				Base:   types.Name(mem.Base),
				Reason: fmt.Sprintf("member %s is itself a union", types.Name(mem.Member)),
			})
			continue
		}
		m.members[mem.Base] = append(m.members[mem.Base], mem.Member)
	}
	return m, errs
}

// IsUnion reports whether t was declared as a union base.
func (m *Membership) IsUnion(t value.TypeID) bool {
	_, ok := m.members[t]
	return ok
}

// Members returns the members of base in registration order.
func (m *Membership) Members(base value.TypeID) []value.TypeID {
	return m.members[base]
}

// Dispatch checks that concrete is a member of base.
func (m *Membership) Dispatch(base, concrete value.TypeID) error {
	for _, member := range m.members[base] {
		if member == concrete {
			return nil
		}
	}
	err := &MembershipError{Base: m.types.Name(base), Member: m.types.Name(concrete)}
	if f, ok := m.formatters[base]; ok {
		err.Message = f(err.Member)
	}
	return err
}
