// Package rules declares the static shape of the rules an engine can run:
// what each rule produces, what it consumes, and what it may request while
// running. The declarations carry no behavior beyond their Func.
package rules

import (
	"context"
	"fmt"

	"github.com/vk/rulegrid/internal/value"
)

// Func is a rule's executable body. inputs are ordered like the rule's
// selectors.
type Func func(ctx context.Context, inputs []any) (any, error)

// Product names a computable type, optionally qualified by a variant.
type Product struct {
	Type    value.TypeID
	Variant string
}

// ProductOf is shorthand for an unqualified product.
func ProductOf(t value.TypeID) Product {
	return Product{Type: t}
}

// Describe renders the product with its type name.
func (p Product) Describe(types *value.Types) string {
	if p.Variant == "" {
		return types.Name(p.Type)
	}
	return fmt.Sprintf("%s[%s]", types.Name(p.Type), p.Variant)
}

// Selector is one required input of a rule.
type Selector struct {
	Product Product
}

// GetDecl permits a rule to issue Get(Product, Subject, ...) while running.
type GetDecl struct {
	Product value.TypeID
	Subject value.TypeID
}

// Kind distinguishes how a rule was registered.
type Kind int

const (
	Task Kind = iota
	Singleton
	Intrinsic
)

func (k Kind) String() string {
	switch k {
	case Task:
		return "task"
	case Singleton:
		return "singleton"
	case Intrinsic:
		return "intrinsic"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Rule is a declared graph edge: Output can be computed from Inputs by Func.
type Rule struct {
	Kind   Kind
	Name   string
	Output Product
	Inputs []Selector
	Gets   []GetDecl
	Func   Func
}

// Permits reports whether the rule declared Get(product, subject).
func (r *Rule) Permits(product, subject value.TypeID) bool {
	for _, g := range r.Gets {
		if g.Product == product && g.Subject == subject {
			return true
		}
	}
	return false
}

// Describe renders the rule's signature.
func (r *Rule) Describe(types *value.Types) string {
	s := fmt.Sprintf("%s(", r.Name)
	for i, in := range r.Inputs {
		if i > 0 {
			s += ", "
		}
		s += in.Product.Describe(types)
	}
	return s + ") -> " + r.Output.Describe(types)
}

// Query is an explicitly declared root request shape. Queries must compile.
type Query struct {
	Product Product
	Params  value.TypeSet
}

// Formatter renders the error for a value that is not a member of a union.
type Formatter func(member string) string

// Union declares an abstract base type dispatched by the runtime type of
// its subject.
type Union struct {
	Base      value.TypeID
	Formatter Formatter
}

// UnionMember registers Member as an implementation of Base.
type UnionMember struct {
	Base   value.TypeID
	Member value.TypeID
}
