package rulegraph

import (
	"fmt"
	"strings"

	"github.com/vk/rulegrid/internal/rules"
	"github.com/vk/rulegrid/internal/union"
	"github.com/vk/rulegrid/internal/value"
)

// EntryKind says how an Entry produces its value.
type EntryKind int

const (
	// ParamEntry is satisfied directly by a param of the product's type.
	ParamEntry EntryKind = iota
	// RuleEntry runs a single rule.
	RuleEntry
	// ComposedEntry concatenates the outputs of several partial rules.
	ComposedEntry
)

func (k EntryKind) String() string {
	switch k {
	case ParamEntry:
		return "param"
	case RuleEntry:
		return "rule"
	case ComposedEntry:
		return "composed"
	default:
		return fmt.Sprintf("EntryKind(%d)", int(k))
	}
}

type getKey struct {
	product value.TypeID
	subject value.TypeID
}

// Entry is one resolved way of computing a product.
type Entry struct {
	ID      int
	Kind    EntryKind
	Product rules.Product
	Rule    *rules.Rule
	Inputs  []*Entry
	Parts   []*Entry
	// Used is the set of param types the entry consumes, transitively.
	Used value.TypeSet

	gets     map[getKey]*Entry
	getOrder []getKey
}

// GetEdge returns the entry that serves Get(product, subject) issued by
// this entry's rule. For a union Get, subject is the member type.
func (e *Entry) GetEdge(product, subject value.TypeID) (*Entry, bool) {
	child, ok := e.gets[getKey{product: product, subject: subject}]
	return child, ok
}

// Describe renders the entry for traces and errors.
func (e *Entry) Describe(types *value.Types) string {
	switch e.Kind {
	case ParamEntry:
		return "Param(" + e.Product.Describe(types) + ")"
	case ComposedEntry:
		names := make([]string, len(e.Parts))
		for i, p := range e.Parts {
			names[i] = p.Rule.Name
		}
		return "Compose(" + strings.Join(names, " + ") + ") for " + e.Used.Names(types)
	default:
		return e.Rule.Name + " for " + e.Used.Names(types)
	}
}

func (e *Entry) children() []*Entry {
	out := make([]*Entry, 0, len(e.Inputs)+len(e.Parts)+len(e.getOrder))
	out = append(out, e.Inputs...)
	out = append(out, e.Parts...)
	for _, k := range e.getOrder {
		out = append(out, e.gets[k])
	}
	return out
}

func (e *Entry) addGet(k getKey, child *Entry) {
	if e.gets == nil {
		e.gets = make(map[getKey]*Entry)
	}
	if _, ok := e.gets[k]; !ok {
		e.getOrder = append(e.getOrder, k)
	}
	e.gets[k] = child
}

// RuleGraph is the immutable result of compilation.
type RuleGraph struct {
	types   *value.Types
	unions  *union.Membership
	roots   map[rootKey]*Entry
	order   []Root
	entries []*Entry
}

type rootKey struct {
	product rules.Product
	params  string
}

// Root is a compiled root request shape.
type Root struct {
	Product rules.Product
	Params  value.TypeSet
	Entry   *Entry
}

// Types returns the type table the graph was compiled against.
func (g *RuleGraph) Types() *value.Types {
	return g.types
}

// Unions returns the union membership table.
func (g *RuleGraph) Unions() *union.Membership {
	return g.unions
}

// Lookup returns the root entry computing product from exactly params.
func (g *RuleGraph) Lookup(params value.TypeSet, product rules.Product) (*Entry, bool) {
	e, ok := g.roots[rootKey{product: product, params: params.Key()}]
	return e, ok
}

// Roots returns the compiled roots in compilation order.
func (g *RuleGraph) Roots() []Root {
	return g.order
}

// Entries returns every entry reachable from a root, ordered by ID.
func (g *RuleGraph) Entries() []*Entry {
	return g.entries
}
