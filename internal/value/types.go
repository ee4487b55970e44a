package value

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// TypeID is an interned identifier for a runtime type. The zero TypeID is
// never assigned.
type TypeID uint32

// Valid reports whether the id was assigned by a Types table.
func (id TypeID) Valid() bool {
	return id != 0
}

// Types assigns stable ids to reflect.Types. Interning the same type twice
// yields the same id.
type Types struct {
	mu    sync.RWMutex
	ids   map[reflect.Type]TypeID
	types []reflect.Type
}

// NewTypes creates an empty type table.
func NewTypes() *Types {
	return &Types{
		ids:   make(map[reflect.Type]TypeID),
		types: []reflect.Type{nil},
	}
}

// Of interns T in the given table.
func Of[T any](t *Types) TypeID {
	return t.Intern(reflect.TypeFor[T]())
}

// Intern returns the id for rt, assigning a new one on first sight.
func (t *Types) Intern(rt reflect.Type) TypeID {
	if rt == nil {
		return 0
	}
	t.mu.RLock()
	id, ok := t.ids[rt]
	t.mu.RUnlock()
	if ok {
		return id
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if id, ok := t.ids[rt]; ok {
		return id
	}
	id = TypeID(len(t.types))
	t.types = append(t.types, rt)
	t.ids[rt] = id
	return id
}

// IDOf interns the dynamic type of v.
func (t *Types) IDOf(v any) TypeID {
	return t.Intern(reflect.TypeOf(v))
}

// Lookup returns the id of rt without interning it.
func (t *Types) Lookup(rt reflect.Type) (TypeID, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	id, ok := t.ids[rt]
	return id, ok
}

// Type returns the reflect.Type behind id, or nil for an unknown id.
func (t *Types) Type(id TypeID) reflect.Type {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if int(id) >= len(t.types) {
		return nil
	}
	return t.types[id]
}

// Name renders id for diagnostics.
func (t *Types) Name(id TypeID) string {
	rt := t.Type(id)
	if rt == nil {
		return fmt.Sprintf("TypeID(%d)", id)
	}
	return rt.String()
}

// Len returns the number of interned types.
func (t *Types) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.types) - 1
}

// IsSubtype reports whether sub can stand in for super: the types are equal,
// super is an interface sub implements, or sub embeds super.
func (t *Types) IsSubtype(sub, super TypeID) bool {
	return isSubtype(t.Type(sub), t.Type(super))
}

func isSubtype(sub, super reflect.Type) bool {
	if sub == nil || super == nil {
		return false
	}
	if sub == super {
		return true
	}
	if super.Kind() == reflect.Interface {
		return sub.Implements(super)
	}
	return embeds(sub, super, 0)
}

// embeds walks anonymous struct fields looking for target.
func embeds(rt, target reflect.Type, depth int) bool {
	if rt.Kind() == reflect.Pointer {
		rt = rt.Elem()
	}
	if rt.Kind() != reflect.Struct || depth > 8 {
		return false
	}
	for i := range rt.NumField() {
		f := rt.Field(i)
		if !f.Anonymous {
			continue
		}
		ft := f.Type
		if ft == target || (ft.Kind() == reflect.Pointer && ft.Elem() == target) {
			return true
		}
		if embeds(ft, target, depth+1) {
			return true
		}
	}
	return false
}

// ConstraintKind selects how a Constraint compares types.
type ConstraintKind int

const (
	// Exactly accepts only the listed types.
	Exactly ConstraintKind = iota
	// SubclassesOf accepts the listed types and anything that can stand in
	// for them.
	SubclassesOf
	// SuperclassesOf accepts the listed types and anything they can stand in
	// for.
	SuperclassesOf
)

func (k ConstraintKind) String() string {
	switch k {
	case Exactly:
		return "Exactly"
	case SubclassesOf:
		return "SubclassesOf"
	case SuperclassesOf:
		return "SuperclassesOf"
	default:
		return fmt.Sprintf("ConstraintKind(%d)", int(k))
	}
}

// Constraint is a predicate over TypeIDs.
type Constraint struct {
	Kind  ConstraintKind
	Types []TypeID
}

// NewConstraint builds a constraint over the given types.
func NewConstraint(kind ConstraintKind, types ...TypeID) Constraint {
	return Constraint{Kind: kind, Types: types}
}

// SatisfiedBy reports whether id satisfies c.
func (t *Types) SatisfiedBy(c Constraint, id TypeID) bool {
	for _, want := range c.Types {
		switch c.Kind {
		case Exactly:
			if id == want {
				return true
			}
		case SubclassesOf:
			if t.IsSubtype(id, want) {
				return true
			}
		case SuperclassesOf:
			if t.IsSubtype(want, id) {
				return true
			}
		}
	}
	return false
}

// Describe renders c, e.g. "SuperclassesOf(targets.Library)".
func (t *Types) Describe(c Constraint) string {
	names := make([]string, len(c.Types))
	for i, id := range c.Types {
		names[i] = t.Name(id)
	}
	return fmt.Sprintf("%s(%s)", c.Kind, strings.Join(names, ", "))
}
