package value

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Value is an object reference paired with its interned key.
type Value struct {
	key Key
	obj any
}

// Key returns the value's interned key.
func (v Value) Key() Key { return v.key }

// Type returns the type the value was interned under.
func (v Value) Type() TypeID { return v.key.Type }

// Get returns the wrapped object.
func (v Value) Get() any { return v.obj }

// TypeSet is a sorted set of TypeIDs. Methods never mutate the receiver.
type TypeSet []TypeID

// NewTypeSet builds a set from ids in any order.
func NewTypeSet(ids ...TypeID) TypeSet {
	s := slices.Clone(ids)
	slices.Sort(s)
	return slices.Compact(s)
}

// Contains reports whether id is in the set.
func (s TypeSet) Contains(id TypeID) bool {
	_, ok := slices.BinarySearch(s, id)
	return ok
}

// With returns the set plus id.
func (s TypeSet) With(id TypeID) TypeSet {
	if s.Contains(id) {
		return s
	}
	return NewTypeSet(append(slices.Clone(s), id)...)
}

// Without returns the set minus id.
func (s TypeSet) Without(id TypeID) TypeSet {
	i, ok := slices.BinarySearch(s, id)
	if !ok {
		return s
	}
	return slices.Delete(slices.Clone(s), i, i+1)
}

// Union returns the union of both sets.
func (s TypeSet) Union(o TypeSet) TypeSet {
	return NewTypeSet(append(slices.Clone(s), o...)...)
}

// Intersect returns the ids present in both sets.
func (s TypeSet) Intersect(o TypeSet) TypeSet {
	var out TypeSet
	for _, id := range s {
		if o.Contains(id) {
			out = append(out, id)
		}
	}
	return out
}

// IsSubsetOf reports whether every id in s is in o.
func (s TypeSet) IsSubsetOf(o TypeSet) bool {
	for _, id := range s {
		if !o.Contains(id) {
			return false
		}
	}
	return true
}

// Equal reports whether both sets hold the same ids.
func (s TypeSet) Equal(o TypeSet) bool {
	return slices.Equal(s, o)
}

// Key is a canonical string form usable as a map key.
func (s TypeSet) Key() string {
	var b strings.Builder
	for i, id := range s {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatUint(uint64(id), 10))
	}
	return b.String()
}

// Names renders the set with type names.
func (s TypeSet) Names(t *Types) string {
	names := make([]string, len(s))
	for i, id := range s {
		names[i] = t.Name(id)
	}
	return "(" + strings.Join(names, ", ") + ")"
}

// Params is an immutable set of values holding at most one value per type.
type Params struct {
	vals []Value
}

// NewParams builds a Params set. A later value replaces an earlier value of
// the same type.
func NewParams(vals ...Value) Params {
	var p Params
	for _, v := range vals {
		p = p.With(v)
	}
	return p
}

// With returns a copy of p containing v.
func (p Params) With(v Value) Params {
	i, found := slices.BinarySearchFunc(p.vals, v.Type(), func(e Value, t TypeID) int {
		return int(e.Type()) - int(t)
	})
	vals := slices.Clone(p.vals)
	if found {
		vals[i] = v
	} else {
		vals = slices.Insert(vals, i, v)
	}
	return Params{vals: vals}
}

// Find returns the value of type t.
func (p Params) Find(t TypeID) (Value, bool) {
	for _, v := range p.vals {
		if v.Type() == t {
			return v, true
		}
	}
	return Value{}, false
}

// Types returns the set of types present.
func (p Params) Types() TypeSet {
	s := make(TypeSet, len(p.vals))
	for i, v := range p.vals {
		s[i] = v.Type()
	}
	return s
}

// Restrict keeps only the values whose type is in s.
func (p Params) Restrict(s TypeSet) Params {
	var vals []Value
	for _, v := range p.vals {
		if s.Contains(v.Type()) {
			vals = append(vals, v)
		}
	}
	return Params{vals: vals}
}

// Values returns the values ordered by type.
func (p Params) Values() []Value {
	return slices.Clone(p.vals)
}

// Len returns the number of values.
func (p Params) Len() int {
	return len(p.vals)
}

// Contains reports whether one of the values has key k.
func (p Params) Contains(k Key) bool {
	for _, v := range p.vals {
		if v.Key() == k {
			return true
		}
	}
	return false
}

// String is the canonical form used in node keys.
func (p Params) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, v := range p.vals {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(v.Key().String())
	}
	b.WriteByte('}')
	return b.String()
}

// Describe renders the params for humans.
func (p Params) Describe(t *Types) string {
	parts := make([]string, len(p.vals))
	for i, v := range p.vals {
		parts[i] = t.Name(v.Type()) + "(" + describeObject(v.Get()) + ")"
	}
	return "Params(" + strings.Join(parts, ", ") + ")"
}

func describeObject(obj any) string {
	if s, ok := obj.(interface{ String() string }); ok {
		return s.String()
	}
	if id, ok := obj.(Identifiable); ok {
		return id.Identity()
	}
	return strings.TrimSpace(strings.SplitN(fmt.Sprint(obj), "\n", 2)[0])
}
