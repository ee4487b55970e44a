package hydration

import (
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strings"
)

// Kinds maps record kinds, the block types of top-level records, to the Go
// struct types they are decoded onto.
type Kinds map[string]reflect.Type

// NewKinds creates an empty kind table.
func NewKinds() Kinds {
	return make(Kinds)
}

// RegisterKind binds kind to T. T must be a struct type. It panics if kind
// is already bound or T has a malformed reference field.
func RegisterKind[T any](k Kinds, kind string) {
	rt := reflect.TypeFor[T]()
	if rt.Kind() != reflect.Struct {
		panic(fmt.Sprintf("record kind '%s' must be a struct type, got %s", kind, rt))
	}
	for _, f := range refFields(rt) {
		if err := f.check(); err != nil {
			panic(fmt.Sprintf("record kind '%s': %v", kind, err))
		}
	}
	if _, exists := k[kind]; exists {
		panic(fmt.Sprintf("record kind '%s' already registered", kind))
	}
	k[kind] = rt
}

// Names returns the registered kinds, sorted.
func (k Kinds) Names() []string {
	return slices.Sorted(maps.Keys(k))
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}

// declaresField reports whether rt, or a struct it embeds, has a field
// tagged `cty:"name"`.
func declaresField(rt reflect.Type, name string) bool {
	for i := range rt.NumField() {
		f := rt.Field(i)
		tag, ok := f.Tag.Lookup("cty")
		if !ok {
			if f.Anonymous && f.Type.Kind() == reflect.Struct && declaresField(f.Type, name) {
				return true
			}
			continue
		}
		if n, _, _ := strings.Cut(tag, ","); n == name {
			return true
		}
	}
	return false
}

// refField is a field tagged `cty:"name,ref"`. In a declaration it holds an
// address, a list of addresses or a map of them, and the decoded object
// receives the hydrated objects those addresses name.
type refField struct {
	name  string
	index []int
	typ   reflect.Type
}

// refFields lists the reference fields of rt, including those promoted from
// embedded structs.
func refFields(rt reflect.Type) []refField {
	var out []refField
	for _, f := range reflect.VisibleFields(rt) {
		tag, ok := f.Tag.Lookup("cty")
		if !ok || !f.IsExported() {
			continue
		}
		name, opt, _ := strings.Cut(tag, ",")
		if opt == "ref" && name != "" {
			out = append(out, refField{name: name, index: f.Index, typ: f.Type})
		}
	}
	return out
}

// elem is the type each referenced object is assigned to.
func (f refField) elem() reflect.Type {
	switch f.typ.Kind() {
	case reflect.Slice, reflect.Map:
		return f.typ.Elem()
	default:
		return f.typ
	}
}

func (f refField) check() error {
	if f.typ.Kind() == reflect.Map && f.typ.Key().Kind() != reflect.String {
		return fmt.Errorf("reference field %q must be keyed by strings, got %s", f.name, f.typ)
	}
	switch f.elem().Kind() {
	case reflect.Pointer, reflect.Interface:
		return nil
	default:
		return fmt.Errorf("reference field %q must hold pointers or interfaces, got %s", f.name, f.typ)
	}
}

// build assembles the field's value from objects, in the order the
// addresses were read. keys name map entries.
func (f refField) build(keys []string, objs []reflect.Value) reflect.Value {
	switch f.typ.Kind() {
	case reflect.Slice:
		s := reflect.MakeSlice(f.typ, len(objs), len(objs))
		for i, o := range objs {
			s.Index(i).Set(o)
		}
		return s
	case reflect.Map:
		m := reflect.MakeMapWithSize(f.typ, len(objs))
		for i, o := range objs {
			m.SetMapIndex(reflect.ValueOf(keys[i]).Convert(f.typ.Key()), o)
		}
		return m
	default:
		return objs[0]
	}
}
