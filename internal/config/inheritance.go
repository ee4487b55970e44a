package config

import (
	"fmt"
	"maps"
	"slices"

	"github.com/zclconf/go-cty/cty"
)

// ResolveInheritance folds parent and merges into child and returns the
// resulting record. It is pure: none of the inputs are modified.
//
// The parent is an overlay: a field the child sets wins. Merges apply left
// to right. Object and map fields are updated key by key, list fields are
// concatenated, and any other field is only taken if no earlier source set
// it. The inheritance references, the abstract flag and the kind are never
// inherited, so the result has no Extends or Merges.
func ResolveInheritance(child Struct, parent *Struct, merges []Struct) (Struct, error) {
	out := Struct{
		Kind:     child.Kind,
		Name:     child.Name,
		Abstract: child.Abstract,
		Range:    child.Range,
		Fields:   make(map[string]cty.Value, len(child.Fields)),
	}
	for k, v := range child.Fields {
		if !v.IsNull() {
			out.Fields[k] = v
		}
	}
	deps := slices.Clone(child.Dependencies)

	if parent != nil {
		for k, v := range parent.Fields {
			if _, ok := out.Fields[k]; !ok && !v.IsNull() {
				out.Fields[k] = v
			}
		}
		if len(deps) == 0 {
			deps = slices.Clone(parent.Dependencies)
		}
	}

	for i, m := range merges {
		for _, k := range slices.Sorted(maps.Keys(m.Fields)) {
			v := m.Fields[k]
			if v.IsNull() {
				continue
			}
			cur, ok := out.Fields[k]
			if !ok {
				out.Fields[k] = v
				continue
			}
			switch {
			case isMapLike(v.Type()):
				if !isMapLike(cur.Type()) {
					return Struct{}, mergeError(i, k, cur, v)
				}
				out.Fields[k] = mergeMaps(cur, v)
			case isListLike(v.Type()):
				if !isListLike(cur.Type()) {
					return Struct{}, mergeError(i, k, cur, v)
				}
				out.Fields[k] = concatLists(cur, v)
			}
		}
		deps = append(deps, m.Dependencies...)
	}

	out.Dependencies = dedupe(deps)
	return out, nil
}

func mergeError(idx int, field string, cur, v cty.Value) error {
	return fmt.Errorf("merges[%d]: cannot merge %s into field %q holding %s", idx, v.Type().FriendlyName(), field, cur.Type().FriendlyName())
}

func isMapLike(t cty.Type) bool {
	return t.IsObjectType() || t.IsMapType()
}

func isListLike(t cty.Type) bool {
	return t.IsListType() || t.IsTupleType() || t.IsSetType()
}

func mergeMaps(base, update cty.Value) cty.Value {
	m := make(map[string]cty.Value)
	maps.Copy(m, base.AsValueMap())
	maps.Copy(m, update.AsValueMap())
	return cty.ObjectVal(m)
}

func concatLists(base, more cty.Value) cty.Value {
	elems := append(base.AsValueSlice(), more.AsValueSlice()...)
	if len(elems) == 0 {
		return cty.EmptyTupleVal
	}
	return cty.TupleVal(elems)
}

func dedupe(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
