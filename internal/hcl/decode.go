package hcl

import (
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strings"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
)

var (
	ctyValueType = reflect.TypeOf(cty.Value{})
	remainType   = reflect.TypeOf(map[string]cty.Value(nil))
)

// FieldError reports a field whose value could not be bound to its Go
// field.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("field %q: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// UnsupportedFieldsError reports fields the target type does not declare.
type UnsupportedFieldsError struct {
	Type   string
	Fields []string
}

func (e *UnsupportedFieldsError) Error() string {
	return fmt.Sprintf("%s does not support field(s): %s", e.Type, strings.Join(e.Fields, ", "))
}

// structField is a tagged field of a target struct, including fields
// promoted from embedded structs.
type structField struct {
	name  string
	value reflect.Value
	ref   bool
}

// Decode binds fields onto the struct target points to. Fields are matched
// to `cty:"name"` tags, and embedded structs without a tag contribute their
// own tagged fields. Fields the type does not declare are rejected unless it
// has a `cty:",remain"` field of type map[string]cty.Value, which then
// receives them. Fields tagged `cty:"name,ref"` are accepted but left for
// the caller to bind.
func Decode(fields map[string]cty.Value, target any) error {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("target must be a non-nil pointer to a struct, got %T", target)
	}
	return decodeStruct(fields, rv.Elem())
}

func decodeStruct(fields map[string]cty.Value, sv reflect.Value) error {
	var (
		tagged []structField
		remain reflect.Value
	)
	collectFields(sv, &tagged, &remain)

	declared := make(map[string]bool, len(tagged))
	for _, f := range tagged {
		declared[f.name] = true
		val, ok := fields[f.name]
		if !ok || f.ref {
			continue
		}
		if err := decodeValue(val, f.value); err != nil {
			return &FieldError{Field: f.name, Err: err}
		}
	}

	var extra []string
	for _, name := range slices.Sorted(maps.Keys(fields)) {
		if !declared[name] {
			extra = append(extra, name)
		}
	}
	if len(extra) == 0 {
		return nil
	}
	if !remain.IsValid() {
		return &UnsupportedFieldsError{Type: sv.Type().String(), Fields: extra}
	}
	rest := make(map[string]cty.Value, len(extra))
	for _, name := range extra {
		rest[name] = fields[name]
	}
	remain.Set(reflect.ValueOf(rest))
	return nil
}

func collectFields(sv reflect.Value, out *[]structField, remain *reflect.Value) {
	st := sv.Type()
	for i := 0; i < st.NumField(); i++ {
		f := st.Field(i)
		tag, hasTag := f.Tag.Lookup("cty")
		if !hasTag {
			if f.Anonymous && f.Type.Kind() == reflect.Struct {
				collectFields(sv.Field(i), out, remain)
			}
			continue
		}
		if !f.IsExported() {
			continue
		}
		name, opt, _ := strings.Cut(tag, ",")
		switch {
		case opt == "remain" && f.Type == remainType:
			*remain = sv.Field(i)
		case name == "" || name == "-":
		case opt == "ref":
			*out = append(*out, structField{name: name, value: sv.Field(i), ref: true})
		default:
			*out = append(*out, structField{name: name, value: sv.Field(i)})
		}
	}
}

// decodeValue binds val onto the settable target, recursing through
// structs, slices and pointers and handing everything else to gocty.
func decodeValue(val cty.Value, target reflect.Value) error {
	t := target.Type()
	if t == ctyValueType {
		target.Set(reflect.ValueOf(val))
		return nil
	}
	if val.IsNull() {
		return nil
	}
	if !val.IsWhollyKnown() {
		return fmt.Errorf("value is not known")
	}

	switch t.Kind() {
	case reflect.Struct:
		vt := val.Type()
		if !vt.IsObjectType() && !vt.IsMapType() {
			return fmt.Errorf("cannot decode %s into %s", vt.FriendlyName(), t)
		}
		return decodeStruct(val.AsValueMap(), target)

	case reflect.Pointer:
		p := reflect.New(t.Elem())
		if err := decodeValue(val, p.Elem()); err != nil {
			return err
		}
		target.Set(p)
		return nil

	case reflect.Slice:
		vt := val.Type()
		if vt.IsObjectType() && t.Elem().Kind() == reflect.Struct {
			val = cty.TupleVal([]cty.Value{val})
			vt = val.Type()
		}
		if !vt.IsListType() && !vt.IsTupleType() && !vt.IsSetType() {
			return fmt.Errorf("cannot decode %s into %s", vt.FriendlyName(), t)
		}
		elems := val.AsValueSlice()
		s := reflect.MakeSlice(t, len(elems), len(elems))
		for i, elem := range elems {
			if err := decodeValue(elem, s.Index(i)); err != nil {
				return fmt.Errorf("element %d: %w", i, err)
			}
		}
		target.Set(s)
		return nil

	case reflect.Interface:
		if t.NumMethod() != 0 {
			return fmt.Errorf("cannot decode into interface %s", t)
		}
		native, err := toNative(val)
		if err != nil {
			return err
		}
		if native != nil {
			target.Set(reflect.ValueOf(native))
		}
		return nil
	}

	ty, err := gocty.ImpliedType(reflect.Zero(t).Interface())
	if err != nil {
		return fmt.Errorf("cannot imply a cty type for %s: %w", t, err)
	}
	converted, err := convert.Convert(val, ty)
	if err != nil {
		return fmt.Errorf("cannot convert %s to %s: %w", val.Type().FriendlyName(), ty.FriendlyName(), err)
	}
	return gocty.FromCtyValue(converted, target.Addr().Interface())
}

// toNative converts val into plain Go values: string, float64, bool,
// []any and map[string]any.
func toNative(val cty.Value) (any, error) {
	if val.IsNull() {
		return nil, nil
	}
	t := val.Type()
	switch {
	case t == cty.String:
		return val.AsString(), nil
	case t == cty.Number:
		f, _ := val.AsBigFloat().Float64()
		return f, nil
	case t == cty.Bool:
		return val.True(), nil
	case t.IsListType() || t.IsTupleType() || t.IsSetType():
		out := make([]any, 0, val.LengthInt())
		for _, elem := range val.AsValueSlice() {
			v, err := toNative(elem)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case t.IsObjectType() || t.IsMapType():
		out := make(map[string]any)
		for k, elem := range val.AsValueMap() {
			v, err := toNative(elem)
			if err != nil {
				return nil, err
			}
			out[k] = v
		}
		return out, nil
	default:
		return nil, fmt.Errorf("cannot convert %s to a native value", t.FriendlyName())
	}
}
