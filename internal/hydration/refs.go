package hydration

import (
	"context"
	"fmt"
	"reflect"

	"github.com/vk/rulegrid/internal/address"
	"github.com/vk/rulegrid/internal/config"
	"github.com/vk/rulegrid/internal/engine"
	"github.com/vk/rulegrid/internal/value"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
)

// specs reads the address specs held by v. For map fields keys holds the
// entry names, sorted, in the same order.
func (f refField) specs(v cty.Value) (keys, specs []string, err error) {
	switch f.typ.Kind() {
	case reflect.Slice:
		err = fromCty(v, cty.List(cty.String), &specs)
	case reflect.Map:
		var m map[string]string
		if err = fromCty(v, cty.Map(cty.String), &m); err == nil {
			keys = sortedKeys(m)
			for _, k := range keys {
				specs = append(specs, m[k])
			}
		}
	default:
		var s string
		if err = fromCty(v, cty.String, &s); err == nil {
			specs = []string{s}
		}
	}
	return keys, specs, err
}

// canonical renders the parsed addresses back in the field's shape.
func (f refField) canonical(keys []string, addrs []address.Address) cty.Value {
	vals := make([]cty.Value, len(addrs))
	for i, a := range addrs {
		vals[i] = cty.StringVal(a.String())
	}
	switch f.typ.Kind() {
	case reflect.Slice:
		if len(vals) == 0 {
			return cty.ListValEmpty(cty.String)
		}
		return cty.ListVal(vals)
	case reflect.Map:
		if len(vals) == 0 {
			return cty.MapValEmpty(cty.String)
		}
		m := make(map[string]cty.Value, len(vals))
		for i, k := range keys {
			m[k] = vals[i]
		}
		return cty.MapVal(m)
	default:
		return vals[0]
	}
}

func fromCty(v cty.Value, ty cty.Type, target any) error {
	converted, err := convert.Convert(v, ty)
	if err != nil {
		return fmt.Errorf("expected %s: %w", ty.FriendlyName(), err)
	}
	return gocty.FromCtyValue(converted, target)
}

// resolveRefs hydrates the records named by the reference fields of rec's
// kind. All of them are requested as one batch. Each object must satisfy
// the field's element type. The field values in rec are rewritten to
// canonical addresses, and the returned values are keyed by field name.
func (m *Module) resolveRefs(ctx context.Context, owner address.Address, dir string, rec *config.Struct) (map[string]reflect.Value, error) {
	rt, ok := m.Kinds[rec.Kind]
	if !ok {
		return nil, nil
	}
	fields := refFields(rt)
	if len(fields) == 0 {
		return nil, nil
	}

	type pending struct {
		field   refField
		keys    []string
		futures []*engine.Future[HydratedStruct]
	}
	var all []pending
	b := engine.NewBatch(ctx)
	for _, f := range fields {
		v, ok := rec.Fields[f.name]
		if !ok || v.IsNull() {
			continue
		}
		keys, specs, err := f.specs(v)
		if err != nil {
			return nil, &ResolvedTypeMismatchError{Address: owner, Kind: rec.Kind, Err: fmt.Errorf("field %q: %w", f.name, err)}
		}
		addrs, err := address.ParseAll(specs, dir)
		if err != nil {
			return nil, fmt.Errorf("invalid reference in field %q of %s: %w", f.name, owner, err)
		}
		rec.Fields[f.name] = f.canonical(keys, addrs)

		p := pending{field: f, keys: keys, futures: make([]*engine.Future[HydratedStruct], len(addrs))}
		for i, a := range addrs {
			p.futures[i] = engine.Add[HydratedStruct](b, a)
		}
		all = append(all, p)
	}
	if len(all) == 0 {
		return nil, nil
	}
	if err := b.Wait(); err != nil {
		return nil, fmt.Errorf("failed to resolve references of %s: %w", owner, err)
	}

	out := make(map[string]reflect.Value, len(all))
	for _, p := range all {
		want := value.NewConstraint(value.SubclassesOf, m.types.Intern(p.field.elem()))
		objs := make([]reflect.Value, len(p.futures))
		for i, fut := range p.futures {
			hs, err := fut.Value()
			if err != nil {
				return nil, err
			}
			if !m.types.SatisfiedBy(want, m.types.IDOf(hs.Object)) {
				return nil, &ResolvedTypeMismatchError{
					Address: owner,
					Kind:    rec.Kind,
					Err:     fmt.Errorf("field %q cannot reference %s of kind '%s', expected %s", p.field.name, hs.Address, hs.Kind, m.types.Describe(want)),
				}
			}
			objs[i] = reflect.ValueOf(hs.Object)
		}
		out[p.field.name] = p.field.build(p.keys, objs)
	}
	return out, nil
}
