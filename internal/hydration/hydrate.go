package hydration

import (
	"context"
	"fmt"
	"maps"
	"reflect"

	"github.com/vk/rulegrid/internal/address"
	"github.com/vk/rulegrid/internal/config"
	"github.com/vk/rulegrid/internal/ctxlog"
	"github.com/vk/rulegrid/internal/engine"
	"github.com/vk/rulegrid/internal/hcl"
	"github.com/vk/rulegrid/internal/value"
	"github.com/zclconf/go-cty/cty"
)

// hydrateStruct resolves the inheritance of u and decodes the result.
func (m *Module) hydrateStruct(ctx context.Context, u UnhydratedStruct) (HydratedStruct, error) {
	dir := u.Address.SpecPath
	rec, err := m.resolveRecord(ctx, u.Address, dir, u.Struct)
	if err != nil {
		return HydratedStruct{}, err
	}

	deps, err := address.ParseAll(rec.Dependencies, dir)
	if err != nil {
		return HydratedStruct{}, fmt.Errorf("invalid dependencies of %s: %w", u.Address, err)
	}
	rec.Dependencies = make([]string, len(deps))
	for i, d := range deps {
		rec.Dependencies[i] = d.String()
	}

	refs, err := m.resolveRefs(ctx, u.Address, dir, &rec)
	if err != nil {
		return HydratedStruct{}, err
	}

	obj, err := m.construct(u.Address, rec, refs)
	if err != nil {
		return HydratedStruct{}, err
	}
	ctxlog.FromContext(ctx).Debug("Hydrated record.", "address", u.Address.String(), "kind", rec.Kind)
	return HydratedStruct{
		Address:      u.Address,
		Kind:         rec.Kind,
		Object:       obj,
		Record:       rec,
		Dependencies: deps,
	}, nil
}

// resolveRecord hydrates the nested records of s and folds in its
// ancestors. References are resolved relative to dir.
func (m *Module) resolveRecord(ctx context.Context, owner address.Address, dir string, s config.Struct) (config.Struct, error) {
	fields := make(map[string]cty.Value, len(s.Fields))
	for k, v := range s.Fields {
		hv, err := m.hydrateValue(ctx, owner, dir, v)
		if err != nil {
			return config.Struct{}, fmt.Errorf("field %q of %s: %w", k, owner, err)
		}
		fields[k] = hv
	}
	child := s
	child.Fields = fields

	refs := make([]config.Ref, 0, len(s.Merges)+1)
	if s.Extends != nil {
		refs = append(refs, *s.Extends)
	}
	refs = append(refs, s.Merges...)

	// Addressed ancestors are requested together; inline ones are resolved
	// in place once those complete.
	b := engine.NewBatch(ctx)
	futures := make([]*engine.Future[HydratedStruct], len(refs))
	for i, ref := range refs {
		if ref.IsInline() {
			continue
		}
		a, err := address.Parse(ref.Address, dir)
		if err != nil {
			return config.Struct{}, fmt.Errorf("invalid reference %q in %s: %w", ref.Address, owner, err)
		}
		futures[i] = engine.Add[HydratedStruct](b, a)
	}
	if err := b.Wait(); err != nil {
		return config.Struct{}, fmt.Errorf("failed to resolve ancestors of %s: %w", owner, err)
	}

	ancestors := make([]config.Struct, len(refs))
	for i, ref := range refs {
		if ref.IsInline() {
			inline, err := m.resolveRecord(ctx, owner, dir, *ref.Inline)
			if err != nil {
				return config.Struct{}, err
			}
			if err := m.checkAncestor(owner, s.Kind, "inline "+inline.Kind+" record", inline.Kind); err != nil {
				return config.Struct{}, err
			}
			ancestors[i] = inline
			continue
		}
		hs, err := futures[i].Value()
		if err != nil {
			return config.Struct{}, err
		}
		if err := m.checkAncestor(owner, s.Kind, hs.Address.String(), hs.Kind); err != nil {
			return config.Struct{}, err
		}
		ancestors[i] = hs.Record
	}

	var parent *config.Struct
	merges := ancestors
	if s.Extends != nil {
		parent = &ancestors[0]
		merges = ancestors[1:]
	}
	out, err := config.ResolveInheritance(child, parent, merges)
	if err != nil {
		return config.Struct{}, fmt.Errorf("failed to apply inheritance to %s: %w", owner, err)
	}
	return out, nil
}

// hydrateValue replaces nested records in v with plain objects.
func (m *Module) hydrateValue(ctx context.Context, owner address.Address, dir string, v cty.Value) (cty.Value, error) {
	if nested, ok := config.AsStruct(v); ok {
		rec, err := m.resolveRecord(ctx, owner, dir, *nested)
		if err != nil {
			return cty.NilVal, err
		}
		return objectOf(rec), nil
	}
	if v.IsNull() || !v.IsKnown() || !v.Type().IsTupleType() {
		return v, nil
	}
	elems := v.AsValueSlice()
	changed := false
	for i, e := range elems {
		if _, ok := config.AsStruct(e); !ok {
			continue
		}
		he, err := m.hydrateValue(ctx, owner, dir, e)
		if err != nil {
			return cty.NilVal, fmt.Errorf("element %d: %w", i, err)
		}
		elems[i] = he
		changed = true
	}
	if !changed {
		return v, nil
	}
	return cty.TupleVal(elems), nil
}

// objectOf flattens a resolved nested record into an object value. Its
// dependencies are kept as a plain field.
func objectOf(rec config.Struct) cty.Value {
	attrs := maps.Clone(rec.Fields)
	if len(rec.Dependencies) > 0 {
		if attrs == nil {
			attrs = make(map[string]cty.Value)
		}
		deps := make([]cty.Value, len(rec.Dependencies))
		for i, d := range rec.Dependencies {
			deps[i] = cty.StringVal(d)
		}
		attrs[config.FieldDependencies] = cty.ListVal(deps)
	}
	if len(attrs) == 0 {
		return cty.EmptyObjectVal
	}
	return cty.ObjectVal(attrs)
}

// checkAncestor requires the kind of an ancestor, addressed or inline, to
// be one the child's kind can stand in for. Records without a kind pass.
func (m *Module) checkAncestor(owner address.Address, kind, ancestor, ancestorKind string) error {
	if kind == "" || ancestorKind == "" || kind == ancestorKind {
		return nil
	}
	rt, ok := m.Kinds[ancestorKind]
	if !ok {
		return &ResolvedTypeMismatchError{
			Address: owner,
			Kind:    kind,
			Err:     fmt.Errorf("cannot inherit from %s: kind '%s' is not registered", ancestor, ancestorKind),
		}
	}
	childType, ok := m.Kinds[kind]
	if !ok {
		return nil
	}
	child := m.types.Intern(childType)
	parent := m.types.Intern(rt)
	if m.types.SatisfiedBy(value.NewConstraint(value.SuperclassesOf, child), parent) {
		return nil
	}
	return &ResolvedTypeMismatchError{
		Address: owner,
		Kind:    kind,
		Err:     fmt.Errorf("cannot inherit from %s of kind '%s'", ancestor, ancestorKind),
	}
}

// construct decodes rec onto a new object of its kind's type. Types that
// declare `name` or `dependencies` fields receive the record's own, and
// reference fields receive refs.
func (m *Module) construct(a address.Address, rec config.Struct, refs map[string]reflect.Value) (any, error) {
	rt, ok := m.Kinds[rec.Kind]
	if !ok {
		return nil, &ResolvedTypeMismatchError{Address: a, Kind: rec.Kind, Err: fmt.Errorf("kind '%s' is not registered", rec.Kind)}
	}

	fields := maps.Clone(rec.Fields)
	if fields == nil {
		fields = make(map[string]cty.Value)
	}
	linked := refFields(rt)
	for _, f := range linked {
		delete(fields, f.name)
	}
	if declaresField(rt, config.FieldName) {
		fields[config.FieldName] = cty.StringVal(a.TargetName)
	}
	if declaresField(rt, config.FieldDependencies) {
		if len(rec.Dependencies) == 0 {
			fields[config.FieldDependencies] = cty.ListValEmpty(cty.String)
		} else {
			deps := make([]cty.Value, len(rec.Dependencies))
			for i, d := range rec.Dependencies {
				deps[i] = cty.StringVal(d)
			}
			fields[config.FieldDependencies] = cty.ListVal(deps)
		}
	}

	ptr := reflect.New(rt)
	if err := hcl.Decode(fields, ptr.Interface()); err != nil {
		return nil, &ResolvedTypeMismatchError{Address: a, Kind: rec.Kind, Err: err}
	}
	for _, f := range linked {
		v, ok := refs[f.name]
		if !ok {
			continue
		}
		fv, err := ptr.Elem().FieldByIndexErr(f.index)
		if err != nil {
			return nil, &ResolvedTypeMismatchError{Address: a, Kind: rec.Kind, Err: fmt.Errorf("field %q: %w", f.name, err)}
		}
		fv.Set(v)
	}
	obj := ptr.Interface()

	if v, ok := obj.(config.Validator); ok && !rec.Abstract {
		if err := v.Validate(); err != nil {
			return nil, &ValidationError{Address: a, Err: err}
		}
	}
	return obj, nil
}
