package hcl

import (
	"maps"
	"slices"

	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/vk/rulegrid/internal/config"
	"github.com/zclconf/go-cty/cty"
)

// Render writes rec as a formatted HCL record block. Hydrated records
// render as plain attributes; unhydrated ones keep their nested blocks and
// inheritance references.
func Render(rec config.Struct) []byte {
	f := hclwrite.NewEmptyFile()
	block := f.Body().AppendNewBlock(rec.Kind, []string{rec.Name})
	writeBody(block.Body(), &rec)
	return hclwrite.Format(f.Bytes())
}

func writeBody(body *hclwrite.Body, rec *config.Struct) {
	if rec.Abstract {
		body.SetAttributeValue(config.FieldAbstract, cty.True)
	}
	if rec.Extends != nil && !rec.Extends.IsInline() {
		body.SetAttributeValue(config.FieldExtends, cty.StringVal(rec.Extends.Address))
	}
	var merges []string
	for _, m := range rec.Merges {
		if !m.IsInline() {
			merges = append(merges, m.Address)
		}
	}
	if len(merges) > 0 {
		body.SetAttributeValue(config.FieldMerges, stringList(merges))
	}

	type nestedBlock struct {
		name string
		rec  *config.Struct
	}
	var blocks []nestedBlock
	for _, name := range slices.Sorted(maps.Keys(rec.Fields)) {
		v := rec.Fields[name]
		if nested, ok := structsIn(v); ok {
			for _, n := range nested {
				blocks = append(blocks, nestedBlock{name: name, rec: n})
			}
			continue
		}
		body.SetAttributeValue(name, v)
	}
	if len(rec.Dependencies) > 0 {
		body.SetAttributeValue(config.FieldDependencies, stringList(rec.Dependencies))
	}

	for _, b := range blocks {
		writeBody(body.AppendNewBlock(b.name, nil).Body(), b.rec)
	}
	if rec.Extends != nil && rec.Extends.IsInline() {
		writeBody(body.AppendNewBlock(config.FieldExtends, kindLabel(rec.Extends.Inline)).Body(), rec.Extends.Inline)
	}
	for _, m := range rec.Merges {
		if m.IsInline() {
			writeBody(body.AppendNewBlock(config.FieldMerges, kindLabel(m.Inline)).Body(), m.Inline)
		}
	}
}

func kindLabel(rec *config.Struct) []string {
	if rec.Kind == "" {
		return nil
	}
	return []string{rec.Kind}
}

// structsIn returns the nested records held by v, which is either a single
// record or a tuple of them.
func structsIn(v cty.Value) ([]*config.Struct, bool) {
	if s, ok := config.AsStruct(v); ok {
		return []*config.Struct{s}, true
	}
	if v.IsNull() || !v.IsKnown() || !v.Type().IsTupleType() || v.LengthInt() == 0 {
		return nil, false
	}
	var out []*config.Struct
	for _, elem := range v.AsValueSlice() {
		s, ok := config.AsStruct(elem)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

func stringList(ss []string) cty.Value {
	vals := make([]cty.Value, len(ss))
	for i, s := range ss {
		vals[i] = cty.StringVal(s)
	}
	return cty.ListVal(vals)
}
