package hcl

import (
	"fmt"
	"maps"
	"slices"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/vk/rulegrid/internal/config"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/gocty"
)

// Parser turns declaration files into records. It is safe for concurrent
// use.
type Parser struct {
	functions map[string]function.Function
}

// NewParser creates a parser with the standard function table.
func NewParser() *Parser {
	return &Parser{functions: Functions()}
}

// File is a parsed declaration file that has not been evaluated yet.
type File struct {
	Name    string
	body    *hclsyntax.Body
	envVars []string
}

// EnvVars returns the environment variables the file reads, sorted.
func (f *File) EnvVars() []string {
	return f.envVars
}

// ParseFile parses src without evaluating any expression.
func (p *Parser) ParseFile(filename string, src []byte) (*File, error) {
	file, diags := hclsyntax.ParseConfig(src, filename, hcl.InitialPos)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse %s: %w", filename, diags)
	}
	body, ok := file.Body.(*hclsyntax.Body)
	if !ok {
		return nil, fmt.Errorf("failed to parse %s: unexpected body type %T", filename, file.Body)
	}

	vars, diags := envVarsIn(bodyExpressions(body)...)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse %s: %w", filename, diags)
	}
	return &File{Name: filename, body: body, envVars: vars}, nil
}

// Decode evaluates f with the given environment and returns its records in
// declaration order. Variables f reads that are missing from env evaluate
// to null.
func (p *Parser) Decode(f *File, env map[string]string) ([]config.Struct, error) {
	evalCtx := p.evalContext(f.envVars, env)
	var diags hcl.Diagnostics

	for _, name := range slices.Sorted(maps.Keys(f.body.Attributes)) {
		attr := f.body.Attributes[name]
		diags = append(diags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Unexpected attribute",
			Detail:   fmt.Sprintf("Only record blocks are allowed at the top level of a declaration file, found attribute %q.", name),
			Subject:  attr.SrcRange.Ptr(),
		})
	}

	var out []config.Struct
	for _, block := range f.body.Blocks {
		if len(block.Labels) != 1 {
			diags = append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Missing record name",
				Detail:   fmt.Sprintf("A %q record needs exactly one name label.", block.Type),
				Subject:  block.DefRange().Ptr(),
			})
			continue
		}
		s, blockDiags := p.decodeBody(block.Body, evalCtx)
		diags = append(diags, blockDiags...)
		if blockDiags.HasErrors() {
			continue
		}
		s.Kind = block.Type
		s.Name = block.Labels[0]
		s.Range = block.DefRange()
		out = append(out, *s)
	}

	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode %s: %w", f.Name, diags)
	}
	return out, nil
}

// Parse is ParseFile followed by Decode.
func (p *Parser) Parse(filename string, src []byte, env map[string]string) ([]config.Struct, error) {
	f, err := p.ParseFile(filename, src)
	if err != nil {
		return nil, err
	}
	return p.Decode(f, env)
}

func (p *Parser) evalContext(names []string, env map[string]string) *hcl.EvalContext {
	vals := make(map[string]cty.Value, len(names))
	for _, name := range names {
		if v, ok := env[name]; ok {
			vals[name] = cty.StringVal(v)
		} else {
			vals[name] = cty.NullVal(cty.String)
		}
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{EnvNamespace: cty.ObjectVal(vals)},
		Functions: p.functions,
	}
}

// decodeBody evaluates a record body. Nested blocks become anonymous
// records, except for `extends` and `merges` blocks, which are inline
// inheritance references. Those may name their kind with a single label.
func (p *Parser) decodeBody(body *hclsyntax.Body, evalCtx *hcl.EvalContext) (*config.Struct, hcl.Diagnostics) {
	s := &config.Struct{Fields: make(map[string]cty.Value)}
	var diags hcl.Diagnostics

	for _, name := range slices.Sorted(maps.Keys(body.Attributes)) {
		attr := body.Attributes[name]
		val, valDiags := attr.Expr.Value(evalCtx)
		diags = append(diags, valDiags...)
		if valDiags.HasErrors() {
			continue
		}

		switch name {
		case config.FieldExtends:
			var addr string
			if d := decodeAttr(attr, val, cty.String, &addr); d != nil {
				diags = append(diags, d)
				continue
			}
			s.Extends = &config.Ref{Address: addr}
		case config.FieldMerges:
			var addrs []string
			if d := decodeAttr(attr, val, cty.List(cty.String), &addrs); d != nil {
				diags = append(diags, d)
				continue
			}
			for _, a := range addrs {
				s.Merges = append(s.Merges, config.Ref{Address: a})
			}
		case config.FieldAbstract:
			if d := decodeAttr(attr, val, cty.Bool, &s.Abstract); d != nil {
				diags = append(diags, d)
			}
		case config.FieldDependencies:
			if d := decodeAttr(attr, val, cty.List(cty.String), &s.Dependencies); d != nil {
				diags = append(diags, d)
			}
		case config.FieldName:
			diags = append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Reserved attribute",
				Detail:   "A record's name is set by its block label.",
				Subject:  attr.SrcRange.Ptr(),
			})
		default:
			s.Fields[name] = val
		}
	}

	nested := make(map[string][]cty.Value)
	for _, block := range body.Blocks {
		inherits := block.Type == config.FieldExtends || block.Type == config.FieldMerges
		if len(block.Labels) > 1 || (len(block.Labels) == 1 && !inherits) {
			detail := fmt.Sprintf("Nested %q blocks are anonymous and take no labels.", block.Type)
			if inherits {
				detail = fmt.Sprintf("An inline %q block takes at most one label, its kind.", block.Type)
			}
			diags = append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Unexpected label",
				Detail:   detail,
				Subject:  block.LabelRanges[len(block.LabelRanges)-1].Ptr(),
			})
			continue
		}
		child, childDiags := p.decodeBody(block.Body, evalCtx)
		diags = append(diags, childDiags...)
		if childDiags.HasErrors() {
			continue
		}
		child.Range = block.DefRange()
		if len(block.Labels) == 1 {
			child.Kind = block.Labels[0]
		}

		switch block.Type {
		case config.FieldExtends:
			if s.Extends != nil {
				diags = append(diags, &hcl.Diagnostic{
					Severity: hcl.DiagError,
					Summary:  "Duplicate \"extends\"",
					Detail:   "A record can extend only one other record.",
					Subject:  block.DefRange().Ptr(),
				})
				continue
			}
			s.Extends = &config.Ref{Inline: child}
		case config.FieldMerges:
			s.Merges = append(s.Merges, config.Ref{Inline: child})
		case config.FieldAbstract, config.FieldDependencies, config.FieldName:
			diags = append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Reserved block type",
				Detail:   fmt.Sprintf("%q must be set as an attribute.", block.Type),
				Subject:  block.DefRange().Ptr(),
			})
		default:
			if _, ok := s.Fields[block.Type]; ok && len(nested[block.Type]) == 0 {
				diags = append(diags, &hcl.Diagnostic{
					Severity: hcl.DiagError,
					Summary:  "Duplicate field",
					Detail:   fmt.Sprintf("%q is set both as an attribute and as a block.", block.Type),
					Subject:  block.DefRange().Ptr(),
				})
				continue
			}
			nested[block.Type] = append(nested[block.Type], config.StructVal(child))
		}
	}

	for name, vals := range nested {
		if len(vals) == 1 {
			s.Fields[name] = vals[0]
		} else {
			s.Fields[name] = cty.TupleVal(vals)
		}
	}
	return s, diags
}

// decodeAttr converts val to ty and stores it in target.
func decodeAttr(attr *hclsyntax.Attribute, val cty.Value, ty cty.Type, target any) *hcl.Diagnostic {
	if val.IsNull() {
		return nil
	}
	converted, err := convert.Convert(val, ty)
	if err == nil {
		err = gocty.FromCtyValue(converted, target)
	}
	if err != nil {
		return &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  fmt.Sprintf("Invalid %q attribute", attr.Name),
			Detail:   fmt.Sprintf("Expected %s: %s.", ty.FriendlyName(), err),
			Subject:  attr.Expr.Range().Ptr(),
		}
	}
	return nil
}
