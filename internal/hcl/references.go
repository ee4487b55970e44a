package hcl

import (
	"maps"
	"slices"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
)

// EnvNamespace is the variable through which declaration files read the
// process environment.
const EnvNamespace = "env"

// bodyExpressions collects every attribute expression in body and its
// nested blocks.
func bodyExpressions(body *hclsyntax.Body) []hcl.Expression {
	var exprs []hcl.Expression
	for _, attr := range body.Attributes {
		exprs = append(exprs, attr.Expr)
	}
	for _, block := range body.Blocks {
		exprs = append(exprs, bodyExpressions(block.Body)...)
	}
	return exprs
}

// envVarsIn walks the expressions and returns the sorted, unique names of
// the environment variables they reference.
func envVarsIn(exprs ...hcl.Expression) ([]string, hcl.Diagnostics) {
	names := make(map[string]struct{})
	var diags hcl.Diagnostics

	for _, expr := range exprs {
		if expr == nil {
			continue
		}
		for _, traversal := range expr.Variables() {
			if traversal.RootName() != EnvNamespace {
				continue
			}
			name, ok := envName(traversal)
			if !ok {
				diags = append(diags, &hcl.Diagnostic{
					Severity: hcl.DiagError,
					Summary:  "Invalid environment reference",
					Detail:   "The env object must be indexed by a constant variable name, like env.HOME.",
					Subject:  traversal.SourceRange().Ptr(),
				})
				continue
			}
			names[name] = struct{}{}
		}
	}

	return slices.Sorted(maps.Keys(names)), diags
}

func envName(t hcl.Traversal) (string, bool) {
	if len(t) < 2 {
		return "", false
	}
	switch step := t[1].(type) {
	case hcl.TraverseAttr:
		return step.Name, true
	case hcl.TraverseIndex:
		if step.Key.IsKnown() && !step.Key.IsNull() && step.Key.Type() == cty.String {
			return step.Key.AsString(), true
		}
	}
	return "", false
}
