package rulegraph

import (
	"fmt"
	"io"
	"strings"
)

// WriteDot renders the compiled graph in Graphviz dot format. Input edges
// are solid, Get edges dashed.
func (g *RuleGraph) WriteDot(w io.Writer) error {
	var b strings.Builder
	b.WriteString("digraph rules {\n")
	b.WriteString("  rankdir=LR;\n")
	for _, r := range g.order {
		fmt.Fprintf(&b, "  %q [shape=box, style=bold];\n", "Query("+r.Product.Describe(g.types)+" <- "+r.Params.Names(g.types)+")")
	}
	for _, e := range g.entries {
		shape := "ellipse"
		if e.Kind == ParamEntry {
			shape = "note"
		}
		fmt.Fprintf(&b, "  %q [shape=%s];\n", e.label(g), shape)
	}
	for _, r := range g.order {
		fmt.Fprintf(&b, "  %q -> %q;\n", "Query("+r.Product.Describe(g.types)+" <- "+r.Params.Names(g.types)+")", r.Entry.label(g))
	}
	for _, e := range g.entries {
		for _, in := range e.Inputs {
			fmt.Fprintf(&b, "  %q -> %q;\n", e.label(g), in.label(g))
		}
		for _, p := range e.Parts {
			fmt.Fprintf(&b, "  %q -> %q [style=dotted];\n", e.label(g), p.label(g))
		}
		for _, k := range e.getOrder {
			fmt.Fprintf(&b, "  %q -> %q [style=dashed, label=%q];\n", e.label(g), e.gets[k].label(g), "Get("+g.types.Name(k.product)+", "+g.types.Name(k.subject)+")")
		}
	}
	b.WriteString("}\n")
	_, err := io.WriteString(w, b.String())
	return err
}

func (e *Entry) label(g *RuleGraph) string {
	return fmt.Sprintf("%d: %s", e.ID, e.Describe(g.types))
}

// Describe lists the compiled roots and the rule each resolves to.
func (g *RuleGraph) Describe() string {
	var b strings.Builder
	for _, r := range g.order {
		fmt.Fprintf(&b, "%s <- %s: %s\n", r.Product.Describe(g.types), r.Params.Names(g.types), r.Entry.Describe(g.types))
	}
	return b.String()
}
