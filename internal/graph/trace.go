package graph

import (
	"fmt"
	"io"
	"strings"

	"github.com/vk/rulegrid/internal/node"
)

// Trace renders root and everything below it, one node per line, with
// states and errors.
func (g *Graph) Trace(root *node.Node) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	var b strings.Builder
	seen := make(map[node.Key]bool)
	var visit func(n *node.Node, depth int)
	visit = func(n *node.Node, depth int) {
		indent := strings.Repeat("  ", depth)
		if seen[n.Key()] {
			fmt.Fprintf(&b, "%s%s (see above)\n", indent, n.Describe(g.types))
			return
		}
		seen[n.Key()] = true
		fmt.Fprintf(&b, "%s%s\n", indent, g.line(n))
		for _, d := range g.dependencies(n) {
			visit(d, depth+1)
		}
	}
	visit(root, 0)
	return b.String()
}

func (g *Graph) line(n *node.Node) string {
	r, done := n.Result()
	desc := n.Describe(g.types)
	switch {
	case !done:
		return fmt.Sprintf("[%s] %s", r.State, desc)
	case r.State == node.Throw:
		return fmt.Sprintf("[%s] %s: %s", r.State, desc, firstLine(r.Err))
	case r.State == node.Noop:
		return fmt.Sprintf("[%s] %s: %s", r.State, desc, r.Reason)
	default:
		return fmt.Sprintf("[%s] %s", r.State, desc)
	}
}

// WriteDot renders every live node and edge in Graphviz dot format. Edges
// point from a node to what it depends on.
func (g *Graph) WriteDot(w io.Writer) error {
	nodes := g.Nodes()

	g.mu.Lock()
	defer g.mu.Unlock()

	var b strings.Builder
	b.WriteString("digraph products {\n")
	for _, n := range nodes {
		if _, live := g.nodes[n.Key()]; !live {
			continue
		}
		fmt.Fprintf(&b, "  %q [label=%q];\n", n.Key().String(), g.line(n))
	}
	for _, n := range nodes {
		if _, live := g.nodes[n.Key()]; !live {
			continue
		}
		for _, d := range g.dependencies(n) {
			fmt.Fprintf(&b, "  %q -> %q;\n", n.Key().String(), d.Key().String())
		}
	}
	b.WriteString("}\n")
	_, err := io.WriteString(w, b.String())
	return err
}

func firstLine(err error) string {
	if err == nil {
		return "<nil>"
	}
	msg := err.Error()
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		return msg[:i]
	}
	return msg
}
