package rulegraph

import (
	"slices"
	"strings"

	"github.com/vk/rulegrid/internal/rules"
)

func sortProducts(ps []rules.Product) {
	slices.SortFunc(ps, func(a, b rules.Product) int {
		if a.Type != b.Type {
			return int(a.Type) - int(b.Type)
		}
		return strings.Compare(a.Variant, b.Variant)
	})
}

// collect walks the graph breadth first from the roots and numbers every
// reachable entry.
func collect(roots []Root) []*Entry {
	var out []*Entry
	seen := make(map[*Entry]bool)
	queue := make([]*Entry, 0, len(roots))
	for _, r := range roots {
		queue = append(queue, r.Entry)
	}
	for len(queue) > 0 {
		e := queue[0]
		queue = queue[1:]
		if seen[e] {
			continue
		}
		seen[e] = true
		e.ID = len(out) + 1
		out = append(out, e)
		queue = append(queue, e.children()...)
	}
	return out
}

// fixUsed recomputes Used sets to a fixpoint. Entries built on top of a
// recursive placeholder saw an incomplete set while being resolved.
func fixUsed(entries []*Entry) {
	for changed := true; changed; {
		changed = false
		for _, e := range entries {
			used := e.Used
			switch e.Kind {
			case ParamEntry:
				continue
			case ComposedEntry:
				for _, p := range e.Parts {
					used = used.Union(p.Used)
				}
			case RuleEntry:
				for _, in := range e.Inputs {
					used = used.Union(in.Used)
				}
				for _, k := range e.getOrder {
					used = used.Union(e.gets[k].Used.Without(k.subject))
				}
			}
			if !used.Equal(e.Used) {
				e.Used = used
				changed = true
			}
		}
	}
}
