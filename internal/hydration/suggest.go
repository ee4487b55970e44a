package hydration

import (
	"slices"
	"strings"

	"github.com/agext/levenshtein"
)

// suggest ranks known names by edit distance to name. Names within a third
// of name's length, but at least two edits, are returned closest first;
// when none is that close every known name is returned, sorted.
func suggest(name string, known []string) []string {
	limit := max(2, len(name)/3)

	type candidate struct {
		name string
		dist int
	}
	var near []candidate
	for _, k := range known {
		if d := levenshtein.Distance(name, k, nil); d <= limit {
			near = append(near, candidate{k, d})
		}
	}
	if len(near) == 0 {
		out := slices.Clone(known)
		slices.Sort(out)
		return out
	}

	slices.SortFunc(near, func(a, b candidate) int {
		if a.dist != b.dist {
			return a.dist - b.dist
		}
		return strings.Compare(a.name, b.name)
	})
	out := make([]string, len(near))
	for i, c := range near {
		out[i] = c.name
	}
	return out
}
