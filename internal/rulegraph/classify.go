package rulegraph

import (
	"fmt"

	"github.com/vk/rulegrid/internal/value"
)

// Classification grades a candidate rule against a composite subject.
type Classification int

const (
	Incompatible Classification = iota
	Compatible
	Partial
	ConsumeOnly
)

func (c Classification) String() string {
	switch c {
	case Compatible:
		return "COMPATIBLE"
	case Partial:
		return "PARTIAL"
	case ConsumeOnly:
		return "CONSUME_ONLY"
	case Incompatible:
		return "INCOMPATIBLE"
	default:
		return fmt.Sprintf("Classification(%d)", int(c))
	}
}

// Classify compares the fields a candidate consumes with the subject's
// relevant fields. Consuming anything outside relevant is incompatible.
func Classify(consumed, relevant value.TypeSet) Classification {
	switch {
	case !consumed.IsSubsetOf(relevant):
		return Incompatible
	case consumed.Equal(relevant):
		return Compatible
	case len(consumed) == 0:
		return ConsumeOnly
	default:
		return Partial
	}
}

// Composable reports whether parts consume pairwise disjoint fields that
// together cover relevant.
func Composable(parts []value.TypeSet, relevant value.TypeSet) bool {
	if len(parts) < 2 {
		return false
	}
	var covered value.TypeSet
	for _, p := range parts {
		if len(p.Intersect(covered)) > 0 {
			return false
		}
		covered = covered.Union(p)
	}
	return covered.Equal(relevant)
}
