package hydration

import (
	"context"

	"github.com/vk/rulegrid/internal/address"
	"github.com/vk/rulegrid/internal/engine"
)

func hydrateStructs(ctx context.Context, addrs Addresses) (HydratedStructs, error) {
	out, err := engine.GetAll[HydratedStruct](ctx, []address.Address(addrs))
	if err != nil {
		return nil, err
	}
	return HydratedStructs(out), nil
}

// transitiveHydratedStructs hydrates addrs and everything they depend on,
// one batch per level of the dependency graph.
func transitiveHydratedStructs(ctx context.Context, addrs Addresses) (TransitiveHydratedStructs, error) {
	seen := make(map[address.Address]bool, len(addrs))
	var frontier []address.Address
	for _, a := range addrs {
		if !seen[a] {
			seen[a] = true
			frontier = append(frontier, a)
		}
	}

	var out TransitiveHydratedStructs
	for depth := 0; len(frontier) > 0; depth++ {
		level, err := engine.GetAll[HydratedStruct](ctx, frontier)
		if err != nil {
			return TransitiveHydratedStructs{}, err
		}
		if depth == 0 {
			out.Roots = level
		}
		out.Closure = append(out.Closure, level...)

		var next []address.Address
		for _, hs := range level {
			for _, d := range hs.Dependencies {
				if !seen[d] {
					seen[d] = true
					next = append(next, d)
				}
			}
		}
		frontier = next
	}
	return out, nil
}
