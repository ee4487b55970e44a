// Package scheduler is the entry point callers use to compute products.
//
// # Why Scheduler Exists
//
// The engine knows how to run a single node. The scheduler owns everything a
// session needs around that: the interner that turns caller values into
// params, the product graph that memoizes results between requests, and the
// translation of root outcomes into errors a caller can act on.
//
// # Requests
//
// A Request names a product and the root params to compute it from. The set
// of param types must match a root compiled into the rule graph, either a
// declared query or an implicit single-root pair:
//
//	results, err := s.Execute(ctx,
//		scheduler.Request{Product: s.Product(reflect.TypeFor[HydratedStruct]()), Params: []any{addr}},
//	)
//
// Roots run concurrently and share every node they have in common. Results
// come back in request order.
//
// # Invalidation
//
// Invalidate and InvalidateFiles remove nodes and everything that depended on
// them. Untouched nodes keep their results, so the next Execute reruns only
// the invalidated part of the graph.
//
// # Thread-Safety
//
// All methods are safe for concurrent use.
package scheduler
