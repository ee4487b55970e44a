// Package graph is the product graph: the memo table of nodes keyed by
// (entry, params) together with the dependency edges recorded while rule
// bodies run.
//
// Edges are added incrementally at each Get. An edge that would let a node
// wait on itself, directly or through nodes that have not completed yet, is
// refused with ErrCycle; the engine turns that into a Noop for the caller.
//
// Invalidation removes nodes rather than marking them dirty. The next
// request for a removed key creates a fresh node and recomputes it, and
// everything that depended on it has been removed as well.
package graph
