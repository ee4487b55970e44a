// Package rulegraph compiles registered rules into an immutable graph that
// answers "which rule computes product P from params of types T".
//
// Compilation is a memoized, recursive resolution over (product, available
// param types) pairs. Every static selector and every declared Get of a
// reachable rule is resolved ahead of execution, so the engine never
// discovers a missing or ambiguous rule while running. Recursion through a
// Get edge is legal, because the subject value changes at runtime; a cycle
// made only of input selectors is not.
//
// When several rules could compute the same pair, candidates are classified
// against the composite subject (the available params):
//
//   - COMPATIBLE rules consume every relevant param,
//   - PARTIAL rules consume some of them,
//   - CONSUME_ONLY rules consume none.
//
// A single COMPATIBLE rule wins. Otherwise slice products may be composed
// from rules whose consumed params are disjoint and together cover the
// relevant set; anything else is ambiguous.
package rulegraph
