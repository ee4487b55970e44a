// Package value holds the engine's identity layer: interned type ids, type
// constraints, interned value keys and the Params sets that identify nodes.
//
// Nothing in this package can fail. Tables only grow, and every table is
// owned by whoever constructed it; there is no package-level state.
package value
