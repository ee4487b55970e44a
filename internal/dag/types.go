package dag

import "sync"

// Graph is a collection of nodes and their dependencies.
// All operations on the graph are concurrency-safe.
type Graph[K comparable] struct {
	// mutex protects the nodes map during concurrent access.
	mutex sync.RWMutex
	// nodes stores all nodes in the graph, keyed by their unique ID.
	nodes map[K]*node[K]
}

// node represents a single vertex in the graph. It is un-exported to
// enforce interaction with the graph via the public API.
type node[K comparable] struct {
	id K
	// deps holds the set of nodes that this node depends on (predecessors).
	deps map[K]*node[K]
	// dependents holds the set of nodes that depend on this node (successors).
	dependents map[K]*node[K]
}
