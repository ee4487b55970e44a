package dag

import (
	"fmt"
)

// New creates and returns an initialized, empty Graph.
func New[K comparable]() *Graph[K] {
	return &Graph[K]{
		nodes: make(map[K]*node[K]),
	}
}

// AddNode adds a new node with the given ID to the graph. If a node with
// the same ID already exists, the function does nothing.
func (g *Graph[K]) AddNode(id K) {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	g.addNode(id)
}

func (g *Graph[K]) addNode(id K) *node[K] {
	if n, ok := g.nodes[id]; ok {
		return n
	}
	n := &node[K]{
		id:         id,
		deps:       make(map[K]*node[K]),
		dependents: make(map[K]*node[K]),
	}
	g.nodes[id] = n
	return n
}

// Has reports whether id is in the graph.
func (g *Graph[K]) Has(id K) bool {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	_, ok := g.nodes[id]
	return ok
}

// Len returns the number of nodes.
func (g *Graph[K]) Len() int {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return len(g.nodes)
}

// AddEdge creates a directed edge from the `fromID` node to the `toID` node.
// This signifies that `toID` has a dependency on `fromID`. An error is returned
// if either node does not exist or if the edge would create a self-reference.
func (g *Graph[K]) AddEdge(fromID, toID K) error {
	if fromID == toID {
		return fmt.Errorf("self-referential edge not allowed: %v -> %v", fromID, fromID)
	}

	g.mutex.Lock()
	defer g.mutex.Unlock()

	fromNode, ok := g.nodes[fromID]
	if !ok {
		return fmt.Errorf("source node not found: %v", fromID)
	}

	toNode, ok := g.nodes[toID]
	if !ok {
		return fmt.Errorf("destination node not found: %v", toID)
	}

	toNode.deps[fromID] = fromNode
	fromNode.dependents[toID] = toNode

	return nil
}

// AddEdgeAcyclic adds the edge only if toID is not already reachable from
// fromID's dependencies, that is only if the edge closes no cycle. Both
// nodes are created if missing. It reports whether the edge was added.
func (g *Graph[K]) AddEdgeAcyclic(fromID, toID K) bool {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if fromID == toID {
		return false
	}
	fromNode := g.addNode(fromID)
	toNode := g.addNode(toID)
	if _, ok := toNode.deps[fromID]; ok {
		return true
	}
	if g.reaches(toNode, fromID, nil) {
		return false
	}
	toNode.deps[fromID] = fromNode
	fromNode.dependents[toID] = toNode
	return true
}

// Reaches reports whether to can be reached from from by following
// dependent edges. When through is non-nil, only intermediate nodes for
// which it returns true are traversed.
func (g *Graph[K]) Reaches(from, to K, through func(K) bool) bool {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	start, ok := g.nodes[from]
	if !ok {
		return false
	}
	return g.reaches(start, to, through)
}

func (g *Graph[K]) reaches(start *node[K], to K, through func(K) bool) bool {
	seen := map[K]bool{start.id: true}
	stack := []*node[K]{start}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for id, d := range n.dependents {
			if id == to {
				return true
			}
			if seen[id] || (through != nil && !through(id)) {
				continue
			}
			seen[id] = true
			stack = append(stack, d)
		}
	}
	return false
}

// RemoveNode deletes id and every edge touching it.
func (g *Graph[K]) RemoveNode(id K) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	n, ok := g.nodes[id]
	if !ok {
		return
	}
	for _, dep := range n.deps {
		delete(dep.dependents, id)
	}
	for _, dependent := range n.dependents {
		delete(dependent.deps, id)
	}
	delete(g.nodes, id)
}

// Dependencies returns a slice of node IDs that the given node depends on.
func (g *Graph[K]) Dependencies(id K) ([]K, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node not found: %v", id)
	}

	deps := make([]K, 0, len(n.deps))
	for depID := range n.deps {
		deps = append(deps, depID)
	}
	return deps, nil
}

// Dependents returns a slice of node IDs that depend on the given node.
func (g *Graph[K]) Dependents(id K) ([]K, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node not found: %v", id)
	}

	dependents := make([]K, 0, len(n.dependents))
	for depID := range n.dependents {
		dependents = append(dependents, depID)
	}
	return dependents, nil
}

// TransitiveDependents returns the IDs of every node that depends on any of
// ids, directly or indirectly, including ids themselves when present.
func (g *Graph[K]) TransitiveDependents(ids ...K) []K {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	seen := make(map[K]bool)
	var out []K
	var stack []*node[K]
	for _, id := range ids {
		if n, ok := g.nodes[id]; ok && !seen[id] {
			seen[id] = true
			out = append(out, id)
			stack = append(stack, n)
		}
	}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for id, d := range n.dependents {
			if seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, id)
			stack = append(stack, d)
		}
	}
	return out
}

// Nodes returns every node ID in unspecified order.
func (g *Graph[K]) Nodes() []K {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	out := make([]K, 0, len(g.nodes))
	for id := range g.nodes {
		out = append(out, id)
	}
	return out
}

// DetectCycles checks the graph for any cycles. It returns a non-nil error
// if a cycle is found, indicating the first node involved in the detected cycle.
func (g *Graph[K]) DetectCycles() error {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	// Use classic depth-first search with three sets of nodes:
	// permanent: nodes that have been fully visited and are not part of a cycle.
	// temporary: nodes currently in the recursion stack for the current traversal.
	// unvisited: all other nodes.
	permanent := make(map[K]bool)
	temporary := make(map[K]bool)

	var visit func(n *node[K]) error
	visit = func(n *node[K]) error {
		if permanent[n.id] {
			return nil
		}
		if temporary[n.id] {
			return fmt.Errorf("cycle detected involving node '%v'", n.id)
		}

		temporary[n.id] = true

		for _, dependent := range n.dependents {
			if err := visit(dependent); err != nil {
				return err
			}
		}

		delete(temporary, n.id)
		permanent[n.id] = true

		return nil
	}

	for _, n := range g.nodes {
		if !permanent[n.id] {
			if err := visit(n); err != nil {
				return err
			}
		}
	}

	return nil
}
