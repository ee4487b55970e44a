package graph

import (
	"errors"
	"slices"
	"sync"

	"github.com/vk/rulegrid/internal/dag"
	"github.com/vk/rulegrid/internal/node"
	"github.com/vk/rulegrid/internal/rulegraph"
	"github.com/vk/rulegrid/internal/value"
)

// ErrCycle is returned by AddEdge when the edge would close a cycle among
// uncompleted nodes.
var ErrCycle = errors.New("dependency cycle")

// ErrStale is returned by AddEdge when child was invalidated after it was
// handed out. The caller must request the child again.
var ErrStale = errors.New("dependency invalidated")

// FileDependent is implemented by param values whose nodes must be
// recomputed when a file changes.
type FileDependent interface {
	InvalidatedBy(path string) bool
}

// Graph owns every node and their dependency edges.
type Graph struct {
	types *value.Types

	mu    sync.Mutex
	nodes map[node.Key]*node.Node
	edges *dag.Graph[node.Key]
}

// New creates an empty graph.
func New(types *value.Types) *Graph {
	return &Graph{
		types: types,
		nodes: make(map[node.Key]*node.Node),
		edges: dag.New[node.Key](),
	}
}

// GetOrCreate returns the node for (entry, params), creating it if needed.
// params must already be restricted to the entry's used types. The second
// result is true when the node was created by this call.
func (g *Graph) GetOrCreate(entry *rulegraph.Entry, params value.Params) (*node.Node, bool) {
	key := node.KeyFor(entry, params)

	g.mu.Lock()
	defer g.mu.Unlock()
	if n, ok := g.nodes[key]; ok {
		return n, false
	}
	n := node.New(entry, params)
	g.nodes[key] = n
	g.edges.AddNode(key)
	return n, true
}

// Lookup returns the live node for key.
func (g *Graph) Lookup(key node.Key) (*node.Node, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, ok := g.nodes[key]
	return n, ok
}

// AddEdge records that parent depends on child. It returns ErrCycle when
// child is parent or child already waits on parent through nodes that have
// not completed. It returns ErrStale when child is no longer live, so a
// live parent never reads a value its edges would not invalidate. Edges
// from an invalidated parent are ignored.
func (g *Graph) AddEdge(parent, child *node.Node) error {
	if parent.Key() == child.Key() {
		return ErrCycle
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.nodes[parent.Key()] != parent {
		return nil
	}
	if g.nodes[child.Key()] != child {
		return ErrStale
	}
	pending := func(k node.Key) bool {
		n, ok := g.nodes[k]
		return ok && !n.State().Terminal()
	}
	if g.edges.Reaches(parent.Key(), child.Key(), pending) {
		return ErrCycle
	}
	return g.edges.AddEdge(child.Key(), parent.Key())
}

// Dependencies returns the live nodes n depends on, ordered by key.
func (g *Graph) Dependencies(n *node.Node) []*node.Node {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.dependencies(n)
}

func (g *Graph) dependencies(n *node.Node) []*node.Node {
	keys, err := g.edges.Dependencies(n.Key())
	if err != nil {
		return nil
	}
	out := make([]*node.Node, 0, len(keys))
	for _, k := range keys {
		if d, ok := g.nodes[k]; ok {
			out = append(out, d)
		}
	}
	sortNodes(out)
	return out
}

// Invalidate removes every node matching pred and all of their transitive
// dependents. It returns how many nodes were removed.
func (g *Graph) Invalidate(pred func(*node.Node) bool) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	var matched []node.Key
	for k, n := range g.nodes {
		if pred(n) {
			matched = append(matched, k)
		}
	}
	removed := g.edges.TransitiveDependents(matched...)
	for _, k := range removed {
		delete(g.nodes, k)
		g.edges.RemoveNode(k)
	}
	return len(removed)
}

// InvalidateKeys removes nodes whose params hold any of keys, plus their
// dependents.
func (g *Graph) InvalidateKeys(keys ...value.Key) int {
	if len(keys) == 0 {
		return 0
	}
	return g.Invalidate(func(n *node.Node) bool {
		for _, k := range keys {
			if n.Params().Contains(k) {
				return true
			}
		}
		return false
	})
}

// InvalidateFiles removes nodes with a FileDependent param affected by any
// of paths, plus their dependents.
func (g *Graph) InvalidateFiles(paths ...string) int {
	if len(paths) == 0 {
		return 0
	}
	return g.Invalidate(func(n *node.Node) bool {
		for _, v := range n.Params().Values() {
			fd, ok := v.Get().(FileDependent)
			if !ok {
				continue
			}
			for _, p := range paths {
				if fd.InvalidatedBy(p) {
					return true
				}
			}
		}
		return false
	})
}

// Len returns the number of live nodes.
func (g *Graph) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.nodes)
}

// Nodes returns the live nodes ordered by key.
func (g *Graph) Nodes() []*node.Node {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]*node.Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n)
	}
	sortNodes(out)
	return out
}

func sortNodes(ns []*node.Node) {
	slices.SortFunc(ns, func(a, b *node.Node) int {
		ka, kb := a.Key(), b.Key()
		if ka.Entry != kb.Entry {
			return ka.Entry - kb.Entry
		}
		switch {
		case ka.Params < kb.Params:
			return -1
		case ka.Params > kb.Params:
			return 1
		}
		return 0
	})
}
