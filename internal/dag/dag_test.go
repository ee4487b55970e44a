package dag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	g := New[string]()
	require.NotNil(t, g)
	assert.NotNil(t, g.nodes)
	assert.Empty(t, g.nodes)
}

func TestAddNode(t *testing.T) {
	g := New[string]()

	g.AddNode("a")
	assert.Len(t, g.nodes, 1)
	nodeA, ok := g.nodes["a"]
	require.True(t, ok)
	assert.Equal(t, "a", nodeA.id)
	assert.NotNil(t, nodeA.deps)
	assert.NotNil(t, nodeA.dependents)

	g.AddNode("a") // Test idempotency
	assert.Len(t, g.nodes, 1)

	g.AddNode("b")
	assert.Len(t, g.nodes, 2)
	_, ok = g.nodes["b"]
	assert.True(t, ok)
}

func TestAddEdge(t *testing.T) {
	t.Run("success case", func(t *testing.T) {
		g := New[string]()
		g.AddNode("a")
		g.AddNode("b")

		err := g.AddEdge("a", "b") // b depends on a
		require.NoError(t, err)

		nodeA := g.nodes["a"]
		nodeB := g.nodes["b"]

		assert.Contains(t, nodeA.dependents, "b")
		assert.Equal(t, nodeB, nodeA.dependents["b"])
		assert.Contains(t, nodeB.deps, "a")
		assert.Equal(t, nodeA, nodeB.deps["a"])
	})

	t.Run("error cases", func(t *testing.T) {
		g := New[string]()
		g.AddNode("a")
		g.AddNode("b")

		err := g.AddEdge("dne", "a")
		assert.ErrorContains(t, err, "source node not found")

		err = g.AddEdge("a", "dne")
		assert.ErrorContains(t, err, "destination node not found")

		err = g.AddEdge("a", "a")
		assert.ErrorContains(t, err, "self-referential edge")
	})
}

func TestDetectCycles(t *testing.T) {
	t.Run("empty graph has no cycles", func(t *testing.T) {
		g := New[string]()
		assert.NoError(t, g.DetectCycles())
	})

	t.Run("graph with nodes but no edges has no cycles", func(t *testing.T) {
		g := New[string]()
		g.AddNode("a")
		g.AddNode("b")
		g.AddNode("c")
		assert.NoError(t, g.DetectCycles())
	})

	t.Run("valid dag has no cycles", func(t *testing.T) {
		g := New[string]()
		g.AddNode("a")
		g.AddNode("b")
		g.AddNode("c")
		g.AddNode("d")
		require.NoError(t, g.AddEdge("a", "b"))
		require.NoError(t, g.AddEdge("b", "c"))
		require.NoError(t, g.AddEdge("a", "c")) // Transitive edge
		require.NoError(t, g.AddEdge("c", "d"))
		assert.NoError(t, g.DetectCycles())
	})

	t.Run("simple direct cycle is detected", func(t *testing.T) {
		g := New[string]()
		g.AddNode("a")
		g.AddNode("b")
		require.NoError(t, g.AddEdge("a", "b"))
		require.NoError(t, g.AddEdge("b", "a")) // Cycle
		err := g.DetectCycles()
		assert.Error(t, err)
		assert.ErrorContains(t, err, "cycle detected")
	})

	t.Run("longer cycle is detected", func(t *testing.T) {
		g := New[string]()
		g.AddNode("a")
		g.AddNode("b")
		g.AddNode("c")
		g.AddNode("d")
		require.NoError(t, g.AddEdge("a", "b"))
		require.NoError(t, g.AddEdge("b", "c"))
		require.NoError(t, g.AddEdge("c", "d"))
		require.NoError(t, g.AddEdge("d", "a")) // Cycle back to the start
		err := g.DetectCycles()
		assert.Error(t, err)
		assert.ErrorContains(t, err, "cycle detected")
	})

	t.Run("cycle in a disjoint component is detected", func(t *testing.T) {
		g := New[string]()
		// Component 1 (valid)
		g.AddNode("a")
		g.AddNode("b")
		require.NoError(t, g.AddEdge("a", "b"))

		// Component 2 (has a cycle)
		g.AddNode("x")
		g.AddNode("y")
		g.AddNode("z")
		require.NoError(t, g.AddEdge("x", "y"))
		require.NoError(t, g.AddEdge("y", "z"))
		require.NoError(t, g.AddEdge("z", "y")) // Cycle

		err := g.DetectCycles()
		assert.Error(t, err)
		assert.ErrorContains(t, err, "cycle detected")
	})
}

func TestAddEdgeAcyclic(t *testing.T) {
	g := New[int]()

	assert.True(t, g.AddEdgeAcyclic(1, 2))
	assert.True(t, g.AddEdgeAcyclic(2, 3))
	assert.True(t, g.AddEdgeAcyclic(2, 3), "existing edge is accepted again")
	assert.False(t, g.AddEdgeAcyclic(3, 1), "edge would close 1 -> 2 -> 3 -> 1")
	assert.False(t, g.AddEdgeAcyclic(2, 2))

	assert.Equal(t, 3, g.Len())
	assert.NoError(t, g.DetectCycles())
}

func TestReaches(t *testing.T) {
	g := New[string]()
	require.True(t, g.AddEdgeAcyclic("a", "b"))
	require.True(t, g.AddEdgeAcyclic("b", "c"))
	require.True(t, g.AddEdgeAcyclic("x", "c"))

	assert.True(t, g.Reaches("a", "c", nil))
	assert.False(t, g.Reaches("c", "a", nil))
	assert.False(t, g.Reaches("a", "x", nil))
	assert.False(t, g.Reaches("a", "c", func(id string) bool { return id != "b" }))
	assert.False(t, g.Reaches("dne", "a", nil))
}

func TestRemoveNode(t *testing.T) {
	g := New[string]()
	require.True(t, g.AddEdgeAcyclic("a", "b"))
	require.True(t, g.AddEdgeAcyclic("b", "c"))

	g.RemoveNode("b")
	g.RemoveNode("dne")

	assert.False(t, g.Has("b"))
	assert.Equal(t, 2, g.Len())
	deps, err := g.Dependents("a")
	require.NoError(t, err)
	assert.Empty(t, deps)
	deps, err = g.Dependencies("c")
	require.NoError(t, err)
	assert.Empty(t, deps)
}

func TestTransitiveDependents(t *testing.T) {
	g := New[string]()
	require.True(t, g.AddEdgeAcyclic("a", "b"))
	require.True(t, g.AddEdgeAcyclic("b", "c"))
	require.True(t, g.AddEdgeAcyclic("a", "d"))
	require.True(t, g.AddEdgeAcyclic("x", "y"))

	assert.ElementsMatch(t, []string{"a", "b", "c", "d"}, g.TransitiveDependents("a"))
	assert.ElementsMatch(t, []string{"b", "c", "y"}, g.TransitiveDependents("b", "y", "dne"))
	assert.Empty(t, g.TransitiveDependents("dne"))
}
