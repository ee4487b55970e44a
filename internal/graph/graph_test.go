package graph

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/rulegrid/internal/node"
	"github.com/vk/rulegrid/internal/rulegraph"
	"github.com/vk/rulegrid/internal/rules"
	"github.com/vk/rulegrid/internal/value"
)

type watchedDir string

func (d watchedDir) InvalidatedBy(path string) bool {
	return strings.HasPrefix(path, string(d)+"/")
}

type fixture struct {
	types    *value.Types
	interner *value.Interner
	graph    *Graph
	nextID   int
}

func newFixture() *fixture {
	types := value.NewTypes()
	return &fixture{types: types, interner: value.NewInterner(types), graph: New(types)}
}

func (f *fixture) entry(name string) *rulegraph.Entry {
	f.nextID++
	return &rulegraph.Entry{ID: f.nextID, Kind: rulegraph.RuleEntry, Rule: &rules.Rule{Name: name}}
}

func (f *fixture) node(t *testing.T, name string, params ...any) *node.Node {
	t.Helper()
	vals := make([]value.Value, len(params))
	for i, p := range params {
		vals[i] = f.interner.Wrap(p)
	}
	n, created := f.graph.GetOrCreate(f.entry(name), value.NewParams(vals...))
	require.True(t, created)
	return n
}

func TestGetOrCreate_Memoizes(t *testing.T) {
	f := newFixture()
	e := f.entry("root")
	params := value.NewParams(f.interner.Wrap("a"))

	n1, created := f.graph.GetOrCreate(e, params)
	require.True(t, created)
	n2, created := f.graph.GetOrCreate(e, value.NewParams(f.interner.Wrap("a")))
	require.False(t, created)
	require.Same(t, n1, n2)

	n3, created := f.graph.GetOrCreate(e, value.NewParams(f.interner.Wrap("b")))
	require.True(t, created)
	require.NotSame(t, n1, n3)
	assert.Equal(t, 2, f.graph.Len())

	got, ok := f.graph.Lookup(n1.Key())
	require.True(t, ok)
	assert.Same(t, n1, got)
}

func TestAddEdge_RefusesCycles(t *testing.T) {
	f := newFixture()
	a := f.node(t, "a", "x")
	b := f.node(t, "b", "x")
	c := f.node(t, "c", "x")

	require.ErrorIs(t, f.graph.AddEdge(a, a), ErrCycle)
	require.NoError(t, f.graph.AddEdge(a, b))
	require.NoError(t, f.graph.AddEdge(b, c))
	require.ErrorIs(t, f.graph.AddEdge(c, a), ErrCycle, "c would wait on a which waits on c")

	assert.Equal(t, []*node.Node{b}, f.graph.Dependencies(a))
}

func TestAddEdge_CompletedNodesBreakTheWait(t *testing.T) {
	f := newFixture()
	a := f.node(t, "a", "x")
	b := f.node(t, "b", "x")
	c := f.node(t, "c", "x")

	require.NoError(t, f.graph.AddEdge(a, b))
	require.NoError(t, f.graph.AddEdge(b, c))
	b.Complete(node.Result{State: node.Return, Value: 1})

	assert.NoError(t, f.graph.AddEdge(c, a))
}

func TestInvalidate(t *testing.T) {
	f := newFixture()
	root := f.node(t, "root", "r")
	mid := f.node(t, "mid", "m")
	leaf := f.node(t, "leaf", watchedDir("src"))
	other := f.node(t, "other", "o")
	require.NoError(t, f.graph.AddEdge(root, mid))
	require.NoError(t, f.graph.AddEdge(mid, leaf))
	require.NoError(t, f.graph.AddEdge(other, leaf))

	t.Run("unaffected paths remove nothing", func(t *testing.T) {
		assert.Equal(t, 0, f.graph.InvalidateFiles("docs/readme.md"))
		assert.Equal(t, 4, f.graph.Len())
	})

	t.Run("keys remove the node and its dependents", func(t *testing.T) {
		assert.Equal(t, 2, f.graph.InvalidateKeys(f.interner.Put("m")))
		assert.Equal(t, 2, f.graph.Len())
		_, ok := f.graph.Lookup(root.Key())
		assert.False(t, ok)
		_, ok = f.graph.Lookup(leaf.Key())
		assert.True(t, ok)
	})

	t.Run("files remove file dependent nodes", func(t *testing.T) {
		assert.Equal(t, 2, f.graph.InvalidateFiles("src/main.go"))
		assert.Equal(t, 0, f.graph.Len())
	})
}

func TestAddEdge_InvalidatedNodes(t *testing.T) {
	t.Run("invalidated child is stale", func(t *testing.T) {
		f := newFixture()
		a := f.node(t, "a", "x")
		b := f.node(t, "b", "y")
		require.Equal(t, 1, f.graph.InvalidateKeys(f.interner.Put("y")))

		require.ErrorIs(t, f.graph.AddEdge(a, b), ErrStale)
		assert.Empty(t, f.graph.Dependencies(a))
	})

	t.Run("replaced child is stale", func(t *testing.T) {
		f := newFixture()
		e := f.entry("b")
		a := f.node(t, "a", "x")
		old, _ := f.graph.GetOrCreate(e, value.NewParams(f.interner.Wrap("y")))
		require.Equal(t, 1, f.graph.InvalidateKeys(f.interner.Put("y")))
		fresh, created := f.graph.GetOrCreate(e, value.NewParams(f.interner.Wrap("y")))
		require.True(t, created)

		require.ErrorIs(t, f.graph.AddEdge(a, old), ErrStale)
		require.NoError(t, f.graph.AddEdge(a, fresh))
		assert.Equal(t, []*node.Node{fresh}, f.graph.Dependencies(a))
	})

	t.Run("invalidated parent is ignored", func(t *testing.T) {
		f := newFixture()
		a := f.node(t, "a", "x")
		b := f.node(t, "b", "y")
		require.Equal(t, 1, f.graph.InvalidateKeys(f.interner.Put("x")))

		require.NoError(t, f.graph.AddEdge(a, b))
		assert.Equal(t, 1, f.graph.InvalidateKeys(f.interner.Put("y")))
	})
}

func TestTrace(t *testing.T) {
	f := newFixture()
	root := f.node(t, "root", "a")
	left := f.node(t, "left", "a")
	right := f.node(t, "right", "a")
	require.NoError(t, f.graph.AddEdge(root, left))
	require.NoError(t, f.graph.AddEdge(root, right))
	require.NoError(t, f.graph.AddEdge(left, right))
	right.Complete(node.Result{State: node.Noop, Reason: "cycle"})
	left.Complete(node.Result{State: node.Throw, Err: errors.New("boom")})

	want := "" +
		"[Unstarted] root for () with Params(string(a))\n" +
		"  [Throw] left for () with Params(string(a)): boom\n" +
		"    [Noop] right for () with Params(string(a)): cycle\n" +
		"  right for () with Params(string(a)) (see above)\n"
	assert.Equal(t, want, f.graph.Trace(root))
}

func TestWriteDot(t *testing.T) {
	f := newFixture()
	root := f.node(t, "root", "a")
	leaf := f.node(t, "leaf", "a")
	require.NoError(t, f.graph.AddEdge(root, leaf))
	root.Complete(node.Result{State: node.Return, Value: 1})
	leaf.Complete(node.Result{State: node.Throw, Err: errors.New("boom\nmore detail")})

	var buf bytes.Buffer
	require.NoError(t, f.graph.WriteDot(&buf))

	gold := goldie.New(t)
	gold.Assert(t, "product_graph", buf.Bytes())
}
