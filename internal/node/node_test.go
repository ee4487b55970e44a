package node

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/rulegrid/internal/rulegraph"
	"github.com/vk/rulegrid/internal/rules"
	"github.com/vk/rulegrid/internal/value"
)

func newTestNode(t *testing.T) *Node {
	t.Helper()
	types := value.NewTypes()
	in := value.NewInterner(types)
	entry := &rulegraph.Entry{ID: 3, Kind: rulegraph.RuleEntry, Product: rules.ProductOf(value.Of[int](types)), Rule: &rules.Rule{Name: "count"}}
	return New(entry, value.NewParams(in.Wrap("x")))
}

func TestNode_StartOnlyOnce(t *testing.T) {
	n := newTestNode(t)
	require.Equal(t, Unstarted, n.State())

	var winners atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if n.Start() {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), winners.Load())
	assert.Equal(t, Running, n.State())
}

func TestNode_CompleteIsImmutable(t *testing.T) {
	n := newTestNode(t)
	require.True(t, n.Start())

	require.True(t, n.Complete(Result{State: Return, Value: 42}))
	require.False(t, n.Complete(Result{State: Throw, Err: errors.New("late")}))

	r, ok := n.Result()
	require.True(t, ok)
	assert.Equal(t, Return, r.State)
	assert.Equal(t, 42, r.Value)
	assert.Equal(t, Return, n.State())
}

func TestNode_CompleteRejectsNonTerminal(t *testing.T) {
	n := newTestNode(t)
	assert.Panics(t, func() { n.Complete(Result{State: Running}) })
}

func TestNode_Wait(t *testing.T) {
	t.Run("returns the result once completed", func(t *testing.T) {
		n := newTestNode(t)
		go func() {
			time.Sleep(10 * time.Millisecond)
			n.Complete(Result{State: Noop, Reason: "cycle"})
		}()

		r, err := n.Wait(context.Background())
		require.NoError(t, err)
		assert.Equal(t, Noop, r.State)
		assert.Equal(t, "cycle", r.Reason)
	})

	t.Run("gives up when the caller's context ends", func(t *testing.T) {
		n := newTestNode(t)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		_, err := n.Wait(ctx)
		require.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Equal(t, Unstarted, n.State())
	})
}

func TestKey(t *testing.T) {
	n := newTestNode(t)
	assert.Equal(t, 3, n.Key().Entry)
	assert.Equal(t, n.Params().String(), n.Key().Params)
	assert.NotEmpty(t, n.Span())
	assert.True(t, Throw.Terminal())
	assert.False(t, Running.Terminal())
}
