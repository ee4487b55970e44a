// Package node holds the per-key state machine of the product graph.
package node

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vk/rulegrid/internal/rulegraph"
	"github.com/vk/rulegrid/internal/value"
	"github.com/vk/rulegrid/internal/workunit"
)

// State is the lifecycle position of a node.
type State int32

const (
	Unstarted State = iota
	Running
	Return
	Throw
	Noop
)

func (s State) String() string {
	switch s {
	case Unstarted:
		return "Unstarted"
	case Running:
		return "Running"
	case Return:
		return "Return"
	case Throw:
		return "Throw"
	case Noop:
		return "Noop"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Terminal reports whether s is a completed state.
func (s State) Terminal() bool {
	return s >= Return
}

// Key identifies a node: the compiled entry and the params it consumes.
type Key struct {
	Entry  int
	Params string
}

func (k Key) String() string {
	return fmt.Sprintf("%d%s", k.Entry, k.Params)
}

// KeyFor builds the key of entry run with params already restricted to the
// entry's used types.
func KeyFor(entry *rulegraph.Entry, params value.Params) Key {
	return Key{Entry: entry.ID, Params: params.String()}
}

// Result is the terminal outcome of a node.
type Result struct {
	State  State
	Value  any
	Err    error
	Reason string
}

// Node is one (entry, params) computation.
type Node struct {
	key    Key
	entry  *rulegraph.Entry
	params value.Params
	span   string

	state  atomic.Int32
	once   sync.Once
	done   chan struct{}
	result Result

	mu       sync.Mutex
	started  time.Time
	finished time.Time
}

// New creates an unstarted node.
func New(entry *rulegraph.Entry, params value.Params) *Node {
	return &Node{
		key:    KeyFor(entry, params),
		entry:  entry,
		params: params,
		span:   workunit.NewSpanID(),
		done:   make(chan struct{}),
	}
}

func (n *Node) Key() Key                { return n.key }
func (n *Node) Entry() *rulegraph.Entry { return n.entry }
func (n *Node) Params() value.Params    { return n.params }

// Span is the workunit span id of this node.
func (n *Node) Span() string { return n.span }

// State returns the current state.
func (n *Node) State() State {
	return State(n.state.Load())
}

// Start moves the node from Unstarted to Running. Exactly one caller gets
// true.
func (n *Node) Start() bool {
	if !n.state.CompareAndSwap(int32(Unstarted), int32(Running)) {
		return false
	}
	n.mu.Lock()
	n.started = time.Now()
	n.mu.Unlock()
	return true
}

// Complete records the terminal result. Only the first call has any
// effect; it reports whether this call completed the node.
func (n *Node) Complete(r Result) bool {
	if !r.State.Terminal() {
		panic(fmt.Sprintf("node %s completed with non-terminal state %s", n.key, r.State))
	}
	completed := false
	n.once.Do(func() {
		n.mu.Lock()
		n.result = r
		n.finished = time.Now()
		n.mu.Unlock()
		n.state.Store(int32(r.State))
		close(n.done)
		completed = true
	})
	return completed
}

// Done is closed once the node is terminal.
func (n *Node) Done() <-chan struct{} {
	return n.done
}

// Result returns the terminal result, if any.
func (n *Node) Result() (Result, bool) {
	select {
	case <-n.done:
		n.mu.Lock()
		defer n.mu.Unlock()
		return n.result, true
	default:
		return Result{State: n.State()}, false
	}
}

// Wait blocks until the node is terminal or ctx is done.
func (n *Node) Wait(ctx context.Context) (Result, error) {
	select {
	case <-n.done:
		r, _ := n.Result()
		return r, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Elapsed returns how long the node has run, or ran.
func (n *Node) Elapsed() time.Duration {
	n.mu.Lock()
	defer n.mu.Unlock()
	switch {
	case n.started.IsZero():
		return 0
	case n.finished.IsZero():
		return time.Since(n.started)
	default:
		return n.finished.Sub(n.started)
	}
}

// Describe renders the node for traces.
func (n *Node) Describe(types *value.Types) string {
	if n.params.Len() == 0 {
		return n.entry.Describe(types)
	}
	return n.entry.Describe(types) + " with " + n.params.Describe(types)
}
