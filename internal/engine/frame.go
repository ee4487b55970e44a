package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/vk/rulegrid/internal/node"
	"github.com/vk/rulegrid/internal/rules"
	"github.com/vk/rulegrid/internal/value"
)

type frameKey struct{}

// frame is the engine state of one running rule body. It is only touched
// by the goroutine running the body.
type frame struct {
	engine *Engine
	node   *node.Node
	held   bool
}

func frameFrom(ctx context.Context) (*frame, error) {
	f, ok := ctx.Value(frameKey{}).(*frame)
	if !ok {
		return nil, ErrNotInRule
	}
	return f, nil
}

// call runs fn while holding a worker slot and converts a panic into a
// PanicError.
func (f *frame) call(ctx context.Context, fn rules.Func, inputs []any) (out any, err error) {
	f.resume()
	defer func() {
		if p := recover(); p != nil {
			out, err = nil, &PanicError{Value: p, Stack: debug.Stack()}
		}
		f.suspend()
	}()
	return fn(ctx, inputs)
}

func (f *frame) suspend() {
	if f.held {
		f.engine.slots.Release(1)
		f.held = false
	}
}

func (f *frame) resume() {
	if !f.held {
		// The body context is detached, so Acquire cannot fail.
		_ = f.engine.slots.Acquire(context.Background(), 1)
		f.held = true
	}
}

// pending is an issued request that has not been waited for yet.
type pending struct {
	node *node.Node
	err  error
}

func (p pending) outcome() (any, error) {
	if p.err != nil {
		return nil, p.err
	}
	return outcome(p.node)
}

// issue validates a Get against the rule's declaration, dispatches union
// subjects and requests the child node.
func (f *frame) issue(ctx context.Context, product, subject value.TypeID, obj any) pending {
	e := f.engine
	types := e.rules.Types()
	entry := f.node.Entry()

	declared := false
	for _, g := range entry.Rule.Gets {
		if g.Product == product && g.Subject == subject {
			declared = true
			break
		}
	}
	if !declared {
		return pending{err: &UndeclaredGetError{Rule: entry.Rule.Name, Product: types.Name(product), Subject: types.Name(subject)}}
	}

	subjectType := subject
	if e.rules.Unions().IsUnion(subject) {
		subjectType = types.IDOf(obj)
		if err := e.rules.Unions().Dispatch(subject, subjectType); err != nil {
			return pending{err: err}
		}
	}

	child, ok := entry.GetEdge(product, subjectType)
	if !ok {
		return pending{err: fmt.Errorf("rule '%s' has no compiled Get(%s, %s)", entry.Rule.Name, types.Name(product), types.Name(subjectType))}
	}

	params := f.node.Params().With(e.interner.WrapAs(subjectType, obj))
	n, err := e.dependOn(ctx, f.node, child, params)
	return pending{node: n, err: err}
}

// wait releases the worker slot while the requests complete.
func (f *frame) wait(ps []pending) ([]any, []error) {
	f.suspend()
	defer f.resume()

	values := make([]any, len(ps))
	errs := make([]error, len(ps))
	for i, p := range ps {
		values[i], errs[i] = p.outcome()
	}
	return values, errs
}

// Get computes P for subject from inside a rule body. The rule must have
// declared the pair with registry.GetOf[P, S].
//
// A child that threw yields its *NodeError; a child that completed without
// a value, including one refused as a cycle, yields a *NoopError.
func Get[P, S any](ctx context.Context, subject S) (P, error) {
	var zero P
	f, err := frameFrom(ctx)
	if err != nil {
		return zero, err
	}
	types := f.engine.rules.Types()
	p := f.issue(ctx, value.Of[P](types), value.Of[S](types), any(subject))
	values, errs := f.wait([]pending{p})
	if errs[0] != nil {
		return zero, errs[0]
	}
	return as[P](values[0]), nil
}

// GetAll issues one Get per subject, waits for all of them, and returns
// the values in subject order.
func GetAll[P, S any](ctx context.Context, subjects []S) ([]P, error) {
	f, err := frameFrom(ctx)
	if err != nil {
		return nil, err
	}
	types := f.engine.rules.Types()
	product, subject := value.Of[P](types), value.Of[S](types)

	ps := make([]pending, len(subjects))
	for i, s := range subjects {
		ps[i] = f.issue(ctx, product, subject, any(s))
	}
	values, errs := f.wait(ps)
	if err := combine(errs); err != nil {
		return nil, err
	}
	out := make([]P, len(values))
	for i, v := range values {
		out[i] = as[P](v)
	}
	return out, nil
}

// Batch issues Gets of different types together.
//
//	b := engine.NewBatch(ctx)
//	files := engine.Add[Snapshot, PathGlobs](b, globs)
//	env := engine.Add[EnvironmentVars, EnvironmentVarsRequest](b, req)
//	if err := b.Wait(); err != nil { ... }
type Batch struct {
	ctx    context.Context
	frame  *frame
	err    error
	items  []pending
	values []any
	errs   []error
	waited bool
}

// NewBatch starts an empty batch. Outside a rule body every Future fails
// with ErrNotInRule.
func NewBatch(ctx context.Context) *Batch {
	f, err := frameFrom(ctx)
	return &Batch{ctx: ctx, frame: f, err: err}
}

// Future is the pending result of one request in a Batch.
type Future[P any] struct {
	batch *Batch
	idx   int
}

// Add issues Get[P, S] for subject as part of b.
func Add[P, S any](b *Batch, subject S) *Future[P] {
	fut := &Future[P]{batch: b, idx: len(b.items)}
	if b.err != nil {
		b.items = append(b.items, pending{err: b.err})
		return fut
	}
	types := b.frame.engine.rules.Types()
	b.items = append(b.items, b.frame.issue(b.ctx, value.Of[P](types), value.Of[S](types), any(subject)))
	return fut
}

// Wait blocks until every request in the batch completed.
func (b *Batch) Wait() error {
	if b.waited {
		return combine(b.errs)
	}
	if b.frame == nil {
		b.values = make([]any, len(b.items))
		b.errs = make([]error, len(b.items))
		for i, p := range b.items {
			b.errs[i] = p.err
		}
	} else {
		b.values, b.errs = b.frame.wait(b.items)
	}
	b.waited = true
	if b.err != nil {
		return b.err
	}
	return combine(b.errs)
}

// Value returns the result. It must be called after Wait.
func (f *Future[P]) Value() (P, error) {
	var zero P
	if !f.batch.waited {
		return zero, errors.New("engine: Future.Value called before Batch.Wait")
	}
	if err := f.batch.errs[f.idx]; err != nil {
		return zero, err
	}
	return as[P](f.batch.values[f.idx]), nil
}

func as[T any](v any) T {
	t, _ := v.(T)
	return t
}
