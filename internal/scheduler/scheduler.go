package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"
	"sync"

	"github.com/vk/rulegrid/internal/ctxlog"
	"github.com/vk/rulegrid/internal/engine"
	"github.com/vk/rulegrid/internal/graph"
	"github.com/vk/rulegrid/internal/metrics"
	"github.com/vk/rulegrid/internal/node"
	"github.com/vk/rulegrid/internal/rulegraph"
	"github.com/vk/rulegrid/internal/rules"
	"github.com/vk/rulegrid/internal/value"
	"github.com/vk/rulegrid/internal/workunit"
)

// Option configures a Scheduler.
type Option func(*options)

type options struct {
	workers  int
	recorder metrics.Recorder
	sinks    []workunit.Sink
	interner *value.Interner
}

// WithWorkers bounds how many rule bodies run at once.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(o *options) { o.recorder = r }
}

// WithSinks adds workunit sinks.
func WithSinks(sinks ...workunit.Sink) Option {
	return func(o *options) { o.sinks = append(o.sinks, sinks...) }
}

// WithInterner shares an interner, so callers can build keys for Invalidate
// with the same identities.
func WithInterner(in *value.Interner) Option {
	return func(o *options) { o.interner = in }
}

// Request asks for Product computed from Params.
type Request struct {
	Product rules.Product
	Params  []any
}

// Result is the outcome of one Request.
type Result struct {
	State node.State
	Value any
	Err   error
}

// Scheduler computes products against a compiled rule graph and memoizes
// them between calls.
type Scheduler struct {
	rules    *rulegraph.RuleGraph
	interner *value.Interner
	graph    *graph.Graph
	engine   *engine.Engine
	recorder metrics.Recorder
}

// New creates a scheduler for rg.
func New(rg *rulegraph.RuleGraph, opts ...Option) *Scheduler {
	o := options{recorder: metrics.NoopRecorder{}}
	for _, opt := range opts {
		opt(&o)
	}
	if o.interner == nil {
		o.interner = value.NewInterner(rg.Types())
	}
	g := graph.New(rg.Types())
	return &Scheduler{
		rules:    rg,
		interner: o.interner,
		graph:    g,
		recorder: o.recorder,
		engine: engine.New(rg, g, o.interner, engine.Config{
			Workers:  o.workers,
			Recorder: o.recorder,
			Sink:     workunit.Fanout(o.sinks),
		}),
	}
}

// Interner returns the scheduler's value interner.
func (s *Scheduler) Interner() *value.Interner { return s.interner }

// Rules returns the compiled rule graph.
func (s *Scheduler) Rules() *rulegraph.RuleGraph { return s.rules }

// Product returns the unqualified product for rt.
func (s *Scheduler) Product(rt reflect.Type) rules.Product {
	return rules.ProductOf(s.rules.Types().Intern(rt))
}

// Execute computes every request concurrently and returns one Result per
// request, in order. If any root threw, the error is an *ExecutionError
// holding every failure. A root that completed without a value throws; for
// a refused cycle the error is a *CycleError.
func (s *Scheduler) Execute(ctx context.Context, reqs ...Request) ([]Result, error) {
	logger := ctxlog.FromContext(ctx)
	results := make([]Result, len(reqs))

	var wg sync.WaitGroup
	for i, req := range reqs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = s.execute(ctx, req)
		}()
	}
	wg.Wait()

	var errs []error
	for _, r := range results {
		if r.Err == nil {
			continue
		}
		if errors.Is(r.Err, context.Canceled) || errors.Is(r.Err, context.DeadlineExceeded) {
			return results, r.Err
		}
		errs = append(errs, r.Err)
	}
	if len(errs) > 0 {
		logger.Warn("Execution failed.", "roots", len(reqs), "failed", len(errs))
		return results, &ExecutionError{Errors: errs}
	}
	return results, nil
}

func (s *Scheduler) execute(ctx context.Context, req Request) Result {
	n, err := s.root(ctx, req, true)
	if err != nil {
		return Result{State: node.Throw, Err: err}
	}
	r, err := n.Wait(ctx)
	if err != nil {
		return Result{State: n.State(), Err: err}
	}
	switch r.State {
	case node.Noop:
		desc := n.Describe(s.rules.Types())
		if r.Reason == engine.ReasonCycle {
			return Result{State: node.Throw, Err: &CycleError{Root: desc}}
		}
		return Result{State: node.Throw, Err: fmt.Errorf("%s produced no value: %w", desc, &engine.NoopError{Reason: r.Reason})}
	default:
		return Result{State: r.State, Value: r.Value, Err: r.Err}
	}
}

// root finds the node for req, creating and starting it when start is set.
func (s *Scheduler) root(ctx context.Context, req Request, start bool) (*node.Node, error) {
	types := s.rules.Types()
	vals := make([]value.Value, len(req.Params))
	for i, p := range req.Params {
		vals[i] = s.interner.Wrap(p)
	}
	params := value.NewParams(vals...)

	entry, ok := s.rules.Lookup(params.Types(), req.Product)
	if !ok {
		return nil, &NoRootError{Product: req.Product.Describe(types), Params: params.Types().Names(types)}
	}
	if start {
		return s.engine.Request(ctx, entry, params), nil
	}
	n, ok := s.graph.Lookup(node.KeyFor(entry, params.Restrict(entry.Used)))
	if !ok {
		return nil, fmt.Errorf("%s has not been computed", req.Product.Describe(types))
	}
	return n, nil
}

// Run computes T from params.
func Run[T any](ctx context.Context, s *Scheduler, params ...any) (T, error) {
	var zero T
	results, err := s.Execute(ctx, Request{Product: s.Product(reflect.TypeFor[T]()), Params: params})
	if err != nil {
		var exec *ExecutionError
		if errors.As(err, &exec) && len(exec.Errors) == 1 {
			return zero, exec.Errors[0]
		}
		return zero, err
	}
	v, _ := results[0].Value.(T)
	return v, nil
}

// Invalidate removes every node whose params hold one of keys, together
// with all nodes that depended on them. It returns how many were removed.
func (s *Scheduler) Invalidate(keys ...value.Key) int {
	n := s.graph.InvalidateKeys(keys...)
	s.invalidated(n)
	return n
}

// InvalidateValues is Invalidate for values, interned with the scheduler's
// interner.
func (s *Scheduler) InvalidateValues(vals ...any) int {
	keys := make([]value.Key, len(vals))
	for i, v := range vals {
		keys[i] = s.interner.Put(v)
	}
	return s.Invalidate(keys...)
}

// InvalidateFiles removes nodes whose params are affected by a change to
// any of paths, together with their dependents.
func (s *Scheduler) InvalidateFiles(paths ...string) int {
	n := s.graph.InvalidateFiles(paths...)
	s.invalidated(n)
	return n
}

func (s *Scheduler) invalidated(n int) {
	s.recorder.AddInvalidated(n)
	s.recorder.SetGraphSize(s.graph.Len())
}

// Trace renders the subgraph below an already computed request.
func (s *Scheduler) Trace(ctx context.Context, req Request) (string, error) {
	n, err := s.root(ctx, req, false)
	if err != nil {
		return "", err
	}
	return s.graph.Trace(n), nil
}

// GraphLen returns the number of nodes in the product graph.
func (s *Scheduler) GraphLen() int {
	return s.graph.Len()
}

// WriteDot renders the product graph in Graphviz dot format.
func (s *Scheduler) WriteDot(w io.Writer) error {
	return s.graph.WriteDot(w)
}
