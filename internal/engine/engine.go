package engine

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/vk/rulegrid/internal/ctxlog"
	"github.com/vk/rulegrid/internal/graph"
	"github.com/vk/rulegrid/internal/metrics"
	"github.com/vk/rulegrid/internal/node"
	"github.com/vk/rulegrid/internal/rulegraph"
	"github.com/vk/rulegrid/internal/value"
	"github.com/vk/rulegrid/internal/workunit"
	"golang.org/x/sync/semaphore"
)

// Config tunes an Engine. Zero values select defaults.
type Config struct {
	// Workers bounds how many rule bodies run at once. Defaults to
	// runtime.NumCPU().
	Workers  int
	Recorder metrics.Recorder
	Sink     workunit.Sink
}

// Engine executes nodes of one product graph against one compiled rule
// graph.
type Engine struct {
	rules    *rulegraph.RuleGraph
	graph    *graph.Graph
	interner *value.Interner
	slots    *semaphore.Weighted
	recorder metrics.Recorder
	sink     workunit.Sink
}

// New creates an engine.
func New(rg *rulegraph.RuleGraph, g *graph.Graph, interner *value.Interner, cfg Config) *Engine {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.Recorder == nil {
		cfg.Recorder = metrics.NoopRecorder{}
	}
	if cfg.Sink == nil {
		cfg.Sink = workunit.Fanout(nil)
	}
	return &Engine{
		rules:    rg,
		graph:    g,
		interner: interner,
		slots:    semaphore.NewWeighted(int64(cfg.Workers)),
		recorder: cfg.Recorder,
		sink:     cfg.Sink,
	}
}

// Graph returns the product graph the engine populates.
func (e *Engine) Graph() *graph.Graph { return e.graph }

// Rules returns the compiled rule graph.
func (e *Engine) Rules() *rulegraph.RuleGraph { return e.rules }

// Interner returns the value interner.
func (e *Engine) Interner() *value.Interner { return e.interner }

// Request returns the node computing entry from params, starting it if
// nobody has yet. params may hold more values than the entry uses.
func (e *Engine) Request(ctx context.Context, entry *rulegraph.Entry, params value.Params) *node.Node {
	return e.request(ctx, entry, params, nil)
}

func (e *Engine) request(ctx context.Context, entry *rulegraph.Entry, params value.Params, parent *node.Node) *node.Node {
	n, created := e.graph.GetOrCreate(entry, params.Restrict(entry.Used))
	e.recorder.IncNodeRequest(!created)
	if created {
		e.recorder.SetGraphSize(e.graph.Len())
	}
	if n.Start() {
		parentSpan := ""
		if parent != nil {
			parentSpan = parent.Span()
		}
		go e.run(context.WithoutCancel(ctx), n, parentSpan)
	}
	return n
}

// dependOn requests child on behalf of parent and records the edge. A child
// invalidated before the edge lands is requested again.
func (e *Engine) dependOn(ctx context.Context, parent *node.Node, entry *rulegraph.Entry, params value.Params) (*node.Node, error) {
	for {
		child := e.request(ctx, entry, params, parent)
		err := e.graph.AddEdge(parent, child)
		switch {
		case err == nil:
			return child, nil
		case errors.Is(err, graph.ErrStale):
			ctxlog.FromContext(ctx).Debug("Dependency invalidated before use, requesting again.", "dependency", child.Describe(e.rules.Types()))
		case errors.Is(err, graph.ErrCycle):
			ctxlog.FromContext(ctx).Debug("Refusing dependency cycle.", "node", parent.Describe(e.rules.Types()), "dependency", child.Describe(e.rules.Types()))
			return nil, &NoopError{Reason: ReasonCycle}
		default:
			return nil, err
		}
	}
}

func (e *Engine) run(ctx context.Context, n *node.Node, parentSpan string) {
	types := e.rules.Types()
	desc := n.Describe(types)
	ruleName := ruleLabel(n.Entry())
	ctx = ctxlog.With(ctx, "node", desc)
	logger := ctxlog.FromContext(ctx)

	started := time.Now()
	e.sink.Emit(ctx, workunit.Event{
		Kind:        workunit.Started,
		SpanID:      n.Span(),
		ParentID:    parentSpan,
		Rule:        ruleName,
		Description: desc,
		Time:        started,
	})
	logger.Debug("Node started.")

	var r node.Result
	func() {
		defer func() {
			if p := recover(); p != nil {
				r = node.Result{State: node.Throw, Err: wrapNodeError(desc, &PanicError{Value: p, Stack: debug.Stack()})}
			}
		}()
		r = e.execute(ctx, n, desc)
	}()

	elapsed := time.Since(started)
	e.recorder.ObserveNodeDuration(ruleName, elapsed)
	e.recorder.IncNodeResult(ruleName, resultLabel(r.State))
	ev := workunit.Event{
		Kind:        workunit.Completed,
		SpanID:      n.Span(),
		ParentID:    parentSpan,
		Rule:        ruleName,
		Description: desc,
		State:       r.State.String(),
		Time:        time.Now(),
		Duration:    elapsed,
	}
	if r.Err != nil {
		ev.Error = r.Err.Error()
	}
	e.sink.Emit(ctx, ev)
	logger.Debug("Node finished.", "state", r.State.String(), "duration", elapsed)
	n.Complete(r)
}

func (e *Engine) execute(ctx context.Context, n *node.Node, desc string) node.Result {
	entry := n.Entry()
	switch entry.Kind {
	case rulegraph.ParamEntry:
		v, ok := n.Params().Find(entry.Product.Type)
		if !ok {
			return throw(desc, fmt.Errorf("param %s missing", e.rules.Types().Name(entry.Product.Type)))
		}
		return node.Result{State: node.Return, Value: v.Get()}
	case rulegraph.ComposedEntry:
		return e.compose(ctx, n, desc)
	default:
		return e.runRule(ctx, n, desc)
	}
}

// compose concatenates the outputs of the partial rules of a composed
// entry, in part order.
func (e *Engine) compose(ctx context.Context, n *node.Node, desc string) node.Result {
	entry := n.Entry()
	values, err := e.await(ctx, n, entry.Parts)
	if err != nil {
		return e.fail(desc, err)
	}
	rt := e.rules.Types().Type(entry.Product.Type)
	out := reflect.MakeSlice(rt, 0, 0)
	for _, v := range values {
		if v == nil {
			continue
		}
		out = reflect.AppendSlice(out, reflect.ValueOf(v))
	}
	return node.Result{State: node.Return, Value: out.Interface()}
}

func (e *Engine) runRule(ctx context.Context, n *node.Node, desc string) node.Result {
	entry := n.Entry()
	inputs, err := e.await(ctx, n, entry.Inputs)
	if err != nil {
		return e.fail(desc, err)
	}

	f := &frame{engine: e, node: n}
	bodyCtx := context.WithValue(ctxlog.With(ctx, "rule", entry.Rule.Name), frameKey{}, f)
	out, err := f.call(bodyCtx, entry.Rule.Func, inputs)
	if err != nil {
		return e.fail(desc, err)
	}
	return node.Result{State: node.Return, Value: out}
}

// await resolves entries on behalf of n without holding a worker slot.
// Param entries are read directly from n's params.
func (e *Engine) await(ctx context.Context, n *node.Node, entries []*rulegraph.Entry) ([]any, error) {
	values := make([]any, len(entries))
	children := make([]*node.Node, len(entries))
	for i, in := range entries {
		if in.Kind == rulegraph.ParamEntry {
			v, ok := n.Params().Find(in.Product.Type)
			if !ok {
				return nil, fmt.Errorf("param %s missing", e.rules.Types().Name(in.Product.Type))
			}
			values[i] = v.Get()
			continue
		}
		child, err := e.dependOn(ctx, n, in, n.Params())
		if err != nil {
			return nil, err
		}
		children[i] = child
	}
	errs := make([]error, len(entries))
	for i, child := range children {
		if child == nil {
			continue
		}
		values[i], errs[i] = outcome(child)
	}
	if err := combine(errs); err != nil {
		return nil, err
	}
	return values, nil
}

// fail turns a body or dependency error into a terminal result.
func (e *Engine) fail(desc string, err error) node.Result {
	var noop *NoopError
	if errors.As(err, &noop) {
		return node.Result{State: node.Noop, Reason: noop.Reason}
	}
	return throw(desc, err)
}

func throw(desc string, err error) node.Result {
	return node.Result{State: node.Throw, Err: wrapNodeError(desc, err)}
}

// outcome waits for n and converts its result into a value or an error.
func outcome(n *node.Node) (any, error) {
	r, _ := n.Wait(context.Background())
	switch r.State {
	case node.Return:
		return r.Value, nil
	case node.Noop:
		return nil, &NoopError{Reason: r.Reason}
	default:
		return nil, r.Err
	}
}

func ruleLabel(entry *rulegraph.Entry) string {
	switch entry.Kind {
	case rulegraph.ParamEntry:
		return "param"
	case rulegraph.ComposedEntry:
		return "compose"
	default:
		return entry.Rule.Name
	}
}

func resultLabel(s node.State) metrics.ResultLabel {
	switch s {
	case node.Return:
		return metrics.ResultReturn
	case node.Noop:
		return metrics.ResultNoop
	default:
		return metrics.ResultThrow
	}
}
