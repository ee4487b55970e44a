package rulegraph

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/vk/rulegrid/internal/ctxlog"
	"github.com/vk/rulegrid/internal/registry"
	"github.com/vk/rulegrid/internal/rules"
	"github.com/vk/rulegrid/internal/union"
	"github.com/vk/rulegrid/internal/value"
)

type edgeKind int

const (
	edgeRoot edgeKind = iota
	edgeInput
	edgeGet
)

type memoKey struct {
	product rules.Product
	avail   string
}

type frame struct {
	key memoKey
	via edgeKind
}

// result is the outcome of resolving one (product, params) pair. pending
// lists in-progress pairs the result was built on; such results are only
// valid inside their ancestor and are not memoized.
type result struct {
	entry   *Entry
	err     error
	pending map[memoKey]bool
}

type compiler struct {
	types    *value.Types
	unions   *union.Membership
	byOutput map[rules.Product][]*rules.Rule

	params       map[rules.Product]*Entry
	memo         map[memoKey]result
	stack        []frame
	onStack      map[memoKey]int
	placeholders map[memoKey]*Entry
}

// Compile validates the registry and compiles it into a RuleGraph. All
// problems are reported together in a *CompileError.
func Compile(ctx context.Context, reg *registry.Registry) (*RuleGraph, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Compiling rule graph.", "rules", len(reg.Rules()), "roots", len(reg.Roots()), "queries", len(reg.Queries()))

	if err := reg.Validate(ctx); err != nil {
		return nil, err
	}

	types := reg.Types()
	membership, errs := union.New(types, reg.Unions(), reg.UnionMembers())

	c := &compiler{
		types:        types,
		unions:       membership,
		byOutput:     make(map[rules.Product][]*rules.Rule),
		params:       make(map[rules.Product]*Entry),
		memo:         make(map[memoKey]result),
		onStack:      make(map[memoKey]int),
		placeholders: make(map[memoKey]*Entry),
	}
	for _, r := range reg.Rules() {
		c.byOutput[r.Output] = append(c.byOutput[r.Output], r)
	}

	g := &RuleGraph{
		types:  types,
		unions: membership,
		roots:  make(map[rootKey]*Entry),
	}
	addRoot := func(product rules.Product, params value.TypeSet, e *Entry) {
		k := rootKey{product: product, params: params.Key()}
		if _, ok := g.roots[k]; ok {
			return
		}
		g.roots[k] = e
		g.order = append(g.order, Root{Product: product, Params: params, Entry: e})
	}

	for _, q := range reg.Queries() {
		r := c.resolve(q.Product, q.Params, edgeRoot)
		if r.err != nil {
			errs = append(errs, r.err)
			continue
		}
		addRoot(q.Product, q.Params, r.entry)
	}

	for _, root := range reg.Roots() {
		params := value.NewTypeSet(root)
		for _, product := range c.products() {
			r := c.resolve(product, params, edgeRoot)
			var missing *MissingRuleError
			switch {
			case r.err == nil:
				addRoot(product, params, r.entry)
			case errors.As(r.err, &missing):
				logger.Debug("Skipping unreachable root pair.", "product", product.Describe(types), "root", types.Name(root))
			default:
				errs = append(errs, r.err)
			}
		}
	}

	if len(errs) > 0 {
		return nil, &CompileError{Errors: dedupe(errs)}
	}

	g.entries = collect(g.order)
	fixUsed(g.entries)

	logger.Debug("Rule graph compiled.", "roots", len(g.order), "entries", len(g.entries))
	return g, nil
}

// products lists every rule output in registration order.
func (c *compiler) products() []rules.Product {
	var out []rules.Product
	seen := make(map[rules.Product]bool)
	for _, rs := range c.byOutput {
		for _, r := range rs {
			if !seen[r.Output] {
				seen[r.Output] = true
				out = append(out, r.Output)
			}
		}
	}
	sortProducts(out)
	return out
}

func (c *compiler) describe(p rules.Product, avail value.TypeSet) (string, string) {
	return p.Describe(c.types), avail.Names(c.types)
}

func (c *compiler) resolve(p rules.Product, avail value.TypeSet, via edgeKind) result {
	if p.Variant == "" && avail.Contains(p.Type) {
		return result{entry: c.paramEntry(p)}
	}

	key := memoKey{product: p, avail: avail.Key()}
	if r, ok := c.memo[key]; ok {
		return r
	}
	if idx, ok := c.onStack[key]; ok {
		return c.reenter(key, idx, via, p, avail)
	}

	c.onStack[key] = len(c.stack)
	c.stack = append(c.stack, frame{key: key, via: via})
	placeholder := &Entry{Product: p}
	c.placeholders[key] = placeholder
	defer func() {
		c.stack = c.stack[:len(c.stack)-1]
		delete(c.onStack, key)
		delete(c.placeholders, key)
	}()

	r := c.resolveCandidates(p, avail)
	delete(r.pending, key)
	if r.entry != nil {
		*placeholder = *r.entry
		r.entry = placeholder
	}
	if len(r.pending) == 0 {
		r.pending = nil
		c.memo[key] = r
	}
	return r
}

// reenter handles a pair that is already being resolved further up the
// stack. Recursion is fine if a Get edge sits anywhere on the loop.
func (c *compiler) reenter(key memoKey, idx int, via edgeKind, p rules.Product, avail value.TypeSet) result {
	throughGet := via == edgeGet
	path := make([]string, 0, len(c.stack)-idx+1)
	for _, f := range c.stack[idx:] {
		if f.via == edgeGet && f.key != key {
			throughGet = true
		}
		path = append(path, f.key.product.Describe(c.types))
	}
	if throughGet {
		return result{entry: c.placeholders[key], pending: map[memoKey]bool{key: true}}
	}
	path = append(path, p.Describe(c.types))
	product, params := c.describe(p, avail)
	return result{
		err:     &RuleCycleError{Product: product, Params: params, Path: path},
		pending: map[memoKey]bool{key: true},
	}
}

func (c *compiler) resolveCandidates(p rules.Product, avail value.TypeSet) result {
	product, params := c.describe(p, avail)
	candidates := c.byOutput[p]
	if len(candidates) == 0 {
		return result{err: &MissingRuleError{Product: product, Params: params}}
	}

	var (
		satisfied []*Entry
		reasons   []string
		cycles    []*RuleCycleError
		pending   = make(map[memoKey]bool)
	)
	for _, rule := range candidates {
		e, r := c.resolveRule(rule, avail)
		mergePending(pending, r.pending)
		if e != nil {
			satisfied = append(satisfied, e)
			continue
		}
		var ambiguous *AmbiguousRuleError
		if errors.As(r.err, &ambiguous) {
			return result{err: ambiguous, pending: pending}
		}
		var cycle *RuleCycleError
		if errors.As(r.err, &cycle) {
			cycles = append(cycles, cycle)
		}
		reasons = append(reasons, rule.Name+": "+firstLine(r.err))
	}

	switch {
	case len(satisfied) == 0 && len(cycles) == len(candidates):
		return result{err: cycles[0], pending: pending}
	case len(satisfied) == 0:
		return result{err: &MissingRuleError{Product: product, Params: params, Reasons: reasons}, pending: pending}
	}

	e, err := c.choose(p, avail, satisfied)
	return result{entry: e, err: err, pending: pending}
}

// resolveRule resolves every selector and declared Get of rule.
func (c *compiler) resolveRule(rule *rules.Rule, avail value.TypeSet) (*Entry, result) {
	e := &Entry{Kind: RuleEntry, Product: rule.Output, Rule: rule}
	pending := make(map[memoKey]bool)
	var used value.TypeSet

	for _, sel := range rule.Inputs {
		r := c.resolve(sel.Product, avail, edgeInput)
		mergePending(pending, r.pending)
		if r.err != nil {
			return nil, result{err: wrapReason(r.err, "input %s", sel.Product.Describe(c.types)), pending: pending}
		}
		e.Inputs = append(e.Inputs, r.entry)
		used = used.Union(r.entry.Used)
	}

	for _, g := range rule.Gets {
		subjects := []value.TypeID{g.Subject}
		if c.unions.IsUnion(g.Subject) {
			subjects = c.unions.Members(g.Subject)
		}
		for _, subject := range subjects {
			r := c.resolve(rules.ProductOf(g.Product), avail.With(subject), edgeGet)
			mergePending(pending, r.pending)
			if r.err != nil {
				return nil, result{err: wrapReason(r.err, "get %s for %s", c.types.Name(g.Product), c.types.Name(subject)), pending: pending}
			}
			e.addGet(getKey{product: g.Product, subject: subject}, r.entry)
			used = used.Union(r.entry.Used.Without(subject))
		}
	}

	e.Used = used
	return e, result{pending: pending}
}

// choose applies the classification policy to the satisfiable candidates.
func (c *compiler) choose(p rules.Product, avail value.TypeSet, satisfied []*Entry) (*Entry, error) {
	if len(satisfied) == 1 {
		return satisfied[0], nil
	}

	var relevant value.TypeSet
	for _, e := range satisfied {
		relevant = relevant.Union(e.Used)
	}

	var compatible, partial []*Entry
	for _, e := range satisfied {
		switch Classify(e.Used, relevant) {
		case Compatible:
			compatible = append(compatible, e)
		case Partial, ConsumeOnly:
			partial = append(partial, e)
		}
	}

	product, params := c.describe(p, avail)
	switch {
	case len(compatible) == 1:
		return compatible[0], nil
	case len(compatible) > 1:
		return nil, &AmbiguousRuleError{Product: product, Params: params, Candidates: ruleNames(compatible)}
	}

	sets := make([]value.TypeSet, len(partial))
	for i, e := range partial {
		sets[i] = e.Used
	}
	if c.isSlice(p.Type) && Composable(sets, relevant) {
		return &Entry{Kind: ComposedEntry, Product: p, Parts: partial, Used: relevant}, nil
	}
	return nil, &AmbiguousRuleError{Product: product, Params: params, Candidates: ruleNames(satisfied)}
}

func (c *compiler) isSlice(t value.TypeID) bool {
	rt := c.types.Type(t)
	return rt != nil && rt.Kind() == reflect.Slice
}

func (c *compiler) paramEntry(p rules.Product) *Entry {
	if e, ok := c.params[p]; ok {
		return e
	}
	e := &Entry{Kind: ParamEntry, Product: p, Used: value.NewTypeSet(p.Type)}
	c.params[p] = e
	return e
}

func mergePending(dst, src map[memoKey]bool) {
	for k := range src {
		dst[k] = true
	}
}

func ruleNames(entries []*Entry) []string {
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Rule.Name
	}
	return names
}

// reasonError keeps the original error reachable for errors.As while
// prefixing where it happened.
type reasonError struct {
	prefix string
	err    error
}

func (e *reasonError) Error() string { return e.prefix + ": " + firstLine(e.err) }
func (e *reasonError) Unwrap() error { return e.err }

func wrapReason(err error, format string, args ...any) error {
	return &reasonError{prefix: fmt.Sprintf(format, args...), err: err}
}

func dedupe(errs []error) []error {
	seen := make(map[string]bool, len(errs))
	out := make([]error, 0, len(errs))
	for _, err := range errs {
		msg := err.Error()
		if seen[msg] {
			continue
		}
		seen[msg] = true
		out = append(out, err)
	}
	return out
}
