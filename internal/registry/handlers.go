package registry

import (
	"fmt"
	"log/slog"

	"github.com/vk/rulegrid/internal/rules"
	"github.com/vk/rulegrid/internal/value"
)

// RegisterRoot declares a type that callers may supply as a root param.
func (r *Registry) RegisterRoot(t value.TypeID) {
	slog.Debug("Registering root type.", "type", r.types.Name(t))
	r.roots = r.roots.With(t)
}

// RegisterQuery declares that product must be computable from exactly the
// given param types. Every param type also becomes a root.
func (r *Registry) RegisterQuery(product rules.Product, params ...value.TypeID) {
	set := value.NewTypeSet(params...)
	for _, q := range r.queries {
		if q.Product == product && q.Params.Equal(set) {
			return
		}
	}
	slog.Debug("Registering query.", "product", product.Describe(r.types), "params", set.Names(r.types))
	r.queries = append(r.queries, rules.Query{Product: product, Params: set})
	r.roots = r.roots.Union(set)
}

// RegisterTask registers a task rule.
func (r *Registry) RegisterTask(rule *rules.Rule) {
	rule.Kind = rules.Task
	r.add(rule)
}

// RegisterSingleton registers a rule with no inputs whose value is shared by
// every request.
func (r *Registry) RegisterSingleton(name string, output rules.Product, fn rules.Func) {
	r.add(&rules.Rule{Kind: rules.Singleton, Name: name, Output: output, Func: fn})
}

// RegisterIntrinsic registers a rule implemented by the engine itself, such
// as filesystem access.
func (r *Registry) RegisterIntrinsic(rule *rules.Rule) {
	rule.Kind = rules.Intrinsic
	r.add(rule)
}

// RegisterUnion declares base as a union. formatter may be nil.
func (r *Registry) RegisterUnion(base value.TypeID, formatter rules.Formatter) {
	for _, u := range r.unions {
		if u.Base == base {
			panic(fmt.Sprintf("union '%s' already registered", r.types.Name(base)))
		}
	}
	slog.Debug("Registering union.", "base", r.types.Name(base))
	r.unions = append(r.unions, rules.Union{Base: base, Formatter: formatter})
}

// RegisterUnionMember registers member as an implementation of base.
func (r *Registry) RegisterUnionMember(base, member value.TypeID) {
	for _, m := range r.members {
		if m.Base == base && m.Member == member {
			return
		}
	}
	slog.Debug("Registering union member.", "base", r.types.Name(base), "member", r.types.Name(member))
	r.members = append(r.members, rules.UnionMember{Base: base, Member: member})
}

func (r *Registry) add(rule *rules.Rule) {
	if rule.Name == "" {
		panic(fmt.Sprintf("%s rule producing '%s' has no name", rule.Kind, rule.Output.Describe(r.types)))
	}
	if _, exists := r.names[rule.Name]; exists {
		panic(fmt.Sprintf("rule with name '%s' already registered", rule.Name))
	}
	slog.Debug("Registering rule.", "kind", rule.Kind.String(), "rule", rule.Describe(r.types))
	r.names[rule.Name] = struct{}{}
	r.rules = append(r.rules, rule)
}
