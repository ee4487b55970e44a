package registry

import (
	"context"

	"github.com/vk/rulegrid/internal/rules"
	"github.com/vk/rulegrid/internal/value"
)

// Type interns T in the registry's type table.
func Type[T any](r *Registry) value.TypeID {
	return value.Of[T](r.types)
}

// Product returns the unqualified product for T.
func Product[T any](r *Registry) rules.Product {
	return rules.ProductOf(Type[T](r))
}

// GetOf declares that a rule may issue Get for P from a subject of type S.
func GetOf[P, S any](r *Registry) rules.GetDecl {
	return rules.GetDecl{Product: Type[P](r), Subject: Type[S](r)}
}

// Root declares T as a root param type.
func Root[T any](r *Registry) {
	r.RegisterRoot(Type[T](r))
}

// Query declares that P must be computable from exactly params.
func Query[P any](r *Registry, params ...value.TypeID) {
	r.RegisterQuery(Product[P](r), params...)
}

// Union declares T as a union base.
func Union[T any](r *Registry, formatter rules.Formatter) {
	r.RegisterUnion(Type[T](r), formatter)
}

// UnionMember registers M as a member of union B.
func UnionMember[B, M any](r *Registry) {
	r.RegisterUnionMember(Type[B](r), Type[M](r))
}

// Singleton registers a singleton rule producing O.
func Singleton[O any](r *Registry, name string, fn func(ctx context.Context) (O, error)) {
	r.RegisterSingleton(name, Product[O](r), func(ctx context.Context, _ []any) (any, error) {
		return fn(ctx)
	})
}

// Task0 registers a task with no selectors. Unlike a singleton it may issue
// Gets.
func Task0[O any](r *Registry, name string, fn func(ctx context.Context) (O, error), gets ...rules.GetDecl) {
	r.RegisterTask(&rules.Rule{
		Name:   name,
		Output: Product[O](r),
		Gets:   gets,
		Func: func(ctx context.Context, _ []any) (any, error) {
			return fn(ctx)
		},
	})
}

// Task1 registers a task computing O from I1.
func Task1[O, I1 any](r *Registry, name string, fn func(ctx context.Context, in1 I1) (O, error), gets ...rules.GetDecl) {
	r.RegisterTask(&rules.Rule{
		Name:   name,
		Output: Product[O](r),
		Inputs: []rules.Selector{{Product: Product[I1](r)}},
		Gets:   gets,
		Func: func(ctx context.Context, in []any) (any, error) {
			return fn(ctx, as[I1](in[0]))
		},
	})
}

// Task2 registers a task computing O from I1 and I2.
func Task2[O, I1, I2 any](r *Registry, name string, fn func(ctx context.Context, in1 I1, in2 I2) (O, error), gets ...rules.GetDecl) {
	r.RegisterTask(&rules.Rule{
		Name:   name,
		Output: Product[O](r),
		Inputs: []rules.Selector{{Product: Product[I1](r)}, {Product: Product[I2](r)}},
		Gets:   gets,
		Func: func(ctx context.Context, in []any) (any, error) {
			return fn(ctx, as[I1](in[0]), as[I2](in[1]))
		},
	})
}

// Task3 registers a task computing O from I1, I2 and I3.
func Task3[O, I1, I2, I3 any](r *Registry, name string, fn func(ctx context.Context, in1 I1, in2 I2, in3 I3) (O, error), gets ...rules.GetDecl) {
	r.RegisterTask(&rules.Rule{
		Name:   name,
		Output: Product[O](r),
		Inputs: []rules.Selector{{Product: Product[I1](r)}, {Product: Product[I2](r)}, {Product: Product[I3](r)}},
		Gets:   gets,
		Func: func(ctx context.Context, in []any) (any, error) {
			return fn(ctx, as[I1](in[0]), as[I2](in[1]), as[I3](in[2]))
		},
	})
}

// Intrinsic1 registers an engine-provided rule computing O from I.
func Intrinsic1[O, I any](r *Registry, name string, fn func(ctx context.Context, in I) (O, error)) {
	r.RegisterIntrinsic(&rules.Rule{
		Name:   name,
		Output: Product[O](r),
		Inputs: []rules.Selector{{Product: Product[I](r)}},
		Func: func(ctx context.Context, in []any) (any, error) {
			return fn(ctx, as[I](in[0]))
		},
	})
}

// as converts without panicking on a nil interface value.
func as[T any](v any) T {
	t, _ := v.(T)
	return t
}
