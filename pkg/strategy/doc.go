/*
Package strategy provides error handling strategies for fallible pipeline
stages and the registry that resolves them.

A strategy reduces the ordered outcomes of one stage into the collection the
next stage receives. It may shorten the collection, unwrap values, or, for
custom strategies, reorder and transform freely.

# Built-in Strategies

Built-ins are always resolvable by name and never need registration:

	Ignore        success values, unwrapped, in original relative order
	Collect       every outcome unchanged
	FailFast      failure values, unwrapped, in original relative order
	LogAndIgnore  like Ignore; each dropped failure is written to a diagnostics sink
	FirstError    the first failed outcome only, or nothing

# Custom Strategies

	keepEvens := strategy.Typed("KeepEvens", func(ctx context.Context, in []outcome.Outcome[int, error]) []any {
		var out []any
		for _, o := range in {
			if v, ok := o.Value(); ok && v%2 == 0 {
				out = append(out, v)
			}
		}
		return out
	})

# Registry

Strategies are registered under a name key or a (success type, failure type)
key before pipelines run:

	reg := strategy.NewRegistry()
	reg.Register(strategy.NameKey("KeepEvens"), keepEvens)
	reg.Register(strategy.TypeKey[int, error](), strategy.Collect())

	s, err := reg.Resolve(strategy.TypeKey[int, error]())

The registry is safe for concurrent reads. Register it fully before the first
run; registration while runs are active is serialized but its effect on those
runs is unspecified.
*/
package strategy
