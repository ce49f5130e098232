package cabinet_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reoring/cabinet"
)

var errOutOfPaper = errors.New("out of paper")

// lineTypes registers \Shop\Item with a "clean" scope and \Shop\Line
// extending it with reshaping mutations.
func lineTypes(t *testing.T, eachCalls *int) (*cabinet.Registry, *cabinet.RecordType) {
	t.Helper()
	reg := cabinet.NewRegistry()
	reg.MustRegister(cabinet.TypeDef{
		Name:   `\Shop\Item`,
		Fields: []cabinet.Field{{Name: "sku", Type: "string"}},
		Scopes: map[string]cabinet.Scope{
			"clean": {Fn: func(ctx context.Context, b *cabinet.Batch, args ...any) error {
				return b.Apply(ctx, "inStock").Apply(ctx, "upper", "").Err()
			}},
		},
	})
	line := reg.MustRegister(cabinet.TypeDef{
		Name:    `\Shop\Line`,
		Extends: `\Shop\Item`,
		Fields: []cabinet.Field{
			{Name: "qty", Type: "int"},
			{Name: "note", Type: "string"},
		},
		Mutations: map[string]cabinet.Mutation{
			"inStock": {
				Handler: cabinet.HandleFilter,
				Params:  []string{"qty"},
				Fn: func(_ context.Context, args ...any) (any, error) {
					if len(args) == 0 {
						return false, nil
					}
					return cabinet.Cast(args[0], "int", int64(0)).(int64) > 0, nil
				},
			},
			"upper": {
				Handler: cabinet.HandleMap,
				Params:  []string{"sku"},
				Fn: func(_ context.Context, args ...any) (any, error) {
					return map[string]any{"sku": strings.ToUpper(args[0].(string)) + args[1].(string)}, nil
				},
			},
			"count": {
				Handler: cabinet.HandleEach,
				Fn: func(context.Context, ...any) (any, error) {
					*eachCalls++
					return nil, nil
				},
			},
			"dedupe": {
				Handler: cabinet.HandleReduce,
				Params:  []string{"sku"},
				Fn: func(_ context.Context, args ...any) (any, error) {
					acc := args[0].([]map[string]any)
					for _, e := range acc {
						if e["sku"] == args[1] {
							return acc, nil
						}
					}
					return append(acc, map[string]any{"sku": args[1]}), nil
				},
			},
			"noted": {
				Handler: cabinet.HandleMerge,
				Params:  []string{"sku"},
				Uses:    []string{"upper"},
				Fn: func(_ context.Context, args ...any) (any, error) {
					return map[string]any{"note": "sku " + args[0].(string)}, nil
				},
			},
			"reverse": {
				Handler: cabinet.HandleTap,
				Fn: func(_ context.Context, args ...any) (any, error) {
					in := args[0].([]map[string]any)
					out := make([]map[string]any, len(in))
					for i, e := range in {
						out[len(in)-1-i] = e
					}
					return out, nil
				},
			},
			"broken": {
				Handler: cabinet.HandleFilter,
				Fn: func(context.Context, ...any) (any, error) {
					return "yes", nil
				},
			},
			"failing": {
				Handler: cabinet.HandleEach,
				Fn: func(context.Context, ...any) (any, error) {
					return nil, errOutOfPaper
				},
			},
		},
	})
	return reg, line
}

func lineItems() []any {
	return []any{
		map[string]any{"sku": "a", "qty": 1},
		map[string]any{"sku": "b", "qty": 0},
		map[string]any{"sku": "a", "qty": "2"},
		map[string]any{"sku": "c", "qty": 3},
	}
}

func TestBatch_HandlersChain(t *testing.T) {
	ctx := context.Background()
	calls := 0
	_, line := lineTypes(t, &calls)

	items := lineItems()
	b := cabinet.NewBatch(line, nil).
		Hydrate(items).
		Apply(ctx, "inStock").
		Apply(ctx, "upper", "!").
		Apply(ctx, "count").
		Apply(ctx, "dedupe").
		Apply(ctx, "noted").
		Apply(ctx, "reverse")
	require.NoError(t, b.Err())

	assert.Equal(t, 3, calls)
	assert.Equal(t, []string{"inStock", "upper", "count", "dedupe", "noted", "reverse"}, b.Applied())
	assert.Equal(t, []map[string]any{
		{"sku": "C!", "note": "sku C!"},
		{"sku": "A!", "note": "sku A!"},
	}, b.Entries())
	// the caller's input is left alone
	assert.Equal(t, "a", items[0].(map[string]any)["sku"])

	recs, err := b.Records()
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, map[string]any{"sku": "C!", "qty": int64(0), "note": "sku C!"}, mustExport(t, recs[0]))

	first, err := b.One()
	require.NoError(t, err)
	sku, _ := first.String(ctx, "sku")
	assert.Equal(t, "C!", sku)
}

func TestBatch_Failures(t *testing.T) {
	ctx := context.Background()
	calls := 0
	_, line := lineTypes(t, &calls)

	cases := map[string]struct {
		run    func(b *cabinet.Batch) *cabinet.Batch
		detail string
	}{
		"missing dependency": {
			run:    func(b *cabinet.Batch) *cabinet.Batch { return b.Hydrate(lineItems()).Apply(ctx, "noted") },
			detail: "requires upper",
		},
		"unknown name": {
			run:    func(b *cabinet.Batch) *cabinet.Batch { return b.Hydrate(lineItems()).Apply(ctx, "nope") },
			detail: "no such mutation or scope",
		},
		"hydrated twice": {
			run:    func(b *cabinet.Batch) *cabinet.Batch { return b.Hydrate(nil).Hydrate(nil) },
			detail: "already hydrated",
		},
		"not hydrated": {
			run:    func(b *cabinet.Batch) *cabinet.Batch { return b.Apply(ctx, "count") },
			detail: "not hydrated",
		},
		"entry is not an object": {
			run:    func(b *cabinet.Batch) *cabinet.Batch { return b.Hydrate([]any{"x"}) },
			detail: "entry 0 is string",
		},
		"filter result is not a bool": {
			run:    func(b *cabinet.Batch) *cabinet.Batch { return b.Hydrate(lineItems()).Apply(ctx, "broken") },
			detail: "want bool",
		},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			b := c.run(cabinet.NewBatch(line, nil))
			require.Error(t, b.Err())
			assert.ErrorIs(t, b.Err(), cabinet.ErrMutation)
			assert.Contains(t, b.Err().Error(), c.detail)

			// the first failure sticks
			_, err := b.Apply(ctx, "count").Records()
			assert.Equal(t, b.Err(), err)
		})
	}

	b := cabinet.NewBatch(line, nil).Hydrate(lineItems()).Apply(ctx, "failing")
	assert.ErrorIs(t, b.Err(), errOutOfPaper)
	assert.ErrorIs(t, b.Err(), cabinet.ErrMutation)

	_, err := cabinet.NewBatch(nil, nil).Hydrate(nil).Records()
	assert.ErrorIs(t, err, cabinet.ErrUnknownType)
}

func TestBatch_ScopeFromConsumer(t *testing.T) {
	ctx := context.Background()
	calls := 0
	reg, line := lineTypes(t, &calls)

	var applied []string
	order := reg.MustRegister(cabinet.TypeDef{
		Name:   `\Shop\Order`,
		Fields: []cabinet.Field{{Name: "lines", Type: line.Name() + "[]"}},
		Consumers: []cabinet.Consumer{{
			Uses: []string{line.Name()},
			Build: func(ctx context.Context, items []any, parent *cabinet.Record) ([]*cabinet.Record, error) {
				b := cabinet.NewBatch(line, parent).Hydrate(items).Apply(ctx, "clean")
				applied = b.Applied()
				return b.Records()
			},
		}},
	})

	rec := mustNew(t, order, map[string]any{"lines": lineItems()})
	lines, err := rec.Many(ctx, "lines")
	require.NoError(t, err)

	var skus []string
	for _, l := range lines {
		s, _ := l.String(ctx, "sku")
		skus = append(skus, s)
	}
	assert.Equal(t, []string{"A", "A", "C"}, skus)
	// the scope declared on the supertype runs, then records its own name
	assert.Equal(t, []string{"inStock", "upper", "clean"}, applied)
}

func TestRegister_InvalidMutations(t *testing.T) {
	fn := func(context.Context, ...any) (any, error) { return nil, nil }
	cases := map[string]cabinet.TypeDef{
		"unknown handler":  {Name: "A", Mutations: map[string]cabinet.Mutation{"m": {Handler: "zip", Fn: fn}}},
		"no function":      {Name: "A", Mutations: map[string]cabinet.Mutation{"m": {Handler: cabinet.HandleMap}}},
		"empty name":       {Name: "A", Mutations: map[string]cabinet.Mutation{"": {Handler: cabinet.HandleMap, Fn: fn}}},
		"scope without fn": {Name: "A", Scopes: map[string]cabinet.Scope{"s": {}}},
		"mutation and scope": {
			Name:      "A",
			Mutations: map[string]cabinet.Mutation{"m": {Handler: cabinet.HandleTap, Fn: fn}},
			Scopes: map[string]cabinet.Scope{"m": {Fn: func(context.Context, *cabinet.Batch, ...any) error {
				return nil
			}}},
		},
	}
	for name, def := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := cabinet.NewRegistry().Register(def)
			assert.ErrorIs(t, err, cabinet.ErrInvalidDefinition)
		})
	}
}
