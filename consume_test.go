package cabinet_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reoring/cabinet"
)

func TestConsume_ScopedConsumerWinsOverProvider(t *testing.T) {
	ctx := context.Background()
	_, parent, _, sp := fixture(t, true, true)

	rec := mustNew(t, parent, map[string]any{
		"id": "P",
		"children": []any{
			map[string]any{"name": "a"},
			map[string]any{"name": "b"},
			map[string]any{"name": "c"},
		},
	})
	children, err := rec.Many(ctx, "children")
	require.NoError(t, err)
	require.Len(t, children, 3)

	var names []string
	for _, c := range children {
		n, _ := c.String(ctx, "name")
		names = append(names, n)
	}
	assert.Equal(t, []string{"P:a", "P:b", "P:c"}, names)
	assert.Equal(t, int64(1), sp.consumer.Load(), "consumer runs once for the whole list")
	assert.Equal(t, int64(0), sp.provider.Load(), "per-item path must not run")

	// repeated access reuses the built list
	again, err := rec.Many(ctx, "children")
	require.NoError(t, err)
	assert.Same(t, children[0], again[0])
	assert.Equal(t, int64(1), sp.consumer.Load())
}

func TestConsume_ProviderRunsPerItemWithoutConsumer(t *testing.T) {
	ctx := context.Background()
	_, parent, _, sp := fixture(t, false, true)

	rec := mustNew(t, parent, map[string]any{
		"children": []any{map[string]any{"name": "a"}, map[string]any{"name": "b"}},
	})
	children, err := rec.Many(ctx, "children")
	require.NoError(t, err)
	assert.Len(t, children, 2)
	assert.Equal(t, int64(2), sp.provider.Load())
}

func TestConsume_PrebuiltItemSkipsProvider(t *testing.T) {
	ctx := context.Background()
	_, parent, child, sp := fixture(t, false, true)

	pre := mustNew(t, child, map[string]any{"name": "pre"})
	rec := mustNew(t, parent, map[string]any{
		"children": []any{pre, map[string]any{"name": "b"}},
	})
	children, err := rec.Many(ctx, "children")
	require.NoError(t, err)
	require.Len(t, children, 2)
	assert.Same(t, pre, children[0])
	assert.Equal(t, int64(1), sp.provider.Load(), "only the raw item reaches the provider")
}

func TestConsume_ConsumerDeclaredOnSupertypeApplies(t *testing.T) {
	ctx := context.Background()
	reg, parent, _, sp := fixture(t, true, false)
	sub := reg.MustRegister(cabinet.TypeDef{
		Name:    `\Test\SubParent`,
		Extends: parent.Name(),
		Fields:  []cabinet.Field{{Name: "extra", Type: "bool"}},
	})

	rec := mustNew(t, sub, map[string]any{"id": "S", "child": map[string]any{"name": "x"}})
	c, err := rec.One(ctx, "child")
	require.NoError(t, err)
	name, _ := c.String(ctx, "name")
	assert.Equal(t, "S:x", name)
	assert.Equal(t, int64(1), sp.consumer.Load())
}

func TestConsume_ConsumerWithoutMatchingUsesIsIgnored(t *testing.T) {
	ctx := context.Background()
	reg := cabinet.NewRegistry()
	item := reg.MustRegister(cabinet.TypeDef{
		Name:   `\Test\Item`,
		Fields: []cabinet.Field{{Name: "sku", Type: "string"}},
	})
	other := reg.MustRegister(cabinet.TypeDef{Name: `\Test\Other`})
	called := false
	cart := reg.MustRegister(cabinet.TypeDef{
		Name:   `\Test\Cart`,
		Fields: []cabinet.Field{{Name: "items", Type: item.Name() + "[]"}},
		Consumers: []cabinet.Consumer{{
			Name: "ItemConsumer",
			Uses: []string{other.Name()},
			Build: func(ctx context.Context, items []any, parent *cabinet.Record) ([]*cabinet.Record, error) {
				called = true
				return nil, nil
			},
		}},
	})

	rec := mustNew(t, cart, map[string]any{"items": []any{map[string]any{"sku": "A1"}}})
	items, err := rec.Many(ctx, "items")
	require.NoError(t, err)
	require.Len(t, items, 1)
	sku, _ := items[0].String(ctx, "sku")
	assert.Equal(t, "A1", sku)
	assert.False(t, called)
}

func TestConsume_ErrorsDoNotFallBack(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("upstream down")

	t.Run("consumer", func(t *testing.T) {
		reg := cabinet.NewRegistry()
		leaf := reg.MustRegister(cabinet.TypeDef{Name: `\Test\Leaf`})
		root := reg.MustRegister(cabinet.TypeDef{
			Name:   `\Test\Root`,
			Fields: []cabinet.Field{{Name: "leaves", Type: leaf.Name() + "[]"}},
			Consumers: []cabinet.Consumer{{
				Uses: []string{leaf.Name()},
				Build: func(ctx context.Context, items []any, parent *cabinet.Record) ([]*cabinet.Record, error) {
					return nil, boom
				},
			}},
		})
		rec := mustNew(t, root, map[string]any{"leaves": []any{map[string]any{}}})
		_, err := rec.Get(ctx, "leaves")
		require.Error(t, err)
		assert.ErrorIs(t, err, cabinet.ErrConstruction)
		assert.ErrorIs(t, err, boom)
		iss, ok := cabinet.AsIssues(err)
		require.True(t, ok)
		assert.Equal(t, "/leaves", iss[0].Path)
		assert.Equal(t, leaf.Name(), iss[0].Type)
	})

	t.Run("provider", func(t *testing.T) {
		reg := cabinet.NewRegistry()
		leaf := reg.MustRegister(cabinet.TypeDef{
			Name: `\Test\Leaf`,
			Provider: func(ctx context.Context, raw any, parent *cabinet.Record) (*cabinet.Record, error) {
				return nil, boom
			},
		})
		root := reg.MustRegister(cabinet.TypeDef{
			Name:   `\Test\Root`,
			Fields: []cabinet.Field{{Name: "leaves", Type: leaf.Name() + "[]"}},
		})
		rec := mustNew(t, root, map[string]any{"leaves": []any{map[string]any{}, map[string]any{}}})
		_, err := rec.Get(ctx, "leaves")
		require.Error(t, err)
		assert.ErrorIs(t, err, boom)
		iss, _ := cabinet.AsIssues(err)
		assert.Equal(t, "/leaves/0", iss[0].Path)
	})
}

func TestConsume_ProviderIsInherited(t *testing.T) {
	ctx := context.Background()
	reg := cabinet.NewRegistry()
	var seen []string
	base := reg.MustRegister(cabinet.TypeDef{
		Name: `\Test\Vehicle`,
		Provider: func(ctx context.Context, raw any, parent *cabinet.Record) (*cabinet.Record, error) {
			seen = append(seen, "vehicle")
			return nil, nil
		},
	})
	car := reg.MustRegister(cabinet.TypeDef{Name: `\Test\Car`, Extends: base.Name()})

	recs, err := cabinet.Consume(ctx, car, []any{map[string]any{}}, nil)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
	assert.Equal(t, []string{"vehicle"}, seen)
}

func TestConsume_ProvideDelegatesFromConsumer(t *testing.T) {
	ctx := context.Background()
	reg := cabinet.NewRegistry()
	seat := reg.MustRegister(cabinet.TypeDef{
		Name:   `\Test\Seat`,
		Fields: []cabinet.Field{{Name: "row", Type: "int"}, {Name: "letter", Type: "string"}},
	})
	cabin := reg.MustRegister(cabinet.TypeDef{
		Name:   `\Test\Cabin`,
		Fields: []cabinet.Field{{Name: "seats", Type: seat.Name() + "[]"}},
		Consumers: []cabinet.Consumer{{
			Uses: []string{seat.Name()},
			Build: func(ctx context.Context, items []any, parent *cabinet.Record) ([]*cabinet.Record, error) {
				var out []*cabinet.Record
				// "12C" shorthand is expanded before the default rules apply
				for _, it := range items {
					s, _ := it.(string)
					rec, err := cabinet.Provide(ctx, seat, map[string]any{"row": s[:len(s)-1], "letter": s[len(s)-1:]}, parent)
					if err != nil {
						return nil, err
					}
					out = append(out, rec)
				}
				return out, nil
			},
		}},
	})

	rec := mustNew(t, cabin, map[string]any{"seats": []any{"12C", "3A"}})
	seats, err := rec.Many(ctx, "seats")
	require.NoError(t, err)
	require.Len(t, seats, 2)
	row, _ := seats[0].Int(ctx, "row")
	letter, _ := seats[1].String(ctx, "letter")
	assert.Equal(t, int64(12), row)
	assert.Equal(t, "A", letter)
}

func TestConsumerName(t *testing.T) {
	assert.Equal(t, "FlightConsumer", cabinet.ConsumerName(`\Travel\Flight`))
	assert.Equal(t, "SegmentConsumer", cabinet.ConsumerName("Segment"))
}

func TestConsume_ServiceFromContext(t *testing.T) {
	type clock interface{ Now() string }
	ctx := context.Background()
	reg := cabinet.NewRegistry()
	var stamp *cabinet.RecordType
	stamp = reg.MustRegister(cabinet.TypeDef{
		Name:   `\Test\Stamp`,
		Fields: []cabinet.Field{{Name: "at", Type: "string"}},
		Provider: func(ctx context.Context, raw any, parent *cabinet.Record) (*cabinet.Record, error) {
			c, err := cabinet.RequireService[clock](ctx)
			if err != nil {
				return nil, err
			}
			return cabinet.New(ctx, stamp, map[string]any{"at": c.Now()})
		},
	})
	doc := reg.MustRegister(cabinet.TypeDef{
		Name:   `\Test\Doc`,
		Fields: []cabinet.Field{{Name: "stamp", Type: stamp.Name()}},
	})

	rec := mustNew(t, doc, nil)
	_, err := rec.Get(ctx, "stamp")
	assert.ErrorIs(t, err, cabinet.ErrDependencyUnavailable)

	rec = mustNew(t, doc, nil)
	s, err := rec.One(cabinet.WithService[clock](ctx, fixedClock("noon")), "stamp")
	require.NoError(t, err)
	at, _ := s.String(ctx, "at")
	assert.Equal(t, "noon", at)
}

type fixedClock string

func (c fixedClock) Now() string { return string(c) }
