package schemafile_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reoring/cabinet"
	"github.com/reoring/cabinet/schemafile"
	"github.com/reoring/cabinet/source"
)

func TestLoadYAML_RegistersSupertypesFirst(t *testing.T) {
	f, err := schemafile.Load("testdata/booking.yaml")
	require.NoError(t, err)
	require.Len(t, f.Types, 4)

	reg := cabinet.NewRegistry()
	types, err := f.Register(reg, schemafile.Hooks{})
	require.NoError(t, err)
	require.Len(t, types, 4)
	assert.Equal(t, `\Travel\Booking`, types[0].Name())

	booking := types[0]
	require.NotNil(t, booking.Parent())
	assert.Equal(t, `\Travel\Entity`, booking.Parent().Name())
	assert.Equal(t,
		[]string{"id", "internal", "reference", "flights", "lead", "notes"},
		booking.Schema().Names())

	passenger, ok := reg.Lookup(`Travel\Passenger`)
	require.True(t, ok)
	assert.Equal(t, []string{"name", "age"}, passenger.Schema().Names())
}

func TestLoadJSON_KeepsFieldOrder(t *testing.T) {
	f, err := schemafile.Load("testdata/booking.json")
	require.NoError(t, err)

	reg := cabinet.NewRegistry()
	_, err = f.Register(reg, schemafile.Hooks{})
	require.NoError(t, err)

	flight, ok := reg.Lookup(`\Travel\Flight`)
	require.True(t, ok)
	assert.Equal(t, []string{"origin", "seats", "code"}, flight.Schema().Names())
}

func TestRegister_AttachesHooks(t *testing.T) {
	ctx := context.Background()
	f, err := schemafile.Load("testdata/booking.yaml")
	require.NoError(t, err)

	reg := cabinet.NewRegistry()
	calls := 0
	_, err = f.Register(reg, schemafile.Hooks{
		Consumers: map[string][]cabinet.Consumer{
			`Travel\Booking`: {{
				Uses: []string{`\Travel\Flight`},
				Build: func(ctx context.Context, items []any, parent *cabinet.Record) ([]*cabinet.Record, error) {
					calls++
					flight, _ := reg.Lookup(`\Travel\Flight`)
					out := make([]*cabinet.Record, 0, len(items))
					for range items {
						rec, err := cabinet.New(ctx, flight, map[string]any{"origin": "HOOK"})
						if err != nil {
							return nil, err
						}
						out = append(out, rec)
					}
					return out, nil
				},
			}},
		},
	})
	require.NoError(t, err)

	rec, err := reg.Make(ctx, `\Travel\Booking`, map[string]any{"flights": []any{map[string]any{}, map[string]any{}}})
	require.NoError(t, err)
	flights, err := rec.Many(ctx, "flights")
	require.NoError(t, err)
	require.Len(t, flights, 2)
	origin, _ := flights[1].String(ctx, "origin")
	assert.Equal(t, "HOOK", origin)
	assert.Equal(t, 1, calls)

	out, err := rec.Export(ctx)
	require.NoError(t, err)
	assert.NotContains(t, out, "internal")
}

func TestRegister_AttachesMutations(t *testing.T) {
	f, err := schemafile.Load("testdata/booking.yaml")
	require.NoError(t, err)

	reg := cabinet.NewRegistry()
	_, err = f.Register(reg, schemafile.Hooks{
		Mutations: map[string]map[string]cabinet.Mutation{
			`Travel\Flight`: {
				"fromHub": {
					Handler: cabinet.HandleFilter,
					Params:  []string{"origin"},
					Fn: func(_ context.Context, args ...any) (any, error) {
						return len(args) > 0 && args[0] == "NRT", nil
					},
				},
			},
		},
	})
	require.NoError(t, err)

	flight, ok := reg.Lookup(`\Travel\Flight`)
	require.True(t, ok)
	recs, err := cabinet.NewBatch(flight, nil).
		Hydrate([]any{map[string]any{"origin": "NRT"}, map[string]any{"origin": "HND"}}).
		Apply(context.Background(), "fromHub").
		Records()
	require.NoError(t, err)
	require.Len(t, recs, 1)

	_, err = f.Register(cabinet.NewRegistry(), schemafile.Hooks{
		Scopes: map[string]map[string]cabinet.Scope{`\Nope`: nil},
	})
	assert.ErrorIs(t, err, cabinet.ErrInvalidDefinition)
}

func TestParse_ValidationIssues(t *testing.T) {
	_, err := schemafile.Parse([]byte(`
types:
  - name: "not a type"
    fields:
      a: ""
  - fields:
      b: int
`), source.FormatYAML)
	require.Error(t, err)
	assert.ErrorIs(t, err, cabinet.ErrInvalidDefinition)

	iss, ok := cabinet.AsIssues(err)
	require.True(t, ok)
	var paths []string
	for _, it := range iss {
		paths = append(paths, it.Path)
	}
	assert.ElementsMatch(t, []string{"/types/0/name", "/types/0/fields/0/type", "/types/1/name"}, paths)
}

func TestParse_Errors(t *testing.T) {
	cases := map[string]struct {
		data   string
		format source.Format
	}{
		"empty types":       {"types: []\n", source.FormatYAML},
		"unknown key":       {"types:\n  - name: A\n    field: {}\n", source.FormatYAML},
		"nested field type": {"types:\n  - name: A\n    fields:\n      a: {x: 1}\n", source.FormatYAML},
		"broken json":       {`{"types": [`, source.FormatJSON},
		"json field number": {`{"types": [{"name": "A", "fields": {"a": 1}}]}`, source.FormatJSON},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := schemafile.Parse([]byte(c.data), c.format)
			require.Error(t, err)
		})
	}
}

func TestRegister_Errors(t *testing.T) {
	loop, err := schemafile.Parse([]byte(`
types:
  - name: A
    extends: B
  - name: B
    extends: A
`), source.FormatYAML)
	require.NoError(t, err)
	_, err = loop.Register(cabinet.NewRegistry(), schemafile.Hooks{})
	assert.ErrorIs(t, err, cabinet.ErrInvalidDefinition)

	dup, err := schemafile.Parse([]byte("types:\n  - name: A\n  - name: \\A\n"), source.FormatYAML)
	require.NoError(t, err)
	_, err = dup.Register(cabinet.NewRegistry(), schemafile.Hooks{})
	assert.ErrorIs(t, err, cabinet.ErrInvalidDefinition)

	missing, err := schemafile.Parse([]byte("types:\n  - name: A\n    extends: Elsewhere\n"), source.FormatYAML)
	require.NoError(t, err)
	_, err = missing.Register(cabinet.NewRegistry(), schemafile.Hooks{})
	assert.ErrorIs(t, err, cabinet.ErrInvalidDefinition)

	// a supertype already in the registry is accepted
	reg := cabinet.NewRegistry()
	reg.MustRegister(cabinet.TypeDef{Name: `\Elsewhere`, Fields: []cabinet.Field{{Name: "x", Type: "int"}}})
	types, err := missing.Register(reg, schemafile.Hooks{})
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, types[0].Schema().Names())

	orphan, err := schemafile.Parse([]byte("types:\n  - name: A\n"), source.FormatYAML)
	require.NoError(t, err)
	_, err = orphan.Register(cabinet.NewRegistry(), schemafile.Hooks{
		Consumers: map[string][]cabinet.Consumer{`\Nope`: nil},
	})
	assert.ErrorIs(t, err, cabinet.ErrInvalidDefinition)
}
