package cabinet_test

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/require"

	"github.com/reoring/cabinet"
)

const (
	childType  = `\Test\Child`
	parentType = `\Test\Parent`
)

// spies counts how often each construction path ran.
type spies struct {
	consumer atomic.Int64
	provider atomic.Int64
}

// fixture registers Child and Parent types. withConsumer adds a scoped
// ChildConsumer on Parent; withProvider adds a counting provider on Child.
func fixture(t *testing.T, withConsumer, withProvider bool) (*cabinet.Registry, *cabinet.RecordType, *cabinet.RecordType, *spies) {
	t.Helper()
	reg := cabinet.NewRegistry()
	sp := &spies{}

	childDef := cabinet.TypeDef{
		Name: childType,
		Fields: []cabinet.Field{
			{Name: "name", Type: "string"},
			{Name: "age", Type: "int"},
		},
	}
	var child *cabinet.RecordType
	if withProvider {
		childDef.Provider = func(ctx context.Context, raw any, parent *cabinet.Record) (*cabinet.Record, error) {
			sp.provider.Add(1)
			m, _ := raw.(map[string]any)
			return cabinet.New(ctx, child, m)
		}
	}
	child = reg.MustRegister(childDef)

	parentDef := cabinet.TypeDef{
		Name: parentType,
		Fields: []cabinet.Field{
			{Name: "id", Type: "string"},
			{Name: "tags", Type: "string[]"},
			{Name: "child", Type: childType},
			{Name: "maybe", Type: childType + "|null"},
			{Name: "children", Type: childType + "[]"},
		},
	}
	if withConsumer {
		parentDef.Consumers = []cabinet.Consumer{{
			Name: "ChildConsumer",
			Uses: []string{childType},
			Build: func(ctx context.Context, items []any, parent *cabinet.Record) ([]*cabinet.Record, error) {
				sp.consumer.Add(1)
				id, _ := parent.String(ctx, "id")
				out := make([]*cabinet.Record, 0, len(items))
				for _, it := range items {
					m, _ := it.(map[string]any)
					raw := map[string]any{"name": id + ":" + cabinet.Cast(m["name"], "string", "").(string)}
					rec, err := cabinet.New(ctx, child, raw)
					if err != nil {
						return nil, err
					}
					out = append(out, rec)
				}
				return out, nil
			},
		}}
	}
	parent := reg.MustRegister(parentDef)
	return reg, parent, child, sp
}

func mustNew(t *testing.T, typ *cabinet.RecordType, raw map[string]any) *cabinet.Record {
	t.Helper()
	rec, err := cabinet.New(context.Background(), typ, raw)
	require.NoError(t, err)
	return rec
}

func mustExport(t *testing.T, rec *cabinet.Record) map[string]any {
	t.Helper()
	m, err := rec.Export(context.Background())
	require.NoError(t, err, spew.Sdump(rec.Data().Original()))
	return m
}
