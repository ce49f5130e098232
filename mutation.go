package cabinet

import (
	"context"
	"errors"
	"fmt"
)

// Handler selects how a Mutation walks the entries of a Batch.
type Handler string

const (
	HandleFilter Handler = "filter" // keep the entries for which Fn returns true
	HandleMap    Handler = "map"    // replace every entry with the map Fn returns
	HandleMerge  Handler = "merge"  // layer the map Fn returns over every entry
	HandleEach   Handler = "each"   // call Fn per entry, entries stay as they are
	HandleReduce Handler = "reduce" // fold the entries into a new entry list
	HandleTap    Handler = "tap"    // hand the whole entry list to Fn
)

// MutationFunc receives the values of the entry fields named by Params, in
// order and skipping absent or null ones, followed by the arguments given to
// Apply. Reduce passes the accumulated []map[string]any first; tap passes the
// whole []map[string]any instead of entry fields.
type MutationFunc func(ctx context.Context, args ...any) (any, error)

// Mutation is a named reshaping step declared on a record type.
type Mutation struct {
	Handler Handler
	Params  []string
	Uses    []string // mutations or scopes that must have been applied before
	Fn      MutationFunc
}

func (m Mutation) validate(name string) error {
	if name == "" {
		return errors.New("mutation name is empty")
	}
	if m.Fn == nil {
		return fmt.Errorf("mutation %q has no function", name)
	}
	switch m.Handler {
	case HandleFilter, HandleMap, HandleMerge, HandleEach, HandleReduce, HandleTap:
		return nil
	}
	return fmt.Errorf("mutation %q has unknown handler %q", name, m.Handler)
}

func (m Mutation) args(entry map[string]any, extra []any) []any {
	out := make([]any, 0, len(m.Params)+len(extra)+1)
	for _, p := range m.Params {
		if v, ok := entry[p]; ok && v != nil {
			out = append(out, v)
		}
	}
	return append(out, extra...)
}

func (m Mutation) apply(ctx context.Context, entries []map[string]any, extra []any) ([]map[string]any, error) {
	switch m.Handler {
	case HandleTap:
		v, err := m.Fn(ctx, append([]any{entries}, extra...)...)
		if err != nil {
			return nil, err
		}
		return asEntries(v)
	case HandleReduce:
		acc := []map[string]any{}
		for _, e := range entries {
			v, err := m.Fn(ctx, append([]any{acc}, m.args(e, extra)...)...)
			if err != nil {
				return nil, err
			}
			if acc, err = asEntries(v); err != nil {
				return nil, err
			}
		}
		return acc, nil
	}

	out := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		v, err := m.Fn(ctx, m.args(e, extra)...)
		if err != nil {
			return nil, err
		}
		switch m.Handler {
		case HandleFilter:
			keep, ok := v.(bool)
			if !ok {
				return nil, fmt.Errorf("filter returned %T, want bool", v)
			}
			if keep {
				out = append(out, e)
			}
		case HandleMap:
			mv, ok := v.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("map returned %T, want map[string]any", v)
			}
			out = append(out, mv)
		case HandleMerge:
			mv, ok := v.(map[string]any)
			if !ok && v != nil {
				return nil, fmt.Errorf("merge returned %T, want map[string]any", v)
			}
			merged := copyMap(e)
			for k, x := range mv {
				merged[k] = x
			}
			out = append(out, merged)
		case HandleEach:
			out = append(out, e)
		}
	}
	return out, nil
}

func asEntries(v any) ([]map[string]any, error) {
	switch t := v.(type) {
	case nil:
		return []map[string]any{}, nil
	case []map[string]any:
		return t, nil
	case []any:
		out := make([]map[string]any, len(t))
		for i, it := range t {
			m, ok := it.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("entry %d is %T, want map[string]any", i, it)
			}
			out[i] = m
		}
		return out, nil
	}
	return nil, fmt.Errorf("got %T, want a list of entries", v)
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Scope groups other mutations under one name. Fn usually calls Apply on b.
type Scope struct {
	Uses []string
	Fn   func(ctx context.Context, b *Batch, args ...any) error
}

// Batch holds the raw entries a consumer is about to turn into records of one
// type. It is hydrated once, reshaped with the type's mutations and scopes
// through Apply and finally built with Records or One.
//
// The first failure sticks: later calls do nothing and Err reports it, so
// calls can be chained:
//
//	recs, err := cabinet.NewBatch(flight, parent).
//		Hydrate(items).
//		Apply(ctx, "normalize").
//		Apply(ctx, "price", quotes).
//		Records()
type Batch struct {
	typ      *RecordType
	parent   *Record
	entries  []map[string]any
	hydrated bool
	applied  []string
	err      error
}

// NewBatch returns an empty batch of typ built on behalf of parent.
func NewBatch(typ *RecordType, parent *Record) *Batch {
	b := &Batch{typ: typ, parent: parent}
	if typ == nil {
		b.err = newIssue(CodeUnknownType, "", "", nil)
	}
	return b
}

// Hydrate loads the entries. Every item must be a map (nil counts as an empty
// one); the maps are copied so mutations never touch the caller's input.
func (b *Batch) Hydrate(items []any) *Batch {
	if b.err != nil {
		return b
	}
	if b.hydrated {
		return b.fail("", "batch is already hydrated", nil)
	}
	entries := make([]map[string]any, 0, len(items))
	for i, it := range items {
		switch v := it.(type) {
		case nil:
			entries = append(entries, map[string]any{})
		case map[string]any:
			entries = append(entries, copyMap(v))
		default:
			return b.fail("", fmt.Sprintf("entry %d is %T, want an object", i, it), nil)
		}
	}
	b.entries, b.hydrated = entries, true
	return b
}

// Apply runs the mutation or scope called name, looked up on the batch type
// and its supertypes; mutations are looked up before scopes. Every name in
// its Uses must have been applied before.
func (b *Batch) Apply(ctx context.Context, name string, args ...any) *Batch {
	if b.err != nil {
		return b
	}
	if !b.hydrated {
		return b.fail(name, "batch is not hydrated", nil)
	}
	if m, ok := b.typ.mutation(name); ok {
		if missing := b.missing(m.Uses); missing != "" {
			return b.fail(name, "requires "+missing, nil)
		}
		logger().Debug().Str("type", b.typ.name).Str("mutation", name).Str("handler", string(m.Handler)).
			Int("entries", len(b.entries)).Msg("applying mutation")
		out, err := m.apply(ctx, b.entries, args)
		if err != nil {
			return b.fail(name, "", err)
		}
		b.entries = out
	} else if sc, ok := b.typ.scope(name); ok {
		if missing := b.missing(sc.Uses); missing != "" {
			return b.fail(name, "requires "+missing, nil)
		}
		logger().Debug().Str("type", b.typ.name).Str("scope", name).Msg("applying scope")
		if err := sc.Fn(ctx, b, args...); err != nil {
			if b.err != nil {
				return b
			}
			return b.fail(name, "", err)
		}
		if b.err != nil {
			return b
		}
	} else {
		return b.fail(name, "no such mutation or scope", nil)
	}
	b.applied = append(b.applied, name)
	return b
}

func (b *Batch) missing(uses []string) string {
	for _, u := range uses {
		found := false
		for _, a := range b.applied {
			if a == u {
				found = true
				break
			}
		}
		if !found {
			return u
		}
	}
	return ""
}

func (b *Batch) fail(name, detail string, cause error) *Batch {
	it := newIssue(CodeMutationFailed, "", b.typ.name, cause)
	if name != "" {
		it.Message += ": " + name
	}
	if detail != "" {
		it.Message += ": " + detail
	}
	b.err = it
	return b
}

// Err returns the first failure.
func (b *Batch) Err() error { return b.err }

// Hydrated reports whether entries were loaded.
func (b *Batch) Hydrated() bool { return b.hydrated }

// Applied returns the names applied so far, in order.
func (b *Batch) Applied() []string { return append([]string(nil), b.applied...) }

// Parent returns the record the batch is built for.
func (b *Batch) Parent() *Record { return b.parent }

// Entries returns a copy of the current entries.
func (b *Batch) Entries() []map[string]any {
	out := make([]map[string]any, len(b.entries))
	for i, e := range b.entries {
		out[i] = copyMap(e)
	}
	return out
}

// Records builds one record per entry by default construction.
func (b *Batch) Records() ([]*Record, error) {
	if b.err != nil {
		return nil, b.err
	}
	if !b.hydrated {
		return nil, b.fail("", "batch is not hydrated", nil).err
	}
	out := make([]*Record, len(b.entries))
	for i, e := range b.entries {
		rec, err := newRecord(b.typ, e, "")
		if err != nil {
			return nil, err
		}
		out[i] = rec
	}
	return out, nil
}

// One builds the first entry, or returns nil when the batch is empty.
func (b *Batch) One() (*Record, error) {
	recs, err := b.Records()
	if err != nil || len(recs) == 0 {
		return nil, err
	}
	return recs[0], nil
}
