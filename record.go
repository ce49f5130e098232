package cabinet

import (
	"context"
	"reflect"
	"sort"
)

// Record is a typed, schema-constrained entity. Its fields are immutable once
// constructed; nested records are built lazily on first access.
type Record struct {
	typ  *RecordType
	data *Container
	path string
}

// New constructs a record of typ from raw input.
func New(ctx context.Context, typ *RecordType, raw map[string]any) (*Record, error) {
	if typ == nil {
		return nil, newIssue(CodeUnknownType, "", "", nil)
	}
	return newRecord(typ, raw, "")
}

func newRecord(typ *RecordType, raw map[string]any, path string) (*Record, error) {
	r := &Record{typ: typ, data: NewContainer(raw), path: path}
	if err := r.data.Constrain(typ.Schema(), r); err != nil {
		return nil, err
	}
	return r, nil
}

// Make constructs a record of the named type from the Default registry.
func Make(ctx context.Context, typeName string, raw map[string]any) (*Record, error) {
	return Default.Make(ctx, typeName, raw)
}

// Make constructs a record of the named type.
func (r *Registry) Make(ctx context.Context, typeName string, raw map[string]any) (*Record, error) {
	t, ok := r.Lookup(typeName)
	if !ok {
		return nil, newIssue(CodeUnknownType, "", QualifiedName(typeName), nil)
	}
	return New(ctx, t, raw)
}

// Type returns the record type.
func (r *Record) Type() *RecordType { return r.typ }

// Schema returns the schema the record was constrained with.
func (r *Record) Schema() Schema { return r.typ.Schema() }

// Data returns the record's container.
func (r *Record) Data() *Container { return r.data }

// Path returns where the record sits in the graph it was resolved from; root
// records have an empty path.
func (r *Record) Path() string { return r.path }

// Get returns the value of field. Nested records are resolved on first access.
// Accessing a field outside the schema returns ErrUnknownField.
func (r *Record) Get(ctx context.Context, field string) (any, error) {
	return r.data.Get(ctx, field)
}

// String returns a string field; non-string values yield "".
func (r *Record) String(ctx context.Context, field string) (string, error) {
	v, err := r.Get(ctx, field)
	s, _ := v.(string)
	return s, err
}

// Int returns an integer field; non-integer values yield 0.
func (r *Record) Int(ctx context.Context, field string) (int64, error) {
	v, err := r.Get(ctx, field)
	n, _ := v.(int64)
	return n, err
}

// Float returns a float field; non-float values yield 0.
func (r *Record) Float(ctx context.Context, field string) (float64, error) {
	v, err := r.Get(ctx, field)
	f, _ := v.(float64)
	return f, err
}

// Bool returns a bool field; non-bool values yield false.
func (r *Record) Bool(ctx context.Context, field string) (bool, error) {
	v, err := r.Get(ctx, field)
	b, _ := v.(bool)
	return b, err
}

// One returns a singular record field, nil when the field holds no record.
func (r *Record) One(ctx context.Context, field string) (*Record, error) {
	v, err := r.Get(ctx, field)
	rec, _ := v.(*Record)
	return rec, err
}

// Many returns a plural record field.
func (r *Record) Many(ctx context.Context, field string) ([]*Record, error) {
	v, err := r.Get(ctx, field)
	recs, _ := v.([]*Record)
	return recs, err
}

// ExtendOpt configures Extend.
type ExtendOpt struct {
	Target  *RecordType // Defaults to the record's own type.
	Include []string    // Fields carried over; all when empty.
	Exclude []string    // Fields dropped; wins over Include.
}

// Extend builds a new record whose raw input is this record's field map,
// filtered by opt, with overrides layered on top. The merge is shallow: an
// overridden nested record is replaced, never merged field by field. Deferred
// fields carried over are shared with this record.
func (r *Record) Extend(ctx context.Context, overrides map[string]any, opt ExtendOpt) (*Record, error) {
	raw := r.data.Raw(opt.Include, opt.Exclude)
	for k, v := range overrides {
		raw[k] = v
	}
	target := opt.Target
	if target == nil {
		target = r.typ
	}
	return New(ctx, target, raw)
}

// Export resolves the record graph into plain maps and slices: nested records
// become map[string]any, record lists []any.
func (r *Record) Export(ctx context.Context) (map[string]any, error) {
	fields, err := r.data.Serialize(ctx)
	if err != nil {
		return nil, err
	}
	for k, v := range fields {
		ev, err := exportValue(ctx, v)
		if err != nil {
			return nil, err
		}
		fields[k] = ev
	}
	return fields, nil
}

func exportValue(ctx context.Context, v any) (any, error) {
	switch t := v.(type) {
	case *Record:
		if t == nil {
			return nil, nil
		}
		return t.Export(ctx)
	case []*Record:
		out := make([]any, len(t))
		for i, rec := range t {
			ev, err := exportValue(ctx, rec)
			if err != nil {
				return nil, err
			}
			out[i] = ev
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i := range t {
			ev, err := exportValue(ctx, t[i])
			if err != nil {
				return nil, err
			}
			out[i] = ev
		}
		return out, nil
	}
	return v, nil
}

// Changed returns the sorted names of fields whose exported values differ
// between r and other. Fields declared by only one side count as changed.
// Neither record is modified.
func (r *Record) Changed(ctx context.Context, other *Record) ([]string, error) {
	a, err := r.Export(ctx)
	if err != nil {
		return nil, err
	}
	b := map[string]any{}
	if other != nil {
		if b, err = other.Export(ctx); err != nil {
			return nil, err
		}
	}
	seen := make(map[string]struct{}, len(a)+len(b))
	var out []string
	for k, av := range a {
		seen[k] = struct{}{}
		bv, ok := b[k]
		if !ok || !reflect.DeepEqual(av, bv) {
			out = append(out, k)
		}
	}
	for k := range b {
		if _, ok := seen[k]; !ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, nil
}

// MarshalJSON encodes the serialized fields in schema order, resolving
// deferred fields on the way.
func (r *Record) MarshalJSON() ([]byte, error) { return r.data.MarshalJSON() }
