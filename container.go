package cabinet

import (
	"bytes"
	"context"
	"sync/atomic"

	json "github.com/goccy/go-json"
)

// Container holds a record's raw input and its constrained field map. Values
// in the field map are scalars, *Record, []*Record, []any of scalars or
// *Deferred placeholders that resolve to records on first access.
type Container struct {
	original    map[string]any
	schema      Schema
	resolved    map[string]any
	presence    PresenceMap
	owner       *Record
	constrained atomic.Bool
}

// NewContainer wraps raw input. A nil map is treated as empty input.
func NewContainer(raw map[string]any) *Container {
	if raw == nil {
		raw = map[string]any{}
	}
	return &Container{original: raw}
}

// Constrain casts the raw input against schema on behalf of owner. Every
// schema field gets an entry: absent fields are defaulted, record-valued
// fields are deferred. It may be called once per container.
func (c *Container) Constrain(schema Schema, owner *Record) error {
	if owner == nil || owner.typ == nil {
		it := newIssue(CodeConstruction, "", "", nil)
		it.Message += ": container has no owner record"
		return it
	}
	if !c.constrained.CompareAndSwap(false, true) {
		return newIssue(CodeAlreadyConstrained, owner.path, owner.typ.name, nil)
	}
	c.owner = owner
	c.schema = schema
	c.resolved = make(map[string]any, len(schema))
	c.presence = make(PresenceMap, len(schema))
	for _, f := range schema {
		raw, present := c.original[f.Name]
		key := "/" + f.Name
		if present {
			c.presence[key] |= PresenceSeen
			if raw == nil {
				c.presence[key] |= PresenceWasNull
			}
		}
		if raw == nil {
			c.presence[key] |= PresenceDefaultApplied
		}
		c.resolved[f.Name] = c.castField(owner.path+key, f.Type, raw)
	}
	return nil
}

func (c *Container) castField(path, typ string, raw any) any {
	switch v := raw.(type) {
	case *Deferred:
		// carried over from another record, e.g. by Extend
		if v.owner == c.owner.typ && sameType(v.typ, typ) {
			return v
		}
		return c.recast(path, typ, v)
	case Thunk:
		return c.inline(path, typ, v)
	case func(context.Context, *Record) (any, error):
		return c.inline(path, typ, Thunk(v))
	}
	return c.castValue(path, ParseType(typ), raw)
}

func (c *Container) castValue(path string, desc TypeDescriptor, raw any) any {
	if desc.Plural {
		return c.castPlural(path, desc, raw)
	}
	return c.castSingular(path, desc, raw)
}

func sameType(a, b string) bool { return ParseType(a).String() == ParseType(b).String() }

func (c *Container) castPlural(path string, desc TypeDescriptor, raw any) any {
	if target, ok := c.owner.typ.registry.recordType(desc.Base); ok {
		return pluralDeferred(path, target, asList(raw), c.owner)
	}
	items := asList(raw)
	single := TypeDescriptor{Raw: desc.Base, Base: desc.Base, Object: desc.Object}
	out := make([]any, len(items))
	for i, item := range items {
		out[i] = c.castSingular(path, single, item)
	}
	return out
}

func (c *Container) castSingular(path string, desc TypeDescriptor, raw any) any {
	if raw == nil {
		return c.fake(path, desc)
	}
	if target, ok := c.owner.typ.registry.recordType(desc.Base); ok {
		if rec, ok := raw.(*Record); ok && rec != nil && rec.typ.Is(target) {
			return rec
		}
		return singularDeferred(path, target, raw, c.owner)
	}
	if desc.Object {
		return Cast(raw, TypeObject, nil)
	}
	return Cast(raw, desc.Base, nil)
}

// fake produces the value of an absent field: nil for nullable and
// non-record object types, a blank record for record types and the zero value
// of scalars.
func (c *Container) fake(path string, desc TypeDescriptor) any {
	if desc.Nullable {
		return nil
	}
	if target, ok := c.owner.typ.registry.recordType(desc.Base); ok {
		return singularDeferred(path, target, map[string]any{}, c.owner)
	}
	if desc.Object {
		return nil
	}
	return Cast(nil, desc.Base, []any{})
}

// inline defers a Thunk and casts what it returns.
func (c *Container) inline(path, typ string, fn Thunk) *Deferred {
	owner := c.owner
	return newDeferred(path, typ, owner.typ, func(ctx context.Context) (any, error) {
		v, err := fn(ctx, owner)
		if err != nil {
			return nil, newIssue(CodeConstruction, path, typ, err)
		}
		return force(ctx, c.castValue(path, ParseType(typ), v))
	})
}

// recast re-types a deferred value built for another field. On first access
// the source is resolved and cast against typ as if it were raw input, so
// records reach this owner's consumers and scalars get their zero value when
// the carried value does not fit.
func (c *Container) recast(path, typ string, from *Deferred) *Deferred {
	desc := ParseType(typ)
	return newDeferred(path, typ, c.owner.typ, func(ctx context.Context) (any, error) {
		v, err := from.Resolve(ctx)
		if err != nil {
			return nil, err
		}
		raw, err := c.carried(ctx, v, desc)
		if err != nil {
			return nil, err
		}
		out := c.castValue(path, desc, raw)
		if out == nil && !desc.Nullable {
			out = c.fake(path, desc)
		}
		return force(ctx, out)
	})
}

// carried keeps records that already are of the target record type and turns
// every other record into plain maps.
func (c *Container) carried(ctx context.Context, v any, desc TypeDescriptor) (any, error) {
	target, ok := c.owner.typ.registry.recordType(desc.Base)
	switch t := v.(type) {
	case *Record:
		if ok && t != nil && t.typ.Is(target) {
			return t, nil
		}
	case []*Record:
		fits := ok
		for _, rec := range t {
			fits = fits && rec != nil && rec.typ.Is(target)
		}
		if fits {
			return t, nil
		}
	}
	return exportValue(ctx, v)
}

// Get returns the value of field, resolving a deferred value on first access.
func (c *Container) Get(ctx context.Context, field string) (any, error) {
	v, ok := c.resolved[field]
	if !ok {
		if !c.constrained.Load() || c.resolved == nil {
			return nil, newIssue(CodeUnknownField, "/"+field, "", nil)
		}
		return nil, newIssue(CodeUnknownField, c.owner.path+"/"+field, c.owner.typ.name, nil)
	}
	return force(ctx, v)
}

// Has reports whether field is declared in the schema.
func (c *Container) Has(field string) bool {
	_, ok := c.resolved[field]
	return ok
}

// Raw returns a copy of the field map restricted to include (all fields when
// empty) minus exclude. Deferred values are returned unresolved.
func (c *Container) Raw(include, exclude []string) map[string]any {
	keys := filterKeys(c.schema.Names(), include, exclude)
	out := make(map[string]any, len(keys))
	for _, k := range keys {
		out[k] = c.resolved[k]
	}
	return out
}

// Serialize returns the field map filtered by the owner type's include and
// exclude sets with every deferred value resolved.
func (c *Container) Serialize(ctx context.Context) (map[string]any, error) {
	keys := c.serializedKeys()
	out := make(map[string]any, len(keys))
	for _, k := range keys {
		v, err := force(ctx, c.resolved[k])
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}

func (c *Container) serializedKeys() []string {
	var include, exclude []string
	if c.owner != nil {
		include, exclude = c.owner.typ.serializeFilter()
	}
	return filterKeys(c.schema.Names(), include, exclude)
}

// Original returns a shallow copy of the raw input.
func (c *Container) Original() map[string]any {
	out := make(map[string]any, len(c.original))
	for k, v := range c.original {
		out[k] = v
	}
	return out
}

// Presence returns a copy of the per-field presence flags.
func (c *Container) Presence() PresenceMap { return c.presence.clone() }

// MarshalJSON encodes the serialized fields as an object in schema order.
func (c *Container) MarshalJSON() ([]byte, error) {
	ctx := context.Background()
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range c.serializedKeys() {
		v, err := force(ctx, c.resolved[k])
		if err != nil {
			return nil, err
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
