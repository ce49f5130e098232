package cabinet

import (
	"context"
	"fmt"
	"sync"
)

// Field is one schema entry: a field name and its declared type string.
type Field struct {
	Name string `json:"name" yaml:"name"`
	Type string `json:"type" yaml:"type"`
}

// Schema is the ordered field list of a record type.
type Schema []Field

// Lookup returns the declared type of name.
func (s Schema) Lookup(name string) (string, bool) {
	for _, f := range s {
		if f.Name == name {
			return f.Type, true
		}
	}
	return "", false
}

// Names returns field names in schema order.
func (s Schema) Names() []string {
	out := make([]string, len(s))
	for i, f := range s {
		out[i] = f.Name
	}
	return out
}

// merge layers over on top of s. Entries already present keep their position
// and take the overriding type; new entries are appended in order.
func (s Schema) merge(over []Field) Schema {
	out := make(Schema, len(s), len(s)+len(over))
	copy(out, s)
	for _, f := range over {
		replaced := false
		for i := range out {
			if out[i].Name == f.Name {
				out[i].Type = f.Type
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, f)
		}
	}
	return out
}

// ConsumerFunc builds the records for a child field on behalf of the parent.
// It receives every raw item of the field at once and returns the records in
// the order they should be exposed.
type ConsumerFunc func(ctx context.Context, items []any, parent *Record) ([]*Record, error)

// Consumer is a scoped builder declared by a parent type for one child type.
// Name follows the `<ShortTypeName>Consumer` convention and Uses must
// reference the child type for the consumer to be eligible.
type Consumer struct {
	Name  string
	Uses  []string
	Build ConsumerFunc
}

func (c Consumer) uses(target string) bool {
	target = QualifiedName(target)
	for _, u := range c.Uses {
		if QualifiedName(u) == target {
			return true
		}
	}
	return false
}

// ProviderFunc is a type-level builder used when no scoped consumer applies.
// It is called once per raw item.
type ProviderFunc func(ctx context.Context, raw any, parent *Record) (*Record, error)

// TypeDef declares a record type.
type TypeDef struct {
	Name      string // Fully-qualified name; the leading `\` is optional.
	Extends   string // Optional supertype, registered beforehand.
	Fields    []Field
	Consumers []Consumer
	Provider  ProviderFunc
	// Mutations and Scopes reshape raw batches of this type, see Batch.
	Mutations map[string]Mutation
	Scopes    map[string]Scope
	// Include and Exclude filter the fields emitted by serialization.
	Include []string
	Exclude []string
}

// RecordType is a registered record type. It is immutable after registration.
type RecordType struct {
	name      string
	parent    *RecordType
	fields    []Field
	consumers map[string]Consumer
	provider  ProviderFunc
	mutations map[string]Mutation
	scopes    map[string]Scope
	include   []string
	exclude   []string
	registry  *Registry

	schemaOnce sync.Once
	schema     Schema
}

// Name returns the fully-qualified type name.
func (t *RecordType) Name() string { return t.name }

// ShortName returns the unqualified type name.
func (t *RecordType) ShortName() string { return ShortName(t.name) }

// Parent returns the supertype, or nil.
func (t *RecordType) Parent() *RecordType { return t.parent }

// Registry returns the registry the type belongs to.
func (t *RecordType) Registry() *Registry { return t.registry }

// Schema returns the merged schema of the type and its supertypes, supertype
// entries first. It is computed once and cached for the life of the process.
func (t *RecordType) Schema() Schema {
	t.schemaOnce.Do(func() {
		var base Schema
		if t.parent != nil {
			base = t.parent.Schema()
		}
		t.schema = base.merge(t.fields)
	})
	return t.schema
}

// Is reports whether t is other or one of its subtypes.
func (t *RecordType) Is(other *RecordType) bool {
	for cur := t; cur != nil; cur = cur.parent {
		if cur == other {
			return true
		}
	}
	return false
}

// scopedConsumer finds an eligible consumer for target declared on t or one of
// its supertypes.
func (t *RecordType) scopedConsumer(target *RecordType) (Consumer, bool) {
	name := ConsumerName(target.name)
	for cur := t; cur != nil; cur = cur.parent {
		if c, ok := cur.consumers[name]; ok {
			if c.uses(target.name) {
				return c, true
			}
			return Consumer{}, false
		}
	}
	return Consumer{}, false
}

// mutation finds a named mutation on t or its nearest supertype.
func (t *RecordType) mutation(name string) (Mutation, bool) {
	for cur := t; cur != nil; cur = cur.parent {
		if m, ok := cur.mutations[name]; ok {
			return m, true
		}
	}
	return Mutation{}, false
}

// scope finds a named scope on t or its nearest supertype.
func (t *RecordType) scope(name string) (Scope, bool) {
	for cur := t; cur != nil; cur = cur.parent {
		if sc, ok := cur.scopes[name]; ok {
			return sc, true
		}
	}
	return Scope{}, false
}

// serializeFilter returns the include/exclude sets, inherited when unset.
func (t *RecordType) serializeFilter() (include, exclude []string) {
	for cur := t; cur != nil; cur = cur.parent {
		if include == nil && cur.include != nil {
			include = cur.include
		}
		if exclude == nil && cur.exclude != nil {
			exclude = cur.exclude
		}
	}
	return include, exclude
}

// Registry holds record types by fully-qualified name.
type Registry struct {
	mu    sync.RWMutex
	types map[string]*RecordType
	order []*RecordType
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{types: map[string]*RecordType{}}
}

// Default is the process-wide registry used by the package-level helpers.
var Default = NewRegistry()

// Register validates def and adds it to the registry.
func (r *Registry) Register(def TypeDef) (*RecordType, error) {
	name := QualifiedName(def.Name)
	if name == "" {
		return nil, invalidDef(def.Name, "type name is empty")
	}
	t := &RecordType{
		name:      name,
		fields:    append([]Field(nil), def.Fields...),
		consumers: make(map[string]Consumer, len(def.Consumers)),
		provider:  def.Provider,
		mutations: make(map[string]Mutation, len(def.Mutations)),
		scopes:    make(map[string]Scope, len(def.Scopes)),
		include:   def.Include,
		exclude:   def.Exclude,
		registry:  r,
	}
	for _, f := range def.Fields {
		if f.Name == "" {
			return nil, invalidDef(name, "field name is empty")
		}
		if CanonicalizeUnion(f.Type) == "" {
			return nil, invalidDef(name, fmt.Sprintf("field %q has no type", f.Name))
		}
	}
	for _, c := range def.Consumers {
		if len(c.Uses) == 0 {
			return nil, invalidDef(name, fmt.Sprintf("consumer %q declares no uses", c.Name))
		}
		if c.Build == nil {
			return nil, invalidDef(name, fmt.Sprintf("consumer %q has no builder", c.Name))
		}
		if c.Name == "" {
			c.Name = ConsumerName(c.Uses[0])
		}
		if _, dup := t.consumers[c.Name]; dup {
			return nil, invalidDef(name, fmt.Sprintf("consumer %q declared twice", c.Name))
		}
		t.consumers[c.Name] = c
	}
	for n, m := range def.Mutations {
		if err := m.validate(n); err != nil {
			return nil, invalidDef(name, err.Error())
		}
		t.mutations[n] = m
	}
	for n, sc := range def.Scopes {
		if n == "" || sc.Fn == nil {
			return nil, invalidDef(name, fmt.Sprintf("scope %q needs a name and a function", n))
		}
		if _, dup := t.mutations[n]; dup {
			return nil, invalidDef(name, fmt.Sprintf("%q is both a mutation and a scope", n))
		}
		t.scopes[n] = sc
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.types[name]; dup {
		return nil, invalidDef(name, "type already registered")
	}
	if def.Extends != "" {
		p, ok := r.types[QualifiedName(def.Extends)]
		if !ok {
			return nil, invalidDef(name, fmt.Sprintf("supertype %s is not registered", QualifiedName(def.Extends)))
		}
		t.parent = p
	}
	r.types[name] = t
	r.order = append(r.order, t)
	return t, nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(def TypeDef) *RecordType {
	t, err := r.Register(def)
	if err != nil {
		panic(err)
	}
	return t
}

// Lookup finds a type by name; the leading qualifier is optional.
func (r *Registry) Lookup(name string) (*RecordType, bool) {
	r.mu.RLock()
	t, ok := r.types[QualifiedName(name)]
	r.mu.RUnlock()
	return t, ok
}

// Types returns the registered types in registration order.
func (r *Registry) Types() []*RecordType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*RecordType(nil), r.order...)
}

// IsRecordType reports whether the type string, once singularized, refers to
// a registered record type. Only qualified names qualify.
func (r *Registry) IsRecordType(t string) bool {
	_, ok := r.recordType(t)
	return ok
}

func (r *Registry) recordType(t string) (*RecordType, bool) {
	if !IsObjectType(t) {
		return nil, false
	}
	return r.Lookup(Singularize(CanonicalizeUnion(t)))
}

// Register adds def to the Default registry.
func Register(def TypeDef) (*RecordType, error) { return Default.Register(def) }

// MustRegister adds def to the Default registry and panics on error.
func MustRegister(def TypeDef) *RecordType { return Default.MustRegister(def) }

// Lookup finds a type in the Default registry.
func Lookup(name string) (*RecordType, bool) { return Default.Lookup(name) }

func invalidDef(typ, detail string) error {
	it := newIssue(CodeInvalidDefinition, "", QualifiedName(typ), nil)
	it.Message += ": " + detail
	return it
}
