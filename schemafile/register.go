package schemafile

import (
	"fmt"

	"github.com/reoring/cabinet"
	"github.com/reoring/cabinet/i18n"
)

// Hooks attaches behaviour that cannot live in a declaration file. Keys are
// type names; the leading qualifier is optional.
type Hooks struct {
	Consumers map[string][]cabinet.Consumer
	Providers map[string]cabinet.ProviderFunc
	Mutations map[string]map[string]cabinet.Mutation
	Scopes    map[string]map[string]cabinet.Scope
}

func hookFor[V any](hooks map[string]V, name string) V {
	for k, v := range hooks {
		if cabinet.QualifiedName(k) == name {
			return v
		}
	}
	var zero V
	return zero
}

// Register adds every declared type to reg, supertypes first, and returns the
// registered types in file order. A supertype may also come from reg itself.
func (f *File) Register(reg *cabinet.Registry, hooks Hooks) ([]*cabinet.RecordType, error) {
	byName := make(map[string]TypeSpec, len(f.Types))
	for _, ts := range f.Types {
		name := cabinet.QualifiedName(ts.Name)
		if _, dup := byName[name]; dup {
			return nil, definitionError(name, "type declared twice")
		}
		byName[name] = ts
	}
	for _, keys := range [][]string{mapKeys(hooks.Consumers), mapKeys(hooks.Mutations), mapKeys(hooks.Scopes)} {
		for _, k := range keys {
			if _, ok := byName[cabinet.QualifiedName(k)]; !ok {
				return nil, definitionError(k, "hook for a type the file does not declare")
			}
		}
	}

	registered := make(map[string]*cabinet.RecordType, len(f.Types))
	visiting := make(map[string]bool)
	var visit func(name string) error
	visit = func(name string) error {
		if _, done := registered[name]; done {
			return nil
		}
		if visiting[name] {
			return definitionError(name, "extends chain loops back to itself")
		}
		visiting[name] = true
		ts := byName[name]
		if ext := cabinet.QualifiedName(ts.Extends); ts.Extends != "" {
			if _, local := byName[ext]; local {
				if err := visit(ext); err != nil {
					return err
				}
			}
		}
		t, err := reg.Register(cabinet.TypeDef{
			Name:      name,
			Extends:   ts.Extends,
			Fields:    ts.Fields.Fields(),
			Consumers: hookFor(hooks.Consumers, name),
			Provider:  hookFor(hooks.Providers, name),
			Mutations: hookFor(hooks.Mutations, name),
			Scopes:    hookFor(hooks.Scopes, name),
			Include:   ts.Include,
			Exclude:   ts.Exclude,
		})
		if err != nil {
			return err
		}
		registered[name] = t
		return nil
	}

	out := make([]*cabinet.RecordType, 0, len(f.Types))
	for _, ts := range f.Types {
		name := cabinet.QualifiedName(ts.Name)
		if err := visit(name); err != nil {
			return nil, err
		}
		out = append(out, registered[name])
	}
	return out, nil
}

func mapKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func definitionError(typ, detail string) error {
	return cabinet.Issue{
		Code:    cabinet.CodeInvalidDefinition,
		Type:    cabinet.QualifiedName(typ),
		Message: i18n.T(cabinet.CodeInvalidDefinition, map[string]string{"detail": detail}),
	}
}

// MustRegister is like Register but panics on error.
func (f *File) MustRegister(reg *cabinet.Registry, hooks Hooks) []*cabinet.RecordType {
	types, err := f.Register(reg, hooks)
	if err != nil {
		panic(fmt.Sprintf("schemafile: %v", err))
	}
	return types
}
