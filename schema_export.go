package cabinet

import (
	"strings"

	js "github.com/reoring/cabinet/jsonschema"
)

// JSONSchema projects the merged schema of t onto a JSON Schema document.
// Referenced record types are emitted once under $defs.
func (t *RecordType) JSONSchema() (*js.Schema, error) {
	ex := &exporter{defs: map[string]*js.Schema{}, refs: map[string]bool{}}
	root := ex.object(t)
	// the root is inlined; a self reference points at a detached copy
	if ex.refs[defName(t.name)] {
		cp := *root
		ex.defs[defName(t.name)] = &cp
	} else {
		delete(ex.defs, defName(t.name))
	}
	root.SchemaURI = js.Draft
	root.ID = defName(t.name)
	if len(ex.defs) > 0 {
		root.Defs = ex.defs
	}
	return root, nil
}

type exporter struct {
	defs map[string]*js.Schema
	refs map[string]bool
}

func (ex *exporter) object(t *RecordType) *js.Schema {
	s := &js.Schema{Type: "object", Title: t.ShortName(), Properties: map[string]*js.Schema{}}
	ex.defs[defName(t.name)] = s
	for _, f := range t.Schema() {
		s.Properties[f.Name] = ex.field(t, f.Type)
		s.PropertyOrder = append(s.PropertyOrder, f.Name)
	}
	return s
}

func (ex *exporter) field(owner *RecordType, typ string) *js.Schema {
	desc := ParseType(typ)
	var s *js.Schema
	if target, ok := owner.registry.recordType(desc.Base); ok {
		name := defName(target.name)
		if _, seen := ex.defs[name]; !seen {
			ex.object(target)
		}
		ex.refs[name] = true
		s = &js.Schema{Ref: "#/$defs/" + name}
	} else {
		s = scalarSchema(desc)
	}
	if desc.Plural {
		s = &js.Schema{Type: "array", Items: s}
	}
	if desc.Nullable {
		s = js.Nullable(s)
	}
	return s
}

func scalarSchema(desc TypeDescriptor) *js.Schema {
	if desc.Object {
		return &js.Schema{Type: "object", Description: strings.TrimPrefix(desc.Base, qualifier)}
	}
	switch scalarName(desc.Base) {
	case TypeString:
		return &js.Schema{Type: "string"}
	case TypeInt:
		return &js.Schema{Type: "integer"}
	case TypeFloat:
		return &js.Schema{Type: "number"}
	case TypeBool:
		return &js.Schema{Type: "boolean"}
	case TypeArray:
		return &js.Schema{Type: "array"}
	case TypeObject:
		return &js.Schema{Type: "object"}
	case nullType:
		return &js.Schema{Type: "null"}
	}
	return &js.Schema{}
}

// defName turns `\App\Flight` into `App.Flight`.
func defName(name string) string {
	return strings.ReplaceAll(strings.TrimPrefix(name, qualifier), qualifier, ".")
}
