// Package schemafile loads record type declarations from YAML or JSON files.
//
// A file lists types in any order; supertypes are registered before the
// types extending them:
//
//	types:
//	  - name: \Travel\Flight
//	    fields:
//	      origin: string
//	      seats: int
//	  - name: \Travel\Booking
//	    fields:
//	      id: string
//	      flights: \Travel\Flight[]
//	    exclude: [internal]
//
// Field order follows the document. Consumers and providers cannot be
// expressed in a file; they are attached through Hooks at registration.
package schemafile

import (
	"bytes"
	"fmt"
	"os"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/reoring/cabinet"
	"github.com/reoring/cabinet/i18n"
	"github.com/reoring/cabinet/source"
)

// File is a parsed type declaration file.
type File struct {
	Types []TypeSpec `yaml:"types" json:"types" validate:"required,min=1,dive"`
}

// TypeSpec declares one record type.
type TypeSpec struct {
	Name    string    `yaml:"name" json:"name" validate:"required,typename"`
	Extends string    `yaml:"extends,omitempty" json:"extends,omitempty" validate:"omitempty,typename"`
	Fields  FieldList `yaml:"fields,omitempty" json:"fields,omitempty" validate:"dive"`
	Include []string  `yaml:"include,omitempty" json:"include,omitempty" validate:"dive,required"`
	Exclude []string  `yaml:"exclude,omitempty" json:"exclude,omitempty" validate:"dive,required"`
}

// FieldSpec is one schema entry.
type FieldSpec struct {
	Name string `yaml:"name" json:"name" validate:"required"`
	Type string `yaml:"type" json:"type" validate:"required,fieldtype"`
}

// FieldList keeps fields in declaration order. It decodes from a mapping of
// name to type or from a list of {name, type} entries.
type FieldList []FieldSpec

// UnmarshalYAML reads the mapping node pair by pair so order survives.
func (l *FieldList) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.MappingNode:
		out := make(FieldList, 0, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			k, v := n.Content[i], n.Content[i+1]
			if v.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: type of field %q must be a string", v.Line, k.Value)
			}
			out = append(out, FieldSpec{Name: k.Value, Type: v.Value})
		}
		*l = out
		return nil
	case yaml.SequenceNode:
		var out []FieldSpec
		if err := n.Decode(&out); err != nil {
			return err
		}
		*l = out
		return nil
	}
	return fmt.Errorf("line %d: fields must be a mapping or a list", n.Line)
}

// UnmarshalJSON walks the object token by token so order survives.
func (l *FieldList) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var out []FieldSpec
		if err := json.Unmarshal(trimmed, &out); err != nil {
			return err
		}
		*l = out
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*l = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("fields must be an object or an array")
	}
	out := FieldList{}
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return err
		}
		name, _ := kt.(string)
		vt, err := dec.Token()
		if err != nil {
			return err
		}
		typ, ok := vt.(string)
		if !ok {
			return fmt.Errorf("type of field %q must be a string", name)
		}
		out = append(out, FieldSpec{Name: name, Type: typ})
	}
	*l = out
	return nil
}

// Fields converts the list to registry fields.
func (l FieldList) Fields() []cabinet.Field {
	out := make([]cabinet.Field, len(l))
	for i, f := range l {
		out[i] = cabinet.Field{Name: f.Name, Type: f.Type}
	}
	return out
}

var typeNamePattern = regexp.MustCompile(`^\\?[A-Za-z_][A-Za-z0-9_]*(\\[A-Za-z_][A-Za-z0-9_]*)*$`)

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	_ = v.RegisterValidation("typename", func(fl validator.FieldLevel) bool {
		return typeNamePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("fieldtype", func(fl validator.FieldLevel) bool {
		return cabinet.CanonicalizeUnion(fl.Field().String()) != ""
	})
	return v
}

var validate = newValidator()

// Parse decodes and validates a declaration file.
func Parse(data []byte, f source.Format) (*File, error) {
	var file File
	switch f {
	case source.FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&file); err != nil {
			return nil, parseError(err)
		}
	case source.FormatJSON, "":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&file); err != nil {
			return nil, parseError(err)
		}
	default:
		return nil, parseError(fmt.Errorf("unsupported format %q", f))
	}
	if err := file.Validate(); err != nil {
		return nil, err
	}
	return &file, nil
}

// Load reads path and parses it in the format its extension names.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data, source.FormatFromPath(path))
}

// Validate checks the declarations and reports every violation as an
// invalid_definition issue keyed by its document path.
func (f *File) Validate() error {
	err := validate.Struct(f)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	var iss cabinet.Issues
	for _, fe := range verrs {
		detail := fe.Tag()
		if v := fmt.Sprint(fe.Value()); v != "" {
			detail += fmt.Sprintf(" %q", v)
		}
		iss = cabinet.AppendIssues(iss, cabinet.Issue{
			Path:    namespacePath(fe.Namespace()),
			Code:    cabinet.CodeInvalidDefinition,
			Message: i18n.T(cabinet.CodeInvalidDefinition, map[string]string{"detail": detail}),
		})
	}
	return iss
}

// namespacePath turns "File.types[0].fields[2].type" into "/types/0/fields/2/type".
func namespacePath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		ns = ns[i+1:]
	}
	ns = strings.NewReplacer("[", "/", "]", "", ".", "/").Replace(ns)
	return "/" + ns
}

func parseError(cause error) error {
	return cabinet.Issue{
		Path:    "/",
		Code:    cabinet.CodeParseError,
		Message: i18n.T(cabinet.CodeParseError, nil),
		Cause:   cause,
	}
}
