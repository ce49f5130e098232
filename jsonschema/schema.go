package jsonschema

// Draft is the dialect emitted for root documents.
const Draft = "https://json-schema.org/draft/2020-12/schema"

// Schema is a minimal JSON Schema representation used for export.
type Schema struct {
	// Core
	SchemaURI   string `json:"$schema,omitempty"`
	ID          string `json:"$id,omitempty"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Type        any    `json:"type,omitempty"` // string, or []string for nullable types
	Ref         string `json:"$ref,omitempty"`

	// Object
	Properties           map[string]*Schema `json:"properties,omitempty"`
	PropertyOrder        []string           `json:"x-propertyOrder,omitempty"`
	AdditionalProperties any                `json:"additionalProperties,omitempty"`

	// Array
	Items *Schema `json:"items,omitempty"`

	// Union
	AnyOf []*Schema `json:"anyOf,omitempty"`

	// Definitions
	Defs map[string]*Schema `json:"$defs,omitempty"`
}

// Nullable wraps s so that null is accepted as well.
func Nullable(s *Schema) *Schema {
	if t, ok := s.Type.(string); ok && s.Ref == "" {
		cp := *s
		cp.Type = []string{t, "null"}
		return &cp
	}
	return &Schema{AnyOf: []*Schema{s, {Type: "null"}}}
}
