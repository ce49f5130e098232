package cabinet

import (
	"bytes"
	"context"

	json "github.com/goccy/go-json"
)

// DecodeJSON decodes a JSON object into raw record input. Numbers are kept as
// json.Number so integer precision survives until the field is cast.
func DecodeJSON(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, newIssue(CodeParseError, "/", "", err)
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}

// MakeJSON constructs a record of the named type from a JSON object using the
// Default registry.
func MakeJSON(ctx context.Context, typeName string, data []byte) (*Record, error) {
	return Default.MakeJSON(ctx, typeName, data)
}

// MakeJSON constructs a record of the named type from a JSON object.
func (r *Registry) MakeJSON(ctx context.Context, typeName string, data []byte) (*Record, error) {
	raw, err := DecodeJSON(data)
	if err != nil {
		return nil, err
	}
	return r.Make(ctx, typeName, raw)
}
