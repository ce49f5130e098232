package cabinet

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// jsonNumber matches json.Number from encoding/json and goccy/go-json alike.
type jsonNumber interface {
	String() string
	Int64() (int64, error)
	Float64() (float64, error)
}

// Cast coerces raw into the scalar type typ. When the coercion is not possible
// def is returned instead; Cast never fails and never panics.
//
// Supported coercions:
//   - string: strings, numbers (strconv formatting), bools ("true"/"false"), nil -> "".
//   - int: integers, floats truncated toward zero, numeric strings, bools -> 0/1, nil -> 0.
//   - float: numbers, numeric strings, bools -> 0/1, nil -> 0.
//   - bool: bools, numbers (non-zero), strconv.ParseBool strings plus yes/on/no/off/"", nil -> false.
//   - array: lists -> []any, maps unchanged, scalars wrapped, nil -> empty list.
//   - object (and every `\Qualified` type): maps and structs unchanged, nil -> empty map.
//   - mixed: raw unchanged. null: nil. Unknown names: raw unchanged.
//
// Empty lists and maps cast to anything but array are treated as nil first, so
// they can never turn into a truthy or zero scalar by accident.
func Cast(raw any, typ string, def any) any {
	typ = CanonicalizeUnion(typ)
	if IsObjectType(typ) {
		typ = TypeObject
	}
	typ = scalarName(typ)
	if typ != TypeArray && isEmptyCollection(raw) {
		raw = nil
	}
	if typ == TypeMixed {
		return raw
	}
	out, ok := coerce(raw, typ)
	if !ok {
		logger().Trace().Str("type", typ).Str("raw", fmt.Sprintf("%T", raw)).Msg("cast fell back to default")
		return def
	}
	return out
}

func coerce(raw any, typ string) (any, bool) {
	switch typ {
	case TypeString:
		return toString(raw)
	case TypeInt:
		return toInt(raw)
	case TypeFloat:
		return toFloat(raw)
	case TypeBool:
		return toBool(raw)
	case TypeArray:
		return toArray(raw)
	case TypeObject:
		return toObject(raw)
	case nullType:
		return nil, true
	default:
		return raw, true
	}
}

func isEmptyCollection(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() == 0
	}
	return false
}

func toString(v any) (any, bool) {
	switch t := v.(type) {
	case nil:
		return "", true
	case string:
		return t, true
	case bool:
		return strconv.FormatBool(t), true
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(t), 'g', -1, 32), true
	case jsonNumber:
		return t.String(), true
	case []byte:
		return string(t), true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(rv.Uint(), 10), true
	case reflect.String:
		return rv.String(), true
	}
	return nil, false
}

func toInt(v any) (any, bool) {
	switch t := v.(type) {
	case nil:
		return int64(0), true
	case bool:
		if t {
			return int64(1), true
		}
		return int64(0), true
	case string:
		return parseIntString(t)
	case jsonNumber:
		if n, err := t.Int64(); err == nil {
			return n, true
		}
		return parseIntString(t.String())
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return nil, false
		}
		return int64(u), true
	case reflect.Float32, reflect.Float64:
		return truncate(rv.Float())
	case reflect.String:
		return parseIntString(rv.String())
	}
	return nil, false
}

func parseIntString(s string) (any, bool) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, false
	}
	return truncate(f)
}

func truncate(f float64) (any, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f >= math.MaxInt64 || f < math.MinInt64 {
		return nil, false
	}
	return int64(f), true
}

func toFloat(v any) (any, bool) {
	switch t := v.(type) {
	case nil:
		return float64(0), true
	case bool:
		if t {
			return float64(1), true
		}
		return float64(0), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return nil, false
		}
		return f, true
	case jsonNumber:
		f, err := t.Float64()
		if err != nil {
			return nil, false
		}
		return f, true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	case reflect.String:
		return toFloat(rv.String())
	}
	return nil, false
}

func toBool(v any) (any, bool) {
	switch t := v.(type) {
	case nil:
		return false, true
	case bool:
		return t, true
	case string:
		s := strings.ToLower(strings.TrimSpace(t))
		switch s {
		case "yes", "on", "y":
			return true, true
		case "no", "off", "n", "":
			return false, true
		}
		b, err := strconv.ParseBool(s)
		if err != nil {
			return nil, false
		}
		return b, true
	case jsonNumber:
		f, err := t.Float64()
		if err != nil {
			return nil, false
		}
		return f != 0, true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0, true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint() != 0, true
	case reflect.Float32, reflect.Float64:
		return rv.Float() != 0, true
	}
	return nil, false
}

func toArray(v any) (any, bool) {
	switch t := v.(type) {
	case nil:
		return []any{}, true
	case []any:
		return t, true
	case map[string]any:
		return t, true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
			return []any{v}, true
		}
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = rv.Index(i).Interface()
		}
		return out, true
	case reflect.Map:
		return v, true
	}
	return []any{v}, true
}

func toObject(v any) (any, bool) {
	switch v.(type) {
	case nil:
		return map[string]any{}, true
	case map[string]any:
		return v, true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map, reflect.Struct, reflect.Pointer, reflect.Interface:
		return v, true
	}
	return nil, false
}

// asList normalizes raw plural input into an ordered list. Associative maps
// count as a single entry, matching how a lone record is supplied where a
// list is expected.
func asList(raw any) []any {
	switch t := raw.(type) {
	case nil:
		return []any{}
	case []any:
		return t
	case map[string]any:
		return []any{t}
	}
	rv := reflect.ValueOf(raw)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = rv.Index(i).Interface()
		}
		return out
	}
	return []any{raw}
}

// asMap returns raw as a field map; anything that is not a map yields an empty
// map so construction falls back to a blank record.
func asMap(raw any) map[string]any {
	if m, ok := raw.(map[string]any); ok && m != nil {
		return m
	}
	return map[string]any{}
}
