package cabinet

import (
	"context"
	"reflect"
	"strconv"
	"strings"
)

// ResolveStructKey resolves the record field a struct field binds to.
// Priority: cabinet:"name=..." > json tag name > field name; "-" disables the field.
func ResolveStructKey(sf reflect.StructField) string {
	if gt := sf.Tag.Get("cabinet"); gt != "" {
		parts := strings.Split(gt, ",")
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p == "-" {
				return "-"
			}
			if strings.HasPrefix(p, "name=") {
				return strings.TrimPrefix(p, "name=")
			}
		}
	}
	if jt := sf.Tag.Get("json"); jt != "" {
		if jt == "-" {
			return "-"
		}
		if i := strings.IndexByte(jt, ','); i >= 0 {
			if jt[:i] != "" {
				return jt[:i]
			}
			return sf.Name
		}
		return jt
	}
	return sf.Name
}

// Bind resolves rec (nested records included) and copies it into a value of
// struct type T. Fields are matched with ResolveStructKey; record fields map
// onto nested structs, record lists onto slices.
func Bind[T any](ctx context.Context, rec *Record) (T, error) {
	var out T
	if rec == nil {
		return out, nil
	}
	m, err := rec.Export(ctx)
	if err != nil {
		return out, err
	}
	if err := bindValue(reflect.ValueOf(&out).Elem(), m, ""); err != nil {
		return out, err
	}
	return out, nil
}

func bindValue(dst reflect.Value, v any, path string) error {
	if v == nil {
		return nil
	}
	switch dst.Kind() {
	case reflect.Pointer:
		elem := reflect.New(dst.Type().Elem())
		if err := bindValue(elem.Elem(), v, path); err != nil {
			return err
		}
		dst.Set(elem)
		return nil
	case reflect.Interface:
		vv := reflect.ValueOf(v)
		if !vv.Type().AssignableTo(dst.Type()) {
			return bindMismatch(path, dst.Type())
		}
		dst.Set(vv)
		return nil
	case reflect.Struct:
		m, ok := v.(map[string]any)
		if !ok {
			return bindScalar(dst, v, path)
		}
		rt := dst.Type()
		for i := 0; i < rt.NumField(); i++ {
			sf := rt.Field(i)
			if !sf.IsExported() {
				continue
			}
			key := ResolveStructKey(sf)
			if key == "-" || key == "" {
				continue
			}
			val, ok := m[key]
			if !ok {
				continue
			}
			if err := bindValue(dst.Field(i), val, path+"/"+key); err != nil {
				return err
			}
		}
		return nil
	case reflect.Slice:
		list, ok := v.([]any)
		if !ok {
			return bindScalar(dst, v, path)
		}
		out := reflect.MakeSlice(dst.Type(), len(list), len(list))
		for i, item := range list {
			if err := bindValue(out.Index(i), item, path+"/"+strconv.Itoa(i)); err != nil {
				return err
			}
		}
		dst.Set(out)
		return nil
	case reflect.Map:
		m, ok := v.(map[string]any)
		if !ok || dst.Type().Key().Kind() != reflect.String {
			return bindScalar(dst, v, path)
		}
		out := reflect.MakeMapWithSize(dst.Type(), len(m))
		for k, item := range m {
			ev := reflect.New(dst.Type().Elem()).Elem()
			if err := bindValue(ev, item, path+"/"+k); err != nil {
				return err
			}
			out.SetMapIndex(reflect.ValueOf(k).Convert(dst.Type().Key()), ev)
		}
		dst.Set(out)
		return nil
	}
	return bindScalar(dst, v, path)
}

func bindScalar(dst reflect.Value, v any, path string) error {
	vv := reflect.ValueOf(v)
	if vv.Type().AssignableTo(dst.Type()) {
		dst.Set(vv)
		return nil
	}
	// integer -> string conversion would produce a rune, not digits
	if dst.Kind() == reflect.String && vv.Kind() != reflect.String {
		return bindMismatch(path, dst.Type())
	}
	if isNumberKind(dst.Kind()) != isNumberKind(vv.Kind()) {
		return bindMismatch(path, dst.Type())
	}
	if vv.Type().ConvertibleTo(dst.Type()) {
		dst.Set(vv.Convert(dst.Type()))
		return nil
	}
	return bindMismatch(path, dst.Type())
}

func isNumberKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func bindMismatch(path string, t reflect.Type) error {
	if path == "" {
		path = "/"
	}
	return newIssue(CodeBindMismatch, path, t.String(), nil)
}
