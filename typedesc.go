package cabinet

import "strings"

const (
	pluralSuffix   = "[]"
	qualifier      = `\`
	unionSeparator = "|"
	nullType       = "null"
)

// Built-in scalar type names understood by Cast.
const (
	TypeString  = "string"
	TypeInt     = "int"
	TypeInteger = "integer"
	TypeFloat   = "float"
	TypeDouble  = "double"
	TypeBool    = "bool"
	TypeBoolean = "boolean"
	TypeArray   = "array"
	TypeObject  = "object"
	TypeMixed   = "mixed"
	TypeNull    = nullType
)

// TypeDescriptor is the parsed form of a type string. It is a pure function of
// Raw and can be re-derived at any time.
type TypeDescriptor struct {
	Raw      string // As declared, e.g. `\App\Flight[]|null`.
	Base     string // Canonical singular type, e.g. `\App\Flight`.
	Plural   bool
	Nullable bool
	Object   bool // Base carries the namespace qualifier.
}

// ParseType derives a TypeDescriptor from a declared type string. Malformed
// input never fails; it degrades to a scalar passthrough descriptor.
func ParseType(t string) TypeDescriptor {
	c := CanonicalizeUnion(t)
	return TypeDescriptor{
		Raw:      t,
		Base:     Singularize(c),
		Plural:   IsPlural(c),
		Nullable: IsNullable(t),
		Object:   IsObjectType(c),
	}
}

// String returns the canonical (union-free) form.
func (d TypeDescriptor) String() string {
	if d.Plural {
		return Pluralize(d.Base)
	}
	return d.Base
}

// IsPlural reports whether t ends with the array marker.
func IsPlural(t string) bool { return strings.HasSuffix(t, pluralSuffix) }

// Singularize strips one array marker; singular types are returned unchanged.
func Singularize(t string) string {
	if !IsPlural(t) {
		return t
	}
	return strings.TrimSuffix(t, pluralSuffix)
}

// Pluralize appends the array marker unless t is already plural.
func Pluralize(t string) string {
	if IsPlural(t) {
		return t
	}
	return t + pluralSuffix
}

// IsNullable reports whether the union contains an explicit null alternative.
func IsNullable(t string) bool {
	for _, alt := range strings.Split(t, unionSeparator) {
		if strings.TrimSpace(alt) == nullType {
			return true
		}
	}
	return false
}

// CanonicalizeUnion picks the first non-null alternative of a union. Multiple
// non-null alternatives are not an error: only the first one is used. A union
// made only of null alternatives canonicalizes to "null".
func CanonicalizeUnion(t string) string {
	for _, alt := range strings.Split(t, unionSeparator) {
		alt = strings.TrimSpace(alt)
		if alt == "" || alt == nullType {
			continue
		}
		return alt
	}
	if IsNullable(t) {
		return nullType
	}
	return strings.TrimSpace(t)
}

// IsObjectType reports whether t references a class-like type (record or
// otherwise) by carrying the leading namespace qualifier.
func IsObjectType(t string) bool {
	return strings.HasPrefix(Singularize(CanonicalizeUnion(t)), qualifier)
}

// IsRecordType reports whether t names a record type of the default registry.
func IsRecordType(t string) bool { return Default.IsRecordType(t) }

// ShortName returns the unqualified name of t, e.g. `\App\Models\Flight[]` -> `Flight`.
func ShortName(t string) string {
	base := Singularize(CanonicalizeUnion(t))
	if i := strings.LastIndex(base, qualifier); i >= 0 {
		return base[i+1:]
	}
	return base
}

// QualifiedName normalizes a record type name to its fully-qualified form with
// a single leading qualifier.
func QualifiedName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	return qualifier + strings.TrimLeft(name, qualifier)
}

// scalarName folds the aliases of the built-in scalars onto one spelling.
func scalarName(t string) string {
	switch strings.ToLower(t) {
	case TypeInt, TypeInteger:
		return TypeInt
	case TypeFloat, TypeDouble:
		return TypeFloat
	case TypeBool, TypeBoolean:
		return TypeBool
	case TypeString:
		return TypeString
	case TypeArray:
		return TypeArray
	case TypeObject:
		return TypeObject
	case TypeMixed:
		return TypeMixed
	case nullType:
		return nullType
	}
	return t
}
