package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ValueKind identifies the concrete representation carried by a Value.
type ValueKind uint8

const (
	// InvalidKind is the zero ValueKind; the zero Value carries it.
	InvalidKind ValueKind = iota

	// IntKind values carry a signed integer (sizes, factors, modes, enums of numbers).
	IntKind

	// StringKind values carry a tag such as a datatype name.
	StringKind

	// VectorKind values carry an integer vector (coefficients, lookup tables).
	VectorKind
)

// String returns the declaration name of the kind.
func (k ValueKind) String() string {
	switch k {
	case IntKind:
		return "int"
	case StringKind:
		return "string"
	case VectorKind:
		return "vector"
	default:
		return "invalid"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k ValueKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *ValueKind) UnmarshalText(b []byte) error {
	kind, err := ParseValueKind(string(b))
	if err != nil {
		return err
	}
	*k = kind
	return nil
}

// ParseValueKind maps a declaration type name to a ValueKind.
func ParseValueKind(s string) (ValueKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "int", "uint", "integer", "unsigned int":
		return IntKind, nil
	case "string", "typename", "str":
		return StringKind, nil
	case "vector", "vector<int>", "list":
		return VectorKind, nil
	default:
		return InvalidKind, fmt.Errorf("unknown parameter type %q", s)
	}
}

// Value is a concrete parameter value. Values are immutable once built.
type Value struct {
	kind ValueKind
	i    int64
	s    string
	vec  []int64
}

// Int returns an integer Value.
func Int(i int64) Value {
	return Value{kind: IntKind, i: i}
}

// Str returns a string Value.
func Str(s string) Value {
	return Value{kind: StringKind, s: s}
}

// Vector returns a vector Value holding a copy of elems.
func Vector(elems ...int64) Value {
	cp := make([]int64, len(elems))
	copy(cp, elems)
	return Value{kind: VectorKind, vec: cp}
}

// Ints builds a slice of integer Values.
func Ints(vs ...int64) []Value {
	out := make([]Value, len(vs))
	for i, v := range vs {
		out[i] = Int(v)
	}
	return out
}

// Strs builds a slice of string Values.
func Strs(vs ...string) []Value {
	out := make([]Value, len(vs))
	for i, v := range vs {
		out[i] = Str(v)
	}
	return out
}

// Kind returns the representation of v.
func (v Value) Kind() ValueKind { return v.kind }

// IsZero reports whether v is the zero Value.
func (v Value) IsZero() bool { return v.kind == InvalidKind }

// AsInt returns the integer payload; it is 0 for non-integer values.
func (v Value) AsInt() int64 { return v.i }

// AsString returns the string payload; it is empty for non-string values.
func (v Value) AsString() string { return v.s }

// AsVector returns a copy of the vector payload.
func (v Value) AsVector() []int64 {
	cp := make([]int64, len(v.vec))
	copy(cp, v.vec)
	return cp
}

// VectorLen returns the number of elements of a vector value.
func (v Value) VectorLen() int { return len(v.vec) }

// Equal reports whether v and o have the same kind and payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case IntKind:
		return v.i == o.i
	case StringKind:
		return v.s == o.s
	case VectorKind:
		if len(v.vec) != len(o.vec) {
			return false
		}
		for i := range v.vec {
			if v.vec[i] != o.vec[i] {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// String formats v the way it is written on the command line and in tables.
func (v Value) String() string {
	switch v.kind {
	case IntKind:
		return strconv.FormatInt(v.i, 10)
	case StringKind:
		return v.s
	case VectorKind:
		parts := make([]string, len(v.vec))
		for i, e := range v.vec {
			parts[i] = strconv.FormatInt(e, 10)
		}
		return "{" + strings.Join(parts, ",") + "}"
	default:
		return "<invalid>"
	}
}

// Key returns a string that is equal for equal values and distinct otherwise.
func (v Value) Key() string {
	switch v.kind {
	case IntKind:
		return "i:" + v.String()
	case StringKind:
		return "s:" + strconv.Quote(v.s)
	case VectorKind:
		return "v:" + v.String()
	default:
		return "-"
	}
}

// Interface returns the payload as int64, string or []int64 for encoders.
func (v Value) Interface() any {
	switch v.kind {
	case IntKind:
		return v.i
	case StringKind:
		return v.s
	case VectorKind:
		return v.AsVector()
	default:
		return nil
	}
}

// Parse reads a value of the given kind from its textual form.
// Vectors accept "{1,2,3}", "[1,2,3]" or "1,2,3".
func Parse(kind ValueKind, s string) (Value, error) {
	s = strings.TrimSpace(s)
	switch kind {
	case IntKind:
		i, err := strconv.ParseInt(s, 0, 64)
		if err != nil {
			return Value{}, fmt.Errorf("parse int %q: %w", s, err)
		}
		return Int(i), nil
	case StringKind:
		return Str(s), nil
	case VectorKind:
		s = strings.Trim(s, "{}[] ")
		if s == "" {
			return Vector(), nil
		}
		fields := strings.Split(s, ",")
		elems := make([]int64, 0, len(fields))
		for _, f := range fields {
			e, err := strconv.ParseInt(strings.TrimSpace(f), 0, 64)
			if err != nil {
				return Value{}, fmt.Errorf("parse vector element %q: %w", f, err)
			}
			elems = append(elems, e)
		}
		return Vector(elems...), nil
	default:
		return Value{}, fmt.Errorf("cannot parse value of kind %s", kind)
	}
}

// FromInterface converts decoded YAML/JSON/CUE payloads into a Value.
func FromInterface(x any) (Value, error) {
	switch t := x.(type) {
	case Value:
		return t, nil
	case int:
		return Int(int64(t)), nil
	case int32:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case uint64:
		if t > math.MaxInt64 {
			return Value{}, fmt.Errorf("number %d overflows int64", t)
		}
		return Int(int64(t)), nil
	case float64:
		// 2^63 is exactly representable; every float at or above it overflows
		if t < math.MinInt64 || t >= math.MaxInt64 {
			return Value{}, fmt.Errorf("number %v overflows int64", t)
		}
		if t != float64(int64(t)) {
			return Value{}, fmt.Errorf("non-integral number %v", t)
		}
		return Int(int64(t)), nil
	case string:
		return Str(t), nil
	case []int64:
		return Vector(t...), nil
	case []any:
		elems := make([]int64, 0, len(t))
		for _, e := range t {
			ev, err := FromInterface(e)
			if err != nil {
				return Value{}, err
			}
			if ev.kind != IntKind {
				return Value{}, fmt.Errorf("vector element %v is not an integer", e)
			}
			elems = append(elems, ev.i)
		}
		return Vector(elems...), nil
	default:
		return Value{}, fmt.Errorf("unsupported value type %T", x)
	}
}
