package domain

import (
	"fmt"
	"strings"
)

// Kind tags the variant of a Domain.
type Kind uint8

const (
	// KindRange is an integer interval, optionally restricted to multiples of a step.
	KindRange Kind = iota + 1

	// KindRangePingPong is a range with a narrower double-buffered interval.
	KindRangePingPong

	// KindEnum is an ordered set of literal values.
	KindEnum

	// KindEnumPingPong is an enum with a narrower double-buffered subset.
	KindEnumPingPong

	// KindVectorLength accepts vectors of one exact length.
	KindVectorLength
)

// String returns the name of the domain kind.
func (k Kind) String() string {
	switch k {
	case KindRange:
		return "range"
	case KindRangePingPong:
		return "range+pingpong"
	case KindEnum:
		return "enum"
	case KindEnumPingPong:
		return "enum+pingpong"
	case KindVectorLength:
		return "vector-length"
	default:
		return "unknown"
	}
}

// Domain is the set of values currently legal for a parameter given the
// parameters resolved before it. The concrete variants are Range, Enum and
// VectorLength; the interface is sealed.
type Domain interface {
	// Kind returns the variant tag.
	Kind() Kind

	// Contains reports membership in the general (wider) domain.
	Contains(v Value) bool

	// NearestLegal suggests the legal value closest to v.
	// The second result is false when no suggestion exists.
	NearestLegal(v Value) (Value, bool)

	// Len returns the number of legal values.
	Len() int64

	// At returns the i-th legal value in declared order, 0 <= i < Len().
	At(i int64) Value

	// Values materializes all legal values in declared order.
	Values() []Value

	// Empty reports whether no value is legal.
	Empty() bool

	// PingPong returns the narrower double-buffered domain, or the domain
	// itself when it declares none.
	PingPong() Domain

	// Describe returns a message suitable for showing to an operator.
	Describe() string

	sealed()
}

// Bounds is an inclusive integer interval.
type Bounds struct {
	Min int64 `json:"min" yaml:"min"`
	Max int64 `json:"max" yaml:"max"`
}

// Intersect narrows d to the values of allow that d contains, keeping the
// order of allow and dropping duplicates. A nil allow list returns d unchanged.
func Intersect(d Domain, allow []Value) Domain {
	if allow == nil {
		return d
	}
	seen := make(map[string]struct{}, len(allow))
	kept := make([]Value, 0, len(allow))
	for _, v := range allow {
		if !d.Contains(v) {
			continue
		}
		if _, dup := seen[v.Key()]; dup {
			continue
		}
		seen[v.Key()] = struct{}{}
		kept = append(kept, v)
	}
	return NewEnum(kept...)
}

// Divisors returns the divisors of n that lie in [lo, hi], ascending.
func Divisors(n, lo, hi int64) []Value {
	out := make([]Value, 0)
	if n <= 0 {
		return out
	}
	for d := int64(1); d <= n; d++ {
		if d < lo || d > hi {
			continue
		}
		if n%d == 0 {
			out = append(out, Int(d))
		}
	}
	return out
}

// Restrict returns the members of vals that satisfy keep.
func Restrict(vals []Value, keep func(Value) bool) []Value {
	out := make([]Value, 0, len(vals))
	for _, v := range vals {
		if keep(v) {
			out = append(out, v)
		}
	}
	return out
}

func materialize(d Domain) []Value {
	n := d.Len()
	out := make([]Value, 0, n)
	for i := int64(0); i < n; i++ {
		out = append(out, d.At(i))
	}
	return out
}

func joinValues(vs []Value) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = v.String()
	}
	return strings.Join(parts, ", ")
}

func indexPanic(i, n int64) string {
	return fmt.Sprintf("domain index %d out of range [0,%d)", i, n)
}
