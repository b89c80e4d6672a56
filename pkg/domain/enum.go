package domain

import "fmt"

// Enum is an ordered set of literal values. Membership is exact: a candidate
// outside the set is never snapped onto a member.
type Enum struct {
	values []Value
	pp     []Value
	hasPP  bool
}

// NewEnum returns the ordered set vals. Duplicates keep their first position.
func NewEnum(vals ...Value) Enum {
	return Enum{values: dedupe(vals)}
}

// NewEnumWithPingPong returns vals with a narrower double-buffered subset.
// Members of pp that are not in vals are ignored.
func NewEnumWithPingPong(vals, pp []Value) Enum {
	e := Enum{values: dedupe(vals), hasPP: true}
	for _, v := range dedupe(pp) {
		if e.Contains(v) {
			e.pp = append(e.pp, v)
		}
	}
	return e
}

func (Enum) sealed() {}

// Kind implements Domain.
func (e Enum) Kind() Kind {
	if e.hasPP {
		return KindEnumPingPong
	}
	return KindEnum
}

// Contains implements Domain.
func (e Enum) Contains(v Value) bool {
	for _, m := range e.values {
		if m.Equal(v) {
			return true
		}
	}
	return false
}

// NearestLegal returns v when it is a member and nothing otherwise.
func (e Enum) NearestLegal(v Value) (Value, bool) {
	if e.Contains(v) {
		return v, true
	}
	return Value{}, false
}

// Len implements Domain.
func (e Enum) Len() int64 { return int64(len(e.values)) }

// At implements Domain.
func (e Enum) At(i int64) Value {
	if i < 0 || i >= e.Len() {
		panic(indexPanic(i, e.Len()))
	}
	return e.values[i]
}

// Values implements Domain.
func (e Enum) Values() []Value {
	out := make([]Value, len(e.values))
	copy(out, e.values)
	return out
}

// Empty implements Domain.
func (e Enum) Empty() bool { return len(e.values) == 0 }

// PingPong implements Domain.
func (e Enum) PingPong() Domain {
	if !e.hasPP {
		return e
	}
	return Enum{values: e.pp}
}

// Describe implements Domain.
func (e Enum) Describe() string {
	s := fmt.Sprintf("one of {%s}", joinValues(e.values))
	if e.hasPP {
		s += fmt.Sprintf(", ping-pong {%s}", joinValues(e.pp))
	}
	return s
}

func dedupe(vals []Value) []Value {
	seen := make(map[string]struct{}, len(vals))
	out := make([]Value, 0, len(vals))
	for _, v := range vals {
		if _, ok := seen[v.Key()]; ok {
			continue
		}
		seen[v.Key()] = struct{}{}
		out = append(out, v)
	}
	return out
}

// VectorLength accepts any integer vector with exactly Length elements.
// Its single enumerable value is a vector of ones, used when a traversal
// needs a representative assignment for a bulk parameter.
type VectorLength struct {
	length   int64
	elemType string
}

// NewVectorLength returns the domain of vectors of n elements of elemType.
func NewVectorLength(n int64, elemType string) VectorLength {
	return VectorLength{length: n, elemType: elemType}
}

// Length returns the required number of elements.
func (d VectorLength) Length() int64 { return d.length }

// ElementType returns the element datatype tag.
func (d VectorLength) ElementType() string { return d.elemType }

func (VectorLength) sealed() {}

// Kind implements Domain.
func (VectorLength) Kind() Kind { return KindVectorLength }

// Contains implements Domain.
func (d VectorLength) Contains(v Value) bool {
	return v.kind == VectorKind && int64(len(v.vec)) == d.length
}

// NearestLegal returns v when it already has the required length.
func (d VectorLength) NearestLegal(v Value) (Value, bool) {
	if d.Contains(v) {
		return v, true
	}
	return Value{}, false
}

// Len implements Domain.
func (d VectorLength) Len() int64 {
	if d.length < 0 {
		return 0
	}
	return 1
}

// At implements Domain.
func (d VectorLength) At(i int64) Value {
	if i != 0 || d.length < 0 {
		panic(indexPanic(i, d.Len()))
	}
	elems := make([]int64, d.length)
	for k := range elems {
		elems[k] = 1
	}
	return Value{kind: VectorKind, vec: elems}
}

// Values implements Domain.
func (d VectorLength) Values() []Value { return materialize(d) }

// Empty implements Domain.
func (d VectorLength) Empty() bool { return d.length < 0 }

// PingPong implements Domain.
func (d VectorLength) PingPong() Domain { return d }

// Describe implements Domain.
func (d VectorLength) Describe() string {
	if d.elemType != "" {
		return fmt.Sprintf("vector of %d %s elements", d.length, d.elemType)
	}
	return fmt.Sprintf("vector of %d elements", d.length)
}
