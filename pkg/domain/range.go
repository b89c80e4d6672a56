package domain

import (
	"fmt"
	"math"
)

// Range is an inclusive integer interval. When a step (granularity) is set,
// only multiples of the step inside the interval are legal. A Range may carry
// a narrower ping-pong interval for double-buffered memories.
type Range struct {
	min, max int64
	step     int64
	pp       *Bounds
}

// NewRange returns the interval [min, max].
func NewRange(min, max int64) Range {
	return Range{min: min, max: max, step: 1}
}

// NewRangeWithPingPong returns [min, max] with a double-buffered upper bound.
// The ping-pong interval is [min, ppMax].
func NewRangeWithPingPong(min, max, ppMax int64) Range {
	return Range{min: min, max: max, step: 1, pp: &Bounds{Min: min, Max: ppMax}}
}

// WithStep returns a copy of r restricted to multiples of step.
// Steps below 2 mean every integer is legal.
func (r Range) WithStep(step int64) Range {
	if step < 1 {
		step = 1
	}
	r.step = step
	return r
}

// Min returns the declared lower bound.
func (r Range) Min() int64 { return r.min }

// Max returns the declared upper bound.
func (r Range) Max() int64 { return r.max }

// Step returns the granularity, 1 when none was declared.
func (r Range) Step() int64 { return r.step }

// PingPongBounds returns the double-buffered interval, if any.
func (r Range) PingPongBounds() (Bounds, bool) {
	if r.pp == nil {
		return Bounds{}, false
	}
	return *r.pp, true
}

func (Range) sealed() {}

// Kind implements Domain.
func (r Range) Kind() Kind {
	if r.pp != nil {
		return KindRangePingPong
	}
	return KindRange
}

// span returns the first and last legal multiples of the step. ok is false
// when no multiple lies in [min, max], including when one would not fit in
// an int64.
func (r Range) span() (first, last int64, ok bool) {
	if r.max < r.min {
		return 0, 0, false
	}
	first = r.min
	if m := mod(r.min, r.step); m != 0 {
		up := r.step - m
		if r.min > math.MaxInt64-up {
			return 0, 0, false
		}
		first = r.min + up
	}
	m := mod(r.max, r.step)
	if r.max < math.MinInt64+m {
		return 0, 0, false
	}
	last = r.max - m
	if last < first {
		return 0, 0, false
	}
	return first, last, true
}

// Contains implements Domain.
func (r Range) Contains(v Value) bool {
	if v.kind != IntKind {
		return false
	}
	if v.i < r.min || v.i > r.max {
		return false
	}
	return mod(v.i, r.step) == 0
}

// NearestLegal clamps v into [min, max] and rounds it to the nearest multiple
// of the step. A rounded value below the first legal multiple moves up to it,
// one above the last legal multiple moves down to it.
func (r Range) NearestLegal(v Value) (Value, bool) {
	if v.kind != IntKind {
		return Value{}, false
	}
	first, last, ok := r.span()
	if !ok {
		return Value{}, false
	}
	c := v.i
	if c < r.min {
		c = r.min
	}
	if c > r.max {
		c = r.max
	}
	if r.step > 1 {
		rem := mod(c, r.step)
		up := r.step - rem
		switch {
		case rem == 0:
		case (rem >= up || c < math.MinInt64+rem) && c <= math.MaxInt64-up:
			c += up
		default:
			c -= rem
		}
	}
	if c < first {
		c = first
	}
	if c > last {
		c = last
	}
	return Int(c), true
}

// Len implements Domain.
func (r Range) Len() int64 {
	first, last, ok := r.span()
	if !ok {
		return 0
	}
	// the difference is computed unsigned; a full int64 range saturates
	q := (uint64(last) - uint64(first)) / uint64(r.step)
	if q >= math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(q) + 1
}

// At implements Domain.
func (r Range) At(i int64) Value {
	if n := r.Len(); i < 0 || i >= n {
		panic(indexPanic(i, n))
	}
	first, _, _ := r.span()
	return Int(int64(uint64(first) + uint64(i)*uint64(r.step)))
}

// Values implements Domain.
func (r Range) Values() []Value { return materialize(r) }

// Empty implements Domain.
func (r Range) Empty() bool { return r.Len() == 0 }

// PingPong implements Domain.
func (r Range) PingPong() Domain {
	if r.pp == nil {
		return r
	}
	lo, hi := r.min, r.max
	if r.pp.Min > lo {
		lo = r.pp.Min
	}
	if r.pp.Max < hi {
		hi = r.pp.Max
	}
	return Range{min: lo, max: hi, step: r.step}
}

// Describe implements Domain.
func (r Range) Describe() string {
	s := fmt.Sprintf("range [%d, %d]", r.min, r.max)
	if r.step > 1 {
		s += fmt.Sprintf(" in multiples of %d", r.step)
	}
	if r.pp != nil {
		s += fmt.Sprintf(", ping-pong max %d", r.pp.Max)
	}
	return s
}

func mod(a, b int64) int64 {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}
