// Package domain defines the value and domain types shared by the resolution
// session and the configuration explorer.
//
// A Domain is the set of values legal for one parameter given everything
// resolved before it. It is a closed sum of three variants:
//
//   - Range: an integer interval, optionally restricted to multiples of a step,
//     optionally carrying a narrower ping-pong interval.
//   - Enum: an ordered literal set, optionally carrying a ping-pong subset.
//   - VectorLength: vectors of one exact length.
//
// Domains are immutable values. They are recomputed by capacity models every
// time a parameter is visited and are never cached across different
// assignments of earlier parameters.
//
// Snapping only applies to ranges:
//
//	r := domain.NewRange(16, 4096).WithStep(16)
//	v, _ := r.NearestLegal(domain.Int(5000)) // 4096
//	v, _ = r.NearestLegal(domain.Int(100))   // 96
//
// An Enum never snaps; NearestLegal on a non-member reports no suggestion.
package domain
