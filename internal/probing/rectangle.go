package probing

import (
	"fmt"
	"math/big"
	"strings"
)

// Rectangle is an axis-aligned N-dimensional box with inclusive integer
// bounds. Rectangles are immutable once constructed. The zero value is
// the empty rectangle.
//
// Volumes are exact: the point count of a wide multi-channel hop region
// overflows int64 (ten-BTC capacities to the power of the channel count),
// so Volume returns a big.Int.
type Rectangle struct {
	lower    []int64
	upper    []int64
	nonEmpty bool
}

// NewRectangle builds a rectangle from two opposing vertices.
// If any coordinate of lower exceeds the corresponding coordinate of
// upper, the result is the empty rectangle. Both vertices must have the
// same dimensionality; mismatched input is a caller bug and panics.
func NewRectangle(lower, upper []int64) Rectangle {
	if lower == nil || upper == nil {
		return Rectangle{}
	}
	if len(lower) != len(upper) {
		panic(fmt.Sprintf("rectangle vertices have mismatched dimensions: %d vs %d", len(lower), len(upper)))
	}
	for i := range lower {
		if lower[i] > upper[i] {
			return Rectangle{}
		}
	}
	l := make([]int64, len(lower))
	u := make([]int64, len(upper))
	copy(l, lower)
	copy(u, upper)
	return Rectangle{lower: l, upper: u, nonEmpty: true}
}

// EmptyRectangle returns a rectangle with no points and volume zero.
func EmptyRectangle() Rectangle {
	return Rectangle{}
}

// IsEmpty reports whether the rectangle contains no points.
func (r Rectangle) IsEmpty() bool {
	return !r.nonEmpty
}

// Dimension returns the number of axes, or 0 for the empty rectangle.
func (r Rectangle) Dimension() int {
	return len(r.lower)
}

// Volume returns the exact number of integer points inside the rectangle.
// All boundaries are inclusive; the empty rectangle has volume 0.
func (r Rectangle) Volume() *big.Int {
	v := big.NewInt(0)
	if !r.nonEmpty {
		return v
	}
	v.SetInt64(1)
	width := new(big.Int)
	for i := range r.lower {
		width.SetInt64(r.upper[i] - r.lower[i] + 1)
		v.Mul(v, width)
	}
	return v
}

// Contains reports whether point lies inside the rectangle.
// The empty rectangle contains nothing; a nil point is in nothing.
func (r Rectangle) Contains(point []int64) bool {
	if !r.nonEmpty || point == nil {
		return false
	}
	if len(point) != len(r.lower) {
		panic(fmt.Sprintf("point dimension %d does not match rectangle dimension %d", len(point), len(r.lower)))
	}
	for i, p := range point {
		if p < r.lower[i] || p > r.upper[i] {
			return false
		}
	}
	return true
}

// Intersect returns the intersection of two rectangles, which is itself
// a rectangle. Anything intersected with the empty rectangle is empty.
func (r Rectangle) Intersect(other Rectangle) Rectangle {
	if !r.nonEmpty || !other.nonEmpty {
		return Rectangle{}
	}
	if len(r.lower) != len(other.lower) {
		panic(fmt.Sprintf("cannot intersect rectangles of dimensions %d and %d", len(r.lower), len(other.lower)))
	}
	lower := make([]int64, len(r.lower))
	upper := make([]int64, len(r.upper))
	for i := range r.lower {
		lower[i] = max64(r.lower[i], other.lower[i])
		upper[i] = min64(r.upper[i], other.upper[i])
		if lower[i] > upper[i] {
			return Rectangle{}
		}
	}
	return Rectangle{lower: lower, upper: upper, nonEmpty: true}
}

// IsInside reports whether every point of r is also a point of other.
// The empty rectangle is inside everything, including another empty
// rectangle; nothing non-empty is inside an empty rectangle.
func (r Rectangle) IsInside(other Rectangle) bool {
	if !r.nonEmpty {
		return true
	}
	if !other.nonEmpty {
		return false
	}
	if len(r.lower) != len(other.lower) {
		panic(fmt.Sprintf("cannot compare rectangles of dimensions %d and %d", len(r.lower), len(other.lower)))
	}
	for i := range r.lower {
		if r.lower[i] < other.lower[i] || r.upper[i] > other.upper[i] {
			return false
		}
	}
	return true
}

// Equal reports whether two rectangles have the same vertices.
// All empty rectangles are equal to each other.
func (r Rectangle) Equal(other Rectangle) bool {
	if !r.nonEmpty || !other.nonEmpty {
		return r.nonEmpty == other.nonEmpty
	}
	if len(r.lower) != len(other.lower) {
		return false
	}
	for i := range r.lower {
		if r.lower[i] != other.lower[i] || r.upper[i] != other.upper[i] {
			return false
		}
	}
	return true
}

func (r Rectangle) String() string {
	if !r.nonEmpty {
		return "empty rectangle"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "rectangle %v .. %v", r.lower, r.upper)
	return b.String()
}

// NewProbingRectangle builds the rectangle corresponding to a directional
// forwarding bound on a hop. For Dir0 the lower vertex is pinned at the
// origin, for Dir1 the upper vertex is pinned at the capacity vector; the
// free vertex is the effective vertex derived from the bound
// (bound = amount - 1, which makes the cut inclusive).
func NewProbingRectangle(hop *Hop, dir Direction, bound int64) Rectangle {
	vertex := hop.effectiveVertex(dir, bound)
	if dir == Dir0 {
		return NewRectangle(make([]int64, hop.n), vertex)
	}
	capacities := make([]int64, hop.n)
	copy(capacities, hop.capacities)
	return NewRectangle(vertex, capacities)
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
