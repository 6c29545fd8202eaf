// Package geom provides the small set of planar primitives shared by the
// layer stack, the spatial index and the annotation objects: points,
// axis-aligned rectangles and 2D affine transforms.
//
// All coordinates are world coordinates in float64. Rectangles are stored as
// min/max corners, like the bounds tracked by a retained scene.
package geom

import (
	"fmt"
	"math"
)

// Point is a location in the plane.
type Point struct {
	X, Y float64
}

// Pt is shorthand for Point{X: x, Y: y}.
func Pt(x, y float64) Point {
	return Point{X: x, Y: y}
}

// Rect represents an axis-aligned bounding rectangle.
type Rect struct {
	MinX, MinY float64
	MaxX, MaxY float64
}

// XYWH builds a rectangle from its top-left corner and size.
func XYWH(x, y, w, h float64) Rect {
	return Rect{MinX: x, MinY: y, MaxX: x + w, MaxY: y + h}
}

// EmptyRect returns an empty rectangle (inverted bounds for union operations).
func EmptyRect() Rect {
	return Rect{
		MinX: math.MaxFloat64,
		MinY: math.MaxFloat64,
		MaxX: -math.MaxFloat64,
		MaxY: -math.MaxFloat64,
	}
}

// IsEmpty returns true if the rectangle has no area.
func (r Rect) IsEmpty() bool {
	return r.MinX >= r.MaxX || r.MinY >= r.MaxY
}

// Width returns the width of the rectangle.
func (r Rect) Width() float64 {
	if r.IsEmpty() {
		return 0
	}
	return r.MaxX - r.MinX
}

// Height returns the height of the rectangle.
func (r Rect) Height() float64 {
	if r.IsEmpty() {
		return 0
	}
	return r.MaxY - r.MinY
}

// Center returns the midpoint of the rectangle.
func (r Rect) Center() Point {
	return Point{X: (r.MinX + r.MaxX) / 2, Y: (r.MinY + r.MaxY) / 2}
}

// Union returns the smallest rectangle containing both r and other.
func (r Rect) Union(other Rect) Rect {
	return Rect{
		MinX: math.Min(r.MinX, other.MinX),
		MinY: math.Min(r.MinY, other.MinY),
		MaxX: math.Max(r.MaxX, other.MaxX),
		MaxY: math.Max(r.MaxY, other.MaxY),
	}
}

// UnionPoint expands the rectangle to include the point.
func (r Rect) UnionPoint(p Point) Rect {
	return Rect{
		MinX: math.Min(r.MinX, p.X),
		MinY: math.Min(r.MinY, p.Y),
		MaxX: math.Max(r.MaxX, p.X),
		MaxY: math.Max(r.MaxY, p.Y),
	}
}

// Intersect returns the overlap of r and other. The result is empty when
// they do not overlap.
func (r Rect) Intersect(other Rect) Rect {
	return Rect{
		MinX: math.Max(r.MinX, other.MinX),
		MinY: math.Max(r.MinY, other.MinY),
		MaxX: math.Min(r.MaxX, other.MaxX),
		MaxY: math.Min(r.MaxY, other.MaxY),
	}
}

// Intersects reports whether r and other share a region of positive area.
// Rectangles that only touch along an edge do not intersect.
func (r Rect) Intersects(other Rect) bool {
	if r.IsEmpty() || other.IsEmpty() {
		return false
	}
	return r.MinX < other.MaxX && other.MinX < r.MaxX &&
		r.MinY < other.MaxY && other.MinY < r.MaxY
}

// Contains reports whether p lies inside r, edges included.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.MinX && p.X <= r.MaxX &&
		p.Y >= r.MinY && p.Y <= r.MaxY
}

// ContainsRect reports whether other lies entirely inside r.
func (r Rect) ContainsRect(other Rect) bool {
	return other.MinX >= r.MinX && other.MaxX <= r.MaxX &&
		other.MinY >= r.MinY && other.MaxY <= r.MaxY
}

// Quadrants splits r into four equal children in row-major order:
// top-left, top-right, bottom-left, bottom-right.
func (r Rect) Quadrants() [4]Rect {
	c := r.Center()
	return [4]Rect{
		{MinX: r.MinX, MinY: r.MinY, MaxX: c.X, MaxY: c.Y},
		{MinX: c.X, MinY: r.MinY, MaxX: r.MaxX, MaxY: c.Y},
		{MinX: r.MinX, MinY: c.Y, MaxX: c.X, MaxY: r.MaxY},
		{MinX: c.X, MinY: c.Y, MaxX: r.MaxX, MaxY: r.MaxY},
	}
}

// Corners returns the four corners of r, clockwise from the top-left.
func (r Rect) Corners() [4]Point {
	return [4]Point{
		{X: r.MinX, Y: r.MinY},
		{X: r.MaxX, Y: r.MinY},
		{X: r.MaxX, Y: r.MaxY},
		{X: r.MinX, Y: r.MaxY},
	}
}

func (r Rect) String() string {
	return fmt.Sprintf("[%g,%g %gx%g]", r.MinX, r.MinY, r.Width(), r.Height())
}
