package geom

import (
	"math"

	"golang.org/x/image/math/f64"
)

// Affine represents a 2D affine transformation matrix.
// The matrix is stored in row-major order as:
//
//	| A  B  C |
//	| D  E  F |
//
// Where a point (x, y) is transformed to:
//
//	x' = A*x + B*y + C
//	y' = D*x + E*y + F
//
// The layout matches f64.Aff3 so transforms can be handed to x/image code
// without conversion.
type Affine f64.Aff3

// Identity returns the identity transformation.
func Identity() Affine {
	return Affine{1, 0, 0, 0, 1, 0}
}

// Translate creates a translation transformation.
func Translate(x, y float64) Affine {
	return Affine{1, 0, x, 0, 1, y}
}

// Scale creates a scaling transformation.
func Scale(x, y float64) Affine {
	return Affine{x, 0, 0, 0, y, 0}
}

// Rotate creates a rotation transformation (angle in radians).
func Rotate(angle float64) Affine {
	sin, cos := math.Sincos(angle)
	return Affine{cos, -sin, 0, sin, cos, 0}
}

// Multiply returns the product a*b: b is applied first, then a.
func (a Affine) Multiply(b Affine) Affine {
	return Affine{
		a[0]*b[0] + a[1]*b[3],
		a[0]*b[1] + a[1]*b[4],
		a[0]*b[2] + a[1]*b[5] + a[2],
		a[3]*b[0] + a[4]*b[3],
		a[3]*b[1] + a[4]*b[4],
		a[3]*b[2] + a[4]*b[5] + a[5],
	}
}

// Apply transforms a point by the affine matrix.
func (a Affine) Apply(p Point) Point {
	return Point{
		X: a[0]*p.X + a[1]*p.Y + a[2],
		Y: a[3]*p.X + a[4]*p.Y + a[5],
	}
}

// Invert returns the inverse transform. ok is false for singular matrices.
func (a Affine) Invert() (inv Affine, ok bool) {
	det := a[0]*a[4] - a[1]*a[3]
	if det == 0 || math.IsNaN(det) {
		return Affine{}, false
	}
	id := 1 / det
	return Affine{
		a[4] * id,
		-a[1] * id,
		(a[1]*a[5] - a[4]*a[2]) * id,
		-a[3] * id,
		a[0] * id,
		(a[3]*a[2] - a[0]*a[5]) * id,
	}, true
}

// IsIdentity returns true if this is the identity transformation.
func (a Affine) IsIdentity() bool {
	return a == Identity()
}

// TransformRect returns the bounding box of r after transformation.
func (a Affine) TransformRect(r Rect) Rect {
	if a.IsIdentity() {
		return r
	}
	out := EmptyRect()
	for _, c := range r.Corners() {
		out = out.UnionPoint(a.Apply(c))
	}
	return out
}
