// Package layer models the ordered stack of depth slices that annotation
// objects paint into.
//
// A Layer is an immutable value: its identity, depth (Z), thickness and
// plane size never change after creation. Repositioning or resizing a layer
// replaces it in the Stack with a copy carrying the new values.
package layer

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/gogpu/strata/geom"
)

// ID is the stable identity of a layer.
type ID = uuid.UUID

// Nil is the zero ID; no layer carries it.
var Nil = uuid.Nil

// Layer is one depth slice of the stack.
type Layer struct {
	id        ID
	z         float64
	thickness float64
	width     float64
	height    float64
}

// New creates a layer with a fresh identity.
func New(z, thickness, width, height float64) *Layer {
	return &Layer{
		id:        uuid.New(),
		z:         z,
		thickness: thickness,
		width:     width,
		height:    height,
	}
}

// ID returns the layer's identity.
func (l *Layer) ID() ID { return l.id }

// Z returns the depth coordinate.
func (l *Layer) Z() float64 { return l.z }

// Thickness returns the depth extent of the slice.
func (l *Layer) Thickness() float64 { return l.thickness }

// Width returns the plane width used to size spatial index roots.
func (l *Layer) Width() float64 { return l.width }

// Height returns the plane height used to size spatial index roots.
func (l *Layer) Height() float64 { return l.height }

// Bounds returns the layer plane as a rectangle anchored at the origin.
func (l *Layer) Bounds() geom.Rect {
	return geom.XYWH(0, 0, l.width, l.height)
}

// placed returns a copy of l at a new depth and thickness, keeping its
// identity.
func (l *Layer) placed(z, thickness float64) *Layer {
	c := *l
	c.z = z
	c.thickness = thickness
	return &c
}

// resized returns a copy of l with a new plane size.
func (l *Layer) resized(width, height float64) *Layer {
	c := *l
	c.width = width
	c.height = height
	return &c
}

func (l *Layer) String() string {
	return fmt.Sprintf("Layer(z=%g, t=%g, %s)", l.z, l.thickness, l.id)
}
