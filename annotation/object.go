// Package annotation defines the contract between scene objects and the
// indexing core, together with a few reference object kinds.
//
// The core never owns or copies object geometry. It asks objects for their
// bounding box on a layer, the layers they have data in, their visibility
// and exact hit tests, and keeps references keyed by ID.
package annotation

import (
	"github.com/google/uuid"

	"github.com/gogpu/strata/geom"
	"github.com/gogpu/strata/layer"
)

// ID is the stable identity of an object.
type ID = uuid.UUID

// NewID returns a fresh random object identity.
func NewID() ID {
	return uuid.New()
}

// Kind is the type tag used for filtered queries.
type Kind uint8

// Kind constants.
const (
	// KindUnknown is the zero Kind.
	KindUnknown Kind = iota

	// KindPatch is an image tile placed on a single layer.
	KindPatch

	// KindLabel is a text annotation on a single layer.
	KindLabel

	// KindAreaList is a set of per-layer regions spanning several layers.
	KindAreaList

	// KindCustom is available to objects defined outside this package.
	KindCustom
)

// String returns a human-readable name for the kind.
func (k Kind) String() string {
	switch k {
	case KindPatch:
		return "Patch"
	case KindLabel:
		return "Label"
	case KindAreaList:
		return "AreaList"
	case KindCustom:
		return "Custom"
	default:
		return "Unknown"
	}
}

// CrossLayer reports whether objects of this kind live in the scene-wide
// z-order rather than in the z-order of a single layer.
func (k Kind) CrossLayer() bool {
	return k == KindAreaList || k == KindCustom
}

// Object is what the spatial index and the scene need from an annotation.
//
// Bounds, Contains and Intersects take the layer being queried because
// objects spanning several layers have different geometry on each.
type Object interface {
	ID() ID
	Kind() Kind
	Title() string
	Visible() bool

	// LayerIDs returns the layers the object has data in.
	LayerIDs() []layer.ID

	// Bounds returns the world bounding box on the given layer.
	// ok is false when the object has no data there.
	Bounds(l layer.ID) (r geom.Rect, ok bool)

	// Contains is the exact point hit test on the given layer.
	Contains(l layer.ID, p geom.Point) bool

	// Intersects is the exact area test on the given layer.
	Intersects(l layer.ID, r geom.Rect) bool
}

// Editable is implemented by objects whose placement and tags the scene
// can change through its mutation entry points.
type Editable interface {
	Object
	Transform() geom.Affine
	SetTransform(a geom.Affine)
	SetVisible(v bool)
	SetTitle(title string)
}

// Stateful objects can capture and restore their complete state, which lets
// data edit steps undo arbitrary geometry changes.
type Stateful interface {
	Object
	Snapshot() any
	Restore(state any) bool
}

// PaintsAt reports whether o has data in layer l.
func PaintsAt(o Object, l layer.ID) bool {
	for _, id := range o.LayerIDs() {
		if id == l {
			return true
		}
	}
	return false
}
