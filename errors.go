package strata

import (
	"errors"

	"github.com/gogpu/strata/history"
	"github.com/gogpu/strata/layer"
	"github.com/gogpu/strata/spatial"
)

// Index errors.
var (
	// ErrIndexMissing reports a query against a layer without a built index.
	// Queries recover with a linear scan and log it; it is never returned.
	ErrIndexMissing = errors.New("strata: layer has no index")

	// ErrInconsistentMembership reports an index whose bucket membership
	// disagrees with object geometry. Verify rebuilds the layer.
	ErrInconsistentMembership = spatial.ErrInconsistentMembership
)

// History errors. Undo and Redo return these as status values.
var (
	ErrEmptyHistory = history.ErrEmptyHistory
	ErrEmptyRedo    = history.ErrEmptyRedo
	ErrStepFailed   = history.ErrStepFailed

	// ErrStaleReference reports an edit step targeting an object that is no
	// longer in the scene. Steps skip such objects.
	ErrStaleReference = errors.New("strata: object no longer in scene")
)

// Scene errors.
var (
	ErrUnknownLayer    = layer.ErrUnknownLayer
	ErrBadPlane        = layer.ErrBadPlane
	ErrLayerNotEmpty   = errors.New("strata: layer still has objects")
	ErrDuplicateObject = errors.New("strata: object already in scene")
	ErrUnknownObject   = errors.New("strata: object not in scene")
	ErrNilObject       = errors.New("strata: nil object")
	ErrBadLayers       = errors.New("strata: layer-local object must have exactly one layer")
	ErrNotEditable     = errors.New("strata: object does not support this edit")
)
