package strata

import (
	"context"
	"reflect"
	"slices"

	"github.com/gogpu/strata/annotation"
	"github.com/gogpu/strata/geom"
	"github.com/gogpu/strata/history"
	"github.com/gogpu/strata/layer"
)

// The step kinds below capture state, not deltas: applying one in either
// direction puts the captured state back. Each re-checks that its objects
// are still in the scene and skips the ones that are gone.

// stale logs a step skipping an object that left the scene.
func (s *Scene) stale(step string, o annotation.Object, d history.Direction) {
	Logger().Debug("strata: step skipped object", "step", step, "object", o.ID(), "direction", d, "err", ErrStaleReference)
}

// ===== Transform =====

// TransformStep captures the placement of one object.
type TransformStep struct {
	s   *Scene
	obj annotation.Editable
	a   geom.Affine
}

// TransformEdit captures the placement of o.
func TransformEdit(o annotation.Editable) Capture {
	return func(s *Scene) Step {
		return &TransformStep{s: s, obj: o, a: o.Transform()}
	}
}

// IsIdentical matches another TransformStep or the object itself holding
// the same placement.
func (t *TransformStep) IsIdentical(other any) bool {
	switch v := other.(type) {
	case *TransformStep:
		return v.obj.ID() == t.obj.ID() && v.a == t.a
	case annotation.Editable:
		return v.ID() == t.obj.ID() && v.Transform() == t.a
	}
	return false
}

// Apply restores the captured placement.
func (t *TransformStep) Apply(d history.Direction) bool {
	if !t.s.Has(t.obj) {
		t.s.stale("transform", t.obj, d)
		return true
	}
	return t.s.SetTransform(t.obj, t.a) == nil
}

// Subject returns the object id.
func (t *TransformStep) Subject() (annotation.ID, bool) { return t.obj.ID(), true }

// IsEmpty is always false.
func (t *TransformStep) IsEmpty() bool { return false }

// TransformsStep captures the placement of several objects, as left by a
// group move.
type TransformsStep struct {
	s     *Scene
	objs  []annotation.Editable
	saved []geom.Affine
}

// TransformsEdit captures the placement of every object in objs.
func TransformsEdit(objs ...annotation.Editable) Capture {
	return func(s *Scene) Step {
		t := &TransformsStep{s: s, objs: slices.Clone(objs), saved: make([]geom.Affine, len(objs))}
		for i, o := range objs {
			t.saved[i] = o.Transform()
		}
		return t
	}
}

// IsIdentical matches a TransformsStep over the same objects and placements.
func (t *TransformsStep) IsIdentical(other any) bool {
	v, ok := other.(*TransformsStep)
	if !ok || len(v.objs) != len(t.objs) {
		return false
	}
	for i := range t.objs {
		if v.objs[i].ID() != t.objs[i].ID() || v.saved[i] != t.saved[i] {
			return false
		}
	}
	return true
}

// Apply restores every captured placement of objects still in the scene.
func (t *TransformsStep) Apply(d history.Direction) bool {
	m := make(map[annotation.Object]geom.Affine, len(t.objs))
	for i, o := range t.objs {
		if !t.s.Has(o) {
			t.s.stale("transforms", o, d)
			continue
		}
		m[o] = t.saved[i]
	}
	return t.s.SetTransforms(m) == nil
}

// Subject returns the object id when the step covers a single object.
func (t *TransformsStep) Subject() (annotation.ID, bool) {
	if len(t.objs) == 1 {
		return t.objs[0].ID(), true
	}
	return annotation.ID{}, false
}

// IsEmpty reports whether the step covers no objects.
func (t *TransformsStep) IsEmpty() bool { return len(t.objs) == 0 }

// ===== Properties =====

// PropertyStep captures the title and visibility of one object.
type PropertyStep struct {
	s       *Scene
	obj     annotation.Editable
	title   string
	visible bool
}

// PropertyEdit captures the title and visibility of o.
func PropertyEdit(o annotation.Editable) Capture {
	return func(s *Scene) Step {
		return &PropertyStep{s: s, obj: o, title: o.Title(), visible: o.Visible()}
	}
}

// IsIdentical matches another PropertyStep or the object itself holding the
// same tags.
func (p *PropertyStep) IsIdentical(other any) bool {
	switch v := other.(type) {
	case *PropertyStep:
		return v.obj.ID() == p.obj.ID() && v.title == p.title && v.visible == p.visible
	case annotation.Editable:
		return v.ID() == p.obj.ID() && v.Title() == p.title && v.Visible() == p.visible
	}
	return false
}

// Apply restores the captured tags.
func (p *PropertyStep) Apply(d history.Direction) bool {
	if !p.s.Has(p.obj) {
		p.s.stale("property", p.obj, d)
		return true
	}
	return p.s.SetTitle(p.obj, p.title) == nil && p.s.SetVisible(p.obj, p.visible) == nil
}

// Subject returns the object id.
func (p *PropertyStep) Subject() (annotation.ID, bool) { return p.obj.ID(), true }

// IsEmpty is always false.
func (p *PropertyStep) IsEmpty() bool { return false }

// ===== Data =====

// DataStep captures the complete state of an object, for edits that change
// geometry in ways a transform cannot express.
type DataStep struct {
	s     *Scene
	obj   annotation.Stateful
	state any
}

// DataEdit captures the complete state of o.
func DataEdit(o annotation.Stateful) Capture {
	return func(s *Scene) Step {
		return &DataStep{s: s, obj: o, state: o.Snapshot()}
	}
}

// IsIdentical matches another DataStep or the object itself holding an
// equal state.
func (ds *DataStep) IsIdentical(other any) bool {
	switch v := other.(type) {
	case *DataStep:
		return v.obj.ID() == ds.obj.ID() && reflect.DeepEqual(v.state, ds.state)
	case annotation.Stateful:
		return v.ID() == ds.obj.ID() && reflect.DeepEqual(v.Snapshot(), ds.state)
	}
	return false
}

// Apply restores the captured state and reindexes the object.
func (ds *DataStep) Apply(d history.Direction) bool {
	if !ds.s.Has(ds.obj) {
		ds.s.stale("data", ds.obj, d)
		return true
	}
	ok := true
	err := ds.s.Reshape(ds.obj, func() { ok = ds.obj.Restore(ds.state) })
	return err == nil && ok
}

// Subject returns the object id.
func (ds *DataStep) Subject() (annotation.ID, bool) { return ds.obj.ID(), true }

// IsEmpty reports whether no state was captured.
func (ds *DataStep) IsEmpty() bool { return ds.state == nil }

// ===== Order =====

// OrderStep captures one paint order list: the scene-wide cross-layer list,
// or the list of a single layer.
type OrderStep struct {
	s     *Scene
	scope layer.ID // layer.Nil for the cross-layer list
	items []annotation.Object
}

// OrderEdit captures the order list o belongs to.
func OrderEdit(o annotation.Object) Capture {
	return func(s *Scene) Step {
		scope := layer.Nil
		if !o.Kind().CrossLayer() {
			if ids := o.LayerIDs(); len(ids) == 1 {
				scope = ids[0]
			}
		}
		return s.orderStep(scope)
	}
}

// LayerOrderEdit captures the order of the layer-local objects of layer id.
func LayerOrderEdit(id layer.ID) Capture {
	return func(s *Scene) Step { return s.orderStep(id) }
}

func (s *Scene) orderStep(scope layer.ID) *OrderStep {
	step := &OrderStep{s: s, scope: scope}
	if list, ok := s.orderList(scope); ok {
		step.items = list.Items()
	}
	return step
}

// IsIdentical matches an OrderStep of the same list with the same order.
func (o *OrderStep) IsIdentical(other any) bool {
	v, ok := other.(*OrderStep)
	if !ok || v.scope != o.scope || len(v.items) != len(o.items) {
		return false
	}
	for i := range o.items {
		if v.items[i].ID() != o.items[i].ID() {
			return false
		}
	}
	return true
}

// Apply restores the captured order for the objects still in the list.
func (o *OrderStep) Apply(d history.Direction) bool {
	return o.s.restoreOrder(o.scope, o.items, d)
}

// Subject reports no single subject.
func (o *OrderStep) Subject() (annotation.ID, bool) { return annotation.ID{}, false }

// IsEmpty reports whether the list was empty when captured.
func (o *OrderStep) IsEmpty() bool { return len(o.items) == 0 }

// ===== Content =====

type presence struct {
	obj     annotation.Object
	present bool
	pos     int
}

// ContentStep captures whether each of a set of objects is in the scene,
// and where in its order list. It undoes additions and removals.
type ContentStep struct {
	s     *Scene
	items []presence
}

// ContentEdit captures the presence of every object in objs.
func ContentEdit(objs ...annotation.Object) Capture {
	return func(s *Scene) Step {
		c := &ContentStep{s: s, items: make([]presence, len(objs))}
		for i, o := range objs {
			c.items[i] = presence{obj: o, present: s.Has(o), pos: s.PaintIndex(o)}
		}
		return c
	}
}

// IsIdentical matches a ContentStep over the same objects and presence.
func (c *ContentStep) IsIdentical(other any) bool {
	v, ok := other.(*ContentStep)
	if !ok || len(v.items) != len(c.items) {
		return false
	}
	for i := range c.items {
		a, b := c.items[i], v.items[i]
		if a.obj.ID() != b.obj.ID() || a.present != b.present || a.pos != b.pos {
			return false
		}
	}
	return true
}

// Apply adds the objects that were present and removes the ones that were
// not.
func (c *ContentStep) Apply(history.Direction) bool {
	return c.s.restoreContent(c.items)
}

// Subject returns the object id when the step covers a single object.
func (c *ContentStep) Subject() (annotation.ID, bool) {
	if len(c.items) == 1 {
		return c.items[0].obj.ID(), true
	}
	return annotation.ID{}, false
}

// IsEmpty reports whether the step covers no objects.
func (c *ContentStep) IsEmpty() bool { return len(c.items) == 0 }

// ===== Layers =====

type placement struct {
	id        layer.ID
	z         float64
	thickness float64
}

// LayerStep captures the depth and thickness of a set of layers.
type LayerStep struct {
	s      *Scene
	layers []placement
}

// LayerEdit captures the depth and thickness of layer id.
func LayerEdit(id layer.ID) Capture {
	return LayersEdit(id)
}

// LayersEdit captures the depth and thickness of each layer in ids, or of
// every layer when ids is empty.
func LayersEdit(ids ...layer.ID) Capture {
	return func(s *Scene) Step {
		step := &LayerStep{s: s}
		if len(ids) == 0 {
			for _, l := range s.Layers() {
				step.layers = append(step.layers, placement{l.ID(), l.Z(), l.Thickness()})
			}
			return step
		}
		for _, id := range ids {
			if l, ok := s.Layer(id); ok {
				step.layers = append(step.layers, placement{id, l.Z(), l.Thickness()})
			}
		}
		return step
	}
}

// IsIdentical matches a LayerStep over the same layers and placements.
func (ls *LayerStep) IsIdentical(other any) bool {
	v, ok := other.(*LayerStep)
	return ok && slices.Equal(v.layers, ls.layers)
}

// Apply restores the captured placement of the layers still in the scene.
func (ls *LayerStep) Apply(d history.Direction) bool {
	ok := true
	for _, p := range ls.layers {
		if _, live := ls.s.Layer(p.id); !live {
			Logger().Debug("strata: step skipped layer", "step", "layer", "layer", p.id, "direction", d, "err", ErrStaleReference)
			continue
		}
		if _, err := ls.s.RepositionLayer(p.id, p.z, p.thickness); err != nil {
			ok = false
		}
	}
	return ok
}

// Subject reports no single subject.
func (ls *LayerStep) Subject() (annotation.ID, bool) { return annotation.ID{}, false }

// IsEmpty reports whether the step covers no layers.
func (ls *LayerStep) IsEmpty() bool { return len(ls.layers) == 0 }

// ResizeStep captures the plane size.
type ResizeStep struct {
	s             *Scene
	width, height float64
}

// ResizeEdit captures the plane size.
func ResizeEdit() Capture {
	return func(s *Scene) Step {
		w, h := s.PlaneSize()
		return &ResizeStep{s: s, width: w, height: h}
	}
}

// IsIdentical matches a ResizeStep of the same size.
func (r *ResizeStep) IsIdentical(other any) bool {
	v, ok := other.(*ResizeStep)
	return ok && v.width == r.width && v.height == r.height
}

// Apply restores the captured size, rebuilding every index.
func (r *ResizeStep) Apply(history.Direction) bool {
	if w, h := r.s.PlaneSize(); w == r.width && h == r.height {
		return true
	}
	return r.s.Resize(context.Background(), r.width, r.height) == nil
}

// Subject reports no single subject.
func (r *ResizeStep) Subject() (annotation.ID, bool) { return annotation.ID{}, false }

// IsEmpty is always false.
func (r *ResizeStep) IsEmpty() bool { return false }
