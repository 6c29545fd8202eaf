package annotation

import (
	"maps"
	"slices"
	"sync"

	"github.com/gogpu/strata/geom"
	"github.com/gogpu/strata/layer"
)

// base carries the identity, tags and placement shared by the reference
// kinds. Fields are guarded so queries may read while the owner edits.
type base struct {
	mu        sync.RWMutex
	id        ID
	title     string
	visible   bool
	transform geom.Affine
}

type baseState struct {
	title     string
	visible   bool
	transform geom.Affine
}

func (b *base) init(title string) {
	b.id = NewID()
	b.title = title
	b.visible = true
	b.transform = geom.Identity()
}

// ID returns the object identity.
func (b *base) ID() ID { return b.id }

// Title returns the object title.
func (b *base) Title() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.title
}

// SetTitle changes the object title.
func (b *base) SetTitle(title string) {
	b.mu.Lock()
	b.title = title
	b.mu.Unlock()
}

// Visible reports the visibility flag.
func (b *base) Visible() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.visible
}

// SetVisible changes the visibility flag.
func (b *base) SetVisible(v bool) {
	b.mu.Lock()
	b.visible = v
	b.mu.Unlock()
}

// Transform returns the local-to-world transform.
func (b *base) Transform() geom.Affine {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.transform
}

// SetTransform replaces the local-to-world transform. Route geometry
// changes through the scene so its indexes follow.
func (b *base) SetTransform(a geom.Affine) {
	b.mu.Lock()
	b.transform = a
	b.mu.Unlock()
}

func (b *base) snapshotBase() baseState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return baseState{title: b.title, visible: b.visible, transform: b.transform}
}

func (b *base) restoreBase(s baseState) {
	b.mu.Lock()
	b.title, b.visible, b.transform = s.title, s.visible, s.transform
	b.mu.Unlock()
}

// quadContains tests p against a local rectangle placed by a.
func quadContains(local geom.Rect, a geom.Affine, p geom.Point) bool {
	inv, ok := a.Invert()
	if !ok {
		return false
	}
	return local.Contains(inv.Apply(p))
}

// quadIntersects tests r against a local rectangle placed by a.
func quadIntersects(local geom.Rect, a geom.Affine, r geom.Rect) bool {
	bounds := a.TransformRect(local)
	if !bounds.Intersects(r) {
		return false
	}
	if a[1] == 0 && a[3] == 0 {
		// Axis aligned: the bounding box is the shape.
		return true
	}
	c := local.Corners()
	return polygonIntersectsRect(transformPoints(a, c[:]), r)
}

// Patch is an image tile of a given size placed on one layer.
type Patch struct {
	base
	layer         layer.ID
	width, height float64
}

type patchState struct {
	baseState
	width, height float64
}

// NewPatch creates a visible patch of the given size at the layer origin.
func NewPatch(l layer.ID, width, height float64) *Patch {
	p := &Patch{layer: l, width: width, height: height}
	p.init("")
	return p
}

// Kind returns KindPatch.
func (p *Patch) Kind() Kind { return KindPatch }

// LayerIDs returns the single layer the patch lives in.
func (p *Patch) LayerIDs() []layer.ID { return []layer.ID{p.layer} }

// Size returns the untransformed size.
func (p *Patch) Size() (width, height float64) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.width, p.height
}

// SetSize resizes the patch.
func (p *Patch) SetSize(width, height float64) {
	p.mu.Lock()
	p.width, p.height = width, height
	p.mu.Unlock()
}

func (p *Patch) local() geom.Rect {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return geom.XYWH(0, 0, p.width, p.height)
}

// Bounds returns the transformed tile rectangle on the patch's layer.
func (p *Patch) Bounds(l layer.ID) (geom.Rect, bool) {
	if l != p.layer {
		return geom.Rect{}, false
	}
	return p.Transform().TransformRect(p.local()), true
}

// Contains reports whether pt falls on the tile.
func (p *Patch) Contains(l layer.ID, pt geom.Point) bool {
	return l == p.layer && quadContains(p.local(), p.Transform(), pt)
}

// Intersects reports whether r overlaps the tile.
func (p *Patch) Intersects(l layer.ID, r geom.Rect) bool {
	return l == p.layer && quadIntersects(p.local(), p.Transform(), r)
}

// Snapshot captures tags, placement and size.
func (p *Patch) Snapshot() any {
	w, h := p.Size()
	return patchState{baseState: p.snapshotBase(), width: w, height: h}
}

// Restore applies a state produced by Snapshot.
func (p *Patch) Restore(state any) bool {
	s, ok := state.(patchState)
	if !ok {
		return false
	}
	p.restoreBase(s.baseState)
	p.SetSize(s.width, s.height)
	return true
}

// AreaList is a cross-layer object holding one polygon per layer, all placed
// by a shared transform.
type AreaList struct {
	base
	order []layer.ID
	areas map[layer.ID][]geom.Point
}

type areaListState struct {
	baseState
	order []layer.ID
	areas map[layer.ID][]geom.Point
}

// NewAreaList creates an empty area list.
func NewAreaList(title string) *AreaList {
	a := &AreaList{areas: make(map[layer.ID][]geom.Point)}
	a.init(title)
	return a
}

// Kind returns KindAreaList.
func (a *AreaList) Kind() Kind { return KindAreaList }

// SetArea replaces the polygon on layer l. Polygons with fewer than three
// vertices remove the layer's data.
func (a *AreaList) SetArea(l layer.ID, poly []geom.Point) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(poly) < 3 {
		a.removeLocked(l)
		return
	}
	if _, ok := a.areas[l]; !ok {
		a.order = append(a.order, l)
	}
	a.areas[l] = slices.Clone(poly)
}

// ClearArea removes the polygon on layer l.
func (a *AreaList) ClearArea(l layer.ID) {
	a.mu.Lock()
	a.removeLocked(l)
	a.mu.Unlock()
}

func (a *AreaList) removeLocked(l layer.ID) {
	if _, ok := a.areas[l]; !ok {
		return
	}
	delete(a.areas, l)
	a.order = slices.DeleteFunc(a.order, func(id layer.ID) bool { return id == l })
}

// LayerIDs returns the layers holding a polygon, in the order they were added.
func (a *AreaList) LayerIDs() []layer.ID {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return slices.Clone(a.order)
}

func (a *AreaList) world(l layer.ID) ([]geom.Point, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	poly, ok := a.areas[l]
	if !ok {
		return nil, false
	}
	return transformPoints(a.transform, poly), true
}

// Bounds returns the bounding box of the polygon on layer l.
func (a *AreaList) Bounds(l layer.ID) (geom.Rect, bool) {
	poly, ok := a.world(l)
	if !ok {
		return geom.Rect{}, false
	}
	return boundsOf(poly), true
}

// Contains reports whether p lies inside the polygon on layer l.
func (a *AreaList) Contains(l layer.ID, p geom.Point) bool {
	poly, ok := a.world(l)
	return ok && pointInPolygon(poly, p)
}

// Intersects reports whether r overlaps the polygon on layer l.
func (a *AreaList) Intersects(l layer.ID, r geom.Rect) bool {
	poly, ok := a.world(l)
	return ok && polygonIntersectsRect(poly, r)
}

// Snapshot captures tags, placement and every polygon.
func (a *AreaList) Snapshot() any {
	bs := a.snapshotBase()
	a.mu.RLock()
	defer a.mu.RUnlock()
	areas := make(map[layer.ID][]geom.Point, len(a.areas))
	for l, poly := range a.areas {
		areas[l] = slices.Clone(poly)
	}
	return areaListState{baseState: bs, order: slices.Clone(a.order), areas: areas}
}

// Restore applies a state produced by Snapshot.
func (a *AreaList) Restore(state any) bool {
	s, ok := state.(areaListState)
	if !ok {
		return false
	}
	a.restoreBase(s.baseState)
	a.mu.Lock()
	a.order = slices.Clone(s.order)
	a.areas = maps.Clone(s.areas)
	for l, poly := range a.areas {
		a.areas[l] = slices.Clone(poly)
	}
	a.mu.Unlock()
	return true
}
