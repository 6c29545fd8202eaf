package strata

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/gogpu/strata/annotation"
	"github.com/gogpu/strata/geom"
	"github.com/gogpu/strata/history"
	"github.com/gogpu/strata/internal/parallel"
	"github.com/gogpu/strata/internal/querycache"
	"github.com/gogpu/strata/layer"
	"github.com/gogpu/strata/spatial"
	"github.com/gogpu/strata/zorder"
)

// DefaultThickness is the thickness given to layers created by LayerAt.
const DefaultThickness = 1

// indexMap is one immutable generation of the layer to index map.
type indexMap map[layer.ID]*spatial.Index

// Scene holds layers, objects, their paint order, one spatial index per
// layer and the edit history.
//
// Mutations are serialized by the scene; queries may run concurrently with
// them and with each other.
type Scene struct {
	cfg    Config
	layers *layer.Stack

	// mu serializes structural mutation.
	mu sync.Mutex

	objMu   sync.RWMutex
	objects map[annotation.ID]annotation.Object

	// cross orders the cross-layer objects scene-wide.
	cross *zorder.List

	localMu sync.RWMutex
	local   map[layer.ID]*zorder.List

	// idxMu serializes writers of indexes; readers load the pointer.
	idxMu   sync.Mutex
	indexes atomic.Pointer[indexMap]

	pool  *parallel.WorkerPool
	rough *querycache.Cache
	epoch atomic.Uint64

	hist *history.History[annotation.ID]
}

// NewScene creates an empty scene whose layers measure width by height.
func NewScene(width, height float64, opts ...SceneOption) *Scene {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	s := &Scene{
		cfg:     o.cfg,
		layers:  layer.NewStack(width, height),
		objects: make(map[annotation.ID]annotation.Object),
		local:   make(map[layer.ID]*zorder.List),
		pool:    parallel.NewWorkerPool(o.cfg.Workers),
		hist:    history.New[annotation.ID](history.WithDepth(o.cfg.HistoryDepth)),
	}
	if o.cfg.RoughCacheSize >= 0 {
		s.rough = querycache.New(o.cfg.RoughCacheSize)
	}
	s.cross = zorder.New(func(obj annotation.Object, from, to int) {
		for _, ix := range s.indexMap() {
			ix.UpdateRange(obj, from, to)
		}
	})
	empty := indexMap{}
	s.indexes.Store(&empty)
	return s
}

// Close stops the rebuild workers.
func (s *Scene) Close() {
	s.pool.Close()
}

// Config returns the thresholds the scene was created with.
func (s *Scene) Config() Config { return s.cfg }

// ===== Layers =====

// Layers returns the layers in depth order.
func (s *Scene) Layers() []*layer.Layer {
	return s.layers.Layers()
}

// Layer returns the layer with the given id.
func (s *Scene) Layer(id layer.ID) (*layer.Layer, bool) {
	return s.layers.Get(id)
}

// LayerStack exposes the layer stack for depth lookups.
func (s *Scene) LayerStack() *layer.Stack {
	return s.layers
}

// AddLayer creates a layer at depth z with an empty index.
func (s *Scene) AddLayer(z, thickness float64) *layer.Layer {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := s.layers.Create(z, thickness)
	s.initLayer(l)
	return l
}

// LayerAt returns the layer at depth z, creating it if needed.
func (s *Scene) LayerAt(z float64) *layer.Layer {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, created := s.layers.GetOrCreate(z, DefaultThickness)
	if created {
		s.initLayer(l)
	}
	return l
}

func (s *Scene) initLayer(l *layer.Layer) {
	id := l.ID()
	s.localMu.Lock()
	s.local[id] = zorder.New(func(obj annotation.Object, from, to int) {
		if ix, ok := s.index(id); ok {
			ix.UpdateRange(obj, from, to)
		}
	})
	s.localMu.Unlock()

	ix := spatial.New(id, l.Bounds(), s.ordering(id), s.cfg.indexConfig())
	s.swapIndexes(func(m indexMap) { m[id] = ix })
	Logger().Debug("strata: layer added", "layer", id, "z", l.Z())
}

// RemoveLayer deletes an empty layer.
func (s *Scene) RemoveLayer(id layer.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.layers.Get(id); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownLayer, id)
	}
	if n := len(s.objectsAt(id)); n > 0 {
		return fmt.Errorf("%w: %s holds %d objects", ErrLayerNotEmpty, id, n)
	}
	if _, err := s.layers.Remove(id); err != nil {
		return err
	}
	s.localMu.Lock()
	delete(s.local, id)
	s.localMu.Unlock()
	s.swapIndexes(func(m indexMap) { delete(m, id) })
	s.invalidate(id)
	return nil
}

// RepositionLayer gives a layer a new depth and thickness. Its objects and
// index stay with it.
func (s *Scene) RepositionLayer(id layer.ID, z, thickness float64) (*layer.Layer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, err := s.layers.Edit(id, z, thickness)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", err, id)
	}
	Logger().Debug("strata: layer repositioned", "layer", id, "z", z, "thickness", thickness)
	return l, nil
}

// PlaneSize returns the width and height shared by every layer.
func (s *Scene) PlaneSize() (width, height float64) {
	return s.layers.PlaneSize()
}

// Resize gives every layer a new plane size and rebuilds every index so its
// root covers the new plane. Objects beyond the old plane that now fall
// inside it leave the spill bucket. If the rebuild fails the old size is
// restored and the indexes are left as they were.
func (s *Scene) Resize(ctx context.Context, width, height float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ow, oh := s.layers.PlaneSize()
	if err := s.layers.Resize(width, height); err != nil {
		return fmt.Errorf("strata: resize %gx%g: %w", width, height, err)
	}
	if err := s.rebuild(ctx, nil); err != nil {
		_ = s.layers.Resize(ow, oh)
		return err
	}
	Logger().Info("strata: plane resized", "width", width, "height", height)
	return nil
}

// ===== Indexes =====

func (s *Scene) indexMap() indexMap {
	return *s.indexes.Load()
}

func (s *Scene) index(id layer.ID) (*spatial.Index, bool) {
	ix, ok := s.indexMap()[id]
	return ix, ok
}

// Index returns the spatial index of a layer, if one is built.
func (s *Scene) Index(id layer.ID) (*spatial.Index, bool) {
	return s.index(id)
}

// swapIndexes publishes a modified copy of the index map.
func (s *Scene) swapIndexes(fn func(m indexMap)) {
	s.idxMu.Lock()
	defer s.idxMu.Unlock()
	next := maps.Clone(s.indexMap())
	fn(next)
	s.indexes.Store(&next)
}

// invalidate bumps the scene epoch so cached rough results are dropped.
func (s *Scene) invalidate(ids ...layer.ID) {
	s.epoch.Add(1)
	if s.rough != nil {
		for _, id := range ids {
			s.rough.Purge(id)
		}
	}
}

// ===== Objects =====

// Len returns the number of objects in the scene.
func (s *Scene) Len() int {
	s.objMu.RLock()
	defer s.objMu.RUnlock()
	return len(s.objects)
}

// Has reports whether o is in the scene.
func (s *Scene) Has(o annotation.Object) bool {
	if o == nil {
		return false
	}
	_, ok := s.Lookup(o.ID())
	return ok
}

// Lookup returns the object with the given id.
func (s *Scene) Lookup(id annotation.ID) (annotation.Object, bool) {
	s.objMu.RLock()
	defer s.objMu.RUnlock()
	o, ok := s.objects[id]
	return o, ok
}

// Objects returns every object: layer-local objects layer by layer in
// depth order, then the cross-layer objects, each group bottom-first.
func (s *Scene) Objects() []annotation.Object {
	var out []annotation.Object
	for _, l := range s.layers.Layers() {
		if list, ok := s.localList(l.ID()); ok {
			out = append(out, list.Items()...)
		}
	}
	return append(out, s.cross.Items()...)
}

// objectsAt returns the objects painting at layer id, bottom-first.
func (s *Scene) objectsAt(id layer.ID) []annotation.Object {
	var out []annotation.Object
	if list, ok := s.localList(id); ok {
		out = list.Items()
	}
	for _, o := range s.cross.Items() {
		if annotation.PaintsAt(o, id) {
			out = append(out, o)
		}
	}
	return out
}

// ObjectsAt returns the objects painting at layer id, bottom-first.
func (s *Scene) ObjectsAt(id layer.ID) []annotation.Object {
	return s.objectsAt(id)
}

func (s *Scene) localList(id layer.ID) (*zorder.List, bool) {
	s.localMu.RLock()
	defer s.localMu.RUnlock()
	l, ok := s.local[id]
	return l, ok
}

// listFor returns the order list o belongs to.
func (s *Scene) listFor(o annotation.Object) (*zorder.List, bool) {
	if o.Kind().CrossLayer() {
		return s.cross, true
	}
	ids := o.LayerIDs()
	if len(ids) != 1 {
		return nil, false
	}
	return s.localList(ids[0])
}

func (s *Scene) checkLayers(o annotation.Object) error {
	ids := o.LayerIDs()
	if !o.Kind().CrossLayer() && len(ids) != 1 {
		return fmt.Errorf("%w: %s object %s has %d layers", ErrBadLayers, o.Kind(), o.ID(), len(ids))
	}
	for _, id := range ids {
		if _, ok := s.layers.Get(id); !ok {
			return fmt.Errorf("%w: %s", ErrUnknownLayer, id)
		}
	}
	return nil
}

// Add puts o on top of its order list and registers it in the index of
// every layer it has data in.
func (s *Scene) Add(o annotation.Object) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertAt(o, -1)
}

// insertAt adds o at position pos of its order list, or on top when pos < 0.
func (s *Scene) insertAt(o annotation.Object, pos int) error {
	if o == nil {
		return ErrNilObject
	}
	if s.Has(o) {
		return fmt.Errorf("%w: %s", ErrDuplicateObject, o.ID())
	}
	if err := s.checkLayers(o); err != nil {
		return err
	}
	list, _ := s.listFor(o)

	s.objMu.Lock()
	s.objects[o.ID()] = o
	s.objMu.Unlock()

	if pos < 0 || pos >= list.Len() {
		list.Append(o)
	} else {
		list.Insert(o, pos)
	}
	layers := o.LayerIDs()
	for _, id := range layers {
		if ix, ok := s.index(id); ok {
			ix.Insert(o, ix.Rank(o))
		}
	}
	s.invalidate(layers...)
	return nil
}

// AddAll bulk-loads objects. The indexes of every touched layer are dropped;
// queries on those layers scan linearly until RebuildIndexes runs.
func (s *Scene) AddAll(objs []annotation.Object) ([]layer.ID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[annotation.ID]bool, len(objs))
	for _, o := range objs {
		if o == nil {
			return nil, ErrNilObject
		}
		if s.Has(o) || seen[o.ID()] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateObject, o.ID())
		}
		if err := s.checkLayers(o); err != nil {
			return nil, err
		}
		seen[o.ID()] = true
	}

	touched := make(map[layer.ID]bool)
	s.objMu.Lock()
	for _, o := range objs {
		s.objects[o.ID()] = o
	}
	s.objMu.Unlock()
	for _, o := range objs {
		list, _ := s.listFor(o)
		list.Append(o)
		for _, id := range o.LayerIDs() {
			touched[id] = true
		}
	}

	ids := slices.Collect(maps.Keys(touched))
	s.swapIndexes(func(m indexMap) {
		for _, id := range ids {
			delete(m, id)
		}
	})
	s.invalidate(ids...)
	Logger().Info("strata: bulk load", "objects", len(objs), "layers", len(ids))
	return ids, nil
}

// Remove deletes o from the scene and from every index.
func (s *Scene) Remove(o annotation.Object) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remove(o)
}

func (s *Scene) remove(o annotation.Object) error {
	if o == nil {
		return ErrNilObject
	}
	if !s.Has(o) {
		return fmt.Errorf("%w: %s", ErrUnknownObject, o.ID())
	}
	layers := s.indexedLayers(o)
	claimed := o.LayerIDs()
	var missed []layer.ID
	for _, id := range layers {
		if ix, ok := s.index(id); ok && !ix.Remove(o) && slices.Contains(claimed, id) {
			missed = append(missed, id)
		}
	}
	if list, ok := s.listFor(o); ok {
		list.Remove(o)
	}
	s.objMu.Lock()
	delete(s.objects, o.ID())
	s.objMu.Unlock()
	s.invalidate(layers...)
	s.heal(o, missed)
	return nil
}

// heal rebuilds the layers whose index did not hold o although o has data
// there. Callers hold s.mu.
func (s *Scene) heal(o annotation.Object, missed []layer.ID) {
	if len(missed) == 0 {
		return
	}
	Logger().Warn("strata: index missed object, rebuilding",
		"object", o.ID(), "layers", missed, "err", ErrInconsistentMembership)
	if err := s.rebuild(context.Background(), missed); err != nil {
		Logger().Warn("strata: index heal failed", "object", o.ID(), "err", err)
	}
}

// indexedLayers returns every layer whose index holds o, which may differ
// from o.LayerIDs() when o changed without going through the scene.
func (s *Scene) indexedLayers(o annotation.Object) []layer.ID {
	var out []layer.ID
	for id, ix := range s.indexMap() {
		if ix.Contains(o) {
			out = append(out, id)
		}
	}
	for _, id := range o.LayerIDs() {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

// ===== Edits =====

func (s *Scene) editable(o annotation.Object) (annotation.Editable, error) {
	if o == nil {
		return nil, ErrNilObject
	}
	if !s.Has(o) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownObject, o.ID())
	}
	e, ok := o.(annotation.Editable)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotEditable, o.ID())
	}
	return e, nil
}

// SetTransform places o with a and moves it in every index.
func (s *Scene) SetTransform(o annotation.Object, a geom.Affine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.editable(o)
	if err != nil {
		return err
	}
	e.SetTransform(a)
	s.reindex(o, o.LayerIDs())
	return nil
}

// SetTransforms places several objects at once.
func (s *Scene) SetTransforms(m map[annotation.Object]geom.Affine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for o := range m {
		if _, err := s.editable(o); err != nil {
			return err
		}
	}
	for o, a := range m {
		o.(annotation.Editable).SetTransform(a)
		s.reindex(o, o.LayerIDs())
	}
	return nil
}

// SetVisible changes the visibility of o.
func (s *Scene) SetVisible(o annotation.Object, v bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.editable(o)
	if err != nil {
		return err
	}
	e.SetVisible(v)
	s.invalidate(o.LayerIDs()...)
	return nil
}

// SetTitle changes the title of o.
func (s *Scene) SetTitle(o annotation.Object, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.editable(o)
	if err != nil {
		return err
	}
	e.SetTitle(title)
	return nil
}

// Reshape runs fn, which changes the geometry or the layers of o, and then
// brings every affected index up to date.
func (s *Scene) Reshape(o annotation.Object, fn func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o == nil {
		return ErrNilObject
	}
	if !s.Has(o) {
		return fmt.Errorf("%w: %s", ErrUnknownObject, o.ID())
	}
	before := s.indexedLayers(o)
	fn()
	s.reindex(o, before)
	return nil
}

// reindex syncs o into the indexes of its current layers and out of the
// layers in before it no longer has data in.
func (s *Scene) reindex(o annotation.Object, before []layer.ID) {
	after := o.LayerIDs()
	var missed []layer.ID
	for _, id := range before {
		if !slices.Contains(after, id) {
			if ix, ok := s.index(id); ok && !ix.Remove(o) {
				missed = append(missed, id)
			}
		}
	}
	for _, id := range after {
		if _, ok := s.layers.Get(id); !ok {
			Logger().Warn("strata: object references unknown layer", "object", o.ID(), "layer", id)
			continue
		}
		if ix, ok := s.index(id); ok {
			ix.UpdatePosition(o)
		}
	}
	s.invalidate(append(before, after...)...)
	s.heal(o, missed)
}

// ===== Paint order =====

// MoveTop puts o on top of its order list.
func (s *Scene) MoveTop(o annotation.Object) (bool, error) {
	return s.move(o, (*zorder.List).MoveTop)
}

// MoveUp swaps o with the object above it.
func (s *Scene) MoveUp(o annotation.Object) (bool, error) {
	return s.move(o, (*zorder.List).MoveUp)
}

// MoveDown swaps o with the object below it.
func (s *Scene) MoveDown(o annotation.Object) (bool, error) {
	return s.move(o, (*zorder.List).MoveDown)
}

// MoveBottom puts o at the bottom of its order list.
func (s *Scene) MoveBottom(o annotation.Object) (bool, error) {
	return s.move(o, (*zorder.List).MoveBottom)
}

func (s *Scene) move(o annotation.Object, op func(*zorder.List, annotation.Object) (int, int, bool)) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o == nil {
		return false, ErrNilObject
	}
	if !s.Has(o) {
		return false, fmt.Errorf("%w: %s", ErrUnknownObject, o.ID())
	}
	list, ok := s.listFor(o)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrBadLayers, o.ID())
	}
	_, _, moved := op(list, o)
	if moved {
		s.invalidate(o.LayerIDs()...)
	}
	return moved, nil
}

// PaintIndex returns the position of o in its order list, bottom = 0.
func (s *Scene) PaintIndex(o annotation.Object) int {
	list, ok := s.listFor(o)
	if !ok {
		return -1
	}
	return list.IndexOf(o.ID())
}

// Order returns the order list o belongs to, bottom-first.
func (s *Scene) Order(o annotation.Object) []annotation.Object {
	list, ok := s.listFor(o)
	if !ok {
		return nil
	}
	return list.Items()
}

// setOrder replaces the contents of list with the live objects of items.
func (s *Scene) setOrder(list *zorder.List, items []annotation.Object) {
	live := make([]annotation.Object, 0, len(items))
	present := make(map[annotation.ID]bool, len(items))
	for _, o := range items {
		if s.Has(o) && list.Contains(o.ID()) {
			live = append(live, o)
			present[o.ID()] = true
		}
	}
	// Objects added after the captured order keep their place on top.
	for _, o := range list.Items() {
		if !present[o.ID()] {
			live = append(live, o)
		}
	}
	if _, _, changed := list.SetOrder(live); changed {
		s.invalidate()
	}
}

// orderList returns the cross-layer list for layer.Nil, else the list of
// layer id.
func (s *Scene) orderList(id layer.ID) (*zorder.List, bool) {
	if id == layer.Nil {
		return s.cross, true
	}
	return s.localList(id)
}

func (s *Scene) restoreOrder(id layer.ID, items []annotation.Object, d history.Direction) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	list, ok := s.orderList(id)
	if !ok {
		Logger().Debug("strata: step skipped layer", "step", "order", "layer", id, "direction", d, "err", ErrStaleReference)
		return true
	}
	s.setOrder(list, items)
	return true
}

// restoreContent adds back the objects marked present, lowest position
// first so each lands where it was, and removes the others.
func (s *Scene) restoreContent(items []presence) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	ok := true
	for _, it := range items {
		if !it.present && s.Has(it.obj) {
			if err := s.remove(it.obj); err != nil {
				ok = false
			}
		}
	}
	adds := slices.SortedStableFunc(slices.Values(items), func(a, b presence) int { return a.pos - b.pos })
	for _, it := range adds {
		if !it.present || s.Has(it.obj) {
			continue
		}
		if err := s.insertAt(it.obj, it.pos); err != nil {
			Logger().Warn("strata: cannot restore object", "object", it.obj.ID(), "err", err)
			ok = false
		}
	}
	return ok
}
