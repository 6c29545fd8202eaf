// Package spatial implements the per-layer bucket index.
//
// An Index partitions one layer plane into a quad-tree of rectangular
// buckets. Every registered object is stored in each leaf its bounding box
// overlaps, and a reverse map records which leaves those are, so an object
// can be moved or removed without scanning the tree. Each entry caches the
// object's paint-order rank so that query results come back bottom-first
// without consulting the z-order lists.
//
// Mutations take a write lock for the in-place bucket edits. Rebuild builds a
// fresh tree off to the side and swaps it in atomically, so readers always
// see either the old tree or the new one.
package spatial

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gogpu/strata/annotation"
	"github.com/gogpu/strata/geom"
	"github.com/gogpu/strata/layer"
)

// ErrInconsistentMembership reports that an object's recorded buckets differ
// from the buckets its bounding box overlaps.
var ErrInconsistentMembership = errors.New("spatial: inconsistent bucket membership")

// Rank is an object's position in paint order. Tier 0 holds objects that
// belong to a single layer, tier 1 the scene-wide cross-layer objects, which
// paint above them. Lower ranks paint first.
type Rank struct {
	Tier uint8
	Pos  int
}

// Less reports whether r paints before o.
func (r Rank) Less(o Rank) bool {
	if r.Tier != o.Tier {
		return r.Tier < o.Tier
	}
	return r.Pos < o.Pos
}

// Ordering supplies ranks for the objects of one layer.
type Ordering interface {
	// Rank returns the current rank of o.
	Rank(o annotation.Object) Rank

	// Range returns the objects at positions from..to inclusive of the
	// order list o belongs to.
	Range(o annotation.Object, from, to int) []annotation.Object
}

// Config holds bucket sizing thresholds.
type Config struct {
	// MaxPerCell is the leaf occupancy above which a leaf splits.
	MaxPerCell int

	// MinSide is the smallest allowed bucket side. Zero derives it from the
	// objects present at build time.
	MinSide float64
}

// DefaultConfig returns the default thresholds.
func DefaultConfig() Config {
	return Config{MaxPerCell: 16}
}

// member is the reverse-map record for one object.
type member struct {
	e      *entry
	leaves []*Bucket
}

// tree is one generation of the index.
type tree struct {
	root *Bucket

	// spill holds objects whose box reaches outside the layer plane. It is
	// checked by every query.
	spill *Bucket

	members map[annotation.ID]*member
	minSide float64
	maxCell int
}

func newTree(bounds geom.Rect, cfg Config) *tree {
	return &tree{
		root:    newLeaf(bounds),
		spill:   newLeaf(geom.EmptyRect()),
		members: make(map[annotation.ID]*member),
		minSide: cfg.MinSide,
		maxCell: cfg.MaxPerCell,
	}
}

// Index is the bucket index of a single layer.
type Index struct {
	layer  layer.ID
	bounds geom.Rect
	cfg    Config
	order  Ordering

	// mu guards in-place edits of the current tree's buckets and entries.
	mu sync.RWMutex
	// memMu guards the reverse map of the current tree. Always taken after mu.
	memMu sync.Mutex

	cur atomic.Pointer[tree]
	gen atomic.Uint64
}

// New creates an empty index covering bounds for layer l.
func New(l layer.ID, bounds geom.Rect, order Ordering, cfg Config) *Index {
	if cfg.MaxPerCell <= 0 {
		cfg.MaxPerCell = DefaultConfig().MaxPerCell
	}
	ix := &Index{layer: l, bounds: bounds, cfg: cfg, order: order}
	ix.cur.Store(newTree(bounds, ix.resolve(nil)))
	return ix
}

// Build creates an index for layer l populated with objs.
func Build(ctx context.Context, l layer.ID, bounds geom.Rect, order Ordering, cfg Config, objs []annotation.Object) (*Index, error) {
	ix := New(l, bounds, order, cfg)
	if err := ix.Rebuild(ctx, objs); err != nil {
		return nil, err
	}
	return ix, nil
}

// resolve fills in MinSide from the heuristic when it is unset.
func (ix *Index) resolve(objs []annotation.Object) Config {
	cfg := ix.cfg
	if cfg.MinSide > 0 {
		return cfg
	}
	sizes := make([]float64, 0, len(objs))
	for _, o := range objs {
		if b, ok := o.Bounds(ix.layer); ok && !b.IsEmpty() {
			sizes = append(sizes, max(b.Width(), b.Height()))
		}
	}
	cfg.MinSide = EstimateMinSide(sizes)
	return cfg
}

// Layer returns the layer this index covers.
func (ix *Index) Layer() layer.ID { return ix.layer }

// Bounds returns the plane rectangle of the root bucket.
func (ix *Index) Bounds() geom.Rect { return ix.bounds }

// Generation increases on every mutation and rebuild.
func (ix *Index) Generation() uint64 { return ix.gen.Load() }

// MinSide returns the smallest bucket side of the current tree.
func (ix *Index) MinSide() float64 { return ix.cur.Load().minSide }

// Len returns the number of registered objects.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	ix.memMu.Lock()
	defer ix.memMu.Unlock()
	return len(ix.cur.Load().members)
}

// Contains reports whether o is registered.
func (ix *Index) Contains(o annotation.Object) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	ix.memMu.Lock()
	defer ix.memMu.Unlock()
	_, ok := ix.cur.Load().members[o.ID()]
	return ok
}

// Insert registers o with the given rank in every leaf its bounding box on
// this layer overlaps. Inserting an object that is already registered moves
// it and updates its rank.
func (ix *Index) Insert(o annotation.Object, rank Rank) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	t := ix.cur.Load()

	ix.memMu.Lock()
	m, ok := t.members[o.ID()]
	ix.memMu.Unlock()
	if ok {
		m.e.rank = rank
		ix.move(t, m, o)
	} else {
		ix.insertLocked(t, o, rank)
	}
	ix.gen.Add(1)
}

func (ix *Index) insertLocked(t *tree, o annotation.Object, rank Rank) {
	e := &entry{obj: o, rank: rank}
	if b, ok := o.Bounds(ix.layer); ok {
		e.box = b
	}
	m := &member{e: e}
	ix.memMu.Lock()
	t.members[o.ID()] = m
	ix.memMu.Unlock()
	for _, leaf := range t.targets(e.box) {
		ix.link(t, leaf, e)
	}
}

// targets returns the leaves box should be registered in.
func (t *tree) targets(box geom.Rect) []*Bucket {
	if box.IsEmpty() {
		return nil
	}
	out := t.root.leavesIn(box, nil)
	if !t.root.bounds.ContainsRect(box) {
		out = append(out, t.spill)
	}
	return out
}

// link adds e to leaf and splits the leaf when it overflows.
func (ix *Index) link(t *tree, leaf *Bucket, e *entry) {
	id := e.obj.ID()
	leaf.entries[id] = e
	ix.memMu.Lock()
	m := t.members[id]
	m.leaves = append(m.leaves, leaf)
	ix.memMu.Unlock()

	if leaf != t.spill && len(leaf.entries) > t.maxCell && leaf.canSplit(t.minSide) {
		ix.split(t, leaf)
	}
}

// unlink removes e from leaf and the leaf from e's reverse-map record.
func (ix *Index) unlink(t *tree, leaf *Bucket, id annotation.ID) {
	delete(leaf.entries, id)
	ix.memMu.Lock()
	if m, ok := t.members[id]; ok {
		for i, l := range m.leaves {
			if l == leaf {
				m.leaves[i] = m.leaves[len(m.leaves)-1]
				m.leaves = m.leaves[:len(m.leaves)-1]
				break
			}
		}
	}
	ix.memMu.Unlock()
}

func (ix *Index) split(t *tree, leaf *Bucket) {
	q := leaf.bounds.Quadrants()
	old := leaf.entries
	leaf.entries = nil
	leaf.children = []*Bucket{newLeaf(q[0]), newLeaf(q[1]), newLeaf(q[2]), newLeaf(q[3])}
	for id, e := range old {
		ix.unlink(t, leaf, id)
		for _, c := range leaf.children {
			if c.bounds.Intersects(e.box) {
				ix.link(t, c, e)
			}
		}
	}
}

// Remove unregisters o from every bucket it was in. Removing an object that
// is not registered is a no-op; the result reports whether it was.
func (ix *Index) Remove(o annotation.Object) bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	t := ix.cur.Load()

	ix.memMu.Lock()
	m, ok := t.members[o.ID()]
	if ok {
		delete(t.members, o.ID())
	}
	ix.memMu.Unlock()
	if !ok {
		return false
	}
	for _, leaf := range m.leaves {
		delete(leaf.entries, o.ID())
	}
	ix.gen.Add(1)
	return true
}

// UpdatePosition re-registers o after its geometry changed. Only buckets it
// left or entered are touched. Unregistered objects are inserted with the
// rank the ordering reports.
func (ix *Index) UpdatePosition(o annotation.Object) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	t := ix.cur.Load()

	ix.memMu.Lock()
	m, ok := t.members[o.ID()]
	ix.memMu.Unlock()
	if !ok {
		ix.insertLocked(t, o, ix.rankOf(o))
	} else {
		ix.move(t, m, o)
	}
	ix.gen.Add(1)
}

func (ix *Index) move(t *tree, m *member, o annotation.Object) {
	box := geom.Rect{}
	if b, ok := o.Bounds(ix.layer); ok {
		box = b
	}
	m.e.box = box
	want := t.targets(box)

	ix.memMu.Lock()
	have := make([]*Bucket, len(m.leaves))
	copy(have, m.leaves)
	ix.memMu.Unlock()

	keep := make(map[*Bucket]bool, len(want))
	for _, leaf := range want {
		keep[leaf] = true
	}
	for _, leaf := range have {
		if !keep[leaf] {
			ix.unlink(t, leaf, o.ID())
		}
		delete(keep, leaf)
	}
	for _, leaf := range want {
		if keep[leaf] && leaf.children == nil {
			ix.link(t, leaf, m.e)
		}
	}
}

// UpdateRange refreshes the cached rank of every object at positions
// from..to of o's order list. Call it after a z-order move reports that
// range as changed.
func (ix *Index) UpdateRange(o annotation.Object, from, to int) {
	if ix.order == nil {
		return
	}
	objs := ix.order.Range(o, from, to)

	ix.mu.Lock()
	defer ix.mu.Unlock()
	t := ix.cur.Load()
	ix.memMu.Lock()
	defer ix.memMu.Unlock()
	for _, obj := range objs {
		if m, ok := t.members[obj.ID()]; ok {
			m.e.rank = ix.order.Rank(obj)
		}
	}
	ix.gen.Add(1)
}

// Rank returns the rank the ordering currently assigns to o.
func (ix *Index) Rank(o annotation.Object) Rank {
	return ix.rankOf(o)
}

func (ix *Index) rankOf(o annotation.Object) Rank {
	if ix.order == nil {
		return Rank{}
	}
	return ix.order.Rank(o)
}

// Rebuild replaces the whole tree with one populated from objs, using the
// ordering for ranks. The new tree is built without holding the lock and
// swapped in at the end; on cancellation the current tree is kept.
func (ix *Index) Rebuild(ctx context.Context, objs []annotation.Object) error {
	t := newTree(ix.bounds, ix.resolve(objs))
	staging := &Index{layer: ix.layer, bounds: ix.bounds, cfg: ix.cfg, order: ix.order}
	for i, o := range objs {
		if i%64 == 0 {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("spatial: rebuild layer %s: %w", ix.layer, err)
			}
		}
		if !annotation.PaintsAt(o, ix.layer) {
			continue
		}
		staging.insertLocked(t, o, ix.rankOf(o))
	}

	ix.mu.Lock()
	ix.cur.Store(t)
	ix.gen.Add(1)
	ix.mu.Unlock()
	return nil
}

// Members returns the bounds of every bucket o is registered in.
func (ix *Index) Members(o annotation.Object) []geom.Rect {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	ix.memMu.Lock()
	defer ix.memMu.Unlock()
	m, ok := ix.cur.Load().members[o.ID()]
	if !ok {
		return nil
	}
	out := make([]geom.Rect, len(m.leaves))
	for i, l := range m.leaves {
		out[i] = l.bounds
	}
	return out
}

// Check verifies that o's recorded buckets match its current bounding box.
func (ix *Index) Check(o annotation.Object) error {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	t := ix.cur.Load()
	ix.memMu.Lock()
	defer ix.memMu.Unlock()
	m, ok := t.members[o.ID()]
	if !ok {
		return nil
	}
	return ix.checkLocked(t, m)
}

func (ix *Index) checkLocked(t *tree, m *member) error {
	o := m.e.obj
	box := geom.Rect{}
	if b, ok := o.Bounds(ix.layer); ok {
		box = b
	}
	if box != m.e.box {
		return fmt.Errorf("%w: %s moved from %v to %v", ErrInconsistentMembership, o.ID(), m.e.box, box)
	}
	want := t.targets(box)
	if len(want) != len(m.leaves) {
		return fmt.Errorf("%w: %s in %d buckets, want %d", ErrInconsistentMembership, o.ID(), len(m.leaves), len(want))
	}
	set := make(map[*Bucket]bool, len(want))
	for _, l := range want {
		set[l] = true
	}
	for _, l := range m.leaves {
		if !set[l] || l.entries[o.ID()] != m.e {
			return fmt.Errorf("%w: %s registered in %v", ErrInconsistentMembership, o.ID(), l.bounds)
		}
	}
	return nil
}

// Verify checks every registered object and every leaf entry.
func (ix *Index) Verify() error {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	t := ix.cur.Load()
	ix.memMu.Lock()
	defer ix.memMu.Unlock()

	var errs []error
	for _, m := range t.members {
		if err := ix.checkLocked(t, m); err != nil {
			errs = append(errs, err)
		}
	}
	visit := func(b *Bucket) {
		for id := range b.entries {
			if _, ok := t.members[id]; !ok {
				errs = append(errs, fmt.Errorf("%w: unregistered %s in %v", ErrInconsistentMembership, id, b.bounds))
			}
		}
	}
	t.root.walk(visit)
	visit(t.spill)
	return errors.Join(errs...)
}

// Stats describes the shape of the current tree.
type Stats struct {
	Objects int
	Leaves  int
	Depth   int
	Spilled int
	MinSide float64
}

// Stats returns the current tree statistics.
func (ix *Index) Stats() Stats {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	t := ix.cur.Load()
	s := Stats{Depth: t.root.depth(), Spilled: t.spill.Len(), MinSide: t.minSide}
	t.root.walk(func(*Bucket) { s.Leaves++ })
	ix.memMu.Lock()
	s.Objects = len(t.members)
	ix.memMu.Unlock()
	return s
}
