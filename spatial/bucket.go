package spatial

import (
	"github.com/gogpu/strata/annotation"
	"github.com/gogpu/strata/geom"
)

// entry is the per-object record shared by every leaf the object is
// registered in. Updating rank here re-keys the object in all its buckets.
type entry struct {
	obj  annotation.Object
	box  geom.Rect // bounding box at registration time
	rank Rank
}

// Bucket is a rectangular cell of the index.
//
// A bucket is either a leaf holding entries or an inner node with four
// children; never both. Leaves split when they hold more than MaxPerCell
// entries and their halves are still at least MinSide wide.
type Bucket struct {
	bounds   geom.Rect
	children []*Bucket
	entries  map[annotation.ID]*entry
}

func newLeaf(bounds geom.Rect) *Bucket {
	return &Bucket{bounds: bounds, entries: make(map[annotation.ID]*entry)}
}

// Bounds returns the cell rectangle.
func (b *Bucket) Bounds() geom.Rect { return b.bounds }

// IsLeaf reports whether the bucket holds entries directly.
func (b *Bucket) IsLeaf() bool { return b.children == nil }

// Len returns the number of entries in a leaf, 0 for inner nodes.
func (b *Bucket) Len() int { return len(b.entries) }

func (b *Bucket) canSplit(minSide float64) bool {
	return b.bounds.Width()/2 >= minSide && b.bounds.Height()/2 >= minSide
}

// leavesIn appends every leaf overlapping box.
func (b *Bucket) leavesIn(box geom.Rect, out []*Bucket) []*Bucket {
	if !b.bounds.Intersects(box) {
		return out
	}
	if b.children == nil {
		return append(out, b)
	}
	for _, c := range b.children {
		out = c.leavesIn(box, out)
	}
	return out
}

// leavesAt appends every leaf whose closed bounds contain p.
func (b *Bucket) leavesAt(p geom.Point, out []*Bucket) []*Bucket {
	if !b.bounds.Contains(p) {
		return out
	}
	if b.children == nil {
		return append(out, b)
	}
	for _, c := range b.children {
		out = c.leavesAt(p, out)
	}
	return out
}

// walk visits every leaf.
func (b *Bucket) walk(fn func(*Bucket)) {
	if b.children == nil {
		fn(b)
		return
	}
	for _, c := range b.children {
		c.walk(fn)
	}
}

func (b *Bucket) depth() int {
	if b.children == nil {
		return 1
	}
	d := 0
	for _, c := range b.children {
		d = max(d, c.depth())
	}
	return d + 1
}
