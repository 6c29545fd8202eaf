package spatial

import (
	"slices"

	"github.com/gogpu/strata/annotation"
	"github.com/gogpu/strata/geom"
	"github.com/gogpu/strata/layer"
)

// hit is a candidate copied out of the tree under the read lock.
type hit struct {
	obj  annotation.Object
	rank Rank
}

// Query selects objects for QueryPoint and QueryRect.
type Query struct {
	// Filter restricts results by object; nil matches everything.
	Filter annotation.Filter

	// VisibleOnly drops hidden objects.
	VisibleOnly bool
}

func (q Query) accept(o annotation.Object) bool {
	if q.VisibleOnly && !o.Visible() {
		return false
	}
	return q.Filter.Match(o)
}

// collect gathers the distinct entries of the given leaves.
func collect(leaves []*Bucket, keep func(*entry) bool) []hit {
	seen := make(map[annotation.ID]struct{})
	var out []hit
	for _, leaf := range leaves {
		for id, e := range leaf.entries {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			if keep == nil || keep(e) {
				out = append(out, hit{obj: e.obj, rank: e.rank})
			}
		}
	}
	return out
}

// finish applies the selection and exact test, then orders the result
// bottom-first.
func finish(hits []hit, q Query, exact func(annotation.Object) bool) []annotation.Object {
	hits = slices.DeleteFunc(hits, func(h hit) bool {
		return !q.accept(h.obj) || (exact != nil && !exact(h.obj))
	})
	slices.SortStableFunc(hits, func(a, b hit) int {
		switch {
		case a.rank.Less(b.rank):
			return -1
		case b.rank.Less(a.rank):
			return 1
		}
		return 0
	})
	out := make([]annotation.Object, len(hits))
	for i, h := range hits {
		out[i] = h.obj
	}
	return out
}

// QueryPoint returns the objects whose exact geometry on this layer contains
// p, bottom-first.
func (ix *Index) QueryPoint(p geom.Point, q Query) []annotation.Object {
	ix.mu.RLock()
	t := ix.cur.Load()
	leaves := t.root.leavesAt(p, nil)
	leaves = append(leaves, t.spill)
	hits := collect(leaves, func(e *entry) bool { return e.box.Contains(p) })
	ix.mu.RUnlock()

	return finish(hits, q, func(o annotation.Object) bool { return o.Contains(ix.layer, p) })
}

// QueryRect returns the objects whose exact geometry on this layer
// intersects r, bottom-first.
func (ix *Index) QueryRect(r geom.Rect, q Query) []annotation.Object {
	hits := ix.rough(r)
	return finish(hits, q, func(o annotation.Object) bool { return o.Intersects(ix.layer, r) })
}

// QueryRectRough returns the objects whose bounding box on this layer
// intersects r, bottom-first. It never misses an object QueryRect would
// return and may include extra ones.
func (ix *Index) QueryRectRough(r geom.Rect, q Query) []annotation.Object {
	return finish(ix.rough(r), q, nil)
}

func (ix *Index) rough(r geom.Rect) []hit {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	t := ix.cur.Load()
	leaves := t.root.leavesIn(r, nil)
	leaves = append(leaves, t.spill)
	return collect(leaves, func(e *entry) bool { return e.box.Intersects(r) })
}

// ScanPoint is the exhaustive form of QueryPoint over objs, used when a
// layer has no index yet.
func ScanPoint(l layer.ID, objs []annotation.Object, order Ordering, p geom.Point, q Query) []annotation.Object {
	return finish(scan(l, objs, order), q, func(o annotation.Object) bool { return o.Contains(l, p) })
}

// ScanRect is the exhaustive form of QueryRect over objs.
func ScanRect(l layer.ID, objs []annotation.Object, order Ordering, r geom.Rect, q Query) []annotation.Object {
	return finish(scan(l, objs, order), q, func(o annotation.Object) bool { return o.Intersects(l, r) })
}

// ScanRectRough is the exhaustive form of QueryRectRough over objs: it tests
// bounding boxes only.
func ScanRectRough(l layer.ID, objs []annotation.Object, order Ordering, r geom.Rect, q Query) []annotation.Object {
	return finish(scan(l, objs, order), q, func(o annotation.Object) bool {
		b, ok := o.Bounds(l)
		return ok && b.Intersects(r)
	})
}

func scan(l layer.ID, objs []annotation.Object, order Ordering) []hit {
	out := make([]hit, 0, len(objs))
	for _, o := range objs {
		if !annotation.PaintsAt(o, l) {
			continue
		}
		h := hit{obj: o}
		if order != nil {
			h.rank = order.Rank(o)
		}
		out = append(out, h)
	}
	return out
}
