package strata

import (
	"github.com/sahilm/fuzzy"

	"github.com/gogpu/strata/annotation"
	"github.com/gogpu/strata/geom"
	"github.com/gogpu/strata/internal/querycache"
	"github.com/gogpu/strata/layer"
	"github.com/gogpu/strata/spatial"
)

// QueryPoint returns the objects on layer id whose exact geometry contains
// p, bottom-first.
func (s *Scene) QueryPoint(id layer.ID, p geom.Point, q spatial.Query) []annotation.Object {
	if ix, ok := s.index(id); ok {
		return ix.QueryPoint(p, q)
	}
	if !s.scanning(id, "point") {
		return nil
	}
	return spatial.ScanPoint(id, s.objectsAt(id), s.ordering(id), p, q)
}

// QueryRect returns the objects on layer id whose exact geometry intersects
// r, bottom-first.
func (s *Scene) QueryRect(id layer.ID, r geom.Rect, q spatial.Query) []annotation.Object {
	if ix, ok := s.index(id); ok {
		return ix.QueryRect(r, q)
	}
	if !s.scanning(id, "rect") {
		return nil
	}
	return spatial.ScanRect(id, s.objectsAt(id), s.ordering(id), r, q)
}

// QueryRectRough returns the objects on layer id whose bounding box
// intersects r, bottom-first. It may include objects whose exact geometry
// misses r but never omits one that hits it. Results are cached until the
// next mutation.
func (s *Scene) QueryRectRough(id layer.ID, r geom.Rect, visibleOnly bool) []annotation.Object {
	ix, ok := s.index(id)
	if !ok {
		if !s.scanning(id, "rough") {
			return nil
		}
		return spatial.ScanRectRough(id, s.objectsAt(id), s.ordering(id), r, spatial.Query{VisibleOnly: visibleOnly})
	}
	q := spatial.Query{VisibleOnly: visibleOnly}
	if s.rough == nil {
		return ix.QueryRectRough(r, q)
	}

	key := querycache.Key{Layer: id, Rect: r, VisibleOnly: visibleOnly}
	gen := s.epoch.Load()
	if objs, ok := s.rough.Get(key, gen); ok {
		return objs
	}
	objs := ix.QueryRectRough(r, q)
	s.rough.Put(key, gen, objs)
	return objs
}

// RoughCacheStats returns the rough query cache counters.
func (s *Scene) RoughCacheStats() querycache.Stats {
	if s.rough == nil {
		return querycache.Stats{}
	}
	return s.rough.Stats()
}

// scanning reports whether a query on a layer without index should fall
// back to a linear scan, logging the degraded path.
func (s *Scene) scanning(id layer.ID, kind string) bool {
	if _, ok := s.layers.Get(id); !ok {
		Logger().Debug("strata: query on unknown layer", "layer", id)
		return false
	}
	Logger().Warn("strata: linear scan fallback", "layer", id, "query", kind, "err", ErrIndexMissing)
	return true
}

// titles adapts a slice of objects to fuzzy.Source.
type titles []annotation.Object

func (t titles) String(i int) string { return t[i].Title() }
func (t titles) Len() int            { return len(t) }

// FindByTitle returns the objects whose title fuzzily matches pattern, best
// match first.
func (s *Scene) FindByTitle(pattern string) []annotation.Object {
	objs := titles(s.Objects())
	matches := fuzzy.FindFrom(pattern, objs)
	out := make([]annotation.Object, len(matches))
	for i, m := range matches {
		out[i] = objs[m.Index]
	}
	return out
}
