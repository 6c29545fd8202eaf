package strata

import (
	"github.com/gogpu/strata/annotation"
	"github.com/gogpu/strata/layer"
	"github.com/gogpu/strata/spatial"
)

// Paint tiers: layer-local objects paint first, cross-layer objects above.
const (
	tierLocal uint8 = iota
	tierCross
)

// layerOrdering ranks the objects painting at one layer.
type layerOrdering struct {
	s  *Scene
	id layer.ID
}

func (s *Scene) ordering(id layer.ID) spatial.Ordering {
	return layerOrdering{s: s, id: id}
}

func (lo layerOrdering) Rank(o annotation.Object) spatial.Rank {
	if o.Kind().CrossLayer() {
		return spatial.Rank{Tier: tierCross, Pos: lo.s.cross.IndexOf(o.ID())}
	}
	list, ok := lo.s.localList(lo.id)
	if !ok {
		return spatial.Rank{Tier: tierLocal, Pos: -1}
	}
	return spatial.Rank{Tier: tierLocal, Pos: list.IndexOf(o.ID())}
}

func (lo layerOrdering) Range(o annotation.Object, from, to int) []annotation.Object {
	if o.Kind().CrossLayer() {
		return lo.s.cross.Slice(from, to)
	}
	list, ok := lo.s.localList(lo.id)
	if !ok {
		return nil
	}
	return list.Slice(from, to)
}
