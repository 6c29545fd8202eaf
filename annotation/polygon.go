package annotation

import "github.com/gogpu/strata/geom"

// pointInPolygon is the even-odd ray casting test.
func pointInPolygon(poly []geom.Point, p geom.Point) bool {
	inside := false
	for i, j := 0, len(poly)-1; i < len(poly); j, i = i, i+1 {
		a, b := poly[i], poly[j]
		if (a.Y > p.Y) != (b.Y > p.Y) &&
			p.X < (b.X-a.X)*(p.Y-a.Y)/(b.Y-a.Y)+a.X {
			inside = !inside
		}
	}
	return inside
}

// polygonIntersectsRect reports whether a simple polygon and a rectangle
// share any point with positive area around it.
func polygonIntersectsRect(poly []geom.Point, r geom.Rect) bool {
	if len(poly) < 3 || r.IsEmpty() {
		return false
	}
	for _, p := range poly {
		if p.X > r.MinX && p.X < r.MaxX && p.Y > r.MinY && p.Y < r.MaxY {
			return true
		}
	}
	corners := r.Corners()
	for _, c := range corners {
		if pointInPolygon(poly, c) {
			return true
		}
	}
	if pointInPolygon(poly, r.Center()) {
		return true
	}
	for i, j := 0, len(poly)-1; i < len(poly); j, i = i, i+1 {
		for k := range corners {
			if segmentsCross(poly[j], poly[i], corners[k], corners[(k+1)%4]) {
				return true
			}
		}
	}
	return false
}

// segmentsCross reports a proper crossing of segments ab and cd.
func segmentsCross(a, b, c, d geom.Point) bool {
	d1 := cross(c, d, a)
	d2 := cross(c, d, b)
	d3 := cross(a, b, c)
	d4 := cross(a, b, d)
	return ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0))
}

func cross(o, a, b geom.Point) float64 {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}

func transformPoints(a geom.Affine, pts []geom.Point) []geom.Point {
	out := make([]geom.Point, len(pts))
	for i, p := range pts {
		out[i] = a.Apply(p)
	}
	return out
}

func boundsOf(pts []geom.Point) geom.Rect {
	r := geom.EmptyRect()
	for _, p := range pts {
		r = r.UnionPoint(p)
	}
	return r
}
