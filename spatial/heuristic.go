package spatial

import (
	"slices"

	"gonum.org/v1/gonum/stat"
)

// MinSideFloor is the smallest bucket side the heuristic will choose.
const MinSideFloor = 128

// DefaultMinSide is the bucket side chosen when there are no objects to
// measure. An index created empty keeps it until its first Rebuild, which
// derives the side from the objects it then holds.
const DefaultMinSide = 2048

// EstimateMinSide derives a minimum bucket side from object extents: twice
// the median extent, never below MinSideFloor. Buckets much smaller than the
// typical object would register most objects in many cells. With no extents
// it returns DefaultMinSide.
func EstimateMinSide(sizes []float64) float64 {
	if len(sizes) == 0 {
		return DefaultMinSide
	}
	sorted := slices.Clone(sizes)
	slices.Sort(sorted)
	median := stat.Quantile(0.5, stat.Empirical, sorted, nil)
	return max(2*median, MinSideFloor)
}
