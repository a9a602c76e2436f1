// Package spatial wraps github.com/tidwall/rtree as the engine's R-tree
// index (spec §4.8): an opaque spatial index over two-dimensional
// rectangles, delegated entirely to the external library. Unlike the
// other index families this one is in-memory only: New returns an empty
// tree, and the engine repopulates it from the heap in each operator call
// that queries or builds it, matching the spec's framing of the R-tree as "an
// external collaborator" rather than a byte-level on-disk format.
package spatial

import (
	"math"

	"github.com/tidwall/rtree"
)

// Rect is a two-dimensional rectangle (xmin, ymin, xmax, ymax).
type Rect struct {
	XMin, YMin, XMax, YMax float64
}

// Point is a degenerate Rect used for insert_point / knn_query.
type Point struct {
	X, Y float64
}

// Index is the engine's spatial index handle, keyed by heap position.
type Index struct {
	tr *rtree.RTree[int64]
}

// New creates an empty spatial index.
func New() *Index {
	return &Index{tr: &rtree.RTree[int64]{}}
}

// Insert maps position to rect.
func (idx *Index) Insert(position int64, rect Rect) {
	idx.tr.Insert([2]float64{rect.XMin, rect.YMin}, [2]float64{rect.XMax, rect.YMax}, position)
}

// InsertPoint is a convenience for Insert with a zero-area rectangle.
func (idx *Index) InsertPoint(position int64, p Point) {
	idx.Insert(position, Rect{p.X, p.Y, p.X, p.Y})
}

// Delete removes the position previously inserted under rect.
func (idx *Index) Delete(position int64, rect Rect) {
	idx.tr.Delete([2]float64{rect.XMin, rect.YMin}, [2]float64{rect.XMax, rect.YMax}, position)
}

// RangeQuery returns every position whose rectangle intersects rect.
func (idx *Index) RangeQuery(rect Rect) []int64 {
	var out []int64
	idx.tr.Search(
		[2]float64{rect.XMin, rect.YMin}, [2]float64{rect.XMax, rect.YMax},
		func(min, max [2]float64, position int64) bool {
			out = append(out, position)
			return true
		},
	)
	return out
}

// KNNQuery returns the k positions nearest to p, nearest first.
func (idx *Index) KNNQuery(p Point, k int) []int64 {
	var out []int64
	idx.tr.Nearby(
		boxDistToPoint(p),
		func(min, max [2]float64, position int64, dist float64) bool {
			if len(out) >= k {
				return false
			}
			out = append(out, position)
			return true
		},
	)
	return out
}

// Len reports the number of entries in the index.
func (idx *Index) Len() int { return idx.tr.Len() }

// boxDistToPoint builds the rtree.Nearby algorithm function that orders
// candidates by Euclidean distance from p to the nearest point on
// each candidate's bounding box.
func boxDistToPoint(p Point) func(min, max [2]float64, data int64, item bool) float64 {
	return func(min, max [2]float64, data int64, item bool) float64 {
		dx := axisGap(p.X, min[0], max[0])
		dy := axisGap(p.Y, min[1], max[1])
		return math.Sqrt(dx*dx + dy*dy)
	}
}

func axisGap(v, lo, hi float64) float64 {
	switch {
	case v < lo:
		return lo - v
	case v > hi:
		return v - hi
	default:
		return 0
	}
}
