package engine

import (
	"fmt"

	"github.com/jlang/reldb/catalog"
	"github.com/jlang/reldb/heap"
	"github.com/jlang/reldb/index"
	"github.com/jlang/reldb/index/spatial"
	"github.com/jlang/reldb/record"
)

// Spatial indexes are keyed on a single column position in the catalog
// (CREATE INDEX ... USING RTREE(<col>), per spec §4.9's create_index
// signature), but an R-tree entry needs two coordinates. This engine
// adopts the convention original_source's RTree predicate handling
// implies by always pairing adjacent columns: the indexed column holds
// the X coordinate and the very next column holds Y — e.g.
// `CREATE INDEX by_location ON cities USING RTREE(x)` with a `y DOUBLE`
// column declared immediately after `x`.
func yColumnPosition(xColPos int) int { return xColPos + 1 }

func toCoordinate(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case int16:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("engine: value %v (%T) is not a coordinate", v, v)
	}
}

func mirrorSpatialInsert(t catalog.Table, xColPos int, packer *record.Packer, raw []byte, pos int64, sp *spatial.Index) error {
	xv, err := packer.UnpackField(raw, xColPos)
	if err != nil {
		return err
	}
	yv, err := packer.UnpackField(raw, yColumnPosition(xColPos))
	if err != nil {
		return err
	}
	x, err := toCoordinate(xv)
	if err != nil {
		return err
	}
	y, err := toCoordinate(yv)
	if err != nil {
		return err
	}
	sp.InsertPoint(pos, spatial.Point{X: x, Y: y})
	return nil
}

// rebuildSpatialCallbacks repopulates every attached RTREE callback's
// in-memory handle from a live heap scan. catalog.openIndexHandle always
// hands back a fresh, empty spatial.Index (the R-tree has no file-backed
// form — see DESIGN.md's "R-tree persistence gap"), so any operator that
// queries one must rebuild it first; mirrorSpatialInsert during the same
// call (INSERT, CREATE INDEX backfill, Reconcile) is not enough to serve
// a later, separate SELECT.
func rebuildSpatialCallbacks(table catalog.Table, callbacks []catalog.Callback, h *heap.Heap, packer *record.Packer) error {
	var targets []catalog.Callback
	for _, cb := range callbacks {
		if cb.Type == index.RTREE && cb.Spatial != nil {
			targets = append(targets, cb)
		}
	}
	if len(targets) == 0 {
		return nil
	}
	return h.Scan(func(pos int64, raw []byte) error {
		if !packer.IsActive(raw) {
			return nil
		}
		for _, cb := range targets {
			if err := mirrorSpatialInsert(table, cb.ColumnPosition, packer, raw, pos, cb.Spatial); err != nil {
				return err
			}
		}
		return nil
	})
}

func mirrorSpatialDelete(t catalog.Table, xColPos int, packer *record.Packer, raw []byte, pos int64, sp *spatial.Index) error {
	xv, err := packer.UnpackField(raw, xColPos)
	if err != nil {
		return err
	}
	yv, err := packer.UnpackField(raw, yColumnPosition(xColPos))
	if err != nil {
		return err
	}
	x, err := toCoordinate(xv)
	if err != nil {
		return err
	}
	y, err := toCoordinate(yv)
	if err != nil {
		return err
	}
	sp.Delete(pos, spatial.Rect{XMin: x, YMin: y, XMax: x, YMax: y})
	return nil
}
