package engine

import (
	"errors"
	"fmt"

	"github.com/jlang/reldb/catalog"
	"github.com/jlang/reldb/heap"
	"github.com/jlang/reldb/index"
	"github.com/jlang/reldb/index/hash"
	"github.com/jlang/reldb/index/spatial"
	"github.com/jlang/reldb/record"
	"github.com/jlang/reldb/sqlast"
	"github.com/jlang/reldb/storage"
)

// isKeyNotFound reports whether err is either index package's
// "key absent" sentinel. The hash package predates the shared index.Index
// contract and still returns its own hash.ErrKeyNotFound rather than
// index.ErrKeyNotFound; the dispatcher has to recognize both.
func isKeyNotFound(err error) bool {
	return errors.Is(err, index.ErrKeyNotFound) || errors.Is(err, hash.ErrKeyNotFound)
}

// execSelect dispatches a WHERE predicate to the narrowest index that
// covers it, per the redesigned rule (SPEC_FULL.md §6 / spec §9 OQ2):
// prefer an AVL index on the predicate column, else any index on that
// column, else a full heap scan filtered in memory. BETWEEN on the primary
// index's key column uses its ordered range scan, and on any other column
// a full heap scan filtered in memory; the spatial four-range
// predicate always uses the RTREE index by type, never by column.
func (e *Engine) execSelect(s sqlast.Select) (Result, error) {
	table, err := e.catalog.GetTable(s.DB, s.Schema, s.Table)
	if err != nil {
		return Result{}, err
	}
	packer := packerFor(table)

	var rows []Row
	err = e.withTableLock(s.DB, s.Schema, s.Table, storage.LockShared, func() error {
		h, err := heap.Open(e.catalog.HeapPath(s.DB, s.Schema, s.Table), packer.RecordSize())
		if err != nil {
			return err
		}
		defer h.Close()

		_, callbacks, err := e.catalog.CallbacksFor(s.DB, s.Schema, s.Table)
		if err != nil {
			return err
		}
		defer catalog.CloseCallbacks(callbacks)

		var positions []int64
		switch pred := s.Where.(type) {
		case nil:
			positions, err = fullOrderedScan(callbacks, h, packer)
		case sqlast.EqPredicate:
			positions, err = selectEquality(table, callbacks, h, packer, pred)
		case sqlast.BetweenPredicate:
			positions, err = selectBetween(table, callbacks, h, packer, pred)
		case sqlast.SpatialPredicate:
			if err := rebuildSpatialCallbacks(table, callbacks, h, packer); err != nil {
				return fmt.Errorf("engine: rebuilding spatial index from heap: %w", err)
			}
			positions, err = selectSpatial(table, callbacks, pred)
		default:
			return fmt.Errorf("engine: unsupported WHERE predicate %T", pred)
		}
		if err != nil {
			return err
		}

		rows = make([]Row, 0, len(positions))
		for _, pos := range positions {
			raw, err := h.ReadAt(pos)
			if err != nil {
				return err
			}
			if !packer.IsActive(raw) {
				continue
			}
			values, _, err := packer.Unpack(raw)
			if err != nil {
				return err
			}
			rows = append(rows, rowFromValues(table, values))
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	return Result{Rows: rows}, nil
}

// selectEquality implements the redesigned index-selection rule for a
// `col = value` predicate.
func selectEquality(table catalog.Table, callbacks []catalog.Callback, h *heap.Heap, packer *record.Packer, pred sqlast.EqPredicate) ([]int64, error) {
	colPos := table.PositionOfColumn(pred.Column)
	if colPos < 0 {
		return nil, fmt.Errorf("engine: unknown column %q", pred.Column)
	}

	cb := chooseEqualityIndex(callbacks, colPos)
	if cb == nil {
		return fullScanFilter(h, packer, func(values []any) bool {
			return valuesEqual(values[colPos], pred.Value)
		})
	}
	pos, err := cb.Handle.Search(pred.Value)
	if err != nil {
		if isKeyNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return []int64{pos}, nil
}

// chooseEqualityIndex prefers an AVL index on colPos, then any other
// index on colPos, and returns nil if none covers the column — the
// caller falls back to a full heap scan rather than consulting an
// unrelated index (SPEC_FULL.md §6).
func chooseEqualityIndex(callbacks []catalog.Callback, colPos int) *catalog.Callback {
	var fallback *catalog.Callback
	for i := range callbacks {
		cb := &callbacks[i]
		if cb.ColumnPosition != colPos || cb.Handle == nil {
			continue
		}
		if cb.Type == index.AVL {
			return cb
		}
		if fallback == nil {
			fallback = cb
		}
	}
	return fallback
}

// selectBetween requires an ordered primary index. When the primary is
// keyed on the predicate column its range scan answers the query;
// otherwise the heap is scanned in full and filtered.
func selectBetween(table catalog.Table, callbacks []catalog.Callback, h *heap.Heap, packer *record.Packer, pred sqlast.BetweenPredicate) ([]int64, error) {
	pk := primaryCallback(callbacks)
	if pk == nil {
		return nil, fmt.Errorf("engine: table %q has no primary index for BETWEEN", table.Name)
	}
	ordered, ok := pk.Handle.(index.Ordered)
	if !ok {
		return nil, fmt.Errorf("engine: primary index on %q does not support range scans", table.Name)
	}
	colPos := table.PositionOfColumn(pred.Column)
	entries, err := ordered.Range(pred.Low, pred.High)
	if err != nil {
		return nil, err
	}
	if colPos == pk.ColumnPosition {
		positions := make([]int64, len(entries))
		for i, kv := range entries {
			positions[i] = kv.Position
		}
		return positions, nil
	}
	// The primary index isn't keyed on the predicate column: scan every
	// heap slot in position order and filter the predicate column in
	// memory; the range result above is not used.
	return fullScanFilter(h, packer, func(values []any) bool {
		return withinRange(values[colPos], pred.Low, pred.High)
	})
}

func selectSpatial(table catalog.Table, callbacks []catalog.Callback, pred sqlast.SpatialPredicate) ([]int64, error) {
	for _, cb := range callbacks {
		if cb.Type == index.RTREE && cb.Spatial != nil {
			return cb.Spatial.RangeQuery(spatial.Rect{
				XMin: pred.XLow, YMin: pred.YLow,
				XMax: pred.XHigh, YMax: pred.YHigh,
			}), nil
		}
	}
	return nil, fmt.Errorf("engine: table %q has no RTREE index for spatial predicate", table.Name)
}

func primaryCallback(callbacks []catalog.Callback) *catalog.Callback {
	for i := range callbacks {
		if callbacks[i].Type == index.BTREE && callbacks[i].Handle != nil {
			return &callbacks[i]
		}
	}
	for i := range callbacks {
		if callbacks[i].Handle != nil {
			return &callbacks[i]
		}
	}
	return nil
}

func fullOrderedScan(callbacks []catalog.Callback, h *heap.Heap, packer *record.Packer) ([]int64, error) {
	pk := primaryCallback(callbacks)
	if pk != nil {
		if ordered, ok := pk.Handle.(index.Ordered); ok {
			entries, err := ordered.All()
			if err != nil {
				return nil, err
			}
			positions := make([]int64, len(entries))
			for i, kv := range entries {
				positions[i] = kv.Position
			}
			return positions, nil
		}
	}
	return fullScanFilter(h, packer, func([]any) bool { return true })
}

func fullScanFilter(h *heap.Heap, packer *record.Packer, keep func(values []any) bool) ([]int64, error) {
	var positions []int64
	err := h.Scan(func(pos int64, raw []byte) error {
		if !packer.IsActive(raw) {
			return nil
		}
		values, _, err := packer.Unpack(raw)
		if err != nil {
			return err
		}
		if keep(values) {
			positions = append(positions, pos)
		}
		return nil
	})
	return positions, err
}

func valuesEqual(a, b any) bool {
	af, err1 := toCoordinate(a)
	bf, err2 := toCoordinate(b)
	if err1 == nil && err2 == nil {
		return af == bf
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func withinRange(v, lo, hi any) bool {
	vf, err1 := toCoordinate(v)
	lf, err2 := toCoordinate(lo)
	hf, err3 := toCoordinate(hi)
	if err1 == nil && err2 == nil && err3 == nil {
		return vf >= lf && vf <= hf
	}
	vs, los, his := fmt.Sprint(v), fmt.Sprint(lo), fmt.Sprint(hi)
	return vs >= los && vs <= his
}
