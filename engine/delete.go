package engine

import (
	"fmt"

	"github.com/jlang/reldb/catalog"
	"github.com/jlang/reldb/heap"
	"github.com/jlang/reldb/index"
	"github.com/jlang/reldb/record"
	"github.com/jlang/reldb/sqlast"
	"github.com/jlang/reldb/storage"
)

// execDelete requires an equality WHERE (spec §4.10/invariant 9):
// iterate the heap by ordinal, tombstone every live match, and delete
// its key from every attached index so no index keeps a dangling
// position.
func (e *Engine) execDelete(s sqlast.Delete) (Result, error) {
	table, err := e.catalog.GetTable(s.DB, s.Schema, s.Table)
	if err != nil {
		return Result{}, err
	}
	colPos := table.PositionOfColumn(s.Where.Column)
	if colPos < 0 {
		return Result{}, fmt.Errorf("engine: unknown column %q", s.Where.Column)
	}
	packer := packerFor(table)

	deleted := 0
	err = e.withTableLock(s.DB, s.Schema, s.Table, storage.LockExclusive, func() error {
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

		err = h.Scan(func(pos int64, raw []byte) error {
			if !packer.IsActive(raw) {
				return nil
			}
			values, _, err := packer.Unpack(raw)
			if err != nil {
				return err
			}
			if !valuesEqual(values[colPos], s.Where.Value) {
				return nil
			}
			packer.SetActive(raw, false)
			if err := h.WriteAt(pos, raw); err != nil {
				return err
			}
			if err := mirrorDelete(table, packer, raw, pos, values, callbacks); err != nil {
				return err
			}
			deleted++
			return nil
		})
		if err != nil {
			return err
		}

		table.Tuples -= deleted
		if table.Tuples < 0 {
			table.Tuples = 0
		}
		return e.catalog.SaveTable(s.DB, s.Schema, table)
	})
	if err != nil {
		return Result{}, err
	}
	return Result{Message: fmt.Sprintf("%d rows deleted", deleted)}, nil
}

func mirrorDelete(table catalog.Table, packer *record.Packer, raw []byte, pos int64, values []any, callbacks []catalog.Callback) error {
	for _, cb := range callbacks {
		if cb.Type == index.RTREE {
			if cb.Spatial == nil {
				continue
			}
			if err := mirrorSpatialDelete(table, cb.ColumnPosition, packer, raw, pos, cb.Spatial); err != nil {
				return err
			}
			continue
		}
		if cb.Handle == nil {
			continue
		}
		if err := cb.Handle.Delete(values[cb.ColumnPosition]); err != nil {
			return err
		}
	}
	return nil
}
