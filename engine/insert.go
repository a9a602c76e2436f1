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

// execInsert appends every row to the heap and mirrors each one into
// every attached index's callback table (spec invariant 2/§4.9), in the
// order: heap append, then index updates — if the process dies between
// the two, Reconcile rebuilds every index from the heap and recovers.
func (e *Engine) execInsert(s sqlast.InsertInto) (Result, error) {
	table, err := e.catalog.GetTable(s.DB, s.Schema, s.Table)
	if err != nil {
		return Result{}, err
	}
	packer := packerFor(table)

	var inserted int
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

		for _, row := range s.Rows {
			values, err := orderValues(table, s.Columns, row)
			if err != nil {
				return err
			}
			buf, err := packer.Pack(values, true)
			if err != nil {
				return err
			}
			pos, err := h.Insert(buf)
			if err != nil {
				return err
			}
			if err := mirrorInsert(table, packer, buf, pos, callbacks); err != nil {
				return fmt.Errorf("engine: mirroring insert into indexes: %w", err)
			}
		}

		table.Tuples += len(s.Rows)
		if err := e.catalog.SaveTable(s.DB, s.Schema, table); err != nil {
			return err
		}
		inserted = len(s.Rows)
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	return Result{Message: fmt.Sprintf("%d rows inserted", inserted)}, nil
}

// orderValues maps an INSERT statement's (possibly reordered, possibly
// partial) column list onto the table's declared column order, filling
// any column the statement omitted with nil (NULL).
func orderValues(table catalog.Table, cols []string, row []any) ([]any, error) {
	values := make([]any, len(table.Columns))
	if len(cols) == 0 {
		if len(row) != len(table.Columns) {
			return nil, fmt.Errorf("engine: row has %d values, table %q has %d columns", len(row), table.Name, len(table.Columns))
		}
		copy(values, row)
		return values, nil
	}
	if len(cols) != len(row) {
		return nil, fmt.Errorf("engine: row has %d values, statement names %d columns", len(row), len(cols))
	}
	for i, name := range cols {
		pos := table.PositionOfColumn(name)
		if pos < 0 {
			return nil, fmt.Errorf("engine: unknown column %q on table %q", name, table.Name)
		}
		values[pos] = row[i]
	}
	return values, nil
}

func mirrorInsert(table catalog.Table, packer *record.Packer, raw []byte, pos int64, callbacks []catalog.Callback) error {
	for _, cb := range callbacks {
		if cb.Type == index.RTREE {
			if cb.Spatial == nil {
				continue
			}
			if err := mirrorSpatialInsert(table, cb.ColumnPosition, packer, raw, pos, cb.Spatial); err != nil {
				return err
			}
			continue
		}
		if cb.Handle == nil {
			continue
		}
		key, err := packer.UnpackField(raw, cb.ColumnPosition)
		if err != nil {
			return err
		}
		if err := cb.Handle.Insert(key, pos); err != nil {
			return err
		}
	}
	return nil
}
