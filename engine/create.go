package engine

import (
	"fmt"
	"sort"

	"github.com/jlang/reldb/catalog"
	"github.com/jlang/reldb/codec"
	"github.com/jlang/reldb/heap"
	"github.com/jlang/reldb/index"
	"github.com/jlang/reldb/index/isam"
	"github.com/jlang/reldb/index/spatial"
	"github.com/jlang/reldb/sqlast"
	"github.com/jlang/reldb/storage"
)

func (e *Engine) execCreateDatabase(s sqlast.CreateDatabase) (Result, error) {
	if err := e.catalog.CreateDatabase(s.Name); err != nil {
		return Result{}, err
	}
	return Result{Message: fmt.Sprintf("database %q created", s.Name)}, nil
}

func (e *Engine) execCreateSchema(s sqlast.CreateSchema) (Result, error) {
	if err := e.catalog.CreateSchema(s.DB, s.Name); err != nil {
		return Result{}, err
	}
	return Result{Message: fmt.Sprintf("schema %q created", s.Name)}, nil
}

func (e *Engine) execCreateTable(s sqlast.CreateTable) (Result, error) {
	columns := make([]catalog.Column, len(s.Columns))
	for i, c := range s.Columns {
		width := c.Len
		if width == 0 {
			width = codec.Size(c.Tag, 0)
		}
		columns[i] = catalog.Column{
			Name:       c.Name,
			Tag:        c.Tag,
			Width:      width,
			NotNull:    c.NotNull,
			HasDefault: c.HasDefault,
		}
	}
	if _, err := e.catalog.CreateTable(s.DB, s.Schema, s.Name, columns); err != nil {
		return Result{}, err
	}
	return Result{Message: fmt.Sprintf("table %q created", s.Name)}, nil
}

// execCreateIndex attaches a new index to an existing table and, per spec
// §4.9/§4.10, back-fills it from the heap's live rows when the table
// already holds data — so an index created after INSERTs is immediately
// consistent rather than silently empty until the next write.
func (e *Engine) execCreateIndex(s sqlast.CreateIndex) (Result, error) {
	typ, err := index.ParseType(s.Using)
	if err != nil {
		return Result{}, err
	}
	table, err := e.catalog.GetTable(s.DB, s.Schema, s.Table)
	if err != nil {
		return Result{}, err
	}
	colPos := table.PositionOfColumn(s.Column)
	if colPos < 0 {
		return Result{}, fmt.Errorf("engine: column %q not found on table %q", s.Column, s.Table)
	}

	_, handle, sp, err := e.catalog.CreateIndex(s.DB, s.Schema, s.Table, s.Name, typ, colPos, false)
	if err != nil {
		return Result{}, err
	}
	defer closeHandle(handle)

	if err := e.backfillIndex(s.DB, s.Schema, s.Table, table, typ, colPos, handle, sp); err != nil {
		return Result{}, fmt.Errorf("engine: backfilling index %q: %w", s.Name, err)
	}
	return Result{Message: fmt.Sprintf("index %q created on %s.%s", s.Name, s.Table, s.Column)}, nil
}

func closeHandle(h index.Index) {
	if h != nil {
		h.Close()
	}
}

// backfillIndex scans every live heap record and mirrors the key column
// into the freshly created index handle, grounded on original_source's
// CREATE INDEX path, which always rebuilds from the full table rather
// than requiring the table to be empty.
//
// ISAM is special-cased: row-by-row Insert only ever grows a single
// leaf's overflow chain (see isam.Index.Insert), which would leave a
// back-filled, non-empty table with the degenerate single-root-entry
// shape spec §9 OQ5 calls out as wrong. Build instead bulk-loads a
// sorted key set into block-factor-sized leaf partitions with one root
// entry per partition, matching the structure a CREATE INDEX on an
// already-populated table is supposed to produce.
func (e *Engine) backfillIndex(db, schema, table string, t catalog.Table, typ index.Type, colPos int, handle index.Index, sp *spatial.Index) error {
	if handle == nil && sp == nil {
		return nil
	}
	packer := packerFor(t)

	return e.withTableLock(db, schema, table, storage.LockShared, func() error {
		h, err := heap.Open(e.catalog.HeapPath(db, schema, table), packer.RecordSize())
		if err != nil {
			return err
		}
		defer h.Close()

		if typ == index.ISAM {
			isamHandle, ok := handle.(*isam.Index)
			if !ok {
				return fmt.Errorf("engine: ISAM index handle has unexpected type %T", handle)
			}
			var pairs []index.KeyValue
			if err := h.Scan(func(pos int64, raw []byte) error {
				if !packer.IsActive(raw) {
					return nil
				}
				key, err := packer.UnpackField(raw, colPos)
				if err != nil {
					return err
				}
				pairs = append(pairs, index.KeyValue{Key: key, Position: pos})
				return nil
			}); err != nil {
				return err
			}
			sort.Slice(pairs, func(i, j int) bool {
				return index.Compare(pairs[i].Key, pairs[j].Key) < 0
			})
			return isamHandle.Build(pairs)
		}

		return h.Scan(func(pos int64, raw []byte) error {
			if !packer.IsActive(raw) {
				return nil
			}
			if sp != nil {
				return mirrorSpatialInsert(t, colPos, packer, raw, pos, sp)
			}
			key, err := packer.UnpackField(raw, colPos)
			if err != nil {
				return err
			}
			return handle.Insert(key, pos)
		})
	})
}
