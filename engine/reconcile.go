package engine

import (
	"fmt"

	"github.com/jlang/reldb/catalog"
	"github.com/jlang/reldb/heap"
	"github.com/jlang/reldb/index"
	"github.com/jlang/reldb/storage"
)

// Reconcile re-derives every attached index of db.schema.table from a
// full heap scan, the recovery option spec §9 OQ1 names as an
// alternative to write-ahead logging: if a process died between a
// heap append and its index mirrors (execInsert's two-step sequence),
// Reconcile restores consistency by re-inserting every live heap row into
// every attached index (overwriting each key's stored position); entries
// whose key no live row carries are not removed.
func (e *Engine) Reconcile(db, schema, table string) error {
	lock := e.lockFor(db)
	lock.Lock()
	defer lock.Unlock()

	t, err := e.catalog.GetTable(db, schema, table)
	if err != nil {
		return err
	}
	packer := packerFor(t)

	return e.withTableLock(db, schema, table, storage.LockExclusive, func() error {
		h, err := heap.Open(e.catalog.HeapPath(db, schema, table), packer.RecordSize())
		if err != nil {
			return err
		}
		defer h.Close()

		_, callbacks, err := e.catalog.CallbacksFor(db, schema, table)
		if err != nil {
			return err
		}
		defer catalog.CloseCallbacks(callbacks)

		liveTuples := 0
		err = h.Scan(func(pos int64, raw []byte) error {
			if !packer.IsActive(raw) {
				return nil
			}
			liveTuples++
			for _, cb := range callbacks {
				if cb.Type == index.RTREE {
					if cb.Spatial == nil {
						continue
					}
					if err := mirrorSpatialInsert(t, cb.ColumnPosition, packer, raw, pos, cb.Spatial); err != nil {
						return fmt.Errorf("reconcile: %w", err)
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
					return fmt.Errorf("reconcile: %w", err)
				}
			}
			return nil
		})
		if err != nil {
			return err
		}

		t.Tuples = liveTuples
		return e.catalog.SaveTable(db, schema, t)
	})
}
