package catalog

import (
	"fmt"

	"github.com/jlang/reldb/codec"
	"github.com/jlang/reldb/index"
	"github.com/jlang/reldb/index/avl"
	"github.com/jlang/reldb/index/btree"
	"github.com/jlang/reldb/index/hash"
	"github.com/jlang/reldb/index/isam"
	"github.com/jlang/reldb/index/spatial"
)

// Callback is one entry of a table's callback table (spec §4.9): the
// opened handle for an attached index plus the heap column position its
// key is drawn from. Point indexes (hash/btree/isam/avl) expose Handle;
// the spatial index (RTREE) exposes Spatial instead, since its Insert
// takes a rectangle rather than a scalar key. SEQUENTIAL indexes have no
// backing file and leave both nil — the dispatcher skips mirroring into
// them.
type Callback struct {
	IndexID        int
	Type           index.Type
	ColumnPosition int
	Handle         index.Index
	Spatial        *spatial.Index
}

// openIndexHandle opens meta's backing file using the column it is keyed
// on to resolve the key's type tag and width. Used both for CREATE
// INDEX (freshly created file) and for CallbacksFor (opening an existing
// attached index for the duration of one operator call).
func openIndexHandle(meta IndexMeta, keyColumn Column, create bool) (index.Index, *spatial.Index, error) {
	switch meta.Type {
	case index.SEQUENTIAL:
		return nil, nil, nil
	case index.HASH:
		if create {
			idx, err := hash.Create(meta.File, keyColumn.Tag, keyColumn.Width, hash.DefaultBucketCapacity)
			return idx, nil, err
		}
		idx, err := hash.Open(meta.File)
		return idx, nil, err
	case index.BTREE:
		if create {
			idx, err := btree.Create(meta.File, keyColumn.Tag, keyColumn.Width, btree.DefaultOrder)
			return idx, nil, err
		}
		idx, err := btree.Open(meta.File)
		return idx, nil, err
	case index.ISAM:
		if create {
			idx, err := isam.Create(meta.File, keyColumn.Tag, keyColumn.Width, isam.DefaultLevels, isam.DefaultBlockFactor)
			return idx, nil, err
		}
		idx, err := isam.Open(meta.File)
		return idx, nil, err
	case index.AVL:
		maxKeySize := codec.Size(keyColumn.Tag, keyColumn.Width)
		if maxKeySize <= 0 || keyColumn.Tag == codec.CHAR || keyColumn.Tag == codec.VARCHAR {
			maxKeySize = keyColumn.Width
		}
		if maxKeySize < 32 {
			maxKeySize = 32 // room for the string form of any numeric key
		}
		numeric := keyColumn.Tag.Numeric()
		if create {
			idx, err := avl.Create(meta.File, maxKeySize, numeric)
			return idx, nil, err
		}
		idx, err := avl.Open(meta.File, maxKeySize, numeric)
		return idx, nil, err
	case index.RTREE:
		// In-memory only; meta.File is ignored and every open returns an
		// empty R-tree, which is not persisted.
		return nil, spatial.New(), nil
	default:
		return nil, nil, fmt.Errorf("catalog: unsupported index type %v", meta.Type)
	}
}
