// Package index defines the contract every on-disk point index
// implements (extendible hash, B+ tree, ISAM, AVL; the spatial index has
// its own type in index/spatial) and the
// numeric Type tag the catalog persists for each attached index.
package index

import "errors"

// Type identifies which index family a catalog Index row names. Values
// match the SQL USING keyword set in the engine's grammar and must never
// be renumbered once assigned.
type Type uint8

const (
	SEQUENTIAL Type = iota // full heap scan, no backing file — the implicit fallback
	AVL
	ISAM
	HASH
	BTREE
	RTREE
)

// String renders a Type using its SQL USING keyword.
func (t Type) String() string {
	switch t {
	case SEQUENTIAL:
		return "SEQUENTIAL"
	case AVL:
		return "AVL"
	case ISAM:
		return "ISAM"
	case HASH:
		return "HASH"
	case BTREE:
		return "BTREE"
	case RTREE:
		return "RTREE"
	default:
		return "UNKNOWN"
	}
}

// ParseType maps a SQL USING keyword to its Type, accepting the all-upper
// or all-lower spelling.
func ParseType(s string) (Type, error) {
	switch s {
	case "SEQUENTIAL", "sequential":
		return SEQUENTIAL, nil
	case "AVL", "avl":
		return AVL, nil
	case "ISAM", "isam":
		return ISAM, nil
	case "HASH", "hash":
		return HASH, nil
	case "BTREE", "btree":
		return BTREE, nil
	case "RTREE", "rtree":
		return RTREE, nil
	default:
		return 0, ErrUnknownType
	}
}

// ErrUnknownType is returned by ParseType for an unrecognized USING keyword.
var ErrUnknownType = errors.New("index: unknown index type")

// ErrKeyNotFound is returned by Search when a key has no entry.
var ErrKeyNotFound = errors.New("index: key not found")

// KeyValue pairs a key with the heap position it maps to, as returned by
// ordered traversals (range scans, full scans).
type KeyValue struct {
	Key      any
	Position int64
}

// Index is the contract the operator dispatcher uses uniformly across all
// point-index families (hash, B+ tree, ISAM, AVL). Spatial indexes have a
// different shape (rectangles and k-NN, not scalar keys) and live behind
// index/spatial's own Index type instead of this one.
type Index interface {
	// Insert maps key to position, overwriting any existing mapping for
	// key (indexes in this engine are unique-per-key, last-write-wins).
	Insert(key any, position int64) error

	// Search returns the position mapped to key, or ErrKeyNotFound.
	Search(key any) (int64, error)

	// Delete removes key's mapping, if present. Deleting an absent key is
	// not an error.
	Delete(key any) error

	// Close flushes and releases the index's backing file handle.
	Close() error
}

// Ordered is implemented by index families that can produce their full
// contents, or a key-range subset, in ascending key order (B+ tree and
// AVL). Hash and ISAM do not implement it.
type Ordered interface {
	Index
	All() ([]KeyValue, error)
	Range(lo, hi any) ([]KeyValue, error)
}
