// Package codec packs scalar column values into fixed-width byte slices and
// back. It is the lowest layer of the storage engine: every heap record and
// every index key is built from values this package serializes.
package codec

import "fmt"

// Tag identifies a scalar column type. Values match the numeric encoding a
// catalog persists for a column, so they must never be renumbered once
// assigned.
type Tag uint8

const (
	SMALLINT Tag = iota
	INT
	BIGINT
	DOUBLE
	CHAR
	VARCHAR
	BOOLEAN
	UUID
	DATE
	TIME
	TIMESTAMP
	GEOMETRIC
	JSON
	DECIMAL
)

// String renders a tag using its SQL keyword, for error messages and the
// sqlast parser's type-name table.
func (t Tag) String() string {
	switch t {
	case SMALLINT:
		return "SMALLINT"
	case INT:
		return "INT"
	case BIGINT:
		return "BIGINT"
	case DOUBLE:
		return "DOUBLE"
	case CHAR:
		return "CHAR"
	case VARCHAR:
		return "VARCHAR"
	case BOOLEAN:
		return "BOOLEAN"
	case UUID:
		return "UUID"
	case DATE:
		return "DATE"
	case TIME:
		return "TIME"
	case TIMESTAMP:
		return "TIMESTAMP"
	case GEOMETRIC:
		return "GEOMETRIC"
	case JSON:
		return "JSON"
	case DECIMAL:
		return "DECIMAL"
	default:
		return fmt.Sprintf("Tag(%d)", uint8(t))
	}
}

// Numeric reports whether a tag's values compare as numbers rather than as
// strings. Used by index/avl to choose a key domain at CREATE INDEX time.
func (t Tag) Numeric() bool {
	switch t {
	case SMALLINT, INT, BIGINT, DOUBLE, DECIMAL:
		return true
	default:
		return false
	}
}

// Size returns the on-disk width in bytes for a tag, given the column's
// declared max length (meaningful only for CHAR/VARCHAR).
func Size(tag Tag, maxLen int) int {
	switch tag {
	case SMALLINT:
		return 2
	case INT:
		return 4
	case BIGINT:
		return 8
	case DOUBLE:
		return 8
	case CHAR, VARCHAR:
		return maxLen
	case BOOLEAN:
		return 1
	case UUID:
		return 16
	case DATE:
		return 4
	case TIME:
		return 8
	case TIMESTAMP:
		return 8
	case GEOMETRIC:
		return 32
	case JSON:
		return 1024
	case DECIMAL:
		return 16
	default:
		return 0
	}
}
