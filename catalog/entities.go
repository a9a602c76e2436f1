// Package catalog persists database/schema/table/column/index metadata as
// tagged JSON blobs under the data directory and generates per-scope
// sequential ids, grounded on original_source's catalog/*.py dataclasses
// and CatalogManager.
package catalog

import (
	"time"

	"github.com/jlang/reldb/codec"
	"github.com/jlang/reldb/index"
)

// Database mirrors original_source's Database dataclass: an id, a name,
// and a name -> schema-id map.
type Database struct {
	ID        int            `json:"id"`
	Name      string         `json:"name"`
	Schemas   map[string]int `json:"schemas"`
	CreatedAt time.Time      `json:"created_at"`
}

// Schema mirrors Schema: an id, a name, its parent database id, and a
// name -> table-id map.
type Schema struct {
	ID         int            `json:"id"`
	Name       string         `json:"name"`
	DatabaseID int            `json:"database_id"`
	Tables     map[string]int `json:"tables"`
}

// Column mirrors Column: name, type tag, declared byte width (meaningful
// for CHAR/VARCHAR), not-null flag, default-present flag.
type Column struct {
	Name       string    `json:"name"`
	Tag        codec.Tag `json:"tag"`
	Width      int       `json:"width"`
	NotNull    bool      `json:"not_null"`
	HasDefault bool      `json:"has_default"`
}

// IndexMeta mirrors Index: id, type, name, backing-file path, tuple
// count, key column positions (single-column in this release), primary
// flag.
type IndexMeta struct {
	ID        int        `json:"id"`
	Type      index.Type `json:"type"`
	Name      string     `json:"name"`
	File      string     `json:"file"`
	Tuples    int        `json:"tuples"`
	Columns   []int      `json:"columns"`
	IsPrimary bool       `json:"is_primary"`
}

// Table mirrors Table: id, name, parent schema id, live tuple count,
// page count, page size, ordered columns, attached indexes.
type Table struct {
	ID        int         `json:"id"`
	Name      string      `json:"name"`
	SchemaID  int         `json:"schema_id"`
	Tuples    int         `json:"tuples"`
	Pages     int         `json:"pages"`
	PageSize  int         `json:"page_size"`
	Columns   []Column    `json:"columns"`
	Indexes   []IndexMeta `json:"indexes"`
}

// PositionOfColumn returns the zero-based position of name in t's column
// list, or -1 if absent.
func (t *Table) PositionOfColumn(name string) int {
	for i, c := range t.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// globalCatalog is the single blob at system/catalog.dat: every known
// database, a format version, and a creation timestamp.
type globalCatalog struct {
	Databases map[string]Database `json:"databases"`
	Version   string               `json:"version"`
	CreatedAt time.Time            `json:"created_at"`
}

// catalogVersion is bumped whenever the blob's shape changes.
const catalogVersion = "1.0.0"
