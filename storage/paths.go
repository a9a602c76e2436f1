// Package storage translates logical catalog names into filesystem paths
// and performs the blob reads/writes the catalog needs, grounded on
// original_source's PathBuilder/FileManager split (storage/disk), using
// plain os file calls (no os.Root sandbox).
package storage

import (
	"os"
	"path/filepath"
)

// PathBuilder derives every on-disk path from the data root, per spec §6's
// layout: system/catalog.dat, db_<name>/..., schema_<name>/, table_<name>/.
type PathBuilder struct {
	base string
}

// NewPathBuilder roots path construction at dir.
func NewPathBuilder(dir string) *PathBuilder { return &PathBuilder{base: dir} }

// BaseDir returns the root data directory.
func (p *PathBuilder) BaseDir() string { return p.base }

// SystemDir returns the system metadata directory.
func (p *PathBuilder) SystemDir() string { return filepath.Join(p.base, "system") }

// CatalogFile returns the global catalog blob path.
func (p *PathBuilder) CatalogFile() string { return filepath.Join(p.SystemDir(), "catalog.dat") }

// DatabaseDir returns a database's directory.
func (p *PathBuilder) DatabaseDir(db string) string {
	return filepath.Join(p.base, "db_"+db)
}

// DatabaseMeta returns a database's metadata blob path.
func (p *PathBuilder) DatabaseMeta(db string) string {
	return filepath.Join(p.DatabaseDir(db), "meta.dat")
}

// SchemaDir returns a schema's directory.
func (p *PathBuilder) SchemaDir(db, schema string) string {
	return filepath.Join(p.DatabaseDir(db), "schema_"+schema)
}

// SchemaMeta returns a schema's metadata blob path.
func (p *PathBuilder) SchemaMeta(db, schema string) string {
	return filepath.Join(p.SchemaDir(db, schema), "meta.dat")
}

// TableDir returns a table's directory.
func (p *PathBuilder) TableDir(db, schema, table string) string {
	return filepath.Join(p.SchemaDir(db, schema), "table_"+table)
}

// TableMeta returns a table's metadata blob path.
func (p *PathBuilder) TableMeta(db, schema, table string) string {
	return filepath.Join(p.TableDir(db, schema, table), "meta.dat")
}

// TableData returns a table's heap file path.
func (p *PathBuilder) TableData(db, schema, table string) string {
	return filepath.Join(p.TableDir(db, schema, table), "data.dat")
}

// TableIndex returns an index's backing-file path, named
// idx_<index>_<table>.dat per spec §6.
func (p *PathBuilder) TableIndex(db, schema, table, index string) string {
	return filepath.Join(p.TableDir(db, schema, table), "idx_"+index+"_"+table+".dat")
}

// TableLockFile returns the path of a table's OS-level resource lock,
// held for the duration of one operator call (see TableLock).
func (p *PathBuilder) TableLockFile(db, schema, table string) string {
	return filepath.Join(p.TableDir(db, schema, table), "table.lock")
}

// FileManager performs directory/file lifecycle operations relative to a
// PathBuilder's root, mirroring original_source's FileManager.
type FileManager struct {
	paths *PathBuilder
}

// NewFileManager creates a FileManager rooted at paths.
func NewFileManager(paths *PathBuilder) *FileManager { return &FileManager{paths: paths} }

// CreateDirectory makes path and any missing parents.
func (fm *FileManager) CreateDirectory(path string) error {
	return os.MkdirAll(path, 0o755)
}

// CreateFile creates an empty file at path, truncating it if present.
func (fm *FileManager) CreateFile(path string) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	return f.Close()
}

// PathExists reports whether path exists.
func (fm *FileManager) PathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
