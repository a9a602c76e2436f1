package catalog

import (
	"fmt"
	"time"

	"github.com/jlang/reldb/index"
	"github.com/jlang/reldb/index/spatial"
	"github.com/jlang/reldb/storage"
)

// Manager is the catalog's entry point: the global catalog blob plus
// path/file helpers, mirroring original_source's CatalogManager.
type Manager struct {
	paths   *storage.PathBuilder
	files   *storage.FileManager
	catalog globalCatalog
}

// Open loads or initializes the catalog rooted at dir, per
// CatalogManager.__init__: create system/ if missing, load the existing
// blob, or seed a fresh one.
func Open(dir string) (*Manager, error) {
	paths := storage.NewPathBuilder(dir)
	files := storage.NewFileManager(paths)

	if err := files.CreateDirectory(paths.BaseDir()); err != nil {
		return nil, err
	}
	if err := files.CreateDirectory(paths.SystemDir()); err != nil {
		return nil, err
	}

	m := &Manager{paths: paths, files: files}
	if files.PathExists(paths.CatalogFile()) {
		if err := storage.ReadBlob(paths.CatalogFile(), &m.catalog); err != nil {
			return nil, err
		}
		return m, nil
	}
	m.catalog = globalCatalog{
		Databases: map[string]Database{},
		Version:   catalogVersion,
		CreatedAt: time.Now().UTC(),
	}
	if err := m.save(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) save() error {
	return storage.WriteBlob(m.paths.CatalogFile(), m.catalog)
}

// CreateDatabase registers a new database and its directory/metadata.
func (m *Manager) CreateDatabase(name string) error {
	if _, exists := m.catalog.Databases[name]; exists {
		return fmt.Errorf("%w: database %q", ErrDuplicateName, name)
	}
	if err := m.files.CreateDirectory(m.paths.DatabaseDir(name)); err != nil {
		return err
	}
	id := m.generateDatabaseID()
	db := Database{ID: id, Name: name, Schemas: map[string]int{}, CreatedAt: time.Now().UTC()}
	if err := storage.WriteBlob(m.paths.DatabaseMeta(name), db); err != nil {
		return err
	}
	m.catalog.Databases[name] = db
	return m.save()
}

// CreateSchema registers a new schema under db.
func (m *Manager) CreateSchema(db, name string) error {
	database, ok := m.catalog.Databases[db]
	if !ok {
		return fmt.Errorf("%w: %q", ErrDatabaseNotFound, db)
	}
	if _, exists := database.Schemas[name]; exists {
		return fmt.Errorf("%w: schema %q", ErrDuplicateName, name)
	}
	if err := m.files.CreateDirectory(m.paths.SchemaDir(db, name)); err != nil {
		return err
	}
	schemaID := m.generateSchemaID(database)
	database.Schemas[name] = schemaID
	schema := Schema{ID: schemaID, Name: name, DatabaseID: database.ID, Tables: map[string]int{}}
	if err := storage.WriteBlob(m.paths.SchemaMeta(db, name), schema); err != nil {
		return err
	}
	if err := storage.WriteBlob(m.paths.DatabaseMeta(db), database); err != nil {
		return err
	}
	m.catalog.Databases[db] = database
	return m.save()
}

// CreateTable registers a new table and atomically attaches a primary B+
// tree index named "pk" over column 0, per spec §4.9/invariant 2.
func (m *Manager) CreateTable(db, schema, name string, columns []Column) (Table, error) {
	schemaMeta, err := m.GetSchema(db, schema)
	if err != nil {
		return Table{}, err
	}
	if _, exists := schemaMeta.Tables[name]; exists {
		return Table{}, fmt.Errorf("%w: table %q", ErrDuplicateName, name)
	}
	if len(columns) == 0 {
		return Table{}, fmt.Errorf("catalog: table %q must have at least one column", name)
	}

	if err := m.files.CreateDirectory(m.paths.TableDir(db, schema, name)); err != nil {
		return Table{}, err
	}
	if err := m.files.CreateFile(m.paths.TableData(db, schema, name)); err != nil {
		return Table{}, err
	}

	tableID := m.generateTableID(schemaMeta)
	pk := IndexMeta{
		ID:        1,
		Type:      index.BTREE,
		Name:      "pk",
		File:      m.paths.TableIndex(db, schema, name, "pk"),
		Columns:   []int{0},
		IsPrimary: true,
	}
	handle, _, err := openIndexHandle(pk, columns[0], true)
	if err != nil {
		return Table{}, err
	}
	if err := handle.Close(); err != nil {
		return Table{}, err
	}

	table := Table{
		ID:       tableID,
		Name:     name,
		SchemaID: schemaMeta.ID,
		Tuples:   0,
		Pages:    1,
		PageSize: 8192,
		Columns:  columns,
		Indexes:  []IndexMeta{pk},
	}
	if err := storage.WriteBlob(m.paths.TableMeta(db, schema, name), table); err != nil {
		return Table{}, err
	}

	schemaMeta.Tables[name] = tableID
	if err := storage.WriteBlob(m.paths.SchemaMeta(db, schema), schemaMeta); err != nil {
		return Table{}, err
	}
	return table, nil
}

// CreateIndex creates a new index's backing file and registers it on the
// table. It returns the opened handle so the engine can back-fill it from
// the heap when the table is non-empty (spec §4.9/§4.10); the caller
// closes the handle when done.
func (m *Manager) CreateIndex(db, schema, table, name string, typ index.Type, columnPos int, isPrimary bool) (IndexMeta, index.Index, *spatial.Index, error) {
	tableMeta, err := m.GetTable(db, schema, table)
	if err != nil {
		return IndexMeta{}, nil, nil, err
	}
	for _, existing := range tableMeta.Indexes {
		if existing.Name == name {
			return IndexMeta{}, nil, nil, fmt.Errorf("%w: index %q", ErrDuplicateName, name)
		}
		if isPrimary && existing.IsPrimary {
			return IndexMeta{}, nil, nil, ErrPrimaryExists
		}
	}
	if columnPos < 0 || columnPos >= len(tableMeta.Columns) {
		return IndexMeta{}, nil, nil, fmt.Errorf("%w: column position %d", ErrColumnNotFound, columnPos)
	}

	meta := IndexMeta{
		ID:        m.generateIndexID(tableMeta),
		Type:      typ,
		Name:      name,
		File:      m.paths.TableIndex(db, schema, table, name),
		Columns:   []int{columnPos},
		IsPrimary: isPrimary,
	}
	handle, sp, err := openIndexHandle(meta, tableMeta.Columns[columnPos], true)
	if err != nil {
		return IndexMeta{}, nil, nil, err
	}

	tableMeta.Indexes = append(tableMeta.Indexes, meta)
	if err := storage.WriteBlob(m.paths.TableMeta(db, schema, table), tableMeta); err != nil {
		return IndexMeta{}, nil, nil, err
	}
	return meta, handle, sp, nil
}

// CallbacksFor opens every index attached to a table for the duration of
// one operator call and returns its callback table: index id ->
// (handle, key column position), per spec §4.9's "callback tables". The
// caller must close every non-nil Handle when done; CloseCallbacks does
// this. Spatial handles are in-memory and have nothing to close.
func (m *Manager) CallbacksFor(db, schema, table string) (Table, []Callback, error) {
	tableMeta, err := m.GetTable(db, schema, table)
	if err != nil {
		return Table{}, nil, err
	}
	callbacks := make([]Callback, 0, len(tableMeta.Indexes))
	for _, meta := range tableMeta.Indexes {
		col := tableMeta.Columns[meta.Columns[0]]
		handle, sp, err := openIndexHandle(meta, col, false)
		if err != nil {
			closeCallbacks(callbacks)
			return Table{}, nil, fmt.Errorf("catalog: opening index %q: %w", meta.Name, err)
		}
		callbacks = append(callbacks, Callback{
			IndexID:        meta.ID,
			Type:           meta.Type,
			ColumnPosition: meta.Columns[0],
			Handle:         handle,
			Spatial:        sp,
		})
	}
	return tableMeta, callbacks, nil
}

// CloseCallbacks flushes and closes every opened index handle in cbs.
func CloseCallbacks(cbs []Callback) { closeCallbacks(cbs) }

func closeCallbacks(cbs []Callback) {
	for _, cb := range cbs {
		if cb.Handle != nil {
			cb.Handle.Close()
		}
	}
}

// GetDatabases returns every registered database.
func (m *Manager) GetDatabases() []Database {
	out := make([]Database, 0, len(m.catalog.Databases))
	for _, db := range m.catalog.Databases {
		out = append(out, db)
	}
	return out
}

// GetSchema loads one schema's metadata blob.
func (m *Manager) GetSchema(db, schema string) (Schema, error) {
	database, ok := m.catalog.Databases[db]
	if !ok {
		return Schema{}, fmt.Errorf("%w: %q", ErrDatabaseNotFound, db)
	}
	if _, exists := database.Schemas[schema]; !exists {
		return Schema{}, fmt.Errorf("%w: %q", ErrSchemaNotFound, schema)
	}
	var s Schema
	if err := storage.ReadBlob(m.paths.SchemaMeta(db, schema), &s); err != nil {
		return Schema{}, err
	}
	return s, nil
}

// GetSchemas returns every schema registered under db.
func (m *Manager) GetSchemas(db string) ([]Schema, error) {
	database, ok := m.catalog.Databases[db]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrDatabaseNotFound, db)
	}
	out := make([]Schema, 0, len(database.Schemas))
	for name := range database.Schemas {
		s, err := m.GetSchema(db, name)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// GetTable loads one table's metadata blob.
func (m *Manager) GetTable(db, schema, table string) (Table, error) {
	schemaMeta, err := m.GetSchema(db, schema)
	if err != nil {
		return Table{}, err
	}
	if _, exists := schemaMeta.Tables[table]; !exists {
		return Table{}, fmt.Errorf("%w: %q", ErrTableNotFound, table)
	}
	var t Table
	if err := storage.ReadBlob(m.paths.TableMeta(db, schema, table), &t); err != nil {
		return Table{}, err
	}
	return t, nil
}

// GetTables returns every table registered under db.schema.
func (m *Manager) GetTables(db, schema string) ([]Table, error) {
	schemaMeta, err := m.GetSchema(db, schema)
	if err != nil {
		return nil, err
	}
	out := make([]Table, 0, len(schemaMeta.Tables))
	for name := range schemaMeta.Tables {
		t, err := m.GetTable(db, schema, name)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// SaveTable persists an updated table metadata blob (used after a tuple
// count change or a newly attached index).
func (m *Manager) SaveTable(db, schema string, t Table) error {
	return storage.WriteBlob(m.paths.TableMeta(db, schema, t.Name), t)
}

// HeapPath returns a table's heap file path.
func (m *Manager) HeapPath(db, schema, table string) string {
	return m.paths.TableData(db, schema, table)
}

// LockPath returns a table's OS-level resource lock file path.
func (m *Manager) LockPath(db, schema, table string) string {
	return m.paths.TableLockFile(db, schema, table)
}

func (m *Manager) generateDatabaseID() int {
	max := 0
	for _, db := range m.catalog.Databases {
		if db.ID > max {
			max = db.ID
		}
	}
	return max + 1
}

func (m *Manager) generateSchemaID(db Database) int {
	max := 0
	for _, id := range db.Schemas {
		if id > max {
			max = id
		}
	}
	return max + 1
}

func (m *Manager) generateTableID(schema Schema) int {
	max := 0
	for _, id := range schema.Tables {
		if id > max {
			max = id
		}
	}
	return max + 1
}

func (m *Manager) generateIndexID(table Table) int {
	max := 0
	for _, idx := range table.Indexes {
		if idx.ID > max {
			max = idx.ID
		}
	}
	return max + 1
}
