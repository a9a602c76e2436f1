// Package engine dispatches parsed SQL statements against the catalog,
// heap files, and indexes — the operator layer spec.md §4.10 describes,
// grounded on original_source's engine/executor.py + engine/operators/*.py.
package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/jlang/reldb/catalog"
	"github.com/jlang/reldb/record"
	"github.com/jlang/reldb/sqlast"
	"github.com/jlang/reldb/storage"
)

// Row is one materialized result row, keyed by column name.
type Row map[string]any

// Result is what Execute returns for one statement: either a status
// message (DDL/INSERT/COPY/DELETE) or a row list (SELECT).
type Result struct {
	Message string
	Rows    []Row
}

// Engine is the root facade: one open catalog plus a coarse per-database
// mutex serializing every statement against that database, per spec §5 /
// SPEC_FULL §7.
type Engine struct {
	catalog *catalog.Manager

	mu      sync.Mutex // guards dbLocks
	dbLocks map[string]*sync.Mutex
}

// Open opens (or initializes) the catalog rooted at dir.
func Open(dir string) (*Engine, error) {
	cat, err := catalog.Open(dir)
	if err != nil {
		return nil, err
	}
	return &Engine{catalog: cat, dbLocks: map[string]*sync.Mutex{}}, nil
}

func (e *Engine) lockFor(db string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.dbLocks[db]
	if !ok {
		l = &sync.Mutex{}
		e.dbLocks[db] = l
	}
	return l
}

// Execute parses and runs one SQL statement.
func (e *Engine) Execute(ctx context.Context, sql string) (Result, error) {
	stmt, err := sqlast.Parse(sql)
	if err != nil {
		return Result{}, err
	}

	db := statementDatabase(stmt)
	lock := e.lockFor(db)
	lock.Lock()
	defer lock.Unlock()

	switch s := stmt.(type) {
	case sqlast.CreateDatabase:
		return e.execCreateDatabase(s)
	case sqlast.CreateSchema:
		return e.execCreateSchema(s)
	case sqlast.CreateTable:
		return e.execCreateTable(s)
	case sqlast.CreateIndex:
		return e.execCreateIndex(s)
	case sqlast.InsertInto:
		return e.execInsert(s)
	case sqlast.Copy:
		return e.execCopy(s)
	case sqlast.Select:
		return e.execSelect(s)
	case sqlast.Delete:
		return e.execDelete(s)
	default:
		return Result{}, fmt.Errorf("engine: unhandled statement type %T", stmt)
	}
}

// statementDatabase extracts the database name a statement targets, used
// to pick which per-database mutex serializes it. CreateDatabase itself
// has no target database yet, so it locks under its own new name.
func statementDatabase(stmt sqlast.Statement) string {
	switch s := stmt.(type) {
	case sqlast.CreateDatabase:
		return s.Name
	case sqlast.CreateSchema:
		return s.DB
	case sqlast.CreateTable:
		return s.DB
	case sqlast.CreateIndex:
		return s.DB
	case sqlast.InsertInto:
		return s.DB
	case sqlast.Copy:
		return s.DB
	case sqlast.Select:
		return s.DB
	case sqlast.Delete:
		return s.DB
	default:
		return ""
	}
}

// packerFor builds a record.Packer from a table's catalog column list.
func packerFor(table catalog.Table) *record.Packer {
	fields := make([]record.Field, len(table.Columns))
	for i, c := range table.Columns {
		fields[i] = record.Field{Name: c.Name, Tag: c.Tag, MaxLen: c.Width}
	}
	return record.NewPacker(record.Schema{Fields: fields})
}

// rowFromValues renders a positional value slice into a Row keyed by
// column name, for SELECT materialization.
func rowFromValues(table catalog.Table, values []any) Row {
	row := make(Row, len(values))
	for i, v := range values {
		row[table.Columns[i].Name] = v
	}
	return row
}

// withTableLock wraps fn in an OS-level table resource lock (storage.TableLock),
// on top of the in-process per-database mutex Execute already holds. This is
// what lets Reconcile (or an external process) coordinate with an in-flight
// operator call at the file level, not just within one engine instance.
func (e *Engine) withTableLock(db, schema, table string, mode storage.LockMode, fn func() error) error {
	lockPath := e.catalog.LockPath(db, schema, table)
	tl, err := storage.OpenTableLock(lockPath)
	if err != nil {
		return fmt.Errorf("engine: opening table lock: %w", err)
	}
	defer tl.Close()

	if err := tl.Lock(mode); err != nil {
		return fmt.Errorf("engine: acquiring table lock: %w", err)
	}
	defer tl.Unlock()

	return fn()
}
