package catalog

import (
	"testing"

	"github.com/jlang/reldb/codec"
	"github.com/jlang/reldb/index"
)

func mustOpen(t *testing.T) *Manager {
	t.Helper()
	m, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return m
}

func TestCreateDatabaseSchemaTable(t *testing.T) {
	m := mustOpen(t)

	if err := m.CreateDatabase("shop"); err != nil {
		t.Fatalf("create database: %v", err)
	}
	if err := m.CreateSchema("shop", "public"); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	columns := []Column{
		{Name: "id", Tag: codec.INT, Width: 4},
		{Name: "name", Tag: codec.VARCHAR, Width: 20},
	}
	table, err := m.CreateTable("shop", "public", "customers", columns)
	if err != nil {
		t.Fatalf("create table: %v", err)
	}
	if len(table.Indexes) != 1 || table.Indexes[0].Name != "pk" || !table.Indexes[0].IsPrimary {
		t.Fatalf("expected a single primary pk index, got %+v", table.Indexes)
	}
	if table.Indexes[0].Type != index.BTREE {
		t.Fatalf("expected pk index type BTREE, got %v", table.Indexes[0].Type)
	}

	got, err := m.GetTable("shop", "public", "customers")
	if err != nil {
		t.Fatalf("get table: %v", err)
	}
	if got.Name != "customers" || len(got.Columns) != 2 {
		t.Fatalf("unexpected table: %+v", got)
	}
}

func TestDuplicateNameRejected(t *testing.T) {
	m := mustOpen(t)
	if err := m.CreateDatabase("shop"); err != nil {
		t.Fatalf("create database: %v", err)
	}
	if err := m.CreateDatabase("shop"); err == nil {
		t.Fatalf("expected duplicate database name to fail")
	}
}

func TestIdsIncreaseWithinParentScope(t *testing.T) {
	m := mustOpen(t)
	if err := m.CreateDatabase("a"); err != nil {
		t.Fatalf("create a: %v", err)
	}
	if err := m.CreateDatabase("b"); err != nil {
		t.Fatalf("create b: %v", err)
	}
	dbs := m.GetDatabases()
	ids := map[string]int{}
	for _, db := range dbs {
		ids[db.Name] = db.ID
	}
	if ids["a"] != 1 || ids["b"] != 2 {
		t.Fatalf("expected sequential ids 1,2, got %+v", ids)
	}
}

func TestCreateIndexAttachesAndOpens(t *testing.T) {
	m := mustOpen(t)
	if err := m.CreateDatabase("shop"); err != nil {
		t.Fatalf("create database: %v", err)
	}
	if err := m.CreateSchema("shop", "public"); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	columns := []Column{
		{Name: "id", Tag: codec.INT, Width: 4},
		{Name: "name", Tag: codec.VARCHAR, Width: 20},
	}
	if _, err := m.CreateTable("shop", "public", "customers", columns); err != nil {
		t.Fatalf("create table: %v", err)
	}

	meta, handle, sp, err := m.CreateIndex("shop", "public", "customers", "by_name", index.HASH, 1, false)
	if err != nil {
		t.Fatalf("create index: %v", err)
	}
	if sp != nil {
		t.Fatalf("expected nil spatial handle for a HASH index")
	}
	if err := handle.Insert("Ana", 0); err != nil {
		t.Fatalf("insert into new index: %v", err)
	}
	if err := handle.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	table, err := m.GetTable("shop", "public", "customers")
	if err != nil {
		t.Fatalf("get table: %v", err)
	}
	if len(table.Indexes) != 2 {
		t.Fatalf("expected pk + by_name, got %d indexes", len(table.Indexes))
	}
	if table.Indexes[1].ID != meta.ID {
		t.Fatalf("index id mismatch: %d vs %d", table.Indexes[1].ID, meta.ID)
	}
}

func TestCallbacksForOpensEveryAttachedIndex(t *testing.T) {
	m := mustOpen(t)
	if err := m.CreateDatabase("shop"); err != nil {
		t.Fatalf("create database: %v", err)
	}
	if err := m.CreateSchema("shop", "public"); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	columns := []Column{
		{Name: "id", Tag: codec.INT, Width: 4},
		{Name: "name", Tag: codec.VARCHAR, Width: 20},
	}
	if _, err := m.CreateTable("shop", "public", "customers", columns); err != nil {
		t.Fatalf("create table: %v", err)
	}
	_, handle, _, err := m.CreateIndex("shop", "public", "customers", "by_name", index.AVL, 1, false)
	if err != nil {
		t.Fatalf("create index: %v", err)
	}
	handle.Close()

	table, callbacks, err := m.CallbacksFor("shop", "public", "customers")
	if err != nil {
		t.Fatalf("callbacks for: %v", err)
	}
	defer CloseCallbacks(callbacks)

	if table.Name != "customers" {
		t.Fatalf("unexpected table: %+v", table)
	}
	if len(callbacks) != 2 {
		t.Fatalf("expected 2 callbacks (pk + by_name), got %d", len(callbacks))
	}
	var sawPK, sawByName bool
	for _, cb := range callbacks {
		if cb.ColumnPosition == 0 && cb.Type == index.BTREE {
			sawPK = true
		}
		if cb.ColumnPosition == 1 && cb.Type == index.AVL {
			sawByName = true
		}
	}
	if !sawPK || !sawByName {
		t.Fatalf("callbacks missing expected entries: %+v", callbacks)
	}
}

func TestPositionOfColumn(t *testing.T) {
	table := Table{Columns: []Column{{Name: "id"}, {Name: "name"}}}
	if table.PositionOfColumn("name") != 1 {
		t.Fatalf("expected position 1")
	}
	if table.PositionOfColumn("missing") != -1 {
		t.Fatalf("expected -1 for missing column")
	}
}
