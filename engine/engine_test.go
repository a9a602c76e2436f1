package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/jlang/reldb/index/isam"
)

func openTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return e
}

func mustExec(t *testing.T, e *Engine, sql string) Result {
	t.Helper()
	r, err := e.Execute(context.Background(), sql)
	if err != nil {
		t.Fatalf("exec %q: %v", sql, err)
	}
	return r
}

func setupShop(t *testing.T, e *Engine) {
	t.Helper()
	mustExec(t, e, "CREATE DATABASE shop")
	mustExec(t, e, "CREATE SCHEMA shop.public")
	mustExec(t, e, "CREATE TABLE shop.public.products (id INT, product_name VARCHAR(30), price DOUBLE)")
}

func TestInsertThenSelectEqualityViaPrimary(t *testing.T) {
	e := openTestEngine(t)
	setupShop(t, e)
	mustExec(t, e, "INSERT INTO shop.public.products (id, product_name, price) VALUES (1, 'Gouda Cheese', 5.5), (2, 'Brie', 7.25)")

	r := mustExec(t, e, "SELECT * FROM shop.public.products WHERE id = 2")
	if len(r.Rows) != 1 || r.Rows[0]["product_name"] != "Brie" {
		t.Fatalf("unexpected rows: %+v", r.Rows)
	}
}

// TestEqualityOnUnindexedColumnFallsBackToHeapScan exercises the
// redesigned index-selection rule: a predicate on a column with no
// attached index must never silently consult an unrelated index.
func TestEqualityOnUnindexedColumnFallsBackToHeapScan(t *testing.T) {
	e := openTestEngine(t)
	setupShop(t, e)
	mustExec(t, e, "INSERT INTO shop.public.products (id, product_name, price) VALUES (1, 'Gouda Cheese', 5.5), (2, 'Brie', 7.25)")

	r := mustExec(t, e, "SELECT * FROM shop.public.products WHERE product_name = 'Brie'")
	if len(r.Rows) != 1 || r.Rows[0]["id"].(int32) != 2 {
		t.Fatalf("unexpected rows: %+v", r.Rows)
	}
}

func TestCreateIndexBackfillsExistingRows(t *testing.T) {
	e := openTestEngine(t)
	setupShop(t, e)
	mustExec(t, e, "INSERT INTO shop.public.products (id, product_name, price) VALUES (1, 'Gouda Cheese', 5.5), (2, 'Brie', 7.25)")

	mustExec(t, e, "CREATE INDEX by_name ON shop.public.products USING AVL(product_name)")

	r := mustExec(t, e, "SELECT * FROM shop.public.products WHERE product_name = 'Brie'")
	if len(r.Rows) != 1 || r.Rows[0]["id"].(int32) != 2 {
		t.Fatalf("backfilled index lookup failed: %+v", r.Rows)
	}
}

func TestBetweenUsesOrderedRangeScan(t *testing.T) {
	e := openTestEngine(t)
	mustExec(t, e, "CREATE DATABASE shop")
	mustExec(t, e, "CREATE SCHEMA shop.public")
	mustExec(t, e, "CREATE TABLE shop.public.employees (id INT, name VARCHAR(20))")
	mustExec(t, e, "INSERT INTO shop.public.employees (id, name) VALUES (1, 'a'), (10, 'b'), (20, 'c'), (30, 'd')")

	r := mustExec(t, e, "SELECT * FROM shop.public.employees WHERE id BETWEEN 5 AND 20")
	if len(r.Rows) != 2 {
		t.Fatalf("expected 2 rows in range, got %d: %+v", len(r.Rows), r.Rows)
	}
}

func TestDeleteTombstonesAndUpdatesIndexes(t *testing.T) {
	e := openTestEngine(t)
	setupShop(t, e)
	mustExec(t, e, "INSERT INTO shop.public.products (id, product_name, price) VALUES (1, 'Gouda Cheese', 5.5), (2, 'Brie', 7.25)")

	mustExec(t, e, "DELETE FROM shop.public.products WHERE id = 1")

	r := mustExec(t, e, "SELECT * FROM shop.public.products WHERE id = 1")
	if len(r.Rows) != 0 {
		t.Fatalf("expected deleted row to be invisible, got %+v", r.Rows)
	}
	all := mustExec(t, e, "SELECT * FROM shop.public.products")
	if len(all.Rows) != 1 {
		t.Fatalf("expected 1 surviving row, got %d", len(all.Rows))
	}
}

// TestSpatialRangeQuery mirrors scenario S6: insert five Peruvian cities
// and confirm the bounding box selects only Cusco and Puno.
func TestSpatialRangeQuery(t *testing.T) {
	e := openTestEngine(t)
	mustExec(t, e, "CREATE DATABASE geo")
	mustExec(t, e, "CREATE SCHEMA geo.public")
	mustExec(t, e, "CREATE TABLE geo.public.cities (id INT, x DOUBLE, y DOUBLE)")
	mustExec(t, e, "CREATE INDEX by_location ON geo.public.cities USING RTREE(x)")

	mustExec(t, e, "INSERT INTO geo.public.cities (id, x, y) VALUES "+
		"(1, -12.05, -77.04), (2, -13.53, -71.97), (3, -16.41, -71.54), (4, -15.84, -70.02), (5, -8.11, -79.03)")

	r := mustExec(t, e, "SELECT * FROM geo.public.cities WHERE x BETWEEN -16 AND -12 AND y BETWEEN -75 AND -70")
	if len(r.Rows) != 2 {
		t.Fatalf("expected 2 cities in range, got %d: %+v", len(r.Rows), r.Rows)
	}
	ids := map[int32]bool{}
	for _, row := range r.Rows {
		ids[row["id"].(int32)] = true
	}
	if !ids[2] || !ids[4] {
		t.Fatalf("expected Cusco(2) and Puno(4), got %+v", ids)
	}
}

func TestCopyIngestsCSVSkippingHeader(t *testing.T) {
	e := openTestEngine(t)
	setupShop(t, e)

	csvPath := filepath.Join(t.TempDir(), "products.csv")
	content := "id,product_name,price\n1,Gouda Cheese,5.5\n2,Brie,7.25\n"
	if err := os.WriteFile(csvPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	mustExec(t, e, "COPY shop.public.products FROM '"+csvPath+"'")

	r := mustExec(t, e, "SELECT * FROM shop.public.products")
	if len(r.Rows) != 2 {
		t.Fatalf("expected 2 rows from CSV, got %d", len(r.Rows))
	}
}

// TestCreateIndexISAMBackfillBulkLoadsMultiPartitionRoot mirrors scenario
// S4: CREATE INDEX ... USING ISAM on an already-populated table must bulk
// load via Build, producing a root with one entry per leaf partition,
// never the degenerate single-entry root row-by-row Insert would leave.
func TestCreateIndexISAMBackfillBulkLoadsMultiPartitionRoot(t *testing.T) {
	e := openTestEngine(t)
	mustExec(t, e, "CREATE DATABASE shop")
	mustExec(t, e, "CREATE SCHEMA shop.public")
	mustExec(t, e, "CREATE TABLE shop.public.orders (id INT, amount DOUBLE)")

	var values []string
	for i := 0; i < 25; i++ {
		values = append(values, fmt.Sprintf("(%d, %d.0)", i, i))
	}
	mustExec(t, e, "INSERT INTO shop.public.orders (id, amount) VALUES "+joinValues(values))
	mustExec(t, e, "CREATE INDEX by_id ON shop.public.orders USING ISAM(id)")

	table, err := e.catalog.GetTable("shop", "public", "orders")
	if err != nil {
		t.Fatalf("get table: %v", err)
	}
	var indexFile string
	for _, im := range table.Indexes {
		if im.Name == "by_id" {
			indexFile = im.File
		}
	}
	if indexFile == "" {
		t.Fatalf("index by_id not found in catalog: %+v", table.Indexes)
	}

	idx, err := isam.Open(indexFile)
	if err != nil {
		t.Fatalf("open isam file: %v", err)
	}
	defer idx.Close()

	rootEntries, err := idx.RootEntryCount()
	if err != nil {
		t.Fatalf("root entry count: %v", err)
	}
	leafBlocks, err := idx.LeafBlockCount()
	if err != nil {
		t.Fatalf("leaf block count: %v", err)
	}
	if rootEntries < 2 {
		t.Fatalf("expected a multi-partition root (>=2 entries), got %d", rootEntries)
	}
	if leafBlocks < 3 {
		t.Fatalf("expected >=3 leaf blocks for 25 keys at the default block factor, got %d", leafBlocks)
	}
}

func joinValues(values []string) string {
	out := values[0]
	for _, v := range values[1:] {
		out += ", " + v
	}
	return out
}

func TestReconcileRebuildsIndexesFromHeap(t *testing.T) {
	e := openTestEngine(t)
	setupShop(t, e)
	mustExec(t, e, "INSERT INTO shop.public.products (id, product_name, price) VALUES (1, 'Gouda Cheese', 5.5), (2, 'Brie', 7.25)")

	if err := e.Reconcile("shop", "public", "products"); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	r := mustExec(t, e, "SELECT * FROM shop.public.products WHERE id = 2")
	if len(r.Rows) != 1 || r.Rows[0]["product_name"] != "Brie" {
		t.Fatalf("unexpected rows after reconcile: %+v", r.Rows)
	}
}
