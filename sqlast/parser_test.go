package sqlast

import (
	"testing"

	"github.com/jlang/reldb/codec"
)

func TestParseCreateTable(t *testing.T) {
	stmt, err := Parse("CREATE TABLE shop.public.customers (id INT, name VARCHAR(20) NOT NULL)")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	ct, ok := stmt.(CreateTable)
	if !ok {
		t.Fatalf("expected CreateTable, got %T", stmt)
	}
	if ct.DB != "shop" || ct.Schema != "public" || ct.Name != "customers" {
		t.Fatalf("unexpected qualified name: %+v", ct)
	}
	if len(ct.Columns) != 2 {
		t.Fatalf("expected 2 columns, got %d", len(ct.Columns))
	}
	if ct.Columns[0].Tag != codec.INT || ct.Columns[0].Len != 4 {
		t.Fatalf("unexpected id column: %+v", ct.Columns[0])
	}
	if ct.Columns[1].Tag != codec.VARCHAR || ct.Columns[1].Len != 20 || !ct.Columns[1].NotNull {
		t.Fatalf("unexpected name column: %+v", ct.Columns[1])
	}
}

func TestParseCreateIndex(t *testing.T) {
	stmt, err := Parse("CREATE INDEX by_name ON shop.public.customers USING HASH(name)")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	ci, ok := stmt.(CreateIndex)
	if !ok {
		t.Fatalf("expected CreateIndex, got %T", stmt)
	}
	if ci.Name != "by_name" || ci.Using != "HASH" || ci.Column != "name" {
		t.Fatalf("unexpected: %+v", ci)
	}
}

func TestParseInsertMultiRow(t *testing.T) {
	stmt, err := Parse("INSERT INTO shop.public.customers (id, name) VALUES (1, 'Ana'), (2, 'Bob')")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	ins, ok := stmt.(InsertInto)
	if !ok {
		t.Fatalf("expected InsertInto, got %T", stmt)
	}
	if len(ins.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(ins.Rows))
	}
	if ins.Rows[0][0].(int64) != 1 || ins.Rows[0][1].(string) != "Ana" {
		t.Fatalf("unexpected row 0: %+v", ins.Rows[0])
	}
	if ins.Rows[1][1].(string) != "Bob" {
		t.Fatalf("unexpected row 1: %+v", ins.Rows[1])
	}
}

func TestParseSelectEquality(t *testing.T) {
	stmt, err := Parse("SELECT * FROM shop.public.products WHERE product_name = 'Gouda Cheese'")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	sel, ok := stmt.(Select)
	if !ok {
		t.Fatalf("expected Select, got %T", stmt)
	}
	eq, ok := sel.Where.(EqPredicate)
	if !ok {
		t.Fatalf("expected EqPredicate, got %T", sel.Where)
	}
	if eq.Column != "product_name" || eq.Value.(string) != "Gouda Cheese" {
		t.Fatalf("unexpected predicate: %+v", eq)
	}
}

func TestParseSelectBetween(t *testing.T) {
	stmt, err := Parse("SELECT * FROM shop.public.employees WHERE id BETWEEN 5 AND 20")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	sel := stmt.(Select)
	between, ok := sel.Where.(BetweenPredicate)
	if !ok {
		t.Fatalf("expected BetweenPredicate, got %T", sel.Where)
	}
	if between.Low.(int64) != 5 || between.High.(int64) != 20 {
		t.Fatalf("unexpected range: %+v", between)
	}
}

func TestParseSelectSpatialRange(t *testing.T) {
	stmt, err := Parse("SELECT * FROM shop.public.cities WHERE x BETWEEN -16 AND -12 AND y BETWEEN -75 AND -70")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	sel := stmt.(Select)
	sp, ok := sel.Where.(SpatialPredicate)
	if !ok {
		t.Fatalf("expected SpatialPredicate, got %T", sel.Where)
	}
	if sp.XLow != -16 || sp.XHigh != -12 || sp.YLow != -75 || sp.YHigh != -70 {
		t.Fatalf("unexpected ranges: %+v", sp)
	}
}

func TestParseDeleteRequiresEquality(t *testing.T) {
	stmt, err := Parse("DELETE FROM shop.public.customers WHERE id = 2")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	del, ok := stmt.(Delete)
	if !ok {
		t.Fatalf("expected Delete, got %T", stmt)
	}
	if del.Where.Column != "id" || del.Where.Value.(int64) != 2 {
		t.Fatalf("unexpected predicate: %+v", del.Where)
	}

	if _, err := Parse("DELETE FROM shop.public.customers WHERE id BETWEEN 1 AND 2"); err == nil {
		t.Fatalf("expected error for non-equality DELETE predicate")
	}
}

func TestParseCopy(t *testing.T) {
	stmt, err := Parse("COPY shop.public.customers FROM 'customers.csv'")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	cp, ok := stmt.(Copy)
	if !ok {
		t.Fatalf("expected Copy, got %T", stmt)
	}
	if cp.Path != "customers.csv" {
		t.Fatalf("unexpected path: %q", cp.Path)
	}
}
