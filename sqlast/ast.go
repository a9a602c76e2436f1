package sqlast

import "github.com/jlang/reldb/codec"

// Statement is implemented by every parsed statement kind.
type Statement interface{ statement() }

// ColumnDef is one column in a CREATE TABLE's column list.
type ColumnDef struct {
	Name       string
	Tag        codec.Tag
	Len        int
	NotNull    bool
	HasDefault bool
}

// CreateDatabase is `CREATE DATABASE <name>`.
type CreateDatabase struct{ Name string }

// CreateSchema is `CREATE SCHEMA <db>.<name>`.
type CreateSchema struct{ DB, Name string }

// CreateTable is `CREATE TABLE <db>.<schema>.<name> (...)`.
type CreateTable struct {
	DB, Schema, Name string
	Columns          []ColumnDef
}

// CreateIndex is `CREATE INDEX <name> ON <db>.<schema>.<table> USING <type>(<col>)`.
type CreateIndex struct {
	Name             string
	DB, Schema, Table string
	Using            string
	Column           string
}

// InsertInto is `INSERT INTO <db>.<schema>.<table> (<cols>) VALUES (...), ...`.
type InsertInto struct {
	DB, Schema, Table string
	Columns           []string
	Rows              [][]any
}

// Copy is `COPY <db>.<schema>.<table> FROM '<path.csv>'`.
type Copy struct {
	DB, Schema, Table string
	Path              string
}

// Predicate is implemented by every WHERE clause shape this grammar
// accepts: equality, BETWEEN, and the four-range spatial conjunction.
type Predicate interface{ predicate() }

// EqPredicate is `<col> = <value>`.
type EqPredicate struct {
	Column string
	Value  any
}

// BetweenPredicate is `<col> BETWEEN <low> AND <high>`.
type BetweenPredicate struct {
	Column     string
	Low, High  any
}

// SpatialPredicate is `<xcol> BETWEEN <xlo> AND <xhi> AND <ycol> BETWEEN <ylo> AND <yhi>`.
type SpatialPredicate struct {
	XColumn          string
	XLow, XHigh      float64
	YColumn          string
	YLow, YHigh      float64
}

func (EqPredicate) predicate()       {}
func (BetweenPredicate) predicate()  {}
func (SpatialPredicate) predicate()  {}

// Select is `SELECT <cols|*> FROM <db>.<schema>.<table> [WHERE ...]`.
type Select struct {
	DB, Schema, Table string
	Columns           []string // nil/empty means "*"
	Where             Predicate
}

// Delete is `DELETE FROM <db>.<schema>.<table> WHERE <col> = <v>`.
type Delete struct {
	DB, Schema, Table string
	Where             EqPredicate
}

func (CreateDatabase) statement() {}
func (CreateSchema) statement()   {}
func (CreateTable) statement()    {}
func (CreateIndex) statement()    {}
func (InsertInto) statement()     {}
func (Copy) statement()           {}
func (Select) statement()         {}
func (Delete) statement()         {}
