// Package reldb is the module's root facade: it re-exports engine.Engine
// as the single entry point a caller needs, per spec.md §5 ("the database
// is consumed as a library... an Engine type exposing Open and Execute").
package reldb

import "github.com/jlang/reldb/engine"

// Engine is the relational storage engine: a catalog plus the heap and
// index files every attached table owns. Open one per data directory.
type Engine = engine.Engine

// Row and Result mirror engine's statement-result shapes for callers that
// only import the root package.
type Row = engine.Row
type Result = engine.Result

// Open opens (or initializes) the engine rooted at dir.
func Open(dir string) (*Engine, error) {
	return engine.Open(dir)
}
