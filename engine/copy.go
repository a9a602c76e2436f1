package engine

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/jlang/reldb/catalog"
	"github.com/jlang/reldb/codec"
	"github.com/klauspost/compress/gzip"

	"github.com/jlang/reldb/sqlast"
)

// execCopy loads a CSV file, discarding the header line, grounded on
// original_source's Copy operator: every data row is cast first, then all
// rows go through one multi-row INSERT, which appends and indexes them one
// by one. A `.gz`-suffixed path is transparently gzip-decompressed first — the teacher's
// compress dependency repointed at ingestion buffering rather than
// on-disk page compression, which is a non-goal (spec §2 Non-goals).
func (e *Engine) execCopy(s sqlast.Copy) (Result, error) {
	table, err := e.catalog.GetTable(s.DB, s.Schema, s.Table)
	if err != nil {
		return Result{}, err
	}

	f, err := os.Open(s.Path)
	if err != nil {
		return Result{}, fmt.Errorf("engine: opening CSV %q: %w", s.Path, err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(strings.ToLower(s.Path), ".gz") {
		gr, err := gzip.NewReader(bufio.NewReader(f))
		if err != nil {
			return Result{}, fmt.Errorf("engine: opening gzip CSV %q: %w", s.Path, err)
		}
		defer gr.Close()
		r = gr
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	if _, err := reader.Read(); err == io.EOF {
		return Result{Message: "0 rows inserted"}, nil
	} else if err != nil {
		return Result{}, fmt.Errorf("engine: reading CSV header: %w", err)
	}

	var rows [][]any
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Result{}, fmt.Errorf("engine: reading CSV row: %w", err)
		}
		row, err := castRow(table, record)
		if err != nil {
			return Result{}, err
		}
		rows = append(rows, row)
	}

	return e.execInsert(sqlast.InsertInto{DB: s.DB, Schema: s.Schema, Table: s.Table, Rows: rows})
}

// castRow converts a CSV row's raw strings into typed values per column,
// mirroring original_source's Copy._cast helper: numeric tags parse to
// numbers, BOOLEAN parses to bool, everything else passes through as text.
func castRow(table catalog.Table, fields []string) ([]any, error) {
	if len(fields) != len(table.Columns) {
		return nil, fmt.Errorf("engine: CSV row has %d fields, table %q has %d columns", len(fields), table.Name, len(table.Columns))
	}
	values := make([]any, len(fields))
	for i, col := range table.Columns {
		raw := fields[i]
		switch col.Tag {
		case codec.SMALLINT, codec.INT, codec.BIGINT:
			n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("engine: column %q: %w", col.Name, err)
			}
			values[i] = n
		case codec.DOUBLE:
			n, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
			if err != nil {
				return nil, fmt.Errorf("engine: column %q: %w", col.Name, err)
			}
			values[i] = n
		case codec.BOOLEAN:
			b, err := strconv.ParseBool(strings.TrimSpace(raw))
			if err != nil {
				return nil, fmt.Errorf("engine: column %q: %w", col.Name, err)
			}
			values[i] = b
		default:
			values[i] = raw
		}
	}
	return values, nil
}
