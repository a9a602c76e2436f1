// Package record packs a tuple of column values into one fixed-length
// binary record, and unpacks it back. A record is the unit the heap file
// reads and writes: each column's bytes in declaration order followed by
// one trailing liveness byte, with no delimiters — every record for a table is
// exactly the same length.
package record

import (
	"fmt"

	"github.com/jlang/reldb/codec"
)

// Field describes one column's storage shape within a record.
type Field struct {
	Name   string
	Tag    codec.Tag
	MaxLen int // meaningful only for CHAR/VARCHAR
}

// Schema is the ordered field list a Packer builds records from. It is
// built once per table, at CREATE TABLE / catalog-load time, and reused
// for every pack/unpack call against that table.
type Schema struct {
	Fields []Field
}

// Packer packs and unpacks fixed-length records for one Schema. Field
// offsets are computed once in NewPacker so pack/unpack never recomputes
// layout on the hot path.
type Packer struct {
	schema  Schema
	offsets []int // offset of each field within the record, liveness byte excluded
	size    int   // total record size including the trailing liveness byte
}

// NewPacker precomputes field offsets for schema. RecordSize() reports the
// resulting fixed width.
func NewPacker(schema Schema) *Packer {
	p := &Packer{schema: schema, offsets: make([]int, len(schema.Fields))}
	off := 0
	for i, f := range schema.Fields {
		p.offsets[i] = off
		off += codec.Size(f.Tag, f.MaxLen)
	}
	p.size = off + 1 // trailing liveness byte
	return p
}

// RecordSize returns the fixed byte width of every record this Packer
// produces, including the liveness byte.
func (p *Packer) RecordSize() int {
	return p.size
}

// Pack serializes values (one per schema field, same order) into a record
// of RecordSize() bytes. active controls the trailing liveness byte; a
// freshly inserted row is always packed with active=true, and deletion
// flips that byte in place rather than repacking the row.
func (p *Packer) Pack(values []any, active bool) ([]byte, error) {
	if len(values) != len(p.schema.Fields) {
		return nil, fmt.Errorf("record: got %d values, schema has %d fields", len(values), len(p.schema.Fields))
	}
	buf := make([]byte, p.size)
	for i, f := range p.schema.Fields {
		fb, err := codec.Serialize(values[i], f.Tag, f.MaxLen)
		if err != nil {
			return nil, fmt.Errorf("record: field %q: %w", f.Name, err)
		}
		copy(buf[p.offsets[i]:], fb)
	}
	if active {
		buf[p.size-1] = 1
	}
	return buf, nil
}

// Unpack deserializes a record back into its values and liveness flag.
func (p *Packer) Unpack(data []byte) ([]any, bool, error) {
	if len(data) != p.size {
		return nil, false, fmt.Errorf("record: got %d bytes, want %d", len(data), p.size)
	}
	values := make([]any, len(p.schema.Fields))
	for i, f := range p.schema.Fields {
		width := codec.Size(f.Tag, f.MaxLen)
		v, err := codec.Deserialize(data[p.offsets[i]:p.offsets[i]+width], f.Tag, f.MaxLen)
		if err != nil {
			return nil, false, fmt.Errorf("record: field %q: %w", f.Name, err)
		}
		values[i] = v
	}
	active := data[p.size-1] != 0
	return values, active, nil
}

// FieldOffset returns the byte offset of field index i within a record,
// used by index backfill to read a single column without a full Unpack.
func (p *Packer) FieldOffset(i int) int {
	return p.offsets[i]
}

// Field returns the Field descriptor at index i.
func (p *Packer) Field(i int) Field {
	return p.schema.Fields[i]
}

// UnpackField deserializes only field index i from a full record buffer,
// skipping every other column — used by index CREATE INDEX backfill scans.
func (p *Packer) UnpackField(data []byte, i int) (any, error) {
	f := p.schema.Fields[i]
	width := codec.Size(f.Tag, f.MaxLen)
	off := p.offsets[i]
	return codec.Deserialize(data[off:off+width], f.Tag, f.MaxLen)
}

// IsActive reports the liveness byte of a raw record buffer without a full
// Unpack.
func (p *Packer) IsActive(data []byte) bool {
	return data[p.size-1] != 0
}

// SetActive flips the liveness byte of a raw record buffer in place —
// DELETE tombstones a row this way instead of rewriting its columns.
func (p *Packer) SetActive(data []byte, active bool) {
	if active {
		data[p.size-1] = 1
	} else {
		data[p.size-1] = 0
	}
}
