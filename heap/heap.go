// Package heap implements the append-only, fixed-length record file every
// table's rows live in. Records are addressed purely by ordinal position —
// record n occupies bytes [n*recordSize, (n+1)*recordSize) — so a position
// is stable for the lifetime of the row: delete tombstones the liveness
// byte in place and never compacts or renumbers later records.
package heap

import (
	"fmt"
	"io"
	"os"
)

// Heap is a position-addressable, fixed-record file. All methods are safe
// to call concurrently only to the extent the caller serializes writers —
// the engine package holds a per-table lock around every operator call.
type Heap struct {
	f          *os.File
	recordSize int
}

// Open opens (creating if absent) the heap file at path for records of the
// given fixed size.
func Open(path string, recordSize int) (*Heap, error) {
	if recordSize <= 0 {
		return nil, fmt.Errorf("%w: record size must be positive", ErrInvalidSize)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	return &Heap{f: f, recordSize: recordSize}, nil
}

// Close flushes and closes the underlying file.
func (h *Heap) Close() error {
	return h.f.Close()
}

// Count returns the number of record slots in the file, live or
// tombstoned.
func (h *Heap) Count() (int64, error) {
	info, err := h.f.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size() / int64(h.recordSize), nil
}

// Insert appends one record and returns its ordinal position.
func (h *Heap) Insert(record []byte) (int64, error) {
	if len(record) != h.recordSize {
		return 0, fmt.Errorf("%w: got %d bytes, want %d", ErrWrongRecordSize, len(record), h.recordSize)
	}
	n, err := h.Count()
	if err != nil {
		return 0, err
	}
	if _, err := h.f.WriteAt(record, n*int64(h.recordSize)); err != nil {
		return 0, err
	}
	return n, nil
}

// ReadAt reads the raw record stored at ordinal position pos, including
// its liveness byte. The record/Packer layer interprets the bytes.
func (h *Heap) ReadAt(pos int64) ([]byte, error) {
	count, err := h.Count()
	if err != nil {
		return nil, err
	}
	if pos < 0 || pos >= count {
		return nil, fmt.Errorf("%w: position %d (have %d records)", ErrOutOfRange, pos, count)
	}
	buf := make([]byte, h.recordSize)
	if _, err := h.f.ReadAt(buf, pos*int64(h.recordSize)); err != nil && err != io.EOF {
		return nil, err
	}
	return buf, nil
}

// WriteAt overwrites the raw record at ordinal position pos — used to
// flip a liveness byte (DELETE) or update an in-place field.
func (h *Heap) WriteAt(pos int64, record []byte) error {
	if len(record) != h.recordSize {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrWrongRecordSize, len(record), h.recordSize)
	}
	count, err := h.Count()
	if err != nil {
		return err
	}
	if pos < 0 || pos >= count {
		return fmt.Errorf("%w: position %d (have %d records)", ErrOutOfRange, pos, count)
	}
	_, err = h.f.WriteAt(record, pos*int64(h.recordSize))
	return err
}

// Scan calls fn for every record slot in ordinal order, live and
// tombstoned alike — callers filter on the liveness byte themselves (most
// do, via record.Packer.IsActive). Scan stops and returns fn's error if it
// returns non-nil.
func (h *Heap) Scan(fn func(pos int64, record []byte) error) error {
	count, err := h.Count()
	if err != nil {
		return err
	}
	buf := make([]byte, h.recordSize)
	for pos := int64(0); pos < count; pos++ {
		if _, err := h.f.ReadAt(buf, pos*int64(h.recordSize)); err != nil && err != io.EOF {
			return err
		}
		if err := fn(pos, buf); err != nil {
			return err
		}
	}
	return nil
}

// RecordSize returns the fixed record width this heap was opened with.
func (h *Heap) RecordSize() int {
	return h.recordSize
}
