package heap

import "errors"

// Sentinel errors returned by heap operations.
var (
	// ErrOutOfRange is returned when reading or writing a position beyond
	// the file's current record count.
	ErrOutOfRange = errors.New("heap: record position out of range")

	// ErrWrongRecordSize is returned when a caller passes a buffer that
	// does not match the heap's fixed record size.
	ErrWrongRecordSize = errors.New("heap: record does not match fixed size")

	// ErrInvalidSize is returned when Open is called with a non-positive
	// record size.
	ErrInvalidSize = errors.New("heap: invalid record size")
)
