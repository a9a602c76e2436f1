package codec

import "errors"

// Sentinel errors returned by serialize/deserialize.
var (
	// ErrUnsupportedTag is returned for a Tag value outside the known range.
	ErrUnsupportedTag = errors.New("codec: unsupported type tag")

	// ErrValueTooLong is returned when a CHAR/VARCHAR/GEOMETRIC/JSON value
	// does not fit in its declared width.
	ErrValueTooLong = errors.New("codec: value exceeds column width")

	// ErrWrongGoType is returned when a value's Go type does not match what
	// the tag expects (e.g. a string passed for an INT column).
	ErrWrongGoType = errors.New("codec: value has wrong Go type for tag")

	// ErrShortBuffer is returned when deserialize is given fewer bytes than
	// the tag's width.
	ErrShortBuffer = errors.New("codec: buffer shorter than type width")
)
