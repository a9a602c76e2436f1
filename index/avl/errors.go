package avl

import "errors"

// ErrKeyTooLong is returned when a key's string rendering exceeds the
// fixed key size the index was created with.
var ErrKeyTooLong = errors.New("avl: key exceeds max key size")
