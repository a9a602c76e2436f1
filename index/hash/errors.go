package hash

import "errors"

// ErrKeyNotFound is returned by Search for an absent key.
var ErrKeyNotFound = errors.New("hash: key not found")
