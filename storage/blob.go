package storage

import (
	"errors"
	"os"

	json "github.com/goccy/go-json"
)

// ErrBlobNotFound is returned by ReadBlob when the backing file is empty
// or does not exist.
var ErrBlobNotFound = errors.New("storage: blob not found")

// WriteBlob serializes v as JSON and overwrites path with it. The JSON
// field names make the blob self-describing; no type tag field is added.
func WriteBlob(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadBlob deserializes the JSON blob at path into v.
func ReadBlob(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrBlobNotFound
		}
		return err
	}
	if len(data) == 0 {
		return ErrBlobNotFound
	}
	return json.Unmarshal(data, v)
}
