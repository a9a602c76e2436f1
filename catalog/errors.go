package catalog

import "errors"

var (
	ErrDatabaseNotFound = errors.New("catalog: database not found")
	ErrSchemaNotFound   = errors.New("catalog: schema not found")
	ErrTableNotFound    = errors.New("catalog: table not found")
	ErrColumnNotFound   = errors.New("catalog: column not found")
	ErrIndexNotFound    = errors.New("catalog: index not found")
	ErrDuplicateName    = errors.New("catalog: name already exists in this scope")
	ErrPrimaryExists    = errors.New("catalog: table already has a primary index")
)
