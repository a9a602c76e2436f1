package sqlast

import "errors"

var (
	// ErrSyntax covers any malformed token stream or unexpected token.
	ErrSyntax = errors.New("sqlast: syntax error")
	// ErrUnsupportedStatement is returned for a leading keyword this
	// grammar does not recognize as a statement head.
	ErrUnsupportedStatement = errors.New("sqlast: unsupported statement")
)
