package catalog

import "errors"

var (
	ErrEmptyCatalog   = errors.New("catalog has no fields")
	ErrMissingName    = errors.New("field name required")
	ErrBadName        = errors.New("field name must be an identifier")
	ErrDuplicateField = errors.New("duplicate field name")
	ErrUnknownKind    = errors.New("unknown field kind")
	ErrBadBounds      = errors.New("invalid bounds")
	ErrAliasCollision = errors.New("label collision")
)
