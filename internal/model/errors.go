package model

import "errors"

// Sentinel errors for document model operations.
var (
	// ErrPositionOutOfRange is returned when a position falls outside a node's content.
	ErrPositionOutOfRange = errors.New("model: position out of range")

	// ErrInvalidContent is returned when a fragment does not satisfy a node type's content expression.
	ErrInvalidContent = errors.New("model: invalid content for node type")

	// ErrUnknownType is returned when a schema lookup names a node or mark type it does not define.
	ErrUnknownType = errors.New("model: unknown type")

	// ErrMissingAttr is returned when a required attribute (one without a default) is not supplied.
	ErrMissingAttr = errors.New("model: missing required attribute")

	// ErrBadContentExpr is returned when a content expression cannot be parsed.
	ErrBadContentExpr = errors.New("model: bad content expression")
)
