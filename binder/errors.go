package binder

import "errors"

var (
	// ErrCoercion is returned when a path parameter cannot be converted to its declared kind.
	ErrCoercion = errors.New("binder: cannot coerce parameter")
	// ErrUnknownKind is returned by Coerce for kinds without a coercion.
	ErrUnknownKind = errors.New("binder: no coercion for kind")
)
