package middleware

import "errors"

// ErrNoCapability is returned by Chain.Use for values implementing no hook.
var ErrNoCapability = errors.New("middleware: value implements no hook")
