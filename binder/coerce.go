package binder

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/dmitrymomot/dispatchkit/handler"
)

// Coercer converts raw request text into a declared kind.
type Coercer func(raw string) (any, error)

var coercions = map[handler.Kind]Coercer{
	handler.KindAny:    func(s string) (any, error) { return s, nil },
	handler.KindString: func(s string) (any, error) { return s, nil },
	handler.KindInt: func(s string) (any, error) {
		return strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	},
	handler.KindFloat: func(s string) (any, error) {
		return strconv.ParseFloat(strings.TrimSpace(s), 64)
	},
	handler.KindBool: parseBool,
	handler.KindUUID: func(s string) (any, error) {
		return uuid.Parse(s)
	},
}

func parseBool(s string) (any, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "t", "true", "yes", "y", "on":
		return true, nil
	case "0", "f", "false", "no", "n", "off":
		return false, nil
	}
	return nil, strconv.ErrSyntax
}

// Coerce converts raw into kind.
func Coerce(kind handler.Kind, raw string) (any, error) {
	c, ok := coercions[kind]
	if !ok {
		return nil, fmt.Errorf("%w %s", ErrUnknownKind, kind)
	}
	return c(raw)
}
