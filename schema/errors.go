package schema

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotAModel is returned when a declared body type cannot validate input.
var ErrNotAModel = errors.New("schema: type is not a model")

// FieldError describes a single validation failure.
type FieldError struct {
	Type  string   `json:"type"`
	Loc   []string `json:"loc"`
	Msg   string   `json:"msg"`
	Input any      `json:"input,omitempty"`
}

// ValidationErrors is the enumerable error list returned by Model.Validate.
type ValidationErrors []FieldError

func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(ve))
	for _, e := range ve {
		parts = append(parts, fmt.Sprintf("%s: %s", strings.Join(e.Loc, "."), e.Msg))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (ve *ValidationErrors) Add(err FieldError) {
	*ve = append(*ve, err)
}

// Has reports whether any error points at the dotted location.
func (ve ValidationErrors) Has(loc string) bool {
	for _, e := range ve {
		if strings.Join(e.Loc, ".") == loc {
			return true
		}
	}
	return false
}

// Detail returns the errors as plain values suitable for a JSON response body.
func (ve ValidationErrors) Detail() []any {
	out := make([]any, 0, len(ve))
	for _, e := range ve {
		item := map[string]any{
			"type": e.Type,
			"loc":  toAnySlice(e.Loc),
			"msg":  e.Msg,
		}
		if e.Input != nil {
			item["input"] = e.Input
		}
		out = append(out, item)
	}
	return out
}

// ExtractValidationErrors returns the ValidationErrors wrapped in err, if any.
func ExtractValidationErrors(err error) ValidationErrors {
	var ve ValidationErrors
	if errors.As(err, &ve) {
		return ve
	}
	return nil
}

func IsValidationError(err error) bool {
	var ve ValidationErrors
	return errors.As(err, &ve)
}

func toAnySlice(s []string) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}
