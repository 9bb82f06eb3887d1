package jsoncodec

import (
	"encoding/json"
	"errors"
	"strconv"

	jsoniter "github.com/json-iterator/go"
)

// ErrInvalidJSON wraps decode failures.
var ErrInvalidJSON = errors.New("jsoncodec: invalid json")

var api = jsoniter.Config{
	EscapeHTML:             false,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
	UseNumber:              true,
}.Froze()

// Marshal encodes v.
func Marshal(v any) ([]byte, error) {
	return api.Marshal(v)
}

// Unmarshal decodes data into a typed target.
func Unmarshal(data []byte, v any) error {
	if err := api.Unmarshal(data, v); err != nil {
		return errors.Join(ErrInvalidJSON, err)
	}
	return nil
}

// Decode decodes data into generic values with normalized numbers.
func Decode(data []byte) (any, error) {
	var v any
	if err := api.Unmarshal(data, &v); err != nil {
		return nil, errors.Join(ErrInvalidJSON, err)
	}
	return Normalize(v), nil
}

// Valid reports whether data is a well-formed JSON document.
func Valid(data []byte) bool {
	return api.Valid(data)
}

// Normalize replaces json.Number values inside v, recursively.
func Normalize(v any) any {
	switch t := v.(type) {
	case json.Number:
		if n, err := strconv.ParseInt(string(t), 10, 64); err == nil {
			return n
		}
		f, _ := strconv.ParseFloat(string(t), 64)
		return f
	case map[string]any:
		for k, e := range t {
			t[k] = Normalize(e)
		}
		return t
	case []any:
		for i, e := range t {
			t[i] = Normalize(e)
		}
		return t
	default:
		return v
	}
}
