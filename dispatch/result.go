package dispatch

import (
	"errors"
	"fmt"
	"maps"
	"net/http"
	"reflect"
	"strings"

	"github.com/dmitrymomot/dispatchkit/background"
	"github.com/dmitrymomot/dispatchkit/handler"
	"github.com/dmitrymomot/dispatchkit/pkg/jsoncodec"
	"github.com/dmitrymomot/dispatchkit/schema"
)

// Content types produced by normalization.
const (
	ContentTypeJSON   = "application/json"
	ContentTypeHTML   = "text/html; charset=utf-8"
	ContentTypeText   = "text/plain; charset=utf-8"
	ContentTypeBinary = "application/octet-stream"
)

// StringMode selects how plain string results are encoded.
type StringMode uint8

const (
	// StringsAsText serves strings as HTML when they start with "<" and as
	// plain text otherwise.
	StringsAsText StringMode = iota
	// StringsAsJSON serves strings as JSON string literals.
	StringsAsJSON
)

// Result is a normalized response.
type Result struct {
	Body        []byte
	ContentType string
	Status      int
	Headers     map[string]string
	// Task is set when the handler succeeded and asked for a background task.
	Task *background.Task
}

// Normalize converts a handler or hook result into a Result.
func Normalize(v any, mode StringMode) (*Result, error) {
	res := &Result{Status: http.StatusOK, Headers: map[string]string{}}
	if t, ok := v.(handler.Tuple); ok {
		v = t.Body
		if t.Status != 0 {
			res.Status = t.Status
		}
		maps.Copy(res.Headers, t.Headers)
	}

	if r, ok := v.(handler.Renderer); ok {
		body, err := r.Render()
		if err != nil {
			return nil, err
		}
		res.Body, res.ContentType = body, r.ContentType()
		if sc, ok := r.(handler.StatusCoder); ok && sc.StatusCode() != 0 {
			res.Status = sc.StatusCode()
		}
		if hc, ok := r.(handler.HeaderCarrier); ok {
			maps.Copy(res.Headers, hc.Headers())
		}
		return res, nil
	}

	switch b := v.(type) {
	case string:
		if mode == StringsAsJSON {
			return res.json(b)
		}
		res.Body = []byte(b)
		res.ContentType = ContentTypeText
		if strings.HasPrefix(strings.TrimSpace(b), "<") {
			res.ContentType = ContentTypeHTML
		}
		return res, nil
	case []byte:
		res.Body, res.ContentType = b, ContentTypeBinary
		return res, nil
	case nil, bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64,
		float32, float64, map[string]any, []any:
		return res.json(b)
	}

	if structured(v) {
		return res.json(v)
	}
	res.Body = []byte(fmt.Sprint(v))
	res.ContentType = ContentTypeText
	return res, nil
}

func (r *Result) json(v any) (*Result, error) {
	body, err := jsoncodec.Marshal(v)
	if err != nil {
		return nil, errors.Join(handler.ErrRender, err)
	}
	r.Body, r.ContentType = body, ContentTypeJSON
	return r, nil
}

func structured(v any) bool {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return true
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Struct, reflect.Map, reflect.Slice, reflect.Array, reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return !implementsStringer(v)
	}
	return false
}

func implementsStringer(v any) bool {
	_, ok := v.(fmt.Stringer)
	return ok
}

// ValidationFailed builds the 422 result for a body that failed its schema.
func ValidationFailed(ve schema.ValidationErrors) *Result {
	return mustJSON(http.StatusUnprocessableEntity, nil, map[string]any{
		"error":  "Validation failed",
		"detail": ve.Detail(),
	})
}

// FromHTTPError builds the result for an HTTPError.
func FromHTTPError(e *handler.HTTPError) *Result {
	return mustJSON(e.Status, e.Headers, map[string]any{"detail": e.Detail})
}

// Internal builds the 500 result for an unhandled error.
func Internal(err error) *Result {
	return mustJSON(http.StatusInternalServerError, nil, map[string]any{
		"error":  "Internal Server Error",
		"detail": err.Error(),
	})
}

// NotFound builds the default 404 result.
func NotFound() *Result {
	return mustJSON(http.StatusNotFound, nil, map[string]any{
		"error":  "Not Found",
		"detail": "No route found",
	})
}

func mustJSON(status int, headers map[string]string, body map[string]any) *Result {
	b, err := jsoncodec.Marshal(body)
	if err != nil {
		b = []byte(`{"error":"Internal Server Error"}`)
		status = http.StatusInternalServerError
	}
	h := make(map[string]string, len(headers))
	maps.Copy(h, headers)
	return &Result{Body: b, ContentType: ContentTypeJSON, Status: status, Headers: h}
}
