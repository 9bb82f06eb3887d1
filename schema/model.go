package schema

import (
	"encoding/json"
	"math"
	"slices"
	"strconv"
	"strings"
)

// Model validates a decoded value against a declared shape.
type Model interface {
	Name() string
	Validate(v any) (any, error)
}

// IsModel reports whether t can be used as a body schema.
func IsModel(t any) bool {
	_, ok := t.(Model)
	return ok
}

// Kind is the declared type of a Field.
type Kind uint8

const (
	KindAny Kind = iota
	KindString
	KindInt
	KindFloat
	KindBool
	KindList
	KindObject
)

// Field declares one member of an Object.
type Field struct {
	name     string
	kind     Kind
	required bool
	def      any
	rules    []Rule
	object   *Object
	item     *Field
}

func newField(name string, kind Kind, rules []Rule) Field {
	return Field{name: name, kind: kind, required: true, rules: rules}
}

func String(name string, rules ...Rule) Field { return newField(name, KindString, rules) }
func Int(name string, rules ...Rule) Field    { return newField(name, KindInt, rules) }
func Float(name string, rules ...Rule) Field  { return newField(name, KindFloat, rules) }
func Bool(name string, rules ...Rule) Field   { return newField(name, KindBool, rules) }
func Any(name string, rules ...Rule) Field    { return newField(name, KindAny, rules) }

// List declares an array whose elements are validated by item (its name is ignored).
func List(name string, item Field, rules ...Rule) Field {
	f := newField(name, KindList, rules)
	f.item = &item
	return f
}

// Nested declares an embedded object.
func Nested(name string, obj *Object, rules ...Rule) Field {
	f := newField(name, KindObject, rules)
	f.object = obj
	return f
}

// Optional marks the field as not required; def is used when it is absent.
// A nil def leaves the key out of the validated value.
func (f Field) Optional(def any) Field {
	f.required = false
	f.def = def
	return f
}

// Name returns the field name.
func (f Field) Name() string { return f.name }

// Object is a Model made of named fields. Unknown keys are dropped.
type Object struct {
	name   string
	fields []Field
}

// NewObject returns an Object model.
func NewObject(name string, fields ...Field) *Object {
	return &Object{name: name, fields: fields}
}

func (o *Object) Name() string { return o.name }

// Fields returns the declared field names in order.
func (o *Object) Fields() []string {
	names := make([]string, len(o.fields))
	for i, f := range o.fields {
		names[i] = f.name
	}
	return names
}

// Validate checks v and returns a map holding the coerced field values.
func (o *Object) Validate(v any) (any, error) {
	var errs ValidationErrors
	out := o.validate(nil, v, &errs)
	if len(errs) > 0 {
		return nil, errs
	}
	return out, nil
}

func (o *Object) validate(loc []string, v any, errs *ValidationErrors) map[string]any {
	m, ok := v.(map[string]any)
	if !ok {
		errs.Add(FieldError{Type: "model_type", Loc: loc, Msg: "Input should be a valid dictionary or object", Input: v})
		return nil
	}
	out := make(map[string]any, len(o.fields))
	for _, f := range o.fields {
		floc := append(slices.Clone(loc), f.name)
		raw, present := m[f.name]
		if !present {
			if f.required {
				errs.Add(FieldError{Type: "missing", Loc: floc, Msg: "Field required"})
			} else if f.def != nil {
				out[f.name] = f.def
			}
			continue
		}
		if val, ok := f.check(floc, raw, errs); ok {
			out[f.name] = val
		}
	}
	return out
}

func (f Field) check(loc []string, raw any, errs *ValidationErrors) (any, bool) {
	before := len(*errs)
	val, fe := f.coerce(loc, raw, errs)
	if fe != nil {
		errs.Add(*fe)
	}
	if len(*errs) > before {
		return nil, false
	}
	for _, r := range f.rules {
		if !r.Check(val) {
			errs.Add(FieldError{Type: r.Type, Loc: loc, Msg: r.Message, Input: raw})
			return nil, false
		}
	}
	return val, true
}

func (f Field) coerce(loc []string, raw any, errs *ValidationErrors) (any, *FieldError) {
	switch f.kind {
	case KindString:
		s, ok := raw.(string)
		if !ok {
			return nil, &FieldError{Type: "string_type", Loc: loc, Msg: "Input should be a valid string", Input: raw}
		}
		return s, nil
	case KindInt:
		return coerceInt(loc, raw)
	case KindFloat:
		return coerceFloat(loc, raw)
	case KindBool:
		return coerceBool(loc, raw)
	case KindList:
		items, ok := raw.([]any)
		if !ok {
			return nil, &FieldError{Type: "list_type", Loc: loc, Msg: "Input should be a valid list", Input: raw}
		}
		out := make([]any, 0, len(items))
		before := len(*errs)
		for i, it := range items {
			if v, ok := f.item.check(append(slices.Clone(loc), strconv.Itoa(i)), it, errs); ok {
				out = append(out, v)
			}
		}
		if len(*errs) > before {
			return nil, nil
		}
		return out, nil
	case KindObject:
		before := len(*errs)
		out := f.object.validate(loc, raw, errs)
		if len(*errs) > before {
			return nil, nil
		}
		return out, nil
	default:
		return raw, nil
	}
}

func coerceInt(loc []string, raw any) (any, *FieldError) {
	switch v := raw.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) {
			return nil, &FieldError{Type: "int_from_float", Loc: loc, Msg: "Input should be a valid integer, got a number with a fractional part", Input: raw}
		}
		return int64(v), nil
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n, nil
		}
		return coerceInt(loc, mustFloat(v))
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return nil, &FieldError{Type: "int_parsing", Loc: loc, Msg: "Input should be a valid integer, unable to parse string as an integer", Input: raw}
		}
		return n, nil
	default:
		return nil, &FieldError{Type: "int_type", Loc: loc, Msg: "Input should be a valid integer", Input: raw}
	}
}

func coerceFloat(loc []string, raw any) (any, *FieldError) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case int64:
		return float64(v), nil
	case int:
		return float64(v), nil
	case json.Number:
		return mustFloat(v), nil
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, &FieldError{Type: "float_parsing", Loc: loc, Msg: "Input should be a valid number, unable to parse string as a number", Input: raw}
		}
		return n, nil
	default:
		return nil, &FieldError{Type: "float_type", Loc: loc, Msg: "Input should be a valid number", Input: raw}
	}
}

func coerceBool(loc []string, raw any) (any, *FieldError) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case int64:
		if v == 0 || v == 1 {
			return v == 1, nil
		}
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1", "yes", "on", "t", "y":
			return true, nil
		case "false", "0", "no", "off", "f", "n":
			return false, nil
		}
	}
	return nil, &FieldError{Type: "bool_parsing", Loc: loc, Msg: "Input should be a valid boolean, unable to interpret input", Input: raw}
}

func mustFloat(n json.Number) float64 {
	f, _ := n.Float64()
	return f
}
