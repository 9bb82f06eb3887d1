// Package schema is the body validation capability used by the dispatcher.
//
// A Model validates a decoded JSON value and returns the coerced value, or a
// ValidationErrors describing every failing location. Object is the built-in
// Model: a named set of typed fields with optional rules.
//
//	user := schema.NewObject("User",
//		schema.String("name", schema.MinLen(1)),
//		schema.Int("age", schema.Min(0)),
//		schema.Bool("admin").Optional(false),
//	)
//
//	v, err := user.Validate(map[string]any{"name": "Ann", "age": "not-a-number"})
//	// err is schema.ValidationErrors{{Type: "int_parsing", Loc: []string{"age"}, ...}}
//
// Coercion is lax: numeric strings are accepted for numeric fields and
// integral floats for integer fields, mirroring what JSON clients commonly send.
package schema
