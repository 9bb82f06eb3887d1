// Package binder derives handler arguments from a request.
//
// Arguments are bound in a fixed order and a later stage never overrides a
// name bound by an earlier one:
//
//  1. path parameters, coerced by declared kind
//  2. dependency values
//  3. the request context for a parameter named "request"
//  4. background tasks and uploaded files
//  5. multipart text fields
//  6. the body, decoded and validated when it is JSON
//  7. query parameters, coerced by declared kind
//
// Unbound parameters with a default receive it last.
//
// Path coercion failures are returned as errors wrapping ErrCoercion. Query
// coercion failures keep the raw string. A body that fails schema validation
// is reported as schema.ValidationErrors.
package binder
