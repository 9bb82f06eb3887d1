// Package jsoncodec is the JSON encoder and decoder shared by request binding,
// response normalization and the Lua host.
//
// It is a thin layer over json-iterator configured for stable output (sorted
// map keys, no HTML escaping). Decode returns generic values whose numbers are
// normalized to int64 when integral and float64 otherwise, so callers never see
// json.Number.
package jsoncodec
