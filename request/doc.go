// Package request holds the per-request values handed to handlers and
// middleware.
//
// Context is immutable: middleware that wants to change it derives a copy with
// one of the With methods and returns that copy from its before hook. Form and
// UploadFile carry the parts of a multipart/form-data body.
package request
