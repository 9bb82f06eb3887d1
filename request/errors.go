package request

import "errors"

var (
	// ErrNotMultipart is returned when the content type is not multipart/form-data.
	ErrNotMultipart = errors.New("request: not a multipart/form-data body")
	// ErrInvalidMultipart wraps multipart parsing failures.
	ErrInvalidMultipart = errors.New("request: invalid multipart body")
	// ErrBodyNotText is returned by Text when the body is not valid UTF-8.
	ErrBodyNotText = errors.New("request: body is not valid utf-8 text")
)
