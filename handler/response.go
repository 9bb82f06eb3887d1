package handler

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/dmitrymomot/dispatchkit/pkg/jsoncodec"
)

// Renderer is a result that encodes itself.
type Renderer interface {
	ContentType() string
	Render() ([]byte, error)
}

// StatusCoder is implemented by renderers and errors that carry a status.
type StatusCoder interface {
	StatusCode() int
}

// HeaderCarrier is implemented by renderers with response headers.
type HeaderCarrier interface {
	Headers() map[string]string
}

// Response is the built-in Renderer.
type Response struct {
	contentType string
	status      int
	headers     map[string]string
	render      func() ([]byte, error)
}

// ResponseOption customizes a Response.
type ResponseOption func(*Response)

// WithStatus sets the status code.
func WithStatus(code int) ResponseOption {
	return func(r *Response) { r.status = code }
}

// WithHeader adds a response header.
func WithHeader(name, value string) ResponseOption {
	return func(r *Response) { r.headers[name] = value }
}

func newResponse(contentType string, render func() ([]byte, error), opts []ResponseOption) *Response {
	r := &Response{
		contentType: contentType,
		status:      http.StatusOK,
		headers:     map[string]string{},
		render:      render,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Response) ContentType() string        { return r.contentType }
func (r *Response) StatusCode() int            { return r.status }
func (r *Response) Headers() map[string]string { return r.headers }

func (r *Response) Render() ([]byte, error) {
	b, err := r.render()
	if err != nil {
		return nil, errors.Join(ErrRender, err)
	}
	return b, nil
}

func static(b []byte) func() ([]byte, error) {
	return func() ([]byte, error) { return b, nil }
}

// JSON encodes content as application/json.
func JSON(content any, opts ...ResponseOption) *Response {
	return newResponse("application/json", func() ([]byte, error) {
		return jsoncodec.Marshal(content)
	}, opts)
}

// HTML serves content as text/html.
func HTML(content string, opts ...ResponseOption) *Response {
	return newResponse("text/html; charset=utf-8", static([]byte(content)), opts)
}

// PlainText serves content as text/plain.
func PlainText(content string, opts ...ResponseOption) *Response {
	return newResponse("text/plain; charset=utf-8", static([]byte(content)), opts)
}

// Redirect points the client at url. The default status is 302.
func Redirect(url string, opts ...ResponseOption) *Response {
	r := newResponse("text/plain", static(nil), append([]ResponseOption{WithStatus(http.StatusFound)}, opts...))
	r.headers["location"] = url
	return r
}

// File serves the file at path as an attachment. An empty filename defaults
// to the base name of path. The file is read when the response is rendered.
func File(path, filename string, opts ...ResponseOption) *Response {
	if filename == "" {
		filename = filepath.Base(path)
	}
	r := newResponse("application/octet-stream", func() ([]byte, error) {
		return os.ReadFile(path)
	}, opts)
	r.headers["content-disposition"] = fmt.Sprintf("attachment; filename=%q", filename)
	return r
}
