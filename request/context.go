package request

import (
	"maps"
	"mime"
	"net/http"
	"unicode/utf8"

	"github.com/dmitrymomot/dispatchkit/pkg/jsoncodec"
)

// Context is an immutable view of an incoming request.
type Context struct {
	method     string
	path       string
	header     http.Header
	query      map[string]string
	pathParams map[string]string
	body       []byte
	values     map[any]any
}

// New builds a Context. The maps are owned by the Context afterwards and must
// not be modified by the caller.
func New(method, path string, header http.Header, query, pathParams map[string]string, body []byte) *Context {
	if header == nil {
		header = http.Header{}
	}
	if query == nil {
		query = map[string]string{}
	}
	if pathParams == nil {
		pathParams = map[string]string{}
	}
	return &Context{
		method:     method,
		path:       path,
		header:     header,
		query:      query,
		pathParams: pathParams,
		body:       body,
	}
}

func (c *Context) Method() string { return c.method }
func (c *Context) Path() string   { return c.path }

// Headers returns the header map. It must be treated as read-only.
func (c *Context) Headers() http.Header { return c.header }

// Header returns the first value of the named header, matched case-insensitively.
func (c *Context) Header(name string) string { return c.header.Get(name) }

// Query returns the query map. It must be treated as read-only.
func (c *Context) Query() map[string]string { return c.query }

// QueryParam returns a single query value.
func (c *Context) QueryParam(name string) string { return c.query[name] }

// PathParams returns the bound path parameters. They must be treated as read-only.
func (c *Context) PathParams() map[string]string { return c.pathParams }

// PathParam returns a single path parameter.
func (c *Context) PathParam(name string) string { return c.pathParams[name] }

// Body returns the raw body. It is nil when the body was not read.
func (c *Context) Body() []byte { return c.body }

// ContentType returns the media type of the body without parameters.
func (c *Context) ContentType() string {
	ct := c.header.Get("Content-Type")
	if ct == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return ""
	}
	return mt
}

// Text returns the body as a string.
func (c *Context) Text() (string, error) {
	if !utf8.Valid(c.body) {
		return "", ErrBodyNotText
	}
	return string(c.body), nil
}

// JSON decodes the body into v.
func (c *Context) JSON(v any) error {
	return jsoncodec.Unmarshal(c.body, v)
}

// Cookies parses the Cookie header. Malformed pairs are skipped.
func (c *Context) Cookies() map[string]string {
	out := map[string]string{}
	for _, line := range c.header.Values("Cookie") {
		cookies, err := http.ParseCookie(line)
		if err != nil {
			continue
		}
		for _, ck := range cookies {
			out[ck.Name] = ck.Value
		}
	}
	return out
}

// Value returns a value attached with WithValue.
func (c *Context) Value(key any) any { return c.values[key] }

func (c *Context) clone() *Context {
	cp := *c
	return &cp
}

// WithHeader returns a copy with the header name set to value.
func (c *Context) WithHeader(name, value string) *Context {
	cp := c.clone()
	cp.header = c.header.Clone()
	cp.header.Set(name, value)
	return cp
}

// WithPathParams returns a copy with the given path parameters.
func (c *Context) WithPathParams(params map[string]string) *Context {
	cp := c.clone()
	cp.pathParams = maps.Clone(params)
	return cp
}

// WithQuery returns a copy with the given query map.
func (c *Context) WithQuery(query map[string]string) *Context {
	cp := c.clone()
	cp.query = maps.Clone(query)
	return cp
}

// WithBody returns a copy with a different body.
func (c *Context) WithBody(body []byte) *Context {
	cp := c.clone()
	cp.body = body
	return cp
}

// WithValue returns a copy carrying val under key.
func (c *Context) WithValue(key, val any) *Context {
	cp := c.clone()
	cp.values = make(map[any]any, len(c.values)+1)
	maps.Copy(cp.values, c.values)
	cp.values[key] = val
	return cp
}
