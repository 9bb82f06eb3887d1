package request

import "context"

type contextKey struct{}

// NewContext returns ctx carrying rc.
func NewContext(ctx context.Context, rc *Context) context.Context {
	return context.WithValue(ctx, contextKey{}, rc)
}

// FromContext returns the request context stored in ctx, or nil.
func FromContext(ctx context.Context) *Context {
	if ctx == nil {
		return nil
	}
	rc, _ := ctx.Value(contextKey{}).(*Context)
	return rc
}
