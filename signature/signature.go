package signature

import (
	"context"
	"fmt"
	"slices"

	"github.com/dmitrymomot/dispatchkit/handler"
	"github.com/dmitrymomot/dispatchkit/request"
	"github.com/dmitrymomot/dispatchkit/schema"
)

// Declaration is what an Introspector reports about a handler.
type Declaration struct {
	Params []handler.Param
	Async  bool
}

// Introspector describes a handler.
type Introspector interface {
	Introspect(h handler.Handler) (Declaration, error)
}

// IntrospectorFunc adapts a function to Introspector.
type IntrospectorFunc func(h handler.Handler) (Declaration, error)

func (f IntrospectorFunc) Introspect(h handler.Handler) (Declaration, error) { return f(h) }

// Resolver produces the values of injected parameters for one request.
// rc is nil when no request context was built.
type Resolver interface {
	Resolve(ctx context.Context, h handler.Handler, rc *request.Context) (map[string]any, error)
}

// DefaultIntrospector reads the parameter table of a handler and detects
// asynchrony from the Starter interface.
var DefaultIntrospector Introspector = IntrospectorFunc(func(h handler.Handler) (Declaration, error) {
	if h == nil {
		return Declaration{}, fmt.Errorf("%w: nil handler", ErrInvalidHandler)
	}
	_, isCaller := h.(handler.Caller)
	_, isStarter := h.(handler.Starter)
	if isCaller == isStarter {
		return Declaration{}, fmt.Errorf("%w: %w", ErrInvalidHandler, handler.ErrNotCallable)
	}
	return Declaration{Params: h.Params(), Async: isStarter}, nil
})

// Signature is the immutable per-route description of a handler.
type Signature struct {
	Handler    handler.Handler
	Names      []string
	Types      map[string]handler.Kind
	Defaults   map[string]any
	Async      bool
	HasDepends bool
	BodySchema schema.Model
	Resolver   Resolver

	// Parameters of the injected kinds, in declaration order.
	Tasks   []string
	Uploads []string

	names   map[string]struct{}
	caller  handler.Caller
	starter handler.Starter
}

// Has reports whether the handler declares a parameter called name.
func (s *Signature) Has(name string) bool {
	_, ok := s.names[name]
	return ok
}

// WantsRequest reports whether a parameter is named "request".
func (s *Signature) WantsRequest() bool { return s.Has("request") }

// WantsBody reports whether a parameter is named "body".
func (s *Signature) WantsBody() bool { return s.Has("body") }

// Caller returns the synchronous entry point, or nil for async handlers.
func (s *Signature) Caller() handler.Caller { return s.caller }

// Starter returns the asynchronous entry point, or nil for sync handlers.
func (s *Signature) Starter() handler.Starter { return s.starter }

// Builder turns handlers into signatures.
type Builder struct {
	introspector Introspector
	resolver     Resolver
}

// Option configures a Builder.
type Option func(*Builder)

// WithIntrospector replaces DefaultIntrospector.
func WithIntrospector(i Introspector) Option {
	return func(b *Builder) {
		if i != nil {
			b.introspector = i
		}
	}
}

// WithResolver sets the dependency resolver attached to handlers with
// dependencies. It defaults to a fresh handler.Resolver.
func WithResolver(r Resolver) Option {
	return func(b *Builder) {
		if r != nil {
			b.resolver = r
		}
	}
}

// NewBuilder returns a Builder.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{introspector: DefaultIntrospector}
	for _, opt := range opts {
		opt(b)
	}
	if b.resolver == nil {
		b.resolver = handler.NewResolver()
	}
	return b
}

// Build introspects h once and returns its signature.
func (b *Builder) Build(h handler.Handler) (*Signature, error) {
	decl, err := b.introspector.Introspect(h)
	if err != nil {
		return nil, err
	}

	sig := &Signature{
		Handler:  h,
		Names:    make([]string, 0, len(decl.Params)),
		Types:    make(map[string]handler.Kind, len(decl.Params)),
		Defaults: map[string]any{},
		Async:    decl.Async,
		names:    make(map[string]struct{}, len(decl.Params)),
	}
	for _, p := range decl.Params {
		if p.Name == "" {
			return nil, fmt.Errorf("%w: parameter without a name", ErrInvalidHandler)
		}
		if sig.Has(p.Name) {
			return nil, fmt.Errorf("%w: duplicate parameter %q", ErrInvalidHandler, p.Name)
		}
		sig.names[p.Name] = struct{}{}
		sig.Names = append(sig.Names, p.Name)
		if p.Kind != handler.KindAny {
			sig.Types[p.Name] = p.Kind
		}
		switch {
		case handler.IsDependency(p.Default):
			sig.HasDepends = true
		case p.Default != nil:
			sig.Defaults[p.Name] = p.Default
		}
		switch p.Kind {
		case handler.KindBackgroundTask:
			sig.Tasks = append(sig.Tasks, p.Name)
		case handler.KindUploadFile:
			sig.Uploads = append(sig.Uploads, p.Name)
		}
		if p.Name == "body" && p.Model != nil && schema.IsModel(p.Model) {
			sig.BodySchema = p.Model
		}
	}
	if sig.HasDepends {
		sig.Resolver = b.resolver
	}

	if decl.Async {
		st, ok := h.(handler.Starter)
		if !ok {
			return nil, fmt.Errorf("%w: async handler does not implement Start", ErrInvalidHandler)
		}
		sig.starter = st
	} else {
		c, ok := h.(handler.Caller)
		if !ok {
			return nil, fmt.Errorf("%w: sync handler does not implement Call", ErrInvalidHandler)
		}
		sig.caller = c
	}
	sig.Names = slices.Clip(sig.Names)
	return sig, nil
}
