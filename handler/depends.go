package handler

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrymomot/dispatchkit/request"
)

// Provider produces a dependency value. rc is nil when no request context was
// built for the request.
type Provider func(ctx context.Context, rc *request.Context) (any, error)

// Dependency marks a parameter as injected. Use it as a Param default.
type Dependency struct {
	provider Provider
	noCache  bool
}

// Depends wraps a provider. Within one request a provider shared by several
// parameters runs once.
func Depends(p Provider) *Dependency {
	return &Dependency{provider: p}
}

// Uncached returns a copy whose provider runs for every parameter using it.
func (d *Dependency) Uncached() *Dependency {
	return &Dependency{provider: d.provider, noCache: true}
}

// IsDependency reports whether a parameter default marks an injected parameter.
func IsDependency(v any) bool {
	_, ok := v.(*Dependency)
	return ok
}

// Resolver resolves the dependencies declared by a handler. Overrides replace
// providers, which is mostly useful in tests.
type Resolver struct {
	mu        sync.RWMutex
	overrides map[*Dependency]Provider
}

// NewResolver returns a Resolver without overrides.
func NewResolver() *Resolver {
	return &Resolver{overrides: map[*Dependency]Provider{}}
}

// Override makes d resolve through p.
func (r *Resolver) Override(d *Dependency, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.overrides[d] = p
}

// ClearOverrides removes every override.
func (r *Resolver) ClearOverrides() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.overrides)
}

// Resolve returns the values of every dependency parameter of h.
func (r *Resolver) Resolve(ctx context.Context, h Handler, rc *request.Context) (map[string]any, error) {
	out := map[string]any{}
	var cache map[*Dependency]any
	for _, p := range h.Params() {
		d, ok := p.Default.(*Dependency)
		if !ok {
			continue
		}
		if v, hit := cache[d]; hit && !d.noCache {
			out[p.Name] = v
			continue
		}
		r.mu.RLock()
		provider, overridden := r.overrides[d]
		r.mu.RUnlock()
		if !overridden {
			provider = d.provider
		}
		v, err := provider(ctx, rc)
		if err != nil {
			return nil, fmt.Errorf("resolve dependency %q: %w", p.Name, err)
		}
		if cache == nil {
			cache = map[*Dependency]any{}
		}
		cache[d] = v
		out[p.Name] = v
	}
	return out, nil
}
