package router

import (
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
)

// Methods lists the HTTP methods routes can be registered for.
var Methods = []string{
	http.MethodGet,
	http.MethodPost,
	http.MethodPut,
	http.MethodDelete,
	http.MethodPatch,
	http.MethodHead,
	http.MethodOptions,
}

// RouteMatch is the result of a successful lookup.
type RouteMatch struct {
	Index   int
	Pattern string
	Params  map[string]string
}

type endpoint struct {
	index    int
	pattern  string
	wildcard string
}

// Router is a per-method radix router assigning monotonically increasing indices.
type Router struct {
	mu    sync.Mutex
	next  int
	trees map[string]*chi.Mux
	// keyed by method + " " + chi pattern
	endpoints map[string]endpoint
}

// New returns an empty Router.
func New() *Router {
	return &Router{
		trees:     make(map[string]*chi.Mux, len(Methods)),
		endpoints: make(map[string]endpoint),
	}
}

// NormalizeMethod upper-cases method and reports whether it is supported.
func NormalizeMethod(method string) (string, bool) {
	m := strings.ToUpper(strings.TrimSpace(method))
	for _, s := range Methods {
		if s == m {
			return m, true
		}
	}
	return "", false
}

// Insert registers pattern for method and returns its index.
// Indices are shared across methods and grow with every successful call,
// including repeated registrations of the same pair.
func (r *Router) Insert(method, pattern string) (idx int, err error) {
	m, ok := NormalizeMethod(method)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedMethod, method)
	}
	chiPattern, wildcard, err := translate(pattern)
	if err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	tree, ok := r.trees[m]
	if !ok {
		tree = chi.NewMux()
		r.trees[m] = tree
	}

	// chi reports malformed patterns by panicking.
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %v", ErrInvalidPattern, rec)
		}
	}()
	tree.Method(m, chiPattern, noop)

	idx = r.next
	r.next++
	r.endpoints[m+" "+chiPattern] = endpoint{index: idx, pattern: pattern, wildcard: wildcard}
	return idx, nil
}

// Find looks up path in the tree of method. The method is matched
// case-insensitively, like Insert.
func (r *Router) Find(method, path string) (RouteMatch, bool) {
	tree, ok := r.trees[method]
	if !ok {
		m, supported := NormalizeMethod(method)
		if !supported {
			return RouteMatch{}, false
		}
		if tree, ok = r.trees[m]; !ok {
			return RouteMatch{}, false
		}
		method = m
	}

	rctx := chi.NewRouteContext()
	pattern := tree.Find(rctx, method, path)
	if pattern == "" {
		return RouteMatch{}, false
	}
	ep, ok := r.endpoints[method+" "+pattern]
	if !ok {
		return RouteMatch{}, false
	}

	params := make(map[string]string, len(rctx.URLParams.Keys))
	for i, k := range rctx.URLParams.Keys {
		if k == "*" {
			if ep.wildcard == "" {
				continue
			}
			k = ep.wildcard
		}
		params[k] = rctx.URLParams.Values[i]
	}
	return RouteMatch{Index: ep.index, Pattern: ep.pattern, Params: params}, true
}

// Len returns the number of indices handed out so far.
func (r *Router) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.next
}

// translate converts a trailing "{*name}" segment into chi's "*" wildcard.
func translate(pattern string) (string, string, error) {
	if !strings.HasPrefix(pattern, "/") {
		return "", "", fmt.Errorf("%w: %q must begin with '/'", ErrInvalidPattern, pattern)
	}
	i := strings.Index(pattern, "{*")
	if i < 0 {
		return pattern, "", nil
	}
	rest := pattern[i+2:]
	end := strings.IndexByte(rest, '}')
	if end <= 0 || end != len(rest)-1 {
		return "", "", fmt.Errorf("%w: catch-all must be the last segment in %q", ErrInvalidPattern, pattern)
	}
	return pattern[:i] + "*", rest[:end], nil
}

var noop = http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
