// Package router maps (method, path) pairs to stable integer route indices.
//
// Each HTTP method owns its own radix tree backed by chi, so a lookup costs
// O(len(path)) regardless of how many routes are registered. The router never
// serves requests itself: Find returns a RouteMatch carrying the index assigned
// at Insert time together with the bound path parameters, and the caller uses
// the index to address its own per-route data (see the signature package).
//
// Patterns use chi syntax with one addition: a trailing "{*name}" segment is a
// catch-all whose remainder is bound to name.
//
//	r := router.New()
//	idx, _ := r.Insert(http.MethodGet, "/users/{id}")
//	m, ok := r.Find(http.MethodGet, "/users/42")
//	// m.Index == idx, m.Params["id"] == "42"
//
// A Router is safe for concurrent Find calls once registration is complete.
package router
