package router_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/dispatchkit/router"
)

func TestInsertAssignsIncreasingIndices(t *testing.T) {
	t.Parallel()

	r := router.New()
	a, err := r.Insert(http.MethodGet, "/users")
	require.NoError(t, err)
	b, err := r.Insert(http.MethodPost, "/users")
	require.NoError(t, err)
	c, err := r.Insert("get", "/users/{id}")
	require.NoError(t, err)

	assert.Equal(t, 0, a)
	assert.Equal(t, 1, b)
	assert.Equal(t, 2, c)
	assert.Equal(t, 3, r.Len())
}

func TestFind(t *testing.T) {
	t.Parallel()

	r := router.New()
	routes := []struct {
		method, pattern string
	}{
		{http.MethodGet, "/"},
		{http.MethodGet, "/users"},
		{http.MethodGet, "/users/{id}"},
		{http.MethodGet, "/users/{id}/posts/{post}"},
		{http.MethodDelete, "/users/{id}"},
		{http.MethodGet, "/static/{*file_path}"},
	}
	indices := make([]int, len(routes))
	for i, rt := range routes {
		idx, err := r.Insert(rt.method, rt.pattern)
		require.NoError(t, err)
		indices[i] = idx
	}

	tests := []struct {
		name   string
		method string
		path   string
		index  int
		params map[string]string
	}{
		{"root", http.MethodGet, "/", indices[0], map[string]string{}},
		{"static segment", http.MethodGet, "/users", indices[1], map[string]string{}},
		{"one param", http.MethodGet, "/users/42", indices[2], map[string]string{"id": "42"}},
		{"two params", http.MethodGet, "/users/7/posts/hello", indices[3], map[string]string{"id": "7", "post": "hello"}},
		{"method namespace", http.MethodDelete, "/users/9", indices[4], map[string]string{"id": "9"}},
		{"catch-all", http.MethodGet, "/static/css/site.css", indices[5], map[string]string{"file_path": "css/site.css"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m, ok := r.Find(tt.method, tt.path)
			require.True(t, ok)
			assert.Equal(t, tt.index, m.Index)
			assert.Equal(t, tt.params, m.Params)
		})
	}
}

func TestFindMisses(t *testing.T) {
	t.Parallel()

	r := router.New()
	_, err := r.Insert(http.MethodGet, "/users/{id}")
	require.NoError(t, err)

	misses := []struct{ method, path string }{
		{http.MethodGet, "/accounts"},
		{http.MethodGet, "/users"},
		{http.MethodPost, "/users/1"},
		{http.MethodPut, "/users/1"},
		{"BREW", "/users/1"},
	}
	for _, m := range misses {
		_, ok := r.Find(m.method, m.path)
		assert.False(t, ok, "%s %s", m.method, m.path)
	}
}

func TestFindNormalizesMethod(t *testing.T) {
	t.Parallel()

	r := router.New()
	idx, err := r.Insert("get", "/users/{id}")
	require.NoError(t, err)

	for _, method := range []string{"GET", "get", " Get "} {
		m, ok := r.Find(method, "/users/9")
		require.True(t, ok, method)
		assert.Equal(t, idx, m.Index)
		assert.Equal(t, "9", m.Params["id"])
	}
	_, ok := r.Find("post", "/users/9")
	assert.False(t, ok)
}

func TestInsertRejectsUnsupportedMethod(t *testing.T) {
	t.Parallel()

	r := router.New()
	_, err := r.Insert("TRACE", "/")
	require.ErrorIs(t, err, router.ErrUnsupportedMethod)
	_, err = r.Insert("", "/")
	require.ErrorIs(t, err, router.ErrUnsupportedMethod)
	assert.Equal(t, 0, r.Len())
}

func TestInsertRejectsInvalidPattern(t *testing.T) {
	t.Parallel()

	r := router.New()
	_, err := r.Insert(http.MethodGet, "users")
	require.ErrorIs(t, err, router.ErrInvalidPattern)
	_, err = r.Insert(http.MethodGet, "/files/{*rest}/tail")
	require.ErrorIs(t, err, router.ErrInvalidPattern)
	_, err = r.Insert(http.MethodGet, "/a/{id}/b/{id}")
	require.ErrorIs(t, err, router.ErrInvalidPattern)
}

func TestDuplicateRegistrationGetsDistinctIndex(t *testing.T) {
	t.Parallel()

	r := router.New()
	first, err := r.Insert(http.MethodGet, "/ping")
	require.NoError(t, err)
	second, err := r.Insert(http.MethodGet, "/ping")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	m, ok := r.Find(http.MethodGet, "/ping")
	require.True(t, ok)
	assert.Contains(t, []int{first, second}, m.Index)
}
