package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/dispatchkit/pkg/logger"
	"github.com/dmitrymomot/dispatchkit/pkg/luahost"
	"github.com/dmitrymomot/dispatchkit/server"
)

func startApp(t *testing.T) string {
	t.Helper()
	host := luahost.New()
	t.Cleanup(host.Close)

	srv, err := newServer(context.Background(), appConfig{Server: server.Config{}}, host, logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return ts.URL
}

func call(t *testing.T, method, url, body string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(b)
}

func TestDemoItems(t *testing.T) {
	t.Parallel()
	url := startApp(t)

	resp, body := call(t, http.MethodPost, url+"/items", `{"name":"lamp","price":12.5}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	assert.Equal(t, "/items/1", resp.Header.Get("Location"))
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	_, body = call(t, http.MethodGet, url+"/items/1", "")
	assert.JSONEq(t, `{"item":{"id":1,"name":"lamp","price":12.5},"viewer":"anonymous"}`, body)

	_, body = call(t, http.MethodGet, url+"/items?limit=10", "")
	assert.JSONEq(t, `[{"id":1,"name":"lamp","price":12.5}]`, body)

	resp, _ = call(t, http.MethodPost, url+"/items", `{"name":"","price":-1}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp, _ = call(t, http.MethodDelete, url+"/items/1", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = call(t, http.MethodGet, url+"/items/1", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.JSONEq(t, `{"detail":"Item not found"}`, body)
}

func TestDemoMisc(t *testing.T) {
	t.Parallel()
	url := startApp(t)

	_, body := call(t, http.MethodGet, url+"/slow?ms=5", "")
	assert.JSONEq(t, `{"slept":5}`, body)

	resp, body := call(t, http.MethodPost, url+"/notify?message=hi", "")
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.JSONEq(t, `{"queued":true}`, body)

	resp, body = call(t, http.MethodGet, url+"/nope", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.JSONEq(t, `{"error":"Not Found","path":"/nope"}`, body)

	_, body = call(t, http.MethodGet, url+"/health", "")
	assert.Equal(t, "ALIVE", body)
}

func TestDemoEcho(t *testing.T) {
	t.Parallel()
	url := startApp(t)

	conn, _, err := gws.DefaultDialer.Dial("ws"+strings.TrimPrefix(url, "http")+"/ws/echo", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(gws.TextMessage, []byte("ping")))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "ping", string(msg))
}
