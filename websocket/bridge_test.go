package websocket_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/dispatchkit/bridge"
	"github.com/dmitrymomot/dispatchkit/websocket"
)

func serve(t *testing.T, b *websocket.Bridge, h websocket.Handler) *gws.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !websocket.IsUpgrade(r) {
			http.Error(w, "upgrade required", http.StatusUpgradeRequired)
			return
		}
		_ = b.Serve(w, r, h, nil)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/room"
	conn, resp, err := gws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	t.Cleanup(func() { _ = conn.Close() })
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func newBridge(t *testing.T, opts ...websocket.Option) (*websocket.Bridge, *bridge.Pool) {
	t.Helper()
	pool := bridge.NewPool(bridge.WithSize(2), bridge.WithExclusive(bridge.NewExclusive()))
	b := websocket.New(pool, opts...)
	t.Cleanup(func() {
		b.Close()
		pool.Close()
	})
	return b, pool
}

func readClose(t *testing.T, conn *gws.Conn) int {
	t.Helper()
	for {
		_, _, err := conn.ReadMessage()
		if err == nil {
			continue
		}
		var ce *gws.CloseError
		require.True(t, errors.As(err, &ce), "expected close frame, got %v", err)
		return ce.Code
	}
}

func TestBridgeEcho(t *testing.T) {
	t.Parallel()

	b, _ := newBridge(t)
	conn := serve(t, b, websocket.Func(func(ctx context.Context, s *websocket.Session) error {
		assert.NoError(t, s.Accept())
		assert.Equal(t, "/ws/room", s.Request().Path())
		for {
			msg, err := s.Recv(ctx)
			if errors.Is(err, websocket.ErrConnectionClosed) {
				return nil
			}
			if err != nil {
				return err
			}
			if msg == "bye" {
				s.Close(0)
				return nil
			}
			if err := s.Send("echo: " + msg); err != nil {
				return err
			}
		}
	}))

	require.NoError(t, conn.WriteMessage(gws.TextMessage, []byte("hi")))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "echo: hi", string(data))

	require.NoError(t, conn.WriteMessage(gws.TextMessage, []byte("bye")))
	assert.Equal(t, gws.CloseNormalClosure, readClose(t, conn))
}

func TestBridgeFlushesQueuedMessagesBeforeClose(t *testing.T) {
	t.Parallel()

	b, _ := newBridge(t)
	conn := serve(t, b, websocket.Func(func(ctx context.Context, s *websocket.Session) error {
		for _, m := range []string{"one", "two", "three"} {
			if err := s.Send(m); err != nil {
				return err
			}
		}
		return nil
	}))

	var got []string
	for range 3 {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		got = append(got, string(data))
	}
	assert.Equal(t, []string{"one", "two", "three"}, got)
	assert.Equal(t, gws.CloseNormalClosure, readClose(t, conn))
}

func TestBridgeHandlerErrorClosesWith1011(t *testing.T) {
	t.Parallel()

	b, _ := newBridge(t)
	conn := serve(t, b, websocket.Func(func(context.Context, *websocket.Session) error {
		return errors.New("boom")
	}))
	assert.Equal(t, gws.CloseInternalServerErr, readClose(t, conn))
}

func TestBridgeHandlerPanicClosesWith1011(t *testing.T) {
	t.Parallel()

	b, _ := newBridge(t)
	conn := serve(t, b, websocket.Func(func(context.Context, *websocket.Session) error {
		panic("kaboom")
	}))
	assert.Equal(t, gws.CloseInternalServerErr, readClose(t, conn))
}

func TestBridgeCustomCloseCode(t *testing.T) {
	t.Parallel()

	b, _ := newBridge(t)
	conn := serve(t, b, websocket.Func(func(_ context.Context, s *websocket.Session) error {
		s.Close(4001)
		return nil
	}))
	assert.Equal(t, 4001, readClose(t, conn))
}

func TestBridgeAsyncHandler(t *testing.T) {
	t.Parallel()

	b, pool := newBridge(t)
	conn := serve(t, b, websocket.AsyncFunc(func(_ context.Context, s *websocket.Session, co *bridge.Co) error {
		msg, err := s.RecvAsync(co)
		if err != nil {
			return err
		}
		co.Sleep(5 * time.Millisecond)
		return s.SendJSON(map[string]any{"got": msg})
	}))

	require.NoError(t, conn.WriteMessage(gws.TextMessage, []byte("async")))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"got":"async"}`, string(data))
	assert.Equal(t, gws.CloseNormalClosure, readClose(t, conn))
	assert.Equal(t, 1, pool.LoopsCreated())
}

func TestBridgeBlockedRecvDoesNotStallPool(t *testing.T) {
	t.Parallel()

	b, pool := newBridge(t)
	started := make(chan struct{})
	conn := serve(t, b, websocket.Func(func(ctx context.Context, s *websocket.Session) error {
		close(started)
		_, err := s.Recv(ctx)
		if errors.Is(err, websocket.ErrConnectionClosed) {
			return nil
		}
		return err
	}))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	ran := false
	require.NoError(t, pool.Run(ctx, func(context.Context, *bridge.Worker) error {
		ran = true
		return nil
	}))
	assert.True(t, ran)

	require.NoError(t, conn.WriteMessage(gws.TextMessage, []byte("done")))
	assert.Equal(t, gws.CloseNormalClosure, readClose(t, conn))
}

func TestBridgeSessionObserver(t *testing.T) {
	t.Parallel()

	var open atomic.Int32
	var closed atomic.Int32
	b, _ := newBridge(t, websocket.WithSessionObserver(func(isOpen bool) {
		if isOpen {
			open.Add(1)
			return
		}
		closed.Add(1)
	}))
	conn := serve(t, b, websocket.Func(func(context.Context, *websocket.Session) error { return nil }))
	readClose(t, conn)

	require.Eventually(t, func() bool { return closed.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), open.Load())
}

func TestBridgeCloseStopsSessions(t *testing.T) {
	t.Parallel()

	pool := bridge.NewPool(bridge.WithSize(1))
	defer pool.Close()
	b := websocket.New(pool)

	conn := serve(t, b, websocket.Func(func(ctx context.Context, s *websocket.Session) error {
		_, err := s.Recv(ctx)
		return err
	}))

	done := make(chan struct{})
	go func() {
		b.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("bridge close did not return")
	}
	readClose(t, conn)
}

func TestIsUpgrade(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	assert.False(t, websocket.IsUpgrade(r))

	r.Header.Set("Connection", "Upgrade")
	r.Header.Set("Upgrade", "websocket")
	assert.True(t, websocket.IsUpgrade(r))
}
