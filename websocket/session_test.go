package websocket

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/dispatchkit/bridge"
)

func TestQueueFIFOAndClose(t *testing.T) {
	t.Parallel()

	q := newQueue[string]()
	require.True(t, q.push("a"))
	require.True(t, q.push("b"))
	assert.Equal(t, 2, q.len())

	q.close()
	assert.False(t, q.push("c"))

	v, err := q.pop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a", v)
	v, err = q.pop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "b", v)

	_, err = q.pop(context.Background())
	require.ErrorIs(t, err, ErrConnectionClosed)
}

func TestQueuePopWaitsForPush(t *testing.T) {
	t.Parallel()

	q := newQueue[int]()
	go func() {
		time.Sleep(10 * time.Millisecond)
		q.push(42)
	}()
	v, err := q.pop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestQueuePopHonoursContext(t *testing.T) {
	t.Parallel()

	q := newQueue[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := q.pop(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSessionCloseDefaultsToNormal(t *testing.T) {
	t.Parallel()

	s := newSession(nil)
	s.state.Store(int32(StateOpen))
	s.Close(0)
	s.Close(4000)

	assert.Equal(t, 1000, s.closeCode)
	assert.Equal(t, StateClosing, s.State())
	select {
	case <-s.closing:
	default:
		t.Fatal("close signal not raised")
	}
}

func TestSessionTeardown(t *testing.T) {
	t.Parallel()

	s := newSession(nil)
	s.state.Store(int32(StateOpen))
	s.inbound.push("left over")
	s.teardown()

	assert.Equal(t, StateClosed, s.State())
	require.ErrorIs(t, s.Send("late"), ErrConnectionClosed)

	msg, err := s.Recv(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "left over", msg)
	_, err = s.Recv(context.Background())
	require.ErrorIs(t, err, ErrConnectionClosed)
}

func TestSessionRecvReleasesRegion(t *testing.T) {
	t.Parallel()

	region := bridge.NewExclusive()
	require.NoError(t, region.Acquire(context.Background()))

	s := newSession(nil)
	s.region.Store(region)

	got := make(chan string, 1)
	go func() {
		msg, _ := s.Recv(context.Background())
		got <- msg
	}()

	// The region must become free while Recv is blocked.
	require.Eventually(t, region.TryAcquire, time.Second, 5*time.Millisecond)
	s.inbound.push("hello")
	region.Release()

	assert.Equal(t, "hello", <-got)
	assert.False(t, region.TryAcquire(), "Recv reacquires the region before returning")
}

func TestSessionRecvAsync(t *testing.T) {
	t.Parallel()

	s := newSession(nil)
	co := bridge.Go(func(ctx context.Context, co *bridge.Co) (any, error) {
		return s.RecvAsync(co)
	})
	go func() {
		time.Sleep(10 * time.Millisecond)
		s.inbound.push("ping")
	}()

	var loop bridge.Loop
	v, err := loop.RunUntilComplete(context.Background(), co)
	require.NoError(t, err)
	assert.Equal(t, "ping", v)
}

func TestSessionTryRecv(t *testing.T) {
	t.Parallel()

	s := newSession(nil)
	_, ok, closed, changed := s.TryRecv()
	assert.False(t, ok)
	assert.False(t, closed)
	require.NotNil(t, changed)

	require.True(t, s.inbound.push("hi"))
	select {
	case <-changed:
	case <-time.After(time.Second):
		t.Fatal("change signal not delivered")
	}
	msg, ok, _, _ := s.TryRecv()
	assert.True(t, ok)
	assert.Equal(t, "hi", msg)

	s.inbound.close()
	_, ok, closed, _ = s.TryRecv()
	assert.False(t, ok)
	assert.True(t, closed)
}

func TestStateString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "upgrading", StateUpgrading.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "closing", StateClosing.String())
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "unknown", State(9).String())
}
