package websocket

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/dmitrymomot/dispatchkit/bridge"
	"github.com/dmitrymomot/dispatchkit/pkg/jsoncodec"
	"github.com/dmitrymomot/dispatchkit/request"
)

// State is the lifecycle stage of a session.
type State int32

const (
	StateUpgrading State = iota
	StateOpen
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUpgrading:
		return "upgrading"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Session is the handler's view of one connection.
type Session struct {
	id       string
	request  *request.Context
	outbound *queue[string]
	inbound  *queue[string]

	closeOnce sync.Once
	closing   chan struct{}
	closeCode int

	state  atomic.Int32
	region atomic.Pointer[bridge.Exclusive]
}

func newSession(rc *request.Context) *Session {
	s := &Session{
		id:       uuid.NewString(),
		request:  rc,
		outbound: newQueue[string](),
		inbound:  newQueue[string](),
		closing:  make(chan struct{}),
	}
	s.state.Store(int32(StateUpgrading))
	return s
}

// ID returns a random session identifier.
func (s *Session) ID() string { return s.id }

// Request returns the request that was upgraded, including path parameters.
func (s *Session) Request() *request.Context { return s.request }

// State returns the current lifecycle stage.
func (s *Session) State() State { return State(s.state.Load()) }

// Accept exists for handlers written against an explicit accept step. The
// handshake has already completed when the handler runs.
func (s *Session) Accept() error { return nil }

// Send enqueues a text message without blocking.
func (s *Session) Send(text string) error {
	if !s.outbound.push(text) {
		return ErrConnectionClosed
	}
	return nil
}

// SendJSON encodes v and sends it as a text message.
func (s *Session) SendJSON(v any) error {
	b, err := jsoncodec.Marshal(v)
	if err != nil {
		return err
	}
	return s.Send(string(b))
}

// Recv returns the next inbound message. Once the peer has gone and every
// queued message was read it returns ErrConnectionClosed. When called from a
// handler running on the pool, the exclusive region is released while Recv
// waits.
func (s *Session) Recv(ctx context.Context) (string, error) {
	if v, ok, closed, _ := s.inbound.next(); ok {
		return v, nil
	} else if closed {
		return "", ErrConnectionClosed
	}
	if r := s.region.Load(); r != nil {
		r.Release()
		defer func() { _ = r.Acquire(context.Background()) }()
	}
	return s.inbound.pop(ctx)
}

// RecvJSON receives a message and decodes it into v.
func (s *Session) RecvJSON(ctx context.Context, v any) error {
	msg, err := s.Recv(ctx)
	if err != nil {
		return err
	}
	return jsoncodec.Unmarshal([]byte(msg), v)
}

// RecvAsync is Recv for asynchronous handlers: it suspends the coroutine on
// co until a message arrives.
func (s *Session) RecvAsync(co *bridge.Co) (string, error) {
	for {
		v, ok, closed, changed := s.inbound.next()
		if ok {
			return v, nil
		}
		if closed {
			return "", ErrConnectionClosed
		}
		co.Wait(changed)
	}
}

// TryRecv returns the next inbound message without blocking. When ok and
// closed are both false, changed is closed once either may have changed.
func (s *Session) TryRecv() (msg string, ok, closed bool, changed <-chan struct{}) {
	return s.inbound.next()
}

// Close asks the writer to send a close frame with code and stop. A zero code
// means 1000. Only the first call has an effect.
func (s *Session) Close(code int) {
	if code == 0 {
		code = websocket.CloseNormalClosure
	}
	s.closeOnce.Do(func() {
		s.closeCode = code
		s.state.CompareAndSwap(int32(StateOpen), int32(StateClosing))
		close(s.closing)
	})
}

// Pending returns the number of queued outbound messages.
func (s *Session) Pending() int { return s.outbound.len() }

func (s *Session) teardown() {
	s.Close(websocket.CloseNormalClosure)
	s.outbound.close()
	s.inbound.close()
	s.state.Store(int32(StateClosed))
}
