package websocket

import "errors"

var (
	// ErrConnectionClosed is returned by Recv once the inbound side is closed
	// and drained, and by Send after the session started closing.
	ErrConnectionClosed = errors.New("websocket: connection closed")
	// ErrBridgeClosed is returned by Serve after Close.
	ErrBridgeClosed = errors.New("websocket: bridge closed")
)
