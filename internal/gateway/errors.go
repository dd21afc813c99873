package gateway

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthentication is returned when credentials are missing or the
	// gateway rejects the handshake. It is never retried automatically.
	ErrAuthentication = errors.New("authentication failed")
	// ErrNotOpen is returned by send operations while the socket is not open.
	ErrNotOpen = errors.New("connection is not open")
	// ErrConnectionLost fails requests that were pending when the socket dropped.
	ErrConnectionLost = errors.New("connection lost")
	// ErrClosed fails requests that were pending when the client was shut down.
	ErrClosed = errors.New("client shut down")
)

// ProtocolError is a server error answering a correlated request.
type ProtocolError struct {
	// Request is the tag of the request the gateway rejected.
	Request string
	// Message is the server's error text.
	Message string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("gateway rejected %s: %s", e.Request, e.Message)
}
