// Package transport carries envelope frames to and from the remote service
// over a persistent duplex connection.
package transport

import (
	"context"
	"errors"
	"time"
)

var ErrConnectionClosed = errors.New("connection closed")

// Frame is one inbound message. A frame with Err set is the last one the
// connection delivers before its Inbound channel closes.
type Frame struct {
	Data       []byte
	ReceivedAt time.Time
	Err        error
}

type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

type Conn interface {
	// Send writes one message. Sending on a closed connection fails with
	// ErrConnectionClosed.
	Send(ctx context.Context, data []byte) error
	Inbound() <-chan Frame
	// Close is safe to call more than once.
	Close() error
}
