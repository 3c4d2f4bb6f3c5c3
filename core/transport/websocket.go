package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	writeWait               = 10 * time.Second
	pingPeriod              = 30 * time.Second
	defaultHandshakeTimeout = 10 * time.Second
	maxMessageSize          = 4 * 1024 * 1024
	inboundBufferSize       = 256
)

// WebsocketDialer opens text frame websocket connections to URL.
type WebsocketDialer struct {
	URL              string
	Header           http.Header
	HandshakeTimeout time.Duration
}

func (d WebsocketDialer) Dial(ctx context.Context) (Conn, error) {
	ctx, span := tracer.Start(ctx, "dial")
	defer span.End()
	span.SetAttributes(attribute.String("url", d.URL))

	handshakeTimeout := d.HandshakeTimeout
	if handshakeTimeout <= 0 {
		handshakeTimeout = defaultHandshakeTimeout
	}

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	ws, _, err := dialer.DialContext(ctx, d.URL, d.Header)
	if err != nil {
		err = fmt.Errorf("failed to connect to %s: %w", d.URL, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	ws.SetReadLimit(maxMessageSize)

	conn := &websocketConn{
		ws:      ws,
		inbound: make(chan Frame, inboundBufferSize),
		done:    make(chan struct{}),
	}
	go conn.readLoop()
	go conn.pingLoop()

	logger.Info("connected", "url", d.URL)
	return conn, nil
}

type websocketConn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex

	inbound chan Frame

	closed    atomic.Bool
	closeOnce sync.Once
	done      chan struct{}
}

func (c *websocketConn) Inbound() <-chan Frame {
	return c.inbound
}

func (c *websocketConn) Send(ctx context.Context, data []byte) error {
	if c.closed.Load() {
		return ErrConnectionClosed
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(writeWait)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.closed.Load() {
		return ErrConnectionClosed
	}
	_ = c.ws.SetWriteDeadline(deadline)
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("%w: failed to write: %w", ErrConnectionClosed, err)
	}
	return nil
}

func (c *websocketConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.done)

		c.writeMu.Lock()
		closeMsgErr := c.ws.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait),
		)
		c.writeMu.Unlock()
		if closeMsgErr != nil && !errors.Is(closeMsgErr, websocket.ErrCloseSent) {
			logger.Debug("failed to send close message", "error", closeMsgErr)
		}

		if closeErr := c.ws.Close(); closeErr != nil {
			err = fmt.Errorf("failed to close websocket: %w", closeErr)
		}
	})
	return err
}

func (c *websocketConn) readLoop() {
	defer close(c.inbound)

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				return
			}
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				logger.Warn("websocket read failed", "error", err)
			}
			select {
			case c.inbound <- Frame{Err: fmt.Errorf("%w: %w", ErrConnectionClosed, err), ReceivedAt: time.Now()}:
			case <-c.done:
			}
			return
		}

		select {
		case c.inbound <- Frame{Data: data, ReceivedAt: time.Now()}:
		case <-c.done:
			return
		}
	}
}

func (c *websocketConn) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			c.writeMu.Unlock()
			if err != nil {
				logger.Debug("websocket ping failed", "error", err)
				return
			}
		}
	}
}
