// Package ws implements the bridge transport over a WebSocket connection.
//
// A single write pump serializes outbound frames and a single read loop
// delivers inbound frames, so the per-direction ordering guarantee of
// transport.Transport holds without further locking.
package ws

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/prismshell/prism/internal/transport"
)

const (
	defaultReadLimit  = 1 << 20 // 1 MiB
	defaultSendBuffer = 64
	writeWait         = 10 * time.Second
)

// Conn adapts a *websocket.Conn to transport.Transport.
type Conn struct {
	conn     *websocket.Conn
	logger   *zap.Logger
	outbound chan []byte
	done     chan struct{}

	bindOnce  sync.Once
	closeOnce sync.Once
}

// Option configures a Conn.
type Option func(*Conn)

// WithLogger attaches a logger for transport-level diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Conn) { c.logger = logger }
}

// New wraps an established WebSocket connection. The write pump starts
// immediately; the read loop starts on Bind.
func New(conn *websocket.Conn, opts ...Option) *Conn {
	c := &Conn{
		conn:     conn,
		logger:   zap.NewNop(),
		outbound: make(chan []byte, defaultSendBuffer),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	conn.SetReadLimit(defaultReadLimit)

	go c.writePump()
	return c
}

// Dial connects to a bridge WebSocket endpoint and wraps the connection.
func Dial(ctx context.Context, url string, opts ...Option) (*Conn, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, http.Header{})
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return New(conn, opts...), nil
}

func (c *Conn) Send(ctx context.Context, payload []byte) error {
	select {
	case <-c.done:
		return transport.ErrClosed
	default:
	}

	select {
	case c.outbound <- payload:
		return nil
	case <-c.done:
		return transport.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Conn) Bind(h transport.Handler) {
	c.bindOnce.Do(func() {
		go c.readLoop(h)
	})
}

func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		// Best-effort close handshake before dropping the TCP conn.
		deadline := time.Now().Add(writeWait)
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		c.conn.Close()
	})
	return nil
}

func (c *Conn) Done() <-chan struct{} {
	return c.done
}

func (c *Conn) writePump() {
	for {
		select {
		case payload := <-c.outbound:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.logger.Debug("websocket write failed", zap.Error(err))
				c.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *Conn) readLoop(h transport.Handler) {
	defer c.Close()
	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Debug("websocket read failed", zap.Error(err))
			}
			return
		}
		h(payload)
	}
}
