package lsproto

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/coder/websocket"
)

const (
	// HeaderEncodings lists the encodings a client accepts, in preference order
	HeaderEncodings = "X-Livesync-Encodings"
	// HeaderEncoding is the encoding the server picked
	HeaderEncoding = "X-Livesync-Encoding"

	// MaxMessageSize bounds a single frame. Files are sent whole, so this is
	// also the largest file that can be synced.
	MaxMessageSize = 32 * 1024 * 1024

	connChannelSize  = 256
	connPingPeriod   = 15 * time.Second
	connPingTimeout  = 5 * time.Second
	connWriteTimeout = 20 * time.Second
)

var ErrConnClosed = errors.New("lsproto: connection closed")

// Conn exchanges Messages over a websocket with a dedicated read and write loop
type Conn struct {
	conn      *websocket.Conn
	encoding  Encoding
	msgRx     chan *Message
	msgTx     chan *Message
	closed    chan struct{}
	closing   chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func NewConn(conn *websocket.Conn, enc Encoding) *Conn {
	conn.SetReadLimit(MaxMessageSize)
	return &Conn{
		conn:     conn,
		encoding: enc,
		msgRx:    make(chan *Message, connChannelSize),
		msgTx:    make(chan *Message, connChannelSize),
		closed:   make(chan struct{}),
		closing:  make(chan struct{}),
	}
}

func (c *Conn) Start(ctx context.Context) {
	c.wg.Add(2)
	go c.writeLoop(ctx)
	go c.readLoop(ctx)
}

func (c *Conn) Encoding() Encoding {
	return c.encoding
}

// Rx delivers received messages. It is closed once the connection is gone.
func (c *Conn) Rx() <-chan *Message {
	return c.msgRx
}

// Closed is closed once both loops have exited
func (c *Conn) Closed() <-chan struct{} {
	return c.closed
}

// Send queues msg for writing
func (c *Conn) Send(ctx context.Context, msg *Message) error {
	select {
	case <-c.closing:
		return ErrConnClosed
	default:
	}

	select {
	case c.msgTx <- msg:
		return nil
	case <-c.closing:
		return ErrConnClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Conn) Close() {
	c.closeConnection(websocket.StatusNormalClosure, "shutdown")
}

func (c *Conn) closeConnection(status websocket.StatusCode, reason string) {
	c.closeOnce.Do(func() {
		close(c.closing)
		c.conn.Close(status, reason)

		// wait for both read and write loops to finish
		c.wg.Wait()

		close(c.closed)
		close(c.msgRx)
	})
}

func (c *Conn) readLoop(ctx context.Context) {
	defer func() {
		slog.Debug("socket reader shutdown")
		c.wg.Done()
		go c.closeConnection(websocket.StatusNormalClosure, "shutdown")
	}()

	for {
		typ, raw, err := c.conn.Read(ctx)
		if err != nil {
			if !isExpectedCloseError(err) {
				slog.Warn("socket RECV", "error", err)
			}
			return
		}

		msg, _, err := Unmarshal(typ, raw)
		if err != nil {
			slog.Warn("socket RECV decode", "error", err)
			continue
		}

		select {
		case <-c.closing:
			return
		case c.msgRx <- msg:
		default:
			slog.Warn("socket RECV buffer full", "dropped", msg)
		}
	}
}

func (c *Conn) writeLoop(ctx context.Context) {
	pingTicker := time.NewTicker(connPingPeriod)
	defer func() {
		slog.Debug("socket writer shutdown")
		pingTicker.Stop()
		c.wg.Done()
		go c.closeConnection(websocket.StatusNormalClosure, "shutdown")
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case <-c.closing:
			return

		case msg := <-c.msgTx:
			slog.Debug("socket SEND", "id", msg.Id, "type", msg.Type)

			ctxWrite, cancel := context.WithTimeout(ctx, connWriteTimeout)
			typ, payload, err := Marshal(msg, c.encoding)
			if err == nil {
				err = c.conn.Write(ctxWrite, typ, payload)
			}
			cancel()

			if err != nil {
				slog.Error("socket SEND", "error", err)
				return
			}

		case <-pingTicker.C:
			ctxPing, cancel := context.WithTimeout(ctx, connPingTimeout)
			err := c.conn.Ping(ctxPing)
			cancel()

			if err != nil {
				slog.Error("socket PING", "error", err)
				return
			}
		}
	}
}

// isExpectedCloseError returns true if the error is an expected connection closure
func isExpectedCloseError(err error) bool {
	if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
		return true
	}
	return errors.Is(err, io.EOF) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, net.ErrClosed)
}
