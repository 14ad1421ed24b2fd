// Package bridge carries protocol messages between the daemon and one
// browser frame over a WebSocket.
package bridge

import (
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pdfview/pdfview/internal/protocol"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20
	sendBuffer     = 256
)

var (
	// ErrClosed is returned by Send after the connection has closed.
	ErrClosed = errors.New("bridge: connection closed")
	// ErrOverflow is returned by Send when the frame is not keeping up.
	ErrOverflow = errors.New("bridge: send buffer full")
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Conn is the host end of a frame connection. Messages are written by a
// single goroutine, so they reach the frame in the order Send was called.
type Conn struct {
	ws   *websocket.Conn
	name string

	send chan []byte

	mu     sync.Mutex
	closed bool
	code   int
	done   chan struct{}
}

// Upgrade accepts a frame connection on an HTTP request.
func Upgrade(w http.ResponseWriter, r *http.Request, name string) (*Conn, error) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	return NewConn(ws, name), nil
}

// NewConn wraps an established WebSocket and starts its writer.
func NewConn(ws *websocket.Conn, name string) *Conn {
	c := &Conn{
		ws:   ws,
		name: name,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
	go c.writeLoop()
	return c
}

// Send queues msg for the frame without waiting for the network.
func (c *Conn) Send(msg protocol.HostMessage) error {
	data, err := protocol.EncodeHost(msg)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.send <- data:
		return nil
	default:
		return ErrOverflow
	}
}

// Close ends the frame's session. It is safe to call more than once.
func (c *Conn) Close() error {
	return c.closeWith(websocket.CloseNormalClosure)
}

// Release disconnects without ending the session; the frame reconnects
// when the daemon is back.
func (c *Conn) Release() error {
	return c.closeWith(websocket.CloseGoingAway)
}

func (c *Conn) closeWith(code int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.code = code
	close(c.done)
	return nil
}

// Done is closed once the connection is closed.
func (c *Conn) Done() <-chan struct{} { return c.done }

// ReadLoop decodes frame messages and hands each to handle until the
// connection ends. Unknown message types are logged and skipped. It closes
// the connection before returning and reports nil for a normal close.
func (c *Conn) ReadLoop(handle func(protocol.FrameMessage)) error {
	defer c.Close()

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				return err
			}
			return nil
		}
		msg, err := protocol.DecodeFrame(raw)
		if err != nil {
			log.Printf("bridge: %s: %v", c.name, err)
			continue
		}
		handle(msg)
	}
}

func (c *Conn) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case data := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Printf("bridge: %s: write: %v", c.name, err)
				c.Close()
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		case <-c.done:
			c.flush()
			c.mu.Lock()
			code := c.code
			c.mu.Unlock()
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, ""))
			return
		}
	}
}

// flush writes whatever was queued before Close.
func (c *Conn) flush() {
	for {
		select {
		case data := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		default:
			return
		}
	}
}
