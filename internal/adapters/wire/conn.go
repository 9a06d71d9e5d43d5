package wire

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var ErrClosed = errors.New("wire: connection closed")

// RemoteError is an error envelope received in reply to a request.
type RemoteError struct {
	Code string
}

func (e *RemoteError) Error() string { return "wire: remote error: " + e.Code }

type waiter struct {
	want []string
	ch   chan []byte
}

// Conn is the client end of a relay WebSocket. Replies to Request are routed
// to the caller; every other message goes to the handler given to Start.
type Conn struct {
	ws *websocket.Conn

	writeMu sync.Mutex
	reqMu   sync.Mutex

	mu     sync.Mutex
	waiter *waiter

	done      chan struct{}
	closeOnce sync.Once
}

// Dial opens a WebSocket to url.
func Dial(ctx context.Context, url string, header http.Header) (*Conn, error) {
	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return &Conn{ws: ws, done: make(chan struct{})}, nil
}

// Start runs the read loop until the socket closes.
func (c *Conn) Start(onMessage func(typ string, data []byte)) {
	go c.readLoop(onMessage)
}

func (c *Conn) readLoop(onMessage func(string, []byte)) {
	defer c.Close()
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				log.Debug().Err(err).Str("module", "wire").Msg("read loop ended")
			}
			return
		}
		typ, err := TypeOf(data)
		if err != nil {
			log.Warn().Err(err).Str("module", "wire").Msg("bad json")
			continue
		}
		if c.deliver(typ, data) {
			continue
		}
		if onMessage != nil {
			onMessage(typ, data)
		}
	}
}

func (c *Conn) deliver(typ string, data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.waiter == nil {
		return false
	}
	match := typ == TypeError
	for _, w := range c.waiter.want {
		if w == typ {
			match = true
		}
	}
	if !match {
		return false
	}
	c.waiter.ch <- data
	c.waiter = nil
	return true
}

// Send writes v as one JSON text message.
func (c *Conn) Send(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	if err := c.ws.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, b)
}

// Request sends v and waits for the first reply whose type is in want, or an
// error envelope. One request is in flight at a time.
func (c *Conn) Request(ctx context.Context, v any, want ...string) ([]byte, error) {
	c.reqMu.Lock()
	defer c.reqMu.Unlock()

	w := &waiter{want: want, ch: make(chan []byte, 1)}
	c.mu.Lock()
	c.waiter = w
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		if c.waiter == w {
			c.waiter = nil
		}
		c.mu.Unlock()
	}()

	if err := c.Send(v); err != nil {
		return nil, err
	}
	select {
	case data := <-w.ch:
		if typ, _ := TypeOf(data); typ == TypeError {
			var e Error
			if err := json.Unmarshal(data, &e); err != nil {
				return nil, err
			}
			return nil, &RemoteError{Code: e.Error}
		}
		return data, nil
	case <-c.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Conn) Done() <-chan struct{} { return c.done }

func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		c.writeMu.Lock()
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		c.writeMu.Unlock()
		err = c.ws.Close()
	})
	return err
}
