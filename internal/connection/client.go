package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Transport is a single gateway websocket connection.
type Transport interface {
	// Connect performs the websocket opening handshake and starts reading.
	Connect(ctx context.Context) error

	// Send writes one text frame.
	Send(data []byte) error

	// Receive returns the next inbound frame in arrival order. It blocks
	// until a frame is available and returns false once the connection has
	// ended and every queued frame has been delivered.
	Receive() (Frame, bool)

	// CloseEvent reports how the connection ended. Valid after Receive
	// has returned false.
	CloseEvent() CloseEvent

	// Close sends a close frame with the given code and waits for the peer
	// to answer, bounded by CloseTimeout.
	Close(code int, reason string) error

	// Abort drops the underlying connection without a close handshake.
	Abort() error

	// IsConnected reports whether frames can still be sent.
	IsConnected() bool
}

// client implements the Transport interface.
type client struct {
	cfg    Config
	logger *slog.Logger

	conn   *websocket.Conn
	frames *queue[Frame]
	done   chan struct{} // closed when readLoop exits

	// Write serialization
	writeMu sync.Mutex

	// State
	mu         sync.RWMutex
	started    bool
	connected  bool
	closing    bool
	aborted    bool
	closeCode  int
	closeEvent CloseEvent
}

// NewClient creates a new websocket transport.
func NewClient(cfg Config, logger *slog.Logger) Transport {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultConfig()
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = defaults.HandshakeTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaults.WriteTimeout
	}
	if cfg.CloseTimeout <= 0 {
		cfg.CloseTimeout = defaults.CloseTimeout
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaults.QueueSize
	}

	return &client{
		cfg:    cfg,
		logger: logger,
		frames: newQueue[Frame](cfg.QueueSize),
		done:   make(chan struct{}),
	}
}

// Connect establishes the websocket connection.
func (c *client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return ErrAlreadyClosed
	}
	c.started = true
	c.mu.Unlock()

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: c.cfg.HandshakeTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		c.finish(CloseEvent{Code: CloseAbnormal, Err: err})
		close(c.done)
		return fmt.Errorf("dial gateway: %w", err)
	}
	if c.cfg.ReadLimit > 0 {
		conn.SetReadLimit(c.cfg.ReadLimit)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	go c.readLoop(conn)

	c.logger.Debug("websocket connected", "url", c.cfg.URL)

	return nil
}

// Send writes raw bytes to the connection.
func (c *client) Send(data []byte) error {
	c.mu.RLock()
	if !c.connected || c.closing {
		c.mu.RUnlock()
		return ErrNotConnected
	}
	conn := c.conn
	c.mu.RUnlock()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, data)
}

// Receive returns the next queued frame.
func (c *client) Receive() (Frame, bool) {
	return c.frames.pop()
}

// CloseEvent returns how the connection ended.
func (c *client) CloseEvent() CloseEvent {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closeEvent
}

// Close performs the close handshake.
func (c *client) Close(code int, reason string) error {
	c.mu.Lock()
	if !c.connected || c.closing {
		c.mu.Unlock()
		return nil
	}
	c.closing = true
	c.closeCode = code
	conn := c.conn
	c.mu.Unlock()

	msg := websocket.FormatCloseMessage(code, reason)
	err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.cfg.WriteTimeout))
	if err != nil {
		conn.Close()
		<-c.done
		return fmt.Errorf("write close frame: %w", err)
	}

	select {
	case <-c.done:
	case <-time.After(c.cfg.CloseTimeout):
		c.logger.Debug("peer did not answer close frame", "timeout", c.cfg.CloseTimeout)
		conn.Close()
		<-c.done
	}
	return nil
}

// Abort closes the socket without a close frame.
func (c *client) Abort() error {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return nil
	}
	c.aborted = true
	c.closing = true
	conn := c.conn
	c.mu.Unlock()

	return conn.Close()
}

// IsConnected returns the current connection state.
func (c *client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected && !c.closing
}

// readLoop queues inbound frames until the connection ends.
func (c *client) readLoop(conn *websocket.Conn) {
	defer close(c.done)

	for {
		_, data, err := conn.ReadMessage()
		receivedAt := time.Now()

		if err != nil {
			conn.Close()
			c.finish(c.classify(err))
			return
		}

		c.frames.push(Frame{
			Data:       data,
			ReceivedAt: receivedAt,
		})
	}
}

// classify turns a read error into a CloseEvent. A close frame from the
// peer is clean; anything else is not.
func (c *client) classify(err error) CloseEvent {
	c.mu.RLock()
	aborted, closing, code := c.aborted, c.closing, c.closeCode
	c.mu.RUnlock()

	var ce *websocket.CloseError
	switch {
	case aborted:
		return CloseEvent{Code: CloseAbnormal, Reason: "aborted"}
	case errors.As(err, &ce) && ce.Code != websocket.CloseAbnormalClosure:
		return CloseEvent{Code: ce.Code, Reason: ce.Text, WasClean: true}
	case closing:
		// We sent a close frame but the peer never answered.
		return CloseEvent{Code: code}
	default:
		return CloseEvent{Code: CloseAbnormal, Err: err}
	}
}

func (c *client) finish(ev CloseEvent) {
	c.mu.Lock()
	c.connected = false
	c.closeEvent = ev
	c.mu.Unlock()

	c.frames.close()

	c.logger.Debug("websocket closed",
		"code", ev.Code,
		"reason", ev.Reason,
		"clean", ev.WasClean,
	)
}
