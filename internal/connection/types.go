package connection

import (
	"errors"
	"time"
)

// Errors
var (
	ErrNotConnected  = errors.New("not connected")
	ErrAlreadyClosed = errors.New("already closed")
)

// Close codes used by the transport itself.
const (
	CloseNormal    = 1000
	CloseGoingAway = 1001
	CloseNoStatus  = 1005
	CloseAbnormal  = 1006
)

// Frame is one inbound text message.
type Frame struct {
	Data       []byte    // Raw message bytes from WebSocket
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// CloseEvent describes how a connection ended.
type CloseEvent struct {
	Code     int
	Reason   string
	WasClean bool  // a close frame was exchanged with the peer
	Err      error // transport error, nil for close frames and local aborts
}

// Config configures a Transport.
type Config struct {
	URL              string        // Gateway URL including query parameters
	HandshakeTimeout time.Duration // Websocket opening handshake timeout
	WriteTimeout     time.Duration // Write deadline for sends
	CloseTimeout     time.Duration // How long Close waits for the peer's close frame
	QueueSize        int           // Initial inbound queue capacity
	ReadLimit        int64         // Max inbound message size, 0 = unlimited
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     5 * time.Second,
		CloseTimeout:     3 * time.Second,
		QueueSize:        256,
	}
}
