// Package bridge forwards gateway dispatch events to NATS subjects.
package bridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/rickgao/discord-gateway/internal/gateway"
)

// Headers set on every forwarded message.
const (
	HeaderEvent    = "Gateway-Event"
	HeaderSequence = "Gateway-Seq"
)

// Publisher sends a message. *nats.Conn implements it.
type Publisher interface {
	PublishMsg(msg *nats.Msg) error
}

// Config configures the NATS connection.
type Config struct {
	Servers       []string
	Name          string
	SubjectPrefix string
	Events        []string // Empty forwards every dispatch event
	Timeout       time.Duration
}

// Connect dials NATS with reconnects enabled.
func Connect(cfg Config, logger *slog.Logger) (*nats.Conn, error) {
	if len(cfg.Servers) == 0 {
		return nil, errors.New("nats servers missing")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 3 * time.Second
	}
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(500 * time.Millisecond),
		nats.ReconnectJitter(100*time.Millisecond, 500*time.Millisecond),
		nats.Timeout(cfg.Timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	}
	nc, err := nats.Connect(strings.Join(cfg.Servers, ","), opts...)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return nc, nil
}

// Message is the body of a forwarded event.
type Message struct {
	Event    string          `json:"event"`
	Sequence int64           `json:"seq"`
	Data     json.RawMessage `json:"d"`
}

// Forwarder publishes dispatch events observed on a gateway bus.
type Forwarder struct {
	pub    Publisher
	prefix string
	events map[string]bool
	logger *slog.Logger

	published atomic.Int64
	failed    atomic.Int64
}

// NewForwarder creates a Forwarder publishing under prefix. Only the named
// events are forwarded when events is non-empty.
func NewForwarder(pub Publisher, prefix string, events []string, logger *slog.Logger) *Forwarder {
	if logger == nil {
		logger = slog.Default()
	}
	f := &Forwarder{
		pub:    pub,
		prefix: strings.TrimSuffix(prefix, "."),
		logger: logger,
	}
	if len(events) > 0 {
		f.events = make(map[string]bool, len(events))
		for _, name := range events {
			f.events[name] = true
		}
	}
	return f
}

// Attach subscribes the forwarder to bus and returns the unsubscribe func.
func (f *Forwarder) Attach(bus *gateway.Bus) func() {
	return bus.SubscribeAll(f.Handle)
}

// Subject returns the subject an event is published on:
// "guild create" becomes "<prefix>.guild_create".
func (f *Forwarder) Subject(event string) string {
	return f.prefix + "." + strings.ReplaceAll(event, " ", "_")
}

// Handle forwards one event. Lifecycle notifications are skipped.
func (f *Forwarder) Handle(ev gateway.Event) {
	if gateway.IsLifecycle(ev.Name) {
		return
	}
	if f.events != nil && !f.events[ev.Name] {
		return
	}

	raw := ev.Raw
	if len(raw) == 0 {
		raw = json.RawMessage("null")
	}
	body, err := json.Marshal(Message{Event: ev.Name, Sequence: ev.Sequence, Data: raw})
	if err != nil {
		f.failed.Add(1)
		f.logger.Warn("failed to encode event for nats", "event", ev.Name, "error", err)
		return
	}

	msg := nats.NewMsg(f.Subject(ev.Name))
	msg.Data = body
	msg.Header.Set(HeaderEvent, ev.Name)
	msg.Header.Set(HeaderSequence, strconv.FormatInt(ev.Sequence, 10))

	if err := f.pub.PublishMsg(msg); err != nil {
		f.failed.Add(1)
		f.logger.Warn("nats publish failed", "subject", msg.Subject, "seq", ev.Sequence, "error", err)
		return
	}
	f.published.Add(1)
}

// Stats returns how many events were published and how many failed.
func (f *Forwarder) Stats() (published, failed int64) {
	return f.published.Load(), f.failed.Load()
}
