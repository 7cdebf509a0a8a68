package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rickgao/discord-gateway/internal/connection"
)

// fakeTransport is an in-memory connection.Transport driven by the test.
type fakeTransport struct {
	url        string
	connectErr error

	in     chan connection.Frame
	sentCh chan []byte
	ended  chan struct{}

	mu        sync.Mutex
	connected bool
	done      bool
	ev        connection.CloseEvent
	sent      [][]byte
	aborts    int
	closes    int
}

func newFakeTransport(url string) *fakeTransport {
	return &fakeTransport{
		url:    url,
		in:     make(chan connection.Frame, 64),
		sentCh: make(chan []byte, 64),
		ended:  make(chan struct{}),
	}
}

func (f *fakeTransport) Connect(ctx context.Context) error {
	if f.connectErr != nil {
		f.end(connection.CloseEvent{Code: connection.CloseAbnormal, Err: f.connectErr})
		return f.connectErr
	}
	f.mu.Lock()
	f.connected = true
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) Send(data []byte) error {
	f.mu.Lock()
	if !f.connected {
		f.mu.Unlock()
		return connection.ErrNotConnected
	}
	f.sent = append(f.sent, data)
	f.mu.Unlock()
	select {
	case f.sentCh <- data:
	default:
	}
	return nil
}

func (f *fakeTransport) Receive() (connection.Frame, bool) {
	select {
	case fr := <-f.in:
		return fr, true
	case <-f.ended:
		select {
		case fr := <-f.in:
			return fr, true
		default:
			return connection.Frame{}, false
		}
	}
}

func (f *fakeTransport) CloseEvent() connection.CloseEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ev
}

func (f *fakeTransport) Close(code int, reason string) error {
	f.mu.Lock()
	f.closes++
	f.mu.Unlock()
	f.end(connection.CloseEvent{Code: code, Reason: reason, WasClean: true})
	return nil
}

func (f *fakeTransport) Abort() error {
	f.mu.Lock()
	f.aborts++
	f.mu.Unlock()
	f.end(connection.CloseEvent{Code: connection.CloseAbnormal, Reason: "aborted"})
	return nil
}

func (f *fakeTransport) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

// end finishes the connection with ev unless it already ended.
func (f *fakeTransport) end(ev connection.CloseEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.done {
		return
	}
	f.done = true
	f.connected = false
	f.ev = ev
	close(f.ended)
}

// push queues a server frame.
func (f *fakeTransport) push(t *testing.T, op Opcode, seq *int64, typ string, d any) {
	t.Helper()
	f.in <- connection.Frame{Data: frame(t, op, seq, typ, d), ReceivedAt: time.Now()}
}

func (f *fakeTransport) abortCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.aborts
}

func (f *fakeTransport) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes
}

// fakeDialer hands out fakeTransports and records every dial.
type fakeDialer struct {
	mu      sync.Mutex
	urls    []string
	fail    int
	created chan *fakeTransport
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{created: make(chan *fakeTransport, 32)}
}

func (d *fakeDialer) dial(cfg connection.Config, _ *slog.Logger) connection.Transport {
	ft := newFakeTransport(cfg.URL)
	d.mu.Lock()
	d.urls = append(d.urls, cfg.URL)
	if d.fail > 0 {
		d.fail--
		ft.connectErr = errors.New("connection refused")
	}
	d.mu.Unlock()
	if ft.connectErr == nil {
		d.created <- ft
	}
	return ft
}

func (d *fakeDialer) dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.urls)
}

// next waits for the next successfully connected transport.
func (d *fakeDialer) next(t *testing.T) *fakeTransport {
	t.Helper()
	select {
	case ft := <-d.created:
		return ft
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for dial")
		return nil
	}
}

// expectNoDial fails if a transport is created within wait.
func (d *fakeDialer) expectNoDial(t *testing.T, wait time.Duration) {
	t.Helper()
	select {
	case <-d.created:
		t.Fatal("unexpected dial")
	case <-time.After(wait):
	}
}

type fakeBudget struct {
	resets atomic.Int32
	waits  atomic.Int32
}

func (b *fakeBudget) Reset() {
	b.resets.Add(1)
}

func (b *fakeBudget) Wait(ctx context.Context) error {
	b.waits.Add(1)
	return ctx.Err()
}

type fakeResolver struct {
	url   string
	err   error
	calls atomic.Int32
}

func (r *fakeResolver) ResolveEndpoint(ctx context.Context) (string, error) {
	r.calls.Add(1)
	return r.url, r.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testGatewayConfig() Config {
	cfg := DefaultConfig()
	cfg.Token = "test-token"
	cfg.GatewayURL = "wss://gateway.test"
	cfg.RetryDelay = time.Hour
	return cfg
}

func newTestClient(t *testing.T, cfg Config, opts ...Option) (*Client, *fakeDialer) {
	t.Helper()
	d := newFakeDialer()
	opts = append([]Option{WithLogger(discardLogger()), WithDialer(d.dial)}, opts...)
	c, err := New(cfg, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c, d
}

// attach makes ft the client's live transport without a serve goroutine so
// tests can drive handleFrame directly.
func attach(c *Client, ft *fakeTransport) {
	ft.Connect(context.Background())
	c.mu.Lock()
	c.transport = ft
	c.mu.Unlock()
}

func frame(t *testing.T, op Opcode, seq *int64, typ string, d any) []byte {
	t.Helper()
	raw, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	f := inboundFrame{Op: op, S: seq, D: raw}
	if typ != "" {
		f.T = &typ
	}
	data, err := json.Marshal(f)
	if err != nil {
		t.Fatalf("marshal frame: %v", err)
	}
	return data
}

func seqPtr(n int64) *int64 {
	return &n
}

// deliver runs one server frame through the client synchronously.
func deliver(t *testing.T, c *Client, ft *fakeTransport, op Opcode, seq *int64, typ string, d any) {
	t.Helper()
	c.handleFrame(ft, c.logger, frame(t, op, seq, typ, d))
}

// dispatch delivers an op 0 event.
func dispatch(t *testing.T, c *Client, ft *fakeTransport, seq int64, typ string, d any) {
	t.Helper()
	deliver(t, c, ft, OpDispatch, &seq, typ, d)
}

// sentFrame is a decoded outbound frame.
type sentFrame struct {
	Op Opcode          `json:"op"`
	D  json.RawMessage `json:"d"`
}

// waitSent returns the next outbound frame with the given opcode.
func waitSent(t *testing.T, ft *fakeTransport, op Opcode) sentFrame {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case data := <-ft.sentCh:
			var f sentFrame
			if err := json.Unmarshal(data, &f); err != nil {
				t.Fatalf("decode sent frame: %v", err)
			}
			if f.Op == op {
				return f
			}
		case <-deadline:
			t.Fatalf("timed out waiting for op %d", op)
			return sentFrame{}
		}
	}
}

// recorder collects every event published on a bus.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func record(c *Client) *recorder {
	r := &recorder{}
	c.Bus().SubscribeAll(func(ev Event) {
		r.mu.Lock()
		r.events = append(r.events, ev)
		r.mu.Unlock()
	})
	return r
}

func (r *recorder) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, len(r.events))
	for i, ev := range r.events {
		names[i] = ev.Name
	}
	return names
}

func (r *recorder) last(name string) (Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Name == name {
			return r.events[i], true
		}
	}
	return Event{}, false
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met: %s", msg)
}
