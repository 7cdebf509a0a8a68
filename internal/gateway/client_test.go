package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// mockGateway serves each websocket connection with handler, passing the
// 1-based connection number.
func mockGateway(t *testing.T, handler func(n int, conn *websocket.Conn)) *httptest.Server {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	var conns atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("v") != "10" || r.URL.Query().Get("encoding") != "json" {
			t.Errorf("gateway query = %q", r.URL.RawQuery)
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer conn.Close()
		handler(int(conns.Add(1)), conn)
	}))
	t.Cleanup(server.Close)
	return server
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func writeFrame(t *testing.T, conn *websocket.Conn, op Opcode, seq *int64, typ string, d any) {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, frame(t, op, seq, typ, d)); err != nil {
		t.Errorf("write frame: %v", err)
	}
}

// readFrame returns the next client frame that is not a heartbeat.
func readFrame(t *testing.T, conn *websocket.Conn) sentFrame {
	t.Helper()
	for {
		var f sentFrame
		if err := conn.ReadJSON(&f); err != nil {
			t.Errorf("read frame: %v", err)
			return f
		}
		if f.Op != OpHeartbeat {
			return f
		}
	}
}

func readUntilError(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func e2eClient(t *testing.T, server *httptest.Server) *Client {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Token = "test-token"
	cfg.GatewayURL = wsURL(server)
	cfg.Transport.CloseTimeout = time.Second
	c, err := New(cfg, WithLogger(discardLogger()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func waitEvent(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestEndToEndIdentifyReady(t *testing.T) {
	server := mockGateway(t, func(n int, conn *websocket.Conn) {
		writeFrame(t, conn, OpHello, nil, "", Hello{HeartbeatInterval: 41250})

		f := readFrame(t, conn)
		if f.Op != OpIdentify {
			t.Errorf("first client frame op = %d, want identify", f.Op)
		}
		var id Identify
		if err := json.Unmarshal(f.D, &id); err != nil || id.Token != "test-token" {
			t.Errorf("identify = %+v, %v", id, err)
		}

		writeFrame(t, conn, OpDispatch, seqPtr(1), "READY", map[string]any{
			"v":          10,
			"user":       map[string]any{"id": "100", "username": "bot"},
			"guilds":     []any{map[string]any{"id": "1"}},
			"session_id": "abc",
		})
		readUntilError(conn)
	})

	c := e2eClient(t, server)
	ready := make(chan Event, 1)
	c.Bus().Subscribe(LifecycleHandshakeReady, func(ev Event) { ready <- ev })
	r := record(c)

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	ev := waitEvent(t, ready)

	if hr, ok := ev.Data.(HandshakeReady); !ok || hr.SessionID != "abc" || hr.Resumed {
		t.Errorf("handshake ready = %#v", ev.Data)
	}
	if _, ok := c.Cache().Guild("1"); !ok {
		t.Error("guild 1 not cached")
	}
	if got := c.Session().SessionID; got != "abc" {
		t.Errorf("SessionID = %q, want abc", got)
	}
	if got := c.Status(); got != StatusReady {
		t.Errorf("Status() = %v, want ready", got)
	}

	want := []string{LifecycleConnecting, LifecycleSocketOpened, EventReady, LifecycleHandshakeReady}
	if got := r.names(); !reflect.DeepEqual(got, want) {
		t.Errorf("events = %v, want %v", got, want)
	}

	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Error("Done not closed after Close")
	}
}

func TestEndToEndResumeAfterDrop(t *testing.T) {
	resumes := make(chan Resume, 1)

	server := mockGateway(t, func(n int, conn *websocket.Conn) {
		writeFrame(t, conn, OpHello, nil, "", Hello{HeartbeatInterval: 41250})
		f := readFrame(t, conn)

		switch n {
		case 1:
			writeFrame(t, conn, OpDispatch, seqPtr(1), "READY", readyPayload("abc", "1"))
			writeFrame(t, conn, OpDispatch, seqPtr(2), "GUILD_CREATE", guildPayload("1", "home"))
			// Drop without a close frame.
			conn.UnderlyingConn().Close()
		case 2:
			var r Resume
			if f.Op != OpResume {
				t.Errorf("second connection op = %d, want resume", f.Op)
			}
			json.Unmarshal(f.D, &r)
			resumes <- r
			writeFrame(t, conn, OpDispatch, seqPtr(3), "RESUMED", nil)
			readUntilError(conn)
		}
	})

	c := e2eClient(t, server)
	resumed := make(chan Event, 1)
	c.Bus().Subscribe(EventResumed, func(ev Event) { resumed <- ev })

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	ev := waitEvent(t, resumed)

	select {
	case r := <-resumes:
		if r.SessionID != "abc" || r.Seq != 2 {
			t.Errorf("resume = %+v, want session abc seq 2", r)
		}
	default:
		t.Error("no resume received")
	}
	if ev.Sequence != 3 {
		t.Errorf("resumed Sequence = %d, want 3", ev.Sequence)
	}
	if g, ok := c.Cache().Guild("1"); !ok || g.Name != "home" {
		t.Errorf("guild 1 = %+v after resume", g)
	}
}

func TestNewRequiresToken(t *testing.T) {
	for _, token := range []string{"", "   "} {
		cfg := DefaultConfig()
		cfg.Token = token
		if _, err := New(cfg); !errors.Is(err, ErrMissingToken) {
			t.Errorf("New(token=%q) error = %v, want ErrMissingToken", token, err)
		}
	}
}

func TestConnectEndpointErrors(t *testing.T) {
	resolveErr := errors.New("api unavailable")

	tests := []struct {
		name       string
		gatewayURL string
		resolver   EndpointResolver
		wantCause  error
	}{
		{"no resolver", "", nil, nil},
		{"resolver fails", "", &fakeResolver{err: resolveErr}, resolveErr},
		{"invalid url", "not a url", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testGatewayConfig()
			cfg.GatewayURL = tt.gatewayURL
			var opts []Option
			if tt.resolver != nil {
				opts = append(opts, WithResolver(tt.resolver))
			}
			c, d := newTestClient(t, cfg, opts...)

			err := c.Connect(context.Background())
			if !errors.Is(err, ErrNoEndpoint) {
				t.Errorf("Connect() error = %v, want ErrNoEndpoint", err)
			}
			if tt.wantCause != nil && !errors.Is(err, tt.wantCause) {
				t.Errorf("Connect() error = %v, want cause %v", err, tt.wantCause)
			}
			if d.dials() != 0 {
				t.Errorf("dials = %d, want 0", d.dials())
			}
			if got := c.Status(); got != StatusDisconnected {
				t.Errorf("Status() = %v", got)
			}
		})
	}
}

func TestConnectTwice(t *testing.T) {
	c, d := newTestClient(t, testGatewayConfig())
	connectFake(t, c, d)

	if err := c.Connect(context.Background()); !errors.Is(err, ErrAlreadyConnected) {
		t.Errorf("second Connect() = %v, want ErrAlreadyConnected", err)
	}
}

func TestResolvedEndpointCached(t *testing.T) {
	cfg := testGatewayConfig()
	cfg.GatewayURL = ""
	resolver := &fakeResolver{url: "wss://resolved.test"}
	c, d := newTestClient(t, cfg, WithResolver(resolver))

	ft := connectFake(t, c, d)
	if ft.url != "wss://resolved.test?encoding=json&v=10" {
		t.Errorf("dial url = %q", ft.url)
	}

	ft.end(dropped())
	d.next(t)

	if got := resolver.calls.Load(); got != 1 {
		t.Errorf("resolver calls = %d, want 1", got)
	}
	if got := c.Session().GatewayURL; got != "wss://resolved.test?encoding=json&v=10" {
		t.Errorf("Session().GatewayURL = %q", got)
	}
}

func TestGatewayURL(t *testing.T) {
	tests := []struct {
		base    string
		want    string
		wantErr bool
	}{
		{"wss://gateway.discord.gg", "wss://gateway.discord.gg?encoding=json&v=10", false},
		{"wss://gateway.discord.gg/", "wss://gateway.discord.gg/?encoding=json&v=10", false},
		{"wss://gateway.discord.gg/?v=9", "wss://gateway.discord.gg/?encoding=json&v=10", false},
		{"gateway.discord.gg", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.base, func(t *testing.T) {
			got, err := gatewayURL(tt.base, 10)
			if (err != nil) != tt.wantErr {
				t.Fatalf("gatewayURL() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("gatewayURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConnectNotifications(t *testing.T) {
	c, d := newTestClient(t, testGatewayConfig())
	r := record(c)
	connectFake(t, c, d)

	want := []string{LifecycleConnecting, LifecycleSocketOpened}
	if got := r.names(); !reflect.DeepEqual(got, want) {
		t.Errorf("events = %v, want %v", got, want)
	}
	ev, _ := r.last(LifecycleSocketOpened)
	if opened, ok := ev.Data.(SocketOpened); !ok || opened.ConnID == "" {
		t.Errorf("socket opened = %#v", ev.Data)
	}
	if got := c.Status(); got != StatusAwaitingHello {
		t.Errorf("Status() = %v, want awaiting hello", got)
	}
}

func TestCommands(t *testing.T) {
	budget := &fakeBudget{}
	c, d := newTestClient(t, testGatewayConfig(), WithBudget(budget))
	ctx := context.Background()

	if err := c.UpdatePresence(ctx, PresenceUpdate{Status: "online"}); !errors.Is(err, ErrNotConnected) {
		t.Errorf("UpdatePresence() while disconnected = %v", err)
	}

	ft := connectFake(t, c, d)

	if err := c.UpdatePresence(ctx, PresenceUpdate{Status: "idle"}); err != nil {
		t.Fatalf("UpdatePresence() error = %v", err)
	}
	var p map[string]any
	json.Unmarshal(waitSent(t, ft, OpPresenceUpdate).D, &p)
	if p["status"] != "idle" || p["activities"] == nil {
		t.Errorf("presence payload = %v", p)
	}

	if err := c.UpdateVoiceState(ctx, VoiceStateUpdate{GuildID: "1"}); err != nil {
		t.Fatalf("UpdateVoiceState() error = %v", err)
	}
	var v map[string]any
	json.Unmarshal(waitSent(t, ft, OpVoiceStateUpdate).D, &v)
	if cid, ok := v["channel_id"]; !ok || cid != nil {
		t.Errorf("voice payload = %v, want null channel_id", v)
	}

	nonce, err := c.RequestGuildMembers(ctx, RequestGuildMembers{GuildID: "1"})
	if err != nil {
		t.Fatalf("RequestGuildMembers() error = %v", err)
	}
	if len(nonce) != 32 {
		t.Errorf("nonce = %q, want 32 characters", nonce)
	}
	var req map[string]any
	json.Unmarshal(waitSent(t, ft, OpRequestGuildMembers).D, &req)
	if req["query"] != "" || req["nonce"] != nonce || req["limit"] != float64(0) {
		t.Errorf("request payload = %v", req)
	}

	if got := budget.waits.Load(); got != 3 {
		t.Errorf("budget waits = %d, want 3", got)
	}
}

func TestStatusString(t *testing.T) {
	if got := StatusAwaitingHello.String(); got != "awaiting hello" {
		t.Errorf("String() = %q", got)
	}
	if got := Status(99).String(); got != "unknown" {
		t.Errorf("String() = %q", got)
	}
}
