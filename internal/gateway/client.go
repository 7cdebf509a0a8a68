package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/rickgao/discord-gateway/internal/cache"
	"github.com/rickgao/discord-gateway/internal/connection"
	"github.com/rickgao/discord-gateway/internal/metrics"
	"github.com/rickgao/discord-gateway/internal/model"
)

const tracerName = "github.com/rickgao/discord-gateway/internal/gateway"

// Defaults
const (
	DefaultAPIVersion     = 10
	DefaultLargeThreshold = 250
	DefaultMaxRetries     = 5
	DefaultRetryDelay     = 15 * time.Second
)

// Status is the connection state of a Client.
type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusAwaitingHello // socket open, waiting for Hello
	StatusIdentifying
	StatusResuming
	StatusReady
	StatusClosing
)

func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusAwaitingHello:
		return "awaiting hello"
	case StatusIdentifying:
		return "identifying"
	case StatusResuming:
		return "resuming"
	case StatusReady:
		return "ready"
	case StatusClosing:
		return "closing"
	default:
		return "unknown"
	}
}

// EndpointResolver discovers the gateway URL.
type EndpointResolver interface {
	ResolveEndpoint(ctx context.Context) (string, error)
}

// OutboundBudget is reset before every reconnect. Budgets that also
// implement Wait(ctx) gate outbound commands.
type OutboundBudget interface {
	Reset()
}

type commandWaiter interface {
	Wait(ctx context.Context) error
}

type noBudget struct{}

func (noBudget) Reset() {}

// Dialer creates an unconnected transport.
type Dialer func(cfg connection.Config, logger *slog.Logger) connection.Transport

// Config configures a Client.
type Config struct {
	Token          string
	GatewayURL     string // Skips endpoint resolution when set
	APIVersion     int
	Intents        int
	LargeThreshold int
	ShardID        int
	ShardCount     int
	Properties     IdentifyProperties
	Presence       *PresenceUpdate // Initial presence sent with Identify
	Transport      connection.Config
	MaxRetries     int           // Immediate reconnects before delaying
	RetryDelay     time.Duration // Delay once MaxRetries is exhausted
}

// DefaultConfig returns a Config with defaults for everything but the token.
func DefaultConfig() Config {
	return Config{
		APIVersion:     DefaultAPIVersion,
		Intents:        IntentGuilds | IntentGuildMembers | IntentGuildMessages | IntentDirectMessages,
		LargeThreshold: DefaultLargeThreshold,
		ShardCount:     1,
		Properties: IdentifyProperties{
			OS:      "linux",
			Browser: "discord-gateway",
			Device:  "discord-gateway",
		},
		Transport:  connection.DefaultConfig(),
		MaxRetries: DefaultMaxRetries,
		RetryDelay: DefaultRetryDelay,
	}
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithResolver sets how the gateway URL is discovered.
func WithResolver(r EndpointResolver) Option {
	return func(c *Client) {
		c.resolver = r
	}
}

// WithBudget sets the outbound budget.
func WithBudget(b OutboundBudget) Option {
	return func(c *Client) {
		c.budget = b
	}
}

// WithDialer replaces the websocket transport.
func WithDialer(d Dialer) Option {
	return func(c *Client) {
		c.dialer = d
	}
}

// WithCache sets the cache the client keeps in sync.
func WithCache(s *cache.State) Option {
	return func(c *Client) {
		c.cache = s
	}
}

// WithBus sets the bus events are published on.
func WithBus(b *Bus) Option {
	return func(c *Client) {
		c.bus = b
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Collector) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithTracerProvider sets where dispatch spans go.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) {
		c.tracer = tp.Tracer(tracerName)
	}
}

// Client maintains one gateway session across reconnects.
type Client struct {
	cfg      Config
	logger   *slog.Logger
	resolver EndpointResolver
	budget   OutboundBudget
	dialer   Dialer
	cache    *cache.State
	bus      *Bus
	metrics  *metrics.Collector
	tracer   trace.Tracer
	session  *Session
	group    singleflight.Group

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu                 sync.Mutex
	status             Status
	transport          connection.Transport
	connID             string
	dialing            bool
	hb                 *heartbeat
	resolvedURL        string
	hasConnectedBefore bool
	reconnectRequested bool
	ended              bool // Disconnect called; no automatic reconnects
	closed             bool // terminated for good
	err                error
	retries            int
	retryTimer         *time.Timer
	retryGen           uint64
}

// New creates a Client. It does not connect.
func New(cfg Config, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, ErrMissingToken
	}
	def := DefaultConfig()
	if cfg.APIVersion == 0 {
		cfg.APIVersion = def.APIVersion
	}
	if cfg.LargeThreshold == 0 {
		cfg.LargeThreshold = def.LargeThreshold
	}
	if cfg.ShardCount == 0 {
		cfg.ShardCount = def.ShardCount
	}
	if cfg.Properties == (IdentifyProperties{}) {
		cfg.Properties = def.Properties
	}
	if cfg.Transport.HandshakeTimeout == 0 {
		cfg.Transport.HandshakeTimeout = def.Transport.HandshakeTimeout
	}
	if cfg.Transport.WriteTimeout == 0 {
		cfg.Transport.WriteTimeout = def.Transport.WriteTimeout
	}
	if cfg.Transport.CloseTimeout == 0 {
		cfg.Transport.CloseTimeout = def.Transport.CloseTimeout
	}
	if cfg.Transport.QueueSize == 0 {
		cfg.Transport.QueueSize = def.Transport.QueueSize
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = def.RetryDelay
	}

	c := &Client{
		cfg:     cfg,
		session: &Session{},
		done:    make(chan struct{}),
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.logger = c.logger.With("shard", cfg.ShardID)
	if c.cache == nil {
		c.cache = cache.New()
	}
	if c.bus == nil {
		c.bus = NewBus(c.logger)
	}
	if c.budget == nil {
		c.budget = noBudget{}
	}
	if c.dialer == nil {
		c.dialer = connection.NewClient
	}
	if c.tracer == nil {
		c.tracer = otel.Tracer(tracerName)
	}
	return c, nil
}

// Connect opens the gateway connection. The handshake continues in the
// background once the server says Hello.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClientClosed
	}
	if c.transport == nil && !c.dialing {
		c.ended = false
	}
	c.mu.Unlock()
	return c.dial(ctx)
}

// dial opens a new transport and starts serving it.
func (c *Client) dial(ctx context.Context) error {
	c.mu.Lock()
	if c.closed || c.ended {
		c.mu.Unlock()
		return ErrClientClosed
	}
	if c.dialing || c.transport != nil {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.dialing = true
	c.status = StatusConnecting
	resume := selectHandshake(c.hasConnectedBefore, c.session.Snapshot()) == handshakeResume
	c.mu.Unlock()

	t, u, err := c.open(ctx, resume)

	c.mu.Lock()
	c.dialing = false
	if err != nil {
		c.status = StatusDisconnected
		c.mu.Unlock()
		return err
	}
	if c.closed || c.ended {
		c.status = StatusDisconnected
		c.mu.Unlock()
		t.Abort()
		return ErrClientClosed
	}
	connID := uuid.NewString()
	c.transport = t
	c.connID = connID
	c.status = StatusAwaitingHello
	c.mu.Unlock()

	c.metrics.ConnectionOpened()
	c.logger.Info("gateway socket opened", "conn_id", connID, "resume", resume)
	c.publish(Event{Name: LifecycleSocketOpened, Data: SocketOpened{ConnID: connID, URL: u}})

	go c.serve(t, connID)
	return nil
}

func (c *Client) open(ctx context.Context, resume bool) (connection.Transport, string, error) {
	u, err := c.endpoint(ctx, resume)
	if err != nil {
		return nil, "", err
	}
	c.publish(Event{Name: LifecycleConnecting, Data: Connecting{URL: u, Resume: resume}})

	tcfg := c.cfg.Transport
	tcfg.URL = u
	t := c.dialer(tcfg, c.logger)
	if err := t.Connect(ctx); err != nil {
		c.invalidateEndpoint()
		return nil, "", fmt.Errorf("connect %s: %w", u, err)
	}
	return t, u, nil
}

// endpoint picks the URL to dial: the resume URL when resuming, then the
// configured URL, then the resolved one.
func (c *Client) endpoint(ctx context.Context, resume bool) (string, error) {
	snap := c.session.Snapshot()
	base := c.cfg.GatewayURL
	if resume && snap.ResumeGatewayURL != "" {
		base = snap.ResumeGatewayURL
	}
	if base == "" {
		c.mu.Lock()
		base = c.resolvedURL
		c.mu.Unlock()
	}
	if base == "" {
		if c.resolver == nil {
			return "", ErrNoEndpoint
		}
		v, err, _ := c.group.Do("endpoint", func() (any, error) {
			return c.resolver.ResolveEndpoint(ctx)
		})
		if err != nil {
			c.invalidateEndpoint()
			return "", fmt.Errorf("%w: %w", ErrNoEndpoint, err)
		}
		base = v.(string)
		c.mu.Lock()
		c.resolvedURL = base
		c.mu.Unlock()
	}

	u, err := gatewayURL(base, c.cfg.APIVersion)
	if err != nil {
		c.invalidateEndpoint()
		return "", fmt.Errorf("%w: %w", ErrNoEndpoint, err)
	}
	c.session.setGatewayURL(u)
	return u, nil
}

func (c *Client) invalidateEndpoint() {
	c.mu.Lock()
	c.resolvedURL = ""
	c.mu.Unlock()
}

// gatewayURL adds the version and encoding query parameters to base.
func gatewayURL(base string, version int) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid gateway url %q", base)
	}
	q := u.Query()
	q.Set("v", strconv.Itoa(version))
	q.Set("encoding", "json")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// serve handles every frame of t in order, then the close.
func (c *Client) serve(t connection.Transport, connID string) {
	logger := c.logger.With("conn_id", connID)
	for {
		f, ok := t.Receive()
		if !ok {
			break
		}
		c.metrics.FrameReceived()
		if !c.isCurrent(t) {
			continue
		}
		c.handleFrame(t, logger, f.Data)
	}
	c.handleClose(t, logger, connID, t.CloseEvent())
}

func (c *Client) isCurrent(t connection.Transport) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transport == t
}

func (c *Client) handleFrame(t connection.Transport, logger *slog.Logger, data []byte) {
	var f inboundFrame
	if err := json.Unmarshal(data, &f); err != nil {
		logger.Warn("undecodable frame", "error", err, "size", len(data))
		return
	}
	if f.S != nil {
		c.metrics.SetSequence(c.session.ObserveSequence(*f.S))
	}

	switch f.Op {
	case OpDispatch:
		c.handleDispatch(logger, f)
	case OpHeartbeat:
		c.sendHeartbeat(t, logger)
	case OpReconnect:
		logger.Info("server requested reconnect")
		c.requestReconnect(t, true)
	case OpInvalidSession:
		c.handleInvalidSession(t, logger, f.D)
	case OpHello:
		c.handleHello(t, logger, f.D)
	case OpHeartbeatAck:
		c.handleHeartbeatAck(logger)
	default:
		logger.Warn("unknown opcode", "op", f.Op)
	}
}

func (c *Client) handleClose(t connection.Transport, logger *slog.Logger, connID string, ev connection.CloseEvent) {
	c.mu.Lock()
	current := c.transport == t
	var hb *heartbeat
	var requested bool
	if current {
		c.transport = nil
		hb, c.hb = c.hb, nil
		requested = c.reconnectRequested
		c.reconnectRequested = false
		c.status = StatusDisconnected
	}
	c.mu.Unlock()
	if hb != nil {
		hb.halt()
	}

	c.metrics.ConnectionClosed(ev.Code, ev.WasClean)
	if ev.Err != nil {
		logger.Warn("gateway socket errored", "error", ev.Err)
		c.publish(Event{Name: LifecycleSocketErrored, Data: ev.Err})
	}
	logger.Info("gateway socket closed", "code", ev.Code, "reason", ev.Reason, "clean", ev.WasClean)
	c.publish(Event{Name: LifecycleSocketClosed, Data: SocketClosed{
		ConnID: connID,
		Code:   ev.Code,
		Reason: ev.Reason,
		Clean:  ev.WasClean,
	}})

	// Detached by Disconnect; a newer connection may already be live.
	if !current {
		return
	}
	c.recoverFrom(logger, closeInfo{
		Code:      ev.Code,
		Reason:    ev.Reason,
		Clean:     ev.WasClean,
		Requested: requested,
	})
}

// requestReconnect drops t so that the close handler reconnects at once.
// Without resume the session is forgotten and the next handshake identifies.
func (c *Client) requestReconnect(t connection.Transport, resume bool) {
	c.mu.Lock()
	if c.transport != t {
		c.mu.Unlock()
		return
	}
	c.reconnectRequested = true
	if !resume {
		c.hasConnectedBefore = false
	}
	c.mu.Unlock()
	if !resume {
		c.session.Clear()
	}
	t.Abort()
}

// Reconnect drops the current connection and reconnects, resuming when the
// session allows it.
func (c *Client) Reconnect() error {
	c.mu.Lock()
	t := c.transport
	c.mu.Unlock()
	if t == nil {
		return ErrNotConnected
	}
	c.requestReconnect(t, true)
	return nil
}

// Disconnect closes the connection with a normal close. Unless a reconnect
// was requested, no automatic reconnect follows; Connect may be called again.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	c.cancelRetryLocked()
	t := c.transport
	hb := c.hb
	c.hb = nil
	switch {
	case c.reconnectRequested:
		if t != nil {
			c.status = StatusClosing
		}
	default:
		// Detached here so Connect can be called again before the close
		// handshake finishes.
		c.ended = true
		c.transport = nil
		c.status = StatusDisconnected
	}
	c.mu.Unlock()

	if hb != nil {
		hb.halt()
	}
	if t == nil {
		return nil
	}
	if err := t.Close(connection.CloseNormal, ""); err != nil {
		return fmt.Errorf("close transport: %w", err)
	}
	return nil
}

// Close disconnects and tears the client down for good.
func (c *Client) Close() error {
	c.mu.Lock()
	c.reconnectRequested = false
	c.mu.Unlock()
	err := c.Disconnect()
	c.terminate(nil)
	return err
}

// terminate ends the client. err is reported by Err.
func (c *Client) terminate(err error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.err = err
	c.cancelRetryLocked()
	t := c.transport
	hb := c.hb
	c.hb = nil
	c.status = StatusDisconnected
	c.mu.Unlock()

	if hb != nil {
		hb.halt()
	}
	if t != nil {
		t.Abort()
	}
	c.cancel()
	close(c.done)
}

// Done is closed when the client has terminated.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err returns the fatal error that terminated the client, if any.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Status returns the connection state.
func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *Client) setStatus(s Status) {
	c.mu.Lock()
	c.status = s
	c.mu.Unlock()
}

// Session returns a copy of the session state.
func (c *Client) Session() SessionSnapshot {
	return c.session.Snapshot()
}

// Cache returns the cache kept in sync with the gateway.
func (c *Client) Cache() *cache.State {
	return c.cache
}

// Bus returns the bus events are published on.
func (c *Client) Bus() *Bus {
	return c.bus
}

func (c *Client) publish(ev Event) {
	c.bus.Publish(ev)
}

func (c *Client) send(t connection.Transport, op Opcode, d any) error {
	data, err := json.Marshal(outboundFrame{Op: op, D: d})
	if err != nil {
		return fmt.Errorf("encode op %d: %w", op, err)
	}
	return t.Send(data)
}

// command sends a client command after waiting for the outbound budget.
func (c *Client) command(ctx context.Context, op Opcode, d any) error {
	c.mu.Lock()
	t := c.transport
	c.mu.Unlock()
	if t == nil || !t.IsConnected() {
		return ErrNotConnected
	}
	if w, ok := c.budget.(commandWaiter); ok {
		if err := w.Wait(ctx); err != nil {
			return fmt.Errorf("wait for outbound budget: %w", err)
		}
	}
	if err := c.send(t, op, d); err != nil {
		return fmt.Errorf("send op %d: %w", op, err)
	}
	return nil
}

// UpdatePresence sets the client's presence.
func (c *Client) UpdatePresence(ctx context.Context, p PresenceUpdate) error {
	if p.Activities == nil {
		p.Activities = []model.Activity{}
	}
	return c.command(ctx, OpPresenceUpdate, p)
}

// UpdateVoiceState joins or leaves a voice channel. A nil channel leaves.
func (c *Client) UpdateVoiceState(ctx context.Context, v VoiceStateUpdate) error {
	return c.command(ctx, OpVoiceStateUpdate, v)
}

// RequestGuildMembers asks for member chunks and returns the nonce that the
// resulting GUILD_MEMBERS_CHUNK events carry.
func (c *Client) RequestGuildMembers(ctx context.Context, r RequestGuildMembers) (string, error) {
	if r.Nonce == "" {
		r.Nonce = strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	if r.Query == nil && len(r.UserIDs) == 0 {
		all := ""
		r.Query = &all
	}
	if err := c.command(ctx, OpRequestGuildMembers, r); err != nil {
		return "", err
	}
	return r.Nonce, nil
}
