// Package health serves liveness, cache inspection and metrics endpoints
// for a running gateway client.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rickgao/discord-gateway/internal/cache"
	"github.com/rickgao/discord-gateway/internal/gateway"
	"github.com/rickgao/discord-gateway/internal/model"
)

// Gateway is the part of gateway.Client the endpoints read.
type Gateway interface {
	Status() gateway.Status
	Session() gateway.SessionSnapshot
	Cache() *cache.State
}

// Handler serves the HTTP endpoints.
type Handler struct {
	gw          Gateway
	gatherer    prometheus.Gatherer
	metricsPath string
	logger      *slog.Logger
	started     time.Time
}

// NewHandler creates a Handler. A nil gatherer disables the metrics route.
func NewHandler(gw Gateway, gatherer prometheus.Gatherer, metricsPath string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	return &Handler{
		gw:          gw,
		gatherer:    gatherer,
		metricsPath: metricsPath,
		logger:      logger,
		started:     time.Now(),
	}
}

// Mount registers the routes on r.
func (h *Handler) Mount(r chi.Router) {
	r.Get("/health", h.health)
	r.Get("/debug/session", h.session)
	r.Get("/debug/stats", h.stats)
	r.Get("/debug/guilds", h.listGuilds)
	r.Get("/debug/guilds/{id}", h.getGuild)
	if h.gatherer != nil {
		r.Handle(h.metricsPath, promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	}
}

// Router returns a chi router with every route mounted.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	h.Mount(r)
	return r
}

// HealthResponse is the body of /health.
type HealthResponse struct {
	Status             string `json:"status"`
	Gateway            string `json:"gateway"`
	SessionID          string `json:"session_id,omitempty"`
	Sequence           *int64 `json:"sequence,omitempty"`
	HeartbeatLatencyMS int64  `json:"heartbeat_latency_ms"`
	Guilds             int    `json:"guilds"`
	Uptime             string `json:"uptime"`
}

// health reports 200 while the session is ready and 503 otherwise.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	status := h.gw.Status()
	snap := h.gw.Session()

	resp := HealthResponse{
		Status:             "ok",
		Gateway:            status.String(),
		SessionID:          snap.SessionID,
		Sequence:           snap.Sequence,
		HeartbeatLatencyMS: snap.Latency.Milliseconds(),
		Guilds:             h.gw.Cache().GuildCount(),
		Uptime:             time.Since(h.started).Round(time.Second).String(),
	}
	code := http.StatusOK
	if status != gateway.StatusReady {
		resp.Status = "unavailable"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

// SessionResponse is the body of /debug/session.
type SessionResponse struct {
	SessionID         string    `json:"session_id"`
	Sequence          *int64    `json:"sequence"`
	GatewayURL        string    `json:"gateway_url"`
	ResumeGatewayURL  string    `json:"resume_gateway_url,omitempty"`
	HeartbeatInterval string    `json:"heartbeat_interval"`
	AckPending        bool      `json:"ack_pending"`
	LastHeartbeatSent time.Time `json:"last_heartbeat_sent"`
	LastHeartbeatAck  time.Time `json:"last_heartbeat_ack"`
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) {
	snap := h.gw.Session()
	writeJSON(w, http.StatusOK, SessionResponse{
		SessionID:         snap.SessionID,
		Sequence:          snap.Sequence,
		GatewayURL:        snap.GatewayURL,
		ResumeGatewayURL:  snap.ResumeGatewayURL,
		HeartbeatInterval: snap.HeartbeatInterval.String(),
		AckPending:        snap.AckPending,
		LastHeartbeatSent: snap.LastHeartbeatSent,
		LastHeartbeatAck:  snap.LastHeartbeatAck,
	})
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.gw.Cache().Stats())
}

// GuildSummary is one entry of /debug/guilds.
type GuildSummary struct {
	ID          model.Snowflake `json:"id"`
	Name        string          `json:"name"`
	Unavailable bool            `json:"unavailable"`
	Channels    int             `json:"channels"`
	Members     int             `json:"members"`
	Roles       int             `json:"roles"`
}

func (h *Handler) listGuilds(w http.ResponseWriter, r *http.Request) {
	guilds := h.gw.Cache().Guilds()
	out := make([]GuildSummary, len(guilds))
	for i, g := range guilds {
		out[i] = GuildSummary{
			ID:          g.ID,
			Name:        g.Name,
			Unavailable: g.Unavailable,
			Channels:    len(g.Channels),
			Members:     len(g.Members),
			Roles:       len(g.Roles),
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) getGuild(w http.ResponseWriter, r *http.Request) {
	id := model.Snowflake(chi.URLParam(r, "id"))
	g, ok := h.gw.Cache().Guild(id)
	if !ok {
		writeError(w, http.StatusNotFound, "guild not found")
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// ErrorResponse is the body of every error.
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, ErrorResponse{Error: message})
}

// Serve runs an HTTP server on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return ServeListener(ctx, ln, handler, logger)
}

// ServeListener is Serve on an existing listener.
func ServeListener(ctx context.Context, ln net.Listener, handler http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("http server listening", "addr", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
