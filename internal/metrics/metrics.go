package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "gatewayd"

// Collector holds the gateway metrics.
type Collector struct {
	connected        prometheus.Gauge
	connectsTotal    prometheus.Counter
	closesTotal      *prometheus.CounterVec
	reconnectsTotal  *prometheus.CounterVec
	framesTotal      prometheus.Counter
	heartbeatsTotal  prometheus.Counter
	heartbeatLatency prometheus.Histogram
	zombiesTotal     prometheus.Counter
	eventsTotal      *prometheus.CounterVec
	eventDuration    *prometheus.HistogramVec
	decodeFailures   *prometheus.CounterVec
	unhandledTotal   *prometheus.CounterVec
	sequence         prometheus.Gauge
	guilds           prometheus.Gauge
}

// New registers the gateway metrics on reg.
func New(reg prometheus.Registerer, namespace string) *Collector {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	factory := promauto.With(reg)

	return &Collector{
		connected: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connected",
			Help:      "1 while a gateway websocket is open",
		}),
		connectsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connects_total",
			Help:      "Total number of gateway websockets opened",
		}),
		closesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "closes_total",
			Help:      "Total number of gateway websocket closes by close code",
		}, []string{"code", "clean"}),
		reconnectsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnects_total",
			Help:      "Total number of reconnect attempts by kind",
		}, []string{"kind"}),
		framesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_received_total",
			Help:      "Total number of inbound gateway frames",
		}),
		heartbeatsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "heartbeats_sent_total",
			Help:      "Total number of heartbeats sent",
		}),
		heartbeatLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "heartbeat_latency_seconds",
			Help:      "Time between a heartbeat and its acknowledgement",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}),
		zombiesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "zombie_connections_total",
			Help:      "Total number of connections dropped for a missed heartbeat ack",
		}),
		eventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Total number of dispatch events applied",
		}, []string{"event"}),
		eventDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "event_duration_seconds",
			Help:      "Time to apply a dispatch event and notify observers",
			Buckets:   prometheus.DefBuckets,
		}, []string{"event"}),
		decodeFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_decode_failures_total",
			Help:      "Total number of dispatch payloads that failed to decode",
		}, []string{"event"}),
		unhandledTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unhandled_events_total",
			Help:      "Total number of dispatch events with no handler",
		}, []string{"event"}),
		sequence: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sequence",
			Help:      "Last sequence number seen in the current session",
		}),
		guilds: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cached_guilds",
			Help:      "Number of guilds in the local cache",
		}),
	}
}

// ConnectionOpened records a websocket open.
func (c *Collector) ConnectionOpened() {
	if c == nil {
		return
	}
	c.connectsTotal.Inc()
	c.connected.Set(1)
}

// ConnectionClosed records a websocket close.
func (c *Collector) ConnectionClosed(code int, clean bool) {
	if c == nil {
		return
	}
	c.connected.Set(0)
	c.closesTotal.WithLabelValues(strconv.Itoa(code), strconv.FormatBool(clean)).Inc()
}

// Reconnect records a reconnect attempt. kind is resume, identify or delayed.
func (c *Collector) Reconnect(kind string) {
	if c == nil {
		return
	}
	c.reconnectsTotal.WithLabelValues(kind).Inc()
}

// FrameReceived records an inbound frame.
func (c *Collector) FrameReceived() {
	if c == nil {
		return
	}
	c.framesTotal.Inc()
}

// HeartbeatSent records a heartbeat.
func (c *Collector) HeartbeatSent() {
	if c == nil {
		return
	}
	c.heartbeatsTotal.Inc()
}

// HeartbeatAcked records the round-trip of an acknowledged heartbeat.
func (c *Collector) HeartbeatAcked(latency time.Duration) {
	if c == nil {
		return
	}
	c.heartbeatLatency.Observe(latency.Seconds())
}

// Zombie records a connection dropped for a missed ack.
func (c *Collector) Zombie() {
	if c == nil {
		return
	}
	c.zombiesTotal.Inc()
}

// EventApplied records a dispatch event and how long it took.
func (c *Collector) EventApplied(event string, d time.Duration) {
	if c == nil {
		return
	}
	c.eventsTotal.WithLabelValues(event).Inc()
	c.eventDuration.WithLabelValues(event).Observe(d.Seconds())
}

// DecodeFailed records an undecodable dispatch payload.
func (c *Collector) DecodeFailed(event string) {
	if c == nil {
		return
	}
	c.decodeFailures.WithLabelValues(event).Inc()
}

// Unhandled records a dispatch event with no handler.
func (c *Collector) Unhandled(event string) {
	if c == nil {
		return
	}
	c.unhandledTotal.WithLabelValues(event).Inc()
}

// SetSequence records the last seen sequence number.
func (c *Collector) SetSequence(seq int64) {
	if c == nil {
		return
	}
	c.sequence.Set(float64(seq))
}

// SetGuilds records the number of cached guilds.
func (c *Collector) SetGuilds(n int) {
	if c == nil {
		return
	}
	c.guilds.Set(float64(n))
}
