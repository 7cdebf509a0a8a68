package gateway

import (
	"log/slog"
	"sync"
	"time"

	"github.com/rickgao/discord-gateway/internal/connection"
)

// heartbeat is the cancellable handle of one heartbeat goroutine.
type heartbeat struct {
	stop chan struct{}
	once sync.Once
}

func (h *heartbeat) halt() {
	h.once.Do(func() { close(h.stop) })
}

// startHeartbeat replaces any running monitor with one ticking at interval.
func (c *Client) startHeartbeat(t connection.Transport, logger *slog.Logger, interval time.Duration) {
	hb := &heartbeat{stop: make(chan struct{})}

	c.mu.Lock()
	prev := c.hb
	c.hb = hb
	c.mu.Unlock()
	if prev != nil {
		prev.halt()
	}

	c.session.resetHeartbeat(interval)
	go c.heartbeatLoop(t, logger, hb, interval)
}

func (c *Client) heartbeatLoop(t connection.Transport, logger *slog.Logger, hb *heartbeat, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-hb.stop:
			return
		case <-ticker.C:
			if !t.IsConnected() {
				logger.Debug("heartbeat stopped, socket not open")
				return
			}
			if c.session.heartbeatPending() {
				logger.Error("heartbeat not acknowledged, dropping connection", "interval", interval)
				c.metrics.Zombie()
				c.requestReconnect(t, true)
				return
			}
			c.sendHeartbeat(t, logger)
		}
	}
}

// sendHeartbeat writes op 1 with the last sequence. The ack is marked pending
// before the write so a fast ack is never mistaken for a missing one.
func (c *Client) sendHeartbeat(t connection.Transport, logger *slog.Logger) {
	var d *int64
	if seq, ok := c.session.Sequence(); ok {
		d = &seq
	}
	c.session.beginHeartbeat(time.Now())
	if err := c.send(t, OpHeartbeat, d); err != nil {
		logger.Warn("heartbeat send failed", "error", err)
		return
	}
	c.metrics.HeartbeatSent()
	c.publish(Event{Name: LifecycleHeartbeatSent, Data: HeartbeatSent{Sequence: d}})
}

func (c *Client) handleHeartbeatAck(logger *slog.Logger) {
	latency, ok := c.session.ackHeartbeat(time.Now())
	if !ok {
		logger.Debug("unexpected heartbeat ack")
		return
	}
	c.metrics.HeartbeatAcked(latency)
}

func msToDuration(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
