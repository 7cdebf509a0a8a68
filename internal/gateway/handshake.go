package gateway

import (
	"encoding/json"
	"log/slog"

	"github.com/rickgao/discord-gateway/internal/connection"
)

type handshakeKind int

const (
	handshakeIdentify handshakeKind = iota
	handshakeResume
)

func (k handshakeKind) String() string {
	if k == handshakeResume {
		return "resume"
	}
	return "identify"
}

// selectHandshake resumes only when a previous connection completed READY
// and both the session id and a sequence are known.
func selectHandshake(hasConnectedBefore bool, snap SessionSnapshot) handshakeKind {
	if hasConnectedBefore && snap.SessionID != "" && snap.Sequence != nil {
		return handshakeResume
	}
	return handshakeIdentify
}

func (c *Client) identifyPayload() Identify {
	return Identify{
		Token:          c.cfg.Token,
		Properties:     c.cfg.Properties,
		LargeThreshold: c.cfg.LargeThreshold,
		Shard:          [2]int{c.cfg.ShardID, c.cfg.ShardCount},
		Presence:       c.cfg.Presence,
		Intents:        c.cfg.Intents,
	}
}

// handleHello starts the heartbeat with the server's interval and sends
// Identify or Resume.
func (c *Client) handleHello(t connection.Transport, logger *slog.Logger, d json.RawMessage) {
	var hello Hello
	if err := json.Unmarshal(d, &hello); err != nil || hello.HeartbeatInterval <= 0 {
		logger.Error("invalid hello payload", "error", err, "interval", hello.HeartbeatInterval)
		c.requestReconnect(t, true)
		return
	}

	interval := msToDuration(hello.HeartbeatInterval)
	logger.Debug("received hello", "heartbeat_interval", interval)
	c.startHeartbeat(t, logger, interval)

	c.mu.Lock()
	before := c.hasConnectedBefore
	c.mu.Unlock()
	snap := c.session.Snapshot()

	var err error
	switch selectHandshake(before, snap) {
	case handshakeResume:
		c.setStatus(StatusResuming)
		logger.Info("resuming session", "session_id", snap.SessionID, "seq", *snap.Sequence)
		err = c.send(t, OpResume, Resume{
			Token:     c.cfg.Token,
			SessionID: snap.SessionID,
			Seq:       *snap.Sequence,
		})
	default:
		// A fresh session numbers its dispatches from 1 again.
		c.session.Clear()
		c.setStatus(StatusIdentifying)
		logger.Info("identifying", "shard_id", c.cfg.ShardID, "shard_count", c.cfg.ShardCount, "intents", c.cfg.Intents)
		err = c.send(t, OpIdentify, c.identifyPayload())
	}
	if err != nil {
		logger.Warn("handshake send failed", "error", err)
	}
}

// handleInvalidSession forgets the session and reconnects with a fresh
// identify, whatever the resumable flag says.
func (c *Client) handleInvalidSession(t connection.Transport, logger *slog.Logger, d json.RawMessage) {
	var resumable bool
	if err := json.Unmarshal(d, &resumable); err != nil {
		logger.Debug("undecodable invalid session payload", "error", err, "payload", string(d))
		logger.Warn("session invalidated")
	} else {
		logger.Warn("session invalidated", "resumable", resumable)
	}
	c.requestReconnect(t, false)
}
