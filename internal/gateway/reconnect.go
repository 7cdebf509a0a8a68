package gateway

import (
	"errors"
	"log/slog"
	"time"

	"github.com/rickgao/discord-gateway/internal/connection"
)

// closeInfo is everything the reconnection policy looks at.
type closeInfo struct {
	Code         int
	Reason       string
	Clean        bool // close frame exchanged
	Requested    bool // reconnect asked for by op 7, a zombie, or InvalidSession
	RetryPending bool // a delayed retry is already scheduled
}

type actionKind int

const (
	actionReconnect actionKind = iota
	actionDelay
	actionTerminate
	actionFatal
	actionSuppress
)

func (k actionKind) String() string {
	switch k {
	case actionReconnect:
		return "reconnect"
	case actionDelay:
		return "delay"
	case actionTerminate:
		return "terminate"
	case actionFatal:
		return "fatal"
	case actionSuppress:
		return "suppress"
	default:
		return "unknown"
	}
}

type reconnectAction struct {
	Kind         actionKind
	ClearSession bool
	CountRetry   bool
	Err          error
}

// decideReconnect maps a close to what happens next. Rules are checked in
// order; the first match wins.
func decideReconnect(info closeInfo, retries, limit int) reconnectAction {
	switch {
	case info.Code == CloseAuthenticationFailed:
		return reconnectAction{Kind: actionFatal, Err: &CloseError{Code: info.Code, Reason: info.Reason, err: ErrAuthenticationFailed}}
	case isFatalClose(info.Code):
		return reconnectAction{Kind: actionFatal, Err: &CloseError{Code: info.Code, Reason: info.Reason}}
	case info.RetryPending:
		return reconnectAction{Kind: actionSuppress}
	case info.Requested:
		return reconnectAction{Kind: actionReconnect}
	case isSessionInvalidClose(info.Code):
		return reconnectAction{Kind: actionReconnect, ClearSession: true}
	case info.Clean && info.Code == connection.CloseNormal:
		return reconnectAction{Kind: actionTerminate}
	case retries < limit:
		return reconnectAction{Kind: actionReconnect, CountRetry: true}
	default:
		return reconnectAction{Kind: actionDelay}
	}
}

// recoverFrom applies the policy to a close and keeps dialing while attempts
// fail and the policy allows an immediate retry.
func (c *Client) recoverFrom(logger *slog.Logger, info closeInfo) {
	for {
		c.mu.Lock()
		if c.closed || c.ended {
			c.mu.Unlock()
			return
		}
		info.RetryPending = c.retryTimer != nil
		action := decideReconnect(info, c.retries, c.cfg.MaxRetries)
		if action.Kind == actionReconnect {
			if action.ClearSession {
				c.hasConnectedBefore = false
			}
			if action.CountRetry {
				c.retries++
			}
		}
		retries := c.retries
		c.mu.Unlock()

		switch action.Kind {
		case actionFatal:
			logger.Error("gateway closed with fatal code", "code", info.Code, "reason", info.Reason, "error", action.Err)
			c.terminate(action.Err)
			return
		case actionTerminate:
			logger.Info("gateway closed cleanly, session ended")
			c.terminate(nil)
			return
		case actionSuppress:
			logger.Debug("close ignored, retry already scheduled", "code", info.Code)
			return
		case actionDelay:
			logger.Warn("reconnect limit reached, delaying retry", "retries", retries, "delay", c.cfg.RetryDelay)
			c.scheduleRetry(logger, c.cfg.RetryDelay)
			return
		}

		if action.ClearSession {
			c.session.Clear()
		}
		c.mu.Lock()
		kind := selectHandshake(c.hasConnectedBefore, c.session.Snapshot())
		c.mu.Unlock()
		c.metrics.Reconnect(kind.String())
		logger.Info("reconnecting", "handshake", kind, "attempt", retries, "code", info.Code)

		c.budget.Reset()
		err := c.dial(c.ctx)
		if err == nil || errors.Is(err, ErrClientClosed) || errors.Is(err, ErrAlreadyConnected) {
			return
		}
		logger.Warn("reconnect failed", "error", err)
		c.publish(Event{Name: LifecycleSocketErrored, Data: err})
		info = closeInfo{Code: connection.CloseAbnormal}
	}
}

// scheduleRetry arms the single delayed retry. The retry counter is reset
// when it fires.
func (c *Client) scheduleRetry(logger *slog.Logger, delay time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.retryTimer != nil || c.closed || c.ended {
		return
	}
	c.retryGen++
	gen := c.retryGen
	c.retryTimer = time.AfterFunc(delay, func() { c.fireRetry(logger, gen) })
	c.metrics.Reconnect("delayed")
}

func (c *Client) fireRetry(logger *slog.Logger, gen uint64) {
	c.mu.Lock()
	if c.retryTimer == nil || c.retryGen != gen || c.closed || c.ended {
		c.mu.Unlock()
		return
	}
	c.retryTimer = nil
	c.retries = 0
	c.mu.Unlock()

	logger.Info("retrying connection after delay")
	c.budget.Reset()
	err := c.dial(c.ctx)
	if err == nil || errors.Is(err, ErrClientClosed) || errors.Is(err, ErrAlreadyConnected) {
		return
	}
	logger.Warn("delayed reconnect failed", "error", err)
	c.publish(Event{Name: LifecycleSocketErrored, Data: err})
	c.recoverFrom(logger, closeInfo{Code: connection.CloseAbnormal})
}

// cancelRetryLocked stops a pending delayed retry. c.mu must be held.
func (c *Client) cancelRetryLocked() {
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
}
