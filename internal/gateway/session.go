package gateway

import (
	"sync"
	"time"
)

// Session is the resumable state of one gateway session plus the heartbeat
// bookkeeping of the current connection.
type Session struct {
	mu sync.Mutex

	sequence    int64
	hasSequence bool
	id          string
	resumeURL   string
	gatewayURL  string

	interval   time.Duration
	ackPending bool
	lastSent   time.Time
	lastAck    time.Time
	latency    time.Duration
}

// SessionSnapshot is a point-in-time copy of a Session.
type SessionSnapshot struct {
	Sequence          *int64
	SessionID         string
	ResumeGatewayURL  string
	GatewayURL        string
	HeartbeatInterval time.Duration
	AckPending        bool
	LastHeartbeatSent time.Time
	LastHeartbeatAck  time.Time
	Latency           time.Duration
}

// ObserveSequence records a sequence number seen on an inbound frame and
// returns the current one. The sequence never moves backwards.
func (s *Session) ObserveSequence(seq int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasSequence || seq > s.sequence {
		s.sequence = seq
		s.hasSequence = true
	}
	return s.sequence
}

// Sequence returns the last observed sequence number, if any.
func (s *Session) Sequence() (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sequence, s.hasSequence
}

func (s *Session) setSession(id, resumeURL string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = id
	s.resumeURL = resumeURL
}

// Clear forgets the session so the next handshake identifies.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = ""
	s.resumeURL = ""
	s.sequence = 0
	s.hasSequence = false
}

func (s *Session) setGatewayURL(u string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gatewayURL = u
}

// resetHeartbeat starts heartbeat bookkeeping over for a new Hello.
func (s *Session) resetHeartbeat(interval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interval = interval
	s.ackPending = false
}

func (s *Session) beginHeartbeat(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ackPending = true
	s.lastSent = now
}

// ackHeartbeat clears the pending flag and returns the round trip of the
// acknowledged heartbeat.
func (s *Session) ackHeartbeat(now time.Time) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ackPending {
		return 0, false
	}
	s.ackPending = false
	s.lastAck = now
	s.latency = now.Sub(s.lastSent)
	return s.latency, true
}

func (s *Session) heartbeatPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ackPending
}

// Snapshot returns a copy of the session.
func (s *Session) Snapshot() SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := SessionSnapshot{
		SessionID:         s.id,
		ResumeGatewayURL:  s.resumeURL,
		GatewayURL:        s.gatewayURL,
		HeartbeatInterval: s.interval,
		AckPending:        s.ackPending,
		LastHeartbeatSent: s.lastSent,
		LastHeartbeatAck:  s.lastAck,
		Latency:           s.latency,
	}
	if s.hasSequence {
		seq := s.sequence
		snap.Sequence = &seq
	}
	return snap
}
