package api

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultCommandsPerMinute is the gateway's per-connection command quota.
const DefaultCommandsPerMinute = 120

// Budget is a token bucket for outbound requests. A fresh connection starts
// with a full bucket, so the gateway client calls Reset before reconnecting.
type Budget struct {
	mu      sync.Mutex
	every   time.Duration
	burst   int
	limiter *rate.Limiter
}

// NewBudget allows perMinute requests per minute with a burst of the same size.
func NewBudget(perMinute int) *Budget {
	if perMinute <= 0 {
		perMinute = DefaultCommandsPerMinute
	}
	b := &Budget{
		every: time.Minute / time.Duration(perMinute),
		burst: perMinute,
	}
	b.limiter = b.newLimiter()
	return b
}

func (b *Budget) newLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Every(b.every), b.burst)
}

func (b *Budget) current() *rate.Limiter {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.limiter
}

// Wait blocks until a request may be sent or ctx is done.
func (b *Budget) Wait(ctx context.Context) error {
	return b.current().Wait(ctx)
}

// Reset discards outstanding bookkeeping and refills the bucket.
func (b *Budget) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.limiter = b.newLimiter()
}
