package api

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrEmptyGatewayURL is returned when the API answers without a URL.
var ErrEmptyGatewayURL = errors.New("gateway url missing from response")

// SessionStartLimit is the identify quota reported by GET /gateway/bot.
type SessionStartLimit struct {
	Total          int `json:"total"`
	Remaining      int `json:"remaining"`
	ResetAfter     int `json:"reset_after"` // milliseconds
	MaxConcurrency int `json:"max_concurrency"`
}

// ResetIn returns the time until the identify quota resets.
func (l SessionStartLimit) ResetIn() time.Duration {
	return time.Duration(l.ResetAfter) * time.Millisecond
}

// GatewayBot is the response of GET /gateway/bot.
type GatewayBot struct {
	URL               string            `json:"url"`
	Shards            int               `json:"shards"`
	SessionStartLimit SessionStartLimit `json:"session_start_limit"`
}

// GetGatewayBot fetches the gateway URL along with sharding information.
func (c *Client) GetGatewayBot(ctx context.Context) (*GatewayBot, error) {
	var resp GatewayBot
	if err := c.get(ctx, "/gateway/bot", nil, &resp); err != nil {
		return nil, fmt.Errorf("get gateway bot: %w", err)
	}
	return &resp, nil
}

// ResolveEndpoint returns the websocket URL to connect to.
func (c *Client) ResolveEndpoint(ctx context.Context) (string, error) {
	gb, err := c.GetGatewayBot(ctx)
	if err != nil {
		return "", err
	}
	if gb.URL == "" {
		return "", ErrEmptyGatewayURL
	}

	c.logger.Debug("resolved gateway endpoint",
		"url", gb.URL,
		"shards", gb.Shards,
		"identify_remaining", gb.SessionStartLimit.Remaining,
	)
	if gb.SessionStartLimit.Total > 0 && gb.SessionStartLimit.Remaining == 0 {
		c.logger.Warn("identify quota exhausted",
			"reset_in", gb.SessionStartLimit.ResetIn(),
		)
	}

	return gb.URL, nil
}
