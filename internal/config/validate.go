package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var validStatuses = []string{"online", "idle", "dnd", "invisible"}

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Discord.Token) == "" {
		return errors.New("discord.token is required")
	}
	if c.Discord.APIVersion < 1 {
		return errors.New("discord.api_version must be >= 1")
	}
	if c.Discord.Intents < 0 {
		return errors.New("discord.intents must be >= 0")
	}
	if c.Discord.LargeThreshold < 50 || c.Discord.LargeThreshold > 250 {
		return fmt.Errorf("discord.large_threshold must be between 50 and 250, got %d", c.Discord.LargeThreshold)
	}
	if c.Discord.ShardCount < 1 {
		return errors.New("discord.shard_count must be >= 1")
	}
	if c.Discord.ShardID < 0 || c.Discord.ShardID >= c.Discord.ShardCount {
		return fmt.Errorf("discord.shard_id (%d) must be in [0, %d)", c.Discord.ShardID, c.Discord.ShardCount)
	}

	if c.Gateway.MaxRetries < 0 {
		return errors.New("gateway.max_retries must be >= 0")
	}
	if c.Gateway.RetryDelay <= 0 {
		return errors.New("gateway.retry_delay must be > 0")
	}
	if c.Gateway.CommandsPerMinute < 1 {
		return errors.New("gateway.commands_per_minute must be >= 1")
	}
	if !slices.Contains(validStatuses, c.Gateway.Presence.Status) {
		return fmt.Errorf("gateway.presence.status must be one of %v, got %q", validStatuses, c.Gateway.Presence.Status)
	}

	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}
	if !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with /, got %q", c.Metrics.Path)
	}

	if c.Bridge.NATS.Enabled() && c.Bridge.NATS.SubjectPrefix == "" {
		return errors.New("bridge.nats.subject_prefix is required when servers are set")
	}

	return nil
}
