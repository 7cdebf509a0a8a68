package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultAPIURL            = "https://discord.com/api/v10"
	DefaultAPIVersion        = 10
	DefaultLargeThreshold    = 50
	DefaultShardCount        = 1
	DefaultAPITimeout        = 30 * time.Second
	DefaultAPIMaxRetries     = 3
	DefaultHandshakeTimeout  = 10 * time.Second
	DefaultWriteTimeout      = 5 * time.Second
	DefaultCloseTimeout      = 3 * time.Second
	DefaultMaxRetries        = 5
	DefaultRetryDelay        = 15 * time.Second
	DefaultCommandsPerMinute = 120
	DefaultPresenceStatus    = "online"
	DefaultLogFormat         = "text"
	DefaultMetricsPort       = 9090
	DefaultMetricsPath       = "/metrics"
	DefaultNATSName          = "gatewayd"
	DefaultSubjectPrefix     = "discord.events"
	DefaultNATSTimeout       = 3 * time.Second
)

// ApplyDefaults fills every unset optional field.
func (c *Config) ApplyDefaults() {
	// Discord defaults
	if c.Discord.APIURL == "" {
		c.Discord.APIURL = DefaultAPIURL
	}
	if c.Discord.APIVersion == 0 {
		c.Discord.APIVersion = DefaultAPIVersion
	}
	if c.Discord.LargeThreshold == 0 {
		c.Discord.LargeThreshold = DefaultLargeThreshold
	}
	if c.Discord.ShardCount == 0 {
		c.Discord.ShardCount = DefaultShardCount
	}
	if c.Discord.Timeout == 0 {
		c.Discord.Timeout = DefaultAPITimeout
	}
	if c.Discord.MaxRetries == 0 {
		c.Discord.MaxRetries = DefaultAPIMaxRetries
	}

	// Gateway defaults
	if c.Gateway.HandshakeTimeout == 0 {
		c.Gateway.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Gateway.WriteTimeout == 0 {
		c.Gateway.WriteTimeout = DefaultWriteTimeout
	}
	if c.Gateway.CloseTimeout == 0 {
		c.Gateway.CloseTimeout = DefaultCloseTimeout
	}
	if c.Gateway.MaxRetries == 0 {
		c.Gateway.MaxRetries = DefaultMaxRetries
	}
	if c.Gateway.RetryDelay == 0 {
		c.Gateway.RetryDelay = DefaultRetryDelay
	}
	if c.Gateway.CommandsPerMinute == 0 {
		c.Gateway.CommandsPerMinute = DefaultCommandsPerMinute
	}
	if c.Gateway.Presence.Status == "" {
		c.Gateway.Presence.Status = DefaultPresenceStatus
	}

	// Logging defaults
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}

	// Bridge defaults
	if c.Bridge.NATS.Name == "" {
		c.Bridge.NATS.Name = DefaultNATSName
	}
	if c.Bridge.NATS.SubjectPrefix == "" {
		c.Bridge.NATS.SubjectPrefix = DefaultSubjectPrefix
	}
	if c.Bridge.NATS.Timeout == 0 {
		c.Bridge.NATS.Timeout = DefaultNATSTimeout
	}
}
