package config

import "time"

// Config is the root configuration for a gatewayd instance.
type Config struct {
	Discord DiscordConfig `yaml:"discord"`
	Gateway GatewayConfig `yaml:"gateway"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Bridge  BridgeConfig  `yaml:"bridge"`
}

// DiscordConfig holds account and API settings.
type DiscordConfig struct {
	Token          string        `yaml:"token"`
	APIURL         string        `yaml:"api_url"`
	GatewayURL     string        `yaml:"gateway_url"` // Skips endpoint resolution when set
	APIVersion     int           `yaml:"api_version"`
	Intents        int           `yaml:"intents"`
	LargeThreshold int           `yaml:"large_threshold"`
	ShardID        int           `yaml:"shard_id"`
	ShardCount     int           `yaml:"shard_count"`
	Timeout        time.Duration `yaml:"timeout"`     // REST timeout
	MaxRetries     int           `yaml:"max_retries"` // REST retries
}

// GatewayConfig holds websocket session settings.
type GatewayConfig struct {
	HandshakeTimeout  time.Duration  `yaml:"handshake_timeout"`
	WriteTimeout      time.Duration  `yaml:"write_timeout"`
	CloseTimeout      time.Duration  `yaml:"close_timeout"`
	MaxRetries        int            `yaml:"max_retries"` // Immediate reconnects before the delayed retry
	RetryDelay        time.Duration  `yaml:"retry_delay"`
	CommandsPerMinute int            `yaml:"commands_per_minute"`
	Presence          PresenceConfig `yaml:"presence"`
}

// PresenceConfig is the presence sent with identify.
type PresenceConfig struct {
	Status       string `yaml:"status"` // online, idle, dnd, invisible
	Activity     string `yaml:"activity"`
	ActivityType int    `yaml:"activity_type"`
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Debug  bool   `yaml:"debug"`
	Format string `yaml:"format"` // text or json
}

// MetricsConfig holds the HTTP listener for health, debug and Prometheus.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// BridgeConfig holds event forwarding settings.
type BridgeConfig struct {
	NATS NATSConfig `yaml:"nats"`
}

// NATSConfig configures the NATS forwarder. Empty Servers disables it.
type NATSConfig struct {
	Servers       []string      `yaml:"servers"`
	Name          string        `yaml:"name"`
	SubjectPrefix string        `yaml:"subject_prefix"`
	Events        []string      `yaml:"events"` // Empty forwards every dispatch event
	Timeout       time.Duration `yaml:"timeout"`
}

// Enabled reports whether the bridge should run.
func (n NATSConfig) Enabled() bool {
	return len(n.Servers) > 0
}
