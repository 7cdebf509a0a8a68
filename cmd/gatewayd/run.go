package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/discord-gateway/internal/api"
	"github.com/rickgao/discord-gateway/internal/bridge"
	"github.com/rickgao/discord-gateway/internal/config"
	"github.com/rickgao/discord-gateway/internal/gateway"
	"github.com/rickgao/discord-gateway/internal/health"
	"github.com/rickgao/discord-gateway/internal/metrics"
	"github.com/rickgao/discord-gateway/internal/model"
	"github.com/rickgao/discord-gateway/internal/version"
)

// loadConfig merges the dotenv file, the config file and flags, in that
// order of increasing precedence.
func loadConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	if opts.envFile != "" {
		if err := godotenv.Load(opts.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load env file: %w", err)
		}
	}

	cfg := config.Default()
	if opts.configPath != "" {
		loaded, err := config.LoadWithDefaults(opts.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("token") {
		cfg.Discord.Token = opts.token
	} else if cfg.Discord.Token == "" {
		cfg.Discord.Token = os.Getenv("DISCORD_TOKEN")
	}
	if flags.Changed("debug") {
		cfg.Logging.Debug = opts.debug
	}
	if flags.Changed("shard-id") {
		cfg.Discord.ShardID = opts.shardID
	}
	if flags.Changed("shard-count") {
		cfg.Discord.ShardCount = opts.shardCount
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func newLogger(w io.Writer, cfg config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}

// gatewayConfig maps the file configuration onto the gateway client.
func gatewayConfig(cfg *config.Config) gateway.Config {
	gc := gateway.DefaultConfig()
	gc.Token = cfg.Discord.Token
	gc.GatewayURL = cfg.Discord.GatewayURL
	gc.APIVersion = cfg.Discord.APIVersion
	if cfg.Discord.Intents != 0 {
		gc.Intents = cfg.Discord.Intents
	}
	gc.LargeThreshold = cfg.Discord.LargeThreshold
	gc.ShardID = cfg.Discord.ShardID
	gc.ShardCount = cfg.Discord.ShardCount
	gc.Transport.HandshakeTimeout = cfg.Gateway.HandshakeTimeout
	gc.Transport.WriteTimeout = cfg.Gateway.WriteTimeout
	gc.Transport.CloseTimeout = cfg.Gateway.CloseTimeout
	gc.MaxRetries = cfg.Gateway.MaxRetries
	gc.RetryDelay = cfg.Gateway.RetryDelay

	if p := cfg.Gateway.Presence; p.Status != "" {
		presence := &gateway.PresenceUpdate{Status: p.Status, Activities: []model.Activity{}}
		if p.Activity != "" {
			presence.Activities = append(presence.Activities, model.Activity{Name: p.Activity, Type: p.ActivityType})
		}
		gc.Presence = presence
	}
	return gc
}

// newClient builds a gateway client that resolves its endpoint over REST
// and paces commands with the configured budget.
func newClient(cfg *config.Config, logger *slog.Logger, opts ...gateway.Option) (*gateway.Client, error) {
	apiClient := api.NewClient(
		cfg.Discord.APIURL,
		cfg.Discord.Token,
		api.WithLogger(logger),
		api.WithTimeout(cfg.Discord.Timeout),
		api.WithRetries(cfg.Discord.MaxRetries, time.Second),
	)

	base := []gateway.Option{
		gateway.WithLogger(logger),
		gateway.WithResolver(apiClient),
		gateway.WithBudget(api.NewBudget(cfg.Gateway.CommandsPerMinute)),
	}
	client, err := gateway.New(gatewayConfig(cfg), append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("create gateway client: %w", err)
	}
	return client, nil
}

func run(cmd *cobra.Command, opts *options) error {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}

	logger := newLogger(os.Stdout, cfg.Logging)
	slog.SetDefault(logger)
	logger.Info("starting gatewayd",
		"version", version.Version,
		"commit", version.Commit,
		"shard_id", cfg.Discord.ShardID,
		"shard_count", cfg.Discord.ShardCount,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.New(reg, "")

	client, err := newClient(cfg, logger, gateway.WithMetrics(collector))
	if err != nil {
		return err
	}

	client.Bus().Subscribe(gateway.LifecycleHandshakeReady, func(ev gateway.Event) {
		st := client.Cache().Stats()
		logger.Info("gateway ready",
			"guilds", st.Guilds,
			"unavailable", st.Unavailable,
			"dms", st.DMs,
		)
	})

	if nc := cfg.Bridge.NATS; nc.Enabled() {
		conn, err := bridge.Connect(bridge.Config{
			Servers:       nc.Servers,
			Name:          nc.Name,
			SubjectPrefix: nc.SubjectPrefix,
			Events:        nc.Events,
			Timeout:       nc.Timeout,
		}, logger)
		if err != nil {
			return err
		}
		defer conn.Drain()

		fwd := bridge.NewForwarder(conn, nc.SubjectPrefix, nc.Events, logger)
		detach := fwd.Attach(client.Bus())
		defer detach()
		logger.Info("forwarding events to nats", "servers", nc.Servers, "prefix", nc.SubjectPrefix)
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Metrics.Enabled {
		h := health.NewHandler(client, reg, cfg.Metrics.Path, logger)
		addr := fmt.Sprintf(":%d", cfg.Metrics.Port)
		g.Go(func() error {
			return health.Serve(gctx, addr, h.Router(), logger)
		})
	}

	if err := client.Connect(gctx); err != nil {
		cancel()
		_ = g.Wait()
		return fmt.Errorf("connect gateway: %w", err)
	}

	g.Go(func() error {
		select {
		case <-gctx.Done():
			logger.Info("shutting down")
			return client.Close()
		case <-client.Done():
			cancel()
			if err := client.Err(); err != nil {
				return fmt.Errorf("gateway terminated: %w", err)
			}
			logger.Info("gateway session ended")
			return nil
		}
	})

	return g.Wait()
}
