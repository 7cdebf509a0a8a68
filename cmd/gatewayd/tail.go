package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rickgao/discord-gateway/internal/gateway"
)

type tailOptions struct {
	verbose   bool
	lifecycle bool
	events    []string
	interval  time.Duration
}

// tailCmd connects like the daemon but prints events to stdout instead of
// serving them. Useful for checking a token and intents by hand.
func tailCmd(root *options) *cobra.Command {
	opts := &tailOptions{}

	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Connect and print gateway events to the console",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, root)
			if err != nil {
				return err
			}
			logger := newLogger(cmd.ErrOrStderr(), cfg.Logging)

			client, err := newClient(cfg, logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return tail(ctx, client, cmd.OutOrStdout(), opts, logger)
		},
	}

	flags := cmd.Flags()
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "print full event JSON")
	flags.BoolVar(&opts.lifecycle, "lifecycle", false, "also print lifecycle notifications")
	flags.StringSliceVar(&opts.events, "events", nil, "only print these events, e.g. \"message create\"")
	flags.DurationVar(&opts.interval, "stats-interval", 30*time.Second, "how often to log cache stats, 0 to disable")
	return cmd
}

func tail(ctx context.Context, client *gateway.Client, out io.Writer, opts *tailOptions, logger *slog.Logger) error {
	p := &printer{out: out, verbose: opts.verbose, lifecycle: opts.lifecycle, events: opts.events}
	defer client.Bus().SubscribeAll(p.print)()

	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("connect gateway: %w", err)
	}
	logger.Info("streaming started - press Ctrl+C to stop")

	var tick <-chan time.Time
	if opts.interval > 0 {
		ticker := time.NewTicker(opts.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down...")
			return client.Close()
		case <-client.Done():
			return client.Err()
		case <-tick:
			st := client.Cache().Stats()
			snap := client.Session()
			logger.Info("stats",
				"status", client.Status(),
				"guilds", st.Guilds,
				"channels", st.Channels,
				"members", st.Members,
				"latency", snap.Latency,
			)
		}
	}
}

// printer writes one line per event.
type printer struct {
	out       io.Writer
	verbose   bool
	lifecycle bool
	events    []string
}

func (p *printer) print(ev gateway.Event) {
	if gateway.IsLifecycle(ev.Name) {
		if !p.lifecycle {
			return
		}
		fmt.Fprintf(p.out, "(%s)\n", ev.Name)
		return
	}
	if len(p.events) > 0 && !slices.Contains(p.events, ev.Name) {
		return
	}

	label := strings.ToUpper(strings.ReplaceAll(ev.Name, " ", "_"))
	if !p.verbose || len(ev.Raw) == 0 {
		fmt.Fprintf(p.out, "[%s] seq=%d bytes=%d\n", label, ev.Sequence, len(ev.Raw))
		return
	}

	var body any
	if err := json.Unmarshal(ev.Raw, &body); err != nil {
		fmt.Fprintf(p.out, "[%s] seq=%d %s\n", label, ev.Sequence, ev.Raw)
		return
	}
	data, _ := json.MarshalIndent(body, "", "  ")
	fmt.Fprintf(p.out, "[%s] seq=%d %s\n", label, ev.Sequence, data)
}
