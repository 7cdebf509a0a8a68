package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rickgao/discord-gateway/internal/version"
)

func main() {
	if err := newRootCmd(&options{}).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
}

// options holds command-line flags. Flags that were set override the
// config file.
type options struct {
	configPath string
	envFile    string
	token      string
	debug      bool
	shardID    int
	shardCount int
}

func newRootCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gatewayd",
		Short: "Run a gateway session and keep a live cache of guild state",
		Long: `gatewayd connects to the real-time gateway, keeps the session alive across
disconnects, and mirrors guilds, channels, members and roles in memory.

Health, debug and Prometheus endpoints are served when metrics are enabled.
Dispatch events can be forwarded to NATS.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "path to config file")
	flags.StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before the config")
	flags.StringVar(&opts.token, "token", "", "bot token (default $DISCORD_TOKEN)")
	flags.BoolVar(&opts.debug, "debug", false, "enable debug logging")
	flags.IntVar(&opts.shardID, "shard-id", 0, "shard id")
	flags.IntVar(&opts.shardCount, "shard-count", 1, "total number of shards")

	cmd.AddCommand(versionCmd(), tailCmd(opts))
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "gatewayd %s\n", version.String())
		},
	}
}
