// Sockpacket frames application messages over byte streams and datagrams.
//
// Packets are wrapped in start and end sentinels so a receiver can recover
// message boundaries from arbitrarily fragmented or batched input. The CLI can
// listen on tcp, udp, unix, WebSocket and QUIC sockets, send framed values,
// frame and unframe data on stdin/stdout and replay JSONL captures.
//
// Usage:
//
//	sockpacket [command] [flags]
//
// See 'sockpacket --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/sockpacket/internal/config"
	"github.com/muurk/sockpacket/internal/logging"
	"github.com/muurk/sockpacket/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Global flags
var (
	configPath string
	logLevel   string
)

// cfg is loaded before every command runs
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "sockpacket",
	Short: "Sentinel-framed packet tool",
	Long: `Frame application messages over byte streams and datagrams.

Each packet travels as start sentinel + payload + end sentinel. Receivers
reassemble packets split across reads, split batched packets apart and
report malformed input without losing the valid packets around it.

Defaults come from the config file (see 'sockpacket config show') and are
overridden by flags.`,
	Version:           version.Version,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: platform config dir; .toml files are read as TOML)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); default from config or "+logging.LogLevelEnvVar)

	rootCmd.AddCommand(versionCmd)
}

// setup loads the config file and initializes logging.
func setup(cmd *cobra.Command, args []string) error {
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}

	level := logLevel
	if level == "" {
		level = cfg.LogLevel
	}
	if level == "" {
		return logging.InitializeFromEnv()
	}
	return logging.Initialize(level)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("sockpacket %s\n", version.Full())
	},
}
