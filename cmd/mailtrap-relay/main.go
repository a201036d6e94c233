// Command mailtrap-relay accepts mail over SMTP and delivers it through the
// Mailtrap Send API or another configured transport.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/shineum/mailtrap-relay/internal/config"
	"github.com/shineum/mailtrap-relay/internal/transport"
	_ "github.com/shineum/mailtrap-relay/internal/transport/graph"
	_ "github.com/shineum/mailtrap-relay/internal/transport/mailtrap"
	_ "github.com/shineum/mailtrap-relay/internal/transport/resend"
	_ "github.com/shineum/mailtrap-relay/internal/transport/ses"
	_ "github.com/shineum/mailtrap-relay/internal/transport/stdout"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:           "mailtrap-relay",
	Short:         "SMTP relay that delivers mail through the Mailtrap Send API",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the SMTP relay until interrupted",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var sendCmd = &cobra.Command{
	Use:   "send [file]",
	Short: "Send a single RFC 5322 message file through the configured transport",
	Args:  cobra.ExactArgs(1),
	RunE:  runSend,
}

var transportsCmd = &cobra.Command{
	Use:   "transports",
	Short: "List the available transports",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		for _, name := range transport.Names() {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML configuration file (optional)")
	sendCmd.Flags().String("category", "", "set the X-Mailtrap-Category header before sending")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(transportsCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads configuration from the given path (YAML + env override)
// or from environment variables only, then validates it.
func loadConfig(path string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path != "" {
		cfg, err = config.LoadFromFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setup loads configuration, installs the default logger and opens the
// selected transport with logging hooks attached.
func setup(ctx context.Context) (*config.Config, transport.Transport, *slog.Logger, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, nil, err
	}

	logger := newLogger(cfg.Logging, os.Stderr)
	slog.SetDefault(logger)

	t, err := transport.Open(ctx, cfg.Transport, cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, transport.WithHooks(t, transport.NewLogHook(logger)), logger, nil
}
