package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	sessionbridge "github.com/opengovern/session-bridge"
	"github.com/opengovern/session-bridge/adapters"
	"github.com/opengovern/session-bridge/internal/logging"
)

const providerName = "hackathon"

var (
	cfg    sessionbridge.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "sessionbridge",
	Short: "Session-renewing client for the hackathon API",
	Long: `sessionbridge sends requests to the hackathon API through a client that renews an
expired session once and replays every request that was waiting on it.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		loaded, err := sessionbridge.LoadConfig(path)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("base-url") {
			loaded.BaseURL, _ = cmd.Flags().GetString("base-url")
		}
		if cmd.Flags().Changed("log-level") {
			loaded.LogLevel, _ = cmd.Flags().GetString("log-level")
		}
		cfg = loaded
		logger = logging.New(cfg.Level())
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "sessionbridge.yaml", "Path to an optional YAML config file")
	rootCmd.PersistentFlags().String("base-url", "", "API base URL (overrides config)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")
}

// newBridge wires a cookie-session bridge for baseURL. Terminal renewal failures print a
// sign-in hint instead of navigating anywhere.
func newBridge(baseURL string, reg prometheus.Registerer) (*sessionbridge.SessionBridge, error) {
	adapter, err := adapters.NewCookieAdapter(baseURL, nil)
	if err != nil {
		return nil, err
	}
	nav := sessionbridge.NewLocationNavigator("/app", func(_ context.Context, from, to string) {
		fmt.Fprintf(os.Stderr, "session expired: sign in again at %s%s (was on %s)\n", baseURL, to, from)
	})

	opts := []sessionbridge.Option{
		sessionbridge.WithLogger(logger),
		sessionbridge.WithNavigator(nav),
	}
	if reg != nil {
		opts = append(opts, sessionbridge.WithMetrics(sessionbridge.NewMetrics(reg)))
	}
	bridge := sessionbridge.NewSessionBridge(opts...)
	bridge.RegisterProvider(providerName, adapter, cfg.ProviderConfig())
	return bridge, nil
}
