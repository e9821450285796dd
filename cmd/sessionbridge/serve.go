package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/opengovern/session-bridge/mock"
)

var serveMockCmd = &cobra.Command{
	Use:   "serve-mock",
	Short: "Run the fake hackathon API",
	Long:  `Starts an in-memory hackathon API with cookie sessions, a refresh endpoint and /metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		user, _ := cmd.Flags().GetString("user")
		password, _ := cmd.Flags().GetString("password")
		accessTTL, _ := cmd.Flags().GetDuration("access-ttl")
		secret, _ := cmd.Flags().GetString("secret")

		server := mock.NewSessionServer([]byte(secret))
		server.AccessTTL = accessTTL
		if err := server.AddUser(user, password, user, user+"@example.com"); err != nil {
			return err
		}
		server.Handle("/metrics", promhttp.Handler())

		srv := &http.Server{Addr: addr, Handler: server, ReadHeaderTimeout: 5 * time.Second}
		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("starting mock API", "addr", addr, "user", user, "access_ttl", accessTTL)
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			if !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		case sig := <-shutdown:
			logger.Info("shutting down", "signal", sig)
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(ctx)
		}
	},
}

func init() {
	serveMockCmd.Flags().String("addr", ":8080", "Listen address")
	serveMockCmd.Flags().String("user", "demo", "Username to seed")
	serveMockCmd.Flags().String("password", "demo-password", "Password for the seeded user")
	serveMockCmd.Flags().Duration("access-ttl", time.Minute, "Lifetime of access tokens")
	serveMockCmd.Flags().String("secret", "sessionbridge-dev-secret", "HMAC secret for session tokens")
	rootCmd.AddCommand(serveMockCmd)
}
