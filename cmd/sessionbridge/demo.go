package main

import (
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	sessionbridge "github.com/opengovern/session-bridge"
	"github.com/opengovern/session-bridge/hackathon"
	"github.com/opengovern/session-bridge/mock"
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Expire a session under concurrent load against an in-process API",
	Long: `demo starts the fake API in-process, logs in, expires the session and fires
concurrent requests. Exactly one renewal call is made for the whole batch. With --revoke
the refresh token is revoked too, and the batch fails with a sign-in hint.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		concurrency, _ := cmd.Flags().GetInt("concurrency")
		revoke, _ := cmd.Flags().GetBool("revoke")
		if concurrency < 1 {
			concurrency = 1
		}

		server := mock.NewSessionServer([]byte("sessionbridge-demo"))
		server.BcryptCost = bcrypt.MinCost
		if err := server.AddUser("demo", "demo-password", "Demo User", "demo@example.com"); err != nil {
			return err
		}
		ts := httptest.NewServer(server)
		defer ts.Close()

		bridge, err := newBridge(ts.URL, prometheus.NewRegistry())
		if err != nil {
			return err
		}
		client := hackathon.NewClient(bridge, providerName)
		coord, err := bridge.Coordinator(providerName)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		if _, err := client.Login(ctx, "demo", "demo-password"); err != nil {
			return fmt.Errorf("login: %w", err)
		}

		if revoke {
			server.RevokeRefreshTokens()
		} else {
			server.ExpireSessions()
		}
		release := server.HoldRefresh()
		defer release()

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			ok      int
			expired int
		)
		for range concurrency {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := client.Profile(ctx)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					ok++
				case errors.Is(err, sessionbridge.ErrSessionExpired):
					expired++
				default:
					logger.Error("request failed", "err", err)
				}
			}()
		}

		waitForQueue(ctx, coord, concurrency, 2*time.Second)
		release()
		wg.Wait()

		fmt.Fprintf(cmd.OutOrStdout(), "requests=%d ok=%d session_expired=%d refresh_calls=%d\n",
			concurrency, ok, expired, server.RefreshCalls())
		return nil
	},
}

// waitForQueue polls until n callers are queued behind the renewal or timeout passes.
func waitForQueue(ctx context.Context, coord *sessionbridge.RenewalCoordinator, n int, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for coord.Waiting() < n && time.Now().Before(deadline) && ctx.Err() == nil {
		time.Sleep(5 * time.Millisecond)
	}
}

func init() {
	demoCmd.Flags().IntP("concurrency", "c", 8, "Number of concurrent requests")
	demoCmd.Flags().Bool("revoke", false, "Revoke the refresh token so renewal fails")
	rootCmd.AddCommand(demoCmd)
}
