package main

import (
	"fmt"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/opengovern/session-bridge/hackathon"
)

var requestCmd = &cobra.Command{
	Use:   "request PATH",
	Short: "Send one or more concurrent requests through the bridge",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		method, _ := cmd.Flags().GetString("method")
		data, _ := cmd.Flags().GetString("data")
		user, _ := cmd.Flags().GetString("user")
		password, _ := cmd.Flags().GetString("password")
		concurrency, _ := cmd.Flags().GetInt("concurrency")
		if concurrency < 1 {
			concurrency = 1
		}

		bridge, err := newBridge(cfg.BaseURL, prometheus.NewRegistry())
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		if user != "" {
			if _, err := hackathon.NewClient(bridge, providerName).Login(ctx, user, password); err != nil {
				return fmt.Errorf("login: %w", err)
			}
		}

		var body []byte
		if data != "" {
			body = []byte(data)
		}

		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			errs []error
		)
		for i := range concurrency {
			wg.Add(1)
			go func() {
				defer wg.Done()
				resp, err := bridge.Do(ctx, providerName, strings.ToUpper(method), args[0], body, nil)

				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					errs = append(errs, err)
					fmt.Fprintf(cmd.ErrOrStderr(), "[%d] error: %v\n", i, err)
					return
				}
				fmt.Fprintf(cmd.OutOrStdout(), "[%d] %d %s\n", i, resp.StatusCode, strings.TrimSpace(string(resp.Data)))
			}()
		}
		wg.Wait()

		if len(errs) > 0 {
			return fmt.Errorf("%d of %d requests failed", len(errs), concurrency)
		}
		return nil
	},
}

func init() {
	requestCmd.Flags().StringP("method", "X", "GET", "HTTP method")
	requestCmd.Flags().StringP("data", "d", "", "JSON request body")
	requestCmd.Flags().String("user", "", "Log in as this user first")
	requestCmd.Flags().String("password", "", "Password for --user")
	requestCmd.Flags().IntP("concurrency", "c", 1, "Number of concurrent copies of the request")
	rootCmd.AddCommand(requestCmd)
}
