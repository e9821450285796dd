package adapters

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	sessionbridge "github.com/opengovern/session-bridge"
	"github.com/opengovern/session-bridge/internal/timeparse"
)

const defaultTimeout = 30 * time.Second

// doHTTP sends req against baseURL and normalizes the response.
// decorate runs last and may attach credentials.
func doHTTP(ctx context.Context, client *http.Client, baseURL string, req *sessionbridge.NormalizedRequest, decorate func(*http.Request)) (*sessionbridge.NormalizedResponse, error) {
	fullURL := strings.TrimRight(baseURL, "/") + req.Endpoint

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, fullURL, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if req.ID != "" {
		httpReq.Header.Set("X-Request-ID", req.ID)
	}
	if len(req.Body) > 0 && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if httpReq.Header.Get("Accept") == "" {
		httpReq.Header.Set("Accept", "application/json")
	}
	if decorate != nil {
		decorate(httpReq)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	headers := make(map[string]string, len(resp.Header))
	for k, vals := range resp.Header {
		if len(vals) > 0 {
			headers[strings.ToLower(k)] = vals[0]
		}
	}

	return &sessionbridge.NormalizedResponse{
		StatusCode: resp.StatusCode,
		Headers:    headers,
		Data:       data,
	}, nil
}

// parseRateLimitHeaders reads the x-ratelimit-* family and retry-after.
func parseRateLimitHeaders(h map[string]string, now time.Time) *sessionbridge.NormalizedRateLimitInfo {
	parseInt := func(key string) *int {
		if val, ok := h[key]; ok {
			if i, err := strconv.Atoi(val); err == nil {
				return &i
			}
		}
		return nil
	}

	info := &sessionbridge.NormalizedRateLimitInfo{
		MaxRequests:       parseInt("x-ratelimit-limit"),
		RemainingRequests: parseInt("x-ratelimit-remaining"),
	}
	if val, ok := h["x-ratelimit-reset"]; ok {
		if ts, err := strconv.ParseInt(val, 10, 64); err == nil {
			if ms := timeparse.UnixToMs(ts); timeparse.IsInFuture(ms, now) {
				info.ResetRequestsAt = &ms
			}
		}
	}
	// Some APIs send the window as a duration instead, e.g. "6m0s".
	if val, ok := h["x-ratelimit-reset-after"]; ok && info.ResetRequestsAt == nil {
		if ms := timeparse.ParseDurationStr(val); ms > 0 {
			at := now.UnixMilli() + ms
			info.ResetRequestsAt = &at
		}
	}

	// retry-after is only present when rate limited; prefer it if it is later.
	if at, ok := timeparse.RetryAfter(h["retry-after"], now); ok {
		if info.ResetRequestsAt == nil || at > *info.ResetRequestsAt {
			info.ResetRequestsAt = &at
		}
		if info.RemainingRequests == nil {
			zero := 0
			info.RemainingRequests = &zero
		}
	}

	if info.MaxRequests == nil && info.RemainingRequests == nil && info.ResetRequestsAt == nil {
		return nil
	}
	return info
}

func cloneClient(client *http.Client) *http.Client {
	if client == nil {
		return &http.Client{Timeout: defaultTimeout}
	}
	cp := *client
	return &cp
}
