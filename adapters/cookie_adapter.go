// cookie_adapter.go
// -----------------
// CookieAdapter talks to an API that keeps the session in cookies. The server sets the
// access and refresh cookies on login and on every successful call to its renewal endpoint;
// the adapter's jar stores them and attaches them to every later request. The adapter never
// looks inside the cookies.
//
// A 401 is classified as an expired session and a 429 as a rate limit.
package adapters

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"time"

	"golang.org/x/net/publicsuffix"

	sessionbridge "github.com/opengovern/session-bridge"
)

type CookieAdapter struct {
	BaseURL string

	client *http.Client
	jar    *cookiejar.Jar
	now    func() time.Time
}

// NewCookieAdapter returns an adapter bound to baseURL. client may be nil; it is copied
// and given its own cookie jar.
func NewCookieAdapter(baseURL string, client *http.Client) (*CookieAdapter, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	c := cloneClient(client)
	c.Jar = jar
	return &CookieAdapter{BaseURL: baseURL, client: c, jar: jar, now: time.Now}, nil
}

// Jar exposes the session cookies, mainly for tests and for sharing a login.
func (a *CookieAdapter) Jar() http.CookieJar {
	return a.jar
}

func (a *CookieAdapter) ExecuteRequest(ctx context.Context, req *sessionbridge.NormalizedRequest) (*sessionbridge.NormalizedResponse, error) {
	return doHTTP(ctx, a.client, a.BaseURL, req, nil)
}

func (a *CookieAdapter) ParseRateLimitInfo(resp *sessionbridge.NormalizedResponse) (*sessionbridge.NormalizedRateLimitInfo, error) {
	return parseRateLimitHeaders(resp.Headers, a.now()), nil
}

func (a *CookieAdapter) IsRateLimitError(resp *sessionbridge.NormalizedResponse) bool {
	return resp.StatusCode == http.StatusTooManyRequests
}

func (a *CookieAdapter) IsUnauthenticated(resp *sessionbridge.NormalizedResponse) bool {
	return resp.StatusCode == http.StatusUnauthorized
}
