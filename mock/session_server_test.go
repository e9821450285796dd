package mock

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/opengovern/session-bridge/hackathon"
)

type testSession struct {
	t      *testing.T
	ts     *httptest.Server
	client *http.Client
}

func newTestSession(t *testing.T) (*SessionServer, *testSession) {
	t.Helper()
	srv := NewSessionServer([]byte("secret"))
	srv.BcryptCost = bcrypt.MinCost
	require.NoError(t, srv.AddUser("ada", "pw", "Ada", "ada@example.test"))

	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := ts.Client()
	client.Jar = jar
	return srv, &testSession{t: t, ts: ts, client: client}
}

func (s *testSession) do(method, path, body string) (int, []byte) {
	s.t.Helper()
	req, err := http.NewRequest(method, s.ts.URL+path, strings.NewReader(body))
	require.NoError(s.t, err)
	resp, err := s.client.Do(req)
	require.NoError(s.t, err)
	defer resp.Body.Close()

	var raw json.RawMessage
	_ = json.NewDecoder(resp.Body).Decode(&raw)
	return resp.StatusCode, raw
}

func TestSessionServer_LoginAndRefresh(t *testing.T) {
	srv, s := newTestSession(t)

	code, _ := s.do(http.MethodGet, "/api/profile", "")
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = s.do(http.MethodPost, "/auth/login", `{"username":"ada","password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, body := s.do(http.MethodPost, "/auth/login", `{"username":"ada","password":"pw"}`)
	require.Equal(t, http.StatusOK, code)
	var p hackathon.Profile
	require.NoError(t, json.Unmarshal(body, &p))
	assert.Equal(t, "Ada", p.DisplayName)

	code, _ = s.do(http.MethodGet, "/api/profile", "")
	assert.Equal(t, http.StatusOK, code)

	srv.ExpireSessions()
	code, _ = s.do(http.MethodGet, "/api/profile", "")
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = s.do(http.MethodPost, "/auth/refresh", "")
	assert.Equal(t, http.StatusNoContent, code)
	code, _ = s.do(http.MethodGet, "/api/profile", "")
	assert.Equal(t, http.StatusOK, code)

	assert.Equal(t, int64(1), srv.RefreshCalls())
	assert.Equal(t, int64(4), srv.APICalls())
}

func TestSessionServer_RevokeAndLogout(t *testing.T) {
	srv, s := newTestSession(t)
	code, _ := s.do(http.MethodPost, "/auth/login", `{"username":"ada","password":"pw"}`)
	require.Equal(t, http.StatusOK, code)

	srv.RevokeRefreshTokens()
	code, _ = s.do(http.MethodPost, "/auth/refresh", "")
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = s.do(http.MethodPost, "/auth/login", `{"username":"ada","password":"pw"}`)
	require.Equal(t, http.StatusOK, code)
	code, _ = s.do(http.MethodPost, "/auth/logout", "")
	assert.Equal(t, http.StatusNoContent, code)

	u, err := url.Parse(s.ts.URL)
	require.NoError(t, err)
	assert.Empty(t, s.client.Jar.Cookies(u))
	code, _ = s.do(http.MethodPost, "/auth/refresh", "")
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestSessionServer_HoldRefresh(t *testing.T) {
	srv, s := newTestSession(t)
	code, _ := s.do(http.MethodPost, "/auth/login", `{"username":"ada","password":"pw"}`)
	require.Equal(t, http.StatusOK, code)

	release := srv.HoldRefresh()
	done := make(chan int, 1)
	go func() {
		code, _ := s.do(http.MethodPost, "/auth/refresh", "")
		done <- code
	}()

	require.Eventually(t, func() bool { return srv.RefreshCalls() == 1 }, time.Second, time.Millisecond)
	select {
	case <-done:
		t.Fatal("refresh returned while held")
	case <-time.After(20 * time.Millisecond):
	}

	release()
	release()
	assert.Equal(t, http.StatusNoContent, <-done)
}

func TestSessionServer_TokenGrant(t *testing.T) {
	srv, s := newTestSession(t)
	refresh, err := srv.IssueRefreshToken("ada")
	require.NoError(t, err)
	_, err = srv.IssueRefreshToken("bob")
	assert.Error(t, err)

	form := url.Values{"grant_type": {"refresh_token"}, "refresh_token": {refresh}}
	resp, err := s.client.PostForm(s.ts.URL+"/oauth/token", form)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var tok struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int    `json:"expires_in"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&tok))
	assert.NotEmpty(t, tok.AccessToken)
	assert.NotEmpty(t, tok.RefreshToken)
	assert.Equal(t, int((15 * time.Minute).Seconds()), tok.ExpiresIn)

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, s.ts.URL+"/api/hackathons", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	apiResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer apiResp.Body.Close()
	assert.Equal(t, http.StatusOK, apiResp.StatusCode)

	resp2, err := s.client.PostForm(s.ts.URL+"/oauth/token", url.Values{"grant_type": {"password"}})
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp2.StatusCode)
}

func TestSessionServer_TeamsAndInvitations(t *testing.T) {
	_, s := newTestSession(t)
	code, _ := s.do(http.MethodPost, "/auth/login", `{"username":"ada","password":"pw"}`)
	require.Equal(t, http.StatusOK, code)

	code, body := s.do(http.MethodPost, "/api/hackathons/hx-2026/teams", `{"name":"Gophers"}`)
	require.Equal(t, http.StatusCreated, code)
	var team hackathon.Team
	require.NoError(t, json.Unmarshal(body, &team))
	assert.Equal(t, "team-1", team.ID)
	assert.Equal(t, []string{"ada"}, team.Members)

	code, _ = s.do(http.MethodPost, "/api/hackathons/unknown/teams", `{"name":"x"}`)
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = s.do(http.MethodPost, "/api/hackathons/hx-2026/teams", `{}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = s.do(http.MethodPost, "/api/teams/team-1/invitations", `{"email":"grace@example.test"}`)
	require.Equal(t, http.StatusCreated, code)
	var inv hackathon.Invitation
	require.NoError(t, json.Unmarshal(body, &inv))
	assert.Equal(t, "pending", inv.Status)
	assert.Equal(t, "team-1", inv.TeamID)

	code, _ = s.do(http.MethodPost, "/api/teams/team-9/invitations", `{"email":"x@example.test"}`)
	assert.Equal(t, http.StatusNotFound, code)

	code, body = s.do(http.MethodGet, "/api/hackathons/hx-2026/teams", "")
	require.Equal(t, http.StatusOK, code)
	var teams []hackathon.Team
	require.NoError(t, json.Unmarshal(body, &teams))
	assert.Len(t, teams, 1)
}
