// Package hackathon is a typed client for the hackathon API. Every call goes through a
// sessionbridge.SessionBridge, so an expired session is renewed transparently.
package hackathon

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	sessionbridge "github.com/opengovern/session-bridge"
)

type Client struct {
	bridge   *sessionbridge.SessionBridge
	provider string
}

func NewClient(bridge *sessionbridge.SessionBridge, provider string) *Client {
	return &Client{bridge: bridge, provider: provider}
}

// Login starts a session. A wrong password comes back as a *sessionbridge.RequestError
// with status 401; it never triggers a renewal.
func (c *Client) Login(ctx context.Context, username, password string) (*Profile, error) {
	var out Profile
	if err := c.do(ctx, http.MethodPost, "/auth/login", Credentials{Username: username, Password: password}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, nil)
}

func (c *Client) Profile(ctx context.Context) (*Profile, error) {
	var out Profile
	if err := c.do(ctx, http.MethodGet, "/api/profile", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateProfile(ctx context.Context, p Profile) (*Profile, error) {
	var out Profile
	if err := c.do(ctx, http.MethodPut, "/api/profile", p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListHackathons(ctx context.Context) ([]Hackathon, error) {
	var out []Hackathon
	if err := c.do(ctx, http.MethodGet, "/api/hackathons", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListTeams(ctx context.Context, hackathonID string) ([]Team, error) {
	var out []Team
	path := "/api/hackathons/" + url.PathEscape(hackathonID) + "/teams"
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateTeam(ctx context.Context, hackathonID, name string) (*Team, error) {
	var out Team
	path := "/api/hackathons/" + url.PathEscape(hackathonID) + "/teams"
	if err := c.do(ctx, http.MethodPost, path, map[string]string{"name": name}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Invite(ctx context.Context, teamID, email string) (*Invitation, error) {
	var out Invitation
	path := "/api/teams/" + url.PathEscape(teamID) + "/invitations"
	if err := c.do(ctx, http.MethodPost, path, map[string]string{"email": email}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body []byte
	if in != nil {
		var err error
		if body, err = json.Marshal(in); err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
	}

	resp, err := c.bridge.Do(ctx, c.provider, method, path, body, nil)
	if err != nil {
		return err
	}
	if out == nil || len(resp.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
