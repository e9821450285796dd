// session_server.go
// -----------------
// SessionServer is a fake hackathon API that keeps sessions in signed JWT cookies:
// a short-lived access token and a longer-lived refresh token. It implements the parts
// of the real API the bridge depends on:
//
//   - POST /auth/login    checks a bcrypt password and sets both cookies
//   - POST /auth/refresh  exchanges the refresh cookie for a new access cookie
//   - POST /auth/logout   clears both cookies
//   - POST /oauth/token   refresh_token grant for bearer clients
//   - /api/...            profile, hackathon, team and invitation endpoints behind the session
//
// Test hooks expire every live access token, revoke refresh tokens, and hold the
// refresh endpoint open so concurrent callers can pile up behind it.
package mock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/opengovern/session-bridge/hackathon"
)

const (
	AccessCookie  = "access_token"
	RefreshCookie = "refresh_token"

	kindAccess  = "access"
	kindRefresh = "refresh"
)

var errInvalidSession = errors.New("invalid session")

type sessionClaims struct {
	jwt.RegisteredClaims
	Kind       string `json:"kind"`
	Generation int    `json:"gen"`
}

type account struct {
	profile hackathon.Profile
	hash    []byte
}

type ctxKey struct{}

type SessionServer struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	BcryptCost int

	secret []byte
	router chi.Router

	mu          sync.Mutex
	users       map[string]*account
	accessGen   int
	refreshGen  int
	refreshGate chan struct{}
	hackathons  []hackathon.Hackathon
	teams       []*hackathon.Team
	invitations []hackathon.Invitation
	nextID      int

	refreshCalls atomic.Int64
	apiCalls     atomic.Int64
}

func NewSessionServer(secret []byte) *SessionServer {
	s := &SessionServer{
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 24 * time.Hour,
		BcryptCost: bcrypt.DefaultCost,
		secret:     secret,
		users:      make(map[string]*account),
		hackathons: seedHackathons(),
	}

	r := chi.NewRouter()
	r.Post("/auth/login", s.handleLogin)
	r.Post("/auth/refresh", s.handleRefresh)
	r.Post("/auth/logout", s.handleLogout)
	r.Post("/oauth/token", s.handleToken)
	r.Route("/api", func(r chi.Router) {
		r.Use(s.requireSession)
		r.Get("/profile", s.handleGetProfile)
		r.Put("/profile", s.handleUpdateProfile)
		r.Get("/hackathons", s.handleListHackathons)
		r.Get("/hackathons/{id}/teams", s.handleListTeams)
		r.Post("/hackathons/{id}/teams", s.handleCreateTeam)
		r.Post("/teams/{id}/invitations", s.handleInvite)
	})
	s.router = r
	return s
}

func (s *SessionServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handle mounts an extra handler, e.g. /metrics.
func (s *SessionServer) Handle(pattern string, h http.Handler) {
	s.router.Handle(pattern, h)
}

// AddUser registers an account that can log in with password.
func (s *SessionServer) AddUser(username, password, displayName, email string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.BcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[username] = &account{
		profile: hackathon.Profile{Username: username, DisplayName: displayName, Email: email},
		hash:    hash,
	}
	return nil
}

// ExpireSessions invalidates every access token issued so far. Refresh tokens stay valid.
func (s *SessionServer) ExpireSessions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessGen++
}

// RevokeRefreshTokens invalidates every access and refresh token issued so far.
func (s *SessionServer) RevokeRefreshTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessGen++
	s.refreshGen++
}

// HoldRefresh makes refresh calls block until the returned release func is called.
func (s *SessionServer) HoldRefresh() (release func()) {
	gate := make(chan struct{})
	s.mu.Lock()
	s.refreshGate = gate
	s.mu.Unlock()
	return sync.OnceFunc(func() {
		s.mu.Lock()
		if s.refreshGate == gate {
			s.refreshGate = nil
		}
		s.mu.Unlock()
		close(gate)
	})
}

// RefreshCalls counts calls to /auth/refresh and /oauth/token.
func (s *SessionServer) RefreshCalls() int64 {
	return s.refreshCalls.Load()
}

// APICalls counts calls to /api/..., authenticated or not.
func (s *SessionServer) APICalls() int64 {
	return s.apiCalls.Load()
}

// IssueRefreshToken mints a refresh token for username, as an OAuth client would hold.
func (s *SessionServer) IssueRefreshToken(username string) (string, error) {
	s.mu.Lock()
	gen := s.refreshGen
	_, ok := s.users[username]
	s.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("unknown user %q", username)
	}
	return s.sign(username, kindRefresh, gen, s.RefreshTTL)
}

func (s *SessionServer) sign(username, kind string, gen int, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Kind:       kind,
		Generation: gen,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// verify checks signature, expiry, kind and generation, and returns the username.
func (s *SessionServer) verify(token, kind string) (string, error) {
	claims := &sessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return "", errInvalidSession
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	gen := s.accessGen
	if kind == kindRefresh {
		gen = s.refreshGen
	}
	if claims.Kind != kind || claims.Generation != gen {
		return "", errInvalidSession
	}
	if _, ok := s.users[claims.Subject]; !ok {
		return "", errInvalidSession
	}
	return claims.Subject, nil
}

// issueSession returns a fresh access and refresh token pair for username.
func (s *SessionServer) issueSession(username string) (access, refresh string, err error) {
	s.mu.Lock()
	accessGen, refreshGen := s.accessGen, s.refreshGen
	s.mu.Unlock()

	if access, err = s.sign(username, kindAccess, accessGen, s.AccessTTL); err != nil {
		return "", "", err
	}
	if refresh, err = s.sign(username, kindRefresh, refreshGen, s.RefreshTTL); err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

func (s *SessionServer) setSessionCookies(w http.ResponseWriter, access, refresh string) {
	http.SetCookie(w, &http.Cookie{Name: AccessCookie, Value: access, Path: "/", HttpOnly: true, SameSite: http.SameSiteLaxMode})
	http.SetCookie(w, &http.Cookie{Name: RefreshCookie, Value: refresh, Path: "/", HttpOnly: true, SameSite: http.SameSiteLaxMode})
}

// waitRefreshGate blocks while HoldRefresh is in effect. It returns false if the client went away.
func (s *SessionServer) waitRefreshGate(ctx context.Context) bool {
	s.mu.Lock()
	gate := s.refreshGate
	s.mu.Unlock()
	if gate == nil {
		return true
	}
	select {
	case <-gate:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *SessionServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds hackathon.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeError(w, http.StatusBadRequest, "invalid login body")
		return
	}

	s.mu.Lock()
	acct, ok := s.users[creds.Username]
	s.mu.Unlock()
	if !ok || bcrypt.CompareHashAndPassword(acct.hash, []byte(creds.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}

	access, refresh, err := s.issueSession(creds.Username)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "issue session")
		return
	}
	s.setSessionCookies(w, access, refresh)
	writeJSON(w, http.StatusOK, s.profile(creds.Username))
}

func (s *SessionServer) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.refreshCalls.Add(1)
	if !s.waitRefreshGate(r.Context()) {
		return
	}

	cookie, err := r.Cookie(RefreshCookie)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "missing refresh token")
		return
	}
	username, err := s.verify(cookie.Value, kindRefresh)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "refresh token rejected")
		return
	}

	access, refresh, err := s.issueSession(username)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "issue session")
		return
	}
	s.setSessionCookies(w, access, refresh)
	w.WriteHeader(http.StatusNoContent)
}

func (s *SessionServer) handleLogout(w http.ResponseWriter, r *http.Request) {
	for _, name := range []string{AccessCookie, RefreshCookie} {
		http.SetCookie(w, &http.Cookie{Name: name, Value: "", Path: "/", MaxAge: -1})
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *SessionServer) handleToken(w http.ResponseWriter, r *http.Request) {
	s.refreshCalls.Add(1)
	if !s.waitRefreshGate(r.Context()) {
		return
	}
	if err := r.ParseForm(); err != nil || r.PostForm.Get("grant_type") != "refresh_token" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported_grant_type"})
		return
	}
	username, err := s.verify(r.PostForm.Get("refresh_token"), kindRefresh)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_grant"})
		return
	}

	access, refresh, err := s.issueSession(username)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "server_error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token":  access,
		"token_type":    "Bearer",
		"expires_in":    int(s.AccessTTL.Seconds()),
		"refresh_token": refresh,
	})
}

// requireSession accepts the access cookie or an Authorization bearer token.
func (s *SessionServer) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.apiCalls.Add(1)

		token := ""
		if c, err := r.Cookie(AccessCookie); err == nil {
			token = c.Value
		}
		if bearer, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
			token = bearer
		}
		if token == "" {
			writeError(w, http.StatusUnauthorized, "not authenticated")
			return
		}
		username, err := s.verify(token, kindAccess)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "session expired")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, username)))
	})
}

func currentUser(r *http.Request) string {
	username, _ := r.Context().Value(ctxKey{}).(string)
	return username
}

func (s *SessionServer) profile(username string) hackathon.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	if acct, ok := s.users[username]; ok {
		return acct.profile
	}
	return hackathon.Profile{}
}

func (s *SessionServer) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.profile(currentUser(r)))
}

func (s *SessionServer) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var in hackathon.Profile
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid profile body")
		return
	}

	s.mu.Lock()
	acct := s.users[currentUser(r)]
	acct.profile.DisplayName = in.DisplayName
	acct.profile.Email = in.Email
	acct.profile.Bio = in.Bio
	acct.profile.Skills = in.Skills
	out := acct.profile
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, out)
}

func (s *SessionServer) handleListHackathons(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	out := append([]hackathon.Hackathon(nil), s.hackathons...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *SessionServer) hasHackathon(id string) bool {
	for _, h := range s.hackathons {
		if h.ID == id {
			return true
		}
	}
	return false
}

func (s *SessionServer) handleListTeams(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasHackathon(id) {
		writeError(w, http.StatusNotFound, "hackathon not found")
		return
	}
	out := []hackathon.Team{}
	for _, t := range s.teams {
		if t.HackathonID == id {
			out = append(out, *t)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *SessionServer) handleCreateTeam(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var in struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Name == "" {
		writeError(w, http.StatusBadRequest, "team name required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasHackathon(id) {
		writeError(w, http.StatusNotFound, "hackathon not found")
		return
	}
	s.nextID++
	team := &hackathon.Team{
		ID:          fmt.Sprintf("team-%d", s.nextID),
		HackathonID: id,
		Name:        in.Name,
		Members:     []string{currentUser(r)},
	}
	s.teams = append(s.teams, team)
	writeJSON(w, http.StatusCreated, team)
}

func (s *SessionServer) handleInvite(w http.ResponseWriter, r *http.Request) {
	teamID := chi.URLParam(r, "id")
	var in struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Email == "" {
		writeError(w, http.StatusBadRequest, "email required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	found := false
	for _, t := range s.teams {
		if t.ID == teamID {
			found = true
			break
		}
	}
	if !found {
		writeError(w, http.StatusNotFound, "team not found")
		return
	}
	s.nextID++
	inv := hackathon.Invitation{
		ID:        fmt.Sprintf("inv-%d", s.nextID),
		TeamID:    teamID,
		Email:     in.Email,
		Status:    "pending",
		CreatedAt: time.Now().UTC(),
	}
	s.invitations = append(s.invitations, inv)
	writeJSON(w, http.StatusCreated, inv)
}

func seedHackathons() []hackathon.Hackathon {
	start := time.Date(2026, time.November, 14, 9, 0, 0, 0, time.UTC)
	return []hackathon.Hackathon{
		{ID: "hx-2026", Name: "HackX 2026", StartsAt: start, EndsAt: start.Add(48 * time.Hour), MaxTeamSize: 4},
		{ID: "green-code", Name: "Green Code Jam", StartsAt: start.AddDate(0, 1, 0), EndsAt: start.AddDate(0, 1, 1), MaxTeamSize: 5},
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
