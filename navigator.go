package sessionbridge

import (
	"context"
	"strings"
	"sync"
)

// redirectGuard decides whether a location needs to be sent to the login surface.
type redirectGuard struct {
	loginPath string
	public    map[string]struct{}
}

func newRedirectGuard(loginPath string, publicPaths []string) redirectGuard {
	g := redirectGuard{loginPath: loginPath, public: make(map[string]struct{}, len(publicPaths)+1)}
	for _, p := range publicPaths {
		g.public[normalizePath(p)] = struct{}{}
	}
	g.public[normalizePath(loginPath)] = struct{}{}
	return g
}

// shouldRedirect reports false when location is already a public surface.
func (g redirectGuard) shouldRedirect(location string) bool {
	_, ok := g.public[normalizePath(location)]
	return !ok
}

func normalizePath(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if p == "" {
		return "/"
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
	}
	return p
}

// LocationNavigator is an in-process Navigator. It tracks the current
// location and reports navigations to OnNavigate.
type LocationNavigator struct {
	mu         sync.Mutex
	location   string
	OnNavigate func(ctx context.Context, from, to string)
}

func NewLocationNavigator(initial string, onNavigate func(ctx context.Context, from, to string)) *LocationNavigator {
	return &LocationNavigator{location: initial, OnNavigate: onNavigate}
}

func (n *LocationNavigator) Location() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.location
}

// SetLocation records that the host moved to location.
func (n *LocationNavigator) SetLocation(location string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.location = location
}

func (n *LocationNavigator) Navigate(ctx context.Context, target string) error {
	n.mu.Lock()
	from := n.location
	n.location = target
	n.mu.Unlock()

	if n.OnNavigate != nil {
		n.OnNavigate(ctx, from, target)
	}
	return nil
}
