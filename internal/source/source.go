// Package source turns catalog source URLs into playable stream URLs.
//
// Resolution happens downstream of scheduling: the catalog duration stays
// authoritative for timeline math and the resolved duration is informational.
package source

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/stwalsh4118/airwave/internal/models"
)

// Common errors
var (
	// ErrUnsupportedKind is returned when no resolver handles a source kind
	ErrUnsupportedKind = errors.New("unsupported source kind")

	// ErrNotFound is returned when the upstream has no playable media at the URL
	ErrNotFound = errors.New("source media not found")

	// ErrInvalidURL is returned when a source URL cannot be interpreted
	ErrInvalidURL = errors.New("invalid source url")

	// ErrUnavailable is returned when the upstream could not be reached
	ErrUnavailable = errors.New("source temporarily unavailable")
)

// IsPermanent reports whether retrying the same request cannot succeed
func IsPermanent(err error) bool {
	return errors.Is(err, ErrUnsupportedKind) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidURL)
}

// Resolved is a playable stream for a catalog entry
type Resolved struct {
	PlayableURL string        `json:"playable_url"`
	Title       string        `json:"title,omitempty"`
	Duration    time.Duration `json:"duration,omitempty"`

	// ExpiresAt is when PlayableURL stops working (zero when it does not expire)
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// Resolver resolves a source URL of a given kind
type Resolver interface {
	Resolve(ctx context.Context, kind models.SourceKind, sourceURL string) (*Resolved, error)
}

// Router dispatches to a resolver per source kind
type Router struct {
	resolvers map[models.SourceKind]Resolver
}

// NewRouter creates an empty router
func NewRouter() *Router {
	return &Router{resolvers: make(map[models.SourceKind]Resolver)}
}

// Handle registers r for kind, replacing any previous registration
func (rt *Router) Handle(kind models.SourceKind, r Resolver) *Router {
	rt.resolvers[kind] = r
	return rt
}

// Resolve implements Resolver
func (rt *Router) Resolve(ctx context.Context, kind models.SourceKind, sourceURL string) (*Resolved, error) {
	r, ok := rt.resolvers[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedKind, kind)
	}
	return r.Resolve(ctx, kind, sourceURL)
}

// Direct serves URLs that are already playable
type Direct struct{}

// Resolve implements Resolver
func (Direct) Resolve(_ context.Context, _ models.SourceKind, sourceURL string) (*Resolved, error) {
	if err := checkHTTPURL(sourceURL); err != nil {
		return nil, err
	}
	return &Resolved{PlayableURL: sourceURL}, nil
}

func checkHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q is not an http(s) url", ErrInvalidURL, raw)
	}
	return nil
}
