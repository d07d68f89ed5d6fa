package transport

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/thepwagner/debmirror/pkg/repo"
)

// Transport fetches index and artifact resources, attaching a local Path or in-memory Content.
// Failures are *debian.UnavailableError wrapping ErrNotFound, ErrUnauthorized or ErrRetrieval.
type Transport interface {
	Fetch(ctx context.Context, res *repo.Resource) error
}

var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrRetrieval    = errors.New("retrieval failed")
)

// ForURL picks the transport for a repository URL by its scheme.
func ForURL(rawURL string, cfg HTTPConfig) (Transport, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing repository url: %w", err)
	}
	switch u.Scheme {
	case "", "file":
		return NewLocal(), nil
	case "http", "https":
		return NewHTTP(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported transport scheme %q", u.Scheme)
	}
}
