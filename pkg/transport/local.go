package transport

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"

	"github.com/thepwagner/debmirror/pkg/debian"
	"github.com/thepwagner/debmirror/pkg/repo"
)

// Local reads resources from the filesystem. Resource paths point at the
// original files and are never removed.
type Local struct{}

var _ Transport = (*Local)(nil)

func NewLocal() *Local {
	return &Local{}
}

func (l *Local) Fetch(_ context.Context, res *repo.Resource) error {
	p, err := LocalPath(res.URL)
	if err != nil {
		return &debian.UnavailableError{Location: res.URL, Err: fmt.Errorf("%w: %w", ErrRetrieval, err)}
	}

	stat, err := os.Stat(p)
	if err != nil {
		return &debian.UnavailableError{Location: res.URL, Err: localError(err)}
	}
	if stat.IsDir() {
		return &debian.UnavailableError{Location: res.URL, Err: fmt.Errorf("%w: is a directory", ErrRetrieval)}
	}

	if res.InMemory {
		b, err := os.ReadFile(p)
		if err != nil {
			return &debian.UnavailableError{Location: res.URL, Err: localError(err)}
		}
		res.Content = b
		return nil
	}
	res.Path = p
	res.Temporary = false
	return nil
}

// LocalPath strips the file:// scheme from a URL.
func LocalPath(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "":
		return u.Path, nil
	case "file":
		if u.Host != "" && u.Host != "localhost" {
			return "", fmt.Errorf("remote file host %q", u.Host)
		}
		return u.Path, nil
	default:
		return "", fmt.Errorf("%q is not a local url", rawURL)
	}
}

func localError(err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %w", ErrUnauthorized, err)
	default:
		return fmt.Errorf("%w: %w", ErrRetrieval, err)
	}
}
