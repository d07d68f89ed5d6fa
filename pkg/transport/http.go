package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/thepwagner/debmirror/pkg/debian"
	"github.com/thepwagner/debmirror/pkg/repo"
)

type HTTPConfig struct {
	// WorkDir holds downloads until they are consumed. Defaults to the system temp dir.
	WorkDir      string        `yaml:"work_dir"`
	RetryMax     int           `yaml:"retry_max"`
	RetryWaitMin time.Duration `yaml:"retry_wait_min"`
	RetryWaitMax time.Duration `yaml:"retry_wait_max"`
	Timeout      time.Duration `yaml:"timeout"`
}

// HTTP fetches resources from a remote repository.
type HTTP struct {
	client  *retryablehttp.Client
	workDir string
}

var _ Transport = (*HTTP)(nil)

func NewHTTP(cfg HTTPConfig) *HTTP {
	client := retryablehttp.NewClient()
	client.Logger = slog.Default().With(slog.String("component", "transport"))
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler
	if cfg.RetryMax > 0 {
		client.RetryMax = cfg.RetryMax
	}
	if cfg.RetryWaitMin > 0 {
		client.RetryWaitMin = cfg.RetryWaitMin
	}
	if cfg.RetryWaitMax > 0 {
		client.RetryWaitMax = cfg.RetryWaitMax
	}
	if cfg.Timeout > 0 {
		client.HTTPClient.Timeout = cfg.Timeout
	}
	return &HTTP{client: client, workDir: cfg.WorkDir}
}

func (h *HTTP) Fetch(ctx context.Context, res *repo.Resource) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, res.URL, nil)
	if err != nil {
		return &debian.UnavailableError{Location: res.URL, Err: fmt.Errorf("%w: creating request: %w", ErrRetrieval, err)}
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return &debian.UnavailableError{Location: res.URL, Err: fmt.Errorf("%w: %w", ErrRetrieval, err)}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return &debian.UnavailableError{Location: res.URL, Err: ErrNotFound}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &debian.UnavailableError{Location: res.URL, Err: fmt.Errorf("%w: %s", ErrUnauthorized, resp.Status)}
	case resp.StatusCode != http.StatusOK:
		return &debian.UnavailableError{Location: res.URL, Err: fmt.Errorf("%w: status %s", ErrRetrieval, resp.Status)}
	}

	if res.InMemory {
		var buf bytes.Buffer
		if _, err := io.Copy(&buf, resp.Body); err != nil {
			return &debian.UnavailableError{Location: res.URL, Err: fmt.Errorf("%w: reading body: %w", ErrRetrieval, err)}
		}
		res.Content = buf.Bytes()
		return nil
	}

	fn, err := h.download(resp.Body, res.Name())
	if err != nil {
		return &debian.UnavailableError{Location: res.URL, Err: fmt.Errorf("%w: %w", ErrRetrieval, err)}
	}
	res.Path = fn
	res.Temporary = true
	return nil
}

// download writes body to a temporary file keeping name as suffix, so compression can still be detected.
func (h *HTTP) download(body io.Reader, name string) (string, error) {
	if h.workDir != "" {
		if err := os.MkdirAll(h.workDir, 0o755); err != nil {
			return "", fmt.Errorf("creating work dir: %w", err)
		}
	}
	f, err := os.CreateTemp(h.workDir, "fetch-*-"+path.Base(name))
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}

	_, err = io.Copy(f, body)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("writing %s: %w", name, err)
	}
	return f.Name(), nil
}
