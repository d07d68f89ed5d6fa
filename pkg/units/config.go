package units

import (
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
)

type Config struct {
	URL string `yaml:"url"`
}

// StoreFromConfig opens the unit store of a repository. An empty URL keeps units in memory;
// leveldb://<dir> keeps one database per repository under dir.
func StoreFromConfig(cfg Config, repoName string) (Store, error) {
	if cfg.URL == "" {
		slog.Warn("no unit store URL specified, using in-memory", slog.String("repo", repoName))
		return NewMemory(), nil
	}

	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("error parsing unit store URL: %w", err)
	}
	switch u.Scheme {
	case "memory":
		return NewMemory(), nil
	case "leveldb":
		p := filepath.Join(u.Host, u.Path, repoName)
		slog.Debug("opening leveldb unit store", slog.String("repo", repoName), slog.String("path", p))
		return OpenLevelDB(p)
	default:
		return nil, fmt.Errorf("unsupported unit store scheme %q", u.Scheme)
	}
}
