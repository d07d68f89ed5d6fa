package server

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"github.com/thepwagner/debmirror/pkg/cache"
	"github.com/thepwagner/debmirror/pkg/mirror"
	"github.com/thepwagner/debmirror/pkg/transport"
	"github.com/thepwagner/debmirror/pkg/units"
	"gopkg.in/yaml.v3"
)

const DefaultConfigPath = "debmirror.yml"

type Config struct {
	Addr      string                   `yaml:"addr"`
	Storage   StorageConfig            `yaml:"storage"`
	Units     units.Config             `yaml:"units"`
	Cache     cache.Config             `yaml:"cache"`
	Transport transport.HTTPConfig     `yaml:"transport"`
	Repos     map[string]mirror.Config `yaml:"repos"`
}

type StorageConfig struct {
	// Dir holds one artifact store per repository.
	Dir string `yaml:"dir"`
}

// LoadConfig reads the configuration file. A missing file yields the defaults.
func LoadConfig(fn string) (*Config, error) {
	var cfg Config

	f, err := os.Open(fn)
	if err == nil {
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
			return nil, fmt.Errorf("error decoding config: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error opening config: %w", err)
	} else {
		slog.Info("no config file found, using defaults", slog.String("path", fn))
	}

	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.Storage.Dir == "" {
		cfg.Storage.Dir = "mirror"
	}
	if len(cfg.Repos) == 0 {
		cfg.Repos = map[string]mirror.Config{
			"debian": {
				URL:           "https://deb.debian.org/debian",
				Distribution:  "bookworm",
				Components:    []string{"main"},
				Architectures: []string{"amd64"},
			},
		}
	}

	return &cfg, nil
}

// RepoNames lists the configured repositories in name order.
func (c *Config) RepoNames() []string {
	return slices.Sorted(maps.Keys(c.Repos))
}

// BuildSyncer wires the transport, unit store and artifact store of a repository.
// The caller closes the returned syncer.
func BuildSyncer(name string, cfg *Config) (*mirror.Syncer, error) {
	slog.Debug("building repo", slog.String("repo", name))

	rc, ok := cfg.Repos[name]
	if !ok {
		return nil, fmt.Errorf("unknown repository %q", name)
	}
	if err := rc.Validate(); err != nil {
		return nil, fmt.Errorf("repository %q: %w", name, err)
	}

	tr, err := transport.ForURL(rc.URL, cfg.Transport)
	if err != nil {
		return nil, fmt.Errorf("repository %q: %w", name, err)
	}
	store, err := units.StoreFromConfig(cfg.Units, name)
	if err != nil {
		return nil, fmt.Errorf("repository %q: %w", name, err)
	}
	artifacts := mirror.NewArtifactStore(filepath.Join(cfg.Storage.Dir, name))

	s := mirror.NewSyncer(name, rc, tr, store, artifacts)
	s.Logger = slog.Default().With(slog.String("component", "mirror"))
	return s, nil
}
