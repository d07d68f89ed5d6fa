package mirror

import (
	"errors"
	"fmt"
	"slices"

	"github.com/thepwagner/debmirror/pkg/repo"
)

// ErrInvalidConfig is matched by configuration validation errors.
var ErrInvalidConfig = errors.New("invalid mirror config")

// Config describes the distribution, components and architectures mirrored from one repository.
type Config struct {
	URL                   string   `yaml:"url" json:"url"`
	Distribution          string   `yaml:"distribution" json:"distribution"`
	Components            []string `yaml:"components" json:"components"`
	Architectures         []string `yaml:"architectures" json:"architectures"`
	OptionalArchitectures []string `yaml:"optional_architectures" json:"optional_architectures,omitempty"`
	// RemoveMissing deletes stored units that are no longer listed upstream.
	RemoveMissing bool `yaml:"remove_missing" json:"remove_missing"`
	// VerifyChecksums checks downloaded artifacts against the index.
	VerifyChecksums bool `yaml:"verify_checksums" json:"verify_checksums"`
	// Queries is reserved for filtering and is not interpreted.
	Queries []string `yaml:"queries" json:"queries,omitempty"`
}

func (c Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("%w: url is required", ErrInvalidConfig)
	}
	if c.Distribution == "" {
		return fmt.Errorf("%w: distribution is required", ErrInvalidConfig)
	}
	if len(c.Components) == 0 {
		return fmt.Errorf("%w: at least one component is required", ErrInvalidConfig)
	}
	if len(c.Architectures) == 0 {
		return fmt.Errorf("%w: at least one architecture is required", ErrInvalidConfig)
	}
	for i, arch := range c.Architectures {
		if slices.Contains(c.Architectures[:i], arch) {
			return fmt.Errorf("%w: architecture %q is listed twice", ErrInvalidConfig, arch)
		}
	}
	for i, arch := range c.OptionalArchitectures {
		if slices.Contains(c.OptionalArchitectures[:i], arch) {
			return fmt.Errorf("%w: optional architecture %q is listed twice", ErrInvalidConfig, arch)
		}
		if slices.Contains(c.Architectures, arch) {
			return fmt.Errorf("%w: architecture %q is both required and optional", ErrInvalidConfig, arch)
		}
	}
	return nil
}

// NewDistribution builds the empty distribution described by the config.
func (c Config) NewDistribution() (*repo.Distribution, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	specs := make([]repo.ComponentSpec, 0, len(c.Components))
	for _, name := range c.Components {
		specs = append(specs, repo.ComponentSpec{
			Name:          name,
			Architectures: c.Architectures,
			Optional:      c.OptionalArchitectures,
		})
	}
	return repo.NewDistribution(c.Distribution, c.URL, specs...)
}
