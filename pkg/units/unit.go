package units

import (
	"context"
	"errors"
	"maps"

	"github.com/thepwagner/debmirror/pkg/debian"
)

// ErrNotFound is returned by Get for a key that was never saved.
var ErrNotFound = errors.New("unit not found")

// Unit is a package that has been mirrored, with the files it was stored as.
type Unit struct {
	Key       debian.UnitKey    `json:"key"`
	Kind      debian.Kind       `json:"kind"`
	Component string            `json:"component"`
	Metadata  map[string]string `json:"metadata"`
	Files     []debian.File     `json:"files"`
}

// FromPackage describes a package of a component as a unit.
func FromPackage(component string, pkg debian.Package) Unit {
	return Unit{
		Key:       pkg.UnitKey(),
		Kind:      pkg.Kind(),
		Component: component,
		Metadata:  pkg.UnitMetadata(),
		Files:     pkg.Files(component),
	}
}

// Paragraph rebuilds the index paragraph of the unit.
func (u Unit) Paragraph() debian.Paragraph {
	p := make(debian.Paragraph, len(u.Metadata)+3)
	maps.Copy(p, u.Metadata)
	p["package"] = u.Key.Name
	if u.Key.Version != "" {
		p["version"] = u.Key.Version
	}
	if u.Key.Maintainer != "" {
		p["maintainer"] = u.Key.Maintainer
	}
	return p
}

// Store persists the units of one repository.
type Store interface {
	// List returns every unit, ordered by key.
	List(ctx context.Context) ([]Unit, error)
	Get(ctx context.Context, key debian.UnitKey) (Unit, error)
	Save(ctx context.Context, unit Unit) error
	// Remove is a no-op for unknown keys.
	Remove(ctx context.Context, key debian.UnitKey) error
	Close() error
}
