package repo

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/thepwagner/debmirror/pkg/debian"
)

type snapshot struct {
	Name       string              `json:"name"`
	URL        string              `json:"url"`
	Components []componentSnapshot `json:"components"`
}

type componentSnapshot struct {
	Name                  string              `json:"name"`
	Architectures         []string            `json:"architectures"`
	OptionalArchitectures []string            `json:"optional_architectures,omitempty"`
	Packages              []map[string]string `json:"packages"`
}

// Derived fields added to every snapshot package.
const (
	snapshotPrefix        = "prefix"
	snapshotFilenameShort = "filename_short"
)

// MarshalJSON writes the snapshot form. Packages are written in canonical order.
func (d *Distribution) MarshalJSON() ([]byte, error) {
	s := snapshot{
		Name:       d.Name,
		URL:        d.URL,
		Components: make([]componentSnapshot, 0, len(d.components)),
	}
	for _, c := range d.components {
		pkgs := slices.Clone(c.packages)
		slices.SortStableFunc(pkgs, debian.Compare)

		cs := componentSnapshot{
			Name:                  c.Name,
			Architectures:         c.Architectures,
			OptionalArchitectures: c.OptionalArchitectures(),
			Packages:              make([]map[string]string, 0, len(pkgs)),
		}
		for _, pkg := range pkgs {
			fields := pkg.Fields().Clone()
			fields[snapshotPrefix] = pkg.Prefix()
			fields[snapshotFilenameShort] = pkg.FilenameShort()
			cs.Packages = append(cs.Packages, fields)
		}
		s.Components = append(s.Components, cs)
	}
	return json.Marshal(s)
}

func (d *Distribution) UnmarshalJSON(b []byte) error {
	var s snapshot
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}

	specs := make([]ComponentSpec, 0, len(s.Components))
	for _, cs := range s.Components {
		specs = append(specs, ComponentSpec{Name: cs.Name, Architectures: cs.Architectures, Optional: cs.OptionalArchitectures})
	}
	dist, err := NewDistribution(s.Name, s.URL, specs...)
	if err != nil {
		return err
	}

	for _, cs := range s.Components {
		for i, raw := range cs.Packages {
			p := debian.NewParagraph(raw)
			delete(p, snapshotPrefix)
			delete(p, snapshotFilenameShort)
			if err := dist.AddParagraph(cs.Name, p, debian.DetectKind(p)); err != nil {
				return fmt.Errorf("component %s package %d: %w", cs.Name, i, err)
			}
		}
	}
	*d = *dist
	for _, c := range d.components {
		c.dist = d
	}
	return nil
}

// DistributionFromSnapshot decodes a snapshot written by MarshalJSON.
func DistributionFromSnapshot(b []byte) (*Distribution, error) {
	var d Distribution
	if err := json.Unmarshal(b, &d); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	return &d, nil
}
