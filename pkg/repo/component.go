package repo

import (
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/thepwagner/debmirror/pkg/debian"
)

// Component is one named subdivision of a distribution, e.g. "main".
type Component struct {
	Name          string
	Architectures []string

	optional map[string]bool
	packages []debian.Package
	dist     *Distribution
}

func newComponent(d *Distribution, spec ComponentSpec) *Component {
	c := &Component{
		Name:          spec.Name,
		Architectures: slices.Clone(spec.Architectures),
		optional:      map[string]bool{},
		dist:          d,
	}
	for _, arch := range spec.Optional {
		if !slices.Contains(c.Architectures, arch) {
			c.Architectures = append(c.Architectures, arch)
		}
		c.optional[arch] = true
	}
	return c
}

func (c *Component) Distribution() *Distribution { return c.dist }

func (c *Component) Packages() []debian.Package { return c.packages }

// IsOptional reports whether a missing Packages index of the architecture is tolerated.
func (c *Component) IsOptional(arch string) bool { return c.optional[arch] }

// OptionalArchitectures lists the optional subset of Architectures.
func (c *Component) OptionalArchitectures() []string {
	var archs []string
	for _, arch := range c.Architectures {
		if c.optional[arch] {
			archs = append(archs, arch)
		}
	}
	return archs
}

func (c *Component) AddPackage(pkg debian.Package) {
	c.packages = append(c.packages, pkg)
}

func (c *Component) AddPackages(pkgs ...debian.Package) {
	c.packages = append(c.packages, pkgs...)
}

func (c *Component) AddParagraph(p debian.Paragraph, kind debian.Kind) error {
	pkg, err := debian.NewPackage(p, kind)
	if err != nil {
		return err
	}
	c.AddPackage(pkg)
	return nil
}

// Indexes lists the Sources index, then the Packages index of each architecture.
func (c *Component) Indexes() ([]*Resource, error) {
	res := make([]*Resource, 0, 1+len(c.Architectures))
	src, err := c.index(ResourceSources, "")
	if err != nil {
		return nil, err
	}
	res = append(res, src)
	for _, arch := range c.Architectures {
		r, err := c.index(ResourcePackages, arch)
		if err != nil {
			return nil, err
		}
		res = append(res, r)
	}
	return res, nil
}

func (c *Component) index(t ResourceType, arch string) (*Resource, error) {
	rel, err := IndexPath(c.dist.Name, c.Name, arch, t)
	if err != nil {
		return nil, err
	}
	u, err := JoinURL(c.dist.URL, rel)
	if err != nil {
		return nil, err
	}
	return &Resource{
		Type:         t,
		Component:    c.Name,
		Architecture: arch,
		URL:          u,
		RelativePath: rel,
		Optional:     t == ResourcePackages && c.optional[arch],
	}, nil
}

// ArtifactResources lists one resource per file of a package in this component.
func (c *Component) ArtifactResources(pkg debian.Package) ([]*Resource, error) {
	files := pkg.Files(c.Name)
	res := make([]*Resource, 0, len(files))
	for _, f := range files {
		u, err := ArtifactURL(c.dist.URL, f.RelativePath)
		if err != nil {
			return nil, err
		}
		res = append(res, &Resource{
			Type:         ResourceArtifact,
			Component:    c.Name,
			Architecture: pkg.Architecture(),
			URL:          u,
			RelativePath: f.RelativePath,
			File:         &f,
		})
	}
	return res, nil
}

// UpdateFromIndex appends every paragraph of a fetched index. Packages are not
// deduplicated. It returns the number of packages added.
func (c *Component) UpdateFromIndex(res *Resource, emptyOnIO bool) (int, error) {
	pr, err := res.Paragraphs(emptyOnIO)
	if err != nil {
		return 0, err
	}
	defer pr.Close()
	return c.UpdateFromReader(pr)
}

// UpdateFromReader appends every remaining paragraph of pr. On error, packages
// read before the failure are kept.
func (c *Component) UpdateFromReader(pr *debian.ParagraphReader) (int, error) {
	var added int
	for {
		p, err := pr.Next()
		if errors.Is(err, io.EOF) {
			return added, nil
		} else if err != nil {
			return added, err
		}
		if err := c.AddParagraph(p, pr.Kind()); err != nil {
			var malformed *debian.MalformedRecordError
			if errors.As(err, &malformed) {
				malformed.Source = pr.Name()
			}
			return added, fmt.Errorf("paragraph %d: %w", pr.Count(), err)
		}
		added++
	}
}

// SortPackages puts packages in canonical order.
func (c *Component) SortPackages() {
	slices.SortStableFunc(c.packages, debian.Compare)
}
