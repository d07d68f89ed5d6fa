package repo

import (
	"fmt"
	"slices"

	"github.com/thepwagner/debmirror/pkg/debian"
)

// Distribution is the repository tree of one codename, e.g. "precise".
type Distribution struct {
	Name string
	URL  string

	components []*Component
}

// ComponentSpec selects a component and its architectures.
type ComponentSpec struct {
	Name          string
	Architectures []string
	// Optional architectures tolerate a missing Packages index.
	Optional []string
}

// NewDistribution builds a distribution with empty components.
// Component names must be unique.
func NewDistribution(name, url string, specs ...ComponentSpec) (*Distribution, error) {
	d := &Distribution{Name: name, URL: url}
	for _, spec := range specs {
		if slices.ContainsFunc(d.components, func(c *Component) bool { return c.Name == spec.Name }) {
			return nil, &DuplicateComponentError{Name: spec.Name}
		}
		d.components = append(d.components, newComponent(d, spec))
	}
	return d, nil
}

// Components are in declaration order.
func (d *Distribution) Components() []*Component {
	return d.components
}

func (d *Distribution) Component(name string) (*Component, error) {
	for _, c := range d.components {
		if c.Name == name {
			return c, nil
		}
	}
	return nil, &UnknownComponentError{Name: name}
}

// AddPackage adds a package to the named component.
func (d *Distribution) AddPackage(component string, pkg debian.Package) error {
	c, err := d.Component(component)
	if err != nil {
		return err
	}
	c.AddPackage(pkg)
	return nil
}

// AddParagraph wraps a paragraph and adds it to the named component.
func (d *Distribution) AddParagraph(component string, p debian.Paragraph, kind debian.Kind) error {
	c, err := d.Component(component)
	if err != nil {
		return err
	}
	return c.AddParagraph(p, kind)
}

// Indexes lists, per component, the Sources index followed by one Packages index per architecture.
func (d *Distribution) Indexes() ([]*Resource, error) {
	var res []*Resource
	for _, c := range d.components {
		idx, err := c.Indexes()
		if err != nil {
			return nil, err
		}
		res = append(res, idx...)
	}
	return res, nil
}

// ContentsIndexes lists the Contents-<arch> index of every architecture in use.
func (d *Distribution) ContentsIndexes() ([]*Resource, error) {
	var res []*Resource
	var seen []string
	for _, c := range d.components {
		for _, arch := range c.Architectures {
			if slices.Contains(seen, arch) {
				continue
			}
			seen = append(seen, arch)

			rel, err := IndexPath(d.Name, c.Name, arch, ResourceContents)
			if err != nil {
				return nil, err
			}
			u, err := JoinURL(d.URL, rel)
			if err != nil {
				return nil, err
			}
			res = append(res, &Resource{
				Type:         ResourceContents,
				Architecture: arch,
				URL:          u,
				RelativePath: rel,
				Optional:     c.IsOptional(arch),
			})
		}
	}
	return res, nil
}

// Packages lists the packages of every component, in component order.
func (d *Distribution) Packages() []debian.Package {
	var pkgs []debian.Package
	for _, c := range d.components {
		pkgs = append(pkgs, c.packages...)
	}
	return pkgs
}

// PackageResources lists one artifact resource per file of every package.
func (d *Distribution) PackageResources() ([]*Resource, error) {
	var res []*Resource
	for _, c := range d.components {
		for _, pkg := range c.packages {
			r, err := c.ArtifactResources(pkg)
			if err != nil {
				return nil, fmt.Errorf("package %s: %w", pkg.Key(), err)
			}
			res = append(res, r...)
		}
	}
	return res, nil
}
