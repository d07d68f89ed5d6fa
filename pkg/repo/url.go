package repo

import (
	"fmt"
	"net/url"
	"path"
)

// IndexPath is the location of an index relative to the repository root.
func IndexPath(dist, component, arch string, t ResourceType) (string, error) {
	switch t {
	case ResourcePackages:
		return path.Join("dists", dist, component, "binary-"+arch, "Packages.gz"), nil
	case ResourceSources:
		return path.Join("dists", dist, component, "source", "Sources.gz"), nil
	case ResourceContents:
		return path.Join("dists", dist, fmt.Sprintf("Contents-%s.gz", arch)), nil
	default:
		return "", fmt.Errorf("%q is not an index type", t)
	}
}

// IndexURL resolves an index against the repository base URL.
func IndexURL(base, dist, component, arch string, t ResourceType) (string, error) {
	rel, err := IndexPath(dist, component, arch, t)
	if err != nil {
		return "", err
	}
	return JoinURL(base, rel)
}

// ArtifactURL resolves a pool path against the repository base URL.
func ArtifactURL(base, relativePath string) (string, error) {
	return JoinURL(base, relativePath)
}

// JoinURL appends a relative path to a base URL or local path.
func JoinURL(base, rel string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parsing base url: %w", err)
	}
	return u.JoinPath(rel).String(), nil
}
