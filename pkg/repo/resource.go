package repo

import (
	"bytes"
	"os"
	"path"

	"github.com/thepwagner/debmirror/pkg/debian"
)

type ResourceType string

const (
	ResourcePackages ResourceType = "packages"
	ResourceSources  ResourceType = "sources"
	ResourceContents ResourceType = "contents"
	ResourceArtifact ResourceType = "package-artifact"
)

// Kind is the paragraph grammar of an index of this type.
func (t ResourceType) Kind() debian.Kind {
	if t == ResourceSources {
		return debian.KindSource
	}
	return debian.KindBinary
}

// Resource describes an index or artifact to fetch. A Transport attaches either
// Path or Content once it has been fetched.
type Resource struct {
	Type         ResourceType `json:"type"`
	Component    string       `json:"component"`
	Architecture string       `json:"architecture,omitempty"`
	URL          string       `json:"url"`
	// RelativePath locates the resource under the repository root.
	RelativePath string `json:"relative_path"`
	// Optional resources may be missing upstream.
	Optional bool `json:"optional,omitempty"`
	// InMemory asks the transport for Content instead of a Path.
	InMemory bool `json:"-"`

	// File is the expected artifact, for package-artifact resources.
	File *debian.File `json:"file,omitempty"`

	Path    string `json:"-"`
	Content []byte `json:"-"`
	// Temporary is set when Path is owned by the transport and should be removed once consumed.
	Temporary bool `json:"-"`
}

// Name is the logical file name, used to detect compression.
func (r *Resource) Name() string {
	if r.RelativePath != "" {
		return path.Base(r.RelativePath)
	}
	return path.Base(r.URL)
}

// Fetched reports whether a transport attached content or a path.
func (r *Resource) Fetched() bool {
	return r.Content != nil || r.Path != ""
}

// Paragraphs reads the fetched index. With emptyOnIO, an index that was not fetched
// or cannot be opened reads as empty.
func (r *Resource) Paragraphs(emptyOnIO bool) (*debian.ParagraphReader, error) {
	kind := r.Type.Kind()
	switch {
	case r.Content != nil:
		return debian.NewParagraphReader(bytes.NewReader(r.Content), r.Name(), kind)
	case r.Path != "":
		f, err := os.Open(r.Path)
		if err != nil {
			if emptyOnIO {
				return debian.EmptyReader(r.Name(), kind), nil
			}
			return nil, &debian.UnavailableError{Location: r.URL, Err: err}
		}
		return debian.NewParagraphReader(f, r.Name(), kind)
	case emptyOnIO:
		return debian.EmptyReader(r.Name(), kind), nil
	default:
		return nil, &debian.UnavailableError{Location: r.URL}
	}
}

// Release removes a temporary download.
func (r *Resource) Release() error {
	if !r.Temporary || r.Path == "" {
		return nil
	}
	err := os.Remove(r.Path)
	r.Path = ""
	r.Temporary = false
	return err
}
