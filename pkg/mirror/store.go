package mirror

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// ArtifactStore keeps mirrored files under a root directory, at their pool paths.
type ArtifactStore struct {
	Root string
}

func NewArtifactStore(root string) *ArtifactStore {
	return &ArtifactStore{Root: root}
}

// Path resolves a relative path. Paths escaping the root are rejected.
func (s *ArtifactStore) Path(rel string) (string, error) {
	local := filepath.FromSlash(rel)
	if !filepath.IsLocal(local) {
		return "", fmt.Errorf("path %q escapes the store", rel)
	}
	return filepath.Join(s.Root, local), nil
}

func (s *ArtifactStore) Exists(rel string) (bool, error) {
	p, err := s.Path(rel)
	if err != nil {
		return false, err
	}
	stat, err := os.Stat(p)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	} else if err != nil {
		return false, err
	}
	return stat.Mode().IsRegular(), nil
}

// Put copies src into the store. The copy is written to a temporary file next to
// the destination and renamed into place, so a failed copy never replaces a stored file.
func (s *ArtifactStore) Put(rel, src string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()
	return s.Write(rel, in)
}

// Write stores the content of r at rel, via a temporary file.
func (s *ArtifactStore) Write(rel string, r io.Reader) error {
	dst, err := s.Path(rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".tmp-"+filepath.Base(dst)+"-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	_, err = io.Copy(tmp, r)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Chmod(tmp.Name(), 0o644)
	}
	if err == nil {
		err = os.Rename(tmp.Name(), dst)
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("writing %s: %w", rel, err)
	}
	return nil
}

// Remove deletes a stored file. Missing files are ignored.
func (s *ArtifactStore) Remove(rel string) error {
	p, err := s.Path(rel)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (s *ArtifactStore) Open(rel string) (*os.File, error) {
	p, err := s.Path(rel)
	if err != nil {
		return nil, err
	}
	return os.Open(p)
}
