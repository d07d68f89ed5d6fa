// Package debiantest builds Debian archives and packages on disk for tests.
package debiantest

import (
	"archive/tar"
	"bytes"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/blakesmith/ar"
	"github.com/stretchr/testify/require"
	"github.com/thepwagner/debmirror/pkg/debian"
)

const Maintainer = "Mirror Tests <tests@example.com>"

// Repo is an archive laid out under a temporary directory.
type Repo struct {
	tb   testing.TB
	Root string
	Dist string

	sources  map[string][]debian.Paragraph
	packages map[string]map[string][]debian.Paragraph
}

func NewRepo(tb testing.TB, dist string) *Repo {
	tb.Helper()
	return &Repo{
		tb:       tb,
		Root:     tb.TempDir(),
		Dist:     dist,
		sources:  map[string][]debian.Paragraph{},
		packages: map[string]map[string][]debian.Paragraph{},
	}
}

// URL is the file:// URL of the archive root.
func (r *Repo) URL() string {
	return "file://" + filepath.ToSlash(r.Root)
}

// AddBinary writes a .deb into the pool and lists it in the architecture's Packages index.
func (r *Repo) AddBinary(component, arch, name, version string) debian.Paragraph {
	r.tb.Helper()
	filename := fmt.Sprintf("%s_%s_%s.deb", name, version, arch)
	rel := debian.PoolPath(component, name, filename)
	content := []byte(fmt.Sprintf("binary %s %s %s", name, version, arch))
	r.writeFile(rel, content)

	md5sum, sha1sum, sha256sum := Checksums(content)
	p := debian.Paragraph{
		"package":      name,
		"version":      version,
		"maintainer":   Maintainer,
		"architecture": arch,
		"section":      "misc",
		"description":  "test package " + name,
		"filename":     rel,
		"size":         fmt.Sprint(len(content)),
		"md5sum":       md5sum,
		"sha1":         sha1sum,
		"sha256":       sha256sum,
	}
	r.EnsureArch(component, arch)
	r.packages[component][arch] = append(r.packages[component][arch], p)
	return p
}

// AddSource writes a .dsc and an .orig.tar.gz into the pool and lists them in the Sources index.
func (r *Repo) AddSource(component, name, version string, binaries ...string) debian.Paragraph {
	r.tb.Helper()
	if len(binaries) == 0 {
		binaries = []string{name}
	}
	dir := path.Dir(debian.PoolPath(component, name, "x"))

	var files, sha1s, sha256s string
	for _, fn := range []string{
		fmt.Sprintf("%s_%s.dsc", name, version),
		fmt.Sprintf("%s_%s.orig.tar.gz", name, version),
	} {
		content := []byte(fmt.Sprintf("source %s", fn))
		r.writeFile(path.Join(dir, fn), content)
		md5sum, sha1sum, sha256sum := Checksums(content)
		files += fmt.Sprintf("\n%s %d %s", md5sum, len(content), fn)
		sha1s += fmt.Sprintf("\n%s %d %s", sha1sum, len(content), fn)
		sha256s += fmt.Sprintf("\n%s %d %s", sha256sum, len(content), fn)
	}

	p := debian.Paragraph{
		"package":          name,
		"binary":           strings.Join(binaries, ", "),
		"version":          version,
		"maintainer":       Maintainer,
		"architecture":     "any",
		"directory":        dir,
		"files":            files,
		"checksums-sha1":   sha1s,
		"checksums-sha256": sha256s,
	}
	r.sources[component] = append(r.sources[component], p)
	return p
}

// EnsureArch makes sure an architecture's Packages index is written, even if empty.
func (r *Repo) EnsureArch(component, arch string) {
	if _, ok := r.packages[component]; !ok {
		r.packages[component] = map[string][]debian.Paragraph{}
	}
	if _, ok := r.packages[component][arch]; !ok {
		r.packages[component][arch] = nil
	}
}

// Write writes the gzipped indexes of every component.
func (r *Repo) Write() {
	r.tb.Helper()
	components := map[string]struct{}{}
	for c := range r.sources {
		components[c] = struct{}{}
	}
	for c := range r.packages {
		components[c] = struct{}{}
	}
	for c := range components {
		r.writeIndex(path.Join("dists", r.Dist, c, "source", "Sources.gz"), r.sources[c])
		for arch, graphs := range r.packages[c] {
			r.writeIndex(path.Join("dists", r.Dist, c, "binary-"+arch, "Packages.gz"), graphs)
		}
	}
}

// Remove deletes a file of the archive, relative to its root.
func (r *Repo) Remove(rel string) {
	r.tb.Helper()
	require.NoError(r.tb, os.Remove(filepath.Join(r.Root, filepath.FromSlash(rel))))
}

func (r *Repo) writeIndex(rel string, graphs []debian.Paragraph) {
	r.tb.Helper()
	r.writeFile(rel, Index(r.tb, debian.CompressionGZIP, graphs...))
}

func (r *Repo) writeFile(rel string, content []byte) {
	r.tb.Helper()
	p := filepath.Join(r.Root, filepath.FromSlash(rel))
	require.NoError(r.tb, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(r.tb, os.WriteFile(p, content, 0o644))
}

// Index renders paragraphs as a compressed index.
func Index(tb testing.TB, c debian.Compression, graphs ...debian.Paragraph) []byte {
	tb.Helper()
	var buf bytes.Buffer
	require.NoError(tb, debian.WriteParagraphs(&buf, graphs...))
	b, err := c.Compress(buf.Bytes())
	require.NoError(tb, err)
	return b
}

// Checksums returns the hex MD5, SHA1 and SHA256 of content.
func Checksums(content []byte) (string, string, string) {
	md5sum := md5.Sum(content)
	sha1sum := sha1.Sum(content)
	sha256sum := sha256.Sum256(content)
	return hex.EncodeToString(md5sum[:]), hex.EncodeToString(sha1sum[:]), hex.EncodeToString(sha256sum[:])
}

// BuildDeb writes a minimal .deb whose control.tar.<c> holds the given paragraph.
func BuildDeb(tb testing.TB, fn string, control debian.Paragraph, c debian.Compression) {
	tb.Helper()

	var controlFile bytes.Buffer
	require.NoError(tb, debian.WriteParagraph(&controlFile, control))

	var tarBuf bytes.Buffer
	tw := tar.NewWriter(&tarBuf)
	require.NoError(tb, tw.WriteHeader(&tar.Header{
		Name:    "./control",
		Mode:    0o644,
		Size:    int64(controlFile.Len()),
		ModTime: time.Unix(0, 0),
	}))
	_, err := tw.Write(controlFile.Bytes())
	require.NoError(tb, err)
	require.NoError(tb, tw.Close())

	controlTar, err := c.Compress(tarBuf.Bytes())
	require.NoError(tb, err)
	dataTar, err := c.Compress(emptyTar(tb))
	require.NoError(tb, err)

	var deb bytes.Buffer
	w := ar.NewWriter(&deb)
	require.NoError(tb, w.WriteGlobalHeader())
	for _, member := range []struct {
		name string
		data []byte
	}{
		{name: "debian-binary", data: []byte("2.0\n")},
		{name: "control.tar" + c.Extension(), data: controlTar},
		{name: "data.tar" + c.Extension(), data: dataTar},
	} {
		require.NoError(tb, w.WriteHeader(&ar.Header{
			Name:    member.name,
			Mode:    0o644,
			Size:    int64(len(member.data)),
			ModTime: time.Unix(0, 0),
		}))
		_, err := w.Write(member.data)
		require.NoError(tb, err)
	}

	require.NoError(tb, os.MkdirAll(filepath.Dir(fn), 0o755))
	require.NoError(tb, os.WriteFile(fn, deb.Bytes(), 0o644))
}

func emptyTar(tb testing.TB) []byte {
	tb.Helper()
	var buf bytes.Buffer
	require.NoError(tb, tar.NewWriter(&buf).Close())
	return buf.Bytes()
}
