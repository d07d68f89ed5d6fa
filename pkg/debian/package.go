package debian

import (
	"fmt"
	"path"
	"strconv"
	"strings"

	version "github.com/knqyf263/go-deb-version"
)

// Kind tells binary Packages entries apart from Sources entries.
type Kind string

const (
	KindBinary Kind = "binary"
	KindSource Kind = "source"
)

// DetectKind infers the kind of a paragraph whose origin is unknown.
// Source entries carry Binary and Files, binary entries carry Filename.
func DetectKind(p Paragraph) Kind {
	if p.Has("filename") {
		return KindBinary
	}
	if p.Has("binary") || p.Has("files") || p.Has("directory") {
		return KindSource
	}
	return KindBinary
}

// UnitKey identifies a stored package across components and architectures.
type UnitKey struct {
	Name       string `json:"name"`
	Version    string `json:"version"`
	Maintainer string `json:"maintainer"`
}

func (k UnitKey) String() string {
	return fmt.Sprintf("%s_%s_%s", k.Name, k.Version, k.Maintainer)
}

// unitKeyFields are excluded from UnitMetadata.
var unitKeyFields = []string{"package", "version", "maintainer"}

// File is one physical artifact of a package.
type File struct {
	Name         string `json:"name"`
	RelativePath string `json:"relative_path"`
	Size         int64  `json:"size,omitempty"`
	MD5Sum       string `json:"md5sum,omitempty"`
	SHA1         string `json:"sha1,omitempty"`
	SHA256       string `json:"sha256,omitempty"`
}

// Package is a parsed Packages or Sources entry.
type Package interface {
	Kind() Kind
	Name() string
	Version() string
	Maintainer() string
	Architecture() string
	Fields() Paragraph

	// Key is the string form of UnitKey.
	Key() string
	UnitKey() UnitKey
	// UnitMetadata is every field not part of the UnitKey.
	UnitMetadata() map[string]string

	Prefix() string
	// FilenameShort is the base name of the package's primary artifact.
	FilenameShort() string
	// RelativePath is the pool path of one of the package's files.
	RelativePath(component, filename string) string
	Files(component string) []File
}

var (
	_ Package = (*BinaryPackage)(nil)
	_ Package = (*SourcePackage)(nil)
)

// NewPackage wraps a paragraph. The package field is required.
func NewPackage(p Paragraph, kind Kind) (Package, error) {
	if p.Get("package") == "" {
		return nil, &MalformedRecordError{Source: string(kind) + " paragraph", Field: "package"}
	}
	r := record{fields: p}
	if kind == KindSource {
		return &SourcePackage{record: r}, nil
	}
	return &BinaryPackage{record: r}, nil
}

type record struct {
	fields Paragraph
}

func (r record) Name() string         { return r.fields.Get("package") }
func (r record) Version() string      { return r.fields.Get("version") }
func (r record) Maintainer() string   { return r.fields.Get("maintainer") }
func (r record) Architecture() string { return r.fields.Get("architecture") }
func (r record) Fields() Paragraph    { return r.fields }
func (r record) Prefix() string       { return Prefix(r.Name()) }
func (r record) Key() string          { return r.UnitKey().String() }

func (r record) UnitKey() UnitKey {
	return UnitKey{Name: r.Name(), Version: r.Version(), Maintainer: r.Maintainer()}
}

func (r record) UnitMetadata() map[string]string {
	md := make(map[string]string, len(r.fields))
	for k, v := range r.fields {
		md[k] = v
	}
	for _, k := range unitKeyFields {
		delete(md, k)
	}
	return md
}

// BinaryPackage is an entry of a Packages index. It has exactly one file, its .deb.
type BinaryPackage struct {
	record
}

func (b *BinaryPackage) Kind() Kind { return KindBinary }

func (b *BinaryPackage) FilenameShort() string {
	if fn := b.fields.Get("filename"); fn != "" {
		return path.Base(fn)
	}
	return fmt.Sprintf("%s_%s_%s.deb", b.Name(), stripEpoch(b.Version()), b.Architecture())
}

// RelativePath keeps the upstream Filename when it is a pool path, so downstream
// tooling sees the same layout as the archive being mirrored.
func (b *BinaryPackage) RelativePath(component, filename string) string {
	if fn := b.fields.Get("filename"); path.Base(fn) == filename && isPoolPath(fn) {
		return path.Clean(fn)
	}
	return PoolPath(component, b.Name(), filename)
}

func (b *BinaryPackage) Files(component string) []File {
	name := b.FilenameShort()
	size, _ := strconv.ParseInt(b.fields.Get("size"), 10, 64)
	return []File{{
		Name:         name,
		RelativePath: b.RelativePath(component, name),
		Size:         size,
		MD5Sum:       b.fields.Get("md5sum"),
		SHA1:         b.fields.Get("sha1"),
		SHA256:       b.fields.Get("sha256"),
	}}
}

// SourcePackage is an entry of a Sources index, one file per line of its Files field.
type SourcePackage struct {
	record
}

func (s *SourcePackage) Kind() Kind { return KindSource }

func (s *SourcePackage) FilenameShort() string {
	for _, e := range checksumList(s.fields.Get("files")) {
		if strings.HasSuffix(e.name, ".dsc") {
			return e.name
		}
	}
	return fmt.Sprintf("%s_%s.dsc", s.Name(), stripEpoch(s.Version()))
}

func (s *SourcePackage) RelativePath(component, filename string) string {
	if dir := s.fields.Get("directory"); isPoolPath(dir) {
		return path.Join(dir, filename)
	}
	return PoolPath(component, s.Name(), filename)
}

// Files lists the Files entries. SHA1 and SHA256 are matched by file name from the
// Checksums-Sha1 and Checksums-Sha256 fields; a file missing there has no such checksum.
func (s *SourcePackage) Files(component string) []File {
	sha1s := checksumsByName(s.fields.Get("checksums-sha1"))
	sha256s := checksumsByName(s.fields.Get("checksums-sha256"))

	entries := checksumList(s.fields.Get("files"))
	files := make([]File, 0, len(entries))
	for _, e := range entries {
		files = append(files, File{
			Name:         e.name,
			RelativePath: s.RelativePath(component, e.name),
			Size:         e.size,
			MD5Sum:       e.sum,
			SHA1:         sha1s[e.name],
			SHA256:       sha256s[e.name],
		})
	}
	return files
}

type checksumEntry struct {
	sum  string
	size int64
	name string
}

// checksumList parses "<sum> <size> <name>" lines.
func checksumList(v string) []checksumEntry {
	var entries []checksumEntry
	for _, line := range strings.Split(v, "\n") {
		f := strings.Fields(line)
		if len(f) != 3 {
			continue
		}
		size, _ := strconv.ParseInt(f[1], 10, 64)
		entries = append(entries, checksumEntry{sum: f[0], size: size, name: f[2]})
	}
	return entries
}

func checksumsByName(v string) map[string]string {
	sums := map[string]string{}
	for _, e := range checksumList(v) {
		sums[e.name] = e.sum
	}
	return sums
}

// Prefix is the pool directory shard for a package name: "libd" for "libdaemon0", "p" for "python-crypto".
func Prefix(name string) string {
	if strings.HasPrefix(name, "lib") && len(name) >= 4 {
		return name[:4]
	}
	if name == "" {
		return ""
	}
	return name[:1]
}

// PoolPath is pool/<component>/<prefix>/<name>/<filename>.
func PoolPath(component, name, filename string) string {
	return path.Join("pool", component, Prefix(name), name, filename)
}

func isPoolPath(p string) bool {
	if p == "" || path.IsAbs(p) {
		return false
	}
	clean := path.Clean(p)
	return strings.HasPrefix(clean, "pool/") && !strings.Contains(clean, "..")
}

func stripEpoch(v string) string {
	if i := strings.Index(v, ":"); i >= 0 {
		return v[i+1:]
	}
	return v
}

// CompareVersions orders Debian version strings, falling back to string order for unparsable versions.
func CompareVersions(a, b string) int {
	va, errA := version.NewVersion(a)
	vb, errB := version.NewVersion(b)
	if errA != nil || errB != nil {
		return strings.Compare(a, b)
	}
	return va.Compare(vb)
}

// Compare is the canonical package order: name, then version, then maintainer, then kind.
func Compare(a, b Package) int {
	if c := strings.Compare(a.Name(), b.Name()); c != 0 {
		return c
	}
	if c := CompareVersions(a.Version(), b.Version()); c != 0 {
		return c
	}
	if c := strings.Compare(a.Maintainer(), b.Maintainer()); c != 0 {
		return c
	}
	return strings.Compare(string(a.Kind()), string(b.Kind()))
}
