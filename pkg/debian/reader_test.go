package debian_test

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thepwagner/debmirror/pkg/debian"
	"github.com/thepwagner/debmirror/pkg/debian/debiantest"
)

const packagesIndex = `Package: hello
Version: 2.10-2
Maintainer: Santiago Vila <sanvila@debian.org>
Architecture: amd64
Filename: pool/main/h/hello/hello_2.10-2_amd64.deb
Description: example package based on GNU hello
 The GNU hello program produces a familiar, friendly greeting.
 .
 It allows non-programmers to use a classic computer science tool.

Package: libdaemon0
Version: 0.14-7
Maintainer: Debian QA Group <packages@qa.debian.org>
Architecture: amd64
Filename: pool/main/libd/libdaemon/libdaemon0_0.14-7_amd64.deb
`

func TestParagraphReader(t *testing.T) {
	t.Parallel()

	pr, err := debian.NewParagraphReader(strings.NewReader(packagesIndex), "Packages", debian.KindBinary)
	require.NoError(t, err)
	defer pr.Close()

	first, err := pr.Next()
	require.NoError(t, err)
	assert.Equal(t, "hello", first["package"])
	assert.Equal(t, "Santiago Vila <sanvila@debian.org>", first.Get("Maintainer"))
	assert.Contains(t, first["description"], "friendly greeting")

	second, err := pr.Next()
	require.NoError(t, err)
	assert.Equal(t, "libdaemon0", second["package"])

	_, err = pr.Next()
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 2, pr.Count())
}

func TestParagraphReader_Compressed(t *testing.T) {
	t.Parallel()

	graphs := []debian.Paragraph{
		{"package": "a", "version": "1"},
		{"package": "b", "version": "2"},
	}
	for _, c := range []debian.Compression{debian.CompressionNone, debian.CompressionGZIP, debian.CompressionXZ, debian.CompressionZSTD} {
		t.Run(string(c), func(t *testing.T) {
			t.Parallel()
			pr, err := debian.ReadBytes("Packages"+c.Extension(), debiantest.Index(t, c, graphs...), debian.KindBinary)
			require.NoError(t, err)

			var names []string
			for p, err := range pr.All() {
				require.NoError(t, err)
				names = append(names, p["package"])
			}
			assert.Equal(t, []string{"a", "b"}, names)
			assert.NoError(t, pr.Close())
		})
	}
}

func TestParagraphReader_Empty(t *testing.T) {
	t.Parallel()

	for name, content := range map[string]string{
		"empty":  "",
		"blanks": "\n\n\n",
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			pr, err := debian.NewParagraphReader(strings.NewReader(content), "Packages", debian.KindBinary)
			require.NoError(t, err)
			_, err = pr.Next()
			assert.ErrorIs(t, err, io.EOF)
		})
	}
}

func TestParagraphReader_CorruptGzip(t *testing.T) {
	t.Parallel()
	_, err := debian.ReadBytes("Packages.gz", []byte("definitely not gzip"), debian.KindBinary)
	assert.ErrorIs(t, err, debian.ErrResourceUnavailable)
}

func TestParagraphReader_Malformed(t *testing.T) {
	t.Parallel()
	pr, err := debian.NewParagraphReader(strings.NewReader("Package: a\nthis line has no separator\n"), "Packages", debian.KindBinary)
	require.NoError(t, err)

	_, err = pr.Next()
	assert.ErrorIs(t, err, debian.ErrMalformedRecord)
	var malformed *debian.MalformedRecordError
	require.True(t, errors.As(err, &malformed))
	assert.Equal(t, "Packages", malformed.Source)
}

func TestOpenFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	fn := filepath.Join(dir, "Sources.gz")
	require.NoError(t, os.WriteFile(fn, debiantest.Index(t, debian.CompressionGZIP, debian.Paragraph{"package": "hello"}), 0o644))

	pr, err := debian.OpenFile(fn, debian.KindSource, false)
	require.NoError(t, err)
	defer pr.Close()
	assert.Equal(t, debian.KindSource, pr.Kind())
	p, err := pr.Next()
	require.NoError(t, err)
	assert.Equal(t, "hello", p["package"])

	t.Run("missing", func(t *testing.T) {
		t.Parallel()
		_, err := debian.OpenFile(filepath.Join(dir, "missing.gz"), debian.KindBinary, false)
		assert.ErrorIs(t, err, debian.ErrResourceUnavailable)
	})

	t.Run("missing empty on io", func(t *testing.T) {
		t.Parallel()
		pr, err := debian.OpenFile(filepath.Join(dir, "missing.gz"), debian.KindBinary, true)
		require.NoError(t, err)
		_, err = pr.Next()
		assert.ErrorIs(t, err, io.EOF)
	})
}

func TestWriteParagraph(t *testing.T) {
	t.Parallel()

	var sb strings.Builder
	err := debian.WriteParagraph(&sb, debian.Paragraph{
		"version":     "1.0",
		"package":     "hello",
		"md5sum":      "abc",
		"description": "short\nlong line\n\nafter blank",
		"files":       "\nabc 1 hello.dsc",
	})
	require.NoError(t, err)
	assert.Equal(t, `Package: hello
Description: short
 long line
 .
 after blank
Files:
 abc 1 hello.dsc
MD5sum: abc
Version: 1.0
`, sb.String())
}

func TestWriteParagraph_RoundTrip(t *testing.T) {
	t.Parallel()

	var sb strings.Builder
	err := debian.WriteParagraph(&sb, debian.Paragraph{
		"package":     "hello",
		"description": "short\nlong line\n\nmore\n",
	})
	require.NoError(t, err)
	assert.Equal(t, "Package: hello\nDescription: short\n long line\n .\n more\n", sb.String())

	pr, err := debian.ReadBytes("Packages", []byte(sb.String()), debian.KindBinary)
	require.NoError(t, err)
	p, err := pr.Next()
	require.NoError(t, err)

	var again strings.Builder
	require.NoError(t, debian.WriteParagraph(&again, p))
	assert.Equal(t, sb.String(), again.String())
}
