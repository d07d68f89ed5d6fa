package mirror

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/thepwagner/debmirror/pkg/debian"
)

var ErrChecksumMismatch = errors.New("checksum mismatch")

// fileChecksums hashes a file in a single pass.
func fileChecksums(fn string) (debian.File, error) {
	f, err := os.Open(fn)
	if err != nil {
		return debian.File{}, err
	}
	defer f.Close()
	return readChecksums(f)
}

func readChecksums(r io.Reader) (debian.File, error) {
	md5h, sha1h, sha256h := md5.New(), sha1.New(), sha256.New()
	n, err := io.Copy(io.MultiWriter(md5h, sha1h, sha256h), r)
	if err != nil {
		return debian.File{}, err
	}
	return debian.File{
		Size:   n,
		MD5Sum: hex.EncodeToString(md5h.Sum(nil)),
		SHA1:   hex.EncodeToString(sha1h.Sum(nil)),
		SHA256: hex.EncodeToString(sha256h.Sum(nil)),
	}, nil
}

// verify compares actual checksums with those the index lists. Checksums missing from the index are skipped.
func verify(expected, actual debian.File) error {
	if expected.Size > 0 && expected.Size != actual.Size {
		return fmt.Errorf("%w: size %d, expected %d", ErrChecksumMismatch, actual.Size, expected.Size)
	}
	for _, c := range []struct{ algo, expected, actual string }{
		{"sha256", expected.SHA256, actual.SHA256},
		{"sha1", expected.SHA1, actual.SHA1},
		{"md5", expected.MD5Sum, actual.MD5Sum},
	} {
		if c.expected != "" && c.expected != c.actual {
			return fmt.Errorf("%w: %s %s, expected %s", ErrChecksumMismatch, c.algo, c.actual, c.expected)
		}
	}
	return nil
}
