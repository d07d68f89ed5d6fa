package debian

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/blakesmith/ar"
)

// ErrNoControl is returned for a .deb without a control file.
var ErrNoControl = errors.New("no control file in package")

// ParagraphFromDeb reads the control paragraph from a .deb.
func ParagraphFromDeb(in io.Reader) (Paragraph, error) {
	for reader := ar.NewReader(in); ; {
		// find control.tar.* or die trying
		hdr, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return nil, fmt.Errorf("reading archive: %w", err)
		}

		// ar member names may be padded with a trailing slash
		name := strings.TrimSuffix(strings.TrimSpace(hdr.Name), "/")
		if !strings.HasPrefix(name, "control.tar") {
			continue
		}
		controlIn, err := CompressionFromName(name).Reader(reader)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
		graph, err := controlFromTar(controlIn)
		_ = controlIn.Close()
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
		return graph, nil
	}
	return nil, ErrNoControl
}

func controlFromTar(in io.Reader) (Paragraph, error) {
	for tarR := tar.NewReader(in); ; {
		hdr, err := tarR.Next()
		if errors.Is(err, io.EOF) {
			return nil, ErrNoControl
		} else if err != nil {
			return nil, fmt.Errorf("reading archive: %w", err)
		}
		if path.Clean(hdr.Name) != "control" {
			continue
		}

		pr, err := NewParagraphReader(tarR, "control", KindBinary)
		if err != nil {
			return nil, fmt.Errorf("parsing control file: %w", err)
		}
		graph, err := pr.Next()
		if errors.Is(err, io.EOF) {
			return nil, ErrNoControl
		} else if err != nil {
			return nil, fmt.Errorf("parsing control file: %w", err)
		}
		return graph, nil
	}
}

// ParagraphFromDebFile reads the control paragraph from a .deb file.
func ParagraphFromDebFile(fn string) (Paragraph, error) {
	f, err := os.Open(fn)
	if err != nil {
		return nil, &UnavailableError{Location: fn, Err: err}
	}
	defer f.Close()

	return ParagraphFromDeb(f)
}
