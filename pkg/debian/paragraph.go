package debian

import (
	"bufio"
	"fmt"
	"io"
	"slices"
	"strings"
)

// Paragraph is a single control file stanza. Keys are lower-cased field names.
type Paragraph map[string]string

// NewParagraph normalizes field names of a raw stanza.
func NewParagraph(fields map[string]string) Paragraph {
	p := make(Paragraph, len(fields))
	for k, v := range fields {
		p[strings.ToLower(k)] = v
	}
	return p
}

// Get returns the value of a field, matching the name case-insensitively.
func (p Paragraph) Get(field string) string {
	return p[strings.ToLower(field)]
}

func (p Paragraph) Has(field string) bool {
	_, ok := p[strings.ToLower(field)]
	return ok
}

func (p Paragraph) Clone() Paragraph {
	c := make(Paragraph, len(p))
	for k, v := range p {
		c[k] = v
	}
	return c
}

// Keys returns field names with "package" first and the rest sorted.
func (p Paragraph) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		if k != "package" {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	if _, ok := p["package"]; ok {
		keys = append([]string{"package"}, keys...)
	}
	return keys
}

// WriteParagraph writes a paragraph in control file syntax, without the trailing blank line.
func WriteParagraph(out io.Writer, p Paragraph) error {
	w := bufio.NewWriter(out)
	for _, k := range p.Keys() {
		if _, err := fmt.Fprintf(w, "%s:", fieldName(k)); err != nil {
			return err
		}
		for i, line := range strings.Split(strings.TrimRight(p[k], "\n"), "\n") {
			switch {
			case i == 0 && line == "":
			case i == 0:
				_, _ = w.WriteString(" " + line)
			case strings.TrimSpace(line) == "":
				_, _ = w.WriteString("\n .")
			default:
				_, _ = w.WriteString("\n " + line)
			}
		}
		if err := w.WriteByte('\n'); err != nil {
			return err
		}
	}
	return w.Flush()
}

// WriteParagraphs writes paragraphs separated by blank lines.
func WriteParagraphs(out io.Writer, graphs ...Paragraph) error {
	for i, p := range graphs {
		if i > 0 {
			if _, err := io.WriteString(out, "\n"); err != nil {
				return err
			}
		}
		if err := WriteParagraph(out, p); err != nil {
			return err
		}
	}
	return nil
}

var fieldNames = map[string]string{
	"md5sum":           "MD5sum",
	"sha1":             "SHA1",
	"sha256":           "SHA256",
	"checksums-sha1":   "Checksums-Sha1",
	"checksums-sha256": "Checksums-Sha256",
}

// fieldName restores the conventional capitalization of a lower-cased field.
func fieldName(k string) string {
	if n, ok := fieldNames[k]; ok {
		return n
	}
	parts := strings.Split(k, "-")
	for i, part := range parts {
		if part != "" {
			parts[i] = strings.ToUpper(part[:1]) + part[1:]
		}
	}
	return strings.Join(parts, "-")
}
