package debian

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"iter"
	"os"

	"pault.ag/go/debian/control"
)

const clearsignPeek = 16

// ParagraphReader lazily reads paragraphs from a Packages or Sources index.
// It is single pass: paragraphs are parsed as they are requested.
type ParagraphReader struct {
	name    string
	kind    Kind
	src     *recordingReader
	r       *control.ParagraphReader
	closers []io.Closer
	count   int
}

// NewParagraphReader reads paragraphs of the given kind from in.
// The name is used to pick a decompressor and in error messages.
// If in is an io.Closer, it is closed by Close.
func NewParagraphReader(in io.Reader, name string, kind Kind) (*ParagraphReader, error) {
	pr := &ParagraphReader{name: name, kind: kind}
	if c, ok := in.(io.Closer); ok {
		pr.closers = append(pr.closers, c)
	}

	dec, err := CompressionFromName(name).Reader(in)
	if err != nil {
		_ = pr.Close()
		return nil, &UnavailableError{Location: name, Err: err}
	}
	pr.closers = append([]io.Closer{dec}, pr.closers...)
	pr.src = &recordingReader{r: dec}

	// control.NewParagraphReader peeks ahead for a clearsigned header, so short
	// documents are padded with blank lines.
	br := bufio.NewReader(pr.src)
	head, err := br.Peek(clearsignPeek)
	if err != nil && !errors.Is(err, io.EOF) {
		_ = pr.Close()
		return nil, &UnavailableError{Location: name, Err: err}
	}
	if len(bytes.TrimSpace(head)) == 0 && len(head) < clearsignPeek {
		_ = pr.Close()
		return EmptyReader(name, kind), nil
	}
	var body io.Reader = br
	if len(head) < clearsignPeek {
		body = io.MultiReader(br, bytes.NewReader(bytes.Repeat([]byte{'\n'}, clearsignPeek)))
	}

	pr.r, err = control.NewParagraphReader(body, nil)
	if err != nil {
		_ = pr.Close()
		if pr.src.err != nil {
			return nil, &UnavailableError{Location: name, Err: pr.src.err}
		}
		return nil, &MalformedRecordError{Source: name, Err: err}
	}
	return pr, nil
}

// OpenFile reads paragraphs from a file on disk.
// With emptyOnIO, a file that cannot be opened yields no paragraphs instead of an error.
func OpenFile(fn string, kind Kind, emptyOnIO bool) (*ParagraphReader, error) {
	f, err := os.Open(fn)
	if err != nil {
		if emptyOnIO {
			return EmptyReader(fn, kind), nil
		}
		return nil, &UnavailableError{Location: fn, Err: err}
	}
	return NewParagraphReader(f, fn, kind)
}

// ReadBytes reads paragraphs from an in-memory index.
func ReadBytes(name string, data []byte, kind Kind) (*ParagraphReader, error) {
	return NewParagraphReader(bytes.NewReader(data), name, kind)
}

// EmptyReader returns a reader without paragraphs.
func EmptyReader(name string, kind Kind) *ParagraphReader {
	return &ParagraphReader{name: name, kind: kind}
}

func (pr *ParagraphReader) Name() string { return pr.name }
func (pr *ParagraphReader) Kind() Kind   { return pr.kind }

// Count is the number of paragraphs returned so far.
func (pr *ParagraphReader) Count() int { return pr.count }

// Next returns the next paragraph, or io.EOF after the last one.
func (pr *ParagraphReader) Next() (Paragraph, error) {
	if pr.r == nil {
		return nil, io.EOF
	}
	for {
		raw, err := pr.r.Next()
		if errors.Is(err, io.EOF) {
			if pr.src.err != nil {
				return nil, &UnavailableError{Location: pr.name, Err: pr.src.err}
			}
			return nil, io.EOF
		} else if err != nil {
			if pr.src.err != nil {
				return nil, &UnavailableError{Location: pr.name, Err: pr.src.err}
			}
			return nil, &MalformedRecordError{Source: pr.name, Err: err}
		}
		if raw == nil || len(raw.Values) == 0 {
			continue
		}
		pr.count++
		return NewParagraph(raw.Values), nil
	}
}

// All iterates over the remaining paragraphs. Iteration stops after the first error.
func (pr *ParagraphReader) All() iter.Seq2[Paragraph, error] {
	return func(yield func(Paragraph, error) bool) {
		for {
			p, err := pr.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(p, err) || err != nil {
				return
			}
		}
	}
}

func (pr *ParagraphReader) Close() error {
	var errs []error
	for _, c := range pr.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	pr.closers = nil
	return errors.Join(errs...)
}

// recordingReader remembers the first read failure, so read errors can be told apart from parse errors.
type recordingReader struct {
	r   io.Reader
	err error
}

func (r *recordingReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if err != nil && !errors.Is(err, io.EOF) && r.err == nil {
		r.err = err
	}
	return n, err
}
