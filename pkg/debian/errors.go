package debian

import (
	"errors"
	"fmt"
)

var (
	// ErrResourceUnavailable is matched by errors for indexes or artifacts that could not be opened or read.
	ErrResourceUnavailable = errors.New("resource unavailable")
	// ErrMalformedRecord is matched by errors for paragraphs that cannot be turned into a package.
	ErrMalformedRecord = errors.New("malformed record")
)

// UnavailableError is returned when a resource cannot be opened or read.
type UnavailableError struct {
	Location string
	Err      error
}

func (e *UnavailableError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("resource unavailable: %s", e.Location)
	}
	return fmt.Sprintf("resource unavailable: %s: %v", e.Location, e.Err)
}

func (e *UnavailableError) Unwrap() []error {
	return []error{ErrResourceUnavailable, e.Err}
}

// MalformedRecordError is returned for a paragraph missing an identity field, or an index that does not parse.
type MalformedRecordError struct {
	Source string
	Field  string
	Err    error
}

func (e *MalformedRecordError) Error() string {
	switch {
	case e.Field != "":
		return fmt.Sprintf("malformed record in %s: missing field %q", e.Source, e.Field)
	case e.Err != nil:
		return fmt.Sprintf("malformed record in %s: %v", e.Source, e.Err)
	default:
		return fmt.Sprintf("malformed record in %s", e.Source)
	}
}

func (e *MalformedRecordError) Unwrap() []error {
	return []error{ErrMalformedRecord, e.Err}
}
