package dcm

import (
	"fmt"

	"github.com/pkg/errors"
)

// Error taxonomy per spec.md §7. Each kind is a distinct type so callers
// can type-switch or errors.As; all of them wrap an underlying cause (when
// one exists) with github.com/pkg/errors so Cause() recovers it across the
// parse -> accessor or save -> caller package boundary.

// UnrecognizedFormatError means the source matched none of the recognized
// file layouts (preamble+DICM, implicit-LE, explicit-LE, explicit-BE).
type UnrecognizedFormatError struct {
	Path string
}

func (e *UnrecognizedFormatError) Error() string {
	return fmt.Sprintf("dcm: %s: unrecognized DICOM format", e.Path)
}

// ParseError reports a malformed element header or truncated value at a
// given stream offset.
type ParseError struct {
	At    int64
	Cause error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("dcm: parse error at offset %d: %v", e.At, e.Cause)
}

func (e *ParseError) Unwrap() error { return e.Cause }

func newParseError(at int64, cause error) error {
	return errors.WithStack(&ParseError{At: at, Cause: cause})
}

// BadEncapsulationError means an encapsulated PixelData stream held an
// unexpected tag, or a non-zero-length SequenceDelimitationItem.
type BadEncapsulationError struct {
	Cause error
}

func (e *BadEncapsulationError) Error() string {
	return fmt.Sprintf("dcm: bad encapsulation: %v", e.Cause)
}

func (e *BadEncapsulationError) Unwrap() error { return e.Cause }

// OddLengthSwapError means a byte-order swap was required on an odd-length
// value, which cannot be swapped in whole 2-byte units.
type OddLengthSwapError struct {
	Tag    string
	Length int
}

func (e *OddLengthSwapError) Error() string {
	return fmt.Sprintf("dcm: %s: cannot byte-swap odd-length value (%d bytes)", e.Tag, e.Length)
}

// WriteError wraps an I/O failure encountered while saving.
type WriteError struct {
	Cause error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("dcm: write error: %v", e.Cause)
}

func (e *WriteError) Unwrap() error { return e.Cause }

func newWriteError(cause error) error {
	return errors.WithStack(&WriteError{Cause: cause})
}

// errElementMissing signals an absent tag to internal helpers. It is NOT
// surfaced to library callers; the public accessors convert it into the
// caller-supplied default value (spec.md §7: "ElementMissing ... NOT an
// error").
var errElementMissing = errors.New("dcm: element missing")
