// Package dcmio provides low-level encoding/decoding primitives for DICOM
// data: integers, strings, and the decoder/encoder cursor state (byte
// order, VR encoding, nesting limits) the parser and serializer push and
// pop as they descend into sequences. Grounded on odincare-odicom's
// dicomio/buffer.go.
package dcmio

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/encoding"
)

// NativeByteOrder is the byte order assumed for values this process wrote
// itself (e.g. the native-order re-packing of OW values).
var NativeByteOrder = binary.LittleEndian

// IsImplicitVR tells whether a decoder/encoder is currently reading or
// writing the 2-byte VR code inline with each element header.
type IsImplicitVR int

const (
	// ImplicitVR encodes an element with no VR in the stream; the VR is
	// looked up from the tag dictionary instead.
	ImplicitVR IsImplicitVR = iota
	// ExplicitVR carries the 2-byte VR code inline with the element.
	ExplicitVR
	// UnknownVR is used for encoders/decoders that never need to inspect
	// the VR encoding, e.g. a sub-encoder for bytes that are opaque to it.
	UnknownVR
)

type transferSyntaxStackEntry struct {
	byteorder binary.ByteOrder
	implicit  IsImplicitVR
}

type stackEntry struct {
	limit int64
	err   error
}

// Encoder is a helper for encoding low-level DICOM data types to a sink.
type Encoder struct {
	err error

	out io.Writer

	byteorder binary.ByteOrder
	implicit  IsImplicitVR

	oldTransferSyntaxes []transferSyntaxStackEntry
}

// NewBytesEncoder creates an encoder that writes into an in-memory buffer,
// retrievable later via Bytes().
func NewBytesEncoder(byteorder binary.ByteOrder, implicit IsImplicitVR) *Encoder {
	return &Encoder{
		out:       &bytes.Buffer{},
		byteorder: byteorder,
		implicit:  implicit,
	}
}

// NewEncoder creates an encoder that writes to out.
func NewEncoder(out io.Writer, byteorder binary.ByteOrder, implicit IsImplicitVR) *Encoder {
	return &Encoder{
		out:       out,
		byteorder: byteorder,
		implicit:  implicit,
	}
}

// TransferSyntax returns the encoder's current byte order and VR encoding.
func (e *Encoder) TransferSyntax() (binary.ByteOrder, IsImplicitVR) {
	return e.byteorder, e.implicit
}

// PushTransferSyntax temporarily switches encoding parameters; pair with
// PopTransferSyntax to restore the previous ones (used when descending into
// a nested item/sequence whose group requires implicit VR).
func (e *Encoder) PushTransferSyntax(byteorder binary.ByteOrder, implicit IsImplicitVR) {
	e.oldTransferSyntaxes = append(e.oldTransferSyntaxes, transferSyntaxStackEntry{e.byteorder, e.implicit})
	e.byteorder = byteorder
	e.implicit = implicit
}

// PopTransferSyntax restores the encoding parameters saved by the matching
// PushTransferSyntax call.
func (e *Encoder) PopTransferSyntax() {
	last := len(e.oldTransferSyntaxes) - 1
	ts := e.oldTransferSyntaxes[last]
	e.byteorder = ts.byteorder
	e.implicit = ts.implicit
	e.oldTransferSyntaxes = e.oldTransferSyntaxes[:last]
}

// SetError records err as the error to be returned by Error(), unless one
// is already recorded.
func (e *Encoder) SetError(err error) {
	if err != nil && e.err == nil {
		e.err = err
	}
}

// SetErrorf is SetError with a printf-style message.
func (e *Encoder) SetErrorf(format string, args ...interface{}) {
	e.SetError(fmt.Errorf(format, args...))
}

// Error returns the first error recorded via SetError, or nil.
func (e *Encoder) Error() error { return e.err }

// Bytes returns the accumulated output. Valid only for encoders created via
// NewBytesEncoder, and only once e.Error() == nil.
func (e *Encoder) Bytes() []byte {
	DoAssert(len(e.oldTransferSyntaxes) == 0)
	if e.err != nil {
		logrus.Panic(e.err)
	}
	return e.out.(*bytes.Buffer).Bytes()
}

func (e *Encoder) WriteByte(v byte) {
	if err := binary.Write(e.out, e.byteorder, &v); err != nil {
		e.SetError(err)
	}
}

func (e *Encoder) WriteUInt16(v uint16) {
	if err := binary.Write(e.out, e.byteorder, &v); err != nil {
		e.SetError(err)
	}
}

func (e *Encoder) WriteUInt32(v uint32) {
	if err := binary.Write(e.out, e.byteorder, &v); err != nil {
		e.SetError(err)
	}
}

func (e *Encoder) WriteInt16(v int16) {
	if err := binary.Write(e.out, e.byteorder, &v); err != nil {
		e.SetError(err)
	}
}

func (e *Encoder) WriteInt32(v int32) {
	if err := binary.Write(e.out, e.byteorder, &v); err != nil {
		e.SetError(err)
	}
}

func (e *Encoder) WriteFloat32(v float32) {
	if err := binary.Write(e.out, e.byteorder, &v); err != nil {
		e.SetError(err)
	}
}

func (e *Encoder) WriteFloat64(v float64) {
	if err := binary.Write(e.out, e.byteorder, &v); err != nil {
		e.SetError(err)
	}
}

// WriteString writes v with no length prefix or padding.
func (e *Encoder) WriteString(v string) {
	if _, err := e.out.Write([]byte(v)); err != nil {
		e.SetError(err)
	}
}

// WriteZeros writes n zero bytes.
func (e *Encoder) WriteZeros(n int) {
	if _, err := e.out.Write(make([]byte, n)); err != nil {
		e.SetError(err)
	}
}

// WriteBytes copies v to the output verbatim.
func (e *Encoder) WriteBytes(v []byte) {
	if _, err := e.out.Write(v); err != nil {
		e.SetError(err)
	}
}

// Decoder decodes low-level DICOM data types from a source.
type Decoder struct {
	in        *bufio.Reader
	err       error
	byteorder binary.ByteOrder
	implicit  IsImplicitVR

	limit int64
	pos   int64

	codingSystem CodingSystem

	oldTransferSyntaxes []transferSyntaxStackEntry
	stateStack          []stackEntry
}

// NewDecoder creates a decoder reading from in, with no read limit
// (math.MaxInt64 internally) until PushLimit narrows it.
func NewDecoder(in io.Reader, byteorder binary.ByteOrder, implicit IsImplicitVR) *Decoder {
	return &Decoder{
		in:        bufio.NewReader(in),
		byteorder: byteorder,
		implicit:  implicit,
		limit:     math.MaxInt64,
	}
}

// NewBytesDecoder creates a decoder over an in-memory byte slice.
func NewBytesDecoder(data []byte, byteorder binary.ByteOrder, implicit IsImplicitVR) *Decoder {
	return NewDecoder(bytes.NewReader(data), byteorder, implicit)
}

// SetError records err (augmented with the current stream offset) as the
// error to be returned by Error()/Finish(), unless one is already recorded.
func (d *Decoder) SetError(err error) {
	if err != nil && d.err == nil {
		if err != io.EOF {
			err = fmt.Errorf("%s (file offset %d)", err.Error(), d.pos)
		}
		d.err = err
	}
}

// SetErrorf is SetError with a printf-style message.
func (d *Decoder) SetErrorf(format string, args ...interface{}) {
	d.SetError(fmt.Errorf(format, args...))
}

// TransferSyntax returns the decoder's current byte order and VR encoding.
func (d *Decoder) TransferSyntax() (byteorder binary.ByteOrder, implicit IsImplicitVR) {
	return d.byteorder, d.implicit
}

// PushTransferSyntax temporarily switches decoding parameters; pair with
// PopTransferSyntax.
func (d *Decoder) PushTransferSyntax(byteorder binary.ByteOrder, implicit IsImplicitVR) {
	d.oldTransferSyntaxes = append(d.oldTransferSyntaxes, transferSyntaxStackEntry{d.byteorder, d.implicit})
	d.byteorder = byteorder
	d.implicit = implicit
}

// PopTransferSyntax restores the decoding parameters saved by the matching
// PushTransferSyntax call.
func (d *Decoder) PopTransferSyntax() {
	last := len(d.oldTransferSyntaxes) - 1
	e := d.oldTransferSyntaxes[last]
	d.byteorder = e.byteorder
	d.implicit = e.implicit
	d.oldTransferSyntaxes = d.oldTransferSyntaxes[:last]
}

// SetCodingSystem overrides the byte->string decoder used by ReadString,
// installed whenever a SpecificCharacterSet element is parsed.
func (d *Decoder) SetCodingSystem(cs CodingSystem) {
	d.codingSystem = cs
}

// PushLimit temporarily narrows the readable window to the next n bytes,
// clearing any pending error; PopLimit restores the previous window and
// error, skipping any bytes the inner reader left unconsumed.
func (d *Decoder) PushLimit(n int64) {
	newLimit := d.pos + n
	if newLimit > d.limit {
		d.SetError(fmt.Errorf("trying to read %d bytes beyond buffer end", newLimit-d.limit))
		newLimit = d.pos
	}
	d.stateStack = append(d.stateStack, stackEntry{limit: d.limit, err: d.err})
	d.limit = newLimit
	d.err = nil
}

// PopLimit restores the limit and error saved by the matching PushLimit
// call. If the inner reader left bytes unconsumed within the old window
// (e.g. after a parse error), those bytes are skipped so the outer reader
// can resynchronize.
func (d *Decoder) PopLimit() {
	if d.pos < d.limit {
		d.Skip(int(d.limit - d.pos))
	}
	last := len(d.stateStack) - 1
	d.limit = d.stateStack[last].limit
	if d.stateStack[last].err != nil {
		d.err = d.stateStack[last].err
	}
	d.stateStack = d.stateStack[:last]
}

// Error returns the first error recorded via SetError, or nil.
func (d *Decoder) Error() error { return d.err }

// Finish returns the recorded error, or an error if unconsumed data remains.
func (d *Decoder) Finish() error {
	if d.err != nil {
		return d.err
	}
	if !d.EOF() {
		return fmt.Errorf("dcmio: decoder has unconsumed data")
	}
	return nil
}

func (d *Decoder) Read(p []byte) (int, error) {
	desired := d.len()
	if desired == 0 {
		if len(p) == 0 {
			return 0, nil
		}
		return 0, io.EOF
	}
	if desired < int64(len(p)) {
		p = p[:desired]
	}
	n, err := d.in.Read(p)
	if n >= 0 {
		d.pos += int64(n)
	}
	return n, err
}

// EOF reports whether no more data can be read, either because of an error,
// the current limit, or the underlying source running dry.
func (d *Decoder) EOF() bool {
	if d.err != nil {
		return true
	}
	if d.limit-d.pos <= 0 {
		return true
	}
	data, _ := d.in.Peek(1)
	return len(data) == 0
}

// BytesRead returns the cumulative number of bytes read so far.
func (d *Decoder) BytesRead() int64 { return d.pos }

func (d *Decoder) len() int64 {
	return d.limit - d.pos
}

// ReadByte reads one byte. On error it sets the decoder error and returns 0.
func (d *Decoder) ReadByte() (v byte) {
	if err := binary.Read(d, d.byteorder, &v); err != nil {
		d.SetError(err)
		return 0
	}
	return v
}

func (d *Decoder) ReadUInt32() (v uint32) {
	if err := binary.Read(d, d.byteorder, &v); err != nil {
		d.SetError(err)
	}
	return v
}

func (d *Decoder) ReadInt32() (v int32) {
	if err := binary.Read(d, d.byteorder, &v); err != nil {
		d.SetError(err)
	}
	return v
}

func (d *Decoder) ReadUInt16() (v uint16) {
	if err := binary.Read(d, d.byteorder, &v); err != nil {
		d.SetError(err)
	}
	return v
}

func (d *Decoder) ReadInt16() (v int16) {
	if err := binary.Read(d, d.byteorder, &v); err != nil {
		d.SetError(err)
	}
	return v
}

func (d *Decoder) ReadFloat32() (v float32) {
	if err := binary.Read(d, d.byteorder, &v); err != nil {
		d.SetError(err)
	}
	return v
}

func (d *Decoder) ReadFloat64() (v float64) {
	if err := binary.Read(d, d.byteorder, &v); err != nil {
		d.SetError(err)
	}
	return v
}

func internalReadString(d *Decoder, sd *encoding.Decoder, length int) string {
	raw := d.ReadBytes(length)
	if len(raw) == 0 {
		return ""
	}
	if sd == nil {
		// Assume UTF-8 is a superset of the source encoding (7-bit ASCII
		// in the common case).
		return string(raw)
	}
	decoded, err := sd.Bytes(raw)
	if err != nil {
		d.SetError(err)
		return ""
	}
	return string(decoded)
}

// ReadStringWithCodingSystem decodes length bytes using the decoder
// appropriate for the given component of a PN-style value (alphabetic,
// ideographic, or phonetic; cf. PS3.5 6.2.2).
func (d *Decoder) ReadStringWithCodingSystem(csType CodingSystemType, length int) string {
	var sd *encoding.Decoder
	switch csType {
	case AlphabeticCodingSystem:
		sd = d.codingSystem.Alphabetic
	case IdeographicCodingSystem:
		sd = d.codingSystem.Ideographic
	case PhoneticCodingSystem:
		sd = d.codingSystem.Phonetic
	default:
		panic(csType)
	}
	return internalReadString(d, sd, length)
}

// ReadString decodes length bytes using the dataset's installed character
// set (the "ideographic" decoder slot). The parser reads every string VR,
// PN included, through this method.
func (d *Decoder) ReadString(length int) string {
	return internalReadString(d, d.codingSystem.Ideographic, length)
}

// ReadBytes reads length raw bytes with no decoding.
func (d *Decoder) ReadBytes(length int) []byte {
	if d.len() < int64(length) {
		d.SetError(fmt.Errorf("ReadBytes: requested %d, available %d", length, d.len()))
		return nil
	}
	v := make([]byte, length)
	remaining := v
	for len(remaining) > 0 {
		n, err := d.Read(remaining)
		if err != nil {
			d.SetError(err)
			break
		}
		remaining = remaining[n:]
	}
	return v
}

// Skip discards length bytes.
func (d *Decoder) Skip(length int) {
	if d.len() < int64(length) {
		d.SetError(fmt.Errorf("Skip: requested %d, available %d", length, d.len()))
		return
	}
	junkSize := 1 << 16
	if length < junkSize {
		junkSize = length
	}
	junk := make([]byte, junkSize)
	remaining := length
	for remaining > 0 {
		n := len(junk)
		if remaining < n {
			n = remaining
		}
		read, err := d.Read(junk[:n])
		if err != nil {
			d.SetError(err)
			break
		}
		remaining -= read
	}
}

// DoAssert panics (via logrus, so the panic is logged before it propagates)
// if condition is false. Used for internal invariants that indicate a bug
// in this package rather than a malformed input file.
func DoAssert(condition bool, values ...interface{}) {
	if !condition {
		var s string
		for _, v := range values {
			s += fmt.Sprintf("%v", v)
		}
		logrus.Panic(s)
	}
}
