package dcm

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/rsnactp/dcm/dcmio"
	"github.com/rsnactp/dcm/dcmtag"
	"github.com/rsnactp/dcm/dcmuid"
)

// GoDICOMImplementationClassUID/VersionName are written into file-meta when
// the caller's FileMeta does not already carry them, the way the teacher's
// WriteFileHeader supplies defaults for optional meta elements.
const (
	GoDICOMImplementationClassUID    = "1.2.276.0.7230010.3.0.3.6.7"
	GoDICOMImplementationVersionName = "dcm-1.0"
)

// SaveOptions configures Save/SaveAs. The zero value re-serializes the
// object under its own transfer syntax, streaming PixelData through
// unchanged — the common case.
type SaveOptions struct {
	// TransferSyntaxUID, if non-empty, re-encodes the dataset (and,
	// for non-encapsulated pixel data, byte-swaps PixelData) under a
	// different transfer syntax. Transcoding INTO or OUT OF an
	// encapsulated transfer syntax is not supported — full image codec
	// support is a Non-goal — and returns BadEncapsulationError.
	TransferSyntaxUID string

	// ForceImplicitLE rewrites the dataset as Implicit VR Little Endian
	// regardless of TransferSyntaxUID, for consumers that cannot parse
	// explicit-VR streams. It is rejected (BadEncapsulationError) when the
	// source or target pixel data is encapsulated, since encapsulated
	// PixelData is only ever framed under an explicit-VR transfer syntax.
	ForceImplicitLE bool
}

// SaveAs writes fo to a new file at path under opts. On success the
// FileObject stays usable (spec.md §4.2 step 3); on failure the partial
// file is removed and, as with Save, the FileObject is closed.
func (fo *FileObject) SaveAs(path string, opts SaveOptions) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return newWriteError(err)
	}
	defer func() {
		cerr := f.Close()
		if err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(path) // nolint: errcheck
		}
	}()
	return fo.Save(f, opts)
}

// Save writes fo's file-meta, dataset, and (read back from the source
// stream at the cursor) PixelData and any trailing elements, to w. The
// PixelData value, or each encapsulated fragment, is read into memory whole
// before it is written. After a successful Save the FileObject's own stream
// position is restored so Save may be called again (spec.md §4.2 step 3);
// on any error the FileObject is closed.
func (fo *FileObject) Save(w io.Writer, opts SaveOptions) (err error) {
	defer func() {
		if err != nil {
			fo.Close() // nolint: errcheck
		}
	}()
	targetByteOrder, targetImplicit, targetUID := fo.ByteOrder, fo.Implicit, fo.TransferSyntaxUID
	if opts.TransferSyntaxUID != "" && opts.TransferSyntaxUID != fo.TransferSyntaxUID {
		if fo.Flags.IsEncapsulated || dcmuid.IsEncapsulated(opts.TransferSyntaxUID) {
			return &BadEncapsulationError{Cause: fmt.Errorf("dcm: transcoding encapsulated PixelData (from %s to %s) requires a codec, which this library does not provide", fo.TransferSyntaxUID, opts.TransferSyntaxUID)}
		}
		bo, impl, err := dcmio.ParseTransferSyntaxUID(opts.TransferSyntaxUID)
		if err != nil {
			return newWriteError(err)
		}
		targetByteOrder, targetImplicit, targetUID = bo, impl, opts.TransferSyntaxUID
	}

	if opts.ForceImplicitLE {
		if fo.Flags.IsEncapsulated {
			return &BadEncapsulationError{Cause: fmt.Errorf("dcm: cannot force Implicit VR Little Endian on encapsulated PixelData (from %s)", fo.TransferSyntaxUID)}
		}
		targetByteOrder, targetImplicit, targetUID = binary.LittleEndian, dcmio.ImplicitVR, dcmuid.ImplicitVRLittleEndian
	}

	e := dcmio.NewEncoder(w, targetByteOrder, targetImplicit)

	fileMeta := rewriteTransferSyntax(fo.FileMeta.Elements, targetUID)
	WriteFileHeader(e, fileMeta)
	if e.Error() != nil {
		return newWriteError(e.Error())
	}

	for _, elem := range fo.Dataset.Elements {
		WriteElement(e, elem)
	}
	if e.Error() != nil {
		return newWriteError(e.Error())
	}

	if fo.cursor == nil {
		return nil
	}
	if _, err := fo.stream.Seek(fo.cursor.valueOffset, io.SeekStart); err != nil {
		return newWriteError(err)
	}
	defer fo.stream.Seek(fo.cursor.valueOffset, io.SeekStart) // nolint: errcheck

	src := dcmio.NewDecoder(fo.stream, fo.ByteOrder, fo.Implicit)
	if err := streamPixelData(e, src, fo.cursor, fo.ByteOrder, targetByteOrder); err != nil {
		return err
	}
	if err := streamTrailingElements(e, src); err != nil {
		return err
	}
	if e.Error() != nil {
		return newWriteError(e.Error())
	}
	return nil
}

// rewriteTransferSyntax returns metaElements with its TransferSyntaxUID
// element replaced (or added) to reflect uid.
func rewriteTransferSyntax(metaElements []*Element, uid string) []*Element {
	out := make([]*Element, 0, len(metaElements)+1)
	found := false
	for _, e := range metaElements {
		if e.Tag == dcmtag.TransferSyntaxUID {
			out = append(out, MustNewElement(dcmtag.TransferSyntaxUID, uid))
			found = true
			continue
		}
		out = append(out, e)
	}
	if !found {
		out = append(out, MustNewElement(dcmtag.TransferSyntaxUID, uid))
	}
	return out
}

// streamPixelData copies PixelData's header and value from src (positioned
// at its cursor's valueOffset) to e. A non-encapsulated value is read into
// memory whole; encapsulated data is read and written one item at a time.
// Encapsulated data is copied item-by-item verbatim (compressed
// frame bytes are opaque, never byte-swapped); non-encapsulated OW data is
// byte-swapped in place when srcByteOrder != dstByteOrder, while
// non-encapsulated OB data is always copied verbatim (spec.md's byte-swap
// rule is VR-gated, not just byte-order-gated).
func streamPixelData(e *dcmio.Encoder, src *dcmio.Decoder, cur *cursor, srcByteOrder, dstByteOrder binary.ByteOrder) error {
	if cur.undefinedLength {
		encodeElementHeader(e, cur.tag, cur.vr, UndefinedLength)
		for {
			itemTag := dcmtag.Tag{Group: src.ReadUInt16(), Element: src.ReadUInt16()}
			length := src.ReadUInt32()
			if src.Error() != nil {
				return newWriteError(src.Error())
			}
			if itemTag == dcmtag.SequenceDelimitationItem {
				encodeElementHeader(e, dcmtag.SequenceDelimitationItem, "", 0)
				return nil
			}
			if itemTag != dcmtag.Item {
				return &BadEncapsulationError{Cause: fmt.Errorf("dcm: expected Item or SequenceDelimitationItem in encapsulated PixelData, found %s", dcmtag.DebugString(itemTag))}
			}
			frame := src.ReadBytes(int(length))
			if src.Error() != nil {
				return newWriteError(src.Error())
			}
			writeRawItem(e, frame)
		}
	}

	data := src.ReadBytes(int(cur.length))
	if src.Error() != nil {
		return newWriteError(src.Error())
	}
	// Only OW (16-bit word) pixel data is byte-order-dependent (spec.md's
	// VR ∈ {OW} rule); OB (byte) data is copied verbatim regardless of
	// target byte order.
	if cur.vr == "OW" && srcByteOrder != dstByteOrder {
		swapped, err := swap16(data)
		if err != nil {
			return err
		}
		data = swapped
	}
	encodeElementHeader(e, cur.tag, cur.vr, uint32(len(data)))
	e.WriteBytes(data)
	return nil
}

// swap16 byte-swaps data as a sequence of 2-byte words (the OW element
// width), erroring if data has an odd length.
func swap16(data []byte) ([]byte, error) {
	if len(data)%2 != 0 {
		return nil, &OddLengthSwapError{Tag: dcmtag.PixelData.String(), Length: len(data)}
	}
	out := make([]byte, len(data))
	for i := 0; i < len(data); i += 2 {
		out[i], out[i+1] = data[i+1], data[i]
	}
	return out, nil
}

// streamTrailingElements copies any elements following PixelData (rare, but
// some encoders append private trailer groups) one element at a time,
// without holding the whole dataset in memory. A (0xFFFC,0xFFFC) terminator,
// used by some writers in place of a clean EOF, ends the scan without being
// re-emitted. src reads in the object's ORIGINAL transfer syntax (that is
// what the remaining on-disk bytes are encoded in); e, the destination,
// re-encodes each element under its own transfer syntax, and OW values are
// byte-swapped when the two byte orders differ.
func streamTrailingElements(e *dcmio.Encoder, src *dcmio.Decoder) error {
	srcByteOrder, _ := src.TransferSyntax()
	dstByteOrder, _ := e.TransferSyntax()
	for !src.EOF() {
		elem, err := readElement(src, ReadOptions{})
		if err != nil {
			if ss, ok := err.(*stopSignal); ok && ss.tag == magicTerminatorTag {
				return nil
			}
			return newWriteError(err)
		}
		if elem.Tag == magicTerminatorTag {
			return nil
		}
		if elem.VR == "OW" && srcByteOrder != dstByteOrder {
			if raw, gerr := elem.GetBytes(); gerr == nil {
				swapped, serr := swap16(raw)
				if serr != nil {
					return serr
				}
				elem.Value = []interface{}{swapped}
			}
		}
		WriteElement(e, elem)
	}
	return nil
}

// WriteFileHeader writes the 128-byte preamble, "DICM" magic, and group-2
// file-meta elements. metaElements must include at least
// MediaStorageSOPClassUID, MediaStorageSOPInstanceUID and TransferSyntaxUID;
// every element's Tag.Group must be dcmtag.MetadataGroup. Grounded on
// writer.go's WriteFileHeader.
func WriteFileHeader(e *dcmio.Encoder, metaElements []*Element) {
	e.PushTransferSyntax(binary.LittleEndian, dcmio.ExplicitVR)
	defer e.PopTransferSyntax()

	sub := dcmio.NewBytesEncoder(binary.LittleEndian, dcmio.ExplicitVR)

	used := map[dcmtag.Tag]bool{dcmtag.FileMetaInformationGroupLength: true}

	writeRequired := func(tag dcmtag.Tag) {
		if elem, err := FindElementByTag(metaElements, tag); err == nil {
			WriteElement(sub, elem)
		} else {
			sub.SetErrorf("dcm: %s missing from file-meta: %v", dcmtag.DebugString(tag), err)
		}
		used[tag] = true
	}
	writeOptional := func(tag dcmtag.Tag, fallback interface{}) {
		if elem, err := FindElementByTag(metaElements, tag); err == nil {
			WriteElement(sub, elem)
		} else {
			WriteElement(sub, MustNewElement(tag, fallback))
		}
		used[tag] = true
	}

	writeOptional(dcmtag.FileMetaInformationVersion, []byte{0, 1})
	writeRequired(dcmtag.MediaStorageSOPClassUID)
	writeRequired(dcmtag.MediaStorageSOPInstanceUID)
	writeRequired(dcmtag.TransferSyntaxUID)
	writeOptional(dcmtag.ImplementationClassUID, GoDICOMImplementationClassUID)
	writeOptional(dcmtag.ImplementationVersionName, GoDICOMImplementationVersionName)

	for _, elem := range metaElements {
		if elem.Tag.Group == dcmtag.MetadataGroup && !used[elem.Tag] {
			WriteElement(sub, elem)
		}
	}

	if sub.Error() != nil {
		e.SetError(sub.Error())
		return
	}

	metaBytes := sub.Bytes()
	e.WriteZeros(128)
	e.WriteString("DICM")
	WriteElement(e, MustNewElement(dcmtag.FileMetaInformationGroupLength, uint32(len(metaBytes))))
	e.WriteBytes(metaBytes)
}

func writeRawItem(e *dcmio.Encoder, data []byte) {
	encodeElementHeader(e, dcmtag.Item, "NA", uint32(len(data)))
	e.WriteBytes(data)
}

func encodeElementHeader(e *dcmio.Encoder, tag dcmtag.Tag, vr string, vl uint32) {
	dcmio.DoAssert(vl == UndefinedLength || vl%2 == 0, vl)

	e.WriteUInt16(tag.Group)
	e.WriteUInt16(tag.Element)

	_, implicit := e.TransferSyntax()
	if tag.Group == dcmtag.Item.Group {
		implicit = dcmio.ImplicitVR
	}

	if implicit == dcmio.ExplicitVR {
		dcmio.DoAssert(len(vr) == 2 || vr == "", vr)
		vrOut := vr
		if vrOut == "" {
			vrOut = "UN"
		}
		e.WriteString(vrOut)
		switch vrOut {
		case "NA", "OB", "OD", "OF", "OL", "OW", "SQ", "UN", "UC", "UR", "UT":
			e.WriteZeros(2)
			e.WriteUInt32(vl)
		default:
			e.WriteUInt16(uint16(vl))
		}
	} else {
		e.WriteUInt32(vl)
	}
}

// WriteElement encodes one data element. Errors are reported through
// e.Error(). Grounded on writer.go's WriteElement.
func WriteElement(e *dcmio.Encoder, elem *Element) {
	vr := elem.VR
	entry, err := dcmtag.Find(elem.Tag)
	switch {
	case vr == "" && err == nil:
		vr = entry.VR
	case vr == "":
		vr = "UN"
	case err == nil && entry.VR != vr:
		if dcmtag.GetVRKind(elem.Tag, entry.VR) != dcmtag.GetVRKind(elem.Tag, vr) {
			e.SetErrorf("dcm: WriteElement: %s: Element.VR=%s conflicts with dictionary VR=%s", dcmtag.DebugString(elem.Tag), vr, entry.VR)
			return
		}
		logrus.Warnf("dcm: WriteElement: %s: Element.VR=%s overrides dictionary VR=%s", dcmtag.DebugString(elem.Tag), vr, entry.VR)
	}

	if vr == "SQ" {
		writeSequence(e, elem, vr)
		return
	}
	if elem.Tag == dcmtag.Item {
		writeItem(e, elem)
		return
	}

	raw, err := encodeScalarValue(e, elem.Tag, vr, elem.Value)
	if err != nil {
		e.SetError(err)
		return
	}
	encodeElementHeader(e, elem.Tag, vr, uint32(len(raw)))
	e.WriteBytes(raw)
}

func writeSequence(e *dcmio.Encoder, elem *Element, vr string) {
	if elem.UndefinedLength {
		encodeElementHeader(e, elem.Tag, vr, UndefinedLength)
		for _, v := range elem.Value {
			sub, ok := v.(*Element)
			if !ok || sub.Tag != dcmtag.Item {
				e.SetErrorf("dcm: WriteElement: %s: SQ value must be an Item", dcmtag.DebugString(elem.Tag))
				return
			}
			WriteElement(e, sub)
		}
		encodeElementHeader(e, dcmtag.SequenceDelimitationItem, "", 0)
		return
	}

	byteorder, implicit := e.TransferSyntax()
	sub := dcmio.NewBytesEncoder(byteorder, implicit)
	for _, v := range elem.Value {
		it, ok := v.(*Element)
		if !ok || it.Tag != dcmtag.Item {
			e.SetErrorf("dcm: WriteElement: %s: SQ value must be an Item", dcmtag.DebugString(elem.Tag))
			return
		}
		WriteElement(sub, it)
	}
	if sub.Error() != nil {
		e.SetError(sub.Error())
		return
	}
	body := sub.Bytes()
	encodeElementHeader(e, elem.Tag, vr, uint32(len(body)))
	e.WriteBytes(body)
}

func writeItem(e *dcmio.Encoder, elem *Element) {
	if elem.UndefinedLength {
		encodeElementHeader(e, dcmtag.Item, "NA", UndefinedLength)
		for _, v := range elem.Value {
			sub, ok := v.(*Element)
			if !ok {
				e.SetErrorf("dcm: WriteElement: Item member is not an Element: %v", v)
				return
			}
			WriteElement(e, sub)
		}
		encodeElementHeader(e, dcmtag.ItemDelimitationItem, "NA", 0)
		return
	}

	byteorder, implicit := e.TransferSyntax()
	sub := dcmio.NewBytesEncoder(byteorder, implicit)
	for _, v := range elem.Value {
		member, ok := v.(*Element)
		if !ok {
			e.SetErrorf("dcm: WriteElement: Item member is not an Element: %v", v)
			return
		}
		WriteElement(sub, member)
	}
	if sub.Error() != nil {
		e.SetError(sub.Error())
		return
	}
	body := sub.Bytes()
	encodeElementHeader(e, dcmtag.Item, "NA", uint32(len(body)))
	e.WriteBytes(body)
}

// encodeScalarValue encodes elem's payload (everything but SQ/Item) into
// its on-disk byte representation, padding string-class values to an even
// length per padByte(vr).
func encodeScalarValue(e *dcmio.Encoder, tag dcmtag.Tag, vr string, values []interface{}) ([]byte, error) {
	byteorder, _ := e.TransferSyntax()
	sub := dcmio.NewBytesEncoder(byteorder, dcmio.UnknownVR)

	switch vr {
	case "DA", "TM", "DT", "LT", "UT":
		if len(values) != 1 {
			return nil, fmt.Errorf("dcm: %s: VR=%s requires exactly one value, found %d", dcmtag.DebugString(tag), vr, len(values))
		}
		s, ok := values[0].(string)
		if !ok {
			return nil, fmt.Errorf("dcm: %s: value is not a string", dcmtag.DebugString(tag))
		}
		sub.WriteString(s)
	case "AT":
		for _, v := range values {
			t, ok := v.(dcmtag.Tag)
			if !ok {
				return nil, fmt.Errorf("dcm: %s: value is not a Tag", dcmtag.DebugString(tag))
			}
			sub.WriteUInt16(t.Group)
			sub.WriteUInt16(t.Element)
		}
	case "OW", "OB", "UN":
		if len(values) != 1 {
			return nil, fmt.Errorf("dcm: %s: VR=%s requires exactly one value, found %d", dcmtag.DebugString(tag), vr, len(values))
		}
		b, ok := values[0].([]byte)
		if !ok {
			return nil, fmt.Errorf("dcm: %s: value is not bytes", dcmtag.DebugString(tag))
		}
		sub.WriteBytes(b)
	case "UL":
		for _, v := range values {
			n, ok := v.(uint32)
			if !ok {
				return nil, fmt.Errorf("dcm: %s: value is not uint32", dcmtag.DebugString(tag))
			}
			sub.WriteUInt32(n)
		}
	case "SL":
		for _, v := range values {
			n, ok := v.(int32)
			if !ok {
				return nil, fmt.Errorf("dcm: %s: value is not int32", dcmtag.DebugString(tag))
			}
			sub.WriteInt32(n)
		}
	case "US":
		for _, v := range values {
			n, ok := v.(uint16)
			if !ok {
				return nil, fmt.Errorf("dcm: %s: value is not uint16", dcmtag.DebugString(tag))
			}
			sub.WriteUInt16(n)
		}
	case "SS":
		for _, v := range values {
			n, ok := v.(int16)
			if !ok {
				return nil, fmt.Errorf("dcm: %s: value is not int16", dcmtag.DebugString(tag))
			}
			sub.WriteInt16(n)
		}
	case "FL", "OF":
		for _, v := range values {
			n, ok := v.(float32)
			if !ok {
				return nil, fmt.Errorf("dcm: %s: value is not float32", dcmtag.DebugString(tag))
			}
			sub.WriteFloat32(n)
		}
	case "FD", "OD":
		for _, v := range values {
			n, ok := v.(float64)
			if !ok {
				return nil, fmt.Errorf("dcm: %s: value is not float64", dcmtag.DebugString(tag))
			}
			sub.WriteFloat64(n)
		}
	default:
		strs := make([]string, len(values))
		for i, v := range values {
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("dcm: %s: value is not a string", dcmtag.DebugString(tag))
			}
			strs[i] = s
		}
		sub.WriteString(joinBackslash(strs))
	}

	if sub.Error() != nil {
		return nil, sub.Error()
	}
	raw := sub.Bytes()
	if len(raw)%2 != 0 {
		raw = append(raw, padByte(vr))
	}
	return raw, nil
}

func joinBackslash(strs []string) string {
	out := ""
	for i, s := range strs {
		if i > 0 {
			out += "\\"
		}
		out += s
	}
	return out
}
