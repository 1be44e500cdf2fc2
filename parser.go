package dcm

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/rsnactp/dcm/dcmio"
	"github.com/rsnactp/dcm/dcmlog"
	"github.com/rsnactp/dcm/dcmtag"
	"github.com/rsnactp/dcm/dcmuid"
)

// UndefinedLength is the sentinel 0xFFFFFFFF value-length marker.
const UndefinedLength uint32 = 0xFFFFFFFF

// magicTerminatorTag stops a save's post-PixelData element scan (spec.md
// §4.2 step 2); files produced by some encoders pad the very end with this
// marker instead of a clean EOF.
var magicTerminatorTag = dcmtag.Tag{0xFFFC, 0xFFFC}

// ReadOptions configures dataset parsing. Grounded on odincare-odicom's
// element.go ReadOptions.
type ReadOptions struct {
	// DropPixelData is accepted for API compatibility with the teacher
	// library's surface, but the parser always stops at PixelData's value
	// (spec.md §4.1b) — decoding pixel bytes is the dcmpixel package's
	// collaborator's job, not the core parser's. Setting this to false
	// only logs a message at verbosity level 2; behavior is unchanged.
	DropPixelData bool

	// ReturnTags, if non-nil, restricts the parsed top-level Dataset to
	// these tags (sequence contents are unaffected).
	ReturnTags []dcmtag.Tag

	// StopAtTag halts the top-level scan once an element's tag reaches
	// StopAtTag under the (possibly surprising, but intentionally
	// preserved) per-component comparison: stop once
	// tag.Group >= StopAtTag.Group && tag.Element >= StopAtTag.Element.
	StopAtTag *dcmtag.Tag
}

// Flags are the booleans spec.md §4.7 says are computed once at parse time
// and cached on the FileObject.
type Flags struct {
	IsImage            bool
	IsEncapsulated     bool
	IsDICOMDIR         bool
	IsSR               bool
	IsKIN              bool
	IsManifest         bool
	IsAdditionalTFInfo bool
}

// manifestConceptCodes are the ConceptNameCodeSeq[0].CodeValue values that
// mark a KIN document as a manifest (spec.md §4.7).
var manifestConceptCodes = map[string]bool{"TCE001": true, "TCE002": true, "TCE007": true}

const additionalTFInfoConceptCode = "TCE006"

// cursor records the parser's position at the point it stopped, so the
// serializer can resume the same underlying stream to copy PixelData and
// any elements that follow it; the parser itself never loads them (spec.md
// §3, §4.2, §9 "stream/cursor ownership").
type cursor struct {
	// valueOffset is the stream position where PixelData's value begins
	// (immediately after its header).
	valueOffset     int64
	tag             dcmtag.Tag
	vr              string
	undefinedLength bool
	length          uint32
}

// FileObject is a parsed DICOM object: file-meta, the main dataset up to
// (but not including) PixelData's value, the flags derived from them, and
// the cursor/stream state needed to stream the remainder during Save.
// Not safe for concurrent use (spec.md §5).
type FileObject struct {
	Path              string
	FileMeta          *Dataset
	Dataset           *Dataset
	TransferSyntaxUID string
	ByteOrder         binary.ByteOrder
	Implicit          dcmio.IsImplicitVR
	Flags             Flags

	cursor *cursor
	stream io.ReadSeeker
	closer io.Closer
	closed bool
}

// Open parses the DICOM file at path with default ReadOptions. The returned
// FileObject owns the underlying file handle until Close, or until an error
// from Open/Save closes it (spec.md §5). A successful Save leaves it open so
// the object can be saved again.
func Open(path string) (*FileObject, error) {
	return OpenWithOptions(path, ReadOptions{})
}

// OpenWithOptions is Open, honoring opts (spec.md's ReturnTags/StopAtTag
// filtering; cf. element.go's ReadOptions).
func OpenWithOptions(path string, opts ReadOptions) (*FileObject, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	fo, err := ParseWithOptions(f, path, opts)
	if err != nil {
		f.Close() // nolint: errcheck
		return nil, err
	}
	fo.closer = f
	return fo, nil
}

// Parse parses a DICOM object from r with default ReadOptions. source is
// used only for diagnostics (e.g. ParseError messages); it need not be a
// filesystem path.
func Parse(r io.ReadSeeker, source string) (*FileObject, error) {
	return ParseWithOptions(r, source, ReadOptions{})
}

// ParseWithOptions is Parse, honoring opts.
func ParseWithOptions(r io.ReadSeeker, source string, opts ReadOptions) (*FileObject, error) {
	format, err := detectFormat(r)
	if err != nil {
		return nil, errors.WithStack(&UnrecognizedFormatError{Path: source})
	}

	// The decoder counts bytes from where detectFormat left the stream
	// (after the preamble, if any); base turns its counts into stream
	// positions.
	base, _ := r.Seek(0, io.SeekCurrent)
	d := dcmio.NewDecoder(r, binary.LittleEndian, dcmio.ExplicitVR)

	var fileMeta *Dataset
	if format == formatPreamble {
		metaElems, ferr := parseFileMeta(d)
		if ferr != nil {
			return nil, newParseError(d.BytesRead(), ferr)
		}
		fileMeta = &Dataset{Elements: metaElems}
	} else {
		fileMeta = &Dataset{}
	}

	byteOrder, implicit, tsUID := resolveDatasetSyntax(fileMeta, format)
	d.PushTransferSyntax(byteOrder, implicit)

	if !opts.DropPixelData {
		dcmlog.Vprintf(2, "dcm.Parse: pixel data is always left on the stream, regardless of ReadOptions.DropPixelData")
	}

	mainElems, cur, err := readTopLevel(d, opts)
	if err != nil {
		return nil, newParseError(d.BytesRead(), err)
	}
	if cur != nil {
		cur.valueOffset += base
	}

	fo := &FileObject{
		Path:              source,
		FileMeta:          fileMeta,
		Dataset:           &Dataset{Elements: mainElems},
		TransferSyntaxUID: tsUID,
		ByteOrder:         byteOrder,
		Implicit:          implicit,
		cursor:            cur,
		stream:            r,
	}
	fo.Flags = computeFlags(fo, cur != nil)
	return fo, nil
}

type fileFormat int

const (
	formatPreamble fileFormat = iota
	formatImplicitLE
	formatExplicitLE
	formatExplicitBE
)

// knownVRs backs the explicit-VR probe in detectFormat: any 2-byte ASCII
// code not in this set cannot be an explicit-VR header, so the stream must
// be implicit-VR instead.
var knownVRs = map[string]bool{
	"AE": true, "AS": true, "AT": true, "CS": true, "DA": true, "DS": true,
	"DT": true, "FL": true, "FD": true, "IS": true, "LO": true, "LT": true,
	"OB": true, "OD": true, "OF": true, "OL": true, "OW": true, "PN": true,
	"SH": true, "SL": true, "SQ": true, "SS": true, "ST": true, "TM": true,
	"UC": true, "UI": true, "UL": true, "UN": true, "UR": true, "US": true,
	"UT": true,
}

// detectFormat implements spec.md §4.1's ordered format probe: preamble +
// "DICM", then a raw dataset guessed as implicit-LE, explicit-LE, or
// explicit-BE by inspecting the first element header.
func detectFormat(r io.ReadSeeker) (fileFormat, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}
	head := make([]byte, 132)
	n, _ := io.ReadFull(r, head)
	if n == 132 && string(head[128:132]) == "DICM" {
		if _, err := r.Seek(132, io.SeekStart); err != nil {
			return 0, err
		}
		return formatPreamble, nil
	}

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}
	probe := make([]byte, 8)
	n, _ = io.ReadFull(r, probe)
	if n < 8 {
		return 0, fmt.Errorf("dcm: source too short to contain a data element")
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}

	// The VR text at offset 4:6 is plain ASCII regardless of byte order —
	// only the multi-byte integer fields (group, element, length) are
	// affected by endianness — so a known VR there means the stream is
	// explicit-VR of *some* byte order; which one is decided by whichever
	// reading makes the group plausible (even, in the range this library
	// recognizes).
	if knownVRs[string(probe[4:6])] {
		groupLE := binary.LittleEndian.Uint16(probe[0:2])
		groupBE := binary.BigEndian.Uint16(probe[0:2])
		if groupLE%2 == 0 && groupLE <= 0x7FE1 {
			return formatExplicitLE, nil
		}
		if groupBE%2 == 0 && groupBE <= 0x7FE1 {
			return formatExplicitBE, nil
		}
		return formatExplicitLE, nil
	}
	return formatImplicitLE, nil
}

// parseFileMeta reads group-0002 elements in explicit-VR little-endian,
// starting right after the "DICM" magic. Grounded on element.go's
// ParseFileHeader.
func parseFileMeta(d *dcmio.Decoder) ([]*Element, error) {
	d.PushTransferSyntax(binary.LittleEndian, dcmio.ExplicitVR)
	defer d.PopTransferSyntax()

	groupLengthElem, err := readElement(d, ReadOptions{})
	if err != nil {
		return nil, err
	}
	if groupLengthElem.Tag != dcmtag.FileMetaInformationGroupLength {
		return nil, fmt.Errorf("dcm: expected FileMetaInformationGroupLength, found %s", dcmtag.DebugString(groupLengthElem.Tag))
	}
	groupLength, err := groupLengthElem.GetUInt32()
	if err != nil {
		return nil, err
	}

	metaElems := []*Element{groupLengthElem}
	d.PushLimit(int64(groupLength))
	defer d.PopLimit()
	for !d.EOF() {
		e, err := readElement(d, ReadOptions{})
		if err != nil {
			return nil, err
		}
		metaElems = append(metaElems, e)
	}
	return metaElems, d.Error()
}

// resolveDatasetSyntax determines the dataset's byte order/VR-encoding and
// canonical transfer syntax UID, defaulting to implicit-VR little-endian
// when file-meta is absent (spec.md §3 invariant).
func resolveDatasetSyntax(fileMeta *Dataset, format fileFormat) (binary.ByteOrder, dcmio.IsImplicitVR, string) {
	if elem, err := fileMeta.FindElementByTag(dcmtag.TransferSyntaxUID); err == nil {
		if uid, err := elem.GetString(); err == nil {
			uid = strings.TrimRight(uid, " \x00")
			if bo, impl, err := dcmio.ParseTransferSyntaxUID(uid); err == nil {
				return bo, impl, uid
			}
			dcmlog.Warnf("dcm: unrecognized TransferSyntaxUID %q, falling back to format heuristic", uid)
		}
	}
	switch format {
	case formatExplicitBE:
		return binary.BigEndian, dcmio.ExplicitVR, dcmuid.ExplicitVRBigEndian
	case formatExplicitLE:
		return binary.LittleEndian, dcmio.ExplicitVR, dcmuid.ExplicitVRLittleEndian
	default:
		return binary.LittleEndian, dcmio.ImplicitVR, dcmuid.ImplicitVRLittleEndian
	}
}

// stopSignal is returned by readElement instead of an error to tell the
// top-level reader loop to stop without treating the condition as a parse
// failure: reaching PixelData, a StopAtTag boundary, or an item/sequence
// delimiter. It carries the header fields the caller needs to build a cursor.
type stopSignal struct {
	tag             dcmtag.Tag
	vr              string
	undefinedLength bool
	length          uint32
	valueOffset     int64
}

func (s *stopSignal) Error() string { return "dcm: internal stop signal (not a real error)" }

// readTopLevel reads dataset elements until EOF, a stopSignal, or an error.
// It installs SpecificCharacterSet decoders as they are encountered and
// applies ReturnTags/StopAtTag filtering. Grounded on element.go's
// ReadDataSet.
func readTopLevel(d *dcmio.Decoder, opts ReadOptions) ([]*Element, *cursor, error) {
	var elems []*Element
	for !d.EOF() {
		startPos := d.BytesRead()

		e, err := readElement(d, opts)
		if d.BytesRead() <= startPos && err == nil {
			return nil, nil, fmt.Errorf("dcm: parser made no progress at offset %d", startPos)
		}
		if err != nil {
			if ss, ok := err.(*stopSignal); ok {
				if ss.tag == dcmtag.PixelData {
					return elems, &cursor{
						valueOffset:     ss.valueOffset,
						tag:             ss.tag,
						vr:              ss.vr,
						undefinedLength: ss.undefinedLength,
						length:          ss.length,
					}, nil
				}
				// StopAtTag boundary: nothing more to read, no pixel data
				// cursor to retain.
				return elems, nil, nil
			}
			return nil, nil, err
		}

		if e.Tag == dcmtag.SpecificCharacterSet {
			names, err := e.GetStrings()
			if err != nil {
				return nil, nil, err
			}
			cs, err := dcmio.ParseSpecificCharacterSet(names)
			if err != nil {
				return nil, nil, err
			}
			d.SetCodingSystem(cs)
		}

		if opts.ReturnTags == nil || tagInList(e.Tag, opts.ReturnTags) {
			elems = append(elems, e)
		}
	}
	return elems, nil, d.Error()
}

func tagInList(tag dcmtag.Tag, tags []dcmtag.Tag) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

// readElement reads one data element header and, depending on its tag and
// VR, its value (for SQ/Item, recursively). It returns a *stopSignal
// instead of an error when the caller should stop without treating the
// condition as a failure (reaching PixelData, a StopAtTag boundary, or an
// ItemDelimitationItem/SequenceDelimitationItem).
// Grounded on element.go's ReadElement.
func readElement(d *dcmio.Decoder, opts ReadOptions) (*Element, error) {
	tag := readTag(d)

	if opts.StopAtTag != nil && tag.Group >= opts.StopAtTag.Group && tag.Element >= opts.StopAtTag.Element {
		return nil, &stopSignal{tag: tag}
	}

	_, implicit := d.TransferSyntax()
	if tag.Group == dcmtag.Item.Group {
		implicit = dcmio.ImplicitVR
	}

	var vr string
	var vl uint32
	if implicit == dcmio.ImplicitVR {
		vr, vl = readImplicitHeader(d, tag)
	} else {
		vr, vl = readExplicitHeader(d, tag)
	}
	if d.Error() != nil {
		return nil, d.Error()
	}

	if vr == "UN" && vl == UndefinedLength {
		// PS3.5 6.2.2 allows VR=UN with undefined length for a Data
		// Element whose true VR is SQ but was not resolvable at encode
		// time; treat it as SQ, same as the teacher.
		vr = "SQ"
	}

	if tag == dcmtag.PixelData {
		return nil, &stopSignal{
			tag: tag, vr: vr, undefinedLength: vl == UndefinedLength, length: vl,
			valueOffset: d.BytesRead(),
		}
	}

	if tag == dcmtag.ItemDelimitationItem || tag == dcmtag.SequenceDelimitationItem {
		// These carry no value of their own; they only mark the end of
		// the undefined-length item/sequence that contains them.
		return nil, &stopSignal{tag: tag, vr: vr, length: vl}
	}

	elem := &Element{Tag: tag, VR: vr, UndefinedLength: vl == UndefinedLength}

	switch {
	case vr == "SQ":
		items, err := readSequenceItems(d, vl)
		if err != nil {
			return nil, err
		}
		elem.Value = items

	case tag == dcmtag.Item:
		members, err := readItemMembers(d, vl)
		if err != nil {
			return nil, err
		}
		elem.Value = members

	default:
		if vl == UndefinedLength {
			return nil, fmt.Errorf("dcm: %s: undefined length not allowed for VR=%s", dcmtag.DebugString(tag), vr)
		}
		d.PushLimit(int64(vl))
		value, err := readScalarValue(d, tag, vr, vl)
		d.PopLimit()
		if err != nil {
			return nil, err
		}
		elem.Value = value
	}
	return elem, nil
}

func readSequenceItems(d *dcmio.Decoder, vl uint32) ([]interface{}, error) {
	var items []interface{}
	if vl == UndefinedLength {
		for {
			item, err := readElement(d, ReadOptions{})
			if err != nil {
				if ss, ok := err.(*stopSignal); ok && ss.tag == dcmtag.SequenceDelimitationItem {
					break
				}
				return nil, err
			}
			if item.Tag != dcmtag.Item {
				return nil, fmt.Errorf("dcm: expected Item in undefined-length sequence, found %s", dcmtag.DebugString(item.Tag))
			}
			items = append(items, item)
		}
		return items, nil
	}
	d.PushLimit(int64(vl))
	defer d.PopLimit()
	for !d.EOF() {
		item, err := readElement(d, ReadOptions{})
		if err != nil {
			return nil, err
		}
		if item.Tag != dcmtag.Item {
			return nil, fmt.Errorf("dcm: expected Item in sequence, found %s", dcmtag.DebugString(item.Tag))
		}
		items = append(items, item)
	}
	return items, nil
}

func readItemMembers(d *dcmio.Decoder, vl uint32) ([]interface{}, error) {
	var members []interface{}
	if vl == UndefinedLength {
		for {
			sub, err := readElement(d, ReadOptions{})
			if err != nil {
				if ss, ok := err.(*stopSignal); ok && ss.tag == dcmtag.ItemDelimitationItem {
					break
				}
				return nil, err
			}
			members = append(members, sub)
		}
		return members, nil
	}
	d.PushLimit(int64(vl))
	defer d.PopLimit()
	for !d.EOF() {
		sub, err := readElement(d, ReadOptions{})
		if err != nil {
			return nil, err
		}
		members = append(members, sub)
	}
	return members, nil
}

// padByte returns the padding byte used to round a string-class value to
// an even length on write, and trimmed on read (spec.md §4.1: "SP or NUL,
// depending on VR").
func padByte(vr string) byte {
	if vr == "UI" {
		return 0
	}
	return ' '
}

func readScalarValue(d *dcmio.Decoder, tag dcmtag.Tag, vr string, vl uint32) ([]interface{}, error) {
	switch vr {
	case "DA", "TM", "DT":
		s := strings.Trim(d.ReadString(int(vl)), string(padByte(vr))+"\x00")
		return []interface{}{s}, nil
	case "AT":
		var out []interface{}
		for !d.EOF() {
			out = append(out, dcmtag.Tag{Group: d.ReadUInt16(), Element: d.ReadUInt16()})
		}
		return out, d.Error()
	case "OW":
		if vl%2 != 0 {
			return nil, fmt.Errorf("dcm: %s: OW requires even length, found %d", dcmtag.DebugString(tag), vl)
		}
		return []interface{}{d.ReadBytes(int(vl))}, d.Error()
	case "OB", "UN":
		return []interface{}{d.ReadBytes(int(vl))}, d.Error()
	case "LT", "UT":
		return []interface{}{d.ReadString(int(vl))}, nil
	case "UL":
		var out []interface{}
		for !d.EOF() {
			out = append(out, d.ReadUInt32())
		}
		return out, d.Error()
	case "SL":
		var out []interface{}
		for !d.EOF() {
			out = append(out, d.ReadInt32())
		}
		return out, d.Error()
	case "US":
		var out []interface{}
		for !d.EOF() {
			out = append(out, d.ReadUInt16())
		}
		return out, d.Error()
	case "SS":
		var out []interface{}
		for !d.EOF() {
			out = append(out, d.ReadInt16())
		}
		return out, d.Error()
	case "FL", "OF":
		var out []interface{}
		for !d.EOF() {
			out = append(out, d.ReadFloat32())
		}
		return out, d.Error()
	case "FD", "OD":
		var out []interface{}
		for !d.EOF() {
			out = append(out, d.ReadFloat64())
		}
		return out, d.Error()
	default:
		raw := strings.Trim(d.ReadString(int(vl)), string(padByte(vr))+"\x00")
		var out []interface{}
		if len(raw) > 0 {
			for _, s := range strings.Split(raw, "\\") {
				out = append(out, s)
			}
		}
		return out, nil
	}
}

func readTag(d *dcmio.Decoder) dcmtag.Tag {
	group := d.ReadUInt16()
	element := d.ReadUInt16()
	return dcmtag.Tag{Group: group, Element: element}
}

// readImplicitHeader reads a 4-byte length and resolves VR from the tag
// dictionary (spec.md §4.1's implicit-VR rule).
func readImplicitHeader(d *dcmio.Decoder, tag dcmtag.Tag) (string, uint32) {
	vr := dcmtag.VRForUnknown(tag)
	vl := d.ReadUInt32()
	if vl != UndefinedLength && vl%2 != 0 {
		d.SetErrorf("dcm: odd length %d for implicit-VR %s %s", vl, vr, dcmtag.DebugString(tag))
	}
	return vr, vl
}

// readExplicitHeader reads the 2-byte VR code and a VR-dependent length
// field (2 or 4 bytes; PS3.5 7.1.2).
func readExplicitHeader(d *dcmio.Decoder, tag dcmtag.Tag) (string, uint32) {
	vr := d.ReadString(2)
	var vl uint32
	switch vr {
	case "OB", "OD", "OF", "OL", "OW", "SQ", "UN", "UC", "UR", "UT":
		d.Skip(2) // reserved, must be zero
		vl = d.ReadUInt32()
	default:
		vl = uint32(d.ReadUInt16())
		if vl == 0xFFFF {
			vl = UndefinedLength
		}
	}
	if vl != UndefinedLength && vl%2 != 0 {
		d.SetErrorf("dcm: odd length %d for explicit-VR %s %s", vl, vr, dcmtag.DebugString(tag))
	}
	return vr, vl
}

// computeFlags derives spec.md §4.7's cached flags from the parsed object.
func computeFlags(fo *FileObject, isImage bool) Flags {
	f := Flags{IsImage: isImage}

	sopClassUID := ""
	if elem, err := fo.FileMeta.FindElementByTag(dcmtag.MediaStorageSOPClassUID); err == nil {
		sopClassUID, _ = elem.GetString()
	}
	f.IsDICOMDIR = sopClassUID == dcmuid.DICOMDIRSOPClass
	f.IsSR = dcmuid.IsStructuredReport(sopClassUID)
	f.IsKIN = dcmuid.IsKeyObjectSelection(sopClassUID)

	if f.IsImage {
		if p, err := dcmio.LookupParams(fo.TransferSyntaxUID); err == nil {
			f.IsEncapsulated = p.Encapsulated
		}
	}

	conceptCode := firstConceptCodeValue(fo.Dataset)
	f.IsManifest = f.IsKIN && manifestConceptCodes[conceptCode]
	f.IsAdditionalTFInfo = f.IsSR && conceptCode == additionalTFInfoConceptCode
	return f
}

func firstConceptCodeValue(ds *Dataset) string {
	seq, err := ds.FindElementByTag(dcmtag.ConceptNameCodeSeq)
	if err != nil {
		return ""
	}
	items := seq.Items()
	if len(items) == 0 {
		return ""
	}
	// items[0] is the Item element; its Value holds the item's member
	// elements directly (not a further level of nesting).
	var members []*Element
	for _, v := range items[0].Value {
		if e, ok := v.(*Element); ok {
			members = append(members, e)
		}
	}
	codeElem, err := FindElementByTag(members, dcmtag.CodeValue)
	if err != nil {
		return ""
	}
	value, err := codeElem.GetString()
	if err != nil {
		return ""
	}
	return value
}

// Close releases the underlying stream, if any. Double-close is a no-op
// (spec.md §7).
func (fo *FileObject) Close() error {
	if fo.closed {
		return nil
	}
	fo.closed = true
	if fo.closer != nil {
		return fo.closer.Close()
	}
	return nil
}
