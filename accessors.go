package dcm

import (
	"strconv"
	"strings"

	"github.com/rsnactp/dcm/dcmpath"
	"github.com/rsnactp/dcm/dcmtag"
)

// Accessors walk a tag-address string (dcmpath.Parse grammar) through a
// FileObject's dataset, descending into the first item of any intervening
// sequence, per spec.md §4.4. A missing element at any level of the walk
// returns errElementMissing; the typed Get* wrappers turn that into the
// caller-supplied default rather than surfacing an error, matching
// odincare-odicom's DataSet.GetUint16/GetStrings fallback convention.

// fileMetaFallthroughLimit is the tag32 ceiling under which a lookup that
// misses in the main dataset retries against FileMeta: groups 0x0000-0x0007
// are reserved for file-meta elements, so a bare top-level tag in that range
// plausibly names a file-meta attribute even when addressed without a
// dedicated file-meta prefix.
const fileMetaFallthroughLimit = 0x80000

func tag32(t dcmtag.Tag) uint32 {
	return uint32(t.Group)<<16 | uint32(t.Element)
}

// findElement resolves a multi-segment tag address against elems, descending
// into the first item of each intermediate SQ element.
func findElement(elems []*Element, tags []dcmtag.Tag) (*Element, error) {
	cur := elems
	for i, tag := range tags {
		elem, err := FindElementByTag(cur, tag)
		if err != nil {
			return nil, errElementMissing
		}
		if i == len(tags)-1 {
			return elem, nil
		}
		items := elem.Items()
		if len(items) == 0 {
			return nil, errElementMissing
		}
		cur = itemMembers(items[0])
	}
	return nil, errElementMissing
}

func itemMembers(item *Element) []*Element {
	members := make([]*Element, 0, len(item.Value))
	for _, v := range item.Value {
		if e, ok := v.(*Element); ok {
			members = append(members, e)
		}
	}
	return members
}

// resolve walks path against fo.Dataset, then (for a DICOMDIR object) against
// the first DirectoryRecordSeq item, then falls through to fo.FileMeta when
// the address names a single low-numbered tag that the dataset lacks.
func (fo *FileObject) resolve(path string) (*Element, error) {
	tags, err := dcmpath.Parse(path)
	if err != nil || len(tags) == 0 {
		return nil, errElementMissing
	}
	if elem, err := findElement(fo.Dataset.Elements, tags); err == nil {
		return elem, nil
	}
	if fo.Flags.IsDICOMDIR {
		if elem, err := findElement(fo.firstDirectoryRecord(), tags); err == nil {
			return elem, nil
		}
	}
	if len(tags) == 1 && tag32(tags[0])&0x7FFFFFFF < fileMetaFallthroughLimit && fo.FileMeta != nil {
		if elem, err := FindElementByTag(fo.FileMeta.Elements, tags[0]); err == nil {
			return elem, nil
		}
	}
	return nil, errElementMissing
}

// firstDirectoryRecord returns the member elements of the first item of the
// root dataset's DirectoryRecordSeq (0004,1220), or nil if absent — the
// DICOMDIR routing spec.md §3 requires: patient/study/series/instance-level
// accessors on a DICOMDIR object address the first directory record's
// attributes, not the (nearly empty) root dataset.
func (fo *FileObject) firstDirectoryRecord() []*Element {
	seq, err := FindElementByTag(fo.Dataset.Elements, dcmtag.DirectoryRecordSeq)
	if err != nil {
		return nil
	}
	items := seq.Items()
	if len(items) == 0 {
		return nil
	}
	return itemMembers(items[0])
}

// ctpOwnerString returns the element's value reinterpreted as a raw string
// (no VR decoding), when it is a private element whose owner block is
// "CTP" — the private-dictionary convention odincare-odicom's accessor layer
// used for CTP-tagged anonymizer bookkeeping blocks (spec.md §4.4).
func ctpOwnerString(elems []*Element, elem *Element) (string, bool) {
	if !dcmtag.IsPrivate(elem.Tag.Group) {
		return "", false
	}
	owner := dcmtag.PrivateCreatorTag(elem.Tag)
	ownerElem, err := FindElementByTag(elems, owner)
	if err != nil {
		return "", false
	}
	name, err := ownerElem.GetString()
	if err != nil || strings.TrimSpace(name) != "CTP" {
		return "", false
	}
	if raw, err := elem.GetBytes(); err == nil {
		return string(raw), true
	}
	if strs, err := elem.GetStrings(); err == nil {
		return strings.Join(strs, "\\"), true
	}
	return "", false
}

// GetString returns the joined (backslash-separated) string value named by
// path, or def if absent. It is the multi-valued accessor's default
// separator form (spec.md §4.4).
func (fo *FileObject) GetString(path string, def string) string {
	return fo.GetStringSep(path, "\\", def)
}

// GetStringSep is GetString with an explicit join separator, e.g. "|" for
// the explicit multi-string accessor variant.
func (fo *FileObject) GetStringSep(path string, sep string, def string) string {
	elem, err := fo.resolve(path)
	if err != nil {
		return def
	}
	if s, ok := ctpOwnerString(fo.Dataset.Elements, elem); ok {
		return s
	}
	strs, err := elem.GetStrings()
	if err != nil || len(strs) == 0 {
		return def
	}
	return strings.Join(strs, sep)
}

// GetBytes returns the raw bytes named by path, or def if absent.
func (fo *FileObject) GetBytes(path string, def []byte) []byte {
	elem, err := fo.resolve(path)
	if err != nil {
		return def
	}
	b, err := elem.GetBytes()
	if err != nil {
		return def
	}
	return b
}

// GetInt decodes the first string value named by path as a DICOM IS/US/SS/
// UL/SL integer and returns it, or def on any absence or coercion failure.
func (fo *FileObject) GetInt(path string, def int64) int64 {
	elem, err := fo.resolve(path)
	if err != nil {
		return def
	}
	switch elem.VR {
	case "US", "SS", "UL", "SL":
		if len(elem.Value) == 0 {
			return def
		}
		switch v := elem.Value[0].(type) {
		case uint16:
			return int64(v)
		case int16:
			return int64(v)
		case uint32:
			return int64(v)
		case int32:
			return int64(v)
		}
		return def
	default:
		s, err := elem.GetString()
		if err != nil {
			if strs, err2 := elem.GetStrings(); err2 == nil && len(strs) > 0 {
				s = strs[0]
			} else {
				return def
			}
		}
		n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return def
		}
		return n
	}
}

// GetFloat decodes the first string value named by path as a DICOM DS/FL/FD
// real and returns it, or def on any absence or coercion failure.
func (fo *FileObject) GetFloat(path string, def float64) float64 {
	elem, err := fo.resolve(path)
	if err != nil {
		return def
	}
	switch elem.VR {
	case "FL", "FD":
		if len(elem.Value) == 0 {
			return def
		}
		switch v := elem.Value[0].(type) {
		case float32:
			return float64(v)
		case float64:
			return v
		}
		return def
	default:
		s, err := elem.GetString()
		if err != nil {
			if strs, err2 := elem.GetStrings(); err2 == nil && len(strs) > 0 {
				s = strs[0]
			} else {
				return def
			}
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return def
		}
		return f
	}
}

// SetString sets the value named by path to a single string, creating the
// element if it did not previously exist. Private-group tags are written
// with VR forced to "UT" (spec.md §4.4: unrecognized private data is opaque
// text, not a dictionary-typed value); an empty PN value is written as a
// single space, since DICOM disallows a zero-length PN in some contexts
// while the caller's intent to clear the field should still be honored.
func (fo *FileObject) SetString(path string, value string) error {
	tags, err := dcmpath.Parse(path)
	if err != nil || len(tags) == 0 {
		return errElementMissing
	}
	tag := tags[len(tags)-1]

	cur := fo.Dataset.Elements
	var parentItem *Element
	for _, t := range tags[:len(tags)-1] {
		elem, err := FindElementByTag(cur, t)
		if err != nil {
			return errElementMissing
		}
		items := elem.Items()
		if len(items) == 0 {
			return errElementMissing
		}
		parentItem = items[0]
		cur = itemMembers(parentItem)
	}

	vr := dcmtag.VRForUnknown(tag)
	if dcmtag.IsPrivate(tag.Group) {
		vr = "UT"
	}
	v := value
	if vr == "PN" && v == "" {
		v = " "
	}

	if existing, err := FindElementByTag(cur, tag); err == nil {
		existing.VR = vr
		existing.Value = []interface{}{v}
		return nil
	}

	newElem := &Element{Tag: tag, VR: vr, Value: []interface{}{v}}
	if parentItem == nil {
		fo.Dataset.Elements = append(fo.Dataset.Elements, newElem)
		return nil
	}
	parentItem.Value = append(parentItem.Value, newElem)
	return nil
}
