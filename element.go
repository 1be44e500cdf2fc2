// Package dcm implements the core of a DICOM object access library: a
// streaming Part-10 parser/serializer, a tag-addressed element value model,
// and the accessors built on top of it. Grounded on odincare-odicom's
// element.go and writer.go.
package dcm

import (
	"fmt"
	"strings"

	"github.com/rsnactp/dcm/dcmtag"
)

// Element is a single DICOM data element: a tag, its Value Representation,
// and a value whose Go type depends on the VR (see dcmtag.GetVRKind):
//
//   - VRStringList: []interface{} of string
//   - VRString:     []interface{} of exactly one string (LT, UT)
//   - VRDate:       []interface{} of exactly one string (DA, TM, DT)
//   - VRBytes:      []interface{} of exactly one []byte (OB, OW, UN)
//   - VRUInt16List/VRInt16List/VRUInt32List/VRInt32List/VRFloat32List/VRFloat64List: []interface{} of the matching Go numeric type
//   - VRTagList:    []interface{} of dcmtag.Tag (AT)
//   - VRSequence:   []interface{} of *Element, each with Tag == dcmtag.Item
//   - VRItem:       []interface{} of *Element (the contents of one item)
//
// Use NewElement to construct one from scratch; parsing fills VR and
// UndefinedLength from the stream, honoring a non-conformant file's
// explicit-VR declaration even when it disagrees with the dictionary.
type Element struct {
	Tag             dcmtag.Tag
	VR              string
	Value           []interface{}
	UndefinedLength bool
}

// Dataset is an ordered collection of elements, in on-disk order.
type Dataset struct {
	Elements []*Element
}

// NewElement builds an Element from a tag and a list of values, validating
// that each value's Go type matches the tag's VR kind.
func NewElement(tag dcmtag.Tag, values ...interface{}) (*Element, error) {
	info, err := dcmtag.Find(tag)
	if err != nil {
		return nil, err
	}

	e := &Element{Tag: tag, VR: info.VR, Value: make([]interface{}, len(values))}
	kind := dcmtag.GetVRKind(tag, info.VR)

	for i, v := range values {
		ok := false
		switch kind {
		case dcmtag.VRStringList, dcmtag.VRString, dcmtag.VRDate:
			_, ok = v.(string)
		case dcmtag.VRBytes, dcmtag.VRPixelData:
			_, ok = v.([]byte)
		case dcmtag.VRUInt16List:
			_, ok = v.(uint16)
		case dcmtag.VRUInt32List:
			_, ok = v.(uint32)
		case dcmtag.VRInt16List:
			_, ok = v.(int16)
		case dcmtag.VRInt32List:
			_, ok = v.(int32)
		case dcmtag.VRFloat32List:
			_, ok = v.(float32)
		case dcmtag.VRFloat64List:
			_, ok = v.(float64)
		case dcmtag.VRTagList:
			_, ok = v.(dcmtag.Tag)
		case dcmtag.VRSequence:
			var sub *Element
			sub, ok = v.(*Element)
			ok = ok && sub.Tag == dcmtag.Item
		case dcmtag.VRItem:
			_, ok = v.(*Element)
		}
		if !ok {
			return nil, fmt.Errorf("dcm: %s: wrong payload type for NewElement: kind %v, value %v", dcmtag.DebugString(tag), kind, v)
		}
		e.Value[i] = v
	}
	return e, nil
}

// MustNewElement is NewElement, but panics on error. Intended for
// construction from compile-time-known tags and values.
func MustNewElement(tag dcmtag.Tag, values ...interface{}) *Element {
	e, err := NewElement(tag, values...)
	if err != nil {
		panic(err)
	}
	return e
}

// GetString returns the element's single string value. It errors if the
// element holds zero or more than one value, or the value is not a string.
func (e *Element) GetString() (string, error) {
	if len(e.Value) != 1 {
		return "", fmt.Errorf("dcm: %s: found %d value(s), want 1", dcmtag.DebugString(e.Tag), len(e.Value))
	}
	v, ok := e.Value[0].(string)
	if !ok {
		return "", fmt.Errorf("dcm: %s: value is not a string", dcmtag.DebugString(e.Tag))
	}
	return v, nil
}

// MustGetString is GetString, but panics on error.
func (e *Element) MustGetString() string {
	v, err := e.GetString()
	if err != nil {
		panic(err)
	}
	return v
}

// GetStrings returns every value as a string, erroring if any value is not
// a string.
func (e *Element) GetStrings() ([]string, error) {
	out := make([]string, 0, len(e.Value))
	for _, v := range e.Value {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("dcm: %s: value is not a string", dcmtag.DebugString(e.Tag))
		}
		out = append(out, s)
	}
	return out, nil
}

// GetBytes returns the element's single []byte value (OB/OW/UN).
func (e *Element) GetBytes() ([]byte, error) {
	if len(e.Value) != 1 {
		return nil, fmt.Errorf("dcm: %s: found %d value(s), want 1", dcmtag.DebugString(e.Tag), len(e.Value))
	}
	v, ok := e.Value[0].([]byte)
	if !ok {
		return nil, fmt.Errorf("dcm: %s: value is not bytes", dcmtag.DebugString(e.Tag))
	}
	return v, nil
}

// GetUInt32 returns the element's single uint32 value.
func (e *Element) GetUInt32() (uint32, error) {
	if len(e.Value) != 1 {
		return 0, fmt.Errorf("dcm: %s: found %d value(s), want 1", dcmtag.DebugString(e.Tag), len(e.Value))
	}
	v, ok := e.Value[0].(uint32)
	if !ok {
		return 0, fmt.Errorf("dcm: %s: value is not a uint32", dcmtag.DebugString(e.Tag))
	}
	return v, nil
}

// MustGetUInt32 is GetUInt32, but panics on error.
func (e *Element) MustGetUInt32() uint32 {
	v, err := e.GetUInt32()
	if err != nil {
		panic(err)
	}
	return v
}

// Items returns the element's nested datasets, valid when VR == "SQ" (each
// value is a *Element with Tag == dcmtag.Item whose own Value holds the
// item's member elements).
func (e *Element) Items() []*Element {
	items := make([]*Element, 0, len(e.Value))
	for _, v := range e.Value {
		if it, ok := v.(*Element); ok {
			items = append(items, it)
		}
	}
	return items
}

func elementString(e *Element, depth int) string {
	indent := strings.Repeat(" ", depth)
	suffix := ""
	if e.UndefinedLength {
		suffix = "u"
	}
	s := fmt.Sprintf("%s%s %s %s", indent, dcmtag.DebugString(e.Tag), e.VR, suffix)
	if e.VR == "SQ" || e.Tag == dcmtag.Item {
		s += fmt.Sprintf(" (#%d)[\n", len(e.Value))
		for _, v := range e.Value {
			s += elementString(v.(*Element), depth+1) + "\n"
		}
		s += indent + "]"
		return s
	}
	var sv string
	if len(e.Value) == 1 {
		sv = fmt.Sprintf("%v", e.Value[0])
	} else {
		sv = fmt.Sprintf("%v", e.Value)
	}
	if len(sv) > 1024 {
		sv = sv[:1024] + "(...)"
	}
	return s + " " + sv
}

// String renders the element and (recursively) any nested items for
// diagnostics.
func (e *Element) String() string {
	return elementString(e, 0)
}

// FindElementByTag returns the first element in elems whose Tag matches.
func FindElementByTag(elems []*Element, tag dcmtag.Tag) (*Element, error) {
	for _, e := range elems {
		if e.Tag == tag {
			return e, nil
		}
	}
	return nil, fmt.Errorf("dcm: %s: element not found", dcmtag.DebugString(tag))
}

// FindElementByName is FindElementByTag, resolving name through the tag
// dictionary first.
func FindElementByName(elems []*Element, name string) (*Element, error) {
	info, err := dcmtag.FindByName(name)
	if err != nil {
		return nil, err
	}
	return FindElementByTag(elems, info.Tag)
}

// FindElementByTag returns the first element in ds whose Tag matches.
func (ds *Dataset) FindElementByTag(tag dcmtag.Tag) (*Element, error) {
	return FindElementByTag(ds.Elements, tag)
}

// FindElementByName is FindElementByTag, resolving name through the tag
// dictionary first.
func (ds *Dataset) FindElementByName(name string) (*Element, error) {
	return FindElementByName(ds.Elements, name)
}
