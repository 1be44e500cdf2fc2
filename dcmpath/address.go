// Package dcmpath parses tag address specifications — the strings used
// throughout accessors and the predicate DSL to name an element, optionally
// descending through sequences. Grounded on dicomtag.ParseHex's hex-literal
// parsing, generalized per spec.md §4.3 to dictionary names and "::"
// sequence descent.
package dcmpath

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rsnactp/dcm/dcmtag"
)

// Parse splits s on "::" and resolves each segment to a Tag, in descent
// order (e.g. "DirectoryRecordSeq::PatientID" -> two tags). A segment that
// resolves to no known dictionary name and is not valid hex yields the
// empty address Tag{0,0}, per spec.md §4.3 ("unknown names resolve to 0").
func Parse(s string) ([]dcmtag.Tag, error) {
	segments := strings.Split(s, "::")
	tags := make([]dcmtag.Tag, 0, len(segments))
	for _, seg := range segments {
		tag, err := parseSegment(seg)
		if err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

func parseSegment(seg string) (dcmtag.Tag, error) {
	seg = strings.TrimSpace(seg)
	seg = strings.Trim(seg, "[]()")
	seg = strings.TrimSpace(seg)
	if seg == "" {
		return dcmtag.Tag{}, fmt.Errorf("dcmpath: empty tag address segment")
	}

	if strings.Contains(seg, ",") {
		parts := strings.SplitN(seg, ",", 2)
		group, ok1 := parseHexGroup(strings.TrimSpace(parts[0]))
		elem, ok2 := parseHexGroup(strings.TrimSpace(parts[1]))
		if ok1 && ok2 {
			return dcmtag.Tag{Group: group, Element: elem}, nil
		}
		return dcmtag.Tag{}, nil
	}

	if isHexRun(seg) {
		padded := seg
		if len(padded) < 8 {
			padded = strings.Repeat("0", 8-len(padded)) + padded
		}
		if len(padded) == 8 {
			group, err1 := strconv.ParseUint(padded[:4], 16, 16)
			elem, err2 := strconv.ParseUint(padded[4:], 16, 16)
			if err1 == nil && err2 == nil {
				return dcmtag.Tag{Group: uint16(group), Element: uint16(elem)}, nil
			}
		}
		return dcmtag.Tag{}, nil
	}

	if info, err := dcmtag.FindByName(seg); err == nil {
		return info.Tag, nil
	}
	return dcmtag.Tag{}, nil
}

// parseHexGroup left-pads a hex literal to 4 digits before parsing, so
// both "10" and "0010" name group/element 0x0010.
func parseHexGroup(s string) (uint16, bool) {
	if !isHexRun(s) || len(s) > 4 {
		return 0, false
	}
	padded := strings.Repeat("0", 4-len(s)) + s
	v, err := strconv.ParseUint(padded, 16, 16)
	if err != nil {
		return 0, false
	}
	return uint16(v), true
}

func isHexRun(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !((r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')) {
			return false
		}
	}
	return true
}
