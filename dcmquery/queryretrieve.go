package dcmquery

import (
	"fmt"

	"github.com/gobwas/glob"

	"github.com/rsnactp/dcm"
	"github.com/rsnactp/dcm/dcmtag"
)

// MatchQueryRetrieve checks whether ds satisfies a single C-FIND style
// identifier element filter, adapted from odincare-odicom's Query/
// queryElement/matchString glob matching. On a universal match (an empty
// filter value, or a filter value of all "*", per PS3.4 C.2.2.2.4) it
// reports a match, with matched set to ds's element for the filter's tag if
// ds has one and nil otherwise.
func MatchQueryRetrieve(ds *dcm.Dataset, filter *dcm.Element) (match bool, matched *dcm.Element, err error) {
	if len(filter.Value) > 1 {
		return false, nil, fmt.Errorf("dcmquery: filter %s carries multiple values, which PS3.4 C.2.2.2.1 forbids", dcmtag.DebugString(filter.Tag))
	}

	if filter.Tag == dcmtag.SpecificCharacterSet {
		return true, nil, nil
	}

	elem, err := ds.FindElementByTag(filter.Tag)
	if err != nil {
		elem = nil
	}

	ok, err := matchElement(elem, filter)
	if !ok {
		return false, nil, err
	}
	return true, elem, nil
}

func matchElement(elem *dcm.Element, filter *dcm.Element) (bool, error) {
	if isUniversalFilter(filter) {
		return true, nil
	}

	if filter.VR == "SQ" {
		// Sequence-valued matching keys (e.g. a request identifier's nested
		// code sequence) are accepted unconditionally: PS3.4 leaves their
		// matching semantics to the SCP's model of the information
		// hierarchy, which is out of scope here.
		return true, nil
	}

	if elem == nil {
		return false, nil
	}

	if filter.VR != elem.VR {
		return false, fmt.Errorf("dcmquery: VR mismatch on %s: filter is %s, element is %s", dcmtag.DebugString(filter.Tag), filter.VR, elem.VR)
	}

	if filter.VR == "UI" {
		for _, want := range filter.Value {
			for _, have := range elem.Value {
				if want.(string) == have.(string) {
					return true, nil
				}
			}
		}
		return false, nil
	}

	switch want := filter.Value[0].(type) {
	case int32:
		for _, have := range elem.Value {
			if want == have.(int32) {
				return true, nil
			}
		}
	case int16:
		for _, have := range elem.Value {
			if want == have.(int16) {
				return true, nil
			}
		}
	case uint32:
		for _, have := range elem.Value {
			if want == have.(uint32) {
				return true, nil
			}
		}
	case uint16:
		for _, have := range elem.Value {
			if want == have.(uint16) {
				return true, nil
			}
		}
	case float32:
		for _, have := range elem.Value {
			if want == have.(float32) {
				return true, nil
			}
		}
	case float64:
		for _, have := range elem.Value {
			if want == have.(float64) {
				return true, nil
			}
		}
	case string:
		for _, have := range elem.Value {
			return matchGlob(want, have.(string))
		}
	default:
		return false, fmt.Errorf("dcmquery: unsupported filter value type on %s: %v", dcmtag.DebugString(filter.Tag), filter.Value)
	}
	return false, nil
}

func matchGlob(pattern, value string) (bool, error) {
	g, err := glob.Compile(pattern)
	if err != nil {
		return false, err
	}
	return g.Match(value), nil
}

func isUniversalGlob(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] != '*' {
			return false
		}
	}
	return true
}

func isUniversalFilter(filter *dcm.Element) bool {
	if len(filter.Value) == 0 {
		return true
	}
	switch dcmtag.GetVRKind(filter.Tag, filter.VR) {
	case dcmtag.VRBytes:
		return len(filter.Value[0].([]byte)) == 0
	case dcmtag.VRString, dcmtag.VRDate:
		pattern := filter.Value[0].(string)
		return pattern == "" || isUniversalGlob(pattern)
	case dcmtag.VRStringList:
		return isUniversalGlob(filter.Value[0].(string))
	}
	return false
}
