package dcmio

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

// CodingSystem holds the three decoder slots a SpecificCharacterSet value
// can install. Per PS3.5 6.2, the alphabetic/ideographic/phonetic split
// only matters for PN values in a multi-component character set (e.g.
// Japanese); every other VR always uses the Ideographic slot.
type CodingSystem struct {
	Alphabetic  *encoding.Decoder
	Ideographic *encoding.Decoder
	Phonetic    *encoding.Decoder
}

// CodingSystemType selects which of CodingSystem's three decoder slots to
// use when decoding a PN component.
type CodingSystemType int

const (
	AlphabeticCodingSystem CodingSystemType = iota
	IdeographicCodingSystem
	PhoneticCodingSystem
)

// htmlEncodingNames maps a DICOM SpecificCharacterSet defined-term to the
// golang.org/x/text/encoding/htmlindex name for the matching encoding. ""
// means 7-bit ASCII, golang.org/x/text's implicit default.
var htmlEncodingNames = map[string]string{
	"":                 "",
	"ISO 2022 IR 6":    "iso-8859-1",
	"ISO_IR 13":        "shift_jis",
	"ISO 2022 IR 13":   "shift_jis",
	"ISO_IR 100":       "iso-8859-1",
	"ISO 2022 IR 100":  "iso-8859-1",
	"ISO_IR 101":       "iso-8859-2",
	"ISO 2022 IR 101":  "iso-8859-2",
	"ISO_IR 109":       "iso-8859-3",
	"ISO 2022 IR 109":  "iso-8859-3",
	"ISO_IR 110":       "iso-8859-4",
	"ISO 2022 IR 110":  "iso-8859-4",
	"ISO_IR 126":       "iso-ir-126",
	"ISO 2022 IR 126":  "iso-ir-126",
	"ISO_IR 127":       "iso-ir-127",
	"ISO 2022 IR 127":  "iso-ir-127",
	"ISO_IR 138":       "iso-ir-138",
	"ISO 2022 IR 138":  "iso-ir-138",
	"ISO_IR 144":       "iso-ir-144",
	"ISO 2022 IR 144":  "iso-ir-144",
	"ISO_IR 148":       "iso-ir-148",
	"ISO 2022 IR 148":  "iso-ir-148",
	"ISO 2022 IR 149":  "euc-kr",
	"ISO 2022 IR 159":  "iso-2022-jp",
	"ISO_IR 166":       "iso-ir-166",
	"ISO 2022 IR 166":  "iso-ir-166",
	"ISO 2022 IR 87":   "iso-2022-jp",
	"ISO_IR 192":       "utf-8",
	"GB18030":          "utf-8",
}

// ParseSpecificCharacterSet builds the CodingSystem described by the
// SpecificCharacterSet (0008,0005) element's string values. Cf. PS3.2
// Annex D.6.2. The zero, one, two, and three-component forms map onto the
// Alphabetic/Ideographic/Phonetic slots as described in CodingSystem's doc
// comment.
func ParseSpecificCharacterSet(encodingNames []string) (CodingSystem, error) {
	var decoders []*encoding.Decoder

	for _, name := range encodingNames {
		htmlName, ok := htmlEncodingNames[name]
		if !ok {
			return CodingSystem{}, fmt.Errorf("dcmio: unknown character set '%s'", name)
		}
		var dec *encoding.Decoder
		if htmlName != "" {
			enc, err := htmlindex.Get(htmlName)
			if err != nil {
				return CodingSystem{}, fmt.Errorf("dcmio: encoding %s (for %s) not found: %w", htmlName, name, err)
			}
			dec = enc.NewDecoder()
		}
		logrus.Debugf("dcmio.ParseSpecificCharacterSet: using coding system %q", name)
		decoders = append(decoders, dec)
	}

	switch len(decoders) {
	case 0:
		return CodingSystem{}, nil
	case 1:
		return CodingSystem{decoders[0], decoders[0], decoders[0]}, nil
	case 2:
		return CodingSystem{decoders[0], decoders[1], decoders[1]}, nil
	default:
		return CodingSystem{decoders[0], decoders[1], decoders[2]}, nil
	}
}
