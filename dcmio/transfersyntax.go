package dcmio

import (
	"encoding/binary"
	"fmt"

	"github.com/rsnactp/dcm/dcmuid"
)

// StandardTransferSyntaxes lists the transfer syntaxes this library fully
// understands the framing of (as opposed to merely recognizing the UID).
var StandardTransferSyntaxes = []string{
	dcmuid.ImplicitVRLittleEndian,
	dcmuid.ExplicitVRLittleEndian,
	dcmuid.ExplicitVRBigEndian,
}

// Params is the Transfer Syntax Table entry spec.md §3 describes: a named
// tuple of byte order, VR encoding, and whether pixel data is encapsulated.
type Params struct {
	UID          string
	ByteOrder    binary.ByteOrder
	Implicit     IsImplicitVR
	Encapsulated bool
}

// ParseTransferSyntaxUID resolves uid (any transfer syntax UID known to
// dcmuid) to its byte order and VR encoding. Encapsulated syntaxes (JPEG
// family, RLE, ...) are reported as ExplicitVR/LittleEndian, since that is
// how their dataset-level elements are framed; the encapsulation itself is
// a property of the PixelData value, not of ordinary elements.
func ParseTransferSyntaxUID(uid string) (byteorder binary.ByteOrder, implicit IsImplicitVR, err error) {
	p, err := LookupParams(uid)
	if err != nil {
		return nil, UnknownVR, err
	}
	return p.ByteOrder, p.Implicit, nil
}

// LookupParams resolves uid to its full Transfer Syntax Table entry.
func LookupParams(uid string) (Params, error) {
	switch uid {
	case dcmuid.ImplicitVRLittleEndian:
		return Params{uid, binary.LittleEndian, ImplicitVR, false}, nil
	case dcmuid.ExplicitVRLittleEndian, dcmuid.DeflatedExplicitVRLittleEndian:
		return Params{uid, binary.LittleEndian, ExplicitVR, false}, nil
	case dcmuid.ExplicitVRBigEndian:
		return Params{uid, binary.BigEndian, ExplicitVR, false}, nil
	default:
		if dcmuid.IsEncapsulated(uid) {
			return Params{uid, binary.LittleEndian, ExplicitVR, true}, nil
		}
		if _, err := dcmuid.Lookup(uid); err == nil {
			// A known-but-unhandled UID that names a transfer syntax we
			// don't specifically enumerate: fall back to explicit VR
			// little endian, non-encapsulated, the same default the
			// teacher's CanonicalTransferSyntaxUID used.
			return Params{uid, binary.LittleEndian, ExplicitVR, false}, nil
		}
		return Params{}, fmt.Errorf("dcmio: unrecognized transfer syntax UID '%s'", uid)
	}
}
