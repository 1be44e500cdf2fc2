// Package dcmuid maps well-known DICOM UIDs (transfer syntaxes, SOP
// classes) to human-readable names and a coarse type classification. It
// mirrors the role the teacher's dicomio package expected of a sibling
// "dicomuid" package that was never present in the retrieved source, so the
// well-known UID constants below are named the way dicomio/transfersyntax.go
// references them (dicomuid.ImplicitVRLittleEndian, dicomuid.Lookup, ...).
package dcmuid

import "fmt"

// Type classifies what an Entry's UID identifies.
type Type int

const (
	TypeTransferSyntax Type = iota
	TypeSOPClass
	TypeOther
)

func (t Type) String() string {
	switch t {
	case TypeTransferSyntax:
		return "TransferSyntax"
	case TypeSOPClass:
		return "SOPClass"
	default:
		return "Other"
	}
}

// Entry is one row of the UID dictionary.
type Entry struct {
	UID  string
	Name string
	Type Type
}

// Well-known transfer syntax UIDs. Names follow the DICOM standard's PS3.6
// Annex A.
const (
	ImplicitVRLittleEndian         = "1.2.840.10008.1.2"
	ExplicitVRLittleEndian         = "1.2.840.10008.1.2.1"
	DeflatedExplicitVRLittleEndian = "1.2.840.10008.1.2.1.99"
	ExplicitVRBigEndian            = "1.2.840.10008.1.2.2"
	JPEGBaseline1                  = "1.2.840.10008.1.2.4.50"
	JPEGExtended2_4                = "1.2.840.10008.1.2.4.51"
	JPEGLossless                   = "1.2.840.10008.1.2.4.70"
	JPEGLSLossless                 = "1.2.840.10008.1.2.4.80"
	JPEGLSNearLossless             = "1.2.840.10008.1.2.4.81"
	JPEG2000Lossless               = "1.2.840.10008.1.2.4.90"
	JPEG2000                       = "1.2.840.10008.1.2.4.91"
	RLELossless                    = "1.2.840.10008.1.2.5"

	// DICOMDIRSOPClass is the SOP Class UID of the DICOMDIR media storage
	// directory object (spec.md §6).
	DICOMDIRSOPClass = "1.2.840.10008.1.3.10"

	// KeyObjectSelectionSOPClass identifies a "KIN" (Key Image Note)
	// document, used by IsKeyObjectSelection to set Flags.IsKIN.
	KeyObjectSelectionSOPClass = "1.2.840.10008.5.1.4.1.1.88.59"
)

// structuredReportSOPClasses lists the SOP Class UIDs treated as "isSR" by
// FileObject.
var structuredReportSOPClasses = map[string]bool{
	"1.2.840.10008.5.1.4.1.1.88.11": true, // Basic Text SR
	"1.2.840.10008.5.1.4.1.1.88.22": true, // Enhanced SR
	"1.2.840.10008.5.1.4.1.1.88.33": true, // Comprehensive SR
	"1.2.840.10008.5.1.4.1.1.88.34": true, // Comprehensive 3D SR
	"1.2.840.10008.5.1.4.1.1.88.35": true, // Extensible SR
	"1.2.840.10008.5.1.4.1.1.88.40": true, // Procedure Log
	"1.2.840.10008.5.1.4.1.1.88.50": true, // Mammography CAD SR
	"1.2.840.10008.5.1.4.1.1.88.59": true, // Key Object Selection
	"1.2.840.10008.5.1.4.1.1.88.65": true, // Colon CAD SR
	"1.2.840.10008.5.1.4.1.1.88.67": true, // Implantation Plan SR
}

// IsStructuredReport reports whether uid names a Structured Report (or Key
// Object Selection) SOP class.
func IsStructuredReport(uid string) bool {
	return structuredReportSOPClasses[uid]
}

// IsKeyObjectSelection reports whether uid is the Key Image Note SOP class.
func IsKeyObjectSelection(uid string) bool {
	return uid == KeyObjectSelectionSOPClass
}

// encapsulatedTransferSyntaxes lists transfer syntaxes whose PixelData is
// framed as a sequence of encoded-frame items rather than a flat byte run.
var encapsulatedTransferSyntaxes = map[string]bool{
	JPEGBaseline1:       true,
	JPEGExtended2_4:     true,
	JPEGLossless:        true,
	JPEGLSLossless:      true,
	JPEGLSNearLossless:  true,
	JPEG2000Lossless:    true,
	JPEG2000:            true,
	RLELossless:         true,
}

// IsEncapsulated reports whether uid names a transfer syntax with
// encapsulated (item-framed) pixel data.
func IsEncapsulated(uid string) bool {
	return encapsulatedTransferSyntaxes[uid]
}

var dict = map[string]Entry{
	ImplicitVRLittleEndian:         {ImplicitVRLittleEndian, "Implicit VR Little Endian", TypeTransferSyntax},
	ExplicitVRLittleEndian:         {ExplicitVRLittleEndian, "Explicit VR Little Endian", TypeTransferSyntax},
	DeflatedExplicitVRLittleEndian: {DeflatedExplicitVRLittleEndian, "Deflated Explicit VR Little Endian", TypeTransferSyntax},
	ExplicitVRBigEndian:            {ExplicitVRBigEndian, "Explicit VR Big Endian", TypeTransferSyntax},
	JPEGBaseline1:                  {JPEGBaseline1, "JPEG Baseline (Process 1)", TypeTransferSyntax},
	JPEGExtended2_4:                {JPEGExtended2_4, "JPEG Extended (Process 2 & 4)", TypeTransferSyntax},
	JPEGLossless:                   {JPEGLossless, "JPEG Lossless, Non-Hierarchical, First-Order Prediction", TypeTransferSyntax},
	JPEGLSLossless:                 {JPEGLSLossless, "JPEG-LS Lossless Image Compression", TypeTransferSyntax},
	JPEGLSNearLossless:             {JPEGLSNearLossless, "JPEG-LS Lossy (Near-Lossless) Image Compression", TypeTransferSyntax},
	JPEG2000Lossless:               {JPEG2000Lossless, "JPEG 2000 Image Compression (Lossless Only)", TypeTransferSyntax},
	JPEG2000:                       {JPEG2000, "JPEG 2000 Image Compression", TypeTransferSyntax},
	RLELossless:                    {RLELossless, "RLE Lossless", TypeTransferSyntax},
	DICOMDIRSOPClass:               {DICOMDIRSOPClass, "Media Storage Directory Storage", TypeSOPClass},
	KeyObjectSelectionSOPClass:     {KeyObjectSelectionSOPClass, "Key Object Selection Document Storage", TypeSOPClass},
}

func init() {
	for uid := range structuredReportSOPClasses {
		if _, ok := dict[uid]; !ok {
			dict[uid] = Entry{uid, "Structured Report Storage", TypeSOPClass}
		}
	}
}

// Lookup returns the dictionary entry for uid. It returns an error if uid is
// not a known UID.
func Lookup(uid string) (Entry, error) {
	e, ok := dict[uid]
	if !ok {
		return Entry{}, fmt.Errorf("dcmuid: unknown UID '%s'", uid)
	}
	return e, nil
}

// Name returns the display name for uid, or uid itself if it is unknown.
func Name(uid string) string {
	if e, err := Lookup(uid); err == nil {
		return e.Name
	}
	return uid
}
