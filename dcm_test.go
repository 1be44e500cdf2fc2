package dcm_test

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/rsnactp/dcm"
	"github.com/rsnactp/dcm/dcmio"
	"github.com/rsnactp/dcm/dcmtag"
	"github.com/rsnactp/dcm/dcmuid"
)

// buildFixture serializes a minimal Part-10 stream in memory: the pattern
// SPEC_FULL.md calls for in place of on-disk golden files, following
// writer.go's own WriteFileHeader/WriteElement. pixelData is appended as a
// final OW element when non-nil, letting tests exercise the parser's
// cursor-based stop-at-PixelData behavior.
func buildFixture(t *testing.T, datasetElems []*dcm.Element, pixelData []byte) []byte {
	t.Helper()

	fileMeta := []*dcm.Element{
		dcm.MustNewElement(dcmtag.MediaStorageSOPClassUID, "1.2.840.10008.5.1.4.1.1.7"),
		dcm.MustNewElement(dcmtag.MediaStorageSOPInstanceUID, "1.2.3.4.5.6.7.8"),
		dcm.MustNewElement(dcmtag.TransferSyntaxUID, dcmuid.ExplicitVRLittleEndian),
	}

	e := dcmio.NewBytesEncoder(binary.LittleEndian, dcmio.ExplicitVR)
	dcm.WriteFileHeader(e, fileMeta)
	for _, elem := range datasetElems {
		dcm.WriteElement(e, elem)
	}
	if pixelData != nil {
		dcm.WriteElement(e, dcm.MustNewElement(dcmtag.PixelData, pixelData))
	}
	require.NoError(t, e.Error())
	return e.Bytes()
}

func TestParseAndAccessors(t *testing.T) {
	elems := []*dcm.Element{
		dcm.MustNewElement(dcmtag.PatientID, "7DkT2Tp"),
		dcm.MustNewElement(dcmtag.PatientName, "Doe^Jane"),
		dcm.MustNewElement(dcmtag.StudyDate, "20260115"),
		dcm.MustNewElement(dcmtag.SeriesNumber, "3"),
		dcm.MustNewElement(dcmtag.PixelSpacing, "0.5\\0.5"),
	}
	data := buildFixture(t, elems, nil)

	fo, err := dcm.Parse(bytes.NewReader(data), "fixture")
	require.NoError(t, err)
	defer fo.Close()

	require.Equal(t, "7DkT2Tp", fo.GetString("PatientID", ""))
	require.Equal(t, "Doe^Jane", fo.GetString("PatientName", ""))
	require.Equal(t, int64(3), fo.GetInt("SeriesNumber", -1))
	require.Equal(t, "missing-default", fo.GetString("SeriesDescription", "missing-default"))
	require.Equal(t, 0.5, fo.GetFloat("0028,0030", 0))

	require.NoError(t, fo.SetString("PatientID", "Zhang San"))
	require.Equal(t, "Zhang San", fo.GetString("PatientID", ""))
}

func TestReadOptionsReturnTagsAndStopAtTag(t *testing.T) {
	elems := []*dcm.Element{
		dcm.MustNewElement(dcmtag.PatientName, "Doe^Jane"),
		dcm.MustNewElement(dcmtag.StudyInstanceUID, "1.2.3.4"),
		dcm.MustNewElement(dcmtag.SeriesInstanceUID, "1.2.3.4.5"),
	}
	data := buildFixture(t, elems, nil)

	fo, err := dcm.ParseWithOptions(bytes.NewReader(data), "fixture",
		dcm.ReadOptions{ReturnTags: []dcmtag.Tag{dcmtag.StudyInstanceUID}})
	require.NoError(t, err)
	defer fo.Close()
	_, err = fo.Dataset.FindElementByTag(dcmtag.StudyInstanceUID)
	require.NoError(t, err)
	_, err = fo.Dataset.FindElementByTag(dcmtag.PatientName)
	require.Error(t, err)

	stopTag := dcmtag.SeriesInstanceUID
	fo2, err := dcm.ParseWithOptions(bytes.NewReader(data), "fixture",
		dcm.ReadOptions{StopAtTag: &stopTag})
	require.NoError(t, err)
	defer fo2.Close()
	_, err = fo2.Dataset.FindElementByTag(dcmtag.StudyInstanceUID)
	require.NoError(t, err)
	_, err = fo2.Dataset.FindElementByTag(dcmtag.SeriesInstanceUID)
	require.Error(t, err)
}

func TestSaveRoundTripStreamsPixelData(t *testing.T) {
	pixelData := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	elems := []*dcm.Element{
		dcm.MustNewElement(dcmtag.PatientID, "ROUNDTRIP"),
		dcm.MustNewElement(dcmtag.Rows, uint16(2)),
		dcm.MustNewElement(dcmtag.Columns, uint16(2)),
	}
	data := buildFixture(t, elems, pixelData)

	fo, err := dcm.Parse(bytes.NewReader(data), "fixture")
	require.NoError(t, err)
	defer fo.Close()
	require.True(t, fo.Flags.IsImage)
	require.False(t, fo.Flags.IsEncapsulated)

	var out bytes.Buffer
	require.NoError(t, fo.Save(&out, dcm.SaveOptions{}))

	fo2, err := dcm.Parse(bytes.NewReader(out.Bytes()), "roundtrip")
	require.NoError(t, err)
	defer fo2.Close()
	require.Equal(t, "ROUNDTRIP", fo2.GetString("PatientID", ""))
	// PixelData itself is never loaded into the dataset (spec.md §3's
	// lifecycle rule); its presence is only observable via the flag the
	// parser set on stopping at it.
	require.True(t, fo2.Flags.IsImage)

	// Save is repeatable against the same FileObject: its stream cursor
	// must be restored after a successful write.
	var out2 bytes.Buffer
	require.NoError(t, fo.Save(&out2, dcm.SaveOptions{}))
	require.Equal(t, out.Bytes(), out2.Bytes())
}

// TestParsedElementTreeMatchesSource round-trips a dataset through the
// serializer and re-parses it, then diffs the resulting *Element tree
// against the original with cmp.Diff rather than testify's require.Equal:
// when a nested sequence item differs, cmp reports the exact path into the
// tree instead of just "not equal".
func TestParsedElementTreeMatchesSource(t *testing.T) {
	want := []*dcm.Element{
		dcm.MustNewElement(dcmtag.PatientName, "Doe^Jane"),
		dcm.MustNewElement(dcmtag.StudyInstanceUID, "1.2.3.4"),
		dcm.MustNewElement(dcmtag.SeriesNumber, "3"),
	}
	data := buildFixture(t, want, nil)

	fo, err := dcm.Parse(bytes.NewReader(data), "fixture")
	require.NoError(t, err)
	defer fo.Close()

	if diff := cmp.Diff(want, fo.Dataset.Elements); diff != "" {
		t.Errorf("parsed element tree mismatch (-want +got):\n%s", diff)
	}
}

// TestDICOMDIRPatientNameRoutesIntoDirectoryRecord covers spec.md §3's
// DICOMDIR invariant: patient-level accessors on a DICOMDIR object read from
// the first DirectoryRecordSeq item, since the root dataset itself carries
// no PatientName.
func TestDICOMDIRPatientNameRoutesIntoDirectoryRecord(t *testing.T) {
	record := &dcm.Element{Tag: dcmtag.Item, Value: []interface{}{
		dcm.MustNewElement(dcmtag.PatientName, "Doe^Jane"),
	}}
	fo := &dcm.FileObject{
		Dataset: &dcm.Dataset{Elements: []*dcm.Element{
			dcm.MustNewElement(dcmtag.DirectoryRecordSeq, record),
		}},
		Flags: dcm.Flags{IsDICOMDIR: true},
	}

	require.Equal(t, "Doe^Jane", fo.GetString("PatientName", ""))

	// A non-DICOMDIR object must not fall through to DirectoryRecordSeq.
	fo.Flags.IsDICOMDIR = false
	require.Equal(t, "missing", fo.GetString("PatientName", "missing"))
}

// TestSaveTranscodeOBPixelDataIsVerbatimNotSwapped covers spec.md's VR-gated
// byte-swap rule: non-encapsulated OB pixel data must never be byte-swapped
// on a byte-order transcode.
func TestSaveTranscodeOBPixelDataIsVerbatimNotSwapped(t *testing.T) {
	pixelData := []byte{0xAA, 0xBB, 0xCC} // WriteElement pads this to 4 bytes on disk
	pixelElem := dcm.MustNewElement(dcmtag.PixelData, pixelData)
	pixelElem.VR = "OB"

	fileMeta := []*dcm.Element{
		dcm.MustNewElement(dcmtag.MediaStorageSOPClassUID, "1.2.840.10008.5.1.4.1.1.7"),
		dcm.MustNewElement(dcmtag.MediaStorageSOPInstanceUID, "1.2.3.4.5.6.7.8"),
		dcm.MustNewElement(dcmtag.TransferSyntaxUID, dcmuid.ExplicitVRLittleEndian),
	}
	e := dcmio.NewBytesEncoder(binary.LittleEndian, dcmio.ExplicitVR)
	dcm.WriteFileHeader(e, fileMeta)
	dcm.WriteElement(e, pixelElem)
	require.NoError(t, e.Error())
	data := e.Bytes()

	fo, err := dcm.Parse(bytes.NewReader(data), "fixture")
	require.NoError(t, err)
	defer fo.Close()

	var out bytes.Buffer
	require.NoError(t, fo.Save(&out, dcm.SaveOptions{TransferSyntaxUID: dcmuid.ExplicitVRBigEndian}))
	require.True(t, bytes.Contains(out.Bytes(), pixelData), "OB pixel data must be copied verbatim, not byte-swapped")
}

func TestSaveForceImplicitLE(t *testing.T) {
	elems := []*dcm.Element{
		dcm.MustNewElement(dcmtag.PatientID, "ABC"),
	}
	data := buildFixture(t, elems, nil)

	fo, err := dcm.Parse(bytes.NewReader(data), "fixture")
	require.NoError(t, err)
	defer fo.Close()

	var out bytes.Buffer
	require.NoError(t, fo.Save(&out, dcm.SaveOptions{ForceImplicitLE: true}))

	fo2, err := dcm.Parse(bytes.NewReader(out.Bytes()), "roundtrip")
	require.NoError(t, err)
	defer fo2.Close()
	require.Equal(t, dcmuid.ImplicitVRLittleEndian, fo2.TransferSyntaxUID)
	require.Equal(t, "ABC", fo2.GetString("PatientID", ""))
}
