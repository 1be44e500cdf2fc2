package dcmtag

// Well-known tags referenced directly by the parser, accessors and tests.
// The full dictionary (including these) lives in dict below; these vars
// just give call sites a symbolic name instead of a hex literal, the way
// odincare-odicom's dicomtag package exposed dicomtag.PatientID etc.
var (
	FileMetaInformationGroupLength = Tag{0x0002, 0x0000}
	FileMetaInformationVersion     = Tag{0x0002, 0x0001}
	MediaStorageSOPClassUID        = Tag{0x0002, 0x0002}
	MediaStorageSOPInstanceUID     = Tag{0x0002, 0x0003}
	TransferSyntaxUID              = Tag{0x0002, 0x0010}
	ImplementationClassUID         = Tag{0x0002, 0x0012}
	ImplementationVersionName      = Tag{0x0002, 0x0013}

	DirectoryRecordSeq       = Tag{0x0004, 0x1220}
	DirectoryRecordType      = Tag{0x0004, 0x1430}
	OffsetNextDirectoryRecord = Tag{0x0004, 0x1400}

	SpecificCharacterSet    = Tag{0x0008, 0x0005}
	SOPClassUID             = Tag{0x0008, 0x0016}
	SOPInstanceUID          = Tag{0x0008, 0x0018}
	StudyDate               = Tag{0x0008, 0x0020}
	StudyTime               = Tag{0x0008, 0x0030}
	AccessionNumber         = Tag{0x0008, 0x0050}
	Modality                = Tag{0x0008, 0x0060}
	InstitutionName         = Tag{0x0008, 0x0080}
	ReferringPhysicianName  = Tag{0x0008, 0x0090}
	StudyDescription        = Tag{0x0008, 0x1030}
	SeriesDescription       = Tag{0x0008, 0x103E}
	CodeValue               = Tag{0x0008, 0x0100}
	CodingSchemeDesignator  = Tag{0x0008, 0x0102}
	CodeMeaning             = Tag{0x0008, 0x0104}

	PatientName     = Tag{0x0010, 0x0010}
	PatientID       = Tag{0x0010, 0x0020}
	PatientBirthDate = Tag{0x0010, 0x0030}
	PatientSex      = Tag{0x0010, 0x0040}

	StudyInstanceUID        = Tag{0x0020, 0x000D}
	SeriesInstanceUID       = Tag{0x0020, 0x000E}
	StudyID                 = Tag{0x0020, 0x0010}
	SeriesNumber            = Tag{0x0020, 0x0011}
	InstanceNumber          = Tag{0x0020, 0x0013}
	ImagePositionPatient    = Tag{0x0020, 0x0032}
	ImageOrientationPatient = Tag{0x0020, 0x0037}

	SamplesPerPixel            = Tag{0x0028, 0x0002}
	PhotometricInterpretation  = Tag{0x0028, 0x0004}
	PlanarConfiguration        = Tag{0x0028, 0x0006}
	Rows                       = Tag{0x0028, 0x0010}
	Columns                    = Tag{0x0028, 0x0011}
	PixelSpacing               = Tag{0x0028, 0x0030}
	BitsAllocated              = Tag{0x0028, 0x0100}
	BitsStored                 = Tag{0x0028, 0x0101}
	HighBit                    = Tag{0x0028, 0x0102}
	PixelRepresentation        = Tag{0x0028, 0x0103}
	SmallestImagePixelValue    = Tag{0x0028, 0x0106}
	LargestImagePixelValue    = Tag{0x0028, 0x0107}
	WindowCenter               = Tag{0x0028, 0x1050}
	WindowWidth                = Tag{0x0028, 0x1051}
	RescaleIntercept           = Tag{0x0028, 0x1052}
	RescaleSlope               = Tag{0x0028, 0x1053}
	RescaleType                = Tag{0x0028, 0x1054}
	VOILUTFunction             = Tag{0x0028, 0x1056}
	LossyImageCompression      = Tag{0x0028, 0x2110}

	ConceptNameCodeSeq = Tag{0x0040, 0xA043}
	ConceptCodeSeq     = Tag{0x0040, 0xA168}

	PresentationLUTShape = Tag{0x2050, 0x0020}

	PixelData = Tag{0x7FE0, 0x0010}
)

// dict is the process-wide tag dictionary. It is populated once at package
// init and never mutated afterward (spec.md §5: "tag and UID dictionaries
// ... are process-wide, read-only after first-use initialization").
var dict = map[Tag]TagInfo{
	FileMetaInformationGroupLength: {FileMetaInformationGroupLength, "UL", "FileMetaInformationGroupLength", "1"},
	FileMetaInformationVersion:     {FileMetaInformationVersion, "OB", "FileMetaInformationVersion", "1"},
	MediaStorageSOPClassUID:        {MediaStorageSOPClassUID, "UI", "MediaStorageSOPClassUID", "1"},
	MediaStorageSOPInstanceUID:     {MediaStorageSOPInstanceUID, "UI", "MediaStorageSOPInstanceUID", "1"},
	TransferSyntaxUID:              {TransferSyntaxUID, "UI", "TransferSyntaxUID", "1"},
	ImplementationClassUID:         {ImplementationClassUID, "UI", "ImplementationClassUID", "1"},
	ImplementationVersionName:      {ImplementationVersionName, "SH", "ImplementationVersionName", "1"},

	DirectoryRecordSeq:        {DirectoryRecordSeq, "SQ", "DirectoryRecordSeq", "1"},
	DirectoryRecordType:       {DirectoryRecordType, "CS", "DirectoryRecordType", "1"},
	OffsetNextDirectoryRecord: {OffsetNextDirectoryRecord, "UL", "OffsetOfTheNextDirectoryRecord", "1"},

	SpecificCharacterSet:   {SpecificCharacterSet, "CS", "SpecificCharacterSet", "1-n"},
	SOPClassUID:            {SOPClassUID, "UI", "SOPClassUID", "1"},
	SOPInstanceUID:         {SOPInstanceUID, "UI", "SOPInstanceUID", "1"},
	StudyDate:              {StudyDate, "DA", "StudyDate", "1"},
	StudyTime:              {StudyTime, "TM", "StudyTime", "1"},
	AccessionNumber:        {AccessionNumber, "SH", "AccessionNumber", "1"},
	Modality:               {Modality, "CS", "Modality", "1"},
	InstitutionName:        {InstitutionName, "LO", "InstitutionName", "1"},
	ReferringPhysicianName: {ReferringPhysicianName, "PN", "ReferringPhysicianName", "1"},
	StudyDescription:       {StudyDescription, "LO", "StudyDescription", "1"},
	SeriesDescription:      {SeriesDescription, "LO", "SeriesDescription", "1"},
	CodeValue:              {CodeValue, "SH", "CodeValue", "1"},
	CodingSchemeDesignator: {CodingSchemeDesignator, "SH", "CodingSchemeDesignator", "1"},
	CodeMeaning:            {CodeMeaning, "LO", "CodeMeaning", "1"},

	PatientName:      {PatientName, "PN", "PatientName", "1"},
	PatientID:        {PatientID, "LO", "PatientID", "1"},
	PatientBirthDate: {PatientBirthDate, "DA", "PatientBirthDate", "1"},
	PatientSex:       {PatientSex, "CS", "PatientSex", "1"},

	StudyInstanceUID:        {StudyInstanceUID, "UI", "StudyInstanceUID", "1"},
	SeriesInstanceUID:       {SeriesInstanceUID, "UI", "SeriesInstanceUID", "1"},
	StudyID:                 {StudyID, "SH", "StudyID", "1"},
	SeriesNumber:            {SeriesNumber, "IS", "SeriesNumber", "1"},
	InstanceNumber:          {InstanceNumber, "IS", "InstanceNumber", "1"},
	ImagePositionPatient:    {ImagePositionPatient, "DS", "ImagePositionPatient", "3"},
	ImageOrientationPatient: {ImageOrientationPatient, "DS", "ImageOrientationPatient", "6"},

	SamplesPerPixel:           {SamplesPerPixel, "US", "SamplesPerPixel", "1"},
	PhotometricInterpretation: {PhotometricInterpretation, "CS", "PhotometricInterpretation", "1"},
	PlanarConfiguration:       {PlanarConfiguration, "US", "PlanarConfiguration", "1"},
	Rows:                      {Rows, "US", "Rows", "1"},
	Columns:                   {Columns, "US", "Columns", "1"},
	PixelSpacing:              {PixelSpacing, "DS", "PixelSpacing", "2"},
	BitsAllocated:             {BitsAllocated, "US", "BitsAllocated", "1"},
	BitsStored:                {BitsStored, "US", "BitsStored", "1"},
	HighBit:                   {HighBit, "US", "HighBit", "1"},
	PixelRepresentation:       {PixelRepresentation, "US", "PixelRepresentation", "1"},
	SmallestImagePixelValue:   {SmallestImagePixelValue, "US", "SmallestImagePixelValue", "1"},
	LargestImagePixelValue:    {LargestImagePixelValue, "US", "LargestImagePixelValue", "1"},
	WindowCenter:              {WindowCenter, "DS", "WindowCenter", "1-n"},
	WindowWidth:               {WindowWidth, "DS", "WindowWidth", "1-n"},
	RescaleIntercept:          {RescaleIntercept, "DS", "RescaleIntercept", "1"},
	RescaleSlope:              {RescaleSlope, "DS", "RescaleSlope", "1"},
	RescaleType:               {RescaleType, "LO", "RescaleType", "1"},
	VOILUTFunction:            {VOILUTFunction, "CS", "VOILUTFunction", "1"},
	LossyImageCompression:     {LossyImageCompression, "CS", "LossyImageCompression", "1"},

	ConceptNameCodeSeq: {ConceptNameCodeSeq, "SQ", "ConceptNameCodeSequence", "1"},
	ConceptCodeSeq:     {ConceptCodeSeq, "SQ", "ConceptCodeSequence", "1"},

	PresentationLUTShape: {PresentationLUTShape, "CS", "PresentationLUTShape", "1"},

	PixelData: {PixelData, "OW", "PixelData", "1"},

	Item:                     {Item, "NA", "Item", "1"},
	ItemDelimitationItem:     {ItemDelimitationItem, "NA", "ItemDelimitationItem", "1"},
	SequenceDelimitationItem: {SequenceDelimitationItem, "NA", "SequenceDelimitationItem", "1"},
}

// nameIndex is derived from dict at init time to support FindByName.
var nameIndex = make(map[string]Tag, len(dict))

func init() {
	for tag, info := range dict {
		nameIndex[info.Name] = tag
	}
}
