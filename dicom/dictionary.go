// Copyright 2018 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package dicom

// dictEntry is one row of the data dictionary in
// http://dicom.nema.org/medical/dicom/current/output/html/part06.html#chapter_6
type dictEntry struct {
	vr   *VR
	name string
}

// repeatingGroupMasks are applied in order to look up tags with wildcards such as (60xx,3000).
// The dictionary stores these with the x's set to '0'.
var repeatingGroupMasks = []Tag{0xFF00FFFF, 0xFFFFFF00, 0xFFFFFF0F}

// DictionaryVR returns the VR listed in the data dictionary for t. Group lengths are UL, private
// creators are LO, and any other unknown or private tag is UN. The result may be one of the
// placeholders XSVR, OXVR or XWVR; see resolveVR.
func (t Tag) DictionaryVR() *VR {
	if e, ok := lookupDictionary(t); ok {
		return e.vr
	}
	switch {
	case t.IsGroupLength():
		return ULVR
	case t.IsPrivateCreator():
		return LOVR
	}
	return UNVR
}

// Name returns the dictionary keyword of t, or an empty string for unknown tags.
func (t Tag) Name() string {
	if e, ok := lookupDictionary(t); ok {
		return e.name
	}
	if t.IsGroupLength() {
		return "GroupLength"
	}
	return ""
}

func lookupDictionary(t Tag) (dictEntry, bool) {
	if t.IsPrivate() {
		return dictEntry{}, false
	}
	if e, ok := tagDictionary[t]; ok {
		return e, true
	}
	for _, m := range repeatingGroupMasks {
		if e, ok := tagDictionary[t&m]; ok && e.repeating() {
			return e, true
		}
	}
	return dictEntry{}, false
}

func (e dictEntry) repeating() bool {
	for _, n := range repeatingNames {
		if e.name == n {
			return true
		}
	}
	return false
}

var repeatingNames = []string{
	"OverlayRows", "OverlayColumns", "OverlayType", "OverlayOrigin", "OverlayBitsAllocated",
	"OverlayBitPosition", "OverlayData", "CurveDimensions", "NumberOfPoints", "TypeOfData",
	"DataValueRepresentation", "CurveData", "AudioSampleData",
}

var tagDictionary = map[Tag]dictEntry{
	// (0002,xxxx) File Meta Information
	FileMetaInformationGroupLengthTag: {ULVR, "FileMetaInformationGroupLength"},
	FileMetaInformationVersionTag:     {OBVR, "FileMetaInformationVersion"},
	MediaStorageSOPClassUIDTag:        {UIVR, "MediaStorageSOPClassUID"},
	MediaStorageSOPInstanceUIDTag:     {UIVR, "MediaStorageSOPInstanceUID"},
	TransferSyntaxUIDTag:              {UIVR, "TransferSyntaxUID"},
	ImplementationClassUIDTag:         {UIVR, "ImplementationClassUID"},
	ImplementationVersionNameTag:      {SHVR, "ImplementationVersionName"},
	SourceApplicationEntityTitleTag:   {AEVR, "SourceApplicationEntityTitle"},
	0x00020017:                        {AEVR, "SendingApplicationEntityTitle"},
	0x00020018:                        {AEVR, "ReceivingApplicationEntityTitle"},
	0x00020100:                        {UIVR, "PrivateInformationCreatorUID"},
	0x00020102:                        {OBVR, "PrivateInformation"},

	// (0008,xxxx) identification
	SpecificCharacterSetTag:     {CSVR, "SpecificCharacterSet"},
	ImageTypeTag:                {CSVR, "ImageType"},
	0x00080012:                  {DAVR, "InstanceCreationDate"},
	0x00080013:                  {TMVR, "InstanceCreationTime"},
	SOPClassUIDTag:              {UIVR, "SOPClassUID"},
	SOPInstanceUIDTag:           {UIVR, "SOPInstanceUID"},
	StudyDateTag:                {DAVR, "StudyDate"},
	0x00080021:                  {DAVR, "SeriesDate"},
	0x00080022:                  {DAVR, "AcquisitionDate"},
	0x00080023:                  {DAVR, "ContentDate"},
	0x0008002A:                  {DTVR, "AcquisitionDateTime"},
	0x00080030:                  {TMVR, "StudyTime"},
	0x00080031:                  {TMVR, "SeriesTime"},
	0x00080033:                  {TMVR, "ContentTime"},
	0x00080050:                  {SHVR, "AccessionNumber"},
	ModalityTag:                 {CSVR, "Modality"},
	0x00080064:                  {CSVR, "ConversionType"},
	0x00080070:                  {LOVR, "Manufacturer"},
	0x00080080:                  {LOVR, "InstitutionName"},
	0x00080090:                  {PNVR, "ReferringPhysicianName"},
	0x00080100:                  {SHVR, "CodeValue"},
	0x00080102:                  {SHVR, "CodingSchemeDesignator"},
	0x00080104:                  {LOVR, "CodeMeaning"},
	0x00081030:                  {LOVR, "StudyDescription"},
	0x0008103E:                  {LOVR, "SeriesDescription"},
	0x00081090:                  {LOVR, "ManufacturerModelName"},
	ReferencedStudySequenceTag:  {SQVR, "ReferencedStudySequence"},
	0x00081115:                  {SQVR, "ReferencedSeriesSequence"},
	ReferencedImageSequenceTag:  {SQVR, "ReferencedImageSequence"},
	ReferencedSOPClassUIDTag:    {UIVR, "ReferencedSOPClassUID"},
	ReferencedSOPInstanceUIDTag: {UIVR, "ReferencedSOPInstanceUID"},
	ReferencedFrameNumberTag:    {ISVR, "ReferencedFrameNumber"},
	0x00082111:                  {STVR, "DerivationDescription"},
	0x00082112:                  {SQVR, "SourceImageSequence"},
	0x00089215:                  {SQVR, "DerivationCodeSequence"},

	// (0010,xxxx) patient
	PatientNameTag: {PNVR, "PatientName"},
	PatientIDTag:   {LOVR, "PatientID"},
	0x00100030:     {DAVR, "PatientBirthDate"},
	0x00100040:     {CSVR, "PatientSex"},
	0x00101010:     {ASVR, "PatientAge"},
	0x00101020:     {DSVR, "PatientSize"},
	0x00101030:     {DSVR, "PatientWeight"},
	0x00104000:     {LTVR, "PatientComments"},

	// (0018,xxxx) acquisition
	0x00180015:         {CSVR, "BodyPartExamined"},
	0x00180050:         {DSVR, "SliceThickness"},
	0x00180060:         {DSVR, "KVP"},
	0x00180088:         {DSVR, "SpacingBetweenSlices"},
	0x00181020:         {LOVR, "SoftwareVersions"},
	0x00181030:         {LOVR, "ProtocolName"},
	0x00185100:         {CSVR, "PatientPosition"},
	DiffusionBValueTag: {FDVR, "DiffusionBValue"},
	0x00189089:         {FDVR, "DiffusionGradientOrientation"},
	0x00189327:         {FDVR, "TablePosition"},

	// (0020,xxxx) relationship
	StudyInstanceUIDTag:      {UIVR, "StudyInstanceUID"},
	SeriesInstanceUIDTag:     {UIVR, "SeriesInstanceUID"},
	0x00200010:               {SHVR, "StudyID"},
	0x00200011:               {ISVR, "SeriesNumber"},
	0x00200013:               {ISVR, "InstanceNumber"},
	0x00200032:               {DSVR, "ImagePositionPatient"},
	0x00200037:               {DSVR, "ImageOrientationPatient"},
	0x00200052:               {UIVR, "FrameOfReferenceUID"},
	0x00201041:               {DSVR, "SliceLocation"},
	DimensionIndexPointerTag: {ATVR, "DimensionIndexPointer"},

	// (0028,xxxx) image pixel
	SamplesPerPixelTag:                {USVR, "SamplesPerPixel"},
	0x00280004:                        {CSVR, "PhotometricInterpretation"},
	0x00280006:                        {USVR, "PlanarConfiguration"},
	NumberOfFramesTag:                 {ISVR, "NumberOfFrames"},
	FrameIncrementPointerTag:          {ATVR, "FrameIncrementPointer"},
	RowsTag:                           {USVR, "Rows"},
	ColumnsTag:                        {USVR, "Columns"},
	0x00280030:                        {DSVR, "PixelSpacing"},
	BitsAllocatedTag:                  {USVR, "BitsAllocated"},
	BitsStoredTag:                     {USVR, "BitsStored"},
	HighBitTag:                        {USVR, "HighBit"},
	PixelRepresentationTag:            {USVR, "PixelRepresentation"},
	SmallestImagePixelValueTag:        {XSVR, "SmallestImagePixelValue"},
	LargestImagePixelValueTag:         {XSVR, "LargestImagePixelValue"},
	0x00280108:                        {XSVR, "SmallestPixelValueInSeries"},
	0x00280109:                        {XSVR, "LargestPixelValueInSeries"},
	PixelPaddingValueTag:              {XSVR, "PixelPaddingValue"},
	0x00280121:                        {XSVR, "PixelPaddingRangeLimit"},
	0x00281050:                        {DSVR, "WindowCenter"},
	0x00281051:                        {DSVR, "WindowWidth"},
	0x00281052:                        {DSVR, "RescaleIntercept"},
	0x00281053:                        {DSVR, "RescaleSlope"},
	0x00281054:                        {LOVR, "RescaleType"},
	0x00281101:                        {XSVR, "RedPaletteColorLookupTableDescriptor"},
	0x00281102:                        {XSVR, "GreenPaletteColorLookupTableDescriptor"},
	0x00281103:                        {XSVR, "BluePaletteColorLookupTableDescriptor"},
	RedPaletteColorLookupTableDataTag: {OWVR, "RedPaletteColorLookupTableData"},
	0x00281202:                        {OWVR, "GreenPaletteColorLookupTableData"},
	0x00281203:                        {OWVR, "BluePaletteColorLookupTableData"},
	0x00282110:                        {CSVR, "LossyImageCompression"},
	0x00282112:                        {DSVR, "LossyImageCompressionRatio"},
	ModalityLUTSequenceTag:            {SQVR, "ModalityLUTSequence"},
	LUTDescriptorTag:                  {XSVR, "LUTDescriptor"},
	0x00283003:                        {LOVR, "LUTExplanation"},
	0x00283004:                        {LOVR, "ModalityLUTType"},
	LUTDataTag:                        {XWVR, "LUTData"},
	0x00283010:                        {SQVR, "VOILUTSequence"},

	// (0040,xxxx) procedure and structured reporting
	0x00400275:                        {SQVR, "RequestAttributesSequence"},
	0x00409096:                        {SQVR, "RealWorldValueMappingSequence"},
	RealWorldValueFirstValueMappedTag: {XSVR, "RealWorldValueFirstValueMapped"},
	0x00409211:                        {XSVR, "RealWorldValueLastValueMapped"},
	0x0040A010:                        {CSVR, "RelationshipType"},
	0x0040A040:                        {CSVR, "ValueType"},
	0x0040A043:                        {SQVR, "ConceptNameCodeSequence"},
	0x0040A160:                        {UTVR, "TextValue"},
	ContentSequenceTag:                {SQVR, "ContentSequence"},

	EncapsulatedDocumentTag: {OBVR, "EncapsulatedDocument"},

	// (50xx,xxxx) curves, retired
	0x50000005:         {USVR, "CurveDimensions"},
	0x50000010:         {USVR, "NumberOfPoints"},
	0x50000020:         {CSVR, "TypeOfData"},
	0x50000103:         {USVR, "DataValueRepresentation"},
	AudioSampleDataTag: {OXVR, "AudioSampleData"},
	CurveDataTag:       {OXVR, "CurveData"},

	// (5200,xxxx), (5400,xxxx)
	PerFrameFunctionalGroupsSequenceTag: {SQVR, "PerFrameFunctionalGroupsSequence"},
	0x52009229:                          {SQVR, "SharedFunctionalGroupsSequence"},
	0x54000100:                          {SQVR, "WaveformSequence"},
	0x54001004:                          {USVR, "WaveformBitsAllocated"},
	WaveformDataTag:                     {OXVR, "WaveformData"},

	// (60xx,xxxx) overlays
	0x60000010:     {USVR, "OverlayRows"},
	0x60000011:     {USVR, "OverlayColumns"},
	0x60000040:     {CSVR, "OverlayType"},
	0x60000050:     {SSVR, "OverlayOrigin"},
	0x60000100:     {USVR, "OverlayBitsAllocated"},
	0x60000102:     {USVR, "OverlayBitPosition"},
	OverlayDataTag: {OXVR, "OverlayData"},

	// (7FE0,xxxx) pixel data
	FloatPixelDataTag:       {OFVR, "FloatPixelData"},
	DoubleFloatPixelDataTag: {ODVR, "DoubleFloatPixelData"},
	PixelDataTag:            {OXVR, "PixelData"},

	// (FFFA,FFFA), (FFFC,FFFC)
	0xFFFAFFFA:                {SQVR, "DigitalSignaturesSequence"},
	DataSetTrailingPaddingTag: {OBVR, "DataSetTrailingPadding"},

	// (FFFE,xxxx) delimiters, listed so that they print with names
	ItemTag:                     {UNVR, "Item"},
	ItemDelimitationItemTag:     {UNVR, "ItemDelimitationItem"},
	SequenceDelimitationItemTag: {UNVR, "SequenceDelimitationItem"},
}
