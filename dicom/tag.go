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

import "fmt"

// Tag is a unique identifier for a Data Element composed of a group number and an element
// number as specified in http://dicom.nema.org/medical/dicom/current/output/html/part05.html#sect_3.10.
//
// The least significant 16 bits is the element number. The most significant 16 bits is the group
// number, so comparing two Tags as integers orders them by (group, element).
type Tag uint32

// NewTag builds a Tag from its group and element numbers.
func NewTag(group, element uint16) Tag {
	return Tag(uint32(group)<<16 | uint32(element))
}

// Group returns the group number component of the Tag
func (t Tag) Group() uint16 {
	return uint16(t >> 16)
}

// Element returns the element number component of the Tag
func (t Tag) Element() uint16 {
	return uint16(t & 0xFFFF)
}

func (t Tag) String() string {
	return fmt.Sprintf("(%04X,%04X)", t.Group(), t.Element())
}

// IsMetaElement is true if and only if the Data Element belongs to the File Meta Information.
func (t Tag) IsMetaElement() bool {
	return t.Group() == 0x0002
}

// IsPrivate is true for tags of odd groups.
func (t Tag) IsPrivate() bool {
	return t.Group()%2 == 1
}

// IsPrivateCreator is true for the (gggg,0010-00FF) reservation elements of private groups.
func (t Tag) IsPrivateCreator() bool {
	return t.IsPrivate() && t.Element() >= 0x0010 && t.Element() <= 0x00FF
}

// IsGroupLength is true for (gggg,0000) elements.
func (t Tag) IsGroupLength() bool {
	return t.Element() == 0x0000
}

// isDelimitation is true for the item and delimitation tags of group FFFE. None of them can be
// stored in an AttributeList.
func (t Tag) isDelimitation() bool {
	return t == ItemTag || t == ItemDelimitationItemTag || t == SequenceDelimitationItemTag
}

// Sentinels and the tags whose values steer decoding.
const (
	ItemTag                           Tag = 0xFFFEE000
	ItemDelimitationItemTag           Tag = 0xFFFEE00D
	SequenceDelimitationItemTag       Tag = 0xFFFEE0DD
	DataSetTrailingPaddingTag         Tag = 0xFFFCFFFC
	FileMetaInformationGroupLengthTag Tag = 0x00020000
	TransferSyntaxUIDTag              Tag = 0x00020010
	BitsAllocatedTag                  Tag = 0x00280100
	PixelRepresentationTag            Tag = 0x00280103
	PixelDataTag                      Tag = 0x7FE00010
)

// File meta information
const (
	FileMetaInformationVersionTag   Tag = 0x00020001
	MediaStorageSOPClassUIDTag      Tag = 0x00020002
	MediaStorageSOPInstanceUIDTag   Tag = 0x00020003
	ImplementationClassUIDTag       Tag = 0x00020012
	ImplementationVersionNameTag    Tag = 0x00020013
	SourceApplicationEntityTitleTag Tag = 0x00020016
)

// Tags used by the library and its tests. The full catalog lives in dictionary.go.
const (
	SpecificCharacterSetTag             Tag = 0x00080005
	ImageTypeTag                        Tag = 0x00080008
	SOPClassUIDTag                      Tag = 0x00080016
	SOPInstanceUIDTag                   Tag = 0x00080018
	StudyDateTag                        Tag = 0x00080020
	ModalityTag                         Tag = 0x00080060
	ReferencedStudySequenceTag          Tag = 0x00081110
	ReferencedImageSequenceTag          Tag = 0x00081140
	ReferencedSOPClassUIDTag            Tag = 0x00081150
	ReferencedSOPInstanceUIDTag         Tag = 0x00081155
	PatientNameTag                      Tag = 0x00100010
	PatientIDTag                        Tag = 0x00100020
	DiffusionBValueTag                  Tag = 0x00189087
	StudyInstanceUIDTag                 Tag = 0x0020000D
	SeriesInstanceUIDTag                Tag = 0x0020000E
	SamplesPerPixelTag                  Tag = 0x00280002
	NumberOfFramesTag                   Tag = 0x00280008
	RowsTag                             Tag = 0x00280010
	ColumnsTag                          Tag = 0x00280011
	BitsStoredTag                       Tag = 0x00280101
	HighBitTag                          Tag = 0x00280102
	SmallestImagePixelValueTag          Tag = 0x00280106
	LargestImagePixelValueTag           Tag = 0x00280107
	PixelPaddingValueTag                Tag = 0x00280120
	RedPaletteColorLookupTableDataTag   Tag = 0x00281201
	LUTDescriptorTag                    Tag = 0x00283002
	LUTDataTag                          Tag = 0x00283006
	ModalityLUTSequenceTag              Tag = 0x00283000
	RealWorldValueFirstValueMappedTag   Tag = 0x00409216
	WaveformDataTag                     Tag = 0x54001010
	FloatPixelDataTag                   Tag = 0x7FE00008
	DoubleFloatPixelDataTag             Tag = 0x7FE00009
	CurveDataTag                        Tag = 0x50003000
	AudioSampleDataTag                  Tag = 0x5000200C
	OverlayDataTag                      Tag = 0x60003000
	EncapsulatedDocumentTag             Tag = 0x00420011
	ReferencedFrameNumberTag            Tag = 0x00081160
	FrameIncrementPointerTag            Tag = 0x00280009
	DimensionIndexPointerTag            Tag = 0x00209165
	ContentSequenceTag                  Tag = 0x0040A730
	PerFrameFunctionalGroupsSequenceTag Tag = 0x52009230
)

// isPixelLike reports whether the dictionary VR of tag is "OB or OW" because its width depends on
// the sample size: Pixel Data, Overlay Data, Curve Data, Audio Sample Data and Waveform Data.
func isPixelLike(t Tag) bool {
	switch {
	case t == PixelDataTag, t == WaveformDataTag:
		return true
	case t&0xFF00FFFF == OverlayDataTag, t&0xFF00FFFF == CurveDataTag, t&0xFF00FFFF == AudioSampleDataTag:
		return true
	}
	return false
}
