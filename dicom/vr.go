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

import (
	"fmt"
)

// vrType is to group common encodings together
type vrType int

const (
	// textVR is for value fields that will be interpreted as simple text with space padding
	textVR vrType = iota

	// numberBinaryVR is for value fields that are parsed as binary numbers
	numberBinaryVR

	// bulkDataVR groups sequences of binary numbers
	bulkDataVR

	// uniqueIdentifierVR is for VR: UI. It has null padding
	uniqueIdentifierVR

	// sequenceVR is for VR: SQ
	sequenceVR

	// tagVR is for tags. Distinct from numberBinaryVR due to its pairs of 16-bit words
	tagVR

	// ambiguousVR is for the dictionary placeholders that are resolved while parsing
	ambiguousVR
)

// UndefinedLength as specified
// http://dicom.nema.org/medical/dicom/current/output/html/part05.html#sect_7.1.1
const UndefinedLength = 0xffffffff

// maxShortLength is the largest value length that fits the 16-bit length field of explicit VRs.
const maxShortLength = 0xffff

// VR models the DICOM Value representations (VR)
// http://dicom.nema.org/medical/dicom/current/output/html/part05.html#sect_6.2
type VR struct {
	// Name represents the 2-character VR Code
	Name string

	kind vrType

	// wordSize is the size in bytes of the unit that is reversed when changing byte order.
	wordSize int

	// longLength is set for VRs that use 2 reserved bytes and a 32-bit length in explicit syntaxes.
	longLength bool

	// characterSet is set for text affected by Specific Character Set (0008,0005).
	characterSet bool
}

// String returns the VR code.
func (vr *VR) String() string {
	return vr.Name
}

// HasLongLength reports whether explicit encodings use the 32-bit length field for vr.
func (vr *VR) HasLongLength() bool {
	return vr.longLength
}

// IsSequence reports whether vr is SQ.
func (vr *VR) IsSequence() bool {
	return vr.kind == sequenceVR
}

// IsAmbiguous reports whether vr is a dictionary placeholder that must be resolved before use.
func (vr *VR) IsAmbiguous() bool {
	return vr.kind == ambiguousVR
}

// IsText reports whether the value is character data.
func (vr *VR) IsText() bool {
	return vr.kind == textVR || vr.kind == uniqueIdentifierVR
}

// UsesCharacterSet reports whether the value is decoded with the Specific Character Set.
func (vr *VR) UsesCharacterSet() bool {
	return vr.characterSet
}

// WordSize is the size in bytes of the unit swapped when the byte order changes. It is 1 for VRs
// that are never swapped.
func (vr *VR) WordSize() int {
	return vr.wordSize
}

func (vr *VR) paddingByte() byte {
	switch vr.kind {
	case textVR:
		return ' '
	default:
		return 0x00
	}
}

var vrLookupMap = map[string]*VR{}

func newVR(name string, kind vrType, wordSize int) *VR {
	vr := &VR{Name: name, kind: kind, wordSize: wordSize}
	vrLookupMap[vr.Name] = vr

	return vr
}

func lookupVRByName(name string) (*VR, error) {
	r, ok := vrLookupMap[name]
	if !ok {
		return nil, fmt.Errorf("unknown vr name: %q", name)
	}
	return r, nil
}

// VR list obtained from
// http://dicom.nema.org/medical/dicom/current/output/html/part05.html#sect_6.2
var (
	// textual VRs
	CSVR = newVR("CS", textVR, 1)
	SHVR = newVR("SH", textVR, 1)
	LOVR = newVR("LO", textVR, 1)
	STVR = newVR("ST", textVR, 1)
	LTVR = newVR("LT", textVR, 1)
	ASVR = newVR("AS", textVR, 1)

	// person name
	PNVR = newVR("PN", textVR, 1)

	// application entity
	AEVR = newVR("AE", textVR, 1)

	// dates/time VR
	DAVR = newVR("DA", textVR, 1)
	TMVR = newVR("TM", textVR, 1)
	DTVR = newVR("DT", textVR, 1)

	// textual numbers
	ISVR = newVR("IS", textVR, 1)
	DSVR = newVR("DS", textVR, 1)

	// binary numbers
	SSVR = newVR("SS", numberBinaryVR, 2)
	USVR = newVR("US", numberBinaryVR, 2)
	SLVR = newVR("SL", numberBinaryVR, 4)
	ULVR = newVR("UL", numberBinaryVR, 4)
	FLVR = newVR("FL", numberBinaryVR, 4)
	FDVR = newVR("FD", numberBinaryVR, 8)
	SVVR = newVR("SV", numberBinaryVR, 8)
	UVVR = newVR("UV", numberBinaryVR, 8)

	// large binary sequences
	OBVR = newVR("OB", bulkDataVR, 1)
	ODVR = newVR("OD", bulkDataVR, 8)
	OLVR = newVR("OL", bulkDataVR, 4)
	OVVR = newVR("OV", bulkDataVR, 8)
	OWVR = newVR("OW", bulkDataVR, 2)
	OFVR = newVR("OF", bulkDataVR, 4)

	// unlimited char
	UCVR = newVR("UC", textVR, 1)

	// unknown. Its bytes are always little endian, so it is never swapped.
	UNVR = newVR("UN", bulkDataVR, 1)

	// URL
	URVR = newVR("UR", textVR, 1)

	// unlimited text
	UTVR = newVR("UT", textVR, 1)

	// attribute tag
	ATVR = newVR("AT", tagVR, 2)

	// unique identifier
	UIVR = newVR("UI", uniqueIdentifierVR, 1)

	// sequence
	SQVR = newVR("SQ", sequenceVR, 1)

	// Dictionary placeholders. They are never legal in an explicit VR stream.

	// XSVR is "US or SS", resolved with the Pixel Representation of the data set.
	XSVR = newVR("XS", ambiguousVR, 2)
	// OXVR is "OB or OW", resolved with the target syntax and Bits Allocated.
	OXVR = newVR("OX", ambiguousVR, 2)
	// XWVR is "US or OW" (lookup table data), always resolved to OW.
	XWVR = newVR("XW", ambiguousVR, 2)
)

func init() {
	// For explicit VR, lengths can be stored in a 32 bit field or a 16 bit field
	// depending on the VR type. The 2 cases are defined at the link:
	// http://dicom.nema.org/medical/dicom/current/output/html/part05.html#sect_7.1.2
	for _, vr := range []*VR{OBVR, ODVR, OFVR, OLVR, OVVR, OWVR, SQVR, SVVR, UCVR, UNVR, URVR, UTVR, UVVR} {
		vr.longLength = true
	}
	for _, vr := range []*VR{SHVR, LOVR, STVR, LTVR, PNVR, UCVR, UTVR} {
		vr.characterSet = true
	}
}
