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
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// list of transfer syntaxes obtained from
// http://dicom.nema.org/medical/dicom/current/output/html/part06.html#chapter_A
const (
	// ImplicitVRLittleEndianUID is the Implicit VR Little Endian UID
	ImplicitVRLittleEndianUID = "1.2.840.10008.1.2"
	// ExplicitVRLittleEndianUID is the Explicit VR Little Endian UID
	ExplicitVRLittleEndianUID = "1.2.840.10008.1.2.1"
	// ExplicitVRBigEndianUID is the Explicit VR Big Endian UID
	ExplicitVRBigEndianUID = "1.2.840.10008.1.2.2"
	// DeflatedExplicitVRLittleEndianUID is the Deflated Explicit VR Little Endian UID
	DeflatedExplicitVRLittleEndianUID = "1.2.840.10008.1.2.1.99"
	// Bzip2ExplicitVRLittleEndianUID is the private PixelMed bzip2 compressed Explicit VR Little
	// Endian UID
	Bzip2ExplicitVRLittleEndianUID = "1.3.6.1.4.1.5962.300.1"
	// JPEGBaselineUID is the JPEG Baseline (Process 1) transfer syntax UID
	JPEGBaselineUID = "1.2.840.10008.1.2.4.50"
	// JPEGExtendedUID is the JPEG Extended (Process 2 & 4) transfer syntax UID
	JPEGExtendedUID = "1.2.840.10008.1.2.4.51"
	// JPEGLosslessUID is the JPEG Lossless, Non-Hierarchical (Process 14) transfer syntax UID
	JPEGLosslessUID = "1.2.840.10008.1.2.4.57"
	// JPEGLosslessSV1UID is the JPEG Lossless, First-Order Prediction (Process 14, Selection
	// Value 1) transfer syntax UID
	JPEGLosslessSV1UID = "1.2.840.10008.1.2.4.70"
	// JPEGLSLosslessUID is the JPEG-LS Lossless transfer syntax UID
	JPEGLSLosslessUID = "1.2.840.10008.1.2.4.80"
	// JPEGLSNearLosslessUID is the JPEG-LS Lossy (Near-Lossless) transfer syntax UID
	JPEGLSNearLosslessUID = "1.2.840.10008.1.2.4.81"
	// JPEG2000LosslessUID is the JPEG 2000 Image Compression (Lossless Only) transfer syntax UID
	JPEG2000LosslessUID = "1.2.840.10008.1.2.4.90"
	// JPEG2000UID is the JPEG 2000 Image Compression transfer syntax UID
	JPEG2000UID = "1.2.840.10008.1.2.4.91"
	// RLELosslessUID is the RLE Lossless transfer syntax UID
	RLELosslessUID = "1.2.840.10008.1.2.5"
	// MPEG2MainProfileUID is the MPEG2 Main Profile / Main Level transfer syntax UID
	MPEG2MainProfileUID = "1.2.840.10008.1.2.4.100"
	// MPEG4HighProfileUID is the MPEG-4 AVC/H.264 High Profile / Level 4.1 transfer syntax UID
	MPEG4HighProfileUID = "1.2.840.10008.1.2.4.102"
	// HEVCMainProfileUID is the HEVC/H.265 Main Profile / Level 5.1 transfer syntax UID
	HEVCMainProfileUID = "1.2.840.10008.1.2.4.107"
)

// Compression identifies a codec applied to the whole data set after the meta header.
type Compression int

const (
	// NoCompression means the data set follows the meta header as is.
	NoCompression Compression = iota
	// DeflateCompression is the raw deflate stream of RFC 1951.
	DeflateCompression
	// Bzip2Compression is the bzip2 stream used by the PixelMed private transfer syntax.
	Bzip2Compression
)

func (c Compression) String() string {
	switch c {
	case NoCompression:
		return "none"
	case DeflateCompression:
		return "deflate"
	case Bzip2Compression:
		return "bzip2"
	}
	return fmt.Sprintf("Compression(%d)", int(c))
}

// TransferSyntax describes how a data set is encoded. Values returned by LookupTransferSyntax are
// shared and must not be modified.
type TransferSyntax struct {
	UID          string
	Name         string
	BigEndian    bool
	ExplicitVR   bool
	Encapsulated bool
	Lossy        bool
	Compression  Compression

	// markerFrames is set when each frame of encapsulated pixel data ends with an EOI/EOC marker
	// and may span several fragments.
	markerFrames bool
}

func (ts *TransferSyntax) String() string {
	return ts.Name
}

// ByteOrder returns the byte order of the data set elements.
func (ts *TransferSyntax) ByteOrder() binary.ByteOrder {
	if ts.BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// encoding returns the element encoding beneath any compression layer.
func (ts *TransferSyntax) encoding() elementEncoding {
	return elementEncoding{order: ts.ByteOrder(), explicit: ts.ExplicitVR}
}

var transferSyntaxes = map[string]*TransferSyntax{}

func newTransferSyntax(ts *TransferSyntax) *TransferSyntax {
	transferSyntaxes[ts.UID] = ts
	return ts
}

var (
	// ImplicitVRLittleEndian is the default DICOM transfer syntax.
	ImplicitVRLittleEndian = newTransferSyntax(&TransferSyntax{
		UID:  ImplicitVRLittleEndianUID,
		Name: "Implicit VR Little Endian",
	})
	// ExplicitVRLittleEndian is also the encoding of every meta header.
	ExplicitVRLittleEndian = newTransferSyntax(&TransferSyntax{
		UID:        ExplicitVRLittleEndianUID,
		Name:       "Explicit VR Little Endian",
		ExplicitVR: true,
	})
	// ExplicitVRBigEndian is retired but still found in archives.
	ExplicitVRBigEndian = newTransferSyntax(&TransferSyntax{
		UID:        ExplicitVRBigEndianUID,
		Name:       "Explicit VR Big Endian",
		BigEndian:  true,
		ExplicitVR: true,
	})
	// DeflatedExplicitVRLittleEndian compresses the data set with deflate.
	DeflatedExplicitVRLittleEndian = newTransferSyntax(&TransferSyntax{
		UID:         DeflatedExplicitVRLittleEndianUID,
		Name:        "Deflated Explicit VR Little Endian",
		ExplicitVR:  true,
		Compression: DeflateCompression,
	})
	// Bzip2ExplicitVRLittleEndian compresses the data set with bzip2.
	Bzip2ExplicitVRLittleEndian = newTransferSyntax(&TransferSyntax{
		UID:         Bzip2ExplicitVRLittleEndianUID,
		Name:        "PixelMed Bzip2 Explicit VR Little Endian",
		ExplicitVR:  true,
		Compression: Bzip2Compression,
	})
)

func init() {
	for _, ts := range []struct {
		uid, name    string
		lossy        bool
		markerFrames bool
	}{
		{JPEGBaselineUID, "JPEG Baseline (Process 1)", true, true},
		{JPEGExtendedUID, "JPEG Extended (Process 2 & 4)", true, true},
		{JPEGLosslessUID, "JPEG Lossless, Non-Hierarchical (Process 14)", false, true},
		{JPEGLosslessSV1UID, "JPEG Lossless, First-Order Prediction", false, true},
		{JPEGLSLosslessUID, "JPEG-LS Lossless", false, true},
		{JPEGLSNearLosslessUID, "JPEG-LS Near-Lossless", true, true},
		{JPEG2000LosslessUID, "JPEG 2000 (Lossless Only)", false, true},
		{JPEG2000UID, "JPEG 2000", true, true},
		{RLELosslessUID, "RLE Lossless", false, false},
		{MPEG2MainProfileUID, "MPEG2 Main Profile / Main Level", true, false},
		{MPEG4HighProfileUID, "MPEG-4 AVC/H.264 High Profile / Level 4.1", true, false},
		{HEVCMainProfileUID, "HEVC/H.265 Main Profile / Level 5.1", true, false},
	} {
		newTransferSyntax(&TransferSyntax{
			UID:          ts.uid,
			Name:         ts.name,
			ExplicitVR:   true,
			Encapsulated: true,
			Lossy:        ts.lossy,
			markerFrames: ts.markerFrames,
		})
	}
}

// LookupTransferSyntax returns the catalogued transfer syntax for uid. Trailing NUL and space
// padding of uid is ignored.
func LookupTransferSyntax(uid string) (*TransferSyntax, error) {
	ts, ok := transferSyntaxes[trimUID(uid)]
	if !ok {
		return nil, fmt.Errorf("unknown transfer syntax %q", uid)
	}
	return ts, nil
}

// lookupTransferSyntaxOrDefault treats an unknown UID as an encapsulated explicit VR little endian
// syntax as required by PS3.5 A.4
// http://dicom.nema.org/medical/dicom/current/output/html/part05.html#sect_A.4
func lookupTransferSyntaxOrDefault(uid string) *TransferSyntax {
	if ts, err := LookupTransferSyntax(uid); err == nil {
		return ts
	}
	uid = trimUID(uid)
	return &TransferSyntax{UID: uid, Name: uid, ExplicitVR: true, Encapsulated: true}
}

func trimUID(uid string) string {
	return strings.TrimRight(uid, "\x00 ")
}

const (
	vrSize  = 2
	tagSize = 4
)

// elementEncoding is the byte order and VR explicitness of a stream of data elements. Two
// streams with equal encodings have identical element layouts.
type elementEncoding struct {
	order    binary.ByteOrder
	explicit bool
}

var (
	implicitVRLittleEndian = elementEncoding{binary.LittleEndian, false}
	explicitVRLittleEndian = elementEncoding{binary.LittleEndian, true}
)

func (e elementEncoding) String() string {
	vr := "implicit"
	if e.explicit {
		vr = "explicit"
	}
	return fmt.Sprintf("%s VR %v", vr, e.order)
}

// readVR returns the VR of the element with the given tag. Explicit streams must name a concrete
// VR; the dictionary placeholders are only valid for implicit lookups.
func (e elementEncoding) readVR(dr *dcmReader, tag Tag) (*VR, error) {
	if !e.explicit {
		return tag.DictionaryVR(), nil
	}

	offset := dr.Offset()
	vrString, err := dr.String(vrSize)
	if err != nil {
		return nil, fmt.Errorf("reading vr of %v: %w", tag, err)
	}
	vr, err := lookupVRByName(vrString)
	if err != nil {
		return nil, formatErrorf(offset, "element %v: %v", tag, err)
	}
	if vr.IsAmbiguous() {
		return nil, formatErrorf(offset, "element %v: placeholder vr %v is not allowed in an explicit stream", tag, vr)
	}
	return vr, nil
}

func (e elementEncoding) readValueLength(dr *dcmReader, vr *VR) (uint32, error) {
	if !e.explicit {
		return dr.UInt32()
	}

	if vr.HasLongLength() {
		if _, err := dr.UInt16(); err != nil {
			return 0, fmt.Errorf("reading reserved field: %w", err)
		}

		length, err := dr.UInt32()
		if err != nil {
			return 0, fmt.Errorf("reading 32 bit length: %w", err)
		}
		return length, nil
	}

	length, err := dr.UInt16()
	if err != nil {
		return 0, fmt.Errorf("reading 16 bit length: %w", err)
	}
	return uint32(length), nil
}

func (e elementEncoding) writeVR(dw *dcmWriter, vr *VR) error {
	if !e.explicit {
		// This just a no-op since the implicit syntax does not write VRs into the file.
		return nil
	}
	return dw.String(vr.Name)
}

func (e elementEncoding) writeValueLength(dw *dcmWriter, vr *VR, valueFieldLength uint32) error {
	if !e.explicit {
		return dw.UInt32(valueFieldLength)
	}

	if vr.HasLongLength() {
		if err := dw.UInt16(0); err != nil {
			return fmt.Errorf("writing reserved field: %w", err)
		}
		if err := dw.UInt32(valueFieldLength); err != nil {
			return fmt.Errorf("writing 32 bit length: %w", err)
		}
		return nil
	}

	if valueFieldLength > math.MaxUint16 {
		return fmt.Errorf("data element value length %d exceeds unsigned 16-bit length", valueFieldLength)
	}
	if err := dw.UInt16(uint16(valueFieldLength)); err != nil {
		return fmt.Errorf("writing 16 bit length: %w", err)
	}
	return nil
}

// writeHeader writes the tag, VR and length of an element.
func (e elementEncoding) writeHeader(dw *dcmWriter, tag Tag, vr *VR, valueFieldLength uint32) error {
	if err := dw.Tag(tag); err != nil {
		return fmt.Errorf("writing tag: %w", err)
	}
	if err := e.writeVR(dw, vr); err != nil {
		return fmt.Errorf("writing vr: %w", err)
	}
	if err := e.writeValueLength(dw, vr, valueFieldLength); err != nil {
		return fmt.Errorf("writing length of %v: %w", tag, err)
	}
	return nil
}
