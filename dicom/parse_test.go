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
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"reflect"
	"testing"
	"testing/iotest"

	"github.com/klauspost/compress/flate"
)

var le = binary.LittleEndian

// explicitLittleEndianFile has a meta header, a nested sequence of definite length and native
// 16-bit pixel data.
func explicitLittleEndianFile() []byte {
	nestedItem := newStream(le, true).
		element(ReferencedSOPClassUIDTag, "UI", text("1.2.840.10008.5.1.4.1.1.4", 0)).
		element(ReferencedSOPInstanceUIDTag, "UI", text("1.2.3.4", 0)).bytes()
	nested := newStream(le, true).item(uint32(len(nestedItem))).raw(nestedItem).bytes()
	outerItem := newStream(le, true).header(ReferencedImageSequenceTag, "SQ", uint32(len(nested))).raw(nested).bytes()
	outer := newStream(le, true).item(uint32(len(outerItem))).raw(outerItem).bytes()

	return newStream(le, true).raw(metaHeader(ExplicitVRLittleEndianUID)).
		header(ReferencedStudySequenceTag, "SQ", uint32(len(outer))).raw(outer).
		element(PatientIDTag, "LO", text("12345", ' ')).
		element(RowsTag, "US", le16(2)).
		element(BitsAllocatedTag, "US", le16(16)).
		element(PixelDataTag, "OW", le16(0x1111, 0x2222)).bytes()
}

func expectedExplicitLittleEndianList(t *testing.T) *AttributeList {
	nested := mustPut(t, NewAttributeList(),
		NewStringAttribute(ReferencedSOPClassUIDTag, UIVR, "1.2.840.10008.5.1.4.1.1.4"),
		NewStringAttribute(ReferencedSOPInstanceUIDTag, UIVR, "1.2.3.4"),
	)
	outer := mustPut(t, NewAttributeList(), NewSequenceAttribute(ReferencedImageSequenceTag, nested))
	return mustPut(t, NewAttributeList(),
		NewUint32Attribute(FileMetaInformationGroupLengthTag, 76),
		NewBytesAttribute(FileMetaInformationVersionTag, OBVR, []byte{0, 1}),
		NewStringAttribute(MediaStorageSOPClassUIDTag, UIVR, "1.2.840.10008.5.1.4.1.1.7"),
		NewStringAttribute(TransferSyntaxUIDTag, UIVR, ExplicitVRLittleEndianUID),
		NewSequenceAttribute(ReferencedStudySequenceTag, outer),
		NewStringAttribute(PatientIDTag, LOVR, "12345"),
		NewUint16Attribute(RowsTag, 2),
		NewUint16Attribute(BitsAllocatedTag, 16),
		NewBytesAttribute(PixelDataTag, OWVR, le16(0x1111, 0x2222)),
	)
}

func TestParse(t *testing.T) {
	got, err := Parse(bytes.NewReader(explicitLittleEndianFile()))
	if err != nil {
		t.Fatalf("Parse(_) => %v", err)
	}
	compareLists(t, got, expectedExplicitLittleEndianList(t))

	seq, _ := got.Get(ReferencedStudySequenceTag)
	if off := seq.Sequence.At(0).Offset; off <= preambleSize {
		t.Fatalf("item offset => %v, want the position of the item in the stream", off)
	}
}

func TestParse_oneByteReads(t *testing.T) {
	got, err := Parse(iotest.OneByteReader(bytes.NewReader(explicitLittleEndianFile())))
	if err != nil {
		t.Fatalf("Parse(_) => %v", err)
	}
	compareLists(t, got, expectedExplicitLittleEndianList(t))
}

func TestParse_implicitWithoutHeader(t *testing.T) {
	in := newStream(le, false).
		element(BitsAllocatedTag, "", le16(8)).
		element(PixelRepresentationTag, "", le16(1)).
		element(SmallestImagePixelValueTag, "", le16(0xFFFE)).
		element(LUTDataTag, "", le16(1, 2)).
		element(PixelDataTag, "", []byte{1, 2, 3, 4}).bytes()

	got, err := Parse(bytes.NewReader(in))
	if err != nil {
		t.Fatalf("Parse(_) => %v", err)
	}
	want := mustPut(t, NewAttributeList(),
		NewUint16Attribute(BitsAllocatedTag, 8),
		NewUint16Attribute(PixelRepresentationTag, 1),
		&Attribute{Tag: SmallestImagePixelValueTag, VR: SSVR, Value: le16(0xFFFE)},
		&Attribute{Tag: LUTDataTag, VR: OWVR, Value: le16(1, 2)},
		&Attribute{Tag: PixelDataTag, VR: OBVR, Value: []byte{1, 2, 3, 4}},
	)
	compareLists(t, got, want)

	v, _ := got.Get(SmallestImagePixelValueTag)
	if s, err := v.Int16s(); err != nil || !reflect.DeepEqual(s, []int16{-2}) {
		t.Fatalf("Int16s() => (%v, %v), want ([-2], nil)", s, err)
	}
}

func TestParse_bigEndianValuesAreStoredLittleEndian(t *testing.T) {
	be := binary.BigEndian
	in := newStream(be, true).
		element(RowsTag, "US", words(be, 0x0102)).
		element(DiffusionBValueTag, "FD", float64s(be, 1.5, -2)).
		element(PatientIDTag, "LO", []byte("AB")).bytes()

	it, err := NewAttributeIterator(bytes.NewReader(in), WithTransferSyntax(ExplicitVRBigEndian))
	if err != nil {
		t.Fatalf("NewAttributeIterator(_) => %v", err)
	}
	if it.TransferSyntax() != ExplicitVRBigEndian {
		t.Fatalf("TransferSyntax() => %v, want %v", it.TransferSyntax(), ExplicitVRBigEndian)
	}
	got, err := CollectAttributes(it)
	if err != nil {
		t.Fatalf("CollectAttributes(_) => %v", err)
	}
	want := mustPut(t, NewAttributeList(),
		NewUint16Attribute(RowsTag, 0x0102),
		NewFloat64Attribute(DiffusionBValueTag, 1.5, -2),
		NewStringAttribute(PatientIDTag, LOVR, "AB"),
	)
	compareLists(t, got, want)
}

func TestParse_sniffsBigEndian(t *testing.T) {
	in := newStream(binary.BigEndian, true).element(RowsTag, "US", words(binary.BigEndian, 7)).bytes()
	it, err := NewAttributeIterator(bytes.NewReader(in))
	if err != nil {
		t.Fatalf("NewAttributeIterator(_) => %v", err)
	}
	if it.TransferSyntax() != ExplicitVRBigEndian {
		t.Fatalf("TransferSyntax() => %v, want %v", it.TransferSyntax(), ExplicitVRBigEndian)
	}
}

func TestParse_undefinedLengthUN(t *testing.T) {
	item := newStream(le, false).element(ReferencedSOPInstanceUIDTag, "", text("1.2", 0)).bytes()
	in := newStream(le, true).
		header(NewTag(0x0029, 0x1010), "UN", UndefinedLength).
		raw(newStream(le, false).item(UndefinedLength).raw(item).delimiter(ItemDelimitationItemTag).
			delimiter(SequenceDelimitationItemTag).bytes()).
		element(PatientIDTag, "LO", []byte("AB")).bytes()

	got, err := Parse(bytes.NewReader(in), WithTransferSyntax(ExplicitVRLittleEndian))
	if err != nil {
		t.Fatalf("Parse(_) => %v", err)
	}
	want := mustPut(t, NewAttributeList(),
		NewSequenceAttribute(NewTag(0x0029, 0x1010),
			mustPut(t, NewAttributeList(), NewStringAttribute(ReferencedSOPInstanceUIDTag, UIVR, "1.2"))),
		NewStringAttribute(PatientIDTag, LOVR, "AB"),
	)
	compareLists(t, got, want)
}

func TestParse_encapsulatedPixelData(t *testing.T) {
	in := newStream(le, true).raw(metaHeader(JPEGBaselineUID)).
		header(PixelDataTag, "OB", UndefinedLength).
		item(0).
		item(4).raw([]byte{0xFF, 0xD8, 0xFF, 0xD9}).
		delimiter(SequenceDelimitationItemTag).bytes()

	got, err := Parse(bytes.NewReader(in))
	if err != nil {
		t.Fatalf("Parse(_) => %v", err)
	}
	pixels, ok := got.Get(PixelDataTag)
	if !ok {
		t.Fatalf("Get(%v) => not found", PixelDataTag)
	}
	if want := [][]byte{{}, {0xFF, 0xD8, 0xFF, 0xD9}}; !reflect.DeepEqual(pixels.Fragments, want) {
		t.Fatalf("Fragments => %v, want %v", pixels.Fragments, want)
	}
}

func TestParse_referenceBulkData(t *testing.T) {
	in := explicitLittleEndianFile()
	got, err := Parse(bytes.NewReader(in), ReferenceBulkData(DefaultBulkDataDefinition))
	if err != nil {
		t.Fatalf("Parse(_) => %v", err)
	}
	pixels, _ := got.Get(PixelDataTag)
	if pixels.Bulk == nil {
		t.Fatalf("Bulk => nil, want a reference")
	}
	wantOffset := int64(len(in) - 4)
	if pixels.Bulk.Offset != wantOffset || pixels.Bulk.Length != 4 {
		t.Fatalf("Bulk => %v, want offset %v length 4", pixels.Bulk, wantOffset)
	}
	v, err := pixels.Uint16s()
	if err != nil || !reflect.DeepEqual(v, []uint16{0x1111, 0x2222}) {
		t.Fatalf("Uint16s() => (%v, %v), want ([4369 8738], nil)", v, err)
	}

	// without io.ReaderAt the value is loaded
	got, err = Parse(iotest.HalfReader(bytes.NewReader(in)), ReferenceBulkData(DefaultBulkDataDefinition))
	if err != nil {
		t.Fatalf("Parse(_) => %v", err)
	}
	if pixels, _ := got.Get(PixelDataTag); pixels.Bulk != nil || len(pixels.Value) != 4 {
		t.Fatalf("Parse(_) of a plain io.Reader => %v, want a loaded value", pixels)
	}
}

func TestParse_transformsArePostOrder(t *testing.T) {
	var seen []Tag
	record := WithTransform(func(a *Attribute) (*Attribute, error) {
		seen = append(seen, a.Tag)
		return a, nil
	})
	dropUIDs := WithTransform(func(a *Attribute) (*Attribute, error) {
		if a.VR == UIVR {
			return nil, nil
		}
		return a, nil
	})

	got, err := Parse(bytes.NewReader(explicitLittleEndianFile()), record, dropUIDs, DropGroupLengths)
	if err != nil {
		t.Fatalf("Parse(_) => %v", err)
	}

	want := []Tag{
		FileMetaInformationGroupLengthTag, FileMetaInformationVersionTag, MediaStorageSOPClassUIDTag,
		TransferSyntaxUIDTag,
		ReferencedSOPClassUIDTag, ReferencedSOPInstanceUIDTag, ReferencedImageSequenceTag,
		ReferencedStudySequenceTag, PatientIDTag, RowsTag, BitsAllocatedTag, PixelDataTag,
	}
	if !reflect.DeepEqual(seen, want) {
		t.Fatalf("transform order => %v, want %v", seen, want)
	}

	wantTags := []Tag{FileMetaInformationVersionTag, ReferencedStudySequenceTag, PatientIDTag, RowsTag, BitsAllocatedTag, PixelDataTag}
	if !reflect.DeepEqual(got.Tags(), wantTags) {
		t.Fatalf("Tags() => %v, want %v", got.Tags(), wantTags)
	}
	outer, _ := got.Get(ReferencedStudySequenceTag)
	inner, _ := outer.Sequence.At(0).Get(ReferencedImageSequenceTag)
	if inner.Sequence.At(0).Len() != 0 {
		t.Fatalf("nested item => %v, want UIDs filtered out", inner.Sequence.At(0))
	}
}

func TestParse_transformError(t *testing.T) {
	fail := WithTransform(func(a *Attribute) (*Attribute, error) {
		if a.Tag == RowsTag {
			return nil, errors.New("rows not allowed")
		}
		return a, nil
	})
	if _, err := Parse(bytes.NewReader(explicitLittleEndianFile()), fail); err == nil {
		t.Fatalf("Parse(_) => nil error, want the transform error")
	}
}

func TestParse_malformedStreams(t *testing.T) {
	tests := []struct {
		name     string
		in       []byte
		want     []Tag
		wantErr  error
		wantForm bool
	}{
		{
			"stray item at data set level is skipped",
			newStream(le, true).
				element(PatientIDTag, "LO", []byte("AB")).
				item(10).
				element(RowsTag, "US", le16(1)).bytes(),
			[]Tag{PatientIDTag, RowsTag}, nil, false,
		},
		{
			"trailing padding ends the data set",
			newStream(le, true).
				element(PatientIDTag, "LO", []byte("AB")).
				element(DataSetTrailingPaddingTag, "OB", []byte{0, 0}).
				element(RowsTag, "US", le16(1)).bytes(),
			[]Tag{PatientIDTag}, nil, false,
		},
		{
			"end of stream inside an undefined length sequence",
			newStream(le, true).
				header(ReferencedImageSequenceTag, "SQ", UndefinedLength).
				item(UndefinedLength).
				element(ReferencedSOPInstanceUIDTag, "UI", text("1.2", 0)).bytes(),
			[]Tag{ReferencedImageSequenceTag}, nil, false,
		},
		{
			"end of stream inside a definite length sequence",
			newStream(le, true).
				header(ReferencedImageSequenceTag, "SQ", 100).
				item(92).
				element(ReferencedSOPInstanceUIDTag, "UI", text("1.2", 0)).bytes(),
			nil, ErrUnexpectedEndOfStream, false,
		},
		{
			"end of stream inside a value",
			newStream(le, true).header(PatientIDTag, "LO", 10).raw([]byte("AB")).bytes(),
			nil, ErrUnexpectedEndOfStream, false,
		},
		{
			"items overrun a definite length sequence",
			newStream(le, true).
				header(ReferencedImageSequenceTag, "SQ", 8).
				item(12).
				element(ReferencedSOPInstanceUIDTag, "UI", text("1.2", 0)).
				element(PatientIDTag, "LO", []byte("AB")).bytes(),
			nil, nil, true,
		},
		{
			"placeholder vr in an explicit stream",
			newStream(le, true).element(PixelDataTag, "OX", []byte{1, 2}).bytes(),
			nil, nil, true,
		},
		{
			"sequence delimiter inside an item",
			newStream(le, true).
				header(ReferencedImageSequenceTag, "SQ", UndefinedLength).
				item(UndefinedLength).
				delimiter(SequenceDelimitationItemTag).bytes(),
			nil, nil, true,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Parse(bytes.NewReader(tc.in), WithTransferSyntax(ExplicitVRLittleEndian))
			if tc.wantForm {
				var fe *FormatError
				if !errors.As(err, &fe) {
					t.Fatalf("Parse(_) => %v, want *FormatError", err)
				}
				return
			}
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("Parse(_) => %v, want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(_) => %v", err)
			}
			if !reflect.DeepEqual(got.Tags(), tc.want) {
				t.Fatalf("Tags() => %v, want %v", got.Tags(), tc.want)
			}
		})
	}
}

func TestParse_deflated(t *testing.T) {
	body := newStream(le, true).
		element(PatientIDTag, "LO", []byte("AB")).
		element(RowsTag, "US", le16(3)).bytes()
	var compressed bytes.Buffer
	fw, err := flate.NewWriter(&compressed, flate.BestCompression)
	if err != nil {
		t.Fatalf("flate.NewWriter(_) => %v", err)
	}
	fw.Write(body)
	fw.Close()

	in := join(metaHeader(DeflatedExplicitVRLittleEndianUID), compressed.Bytes())
	got, err := Parse(bytes.NewReader(in), ReferenceBulkData(func(*Attribute) bool { return true }))
	if err != nil {
		t.Fatalf("Parse(_) => %v", err)
	}
	rows, ok := got.Get(RowsTag)
	if !ok || rows.Bulk != nil {
		t.Fatalf("Get(%v) => %v, want a loaded value", RowsTag, rows)
	}
	if v, _ := rows.Uint16s(); !reflect.DeepEqual(v, []uint16{3}) {
		t.Fatalf("Uint16s() => %v, want [3]", v)
	}
}

func TestAttributeIterator_Next(t *testing.T) {
	it, err := NewAttributeIterator(bytes.NewReader(explicitLittleEndianFile()))
	if err != nil {
		t.Fatalf("NewAttributeIterator(_) => %v", err)
	}
	var tags []Tag
	for a, err := it.Next(); err != io.EOF; a, err = it.Next() {
		if err != nil {
			t.Fatalf("Next() => %v", err)
		}
		tags = append(tags, a.Tag)
	}
	want := expectedExplicitLittleEndianList(t).Tags()
	if !reflect.DeepEqual(tags, want) {
		t.Fatalf("Next() tags => %v, want %v", tags, want)
	}
	if _, err := it.Next(); err != io.EOF {
		t.Fatalf("Next() after the end => %v, want io.EOF", err)
	}
}
