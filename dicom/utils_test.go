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
	"math"
	"reflect"
	"testing"
)

var longLengthVRNames = map[string]bool{
	"OB": true, "OD": true, "OF": true, "OL": true, "OV": true, "OW": true, "SQ": true,
	"SV": true, "UC": true, "UN": true, "UR": true, "UT": true, "UV": true,
}

// stream encodes data elements by hand, independently of dcmWriter.
type stream struct {
	buf      bytes.Buffer
	order    binary.ByteOrder
	explicit bool
}

func newStream(order binary.ByteOrder, explicit bool) *stream {
	return &stream{order: order, explicit: explicit}
}

func (s *stream) u16(v uint16) *stream {
	b := make([]byte, 2)
	s.order.PutUint16(b, v)
	s.buf.Write(b)
	return s
}

func (s *stream) u32(v uint32) *stream {
	b := make([]byte, 4)
	s.order.PutUint32(b, v)
	s.buf.Write(b)
	return s
}

func (s *stream) raw(b []byte) *stream {
	s.buf.Write(b)
	return s
}

func (s *stream) tag(t Tag) *stream {
	return s.u16(t.Group()).u16(t.Element())
}

func (s *stream) header(t Tag, vr string, length uint32) *stream {
	s.tag(t)
	if !s.explicit {
		return s.u32(length)
	}
	s.buf.WriteString(vr)
	if longLengthVRNames[vr] {
		return s.u16(0).u32(length)
	}
	return s.u16(uint16(length))
}

func (s *stream) element(t Tag, vr string, value []byte) *stream {
	return s.header(t, vr, uint32(len(value))).raw(value)
}

func (s *stream) item(length uint32) *stream {
	return s.tag(ItemTag).u32(length)
}

func (s *stream) delimiter(t Tag) *stream {
	return s.tag(t).u32(0)
}

func (s *stream) bytes() []byte {
	return s.buf.Bytes()
}

// metaHeader returns a preamble, prefix and meta header announcing uid.
func metaHeader(uid string) []byte {
	elements := newStream(binary.LittleEndian, true).
		element(FileMetaInformationVersionTag, "OB", []byte{0, 1}).
		element(MediaStorageSOPClassUIDTag, "UI", text("1.2.840.10008.5.1.4.1.1.7", 0)).
		element(TransferSyntaxUIDTag, "UI", text(uid, 0))

	s := newStream(binary.LittleEndian, true).raw(make([]byte, preambleSize)).raw([]byte(dicmPrefix))
	s.element(FileMetaInformationGroupLengthTag, "UL", le32(uint32(elements.buf.Len())))
	return s.raw(elements.bytes()).bytes()
}

func text(s string, padding byte) []byte {
	b := []byte(s)
	if len(b)%2 != 0 {
		b = append(b, padding)
	}
	return b
}

func words(order binary.ByteOrder, vs ...uint16) []byte {
	b := make([]byte, 2*len(vs))
	for i, v := range vs {
		order.PutUint16(b[2*i:], v)
	}
	return b
}

func le16(vs ...uint16) []byte {
	return words(binary.LittleEndian, vs...)
}

func le32(vs ...uint32) []byte {
	b := make([]byte, 4*len(vs))
	for i, v := range vs {
		binary.LittleEndian.PutUint32(b[4*i:], v)
	}
	return b
}

func float64s(order binary.ByteOrder, vs ...float64) []byte {
	b := make([]byte, 8*len(vs))
	for i, v := range vs {
		order.PutUint64(b[8*i:], math.Float64bits(v))
	}
	return b
}

func join(parts ...[]byte) []byte {
	return bytes.Join(parts, nil)
}

// compareLists compares tags, VRs and values of two lists, ignoring item offsets.
func compareLists(t *testing.T, got, want *AttributeList) {
	t.Helper()
	if !reflect.DeepEqual(got.Tags(), want.Tags()) {
		t.Fatalf("expected lists to have same tags: got %v, want %v", got.Tags(), want.Tags())
	}
	for _, tag := range want.Tags() {
		g, _ := got.Get(tag)
		w, _ := want.Get(tag)
		compareAttributes(t, g, w)
	}
}

func compareAttributes(t *testing.T, got, want *Attribute) {
	t.Helper()
	if got.VR != want.VR {
		t.Fatalf("expected VRs of %v to be equal: got %v, want %v", want.Tag, got.VR, want.VR)
	}
	if !bytes.Equal(got.Value, want.Value) {
		t.Fatalf("expected values of %v to be equal: got %v, want %v", want.Tag, got.Value, want.Value)
	}
	if !reflect.DeepEqual(got.Fragments, want.Fragments) {
		t.Fatalf("expected fragments of %v to be equal: got %v, want %v", want.Tag, got.Fragments, want.Fragments)
	}
	if (got.Sequence == nil) != (want.Sequence == nil) {
		t.Fatalf("expected %v to be a sequence in both lists: got %v, want %v", want.Tag, got, want)
	}
	if want.Sequence == nil {
		return
	}
	if got.Sequence.Len() != want.Sequence.Len() {
		t.Fatalf("expected sequences %v to have same length: got %v, want %v",
			want.Tag, got.Sequence.Len(), want.Sequence.Len())
	}
	for i := 0; i < want.Sequence.Len(); i++ {
		compareLists(t, got.Sequence.At(i).AttributeList, want.Sequence.At(i).AttributeList)
	}
}

func mustPut(t *testing.T, l *AttributeList, attrs ...*Attribute) *AttributeList {
	t.Helper()
	for _, a := range attrs {
		if err := l.Put(a); err != nil {
			t.Fatalf("Put(%v) => %v", a.Tag, err)
		}
	}
	return l
}
