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
	"errors"
	"io"
	"reflect"
	"runtime"
	"testing"
	"testing/iotest"
)

// fragments encodes the items of an encapsulated value, starting with the Basic Offset Table.
func fragments(offsetTable []byte, frags ...[]byte) []byte {
	s := newStream(le, true).item(uint32(len(offsetTable))).raw(offsetTable)
	for _, f := range frags {
		s.item(uint32(len(f))).raw(f)
	}
	return s.delimiter(SequenceDelimitationItemTag).bytes()
}

func newTestFrameReader(t *testing.T, uid string, in []byte) *FrameReader {
	t.Helper()
	syntax, err := LookupTransferSyntax(uid)
	if err != nil {
		t.Fatalf("LookupTransferSyntax(%q) => %v", uid, err)
	}
	return NewFrameReader(iotest.HalfReader(bytes.NewReader(in)), syntax)
}

// readFrames reads every frame of fr.
func readFrames(t *testing.T, fr *FrameReader) [][]byte {
	t.Helper()
	var frames [][]byte
	for {
		frame, err := io.ReadAll(fr)
		if err != nil {
			t.Fatalf("reading frame %d => %v", fr.Frame(), err)
		}
		if len(frame) == 0 {
			return frames
		}
		frames = append(frames, frame)
		if err := fr.NextFrame(); err != nil {
			t.Fatalf("NextFrame() after frame %d => %v", fr.Frame(), err)
		}
	}
}

func TestFrameReader(t *testing.T) {
	tests := []struct {
		name string
		uid  string
		in   []byte
		want [][]byte
	}{
		{
			"frames spanning fragments",
			JPEGBaselineUID,
			fragments(le32(0, 20),
				[]byte{0xFF, 0xD8, 0x01, 0x02},
				[]byte{0x03, 0xFF, 0xD9, 0x00},
				[]byte{0xFF, 0xD8, 0x04, 0x05},
				[]byte{0x06, 0x07},
				[]byte{0xFF, 0xD9}),
			[][]byte{
				{0xFF, 0xD8, 0x01, 0x02, 0x03, 0xFF, 0xD9},
				{0xFF, 0xD8, 0x04, 0x05, 0x06, 0x07, 0xFF, 0xD9},
			},
		},
		{
			"empty offset table",
			JPEG2000UID,
			fragments(nil, []byte{0xFF, 0x4F, 0xFF, 0xD9}, []byte{0xFF, 0x4F, 0xFF, 0xD9}),
			[][]byte{{0xFF, 0x4F, 0xFF, 0xD9}, {0xFF, 0x4F, 0xFF, 0xD9}},
		},
		{
			"next frame starting after the end marker",
			JPEGLosslessUID,
			fragments(nil, []byte{0xFF, 0xD8, 0x01, 0xFF, 0xD9, 0xFF, 0xD8, 0x02}, []byte{0x03, 0xFF, 0xD9, 0x00}),
			[][]byte{
				{0xFF, 0xD8, 0x01, 0xFF, 0xD9},
				{0xFF, 0xD8, 0x02, 0x03, 0xFF, 0xD9},
			},
		},
		{
			"marker inside the middle fragment",
			JPEGExtendedUID,
			fragments(le32(0),
				[]byte{0xFF, 0xD8, 0x01, 0x00},
				[]byte{0x02, 0xFF, 0xD9, 0xFF, 0xD8, 0x03},
				[]byte{0x04, 0x05, 0xFF, 0xD9}),
			[][]byte{
				{0xFF, 0xD8, 0x01, 0x00, 0x02, 0xFF, 0xD9},
				{0xFF, 0xD8, 0x03, 0x04, 0x05, 0xFF, 0xD9},
			},
		},
		{
			"one fragment per frame",
			RLELosslessUID,
			fragments(le32(0, 4), []byte{0xFF, 0xD9, 0x01, 0x00}, []byte{0x02, 0x03}),
			[][]byte{{0xFF, 0xD9, 0x01, 0x00}, {0x02, 0x03}},
		},
		{
			"no frames",
			JPEGBaselineUID,
			fragments(nil),
			nil,
		},
		{
			"stream ending without sequence delimiter",
			RLELosslessUID,
			newStream(le, true).item(0).item(2).raw([]byte{0x01, 0x02}).bytes(),
			[][]byte{{0x01, 0x02}},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := readFrames(t, newTestFrameReader(t, tc.uid, tc.in))
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("frames => %v, want %v", got, tc.want)
			}
		})
	}
}

func TestFrameReader_nextFrame(t *testing.T) {
	in := fragments(nil,
		[]byte{0xFF, 0xD8, 0x01, 0x02},
		[]byte{0xFF, 0xD9},
		[]byte{0xFF, 0xD8, 0x03, 0xFF, 0xD9, 0x00},
	)
	fr := newTestFrameReader(t, JPEGBaselineUID, in)

	for i := 0; i < 2; i++ {
		if err := fr.NextFrame(); err != nil {
			t.Fatalf("NextFrame() => %v", err)
		}
	}
	if fr.Frame() != 0 {
		t.Fatalf("Frame() after NextFrame() at the first frame => %d, want 0", fr.Frame())
	}

	p := make([]byte, 1)
	if n, err := fr.Read(p); n != 1 || err != nil || p[0] != 0xFF {
		t.Fatalf("Read(_) => %v, %v, %v, want 1, <nil>, [255]", n, err, p)
	}
	if err := fr.NextFrame(); err != nil {
		t.Fatalf("NextFrame() => %v", err)
	}
	if fr.Frame() != 1 {
		t.Fatalf("Frame() => %d, want 1", fr.Frame())
	}

	got, err := io.ReadAll(fr)
	if err != nil {
		t.Fatalf("io.ReadAll(_) => %v", err)
	}
	if want := []byte{0xFF, 0xD8, 0x03, 0xFF, 0xD9}; !bytes.Equal(got, want) {
		t.Fatalf("second frame => %v, want %v", got, want)
	}
	for i := 0; i < 2; i++ {
		if n, err := fr.Read(p); n != 0 || err != io.EOF {
			t.Fatalf("Read(_) at the end of a frame => %v, %v, want 0, %v", n, err, io.EOF)
		}
	}

	if err := fr.NextFrame(); err != nil {
		t.Fatalf("NextFrame() after the last frame => %v", err)
	}
	if n, err := fr.Read(p); n != 0 || err != io.EOF {
		t.Fatalf("Read(_) after the last frame => %v, %v, want 0, %v", n, err, io.EOF)
	}
}

func TestFrameReader_malformed(t *testing.T) {
	tests := []struct {
		name     string
		in       []byte
		wantErr  error
		wantForm bool
	}{
		{
			"unexpected tag",
			newStream(le, true).item(0).element(RowsTag, "US", le16(1)).bytes(),
			nil, true,
		},
		{
			"undefined length fragment",
			newStream(le, true).item(0).item(UndefinedLength).bytes(),
			nil, true,
		},
		{
			"truncated fragment",
			newStream(le, true).item(0).item(8).raw([]byte{1, 2}).bytes(),
			ErrUnexpectedEndOfStream, false,
		},
		{
			"truncated offset table",
			newStream(le, true).item(8).raw([]byte{1, 2}).bytes(),
			ErrUnexpectedEndOfStream, false,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fr := newTestFrameReader(t, RLELosslessUID, tc.in)
			_, err := io.ReadAll(fr)
			if tc.wantForm {
				var fe *FormatError
				if !errors.As(err, &fe) {
					t.Fatalf("io.ReadAll(_) => %v, want *FormatError", err)
				}
			} else if !errors.Is(err, tc.wantErr) {
				t.Fatalf("io.ReadAll(_) => %v, want %v", err, tc.wantErr)
			}
			if next := fr.NextFrame(); next != err {
				t.Fatalf("NextFrame() after a failure => %v, want %v", next, err)
			}
		})
	}
}

// allocated reports the bytes allocated while f runs.
func allocated(f func()) uint64 {
	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)
	f()
	runtime.ReadMemStats(&after)
	return after.TotalAlloc - before.TotalAlloc
}

func TestTruncatedValuesDoNotAllocateTheirLength(t *testing.T) {
	const hugeLength = 0x40000000
	const limit = 1 << 20
	tests := []struct {
		name string
		read func() error
	}{
		{
			"frame reader fragment",
			func() error {
				in := newStream(le, true).item(0).item(hugeLength).raw([]byte{1, 2}).bytes()
				_, err := io.ReadAll(newTestFrameReader(t, RLELosslessUID, in))
				return err
			},
		},
		{
			"parsed fragment",
			func() error {
				in := newStream(le, true).
					header(PixelDataTag, "OB", UndefinedLength).
					item(0).item(hugeLength).raw([]byte{1, 2}).bytes()
				_, err := Parse(bytes.NewReader(in), WithTransferSyntax(ExplicitVRLittleEndian))
				return err
			},
		},
		{
			"parsed value",
			func() error {
				in := newStream(le, true).header(PatientIDTag, "UN", hugeLength).raw([]byte{1, 2}).bytes()
				_, err := Parse(bytes.NewReader(in), WithTransferSyntax(ExplicitVRLittleEndian))
				return err
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var err error
			n := allocated(func() { err = tc.read() })
			if !errors.Is(err, ErrUnexpectedEndOfStream) {
				t.Fatalf("read => %v, want %v", err, ErrUnexpectedEndOfStream)
			}
			if n > limit {
				t.Errorf("read allocated %d bytes, want at most %d", n, limit)
			}
		})
	}
}
