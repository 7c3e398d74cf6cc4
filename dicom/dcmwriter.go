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
	"io"
)

// dcmWriter mirrors dcmReader on the output side. It tracks the number of bytes written since the
// start of the stream (or since the last reset) so callers can report positions.
type dcmWriter struct {
	w            io.Writer
	order        binary.ByteOrder
	bytesWritten int64
	word         [8]byte
	block        []byte
}

func newDcmWriter(w io.Writer, order binary.ByteOrder) *dcmWriter {
	return &dcmWriter{w: w, order: order}
}

// Write implements io.Writer and counts the bytes written.
func (dw *dcmWriter) Write(p []byte) (int, error) {
	n, err := dw.w.Write(p)
	dw.bytesWritten += int64(n)
	return n, err
}

// Offset returns the number of bytes written since the start of the stream or the last reset.
func (dw *dcmWriter) Offset() int64 {
	return dw.bytesWritten
}

func (dw *dcmWriter) reset(w io.Writer) {
	dw.w = w
	dw.bytesWritten = 0
}

func (dw *dcmWriter) scratch() []byte {
	if dw.block == nil {
		dw.block = make([]byte, blockSize)
	}
	return dw.block
}

func (dw *dcmWriter) Tag(tag Tag) error {
	if err := dw.UInt16(tag.Group()); err != nil {
		return err
	}
	return dw.UInt16(tag.Element())
}

// Delimiter writes one of the item or sequence delimitation items, which always have a zero length.
func (dw *dcmWriter) Delimiter(tag Tag) error {
	if err := dw.Tag(tag); err != nil {
		return fmt.Errorf("writing delimiter tag: %w", err)
	}
	if err := dw.UInt32(0); err != nil {
		return fmt.Errorf("writing item length of delimiter: %w", err)
	}
	return nil
}

func (dw *dcmWriter) UInt8(v uint8) error {
	dw.word[0] = v
	return dw.Bytes(dw.word[:1])
}

func (dw *dcmWriter) UInt16(v uint16) error {
	dw.order.PutUint16(dw.word[:2], v)
	return dw.Bytes(dw.word[:2])
}

func (dw *dcmWriter) UInt32(v uint32) error {
	dw.order.PutUint32(dw.word[:4], v)
	return dw.Bytes(dw.word[:4])
}

func (dw *dcmWriter) UInt64(v uint64) error {
	dw.order.PutUint64(dw.word[:8], v)
	return dw.Bytes(dw.word[:8])
}

// UInt16s encodes the words block by block through the scratch buffer.
func (dw *dcmWriter) UInt16s(v []uint16) error {
	buf := dw.scratch()
	for len(v) > 0 {
		count := len(v)
		if count > len(buf)/2 {
			count = len(buf) / 2
		}
		for j := 0; j < count; j++ {
			dw.order.PutUint16(buf[j*2:], v[j])
		}
		if err := dw.Bytes(buf[:count*2]); err != nil {
			return err
		}
		v = v[count:]
	}
	return nil
}

// UInt32s encodes the words block by block through the scratch buffer.
func (dw *dcmWriter) UInt32s(v []uint32) error {
	buf := dw.scratch()
	for len(v) > 0 {
		count := len(v)
		if count > len(buf)/4 {
			count = len(buf) / 4
		}
		for j := 0; j < count; j++ {
			dw.order.PutUint32(buf[j*4:], v[j])
		}
		if err := dw.Bytes(buf[:count*4]); err != nil {
			return err
		}
		v = v[count:]
	}
	return nil
}

// UInt64s encodes the words block by block through the scratch buffer.
func (dw *dcmWriter) UInt64s(v []uint64) error {
	buf := dw.scratch()
	for len(v) > 0 {
		count := min(len(v), len(buf)/8)
		for j := 0; j < count; j++ {
			dw.order.PutUint64(buf[j*8:], v[j])
		}
		if err := dw.Bytes(buf[:count*8]); err != nil {
			return err
		}
		v = v[count:]
	}
	return nil
}

func (dw *dcmWriter) String(s string) error {
	_, err := io.WriteString(dw, s)
	return err
}

func (dw *dcmWriter) Bytes(b []byte) error {
	_, err := dw.Write(b)
	return err
}
