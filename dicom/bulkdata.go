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

// BulkDataReference describes a value that stays in its source instead of being loaded into
// memory. The value is streamed through a fixed-size buffer whenever it is read or written.
type BulkDataReference struct {
	// Source holds the value bytes at Region.
	Source io.ReaderAt

	ByteRegion

	// Order is the byte order of the multi-byte words of the value within Source.
	Order binary.ByteOrder
}

// ByteRegion is a contiguous sequence of bytes in a file described by an Offset and a length
type ByteRegion struct {
	Offset int64
	Length int64
}

func (r *BulkDataReference) String() string {
	return fmt.Sprintf("bulk data at offset %d, length %d", r.Offset, r.Length)
}

func (r *BulkDataReference) byteOrder() binary.ByteOrder {
	if r.Order == nil {
		return binary.LittleEndian
	}
	return r.Order
}

// NewReader returns a reader over the raw bytes of the value, in source byte order.
func (r *BulkDataReference) NewReader() io.Reader {
	return io.NewSectionReader(r.Source, r.Offset, r.Length)
}

// Bytes loads the value into memory with words of wordSize bytes converted to little endian.
func (r *BulkDataReference) Bytes(wordSize int) ([]byte, error) {
	b := make([]byte, r.Length)
	if _, err := io.ReadFull(r.NewReader(), b); err != nil {
		return nil, fmt.Errorf("reading bulk data: %w", err)
	}
	if r.Order == binary.BigEndian {
		if err := swapWords(b, wordSize); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// writeTo streams the value to dw in the given byte order, swapping words of wordSize bytes when
// it differs from the order of the source.
func (r *BulkDataReference) writeTo(dw *dcmWriter, order binary.ByteOrder, wordSize int) error {
	swap := r.byteOrder() != order && wordSize > 1
	if swap && r.Length%int64(wordSize) != 0 {
		return fmt.Errorf("bulk data length %d is not a multiple of %d", r.Length, wordSize)
	}
	src := newDcmReader(r.NewReader(), r.byteOrder())
	buf := dw.scratch()
	for remaining := r.Length; remaining > 0; {
		n := int64(len(buf))
		if n > remaining {
			n = remaining
		}
		chunk := buf[:n]
		if err := src.ReadExact(chunk); err != nil {
			return fmt.Errorf("reading bulk data: %w", err)
		}
		if swap {
			swapWords(chunk, wordSize)
		}
		if err := dw.Bytes(chunk); err != nil {
			return fmt.Errorf("writing bulk data: %w", err)
		}
		remaining -= n
	}
	return nil
}

// swapWords reverses the bytes of every wordSize-byte word of b in place.
func swapWords(b []byte, wordSize int) error {
	if wordSize <= 1 {
		return nil
	}
	if len(b)%wordSize != 0 {
		return fmt.Errorf("length %d is not a multiple of the word size %d", len(b), wordSize)
	}
	for i := 0; i < len(b); i += wordSize {
		w := b[i : i+wordSize]
		for j, k := 0, wordSize-1; j < k; j, k = j+1, k-1 {
			w[j], w[k] = w[k], w[j]
		}
	}
	return nil
}

// readFragments reads the items of an encapsulated value up to and including the sequence
// delimitation item, as described in
// http://dicom.nema.org/medical/dicom/current/output/html/part05.html#sect_A.4. The first
// fragment returned is the Basic Offset Table, possibly empty.
func readFragments(dr *dcmReader) ([][]byte, error) {
	fragments := [][]byte{}
	for {
		offset := dr.Offset()
		tag, err := dr.Tag()
		if err == io.EOF {
			// the stream ended inside an undefined length value, which is a normal end
			return fragments, nil
		}
		if err != nil {
			return nil, fmt.Errorf("reading tag in encapsulated format fragment: %w", err)
		}
		length, err := dr.UInt32()
		if err != nil {
			return nil, fmt.Errorf("reading fragment length: %w", err)
		}

		switch tag {
		case SequenceDelimitationItemTag:
			return fragments, nil
		case ItemTag:
		default:
			return nil, formatErrorf(offset, "unexpected tag %v in encapsulated value", tag)
		}
		if length == UndefinedLength {
			return nil, formatErrorf(offset, "expected fragment to be of explicit length")
		}

		fragment, err := dr.ReadN([]byte{}, int64(length))
		if err != nil {
			return nil, fmt.Errorf("reading fragment: %w", err)
		}
		fragments = append(fragments, fragment)
	}
}

// writeEncapsulatedFormat writes the byte fragments in the encapsulated format. The first fragment
// is the basic offset table.
func writeEncapsulatedFormat(dw *dcmWriter, fragments [][]byte) error {
	if len(fragments) == 0 {
		// the offset table item is mandatory even when empty
		fragments = [][]byte{{}}
	}
	for _, fragment := range fragments {
		if err := dw.Tag(ItemTag); err != nil {
			return fmt.Errorf("writing fragment tag: %w", err)
		}
		length := len(fragment)
		if err := dw.UInt32(uint32(length + length%2)); err != nil {
			return fmt.Errorf("writing fragment length: %w", err)
		}
		if err := dw.Bytes(fragment); err != nil {
			return fmt.Errorf("writing fragment: %w", err)
		}
		if length%2 != 0 {
			if err := dw.UInt8(0); err != nil {
				return fmt.Errorf("padding fragment: %w", err)
			}
		}
	}

	if err := dw.Delimiter(SequenceDelimitationItemTag); err != nil {
		return fmt.Errorf("writing fragment delimitation tag: %w", err)
	}
	return nil
}
