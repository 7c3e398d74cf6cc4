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
	"slices"
)

// blockSize bounds the intermediate buffers used for bulk array decoding and skipping.
const blockSize = 8192

// maxConsecutiveEmptyReads is how many (0, nil) reads SkipExact tolerates before giving up.
const maxConsecutiveEmptyReads = 100

// dcmReader is a wrapper around io.Reader, providing convenience methods for
// parsing tags, numbers and strings in a byte order that can change mid-stream.
//
// A dcmReader owns scratch buffers that are reused across calls, so it must only be used by one
// goroutine for one logical stream at a time.
type dcmReader struct {
	r         io.Reader
	order     binary.ByteOrder
	bytesRead int64
	word      [8]byte
	block     []byte
}

func newDcmReader(r io.Reader, order binary.ByteOrder) *dcmReader {
	return &dcmReader{r: r, order: order}
}

// Read implements io.Reader and counts the bytes read.
func (dr *dcmReader) Read(p []byte) (int, error) {
	n, err := dr.r.Read(p)
	dr.bytesRead += int64(n)
	return n, err
}

// Offset returns the number of bytes read since the start of the stream or since the last reset.
func (dr *dcmReader) Offset() int64 {
	return dr.bytesRead
}

// reset points the reader at a new underlying layer and re-anchors the offset to zero.
func (dr *dcmReader) reset(r io.Reader) {
	dr.r = r
	dr.bytesRead = 0
}

func (dr *dcmReader) scratch() []byte {
	if dr.block == nil {
		dr.block = make([]byte, blockSize)
	}
	return dr.block
}

// ReadExact fills p completely or fails with ErrUnexpectedEndOfStream.
func (dr *dcmReader) ReadExact(p []byte) error {
	n, err := io.ReadFull(dr, p)
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return fmt.Errorf("read %d of %d bytes at offset %d: %w",
			n, len(p), dr.bytesRead, ErrUnexpectedEndOfStream)
	}
	return err
}

// growBlockSize is how much ReadN grows its buffer per read.
const growBlockSize = 64 * 1024

// ReadN appends exactly n bytes to buf. buf grows with the bytes actually read, so a corrupt
// length fails with ErrUnexpectedEndOfStream before it can force a large allocation.
func (dr *dcmReader) ReadN(buf []byte, n int64) ([]byte, error) {
	for n > 0 {
		chunk := int(min(n, growBlockSize))
		start := len(buf)
		buf = slices.Grow(buf, chunk)[:start+chunk]
		if err := dr.ReadExact(buf[start:]); err != nil {
			return buf[:start], err
		}
		n -= int64(chunk)
	}
	return buf, nil
}

// SkipExact discards exactly n bytes. Short reads from the underlying reader are retried as long
// as they make progress.
func (dr *dcmReader) SkipExact(n int64) error {
	buf := dr.scratch()
	empty := 0
	for n > 0 {
		chunk := buf
		if int64(len(chunk)) > n {
			chunk = chunk[:n]
		}
		got, err := dr.Read(chunk)
		n -= int64(got)
		if n == 0 {
			return nil
		}
		if err == io.EOF {
			return fmt.Errorf("skipping, %d bytes short at offset %d: %w",
				n, dr.bytesRead, ErrUnexpectedEndOfStream)
		}
		if err != nil {
			return err
		}
		if got > 0 {
			empty = 0
			continue
		}
		if empty++; empty >= maxConsecutiveEmptyReads {
			return io.ErrNoProgress
		}
	}
	return nil
}

// Tag reads a group and element number. Unlike the other readers it returns a bare io.EOF when
// the stream ends exactly before the tag, which marks the normal end of an undefined length
// context.
func (dr *dcmReader) Tag() (Tag, error) {
	n, err := io.ReadFull(dr, dr.word[:4])
	if err == io.EOF && n == 0 {
		return 0, io.EOF
	}
	if err == io.ErrUnexpectedEOF {
		return 0, fmt.Errorf("reading tag at offset %d: %w", dr.bytesRead, ErrUnexpectedEndOfStream)
	}
	if err != nil {
		return 0, err
	}
	return NewTag(dr.order.Uint16(dr.word[0:2]), dr.order.Uint16(dr.word[2:4])), nil
}

// String returns a string of length n from the input stream
func (dr *dcmReader) String(n int) (string, error) {
	b, err := dr.ReadN(nil, int64(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// UInt8 returns a byte from the input stream
func (dr *dcmReader) UInt8() (uint8, error) {
	if err := dr.ReadExact(dr.word[:1]); err != nil {
		return 0, err
	}
	return dr.word[0], nil
}

// UInt16 returns a uint16 from the input stream
func (dr *dcmReader) UInt16() (uint16, error) {
	if err := dr.ReadExact(dr.word[:2]); err != nil {
		return 0, err
	}
	return dr.order.Uint16(dr.word[:2]), nil
}

// UInt32 returns a uint32 from the input stream
func (dr *dcmReader) UInt32() (uint32, error) {
	if err := dr.ReadExact(dr.word[:4]); err != nil {
		return 0, err
	}
	return dr.order.Uint32(dr.word[:4]), nil
}

// UInt64 returns a uint64 from the input stream
func (dr *dcmReader) UInt64() (uint64, error) {
	if err := dr.ReadExact(dr.word[:8]); err != nil {
		return 0, err
	}
	return dr.order.Uint64(dr.word[:8]), nil
}

// UInt16s reads n 16-bit words. The bytes are pulled through the fixed scratch block rather than
// one buffer sized to the whole array.
func (dr *dcmReader) UInt16s(n int) ([]uint16, error) {
	ret := make([]uint16, n)
	buf := dr.scratch()
	for i := 0; i < n; {
		count := n - i
		if count > len(buf)/2 {
			count = len(buf) / 2
		}
		chunk := buf[:count*2]
		if err := dr.ReadExact(chunk); err != nil {
			return nil, err
		}
		for j := 0; j < count; j++ {
			ret[i+j] = dr.order.Uint16(chunk[j*2:])
		}
		i += count
	}
	return ret, nil
}

// UInt32s reads n 32-bit words through the fixed scratch block.
func (dr *dcmReader) UInt32s(n int) ([]uint32, error) {
	ret := make([]uint32, n)
	buf := dr.scratch()
	for i := 0; i < n; {
		count := n - i
		if count > len(buf)/4 {
			count = len(buf) / 4
		}
		chunk := buf[:count*4]
		if err := dr.ReadExact(chunk); err != nil {
			return nil, err
		}
		for j := 0; j < count; j++ {
			ret[i+j] = dr.order.Uint32(chunk[j*4:])
		}
		i += count
	}
	return ret, nil
}

// UInt64s reads n 64-bit words through the fixed scratch block.
func (dr *dcmReader) UInt64s(n int) ([]uint64, error) {
	ret := make([]uint64, n)
	buf := dr.scratch()
	for i := 0; i < n; {
		count := min(n-i, len(buf)/8)
		chunk := buf[:count*8]
		if err := dr.ReadExact(chunk); err != nil {
			return nil, err
		}
		for j := 0; j < count; j++ {
			ret[i+j] = dr.order.Uint64(chunk[j*8:])
		}
		i += count
	}
	return ret, nil
}
