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

// FrameReader reads the frames of encapsulated pixel data as described in
// http://dicom.nema.org/medical/dicom/current/output/html/part05.html#sect_A.4
//
// The Basic Offset Table is always skipped. For the JPEG family of transfer syntaxes a frame ends
// with the fragment holding the last EOI marker (FF D9) and may span several fragments; for
// every other syntax each fragment is one frame.
//
// Read returns io.EOF at the end of each frame. NextFrame moves to the following frame.
type FrameReader struct {
	dr         *dcmReader
	markerScan bool

	started bool
	// done is set once the sequence delimiter or the end of the stream is reached.
	done bool
	// fresh is set while nothing of the current frame has been read.
	fresh bool
	// boundary is set when the current frame ends with buf[pos:end].
	boundary bool

	buf      []byte
	pos, end int
	// held are the bytes following the end marker of the current frame.
	held []byte

	frame int
	err   error
}

// NewFrameReader returns a FrameReader over r, which must be positioned at the first item of an
// encapsulated value, right after the header of the Pixel Data element.
func NewFrameReader(r io.Reader, syntax *TransferSyntax) *FrameReader {
	return &FrameReader{
		dr:         newDcmReader(r, binary.LittleEndian),
		markerScan: syntax.markerFrames,
		fresh:      true,
	}
}

// Frame returns the index of the current frame, starting at 0.
func (fr *FrameReader) Frame() int {
	return fr.frame
}

// Read reads bytes of the current frame, loading fragments as needed. It returns io.EOF at the
// end of the frame and keeps doing so until NextFrame is called.
func (fr *FrameReader) Read(p []byte) (int, error) {
	if fr.err != nil {
		return 0, fr.err
	}
	if len(p) == 0 {
		return 0, nil
	}
	if err := fr.start(); err != nil {
		return 0, err
	}
	for {
		if fr.pos < fr.end {
			n := copy(p, fr.buf[fr.pos:fr.end])
			fr.pos += n
			fr.fresh = false
			return n, nil
		}
		if fr.boundary || fr.done {
			return 0, io.EOF
		}
		if err := fr.loadFragment(); err != nil {
			return 0, err
		}
		fr.fresh = false
	}
}

// NextFrame discards what is left of the current frame and positions the reader at the start of
// the next one. It does nothing when the reader is already at the start of a frame. After the
// last frame, Read returns io.EOF.
func (fr *FrameReader) NextFrame() error {
	if fr.err != nil {
		return fr.err
	}
	if err := fr.start(); err != nil {
		return err
	}
	if fr.fresh {
		return nil
	}
	for !fr.boundary && !fr.done {
		if err := fr.loadFragment(); err != nil {
			return err
		}
	}

	fr.frame++
	fr.fresh = true
	fr.boundary = false
	fr.pos, fr.end = 0, 0
	if len(fr.held) > 0 && !allZero(fr.held) {
		// the last fragment of the frame also holds the start of the next one
		fr.buf = append(fr.buf[:0], fr.held...)
		fr.end = len(fr.buf)
	}
	fr.held = fr.held[:0]
	return nil
}

// start skips the Basic Offset Table the first time it is called.
func (fr *FrameReader) start() error {
	if fr.started {
		return nil
	}
	fr.started = true

	tag, length, err := fr.readItemHeader()
	if err != nil {
		return fr.fail(err)
	}
	if tag == SequenceDelimitationItemTag {
		fr.done = true
		return nil
	}
	if err := fr.dr.SkipExact(int64(length)); err != nil {
		return fr.fail(fmt.Errorf("skipping basic offset table: %w", err))
	}
	return nil
}

// loadFragment replaces the readable range with the next fragment. The end of the stream or the
// sequence delimiter sets done instead.
func (fr *FrameReader) loadFragment() error {
	tag, length, err := fr.readItemHeader()
	if err != nil {
		return fr.fail(err)
	}
	if tag == SequenceDelimitationItemTag {
		fr.done = true
		fr.pos, fr.end = 0, 0
		return nil
	}

	if fr.buf, err = fr.dr.ReadN(fr.buf[:0], int64(length)); err != nil {
		return fr.fail(fmt.Errorf("reading fragment: %w", err))
	}
	fr.pos, fr.end = 0, len(fr.buf)
	fr.held = fr.held[:0]

	if !fr.markerScan {
		fr.boundary = true
		return nil
	}
	if i := lastMarker(fr.buf); i >= 0 {
		fr.end = i + 2
		fr.held = append(fr.held, fr.buf[fr.end:]...)
		fr.boundary = true
	}
	return nil
}

// readItemHeader reads an item tag and its length. A stream that ends before the tag is reported
// as the sequence delimiter.
func (fr *FrameReader) readItemHeader() (Tag, uint32, error) {
	offset := fr.dr.Offset()
	tag, err := fr.dr.Tag()
	if err == io.EOF {
		return SequenceDelimitationItemTag, 0, nil
	}
	if err != nil {
		return 0, 0, fmt.Errorf("reading fragment tag: %w", err)
	}
	length, err := fr.dr.UInt32()
	if err != nil {
		return 0, 0, fmt.Errorf("reading fragment length: %w", err)
	}
	switch {
	case tag == SequenceDelimitationItemTag:
		return tag, 0, nil
	case tag != ItemTag:
		return 0, 0, formatErrorf(offset, "unexpected %v in encapsulated pixel data", tag)
	case length == UndefinedLength:
		return 0, 0, formatErrorf(offset, "fragment has undefined length")
	}
	return tag, length, nil
}

func (fr *FrameReader) fail(err error) error {
	fr.err = err
	return err
}

// lastMarker returns the index of the last FF D9 pair in b, or -1.
func lastMarker(b []byte) int {
	for i := len(b) - 2; i >= 0; i-- {
		if b[i] == 0xFF && b[i+1] == 0xD9 {
			return i
		}
	}
	return -1
}

func allZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}
