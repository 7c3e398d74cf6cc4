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
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// File preamble and prefix as described in
// http://dicom.nema.org/medical/dicom/current/output/html/part10.html#sect_7.1
const (
	preambleSize = 128
	dicmPrefix   = "DICM"
)

// streamHeader describes what precedes the data set of a stream.
type streamHeader struct {
	// preamble holds the preamble and the DICM prefix, or nil if the stream has none.
	preamble []byte
	// hasMeta is set when File Meta Information elements come next.
	hasMeta bool
}

// detectHeader consumes the preamble of br, if any, and reports whether a meta header follows. A
// meta header without preamble is recognized when the stream starts with an explicit VR element
// of group 0002.
func detectHeader(br *bufio.Reader) (streamHeader, error) {
	b, err := br.Peek(preambleSize + len(dicmPrefix))
	if err == nil && string(b[preambleSize:]) == dicmPrefix {
		preamble := make([]byte, len(b))
		copy(preamble, b)
		if _, err := br.Discard(len(b)); err != nil {
			return streamHeader{}, fmt.Errorf("skipping preamble: %w", err)
		}
		return streamHeader{preamble: preamble, hasMeta: true}, nil
	}
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return streamHeader{}, fmt.Errorf("reading preamble: %w", err)
	}

	b, _ = br.Peek(tagSize + vrSize)
	if len(b) == tagSize+vrSize && binary.LittleEndian.Uint16(b) == 0x0002 && isVRName(b[tagSize:]) {
		return streamHeader{hasMeta: true}, nil
	}
	return streamHeader{}, nil
}

func isVRName(b []byte) bool {
	if len(b) != vrSize || b[0] < 'A' || b[0] > 'Z' || b[1] < 'A' || b[1] > 'Z' {
		return false
	}
	vr, err := lookupVRByName(string(b))
	return err == nil && !vr.IsAmbiguous()
}

// sniffTransferSyntax guesses the syntax of a data set without meta header from its first
// element. Implicit VR big endian does not exist, so implicit streams are little endian.
func sniffTransferSyntax(br *bufio.Reader) *TransferSyntax {
	b, _ := br.Peek(tagSize + vrSize)
	if len(b) < tagSize+vrSize || !isVRName(b[tagSize:]) {
		return ImplicitVRLittleEndian
	}
	// group numbers are small, so the byte order with the smaller value is the right one
	if binary.BigEndian.Uint16(b) < binary.LittleEndian.Uint16(b) {
		return ExplicitVRBigEndian
	}
	return ExplicitVRLittleEndian
}

// peekGroup returns the group number of the next tag without consuming it. The meta header is
// always little endian.
func peekGroup(br *bufio.Reader) (uint16, error) {
	b, err := br.Peek(2)
	if len(b) < 2 {
		if err == nil {
			err = io.EOF
		}
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// writeMetaHeader writes the meta header elements encoded in meta, preceded by their recomputed
// group length element.
func writeMetaHeader(dw *dcmWriter, meta *bytes.Buffer) error {
	if err := explicitVRLittleEndian.writeHeader(dw, FileMetaInformationGroupLengthTag, ULVR, 4); err != nil {
		return fmt.Errorf("writing meta group length: %w", err)
	}
	if err := dw.UInt32(uint32(meta.Len())); err != nil {
		return fmt.Errorf("writing meta group length: %w", err)
	}
	if err := dw.Bytes(meta.Bytes()); err != nil {
		return fmt.Errorf("writing meta header: %w", err)
	}
	return nil
}

// writeUID writes a UI element padded with a NUL byte to even length.
func writeUID(dw *dcmWriter, enc elementEncoding, tag Tag, uid string) error {
	value := []byte(uid)
	if len(value)%2 != 0 {
		value = append(value, 0)
	}
	if err := enc.writeHeader(dw, tag, UIVR, uint32(len(value))); err != nil {
		return err
	}
	return dw.Bytes(value)
}
