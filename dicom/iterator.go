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
	"encoding/binary"
	"fmt"
	"io"
)

// AttributeIterator returns the top level attributes of a DICOM stream in the order in which they
// appear, starting with the File Meta Information. Sequences and encapsulated values are read
// completely before they are returned.
type AttributeIterator struct {
	lr     *listReader
	meta   []*Attribute
	syntax *TransferSyntax
}

// NewAttributeIterator creates an AttributeIterator from a DICOM stream. The preamble is optional,
// and so is the meta header when the transfer syntax is given with WithTransferSyntax or can be
// guessed. The implementation returned will consume input from the io.Reader given as needed.
func NewAttributeIterator(r io.Reader, opts ...ParseOption) (*AttributeIterator, error) {
	o := collectParseOptions(opts)
	br := bufio.NewReader(r)
	header, err := detectHeader(br)
	if err != nil {
		return nil, err
	}

	dr := newDcmReader(br, binary.LittleEndian)
	dr.bytesRead = int64(len(header.preamble))
	lr := &listReader{dr: dr, enc: explicitVRLittleEndian, opts: o}

	it := &AttributeIterator{lr: lr, syntax: o.syntax}
	if header.hasMeta {
		if err := it.readMetaHeader(br); err != nil {
			return nil, fmt.Errorf("reading meta header: %w", err)
		}
	}
	if it.syntax == nil {
		it.syntax = sniffTransferSyntax(br)
	}

	if it.syntax.Compression != NoCompression {
		layer, err := openInputLayer(it.syntax.Compression, br)
		if err != nil {
			return nil, err
		}
		dr.reset(layer)
	} else if ra, ok := r.(io.ReaderAt); ok {
		lr.source = ra
	}
	lr.enc = it.syntax.encoding()
	dr.order = lr.enc.order
	return it, nil
}

// readMetaHeader buffers the group 0002 elements and finds the transfer syntax of the data set.
// The meta header ends where its group length says, or before the first element of another group.
func (it *AttributeIterator) readMetaHeader(br *bufio.Reader) error {
	end := int64(-1)
	for end < 0 || it.lr.dr.Offset() < end {
		if end < 0 {
			group, err := peekGroup(br)
			if err == io.EOF || (err == nil && group != 0x0002) {
				break
			}
			if err != nil {
				return err
			}
		}
		offset := it.lr.dr.Offset()
		tag, err := it.lr.dr.Tag()
		if err == io.EOF {
			return fmt.Errorf("meta header ended %d bytes early: %w", end-offset, ErrUnexpectedEndOfStream)
		}
		if err != nil {
			return fmt.Errorf("reading meta element tag: %w", err)
		}
		if !tag.IsMetaElement() {
			return formatErrorf(offset, "element %v inside the meta header", tag)
		}
		a, err := it.lr.readAttribute(tag, offset)
		if err != nil {
			return fmt.Errorf("reading meta element: %w", err)
		}
		if tag == FileMetaInformationGroupLengthTag && len(a.Value) == 4 && end < 0 {
			end = it.lr.dr.Offset() + int64(binary.LittleEndian.Uint32(a.Value))
		}
		it.meta = append(it.meta, a)
	}

	for _, a := range it.meta {
		if a.Tag != TransferSyntaxUIDTag {
			continue
		}
		uid, err := a.StringValue()
		if err != nil {
			return fmt.Errorf("reading transfer syntax: %w", err)
		}
		it.syntax = lookupTransferSyntaxOrDefault(uid)
	}
	return nil
}

// TransferSyntax returns the transfer syntax of the data set.
func (it *AttributeIterator) TransferSyntax() *TransferSyntax {
	return it.syntax
}

// Next returns the next attribute. If there is no next attribute, the error io.EOF is returned.
func (it *AttributeIterator) Next() (*Attribute, error) {
	if len(it.meta) > 0 {
		a := it.meta[0]
		it.meta = it.meta[1:]
		return a, nil
	}
	return it.lr.next(-1, false)
}
