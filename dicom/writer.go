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
	"fmt"
	"io"
)

var errExpectedMetaHeader = errors.New("expected header to only contain file meta elements, " +
	"use AttributeList.MetaAttributes to filter the AttributeList")

// AttributeWriter writes Attributes one at a time in the transfer syntax of its header. Close must
// be called to finish compressed output.
type AttributeWriter struct {
	lw         *listWriter
	compressor io.Closer
}

// NewAttributeWriter writes the DICOM preamble, signature, and meta header to w and returns an
// AttributeWriter that writes Attributes in the transfer syntax specified by the header.
// The options are applied in the order given to all Attributes including File Meta Elements
// before being written to w.
func NewAttributeWriter(w io.Writer, header *AttributeList, opts ...ConstructOption) (*AttributeWriter, error) {
	for _, t := range header.Tags() {
		if !t.IsMetaElement() {
			return nil, errExpectedMetaHeader
		}
	}
	syntax, err := header.TransferSyntax()
	if err != nil {
		return nil, fmt.Errorf("getting transfer syntax from header: %w", err)
	}

	o := collectConstructOptions(opts)
	dw := newDcmWriter(w, binary.LittleEndian)
	if err := writeDicomSignature(dw); err != nil {
		return nil, err
	}

	// The File Meta Information Group Length stores how long the rest of the meta header is, so the
	// meta elements are encoded first.
	// http://dicom.nema.org/medical/dicom/current/output/html/part10.html#sect_7.1
	var meta bytes.Buffer
	lw := &listWriter{dw: newDcmWriter(&meta, binary.LittleEndian), enc: explicitVRLittleEndian, opts: o}
	for _, a := range header.Attributes() {
		if a.Tag == FileMetaInformationGroupLengthTag {
			continue
		}
		if err := lw.writeAttribute(a); err != nil {
			return nil, fmt.Errorf("writing meta element: %w", err)
		}
	}
	if err := writeMetaHeader(dw, &meta); err != nil {
		return nil, err
	}

	aw := &AttributeWriter{lw: &listWriter{dw: dw, enc: syntax.encoding(), opts: o}}
	if syntax.Compression != NoCompression {
		layer, compressor, err := openOutputLayer(syntax.Compression, w)
		if err != nil {
			return nil, err
		}
		dw.reset(layer)
		aw.compressor = compressor
	}
	dw.order = syntax.ByteOrder()
	return aw, nil
}

// WriteAttribute writes a data set Attribute. Attributes should be written in ascending tag order.
func (aw *AttributeWriter) WriteAttribute(a *Attribute) error {
	return aw.lw.writeAttribute(a)
}

// Close finishes the compressed stream of deflated transfer syntaxes. It does not close the
// underlying io.Writer.
func (aw *AttributeWriter) Close() error {
	if aw.compressor == nil {
		return nil
	}
	c := aw.compressor
	aw.compressor = nil
	return c.Close()
}

func writeDicomSignature(dw *dcmWriter) error {
	if err := dw.Bytes(make([]byte, preambleSize)); err != nil {
		return fmt.Errorf("writing DICOM preamble: %w", err)
	}
	if err := dw.String(dicmPrefix); err != nil {
		return fmt.Errorf("writing DICOM signature: %w", err)
	}
	return nil
}
