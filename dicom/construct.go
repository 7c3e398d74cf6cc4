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

// Construct writes the given AttributeList as a DICOM file to the given io.Writer. The desired
// output transfer syntax is specified by the required Transfer Syntax UID attribute (0002,0010).
// By default, there is no validation against the DICOM standard of any form.
//
// If an Attribute is missing its VR it is filled in from the DICOM Data Dictionary. The File Meta
// Information Group Length is re-calculated.
func Construct(w io.Writer, list *AttributeList, opts ...ConstructOption) error {
	aw, err := NewAttributeWriter(w, list.MetaAttributes(), opts...)
	if err != nil {
		return err
	}
	for _, a := range list.DataSetAttributes().Attributes() {
		if err := aw.WriteAttribute(a); err != nil {
			return fmt.Errorf("writing attribute %v: %w", a.Tag, err)
		}
	}
	return aw.Close()
}

// WriteDataSet writes the data set Attributes of list to w in the given transfer syntax, without
// preamble or meta header.
func WriteDataSet(w io.Writer, list *AttributeList, syntax *TransferSyntax, opts ...ConstructOption) error {
	dw := newDcmWriter(w, binary.LittleEndian)
	var compressor io.Closer
	if syntax.Compression != NoCompression {
		layer, c, err := openOutputLayer(syntax.Compression, w)
		if err != nil {
			return err
		}
		dw.reset(layer)
		compressor = c
	}
	dw.order = syntax.ByteOrder()

	lw := &listWriter{dw: dw, enc: syntax.encoding(), opts: collectConstructOptions(opts)}
	if err := lw.writeList(list.DataSetAttributes()); err != nil {
		return err
	}
	if compressor != nil {
		return compressor.Close()
	}
	return nil
}
