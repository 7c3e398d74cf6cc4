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
	"fmt"
)

// listWriter encodes Attributes in an element encoding. Values of Attributes are little endian
// and are swapped for big endian output.
type listWriter struct {
	dw    *dcmWriter
	enc   elementEncoding
	opts  constructOptions
	state dataSetState
}

func (lw *listWriter) writeList(list *AttributeList) error {
	for _, a := range list.Attributes() {
		if err := lw.writeAttribute(a); err != nil {
			return fmt.Errorf("writing attribute %v: %w", a.Tag, err)
		}
	}
	return nil
}

func (lw *listWriter) writeAttribute(a *Attribute) error {
	a, err := applyTransforms(a, lw.opts.transforms)
	if err != nil {
		return err
	}
	if a == nil {
		return nil
	}
	if a.Tag.isDelimitation() {
		return fmt.Errorf("%v cannot be written as an attribute", a.Tag)
	}

	vr := a.VR
	if vr == nil {
		vr = a.Tag.DictionaryVR()
	}
	vr = resolveVR(a.Tag, vr, lw.enc.explicit, lw.state)

	switch {
	case a.Sequence != nil:
		return lw.writeSequence(a.Tag, a.Sequence)
	case a.Fragments != nil:
		if vr != OWVR {
			vr = OBVR
		}
		if err := lw.enc.writeHeader(lw.dw, a.Tag, vr, UndefinedLength); err != nil {
			return err
		}
		return writeEncapsulatedFormat(lw.dw, a.Fragments)
	}

	length := a.ValueLength()
	pad := length%2 != 0
	if pad {
		length++
	}
	outVR, demoted := outputVR(vr, lw.enc, length)
	if err := lw.enc.writeHeader(lw.dw, a.Tag, outVR, length); err != nil {
		return err
	}

	// UN values are byte streams, left in little endian
	order := lw.dw.order
	if demoted {
		order = binary.LittleEndian
	}
	if a.Bulk != nil {
		if err := a.Bulk.writeTo(lw.dw, order, vr.WordSize()); err != nil {
			return err
		}
	} else if err := lw.writeValue(a.Value, order, vr.WordSize()); err != nil {
		return err
	}
	if pad {
		if err := lw.dw.UInt8(vr.paddingByte()); err != nil {
			return fmt.Errorf("writing padding: %w", err)
		}
	}

	if isSteeringTag(a.Tag) && len(a.Value) == 2 && vr.kind == numberBinaryVR {
		lw.state.observe(a.Tag, binary.LittleEndian.Uint16(a.Value))
	}
	return nil
}

func (lw *listWriter) writeValue(value []byte, order binary.ByteOrder, wordSize int) error {
	if order == binary.LittleEndian || wordSize <= 1 {
		return lw.dw.Bytes(value)
	}
	swapped := append([]byte(nil), value...)
	if err := swapWords(swapped, wordSize); err != nil {
		return err
	}
	return lw.dw.Bytes(swapped)
}

func (lw *listWriter) writeSequence(tag Tag, seq *Sequence) error {
	if lw.opts.explicitLengths {
		return lw.writeExplicitLengthSequence(tag, seq)
	}

	if err := lw.enc.writeHeader(lw.dw, tag, SQVR, UndefinedLength); err != nil {
		return err
	}
	for _, item := range seq.Items {
		if err := lw.dw.Tag(ItemTag); err != nil {
			return fmt.Errorf("writing item tag: %w", err)
		}
		if err := lw.dw.UInt32(UndefinedLength); err != nil {
			return fmt.Errorf("writing item length: %w", err)
		}
		if err := lw.writeList(item.AttributeList); err != nil {
			return fmt.Errorf("writing sequence item: %w", err)
		}
		if err := lw.dw.Delimiter(ItemDelimitationItemTag); err != nil {
			return fmt.Errorf("writing item delimitation item: %w", err)
		}
	}
	if err := lw.dw.Delimiter(SequenceDelimitationItemTag); err != nil {
		return fmt.Errorf("writing sequence delimitation item: %w", err)
	}
	return nil
}

// writeExplicitLengthSequence encodes the items in memory to learn their lengths.
func (lw *listWriter) writeExplicitLengthSequence(tag Tag, seq *Sequence) error {
	var body bytes.Buffer
	items := newDcmWriter(&body, lw.dw.order)
	for _, item := range seq.Items {
		var content bytes.Buffer
		child := &listWriter{dw: newDcmWriter(&content, lw.dw.order), enc: lw.enc, opts: lw.opts, state: lw.state}
		if err := child.writeList(item.AttributeList); err != nil {
			return fmt.Errorf("writing sequence item: %w", err)
		}
		lw.state = child.state

		if err := items.Tag(ItemTag); err != nil {
			return fmt.Errorf("writing item tag: %w", err)
		}
		if err := items.UInt32(uint32(content.Len())); err != nil {
			return fmt.Errorf("writing item length: %w", err)
		}
		if err := items.Bytes(content.Bytes()); err != nil {
			return err
		}
	}

	if err := lw.enc.writeHeader(lw.dw, tag, SQVR, uint32(body.Len())); err != nil {
		return err
	}
	return lw.dw.Bytes(body.Bytes())
}
