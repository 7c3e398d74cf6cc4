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

	"github.com/golang/glog"
)

// listReader decodes data elements into Attributes. Values are converted to little endian.
type listReader struct {
	dr    *dcmReader
	enc   elementEncoding
	state dataSetState
	opts  parseOptions

	// source is set when values may be left in the input as bulk data references. Offsets of
	// dr are then positions in source.
	source io.ReaderAt

	padded bool
	eof    bool
}

// next returns the next attribute of the current context: the data set when end is negative and
// inItem is false, or an item ending at offset end or at its delimiter. It returns io.EOF at the
// end of the context.
func (lr *listReader) next(end int64, inItem bool) (*Attribute, error) {
	for {
		if lr.padded {
			return nil, io.EOF
		}
		if lr.eof {
			if end >= 0 && lr.dr.Offset() < end {
				return nil, fmt.Errorf("input ended %d bytes before the end of a definite length: %w",
					end-lr.dr.Offset(), ErrUnexpectedEndOfStream)
			}
			return nil, io.EOF
		}
		if end >= 0 && lr.dr.Offset() >= end {
			if lr.dr.Offset() > end {
				return nil, formatErrorf(lr.dr.Offset(), "elements overrun their definite length by %d bytes", lr.dr.Offset()-end)
			}
			return nil, io.EOF
		}

		offset := lr.dr.Offset()
		tag, err := lr.dr.Tag()
		if err == io.EOF {
			lr.eof = true
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("getting tag: %w", err)
		}

		switch tag {
		case DataSetTrailingPaddingTag:
			lr.padded = true
			continue
		case ItemDelimitationItemTag:
			// handles the case when we are parsing a nested data set within a sequence with undefined
			// length.
			if err := lr.readDelimiterLength(tag, offset); err != nil {
				return nil, err
			}
			if inItem {
				return nil, io.EOF
			}
			glog.Warningf("skipping %v outside of an item at offset %d", tag, offset)
			continue
		case SequenceDelimitationItemTag:
			if inItem {
				return nil, formatErrorf(offset, "%v inside an item", tag)
			}
			if err := lr.readDelimiterLength(tag, offset); err != nil {
				return nil, err
			}
			glog.Warningf("skipping %v outside of a sequence at offset %d", tag, offset)
			continue
		case ItemTag:
			length, err := lr.dr.UInt32()
			if err != nil {
				return nil, fmt.Errorf("reading length of stray item: %w", err)
			}
			glog.Warningf("skipping %v of length %d outside of a sequence at offset %d", tag, length, offset)
			continue
		}

		return lr.readAttribute(tag, offset)
	}
}

func (lr *listReader) readDelimiterLength(tag Tag, offset int64) error {
	length, err := lr.dr.UInt32()
	if err != nil {
		return fmt.Errorf("reading 32 bit length of %v: %w", tag, err)
	}
	if length != 0 {
		glog.Warningf("%v at offset %d has length %d, want 0", tag, offset, length)
	}
	return nil
}

// readAttribute reads the element whose tag has just been read at offset.
func (lr *listReader) readAttribute(tag Tag, offset int64) (*Attribute, error) {
	vr, err := lr.enc.readVR(lr.dr, tag)
	if err != nil {
		return nil, err
	}
	length, err := lr.enc.readValueLength(lr.dr, vr)
	if err != nil {
		return nil, fmt.Errorf("getting length of %v: %w", tag, err)
	}
	vr = resolveVR(tag, vr, true, lr.state)

	a := &Attribute{Tag: tag, VR: vr}
	switch {
	case vr.IsSequence():
		a.Sequence, err = lr.readSequence(length, lr.enc)
	case length == UndefinedLength && (vr == UNVR || !lr.enc.explicit) && !isPixelLike(tag):
		// UN of undefined length holds a sequence encoded in implicit VR little endian
		a.VR = SQVR
		a.Sequence, err = lr.readSequence(length, implicitVRLittleEndian)
	case length == UndefinedLength:
		a.Fragments, err = readFragments(lr.dr)
	case lr.source != nil && lr.opts.isBulkData != nil && lr.opts.isBulkData(a):
		a.Bulk = &BulkDataReference{
			Source:     lr.source,
			ByteRegion: ByteRegion{Offset: lr.dr.Offset(), Length: int64(length)},
			Order:      lr.enc.order,
		}
		err = lr.dr.SkipExact(int64(length))
	default:
		a.Value, err = lr.readValue(vr, length, offset)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing value of %v: %w", tag, err)
	}

	if isSteeringTag(tag) && len(a.Value) == 2 && vr.kind == numberBinaryVR {
		lr.state.observe(tag, binary.LittleEndian.Uint16(a.Value))
	}
	return a, nil
}

func (lr *listReader) readValue(vr *VR, length uint32, offset int64) ([]byte, error) {
	value, err := lr.dr.ReadN([]byte{}, int64(length))
	if err != nil {
		return nil, err
	}
	if lr.enc.order == binary.BigEndian && vr.WordSize() > 1 {
		if err := swapWords(value, vr.WordSize()); err != nil {
			return nil, formatErrorf(offset, "%v value: %v", vr, err)
		}
	}
	return value, nil
}

// readSequence reads the items of a sequence whose contents use contentEnc.
func (lr *listReader) readSequence(length uint32, contentEnc elementEncoding) (*Sequence, error) {
	saved := lr.enc
	lr.enc = contentEnc
	lr.dr.order = contentEnc.order
	defer func() {
		lr.enc = saved
		lr.dr.order = saved.order
	}()

	end := int64(-1)
	if length != UndefinedLength {
		end = lr.dr.Offset() + int64(length)
	}
	seq := &Sequence{Items: []*Item{}}
	for !lr.padded && !lr.eof {
		if end >= 0 && lr.dr.Offset() > end {
			return nil, formatErrorf(lr.dr.Offset(), "items overrun their sequence's definite length by %d bytes", lr.dr.Offset()-end)
		}
		if end >= 0 && lr.dr.Offset() == end {
			break
		}

		offset := lr.dr.Offset()
		tag, err := lr.dr.Tag()
		if err == io.EOF {
			if end >= 0 {
				return nil, fmt.Errorf("sequence ended %d bytes early: %w", end-offset, ErrUnexpectedEndOfStream)
			}
			lr.eof = true
			break
		}
		if err != nil {
			return nil, fmt.Errorf("unexpected error reading item tag: %w", err)
		}
		itemLength, err := lr.dr.UInt32()
		if err != nil {
			return nil, fmt.Errorf("reading sequence item length: %w", err)
		}
		if tag == SequenceDelimitationItemTag {
			break
		}
		if tag != ItemTag {
			return nil, formatErrorf(offset, "invalid item tag in sequence, got %v want %v or %v",
				tag, ItemTag, SequenceDelimitationItemTag)
		}

		item := &Item{AttributeList: NewAttributeList(), Offset: offset}
		itemEnd := int64(-1)
		if itemLength != UndefinedLength {
			itemEnd = lr.dr.Offset() + int64(itemLength)
		}
		if err := lr.collect(item.AttributeList, itemEnd, true); err != nil {
			return nil, fmt.Errorf("reading item at offset %d: %w", offset, err)
		}
		seq.appendItem(item)
	}
	return seq, nil
}

// collect reads the attributes of a context into list, applying the transforms of the options.
func (lr *listReader) collect(list *AttributeList, end int64, inItem bool) error {
	for {
		a, err := lr.next(end, inItem)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := lr.put(list, a); err != nil {
			return err
		}
	}
}

func (lr *listReader) put(list *AttributeList, a *Attribute) error {
	a, err := applyTransforms(a, lr.opts.transforms)
	if err != nil {
		return err
	}
	if a == nil { // a transform filtered the attribute out
		return nil
	}
	return list.Put(a)
}

func applyTransforms(a *Attribute, transforms []Transform) (*Attribute, error) {
	var err error
	for i, t := range transforms {
		a, err = t(a)
		if err != nil {
			return nil, fmt.Errorf("applying option %v: %w", i, err)
		}
		if a == nil {
			return nil, nil
		}
	}
	return a, nil
}
