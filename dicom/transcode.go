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
	"errors"
	"fmt"
	"io"

	"github.com/golang/glog"
)

type phase int

const (
	metaHeaderPhase phase = iota
	dataSetPhase
)

func (p phase) String() string {
	if p == metaHeaderPhase {
		return "meta header"
	}
	return "data set"
}

// streamCursor is the state of one Transcode call.
type streamCursor struct {
	phase phase

	// inSyntax is nil until it is known, from the options, the meta header or the data set itself.
	inSyntax  *TransferSyntax
	outSyntax *TransferSyntax

	// inEnc and outEnc are the element encodings currently in effect. inEnc changes inside UN
	// values of undefined length, which are always implicit VR little endian.
	inEnc  elementEncoding
	outEnc elementEncoding

	state dataSetState

	// metaUID is the Transfer Syntax UID announced by the meta header.
	metaUID string
	// wroteUID is set once the output Transfer Syntax UID element has been written.
	wroteUID bool

	// padded is set when Data Set Trailing Padding is reached. Nothing after it is copied.
	padded bool
	// eof is set when the input ended inside an undefined length.
	eof bool
}

// Transcoder re-encodes DICOM streams from one transfer syntax to another without loading values
// into memory. Every value is copied through one fixed-size block.
//
// A Transcoder may be reused for several streams, one after the other. It must not be used by more
// than one goroutine at a time.
type Transcoder struct {
	opts transcodeOptions
	buf  []byte

	inBuf  *bufio.Reader
	outBuf *bufio.Writer
	in     *dcmReader
	out    *dcmWriter

	// compressor is the output codec layer, finished before the output is flushed.
	compressor io.Closer

	cur streamCursor
}

// NewTranscoder returns a Transcoder configured by opts.
func NewTranscoder(opts ...TranscodeOption) *Transcoder {
	o := transcodeOptions{bufferSize: defaultBufferSize}
	for _, opt := range opts {
		opt(&o)
	}
	return &Transcoder{opts: o, buf: make([]byte, o.bufferSize)}
}

// Transcode re-encodes the DICOM stream r into w using the transfer syntax outUID. It is a
// shorthand for NewTranscoder(opts...).Transcode(w, r, outUID).
func Transcode(w io.Writer, r io.Reader, outUID string, opts ...TranscodeOption) error {
	return NewTranscoder(opts...).Transcode(w, r, outUID)
}

// Transcode reads the DICOM stream r and writes it to w in the transfer syntax outUID.
//
// A preamble and meta header in r are copied to w, with the Transfer Syntax UID replaced by
// outUID and the group length recomputed. A stream without meta header is read in the syntax given
// by WithInputTransferSyntax, or in the syntax guessed from its first element.
//
// Every sequence and item is written with undefined length. Encapsulated pixel data is copied
// fragment by fragment and can only be written to an encapsulated syntax of the same UID.
//
// Errors are returned as *TranscodeError. w may hold partial output after an error.
func (t *Transcoder) Transcode(w io.Writer, r io.Reader, outUID string) error {
	outSyntax, err := LookupTransferSyntax(outUID)
	if err != nil {
		return &TranscodeError{Phase: "setup", Err: err}
	}
	var inSyntax *TransferSyntax
	if t.opts.inputUID != "" {
		if inSyntax, err = LookupTransferSyntax(t.opts.inputUID); err != nil {
			return &TranscodeError{Phase: "setup", Err: err}
		}
	}

	if t.inBuf == nil {
		t.inBuf = bufio.NewReader(r)
		t.outBuf = bufio.NewWriter(w)
	} else {
		t.inBuf.Reset(r)
		t.outBuf.Reset(w)
	}
	t.in = newDcmReader(t.inBuf, binary.LittleEndian)
	t.out = newDcmWriter(t.outBuf, binary.LittleEndian)
	t.compressor = nil
	t.cur = streamCursor{
		phase:     metaHeaderPhase,
		inSyntax:  inSyntax,
		outSyntax: outSyntax,
		inEnc:     explicitVRLittleEndian,
		outEnc:    explicitVRLittleEndian,
	}

	if err := t.run(); err != nil {
		return t.fail(err)
	}
	return nil
}

func (t *Transcoder) fail(err error) error {
	var te *TranscodeError
	if errors.As(err, &te) {
		return err
	}
	return &TranscodeError{
		Phase:        t.cur.phase.String(),
		InputOffset:  t.in.Offset(),
		OutputOffset: t.out.Offset(),
		Err:          err,
	}
}

func (t *Transcoder) run() error {
	header, err := detectHeader(t.inBuf)
	if err != nil {
		return err
	}
	if header.preamble != nil {
		if err := t.out.Bytes(header.preamble); err != nil {
			return fmt.Errorf("writing preamble: %w", err)
		}
	}
	if header.hasMeta {
		if err := t.copyMetaHeader(); err != nil {
			return err
		}
	}

	if err := t.enterDataSet(); err != nil {
		return err
	}
	if err := t.copyElements(-1, false); err != nil {
		return err
	}
	return t.finish()
}

// copyMetaHeader copies the File Meta Information. It is buffered so that its group length can be
// recomputed after the Transfer Syntax UID has been replaced.
func (t *Transcoder) copyMetaHeader() error {
	var meta bytes.Buffer
	out := t.out
	t.out = newDcmWriter(&meta, binary.LittleEndian)
	err := t.copyMetaElements()
	metaOut := t.out
	t.out = out
	if err != nil {
		return err
	}

	if !t.cur.wroteUID {
		if err := t.writeTransferSyntaxUID(metaOut); err != nil {
			return err
		}
	}
	glog.V(2).Infof("meta header: %d bytes, transfer syntax %q", meta.Len(), t.cur.metaUID)
	return writeMetaHeader(t.out, &meta)
}

// copyMetaElements copies group 0002 elements. The extent of the meta header is given by its group
// length element when present, and otherwise by the first element of another group.
func (t *Transcoder) copyMetaElements() error {
	end := int64(-1)
	for {
		if end >= 0 {
			if t.in.Offset() >= end {
				return nil
			}
		} else {
			group, err := peekGroup(t.inBuf)
			if err == io.EOF || (err == nil && group != 0x0002) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("peeking meta header element: %w", err)
			}
		}

		offset := t.in.Offset()
		tag, err := t.in.Tag()
		if err == io.EOF {
			if end < 0 {
				return nil
			}
			return fmt.Errorf("meta header ended %d bytes early: %w", end-t.in.Offset(), ErrUnexpectedEndOfStream)
		}
		if err != nil {
			return fmt.Errorf("reading meta header tag: %w", err)
		}
		if !tag.IsMetaElement() {
			return formatErrorf(offset, "element %v inside the meta header", tag)
		}

		if tag == FileMetaInformationGroupLengthTag {
			length, err := t.readGroupLength(tag)
			if err != nil {
				return err
			}
			if end < 0 {
				end = t.in.Offset() + int64(length)
			}
			continue
		}

		if tag > TransferSyntaxUIDTag && !t.cur.wroteUID {
			if err := t.writeTransferSyntaxUID(t.out); err != nil {
				return err
			}
		}
		if tag == TransferSyntaxUIDTag {
			if err := t.replaceTransferSyntaxUID(tag); err != nil {
				return err
			}
			continue
		}
		if err := t.copyElement(tag); err != nil {
			return err
		}
	}
}

func (t *Transcoder) readGroupLength(tag Tag) (uint32, error) {
	vr, err := t.cur.inEnc.readVR(t.in, tag)
	if err != nil {
		return 0, err
	}
	length, err := t.cur.inEnc.readValueLength(t.in, vr)
	if err != nil {
		return 0, fmt.Errorf("reading length of %v: %w", tag, err)
	}
	if length != 4 {
		return 0, formatErrorf(t.in.Offset(), "group length %v has length %d, want 4", tag, length)
	}
	return t.in.UInt32()
}

// replaceTransferSyntaxUID records the UID announced by the meta header and writes the output
// UID in its place. The announced syntax only applies once the data set starts.
func (t *Transcoder) replaceTransferSyntaxUID(tag Tag) error {
	vr, err := t.cur.inEnc.readVR(t.in, tag)
	if err != nil {
		return err
	}
	length, err := t.cur.inEnc.readValueLength(t.in, vr)
	if err != nil {
		return fmt.Errorf("reading length of %v: %w", tag, err)
	}
	uid, err := t.in.String(int(length))
	if err != nil {
		return fmt.Errorf("reading transfer syntax uid: %w", err)
	}
	t.cur.metaUID = trimUID(uid)
	return t.writeTransferSyntaxUID(t.out)
}

func (t *Transcoder) writeTransferSyntaxUID(dw *dcmWriter) error {
	t.cur.wroteUID = true
	if err := writeUID(dw, explicitVRLittleEndian, TransferSyntaxUIDTag, t.cur.outSyntax.UID); err != nil {
		return fmt.Errorf("writing transfer syntax uid: %w", err)
	}
	return nil
}

// enterDataSet switches both directions to the data set syntax. Compressed syntaxes get a codec
// layer here, and byte offsets restart at zero beneath it.
func (t *Transcoder) enterDataSet() error {
	t.cur.phase = dataSetPhase

	switch {
	case t.cur.inSyntax != nil:
		if t.cur.metaUID != "" && t.cur.metaUID != t.cur.inSyntax.UID {
			glog.Warningf("meta header announces transfer syntax %q, reading %q instead", t.cur.metaUID, t.cur.inSyntax.UID)
		}
	case t.cur.metaUID != "":
		t.cur.inSyntax = lookupTransferSyntaxOrDefault(t.cur.metaUID)
		if _, err := LookupTransferSyntax(t.cur.metaUID); err != nil {
			glog.Warningf("unknown transfer syntax %q, reading it as encapsulated explicit VR little endian", t.cur.metaUID)
		}
	default:
		t.cur.inSyntax = sniffTransferSyntax(t.inBuf)
		glog.V(1).Infof("no transfer syntax given, guessed %v", t.cur.inSyntax)
	}
	in, out := t.cur.inSyntax, t.cur.outSyntax
	glog.V(1).Infof("transcoding data set from %v to %v", in, out)

	if in.Compression != NoCompression {
		r, err := openInputLayer(in.Compression, t.inBuf)
		if err != nil {
			return err
		}
		t.in.reset(r)
	}
	if out.Compression != NoCompression {
		w, c, err := openOutputLayer(out.Compression, t.outBuf)
		if err != nil {
			return err
		}
		t.out.reset(w)
		t.compressor = c
	}

	t.cur.inEnc = in.encoding()
	t.cur.outEnc = out.encoding()
	t.in.order = t.cur.inEnc.order
	t.out.order = t.cur.outEnc.order
	return nil
}

func (t *Transcoder) finish() error {
	if t.compressor != nil {
		// a flush alone does not write the final block
		if err := t.compressor.Close(); err != nil {
			return fmt.Errorf("finishing %v output: %w", t.cur.outSyntax.Compression, err)
		}
		t.compressor = nil
	}
	if err := t.outBuf.Flush(); err != nil {
		return fmt.Errorf("flushing output: %w", err)
	}
	glog.V(1).Infof("transcode done: input offset %d, output offset %d", t.in.Offset(), t.out.Offset())
	return nil
}

func (t *Transcoder) encodingChanged() bool {
	return t.cur.inEnc != t.cur.outEnc
}

// copyElements copies elements until the input offset reaches end, or until an item delimiter or
// the end of the stream when end is negative. inItem is set for the contents of a sequence item.
func (t *Transcoder) copyElements(end int64, inItem bool) error {
	for {
		if t.cur.padded {
			return nil
		}
		if t.cur.eof {
			return t.checkDefiniteEnd(end)
		}
		if end >= 0 && t.in.Offset() >= end {
			if t.in.Offset() > end {
				return formatErrorf(t.in.Offset(), "elements overrun their definite length by %d bytes", t.in.Offset()-end)
			}
			return nil
		}

		offset := t.in.Offset()
		tag, err := t.in.Tag()
		if err == io.EOF {
			t.cur.eof = true
			return t.checkDefiniteEnd(end)
		}
		if err != nil {
			return fmt.Errorf("reading tag: %w", err)
		}

		switch tag {
		case DataSetTrailingPaddingTag:
			glog.V(1).Infof("data set trailing padding at offset %d, nothing more is copied", offset)
			t.cur.padded = true
			return nil
		case ItemDelimitationItemTag:
			if err := t.readDelimiterLength(tag, offset); err != nil {
				return err
			}
			if inItem {
				return nil
			}
			glog.Warningf("skipping %v outside of an item at offset %d", tag, offset)
			continue
		case SequenceDelimitationItemTag:
			if inItem {
				return formatErrorf(offset, "%v inside an item", tag)
			}
			if err := t.readDelimiterLength(tag, offset); err != nil {
				return err
			}
			glog.Warningf("skipping %v outside of a sequence at offset %d", tag, offset)
			continue
		case ItemTag:
			// Some producers write items outside of any sequence. Their contents are copied as if
			// they were part of the enclosing data set.
			length, err := t.in.UInt32()
			if err != nil {
				return fmt.Errorf("reading length of stray item: %w", err)
			}
			glog.Warningf("skipping %v of length %d outside of a sequence at offset %d", tag, length, offset)
			continue
		}

		if err := t.copyElement(tag); err != nil {
			return err
		}
	}
}

func (t *Transcoder) checkDefiniteEnd(end int64) error {
	if end >= 0 && t.in.Offset() < end {
		return fmt.Errorf("input ended %d bytes before the end of a definite length: %w",
			end-t.in.Offset(), ErrUnexpectedEndOfStream)
	}
	return nil
}

func (t *Transcoder) readDelimiterLength(tag Tag, offset int64) error {
	length, err := t.in.UInt32()
	if err != nil {
		return fmt.Errorf("reading length of %v: %w", tag, err)
	}
	if length != 0 {
		glog.Warningf("%v at offset %d has length %d, want 0", tag, offset, length)
	}
	return nil
}

// copyElement copies the element whose tag has just been read.
func (t *Transcoder) copyElement(tag Tag) error {
	offset := t.in.Offset() - tagSize
	vr, err := t.cur.inEnc.readVR(t.in, tag)
	if err != nil {
		return err
	}
	length, err := t.cur.inEnc.readValueLength(t.in, vr)
	if err != nil {
		return fmt.Errorf("reading length of %v: %w", tag, err)
	}
	vr = resolveVR(tag, vr, t.cur.outEnc.explicit, t.cur.state)

	switch {
	case vr.IsSequence():
		return t.copySequence(tag, length, t.cur.inEnc)
	case length == UndefinedLength && (vr == UNVR || !t.cur.inEnc.explicit) && !isPixelLike(tag):
		// UN of undefined length holds a sequence encoded in implicit VR little endian
		// http://dicom.nema.org/medical/dicom/current/output/html/part05.html#sect_6.2.2
		return t.copySequence(tag, length, implicitVRLittleEndian)
	case length == UndefinedLength:
		return t.copyFragments(tag)
	case tag.IsGroupLength() && t.cur.phase == dataSetPhase && t.encodingChanged():
		glog.V(2).Infof("dropping group length %v at offset %d", tag, offset)
		if err := t.in.SkipExact(int64(length)); err != nil {
			return fmt.Errorf("skipping %v: %w", tag, err)
		}
		return nil
	case isSteeringTag(tag) && length == 2 && vr.kind == numberBinaryVR:
		return t.copySteeringValue(tag, vr)
	case tag == PixelDataTag && t.cur.phase == dataSetPhase && t.cur.outSyntax.Encapsulated && !t.cur.inSyntax.Encapsulated:
		return fmt.Errorf("encoding native %v as %v: %w", tag, t.cur.outSyntax, ErrUnsupportedCodec)
	}
	return t.copyValue(tag, vr, length, offset)
}

// copySequence copies the items of a sequence whose contents use contentEnc. The sequence and its
// items are always written with undefined length.
func (t *Transcoder) copySequence(tag Tag, length uint32, contentEnc elementEncoding) error {
	saved := t.cur.inEnc
	t.cur.inEnc = contentEnc
	t.in.order = contentEnc.order
	defer func() {
		t.cur.inEnc = saved
		t.in.order = saved.order
	}()

	if err := t.cur.outEnc.writeHeader(t.out, tag, SQVR, UndefinedLength); err != nil {
		return err
	}

	end := int64(-1)
	if length != UndefinedLength {
		end = t.in.Offset() + int64(length)
	}
	for !t.cur.padded {
		if t.cur.eof {
			if err := t.checkDefiniteEnd(end); err != nil {
				return err
			}
			break
		}
		if end >= 0 && t.in.Offset() > end {
			return formatErrorf(t.in.Offset(), "items of %v overrun its definite length by %d bytes", tag, t.in.Offset()-end)
		}
		if end >= 0 && t.in.Offset() == end {
			break
		}

		offset := t.in.Offset()
		itemTag, err := t.in.Tag()
		if err == io.EOF {
			t.cur.eof = true
			continue
		}
		if err != nil {
			return fmt.Errorf("reading item tag of %v: %w", tag, err)
		}
		itemLength, err := t.in.UInt32()
		if err != nil {
			return fmt.Errorf("reading item length of %v: %w", tag, err)
		}

		if itemTag == SequenceDelimitationItemTag {
			if end >= 0 {
				glog.Warningf("%v inside %v of definite length at offset %d", itemTag, tag, offset)
			}
			break
		}
		if itemTag != ItemTag {
			return formatErrorf(offset, "unexpected %v in sequence %v", itemTag, tag)
		}
		if err := t.copyItem(itemLength); err != nil {
			return fmt.Errorf("copying item of %v at offset %d: %w", tag, offset, err)
		}
	}

	if err := t.out.Delimiter(SequenceDelimitationItemTag); err != nil {
		return fmt.Errorf("writing sequence delimiter of %v: %w", tag, err)
	}
	return nil
}

func (t *Transcoder) copyItem(length uint32) error {
	if err := t.out.Tag(ItemTag); err != nil {
		return fmt.Errorf("writing item tag: %w", err)
	}
	if err := t.out.UInt32(UndefinedLength); err != nil {
		return fmt.Errorf("writing item length: %w", err)
	}

	end := int64(-1)
	if length != UndefinedLength {
		end = t.in.Offset() + int64(length)
	}
	if err := t.copyElements(end, true); err != nil {
		return err
	}
	return t.out.Delimiter(ItemDelimitationItemTag)
}

// copyFragments copies encapsulated pixel data item by item. Fragments are byte streams and are
// never swapped.
func (t *Transcoder) copyFragments(tag Tag) error {
	in, out := t.cur.inSyntax, t.cur.outSyntax
	if t.cur.phase == dataSetPhase && (!out.Encapsulated || (in.Encapsulated && in.UID != out.UID)) {
		return fmt.Errorf("copying encapsulated %v from %v to %v: %w", tag, in, out, ErrUnsupportedCodec)
	}

	if err := t.cur.outEnc.writeHeader(t.out, tag, OBVR, UndefinedLength); err != nil {
		return err
	}
	for !t.cur.padded {
		offset := t.in.Offset()
		itemTag, err := t.in.Tag()
		if err == io.EOF {
			t.cur.eof = true
			break
		}
		if err != nil {
			return fmt.Errorf("reading fragment tag: %w", err)
		}
		length, err := t.in.UInt32()
		if err != nil {
			return fmt.Errorf("reading fragment length: %w", err)
		}
		if itemTag == SequenceDelimitationItemTag {
			break
		}
		if itemTag != ItemTag {
			return formatErrorf(offset, "unexpected %v in encapsulated %v", itemTag, tag)
		}
		if length == UndefinedLength {
			return formatErrorf(offset, "fragment of %v has undefined length", tag)
		}

		if err := t.out.Tag(ItemTag); err != nil {
			return fmt.Errorf("writing fragment tag: %w", err)
		}
		if err := t.out.UInt32(length); err != nil {
			return fmt.Errorf("writing fragment length: %w", err)
		}
		if err := t.copyBytes(int64(length), 1); err != nil {
			return fmt.Errorf("copying fragment at offset %d: %w", offset, err)
		}
	}
	return t.out.Delimiter(SequenceDelimitationItemTag)
}

// copySteeringValue copies Pixel Representation or Bits Allocated and records its value for the
// resolution of later ambiguous VRs.
func (t *Transcoder) copySteeringValue(tag Tag, vr *VR) error {
	v, err := t.in.UInt16()
	if err != nil {
		return fmt.Errorf("reading %v: %w", tag, err)
	}
	t.cur.state.observe(tag, v)
	if err := t.cur.outEnc.writeHeader(t.out, tag, vr, 2); err != nil {
		return err
	}
	return t.out.UInt16(v)
}

// copyValue streams a value of definite length, swapping its words when the byte orders differ.
func (t *Transcoder) copyValue(tag Tag, vr *VR, length uint32, offset int64) error {
	outVR, demoted := outputVR(vr, t.cur.outEnc, length)
	swap := t.cur.inEnc.order != t.cur.outEnc.order
	if demoted {
		glog.V(1).Infof("%v: value length %d does not fit %v, writing UN", tag, length, vr)
		// UN values are little endian whatever the byte order of the stream
		swap = t.cur.inEnc.order == binary.BigEndian
	}
	wordSize := vr.WordSize()
	if !swap || wordSize <= 1 {
		wordSize = 1
	}
	if length%uint32(wordSize) != 0 {
		return formatErrorf(offset, "%v: length %d of %v value is not a multiple of %d", tag, length, vr, wordSize)
	}

	if err := t.cur.outEnc.writeHeader(t.out, tag, outVR, length); err != nil {
		return err
	}
	if err := t.copyBytes(int64(length), wordSize); err != nil {
		return fmt.Errorf("copying value of %v: %w", tag, err)
	}
	return nil
}

// copyBytes moves n bytes from input to output through the fixed block, reversing each word of
// wordSize bytes. n must be a multiple of wordSize.
func (t *Transcoder) copyBytes(n int64, wordSize int) error {
	for n > 0 {
		chunk := t.buf
		if int64(len(chunk)) > n {
			chunk = chunk[:n]
		}
		if err := t.in.ReadExact(chunk); err != nil {
			return err
		}
		if wordSize > 1 {
			if err := swapWords(chunk, wordSize); err != nil {
				return err
			}
		}
		if err := t.out.Bytes(chunk); err != nil {
			return err
		}
		n -= int64(len(chunk))
	}
	return nil
}
