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
	"math"
	"reflect"
	"strings"
	"unicode"
)

// rawValue returns the value bytes, loading bulk data when needed.
func (a *Attribute) rawValue() ([]byte, error) {
	switch {
	case a.Sequence != nil:
		return nil, fmt.Errorf("%v is a sequence", a.Tag)
	case a.Fragments != nil:
		return nil, fmt.Errorf("%v is encapsulated", a.Tag)
	case a.Bulk != nil:
		return a.Bulk.Bytes(a.VR.WordSize())
	}
	return a.Value, nil
}

// Strings returns the values of a text attribute. Multiple values are split at backslashes and
// padding is removed.
func (a *Attribute) Strings() ([]string, error) {
	if !a.VR.IsText() {
		return nil, fmt.Errorf("%v has non-text vr %v", a.Tag, a.VR)
	}
	b, err := a.rawValue()
	if err != nil {
		return nil, err
	}
	return splitText(string(b), a.VR), nil
}

func splitText(valueField string, vr *VR) []string {
	if len(valueField) == 0 {
		return []string{}
	}

	isPadding := unicode.IsSpace
	if vr == UIVR {
		isPadding = func(r rune) bool {
			return r == 0x00 || r == ' '
		}
	}

	// UT, ST, LT and UR are single valued and may contain backslashes. Leading spaces are
	// significant.
	switch vr {
	case UTVR, STVR, LTVR, URVR:
		return []string{strings.TrimRightFunc(valueField, isPadding)}
	}

	// deal with value multiplicity
	strs := strings.Split(valueField, "\\")
	for i, s := range strs {
		strs[i] = strings.TrimFunc(s, isPadding)
	}
	return strs
}

// StringValue returns the first value of a text attribute.
func (a *Attribute) StringValue() (string, error) {
	strs, err := a.Strings()
	if err != nil {
		return "", err
	}
	if len(strs) == 0 {
		return "", fmt.Errorf("%v has no value", a.Tag)
	}
	return strs[0], nil
}

// words returns a little endian reader over the value and the number of words of size bytes it
// holds.
func (a *Attribute) words(size int) (*dcmReader, int, error) {
	if a.VR.IsText() || a.VR.IsSequence() {
		return nil, 0, fmt.Errorf("%v has non-binary vr %v", a.Tag, a.VR)
	}
	b, err := a.rawValue()
	if err != nil {
		return nil, 0, err
	}
	if len(b)%size != 0 {
		return nil, 0, fmt.Errorf("%v: value length %d is not a multiple of %d", a.Tag, len(b), size)
	}
	return newDcmReader(bytes.NewReader(b), binary.LittleEndian), len(b) / size, nil
}

// convertWords maps each word of s through f.
func convertWords[S, D any](s []S, f func(S) D) []D {
	ret := make([]D, len(s))
	for i, v := range s {
		ret[i] = f(v)
	}
	return ret
}

// Uint16s returns the value as 16-bit unsigned words.
func (a *Attribute) Uint16s() ([]uint16, error) {
	dr, n, err := a.words(2)
	if err != nil {
		return nil, err
	}
	return dr.UInt16s(n)
}

// Int16s returns the value as 16-bit signed words.
func (a *Attribute) Int16s() ([]int16, error) {
	words, err := a.Uint16s()
	if err != nil {
		return nil, err
	}
	return convertWords(words, func(v uint16) int16 { return int16(v) }), nil
}

// Uint32s returns the value as 32-bit unsigned words.
func (a *Attribute) Uint32s() ([]uint32, error) {
	dr, n, err := a.words(4)
	if err != nil {
		return nil, err
	}
	return dr.UInt32s(n)
}

// Int32s returns the value as 32-bit signed words.
func (a *Attribute) Int32s() ([]int32, error) {
	words, err := a.Uint32s()
	if err != nil {
		return nil, err
	}
	return convertWords(words, func(v uint32) int32 { return int32(v) }), nil
}

func (a *Attribute) Float32s() ([]float32, error) {
	words, err := a.Uint32s()
	if err != nil {
		return nil, err
	}
	return convertWords(words, math.Float32frombits), nil
}

func (a *Attribute) Float64s() ([]float64, error) {
	dr, n, err := a.words(8)
	if err != nil {
		return nil, err
	}
	words, err := dr.UInt64s(n)
	if err != nil {
		return nil, err
	}
	return convertWords(words, math.Float64frombits), nil
}

// Tags returns the value of an AT attribute.
func (a *Attribute) Tags() ([]Tag, error) {
	words, err := a.Uint16s()
	if err != nil {
		return nil, err
	}
	if len(words)%2 != 0 {
		return nil, fmt.Errorf("%v: odd number of words for tag values", a.Tag)
	}
	ret := make([]Tag, len(words)/2)
	for i := range ret {
		ret[i] = NewTag(words[2*i], words[2*i+1])
	}
	return ret, nil
}

// NewStringAttribute returns a text attribute holding values joined by backslashes and padded to
// even length. A nil vr is taken from the data dictionary.
func NewStringAttribute(tag Tag, vr *VR, values ...string) *Attribute {
	if vr == nil {
		vr = tag.DictionaryVR()
	}
	return &Attribute{Tag: tag, VR: vr, Value: encodeText(vr, values)}
}

func encodeText(vr *VR, values []string) []byte {
	b := []byte(strings.Join(values, "\\"))
	if len(b)%2 != 0 {
		b = append(b, vr.paddingByte())
	}
	return b
}

// NewUint16Attribute returns a US attribute.
func NewUint16Attribute(tag Tag, values ...uint16) *Attribute {
	return &Attribute{Tag: tag, VR: USVR, Value: encodeLittleEndian(values)}
}

// NewUint32Attribute returns a UL attribute.
func NewUint32Attribute(tag Tag, values ...uint32) *Attribute {
	return &Attribute{Tag: tag, VR: ULVR, Value: encodeLittleEndian(values)}
}

// NewFloat64Attribute returns an FD attribute.
func NewFloat64Attribute(tag Tag, values ...float64) *Attribute {
	return &Attribute{Tag: tag, VR: FDVR, Value: encodeLittleEndian(values)}
}

// NewBytesAttribute returns an attribute holding a copy of b, padded with a zero byte to even
// length. Multi-byte words in b must be little endian.
func NewBytesAttribute(tag Tag, vr *VR, b []byte) *Attribute {
	if vr == nil {
		vr = tag.DictionaryVR()
	}
	value := make([]byte, len(b), len(b)+1)
	copy(value, b)
	if len(value)%2 != 0 {
		value = append(value, 0)
	}
	return &Attribute{Tag: tag, VR: vr, Value: value}
}

// NewSequenceAttribute returns an SQ attribute with one item per list.
func NewSequenceAttribute(tag Tag, items ...*AttributeList) *Attribute {
	return &Attribute{Tag: tag, VR: SQVR, Sequence: NewSequence(items...)}
}

// NewFragmentsAttribute returns encapsulated pixel data. The first fragment is the Basic Offset
// Table and may be empty.
func NewFragmentsAttribute(tag Tag, fragments ...[]byte) *Attribute {
	if len(fragments) == 0 {
		fragments = [][]byte{{}}
	}
	return &Attribute{Tag: tag, VR: OBVR, Fragments: fragments}
}

// encodeLittleEndian encodes a slice of fixed size numbers. Writes to a bytes.Buffer cannot fail.
func encodeLittleEndian(data interface{}) []byte {
	var buf bytes.Buffer
	dw := newDcmWriter(&buf, binary.LittleEndian)
	switch v := data.(type) {
	case []uint16:
		_ = dw.UInt16s(v)
	case []int16:
		_ = dw.UInt16s(convertWords(v, func(w int16) uint16 { return uint16(w) }))
	case []uint32:
		_ = dw.UInt32s(v)
	case []int32:
		_ = dw.UInt32s(convertWords(v, func(w int32) uint32 { return uint32(w) }))
	case []float32:
		_ = dw.UInt32s(convertWords(v, math.Float32bits))
	case []uint64:
		_ = dw.UInt64s(v)
	case []int64:
		_ = dw.UInt64s(convertWords(v, func(w int64) uint64 { return uint64(w) }))
	case []float64:
		_ = dw.UInt64s(convertWords(v, math.Float64bits))
	default:
		panic(fmt.Sprintf("encodeLittleEndian: unsupported type %T", data))
	}
	return buf.Bytes()
}

// valueEncoder converts a Go value to the little endian value field of an attribute.
type valueEncoder func(vr *VR, value interface{}) ([]byte, error)

// valueEncoders is keyed by VR name. Placeholder VRs have no entry; they must be resolved first.
var valueEncoders = map[string]valueEncoder{
	"AE": textEncoder, "AS": textEncoder, "CS": textEncoder, "DA": textEncoder, "DS": textEncoder,
	"DT": textEncoder, "IS": textEncoder, "LO": textEncoder, "LT": textEncoder, "PN": textEncoder,
	"SH": textEncoder, "ST": textEncoder, "TM": textEncoder, "UC": textEncoder, "UI": textEncoder,
	"UR": textEncoder, "UT": textEncoder,

	"SS": numberEncoder([]int16(nil)),
	"US": numberEncoder([]uint16(nil)),
	"SL": numberEncoder([]int32(nil)),
	"UL": numberEncoder([]uint32(nil)),
	"FL": numberEncoder([]float32(nil)),
	"FD": numberEncoder([]float64(nil)),
	"SV": numberEncoder([]int64(nil)),
	"UV": numberEncoder([]uint64(nil)),
	"OL": numberEncoder([]uint32(nil)),
	"OF": numberEncoder([]float32(nil)),
	"OD": numberEncoder([]float64(nil)),
	"OV": numberEncoder([]uint64(nil)),

	"OB": bytesEncoder,
	"UN": bytesEncoder,
	"OW": wordsEncoder,
	"AT": tagsEncoder,
}

// NewAttribute builds an attribute of the given VR from a Go value. Text VRs accept string or
// []string; binary VRs accept the slice type of their words; OB and UN accept []byte; OW accepts
// []byte or []uint16; AT accepts []Tag; SQ accepts *Sequence or []*AttributeList. A nil vr is
// taken from the data dictionary.
func NewAttribute(tag Tag, vr *VR, value interface{}) (*Attribute, error) {
	if vr == nil {
		vr = tag.DictionaryVR()
	}
	if vr.IsSequence() {
		switch v := value.(type) {
		case *Sequence:
			return &Attribute{Tag: tag, VR: vr, Sequence: v}, nil
		case []*AttributeList:
			return NewSequenceAttribute(tag, v...), nil
		}
		return nil, fmt.Errorf("%v: unsupported value type %T for vr SQ", tag, value)
	}
	encode, ok := valueEncoders[vr.Name]
	if !ok {
		return nil, fmt.Errorf("%v: vr %v cannot be constructed directly", tag, vr)
	}
	b, err := encode(vr, value)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", tag, err)
	}
	if len(b)%2 != 0 {
		b = append(b, vr.paddingByte())
	}
	return &Attribute{Tag: tag, VR: vr, Value: b}, nil
}

func textEncoder(vr *VR, value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case string:
		return []byte(v), nil
	case []string:
		return []byte(strings.Join(v, "\\")), nil
	}
	return nil, fmt.Errorf("unsupported value type %T for vr %v", value, vr)
}

func numberEncoder(want interface{}) valueEncoder {
	return func(vr *VR, value interface{}) ([]byte, error) {
		if reflect.TypeOf(value) != reflect.TypeOf(want) {
			return nil, fmt.Errorf("unsupported value type %T for vr %v, want %T", value, vr, want)
		}
		return encodeLittleEndian(value), nil
	}
}

func bytesEncoder(vr *VR, value interface{}) ([]byte, error) {
	b, ok := value.([]byte)
	if !ok {
		return nil, fmt.Errorf("unsupported value type %T for vr %v", value, vr)
	}
	return append([]byte(nil), b...), nil
}

func wordsEncoder(vr *VR, value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		if len(v)%2 != 0 {
			return nil, fmt.Errorf("odd length %d for vr %v", len(v), vr)
		}
		return append([]byte(nil), v...), nil
	case []uint16:
		return encodeLittleEndian(v), nil
	}
	return nil, fmt.Errorf("unsupported value type %T for vr %v", value, vr)
}

func tagsEncoder(vr *VR, value interface{}) ([]byte, error) {
	tags, ok := value.([]Tag)
	if !ok {
		return nil, fmt.Errorf("unsupported value type %T for vr %v", value, vr)
	}
	words := make([]uint16, 0, 2*len(tags))
	for _, t := range tags {
		words = append(words, t.Group(), t.Element())
	}
	return encodeLittleEndian(words), nil
}
