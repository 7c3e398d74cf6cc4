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
	"fmt"
	"sort"
	"strings"
)

// Attribute models a DICOM Data Element as defined in
// http://dicom.nema.org/medical/dicom/current/output/html/part05.html#sect_3.10
//
// Exactly one of Value, Sequence, Fragments and Bulk holds the value of the attribute.
type Attribute struct {
	Tag Tag

	// Value Representation
	VR *VR

	// Value holds the raw value bytes. Binary numbers are always stored little endian, whatever
	// the byte order of the stream the attribute was read from.
	Value []byte

	// Sequence holds the items of an SQ attribute.
	Sequence *Sequence

	// Fragments holds encapsulated pixel data. The first fragment is the Basic Offset Table.
	Fragments [][]byte

	// Bulk refers to a value that was left in its source instead of being loaded into memory.
	Bulk *BulkDataReference
}

// ValueLength is the length in bytes of the value field, or UndefinedLength for sequences and
// encapsulated values.
func (a *Attribute) ValueLength() uint32 {
	switch {
	case a.Sequence != nil, a.Fragments != nil:
		return UndefinedLength
	case a.Bulk != nil:
		return uint32(a.Bulk.Length)
	}
	return uint32(len(a.Value))
}

func (a *Attribute) String() string {
	return a.string(0)
}

func (a *Attribute) string(indentLvl int) string {
	indent := strings.Repeat("  ", indentLvl)
	switch {
	case a.Sequence != nil:
		return fmt.Sprintf("%s%v %v %s:%s", indent, a.Tag, a.VR, a.Tag.Name(), a.Sequence.string(indentLvl))
	case a.Fragments != nil:
		return fmt.Sprintf("%s%v %v %s: %d fragments", indent, a.Tag, a.VR, a.Tag.Name(), len(a.Fragments))
	case a.Bulk != nil:
		return fmt.Sprintf("%s%v %v %s: %v", indent, a.Tag, a.VR, a.Tag.Name(), a.Bulk)
	case a.VR.IsText():
		return fmt.Sprintf("%s%v %v %s: %q", indent, a.Tag, a.VR, a.Tag.Name(), strings.TrimRight(string(a.Value), "\x00 "))
	}
	return fmt.Sprintf("%s%v %v %s: %d bytes", indent, a.Tag, a.VR, a.Tag.Name(), len(a.Value))
}

// AttributeList models a DICOM Data Set as defined in
// http://dicom.nema.org/medical/dicom/current/output/html/part05.html#sect_3.10
//
// It holds at most one Attribute per Tag and iterates in ascending tag order.
type AttributeList struct {
	attributes map[Tag]*Attribute
	tags       []Tag
}

// NewAttributeList returns an empty list.
func NewAttributeList() *AttributeList {
	return &AttributeList{attributes: map[Tag]*Attribute{}}
}

// Put adds a to the list, replacing any attribute with the same tag.
func (l *AttributeList) Put(a *Attribute) error {
	if a == nil {
		return fmt.Errorf("nil attribute")
	}
	if a.Tag.isDelimitation() {
		return fmt.Errorf("%v is a delimiter and cannot be stored as an attribute", a.Tag)
	}
	if l.attributes == nil {
		l.attributes = map[Tag]*Attribute{}
	}
	if _, ok := l.attributes[a.Tag]; !ok {
		i := sort.Search(len(l.tags), func(i int) bool { return l.tags[i] >= a.Tag })
		l.tags = append(l.tags, 0)
		copy(l.tags[i+1:], l.tags[i:])
		l.tags[i] = a.Tag
	}
	l.attributes[a.Tag] = a
	return nil
}

// Get returns the attribute with the given tag.
func (l *AttributeList) Get(t Tag) (*Attribute, bool) {
	a, ok := l.attributes[t]
	return a, ok
}

// Remove deletes the attribute with the given tag and reports whether it was present.
func (l *AttributeList) Remove(t Tag) bool {
	if _, ok := l.attributes[t]; !ok {
		return false
	}
	delete(l.attributes, t)
	i := sort.Search(len(l.tags), func(i int) bool { return l.tags[i] >= t })
	l.tags = append(l.tags[:i], l.tags[i+1:]...)
	return true
}

// Len returns the number of attributes.
func (l *AttributeList) Len() int {
	return len(l.tags)
}

// Tags returns the tags of the list in ascending order.
func (l *AttributeList) Tags() []Tag {
	return append([]Tag(nil), l.tags...)
}

// Attributes returns the attributes of the list in ascending tag order.
func (l *AttributeList) Attributes() []*Attribute {
	ret := make([]*Attribute, 0, len(l.tags))
	for _, t := range l.tags {
		ret = append(ret, l.attributes[t])
	}
	return ret
}

// MetaAttributes returns a new list holding only the File Meta Information attributes of l.
func (l *AttributeList) MetaAttributes() *AttributeList {
	return l.filter(func(t Tag) bool { return t.IsMetaElement() })
}

// DataSetAttributes returns a new list holding every attribute of l outside the File Meta
// Information.
func (l *AttributeList) DataSetAttributes() *AttributeList {
	return l.filter(func(t Tag) bool { return !t.IsMetaElement() })
}

func (l *AttributeList) filter(keep func(Tag) bool) *AttributeList {
	ret := NewAttributeList()
	for _, t := range l.tags {
		if keep(t) {
			ret.attributes[t] = l.attributes[t]
			ret.tags = append(ret.tags, t)
		}
	}
	return ret
}

// TransferSyntax returns the transfer syntax named by the Transfer Syntax UID attribute.
func (l *AttributeList) TransferSyntax() (*TransferSyntax, error) {
	a, ok := l.Get(TransferSyntaxUIDTag)
	if !ok {
		return nil, fmt.Errorf("transfer syntax element is missing from data set")
	}
	uid, err := a.StringValue()
	if err != nil {
		return nil, fmt.Errorf("transfer syntax element cannot be converted to string: %w", err)
	}
	return LookupTransferSyntax(uid)
}

func (l *AttributeList) String() string {
	return l.string(0)
}

func (l *AttributeList) string(indentLvl int) string {
	lines := make([]string, 0, len(l.tags))
	for _, a := range l.Attributes() {
		lines = append(lines, a.string(indentLvl))
	}
	return strings.Join(lines, "\n")
}
