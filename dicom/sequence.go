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
	"strings"
)

// Sequence models a DICOM sequence
type Sequence struct {
	Items []*Item
}

// Item is one item of a Sequence. Offset is the position of the item tag in the stream it was
// read from, or -1 for items built in memory; it is kept for diagnostics only.
type Item struct {
	*AttributeList
	Offset int64
}

// NewSequence returns a sequence holding the given lists as items.
func NewSequence(items ...*AttributeList) *Sequence {
	seq := &Sequence{}
	for _, l := range items {
		seq.Append(l)
	}
	return seq
}

// Append adds l as the last item of the sequence.
func (seq *Sequence) Append(l *AttributeList) *Item {
	item := &Item{AttributeList: l, Offset: -1}
	seq.Items = append(seq.Items, item)
	return item
}

func (seq *Sequence) appendItem(item *Item) {
	seq.Items = append(seq.Items, item)
}

// Len returns the number of items.
func (seq *Sequence) Len() int {
	return len(seq.Items)
}

// At returns the i-th item.
func (seq *Sequence) At(i int) *Item {
	return seq.Items[i]
}

func (seq *Sequence) String() string {
	return seq.string(0)
}

func (seq *Sequence) string(indentLvl int) string {
	lines := make([]string, 0, len(seq.Items))
	for i, item := range seq.Items {
		lines = append(lines, fmt.Sprintf("%sitem %d", strings.Repeat("  ", indentLvl+1), i))
		if s := item.string(indentLvl + 2); s != "" {
			lines = append(lines, s)
		}
	}
	return "\n" + strings.Join(lines, "\n")
}
