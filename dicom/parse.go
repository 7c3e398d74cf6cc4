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
	"io"
)

// Parse parses a DICOM stream represented as an io.Reader, returning the AttributeList defined by
// applying the transforms of the options sequentially, in the order given, to every attribute.
// Sequence items are transformed before the sequence attribute that holds them.
//
// By default every value is read into memory. ReferenceBulkData leaves the selected values in the
// input when it implements io.ReaderAt and the transfer syntax is not compressed.
func Parse(r io.Reader, opts ...ParseOption) (*AttributeList, error) {
	it, err := NewAttributeIterator(r, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating new attribute iterator: %w", err)
	}
	return CollectAttributes(it)
}

// CollectAttributes returns the AttributeList defined by the remaining attributes of the
// AttributeIterator, transformed by the options it was created with.
func CollectAttributes(it *AttributeIterator) (*AttributeList, error) {
	list := NewAttributeList()
	for a, err := it.Next(); err != io.EOF; a, err = it.Next() {
		if err != nil {
			return nil, err
		}
		if err := it.lr.put(list, a); err != nil {
			return nil, err
		}
	}
	return list, nil
}
