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

import "github.com/golang/glog"

// dataSetState carries the values of the enclosing data set that change how later elements are
// decoded. It is not scoped to sequence items: a Pixel Representation read inside an item applies
// to everything parsed after it.
type dataSetState struct {
	pixelRepresentation uint16
	bitsAllocated       uint16
}

// observe records tag's value if it is one of the steering elements. value is the decoded 16-bit
// word.
func (s *dataSetState) observe(tag Tag, value uint16) {
	switch tag {
	case PixelRepresentationTag:
		s.pixelRepresentation = value
	case BitsAllocatedTag:
		s.bitsAllocated = value
	}
}

func isSteeringTag(t Tag) bool {
	return t == PixelRepresentationTag || t == BitsAllocatedTag
}

// resolveVR replaces the dictionary placeholders XS, OX and XW by a concrete VR. Resolution never
// fails; the state of the data set picks the best guess.
func resolveVR(tag Tag, vr *VR, targetExplicit bool, state dataSetState) *VR {
	switch vr {
	case XSVR:
		if state.pixelRepresentation == 1 {
			return SSVR
		}
		return USVR
	case XWVR:
		return OWVR
	case OXVR:
		if targetExplicit && tag == PixelDataTag && state.bitsAllocated != 0 && state.bitsAllocated <= 8 {
			return OBVR
		}
		if !isPixelLike(tag) {
			glog.V(2).Infof("resolving OX for %v which is not a pixel-like element", tag)
		}
		return OWVR
	}
	return vr
}

// outputVR applies the oversized value rule: a value that does not fit the 16-bit length field of
// vr is written as UN, whose bytes are always little endian.
func outputVR(vr *VR, enc elementEncoding, length uint32) (*VR, bool) {
	if enc.explicit && !vr.HasLongLength() && length != UndefinedLength && length > maxShortLength {
		return UNVR, true
	}
	return vr, false
}
