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

type constructOptions struct {
	transforms      []Transform
	explicitLengths bool
}

// ConstructOption configures how the Construct function behaves
type ConstructOption struct {
	apply func(*constructOptions)
}

// ConstructOptionWithTransform returns a construct option that applies the given transformation to
// each Attribute before it is written to the DICOM stream. For sequence Attributes, the transform
// is applied to the parent Attribute first before being applied to its children
// (i.e. the transform is applied to Attributes in pre-order). A transform returning a nil
// Attribute removes it from the output.
//
// After all the transforms are applied to an Attribute, its VR is filled in from the DICOM data
// dictionary if it is nil and its length is re-calculated.
func ConstructOptionWithTransform(t Transform) ConstructOption {
	return ConstructOption{func(o *constructOptions) {
		o.transforms = append(o.transforms, t)
	}}
}

// ExplicitLengths ensures all sequences and sequence items are written with explicit length.
var ExplicitLengths = ConstructOption{func(o *constructOptions) {
	o.explicitLengths = true
}}

// UndefinedLengths ensures all sequences and sequence items are written with undefined length.
// This is the default.
var UndefinedLengths = ConstructOption{func(o *constructOptions) {
	o.explicitLengths = false
}}

func collectConstructOptions(opts []ConstructOption) constructOptions {
	var o constructOptions
	for _, opt := range opts {
		opt.apply(&o)
	}
	return o
}
