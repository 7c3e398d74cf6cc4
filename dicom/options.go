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

// Transform describes a transformation applied to an Attribute
type Transform func(*Attribute) (*Attribute, error)

type parseOptions struct {
	syntax     *TransferSyntax
	transforms []Transform
	isBulkData func(*Attribute) bool
}

// ParseOption configures the behavior of the Parse function.
type ParseOption struct {
	apply func(*parseOptions)
}

// WithTransform returns a ParseOption that applies the given transformation to each Attribute in
// the DICOM file in the order encountered. For Attributes that contain a sequence, the transform
// is applied to nested Attributes first (i.e. transform is called on Attributes in post-order).
// If the transform returns an error, Parse will stop parsing and return an error.
// If no error is returned and a non-nil Attribute is returned, this Attribute will be added to
// the returned AttributeList of Parse. If a nil Attribute is returned, this Attribute will be
// excluded from the AttributeList returned from Parse.
func WithTransform(t Transform) ParseOption {
	return ParseOption{func(o *parseOptions) {
		o.transforms = append(o.transforms, t)
	}}
}

// WithTransferSyntax sets the transfer syntax of streams that have no meta header. When a meta
// header is present its Transfer Syntax UID takes precedence. Without this option the syntax of
// such streams is guessed from their first element.
func WithTransferSyntax(ts *TransferSyntax) ParseOption {
	return ParseOption{func(o *parseOptions) {
		o.syntax = ts
	}}
}

// ReferenceBulkData leaves the values of Attributes for which isBulkData returns true in the
// source and sets their Bulk field instead of loading them. isBulkData is called with the Tag
// and VR of the Attribute before its value is read. It only takes effect when the source given
// to Parse implements io.ReaderAt and the data set is not compressed; otherwise values are loaded.
func ReferenceBulkData(isBulkData func(*Attribute) bool) ParseOption {
	return ParseOption{func(o *parseOptions) {
		o.isBulkData = isBulkData
	}}
}

// DropGroupLengths will exclude all group length elements (gggg,0000) from the returned
// AttributeList
var DropGroupLengths = WithTransform(func(a *Attribute) (*Attribute, error) {
	if a.Tag.IsGroupLength() {
		return nil, nil
	}
	return a, nil
})

// DefaultBulkDataDefinition returns true if and only if the tag corresponds to a data element
// that contains large non-metadata fields
func DefaultBulkDataDefinition(a *Attribute) bool {
	// pixel-like tags have repeating groups, e.g. Curve Data (50xx,3000)
	if isPixelLike(a.Tag) {
		return true
	}
	switch a.Tag {
	case EncapsulatedDocumentTag, FloatPixelDataTag, DoubleFloatPixelDataTag:
		return true
	}
	return false
}

func collectParseOptions(opts []ParseOption) parseOptions {
	var o parseOptions
	for _, opt := range opts {
		opt.apply(&o)
	}
	return o
}

// transcodeOptions configures a Transcoder.
type transcodeOptions struct {
	inputUID   string
	bufferSize int
}

// defaultBufferSize is the size of the block values are copied through.
const defaultBufferSize = 64 * 1024

// TranscodeOption configures a Transcoder.
type TranscodeOption func(*transcodeOptions)

// WithInputTransferSyntax sets the transfer syntax of the input. It is required for streams
// without meta header whose syntax cannot be guessed, and overrides the Transfer Syntax UID of
// the meta header when both are present.
func WithInputTransferSyntax(uid string) TranscodeOption {
	return func(o *transcodeOptions) {
		o.inputUID = uid
	}
}

// WithBufferSize sets the size of the block values are copied through. It is rounded up to a
// multiple of 8 so that swapped words never straddle two blocks.
func WithBufferSize(n int) TranscodeOption {
	return func(o *transcodeOptions) {
		if n < 8 {
			n = 8
		}
		o.bufferSize = (n + 7) &^ 7
	}
}
