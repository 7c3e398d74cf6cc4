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
	"errors"
	"fmt"
)

var (
	// ErrUnexpectedEndOfStream is returned when the input ends before a definite number of bytes
	// could be read or skipped.
	ErrUnexpectedEndOfStream = errors.New("dicom: unexpected end of stream")

	// ErrUnsupportedCodec is returned when a transfer syntax requires a compression codec that is
	// not available, or when encapsulated pixel data would have to be decompressed.
	ErrUnsupportedCodec = errors.New("dicom: unsupported codec")
)

// FormatError describes malformed data element sequencing in the input stream.
type FormatError struct {
	// Offset is the input byte offset at which the problem was detected. Offsets are relative to
	// the current codec layer, so they restart at zero at the beginning of a deflated data set.
	Offset int64
	Msg    string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("dicom: format error at offset %d: %s", e.Offset, e.Msg)
}

func formatErrorf(offset int64, format string, args ...interface{}) error {
	return &FormatError{offset, fmt.Sprintf(format, args...)}
}

// TranscodeError is returned by Transcode for any fatal failure. It records where in the input
// and output streams the failure happened.
type TranscodeError struct {
	Phase        string
	InputOffset  int64
	OutputOffset int64
	Err          error
}

func (e *TranscodeError) Error() string {
	return fmt.Sprintf("transcoding %s (input offset %d, output offset %d): %v",
		e.Phase, e.InputOffset, e.OutputOffset, e.Err)
}

func (e *TranscodeError) Unwrap() error {
	return e.Err
}
