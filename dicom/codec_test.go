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
	"errors"
	"io"
	"testing"
)

func TestCodecLayers_unknownCompression(t *testing.T) {
	unknown := Compression(99)
	if _, err := openInputLayer(unknown, &bytes.Buffer{}); !errors.Is(err, ErrUnsupportedCodec) {
		t.Fatalf("openInputLayer(%v, _) => %v, want %v", unknown, err, ErrUnsupportedCodec)
	}
	if _, _, err := openOutputLayer(unknown, &bytes.Buffer{}); !errors.Is(err, ErrUnsupportedCodec) {
		t.Fatalf("openOutputLayer(%v, _) => %v, want %v", unknown, err, ErrUnsupportedCodec)
	}
}

func TestCodecLayers_roundTrip(t *testing.T) {
	data := bytes.Repeat([]byte("ISO_IR 100\\"), 500)
	for _, c := range []Compression{DeflateCompression, Bzip2Compression} {
		t.Run(c.String(), func(t *testing.T) {
			var buf bytes.Buffer
			w, closer, err := openOutputLayer(c, &buf)
			if err != nil {
				t.Fatalf("openOutputLayer(%v, _) => %v", c, err)
			}
			if _, err := w.Write(data); err != nil {
				t.Fatalf("Write(_) => %v", err)
			}
			if err := closer.Close(); err != nil {
				t.Fatalf("Close() => %v", err)
			}
			if buf.Len() >= len(data) {
				t.Fatalf("%v wrote %d bytes for %d repetitive bytes", c, buf.Len(), len(data))
			}

			r, err := openInputLayer(c, bufio.NewReader(&buf))
			if err != nil {
				t.Fatalf("openInputLayer(%v, _) => %v", c, err)
			}
			got, err := io.ReadAll(r)
			if err != nil {
				t.Fatalf("io.ReadAll(_) => %v", err)
			}
			if !bytes.Equal(got, data) {
				t.Fatalf("%v round trip => %d bytes, want %d", c, len(got), len(data))
			}
		})
	}
}

func TestTranscode_missingCompressor(t *testing.T) {
	saved := lookupCodec(Bzip2Compression)
	codecsMu.Lock()
	codecs[Bzip2Compression] = codec{newReader: saved.newReader}
	codecsMu.Unlock()
	defer func() {
		codecsMu.Lock()
		codecs[Bzip2Compression] = saved
		codecsMu.Unlock()
	}()

	err := Transcode(io.Discard, bytes.NewReader(explicitLittleEndianFile()), Bzip2ExplicitVRLittleEndianUID)
	if !errors.Is(err, ErrUnsupportedCodec) {
		t.Fatalf("Transcode(_) => %v, want %v", err, ErrUnsupportedCodec)
	}
	var te *TranscodeError
	if !errors.As(err, &te) || te.Phase != "data set" {
		t.Fatalf("Transcode(_) => %#v, want a *TranscodeError in the data set phase", err)
	}
}
