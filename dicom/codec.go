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
	"sync"

	"github.com/dsnet/compress/bzip2"
	"github.com/golang/glog"
	"github.com/klauspost/compress/flate"
)

// NewDecompressor wraps the compressed remainder of a stream.
type NewDecompressor func(r io.Reader) (io.Reader, error)

// NewCompressor wraps the output stream. Close must finish the compressed stream without closing
// the underlying writer.
type NewCompressor func(w io.Writer) (io.WriteCloser, error)

type codec struct {
	newReader NewDecompressor
	newWriter NewCompressor
}

var (
	codecsMu sync.RWMutex
	codecs   = map[Compression]codec{
		DeflateCompression: {
			newReader: func(r io.Reader) (io.Reader, error) {
				return flate.NewReader(r), nil
			},
			newWriter: func(w io.Writer) (io.WriteCloser, error) {
				return flate.NewWriter(w, flate.DefaultCompression)
			},
		},
		Bzip2Compression: {
			newReader: func(r io.Reader) (io.Reader, error) {
				return bzip2.NewReader(r, nil)
			},
			newWriter: func(w io.Writer) (io.WriteCloser, error) {
				return bzip2.NewWriter(w, &bzip2.WriterConfig{Level: bzip2.DefaultCompression})
			},
		},
	}
)

// RegisterCodec installs the implementation of a compression. A nil function leaves the existing
// implementation of that direction in place.
func RegisterCodec(c Compression, newReader NewDecompressor, newWriter NewCompressor) {
	codecsMu.Lock()
	defer codecsMu.Unlock()

	cd := codecs[c]
	if newReader != nil {
		cd.newReader = newReader
	}
	if newWriter != nil {
		cd.newWriter = newWriter
	}
	codecs[c] = cd
}

func lookupCodec(c Compression) codec {
	codecsMu.RLock()
	defer codecsMu.RUnlock()
	return codecs[c]
}

// openInputLayer returns the reader of the data set beneath compression c. r should implement
// io.ByteReader so that decompressors do not read past the end of their stream.
func openInputLayer(c Compression, r io.Reader) (io.Reader, error) {
	if c == NoCompression {
		return r, nil
	}
	cd := lookupCodec(c)
	if cd.newReader == nil {
		return nil, fmt.Errorf("reading %v: %w", c, ErrUnsupportedCodec)
	}
	glog.V(1).Infof("inserting %v decompressor", c)
	return cd.newReader(r)
}

// openOutputLayer returns the writer of the data set beneath compression c. The returned closer is
// nil when no compression is applied.
func openOutputLayer(c Compression, w io.Writer) (io.Writer, io.Closer, error) {
	if c == NoCompression {
		return w, nil, nil
	}
	cd := lookupCodec(c)
	if cd.newWriter == nil {
		return nil, nil, fmt.Errorf("writing %v: %w", c, ErrUnsupportedCodec)
	}
	glog.V(1).Infof("inserting %v compressor", c)
	wc, err := cd.newWriter(w)
	if err != nil {
		return nil, nil, fmt.Errorf("creating %v compressor: %w", c, err)
	}
	return wc, wc, nil
}
