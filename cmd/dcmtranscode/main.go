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

// Command dcmtranscode re-encodes a DICOM file in another transfer syntax.
//
//	dcmtranscode [glog flags] <input-ts-uid|""> <input> <output-ts-uid> <output>
//
// An empty input transfer syntax UID reads the syntax from the meta header of the input, or
// guesses it when there is none. "-" reads from stdin or writes to stdout.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/golang/glog"

	"github.com/GoogleCloudPlatform/go-dicom-transcoder/dicom"
)

const usage = `usage: dcmtranscode [glog flags] <input-ts-uid|""> <input> <output-ts-uid> <output>`

func main() {
	flag.Parse()
	code := run(flag.Args(), os.Stdin, os.Stdout, os.Stderr)
	glog.Flush()
	os.Exit(code)
}

// run transcodes as described by args and returns the exit code: 0 on success, 1 when
// transcoding fails and 2 on usage errors.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) != 4 {
		fmt.Fprintln(stderr, usage)
		return 2
	}
	inUID, inPath, outUID, outPath := args[0], args[1], args[2], args[3]
	if outUID == "" {
		fmt.Fprintln(stderr, "output transfer syntax uid is required")
		fmt.Fprintln(stderr, usage)
		return 2
	}

	if err := transcodeFile(inUID, inPath, outUID, outPath, stdin, stdout); err != nil {
		fmt.Fprintf(stderr, "dcmtranscode: %v\n", err)
		return 1
	}
	return 0
}

func transcodeFile(inUID, inPath, outUID, outPath string, stdin io.Reader, stdout io.Writer) (err error) {
	var opts []dicom.TranscodeOption
	if inUID != "" {
		opts = append(opts, dicom.WithInputTransferSyntax(inUID))
	}

	in := stdin
	if inPath != "-" {
		f, err := os.Open(inPath)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	if outPath == "-" {
		return dicom.Transcode(stdout, in, outUID, opts...)
	}
	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			// partial output is not a valid file
			os.Remove(outPath)
		}
	}()

	glog.V(1).Infof("transcoding %s to %s as %s", inPath, outPath, outUID)
	return dicom.Transcode(f, in, outUID, opts...)
}
