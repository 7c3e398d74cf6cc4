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

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

var defaultCharacterRepertoire encoding.Encoding = charmap.Windows1252

// lookupLabelByTerm is a mapping of specific character set defined terms to golang charset labels.
// See link below for list of character set defined terms.
// http://dicom.nema.org/medical/dicom/current/output/chtml/part02/sect_D.6.2.html
var lookupLabelByTerm = map[string]string{
	"ISO_IR 100": "iso-ir-100",
	"ISO_IR 101": "iso-ir-101",
	"ISO_IR 109": "iso-ir-109",
	"ISO_IR 110": "iso-ir-110",
	"ISO_IR 144": "iso-ir-144",
	"ISO_IR 127": "iso-ir-127",
	"ISO_IR 126": "iso-ir-126",
	"ISO_IR 138": "iso-ir-138",
	"ISO_IR 148": "iso-ir-148",
	"ISO_IR 13":  "shift-jis",
	"ISO_IR 166": "tis-620",
	"ISO_IR 192": "utf-8",
	"GB18030":    "gb18030",
	"GBK":        "gbk",
	// Code extensions are decoded with the encoding of their base repertoire only.
	"ISO 2022 IR 6":   "us-ascii",
	"ISO 2022 IR 100": "iso-ir-100",
	"ISO 2022 IR 101": "iso-ir-101",
	"ISO 2022 IR 109": "iso-ir-109",
	"ISO 2022 IR 110": "iso-ir-110",
	"ISO 2022 IR 144": "iso-ir-144",
	"ISO 2022 IR 127": "iso-ir-127",
	"ISO 2022 IR 126": "iso-ir-126",
	"ISO 2022 IR 138": "iso-ir-138",
	"ISO 2022 IR 148": "iso-ir-148",
	"ISO 2022 IR 13":  "shift-jis",
	"ISO 2022 IR 166": "tis-620",
	"ISO 2022 IR 87":  "iso-2022-jp",
	"ISO 2022 IR 159": "iso-2022-jp",
	"ISO 2022 IR 149": "iso-ir-149",
}

func lookupEncoding(term string) (encoding.Encoding, error) {
	label, ok := lookupLabelByTerm[term]
	if !ok {
		return nil, fmt.Errorf("specific character set defined term not found: %v", term)
	}

	coding, _ := charset.Lookup(label)
	if coding == nil {
		return nil, fmt.Errorf("missing encoding for label %q", label)
	}
	return coding, nil
}

// characterSet returns the encoding named by the Specific Character Set (0008,0005) of l. When
// several terms are present the first non-empty one is used. Lists without the attribute use the
// default repertoire.
func (l *AttributeList) characterSet() (encoding.Encoding, error) {
	a, ok := l.Get(SpecificCharacterSetTag)
	if !ok {
		return defaultCharacterRepertoire, nil
	}
	terms, err := a.Strings()
	if err != nil {
		return nil, fmt.Errorf("reading specific character set: %w", err)
	}
	for _, term := range terms {
		if term = strings.TrimSpace(term); term != "" {
			return lookupEncoding(term)
		}
	}
	return defaultCharacterRepertoire, nil
}

// DecodedStrings returns the values of the text attribute t converted to UTF-8. VRs affected by
// the Specific Character Set are decoded with it; other text VRs are returned as is.
func (l *AttributeList) DecodedStrings(t Tag) ([]string, error) {
	a, ok := l.Get(t)
	if !ok {
		return nil, fmt.Errorf("attribute %v not found", t)
	}
	if !a.VR.UsesCharacterSet() {
		return a.Strings()
	}
	coding, err := l.characterSet()
	if err != nil {
		return nil, err
	}
	raw, err := a.rawValue()
	if err != nil {
		return nil, err
	}
	decoded, err := coding.NewDecoder().Bytes(raw)
	if err != nil {
		return nil, fmt.Errorf("decoding %v: %w", t, err)
	}
	return splitText(string(decoded), a.VR), nil
}
