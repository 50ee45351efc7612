// Copyright 2026 The Modcache Authors.
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

package modfingerprint

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
)

// CanonicalizeDescriptor normalizes an effective project descriptor
// (the XML document produced after property interpolation and
// inheritance resolution) for fingerprinting:
//
//   - comment nodes are dropped
//   - element attributes are sorted by name
//   - whitespace between elements is collapsed; whitespace inside text
//     nodes is preserved literally
//   - any element whose local name appears in excludeProperties is
//     dropped entirely, wherever it occurs in the tree
func CanonicalizeDescriptor(descriptorXML []byte, excludeProperties []string) ([]byte, error) {
	excluded := make(map[string]struct{}, len(excludeProperties))
	for _, name := range excludeProperties {
		excluded[name] = struct{}{}
	}

	decoder := xml.NewDecoder(bytes.NewReader(descriptorXML))
	var out bytes.Buffer
	encoder := xml.NewEncoder(&out)

	// skipDepth tracks nesting under an excluded element so its entire
	// subtree is dropped, not just the opening tag.
	skipDepth := 0
	for {
		tok, err := decoder.Token()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("canonicalize descriptor: %w", err)
		}
		switch t := tok.(type) {
		case xml.Comment:
			continue
		case xml.StartElement:
			if skipDepth > 0 {
				skipDepth++
				continue
			}
			if _, ok := excluded[t.Name.Local]; ok {
				skipDepth = 1
				continue
			}
			sort.Slice(t.Attr, func(i, j int) bool {
				return t.Attr[i].Name.Local < t.Attr[j].Name.Local
			})
			if err := encoder.EncodeToken(t); err != nil {
				return nil, fmt.Errorf("canonicalize descriptor: %w", err)
			}
		case xml.EndElement:
			if skipDepth > 0 {
				skipDepth--
				continue
			}
			if err := encoder.EncodeToken(t); err != nil {
				return nil, fmt.Errorf("canonicalize descriptor: %w", err)
			}
		case xml.CharData:
			if skipDepth > 0 {
				continue
			}
			// Whitespace-only text between elements is collapsed to
			// nothing; text carrying real content is preserved as-is.
			if len(bytes.TrimSpace(t)) == 0 {
				continue
			}
			if err := encoder.EncodeToken(t.Copy()); err != nil {
				return nil, fmt.Errorf("canonicalize descriptor: %w", err)
			}
		default:
			if skipDepth == 0 {
				if err := encoder.EncodeToken(tok); err != nil {
					return nil, fmt.Errorf("canonicalize descriptor: %w", err)
				}
			}
		}
	}
	if err := encoder.Flush(); err != nil {
		return nil, fmt.Errorf("canonicalize descriptor: %w", err)
	}
	return out.Bytes(), nil
}
