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

package modreconcile

import "encoding/xml"

// xmlDiff mirrors diff.xml, persisted whenever a reconciliation finds
// at least one diff entry. Built on encoding/xml for the same reason as
// modrecord's xml.go: no third-party XML library appears anywhere in
// the retrieved corpus.
type xmlDiff struct {
	XMLName xml.Name       `xml:"diff"`
	Entries []xmlDiffEntry `xml:"entry"`
}

type xmlDiffEntry struct {
	PluginID    string `xml:"pluginId"`
	ExecutionID string `xml:"executionId"`
	Goal        string `xml:"goal"`
	Property    string `xml:"property"`
	Baseline    string `xml:"baseline"`
	Current     string `xml:"current"`
	Severity    string `xml:"severity"`
}

// MarshalDiff renders a Diff as diff.xml bytes.
func MarshalDiff(diff *Diff) ([]byte, error) {
	x := xmlDiff{Entries: make([]xmlDiffEntry, 0, len(diff.Entries))}
	for _, entry := range diff.Entries {
		x.Entries = append(x.Entries, xmlDiffEntry{
			PluginID:    entry.PluginID.String(),
			ExecutionID: entry.ExecutionID,
			Goal:        entry.Goal,
			Property:    entry.Property,
			Baseline:    entry.Baseline,
			Current:     entry.Current,
			Severity:    string(entry.Severity),
		})
	}
	return xml.MarshalIndent(x, "", "  ")
}
