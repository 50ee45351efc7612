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

// Package modrecord holds the persisted data model: ModuleId,
// InputFileRecord, StepExecutionRecord, BuildRecord, ArtifactEntry, and
// ProjectIndex, plus their XML encodings.
//
// Values in this package are immutable once constructed: a BuildRecord's
// bytes, once written, never change.
package modrecord

import (
	"fmt"
	"sort"
)

// Source identifies where a BuildRecord came from.
type Source string

const (
	SourceLocal    Source = "LOCAL"
	SourceRemote   Source = "REMOTE"
	SourceBaseline Source = "BASELINE"
)

// ModuleID identifies a module within the reactor. Version participates
// in identification but never in the fingerprint.
type ModuleID struct {
	Group    string
	Artifact string
	Version  string
}

// String renders the coordinates as "group:artifact:version".
func (m ModuleID) String() string {
	return fmt.Sprintf("%s:%s:%s", m.Group, m.Artifact, m.Version)
}

// Equal compares group and artifact only, matching the fingerprint's own
// exclusion of version (spec: "Version participates in identification
// but not in the fingerprint").
func (m ModuleID) Equal(other ModuleID) bool {
	return m.Group == other.Group && m.Artifact == other.Artifact
}

// PluginID identifies a build-step's plugin.
type PluginID struct {
	Group    string
	Artifact string
	Version  string
}

func (p PluginID) String() string {
	return fmt.Sprintf("%s:%s:%s", p.Group, p.Artifact, p.Version)
}

// InputFileRecord is one scanned input file. Within a scan result,
// RelativePath is unique and the containing slice is kept sorted
// lexicographically by RelativePath.
type InputFileRecord struct {
	RelativePath  string
	ContentDigest string // hex, tagged implicitly by the record's HashAlgorithm
	SizeBytes     int64
}

// StepExecutionRecord captures one build step's recorded execution.
type StepExecutionRecord struct {
	PluginID            PluginID
	ExecutionID         string
	Goal                string
	ConfigurationDigest string
	TrackedProperties   PropertyMap
	ObservedProperties  PropertyMap
}

// PropertyMap is a name->value map that always serializes with sorted
// keys so that two builds of identical inputs produce byte-identical
// XML (spec §8: "Idempotence").
type PropertyMap map[string]string

// SortedKeys returns the map's keys in sorted order.
func (p PropertyMap) SortedKeys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ArtifactEntry describes one produced artifact. The primary artifact
// is distinguished by a nil Classifier.
type ArtifactEntry struct {
	Filename      string
	Classifier    *string
	Extension     string
	ContentDigest string
	SizeBytes     int64
}

// IsPrimary returns true for the module's primary artifact.
func (a ArtifactEntry) IsPrimary() bool {
	return a.Classifier == nil
}

// GeneratedSourcesClassifier marks an artifact as the module's generated
// source tree, as opposed to its compiled output.
const GeneratedSourcesClassifier = "generated-sources"

// IsGeneratedSource reports whether this artifact is the module's
// generated-sources output, per GeneratedSourcesClassifier.
func (a ArtifactEntry) IsGeneratedSource() bool {
	return a.Classifier != nil && *a.Classifier == GeneratedSourcesClassifier
}

// UpstreamFingerprint pairs an upstream module with the fingerprint it
// published when this record was built.
type UpstreamFingerprint struct {
	ModuleID    ModuleID
	Fingerprint string // hex
}

// BuildRecord is the immutable document capturing one successful build.
type BuildRecord struct {
	SchemaVersion              string
	ModuleID                   ModuleID
	Fingerprint                string // hex
	HashAlgorithm              string
	CacheImplementationVersion string
	TimestampISO8601           string
	SourceTag                  Source
	Steps                      []StepExecutionRecord
	Artifacts                  []ArtifactEntry
	UpstreamFingerprints       []UpstreamFingerprint
}

// StepByCoordinates returns the step matching (pluginID, executionID,
// goal), or false if none is recorded.
func (b *BuildRecord) StepByCoordinates(pluginID PluginID, executionID, goal string) (StepExecutionRecord, bool) {
	for _, step := range b.Steps {
		if step.PluginID == pluginID && step.ExecutionID == executionID && step.Goal == goal {
			return step, true
		}
	}
	return StepExecutionRecord{}, false
}

// ProjectIndexEntry is one module's published location in a
// ProjectIndex.
type ProjectIndexEntry struct {
	ModuleID    ModuleID
	Fingerprint string // hex
	StoreURL    string // optional
}

// ProjectIndex maps a top-level build's modules to their fingerprints
// and store locations, for use as a baseline by future runs.
type ProjectIndex struct {
	BuildID  string
	Projects []ProjectIndexEntry
}
