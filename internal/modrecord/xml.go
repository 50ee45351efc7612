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

package modrecord

import (
	"encoding/xml"
	"fmt"
)

// xmlBuildRecord is the on-disk shape of build.xml. No third-party XML
// library appears anywhere in the retrieved corpus (grep across every
// example repo's go.mod/go.sum turns up none), so this component, like
// the module's other XML readers and writers, is built on the standard
// library's encoding/xml; see DESIGN.md.
type xmlBuildRecord struct {
	XMLName                    xml.Name        `xml:"buildInfo"`
	SchemaVersion              string          `xml:"schemaVersion"`
	CacheImplementationVersion string          `xml:"cacheImplementationVersion"`
	HashAlgorithm              string          `xml:"hashAlgorithm"`
	ModuleID                   xmlModuleID     `xml:"moduleId"`
	Fingerprint                string          `xml:"fingerprint"`
	Timestamp                  string          `xml:"timestamp"`
	Source                     string          `xml:"source"`
	Steps                      xmlSteps        `xml:"steps"`
	Artifacts                  xmlArtifacts    `xml:"artifacts"`
	Upstream                   xmlUpstreamList `xml:"upstream"`
}

type xmlModuleID struct {
	GroupID    string `xml:"groupId"`
	ArtifactID string `xml:"artifactId"`
	Version    string `xml:"version"`
}

type xmlSteps struct {
	Step []xmlStep `xml:"step"`
}

type xmlStep struct {
	PluginID            xmlModuleID   `xml:"pluginId"`
	ExecutionID         string        `xml:"executionId"`
	Goal                string        `xml:"goal"`
	ConfigurationDigest string        `xml:"configurationDigest"`
	TrackedProperties   xmlProperties `xml:"trackedProperties"`
	ObservedProperties  xmlProperties `xml:"observedProperties"`
}

type xmlProperties struct {
	Property []xmlProperty `xml:"property"`
}

type xmlProperty struct {
	Name  string `xml:"name,attr"`
	Value string `xml:",chardata"`
}

type xmlArtifacts struct {
	Artifact []xmlArtifact `xml:"artifact"`
}

type xmlArtifact struct {
	Filename      string  `xml:"filename"`
	Classifier    *string `xml:"classifier,omitempty"`
	Extension     string  `xml:"extension"`
	ContentDigest string  `xml:"contentDigest"`
	SizeBytes     int64   `xml:"sizeBytes"`
}

type xmlUpstreamList struct {
	Upstream []xmlUpstream `xml:"upstreamFingerprint"`
}

type xmlUpstream struct {
	ModuleID    xmlModuleID `xml:"moduleId"`
	Fingerprint string      `xml:"fingerprint"`
}

func propertiesToXML(props PropertyMap) xmlProperties {
	out := xmlProperties{}
	for _, k := range props.SortedKeys() {
		out.Property = append(out.Property, xmlProperty{Name: k, Value: props[k]})
	}
	return out
}

func propertiesFromXML(x xmlProperties) PropertyMap {
	if len(x.Property) == 0 {
		return nil
	}
	out := make(PropertyMap, len(x.Property))
	for _, p := range x.Property {
		out[p.Name] = p.Value
	}
	return out
}

// MarshalBuildRecord serializes a BuildRecord to its build.xml form.
// Step, artifact, and upstream ordering is preserved exactly as given
// (steps in execution order per spec invariant); property maps are
// written in sorted key order so that two builds of identical inputs
// produce byte-identical XML.
func MarshalBuildRecord(b *BuildRecord) ([]byte, error) {
	doc := xmlBuildRecord{
		SchemaVersion:              b.SchemaVersion,
		CacheImplementationVersion: b.CacheImplementationVersion,
		HashAlgorithm:              b.HashAlgorithm,
		ModuleID: xmlModuleID{
			GroupID:    b.ModuleID.Group,
			ArtifactID: b.ModuleID.Artifact,
			Version:    b.ModuleID.Version,
		},
		Fingerprint: b.Fingerprint,
		Timestamp:   b.TimestampISO8601,
		Source:      string(b.SourceTag),
	}
	for _, step := range b.Steps {
		doc.Steps.Step = append(doc.Steps.Step, xmlStep{
			PluginID: xmlModuleID{
				GroupID:    step.PluginID.Group,
				ArtifactID: step.PluginID.Artifact,
				Version:    step.PluginID.Version,
			},
			ExecutionID:         step.ExecutionID,
			Goal:                step.Goal,
			ConfigurationDigest: step.ConfigurationDigest,
			TrackedProperties:   propertiesToXML(step.TrackedProperties),
			ObservedProperties:  propertiesToXML(step.ObservedProperties),
		})
	}
	for _, artifact := range b.Artifacts {
		doc.Artifacts.Artifact = append(doc.Artifacts.Artifact, xmlArtifact{
			Filename:      artifact.Filename,
			Classifier:    artifact.Classifier,
			Extension:     artifact.Extension,
			ContentDigest: artifact.ContentDigest,
			SizeBytes:     artifact.SizeBytes,
		})
	}
	for _, upstream := range b.UpstreamFingerprints {
		doc.Upstream.Upstream = append(doc.Upstream.Upstream, xmlUpstream{
			ModuleID: xmlModuleID{
				GroupID:    upstream.ModuleID.Group,
				ArtifactID: upstream.ModuleID.Artifact,
				Version:    upstream.ModuleID.Version,
			},
			Fingerprint: upstream.Fingerprint,
		})
	}
	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal build record: %w", err)
	}
	return append([]byte(xml.Header), out...), nil
}

// UnmarshalBuildRecord parses a build.xml document.
func UnmarshalBuildRecord(data []byte) (*BuildRecord, error) {
	var doc xmlBuildRecord
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal build record: %w", err)
	}
	b := &BuildRecord{
		SchemaVersion:              doc.SchemaVersion,
		CacheImplementationVersion: doc.CacheImplementationVersion,
		HashAlgorithm:              doc.HashAlgorithm,
		ModuleID: ModuleID{
			Group:    doc.ModuleID.GroupID,
			Artifact: doc.ModuleID.ArtifactID,
			Version:  doc.ModuleID.Version,
		},
		Fingerprint:      doc.Fingerprint,
		TimestampISO8601: doc.Timestamp,
		SourceTag:        Source(doc.Source),
	}
	for _, step := range doc.Steps.Step {
		b.Steps = append(b.Steps, StepExecutionRecord{
			PluginID: PluginID{
				Group:    step.PluginID.GroupID,
				Artifact: step.PluginID.ArtifactID,
				Version:  step.PluginID.Version,
			},
			ExecutionID:         step.ExecutionID,
			Goal:                step.Goal,
			ConfigurationDigest: step.ConfigurationDigest,
			TrackedProperties:   propertiesFromXML(step.TrackedProperties),
			ObservedProperties:  propertiesFromXML(step.ObservedProperties),
		})
	}
	for _, artifact := range doc.Artifacts.Artifact {
		b.Artifacts = append(b.Artifacts, ArtifactEntry{
			Filename:      artifact.Filename,
			Classifier:    artifact.Classifier,
			Extension:     artifact.Extension,
			ContentDigest: artifact.ContentDigest,
			SizeBytes:     artifact.SizeBytes,
		})
	}
	for _, upstream := range doc.Upstream.Upstream {
		b.UpstreamFingerprints = append(b.UpstreamFingerprints, UpstreamFingerprint{
			ModuleID: ModuleID{
				Group:    upstream.ModuleID.GroupID,
				Artifact: upstream.ModuleID.ArtifactID,
				Version:  upstream.ModuleID.Version,
			},
			Fingerprint: upstream.Fingerprint,
		})
	}
	return b, nil
}

// xmlProjectIndex is the on-disk shape of cache-report.xml.
type xmlProjectIndex struct {
	XMLName  xml.Name          `xml:"cacheReport"`
	BuildID  string            `xml:"buildId"`
	Projects []xmlProjectEntry `xml:"projects>project"`
}

type xmlProjectEntry struct {
	ModuleID    xmlModuleID `xml:"moduleId"`
	Fingerprint string      `xml:"fingerprint"`
	URL         string      `xml:"url,omitempty"`
}

// MarshalProjectIndex serializes a ProjectIndex to its cache-report.xml
// form. Projects are written in the order given by the caller; Reporter
// sorts by ModuleID before calling this so that onBuildComplete is
// idempotent.
func MarshalProjectIndex(idx *ProjectIndex) ([]byte, error) {
	doc := xmlProjectIndex{BuildID: idx.BuildID}
	for _, p := range idx.Projects {
		doc.Projects = append(doc.Projects, xmlProjectEntry{
			ModuleID: xmlModuleID{
				GroupID:    p.ModuleID.Group,
				ArtifactID: p.ModuleID.Artifact,
				Version:    p.ModuleID.Version,
			},
			Fingerprint: p.Fingerprint,
			URL:         p.StoreURL,
		})
	}
	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal project index: %w", err)
	}
	return append([]byte(xml.Header), out...), nil
}

// UnmarshalProjectIndex parses a cache-report.xml document.
func UnmarshalProjectIndex(data []byte) (*ProjectIndex, error) {
	var doc xmlProjectIndex
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal project index: %w", err)
	}
	idx := &ProjectIndex{BuildID: doc.BuildID}
	for _, p := range doc.Projects {
		idx.Projects = append(idx.Projects, ProjectIndexEntry{
			ModuleID: ModuleID{
				Group:    p.ModuleID.GroupID,
				Artifact: p.ModuleID.ArtifactID,
				Version:  p.ModuleID.Version,
			},
			Fingerprint: p.Fingerprint,
			StoreURL:    p.URL,
		})
	}
	return idx, nil
}
