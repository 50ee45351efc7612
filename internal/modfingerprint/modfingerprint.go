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

// Package modfingerprint computes a module's fingerprint from the
// scanner's output, the effective project descriptor, plugin
// configuration, and upstream module fingerprints.
package modfingerprint

import (
	"sort"

	"github.com/buildcache/modcache/internal/modhash"
	"github.com/buildcache/modcache/internal/modrecord"
)

// PluginConfiguration is one plugin's normalized configuration, ready to
// be folded into the fingerprint.
type PluginConfiguration struct {
	Coordinates modrecord.PluginID
	// NormalizedBytes is the plugin's configuration after excludeProperties
	// has been applied and keys sorted.
	NormalizedBytes []byte
}

// Upstream pairs an upstream module with its published fingerprint.
type Upstream struct {
	ModuleID    modrecord.ModuleID
	Fingerprint modhash.Fingerprint
}

// Input is everything ProjectFingerprinter.Compute needs.
type Input struct {
	CacheImplementationVersion string
	ModuleID                   modrecord.ModuleID
	// CanonicalizedEffectiveDescriptor is the effective POM/descriptor
	// after whitespace/attribute-order/comment normalization and
	// excludeProperties removal.
	CanonicalizedEffectiveDescriptor []byte
	PluginConfigurations             []PluginConfiguration
	ScannedFiles                     []modrecord.InputFileRecord
	Upstreams                        []Upstream
}

// Fingerprinter computes module fingerprints under one fixed hash
// algorithm.
type Fingerprinter struct {
	algorithm modhash.Algorithm
}

// New returns a new Fingerprinter.
func New(algorithm modhash.Algorithm) *Fingerprinter {
	return &Fingerprinter{algorithm: algorithm}
}

// Compute implements the recipe from spec §4.4:
//
//	fingerprint = combine(algo, [
//	    hash(cacheImplementationVersion),
//	    hash(moduleId.group), hash(moduleId.artifact),
//	    hash(canonicalizedEffectiveDescriptorBytes),
//	    combine(algo, sorted[hash(plugin.coords) ++ hash(normalizedPluginConfigurationBytes)]),
//	    combine(algo, sorted[file.contentDigest] for file in InputScanner result),
//	    combine(algo, sortedByModuleId[upstream.fingerprint]) ])
func (f *Fingerprinter) Compute(input Input) (modhash.Fingerprint, error) {
	versionFP, err := modhash.HashString(f.algorithm, input.CacheImplementationVersion)
	if err != nil {
		return modhash.Fingerprint{}, err
	}
	groupFP, err := modhash.HashString(f.algorithm, input.ModuleID.Group)
	if err != nil {
		return modhash.Fingerprint{}, err
	}
	artifactFP, err := modhash.HashString(f.algorithm, input.ModuleID.Artifact)
	if err != nil {
		return modhash.Fingerprint{}, err
	}
	descriptorFP, err := modhash.Hash(f.algorithm, input.CanonicalizedEffectiveDescriptor)
	if err != nil {
		return modhash.Fingerprint{}, err
	}

	pluginsFP, err := f.combinePlugins(input.PluginConfigurations)
	if err != nil {
		return modhash.Fingerprint{}, err
	}

	filesFP, err := f.combineFiles(input.ScannedFiles)
	if err != nil {
		return modhash.Fingerprint{}, err
	}

	upstreamFP, err := f.combineUpstreams(input.Upstreams)
	if err != nil {
		return modhash.Fingerprint{}, err
	}

	return modhash.Combine(f.algorithm, []modhash.Fingerprint{
		versionFP, groupFP, artifactFP, descriptorFP, pluginsFP, filesFP, upstreamFP,
	})
}

func (f *Fingerprinter) combinePlugins(plugins []PluginConfiguration) (modhash.Fingerprint, error) {
	sorted := make([]PluginConfiguration, len(plugins))
	copy(sorted, plugins)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Coordinates.String() < sorted[j].Coordinates.String()
	})
	fingerprints := make([]modhash.Fingerprint, 0, len(sorted))
	for _, plugin := range sorted {
		coordsFP, err := modhash.HashString(f.algorithm, plugin.Coordinates.String())
		if err != nil {
			return modhash.Fingerprint{}, err
		}
		configFP, err := modhash.Hash(f.algorithm, plugin.NormalizedBytes)
		if err != nil {
			return modhash.Fingerprint{}, err
		}
		combined, err := modhash.Combine(f.algorithm, []modhash.Fingerprint{coordsFP, configFP})
		if err != nil {
			return modhash.Fingerprint{}, err
		}
		fingerprints = append(fingerprints, combined)
	}
	modhash.SortFingerprints(fingerprints)
	return modhash.Combine(f.algorithm, fingerprints)
}

func (f *Fingerprinter) combineFiles(files []modrecord.InputFileRecord) (modhash.Fingerprint, error) {
	sorted := make([]modrecord.InputFileRecord, len(files))
	copy(sorted, files)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].RelativePath < sorted[j].RelativePath
	})
	fingerprints := make([]modhash.Fingerprint, 0, len(sorted))
	for _, file := range sorted {
		fp, err := modhash.FingerprintFromHex(f.algorithm, file.ContentDigest)
		if err != nil {
			return modhash.Fingerprint{}, err
		}
		fingerprints = append(fingerprints, fp)
	}
	return modhash.Combine(f.algorithm, fingerprints)
}

func (f *Fingerprinter) combineUpstreams(upstreams []Upstream) (modhash.Fingerprint, error) {
	sorted := make([]Upstream, len(upstreams))
	copy(sorted, upstreams)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ModuleID.String() < sorted[j].ModuleID.String()
	})
	fingerprints := make([]modhash.Fingerprint, 0, len(sorted))
	for _, upstream := range sorted {
		fingerprints = append(fingerprints, upstream.Fingerprint)
	}
	return modhash.Combine(f.algorithm, fingerprints)
}
