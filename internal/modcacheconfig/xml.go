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

package modcacheconfig

import (
	"encoding/xml"
	"fmt"

	"github.com/buildcache/modcache/internal/modhash"
)

type xmlConfig struct {
	XMLName          xml.Name            `xml:"cache"`
	Input            xmlInput            `xml:"input"`
	ExecutionControl xmlExecutionControl `xml:"executionControl"`
	Output           xmlOutput           `xml:"output"`
	Configuration    xmlConfiguration    `xml:"configuration"`
}

type xmlInput struct {
	Global  xmlGlobalInput   `xml:"global"`
	Plugins []xmlPluginInput `xml:"plugins>plugin"`
}

type xmlGlobalInput struct {
	Glob     string   `xml:"glob"`
	Includes []string `xml:"includes>include"`
	Excludes []string `xml:"excludes>exclude"`
}

type xmlPluginInput struct {
	GroupID           string           `xml:"groupId"`
	ArtifactID        string           `xml:"artifactId"`
	DirScan           *xmlDirScan      `xml:"dirScan"`
	ExecutionDirScans []xmlExecDirScan `xml:"executionDirScan"`
	ExcludeProperties []string         `xml:"effectivePom>excludeProperties>excludeProperty"`
}

type xmlDirScan struct {
	Includes []string `xml:"includes>include"`
	Excludes []string `xml:"excludes>exclude"`
}

type xmlExecDirScan struct {
	ExecutionID string   `xml:"executionId"`
	Includes    []string `xml:"includes>include"`
	Excludes    []string `xml:"excludes>exclude"`
}

type xmlExecutionControl struct {
	IgnoreMissing []xmlControlRule   `xml:"ignoreMissing>rule"`
	RunAlways     []xmlControlRule   `xml:"runAlways>rule"`
	Reconcile     xmlReconcileConfig `xml:"reconcile"`
}

type xmlControlRule struct {
	GroupID      string   `xml:"groupId"`
	ArtifactID   string   `xml:"artifactId"`
	Goals        []string `xml:"goals>goal"`
	ExecutionIDs []string `xml:"executions>execution"`
}

type xmlReconcileConfig struct {
	Plugins []xmlReconcilePlugin `xml:"plugin"`
}

type xmlReconcilePlugin struct {
	GroupID      string   `xml:"groupId"`
	ArtifactID   string   `xml:"artifactId"`
	Goals        []string `xml:"goals>goal"`
	ExecutionIDs []string `xml:"executions>execution"`
	Reconciles   []string `xml:"reconciles>property"`
	Logs         []string `xml:"logs>property"`
	NoLogs       []string `xml:"nologs>property"`
	LogAll       bool     `xml:"logAll"`
}

type xmlOutput struct {
	ExcludePatterns []string `xml:"exclude>patterns>pattern"`
}

type xmlConfiguration struct {
	Local                   xmlStoreConfig `xml:"local"`
	Remote                  xmlStoreConfig `xml:"remote"`
	ProjectVersioning       bool           `xml:"projectVersioning"`
	AttachedOutputs         bool           `xml:"attachedOutputs"`
	HashAlgorithm           string         `xml:"hashAlgorithm"`
	MultiModule             bool           `xml:"multiModule"`
	BaselineURL             string         `xml:"baselineUrl"`
	FailFast                bool           `xml:"failFast"`
	SaveFinal               bool           `xml:"saveFinal"`
	LazyRestore             bool           `xml:"lazyRestore"`
	RestoreGeneratedSources *bool          `xml:"restoreGeneratedSources"`
}

type xmlStoreConfig struct {
	Enabled              *bool  `xml:"enabled"`
	Location             string `xml:"location"`
	SaveEnabled          bool   `xml:"saveEnabled"`
	MaxLocalBuildsCached int    `xml:"maxLocalBuildsCached"`
	ConnectTimeoutMillis int    `xml:"connectTimeoutMillis"`
	RequestTimeoutMillis int    `xml:"requestTimeoutMillis"`
}

// Parse decodes a maven-cache-config.xml document. An empty document
// (zero bytes) is not an error: Default() is returned instead, matching
// the "absent configuration" default in spec §4.2.
func Parse(data []byte) (*ConfigModel, error) {
	if len(data) == 0 {
		return Default(), nil
	}
	var doc xmlConfig
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse cache configuration: %w", err)
	}

	model := &ConfigModel{Enabled: true}
	model.Global = GlobalInputConfig{
		Glob:     doc.Input.Global.Glob,
		Includes: doc.Input.Global.Includes,
		Excludes: doc.Input.Global.Excludes,
	}
	if model.Global.Glob == "" {
		model.Global.Glob = Default().Global.Glob
	}

	for _, p := range doc.Input.Plugins {
		plugin := PluginInputConfig{
			Plugin:            PluginCoordinates{GroupID: p.GroupID, ArtifactID: p.ArtifactID},
			ExcludeProperties: p.ExcludeProperties,
		}
		if p.DirScan != nil {
			plugin.DirScan = &DirScanConfig{Includes: p.DirScan.Includes, Excludes: p.DirScan.Excludes}
		}
		for _, e := range p.ExecutionDirScans {
			plugin.PerExecutionDirScans = append(plugin.PerExecutionDirScans, PerExecutionDirScanConfig{
				ExecutionID:   e.ExecutionID,
				DirScanConfig: DirScanConfig{Includes: e.Includes, Excludes: e.Excludes},
			})
		}
		model.Plugins = append(model.Plugins, plugin)
	}

	for _, r := range doc.ExecutionControl.IgnoreMissing {
		model.ExecutionControl.IgnoreMissing = append(model.ExecutionControl.IgnoreMissing, toControlRule(r))
	}
	for _, r := range doc.ExecutionControl.RunAlways {
		model.ExecutionControl.RunAlways = append(model.ExecutionControl.RunAlways, toControlRule(r))
	}
	for _, r := range doc.ExecutionControl.Reconcile.Plugins {
		rule := ReconcilePluginRule{
			Plugin:       PluginCoordinates{GroupID: r.GroupID, ArtifactID: r.ArtifactID},
			Goals:        r.Goals,
			ExecutionIDs: r.ExecutionIDs,
			Logs:         r.Logs,
			NoLogs:       r.NoLogs,
			LogAll:       r.LogAll,
		}
		for _, tp := range r.Reconciles {
			rule.Reconciles = append(rule.Reconciles, TrackedProperty(tp))
		}
		model.ExecutionControl.Reconcile.Plugins = append(model.ExecutionControl.Reconcile.Plugins, rule)
	}

	model.Output = OutputConfig{ExcludePatterns: doc.Output.ExcludePatterns}

	hashAlgorithm := modhash.Algorithm(doc.Configuration.HashAlgorithm)
	if hashAlgorithm == "" {
		hashAlgorithm = modhash.AlgorithmSHA256
	}
	restoreGeneratedSources := true
	if doc.Configuration.RestoreGeneratedSources != nil {
		restoreGeneratedSources = *doc.Configuration.RestoreGeneratedSources
	}
	model.Configuration = GlobalConfig{
		Local:                   toStoreConfig(doc.Configuration.Local, true),
		Remote:                  toStoreConfig(doc.Configuration.Remote, false),
		ProjectVersioning:       doc.Configuration.ProjectVersioning,
		AttachedOutputs:         doc.Configuration.AttachedOutputs,
		HashAlgorithm:           hashAlgorithm,
		MultiModule:             doc.Configuration.MultiModule,
		BaselineURL:             doc.Configuration.BaselineURL,
		FailFast:                doc.Configuration.FailFast,
		SaveFinal:               doc.Configuration.SaveFinal,
		LazyRestore:             doc.Configuration.LazyRestore,
		RestoreGeneratedSources: restoreGeneratedSources,
	}
	return model, nil
}

func toControlRule(r xmlControlRule) ExecutionControlRule {
	return ExecutionControlRule{
		Plugin:       PluginCoordinates{GroupID: r.GroupID, ArtifactID: r.ArtifactID},
		Goals:        r.Goals,
		ExecutionIDs: r.ExecutionIDs,
	}
}

func toStoreConfig(x xmlStoreConfig, defaultEnabled bool) StoreConfig {
	enabled := defaultEnabled
	if x.Enabled != nil {
		enabled = *x.Enabled
	}
	return StoreConfig{
		Enabled:              enabled,
		Location:             x.Location,
		SaveEnabled:          x.SaveEnabled,
		MaxLocalBuildsCached: x.MaxLocalBuildsCached,
		ConnectTimeoutMillis: x.ConnectTimeoutMillis,
		RequestTimeoutMillis: x.RequestTimeoutMillis,
	}
}
